package quotes

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"auto_cycle_poster/render"
)

// ErrNoEligibleQuote 表示池子里所有语录都已用过，需要运营补充或显式重置。
var ErrNoEligibleQuote = errors.New("no eligible quote left")

var header = []string{
	"id",
	"text",
	"author",
	"theme",
	"theme_used",
	"source",
	"added_at",
	"last_posted_at",
	"times_posted",
}

var spaceRe = regexp.MustCompile(`\s+`)

// Quote is one stored row. A quote is eligible until it has been posted once.
// Theme is the ingested preference; ThemeUsed is what the last post rendered.
type Quote struct {
	ID           string
	Text         string
	Author       string
	Theme        render.Theme
	ThemeUsed    render.Theme
	Source       string
	AddedAt      string
	LastPostedAt string
	TimesPosted  int
}

func (q Quote) Eligible() bool {
	return q.TimesPosted == 0
}

// Row is one ingestion input.
type Row struct {
	Text   string
	Author string
	Theme  render.Theme
}

type IngestResult struct {
	Added      int
	Duplicates int
}

// Store keeps quotes in a CSV master file, in insertion order.
type Store struct {
	path    string
	records []*Quote
	byNorm  map[string]*Quote
	now     func() time.Time
}

// Open loads the master file, creating it with a header row when it does not exist.
func Open(path string) (*Store, error) {
	s := &Store{
		path:   path,
		byNorm: make(map[string]*Quote),
		now:    time.Now,
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := s.persist(); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read quote store %s: %w", path, err)
	}
	if len(rows) == 0 {
		return s, nil
	}
	cols := columnIndex(rows[0])
	if _, ok := cols["text"]; !ok {
		return nil, fmt.Errorf("quote store %s: missing text column", path)
	}
	for _, row := range rows[1:] {
		get := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		text := get("text")
		if text == "" {
			continue
		}
		// 主题列写坏了就当作没有偏好。
		theme, _ := render.ParseTheme(get("theme"))
		used, _ := render.ParseTheme(get("theme_used"))
		times, _ := strconv.Atoi(get("times_posted"))
		q := &Quote{
			ID:           get("id"),
			Text:         text,
			Author:       get("author"),
			Theme:        theme,
			ThemeUsed:    used,
			Source:       get("source"),
			AddedAt:      get("added_at"),
			LastPostedAt: get("last_posted_at"),
			TimesPosted:  times,
		}
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		s.records = append(s.records, q)
		s.byNorm[normalize(text)] = q
	}
	return s, nil
}

func (s *Store) Path() string {
	return s.path
}

// Ingest adds new quotes, skipping blanks and normalized-text duplicates, and persists.
func (s *Store) Ingest(rows []Row, source string) (IngestResult, error) {
	var res IngestResult
	for _, in := range rows {
		text := strings.TrimSpace(in.Text)
		if text == "" {
			continue
		}
		norm := normalize(text)
		if _, dup := s.byNorm[norm]; dup {
			res.Duplicates++
			continue
		}
		q := &Quote{
			ID:      uuid.NewString(),
			Text:    text,
			Author:  strings.TrimSpace(in.Author),
			Theme:   in.Theme,
			Source:  source,
			AddedAt: s.now().UTC().Format(time.RFC3339),
		}
		s.records = append(s.records, q)
		s.byNorm[norm] = q
		res.Added++
	}
	if res.Added == 0 {
		return res, nil
	}
	if err := s.persist(); err != nil {
		return res, err
	}
	return res, nil
}

// SelectUnused returns the first eligible quote in insertion order.
func (s *Store) SelectUnused() (Quote, error) {
	for _, q := range s.records {
		if q.Eligible() {
			return *q, nil
		}
	}
	return Quote{}, ErrNoEligibleQuote
}

// ThemeFor picks the theme for q: the row's own theme, else the opposite of the
// most recently posted quote's theme, starting with black on white.
func (s *Store) ThemeFor(q Quote) render.Theme {
	if q.Theme != "" {
		return q.Theme
	}
	var (
		last   render.Theme
		lastAt string
	)
	for _, r := range s.records {
		// Reset keeps last_posted_at, so history survives it.
		if r.LastPostedAt == "" || r.ThemeUsed == "" {
			continue
		}
		// RFC3339 UTC 字符串可以直接比较先后。
		if r.LastPostedAt >= lastAt {
			last, lastAt = r.ThemeUsed, r.LastPostedAt
		}
	}
	if last == "" {
		return render.ThemeBlackOnWhite
	}
	return last.Opposite()
}

// MarkUsed records a successful post of the quote with the given theme.
func (s *Store) MarkUsed(id string, theme render.Theme) error {
	for _, q := range s.records {
		if q.ID != id {
			continue
		}
		q.TimesPosted++
		q.LastPostedAt = s.now().UTC().Format(time.RFC3339)
		q.ThemeUsed = theme
		return s.persist()
	}
	return fmt.Errorf("quote %s not found", id)
}

// Reset makes every quote eligible again. Posting history timestamps are kept.
func (s *Store) Reset() (int, error) {
	n := 0
	for _, q := range s.records {
		if !q.Eligible() {
			q.TimesPosted = 0
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, s.persist()
}

func (s *Store) Count() int {
	return len(s.records)
}

func (s *Store) Eligible() int {
	n := 0
	for _, q := range s.records {
		if q.Eligible() {
			n++
		}
	}
	return n
}

// persist writes to a temp file in the same directory and renames it over the master.
func (s *Store) persist() error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("persist quotes: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("persist quotes: %w", err)
	}
	for _, q := range s.records {
		rec := []string{
			q.ID,
			q.Text,
			q.Author,
			string(q.Theme),
			string(q.ThemeUsed),
			q.Source,
			q.AddedAt,
			q.LastPostedAt,
			strconv.Itoa(q.TimesPosted),
		}
		if err := w.Write(rec); err != nil {
			tmp.Close()
			return fmt.Errorf("persist quotes: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("persist quotes: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("persist quotes: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("persist quotes: %w", err)
	}
	return nil
}

func columnIndex(head []string) map[string]int {
	cols := make(map[string]int, len(head))
	for i, h := range head {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, seen := cols[h]; !seen {
			cols[h] = i
		}
	}
	return cols
}

// normalize folds case, dash variants and whitespace so near-identical quotes dedupe.
func normalize(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = strings.NewReplacer("—", "-", "–", "-", "“", `"`, "”", `"`, "’", "'").Replace(s)
	return spaceRe.ReplaceAllString(s, " ")
}
