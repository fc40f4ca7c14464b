package quotes

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"auto_cycle_poster/render"
)

// ReadCSV parses a quote batch. A first row naming a "text" or "quote" column is
// treated as a header (optional "author" and "theme" columns); otherwise every
// row's first column is the quote text.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	cols := columnIndex(records[0])
	textCol, hasHeader := cols["text"]
	if !hasHeader {
		textCol, hasHeader = cols["quote"]
	}

	var rows []Row
	if !hasHeader {
		for _, rec := range records {
			if len(rec) == 0 || strings.TrimSpace(rec[0]) == "" {
				continue
			}
			rows = append(rows, Row{Text: rec[0]})
		}
		return rows, nil
	}

	authorCol, hasAuthor := cols["author"]
	themeCol, hasTheme := cols["theme"]
	for i, rec := range records[1:] {
		if textCol >= len(rec) || strings.TrimSpace(rec[textCol]) == "" {
			continue
		}
		row := Row{Text: rec[textCol]}
		if hasAuthor && authorCol < len(rec) {
			row.Author = strings.TrimSpace(rec[authorCol])
		}
		if hasTheme && themeCol < len(rec) {
			theme, err := render.ParseTheme(rec[themeCol])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", i+2, err)
			}
			row.Theme = theme
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// IngestCSV reads a batch file and ingests it; source defaults to the file name.
func (s *Store) IngestCSV(path, source string) (IngestResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return IngestResult{}, err
	}
	defer f.Close()

	rows, err := ReadCSV(f)
	if err != nil {
		return IngestResult{}, fmt.Errorf("read %s: %w", path, err)
	}
	if source == "" {
		source = filepath.Base(path)
	}
	return s.Ingest(rows, source)
}
