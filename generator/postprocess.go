package generator

import (
	"errors"
	"regexp"
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// HardLimit 给平台 280 字符上限留一点余量。
const HardLimit = 275

// A hashtag starts with a letter so "#1" survives.
var hashtagRe = regexp.MustCompile(`(^|\s)#\p{L}[\p{L}\p{N}_]*`)

// PostProcess turns raw model output into postable plain text no longer than limit.
func PostProcess(raw string, kind Kind, limit int) (string, error) {
	md := strings.TrimSpace(raw)
	if md == "" {
		return "", errors.New("model returned empty text")
	}

	out := PlainText(md)
	out = stripWrappingQuotes(out)
	out = hashtagRe.ReplaceAllString(out, "$1")
	out = strings.Join(strings.Fields(out), " ")
	if out == "" {
		return "", errors.New("model output has no usable text")
	}

	if kind == KindQuestion && !strings.HasSuffix(out, "?") {
		out = strings.TrimRight(out, ".!") + "?"
	}
	return Truncate(out, limit), nil
}

// PlainText 去掉模型常带的 Markdown 标记（加粗、标题、列表、链接），只保留文字。
func PlainText(md string) string {
	src := []byte(md)
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	var sb strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				sb.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			sb.Write(plainSegment(node.Segment.Value(src)))
			if node.SoftLineBreak() || node.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(node.Value)
		case *ast.AutoLink:
			sb.Write(node.URL(src))
			return ast.WalkSkipChildren, nil
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				sb.Write(seg.Value(src))
			}
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML, *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(strings.Fields(sb.String()), " ")
}

// plainSegment resolves backslash escapes and entity references the way the
// HTML renderer would before writing text.
func plainSegment(b []byte) []byte {
	b = util.UnescapePunctuations(b)
	b = util.ResolveNumericReferences(b)
	return util.ResolveEntityNames(b)
}

// Truncate shortens s to at most limit runes. The limit is clamped to [1, HardLimit].
// The cut backs off to a word boundary when one sits in the second half of the budget,
// and terminal punctuation (. ! ?) of the original is kept at the end.
func Truncate(s string, limit int) string {
	if limit < 1 {
		limit = 1
	}
	if limit > HardLimit {
		limit = HardLimit
	}
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= limit {
		return string(runes)
	}

	var end rune
	if last := runes[len(runes)-1]; isTerminal(last) {
		end = last
	}
	budget := limit
	if end != 0 {
		budget--
	}
	if budget == 0 {
		return string(end)
	}

	cut := runes[:budget]
	if !unicode.IsSpace(runes[budget]) {
		for i := len(cut) - 1; i >= budget/2 && i > 0; i-- {
			if unicode.IsSpace(cut[i]) {
				cut = cut[:i]
				break
			}
		}
	}

	out := strings.TrimRightFunc(string(cut), func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(",;:-", r)
	})
	if out == "" {
		out = string(runes[:budget])
	}
	if end != 0 {
		if trimmed := strings.TrimRightFunc(out, isTerminal); trimmed != "" {
			out = trimmed
		}
		out += string(end)
	}
	return out
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func stripWrappingQuotes(s string) string {
	pairs := [][2]string{{`"`, `"`}, {"“", "”"}, {"'", "'"}}
	for _, p := range pairs {
		if len(s) >= len(p[0])+len(p[1]) && strings.HasPrefix(s, p[0]) && strings.HasSuffix(s, p[1]) {
			inner := strings.TrimSpace(s[len(p[0]) : len(s)-len(p[1])])
			// "a" and "b" 这种中间还有引号的不剥。
			if !strings.Contains(inner, p[0]) && !strings.Contains(inner, p[1]) {
				return inner
			}
		}
	}
	return s
}
