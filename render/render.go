package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	DefaultWidth  = 1080
	DefaultHeight = 1350

	maxFontSize = 72.0
	minFontSize = 20.0
	fontStep    = 4.0
)

// Theme is one of the two monochrome color schemes for quote cards.
type Theme string

const (
	ThemeBlackOnWhite Theme = "black_on_white"
	ThemeWhiteOnBlack Theme = "white_on_black"
)

// ParseTheme accepts the stored names plus light/dark; empty means no preference.
func ParseTheme(s string) (Theme, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case string(ThemeBlackOnWhite), "light", "black":
		return ThemeBlackOnWhite, nil
	case string(ThemeWhiteOnBlack), "dark", "white":
		return ThemeWhiteOnBlack, nil
	default:
		return "", fmt.Errorf("unknown theme %q", s)
	}
}

func (t Theme) Opposite() Theme {
	if t == ThemeBlackOnWhite {
		return ThemeWhiteOnBlack
	}
	return ThemeBlackOnWhite
}

func (t Theme) colors() (fg, bg color.Gray) {
	if t == ThemeWhiteOnBlack {
		return color.Gray{Y: 0xff}, color.Gray{Y: 0x00}
	}
	return color.Gray{Y: 0x00}, color.Gray{Y: 0xff}
}

// Renderer draws a quote centered on a plain background and encodes it as PNG.
type Renderer struct {
	Width  int
	Height int
	font   *opentype.Font
}

func New(width, height int) (*Renderer, error) {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return &Renderer{Width: width, Height: height, font: f}, nil
}

// Render returns PNG bytes. The font shrinks until the wrapped quote and the
// author line fit inside the margins.
func (r *Renderer) Render(quote, author string, theme Theme) ([]byte, error) {
	quote = strings.TrimSpace(quote)
	if quote == "" {
		return nil, errors.New("render: empty quote")
	}
	if theme == "" {
		theme = ThemeBlackOnWhite
	}
	fg, bg := theme.colors()

	img := image.NewGray(image.Rect(0, 0, r.Width, r.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	margin := r.Width / 12
	maxWidth := r.Width - 2*margin
	maxHeight := r.Height - 2*margin

	var (
		face  font.Face
		lines []string
		lineH int
	)
	for size := maxFontSize; size >= minFontSize; size -= fontStep {
		f, err := r.face(size)
		if err != nil {
			return nil, err
		}
		ls := wrap(f, quote, maxWidth)
		lh := f.Metrics().Height.Ceil() * 5 / 4
		total := lh * len(ls)
		if author != "" {
			total += lh * 2
		}
		if face != nil {
			closeFace(face)
		}
		face, lines, lineH = f, ls, lh
		if total <= maxHeight {
			break
		}
	}
	defer closeFace(face)

	blockH := lineH * len(lines)
	if author != "" {
		blockH += lineH * 2
	}
	ascent := face.Metrics().Ascent.Ceil()
	y := (r.Height-blockH)/2 + ascent
	if y < margin+ascent {
		y = margin + ascent
	}

	d := &font.Drawer{Dst: img, Src: image.NewUniform(fg), Face: face}
	for _, line := range lines {
		drawCentered(d, line, r.Width, y)
		y += lineH
	}
	if author != "" {
		y += lineH
		drawCentered(d, "— "+strings.TrimSpace(author), r.Width, y)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) face(size float64) (font.Face, error) {
	f, err := opentype.NewFace(r.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("new font face: %w", err)
	}
	return f, nil
}

func drawCentered(d *font.Drawer, s string, width, baseline int) {
	w := d.MeasureString(s).Ceil()
	x := (width - w) / 2
	if x < 0 {
		x = 0
	}
	d.Dot = fixed.P(x, baseline)
	d.DrawString(s)
}

// wrap 按像素宽度贪心断行；超长单词独占一行。
func wrap(face font.Face, s string, maxWidth int) []string {
	words := strings.Fields(s)
	var (
		lines   []string
		current string
	)
	for _, w := range words {
		trial := w
		if current != "" {
			trial = current + " " + w
		}
		if current == "" || font.MeasureString(face, trial).Ceil() <= maxWidth {
			current = trial
			continue
		}
		lines = append(lines, current)
		current = w
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

func closeFace(f font.Face) {
	if c, ok := f.(interface{ Close() error }); ok {
		_ = c.Close()
	}
}
