package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"auto_cycle_poster/cycle"
	"auto_cycle_poster/generator"
	"auto_cycle_poster/publisher"
	"auto_cycle_poster/quotes"
	"auto_cycle_poster/render"
)

// Generator produces post text.
type Generator interface {
	Generate(ctx context.Context, prompt string, engine generator.Engine) (string, error)
	GenerateQuestion(ctx context.Context, topic, quote string, engine generator.Engine) (string, error)
}

// Publisher sends content to the platform.
type Publisher interface {
	PublishText(ctx context.Context, text string) (publisher.PostResult, error)
	PublishWithImage(ctx context.Context, text string, img publisher.Image) (publisher.PostResult, error)
}

// QuoteSource hands out quotes for the image slot.
type QuoteSource interface {
	SelectUnused() (quotes.Quote, error)
	ThemeFor(q quotes.Quote) render.Theme
	MarkUsed(id string, theme render.Theme) error
}

// Renderer turns a quote into image bytes.
type Renderer interface {
	Render(quote, author string, theme render.Theme) ([]byte, error)
}

// Runner 负责一次发帖：读取轮次、生成内容、发布，成功后推进。
type Runner struct {
	Generator Generator
	Publisher Publisher
	Quotes    QuoteSource
	Renderer  Renderer
	Tracker   *cycle.Tracker

	// ImageOutDir, when set, receives a copy of every rendered image.
	ImageOutDir string
	Logger      *slog.Logger
}

// Outcome reports what one invocation did.
type Outcome struct {
	Slot      int
	NextSlot  int
	Text      string
	Quote     *quotes.Quote
	Theme     render.Theme
	ImagePath string
	Result    publisher.PostResult
}

// Advanced reports whether the cycle moved on.
func (o Outcome) Advanced() bool {
	return o.NextSlot != o.Slot
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

// Post generates text for prompt and publishes it without touching the cycle.
func (r *Runner) Post(ctx context.Context, prompt string, engine generator.Engine) (string, publisher.PostResult, error) {
	text, err := r.Generator.Generate(ctx, prompt, engine)
	if err != nil {
		return "", publisher.PostResult{}, err
	}
	res, err := r.Publisher.PublishText(ctx, text)
	return text, res, err
}

// PostCycle handles the current slot. The slot advances only when the platform
// confirms the post; dry runs and failures leave it in place.
func (r *Runner) PostCycle(ctx context.Context, prompt string, engine generator.Engine) (Outcome, error) {
	slot := r.Tracker.CurrentSlot()
	out := Outcome{Slot: slot, NextSlot: slot}
	log := r.logger().With("slot", slot)

	if cycle.IsImageSlot(slot) {
		if err := r.imagePost(ctx, &out, prompt, engine); err != nil {
			return out, err
		}
	} else {
		text, err := r.Generator.Generate(ctx, prompt, engine)
		if err != nil {
			return out, err
		}
		out.Text = text
		res, err := r.Publisher.PublishText(ctx, text)
		if err != nil {
			return out, err
		}
		out.Result = res
	}

	if !out.Result.Posted {
		log.Info("not posted, cycle unchanged", "dry_run", out.Result.DryRun)
		return out, nil
	}

	var markErr error
	if out.Quote != nil {
		if err := r.Quotes.MarkUsed(out.Quote.ID, out.Theme); err != nil {
			markErr = fmt.Errorf("mark quote %s used: %w", out.Quote.ID, err)
			log.Error("quote posted but not marked", "quote_id", out.Quote.ID, "error", err)
		}
	}

	next, err := r.Tracker.Advance(ctx)
	if err != nil {
		return out, errors.Join(markErr, fmt.Errorf("advance cycle: %w", err))
	}
	out.NextSlot = next
	log.Info("cycle advanced", "next_slot", next, "id", out.Result.ID)
	return out, markErr
}

func (r *Runner) imagePost(ctx context.Context, out *Outcome, prompt string, engine generator.Engine) error {
	q, err := r.Quotes.SelectUnused()
	if err != nil {
		return err
	}
	out.Quote = &q
	out.Theme = r.Quotes.ThemeFor(q)

	question, err := r.Generator.GenerateQuestion(ctx, prompt, q.Text, engine)
	if err != nil {
		return err
	}
	out.Text = question

	png, err := r.Renderer.Render(q.Text, q.Author, out.Theme)
	if err != nil {
		return fmt.Errorf("render quote %s: %w", q.ID, err)
	}
	name := "quote-" + q.ID + ".png"
	if r.ImageOutDir != "" {
		path, err := saveImage(r.ImageOutDir, name, png)
		if err != nil {
			r.logger().Warn("image not saved", "dir", r.ImageOutDir, "error", err)
		} else {
			out.ImagePath = path
		}
	}

	res, err := r.Publisher.PublishWithImage(ctx, question, publisher.Image{Name: name, Data: png})
	if err != nil {
		return err
	}
	out.Result = res
	return nil
}

func saveImage(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
