package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auto_cycle_poster/cycle"
	"auto_cycle_poster/generator"
	"auto_cycle_poster/publisher"
	"auto_cycle_poster/quotes"
	"auto_cycle_poster/render"
)

type fakeGenerator struct {
	text      string
	question  string
	err       error
	questions []string
}

func (f *fakeGenerator) Generate(context.Context, string, generator.Engine) (string, error) {
	return f.text, f.err
}

func (f *fakeGenerator) GenerateQuestion(_ context.Context, _, quote string, _ generator.Engine) (string, error) {
	f.questions = append(f.questions, quote)
	return f.question, f.err
}

type fakePublisher struct {
	dryRun bool
	err    error
	texts  []string
	images []publisher.Image
}

func (f *fakePublisher) result() (publisher.PostResult, error) {
	if f.err != nil {
		return publisher.PostResult{}, f.err
	}
	if f.dryRun {
		return publisher.PostResult{DryRun: true}, nil
	}
	return publisher.PostResult{Posted: true, ID: "t1"}, nil
}

func (f *fakePublisher) PublishText(_ context.Context, text string) (publisher.PostResult, error) {
	f.texts = append(f.texts, text)
	return f.result()
}

func (f *fakePublisher) PublishWithImage(_ context.Context, text string, img publisher.Image) (publisher.PostResult, error) {
	f.texts = append(f.texts, text)
	f.images = append(f.images, img)
	return f.result()
}

type fakeRenderer struct{ calls int }

func (f *fakeRenderer) Render(string, string, render.Theme) ([]byte, error) {
	f.calls++
	return []byte("png"), nil
}

type harness struct {
	runner *Runner
	gen    *fakeGenerator
	pub    *fakePublisher
	store  *quotes.Store
	state  *cycle.FileStore
	rend   *fakeRenderer
}

func newHarness(t *testing.T, slot int) *harness {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	state := cycle.NewFileStore(filepath.Join(dir, "state.json"), logger)
	require.NoError(t, state.Save(ctx, cycle.State{Slot: slot}))
	tracker, err := cycle.NewTracker(ctx, state)
	require.NoError(t, err)

	store, err := quotes.Open(filepath.Join(dir, "quotes.csv"))
	require.NoError(t, err)

	h := &harness{
		gen:   &fakeGenerator{text: "A short thought.", question: "What keeps you steady?"},
		pub:   &fakePublisher{},
		store: store,
		state: state,
		rend:  &fakeRenderer{},
	}
	h.runner = &Runner{
		Generator: h.gen,
		Publisher: h.pub,
		Quotes:    store,
		Renderer:  h.rend,
		Tracker:   tracker,
		Logger:    logger,
	}
	return h
}

func (h *harness) persistedSlot(t *testing.T) int {
	t.Helper()
	s, err := h.state.Load(context.Background())
	require.NoError(t, err)
	return s.Slot
}

func TestTextSlotAdvancesAfterPost(t *testing.T) {
	h := newHarness(t, 3)
	out, err := h.runner.PostCycle(context.Background(), "stoicism", generator.EngineAuto)
	require.NoError(t, err)

	assert.Equal(t, 3, out.Slot)
	assert.Equal(t, 4, out.NextSlot)
	assert.True(t, out.Advanced())
	assert.Equal(t, []string{"A short thought."}, h.pub.texts)
	assert.Empty(t, h.pub.images)
	assert.Equal(t, 4, h.persistedSlot(t))
}

func TestPublishFailureDoesNotAdvance(t *testing.T) {
	h := newHarness(t, 3)
	h.pub.err = publisher.ErrPublish
	out, err := h.runner.PostCycle(context.Background(), "stoicism", generator.EngineAuto)
	assert.ErrorIs(t, err, publisher.ErrPublish)
	assert.False(t, out.Advanced())
	assert.Equal(t, 3, h.runner.Tracker.CurrentSlot())
	assert.Equal(t, 3, h.persistedSlot(t))
}

func TestGenerationFailureDoesNotPublish(t *testing.T) {
	h := newHarness(t, 0)
	h.gen.err = generator.ErrGeneration
	_, err := h.runner.PostCycle(context.Background(), "x", generator.EngineOllama)
	assert.ErrorIs(t, err, generator.ErrGeneration)
	assert.Empty(t, h.pub.texts)
	assert.Equal(t, 0, h.persistedSlot(t))
}

func TestDryRunDoesNotAdvance(t *testing.T) {
	h := newHarness(t, 5)
	h.pub.dryRun = true
	out, err := h.runner.PostCycle(context.Background(), "x", generator.EngineAuto)
	require.NoError(t, err)
	assert.True(t, out.Result.DryRun)
	assert.False(t, out.Advanced())
	assert.Equal(t, 5, h.persistedSlot(t))
}

func TestImageSlotPostsQuestionWithQuoteImage(t *testing.T) {
	h := newHarness(t, cycle.ImageSlot)
	h.runner.ImageOutDir = filepath.Join(t.TempDir(), "images")
	_, err := h.store.Ingest([]quotes.Row{{Text: "The obstacle is the way.", Author: "Marcus Aurelius"}, {Text: "Second"}}, "test")
	require.NoError(t, err)

	out, err := h.runner.PostCycle(context.Background(), "resilience", generator.EngineAuto)
	require.NoError(t, err)

	require.NotNil(t, out.Quote)
	assert.Equal(t, "The obstacle is the way.", out.Quote.Text)
	assert.Equal(t, render.ThemeBlackOnWhite, out.Theme)
	assert.Equal(t, []string{"The obstacle is the way."}, h.gen.questions)
	assert.Equal(t, []string{"What keeps you steady?"}, h.pub.texts)
	require.Len(t, h.pub.images, 1)
	assert.Equal(t, []byte("png"), h.pub.images[0].Data)

	assert.Equal(t, 0, out.NextSlot)
	assert.Equal(t, 0, h.persistedSlot(t))
	assert.Equal(t, 1, h.store.Eligible())

	saved, err := os.ReadFile(out.ImagePath)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), saved)
}

func TestImageSlotEmptyPool(t *testing.T) {
	h := newHarness(t, cycle.ImageSlot)
	out, err := h.runner.PostCycle(context.Background(), "x", generator.EngineAuto)
	assert.ErrorIs(t, err, quotes.ErrNoEligibleQuote)
	assert.Empty(t, h.gen.questions, "no generation when the pool is empty")
	assert.Zero(t, h.rend.calls)
	assert.Empty(t, h.pub.texts)
	assert.False(t, out.Advanced())
	assert.Equal(t, cycle.ImageSlot, h.persistedSlot(t))
}

func TestImageSlotDryRunKeepsQuoteEligible(t *testing.T) {
	h := newHarness(t, cycle.ImageSlot)
	h.pub.dryRun = true
	_, err := h.store.Ingest([]quotes.Row{{Text: "only"}}, "test")
	require.NoError(t, err)

	_, err = h.runner.PostCycle(context.Background(), "x", generator.EngineAuto)
	require.NoError(t, err)
	assert.Equal(t, 1, h.store.Eligible())
	assert.Equal(t, cycle.ImageSlot, h.persistedSlot(t))
}

func TestFullCycleRunsTenSlots(t *testing.T) {
	h := newHarness(t, 0)
	_, err := h.store.Ingest([]quotes.Row{{Text: "q1"}, {Text: "q2"}}, "test")
	require.NoError(t, err)

	for i := 0; i < cycle.Slots; i++ {
		_, err := h.runner.PostCycle(context.Background(), "x", generator.EngineAuto)
		require.NoError(t, err)
	}
	assert.Len(t, h.pub.texts, cycle.Slots)
	assert.Len(t, h.pub.images, 1)
	assert.Equal(t, 0, h.persistedSlot(t))
	assert.Equal(t, 1, h.store.Eligible())
}

func TestPostDoesNotTouchCycle(t *testing.T) {
	h := newHarness(t, 2)
	text, res, err := h.runner.Post(context.Background(), "x", generator.EngineAuto)
	require.NoError(t, err)
	assert.Equal(t, "A short thought.", text)
	assert.True(t, res.Posted)
	assert.Equal(t, 2, h.persistedSlot(t))
}

func TestPostSurfacesPublishError(t *testing.T) {
	h := newHarness(t, 0)
	h.pub.err = errors.New("boom")
	_, _, err := h.runner.Post(context.Background(), "x", generator.EngineAuto)
	assert.Error(t, err)
}
