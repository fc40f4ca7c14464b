package generator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	out   string
	err   error
	calls int
	last  Prompt
}

func (f *fakeLLM) Complete(_ context.Context, p Prompt) (string, error) {
	f.calls++
	f.last = p
	return f.out, f.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseEngine(t *testing.T) {
	e, err := ParseEngine("OLLAMA")
	require.NoError(t, err)
	assert.Equal(t, EngineOllama, e)

	e, err = ParseEngine("")
	require.NoError(t, err)
	assert.Equal(t, EngineAuto, e)

	_, err = ParseEngine("gpt")
	assert.Error(t, err)
}

func TestAutoUsesFirstWorkingEngineInOrder(t *testing.T) {
	provider := &fakeLLM{err: errors.New("connection refused")}
	ollama := &fakeLLM{out: "   "}
	hf := &fakeLLM{out: "Show up, then improve."}
	g := New(Options{Provider: provider, Ollama: ollama, HF: hf, MaxLength: 220, Logger: quietLogger()})

	out, err := g.Generate(context.Background(), "consistency", EngineAuto)
	require.NoError(t, err)
	assert.Equal(t, "Show up, then improve.", out)
	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, 1, ollama.calls)
	assert.Equal(t, 1, hf.calls)
	assert.Equal(t, KindTweet, hf.last.Kind)
	assert.Contains(t, hf.last.User, "consistency")
}

func TestAutoStopsAtFirstSuccess(t *testing.T) {
	provider := &fakeLLM{out: "Provider wins."}
	ollama := &fakeLLM{out: "unused"}
	g := New(Options{Provider: provider, Ollama: ollama, Logger: quietLogger()})

	out, err := g.Generate(context.Background(), "x", EngineAuto)
	require.NoError(t, err)
	assert.Equal(t, "Provider wins.", out)
	assert.Equal(t, 0, ollama.calls)
}

func TestAutoFallsBackToStaticText(t *testing.T) {
	g := New(Options{Ollama: &fakeLLM{err: errors.New("down")}, Logger: quietLogger()})

	out, err := g.Generate(context.Background(), "Morning routines", EngineAuto)
	require.NoError(t, err)
	assert.Equal(t, "Morning routines. Sharing a quick thought for the day.", out)
}

func TestExplicitEngineSurfacesError(t *testing.T) {
	g := New(Options{Ollama: &fakeLLM{err: errors.New("down")}, Logger: quietLogger()})

	_, err := g.Generate(context.Background(), "x", EngineOllama)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGeneration)

	_, err = g.Generate(context.Background(), "x", EngineProvider)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGeneration)
	assert.Contains(t, err.Error(), "not configured")
}

func TestExplicitFallbackUsesCustomSuffix(t *testing.T) {
	g := New(Options{Fallback: Fallback{Suffix: "Keep going."}, Logger: quietLogger()})
	out, err := g.Generate(context.Background(), "Rest is training too!", EngineFallback)
	require.NoError(t, err)
	assert.Equal(t, "Rest is training too. Keep going.", out)
}

func TestGenerateTruncatesToMaxLength(t *testing.T) {
	long := strings.Repeat("Patience is a quiet kind of strength. ", 20)
	g := New(Options{Provider: &fakeLLM{out: long}, MaxLength: 60, Logger: quietLogger()})

	out, err := g.Generate(context.Background(), "patience", EngineProvider)
	require.NoError(t, err)
	assert.LessOrEqual(t, utf8.RuneCountInString(out), 60)
}

func TestGenerateQuestionCarriesQuote(t *testing.T) {
	llm := &fakeLLM{out: "What would you do differently tomorrow"}
	g := New(Options{Provider: llm, Logger: quietLogger()})

	out, err := g.GenerateQuestion(context.Background(), "habits", "We suffer more in imagination than in reality.", EngineAuto)
	require.NoError(t, err)
	assert.Equal(t, "What would you do differently tomorrow?", out)
	assert.Equal(t, KindQuestion, llm.last.Kind)
	assert.Contains(t, llm.last.User, "We suffer more in imagination")
}

func TestGenerateQuestionFallback(t *testing.T) {
	g := New(Options{Logger: quietLogger()})
	out, err := g.GenerateQuestion(context.Background(), "habits", "", EngineAuto)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, "?"))
}

func TestOpenAILLMCompletesAgainstCompatibleServer(t *testing.T) {
	var gotBody map[string]any
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "qwen2.5:3b-instruct",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "  Do one brave thing today.  "}}]
		}`)
	}))
	defer srv.Close()

	llm, err := NewOpenAILLMFromConfig(&LLMSettings{
		Provider:  string(EngineOllama),
		Model:     "qwen2.5:3b-instruct",
		BaseURL:   srv.URL + "/v1",
		MaxTokens: 120,
	})
	require.NoError(t, err)

	out, err := llm.Complete(context.Background(), BuildTweetPrompt(Prompts{}, "courage", 220))
	require.NoError(t, err)
	assert.Equal(t, "Do one brave thing today.", out)
	assert.Equal(t, "Bearer local", gotAuth)
	assert.Equal(t, "qwen2.5:3b-instruct", gotBody["model"])
	msgs, ok := gotBody["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 2)
}

func TestOpenAILLMDoesNotRetry(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	llm, err := NewOpenAILLMFromConfig(&LLMSettings{Provider: "provider", Model: "m", APIKey: "sk", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = llm.Complete(context.Background(), BuildTweetPrompt(Prompts{}, "x", 220))
	assert.Error(t, err)
	assert.Equal(t, 1, hits)
}

func TestNewOpenAILLMValidation(t *testing.T) {
	_, err := NewOpenAILLMFromConfig(nil)
	assert.Error(t, err)
	_, err = NewOpenAILLMFromConfig(&LLMSettings{Provider: "provider", APIKey: "k"})
	assert.Error(t, err)
	_, err = NewOpenAILLMFromConfig(&LLMSettings{Provider: "provider", Model: "m"})
	assert.Error(t, err)
	_, err = NewOpenAILLMFromConfig(&LLMSettings{Provider: "hf", Model: "m"})
	assert.NoError(t, err)
}

func TestCompletionTokens(t *testing.T) {
	assert.Equal(t, 60, CompletionTokens(1))
	assert.Equal(t, 60, CompletionTokens(40))
	assert.Equal(t, 120, CompletionTokens(120))
	assert.Equal(t, 200, CompletionTokens(220))
	assert.Equal(t, 200, CompletionTokens(275))
}
