package generator

import (
	"context"
	"fmt"
	"log/slog"
)

const DefaultMaxLength = 220

// CompletionTokens is the max_tokens cap sent with every completion for a given
// character limit: the limit itself, kept within [60, 200].
func CompletionTokens(maxLength int) int {
	return max(60, min(200, maxLength))
}

// Options wires engines and output limits into a Generator.
// A nil engine client means that engine is not configured.
type Options struct {
	Provider LLMClient
	Ollama   LLMClient
	HF       LLMClient
	Fallback Fallback

	MaxLength int
	Prompts   Prompts
	Logger    *slog.Logger
}

// Generator dispatches a prompt to one engine, or walks the auto chain.
type Generator struct {
	clients   map[Engine]LLMClient
	fallback  Fallback
	maxLength int
	prompts   Prompts
	logger    *slog.Logger
}

func New(opts Options) *Generator {
	clients := make(map[Engine]LLMClient)
	if opts.Provider != nil {
		clients[EngineProvider] = opts.Provider
	}
	if opts.Ollama != nil {
		clients[EngineOllama] = opts.Ollama
	}
	if opts.HF != nil {
		clients[EngineHF] = opts.HF
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxLength := opts.MaxLength
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	return &Generator{
		clients:   clients,
		fallback:  opts.Fallback,
		maxLength: maxLength,
		prompts:   opts.Prompts,
		logger:    logger,
	}
}

// Configured reports whether an engine has a client. Auto and fallback always do.
func (g *Generator) Configured(e Engine) bool {
	if e == EngineAuto || e == EngineFallback {
		return true
	}
	_, ok := g.clients[e]
	return ok
}

// MaxLength returns the effective output limit.
func (g *Generator) MaxLength() int {
	return g.maxLength
}

// Generate produces tweet text for prompt. Auto mode never fails; an explicit
// engine surfaces its error wrapped in ErrGeneration.
func (g *Generator) Generate(ctx context.Context, prompt string, engine Engine) (string, error) {
	return g.run(ctx, BuildTweetPrompt(g.prompts, prompt, g.maxLength), engine)
}

// GenerateQuestion produces the engagement question for the image slot.
func (g *Generator) GenerateQuestion(ctx context.Context, topic, quote string, engine Engine) (string, error) {
	return g.run(ctx, BuildQuestionPrompt(g.prompts, topic, quote, g.maxLength), engine)
}

func (g *Generator) run(ctx context.Context, prompt Prompt, engine Engine) (string, error) {
	switch engine {
	case EngineAuto, "":
		for _, e := range autoOrder {
			out, err := g.try(ctx, e, prompt)
			if err != nil {
				g.logger.Debug("engine skipped", "engine", e, "error", err)
				continue
			}
			g.logger.Info("content generated", "engine", e, "chars", len([]rune(out)))
			return out, nil
		}
		g.logger.Info("content generated", "engine", EngineFallback)
		return g.try(ctx, EngineFallback, prompt)
	case EngineProvider, EngineOllama, EngineHF, EngineFallback:
		out, err := g.try(ctx, engine, prompt)
		if err != nil {
			return "", err
		}
		g.logger.Info("content generated", "engine", engine, "chars", len([]rune(out)))
		return out, nil
	default:
		return "", fmt.Errorf("%w: unknown engine %q", ErrGeneration, engine)
	}
}

func (g *Generator) try(ctx context.Context, e Engine, prompt Prompt) (string, error) {
	var client LLMClient
	if e == EngineFallback {
		client = g.fallback
	} else {
		c, ok := g.clients[e]
		if !ok {
			return "", fmt.Errorf("%w: engine %s is not configured", ErrGeneration, e)
		}
		client = c
	}

	raw, err := client.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrGeneration, e, err)
	}
	out, err := PostProcess(raw, prompt.Kind, g.maxLength)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrGeneration, e, err)
	}
	return out, nil
}
