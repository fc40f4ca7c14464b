package generator

import (
	"context"
	"strings"
)

const (
	defaultFallbackSuffix   = "Sharing a quick thought for the day."
	defaultFallbackQuestion = "What is one idea you keep coming back to this week?"
)

// Fallback 不调用任何外部模型，保证 auto 模式总能产出内容。
type Fallback struct {
	// Suffix is appended to the user's prompt; empty means the built-in line.
	Suffix string
}

func (f Fallback) Complete(_ context.Context, prompt Prompt) (string, error) {
	if prompt.Kind == KindQuestion {
		return defaultFallbackQuestion, nil
	}
	suffix := f.Suffix
	if suffix == "" {
		suffix = defaultFallbackSuffix
	}
	topic := strings.TrimSpace(prompt.Topic)
	if topic == "" {
		return suffix, nil
	}
	topic = strings.TrimRight(topic, " .!?")
	return topic + ". " + suffix, nil
}
