package generator

import (
	"fmt"
	"strings"
)

const (
	defaultSystemPrompt = "You are a social media copywriter. Write a single high-quality tweet " +
		"under 240 characters, clear, actionable, no hashtags, no emojis."
	defaultQuestionPrompt = "You are a social media copywriter. Write one short, open-ended question " +
		"that invites followers to reply. No hashtags, no emojis. End with a question mark."
)

// Kind 区分普通推文和第 10 格的互动提问。
type Kind int

const (
	KindTweet Kind = iota
	KindQuestion
)

// Prompt 表示发送给 LLM 的消息集合。
type Prompt struct {
	Kind    Kind
	System  string
	User    string
	History []Message
	// Topic is the operator's raw prompt, kept for the static fallback.
	Topic string
}

// Message 用于少量历史（可选）。
type Message struct {
	Role    string
	Content string
}

// Prompts overrides the built-in instructions; empty fields keep the defaults.
type Prompts struct {
	System   string
	Question string
}

func (p Prompts) system() string {
	if s := strings.TrimSpace(p.System); s != "" {
		return s
	}
	return defaultSystemPrompt
}

func (p Prompts) question() string {
	if s := strings.TrimSpace(p.Question); s != "" {
		return s
	}
	return defaultQuestionPrompt
}

// BuildTweetPrompt 生成普通推文提示词。
func BuildTweetPrompt(p Prompts, topic string, maxLength int) Prompt {
	topic = strings.TrimSpace(topic)
	var sb strings.Builder
	sb.WriteString(topic)
	if maxLength > 0 {
		sb.WriteString(fmt.Sprintf("\n\nKeep it under %d characters.", maxLength))
	}
	return Prompt{
		Kind:   KindTweet,
		System: p.system(),
		User:   sb.String(),
		Topic:  topic,
	}
}

// BuildQuestionPrompt asks for an engagement question, optionally anchored on the
// quote that will be shown in the attached image.
func BuildQuestionPrompt(p Prompts, topic, quote string, maxLength int) Prompt {
	topic = strings.TrimSpace(topic)
	var sb strings.Builder
	if topic != "" {
		sb.WriteString(fmt.Sprintf("Theme: %s\n", topic))
	}
	if q := strings.TrimSpace(quote); q != "" {
		sb.WriteString(fmt.Sprintf("The post carries an image of this quote: %q\n", q))
		sb.WriteString("Ask a question that makes readers reflect on it. Do not repeat the quote.\n")
	}
	if maxLength > 0 {
		sb.WriteString(fmt.Sprintf("Keep it under %d characters.", maxLength))
	}
	return Prompt{
		Kind:   KindQuestion,
		System: p.question(),
		User:   strings.TrimSpace(sb.String()),
		Topic:  topic,
	}
}
