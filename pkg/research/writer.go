package research

import (
	"context"
	"errors"
	"iter"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
)

const suggestionCount = 5

// Writer holds the single-turn generation calls that turn research into text.
type Writer struct {
	// Fast serves suggestions.
	Fast llms.Model
	// Reasoning serves the outline.
	Reasoning llms.Model
	// Author streams summaries and articles.
	Author llms.Model
	Retry  RetryPolicy
	Now    func() time.Time
}

// Summarize streams a cited answer to query from numbered search results.
func (w Writer) Summarize(ctx context.Context, query, results string, history []HistoryTurn) iter.Seq2[string, error] {
	prompt, err := render(summarizePrompt, map[string]any{
		"query":        query,
		"context":      results,
		"history":      formatHistory(history),
		"current_date": w.date(),
	})
	if err != nil {
		return failed(err)
	}
	return Stream(ctx, w.Author, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	})
}

// Plan produces the article outline. Thinking spans are removed.
func (w Writer) Plan(ctx context.Context, topic, knowledge string) (string, error) {
	prompt, err := render(planPrompt, map[string]any{"topic": topic, "context": knowledge})
	if err != nil {
		return "", err
	}
	msgs := []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)}

	var plan string
	err = w.Retry.Do(ctx, func(int) error {
		text, err := generate(ctx, w.Reasoning, msgs, llms.WithTemperature(0.7))
		if err != nil {
			return err
		}
		plan = stripThinking(text)
		if plan == "" {
			return errors.New("empty outline")
		}
		return nil
	})
	return plan, err
}

// Write streams the article following plan.
func (w Writer) Write(ctx context.Context, topic, knowledge, plan string, images []ImageResult) iter.Seq2[string, error] {
	prompt, err := render(writePrompt, map[string]any{
		"topic":        topic,
		"plan":         plan,
		"context":      knowledge,
		"images":       formatImages(images),
		"current_date": w.date(),
	})
	if err != nil {
		return failed(err)
	}
	return Stream(ctx, w.Author, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}, llms.WithTemperature(0.7))
}

// Suggestions returns follow-up search suggestions for a finished answer.
func (w Writer) Suggestions(ctx context.Context, query, answer string) ([]string, error) {
	prompt, err := render(suggestPrompt, map[string]any{
		"query":        query,
		"context":      answer,
		"count":        suggestionCount,
		"current_date": w.date(),
	})
	if err != nil {
		return nil, err
	}
	text, err := generate(ctx, w.Fast, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	})
	if err != nil {
		return nil, err
	}

	var out []string
	for _, line := range strings.Split(stripThinking(text), "\n") {
		if s := cleanTerm(line); s != "" {
			out = append(out, s)
		}
	}
	if len(out) > suggestionCount {
		out = out[:suggestionCount]
	}
	return out, nil
}

func (w Writer) date() string {
	if w.Now != nil {
		return w.Now().Format(time.RFC3339)
	}
	return time.Now().Format(time.RFC3339)
}

func failed(err error) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		yield("", err)
	}
}
