package research

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
)

// Reflector runs the multi-turn reflection conversation of one pipeline run.
// It is not safe for concurrent use and must not be shared between runs.
type Reflector struct {
	model      llms.Model
	retry      RetryPolicy
	flushWords int
	logger     *slog.Logger
	messages   []llms.MessageContent
}

func NewReflector(model llms.Model, retry RetryPolicy, flushWords int, logger *slog.Logger) *Reflector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reflector{
		model:      model,
		retry:      retry.WithRetryIf(isParseError),
		flushWords: flushWords,
		logger:     logger,
	}
}

// Start resets the conversation and runs the first reflection turn.
func (r *Reflector) Start(ctx context.Context, topic, summary, results string, now time.Time, onThought func(string) error) (Decision, error) {
	system, err := render(reflectSystemPrompt, map[string]any{
		"topic":        topic,
		"sentinel":     NoGapsSentinel,
		"current_date": now.Format(time.RFC3339),
	})
	if err != nil {
		return Decision{}, err
	}
	r.messages = []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeSystem, system)}

	input, err := reflectionInput(summary, results)
	if err != nil {
		return Decision{}, err
	}
	return r.Send(ctx, input, onThought)
}

// Send appends input as a user turn and returns the parsed decision. The
// first attempt is streamed and its thinking is passed to onThought. An
// unparsable answer gets one corrective, non-streamed retry; a second failure
// returns *ParseError.
func (r *Reflector) Send(ctx context.Context, input string, onThought func(string) error) (Decision, error) {
	r.messages = append(r.messages, llms.TextParts(llms.ChatMessageTypeHuman, input))

	var decision Decision
	err := r.retry.Do(ctx, func(attempt int) error {
		var (
			text string
			err  error
		)
		if attempt == 0 {
			text, err = r.streamTurn(ctx, onThought)
		} else {
			r.logger.Warn("Reflection answer unparsable, retrying", "attempt", attempt+1)
			r.messages = append(r.messages, llms.TextParts(llms.ChatMessageTypeHuman, correctiveMessage))
			var raw string
			raw, err = generate(ctx, r.model, r.messages)
			text = stripThinking(raw)
		}
		if err != nil {
			return err
		}

		r.messages = append(r.messages, llms.TextParts(llms.ChatMessageTypeAI, text))
		decision, err = ParseToolCalls(text)
		return err
	})
	if err != nil {
		return Decision{}, err
	}

	if decision.Truncated {
		r.logger.Warn("Tool call parameters truncated", "limit", maxToolParams)
	}
	r.logger.Info("Reflection decided", "no_gaps", decision.NoGaps, "calls", len(decision.Calls))
	return decision, nil
}

// Turns returns how many messages the conversation holds.
func (r *Reflector) Turns() int { return len(r.messages) }

func (r *Reflector) streamTurn(ctx context.Context, onThought func(string) error) (string, error) {
	scanner := NewThinkScanner(r.flushWords)
	var answer strings.Builder

	handle := func(segs []Segment) error {
		for _, seg := range segs {
			if seg.Kind == SegmentAnswer {
				answer.WriteString(seg.Text)
				continue
			}
			if onThought == nil || strings.TrimSpace(seg.Text) == "" {
				continue
			}
			if err := onThought(seg.Text); err != nil {
				return err
			}
		}
		return nil
	}

	for chunk, err := range Stream(ctx, r.model, r.messages) {
		if err != nil {
			return "", err
		}
		if err := handle(scanner.Feed(chunk)); err != nil {
			return "", err
		}
	}
	if err := handle(scanner.Close()); err != nil {
		return "", err
	}
	return strings.TrimSpace(answer.String()), nil
}

func reflectionInput(summary, results string) (string, error) {
	return render(reflectInputPrompt, map[string]any{"summary": summary, "results": results})
}
