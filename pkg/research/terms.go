package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/tmc/langchaingo/llms"
)

const (
	freshTermLimit    = 2
	followUpTermLimit = 3
)

// TermGenerator breaks a topic or query down into search terms.
type TermGenerator struct {
	Model llms.Model
	Retry RetryPolicy
	Now   func() time.Time
}

// Generate returns the ordered search terms for query. With no history the
// query itself is the first term. With history the model is asked for
// follow-up terms only.
func (g TermGenerator) Generate(ctx context.Context, query string, history []HistoryTurn) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}

	followUp := len(history) > 0
	limit := freshTermLimit
	if followUp {
		limit = followUpTermLimit
	}

	prompt, err := render(breakdownPrompt, map[string]any{
		"query":        query,
		"history":      formatHistory(history),
		"max_terms":    limit,
		"current_date": g.now().Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	msgs := []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)}

	var terms []string
	err = g.Retry.Do(ctx, func(attempt int) error {
		text, err := generate(ctx, g.Model, msgs)
		if err != nil {
			return err
		}
		terms = parseTerms(text, limit)
		if len(terms) == 0 {
			return ErrNoSearchTerms
		}
		return nil
	})
	if err != nil && !errors.Is(err, ErrNoSearchTerms) {
		return nil, fmt.Errorf("term generation failed: %w", err)
	}

	if followUp {
		if len(terms) == 0 {
			return nil, ErrNoSearchTerms
		}
		return terms, nil
	}
	return dedupeTerms(append([]string{query}, terms...)), nil
}

func (g TermGenerator) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

// parseTerms reads one term per line, dropping list markup, quotes, blank
// lines and the no-gaps sentinel.
func parseTerms(text string, limit int) []string {
	var out []string
	for _, line := range strings.Split(stripThinking(text), "\n") {
		term := cleanTerm(line)
		if term == "" || term == NoGapsSentinel {
			continue
		}
		out = append(out, term)
	}
	out = dedupeTerms(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func cleanTerm(line string) string {
	s := strings.TrimSpace(line)
	s = strings.TrimLeft(s, "-*•· \t")
	// numbered lists: "1. term" or "2) term"
	if i := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) }); i > 0 && i+1 < len(s) &&
		(s[i] == '.' || s[i] == ')') && s[i+1] == ' ' {
		s = s[i+1:]
	}
	return strings.Trim(strings.TrimSpace(s), "\"'`")
}

func dedupeTerms(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}
