package research

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reflectNow = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func TestReflector_StreamsThinkingAndParsesCalls(t *testing.T) {
	model := &ScriptedModel{Replies: [][]string{{
		"<thi", "nk>the article lacks pricing data and", " needs numbers</th", "ink>",
		`[{"tool":"web_search","parameters":["pricing 2025"]}]`,
	}}}
	r := NewReflector(model, RetryPolicy{MaxAttempts: 2}, 5, nil)

	var thoughts []string
	d, err := r.Start(context.Background(), "topic", "summary", "results", reflectNow, func(s string) error {
		thoughts = append(thoughts, s)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, d.Calls, 1)
	assert.Equal(t, WebSearch{Terms: []string{"pricing 2025"}}, d.Calls[0])

	assert.Equal(t, []string{"the article lacks pricing data and", " needs numbers"}, thoughts)
	assert.True(t, model.Streamed[0])
	// system, user, assistant
	assert.Equal(t, 3, r.Turns())
}

func TestReflector_CorrectiveRetry(t *testing.T) {
	model := Script("I am not sure what to search.", "[]")
	r := NewReflector(model, RetryPolicy{MaxAttempts: 2}, 10, nil)

	d, err := r.Start(context.Background(), "topic", "s", "r", reflectNow, nil)
	require.NoError(t, err)
	assert.True(t, d.NoGaps)

	require.Equal(t, 2, model.Calls())
	assert.False(t, model.Streamed[1], "retry is not streamed")
	assert.Contains(t, model.LastText(1), "could not be parsed")
}

func TestReflector_TwoBadAnswersFail(t *testing.T) {
	model := Script("nonsense", "<think>hmm</think>still nonsense")
	r := NewReflector(model, RetryPolicy{MaxAttempts: 2}, 10, nil)

	_, err := r.Start(context.Background(), "topic", "s", "r", reflectNow, nil)
	require.Error(t, err)

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "still nonsense", pe.Raw)
	assert.Equal(t, 2, model.Calls())
}

func TestReflector_ProviderErrorIsNotRetried(t *testing.T) {
	model := &ScriptedModel{Errs: []error{errors.New("503")}}
	r := NewReflector(model, RetryPolicy{MaxAttempts: 2}, 10, nil)

	_, err := r.Start(context.Background(), "topic", "s", "r", reflectNow, nil)
	require.Error(t, err)
	assert.False(t, isParseError(err))
	assert.Equal(t, 1, model.Calls())
}

func TestReflector_StopFromThoughtCallback(t *testing.T) {
	model := &ScriptedModel{Replies: [][]string{{"<think>one two three four five six</think>", "[]"}}}
	r := NewReflector(model, RetryPolicy{MaxAttempts: 2}, 2, nil)

	_, err := r.Start(context.Background(), "topic", "s", "r", reflectNow, func(string) error { return errStopped })
	assert.ErrorIs(t, err, errStopped)
}

func TestReflector_KeepsConversation(t *testing.T) {
	model := Script(`[{"tool":"scrape","parameters":["sub","https://x"]}]`, "NO_GAPS_FOUND")
	r := NewReflector(model, RetryPolicy{MaxAttempts: 2}, 10, nil)

	_, err := r.Start(context.Background(), "topic", "s", "r", reflectNow, nil)
	require.NoError(t, err)
	d, err := r.Send(context.Background(), "more findings", nil)
	require.NoError(t, err)
	assert.True(t, d.NoGaps)

	assert.Len(t, model.Messages[1], 4, "second turn carries the whole conversation")
	assert.Equal(t, "more findings", model.LastText(1))
}
