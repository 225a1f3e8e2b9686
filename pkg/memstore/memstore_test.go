package memstore

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/research-writer/pkg/research"
)

func TestClaimJob_OnlyOneWinner(t *testing.T) {
	ctx := context.Background()
	mem := New()
	job, err := mem.CreateJob(ctx, research.Job{ID: "job-1", Topic: "x"})
	require.NoError(t, err)
	require.Equal(t, research.StatusPending, job.Status)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := mem.ClaimJob(ctx, "job-1")
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	got, err := mem.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, research.StatusGenerating, got.Status)
}

func TestGetJob_NotFound(t *testing.T) {
	_, err := New().GetJob(context.Background(), "missing")
	assert.ErrorIs(t, err, research.ErrJobNotFound)
}

func TestFinishJob_ClearsPendingMarker(t *testing.T) {
	ctx := context.Background()
	mem := New()
	_, err := mem.CreateJob(ctx, research.Job{ID: "job-1", Topic: "x"})
	require.NoError(t, err)
	require.True(t, mem.Pending("job-1"))

	require.NoError(t, mem.FinishJob(ctx, "job-1", research.StatusError, nil, "boom"))

	assert.False(t, mem.Pending("job-1"))
	got, err := mem.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, research.StatusError, got.Status)
	assert.Equal(t, "boom", got.Error)
}

func TestSaveState_CompletedIsFinal(t *testing.T) {
	ctx := context.Background()
	mem := New()

	require.NoError(t, mem.SaveState(ctx, research.GenerationState{JobID: "j", Stage: research.StageComplete, IsCompleted: true}))
	require.NoError(t, mem.SaveState(ctx, research.GenerationState{JobID: "j", Stage: research.StageWriting}))

	st, err := mem.GetState(ctx, "j")
	require.NoError(t, err)
	assert.True(t, st.IsCompleted)
	assert.Equal(t, research.StageComplete, st.Stage)
}

func TestChatHistory_OrderedByTime(t *testing.T) {
	ctx := context.Background()
	mem := New()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	mem.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	s, err := mem.CreateSession(ctx, "user-1")
	require.NoError(t, err)
	require.NoError(t, mem.AppendChatMessage(ctx, s.ID, "first", "a"))
	require.NoError(t, mem.AppendChatMessage(ctx, s.ID, "second", "b"))

	turns, err := mem.ChatHistory(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "first", turns[0].Query)
	assert.Equal(t, "second", turns[1].Query)

	assert.Error(t, mem.AppendChatMessage(ctx, "unknown", "q", "r"))
}
