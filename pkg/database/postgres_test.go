package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/research-writer/pkg/research"
)

func testDB(t *testing.T) *PostgresDB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := NewPostgresDB(ctx, url)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.InitSchema(ctx))
	return db
}

func TestPostgres_JobLifecycle(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	job, err := db.CreateJob(ctx, research.Job{ID: uuid.NewString(), Kind: research.KindArticle, Topic: "solar storage"})
	require.NoError(t, err)
	assert.Equal(t, research.StatusPending, job.Status)

	ok, err := db.ClaimJob(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = db.ClaimJob(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, ok, "second claim loses")

	_, err = db.ClaimJob(ctx, uuid.NewString())
	assert.ErrorIs(t, err, research.ErrJobNotFound)

	art := &research.Artifact{Kind: research.KindArticle, Topic: job.Topic, Content: "# Solar", Status: research.ArticleDone}
	require.NoError(t, db.FinishJob(ctx, job.ID, research.StatusComplete, art, ""))

	got, err := db.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, research.StatusComplete, got.Status)
	require.NotNil(t, got.Artifact)
	assert.Equal(t, "# Solar", got.Artifact.Content)

	var pending int
	require.NoError(t, db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM pending_jobs WHERE job_id = $1`, job.ID).Scan(&pending))
	assert.Zero(t, pending)
}

func TestPostgres_CompletedStateIsFinal(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	job, err := db.CreateJob(ctx, research.Job{ID: uuid.NewString(), Kind: research.KindAnswer, Topic: "q"})
	require.NoError(t, err)

	require.NoError(t, db.SaveState(ctx, research.GenerationState{
		JobID: job.ID, Stage: research.StageComplete, IsCompleted: true,
		LastEvent: research.EventRecord{Type: "complete"},
	}))
	require.NoError(t, db.SaveState(ctx, research.GenerationState{
		JobID: job.ID, Stage: research.StageWriting, PartialContent: "late",
	}))

	st, err := db.GetState(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, research.StageComplete, st.Stage)
	assert.True(t, st.IsCompleted)
	assert.Empty(t, st.PartialContent)

	_, err = db.GetState(ctx, uuid.NewString())
	assert.ErrorIs(t, err, research.ErrJobNotFound)
}

func TestPostgres_ChatAndLogs(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	s, err := db.CreateSession(ctx, "user-1")
	require.NoError(t, err)
	require.NoError(t, db.AppendChatMessage(ctx, s.ID, "q1", "a1"))
	require.NoError(t, db.AppendChatMessage(ctx, s.ID, "q2", "a2"))

	turns, err := db.ChatHistory(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "q1", turns[0].Query)

	job, err := db.CreateJob(ctx, research.Job{ID: uuid.NewString(), Kind: research.KindArticle, Topic: "t"})
	require.NoError(t, err)
	require.NoError(t, db.InsertLog(ctx, job.ID, time.Now(), "INFO", "started", []byte(`{"stage":"breakdown"}`)))

	logs, err := db.JobLogs(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "started", logs[0].Message)
	assert.JSONEq(t, `{"stage":"breakdown"}`, string(logs[0].Metadata))
}
