package research

import (
	"context"
	"time"
)

// ChatSession groups the answers of one conversation.
type ChatSession struct {
	ID        string    `json:"chat_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JobStore persists jobs and their generation checkpoints.
type JobStore interface {
	// CreateJob stores a pending job together with its pending marker.
	CreateJob(ctx context.Context, job Job) (Job, error)
	// GetJob returns ErrJobNotFound for unknown ids.
	GetJob(ctx context.Context, id string) (Job, error)
	// ClaimJob moves a job from pending to generating. It reports false when
	// the job was not pending, so only one caller ever runs a job.
	ClaimJob(ctx context.Context, id string) (bool, error)
	// FinishJob stores the terminal status and removes the pending marker.
	FinishJob(ctx context.Context, id string, status JobStatus, artifact *Artifact, errMsg string) error
	// SaveState upserts the checkpoint. A completed checkpoint is never overwritten.
	SaveState(ctx context.Context, state GenerationState) error
	// GetState returns ErrJobNotFound when no checkpoint exists.
	GetState(ctx context.Context, jobID string) (GenerationState, error)
}

// ChatStore persists chat sessions and their messages.
type ChatStore interface {
	CreateSession(ctx context.Context, userID string) (ChatSession, error)
	AppendChatMessage(ctx context.Context, chatID, query, response string) error
	// ChatHistory returns the turns of a session, oldest first.
	ChatHistory(ctx context.Context, chatID string) ([]HistoryTurn, error)
}

type Store interface {
	JobStore
	ChatStore
}

// Lease marks a job as actively running somewhere.
type Lease interface {
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
	Held(ctx context.Context, key string) (bool, error)
}
