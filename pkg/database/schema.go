package database

import (
	"context"
	"fmt"
)

var schema = []struct {
	name  string
	query string
}{
	{"chat_sessions", `
		CREATE TABLE IF NOT EXISTS chat_sessions (
			chat_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`},
	{"chat_messages", `
		CREATE TABLE IF NOT EXISTS chat_messages (
			message_id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			chat_id TEXT NOT NULL REFERENCES chat_sessions(chat_id) ON DELETE CASCADE,
			user_query TEXT NOT NULL,
			ai_response TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`},
	{"generation_jobs", `
		CREATE TABLE IF NOT EXISTS generation_jobs (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			topic TEXT NOT NULL,
			region TEXT,
			chat_id TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			artifact JSONB,
			error TEXT,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`},
	{"pending_jobs", `
		CREATE TABLE IF NOT EXISTS pending_jobs (
			job_id TEXT PRIMARY KEY REFERENCES generation_jobs(id) ON DELETE CASCADE,
			topic TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`},
	{"generation_states", `
		CREATE TABLE IF NOT EXISTS generation_states (
			job_id TEXT PRIMARY KEY REFERENCES generation_jobs(id) ON DELETE CASCADE,
			stage TEXT NOT NULL,
			iteration INTEGER NOT NULL DEFAULT 0,
			is_completed BOOLEAN NOT NULL DEFAULT FALSE,
			last_event_type TEXT,
			last_event_payload JSONB,
			partial_content TEXT,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`},
	{"generation_logs", `
		CREATE TABLE IF NOT EXISTS generation_logs (
			id BIGSERIAL PRIMARY KEY,
			job_id TEXT NOT NULL REFERENCES generation_jobs(id) ON DELETE CASCADE,
			timestamp TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			level TEXT NOT NULL,
			message TEXT NOT NULL,
			metadata JSONB
		)`},
	{"idx_chat_messages_chat_id", "CREATE INDEX IF NOT EXISTS idx_chat_messages_chat_id ON chat_messages(chat_id, created_at)"},
	{"idx_generation_jobs_created_at", "CREATE INDEX IF NOT EXISTS idx_generation_jobs_created_at ON generation_jobs(created_at DESC)"},
	{"idx_generation_logs_job_id", "CREATE INDEX IF NOT EXISTS idx_generation_logs_job_id ON generation_logs(job_id)"},
}

// InitSchema creates the tables and indexes if they do not exist.
func (db *PostgresDB) InitSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.Pool.Exec(ctx, stmt.query); err != nil {
			return fmt.Errorf("failed to create %s: %w", stmt.name, err)
		}
	}
	return nil
}
