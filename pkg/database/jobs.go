package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mikeboe/research-writer/pkg/research"
)

const jobColumns = `id, kind, topic, COALESCE(region, ''), COALESCE(chat_id, ''), status, artifact, COALESCE(error, ''), created_at, updated_at`

// CreateJob stores the job and its pending marker in one transaction.
func (db *PostgresDB) CreateJob(ctx context.Context, job research.Job) (research.Job, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return research.Job{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		INSERT INTO generation_jobs (id, kind, topic, region, chat_id, status)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6)
		RETURNING `+jobColumns,
		job.ID, job.Kind, job.Topic, job.Region, job.ChatID, research.StatusPending)
	created, err := scanJob(row)
	if err != nil {
		return research.Job{}, fmt.Errorf("failed to create job: %w", err)
	}

	if _, err := tx.Exec(ctx, `INSERT INTO pending_jobs (job_id, topic) VALUES ($1, $2)`, created.ID, created.Topic); err != nil {
		return research.Job{}, fmt.Errorf("failed to mark job pending: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return research.Job{}, fmt.Errorf("failed to commit job: %w", err)
	}
	return created, nil
}

func (db *PostgresDB) GetJob(ctx context.Context, id string) (research.Job, error) {
	row := db.Pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM generation_jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return research.Job{}, research.ErrJobNotFound
	}
	if err != nil {
		return research.Job{}, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// ClaimJob flips pending to generating with a single conditional update.
func (db *PostgresDB) ClaimJob(ctx context.Context, id string) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE generation_jobs SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3`,
		id, research.StatusGenerating, research.StatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to claim job: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if _, err := db.GetJob(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (db *PostgresDB) FinishJob(ctx context.Context, id string, status research.JobStatus, artifact *research.Artifact, errMsg string) error {
	var artifactJSON []byte
	if artifact != nil {
		var err error
		if artifactJSON, err = json.Marshal(artifact); err != nil {
			return fmt.Errorf("failed to marshal artifact: %w", err)
		}
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE generation_jobs SET status = $2, artifact = $3, error = NULLIF($4, ''), updated_at = NOW()
		WHERE id = $1`,
		id, status, artifactJSON, errMsg)
	if err != nil {
		return fmt.Errorf("failed to finish job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return research.ErrJobNotFound
	}
	if _, err := tx.Exec(ctx, `DELETE FROM pending_jobs WHERE job_id = $1`, id); err != nil {
		return fmt.Errorf("failed to clear pending marker: %w", err)
	}
	return tx.Commit(ctx)
}

// SaveState upserts the checkpoint. Rows already marked completed are left
// untouched.
func (db *PostgresDB) SaveState(ctx context.Context, st research.GenerationState) error {
	payload := []byte(st.LastEvent.Payload)
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO generation_states
			(job_id, stage, iteration, is_completed, last_event_type, last_event_payload, partial_content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (job_id) DO UPDATE SET
			stage = EXCLUDED.stage,
			iteration = EXCLUDED.iteration,
			is_completed = EXCLUDED.is_completed,
			last_event_type = EXCLUDED.last_event_type,
			last_event_payload = EXCLUDED.last_event_payload,
			partial_content = EXCLUDED.partial_content,
			updated_at = NOW()
		WHERE NOT generation_states.is_completed`,
		st.JobID, st.Stage, st.Iteration, st.IsCompleted, st.LastEvent.Type, string(payload), st.PartialContent)
	if err != nil {
		return fmt.Errorf("failed to save generation state: %w", err)
	}
	return nil
}

func (db *PostgresDB) GetState(ctx context.Context, jobID string) (research.GenerationState, error) {
	var (
		st      research.GenerationState
		payload []byte
	)
	err := db.Pool.QueryRow(ctx, `
		SELECT job_id, stage, iteration, is_completed, COALESCE(last_event_type, ''), last_event_payload,
			COALESCE(partial_content, ''), created_at, updated_at
		FROM generation_states WHERE job_id = $1`, jobID).Scan(
		&st.JobID, &st.Stage, &st.Iteration, &st.IsCompleted, &st.LastEvent.Type, &payload,
		&st.PartialContent, &st.CreatedAt, &st.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return research.GenerationState{}, research.ErrJobNotFound
	}
	if err != nil {
		return research.GenerationState{}, fmt.Errorf("failed to get generation state: %w", err)
	}
	st.LastEvent.Payload = payload
	return st, nil
}

func scanJob(row pgx.Row) (research.Job, error) {
	var (
		job      research.Job
		artifact []byte
	)
	if err := row.Scan(&job.ID, &job.Kind, &job.Topic, &job.Region, &job.ChatID, &job.Status,
		&artifact, &job.Error, &job.CreatedAt, &job.UpdatedAt); err != nil {
		return research.Job{}, err
	}
	if len(artifact) > 0 {
		job.Artifact = &research.Artifact{}
		if err := json.Unmarshal(artifact, job.Artifact); err != nil {
			return research.Job{}, fmt.Errorf("failed to decode artifact: %w", err)
		}
	}
	return job, nil
}
