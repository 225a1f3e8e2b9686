package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

type LogEntry struct {
	ID        int64           `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
}

func (db *PostgresDB) InsertLog(ctx context.Context, jobID string, ts time.Time, level, message string, metadata []byte) error {
	if len(metadata) == 0 {
		metadata = []byte("{}")
	}
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO generation_logs (job_id, timestamp, level, message, metadata)
		VALUES ($1, $2, $3, $4, $5)`,
		jobID, ts, level, message, string(metadata))
	if err != nil {
		return fmt.Errorf("failed to insert log: %w", err)
	}
	return nil
}

func (db *PostgresDB) JobLogs(ctx context.Context, jobID string) ([]LogEntry, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, timestamp, level, message, COALESCE(metadata, '{}'::jsonb)
		FROM generation_logs
		WHERE job_id = $1
		ORDER BY id ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs: %w", err)
	}
	defer rows.Close()

	var logs []LogEntry
	for rows.Next() {
		var (
			l    LogEntry
			meta []byte
		)
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Level, &l.Message, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan log: %w", err)
		}
		l.Metadata = meta
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
