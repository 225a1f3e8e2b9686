package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mikeboe/research-writer/pkg/research"
)

func (db *PostgresDB) CreateSession(ctx context.Context, userID string) (research.ChatSession, error) {
	s := research.ChatSession{ID: uuid.NewString(), UserID: userID}
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO chat_sessions (chat_id, user_id) VALUES ($1, $2)
		RETURNING created_at, updated_at`, s.ID, userID).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return research.ChatSession{}, fmt.Errorf("failed to create chat session: %w", err)
	}
	return s, nil
}

func (db *PostgresDB) AppendChatMessage(ctx context.Context, chatID, query, response string) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO chat_messages (chat_id, user_query, ai_response) VALUES ($1, $2, $3)`,
		chatID, query, response); err != nil {
		return fmt.Errorf("failed to append chat message: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE chat_sessions SET updated_at = NOW() WHERE chat_id = $1`, chatID); err != nil {
		return fmt.Errorf("failed to touch chat session: %w", err)
	}
	return tx.Commit(ctx)
}

func (db *PostgresDB) ChatHistory(ctx context.Context, chatID string) ([]research.HistoryTurn, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT user_query, ai_response, created_at
		FROM chat_messages WHERE chat_id = $1
		ORDER BY created_at ASC`, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat history: %w", err)
	}
	defer rows.Close()

	var turns []research.HistoryTurn
	for rows.Next() {
		var t research.HistoryTurn
		if err := rows.Scan(&t.Query, &t.Response, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}
