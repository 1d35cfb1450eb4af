/*
Package store provides PostgreSQL-backed persistence for message records.

A message record pairs one inbound user message with its eventually filled
generated response. Records are created when a validated message arrives and
mutated exactly once, when the generation result comes back; the response
column is never rewritten after that.
*/
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chatrelay/internal/pkg/randx"
)

// MessageRecord is one persisted user message and its generated response.
// BotResponse is nil until the generation result has been stored.
type MessageRecord struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	UserMessage string    `json:"userMessage"`
	BotResponse *string   `json:"botResponse"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ErrResponseAlreadySet is returned when an update targets a record whose
// response column is already filled, or a record that does not exist.
var ErrResponseAlreadySet = errors.New("message record response already set or record missing")

// Messages is the repository for message records.
type Messages struct {
	pool *pgxpool.Pool
}

// NewMessages constructs the repository on top of an initialized connection pool.
func NewMessages(pool *pgxpool.Pool) *Messages {
	return &Messages{pool: pool}
}

// CreateMessage persists a new record with the given user message and no
// response, returning the generated record ID.
func (m *Messages) CreateMessage(ctx context.Context, userID, userMessage string) (string, error) {
	id := randx.MessageID()

	_, err := m.pool.Exec(ctx,
		`INSERT INTO chat_messages (id, user_id, user_message) VALUES ($1, $2, $3)`,
		id, userID, userMessage,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert message record: %w", err)
	}

	return id, nil
}

// SetResponse fills the record's response column. The WHERE clause only
// matches a NULL response, which enforces the write-once invariant at the
// database rather than trusting callers.
func (m *Messages) SetResponse(ctx context.Context, id, response string) error {
	tag, err := m.pool.Exec(ctx,
		`UPDATE chat_messages SET bot_response = $2 WHERE id = $1 AND bot_response IS NULL`,
		id, response,
	)
	if err != nil {
		return fmt.Errorf("failed to update message record %s: %w", id, err)
	}

	if tag.RowsAffected() == 0 {
		return ErrResponseAlreadySet
	}

	return nil
}

// ListByUser returns the most recent records owned by the given identity,
// newest first, capped at limit.
func (m *Messages) ListByUser(ctx context.Context, userID string, limit int) ([]MessageRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := m.pool.Query(ctx,
		`SELECT id, user_id, user_message, bot_response, created_at
		 FROM chat_messages
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query message records: %w", err)
	}
	defer rows.Close()

	records := make([]MessageRecord, 0, limit)
	for rows.Next() {
		var rec MessageRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.UserMessage, &rec.BotResponse, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read message records: %w", err)
	}

	return records, nil
}

// GetByID fetches one record, returning pgx.ErrNoRows when it does not exist.
func (m *Messages) GetByID(ctx context.Context, id string) (MessageRecord, error) {
	var rec MessageRecord

	err := m.pool.QueryRow(ctx,
		`SELECT id, user_id, user_message, bot_response, created_at
		 FROM chat_messages WHERE id = $1`,
		id,
	).Scan(&rec.ID, &rec.UserID, &rec.UserMessage, &rec.BotResponse, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MessageRecord{}, err
		}
		return MessageRecord{}, fmt.Errorf("failed to fetch message record %s: %w", id, err)
	}

	return rec, nil
}
