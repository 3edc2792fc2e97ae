// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Common errors for repository operations.
var (
	ErrDayNotFound = errors.New("day record not found")
)

// ChannelDayChanged is the NOTIFY channel carrying day change events.
const ChannelDayChanged = "badminton_day_changed"

// DayRow is one stored day document.
type DayRow struct {
	ID        string
	Data      []byte
	UpdatedAt time.Time
}

// Notification is the change event published alongside each upsert.
// Origin and Seq identify the writing process and its write counter so
// subscribers can recognize their own writes coming back.
type Notification struct {
	ID     string `json:"id"`
	Origin string `json:"origin"`
	Seq    int64  `json:"seq"`
}

// DayRepository persists day documents in the badminton_days table.
// The whole document is one jsonb value; concurrent writers resolve by
// last write wins on the row.
type DayRepository struct {
	pool *pgxpool.Pool
}

// NewDayRepository creates a new DayRepository instance.
func NewDayRepository(pool *pgxpool.Pool) *DayRepository {
	return &DayRepository{pool: pool}
}

// Get retrieves the document stored under key.
// Returns ErrDayNotFound if no row exists.
func (r *DayRepository) Get(ctx context.Context, key string) (*DayRow, error) {
	const query = `
		SELECT id, data, updated_at
		FROM badminton_days
		WHERE id = $1
	`

	var row DayRow
	err := r.pool.QueryRow(ctx, query, key).Scan(&row.ID, &row.Data, &row.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDayNotFound
		}
		return nil, fmt.Errorf("failed to get day %s: %w", key, err)
	}

	return &row, nil
}

// Upsert writes the document under key and publishes a change
// notification tagged with the writer's origin token. Both happen in
// one transaction so the notification fires only if the write commits.
func (r *DayRepository) Upsert(ctx context.Context, key string, data []byte, origin string, seq int64) error {
	payload, err := json.Marshal(Notification{ID: key, Origin: origin, Seq: seq})
	if err != nil {
		return fmt.Errorf("failed to encode change notification: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	const query = `
		INSERT INTO badminton_days (id, data, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()
	`
	if _, err := tx.Exec(ctx, query, key, data); err != nil {
		return fmt.Errorf("failed to upsert day %s: %w", key, err)
	}

	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, ChannelDayChanged, string(payload)); err != nil {
		return fmt.Errorf("failed to notify day change: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit upsert: %w", err)
	}
	return nil
}

// Delete removes the document stored under key.
// Returns ErrDayNotFound if no row exists.
func (r *DayRepository) Delete(ctx context.Context, key string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM badminton_days WHERE id = $1`, key)
	if err != nil {
		return fmt.Errorf("failed to delete day %s: %w", key, err)
	}
	if result.RowsAffected() == 0 {
		return ErrDayNotFound
	}
	return nil
}

// ListKeys returns the stored day keys, most recent first.
func (r *DayRepository) ListKeys(ctx context.Context, limit int) ([]string, error) {
	const query = `
		SELECT id
		FROM badminton_days
		ORDER BY id DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list days: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan day key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating day keys: %w", err)
	}

	return keys, nil
}
