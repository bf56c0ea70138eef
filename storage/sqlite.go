// Package storage provides SQLite persistence for subscriptions and usage.
//
// Information Hiding:
// - SQLite connection management hidden behind methods
// - Schema details encapsulated
// - Thread-safe via sql.DB's built-in connection pooling

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Subscription states.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Subscription is a user's billing subscription.
type Subscription struct {
	UserID      string
	Status      string
	ActivatedAt time.Time
}

// Active reports whether usage may be recorded against the subscription.
func (s Subscription) Active() bool {
	return s.Status == StatusActive
}

// UsageRecord is one recorded billable unit.
type UsageRecord struct {
	ID         string
	UserID     string
	UsageType  string
	Quantity   int
	RecordedAt time.Time
}

// SqliteStorage keeps subscriptions and usage records in SQLite.
// Thread-safe: sql.DB handles connection pooling and concurrent access.
type SqliteStorage struct {
	db *sql.DB
}

// OpenSqlite opens or creates a SQLite database at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteStorage, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	storage := &SqliteStorage{db: db}
	if err := storage.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// NewSqliteInMemory creates an in-memory database (useful for testing).
func NewSqliteInMemory() (*SqliteStorage, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	storage := &SqliteStorage{db: db}
	if err := storage.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// Close closes the database connection.
func (s *SqliteStorage) Close() error {
	return s.db.Close()
}

func (s *SqliteStorage) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS subscriptions (
			user_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			activated_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS usage_records (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			usage_type TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			recorded_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_usage_user
		ON usage_records(user_id, usage_type, recorded_at DESC);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// ActivateSubscription marks the user's subscription active, creating it
// if needed.
func (s *SqliteStorage) ActivateSubscription(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (user_id, status, activated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET status = excluded.status, activated_at = excluded.activated_at`,
		userID, StatusActive, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to activate subscription: %w", err)
	}
	return nil
}

// DeactivateSubscription marks the user's subscription inactive.
// Unknown users are ignored.
func (s *SqliteStorage) DeactivateSubscription(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE subscriptions SET status = ? WHERE user_id = ?",
		StatusInactive, userID)
	if err != nil {
		return fmt.Errorf("failed to deactivate subscription: %w", err)
	}
	return nil
}

// Subscription returns the user's subscription, or nil if there is none.
func (s *SqliteStorage) Subscription(ctx context.Context, userID string) (*Subscription, error) {
	var sub Subscription
	var activatedAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT user_id, status, activated_at FROM subscriptions WHERE user_id = ?",
		userID).Scan(&sub.UserID, &sub.Status, &activatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query subscription: %w", err)
	}
	sub.ActivatedAt = time.UnixMilli(activatedAt)
	return &sub, nil
}

// RecordUsage stores one usage record if the user has an active
// subscription. It returns nil without error when there is none.
func (s *SqliteStorage) RecordUsage(ctx context.Context, userID, usageType string, quantity int) (*UsageRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	// defer tx.Rollback() is safe even after Commit() - it becomes a no-op
	defer func() { _ = tx.Rollback() }()

	var status string
	err = tx.QueryRowContext(ctx,
		"SELECT status FROM subscriptions WHERE user_id = ?", userID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && status != StatusActive) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query subscription: %w", err)
	}

	record := &UsageRecord{
		ID:         uuid.New().String(),
		UserID:     userID,
		UsageType:  usageType,
		Quantity:   quantity,
		RecordedAt: time.Now(),
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO usage_records (id, user_id, usage_type, quantity, recorded_at) VALUES (?, ?, ?, ?, ?)",
		record.ID, record.UserID, record.UsageType, record.Quantity, record.RecordedAt.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to insert usage record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return record, nil
}

// UsageTotal sums the recorded quantity of one usage type for a user.
func (s *SqliteStorage) UsageTotal(ctx context.Context, userID, usageType string) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(quantity), 0) FROM usage_records WHERE user_id = ? AND usage_type = ?",
		userID, usageType).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum usage: %w", err)
	}
	return total, nil
}

// ListUsage returns the user's most recent usage records, newest first.
func (s *SqliteStorage) ListUsage(ctx context.Context, userID string, limit int) ([]UsageRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, usage_type, quantity, recorded_at
		FROM usage_records WHERE user_id = ?
		ORDER BY recorded_at DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage: %w", err)
	}
	defer rows.Close()

	records := []UsageRecord{} // Start with empty slice, not nil
	for rows.Next() {
		var r UsageRecord
		var recordedAt int64
		if err := rows.Scan(&r.ID, &r.UserID, &r.UsageType, &r.Quantity, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		r.RecordedAt = time.UnixMilli(recordedAt)
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage records: %w", err)
	}
	return records, nil
}
