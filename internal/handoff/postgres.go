package handoff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists transcript records in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmt := `CREATE TABLE IF NOT EXISTS interview_transcripts (
		session_id TEXT PRIMARY KEY,
		topic TEXT NOT NULL,
		transcript JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`
	if _, err := pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("init handoff schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, sessionID string, rec Record) error {
	transcript, err := json.Marshal(rec.Transcript)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO interview_transcripts (session_id, topic, transcript, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (session_id) DO UPDATE SET topic = $2, transcript = $3, created_at = $4`,
		sessionID, rec.Topic, transcript, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	return nil
}

func (s *PostgresStore) Consume(ctx context.Context, sessionID string) (Record, error) {
	var (
		rec Record
		raw []byte
	)
	err := s.pool.QueryRow(ctx,
		`DELETE FROM interview_transcripts WHERE session_id = $1
		 RETURNING topic, transcript, created_at`,
		sessionID,
	).Scan(&rec.Topic, &raw, &rec.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("consume transcript: %w", err)
	}
	if err := json.Unmarshal(raw, &rec.Transcript); err != nil {
		return Record{}, fmt.Errorf("decode transcript: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
