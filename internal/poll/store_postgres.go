package poll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pollwatch/pollwatch/internal/domain"
)

const pollsSchema = `
CREATE TABLE IF NOT EXISTS polls (
	id         TEXT PRIMARY KEY,
	record     JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore keeps one row per poll with the full record as JSONB.
// The upsert makes Save a single atomic statement.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if _, err := pool.Exec(ctx, pollsSchema); err != nil {
		return nil, fmt.Errorf("create polls table: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Save(ctx context.Context, p *domain.Poll) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode poll %s: %w", p.ID, err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO polls (id, record, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET record = EXCLUDED.record, updated_at = now()`,
		p.ID, data)
	if err != nil {
		return fmt.Errorf("save poll %s: %w", p.ID, err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, id string) (*domain.Poll, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT record FROM polls WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPollNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load poll %s: %w", id, err)
	}

	var p domain.Poll
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode poll %s: %w", id, err)
	}
	return &p, nil
}

func (s *PostgresStore) LoadAll(ctx context.Context) (map[string]*domain.Poll, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, record FROM polls`)
	if err != nil {
		return nil, fmt.Errorf("list polls: %w", err)
	}
	defer rows.Close()

	polls := make(map[string]*domain.Poll)
	for rows.Next() {
		var (
			id   string
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scan poll row: %w", err)
		}
		var p domain.Poll
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode poll %s: %w", id, err)
		}
		polls[id] = &p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate poll rows: %w", err)
	}
	return polls, nil
}
