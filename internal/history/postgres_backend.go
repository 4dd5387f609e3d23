package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const createHistoryTable = `
CREATE TABLE IF NOT EXISTS character_history (
	character_key TEXT PRIMARY KEY,
	class         TEXT NOT NULL DEFAULT '',
	realm         TEXT NOT NULL DEFAULT '',
	snapshots     JSONB NOT NULL DEFAULT '[]'::jsonb,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const upsertCharacter = `
INSERT INTO character_history (character_key, class, realm, snapshots, updated_at)
VALUES ($1, $2, $3, $4::jsonb, now())
ON CONFLICT (character_key) DO UPDATE
SET class = EXCLUDED.class,
    realm = EXCLUDED.realm,
    snapshots = EXCLUDED.snapshots,
    updated_at = now()
WHERE character_history.snapshots IS DISTINCT FROM EXCLUDED.snapshots
   OR character_history.class IS DISTINCT FROM EXCLUDED.class`

// PostgresBackend keeps one row per character with its snapshots as JSONB.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend connects and ensures the schema exists.
func NewPostgresBackend(ctx context.Context, databaseURL string) (*PostgresBackend, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect PostgreSQL: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping PostgreSQL: %w", err)
	}

	if _, err := pool.Exec(ctx, createHistoryTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure history schema: %w", err)
	}

	log.Info().Msg("Connected to PostgreSQL")
	return &PostgresBackend{pool: pool}, nil
}

func (b *PostgresBackend) Load(ctx context.Context) (map[string]*Character, error) {
	rows, err := b.pool.Query(ctx, `SELECT character_key, class, realm, snapshots FROM character_history`)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	chars := make(map[string]*Character)
	for rows.Next() {
		var (
			c   Character
			raw []byte
		)
		if err := rows.Scan(&c.Character, &c.Class, &c.Realm, &raw); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		if err := json.Unmarshal(raw, &c.Snapshots); err != nil {
			return nil, fmt.Errorf("decode snapshots of %s: %w", c.Character, err)
		}
		chars[c.Character] = &c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}

	return chars, nil
}

// Save upserts every character in one transaction.
func (b *PostgresBackend) Save(ctx context.Context, characters []Character) error {
	batch := &pgx.Batch{}
	for _, c := range characters {
		snaps := c.Snapshots
		if snaps == nil {
			snaps = []Snapshot{}
		}
		data, err := json.Marshal(snaps)
		if err != nil {
			return fmt.Errorf("encode snapshots of %s: %w", c.Character, err)
		}
		batch.Queue(upsertCharacter, c.Character, c.Class, c.Realm, string(data))
	}

	err := pgx.BeginFunc(ctx, b.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("upsert history: %w", err)
	}
	return nil
}

func (b *PostgresBackend) Close() error {
	b.pool.Close()
	return nil
}
