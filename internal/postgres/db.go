package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 8
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// version comes from one sequence shared by every parcel, so a re-created id always
// gets a higher change seq than its tombstone.
const schema = `
CREATE SEQUENCE IF NOT EXISTS parcel_change_seq;
CREATE TABLE IF NOT EXISTS parcels (
	id              TEXT PRIMARY KEY,
	tracking_number TEXT NOT NULL DEFAULT '',
	description     TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'IN_AGENCY',
	order_id        BIGINT NOT NULL DEFAULT 0,
	weight          DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (weight >= 0),
	agency_ids      TEXT[] NOT NULL DEFAULT '{}',
	version         BIGINT NOT NULL DEFAULT nextval('parcel_change_seq'),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
ALTER TABLE parcels ALTER COLUMN version SET DEFAULT nextval('parcel_change_seq');
CREATE INDEX IF NOT EXISTS parcels_updated_at_idx ON parcels (updated_at DESC, id);
CREATE INDEX IF NOT EXISTS parcels_status_idx ON parcels (status);
CREATE INDEX IF NOT EXISTS parcels_order_id_idx ON parcels (order_id);
`

// Migrate creates the parcel tables if they are missing.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
