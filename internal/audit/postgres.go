package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/threatforge/gateway/internal/config"
)

// PostgresRecorder implements Recorder using pgx/v5.
type PostgresRecorder struct {
	pool *pgxpool.Pool
}

// NewPostgresRecorder creates a new PostgresRecorder.
func NewPostgresRecorder(pool *pgxpool.Pool) *PostgresRecorder {
	return &PostgresRecorder{pool: pool}
}

// Connect opens a pgx pool against the audit database and verifies it.
func Connect(ctx context.Context, cfg config.AuditConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.MaxIdleConns)
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

func (r *PostgresRecorder) Record(ctx context.Context, e Event) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_events (id, identity, endpoint, class, code, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.Identity, e.Endpoint, e.Class, e.Code, e.Reason, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("record audit event: %w", err)
	}
	return nil
}

// Recent returns the most recent events, newest first.
func (r *PostgresRecorder) Recent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, identity, endpoint, class, code, reason, created_at
		 FROM audit_events ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Identity, &e.Endpoint, &e.Class, &e.Code, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Ping checks database connectivity.
func (r *PostgresRecorder) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

var _ Recorder = (*PostgresRecorder)(nil)
