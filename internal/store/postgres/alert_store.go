package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// AlertStore implements domain.AlertStore on the alert_history table.
type AlertStore struct {
	pool *pgxpool.Pool
}

// NewAlertStore creates a new AlertStore backed by the given connection pool.
func NewAlertStore(pool *pgxpool.Pool) *AlertStore {
	return &AlertStore{pool: pool}
}

const alertSelectCols = `id::text, pair, comparison_id, direction, level, prev_level, spread::text, detected_at`

// Insert stores one escalation.
func (s *AlertStore) Insert(ctx context.Context, rec domain.AlertRecord) error {
	const query = `
		INSERT INTO alert_history (
			id, pair, comparison_id, direction, level, prev_level, spread, detected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8)`

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.Pair, rec.ComparisonID, string(rec.Direction),
		rec.Level.String(), rec.PrevLevel.String(), rec.Spread.String(), rec.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert alert %s: %w", rec.ID, err)
	}
	return nil
}

// ListRecent returns the newest alerts first.
func (s *AlertStore) ListRecent(ctx context.Context, limit int) ([]domain.AlertRecord, error) {
	return s.list(ctx, `SELECT `+alertSelectCols+` FROM alert_history
		ORDER BY detected_at DESC LIMIT $1`, limit)
}

// ListByPair returns the newest alerts of one pair first.
func (s *AlertStore) ListByPair(ctx context.Context, pair string, limit int) ([]domain.AlertRecord, error) {
	return s.list(ctx, `SELECT `+alertSelectCols+` FROM alert_history
		WHERE pair = $2 ORDER BY detected_at DESC LIMIT $1`, limit, pair)
}

// ListBefore returns alerts detected before the cutoff, oldest first.
func (s *AlertStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.AlertRecord, error) {
	return s.list(ctx, `SELECT `+alertSelectCols+` FROM alert_history
		WHERE detected_at < $2 ORDER BY detected_at ASC LIMIT $1`, limit, before)
}

// DeleteBefore removes alerts detected before the cutoff.
func (s *AlertStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM alert_history WHERE detected_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete alerts before %s: %w", before.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

// list runs query with limit as $1 (NULL when limit <= 0, meaning no limit).
func (s *AlertStore) list(ctx context.Context, query string, limit int, args ...any) ([]domain.AlertRecord, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := s.pool.Query(ctx, query, append([]any{lim}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list alerts: %w", err)
	}

	recs, err := pgx.CollectRows(rows, scanAlert)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan alerts: %w", err)
	}
	return recs, nil
}

func scanAlert(row pgx.CollectableRow) (domain.AlertRecord, error) {
	var (
		rec                    domain.AlertRecord
		direction, level, prev string
		spread                 string
	)
	if err := row.Scan(&rec.ID, &rec.Pair, &rec.ComparisonID, &direction, &level, &prev, &spread, &rec.DetectedAt); err != nil {
		return rec, err
	}
	rec.Direction = domain.Direction(direction)

	var err error
	if rec.Level, err = domain.ParseAlertLevel(level); err != nil {
		return rec, err
	}
	if rec.PrevLevel, err = domain.ParseAlertLevel(prev); err != nil {
		return rec, err
	}
	if rec.Spread, err = decimal.NewFromString(spread); err != nil {
		return rec, fmt.Errorf("spread %q: %w", spread, err)
	}
	return rec, nil
}

// Compile-time interface check.
var _ domain.AlertStore = (*AlertStore)(nil)
