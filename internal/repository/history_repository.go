package repository

import (
	"context"
	"strings"
	"time"

	"yieldpilot/internal/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

type HistoryRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewHistoryRepository(pool PgxPool, tracer trace.Tracer) *HistoryRepository {
	return &HistoryRepository{pool: pool, tracer: tracer}
}

func (r *HistoryRepository) RunMigrations(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS rebalance_history (
			id                TEXT PRIMARY KEY,
			user_id           TEXT NOT NULL,
			recommendation_id TEXT NOT NULL,
			shift_id          TEXT NOT NULL,
			from_protocol     TEXT,
			to_protocol       TEXT NOT NULL,
			asset             TEXT NOT NULL,
			amount            TEXT NOT NULL,
			status            TEXT NOT NULL DEFAULT 'pending',
			month_bucket      TEXT NOT NULL,
			created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_rebalance_history_user_month
			ON rebalance_history (user_id, month_bucket);
		CREATE INDEX IF NOT EXISTS idx_rebalance_history_shift
			ON rebalance_history (shift_id);
	`)
	return err
}

// Insert appends one audit entry. History is append-only; only the status
// field is touched afterwards, by UpdateStatusByShiftID.
func (r *HistoryRepository) Insert(ctx context.Context, entry domain.RebalanceHistoryEntry) (*domain.RebalanceHistoryEntry, error) {
	_, span := r.tracer.Start(ctx, "history-repo.insert")
	defer span.End()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO rebalance_history
		     (id, user_id, recommendation_id, shift_id, from_protocol, to_protocol, asset, amount, status, month_bucket, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		entry.ID,
		entry.UserID,
		entry.RecommendationID,
		entry.ShiftID,
		entry.FromProtocol,
		entry.ToProtocol,
		entry.AssetSymbol,
		entry.Amount,
		entry.Status,
		entry.MonthBucket,
		entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// CountForMonth counts the user's executions in one month bucket (YYYY-MM-01).
// Drives the starter-tier quota.
func (r *HistoryRepository) CountForMonth(ctx context.Context, userID, monthBucket string) (int, error) {
	_, span := r.tracer.Start(ctx, "history-repo.count-for-month")
	defer span.End()

	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM rebalance_history WHERE user_id = $1 AND month_bucket = $2`,
		userID, monthBucket,
	).Scan(&count)
	return count, err
}

func (r *HistoryRepository) UpdateStatusByShiftID(ctx context.Context, shiftID, status string) error {
	_, span := r.tracer.Start(ctx, "history-repo.update-status-by-shift")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`UPDATE rebalance_history SET status = $1 WHERE shift_id = $2`,
		strings.ToLower(status), shiftID,
	)
	return err
}

// ListInFlight returns entries whose swap orders have not reached a terminal
// gateway status, for the shift monitor to poll.
func (r *HistoryRepository) ListInFlight(ctx context.Context, limit int) ([]domain.RebalanceHistoryEntry, error) {
	_, span := r.tracer.Start(ctx, "history-repo.list-in-flight")
	defer span.End()

	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, recommendation_id, shift_id, from_protocol, to_protocol, asset, amount, status, month_bucket, created_at
		 FROM rebalance_history
		 WHERE shift_id <> '' AND status NOT IN ('settled', 'refunded', 'expired')
		 ORDER BY created_at ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.RebalanceHistoryEntry
	for rows.Next() {
		var e domain.RebalanceHistoryEntry
		if err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.RecommendationID,
			&e.ShiftID,
			&e.FromProtocol,
			&e.ToProtocol,
			&e.AssetSymbol,
			&e.Amount,
			&e.Status,
			&e.MonthBucket,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
