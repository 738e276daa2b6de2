package repository

import (
	"context"
	"errors"
	"time"

	"yieldpilot/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type RecommendationRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewRecommendationRepository(pool PgxPool, tracer trace.Tracer) *RecommendationRepository {
	return &RecommendationRepository{pool: pool, tracer: tracer}
}

func (r *RecommendationRepository) RunMigrations(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS recommendations (
			id            TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL,
			from_pool_id  TEXT,
			from_protocol TEXT,
			to_pool_id    TEXT NOT NULL,
			to_protocol   TEXT NOT NULL,
			asset         TEXT NOT NULL,
			amount        TEXT NOT NULL,
			current_apy   DOUBLE PRECISION,
			target_apy    DOUBLE PRECISION NOT NULL,
			net_gain      DOUBLE PRECISION NOT NULL,
			risk_score    SMALLINT NOT NULL,
			reason        TEXT NOT NULL DEFAULT '',
			status        TEXT NOT NULL DEFAULT 'pending',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			executed_at   TIMESTAMPTZ,
			shift_id      TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_recommendations_user_status
			ON recommendations (user_id, status);
		CREATE INDEX IF NOT EXISTS idx_recommendations_shift
			ON recommendations (shift_id) WHERE shift_id <> '';
	`)
	return err
}

// InsertPending persists a generated batch with status=pending, minting ids
// for drafts that do not carry one.
func (r *RecommendationRepository) InsertPending(ctx context.Context, recs []domain.Recommendation) ([]domain.Recommendation, error) {
	if len(recs) == 0 {
		return nil, nil
	}

	_, span := r.tracer.Start(ctx, "recommendation-repo.insert-pending")
	defer span.End()

	out := make([]domain.Recommendation, len(recs))
	copy(out, recs)

	batch := &pgx.Batch{}
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = uuid.NewString()
		}
		out[i].Status = domain.StatusPending
		if out[i].CreatedAt.IsZero() {
			out[i].CreatedAt = time.Now().UTC()
		}
		batch.Queue(
			`INSERT INTO recommendations
			     (id, user_id, from_pool_id, from_protocol, to_pool_id, to_protocol,
			      asset, amount, current_apy, target_apy, net_gain, risk_score, reason, status, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			out[i].ID,
			out[i].UserID,
			out[i].FromPoolID,
			out[i].FromProtocol,
			out[i].ToPoolID,
			out[i].ToProtocol,
			out[i].AssetSymbol,
			out[i].Amount,
			out[i].CurrentAPY,
			out[i].TargetAPY,
			out[i].NetGainUSD,
			int16(out[i].RiskScore),
			out[i].Reason,
			string(out[i].Status),
			out[i].CreatedAt,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range out {
		if _, err := br.Exec(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

const recommendationColumns = `id, user_id, from_pool_id, from_protocol, to_pool_id, to_protocol,
	asset, amount, current_apy, target_apy, net_gain, risk_score, reason, status, created_at, executed_at, shift_id`

// ListPending returns the user's pending recommendations sorted by estimated
// net gain descending.
func (r *RecommendationRepository) ListPending(ctx context.Context, userID string) ([]domain.Recommendation, error) {
	_, span := r.tracer.Start(ctx, "recommendation-repo.list-pending")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT `+recommendationColumns+`
		 FROM recommendations
		 WHERE user_id = $1 AND status = $2
		 ORDER BY net_gain DESC`,
		userID, string(domain.StatusPending),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecommendations(rows)
}

func (r *RecommendationRepository) GetByID(ctx context.Context, id string) (*domain.Recommendation, error) {
	_, span := r.tracer.Start(ctx, "recommendation-repo.get-by-id")
	defer span.End()

	row := r.pool.QueryRow(ctx,
		`SELECT `+recommendationColumns+`
		 FROM recommendations
		 WHERE id = $1`,
		id,
	)
	rec, err := scanRecommendation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecommendationNotFound
		}
		return nil, err
	}
	return rec, nil
}

// DeletePending removes the user's pending recommendations ahead of a
// regeneration. Non-pending records are never deleted.
func (r *RecommendationRepository) DeletePending(ctx context.Context, userID string) (int64, error) {
	_, span := r.tracer.Start(ctx, "recommendation-repo.delete-pending")
	defer span.End()

	tag, err := r.pool.Exec(ctx,
		`DELETE FROM recommendations WHERE user_id = $1 AND status = $2`,
		userID, string(domain.StatusPending),
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// MarkExecuted transitions pending -> executed. The status predicate makes the
// write optimistic: a raced transition reports false with no effect.
func (r *RecommendationRepository) MarkExecuted(ctx context.Context, id string, executedAt time.Time, shiftID string) (bool, error) {
	_, span := r.tracer.Start(ctx, "recommendation-repo.mark-executed")
	defer span.End()

	tag, err := r.pool.Exec(ctx,
		`UPDATE recommendations
		 SET status = $1, executed_at = $2, shift_id = $3
		 WHERE id = $4 AND status = $5`,
		string(domain.StatusExecuted), executedAt.UTC(), shiftID, id, string(domain.StatusPending),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkManualRequired transitions pending -> manual_required, optimistically.
func (r *RecommendationRepository) MarkManualRequired(ctx context.Context, id string) (bool, error) {
	_, span := r.tracer.Start(ctx, "recommendation-repo.mark-manual-required")
	defer span.End()

	tag, err := r.pool.Exec(ctx,
		`UPDATE recommendations
		 SET status = $1
		 WHERE id = $2 AND status = $3`,
		string(domain.StatusManualRequired), id, string(domain.StatusPending),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CompleteByShiftID transitions executed -> completed once the linked swap
// order settles.
func (r *RecommendationRepository) CompleteByShiftID(ctx context.Context, shiftID string) error {
	_, span := r.tracer.Start(ctx, "recommendation-repo.complete-by-shift")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`UPDATE recommendations
		 SET status = $1
		 WHERE shift_id = $2 AND status = $3`,
		string(domain.StatusCompleted), shiftID, string(domain.StatusExecuted),
	)
	return err
}

func scanRecommendations(rows pgx.Rows) ([]domain.Recommendation, error) {
	var recs []domain.Recommendation
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

func scanRecommendation(row pgx.Row) (*domain.Recommendation, error) {
	var rec domain.Recommendation
	var status string
	var risk int16
	if err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.FromPoolID,
		&rec.FromProtocol,
		&rec.ToPoolID,
		&rec.ToProtocol,
		&rec.AssetSymbol,
		&rec.Amount,
		&rec.CurrentAPY,
		&rec.TargetAPY,
		&rec.NetGainUSD,
		&risk,
		&rec.Reason,
		&status,
		&rec.CreatedAt,
		&rec.ExecutedAt,
		&rec.ShiftID,
	); err != nil {
		return nil, err
	}
	rec.Status = domain.RecommendationStatus(status)
	rec.RiskScore = int(risk)
	return &rec, nil
}
