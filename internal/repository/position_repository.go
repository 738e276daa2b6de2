package repository

import (
	"context"

	"yieldpilot/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

// PositionRepository reads wallet positions written by the external scanner.
// The pipeline never writes positions.
type PositionRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewPositionRepository(pool PgxPool, tracer trace.Tracer) *PositionRepository {
	return &PositionRepository{pool: pool, tracer: tracer}
}

func (r *PositionRepository) RunMigrations(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS positions (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			wallet_ref TEXT NOT NULL,
			protocol   TEXT NOT NULL,
			pool_id    TEXT NOT NULL,
			asset      TEXT NOT NULL,
			balance    TEXT NOT NULL,
			apy        DOUBLE PRECISION NOT NULL,
			tvl_usd    DOUBLE PRECISION NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_positions_user ON positions (user_id);
	`)
	return err
}

func (r *PositionRepository) GetPositions(ctx context.Context, userID string) ([]domain.Position, error) {
	_, span := r.tracer.Start(ctx, "position-repo.get-positions")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, wallet_ref, protocol, pool_id, asset, balance, apy, tvl_usd
		 FROM positions
		 WHERE user_id = $1
		 ORDER BY balance::NUMERIC DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		if err := rows.Scan(
			&p.ID,
			&p.UserID,
			&p.WalletRef,
			&p.Protocol,
			&p.PoolID,
			&p.AssetSymbol,
			&p.Balance,
			&p.APY,
			&p.TVLUSD,
		); err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}
