package repository

import (
	"context"
	"errors"
	"fmt"

	"yieldpilot/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
)

// UserRepository resolves API tokens to user records. Account lifecycle is
// owned by the external identity provider; this table is a synced projection.
type UserRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewUserRepository(pool PgxPool, tracer trace.Tracer) *UserRepository {
	return &UserRepository{pool: pool, tracer: tracer}
}

func (r *UserRepository) RunMigrations(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id             TEXT PRIMARY KEY,
			email          TEXT NOT NULL DEFAULT '',
			tier           TEXT NOT NULL DEFAULT 'free',
			wallet_address TEXT NOT NULL DEFAULT '',
			api_token      TEXT NOT NULL UNIQUE
		);
	`)
	return err
}

// Resolve maps a bearer token to a user. Unknown tiers degrade to free rather
// than failing the request.
func (r *UserRepository) Resolve(ctx context.Context, token string) (*domain.User, error) {
	_, span := r.tracer.Start(ctx, "user-repo.resolve")
	defer span.End()

	var user domain.User
	var tier string
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, tier, wallet_address FROM users WHERE api_token = $1`,
		token,
	).Scan(&user.ID, &user.Email, &tier, &user.WalletAddress)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("unknown token")
		}
		return nil, err
	}

	user.Tier = domain.SubscriptionTier(tier)
	if !user.Tier.IsValid() {
		user.Tier = domain.TierFree
	}
	return &user, nil
}
