package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fitgram/internal/apperr"
	"github.com/fitgram/internal/logger"
	"github.com/fitgram/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userCols = `id, username, avatar_url, is_private, last_seen_at, created_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(s interface{ Scan(dest ...any) error }, u *model.User) error {
	return s.Scan(&u.ID, &u.Username, &u.AvatarURL, &u.IsPrivate, &u.LastSeenAt, &u.CreatedAt)
}

func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	defer logger.DeferLogDuration("user.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, username, avatar_url, is_private, last_seen_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Username, u.AvatarURL, u.IsPrivate, u.LastSeenAt, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("userRepo.Create: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	defer logger.DeferLogDuration("user.GetByID", time.Now())()
	u := &model.User{}
	row := r.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id)
	if err := scanUser(row, u); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, fmt.Errorf("userRepo.GetByID: %w", err)
	}
	return u, nil
}

// UpdateLastSeen stamps last_seen_at. Called on channel connect and
// disconnect; this is the only persisted presence signal.
func (r *UserRepository) UpdateLastSeen(ctx context.Context, userID string, t time.Time) error {
	defer logger.DeferLogDuration("user.UpdateLastSeen", time.Now())()
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET last_seen_at = $1 WHERE id = $2`, t, userID,
	)
	if err != nil {
		return fmt.Errorf("userRepo.UpdateLastSeen: %w", err)
	}
	return nil
}

// SetPrivate flips the account privacy flag (profile settings glue).
func (r *UserRepository) SetPrivate(ctx context.Context, userID string, private bool) error {
	defer logger.DeferLogDuration("user.SetPrivate", time.Now())()
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET is_private = $1 WHERE id = $2`, private, userID,
	)
	if err != nil {
		return fmt.Errorf("userRepo.SetPrivate: %w", err)
	}
	return nil
}
