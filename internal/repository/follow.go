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

// FollowRepository backs the privacy gate: whether one user may message or
// view another depends on the target's privacy flag and the follow relation.
type FollowRepository struct {
	pool *pgxpool.Pool
}

func NewFollowRepository(pool *pgxpool.Pool) *FollowRepository {
	return &FollowRepository{pool: pool}
}

// Upsert creates or updates a follow edge with the given status.
func (r *FollowRepository) Upsert(ctx context.Context, followerID, followeeID string, status model.FollowStatus) error {
	defer logger.DeferLogDuration("follow.Upsert", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO follows (follower_id, followee_id, status, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (follower_id, followee_id) DO UPDATE SET status = EXCLUDED.status`,
		followerID, followeeID, status, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("followRepo.Upsert: %w", err)
	}
	return nil
}

// Delete removes a follow edge (unfollow or rejected request).
func (r *FollowRepository) Delete(ctx context.Context, followerID, followeeID string) error {
	defer logger.DeferLogDuration("follow.Delete", time.Now())()
	_, err := r.pool.Exec(ctx,
		`DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2`,
		followerID, followeeID,
	)
	if err != nil {
		return fmt.Errorf("followRepo.Delete: %w", err)
	}
	return nil
}

// CanInteract answers whether viewer may message or view target: the target
// account is public, or an accepted follow viewer->target exists. The check is
// a single query so it stays cheap enough to run on every send.
func (r *FollowRepository) CanInteract(ctx context.Context, viewerID, targetID string) (bool, error) {
	defer logger.DeferLogDuration("follow.CanInteract", time.Now())()
	var isPrivate, accepted bool
	err := r.pool.QueryRow(ctx,
		`SELECT u.is_private,
		        EXISTS(SELECT 1 FROM follows f
		               WHERE f.follower_id = $1 AND f.followee_id = $2 AND f.status = 'accepted')
		 FROM users u WHERE u.id = $2`,
		viewerID, targetID,
	).Scan(&isPrivate, &accepted)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, apperr.NotFound("user not found")
	}
	if err != nil {
		return false, fmt.Errorf("followRepo.CanInteract: %w", err)
	}
	return !isPrivate || accepted, nil
}
