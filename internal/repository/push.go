package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/fitgram/internal/logger"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PushSubscription is a stored browser Web Push subscription.
type PushSubscription struct {
	UserID    string    `json:"user_id"`
	Endpoint  string    `json:"endpoint"`
	P256dh    string    `json:"p256dh"`
	Auth      string    `json:"auth"`
	CreatedAt time.Time `json:"created_at"`
}

type PushRepository struct {
	pool *pgxpool.Pool
}

func NewPushRepository(pool *pgxpool.Pool) *PushRepository {
	return &PushRepository{pool: pool}
}

// Save upserts a subscription by endpoint (re-subscribing replaces the keys).
func (r *PushRepository) Save(ctx context.Context, sub *PushSubscription) error {
	defer logger.DeferLogDuration("push.Save", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (endpoint) DO UPDATE
		   SET user_id = EXCLUDED.user_id, p256dh = EXCLUDED.p256dh, auth = EXCLUDED.auth`,
		sub.UserID, sub.Endpoint, sub.P256dh, sub.Auth, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("pushRepo.Save: %w", err)
	}
	return nil
}

func (r *PushRepository) Delete(ctx context.Context, userID, endpoint string) error {
	defer logger.DeferLogDuration("push.Delete", time.Now())()
	_, err := r.pool.Exec(ctx,
		`DELETE FROM push_subscriptions WHERE user_id = $1 AND endpoint = $2`,
		userID, endpoint,
	)
	if err != nil {
		return fmt.Errorf("pushRepo.Delete: %w", err)
	}
	return nil
}

func (r *PushRepository) GetByUser(ctx context.Context, userID string) ([]PushSubscription, error) {
	defer logger.DeferLogDuration("push.GetByUser", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, endpoint, p256dh, auth, created_at
		 FROM push_subscriptions WHERE user_id = $1`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("pushRepo.GetByUser query: %w", err)
	}
	defer rows.Close()

	subs := make([]PushSubscription, 0, 4)
	for rows.Next() {
		var s PushSubscription
		if err := rows.Scan(&s.UserID, &s.Endpoint, &s.P256dh, &s.Auth, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("pushRepo.GetByUser scan: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pushRepo.GetByUser rows: %w", err)
	}
	return subs, nil
}
