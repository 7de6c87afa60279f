package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fitgram/internal/model"
	"github.com/fitgram/internal/repository"
)

// SeedUser inserts a user and returns it. Usernames must be unique per test
// database.
func SeedUser(t *testing.T, pool *pgxpool.Pool, username string, private bool) *model.User {
	t.Helper()
	u := &model.User{
		ID:         uuid.New().String(),
		Username:   username,
		IsPrivate:  private,
		LastSeenAt: time.Now().UTC(),
		CreatedAt:  time.Now().UTC(),
	}
	repo := repository.NewUserRepository(pool)
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return u
}

// SeedFollow inserts an accepted follow edge follower -> followee.
func SeedFollow(t *testing.T, pool *pgxpool.Pool, followerID, followeeID string) {
	t.Helper()
	repo := repository.NewFollowRepository(pool)
	if err := repo.Upsert(context.Background(), followerID, followeeID, model.FollowStatusAccepted); err != nil {
		t.Fatalf("seed follow: %v", err)
	}
}
