package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/fitgram/internal/logger"
	"github.com/fitgram/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ReactionRepository struct {
	pool *pgxpool.Pool
}

func NewReactionRepository(pool *pgxpool.Pool) *ReactionRepository {
	return &ReactionRepository{pool: pool}
}

// Toggle adds the (user, emoji) reaction if absent and removes it if present,
// reporting the resulting state. The primary key makes a racing double-add
// collapse into a single row.
func (r *ReactionRepository) Toggle(ctx context.Context, messageID, userID, emoji string) (bool, error) {
	defer logger.DeferLogDuration("reaction.Toggle", time.Now())()
	ct, err := r.pool.Exec(ctx,
		`DELETE FROM message_reactions WHERE message_id = $1 AND user_id = $2 AND emoji = $3`,
		messageID, userID, emoji,
	)
	if err != nil {
		return false, fmt.Errorf("reactionRepo.Toggle delete: %w", err)
	}
	if ct.RowsAffected() > 0 {
		return false, nil
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO message_reactions (message_id, user_id, emoji, created_at)
		 VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`,
		messageID, userID, emoji, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("reactionRepo.Toggle insert: %w", err)
	}
	return true, nil
}

func (r *ReactionRepository) GetByMessage(ctx context.Context, messageID string) ([]model.Reaction, error) {
	defer logger.DeferLogDuration("reaction.GetByMessage", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT message_id, user_id, emoji, created_at
		 FROM message_reactions
		 WHERE message_id = $1
		 ORDER BY created_at`, messageID,
	)
	if err != nil {
		return nil, fmt.Errorf("reactionRepo.GetByMessage query: %w", err)
	}
	defer rows.Close()

	reactions := make([]model.Reaction, 0, 8)
	for rows.Next() {
		var rc model.Reaction
		if err := rows.Scan(&rc.MessageID, &rc.UserID, &rc.Emoji, &rc.CreatedAt); err != nil {
			return nil, fmt.Errorf("reactionRepo.GetByMessage scan: %w", err)
		}
		reactions = append(reactions, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reactionRepo.GetByMessage rows: %w", err)
	}
	return reactions, nil
}
