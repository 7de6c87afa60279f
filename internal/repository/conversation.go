package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fitgram/internal/apperr"
	"github.com/fitgram/internal/logger"
	"github.com/fitgram/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ConversationRepository is the conversation directory: one row per unordered
// participant pair, canonicalized as (user_lo < user_hi) under a unique
// constraint so two first-contact sends racing from both directions converge
// on the same row.
type ConversationRepository struct {
	pool *pgxpool.Pool
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{pool: pool}
}

// UpsertOnSendTx updates the directory for a freshly persisted message inside
// the sender's transaction: sets the last-message pointer, creates the
// conversation and member rows if absent, and increments the recipient's
// unread counter. Shares the tx with the message insert so neither side can
// be observed without the other; the pointer column therefore carries no
// foreign key.
func (r *ConversationRepository) UpsertOnSendTx(ctx context.Context, tx pgx.Tx, fromID, toID, messageID string, at time.Time) (string, error) {
	defer logger.DeferLogDuration("conv.UpsertOnSendTx", time.Now())()
	lo, hi := model.PairKey(fromID, toID)
	var convID string
	err := tx.QueryRow(ctx,
		`INSERT INTO conversations (id, user_lo, user_hi, last_message_id, last_message_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $5)
		 ON CONFLICT (user_lo, user_hi) DO UPDATE
		   SET last_message_id = EXCLUDED.last_message_id,
		       last_message_at = EXCLUDED.last_message_at
		 RETURNING id`,
		uuid.New().String(), lo, hi, messageID, at,
	).Scan(&convID)
	if err != nil {
		return "", fmt.Errorf("convRepo.UpsertOnSendTx upsert: %w", err)
	}
	if err := insertMembers(ctx, tx, convID, lo, hi); err != nil {
		return "", err
	}
	_, err = tx.Exec(ctx,
		`UPDATE conversation_members SET unread_count = unread_count + 1
		 WHERE conversation_id = $1 AND user_id = $2`,
		convID, toID,
	)
	if err != nil {
		return "", fmt.Errorf("convRepo.UpsertOnSendTx unread: %w", err)
	}
	return convID, nil
}

// Ensure lazily creates the conversation for a pair (pin, mute, wallpaper and
// tone may all arrive before the first message) and returns its id.
func (r *ConversationRepository) Ensure(ctx context.Context, userA, userB string) (string, error) {
	defer logger.DeferLogDuration("conv.Ensure", time.Now())()
	lo, hi := model.PairKey(userA, userB)
	var convID string
	// The no-op DO UPDATE makes RETURNING yield the row on conflict too.
	err := r.pool.QueryRow(ctx,
		`INSERT INTO conversations (id, user_lo, user_hi, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_lo, user_hi) DO UPDATE SET user_lo = EXCLUDED.user_lo
		 RETURNING id`,
		uuid.New().String(), lo, hi, time.Now().UTC(),
	).Scan(&convID)
	if err != nil {
		return "", fmt.Errorf("convRepo.Ensure: %w", err)
	}
	if err := insertMembers(ctx, r.pool, convID, lo, hi); err != nil {
		return "", err
	}
	return convID, nil
}

// execer is satisfied by both *pgxpool.Pool and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertMembers(ctx context.Context, q execer, convID, lo, hi string) error {
	_, err := q.Exec(ctx,
		`INSERT INTO conversation_members (conversation_id, user_id)
		 VALUES ($1, $2), ($1, $3) ON CONFLICT DO NOTHING`,
		convID, lo, hi,
	)
	if err != nil {
		return fmt.Errorf("convRepo insert members: %w", err)
	}
	return nil
}

// GetByPair loads the directory entry for two users.
func (r *ConversationRepository) GetByPair(ctx context.Context, userA, userB string) (*model.Conversation, error) {
	defer logger.DeferLogDuration("conv.GetByPair", time.Now())()
	lo, hi := model.PairKey(userA, userB)
	c := &model.Conversation{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_lo, user_hi, last_message_id, last_message_at,
		        COALESCE(wallpaper, ''), COALESCE(tone, ''), created_at
		 FROM conversations WHERE user_lo = $1 AND user_hi = $2`, lo, hi,
	).Scan(&c.ID, &c.UserLo, &c.UserHi, &c.LastMessageID, &c.LastMessageAt,
		&c.Wallpaper, &c.Tone, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("conversation not found")
	}
	if err != nil {
		return nil, fmt.Errorf("convRepo.GetByPair: %w", err)
	}
	return c, nil
}

// ResetUnread zeroes the viewer's unread counter for the conversation with
// otherID. A single UPDATE, atomic with respect to concurrent increments.
func (r *ConversationRepository) ResetUnread(ctx context.Context, userID, otherID string) error {
	defer logger.DeferLogDuration("conv.ResetUnread", time.Now())()
	lo, hi := model.PairKey(userID, otherID)
	_, err := r.pool.Exec(ctx,
		`UPDATE conversation_members cm SET unread_count = 0
		 FROM conversations c
		 WHERE cm.conversation_id = c.id AND c.user_lo = $1 AND c.user_hi = $2 AND cm.user_id = $3`,
		lo, hi, userID,
	)
	if err != nil {
		return fmt.Errorf("convRepo.ResetUnread: %w", err)
	}
	return nil
}

// UnreadCount reads the viewer's counter for one conversation (0 when the
// conversation does not exist yet).
func (r *ConversationRepository) UnreadCount(ctx context.Context, userID, otherID string) (int, error) {
	defer logger.DeferLogDuration("conv.UnreadCount", time.Now())()
	lo, hi := model.PairKey(userID, otherID)
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE((SELECT cm.unread_count
		   FROM conversation_members cm
		   JOIN conversations c ON c.id = cm.conversation_id
		   WHERE c.user_lo = $1 AND c.user_hi = $2 AND cm.user_id = $3), 0)`,
		lo, hi, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("convRepo.UnreadCount: %w", err)
	}
	return count, nil
}

// TogglePin flips the viewer's pin flag, creating the conversation if needed,
// and returns the resulting state.
func (r *ConversationRepository) TogglePin(ctx context.Context, userID, otherID string) (bool, error) {
	return r.toggleMemberFlag(ctx, userID, otherID, "pinned")
}

// ToggleMute flips the viewer's mute flag, creating the conversation if
// needed, and returns the resulting state.
func (r *ConversationRepository) ToggleMute(ctx context.Context, userID, otherID string) (bool, error) {
	return r.toggleMemberFlag(ctx, userID, otherID, "muted")
}

func (r *ConversationRepository) toggleMemberFlag(ctx context.Context, userID, otherID, col string) (bool, error) {
	defer logger.DeferLogDuration("conv.toggle_"+col, time.Now())()
	convID, err := r.Ensure(ctx, userID, otherID)
	if err != nil {
		return false, err
	}
	var state bool
	// col is one of two compile-time constants, never user input.
	err = r.pool.QueryRow(ctx,
		`UPDATE conversation_members SET `+col+` = NOT `+col+`
		 WHERE conversation_id = $1 AND user_id = $2
		 RETURNING `+col, convID, userID,
	).Scan(&state)
	if err != nil {
		return false, fmt.Errorf("convRepo.toggle %s: %w", col, err)
	}
	return state, nil
}

// SetWallpaper sets the shared wallpaper, last write wins.
func (r *ConversationRepository) SetWallpaper(ctx context.Context, userID, otherID, value string) error {
	return r.setSharedField(ctx, userID, otherID, "wallpaper", value)
}

// SetTone sets the shared notification tone, last write wins.
func (r *ConversationRepository) SetTone(ctx context.Context, userID, otherID, value string) error {
	return r.setSharedField(ctx, userID, otherID, "tone", value)
}

func (r *ConversationRepository) setSharedField(ctx context.Context, userID, otherID, col, value string) error {
	defer logger.DeferLogDuration("conv.set_"+col, time.Now())()
	convID, err := r.Ensure(ctx, userID, otherID)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE conversations SET `+col+` = $1 WHERE id = $2`, value, convID,
	)
	if err != nil {
		return fmt.Errorf("convRepo.set %s: %w", col, err)
	}
	return nil
}

// ListForUser returns the viewer's conversation list resolved to the other
// participant, pinned first, then most recent activity.
func (r *ConversationRepository) ListForUser(ctx context.Context, userID string) ([]model.ConversationSummary, error) {
	defer logger.DeferLogDuration("conv.ListForUser", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT c.id, cm.unread_count, cm.pinned, cm.muted,
		        COALESCE(c.wallpaper, ''), COALESCE(c.tone, ''), c.last_message_at,
		        u.id, u.username, u.avatar_url, u.is_private, u.last_seen_at,
		        m.id, m.conversation_id, m.from_user, m.to_user, m.text, m.msg_type,
		        m.media_url, m.caption, m.reply_to_id, m.forwarded_from, m.status,
		        m.deleted_for_everyone, m.created_at
		 FROM conversation_members cm
		 JOIN conversations c ON c.id = cm.conversation_id
		 JOIN users u ON u.id = CASE WHEN c.user_lo = cm.user_id THEN c.user_hi ELSE c.user_lo END
		 LEFT JOIN messages m ON m.id = c.last_message_id
		 WHERE cm.user_id = $1
		 ORDER BY cm.pinned DESC, c.last_message_at DESC NULLS LAST`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("convRepo.ListForUser query: %w", err)
	}
	defer rows.Close()

	summaries := make([]model.ConversationSummary, 0, 16)
	for rows.Next() {
		var s model.ConversationSummary
		var last model.Message
		var lastID *string
		var lastConvID, lastFrom, lastTo, lastText, lastMedia, lastCaption *string
		var lastType, lastStatus *string
		var lastReply, lastForwarded *string
		var lastDeleted *bool
		var lastCreated *time.Time
		if err := rows.Scan(&s.ConversationID, &s.UnreadCount, &s.Pinned, &s.Muted,
			&s.Wallpaper, &s.Tone, &s.LastMessageAt,
			&s.OtherUser.ID, &s.OtherUser.Username, &s.OtherUser.AvatarURL,
			&s.OtherUser.IsPrivate, &s.OtherUser.LastSeenAt,
			&lastID, &lastConvID, &lastFrom, &lastTo, &lastText, &lastType,
			&lastMedia, &lastCaption, &lastReply, &lastForwarded, &lastStatus,
			&lastDeleted, &lastCreated); err != nil {
			return nil, fmt.Errorf("convRepo.ListForUser scan: %w", err)
		}
		if lastID != nil {
			last = model.Message{
				ID:                 *lastID,
				ConversationID:     *lastConvID,
				FromUser:           *lastFrom,
				ToUser:             *lastTo,
				Text:               *lastText,
				Type:               model.MessageType(*lastType),
				MediaURL:           *lastMedia,
				Caption:            *lastCaption,
				ReplyTo:            lastReply,
				ForwardedFrom:      lastForwarded,
				Status:             model.MessageStatus(*lastStatus),
				DeletedForEveryone: *lastDeleted,
				CreatedAt:          *lastCreated,
			}
			last.Redact()
			s.LastMessage = &last
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("convRepo.ListForUser rows: %w", err)
	}
	return summaries, nil
}
