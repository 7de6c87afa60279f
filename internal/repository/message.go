package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fitgram/internal/apperr"
	"github.com/fitgram/internal/logger"
	"github.com/fitgram/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const messageCols = `id, conversation_id, from_user, to_user, text, msg_type, media_url,
	caption, reply_to_id, forwarded_from, status, deleted_for_everyone, created_at`

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

func scanMessage(s interface{ Scan(dest ...any) error }, m *model.Message) error {
	return s.Scan(&m.ID, &m.ConversationID, &m.FromUser, &m.ToUser, &m.Text, &m.Type,
		&m.MediaURL, &m.Caption, &m.ReplyTo, &m.ForwardedFrom, &m.Status,
		&m.DeletedForEveryone, &m.CreatedAt)
}

// CreateTx inserts a message inside the caller's transaction. The delivery
// coordinator commits it together with the conversation-directory update so a
// store failure never leaves a dangling directory entry.
func (r *MessageRepository) CreateTx(ctx context.Context, tx pgx.Tx, m *model.Message) error {
	defer logger.DeferLogDuration("msg.CreateTx", time.Now())()
	_, err := tx.Exec(ctx,
		`INSERT INTO messages (`+messageCols+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		m.ID, m.ConversationID, m.FromUser, m.ToUser, m.Text, m.Type, m.MediaURL,
		m.Caption, m.ReplyTo, m.ForwardedFrom, m.Status, m.DeletedForEveryone, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.CreateTx: %w", err)
	}
	return nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id string) (*model.Message, error) {
	defer logger.DeferLogDuration("msg.GetByID", time.Now())()
	m := &model.Message{}
	row := r.pool.QueryRow(ctx, `SELECT `+messageCols+` FROM messages WHERE id = $1`, id)
	if err := scanMessage(row, m); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("message not found")
		}
		return nil, fmt.Errorf("msgRepo.GetByID: %w", err)
	}
	return m, nil
}

// ListConversation returns up to limit most recent messages between viewer and
// other, newest first (callers reverse for display). Messages the viewer
// deleted for themselves are excluded; messages deleted for everyone are
// returned and redacted upstream.
func (r *MessageRepository) ListConversation(ctx context.Context, viewerID, otherID string, limit int) ([]model.Message, error) {
	defer logger.DeferLogDuration("msg.ListConversation", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+prefixCols("m", messageCols)+`
		 FROM messages m
		 LEFT JOIN message_deletes md ON md.message_id = m.id AND md.user_id = $1
		 WHERE ((m.from_user = $1 AND m.to_user = $2) OR (m.from_user = $2 AND m.to_user = $1))
		   AND md.user_id IS NULL
		 ORDER BY m.created_at DESC
		 LIMIT $3`, viewerID, otherID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.ListConversation query: %w", err)
	}
	defer rows.Close()
	return collectMessages(rows, limit, "msgRepo.ListConversation")
}

// Search matches text case-insensitively within one conversation. Empty query
// handling (empty result, not all messages) is enforced by the service.
func (r *MessageRepository) Search(ctx context.Context, viewerID, otherID, query string, limit int) ([]model.Message, error) {
	defer logger.DeferLogDuration("msg.Search", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+prefixCols("m", messageCols)+`
		 FROM messages m
		 LEFT JOIN message_deletes md ON md.message_id = m.id AND md.user_id = $1
		 WHERE ((m.from_user = $1 AND m.to_user = $2) OR (m.from_user = $2 AND m.to_user = $1))
		   AND md.user_id IS NULL
		   AND m.deleted_for_everyone = false
		   AND m.text ILIKE '%' || $3 || '%'
		 ORDER BY m.created_at DESC
		 LIMIT $4`, viewerID, otherID, query, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.Search query: %w", err)
	}
	defer rows.Close()
	return collectMessages(rows, limit, "msgRepo.Search")
}

// MarkDelivered advances sent -> delivered for everything addressed to toUser
// from fromUser. Filter-scoped so concurrent calls can only move forward.
func (r *MessageRepository) MarkDelivered(ctx context.Context, toUser, fromUser string) error {
	defer logger.DeferLogDuration("msg.MarkDelivered", time.Now())()
	_, err := r.pool.Exec(ctx,
		`UPDATE messages SET status = 'delivered'
		 WHERE to_user = $1 AND from_user = $2 AND status = 'sent'`,
		toUser, fromUser,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.MarkDelivered: %w", err)
	}
	return nil
}

// MarkAllDelivered reconciles every queued message for a user on connect.
func (r *MessageRepository) MarkAllDelivered(ctx context.Context, toUser string) error {
	defer logger.DeferLogDuration("msg.MarkAllDelivered", time.Now())()
	_, err := r.pool.Exec(ctx,
		`UPDATE messages SET status = 'delivered'
		 WHERE to_user = $1 AND status = 'sent'`, toUser,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.MarkAllDelivered: %w", err)
	}
	return nil
}

// MarkRead advances everything addressed to toUser from fromUser into read.
// Returns the number of rows advanced so callers can skip empty receipts.
func (r *MessageRepository) MarkRead(ctx context.Context, toUser, fromUser string) (int64, error) {
	defer logger.DeferLogDuration("msg.MarkRead", time.Now())()
	ct, err := r.pool.Exec(ctx,
		`UPDATE messages SET status = 'read'
		 WHERE to_user = $1 AND from_user = $2 AND status != 'read'`,
		toUser, fromUser,
	)
	if err != nil {
		return 0, fmt.Errorf("msgRepo.MarkRead: %w", err)
	}
	return ct.RowsAffected(), nil
}

// ToggleStar flips the per-user bookmark and reports the resulting state.
func (r *MessageRepository) ToggleStar(ctx context.Context, messageID, userID string) (bool, error) {
	defer logger.DeferLogDuration("msg.ToggleStar", time.Now())()
	ct, err := r.pool.Exec(ctx,
		`DELETE FROM message_stars WHERE message_id = $1 AND user_id = $2`,
		messageID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("msgRepo.ToggleStar delete: %w", err)
	}
	if ct.RowsAffected() > 0 {
		return false, nil
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO message_stars (message_id, user_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		messageID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("msgRepo.ToggleStar insert: %w", err)
	}
	return true, nil
}

// GetStarredBy lists users who starred a message.
func (r *MessageRepository) GetStarredBy(ctx context.Context, messageID string) ([]string, error) {
	defer logger.DeferLogDuration("msg.GetStarredBy", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT user_id FROM message_stars WHERE message_id = $1 ORDER BY user_id`, messageID,
	)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.GetStarredBy: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("msgRepo.GetStarredBy scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteForUser hides a message for one user only. Idempotent.
func (r *MessageRepository) DeleteForUser(ctx context.Context, messageID, userID string) error {
	defer logger.DeferLogDuration("msg.DeleteForUser", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO message_deletes (message_id, user_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		messageID, userID,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.DeleteForUser: %w", err)
	}
	return nil
}

// SetDeletedForEveryone redacts a message for both sides. The row is kept
// (soft delete only).
func (r *MessageRepository) SetDeletedForEveryone(ctx context.Context, messageID string) error {
	defer logger.DeferLogDuration("msg.SetDeletedForEveryone", time.Now())()
	_, err := r.pool.Exec(ctx,
		`UPDATE messages SET deleted_for_everyone = true WHERE id = $1`, messageID,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.SetDeletedForEveryone: %w", err)
	}
	return nil
}

// prefixCols qualifies a comma-separated column list with a table alias.
func prefixCols(alias, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func collectMessages(rows pgx.Rows, capHint int, op string) ([]model.Message, error) {
	messages := make([]model.Message, 0, capHint)
	for rows.Next() {
		var m model.Message
		if err := scanMessage(rows, &m); err != nil {
			return nil, fmt.Errorf("%s scan: %w", op, err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s rows: %w", op, err)
	}
	return messages, nil
}
