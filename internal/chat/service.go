// Package chat is the delivery coordinator: it ties message persistence, the
// conversation directory and realtime fan-out into one consistent operation,
// shared by the REST handlers and the WebSocket hub so both entry points
// behave identically.
package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fitgram/internal/apperr"
	"github.com/fitgram/internal/logger"
	"github.com/fitgram/internal/model"
	"github.com/fitgram/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Event types pushed over the realtime channel.
const (
	EventMessage        = "message"
	EventTyping         = "typing"
	EventRead           = "read"
	EventReaction       = "reaction"
	EventMessageDeleted = "message_deleted"
)

// TypingPayload relays an ephemeral typing indicator; never persisted.
type TypingPayload struct {
	From     string `json:"from"`
	IsTyping bool   `json:"is_typing"`
}

// ReadPayload tells a sender that From has read their messages.
type ReadPayload struct {
	From string `json:"from"`
}

// ReactionPayload is broadcast when a reaction is toggled.
type ReactionPayload struct {
	MessageID string `json:"message_id"`
	UserID    string `json:"user_id"`
	Emoji     string `json:"emoji"`
	Added     bool   `json:"added"`
}

// DeletedPayload is broadcast when a message is deleted for everyone.
type DeletedPayload struct {
	MessageID string `json:"message_id"`
}

// Notifier is the channel registry seen from the coordinator: deliver an
// event to every live connection of a user. The in-process hub implements it;
// a multi-process deployment can substitute a pub/sub-backed one. The return
// value reports whether any connection received the event — push failure for
// an offline user is expected, not an error.
type Notifier interface {
	NotifyUser(userID string, event string, payload any) bool
}

// Gate is the privacy predicate consumed by the coordinator. Re-checked on
// every send since follow/privacy state can change mid-session.
type Gate interface {
	CanInteract(ctx context.Context, viewerID, targetID string) (bool, error)
}

// OfflineNotifier delivers out-of-band notifications (web push) when the
// recipient has no live channel. Nil disables it.
type OfflineNotifier interface {
	Notify(ctx context.Context, userID, title, body string, data map[string]string)
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
	defaultSearchLimit  = 30
	maxSearchLimit      = 50
)

type Service struct {
	pool      *pgxpool.Pool
	users     *repository.UserRepository
	msgs      *repository.MessageRepository
	reactions *repository.ReactionRepository
	convs     *repository.ConversationRepository
	gate      Gate
	notifier  Notifier
	offline   OfflineNotifier

	deleteWindow time.Duration
	onlineWindow time.Duration
}

func NewService(
	pool *pgxpool.Pool,
	users *repository.UserRepository,
	msgs *repository.MessageRepository,
	reactions *repository.ReactionRepository,
	convs *repository.ConversationRepository,
	gate Gate,
	notifier Notifier,
	offline OfflineNotifier,
	deleteWindow, onlineWindow time.Duration,
) *Service {
	if deleteWindow <= 0 {
		deleteWindow = 24 * time.Hour
	}
	if onlineWindow <= 0 {
		onlineWindow = 2 * time.Minute
	}
	return &Service{
		pool:         pool,
		users:        users,
		msgs:         msgs,
		reactions:    reactions,
		convs:        convs,
		gate:         gate,
		notifier:     notifier,
		offline:      offline,
		deleteWindow: deleteWindow,
		onlineWindow: onlineWindow,
	}
}

// SendInput is the client-supplied part of a new message.
type SendInput struct {
	Text          string            `json:"text"`
	Type          model.MessageType `json:"type"`
	MediaURL      string            `json:"media_url"`
	Caption       string            `json:"caption"`
	ReplyTo       *string           `json:"reply_to"`
	ForwardedFrom *string           `json:"forwarded_from"`
}

// Send persists a message and fans it out. Precondition checks have no side
// effects; the message insert and the directory update share one transaction
// so a store failure cannot leave a dangling directory entry. Fan-out failure
// (recipient offline) is silently absorbed: the persisted sent status is the
// correct signal and reconciliation happens on the next connect or fetch.
func (s *Service) Send(ctx context.Context, fromID, toID string, in SendInput) (*model.Message, error) {
	defer logger.DeferLogDuration("chat.Send", time.Now())()

	if fromID == toID {
		return nil, apperr.Validation("cannot message yourself")
	}
	ok, err := s.gate.CanInteract(ctx, fromID, toID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Permission("cannot message this user unless follow is accepted")
	}

	text := strings.TrimSpace(in.Text)
	msgType := in.Type
	if msgType == "" {
		msgType = model.MessageTypeText
	}
	if !model.ValidMessageType(msgType) {
		return nil, apperr.Validationf("unknown message type %q", msgType)
	}
	if text == "" && in.MediaURL == "" {
		return nil, apperr.Validation("text or media_url required")
	}
	if msgType != model.MessageTypeText && in.MediaURL == "" {
		return nil, apperr.Validationf("media_url required for %s messages", msgType)
	}
	if in.ReplyTo != nil {
		parent, err := s.msgs.GetByID(ctx, *in.ReplyTo)
		if err != nil {
			if apperr.CodeOf(err) == apperr.CodeNotFound {
				return nil, apperr.Validation("reply_to message not found")
			}
			return nil, err
		}
		if !parent.IsParticipant(fromID) || !parent.IsParticipant(toID) {
			return nil, apperr.Validation("reply_to message belongs to another conversation")
		}
	}

	m := &model.Message{
		ID:            uuid.New().String(),
		FromUser:      fromID,
		ToUser:        toID,
		Text:          text,
		Type:          msgType,
		MediaURL:      in.MediaURL,
		Caption:       strings.TrimSpace(in.Caption),
		ReplyTo:       in.ReplyTo,
		ForwardedFrom: in.ForwardedFrom,
		Status:        model.MessageStatusSent,
		CreatedAt:     time.Now().UTC(),
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	convID, err := s.convs.UpsertOnSendTx(ctx, tx, fromID, toID, m.ID, m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.ConversationID = convID
	if err := s.msgs.CreateTx(ctx, tx, m); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	// Both participants get the event: the sender's other tabs must see their
	// own sent message too.
	recipientLive := s.notifier.NotifyUser(toID, EventMessage, m)
	s.notifier.NotifyUser(fromID, EventMessage, m)

	if !recipientLive && s.offline != nil {
		s.notifyOffline(toID, m)
	}
	return m, nil
}

func (s *Service) notifyOffline(toID string, m *model.Message) {
	title := "New message"
	if sender, err := s.users.GetByID(context.Background(), m.FromUser); err == nil {
		title = sender.Username
	}
	body := m.Text
	if m.Type != model.MessageTypeText || body == "" {
		body = "Attachment"
	}
	if len(body) > 120 {
		body = body[:117] + "..."
	}
	data := map[string]string{"message_id": m.ID, "from_user": m.FromUser}
	go s.offline.Notify(context.Background(), toID, title, body, data)
}

// History returns the most recent messages with otherID, oldest first. Side
// effects: queued messages addressed to the viewer advance to delivered, and
// the viewer's unread counter resets.
func (s *Service) History(ctx context.Context, userID, otherID string, limit int) ([]model.Message, error) {
	defer logger.DeferLogDuration("chat.History", time.Now())()
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	// Advance statuses before reading so the returned rows reflect delivery.
	if err := s.msgs.MarkDelivered(ctx, userID, otherID); err != nil {
		return nil, err
	}
	if err := s.convs.ResetUnread(ctx, userID, otherID); err != nil {
		return nil, err
	}

	messages, err := s.msgs.ListConversation(ctx, userID, otherID, limit)
	if err != nil {
		return nil, err
	}
	// Stored newest-first; displayed oldest-first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	for i := range messages {
		if err := s.enrich(ctx, &messages[i]); err != nil {
			return nil, err
		}
	}
	return messages, nil
}

// MarkRead advances everything from otherID to read, resets the unread
// counter and pushes a read receipt to the original sender's connections.
func (s *Service) MarkRead(ctx context.Context, userID, otherID string) error {
	defer logger.DeferLogDuration("chat.MarkRead", time.Now())()
	n, err := s.msgs.MarkRead(ctx, userID, otherID)
	if err != nil {
		return err
	}
	if err := s.convs.ResetUnread(ctx, userID, otherID); err != nil {
		return err
	}
	if n > 0 {
		s.notifier.NotifyUser(otherID, EventRead, ReadPayload{From: userID})
	}
	return nil
}

// ToggleReaction flips one (user, emoji) pair on a message. Only the fixed
// emoji set is accepted and only the two participants may react.
func (s *Service) ToggleReaction(ctx context.Context, userID, messageID, emoji string) (*model.Message, error) {
	defer logger.DeferLogDuration("chat.ToggleReaction", time.Now())()
	if !model.AllowedReaction(emoji) {
		return nil, apperr.Validationf("emoji %q is not allowed", emoji)
	}
	m, err := s.msgs.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if !m.IsParticipant(userID) {
		return nil, apperr.Permission("not a conversation participant")
	}
	added, err := s.reactions.Toggle(ctx, messageID, userID, emoji)
	if err != nil {
		return nil, err
	}
	if err := s.enrich(ctx, m); err != nil {
		return nil, err
	}
	payload := ReactionPayload{MessageID: messageID, UserID: userID, Emoji: emoji, Added: added}
	s.notifier.NotifyUser(m.FromUser, EventReaction, payload)
	s.notifier.NotifyUser(m.ToUser, EventReaction, payload)
	return m, nil
}

// ToggleStar flips the caller's private bookmark on a message.
func (s *Service) ToggleStar(ctx context.Context, userID, messageID string) (*model.Message, error) {
	defer logger.DeferLogDuration("chat.ToggleStar", time.Now())()
	m, err := s.msgs.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if !m.IsParticipant(userID) {
		return nil, apperr.Permission("not a conversation participant")
	}
	if _, err := s.msgs.ToggleStar(ctx, messageID, userID); err != nil {
		return nil, err
	}
	if err := s.enrich(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Delete hides a message for the caller, or — sender only, within the
// configured window — redacts it for both sides. Soft delete either way.
func (s *Service) Delete(ctx context.Context, userID, messageID string, forEveryone bool) (*model.Message, error) {
	defer logger.DeferLogDuration("chat.Delete", time.Now())()
	m, err := s.msgs.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if !m.IsParticipant(userID) {
		return nil, apperr.Permission("not a conversation participant")
	}
	if !forEveryone {
		if err := s.msgs.DeleteForUser(ctx, messageID, userID); err != nil {
			return nil, err
		}
		if err := s.enrich(ctx, m); err != nil {
			return nil, err
		}
		return m, nil
	}
	if m.FromUser != userID {
		return nil, apperr.Permission("only the sender can delete for everyone")
	}
	if time.Since(m.CreatedAt) > s.deleteWindow {
		return nil, apperr.Expired("delete for everyone window has passed")
	}
	if err := s.msgs.SetDeletedForEveryone(ctx, messageID); err != nil {
		return nil, err
	}
	m.DeletedForEveryone = true
	if err := s.enrich(ctx, m); err != nil {
		return nil, err
	}
	payload := DeletedPayload{MessageID: messageID}
	s.notifier.NotifyUser(m.FromUser, EventMessageDeleted, payload)
	s.notifier.NotifyUser(m.ToUser, EventMessageDeleted, payload)
	return m, nil
}

// Search matches text within one conversation, case-insensitively. An empty
// query returns an empty result, never the whole conversation.
func (s *Service) Search(ctx context.Context, userID, otherID, query string, limit int) ([]model.Message, error) {
	defer logger.DeferLogDuration("chat.Search", time.Now())()
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.Message{}, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	return s.msgs.Search(ctx, userID, otherID, query, limit)
}

// Conversations lists the caller's threads, pinned first, then most recent.
func (s *Service) Conversations(ctx context.Context, userID string) ([]model.ConversationSummary, error) {
	defer logger.DeferLogDuration("chat.Conversations", time.Now())()
	summaries, err := s.convs.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range summaries {
		summaries[i].OtherUser.Online = time.Since(summaries[i].OtherUser.LastSeenAt) <= s.onlineWindow
	}
	return summaries, nil
}

// TogglePin flips the caller's pin on the conversation with otherID.
func (s *Service) TogglePin(ctx context.Context, userID, otherID string) (bool, error) {
	if err := s.checkOther(ctx, userID, otherID); err != nil {
		return false, err
	}
	return s.convs.TogglePin(ctx, userID, otherID)
}

// ToggleMute flips the caller's mute on the conversation with otherID.
func (s *Service) ToggleMute(ctx context.Context, userID, otherID string) (bool, error) {
	if err := s.checkOther(ctx, userID, otherID); err != nil {
		return false, err
	}
	return s.convs.ToggleMute(ctx, userID, otherID)
}

// SetWallpaper sets the shared wallpaper for the conversation with otherID.
func (s *Service) SetWallpaper(ctx context.Context, userID, otherID, value string) error {
	if err := s.checkOther(ctx, userID, otherID); err != nil {
		return err
	}
	return s.convs.SetWallpaper(ctx, userID, otherID, value)
}

// SetTone sets the shared notification tone for the conversation with otherID.
func (s *Service) SetTone(ctx context.Context, userID, otherID, value string) error {
	if err := s.checkOther(ctx, userID, otherID); err != nil {
		return err
	}
	return s.convs.SetTone(ctx, userID, otherID, value)
}

func (s *Service) checkOther(ctx context.Context, userID, otherID string) error {
	if userID == otherID {
		return apperr.Validation("cannot act on a conversation with yourself")
	}
	if _, err := s.users.GetByID(ctx, otherID); err != nil {
		return err
	}
	return nil
}

// Typing relays an ephemeral typing indicator to the target's connections.
func (s *Service) Typing(fromID, toID string, isTyping bool) {
	s.notifier.NotifyUser(toID, EventTyping, TypingPayload{From: fromID, IsTyping: isTyping})
}

// Connected handles channel registration: stamp last_seen and reconcile every
// queued sent message for this user to delivered.
func (s *Service) Connected(ctx context.Context, userID string) error {
	defer logger.DeferLogDuration("chat.Connected", time.Now())()
	if err := s.users.UpdateLastSeen(ctx, userID, time.Now().UTC()); err != nil {
		return err
	}
	return s.msgs.MarkAllDelivered(ctx, userID)
}

// Disconnected stamps last_seen on channel close; this is the only persisted
// presence signal.
func (s *Service) Disconnected(ctx context.Context, userID string) error {
	defer logger.DeferLogDuration("chat.Disconnected", time.Now())()
	return s.users.UpdateLastSeen(ctx, userID, time.Now().UTC())
}

// GetUser returns another user's public profile with derived online state.
func (s *Service) GetUser(ctx context.Context, id string) (*model.UserPublic, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	pub := u.ToPublic(s.onlineWindow)
	return &pub, nil
}

// enrich attaches reactions and stars and applies redaction.
func (s *Service) enrich(ctx context.Context, m *model.Message) error {
	reactions, err := s.reactions.GetByMessage(ctx, m.ID)
	if err != nil {
		return err
	}
	if len(reactions) > 0 {
		m.Reactions = reactions
	}
	starred, err := s.msgs.GetStarredBy(ctx, m.ID)
	if err != nil {
		return err
	}
	if len(starred) > 0 {
		m.StarredBy = starred
	}
	m.Redact()
	return nil
}

// IsNotFound reports whether err is the not-found class. Convenience for
// handlers that branch on it.
func IsNotFound(err error) bool {
	var e *apperr.Error
	return errors.As(err, &e) && e.Code == apperr.CodeNotFound
}
