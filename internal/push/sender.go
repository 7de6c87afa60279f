package push

import (
	"context"
	"encoding/json"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/fitgram/internal/logger"
	"github.com/fitgram/internal/repository"
)

// Sender delivers Web Push notifications to a user's stored browser
// subscriptions. Used when a message arrives for a recipient with no live
// channel; delivery failures are logged and absorbed, never surfaced.
type Sender struct {
	repo    *repository.PushRepository
	keys    *VAPIDKeys
	subject string
}

// NewSender returns nil when keys are absent; callers treat a nil Sender as
// push disabled.
func NewSender(repo *repository.PushRepository, keys *VAPIDKeys, subject string) *Sender {
	if repo == nil || keys == nil || keys.PrivateKey == "" {
		return nil
	}
	if subject == "" {
		subject = "mailto:admin@fitgram.app"
	}
	return &Sender{repo: repo, keys: keys, subject: subject}
}

type notificationPayload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Notify sends to every subscription of userID. Subscriptions the push
// service reports as gone (404/410) are pruned.
func (s *Sender) Notify(ctx context.Context, userID, title, body string, data map[string]string) {
	subs, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		logger.Errorf("push notify user=%s: %v", userID, err)
		return
	}
	if len(subs) == 0 {
		return
	}
	payload, err := json.Marshal(notificationPayload{Title: title, Body: body, Data: data})
	if err != nil {
		logger.Errorf("push notify marshal: %v", err)
		return
	}
	for _, sub := range subs {
		wpSub := &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys:     webpush.Keys{P256dh: sub.P256dh, Auth: sub.Auth},
		}
		resp, err := webpush.SendNotification(payload, wpSub, &webpush.Options{
			Subscriber:      s.subject,
			VAPIDPublicKey:  s.keys.PublicKey,
			VAPIDPrivateKey: s.keys.PrivateKey,
			TTL:             60,
		})
		if err != nil {
			logger.Errorf("push send user=%s: %v", userID, err)
			continue
		}
		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
			if err := s.repo.Delete(ctx, sub.UserID, sub.Endpoint); err != nil {
				logger.Errorf("push prune endpoint user=%s: %v", userID, err)
			}
		}
		resp.Body.Close()
	}
}
