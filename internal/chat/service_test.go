package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fitgram/internal/apperr"
	"github.com/fitgram/internal/model"
	"github.com/fitgram/internal/repository"
	"github.com/fitgram/internal/testutil"
)

type recordedEvent struct {
	Event   string
	Payload any
}

// fakeNotifier records fan-out per user and lets tests control which users
// count as having a live connection.
type fakeNotifier struct {
	mu     sync.Mutex
	events map[string][]recordedEvent
	live   map[string]bool
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		events: make(map[string][]recordedEvent),
		live:   make(map[string]bool),
	}
}

func (f *fakeNotifier) NotifyUser(userID string, event string, payload any) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[userID] = append(f.events[userID], recordedEvent{Event: event, Payload: payload})
	return f.live[userID]
}

func (f *fakeNotifier) setLive(userID string, live bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.live[userID] = live
}

func (f *fakeNotifier) eventsFor(userID string) []recordedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedEvent, len(f.events[userID]))
	copy(out, f.events[userID])
	return out
}

func (f *fakeNotifier) lastEvent(userID string) (recordedEvent, bool) {
	evs := f.eventsFor(userID)
	if len(evs) == 0 {
		return recordedEvent{}, false
	}
	return evs[len(evs)-1], true
}

func newTestService(pool *pgxpool.Pool, notifier Notifier) *Service {
	return NewService(
		pool,
		repository.NewUserRepository(pool),
		repository.NewMessageRepository(pool),
		repository.NewReactionRepository(pool),
		repository.NewConversationRepository(pool),
		repository.NewFollowRepository(pool),
		notifier,
		nil,
		24*time.Hour,
		2*time.Minute,
	)
}

func TestService(t *testing.T) {
	if testing.Short() {
		t.Skip("embedded postgres")
	}
	pool := testutil.StartDB(t, 54331)
	ctx := context.Background()

	t.Run("send and fetch", func(t *testing.T) {
		notifier := newFakeNotifier()
		svc := newTestService(pool, notifier)
		alice := testutil.SeedUser(t, pool, "alice", false)
		bob := testutil.SeedUser(t, pool, "bob", false)

		m, err := svc.Send(ctx, alice.ID, bob.ID, SendInput{Text: "  hello bob  "})
		if err != nil {
			t.Fatalf("send: %v", err)
		}
		if m.Text != "hello bob" {
			t.Errorf("text not trimmed: %q", m.Text)
		}
		if m.Type != model.MessageTypeText {
			t.Errorf("type = %q, want text", m.Type)
		}
		if m.Status != model.MessageStatusSent {
			t.Errorf("status = %q, want sent", m.Status)
		}
		if m.ConversationID == "" {
			t.Error("conversation id not set")
		}

		// Both participants were notified.
		if evs := notifier.eventsFor(bob.ID); len(evs) != 1 || evs[0].Event != EventMessage {
			t.Errorf("bob events = %+v, want one message event", evs)
		}
		if evs := notifier.eventsFor(alice.ID); len(evs) != 1 || evs[0].Event != EventMessage {
			t.Errorf("alice events = %+v, want one message event", evs)
		}

		// Counterpart fetch advances sent -> delivered and clears unread.
		history, err := svc.History(ctx, bob.ID, alice.ID, 0)
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		if len(history) != 1 {
			t.Fatalf("history len = %d, want 1", len(history))
		}
		if history[0].Status != model.MessageStatusDelivered {
			t.Errorf("status after fetch = %q, want delivered", history[0].Status)
		}

		convRepo := repository.NewConversationRepository(pool)
		unread, err := convRepo.UnreadCount(ctx, bob.ID, alice.ID)
		if err != nil {
			t.Fatalf("unread: %v", err)
		}
		if unread != 0 {
			t.Errorf("unread after fetch = %d, want 0", unread)
		}

		// The directory resolves the other participant.
		summaries, err := svc.Conversations(ctx, bob.ID)
		if err != nil {
			t.Fatalf("conversations: %v", err)
		}
		if len(summaries) != 1 {
			t.Fatalf("summaries len = %d, want 1", len(summaries))
		}
		if summaries[0].OtherUser.ID != alice.ID {
			t.Errorf("other user = %s, want alice", summaries[0].OtherUser.ID)
		}
		if summaries[0].LastMessage == nil || summaries[0].LastMessage.ID != m.ID {
			t.Error("last message not resolved")
		}
	})

	t.Run("self messaging rejected", func(t *testing.T) {
		svc := newTestService(pool, newFakeNotifier())
		u := testutil.SeedUser(t, pool, "loner", false)
		_, err := svc.Send(ctx, u.ID, u.ID, SendInput{Text: "hi me"})
		if apperr.CodeOf(err) != apperr.CodeValidation {
			t.Errorf("err = %v, want validation", err)
		}
	})

	t.Run("privacy gate", func(t *testing.T) {
		svc := newTestService(pool, newFakeNotifier())
		carol := testutil.SeedUser(t, pool, "carol", true)
		dave := testutil.SeedUser(t, pool, "dave", false)

		_, err := svc.Send(ctx, dave.ID, carol.ID, SendInput{Text: "hey"})
		if apperr.CodeOf(err) != apperr.CodePermission {
			t.Fatalf("err = %v, want permission", err)
		}

		// Accepted follow opens interaction; re-checked per send.
		testutil.SeedFollow(t, pool, dave.ID, carol.ID)
		if _, err := svc.Send(ctx, dave.ID, carol.ID, SendInput{Text: "hey"}); err != nil {
			t.Fatalf("send after accepted follow: %v", err)
		}

		// Public accounts need no follow in either direction.
		if _, err := svc.Send(ctx, carol.ID, dave.ID, SendInput{Text: "hi"}); err != nil {
			t.Fatalf("send to public account: %v", err)
		}
	})

	t.Run("send validation", func(t *testing.T) {
		svc := newTestService(pool, newFakeNotifier())
		a := testutil.SeedUser(t, pool, "val-a", false)
		b := testutil.SeedUser(t, pool, "val-b", false)

		cases := []struct {
			name string
			in   SendInput
		}{
			{"empty", SendInput{}},
			{"whitespace only", SendInput{Text: "   "}},
			{"unknown type", SendInput{Text: "x", Type: "gif"}},
			{"media type without url", SendInput{Text: "x", Type: model.MessageTypeImage}},
		}
		for _, tc := range cases {
			_, err := svc.Send(ctx, a.ID, b.ID, tc.in)
			if apperr.CodeOf(err) != apperr.CodeValidation {
				t.Errorf("%s: err = %v, want validation", tc.name, err)
			}
		}

		if _, err := svc.Send(ctx, a.ID, b.ID, SendInput{
			Type: model.MessageTypeImage, MediaURL: "https://cdn.example/run.jpg", Caption: "morning run",
		}); err != nil {
			t.Errorf("media message: %v", err)
		}
	})

	t.Run("reply must stay in conversation", func(t *testing.T) {
		svc := newTestService(pool, newFakeNotifier())
		a := testutil.SeedUser(t, pool, "reply-a", false)
		b := testutil.SeedUser(t, pool, "reply-b", false)
		c := testutil.SeedUser(t, pool, "reply-c", false)

		parent, err := svc.Send(ctx, a.ID, b.ID, SendInput{Text: "original"})
		if err != nil {
			t.Fatalf("send parent: %v", err)
		}

		if _, err := svc.Send(ctx, b.ID, a.ID, SendInput{Text: "yes", ReplyTo: &parent.ID}); err != nil {
			t.Errorf("reply within conversation: %v", err)
		}

		_, err = svc.Send(ctx, a.ID, c.ID, SendInput{Text: "leak", ReplyTo: &parent.ID})
		if apperr.CodeOf(err) != apperr.CodeValidation {
			t.Errorf("cross-conversation reply: err = %v, want validation", err)
		}

		missing := "00000000-0000-0000-0000-000000000000"
		_, err = svc.Send(ctx, a.ID, b.ID, SendInput{Text: "x", ReplyTo: &missing})
		if apperr.CodeOf(err) != apperr.CodeValidation {
			t.Errorf("missing reply target: err = %v, want validation", err)
		}
	})

	t.Run("status never regresses", func(t *testing.T) {
		notifier := newFakeNotifier()
		svc := newTestService(pool, notifier)
		a := testutil.SeedUser(t, pool, "mono-a", false)
		b := testutil.SeedUser(t, pool, "mono-b", false)
		msgRepo := repository.NewMessageRepository(pool)

		m, err := svc.Send(ctx, a.ID, b.ID, SendInput{Text: "status check"})
		if err != nil {
			t.Fatalf("send: %v", err)
		}

		if err := svc.MarkRead(ctx, b.ID, a.ID); err != nil {
			t.Fatalf("mark read: %v", err)
		}
		got, err := msgRepo.GetByID(ctx, m.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Status != model.MessageStatusRead {
			t.Fatalf("status = %q, want read", got.Status)
		}

		// Sender gets a read receipt.
		if ev, ok := notifier.lastEvent(a.ID); !ok || ev.Event != EventRead {
			t.Errorf("sender last event = %+v, want read receipt", ev)
		}

		// A later delivered-reconcile must not pull read back to delivered.
		if err := msgRepo.MarkAllDelivered(ctx, b.ID); err != nil {
			t.Fatalf("mark delivered: %v", err)
		}
		got, err = msgRepo.GetByID(ctx, m.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Status != model.MessageStatusRead {
			t.Errorf("status after reconcile = %q, want read", got.Status)
		}

		// Idempotent: no receipt when nothing changed.
		before := len(notifier.eventsFor(a.ID))
		if err := svc.MarkRead(ctx, b.ID, a.ID); err != nil {
			t.Fatalf("mark read again: %v", err)
		}
		if after := len(notifier.eventsFor(a.ID)); after != before {
			t.Errorf("duplicate read receipt emitted")
		}
	})

	t.Run("unread accounting", func(t *testing.T) {
		svc := newTestService(pool, newFakeNotifier())
		a := testutil.SeedUser(t, pool, "unread-a", false)
		b := testutil.SeedUser(t, pool, "unread-b", false)
		convRepo := repository.NewConversationRepository(pool)

		for i := 0; i < 3; i++ {
			if _, err := svc.Send(ctx, a.ID, b.ID, SendInput{Text: "ping"}); err != nil {
				t.Fatalf("send %d: %v", i, err)
			}
		}
		unread, err := convRepo.UnreadCount(ctx, b.ID, a.ID)
		if err != nil {
			t.Fatalf("unread: %v", err)
		}
		if unread != 3 {
			t.Errorf("unread = %d, want 3", unread)
		}

		// Sender's own counter is untouched.
		senderUnread, err := convRepo.UnreadCount(ctx, a.ID, b.ID)
		if err != nil {
			t.Fatalf("sender unread: %v", err)
		}
		if senderUnread != 0 {
			t.Errorf("sender unread = %d, want 0", senderUnread)
		}

		if _, err := svc.History(ctx, b.ID, a.ID, 0); err != nil {
			t.Fatalf("history: %v", err)
		}
		unread, err = convRepo.UnreadCount(ctx, b.ID, a.ID)
		if err != nil {
			t.Fatalf("unread: %v", err)
		}
		if unread != 0 {
			t.Errorf("unread after fetch = %d, want 0", unread)
		}
	})

	t.Run("reactions", func(t *testing.T) {
		notifier := newFakeNotifier()
		svc := newTestService(pool, notifier)
		a := testutil.SeedUser(t, pool, "react-a", false)
		b := testutil.SeedUser(t, pool, "react-b", false)
		outsider := testutil.SeedUser(t, pool, "react-x", false)

		m, err := svc.Send(ctx, a.ID, b.ID, SendInput{Text: "nice lift"})
		if err != nil {
			t.Fatalf("send: %v", err)
		}
		emoji := model.AllowedReactions[0]

		got, err := svc.ToggleReaction(ctx, b.ID, m.ID, emoji)
		if err != nil {
			t.Fatalf("toggle on: %v", err)
		}
		if len(got.Reactions) != 1 || got.Reactions[0].Emoji != emoji || got.Reactions[0].UserID != b.ID {
			t.Errorf("reactions = %+v, want one %s from b", got.Reactions, emoji)
		}
		if ev, ok := notifier.lastEvent(a.ID); !ok || ev.Event != EventReaction {
			t.Errorf("sender last event = %+v, want reaction", ev)
		}

		got, err = svc.ToggleReaction(ctx, b.ID, m.ID, emoji)
		if err != nil {
			t.Fatalf("toggle off: %v", err)
		}
		if len(got.Reactions) != 0 {
			t.Errorf("reactions after second toggle = %+v, want none", got.Reactions)
		}

		_, err = svc.ToggleReaction(ctx, b.ID, m.ID, "🦄")
		if apperr.CodeOf(err) != apperr.CodeValidation {
			t.Errorf("disallowed emoji: err = %v, want validation", err)
		}
		_, err = svc.ToggleReaction(ctx, outsider.ID, m.ID, emoji)
		if apperr.CodeOf(err) != apperr.CodePermission {
			t.Errorf("outsider: err = %v, want permission", err)
		}
	})

	t.Run("stars", func(t *testing.T) {
		svc := newTestService(pool, newFakeNotifier())
		a := testutil.SeedUser(t, pool, "star-a", false)
		b := testutil.SeedUser(t, pool, "star-b", false)

		m, err := svc.Send(ctx, a.ID, b.ID, SendInput{Text: "save this"})
		if err != nil {
			t.Fatalf("send: %v", err)
		}

		got, err := svc.ToggleStar(ctx, b.ID, m.ID)
		if err != nil {
			t.Fatalf("star: %v", err)
		}
		if len(got.StarredBy) != 1 || got.StarredBy[0] != b.ID {
			t.Errorf("starred by = %v, want [b]", got.StarredBy)
		}

		got, err = svc.ToggleStar(ctx, b.ID, m.ID)
		if err != nil {
			t.Fatalf("unstar: %v", err)
		}
		if len(got.StarredBy) != 0 {
			t.Errorf("starred by after unstar = %v, want none", got.StarredBy)
		}
	})

	t.Run("delete for me", func(t *testing.T) {
		svc := newTestService(pool, newFakeNotifier())
		a := testutil.SeedUser(t, pool, "delme-a", false)
		b := testutil.SeedUser(t, pool, "delme-b", false)

		m, err := svc.Send(ctx, a.ID, b.ID, SendInput{Text: "only for you"})
		if err != nil {
			t.Fatalf("send: %v", err)
		}
		if _, err := svc.Delete(ctx, b.ID, m.ID, false); err != nil {
			t.Fatalf("delete for me: %v", err)
		}

		bHistory, err := svc.History(ctx, b.ID, a.ID, 0)
		if err != nil {
			t.Fatalf("b history: %v", err)
		}
		if len(bHistory) != 0 {
			t.Errorf("b still sees %d messages, want 0", len(bHistory))
		}

		aHistory, err := svc.History(ctx, a.ID, b.ID, 0)
		if err != nil {
			t.Fatalf("a history: %v", err)
		}
		if len(aHistory) != 1 {
			t.Errorf("a sees %d messages, want 1", len(aHistory))
		}
	})

	t.Run("delete for everyone", func(t *testing.T) {
		notifier := newFakeNotifier()
		svc := newTestService(pool, notifier)
		a := testutil.SeedUser(t, pool, "deleveryone-a", false)
		b := testutil.SeedUser(t, pool, "deleveryone-b", false)

		m, err := svc.Send(ctx, a.ID, b.ID, SendInput{Text: "typo message"})
		if err != nil {
			t.Fatalf("send: %v", err)
		}

		// Only the sender may delete for everyone.
		_, err = svc.Delete(ctx, b.ID, m.ID, true)
		if apperr.CodeOf(err) != apperr.CodePermission {
			t.Fatalf("recipient delete: err = %v, want permission", err)
		}

		got, err := svc.Delete(ctx, a.ID, m.ID, true)
		if err != nil {
			t.Fatalf("sender delete: %v", err)
		}
		if !got.DeletedForEveryone {
			t.Error("not flagged deleted for everyone")
		}
		if got.Text != "" {
			t.Errorf("text not redacted: %q", got.Text)
		}
		if ev, ok := notifier.lastEvent(b.ID); !ok || ev.Event != EventMessageDeleted {
			t.Errorf("recipient last event = %+v, want message_deleted", ev)
		}

		// Redacted but still present in history as a tombstone.
		history, err := svc.History(ctx, b.ID, a.ID, 0)
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		if len(history) != 1 || history[0].Text != "" {
			t.Errorf("history = %+v, want one redacted message", history)
		}
	})

	t.Run("delete window expires", func(t *testing.T) {
		svc := newTestService(pool, newFakeNotifier())
		a := testutil.SeedUser(t, pool, "window-a", false)
		b := testutil.SeedUser(t, pool, "window-b", false)

		m, err := svc.Send(ctx, a.ID, b.ID, SendInput{Text: "old message"})
		if err != nil {
			t.Fatalf("send: %v", err)
		}
		if _, err := pool.Exec(ctx,
			`UPDATE messages SET created_at = now() - interval '25 hours' WHERE id = $1`, m.ID,
		); err != nil {
			t.Fatalf("backdate: %v", err)
		}

		_, err = svc.Delete(ctx, a.ID, m.ID, true)
		if apperr.CodeOf(err) != apperr.CodeExpired {
			t.Errorf("err = %v, want expired", err)
		}

		// Delete for me has no window.
		if _, err := svc.Delete(ctx, a.ID, m.ID, false); err != nil {
			t.Errorf("delete for me on old message: %v", err)
		}
	})

	t.Run("search", func(t *testing.T) {
		svc := newTestService(pool, newFakeNotifier())
		a := testutil.SeedUser(t, pool, "search-a", false)
		b := testutil.SeedUser(t, pool, "search-b", false)

		if _, err := svc.Send(ctx, a.ID, b.ID, SendInput{Text: "Leg day was brutal"}); err != nil {
			t.Fatalf("send: %v", err)
		}
		if _, err := svc.Send(ctx, b.ID, a.ID, SendInput{Text: "rest day tomorrow"}); err != nil {
			t.Fatalf("send: %v", err)
		}

		// Empty and whitespace queries return empty, never everything.
		for _, q := range []string{"", "   "} {
			got, err := svc.Search(ctx, a.ID, b.ID, q, 0)
			if err != nil {
				t.Fatalf("search %q: %v", q, err)
			}
			if got == nil || len(got) != 0 {
				t.Errorf("search %q = %v, want empty slice", q, got)
			}
		}

		got, err := svc.Search(ctx, a.ID, b.ID, "LEG DAY", 0)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if len(got) != 1 || got[0].Text != "Leg day was brutal" {
			t.Errorf("search result = %+v, want the leg day message", got)
		}
	})

	t.Run("connect reconciles delivery", func(t *testing.T) {
		svc := newTestService(pool, newFakeNotifier())
		a := testutil.SeedUser(t, pool, "conn-a", false)
		b := testutil.SeedUser(t, pool, "conn-b", false)
		msgRepo := repository.NewMessageRepository(pool)

		m, err := svc.Send(ctx, a.ID, b.ID, SendInput{Text: "queued while offline"})
		if err != nil {
			t.Fatalf("send: %v", err)
		}
		if err := svc.Connected(ctx, b.ID); err != nil {
			t.Fatalf("connected: %v", err)
		}

		got, err := msgRepo.GetByID(ctx, m.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Status != model.MessageStatusDelivered {
			t.Errorf("status = %q, want delivered", got.Status)
		}

		pub, err := svc.GetUser(ctx, b.ID)
		if err != nil {
			t.Fatalf("get user: %v", err)
		}
		if !pub.Online {
			t.Error("user not online right after connect")
		}
	})

	t.Run("conversation settings", func(t *testing.T) {
		svc := newTestService(pool, newFakeNotifier())
		a := testutil.SeedUser(t, pool, "settings-a", false)
		b := testutil.SeedUser(t, pool, "settings-b", false)

		pinned, err := svc.TogglePin(ctx, a.ID, b.ID)
		if err != nil {
			t.Fatalf("pin: %v", err)
		}
		if !pinned {
			t.Error("first pin toggle should pin")
		}
		pinned, err = svc.TogglePin(ctx, a.ID, b.ID)
		if err != nil {
			t.Fatalf("unpin: %v", err)
		}
		if pinned {
			t.Error("second pin toggle should unpin")
		}

		muted, err := svc.ToggleMute(ctx, a.ID, b.ID)
		if err != nil {
			t.Fatalf("mute: %v", err)
		}
		if !muted {
			t.Error("first mute toggle should mute")
		}

		if err := svc.SetWallpaper(ctx, a.ID, b.ID, "gym-bg"); err != nil {
			t.Fatalf("wallpaper: %v", err)
		}
		if err := svc.SetTone(ctx, a.ID, b.ID, "chime"); err != nil {
			t.Fatalf("tone: %v", err)
		}

		// Wallpaper and tone are shared: the other participant sees them too.
		summaries, err := svc.Conversations(ctx, b.ID)
		if err != nil {
			t.Fatalf("conversations: %v", err)
		}
		if len(summaries) != 1 {
			t.Fatalf("summaries len = %d, want 1", len(summaries))
		}
		if summaries[0].Wallpaper != "gym-bg" || summaries[0].Tone != "chime" {
			t.Errorf("wallpaper/tone = %q/%q, want gym-bg/chime", summaries[0].Wallpaper, summaries[0].Tone)
		}
		// Mute is per member.
		if summaries[0].Muted {
			t.Error("mute leaked to the other participant")
		}

		if _, err := svc.TogglePin(ctx, a.ID, a.ID); apperr.CodeOf(err) != apperr.CodeValidation {
			t.Errorf("self pin: err = %v, want validation", err)
		}
		if err := svc.SetTone(ctx, a.ID, "nobody", "x"); apperr.CodeOf(err) != apperr.CodeNotFound {
			t.Errorf("unknown user: err = %v, want not found", err)
		}
	})

	t.Run("pinned conversations sort first", func(t *testing.T) {
		svc := newTestService(pool, newFakeNotifier())
		me := testutil.SeedUser(t, pool, "sort-me", false)
		first := testutil.SeedUser(t, pool, "sort-first", false)
		second := testutil.SeedUser(t, pool, "sort-second", false)

		if _, err := svc.Send(ctx, me.ID, first.ID, SendInput{Text: "one"}); err != nil {
			t.Fatalf("send: %v", err)
		}
		if _, err := svc.Send(ctx, me.ID, second.ID, SendInput{Text: "two"}); err != nil {
			t.Fatalf("send: %v", err)
		}
		if _, err := svc.TogglePin(ctx, me.ID, first.ID); err != nil {
			t.Fatalf("pin: %v", err)
		}

		summaries, err := svc.Conversations(ctx, me.ID)
		if err != nil {
			t.Fatalf("conversations: %v", err)
		}
		if len(summaries) != 2 {
			t.Fatalf("summaries len = %d, want 2", len(summaries))
		}
		if summaries[0].OtherUser.ID != first.ID {
			t.Errorf("pinned conversation not first: got %s", summaries[0].OtherUser.Username)
		}
	})

	t.Run("concurrent first contact converges", func(t *testing.T) {
		svc := newTestService(pool, newFakeNotifier())
		a := testutil.SeedUser(t, pool, "race-a", false)
		b := testutil.SeedUser(t, pool, "race-b", false)

		var wg sync.WaitGroup
		errs := make(chan error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.Send(ctx, a.ID, b.ID, SendInput{Text: "from a"})
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := svc.Send(ctx, b.ID, a.ID, SendInput{Text: "from b"})
			errs <- err
		}()
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatalf("concurrent send: %v", err)
			}
		}

		var count int
		lo, hi := model.PairKey(a.ID, b.ID)
		if err := pool.QueryRow(ctx,
			`SELECT count(*) FROM conversations WHERE user_lo = $1 AND user_hi = $2`, lo, hi,
		).Scan(&count); err != nil {
			t.Fatalf("count: %v", err)
		}
		if count != 1 {
			t.Errorf("conversations = %d, want exactly 1", count)
		}
	})
}
