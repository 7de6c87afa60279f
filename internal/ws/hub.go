// Package ws is the presence and realtime channel layer: one hub per process,
// connections keyed by user id (a user may hold several at once). The hub is
// a dumb pipe — validation and fan-out decisions belong to the delivery
// coordinator, which addresses users through the chat.Notifier interface the
// hub implements.
package ws

import (
	"context"
	"sync"
	"time"

	"github.com/fitgram/internal/apperr"
	"github.com/fitgram/internal/chat"
	"github.com/fitgram/internal/logger"
)

type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	total   int

	maxConns    int
	sendBufSize int
	svc         *chat.Service

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(maxConns, sendBufSize int) *Hub {
	if maxConns <= 0 {
		maxConns = 10000
	}
	return &Hub{
		clients:     make(map[string]map[*Client]struct{}),
		maxConns:    maxConns,
		sendBufSize: sendBufSize,
		register:    make(chan *Client, 64),
		unregister:  make(chan *Client, 64),
		done:        make(chan struct{}),
	}
}

// SetService binds the delivery coordinator. Separate from the constructor
// because the hub and the service reference each other.
func (h *Hub) SetService(svc *chat.Service) {
	h.svc = svc
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) shutdown() {
	// Collect clients under the lock; network I/O happens outside it.
	h.mu.Lock()
	allClients := make([]*Client, 0, h.total)
	for _, clients := range h.clients {
		for c := range clients {
			allClients = append(allClients, c)
		}
	}
	h.clients = make(map[string]map[*Client]struct{})
	h.total = 0
	h.mu.Unlock()

	for _, c := range allClients {
		c.Close()
	}
	for _, c := range allClients {
		c.Wait()
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	if h.total >= h.maxConns {
		h.mu.Unlock()
		logger.Errorf("ws connection limit reached (%d), rejecting user=%s", h.maxConns, c.userID)
		c.Close()
		return
	}
	if _, ok := h.clients[c.userID]; !ok {
		h.clients[c.userID] = make(map[*Client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
	h.total++
	h.mu.Unlock()

	// Stamp last_seen and reconcile queued messages to delivered.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.svc.Connected(ctx, c.userID); err != nil {
		logger.Errorf("ws connected user=%s: %v", c.userID, err)
	}
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	clients, ok := h.clients[c.userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, exists := clients[c]; !exists {
		h.mu.Unlock()
		return
	}
	delete(clients, c)
	h.total--
	lastClient := len(clients) == 0
	if lastClient {
		delete(h.clients, c.userID)
	}
	h.mu.Unlock()

	c.Close()

	if lastClient {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.svc.Disconnected(ctx, c.userID); err != nil {
			logger.Errorf("ws disconnected user=%s: %v", c.userID, err)
		}
	}
}

// HandleEvent dispatches a validated inbound event to the coordinator.
func (h *Hub) HandleEvent(ctx context.Context, c *Client, ev IncomingEvent) {
	switch ev.Type {
	case chat.EventMessage:
		h.handleMessage(ctx, c, ev)
	case chat.EventTyping:
		h.handleTyping(c, ev)
	case chat.EventRead:
		h.handleRead(ctx, c, ev)
	default:
		h.sendToClient(c, OutgoingEvent{Type: eventError, Payload: "unknown event type"})
	}
}

func (h *Hub) handleMessage(ctx context.Context, c *Client, ev IncomingEvent) {
	defer logger.DeferLogDuration("ws.handleMessage", time.Now())()
	if ev.To == "" {
		h.sendToClient(c, OutgoingEvent{Type: eventError, Payload: "to required"})
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// The coordinator fans the persisted message out to both participants,
	// including this connection.
	_, err := h.svc.Send(ctx, c.userID, ev.To, chat.SendInput{
		Text:          ev.Text,
		Type:          ev.ContentType,
		MediaURL:      ev.MediaURL,
		Caption:       ev.Caption,
		ReplyTo:       ev.ReplyTo,
		ForwardedFrom: ev.ForwardedFrom,
	})
	if err != nil {
		h.sendToClient(c, OutgoingEvent{Type: eventError, Payload: errorPayload(err)})
	}
}

func (h *Hub) handleTyping(c *Client, ev IncomingEvent) {
	if ev.To == "" {
		return
	}
	h.svc.Typing(c.userID, ev.To, ev.IsTyping)
}

func (h *Hub) handleRead(ctx context.Context, c *Client, ev IncomingEvent) {
	if ev.From == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := h.svc.MarkRead(ctx, c.userID, ev.From); err != nil {
		logger.Errorf("ws read user=%s from=%s: %v", c.userID, ev.From, err)
	}
}

// NotifyUser implements chat.Notifier: deliver to every connection of userID,
// reporting whether any connection received the event.
func (h *Hub) NotifyUser(userID string, event string, payload any) bool {
	h.mu.RLock()
	clients, ok := h.clients[userID]
	if !ok {
		h.mu.RUnlock()
		return false
	}
	targets := make([]*Client, 0, len(clients))
	for c := range clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	out := OutgoingEvent{Type: event, Payload: payload}
	for _, c := range targets {
		h.sendToClient(c, out)
	}
	return len(targets) > 0
}

func (h *Hub) sendToClient(c *Client, ev OutgoingEvent) {
	select {
	case c.send <- ev:
	case <-c.done:
	default:
		// Backpressure: send buffer full, close the slow client.
		logger.Errorf("ws send buffer full, closing slow client user=%s", c.userID)
		c.Close()
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// errorPayload maps an error to a client-safe message, hiding internals.
func errorPayload(err error) string {
	return apperr.MessageOf(err)
}
