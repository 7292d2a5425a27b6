package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"stampchat/auth"
	"stampchat/composition"
	"stampchat/domain"
	"stampchat/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades authenticated viewers and routes their frames to the chat
// service. Each connection tracks its own group subscriptions so a dropped
// socket releases every sink it registered.
type Handler struct {
	chat   services.IChatService
	tokens *auth.TokenManager
	log    *slog.Logger
}

func NewHandler(chat services.IChatService, tokens *auth.TokenManager, log *slog.Logger) *Handler {
	return &Handler{chat: chat, tokens: tokens, log: log}
}

// connState is the per-connection subscription bookkeeping.
type connState struct {
	mu     sync.Mutex
	user   domain.UserContext
	groups map[uuid.UUID]struct{}
}

func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authenticate(r)
	if !ok {
		http.Error(w, "invalid or missing token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(user.UserID, conn, h.log)
	state := &connState{user: user, groups: make(map[uuid.UUID]struct{})}

	// The request context dies as soon as this handler returns, but the
	// hijacked connection lives on. Frames run against the connection's own
	// context, cancelled when the read pump tears down.
	connCtx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))

	h.log.Info("Viewer connected", "user_id", user.UserID)
	go client.WritePump()
	go client.ReadPump(
		func(c *Client, raw []byte) { h.handleFrame(connCtx, c, state, raw) },
		func(c *Client) {
			cancel()
			h.teardown(c, state)
		},
	)
}

// The token rides a query parameter: browsers cannot set headers on
// websocket dials.
func (h *Handler) authenticate(r *http.Request) (domain.UserContext, bool) {
	claims, err := h.tokens.Validate(r.URL.Query().Get("token"))
	if err != nil {
		return domain.UserContext{}, false
	}
	return domain.UserContext{UserID: claims.UserID}, true
}

func (h *Handler) handleFrame(ctx context.Context, client *Client, state *connState, raw []byte) {
	var frame InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		client.Enqueue(ErrorFrame{Type: TypeError, Error: "invalid frame"})
		return
	}

	switch frame.Type {
	case TypeSubscribe:
		h.handleSubscribe(ctx, client, state, frame.GroupID)

	case TypeUnsubscribe:
		h.chat.Unsubscribe(state.user, frame.GroupID)
		state.mu.Lock()
		delete(state.groups, frame.GroupID)
		state.mu.Unlock()

	case TypePost:
		h.handlePost(ctx, client, state, frame)

	case TypePing:
		client.Enqueue(map[string]string{"type": TypePong})

	default:
		client.Enqueue(ErrorFrame{Type: TypeError, Error: "unknown frame type"})
	}
}

// handleSubscribe registers the live sink and replies with the snapshot.
// The sink holds back live frames until the snapshot frame is enqueued, so
// the viewer always sees snapshot first even when another sender appends
// during registration.
func (h *Handler) handleSubscribe(ctx context.Context, client *Client,
	state *connState, groupID uuid.UUID) {
	sink := NewSink(client, groupID)
	snapshot, err := h.chat.Subscribe(ctx, state.user, groupID, sink)
	if err != nil {
		client.Enqueue(ErrorFrame{Type: TypeError, Error: err.Error()})
		return
	}

	state.mu.Lock()
	state.groups[groupID] = struct{}{}
	state.mu.Unlock()

	client.Enqueue(SnapshotFrame{
		Type:     TypeSnapshot,
		GroupID:  groupID,
		Messages: toPayloads(snapshot),
	})
	sink.Open()
}

func (h *Handler) handlePost(ctx context.Context, client *Client,
	state *connState, frame InboundFrame) {
	draft := composition.Draft{
		Body:           frame.Body,
		Stamp:          frame.Stamp,
		StampCursor:    frame.StampCursor,
		AttachmentRef:  frame.AttachmentRef,
		AttachmentKind: domain.AttachmentKind(frame.AttachmentKind),
	}

	if _, err := h.chat.SendMessage(ctx, state.user, frame.GroupID, draft); err != nil {
		client.Enqueue(ErrorFrame{Type: TypeError, Error: err.Error()})
	}
	// The sender sees the durable message through its own subscription,
	// like every other viewer.
}

func (h *Handler) teardown(client *Client, state *connState) {
	state.mu.Lock()
	groups := make([]uuid.UUID, 0, len(state.groups))
	for groupID := range state.groups {
		groups = append(groups, groupID)
	}
	state.groups = make(map[uuid.UUID]struct{})
	state.mu.Unlock()

	for _, groupID := range groups {
		h.chat.Unsubscribe(state.user, groupID)
	}
	client.Close()
	h.log.Info("Viewer disconnected", "user_id", client.UserID)
}
