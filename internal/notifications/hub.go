package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"myblog/internal/cache"
	"myblog/internal/models"
	"myblog/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	maxConnsPerArticle = 500
	maxTotalConns      = 10000

	// EventCommentCreated is the event type sent for each new comment.
	EventCommentCreated = "comment_created"
)

var (
	ErrTotalLimit   = errors.New("server connection limit reached")
	ErrArticleLimit = errors.New("article connection limit reached")
	ErrShuttingDown = errors.New("hub is shutting down")
)

var wsLogger = observability.NewWSLogger("comment hub")

// Event is the JSON frame delivered to subscribers.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// CommentEvent is the payload of EventCommentCreated.
type CommentEvent struct {
	ID        uint      `json:"id"`
	ArticleID uint      `json:"article_id"`
	UserID    uint      `json:"user_id"`
	Username  string    `json:"username"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// CommentHub maps article ids to the websocket clients watching them.
type CommentHub struct {
	mu         sync.RWMutex
	rooms      map[uint]map[*Client]struct{}
	totalConns int
	closed     bool
	notifier   *Notifier
}

// NewCommentHub creates a hub. With a Redis-backed notifier, published
// comments reach subscribers on every instance once StartWiring runs.
func NewCommentHub(notifier *Notifier) *CommentHub {
	return &CommentHub{
		rooms:    make(map[uint]map[*Client]struct{}),
		notifier: notifier,
	}
}

// Name returns a human-readable identifier for this hub.
func (h *CommentHub) Name() string { return "comment hub" }

// Register adds a subscriber for articleID.
func (h *CommentHub) Register(articleID, userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrShuttingDown
	}
	if h.totalConns >= maxTotalConns {
		return nil, ErrTotalLimit
	}
	room, ok := h.rooms[articleID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[articleID] = room
	}
	if len(room) >= maxConnsPerArticle {
		return nil, ErrArticleLimit
	}

	client := NewClient(h, conn, articleID, userID)
	room[client] = struct{}{}
	h.totalConns++
	observability.WebSocketConnectionsTotal.Inc()
	wsLogger.LogConnect(context.Background(), userID, client.room())
	return client, nil
}

// UnregisterClient removes the client and closes its send channel.
func (h *CommentHub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[client.ArticleID]
	if !ok {
		return
	}
	if _, exists := room[client]; !exists {
		return
	}
	delete(room, client)
	if len(room) == 0 {
		delete(h.rooms, client.ArticleID)
	}
	h.totalConns--
	close(client.Send)
	observability.WebSocketConnectionsTotal.Dec()
	wsLogger.LogDisconnect(context.Background(), client.UserID, client.room(), "unregistered")
}

// Subscribers returns how many clients watch articleID.
func (h *CommentHub) Subscribers(articleID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[articleID])
}

// Broadcast sends message to every local subscriber of articleID. A
// subscriber whose buffer is full is disconnected.
func (h *CommentHub) Broadcast(articleID uint, message []byte) {
	var slow []*Client
	h.mu.RLock()
	for c := range h.rooms[articleID] {
		if !c.TrySend(message) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.UnregisterClient(c)
	}
}

// PublishComment delivers a new comment. Through Redis when available so
// other instances see it, otherwise straight to local subscribers.
func (h *CommentHub) PublishComment(ctx context.Context, comment *models.Comment) error {
	payload, err := encodeCommentEvent(comment)
	if err != nil {
		return err
	}
	if h.notifier.Enabled() {
		if err := h.notifier.PublishArticle(ctx, comment.ArticleID, payload); err != nil {
			wsLogger.LogError(ctx, cache.CommentChannel(comment.ArticleID), err, EventCommentCreated)
			h.Broadcast(comment.ArticleID, payload)
			return err
		}
		return nil
	}
	h.Broadcast(comment.ArticleID, payload)
	return nil
}

func encodeCommentEvent(comment *models.Comment) ([]byte, error) {
	inner, err := json.Marshal(CommentEvent{
		ID:        comment.ID,
		ArticleID: comment.ArticleID,
		UserID:    comment.UserID,
		Username:  comment.User.Username,
		Body:      comment.Body,
		CreatedAt: comment.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal comment event: %w", err)
	}
	return json.Marshal(Event{Type: EventCommentCreated, Payload: inner})
}

// StartWiring forwards messages from the Redis pattern subscription to the
// local subscribers of the article named by the channel.
func (h *CommentHub) StartWiring(ctx context.Context) error {
	return h.notifier.StartPatternSubscriber(ctx, func(channel, payload string) {
		var articleID uint
		if _, err := fmt.Sscanf(channel, cache.CommentChannelFmt, &articleID); err != nil {
			wsLogger.LogError(ctx, channel, err, "route")
			return
		}
		h.Broadcast(articleID, []byte(payload))
	})
}

// Shutdown closes every connection and refuses new ones.
func (h *CommentHub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	for _, room := range h.rooms {
		for client := range room {
			// WritePump sends the close frame once Send is closed.
			close(client.Send)
			observability.WebSocketConnectionsTotal.Dec()
		}
	}
	h.rooms = make(map[uint]map[*Client]struct{})
	h.totalConns = 0
	return nil
}
