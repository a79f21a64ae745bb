package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	channelPrefix  = "tracking:"
	channelSuffix  = ":snapshots"
	publishTimeout = 2 * time.Second
	clientBuffer   = 64
)

// Hub fans live session snapshots out to websocket clients. With a Redis client
// it also relays them between API nodes; every node skips its own messages.
type Hub struct {
	redis   *redis.Client
	node    string
	logger  *slog.Logger
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex

	cancel context.CancelFunc
	done   chan struct{}
}

type Client struct {
	SessionID string
	Send      chan []byte
}

type envelope struct {
	Origin  string `json:"origin"`
	Payload []byte `json:"payload"`
}

func NewHub(redisClient *redis.Client, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		redis:   redisClient,
		node:    uuid.NewString(),
		logger:  logger,
		clients: map[string]map[*Client]struct{}{},
	}

	if redisClient != nil {
		ctx, cancel := context.WithCancel(context.Background())
		pubsub := redisClient.PSubscribe(ctx, redisChannel("*"))
		if _, err := pubsub.Receive(ctx); err != nil {
			logger.Error("redis subscribe failed, relaying locally only", "error", err)
			_ = pubsub.Close()
			cancel()
			return h
		}
		h.cancel = cancel
		h.done = make(chan struct{})
		go h.relay(ctx, pubsub)
	}
	return h
}

func (h *Hub) Register(sessionID string) *Client {
	return h.Attach(sessionID, nil)
}

// Attach registers a client whose first message is the session's current
// snapshot. The snapshot is read and queued under the hub lock, so every
// broadcast the client receives afterwards was delivered after that read.
func (h *Hub) Attach(sessionID string, current SnapshotSource) *Client {
	client := &Client{
		SessionID: sessionID,
		Send:      make(chan []byte, clientBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if current != nil {
		if payload, ok := current(sessionID); ok {
			client.Send <- payload
		}
	}
	if h.clients[sessionID] == nil {
		h.clients[sessionID] = map[*Client]struct{}{}
	}
	h.clients[sessionID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessionClients, ok := h.clients[client.SessionID]
	if !ok {
		return
	}
	if _, ok := sessionClients[client]; !ok {
		return
	}
	delete(sessionClients, client)
	if len(sessionClients) == 0 {
		delete(h.clients, client.SessionID)
	}
	close(client.Send)
}

// Subscribers returns how many local clients watch sessionID.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

func (h *Hub) Broadcast(sessionID string, payload []byte) {
	h.deliver(sessionID, payload)

	if h.redis == nil {
		return
	}
	msg, err := json.Marshal(envelope{Origin: h.node, Payload: payload})
	if err != nil {
		h.logger.Error("encode snapshot envelope", "session_id", sessionID, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := h.redis.Publish(ctx, redisChannel(sessionID), msg).Err(); err != nil {
		h.logger.Warn("redis publish failed", "session_id", sessionID, "error", err)
	}
}

// Close stops the Redis relay. Local delivery keeps working.
func (h *Hub) Close() {
	if h.cancel == nil {
		return
	}
	h.cancel()
	<-h.done
}

// deliver holds the read lock while sending so Unregister cannot close a channel mid-send.
func (h *Hub) deliver(sessionID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[sessionID] {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) relay(ctx context.Context, pubsub *redis.PubSub) {
	defer close(h.done)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				h.logger.Warn("dropping malformed relay message", "channel", msg.Channel, "error", err)
				continue
			}
			if env.Origin == h.node {
				continue
			}
			if sessionID := sessionIDFromChannel(msg.Channel); sessionID != "" {
				h.deliver(sessionID, env.Payload)
			}
		}
	}
}

func redisChannel(sessionID string) string {
	return channelPrefix + sessionID + channelSuffix
}

func sessionIDFromChannel(ch string) string {
	// tracking:{session}:snapshots
	if len(ch) <= len(channelPrefix)+len(channelSuffix) ||
		!strings.HasPrefix(ch, channelPrefix) || !strings.HasSuffix(ch, channelSuffix) {
		return ""
	}
	return strings.TrimSuffix(strings.TrimPrefix(ch, channelPrefix), channelSuffix)
}
