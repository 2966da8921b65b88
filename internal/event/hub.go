package event

import (
	"context"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
)

// AdminFeed is the feed system events are broadcast on.
const AdminFeed = "admin"

// Hub fans system events out to connected websocket clients. Redis
// pub/sub carries events across server instances.
type Hub struct {
	redis   *redis.Client
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	Feed string
	Send chan []byte
}

func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		redis:   redisClient,
		clients: map[string]map[*Client]struct{}{},
	}

	if redisClient != nil {
		go h.subscribeRedis()
	}
	return h
}

func (h *Hub) Register(feed string) *Client {
	client := &Client{
		Feed: feed,
		Send: make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[feed] == nil {
		h.clients[feed] = map[*Client]struct{}{}
	}
	h.clients[feed][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if feedClients, ok := h.clients[client.Feed]; ok {
		delete(feedClients, client)
		if len(feedClients) == 0 {
			delete(h.clients, client.Feed)
		}
	}
	// Sends hold the read lock, so nothing can write to Send once the
	// write lock is held here.
	close(client.Send)
}

func (h *Hub) Broadcast(feed string, payload []byte) {
	h.mu.RLock()
	for client := range h.clients[feed] {
		select {
		case client.Send <- payload:
		default:
		}
	}
	h.mu.RUnlock()

	if h.redis != nil {
		err := h.redis.Publish(context.Background(), redisChannel(feed), payload).Err()
		if err != nil {
			log.Printf("redis publish error: %v", err)
		}
	}
}

func (h *Hub) subscribeRedis() {
	ctx := context.Background()
	pubsub := h.redis.PSubscribe(ctx, "events:*:broadcast")
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		feed := feedFromChannel(msg.Channel)
		h.mu.RLock()
		for client := range h.clients[feed] {
			select {
			case client.Send <- []byte(msg.Payload):
			default:
			}
		}
		h.mu.RUnlock()
	}
}

func redisChannel(feed string) string {
	return "events:" + feed + ":broadcast"
}

func feedFromChannel(ch string) string {
	// events:{feed}:broadcast
	const prefix = "events:"
	const suffix = ":broadcast"
	if len(ch) <= len(prefix)+len(suffix) {
		return ""
	}
	return ch[len(prefix) : len(ch)-len(suffix)]
}
