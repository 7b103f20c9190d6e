package realtime

import (
	"context"
	"log"
	"strconv"
	"strings"

	"teamchat/internal/presence"

	"github.com/redis/go-redis/v9"
)

// Hub routes broker notifications to the WebSocket connections of the user
// they are addressed to. A user can have several connections (multiple tabs
// or devices); all of them receive every payload for that user.
type Hub struct {
	clients    map[int]map[*Client]bool // keyed by user id
	Register   chan *Client
	Unregister chan *Client
	deliveries chan delivery
	redis      *redis.Client
	broker     presence.Broker
}

type delivery struct {
	userID  int
	payload []byte
}

func NewHub(redisClient *redis.Client, broker presence.Broker) *Hub {
	return &Hub{
		clients:    make(map[int]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		deliveries: make(chan delivery),
		redis:      redisClient,
		broker:     broker,
	}
}

// Run owns the client map. All access goes through the channels, so no
// locking is needed.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			if h.clients[client.UserID] == nil {
				h.clients[client.UserID] = make(map[*Client]bool)
				// First connection for this user: flip the presence key
				if err := h.broker.SetOnline(context.Background(), client.UserID); err != nil {
					log.Printf("presence set online failed for user %d: %v", client.UserID, err)
				}
			}
			h.clients[client.UserID][client] = true

		case client := <-h.Unregister:
			conns := h.clients[client.UserID]
			if conns == nil {
				continue
			}
			if _, ok := conns[client]; !ok {
				continue
			}
			delete(conns, client)
			close(client.Send)
			if len(conns) == 0 {
				delete(h.clients, client.UserID)
				if err := h.broker.SetOffline(context.Background(), client.UserID); err != nil {
					log.Printf("presence set offline failed for user %d: %v", client.UserID, err)
				}
			}

		case d := <-h.deliveries:
			for client := range h.clients[d.userID] {
				select {
				case client.Send <- d.payload:
				default:
					// Slow consumer; drop the connection rather than block the hub
					close(client.Send)
					delete(h.clients[d.userID], client)
				}
			}
		}
	}
}

// Deliver hands a payload to every connection of the given user.
func (h *Hub) Deliver(userID int, payload []byte) {
	h.deliveries <- delivery{userID: userID, payload: payload}
}

// SubscribeToRedis forwards fanout payloads published on the per-user
// channels, including those from other server instances.
func (h *Hub) SubscribeToRedis(ctx context.Context) {
	pubsub := h.redis.PSubscribe(ctx, "user_*")
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		id, err := strconv.Atoi(strings.TrimPrefix(msg.Channel, "user_"))
		if err != nil {
			continue
		}
		h.Deliver(id, []byte(msg.Payload))
	}
}
