package ws

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message is the envelope sent to connected clients.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub tracks connected clients per user and fans notifications out to them.
// A user can have several connections (browser tabs, phone).
type Hub struct {
	clients map[primitive.ObjectID]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	mutex sync.RWMutex
	log   *logrus.Logger
}

func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[primitive.ObjectID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			if h.clients[client.userID] == nil {
				h.clients[client.userID] = make(map[*Client]bool)
			}
			h.clients[client.userID][client] = true
			h.mutex.Unlock()
			h.log.WithField("user_id", client.userID.Hex()).Debug("Feed client connected")

		case client := <-h.unregister:
			h.mutex.Lock()
			if clients, ok := h.clients[client.userID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.clients, client.userID)
					}
				}
			}
			h.mutex.Unlock()
			h.log.WithField("user_id", client.userID.Hex()).Debug("Feed client disconnected")
		}
	}
}

// NotifyUser sends a notification payload to every connection the user has.
// Slow clients are dropped rather than blocking the sender.
func (h *Hub) NotifyUser(userID primitive.ObjectID, payload interface{}) {
	h.mutex.RLock()
	clients := h.clients[userID]
	h.mutex.RUnlock()

	if len(clients) == 0 {
		return
	}

	message, err := json.Marshal(Message{
		Type: "notification",
		Data: payload,
	})
	if err != nil {
		h.log.WithField("error", err).Error("Failed to marshal feed message")
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range clients {
		select {
		case client.send <- message:
		default:
			close(client.send)
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.clients, userID)
			}
		}
	}
}
