package ws

import (
	"net/http"

	"handylink/pkg/auth"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict to the configured origins once the web client
		// domain is settled.
		return true
	},
}

// Handler upgrades authenticated clients onto the notification feed.
type Handler struct {
	hub        *Hub
	jwtManager *auth.JWTManager
	log        *logrus.Logger
}

func NewHandler(hub *Hub, jwtManager *auth.JWTManager, log *logrus.Logger) *Handler {
	return &Handler{hub: hub, jwtManager: jwtManager, log: log}
}

// HandleConnection authenticates via a token query parameter, since browser
// websocket clients cannot set an Authorization header.
func (h *Handler) HandleConnection(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Token is required",
		})
		return
	}

	claims, err := h.jwtManager.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Invalid token",
		})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithField("error", err).Error("WebSocket upgrade failed")
		return
	}

	client := &Client{
		hub:    h.hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		userID: claims.UserID,
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}
