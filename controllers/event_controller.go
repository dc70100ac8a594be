package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/vnkhanh/coderoom-server/middleware"
	"github.com/vnkhanh/coderoom-server/realtime"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	maxEventBody   = 1 << 20
)

// Publisher hands events to the broadcast transport.
type Publisher interface {
	Publish(ctx context.Context, roomID string, actorID uint, p realtime.Payload) error
}

type EventController struct {
	events   Publisher
	hub      *realtime.Hub
	upgrader websocket.Upgrader
}

// NewEventController serves publishes through events. hub may be nil when
// subscribers are served by an external provider instead.
func NewEventController(events Publisher, hub *realtime.Hub, allowedOrigins []string) *EventController {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	return &EventController{
		events: events,
		hub:    hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins["*"] || origins[origin]
			},
		},
	}
}

// Publish returns a handler relaying the request body as an event of kind.
// The actor is always the authenticated caller.
func (e *EventController) Publish(kind realtime.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		room := middleware.CurrentRoom(c)

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxEventBody))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Cannot read request body"})
			return
		}
		payload, err := realtime.DecodePayload(kind, body)
		if err != nil {
			respondError(c, err)
			return
		}

		if err := e.events.Publish(c.Request.Context(), room.RoomID, middleware.CurrentUserID(c), payload); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// Subscribe upgrades to a websocket that streams the room channel.
// Incoming frames other than control frames are ignored.
func (e *EventController) Subscribe(c *gin.Context) {
	if e.hub == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"message": "Subscriptions are served by the realtime provider"})
		return
	}
	room := middleware.CurrentRoom(c)
	userID := middleware.CurrentUserID(c)

	conn, err := e.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		logrus.WithError(err).WithField("room_id", room.RoomID).Warn("WebSocket upgrade failed")
		return
	}

	sub := e.hub.Subscribe(realtime.ChannelName(room.RoomID))
	log := logrus.WithFields(logrus.Fields{"room_id": room.RoomID, "user_id": userID})
	log.Info("Subscriber connected")

	go writePump(conn, sub.C, log)
	readPump(conn, log)
	e.hub.Unsubscribe(sub)
	log.Info("Subscriber disconnected")
}

// readPump only services pongs and close frames; it returns when the peer
// goes away.
func readPump(conn *websocket.Conn, log *logrus.Entry) {
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithError(err).Warn("WebSocket read error")
			}
			return
		}
	}
}

// writePump forwards channel messages until the subscription closes or a
// write fails.
func writePump(conn *websocket.Conn, msgs <-chan realtime.Message, log *logrus.Entry) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-msgs:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscription ended"))
				return
			}
			frame, err := json.Marshal(msg)
			if err != nil {
				log.WithError(err).Error("Failed to encode realtime message")
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.WithError(err).Warn("Failed to write to websocket")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
