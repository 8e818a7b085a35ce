package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/PixelPet-dev/xlayerslot/presentation"
)

const (
	eventTypeConnected = "connected"
	eventTypeFeed      = "feed"
	eventTypeHeartbeat = "heartbeat"
)

// FeedHandler streams presentation events (spins, reveals) over SSE and
// WebSocket.
type FeedHandler struct {
	feed            *presentation.Feed
	logger          zerolog.Logger
	heartbeatPeriod time.Duration
	upgrader        websocket.Upgrader
}

func NewFeedHandler(app *App, feed *presentation.Feed) *FeedHandler {
	return &FeedHandler{
		feed:            feed,
		logger:          app.logger.With().Str("handler", "feed").Logger(),
		heartbeatPeriod: 30 * time.Second,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

type feedFrame struct {
	Type      string              `json:"type"`
	Timestamp int64               `json:"timestamp"`
	Event     *presentation.Event `json:"event,omitempty"`
}

// StreamSSE streams feed events as server-sent events.
// Route: GET /api/game/feed
func (h *FeedHandler) StreamSSE(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		return
	}

	events, cancel := h.feed.Listen(c.Request.Context())
	defer cancel()

	writeFrame := func(frame feedFrame) bool {
		data, err := json.Marshal(frame)
		if err != nil {
			return false
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	writeFrame(feedFrame{Type: eventTypeConnected, Timestamp: time.Now().Unix()})

	heartbeat := time.NewTicker(h.heartbeatPeriod)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-heartbeat.C:
			if !writeFrame(feedFrame{Type: eventTypeHeartbeat, Timestamp: time.Now().Unix()}) {
				return
			}
		case ev, open := <-events:
			if !open {
				return
			}
			if !writeFrame(feedFrame{Type: eventTypeFeed, Timestamp: time.Now().Unix(), Event: &ev}) {
				return
			}
		}
	}
}

// StreamWebSocket streams feed events over a websocket.
// Route: GET /api/game/feed/ws
func (h *FeedHandler) StreamWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	events, cancel := h.feed.Listen(c.Request.Context())
	defer cancel()

	// Drain client frames so close frames and pings are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	writeFrame := func(frame feedFrame) bool {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(frame) == nil
	}

	writeFrame(feedFrame{Type: eventTypeConnected, Timestamp: time.Now().Unix()})

	heartbeat := time.NewTicker(h.heartbeatPeriod)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-heartbeat.C:
			if !writeFrame(feedFrame{Type: eventTypeHeartbeat, Timestamp: time.Now().Unix()}) {
				return
			}
		case ev, open := <-events:
			if !open {
				return
			}
			if !writeFrame(feedFrame{Type: eventTypeFeed, Timestamp: time.Now().Unix(), Event: &ev}) {
				return
			}
		}
	}
}
