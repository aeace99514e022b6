package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/urmzd/aquabridge/pkg/display"
)

const (
	heartbeatInterval = 30 * time.Second
	wsWriteWait       = 10 * time.Second
	wsPongWait        = 60 * time.Second
	wsPingPeriod      = (wsPongWait * 9) / 10
)

// DisplaySource provides the mirrored LCD and change notifications
type DisplaySource interface {
	Snapshot() display.Snapshot
	Subscribe() chan display.Snapshot
	Unsubscribe(ch chan display.Snapshot)
}

// DisplayHandler serves the display mirror
type DisplayHandler struct {
	display  DisplaySource
	upgrader websocket.Upgrader
}

// NewDisplayHandler creates a new display handler
func NewDisplayHandler(d DisplaySource) *DisplayHandler {
	return &DisplayHandler{
		display: d,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// GetDisplay handles GET /display
// @Summary      Get display
// @Description  Returns the last known LCD lines, blinking cells and LED flags
// @Tags         display
// @Produce      json
// @Success      200  {object}  display.Snapshot
// @Router       /display [get]
func (h *DisplayHandler) GetDisplay(c *gin.Context) {
	c.JSON(http.StatusOK, h.display.Snapshot())
}

// Events handles GET /events (SSE stream)
// @Summary      Subscribe to display updates
// @Description  Server-Sent Events stream carrying a display snapshot on every change
// @Tags         display
// @Produce      text/event-stream
// @Success      200  {string}  string  "SSE event stream"
// @Router       /events [get]
func (h *DisplayHandler) Events(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	updates := h.display.Subscribe()
	defer h.display.Unsubscribe(updates)

	sendSSEEvent(c.Writer, "display", h.display.Snapshot())
	c.Writer.Flush()

	clientGone := c.Request.Context().Done()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-clientGone:
			return

		case snap, ok := <-updates:
			if !ok {
				return
			}
			sendSSEEvent(c.Writer, "display", snap)
			c.Writer.Flush()

		case <-ticker.C:
			sendSSEEvent(c.Writer, "heartbeat", map[string]any{
				"timestamp": time.Now(),
			})
			c.Writer.Flush()
		}
	}
}

// sendSSEEvent writes an SSE event to the response
func sendSSEEvent(w io.Writer, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	io.WriteString(w, "event: "+eventType+"\n")
	io.WriteString(w, "data: "+string(jsonData)+"\n\n")
}

// WebSocket handles GET /ws
// @Summary      Display websocket
// @Description  Pushes a JSON display snapshot on connect and on every change
// @Tags         display
// @Success      101  {string}  string  "Switching protocols"
// @Router       /ws [get]
func (h *DisplayHandler) WebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	updates := h.display.Subscribe()
	defer h.display.Unsubscribe(updates)

	// The reader only handles control frames and notices the close.
	closed := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(snap display.Snapshot) error {
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(snap)
	}
	if err := write(h.display.Snapshot()); err != nil {
		return
	}

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if err := write(snap); err != nil {
				log.Debug().Err(err).Msg("Websocket write failed")
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
