package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urmzd/aquabridge/pkg/api/types"
	"github.com/urmzd/aquabridge/pkg/bridge"
)

// StatusProvider reports bridge health
type StatusProvider interface {
	Health() bridge.Health
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	status StatusProvider
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(status StatusProvider) *HealthHandler {
	return &HealthHandler{status: status}
}

// Health handles GET /health
// @Summary      Health check
// @Description  Returns the health of the panel and MQTT connections
// @Tags         health
// @Produce      json
// @Success      200  {object}  types.HealthResponse  "Service is healthy"
// @Failure      503  {object}  types.HealthResponse  "Service is degraded"
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	s := h.status.Health()

	panelStatus := "disconnected"
	if s.PanelConnected {
		panelStatus = "connected"
	}
	mqttStatus := "disconnected"
	if s.MQTTConnected {
		mqttStatus = "connected"
	}

	status := "healthy"
	httpStatus := http.StatusOK

	if !s.Updating || !s.MQTTConnected {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, types.HealthResponse{
		Status:         status,
		Panel:          panelStatus,
		MQTT:           mqttStatus,
		Updating:       s.Updating,
		LastUpdateAge:  s.LastUpdateAge,
		QueuedKeys:     s.QueuedKeys,
		SystemMessages: s.SystemMessages,
		Timestamp:      time.Now(),
	})
}
