package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urmzd/aquabridge/pkg/api/types"
	"github.com/urmzd/aquabridge/pkg/db"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// StateProvider exposes the last published state and active messages
type StateProvider interface {
	State() json.RawMessage
	ActiveMessages() []string
}

// StateHandler serves published state and history
type StateHandler struct {
	state    StateProvider
	messages db.MessageStore
	keys     db.KeyLog
}

// NewStateHandler creates a new state handler. messages and keys may be nil
// when history is disabled.
func NewStateHandler(state StateProvider, messages db.MessageStore, keys db.KeyLog) *StateHandler {
	return &StateHandler{state: state, messages: messages, keys: keys}
}

// GetState handles GET /state
// @Summary      Get state
// @Description  Returns the state payload last published to MQTT
// @Tags         state
// @Produce      json
// @Success      200  {object}  types.StateResponse
// @Failure      503  {object}  types.ErrorResponse  "No panel update received yet"
// @Router       /state [get]
func (h *StateHandler) GetState(c *gin.Context) {
	state := h.state.State()
	if state == nil {
		c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{
			Error:   "no_state",
			Message: "No panel update received yet",
		})
		return
	}

	c.JSON(http.StatusOK, types.StateResponse{
		State:     state,
		Timestamp: time.Now(),
	})
}

// Messages handles GET /messages
// @Summary      List system messages
// @Description  Returns the active Check System messages and, when history is enabled, every message seen
// @Tags         state
// @Produce      json
// @Param        limit  query     int  false  "Maximum history entries (default 50, max 500)"
// @Success      200    {object}  types.MessagesResponse
// @Failure      400    {object}  types.ErrorResponse  "Invalid limit"
// @Failure      500    {object}  types.ErrorResponse  "Database error"
// @Router       /messages [get]
func (h *StateHandler) Messages(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	resp := types.MessagesResponse{
		Active:  h.state.ActiveMessages(),
		History: []*db.SystemMessage{},
	}

	if h.messages != nil {
		history, err := h.messages.List(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, types.ErrorResponse{
				Error:   "database_error",
				Message: err.Error(),
			})
			return
		}
		resp.History = history
	}

	c.JSON(http.StatusOK, resp)
}

// Keypresses handles GET /keypresses
// @Summary      List keypresses
// @Description  Returns the most recent keypresses queued or sent to the panel
// @Tags         keypad
// @Produce      json
// @Param        limit  query     int  false  "Maximum entries (default 50, max 500)"
// @Success      200    {object}  types.KeypressesResponse
// @Failure      400    {object}  types.ErrorResponse  "Invalid limit"
// @Failure      404    {object}  types.ErrorResponse  "History disabled"
// @Failure      500    {object}  types.ErrorResponse  "Database error"
// @Router       /keypresses [get]
func (h *StateHandler) Keypresses(c *gin.Context) {
	if h.keys == nil {
		c.JSON(http.StatusNotFound, types.ErrorResponse{
			Error:   "history_disabled",
			Message: "Keypress history is not enabled",
		})
		return
	}

	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	keys, err := h.keys.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error:   "database_error",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, types.KeypressesResponse{
		Keypresses: keys,
		Count:      len(keys),
	})
}

func parseLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultHistoryLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > maxHistoryLimit {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid_limit",
			Message: "limit must be between 1 and 500",
		})
		return 0, false
	}
	return limit, true
}
