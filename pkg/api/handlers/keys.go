package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/urmzd/aquabridge/pkg/api/types"
	"github.com/urmzd/aquabridge/pkg/bridge"
	"github.com/urmzd/aquabridge/pkg/panel"
)

// KeyPresser queues keypad presses
type KeyPresser interface {
	PressKey(name, source string) error
}

// KeyHandler handles keypad endpoints
type KeyHandler struct {
	keys KeyPresser
}

// NewKeyHandler creates a new key handler
func NewKeyHandler(keys KeyPresser) *KeyHandler {
	return &KeyHandler{keys: keys}
}

// PressKey handles POST /key/:name
// @Summary      Press a key
// @Description  Queues a keypad press; it is sent during the panel's next write window
// @Tags         keypad
// @Produce      json
// @Param        name  path      string  true  "Key name, e.g. menu, left, plus"
// @Success      200   {object}  types.KeyResponse
// @Failure      400   {object}  types.KeyResponse  "Unknown key"
// @Router       /key/{name} [post]
func (h *KeyHandler) PressKey(c *gin.Context) {
	name := c.Param("name")

	if err := h.keys.PressKey(name, bridge.SourceHTTP); err != nil {
		status := http.StatusInternalServerError
		msg := err.Error()
		if errors.Is(err, panel.ErrUnknownKey) {
			status = http.StatusBadRequest
			msg = "unknown key: " + name
		}
		c.JSON(status, types.KeyResponse{OK: false, Error: msg})
		return
	}

	c.JSON(http.StatusOK, types.KeyResponse{OK: true})
}

// ListKeys handles GET /keys
// @Summary      List keys
// @Description  Returns every key name accepted by POST /key/{name}
// @Tags         keypad
// @Produce      json
// @Success      200  {object}  types.KeysResponse
// @Router       /keys [get]
func (h *KeyHandler) ListKeys(c *gin.Context) {
	c.JSON(http.StatusOK, types.KeysResponse{Keys: panel.KeyNames()})
}
