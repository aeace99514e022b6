package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urmzd/aquabridge/pkg/api/types"
	"github.com/urmzd/aquabridge/pkg/entity"
	"github.com/urmzd/aquabridge/pkg/panel"
	"github.com/urmzd/aquabridge/pkg/schema"
)

// EntityController lists and switches exposed entities
type EntityController interface {
	Entities() []entity.Descriptor
	SetEntity(ctx context.Context, key string, on bool) error
	State() json.RawMessage
}

// EntityHandler handles entity endpoints
type EntityHandler struct {
	entities  EntityController
	validator *schema.Validator
}

// NewEntityHandler creates a new entity handler
func NewEntityHandler(entities EntityController, validator *schema.Validator) *EntityHandler {
	return &EntityHandler{entities: entities, validator: validator}
}

// ListEntities handles GET /entities
// @Summary      List entities
// @Description  Returns every sensor, switch, light and button exposed to Home Assistant
// @Tags         entities
// @Produce      json
// @Success      200  {object}  types.ListEntitiesResponse
// @Router       /entities [get]
func (h *EntityHandler) ListEntities(c *gin.Context) {
	all := h.entities.Entities()
	out := make([]types.EntityResponse, 0, len(all))
	for _, d := range all {
		out = append(out, types.EntityResponse{
			Key:         d.Key,
			UniqueID:    d.UniqueID,
			Name:        d.Name,
			Kind:        string(d.Kind),
			DeviceClass: d.DeviceClass,
			Unit:        d.Unit,
		})
	}

	c.JSON(http.StatusOK, types.ListEntitiesResponse{
		Entities: out,
		Count:    len(out),
	})
}

// SetEntity handles POST /entities/:key
// @Summary      Switch an entity
// @Description  Turns an enabled switch or light on or off. The change is applied at the panel's next write window.
// @Tags         entities
// @Accept       json
// @Produce      json
// @Param        key      path      string                  true  "Entity key, e.g. l, f, aux1"
// @Param        request  body      types.SetEntityRequest  true  "Desired state"
// @Success      202      {object}  types.StateResponse
// @Failure      400      {object}  types.ErrorResponse  "Invalid request"
// @Failure      404      {object}  types.ErrorResponse  "Entity not found"
// @Failure      503      {object}  types.ErrorResponse  "Panel not connected"
// @Failure      500      {object}  types.ErrorResponse  "Panel error"
// @Router       /entities/{key} [post]
func (h *EntityHandler) SetEntity(c *gin.Context) {
	key := c.Param("key")
	ctx := c.Request.Context()

	var req map[string]any
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
		return
	}

	if err := h.validator.Validate(schema.SetEntity, req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	on := req["state"] == "ON"
	if err := h.entities.SetEntity(ctx, key, on); err != nil {
		var cfgErr *entity.ConfigError
		switch {
		case errors.As(err, &cfgErr):
			c.JSON(http.StatusNotFound, types.ErrorResponse{
				Error:   "not_found",
				Message: err.Error(),
			})
		case errors.Is(err, panel.ErrNotConnected):
			c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{
				Error:   "panel_disconnected",
				Message: err.Error(),
			})
		case errors.Is(err, panel.ErrUnsupported):
			c.JSON(http.StatusBadRequest, types.ErrorResponse{
				Error:   "unsupported",
				Message: err.Error(),
			})
		default:
			c.JSON(http.StatusInternalServerError, types.ErrorResponse{
				Error:   "panel_error",
				Message: err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusAccepted, types.StateResponse{
		State:     h.entities.State(),
		Timestamp: time.Now(),
	})
}
