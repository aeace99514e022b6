package types

import (
	"encoding/json"
	"time"

	"github.com/urmzd/aquabridge/pkg/db"
)

// --- Request DTOs ---

// SetEntityRequest is the request body for POST /entities/:key
type SetEntityRequest struct {
	State string `json:"state"`
}

// --- Response DTOs ---

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// KeyResponse is returned from POST /key/:name
type KeyResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// KeysResponse is returned from GET /keys
type KeysResponse struct {
	Keys []string `json:"keys"`
}

// HealthResponse is returned from GET /health
type HealthResponse struct {
	Status         string    `json:"status"`
	Panel          string    `json:"panel"`
	MQTT           string    `json:"mqtt"`
	Updating       bool      `json:"updating"`
	LastUpdateAge  float64   `json:"last_update_age_seconds"`
	QueuedKeys     int       `json:"queued_keys"`
	SystemMessages []string  `json:"system_messages"`
	Timestamp      time.Time `json:"timestamp"`
}

// EntityResponse describes one exposed entity
type EntityResponse struct {
	Key         string `json:"key"`
	UniqueID    string `json:"unique_id"`
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	DeviceClass string `json:"device_class,omitempty"`
	Unit        string `json:"unit,omitempty"`
}

// ListEntitiesResponse is returned from GET /entities
type ListEntitiesResponse struct {
	Entities []EntityResponse `json:"entities"`
	Count    int              `json:"count"`
}

// StateResponse is returned from GET /state and POST /entities/:key
type StateResponse struct {
	State     json.RawMessage `json:"state"`
	Timestamp time.Time       `json:"timestamp"`
}

// MessagesResponse is returned from GET /messages
type MessagesResponse struct {
	Active  []string            `json:"active"`
	History []*db.SystemMessage `json:"history"`
}

// KeypressesResponse is returned from GET /keypresses
type KeypressesResponse struct {
	Keypresses []*db.Keypress `json:"keypresses"`
	Count      int            `json:"count"`
}
