// Package docs registers the OpenAPI description served at /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/display": {
            "get": {
                "description": "Returns the last known LCD lines, blinking cells and LED flags",
                "produces": ["application/json"],
                "tags": ["display"],
                "summary": "Get display",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/display.Snapshot"}}
                }
            }
        },
        "/events": {
            "get": {
                "description": "Server-Sent Events stream carrying a display snapshot on every change",
                "produces": ["text/event-stream"],
                "tags": ["display"],
                "summary": "Subscribe to display updates",
                "responses": {
                    "200": {"description": "SSE event stream", "schema": {"type": "string"}}
                }
            }
        },
        "/ws": {
            "get": {
                "description": "Pushes a JSON display snapshot on connect and on every change",
                "tags": ["display"],
                "summary": "Display websocket",
                "responses": {
                    "101": {"description": "Switching protocols", "schema": {"type": "string"}}
                }
            }
        },
        "/keys": {
            "get": {
                "description": "Returns every key name accepted by POST /key/{name}",
                "produces": ["application/json"],
                "tags": ["keypad"],
                "summary": "List keys",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.KeysResponse"}}
                }
            }
        },
        "/key/{name}": {
            "post": {
                "description": "Queues a keypad press; it is sent during the panel's next write window",
                "produces": ["application/json"],
                "tags": ["keypad"],
                "summary": "Press a key",
                "parameters": [
                    {"type": "string", "description": "Key name, e.g. menu, left, plus", "name": "name", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.KeyResponse"}},
                    "400": {"description": "Unknown key", "schema": {"$ref": "#/definitions/types.KeyResponse"}}
                }
            }
        },
        "/keypresses": {
            "get": {
                "description": "Returns the most recent keypresses queued or sent to the panel",
                "produces": ["application/json"],
                "tags": ["keypad"],
                "summary": "List keypresses",
                "parameters": [
                    {"type": "integer", "description": "Maximum entries (default 50, max 500)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.KeypressesResponse"}},
                    "400": {"description": "Invalid limit", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "404": {"description": "History disabled", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "500": {"description": "Database error", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/state": {
            "get": {
                "description": "Returns the state payload last published to MQTT",
                "produces": ["application/json"],
                "tags": ["state"],
                "summary": "Get state",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StateResponse"}},
                    "503": {"description": "No panel update received yet", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/messages": {
            "get": {
                "description": "Returns the active Check System messages and, when history is enabled, every message seen",
                "produces": ["application/json"],
                "tags": ["state"],
                "summary": "List system messages",
                "parameters": [
                    {"type": "integer", "description": "Maximum history entries (default 50, max 500)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.MessagesResponse"}},
                    "400": {"description": "Invalid limit", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "500": {"description": "Database error", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/entities": {
            "get": {
                "description": "Returns every sensor, switch, light and button exposed to Home Assistant",
                "produces": ["application/json"],
                "tags": ["entities"],
                "summary": "List entities",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ListEntitiesResponse"}}
                }
            }
        },
        "/entities/{key}": {
            "post": {
                "description": "Turns an enabled switch or light on or off. The change is applied at the panel's next write window.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["entities"],
                "summary": "Switch an entity",
                "parameters": [
                    {"type": "string", "description": "Entity key, e.g. l, f, aux1", "name": "key", "in": "path", "required": true},
                    {"description": "Desired state", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.SetEntityRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/types.StateResponse"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "404": {"description": "Entity not found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "500": {"description": "Panel error", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "Panel not connected", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/health": {
            "get": {
                "description": "Returns the health of the panel and MQTT connections",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "Service is healthy", "schema": {"$ref": "#/definitions/types.HealthResponse"}},
                    "503": {"description": "Service is degraded", "schema": {"$ref": "#/definitions/types.HealthResponse"}}
                }
            }
        }
    },
    "definitions": {
        "display.Snapshot": {
            "type": "object",
            "properties": {
                "blink": {"type": "array", "items": {"type": "array", "items": {"type": "integer"}}},
                "leds": {"type": "object", "additionalProperties": {"type": "boolean"}},
                "lines": {"type": "array", "items": {"type": "string"}},
                "updatedAt": {"type": "string"}
            }
        },
        "db.Keypress": {
            "type": "object",
            "properties": {
                "at": {"type": "string"},
                "id": {"type": "integer"},
                "key": {"type": "string"},
                "result": {"type": "string"},
                "source": {"type": "string"}
            }
        },
        "db.SystemMessage": {
            "type": "object",
            "properties": {
                "count": {"type": "integer"},
                "first_seen": {"type": "string"},
                "last_seen": {"type": "string"},
                "text": {"type": "string"}
            }
        },
        "types.EntityResponse": {
            "type": "object",
            "properties": {
                "device_class": {"type": "string"},
                "key": {"type": "string"},
                "kind": {"type": "string"},
                "name": {"type": "string"},
                "unique_id": {"type": "string"},
                "unit": {"type": "string"}
            }
        },
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "types.HealthResponse": {
            "type": "object",
            "properties": {
                "last_update_age_seconds": {"type": "number"},
                "mqtt": {"type": "string"},
                "panel": {"type": "string"},
                "queued_keys": {"type": "integer"},
                "status": {"type": "string"},
                "system_messages": {"type": "array", "items": {"type": "string"}},
                "timestamp": {"type": "string"},
                "updating": {"type": "boolean"}
            }
        },
        "types.KeyResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "ok": {"type": "boolean"}
            }
        },
        "types.KeysResponse": {
            "type": "object",
            "properties": {
                "keys": {"type": "array", "items": {"type": "string"}}
            }
        },
        "types.KeypressesResponse": {
            "type": "object",
            "properties": {
                "count": {"type": "integer"},
                "keypresses": {"type": "array", "items": {"$ref": "#/definitions/db.Keypress"}}
            }
        },
        "types.ListEntitiesResponse": {
            "type": "object",
            "properties": {
                "count": {"type": "integer"},
                "entities": {"type": "array", "items": {"$ref": "#/definitions/types.EntityResponse"}}
            }
        },
        "types.MessagesResponse": {
            "type": "object",
            "properties": {
                "active": {"type": "array", "items": {"type": "string"}},
                "history": {"type": "array", "items": {"$ref": "#/definitions/db.SystemMessage"}}
            }
        },
        "types.SetEntityRequest": {
            "type": "object",
            "properties": {
                "state": {"type": "string", "enum": ["ON", "OFF"]}
            }
        },
        "types.StateResponse": {
            "type": "object",
            "properties": {
                "state": {"type": "object"},
                "timestamp": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api",
	Schemes:          []string{"http", "https"},
	Title:            "aquabridge API",
	Description:      "Web UI API for an AquaLogic pool controller bridged to MQTT",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
