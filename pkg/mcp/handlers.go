package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/urmzd/aquabridge/pkg/bridge"
	"github.com/urmzd/aquabridge/pkg/schema"
)

func (s *Server) handleGetHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	h := s.bridge.Health()

	panelStatus := "disconnected"
	if h.PanelConnected {
		panelStatus = "connected"
	}
	mqttStatus := "disconnected"
	if h.MQTTConnected {
		mqttStatus = "connected"
	}

	status := "healthy"
	if !h.Updating || !h.MQTTConnected {
		status = "unhealthy"
	}

	out := GetHealthOutput{
		Status:         status,
		Panel:          panelStatus,
		MQTT:           mqttStatus,
		LastUpdateAge:  h.LastUpdateAge,
		SystemMessages: h.SystemMessages,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
	}

	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleGetDisplay(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.display == nil {
		return mcp.NewToolResultError("display mirror is not available"), nil
	}
	return mcp.NewToolResultText(formatJSON(s.display.Snapshot())), nil
}

func (s *Server) handleGetState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state := s.bridge.State()
	if state == nil {
		return mcp.NewToolResultError("no panel update received yet"), nil
	}
	return mcp.NewToolResultText(formatJSON(GetStateOutput{State: state})), nil
}

func (s *Server) handleListEntities(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	all := s.bridge.Entities()
	infos := make([]EntityInfo, 0, len(all))
	for _, d := range all {
		infos = append(infos, EntityToInfo(d))
	}

	out := ListEntitiesOutput{
		Entities: infos,
		Count:    len(infos),
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleSetEntity(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	if s.validator != nil {
		if err := s.validator.Validate(schema.EntityCommand, args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("validation error: %s", err)), nil
		}
	}

	key, err := requiredString(request, "key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	state, err := requiredString(request, "state")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.bridge.SetEntity(ctx, key, state == "ON"); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to set entity: %s", err)), nil
	}

	out := SetEntityOutput{
		Key:     key,
		State:   state,
		Message: "State change requested",
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handlePressKey(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := requiredString(request, "name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.bridge.PressKey(name, bridge.SourceMCP); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to press key: %s", err)), nil
	}

	out := PressKeyOutput{
		Success: true,
		Message: fmt.Sprintf("Key %q queued for the next write window", name),
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

// --- helpers ---

func requiredString(request mcp.CallToolRequest, key string) (string, error) {
	args := request.GetArguments()
	v, ok := args[key]
	if !ok || v == nil {
		return "", fmt.Errorf("required parameter %q is missing", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("parameter %q must be a non-empty string", key)
	}
	return s, nil
}

func formatJSON(v any) string {
	b, err := encodeJSON(v)
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal response: %s"}`, err)
	}
	return string(b)
}

func encodeJSON(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
