package mcp

import "github.com/mark3labs/mcp-go/mcp"

// registerTools registers all MCP tools with the server
func (s *Server) registerTools() {
	// Health check
	s.mcpServer.AddTool(
		mcp.NewTool("get_health",
			mcp.WithDescription("Check panel liveness, MQTT connectivity and active Check System messages"),
		),
		s.handleGetHealth,
	)

	// Display
	s.mcpServer.AddTool(
		mcp.NewTool("get_display",
			mcp.WithDescription("Read the pool controller's LCD lines and LED flags"),
		),
		s.handleGetDisplay,
	)

	// State
	s.mcpServer.AddTool(
		mcp.NewTool("get_state",
			mcp.WithDescription("Get the state payload last published to MQTT (temperatures, switches, system messages)"),
		),
		s.handleGetState,
	)

	// Entities
	s.mcpServer.AddTool(
		mcp.NewTool("list_entities",
			mcp.WithDescription("List every sensor, switch, light and button exposed to Home Assistant"),
		),
		s.handleListEntities,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("set_entity",
			mcp.WithDescription("Turn an enabled switch or light on or off. Applied at the panel's next write window."),
			mcp.WithString("key",
				mcp.Required(),
				mcp.Description("Entity key from list_entities, e.g. l, f, aux1"),
			),
			mcp.WithString("state",
				mcp.Required(),
				mcp.Description("ON or OFF"),
				mcp.Enum("ON", "OFF"),
			),
		),
		s.handleSetEntity,
	)

	// Keypad
	s.mcpServer.AddTool(
		mcp.NewTool("press_key",
			mcp.WithDescription("Queue a keypad press, e.g. to navigate the controller menus"),
			mcp.WithString("name",
				mcp.Required(),
				mcp.Description("Key name: menu, left, right, plus, minus, pool_spa, filter, lights, service, aux_1..aux_14, valve_3, valve_4, heater_1"),
			),
		),
		s.handlePressKey,
	)
}
