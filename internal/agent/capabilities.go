package agent

// Capability describes one agent variant for discovery endpoints. The listing
// is static: it reflects construction defaults, not live server state.
type Capability struct {
	Type                  Type     `json:"type"`
	Description           string   `json:"description"`
	ToolsEnabledByDefault bool     `json:"toolsEnabledByDefault"`
	Capabilities          []string `json:"capabilities"`
}

// Capabilities returns the static variant catalog.
func Capabilities() []Capability {
	return []Capability{
		{
			Type:                  TypeChat,
			Description:           "General conversation, explanations, and analysis.",
			ToolsEnabledByDefault: false,
			Capabilities:          []string{"text_generation", "conversation"},
		},
		{
			Type:                  TypeSearch,
			Description:           "Web research with source citations.",
			ToolsEnabledByDefault: true,
			Capabilities:          []string{"text_generation", "conversation", "web_search", "mcp_enabled"},
		},
		{
			Type:                  TypeCustom,
			Description:           "Caller-supplied system prompt and tool servers.",
			ToolsEnabledByDefault: true,
			Capabilities:          []string{"text_generation", "custom_prompt", "mcp_enabled"},
		},
	}
}
