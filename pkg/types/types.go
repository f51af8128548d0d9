// Package types defines the shared wire types used across narrator packages.
//
// These types form the lingua franca between the AI provider abstraction, the
// bus, and the pipelines built on top of it. They are intentionally minimal —
// each package defines its own domain types, but cross-cutting data structures
// live here to avoid circular imports.
package types

// Message represents a single message in an LLM conversation history.
type Message struct {
	// Role is one of "system", "user", "assistant", or "tool".
	Role string

	// Content is the text content of the message.
	Content string

	// Name is an optional participant name (for multi-speaker contexts).
	Name string

	// ToolCalls contains any tool invocations requested by the assistant.
	ToolCalls []ToolCall

	// ToolCallID is set when Role is "tool", identifying which tool call this responds to.
	ToolCallID string
}

// ToolCall represents a tool/function invocation requested by the LLM.
type ToolCall struct {
	// ID is the unique identifier for this tool call (provider-assigned).
	ID string

	// Name is the tool/function name.
	Name string

	// Arguments is the JSON-encoded arguments string.
	Arguments string
}

// ToolDefinition describes a tool that can be offered to an LLM.
//
// narrator never offers tools to its AI provider (the call is a single
// opaque text-in/text-out exchange — see pkg/provider/llm), but the type is
// kept because the anyllm/openai backends still shape their requests around
// it and a future caller may legitimately want to pass one through.
type ToolDefinition struct {
	// Name is the tool's unique identifier.
	Name string

	// Description explains what the tool does (included in LLM prompts).
	Description string

	// Parameters is the JSON Schema describing the tool's input parameters.
	Parameters map[string]any
}

// TilePosition locates a tile within a place's tile grid.
type TilePosition struct {
	X int
	Y int
}

// Add returns the tile reached by stepping (dx, dy) from p.
func (p TilePosition) Add(dx, dy int) TilePosition {
	return TilePosition{X: p.X + dx, Y: p.Y + dy}
}

// Location pins an entity to world/region/place/tile coordinates, per the
// data model's Entity Location record.
type Location struct {
	WorldTile  TilePosition
	RegionTile TilePosition
	PlaceID    string
	Tile       TilePosition
	Elevation  int
}

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one completion.
	MaxOutputTokens int

	// SupportsToolCalling indicates native function/tool calling support.
	SupportsToolCalling bool

	// SupportsStreaming indicates the model supports streaming completions.
	SupportsStreaming bool

	// SupportsVision indicates the model accepts image input.
	SupportsVision bool
}
