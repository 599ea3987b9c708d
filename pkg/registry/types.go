package registry

import (
	"context"
	"time"
)

// ToolHandler is the function signature for tool execution.
type ToolHandler func(ctx context.Context, params map[string]interface{}) (interface{}, error)

// ToolParameter defines a parameter in a tool's declared input shape.
type ToolParameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
}

// ToolDefinition is the registration payload for a tool.
type ToolDefinition struct {
	QualifiedName string          `json:"qualified_name"`
	IntegrationID string          `json:"integration_id"`
	Description   string          `json:"description"`
	Parameters    []ToolParameter `json:"parameters"`
	Handler       ToolHandler     `json:"-"`
}

// RegisterOptions carries optional registration metadata.
type RegisterOptions struct {
	UserDefined bool
	Version     string
}

// ToolRecord is the registry's metadata for one tool. The qualified name
// follows the <integration>_<name> convention and is unique; Name is the
// short display name with the integration prefix stripped.
type ToolRecord struct {
	QualifiedName string          `json:"qualified_name"`
	Name          string          `json:"name"`
	IntegrationID string          `json:"integration_id"`
	Description   string          `json:"description"`
	Parameters    []ToolParameter `json:"parameters"`
	UsageCount    int64           `json:"usage_count"`
	LastUsed      time.Time       `json:"last_used"`
	Hot           bool            `json:"hot"`
	UserDefined   bool            `json:"user_defined"`
	CreatedAt     time.Time       `json:"created_at"`
	Version       string          `json:"version"`
}

// SearchResult pairs a tool with its relevance score.
type SearchResult struct {
	Tool  *ToolRecord `json:"tool"`
	Score float64     `json:"score"`
}

// Stats is a point-in-time snapshot of registry state for the command surface.
type Stats struct {
	TotalTools int `json:"total_tools"`
	HotTools   int `json:"hot_tools"`
	ColdTools  int `json:"cold_tools"`
}

// usageRecord is the persisted shape for a tool's usage statistics.
type usageRecord struct {
	QualifiedName string    `json:"qualified_name"`
	UsageCount    int64     `json:"usage_count"`
	LastUsed      time.Time `json:"last_used"`
}
