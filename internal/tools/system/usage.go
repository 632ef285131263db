// Package system provides system-level tools for health, usage, and diagnostics.
package system

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JuanCS-Dev/vertice-code/internal/agent"
	"github.com/JuanCS-Dev/vertice-code/internal/infra"
)

// UsageProvider provides usage data retrieval.
type UsageProvider interface {
	Get(ctx context.Context, provider string) (*infra.ProviderUsage, error)
	GetAll(ctx context.Context) []*infra.ProviderUsage
}

// UsageTool provides provider usage information to the agent.
type UsageTool struct {
	provider UsageProvider
}

// NewUsageTool creates a new usage tool.
func NewUsageTool(provider UsageProvider) *UsageTool {
	return &UsageTool{provider: provider}
}

// Name returns the tool name.
func (t *UsageTool) Name() string { return "provider_usage" }

// Description returns the tool description.
func (t *UsageTool) Description() string {
	return "Get LLM provider usage statistics including tokens and costs."
}

// Schema returns the JSON schema for the tool parameters.
func (t *UsageTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"provider": map[string]interface{}{
				"type":        "string",
				"description": "Specific provider to get usage for (anthropic, openai, gemini). If not specified, returns all.",
			},
		},
		"required": []string{},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

// Execute retrieves usage data.
func (t *UsageTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	if t.provider == nil {
		return toolError("usage provider unavailable"), nil
	}

	var input struct {
		Provider string `json:"provider"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	providerName := strings.TrimSpace(strings.ToLower(input.Provider))

	if providerName != "" {
		u, err := t.provider.Get(ctx, providerName)
		if err != nil {
			return toolError(fmt.Sprintf("get usage failed: %v", err)), nil
		}
		return &agent.ToolResult{Content: formatProviderUsage(u)}, nil
	}

	// Get all providers
	usages := t.provider.GetAll(ctx)
	if len(usages) == 0 {
		return &agent.ToolResult{Content: "No provider usage data available."}, nil
	}

	var result strings.Builder
	for i, u := range usages {
		if i > 0 {
			result.WriteString("\n---\n\n")
		}
		result.WriteString(formatProviderUsage(u))
	}

	return &agent.ToolResult{Content: result.String()}, nil
}

// formatProviderUsage renders a provider's usage summary as human-readable text.
func formatProviderUsage(u *infra.ProviderUsage) string {
	if u == nil {
		return "no usage data"
	}

	name := u.DisplayName
	if name == "" {
		name = u.Provider
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", name)

	if u.Error != "" {
		fmt.Fprintf(&b, "  error: %s\n", u.Error)
		return b.String()
	}

	fmt.Fprintf(&b, "  requests: %d\n", u.RequestCount)
	fmt.Fprintf(&b, "  tokens used: %d\n", u.TokensUsed)
	if !u.LastRequestAt.IsZero() {
		fmt.Fprintf(&b, "  last request: %s\n", u.LastRequestAt.Format("2006-01-02 15:04:05"))
	}
	for _, w := range u.Windows {
		fmt.Fprintf(&b, "  %s: %d/%d (%.1f%%)\n", w.Name, w.Used, w.Limit, w.UsagePercent())
	}

	return b.String()
}
