package mcpclient

import (
	"context"
	"encoding/json"
	"strings"
)

// Tool is the host capability every bridged MCP operation implements.
// Execute never returns a hard error: every failure, remote or local, is
// carried in-band via ToolResult so a misbehaving MCP server can never
// crash the host's tool loop.
type Tool interface {
	Name() string
	Description() string
	ParametersSchema() json.RawMessage
	Execute(ctx context.Context, args json.RawMessage) ToolResult
}

// ToolResult is the outcome of invoking a Tool.
type ToolResult struct {
	Success bool
	Output  string
	Error   string
}

var emptyObjectSchema = json.RawMessage(`{"type":"object","properties":{}}`)

// qualifiedName builds the mcp__<server>__<op> identifier every bridged
// tool is exposed under.
func qualifiedName(server, op string) string {
	return "mcp__" + server + "__" + op
}

// concatText joins the Text field of each content item, in order, the way
// every adapter below projects remote content into a single string.
func concatText(items []McpContent) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		if item.Text != "" {
			parts = append(parts, item.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// RemoteTool bridges one remote MCP tool into the host's Tool capability.
type RemoteTool struct {
	serverName  string
	toolName    string
	description string
	schema      json.RawMessage
	client      *Client
}

// NewRemoteTool builds a bridge for a single tool discovered on client.
// A missing description or schema is synthesized per spec.
func NewRemoteTool(serverName string, def McpToolDef, client *Client) *RemoteTool {
	desc := def.Description
	if desc == "" {
		desc = "MCP tool '" + def.Name + "' from server '" + serverName + "'"
	}
	schema := def.InputSchema
	if schema == nil {
		schema = emptyObjectSchema
	}
	return &RemoteTool{
		serverName:  serverName,
		toolName:    def.Name,
		description: desc,
		schema:      schema,
		client:      client,
	}
}

func (t *RemoteTool) Name() string                      { return qualifiedName(t.serverName, t.toolName) }
func (t *RemoteTool) Description() string               { return t.description }
func (t *RemoteTool) ParametersSchema() json.RawMessage { return t.schema }

func (t *RemoteTool) Execute(ctx context.Context, args json.RawMessage) ToolResult {
	result, err := t.client.CallTool(ctx, t.toolName, args)
	if err != nil {
		return ToolResult{Success: false, Error: "MCP call failed: " + err.Error()}
	}
	text := concatText(result.Content)
	if result.IsError {
		return ToolResult{Success: false, Error: text}
	}
	return ToolResult{Success: true, Output: text}
}

// ListResourcesTool bridges the synthetic list_resources operation.
type ListResourcesTool struct {
	serverName string
	client     *Client
}

// NewListResourcesTool builds the list_resources adapter for a server.
func NewListResourcesTool(serverName string, client *Client) *ListResourcesTool {
	return &ListResourcesTool{serverName: serverName, client: client}
}

func (t *ListResourcesTool) Name() string { return qualifiedName(t.serverName, "list_resources") }
func (t *ListResourcesTool) Description() string {
	return "List available resources on MCP server '" + t.serverName + "'"
}
func (t *ListResourcesTool) ParametersSchema() json.RawMessage { return emptyObjectSchema }

func (t *ListResourcesTool) Execute(ctx context.Context, _ json.RawMessage) ToolResult {
	result, err := t.client.ListResources(ctx)
	if err != nil {
		return ToolResult{Success: false, Error: "Failed to list resources: " + err.Error()}
	}
	pretty, err := json.MarshalIndent(result.Resources, "", "  ")
	if err != nil {
		return ToolResult{Success: false, Error: "Failed to encode resources: " + err.Error()}
	}
	return ToolResult{Success: true, Output: string(pretty)}
}

// ReadResourceTool bridges the synthetic read_resource operation.
type ReadResourceTool struct {
	serverName string
	client     *Client
}

// NewReadResourceTool builds the read_resource adapter for a server.
func NewReadResourceTool(serverName string, client *Client) *ReadResourceTool {
	return &ReadResourceTool{serverName: serverName, client: client}
}

func (t *ReadResourceTool) Name() string { return qualifiedName(t.serverName, "read_resource") }
func (t *ReadResourceTool) Description() string {
	return "Read a resource by URI from MCP server '" + t.serverName + "'"
}
func (t *ReadResourceTool) ParametersSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"uri":{"type":"string","description":"The URI of the resource to read"}},"required":["uri"]}`)
}

func (t *ReadResourceTool) Execute(ctx context.Context, args json.RawMessage) ToolResult {
	var parsed struct {
		URI string `json:"uri"`
	}
	if len(args) > 0 {
		_ = json.Unmarshal(args, &parsed)
	}
	if parsed.URI == "" {
		return ToolResult{Success: false, Error: "Missing required parameter: uri"}
	}

	result, err := t.client.ReadResource(ctx, parsed.URI)
	if err != nil {
		return ToolResult{Success: false, Error: "Failed to read resource: " + err.Error()}
	}
	return ToolResult{Success: true, Output: concatText(result.Contents)}
}
