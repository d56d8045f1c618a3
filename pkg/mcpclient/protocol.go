// Package mcpclient connects an agent runtime to one or more Model Context
// Protocol (MCP) servers over subprocess or HTTP/SSE transports, discovers
// their tools and resources, and bridges each remote capability into a
// local, uniformly callable Tool.
package mcpclient

import (
	"encoding/json"
	"fmt"
)

// ProtocolVersion is the MCP protocol version this client advertises during
// the initialize handshake.
const ProtocolVersion = "2024-11-05"

// JsonRpcRequest is an outbound JSON-RPC 2.0 request or notification.
// Notifications carry an ID like any other request; StdioTransport
// recognizes them by their "notifications/" method prefix and returns as
// soon as the line is written, without awaiting a response.
type JsonRpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// NewRequest builds a request with jsonrpc fixed to "2.0". Pass nil params
// to omit the field entirely on the wire.
func NewRequest(id uint64, method string, params json.RawMessage) JsonRpcRequest {
	return JsonRpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}
}

// JsonRpcResponse is an inbound JSON-RPC 2.0 response. Fields tolerate the
// looseness real MCP servers exhibit: jsonrpc may be missing, id may be
// missing (server-originated notification, ignored by this client), and
// both result and error may be absent.
type JsonRpcResponse struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      *uint64         `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JsonRpcError   `json:"error,omitempty"`
}

// JsonRpcError is a structured JSON-RPC 2.0 error object.
type JsonRpcError struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *JsonRpcError) Error() string {
	return fmt.Sprintf("JSON-RPC error %d: %s", e.Code, e.Message)
}

// ServerCapabilities carries the opaque capability blocks a server
// advertises during initialize. Their presence, not their content, drives
// client behavior (see has-resources tracking on Client).
type ServerCapabilities struct {
	Tools     json.RawMessage `json:"tools,omitempty"`
	Resources json.RawMessage `json:"resources,omitempty"`
	Prompts   json.RawMessage `json:"prompts,omitempty"`
}

// ServerInfo identifies the remote server.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// InitializeResult is the result of the initialize request.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      *ServerInfo        `json:"server_info,omitempty"`
}

// McpToolDef is one remote tool definition, as returned by tools/list.
type McpToolDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// McpContent is one content item inside a tool call or resource read
// result. Only Text is projected into local tool output.
type McpContent struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// ToolCallResult is the result of tools/call.
type ToolCallResult struct {
	Content []McpContent `json:"content"`
	IsError bool         `json:"isError,omitempty"`
}

// McpResourceDef describes one resource advertised by resources/list.
type McpResourceDef struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ResourcesListResult is the result of resources/list.
type ResourcesListResult struct {
	Resources []McpResourceDef `json:"resources"`
}

// ResourceReadResult is the result of resources/read.
type ResourceReadResult struct {
	Contents []McpContent `json:"contents"`
}

// TransportKind selects which wire transport a server entry uses.
type TransportKind string

const (
	TransportStdio TransportKind = "stdio"
	TransportSSE   TransportKind = "sse"
)

// McpConfig is the top-level MCP client configuration. It is a
// pre-parsed value: this package does not read or deserialize it from
// disk (see cmd/llm-mcp-client for a host-side loader).
type McpConfig struct {
	Enabled bool                        `json:"enabled" yaml:"enabled"`
	Servers map[string]McpServerConfig `json:"servers" yaml:"servers"`
}

// McpServerConfig configures one MCP server entry.
type McpServerConfig struct {
	Transport   TransportKind     `json:"transport" yaml:"transport"`
	Command     string            `json:"command,omitempty" yaml:"command,omitempty"`
	Args        []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env         map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	URL         string            `json:"url,omitempty" yaml:"url,omitempty"`
	TimeoutSecs uint              `json:"timeout_secs" yaml:"timeout_secs"`
	// AutoRestart defaults to true when nil; a pointer distinguishes
	// "not set" from an explicit false, since the zero value of bool
	// would otherwise silently disable the spec-mandated default.
	AutoRestart *bool `json:"auto_restart,omitempty" yaml:"auto_restart,omitempty"`
}

// WithDefaults returns a copy of c with spec-mandated defaults applied:
// transport=stdio (including unrecognized values, bug-compatible with the
// reference implementation) and timeout_secs=30.
func (c McpServerConfig) WithDefaults() McpServerConfig {
	if c.Transport != TransportStdio && c.Transport != TransportSSE {
		c.Transport = TransportStdio
	}
	if c.TimeoutSecs == 0 {
		c.TimeoutSecs = 30
	}
	return c
}

// AutoRestartEnabled reports whether auto-restart is in effect, defaulting
// to true when unset.
func (c McpServerConfig) AutoRestartEnabled() bool {
	return c.AutoRestart == nil || *c.AutoRestart
}
