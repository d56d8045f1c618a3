package mcpclient

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// handshakeState tracks where a Client is in its lifecycle. initialize is
// the only legal first call on a fresh session; every other method
// requires Ready.
type handshakeState int32

const (
	stateFresh handshakeState = iota
	stateInitializing
	stateReady
	stateFailed
)

// clientInfoName/Version identify this client to MCP servers during the
// initialize handshake.
const (
	clientInfoName    = "llm-tools-mcpclient"
	clientInfoVersion = "1.0.0"
)

// notifiedDeadline bounds the best-effort notifications/initialized send;
// servers are permitted not to respond to it at all.
const notifiedDeadline = 2 * time.Second

// restartSignaler is implemented by transports (StdioTransport) that can
// transparently respawn their underlying process. Client polls it after
// every Send to detect when it must re-run the handshake before trusting
// a response's context.
type restartSignaler interface {
	ConsumeRestarted() bool
}

// Client is one logical session with a single configured MCP server. It
// is safe for concurrent use: every bridge adapter built from tools
// discovered on this client shares the same *Client.
type Client struct {
	serverName string
	transport  Transport
	timeout    time.Duration

	nextID atomic.Uint64

	mu           sync.Mutex // guards state and hasResources, and serializes handshake
	state        atomic.Int32
	hasResources bool
}

// NewClient wraps transport as a session for serverName with the given
// per-call timeout.
func NewClient(serverName string, transport Transport, timeout time.Duration) *Client {
	c := &Client{
		serverName: serverName,
		transport:  transport,
		timeout:    timeout,
	}
	c.nextID.Store(0)
	c.state.Store(int32(stateFresh))
	return c
}

// ServerName returns the diagnostic server name this client was built
// with.
func (c *Client) ServerName() string { return c.serverName }

// IsAlive reports whether the underlying transport is still alive.
func (c *Client) IsAlive() bool { return c.transport.IsAlive() }

// HasResources reports whether the server advertised the resources
// capability during initialize.
func (c *Client) HasResources() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasResources
}

func (c *Client) allocID() uint64 {
	return c.nextID.Add(1)
}

// Initialize performs the MCP initialize handshake: Fresh -> Initializing
// -> Ready (or Failed). It is the only legal first call on a new session.
func (c *Client) Initialize(ctx context.Context) (InitializeResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initializeLocked(ctx)
}

func (c *Client) initializeLocked(ctx context.Context) (InitializeResult, error) {
	c.state.Store(int32(stateInitializing))

	params, _ := json.Marshal(map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    clientInfoName,
			"version": clientInfoVersion,
		},
	})

	resp, err := c.rawCall(ctx, c.timeout, "initialize", params)
	if err != nil {
		c.state.Store(int32(stateFailed))
		return InitializeResult{}, err
	}
	if resp.Error != nil {
		c.state.Store(int32(stateFailed))
		return InitializeResult{}, newRpcError(resp.Error)
	}
	if resp.Result == nil {
		c.state.Store(int32(stateFailed))
		return InitializeResult{}, newProtocolError("empty result")
	}

	var result InitializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		c.state.Store(int32(stateFailed))
		return InitializeResult{}, newDecodeError("failed to decode initialize result")
	}
	c.hasResources = result.Capabilities.Resources != nil

	// Best-effort notification bounded by notifiedDeadline; its result and
	// any error are ignored, since servers may legitimately not respond.
	notifyCtx, cancel := context.WithTimeout(context.Background(), notifiedDeadline)
	defer cancel()
	emptyParams, _ := json.Marshal(map[string]any{})
	_, _ = c.transport.Send(notifyCtx, NewRequest(c.allocID(), "notifications/initialized", emptyParams))

	c.state.Store(int32(stateReady))
	return result, nil
}

// rawCall sends one request through the transport bounded by timeout and
// does not interpret the response beyond correlating the deadline.
func (c *Client) rawCall(ctx context.Context, timeout time.Duration, method string, params json.RawMessage) (JsonRpcResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := NewRequest(c.allocID(), method, params)
	resp, err := c.transport.Send(callCtx, req)
	if err != nil {
		if callCtx.Err() != nil {
			return JsonRpcResponse{}, newTimeoutError("MCP "+method+" timed out", err)
		}
		return JsonRpcResponse{}, err
	}
	return resp, nil
}

// call performs a full request/response RPC, transparently re-handshaking
// once and retrying if the transport signals that it restarted the
// underlying child process mid-call.
func (c *Client) call(ctx context.Context, method string, params json.RawMessage) (JsonRpcResponse, error) {
	resp, err := c.rawCall(ctx, c.timeout, method, params)
	if sig, ok := c.transport.(restartSignaler); ok && sig.ConsumeRestarted() {
		c.mu.Lock()
		_, hsErr := c.initializeLocked(ctx)
		c.mu.Unlock()
		if hsErr != nil {
			return JsonRpcResponse{}, hsErr
		}
		resp, err = c.rawCall(ctx, c.timeout, method, params)
	}
	return resp, err
}

func (c *Client) requireReady() error {
	if handshakeState(c.state.Load()) != stateReady {
		return newProtocolError("session is not Ready; call Initialize first")
	}
	return nil
}

// ListTools enumerates the remote server's tools via tools/list.
func (c *Client) ListTools(ctx context.Context) ([]McpToolDef, error) {
	if err := c.requireReady(); err != nil {
		return nil, err
	}
	resp, err := c.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, newRpcError(resp.Error)
	}
	if resp.Result == nil {
		return nil, newProtocolError("empty result")
	}

	var result struct {
		Tools []McpToolDef `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, newDecodeError("failed to decode tools/list result")
	}
	if result.Tools == nil {
		result.Tools = []McpToolDef{}
	}
	return result.Tools, nil
}

// CallTool invokes a remote tool via tools/call.
func (c *Client) CallTool(ctx context.Context, name string, arguments json.RawMessage) (ToolCallResult, error) {
	if err := c.requireReady(); err != nil {
		return ToolCallResult{}, err
	}
	if arguments == nil {
		arguments = json.RawMessage("{}")
	}
	params, _ := json.Marshal(map[string]any{
		"name":      name,
		"arguments": json.RawMessage(arguments),
	})

	resp, err := c.call(ctx, "tools/call", params)
	if err != nil {
		return ToolCallResult{}, err
	}
	if resp.Error != nil {
		return ToolCallResult{}, newRpcError(resp.Error)
	}
	if resp.Result == nil {
		return ToolCallResult{}, newProtocolError("empty result")
	}

	var result ToolCallResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return ToolCallResult{}, newDecodeError("failed to decode tools/call result")
	}
	return result, nil
}

// ListResources enumerates the remote server's resources via
// resources/list.
func (c *Client) ListResources(ctx context.Context) (ResourcesListResult, error) {
	if err := c.requireReady(); err != nil {
		return ResourcesListResult{}, err
	}
	resp, err := c.call(ctx, "resources/list", nil)
	if err != nil {
		return ResourcesListResult{}, err
	}
	if resp.Error != nil {
		return ResourcesListResult{}, newRpcError(resp.Error)
	}
	if resp.Result == nil {
		return ResourcesListResult{}, newProtocolError("empty result")
	}

	var result ResourcesListResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return ResourcesListResult{}, newDecodeError("failed to decode resources/list result")
	}
	return result, nil
}

// ReadResource reads one resource by URI via resources/read.
func (c *Client) ReadResource(ctx context.Context, uri string) (ResourceReadResult, error) {
	if err := c.requireReady(); err != nil {
		return ResourceReadResult{}, err
	}
	params, _ := json.Marshal(map[string]any{"uri": uri})

	resp, err := c.call(ctx, "resources/read", params)
	if err != nil {
		return ResourceReadResult{}, err
	}
	if resp.Error != nil {
		return ResourceReadResult{}, newRpcError(resp.Error)
	}
	if resp.Result == nil {
		return ResourceReadResult{}, newProtocolError("empty result")
	}

	var result ResourceReadResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return ResourceReadResult{}, newDecodeError("failed to decode resources/read result")
	}
	return result, nil
}

// Shutdown releases the underlying transport. Idempotent.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.transport.Shutdown(ctx)
}
