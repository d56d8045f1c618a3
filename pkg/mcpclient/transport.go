package mcpclient

import (
	"context"
	"io"
)

// Transport delivers single JSON-RPC requests to one MCP server and
// produces the correlated response. Implementations must serialize
// concurrent callers so no caller observes another's response; the order
// in which concurrent requests are transmitted is otherwise unspecified.
type Transport interface {
	// Send delivers one request and returns its correlated response.
	// Every call is a suspension point and honors ctx cancellation.
	Send(ctx context.Context, req JsonRpcRequest) (JsonRpcResponse, error)

	// Shutdown releases all resources. Idempotent: a second call must
	// not fail. After Shutdown returns, IsAlive reports false and
	// further Send calls fail.
	Shutdown(ctx context.Context) error

	// IsAlive is a non-blocking liveness snapshot.
	IsAlive() bool

	// Stderr exposes the child process's stderr stream for a host to
	// drain, if the transport owns one. Returns nil for transports
	// without a subprocess (e.g. SSE).
	Stderr() io.Reader
}
