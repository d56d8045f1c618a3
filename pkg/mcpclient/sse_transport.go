package mcpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// SSETransport sends each request as a standalone HTTP POST and parses the
// response either as a direct JSON-RPC document or as a Server-Sent-Events
// stream carrying one in a "data:" line. It has no subprocess lifecycle and
// no auto-restart concept: a request that fails is the caller's to retry.
type SSETransport struct {
	url    string
	client *http.Client
	alive  atomic.Bool
}

// NewSSETransport builds a transport posting to url with a fixed
// per-request timeout.
func NewSSETransport(url string, timeout time.Duration) (*SSETransport, error) {
	if url == "" {
		return nil, newConfigError("sse transport requires 'url'")
	}
	t := &SSETransport{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
	t.alive.Store(true)
	return t, nil
}

func (t *SSETransport) Send(ctx context.Context, req JsonRpcRequest) (JsonRpcResponse, error) {
	if !t.alive.Load() {
		return JsonRpcResponse{}, newTransportError("transport is not alive", nil)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return JsonRpcResponse{}, newTransportError("failed to encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return JsonRpcResponse{}, newTransportError("failed to build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return JsonRpcResponse{}, newTimeoutError("HTTP POST to "+t.url, err)
		}
		return JsonRpcResponse{}, newTransportError("HTTP POST to "+t.url+" failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return JsonRpcResponse{}, newTransportError(fmt.Sprintf("HTTP %d from %s", resp.StatusCode, t.url), nil)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return JsonRpcResponse{}, newTransportError("failed to read response body", err)
	}

	return parseRpcBody(respBody)
}

// parseRpcBody tries the full body as a JSON-RPC document first, then
// falls back to scanning "data:"-prefixed SSE lines for the first one
// that parses.
func parseRpcBody(body []byte) (JsonRpcResponse, error) {
	var resp JsonRpcResponse
	if err := json.Unmarshal(body, &resp); err == nil {
		return resp, nil
	}

	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		var candidate JsonRpcResponse
		if err := json.Unmarshal([]byte(data), &candidate); err == nil {
			return candidate, nil
		}
	}

	return JsonRpcResponse{}, newDecodeError("no valid JSON-RPC response in body")
}

func (t *SSETransport) Shutdown(ctx context.Context) error {
	t.alive.Store(false)
	return nil
}

func (t *SSETransport) IsAlive() bool {
	return t.alive.Load()
}

func (t *SSETransport) Stderr() io.Reader {
	return nil
}
