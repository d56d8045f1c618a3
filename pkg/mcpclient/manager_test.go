package mcpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func sseInitializeServer(t *testing.T, ok bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := decodeRequestMethod(r)
		w.Header().Set("Content-Type", "application/json")
		switch body {
		case "initialize":
			if !ok {
				w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"init failed"}}`))
				return
			}
			w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"protocolVersion":"2024-11-05","capabilities":{}}}`))
		case "notifications/initialized":
			w.Write([]byte(`{}`))
		case "tools/list":
			w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"tools":[{"name":"echo"}]}}`))
		default:
			w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{}}`))
		}
	}))
}

func decodeRequestMethod(r *http.Request) (string, error) {
	var req JsonRpcRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	return req.Method, err
}

func TestCreateToolsDisabledReturnsEmpty(t *testing.T) {
	m, tools := CreateTools(context.Background(), McpConfig{Enabled: false}, nil)
	if m.ServerCount() != 0 {
		t.Errorf("ServerCount() = %d, want 0", m.ServerCount())
	}
	if tools == nil || len(tools) != 0 {
		t.Errorf("tools = %v, want empty non-nil slice", tools)
	}
}

func TestCreateToolsEnabledNoServersReturnsEmpty(t *testing.T) {
	m, tools := CreateTools(context.Background(), McpConfig{Enabled: true}, nil)
	if m.ServerCount() != 0 {
		t.Errorf("ServerCount() = %d, want 0", m.ServerCount())
	}
	if tools == nil || len(tools) != 0 {
		t.Errorf("tools = %v, want empty non-nil slice", tools)
	}
}

func TestCreateToolsQualifiesEveryToolName(t *testing.T) {
	server := sseInitializeServer(t, true)
	defer server.Close()

	cfg := McpConfig{
		Enabled: true,
		Servers: map[string]McpServerConfig{
			"search": {Transport: TransportSSE, URL: server.URL},
		},
	}
	m, tools := CreateTools(context.Background(), cfg, nil)
	defer m.Shutdown(context.Background())

	if m.ServerCount() != 1 {
		t.Fatalf("ServerCount() = %d, want 1", m.ServerCount())
	}
	if len(tools) == 0 {
		t.Fatal("expected at least one bridged tool")
	}
	for _, tool := range tools {
		if !strings.HasPrefix(tool.Name(), "mcp__search__") {
			t.Errorf("tool name = %q, want mcp__search__ prefix", tool.Name())
		}
	}
}

func TestCreateToolsPartialFailureKeepsWorkingServer(t *testing.T) {
	good := sseInitializeServer(t, true)
	defer good.Close()
	bad := sseInitializeServer(t, false)
	defer bad.Close()

	cfg := McpConfig{
		Enabled: true,
		Servers: map[string]McpServerConfig{
			"search":   {Transport: TransportSSE, URL: good.URL},
			"flakyone": {Transport: TransportSSE, URL: bad.URL},
		},
	}
	m, tools := CreateTools(context.Background(), cfg, nil)
	defer m.Shutdown(context.Background())

	if m.ServerCount() != 1 {
		t.Fatalf("ServerCount() = %d, want 1 (one server should have failed)", m.ServerCount())
	}
	if len(tools) != 1 {
		t.Fatalf("len(tools) = %d, want 1", len(tools))
	}
	if !strings.HasPrefix(tools[0].Name(), "mcp__search__") {
		t.Errorf("surviving tool = %q, want from the working server", tools[0].Name())
	}
}

func TestCreateToolsRejectsSSEConfigMissingURL(t *testing.T) {
	cfg := McpConfig{
		Enabled: true,
		Servers: map[string]McpServerConfig{
			"broken": {Transport: TransportSSE},
		},
	}
	m, tools := CreateTools(context.Background(), cfg, nil)
	if m.ServerCount() != 0 {
		t.Errorf("ServerCount() = %d, want 0", m.ServerCount())
	}
	if len(tools) != 0 {
		t.Errorf("len(tools) = %d, want 0", len(tools))
	}
}

func TestManagerShutdownIsIdempotent(t *testing.T) {
	server := sseInitializeServer(t, true)
	defer server.Close()

	cfg := McpConfig{
		Enabled: true,
		Servers: map[string]McpServerConfig{
			"search": {Transport: TransportSSE, URL: server.URL, TimeoutSecs: 5},
		},
	}
	m, _ := CreateTools(context.Background(), cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m.Shutdown(ctx)
	m.Shutdown(ctx)
}
