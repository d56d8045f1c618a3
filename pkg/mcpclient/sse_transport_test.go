package mcpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSSETransportSendParsesDirectJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"ok":true}}`))
	}))
	defer server.Close()

	transport, err := NewSSETransport(server.URL, time.Second)
	if err != nil {
		t.Fatalf("NewSSETransport() error = %v", err)
	}

	resp, err := transport.Send(context.Background(), NewRequest(1, "ping", nil))
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if resp.ID == nil || *resp.ID != 1 {
		t.Errorf("ID = %v, want 1", resp.ID)
	}
}

func TestSSETransportSendParsesEventStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("event: message\ndata: {\"jsonrpc\":\"2.0\",\"id\":9,\"result\":{\"ok\":true}}\n\n"))
	}))
	defer server.Close()

	transport, err := NewSSETransport(server.URL, time.Second)
	if err != nil {
		t.Fatalf("NewSSETransport() error = %v", err)
	}

	resp, err := transport.Send(context.Background(), NewRequest(9, "ping", nil))
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if resp.ID == nil || *resp.ID != 9 {
		t.Errorf("ID = %v, want 9", resp.ID)
	}
}

func TestSSETransportNonTwoxxStatusIsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	transport, err := NewSSETransport(server.URL, time.Second)
	if err != nil {
		t.Fatalf("NewSSETransport() error = %v", err)
	}

	_, err = transport.Send(context.Background(), NewRequest(1, "ping", nil))
	if err == nil {
		t.Fatal("expected error for non-2xx status")
	}
	mcpErr, ok := err.(*Error)
	if !ok || mcpErr.Kind != ErrTransport {
		t.Errorf("error = %v, want ErrTransport", err)
	}
}

func TestSSETransportContextTimeoutIsTimeoutError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{}}`))
	}))
	defer server.Close()

	transport, err := NewSSETransport(server.URL, 5*time.Second)
	if err != nil {
		t.Fatalf("NewSSETransport() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = transport.Send(ctx, NewRequest(1, "ping", nil))
	if err == nil {
		t.Fatal("expected timeout error")
	}
	mcpErr, ok := err.(*Error)
	if !ok || mcpErr.Kind != ErrTimeout {
		t.Errorf("error = %v, want ErrTimeout", err)
	}
}

func TestSSETransportShutdownMarksDead(t *testing.T) {
	transport, err := NewSSETransport("http://example.invalid", time.Second)
	if err != nil {
		t.Fatalf("NewSSETransport() error = %v", err)
	}
	if !transport.IsAlive() {
		t.Fatal("IsAlive() = false before Shutdown")
	}
	if err := transport.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if transport.IsAlive() {
		t.Error("IsAlive() = true after Shutdown")
	}

	_, err = transport.Send(context.Background(), NewRequest(1, "ping", nil))
	if err == nil {
		t.Fatal("expected error sending on a shut-down transport")
	}
}

func TestNewSSETransportRequiresURL(t *testing.T) {
	_, err := NewSSETransport("", time.Second)
	if err == nil {
		t.Fatal("expected error for empty url")
	}
	mcpErr, ok := err.(*Error)
	if !ok || mcpErr.Kind != ErrConfig {
		t.Errorf("error = %v, want ErrConfig", err)
	}
}
