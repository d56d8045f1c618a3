package mcpclient

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Manager owns every connected session and is the orderly shutdown point
// for the subprocesses and HTTP clients they hold.
type Manager struct {
	mu      sync.Mutex
	clients []*Client
	logger  *slog.Logger
}

// CreateTools connects to every enabled server in config, discovers its
// tools and (if supported) resources, and returns a Manager owning the
// resulting sessions plus the flattened sequence of bridged tools. A
// server that fails to connect is logged and skipped; partial success is
// the designed outcome. logger may be nil, in which case slog.Default()
// is used.
func CreateTools(ctx context.Context, config McpConfig, logger *slog.Logger) (*Manager, []Tool) {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{logger: logger}

	if !config.Enabled || len(config.Servers) == 0 {
		return m, []Tool{}
	}

	type outcome struct {
		name   string
		client *Client
		tools  []Tool
		err    error
	}
	outcomes := make([]outcome, len(config.Servers))

	names := make([]string, 0, len(config.Servers))
	for name := range config.Servers {
		names = append(names, name)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		i, name := i, name
		serverConfig := config.Servers[name]
		g.Go(func() error {
			client, tools, err := connectServer(gctx, name, serverConfig)
			outcomes[i] = outcome{name: name, client: client, tools: tools, err: err}
			return nil // never abort the group: one server's failure must not skip others
		})
	}
	_ = g.Wait()

	var allTools []Tool
	for _, o := range outcomes {
		if o.err != nil {
			logger.Warn("MCP server failed to connect, skipping", "server", o.name, "error", o.err)
			continue
		}
		m.clients = append(m.clients, o.client)
		allTools = append(allTools, o.tools...)
		logger.Info("MCP server connected", "server", o.name, "tools", len(o.tools))
	}

	if len(allTools) > 0 {
		logger.Info("MCP tools registered", "servers", len(m.clients), "total_tools", len(allTools))
	}

	if allTools == nil {
		allTools = []Tool{}
	}
	return m, allTools
}

// connectServer builds a transport and session for one configured server,
// runs the handshake, and bridges its discovered capabilities.
func connectServer(ctx context.Context, name string, raw McpServerConfig) (*Client, []Tool, error) {
	cfg := raw.WithDefaults()
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second

	var transport Transport
	switch cfg.Transport {
	case TransportSSE:
		if cfg.URL == "" {
			return nil, nil, newConfigError("SSE transport requires 'url'")
		}
		sse, err := NewSSETransport(cfg.URL, timeout)
		if err != nil {
			return nil, nil, err
		}
		transport = sse
	default:
		if cfg.Command == "" {
			return nil, nil, newConfigError("stdio transport requires 'command'")
		}
		stdio, err := NewStdioTransport(cfg.Command, cfg.Args, cfg.Env, cfg.AutoRestartEnabled())
		if err != nil {
			return nil, nil, err
		}
		transport = stdio
	}

	client := NewClient(name, transport, timeout)
	if _, err := client.Initialize(ctx); err != nil {
		_ = client.Shutdown(ctx)
		return nil, nil, err
	}

	toolDefs, err := client.ListTools(ctx)
	if err != nil {
		_ = client.Shutdown(ctx)
		return nil, nil, err
	}

	tools := make([]Tool, 0, len(toolDefs)+2)
	for _, def := range toolDefs {
		tools = append(tools, NewRemoteTool(name, def, client))
	}
	if client.HasResources() {
		tools = append(tools, NewListResourcesTool(name, client))
		tools = append(tools, NewReadResourceTool(name, client))
	}

	return client, tools, nil
}

// Shutdown tears down every connected session. Individual failures are
// logged at warn level and do not stop the sweep.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	clients := append([]*Client(nil), m.clients...)
	m.mu.Unlock()

	var g errgroup.Group
	for _, c := range clients {
		c := c
		g.Go(func() error {
			if err := c.Shutdown(ctx); err != nil {
				m.logger.Warn("MCP server shutdown error", "server", c.ServerName(), "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// ServerCount returns the number of currently connected sessions.
func (m *Manager) ServerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}
