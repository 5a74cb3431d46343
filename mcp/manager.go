package mcp

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/palagent/palagent/pkg/metricskey"
)

// Manager coordinates a set of MCP tool servers: it connects a client per
// registered server, aggregates their tool catalogs, and routes tool calls
// to the owning server by tool name.
type Manager struct {
	mu          sync.RWMutex
	serverPaths []string
	connected   int
	clients     []*Client

	// toolMap routes a tool name to the index of the owning client.
	// Populated by AggregateCatalog.
	toolMap map[string]int
	// toolInfo groups tool descriptions by server display name.
	toolInfo map[string]map[string]string
	// resourceMap routes a resource URI to the index of the owning client.
	resourceMap map[string]int
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{
		toolMap:     make(map[string]int),
		toolInfo:    make(map[string]map[string]string),
		resourceMap: make(map[string]int),
	}
}

// Register records a tool server executable path. The server is not launched
// until ConnectAll.
func (m *Manager) Register(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.serverPaths = append(m.serverPaths, path)
}

// AddClient attaches an already connected client to the manager.
func (m *Manager) AddClient(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients = append(m.clients, client)
}

// ConnectAll launches and initializes a client for every registered server,
// in registration order. The first failure aborts the sequence; servers
// already connected stay connected and must be torn down with CloseAll.
func (m *Manager) ConnectAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, path := range m.serverPaths[m.connected:] {
		client, err := ConnectServer(ctx, path)
		if err != nil {
			return errors.WithMessagef(err, "failed to connect tool server: %s", path)
		}
		m.clients = append(m.clients, client)
		m.connected++
	}
	return nil
}

// ServerNames returns the display names of the connected servers, skipping
// any without a name.
func (m *Manager) ServerNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.clients))
	for _, client := range m.clients {
		if name := client.Name(); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// AggregateCatalog queries every connected server for its tools and returns
// the combined catalog. It also rebuilds the routing table used by Call:
// when two servers expose the same tool name, the later-registered server
// wins and the collision is logged.
func (m *Manager) AggregateCatalog(ctx context.Context) ([]Tool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var catalog []Tool
	for idx, client := range m.clients {
		tools, err := client.ListTools(ctx)
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to list tools: %s", client.Name())
		}

		serverName := client.Name()
		for _, tool := range tools {
			if prev, ok := m.toolMap[tool.Name]; ok && prev != idx {
				logger.KV(xlog.WARNING,
					"reason", "tool_name_collision",
					"tool", tool.Name,
					"server", serverName,
					"replaced_server", m.clients[prev].Name(),
				)
			}
			catalog = append(catalog, tool)
			m.toolMap[tool.Name] = idx

			info := m.toolInfo[serverName]
			if info == nil {
				info = make(map[string]string)
				m.toolInfo[serverName] = info
			}
			info[tool.Name] = tool.Description
		}
	}
	return catalog, nil
}

// AggregateResources queries every connected server for its resources and
// returns the combined list, rebuilding the URI routing table.
func (m *Manager) AggregateResources(ctx context.Context) ([]Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var resources []Resource
	for idx, client := range m.clients {
		list, err := client.ListResources(ctx)
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to list resources: %s", client.Name())
		}
		for _, rsrc := range list {
			resources = append(resources, rsrc)
			m.resourceMap[rsrc.Uri] = idx
		}
	}
	return resources, nil
}

// ToolInfo returns tool descriptions grouped by server display name, as
// populated by AggregateCatalog.
func (m *Manager) ToolInfo() map[string]map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]map[string]string, len(m.toolInfo))
	for server, info := range m.toolInfo {
		tools := make(map[string]string, len(info))
		for name, desc := range info {
			tools[name] = desc
		}
		out[server] = tools
	}
	return out
}

// Call routes a tool call to the owning server by tool name. The name must
// be present in the routing table built by AggregateCatalog, otherwise
// ErrUnknownTool is returned.
func (m *Manager) Call(ctx context.Context, name string, args map[string]string) (bool, []string, error) {
	m.mu.RLock()
	idx, ok := m.toolMap[name]
	var client *Client
	if ok {
		client = m.clients[idx]
	}
	m.mu.RUnlock()

	if client == nil {
		metricskey.StatsToolCallsNotFound.IncrCounter(1, name)
		return false, nil, errors.WithMessagef(ErrUnknownTool, "%q", name)
	}

	started := time.Now()
	isError, texts, err := client.CallTool(ctx, name, args)
	metricskey.PerfToolCall.MeasureSince(started, name)
	if err != nil {
		metricskey.StatsToolCallsFailed.IncrCounter(1, name)
		return false, nil, err
	}

	metricskey.StatsToolCallsSucceeded.IncrCounter(1, name)
	return isError, texts, nil
}

// CloseAll shuts down all connected clients. Every client is closed even if
// some fail; the first failure is returned.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var first error
	for _, client := range m.clients {
		if err := client.Close(); err != nil {
			logger.KV(xlog.WARNING, "reason", "close_failed", "server", client.Name(), "err", err.Error())
			if first == nil {
				first = err
			}
		}
	}
	m.clients = nil
	m.connected = 0
	return first
}
