package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/palagent/palagent/mcp/internal/protocol"
	"github.com/palagent/palagent/mcp/transport"
	"github.com/palagent/palagent/mcp/transport/stdiotransport"
)

var logger = xlog.NewPackageLogger("github.com/palagent/palagent", "mcp")

// Client is a session with a single MCP tool server. It hides the protocol
// and transport details behind typed list and call methods.
type Client struct {
	mu        sync.Mutex
	proto     *protocol.Protocol
	name      string
	release   []func() error
	connected bool
}

// NewClient creates an unconnected client.
func NewClient() *Client {
	return &Client{}
}

// ConnectServer launches the tool server executable at path and establishes
// an initialized session with it.
func ConnectServer(ctx context.Context, path string, args ...string) (*Client, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(err, "tool server not found: %s", path)
	}

	c := NewClient()
	if err := c.Connect(ctx, stdiotransport.NewClientTransport(path, args...)); err != nil {
		return nil, err
	}
	return c, nil
}

// Connect establishes a session over the given transport and performs the
// initialize handshake. The server's reported name and version become the
// client's display name.
func (c *Client) Connect(ctx context.Context, tr transport.Transport) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return ErrAlreadyConnected
	}

	proto := protocol.NewProtocol()
	if err := proto.Connect(tr); err != nil {
		return errors.WithMessage(err, "failed to connect transport")
	}
	// acquired resources are released in reverse order on Close
	c.release = append(c.release, proto.Close)

	result, err := proto.Request(ctx, "initialize", initializeParams{
		ProtocolVersion: protocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo: Implementation{
			Name:    "palagent",
			Version: "1.0.0",
		},
	}, &protocol.RequestOptions{Context: ctx})
	if err != nil {
		c.releaseAll()
		return errors.WithMessage(err, "initialize handshake failed")
	}

	var init InitializeResponse
	if err := unmarshalResult(result, &init); err != nil {
		c.releaseAll()
		return errors.WithMessage(err, "invalid initialize response")
	}

	if err := proto.Notification("notifications/initialized", map[string]any{}); err != nil {
		c.releaseAll()
		return errors.WithMessage(err, "failed to send initialized notification")
	}

	c.proto = proto
	c.name = fmt.Sprintf("%s(v%s)", init.ServerInfo.Name, init.ServerInfo.Version)
	c.connected = true

	logger.KV(xlog.DEBUG, "status", "connected", "server", c.name)
	return nil
}

// Name returns the display name derived from the server's initialize
// response, in "name(vversion)" form. Empty until connected.
func (c *Client) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

// ListTools returns the tools exposed by the server.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	proto, err := c.session()
	if err != nil {
		return nil, err
	}

	result, err := proto.Request(ctx, "tools/list", map[string]any{}, &protocol.RequestOptions{Context: ctx})
	if err != nil {
		return nil, errors.WithMessage(err, "tools/list failed")
	}

	var resp ToolsResponse
	if err := unmarshalResult(result, &resp); err != nil {
		return nil, err
	}
	return resp.Tools, nil
}

// ListResources returns the resources exposed by the server.
func (c *Client) ListResources(ctx context.Context) ([]Resource, error) {
	proto, err := c.session()
	if err != nil {
		return nil, err
	}

	result, err := proto.Request(ctx, "resources/list", map[string]any{}, &protocol.RequestOptions{Context: ctx})
	if err != nil {
		return nil, errors.WithMessage(err, "resources/list failed")
	}

	var resp ListResourcesResponse
	if err := unmarshalResult(result, &resp); err != nil {
		return nil, err
	}
	return resp.Resources, nil
}

// CallTool invokes a tool on the server. The returned flag reports a tool
// level failure; the strings are the text content items of the response.
// A transport or protocol failure is returned as an error instead.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]string) (bool, []string, error) {
	proto, err := c.session()
	if err != nil {
		return false, nil, err
	}

	arguments, err := json.Marshal(args)
	if err != nil {
		return false, nil, errors.Wrap(err, "failed to marshal arguments")
	}

	result, err := proto.Request(ctx, "tools/call", toolCallParams{
		Name:      name,
		Arguments: arguments,
	}, &protocol.RequestOptions{Context: ctx})
	if err != nil {
		return false, nil, errors.WithMessagef(err, "tools/call failed: %s", name)
	}

	var resp ToolResponse
	if err := unmarshalResult(result, &resp); err != nil {
		return false, nil, err
	}
	return resp.IsError, resp.Texts(), nil
}

// Close releases the session resources in reverse acquisition order.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.releaseAll()
	c.proto = nil
	c.connected = false
	return err
}

func (c *Client) session() (*protocol.Protocol, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil, ErrNotConnected
	}
	return c.proto, nil
}

func (c *Client) releaseAll() error {
	var first error
	for i := len(c.release) - 1; i >= 0; i-- {
		if err := c.release[i](); err != nil && first == nil {
			first = err
		}
	}
	c.release = nil
	return first
}

func unmarshalResult(result any, v any) error {
	bs, ok := result.(json.RawMessage)
	if !ok {
		var err error
		bs, err = json.Marshal(result)
		if err != nil {
			return errors.Wrap(err, "failed to marshal result")
		}
	}
	return errors.Wrap(json.Unmarshal(bs, v), "failed to unmarshal result")
}
