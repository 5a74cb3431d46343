package mcp

import (
	"context"
	"encoding/json"
	"reflect"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/invopop/jsonschema"
	"github.com/palagent/palagent/mcp/internal/protocol"
	"github.com/palagent/palagent/mcp/transport"
)

// Server hosts tools and resources over an MCP session. Tools are registered
// with typed handler functions; their argument schemas are derived from the
// handler's argument struct via reflection.
type Server struct {
	proto     *protocol.Protocol
	transport transport.Transport
	name      string
	version   string

	mu        sync.RWMutex
	tools     map[string]*registeredTool
	resources map[string]*Resource
}

type registeredTool struct {
	tool    Tool
	handler func(ctx context.Context, arguments json.RawMessage) (*ToolResponse, error)
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithName sets the server's display name reported in the initialize
// handshake.
func WithName(name string) ServerOption {
	return func(s *Server) {
		s.name = name
	}
}

// WithVersion sets the server's version reported in the initialize handshake.
func WithVersion(version string) ServerOption {
	return func(s *Server) {
		s.version = version
	}
}

// NewServer creates a server over the given transport. Call Serve to start
// handling requests.
func NewServer(tr transport.Transport, opts ...ServerOption) *Server {
	s := &Server{
		transport: tr,
		name:      "palagent-server",
		version:   "1.0.0",
		tools:     make(map[string]*registeredTool),
		resources: make(map[string]*Resource),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	errorType        = reflect.TypeOf((*error)(nil)).Elem()
	toolResponseType = reflect.TypeOf((*ToolResponse)(nil))
)

// RegisterTool registers a tool by name. The handler must be a function
// taking a single struct argument and returning (*ToolResponse, error); the
// argument struct's json and jsonschema tags define the tool's input schema.
func (s *Server) RegisterTool(name string, description string, handler any) error {
	handlerValue := reflect.ValueOf(handler)
	handlerType := handlerValue.Type()

	if handlerType.Kind() != reflect.Func ||
		handlerType.NumIn() != 1 ||
		handlerType.NumOut() != 2 ||
		handlerType.Out(0) != toolResponseType ||
		handlerType.Out(1) != errorType {
		return errors.Newf("tool handler must be func(args T) (*ToolResponse, error): %s", name)
	}

	argType := handlerType.In(0)
	if argType.Kind() != reflect.Struct {
		return errors.Newf("tool handler argument must be a struct: %s", name)
	}

	reflector := jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	schema := reflector.ReflectFromType(argType)

	wrapped := func(ctx context.Context, arguments json.RawMessage) (resp *ToolResponse, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.Newf("internal error: %v", r)
			}
		}()

		args := reflect.New(argType)
		if len(arguments) > 0 {
			if uerr := json.Unmarshal(arguments, args.Interface()); uerr != nil {
				return nil, errors.Wrap(uerr, "failed to unmarshal arguments")
			}
		}

		out := handlerValue.Call([]reflect.Value{args.Elem()})
		if !out[1].IsNil() {
			return nil, out[1].Interface().(error)
		}
		return out[0].Interface().(*ToolResponse), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools[name] = &registeredTool{
		tool: Tool{
			Name:        name,
			Description: description,
			InputSchema: schema,
		},
		handler: wrapped,
	}
	return nil
}

// DeregisterTool removes a registered tool.
func (s *Server) DeregisterTool(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tools, name)
}

// RegisterResource registers a resource by URI.
func (s *Server) RegisterResource(uri, name, description, mimeType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources[uri] = &Resource{
		Uri:         uri,
		Name:        name,
		Description: description,
		MimeType:    mimeType,
	}
}

// Serve wires the request handlers and starts the transport. It returns
// immediately; use Done on the underlying transport or signal handling to
// wait for shutdown.
func (s *Server) Serve() error {
	proto := protocol.NewProtocol()
	proto.SetRequestHandler("initialize", s.handleInitialize)
	proto.SetRequestHandler("tools/list", s.handleListTools)
	proto.SetRequestHandler("resources/list", s.handleListResources)
	proto.SetRequestHandler("tools/call", s.handleToolCalls)

	s.proto = proto
	return proto.Connect(s.transport)
}

// Close shuts down the session.
func (s *Server) Close() error {
	if s.proto != nil {
		return s.proto.Close()
	}
	return nil
}

func (s *Server) handleInitialize(ctx context.Context, req *transport.BaseJSONRPCRequest, extra protocol.RequestHandlerExtra) (transport.JsonRpcBody, error) {
	return InitializeResponse{
		ProtocolVersion: protocolVersion,
		Capabilities: map[string]any{
			"tools":     map[string]any{},
			"resources": map[string]any{},
		},
		ServerInfo: Implementation{
			Name:    s.name,
			Version: s.version,
		},
	}, nil
}

func (s *Server) handleListTools(ctx context.Context, req *transport.BaseJSONRPCRequest, extra protocol.RequestHandlerExtra) (transport.JsonRpcBody, error) {
	s.mu.RLock()
	tools := make([]Tool, 0, len(s.tools))
	for _, t := range s.tools {
		tools = append(tools, t.tool)
	}
	s.mu.RUnlock()

	sort.Slice(tools, func(i, j int) bool {
		return tools[i].Name < tools[j].Name
	})
	return ToolsResponse{Tools: tools}, nil
}

func (s *Server) handleListResources(ctx context.Context, req *transport.BaseJSONRPCRequest, extra protocol.RequestHandlerExtra) (transport.JsonRpcBody, error) {
	s.mu.RLock()
	resources := make([]Resource, 0, len(s.resources))
	for _, r := range s.resources {
		resources = append(resources, *r)
	}
	s.mu.RUnlock()

	sort.Slice(resources, func(i, j int) bool {
		return resources[i].Uri < resources[j].Uri
	})
	return ListResourcesResponse{Resources: resources}, nil
}

// handleToolCalls dispatches a tools/call request. Tool handler failures are
// reported in-band with IsError so the caller can fold them into the model
// conversation; only protocol level faults become JSON-RPC errors.
func (s *Server) handleToolCalls(ctx context.Context, req *transport.BaseJSONRPCRequest, extra protocol.RequestHandlerExtra) (transport.JsonRpcBody, error) {
	var params toolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal params")
	}

	s.mu.RLock()
	tool := s.tools[params.Name]
	s.mu.RUnlock()

	if tool == nil {
		return nil, errors.Newf("unknown tool: %s", params.Name)
	}

	logger.KV(xlog.DEBUG, "tool", params.Name)

	resp, err := tool.handler(ctx, params.Arguments)
	if err != nil {
		return &ToolResponse{
			IsError: true,
			Content: []*Content{NewTextContent(err.Error())},
		}, nil
	}
	return resp, nil
}
