package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/shakram02/go-sql-browser/data"
)

// MCPServer handles MCP protocol over stdio
type MCPServer struct {
	db     *data.Database
	logger *slog.Logger
	in     io.Reader
	out    io.Writer
	ctx    context.Context
	cancel context.CancelFunc
}

// NewMCPServer connects db and holds the connection until Close.
func NewMCPServer(ctx context.Context, db *data.Database, in io.Reader, out io.Writer, logger *slog.Logger) (*MCPServer, error) {
	if err := db.Connect(ctx); err != nil {
		return nil, err
	}

	serverCtx, serverCancel := context.WithCancel(ctx)

	return &MCPServer{
		db:     db,
		logger: logger,
		in:     in,
		out:    out,
		ctx:    serverCtx,
		cancel: serverCancel,
	}, nil
}

// Run reads one JSON-RPC message per line from the input and writes
// responses to the output until EOF or cancellation.
func (s *MCPServer) Run() error {
	reader := bufio.NewReader(s.in)

	for {
		select {
		case <-s.ctx.Done():
			return s.ctx.Err()
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("failed to read input: %w", err)
		}

		if line = strings.TrimSpace(line); line != "" {
			s.respond([]byte(line))
		}
		if err == io.EOF {
			return nil
		}
	}
}

func (s *MCPServer) respond(message []byte) {
	response := s.handleMessage(message)
	if response == nil {
		return
	}
	responseBytes, err := json.Marshal(response)
	if err != nil {
		s.logger.Error("failed to marshal response", "error", err)
		return
	}
	fmt.Fprintln(s.out, string(responseBytes))
}

func (s *MCPServer) handleMessage(msg []byte) *JSONRPCResponse {
	var req JSONRPCRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		return &JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      nil,
			Error: &Error{
				Code:    ParseError,
				Message: "Parse error",
				Data:    err.Error(),
			},
		}
	}

	if req.JSONRPC != "2.0" {
		return &JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &Error{
				Code:    InvalidRequest,
				Message: "Invalid JSON-RPC version",
			},
		}
	}

	return s.handleRequest(&req)
}

func (s *MCPServer) handleRequest(req *JSONRPCRequest) *JSONRPCResponse {
	var result any
	var err *Error

	s.logger.Debug("request", "method", req.Method, "id", req.ID)

	switch req.Method {
	case "initialize":
		result, err = s.handleInitialize(req.Params)
	case "initialized", "notifications/initialized":
		// Notification, no response needed
		return nil
	case "tools/list":
		result, err = s.handleListTools()
	case "tools/call":
		result, err = s.handleCallTool(req.Params)
	case "resources/list":
		result, err = s.handleListResources()
	case "resources/read":
		result, err = s.handleReadResource(req.Params)
	case "ping":
		result = map[string]any{}
	default:
		err = &Error{
			Code:    MethodNotFound,
			Message: fmt.Sprintf("Method not found: %s", req.Method),
		}
	}

	if err != nil {
		return &JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Error: err}
	}
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  result,
	}
}

// Shutdown gracefully shuts down the server
func (s *MCPServer) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Close releases the server's connection.
func (s *MCPServer) Close() error {
	s.Shutdown()
	return s.db.Disconnect()
}
