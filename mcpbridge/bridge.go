// Package mcpbridge turns tools exposed by a remote MCP server into
// toolkit.Registration values a Registry can serve, using the official
// github.com/modelcontextprotocol/go-sdk client rather than a hand-rolled
// JSON-RPC transport.
package mcpbridge

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/simulacra-ai/conversa/model"
	"github.com/simulacra-ai/conversa/toolkit"
)

// Transport selects how Connect reaches an MCP server.
type Transport string

const (
	TransportStdio          Transport = "stdio"
	TransportStreamableHTTP Transport = "streamable_http"
)

// ServerConfig describes one MCP server to bridge.
type ServerConfig struct {
	Name      string
	Transport Transport

	// Command is split on spaces into executable + args for TransportStdio.
	Command string
	Env     map[string]string

	// URL is the streamable-HTTP endpoint for TransportStreamableHTTP.
	URL string

	// Parallelizable overrides model.ToolDefinition's default-true
	// Parallelizable flag per MCP tool name, since a remote tool server
	// rarely declares this about itself.
	Parallelizable map[string]bool
}

// Connection is a live session with one MCP server.
type Connection struct {
	cfg     ServerConfig
	client  *mcpsdk.Client
	session *mcpsdk.ClientSession
}

// Connect dials cfg's server and completes the MCP initialize handshake.
func Connect(ctx context.Context, cfg ServerConfig) (*Connection, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("mcpbridge: server config must have a non-empty name")
	}

	var transport mcpsdk.Transport
	switch cfg.Transport {
	case TransportStdio:
		executable, args := splitCommand(cfg.Command)
		if executable == "" {
			return nil, fmt.Errorf("mcpbridge: stdio server %q requires a non-empty Command", cfg.Name)
		}
		cmd := exec.CommandContext(ctx, executable, args...)
		for k, v := range cfg.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
		transport = &mcpsdk.CommandTransport{Command: cmd}
	case TransportStreamableHTTP:
		if cfg.URL == "" {
			return nil, fmt.Errorf("mcpbridge: streamable-http server %q requires a non-empty URL", cfg.Name)
		}
		transport = &mcpsdk.StreamableClientTransport{Endpoint: cfg.URL}
	default:
		return nil, fmt.Errorf("mcpbridge: unknown transport %q for server %q", cfg.Transport, cfg.Name)
	}

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "conversa-mcpbridge", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcpbridge: connect to server %q: %w", cfg.Name, err)
	}
	return &Connection{cfg: cfg, client: client, session: session}, nil
}

// Close ends the session. After Close, Registrations built from this
// Connection fail their next Execute.
func (c *Connection) Close() error {
	return c.session.Close()
}

// Registrations lists the server's current tools and wraps each as a
// toolkit.Registration whose Factory always returns the same bound tool
// (MCP tool identity does not vary per workflow, so no per-Context state is
// needed).
func (c *Connection) Registrations(ctx context.Context) ([]toolkit.Registration, error) {
	var regs []toolkit.Registration
	for tool, err := range c.session.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("mcpbridge: list tools for server %q: %w", c.cfg.Name, err)
		}
		def := model.ToolDefinition{
			Name:           tool.Name,
			Description:    tool.Description,
			Parameters:     paramDefsFromSchema(tool.InputSchema),
			Parallelizable: true,
		}
		if v, ok := c.cfg.Parallelizable[tool.Name]; ok {
			def.Parallelizable = v
		}
		bt := &bridgeTool{conn: c, name: tool.Name}
		regs = append(regs, toolkit.Registration{
			Definition: def,
			New:        func(toolkit.Context) (toolkit.Tool, error) { return bt, nil },
		})
	}
	return regs, nil
}

// bridgeTool forwards Execute to one named tool on conn's server.
type bridgeTool struct {
	conn *Connection
	name string
}

func (t *bridgeTool) Execute(ctx context.Context, params map[string]any) (model.ToolResult, error) {
	res, err := t.conn.session.CallTool(ctx, &mcpsdk.CallToolParams{Name: t.name, Arguments: params})
	if err != nil {
		return model.ToolResult{}, fmt.Errorf("mcpbridge: call tool %q: %w", t.name, err)
	}
	text := concatText(res.Content)
	if res.IsError {
		return model.Failure(text), nil
	}
	return model.Success(map[string]any{"text": text}), nil
}

// concatText joins every TextContent block in content, the same
// concatenation the SDK's own example clients use for tool output; other
// content kinds (images, embedded resources) have no text representation
// and are dropped.
func concatText(content []mcpsdk.Content) string {
	var sb strings.Builder
	for _, c := range content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}

func splitCommand(command string) (executable string, args []string) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return "", nil
	}
	return parts[0], parts[1:]
}
