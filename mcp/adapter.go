// Package mcp exposes tools from Model Context Protocol (MCP) servers
// as retrieval sources.
package mcp

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/i2y/chiron/retrieve"
)

// Client wraps an MCP client session.
type Client struct {
	mcpClient *mcp.Client
	session   *mcp.ClientSession
	timeout   time.Duration
}

// Option configures the MCP client.
type Option func(*clientConfig)

type clientConfig struct {
	timeout time.Duration
}

// WithTimeout sets the timeout for tool calls.
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = d
	}
}

// NewStdioClient starts command as a subprocess and connects to it as
// an MCP server over stdio.
//
// Example:
//
//	client, err := mcp.NewStdioClient(ctx, "./my-mcp-server", nil)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	sources, err := client.Sources(ctx)
func NewStdioClient(ctx context.Context, command string, args []string, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	mcpClient := mcp.NewClient(&mcp.Implementation{
		Name:    "chiron",
		Version: "0.1.0",
	}, nil)

	cmd := exec.Command(command, args...)
	transport := &mcp.CommandTransport{
		Command: cmd,
	}

	session, err := mcpClient.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to MCP server: %w", err)
	}

	return &Client{
		mcpClient: mcpClient,
		session:   session,
		timeout:   cfg.timeout,
	}, nil
}

// Sources lists the server's tools and wraps each one as a retrieval
// source. A planned call's arguments are passed to the tool unchanged.
func (c *Client) Sources(ctx context.Context) ([]retrieve.Source, error) {
	result, err := c.session.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		return nil, fmt.Errorf("listing MCP tools: %w", err)
	}

	sources := make([]retrieve.Source, 0, len(result.Tools))
	for i := range result.Tools {
		sources = append(sources, &toolSource{
			client: c,
			tool:   result.Tools[i],
		})
	}

	return sources, nil
}

// Close closes the MCP client connection.
func (c *Client) Close() error {
	return c.session.Close()
}

// toolSource adapts one MCP tool to retrieve.Source.
type toolSource struct {
	client *Client
	tool   *mcp.Tool
}

func (s *toolSource) ID() string {
	return s.tool.Name
}

func (s *toolSource) Describe() string {
	return s.tool.Description
}

func (s *toolSource) Fetch(ctx context.Context, call retrieve.Call) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.client.timeout)
	defer cancel()

	arguments := call.Arguments
	if arguments == nil {
		arguments = map[string]any{}
	}

	result, err := s.client.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      s.tool.Name,
		Arguments: arguments,
	})
	if err != nil {
		return "", fmt.Errorf("calling MCP tool %s: %w", s.tool.Name, err)
	}

	combined := contentText(result.Content)

	if result.IsError {
		return "", fmt.Errorf("MCP tool %s failed: %s", s.tool.Name, combined)
	}

	return combined, nil
}

// contentText extracts text from MCP tool result content.
// Multiple content items are joined with newlines.
// Non-text content (images, resources) is represented as descriptive text.
func contentText(content []mcp.Content) string {
	var parts []string
	for _, c := range content {
		switch item := c.(type) {
		case *mcp.TextContent:
			parts = append(parts, item.Text)
		case *mcp.ImageContent:
			parts = append(parts, fmt.Sprintf("[Image: %s, %d bytes]", item.MIMEType, len(item.Data)))
		case *mcp.EmbeddedResource:
			if item.Resource != nil {
				parts = append(parts, fmt.Sprintf("[Resource: %s]", item.Resource.URI))
			} else {
				parts = append(parts, "[Resource: embedded]")
			}
		}
	}
	return strings.Join(parts, "\n")
}

// SourcesFromServer is a convenience wrapper: it connects to an MCP
// server and returns its tools as retrieval sources plus a cleanup
// function that closes the connection.
//
// Example:
//
//	sources, cleanup, err := mcp.SourcesFromServer(ctx, "./my-mcp-server", nil)
//	if err != nil {
//	    return err
//	}
//	defer cleanup()
//
//	fetcher := retrieve.NewFetcher()
//	fetcher.Register(sources...)
func SourcesFromServer(ctx context.Context, command string, args []string, opts ...Option) ([]retrieve.Source, func() error, error) {
	client, err := NewStdioClient(ctx, command, args, opts...)
	if err != nil {
		return nil, nil, err
	}

	sources, err := client.Sources(ctx)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	return sources, client.Close, nil
}
