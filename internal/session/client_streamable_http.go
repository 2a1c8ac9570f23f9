package session

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"

	"github.com/xenophobed/isA-MCP-sub015/pkg/logging"
)

// StreamableHTTPClient speaks MCP over streaming HTTP. Plain-http
// registrations are normalised to this same client by the caller
// (domain.ParseTransportKind treats "http" as an alias).
type StreamableHTTPClient struct {
	baseClient
	url     string
	headers map[string]string
}

// NewStreamableHTTPClient builds a streamable-HTTP transport client.
func NewStreamableHTTPClient(url string, headers map[string]string) *StreamableHTTPClient {
	return &StreamableHTTPClient{url: url, headers: headers}
}

func (c *StreamableHTTPClient) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	var opts []transport.StreamableHTTPCOption
	if len(c.headers) > 0 {
		opts = append(opts, transport.WithHTTPHeaders(c.headers))
	}

	mcpClient, err := client.NewStreamableHttpClient(c.url, opts...)
	if err != nil {
		return fmt.Errorf("create streamable-http client for %s: %w", c.url, err)
	}

	if _, err := mcpClient.Initialize(ctx, initializeRequest()); err != nil {
		_ = mcpClient.Close()
		return fmt.Errorf("initialise session for %s: %w", c.url, err)
	}

	c.inner = mcpClient
	c.connected = true
	logging.Debug("Session", "streamable-http session established for %s", c.url)
	return nil
}
