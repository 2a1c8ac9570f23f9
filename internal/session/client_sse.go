package session

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"

	"github.com/xenophobed/isA-MCP-sub015/pkg/logging"
)

// SSEClient speaks MCP over a server-sent-event stream. Unlike the
// stdio transport, the library's Start/Initialize calls return a
// handle the Session Manager can hold open directly, with no
// supervisor goroutine needed.
type SSEClient struct {
	baseClient
	url     string
	headers map[string]string
}

// NewSSEClient builds an SSE transport client, with optional headers
// forwarded on every request (e.g. bearer tokens passed through from
// the caller).
func NewSSEClient(url string, headers map[string]string) *SSEClient {
	return &SSEClient{url: url, headers: headers}
}

func (c *SSEClient) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	var opts []transport.ClientOption
	if len(c.headers) > 0 {
		opts = append(opts, transport.WithHeaders(c.headers))
	}

	mcpClient, err := client.NewSSEMCPClient(c.url, opts...)
	if err != nil {
		return fmt.Errorf("create SSE client for %s: %w", c.url, err)
	}

	if err := mcpClient.Start(ctx); err != nil {
		return fmt.Errorf("start SSE transport for %s: %w", c.url, err)
	}

	if _, err := mcpClient.Initialize(ctx, initializeRequest()); err != nil {
		_ = mcpClient.Close()
		return fmt.Errorf("initialise session for %s: %w", c.url, err)
	}

	c.inner = mcpClient
	c.connected = true
	logging.Debug("Session", "SSE session established for %s", c.url)
	return nil
}
