package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"

	"github.com/xenophobed/isA-MCP-sub015/pkg/logging"
)

// StdioClient speaks MCP over a subprocess's stdin/stdout pipes. The
// underlying library ties its internal reader/writer goroutines to
// the scope of the call that opened the pipes, so a supervisor
// goroutine holds that scope open for the lifetime of the connection.
type StdioClient struct {
	baseClient

	command string
	args    []string
	env     map[string]string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStdioClient builds a stdio transport client for command/args,
// with env applied on top of the supervisor's own environment.
func NewStdioClient(command string, args []string, env map[string]string) *StdioClient {
	return &StdioClient{command: command, args: args, env: env}
}

// Initialize starts the supervisor goroutine, which spawns the
// subprocess, performs the MCP handshake, and publishes the result
// (or error) on a buffered ready channel before parking until the
// connection is cancelled.
func (c *StdioClient) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	supervisorCtx, cancel := context.WithCancel(context.Background())
	ready := make(chan error, 1)

	c.wg.Add(1)
	go c.supervise(supervisorCtx, ready)

	select {
	case err := <-ready:
		if err != nil {
			cancel()
			c.wg.Wait()
			return err
		}
		c.cancel = cancel
		return nil
	case <-ctx.Done():
		cancel()
		c.wg.Wait()
		return ctx.Err()
	}
}

func (c *StdioClient) supervise(ctx context.Context, ready chan<- error) {
	defer c.wg.Done()

	envStrings := make([]string, 0, len(c.env))
	for k, v := range c.env {
		envStrings = append(envStrings, fmt.Sprintf("%s=%s", k, v))
	}

	mcpClient, err := client.NewStdioMCPClient(c.command, envStrings, c.args...)
	if err != nil {
		ready <- fmt.Errorf("start subprocess %s: %w", c.command, err)
		return
	}

	if _, err := mcpClient.Initialize(ctx, initializeRequest()); err != nil {
		_ = mcpClient.Close()
		ready <- fmt.Errorf("initialise session for %s: %w", c.command, err)
		return
	}

	c.mu.Lock()
	c.inner = mcpClient
	c.connected = true
	c.mu.Unlock()

	ready <- nil
	logging.Debug("Session", "stdio supervisor ready for %s", c.command)

	for {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			if c.inner != nil {
				_ = c.inner.Close()
				c.inner = nil
			}
			c.connected = false
			c.mu.Unlock()
			logging.Debug("Session", "stdio supervisor exiting for %s", c.command)
			return
		case <-time.After(time.Hour):
			// Cooperative wake to keep the loop's cancellation check
			// live without busy-polling; the select above handles
			// cancellation the instant it happens.
		}
	}
}

// Close cancels the supervisor goroutine and waits for it to tear
// down the subprocess before returning.
func (c *StdioClient) Close() error {
	c.mu.RLock()
	cancel := c.cancel
	c.mu.RUnlock()

	if cancel == nil {
		return nil
	}
	cancel()
	c.wg.Wait()
	return nil
}
