package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/xenophobed/isA-MCP-sub015/internal/apierrors"
	"github.com/xenophobed/isA-MCP-sub015/internal/config"
	"github.com/xenophobed/isA-MCP-sub015/internal/domain"
	"github.com/xenophobed/isA-MCP-sub015/pkg/logging"
)

// ManagedConnection is the live handle the Session Manager holds for
// one connected server. It is never observed outside this package.
type ManagedConnection struct {
	ServerID    string
	Transport   domain.TransportKind
	Client      Client
	ConnectedAt time.Time
}

// Manager owns every live ManagedConnection and the connect
// retry/backoff policy applied when acquiring one.
type Manager struct {
	mu          sync.RWMutex
	connections map[string]*ManagedConnection
	retry       config.RetryConfig
	inflight    singleflight.Group
}

// NewManager builds a Manager governed by the given retry policy.
func NewManager(retry config.RetryConfig) *Manager {
	return &Manager{
		connections: make(map[string]*ManagedConnection),
		retry:       retry,
	}
}

// Connect acquires a session for rec, retrying per the configured
// backoff schedule. Concurrent calls for the same server id are
// collapsed into a single attempt.
func (m *Manager) Connect(ctx context.Context, rec domain.ServerRecord) error {
	_, err, _ := m.inflight.Do(rec.ID, func() (any, error) {
		return nil, m.connect(ctx, rec)
	})
	return err
}

func (m *Manager) connect(ctx context.Context, rec domain.ServerRecord) error {
	if m.IsConnected(rec.ID) {
		return nil
	}

	cl, err := newClient(rec)
	if err != nil {
		return fmt.Errorf("%w: %s", apierrors.ErrConnectionFailed, err)
	}

	attempts := m.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(m.retry.BackoffSchedule, attempt-1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, connectTimeout(m.retry))
		lastErr = cl.Initialize(attemptCtx)
		cancel()

		if lastErr == nil {
			m.mu.Lock()
			m.connections[rec.ID] = &ManagedConnection{
				ServerID:    rec.ID,
				Transport:   rec.Transport,
				Client:      cl,
				ConnectedAt: time.Now().UTC(),
			}
			m.mu.Unlock()
			logging.Info("Session", "connected to %s after %d attempt(s)", rec.Name, attempt+1)
			return nil
		}

		logging.Warn("Session", "connect attempt %d/%d for %s failed: %v", attempt+1, attempts, rec.Name, lastErr)
	}

	return fmt.Errorf("%w: %s: %s", apierrors.ErrConnectionFailed, rec.Name, lastErr)
}

func connectTimeout(retry config.RetryConfig) time.Duration {
	if retry.ConnectTimeout > 0 {
		return retry.ConnectTimeout
	}
	return 30 * time.Second
}

func backoffDelay(schedule []time.Duration, idx int) time.Duration {
	if len(schedule) == 0 {
		return time.Second
	}
	if idx >= len(schedule) {
		idx = len(schedule) - 1
	}
	return schedule[idx]
}

// Disconnect releases the session for serverID, if any.
func (m *Manager) Disconnect(_ context.Context, serverID string) error {
	m.mu.Lock()
	conn, ok := m.connections[serverID]
	delete(m.connections, serverID)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	return conn.Client.Close()
}

// Reconnect disconnects and re-establishes the session for rec.
func (m *Manager) Reconnect(ctx context.Context, rec domain.ServerRecord) error {
	if err := m.Disconnect(ctx, rec.ID); err != nil {
		logging.Warn("Session", "error closing stale session for %s: %v", rec.Name, err)
	}
	return m.Connect(ctx, rec)
}

// GetSession returns the live client for serverID, if connected.
func (m *Manager) GetSession(serverID string) (Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.connections[serverID]
	if !ok {
		return nil, false
	}
	return conn.Client, true
}

// IsConnected is a fast local check with no round-trip to the backend.
func (m *Manager) IsConnected(serverID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.connections[serverID]
	return ok
}

// ListTools lists tools from the live session for serverID.
func (m *Manager) ListTools(ctx context.Context, serverID string) ([]mcp.Tool, error) {
	cl, ok := m.GetSession(serverID)
	if !ok {
		return nil, apierrors.NewSessionNotFoundError(serverID)
	}
	return cl.ListTools(ctx)
}

// CallTool invokes name on the live session for serverID, bounded by
// the configured call timeout.
func (m *Manager) CallTool(ctx context.Context, serverID, name string, args map[string]any) (*mcp.CallToolResult, error) {
	cl, ok := m.GetSession(serverID)
	if !ok {
		return nil, apierrors.NewSessionNotFoundError(serverID)
	}

	timeout := m.retry.CallTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := cl.CallTool(callCtx, name, args)
	if err != nil {
		if callCtx.Err() != nil {
			return nil, fmt.Errorf("%w: %s", apierrors.ErrToolExecutionTimeout, name)
		}
		return nil, fmt.Errorf("%w: %s: %s", apierrors.ErrToolExecutionFailed, name, err)
	}
	return result, nil
}

// HealthCheck probes serverID's session with a side-effect-free
// tools/list call.
func (m *Manager) HealthCheck(ctx context.Context, serverID string) domain.HealthResult {
	result := domain.HealthResult{ServerID: serverID, CheckedAt: time.Now().UTC()}

	cl, ok := m.GetSession(serverID)
	if !ok {
		result.Reason = "no live session"
		return result
	}

	if _, err := cl.ListTools(ctx); err != nil {
		result.Reason = err.Error()
		return result
	}

	result.Healthy = true
	return result
}

// newClient builds the transport-specific Client for rec, reading
// connection details out of its ConnectionConfig map.
func newClient(rec domain.ServerRecord) (Client, error) {
	cfg := rec.ConnectionConfig

	switch rec.Transport {
	case domain.TransportStdio:
		command, _ := cfg["command"].(string)
		if command == "" {
			return nil, fmt.Errorf("stdio server %s: connection config missing command", rec.Name)
		}
		args := toStringSlice(cfg["args"])
		env := toStringMap(cfg["env"])
		return NewStdioClient(command, args, env), nil

	case domain.TransportSSE:
		url, _ := cfg["url"].(string)
		if url == "" {
			return nil, fmt.Errorf("sse server %s: connection config missing url", rec.Name)
		}
		return NewSSEClient(url, toStringMap(cfg["headers"])), nil

	case domain.TransportStreamableHTTP, domain.TransportHTTP:
		url, _ := cfg["url"].(string)
		if url == "" {
			return nil, fmt.Errorf("streamable-http server %s: connection config missing url", rec.Name)
		}
		return NewStreamableHTTPClient(url, toStringMap(cfg["headers"])), nil

	default:
		return nil, fmt.Errorf("unsupported transport kind: %s", rec.Transport)
	}
}

func toStringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		if s, ok := v.([]string); ok {
			return s
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func toStringMap(v any) map[string]string {
	raw, ok := v.(map[string]any)
	if !ok {
		if m, ok := v.(map[string]string); ok {
			return m
		}
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, val := range raw {
		if s, ok := val.(string); ok {
			out[k] = s
		}
	}
	return out
}
