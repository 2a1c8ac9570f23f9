// Package domain holds the canonical types shared by every aggregator
// subsystem: server records, transport/status enums, tool and vector
// records, and the routing/health snapshots passed between them.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// TransportKind identifies which wire transport a server speaks.
type TransportKind string

const (
	TransportStdio          TransportKind = "stdio"
	TransportSSE            TransportKind = "sse"
	TransportStreamableHTTP TransportKind = "streamable_http"
	// TransportHTTP is an alias for TransportStreamableHTTP.
	TransportHTTP TransportKind = "http"
)

// ParseTransportKind normalises a wire string to a TransportKind,
// resolving the plain-http alias to streamable-http.
func ParseTransportKind(s string) (TransportKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(TransportStdio):
		return TransportStdio, nil
	case string(TransportSSE):
		return TransportSSE, nil
	case string(TransportStreamableHTTP):
		return TransportStreamableHTTP, nil
	case string(TransportHTTP):
		return TransportStreamableHTTP, nil
	default:
		return "", fmt.Errorf("unknown transport kind: %q", s)
	}
}

// ServerStatus is the connection lifecycle state of a ServerRecord.
type ServerStatus string

const (
	StatusDisconnected ServerStatus = "disconnected"
	StatusConnecting   ServerStatus = "connecting"
	StatusConnected    ServerStatus = "connected"
	StatusDegraded     ServerStatus = "degraded"
	StatusError        ServerStatus = "error"
)

// RoutingStrategy tags how the Router resolved a tool reference.
type RoutingStrategy string

const (
	StrategyExplicitServer    RoutingStrategy = "explicit_server"
	StrategyNamespaceResolved RoutingStrategy = "namespace_resolved"
	StrategyFallback          RoutingStrategy = "fallback"
)

// TenantScope controls visibility of a record across organisations.
// A record with IsGlobal true is visible regardless of the caller's
// org id; otherwise it is visible only to callers in the same OrgID.
type TenantScope struct {
	OrgID    string
	IsGlobal bool
}

// Visible reports whether this scope is visible to a caller who
// supplied callerOrgID (empty string means "no tenant id given").
func (t TenantScope) Visible(callerOrgID string) bool {
	if t.IsGlobal {
		return true
	}
	if callerOrgID == "" {
		// Defensive default: globals only when no tenant id is given.
		return false
	}
	return t.OrgID == callerOrgID
}

// ServerRecord is the durable description of one registered backend.
type ServerRecord struct {
	ID                 string
	Name               string
	Description        string
	Transport          TransportKind
	ConnectionConfig   map[string]any
	HealthCheckAddress string
	Status             ServerStatus
	ToolCount          int
	ErrorMessage       string
	Tenant             TenantScope

	RegisteredAt    time.Time
	ConnectedAt     *time.Time
	LastHealthCheck *time.Time
}

// RegisterConfig is the input shape accepted by Registry.Add.
type RegisterConfig struct {
	Name               string
	Description        string
	Transport          TransportKind
	ConnectionConfig   map[string]any
	HealthCheckAddress string
	Tenant             TenantScope
}

// ServerPatch is a set of optional field updates applied by
// Registry.Update; nil fields are left untouched.
type ServerPatch struct {
	Description        *string
	ConnectionConfig    map[string]any
	HealthCheckAddress *string
}

// ToolRecord is one namespaced tool discovered from a backend.
type ToolRecord struct {
	ID             int64
	Name           string // "{server_name}.{original_name}"
	OriginalName   string
	Description    string
	InputSchema    map[string]any
	SourceServerID string
	IsExternal     bool
	IsClassified   bool
	SkillIDs       []string
	PrimarySkillID string
	Tenant         TenantScope
	UpdatedAt      time.Time
}

// VectorRecord is the embedding-indexed twin of a ToolRecord.
type VectorRecord struct {
	ToolID   int64
	Vector   []float32
	Payload  map[string]any
}

// ScoredTool is a search hit returned by the vector store, decorated
// with its similarity score.
type ScoredTool struct {
	Tool  VectorRecord
	Score float32
}

// RoutingContext is the ephemeral per-invocation resolution record
// built by the Router and discarded after the reply is sent.
type RoutingContext struct {
	ResolvedName   string
	OriginalName   string
	ServerID       string
	ServerName     string
	Args           map[string]any
	Strategy       RoutingStrategy
	CreatedAt      time.Time
	CompletedAt    time.Time
}

// InvocationResult is the normalised, uniform envelope returned by
// both successful and failed tool executions.
type InvocationResult struct {
	Content         []ContentBlock
	IsError         bool
	ExecutionTimeMS int64
	ServerID        string
	ServerName      string
	ToolName        string
	OriginalName    string
}

// ContentBlock is one element of an MCP tool result's content array.
type ContentBlock struct {
	Type string
	Text string
}

// HealthResult is one liveness probe outcome.
type HealthResult struct {
	ServerID            string
	Healthy             bool
	ConsecutiveFailures int
	Reason              string
	CheckedAt           time.Time
}

// AggregatorState is the aggregated snapshot returned by
// Facade.GetState: server counts by status, total discovered tools,
// and when the health loop last swept.
type AggregatorState struct {
	TotalServers     int
	ConnectedCount   int
	DegradedCount    int
	ErrorCount       int
	DisconnectedCount int
	TotalTools       int
	LastHealthSweep  *time.Time
}

// NamespaceTool builds the namespaced name "{server}.{tool}".
func NamespaceTool(serverName, toolName string) string {
	return serverName + "." + toolName
}

// ParseNamespacedName splits a namespaced name into its server and
// original-tool-name parts, splitting only on the first '.' so that
// original tool names may themselves contain dots.
func ParseNamespacedName(namespaced string) (serverName, originalName string, err error) {
	idx := strings.Index(namespaced, ".")
	if idx < 0 {
		return "", "", fmt.Errorf("not a namespaced name: %q", namespaced)
	}
	return namespaced[:idx], namespaced[idx+1:], nil
}
