// Package apierrors defines the aggregator's error taxonomy: a
// NotFoundError type with per-resource constructors, sentinel errors
// for each recoverable/non-recoverable failure kind, and helpers that
// turn any error into the uniform result envelope returned at the
// facade boundary.
package apierrors

import (
	"errors"
	"fmt"

	"github.com/xenophobed/isA-MCP-sub015/internal/domain"
)

// NotFoundError represents a missing resource (server, tool, skill, ...).
type NotFoundError struct {
	ResourceType string
	ResourceName string
	Message      string
}

func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s %q not found", e.ResourceType, e.ResourceName)
}

// IsNotFound reports whether err is (or wraps) a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// NewNotFoundError builds a NotFoundError for the given resource type.
func NewNotFoundError(resourceType, resourceName string) *NotFoundError {
	return &NotFoundError{ResourceType: resourceType, ResourceName: resourceName}
}

var (
	// NewServerNotFoundError reports an unknown server id or name.
	NewServerNotFoundError = func(name string) *NotFoundError {
		return NewNotFoundError("server", name)
	}
	// NewToolNotFoundError reports an unknown (namespaced or bare) tool name.
	NewToolNotFoundError = func(name string) *NotFoundError {
		return NewNotFoundError("tool", name)
	}
	// NewSessionNotFoundError reports a server with no live session.
	NewSessionNotFoundError = func(serverID string) *NotFoundError {
		return NewNotFoundError("session", serverID)
	}
)

// Sentinel errors for the taxonomy described in the design notes.
// Call sites wrap these with fmt.Errorf("...: %w", ErrXxx) so that
// errors.Is continues to match across layers.
var (
	ErrValidation                        = errors.New("validation error")
	ErrDuplicateName                     = errors.New("duplicate name")
	ErrConnectionFailed                  = errors.New("connection failed")
	ErrInitialiseTimeout                 = errors.New("session initialise timed out")
	ErrServerUnavailable                 = errors.New("server unavailable")
	ErrToolExecutionTimeout              = errors.New("tool execution timed out")
	ErrToolExecutionFailed               = errors.New("tool execution failed")
	ErrServerDisconnectedDuringExecution = errors.New("server disconnected during execution")
	ErrClassifierFailed                  = errors.New("skill classification failed")
	ErrDiscoveryFailed                   = errors.New("tool discovery failed")
	ErrStore                            = errors.New("store error")
)

// ToInvocationResult converts any error into the normalised, uniform
// result envelope returned at the facade boundary — the same shape
// as a success, so downstream callers never branch on transport.
func ToInvocationResult(err error) domain.InvocationResult {
	return domain.InvocationResult{
		Content: []domain.ContentBlock{{Type: "text", Text: err.Error()}},
		IsError: true,
	}
}

// WithPrefix behaves like ToInvocationResult but prefixes the message,
// mirroring HandleErrorWithPrefix's shape for call sites that want to
// name the operation that failed.
func WithPrefix(prefix string, err error) domain.InvocationResult {
	return domain.InvocationResult{
		Content: []domain.ContentBlock{{Type: "text", Text: fmt.Sprintf("%s: %v", prefix, err)}},
		IsError: true,
	}
}
