// Package logging provides the aggregator's structured logging system:
// a slog.TextHandler bridged to logr so controller-runtime-derived
// components pick up the same logger. Log entries carry a subsystem
// tag, level, message, and optional error.
//
// Usage:
//
//	logging.Init(logging.LevelInfo, os.Stdout)
//	logging.Info("Registry", "registered server %s", name)
//	logging.Error("Session", err, "connect failed for %s", serverID)
//	logging.Audit(logging.AuditEvent{Action: "remove_server", Outcome: "success", ServerID: id})
package logging
