package tokensmith

import (
	"context"
	"time"

	"github.com/tokensmith/tokensmith/internal/audit"
)

// AuditSink receives the engine's security events. Re-exported so callers
// never import the internal package.
type AuditSink = audit.Sink

// AuditEvent is one security event delivered to the sink.
type AuditEvent = audit.Event

// Audit event type names, re-exported for sink implementations.
const (
	AuditRegister      = audit.TypeRegister
	AuditLoginSuccess  = audit.TypeLoginSuccess
	AuditLoginFailure  = audit.TypeLoginFailure
	AuditLoginLimited  = audit.TypeLoginLimited
	AuditTokenIssue    = audit.TypeTokenIssue
	AuditTokenRotate   = audit.TypeTokenRotate
	AuditReuseDetected = audit.TypeReuseDetected
	AuditRevoke        = audit.TypeRevoke
	AuditRevokeAll     = audit.TypeRevokeAll
)

// NewJSONLinesAuditSink returns a sink writing one JSON event per line, the
// default shape for shipping audit events to a log pipeline.
func NewJSONLinesAuditSink(w interface{ Write([]byte) (int, error) }) AuditSink {
	return audit.NewJSONLinesSink(w)
}

// emitAudit builds and enqueues one event. metadata is built lazily so
// callers pay nothing when auditing is disabled.
func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, ownerID, fingerprint string, cause error, metadata func() map[string]string) {
	if e == nil || e.audit == nil {
		return
	}

	event := audit.Event{
		Timestamp:   time.Now(),
		Type:        eventType,
		OwnerID:     ownerID,
		Fingerprint: shortFingerprint(fingerprint),
		IP:          clientIPFromContext(ctx),
		Success:     success,
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	if metadata != nil {
		event.Metadata = metadata()
	}

	e.audit.Emit(event)
}

// shortFingerprint truncates a fingerprint for audit and log output.
func shortFingerprint(fingerprint string) string {
	if len(fingerprint) <= 12 {
		return fingerprint
	}
	return fingerprint[:12]
}
