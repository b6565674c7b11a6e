package apihttp

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"

	"residential-cloud/internal/audit"
	"residential-cloud/internal/auth"
)

// Auditor records mutations made through the API.
type Auditor struct {
	logger audit.Logger
	log    *slog.Logger
}

// NewAuditor constructs an auditor. A nil audit logger disables auditing.
func NewAuditor(logger audit.Logger, log *slog.Logger) *Auditor {
	if log == nil {
		log = slog.Default()
	}
	return &Auditor{logger: logger, log: log}
}

// Record writes an audit entry for the caller of r.
func (a *Auditor) Record(r *http.Request, complexID int64, action, resourceType, resourceID string, meta map[string]any) {
	if a == nil || a.logger == nil {
		return
	}
	payload, _ := json.Marshal(meta)
	err := a.logger.Log(r.Context(), audit.Entry{
		ComplexID:    complexID,
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Metadata:     payload,
		IP:           remoteHost(r),
		UserAgent:    r.UserAgent(),
	})
	if err != nil {
		a.log.Warn("audit log failed", "action", action, "resource_id", resourceID, "error", err)
	}
}

// remoteHost returns the caller address. middleware.RealIP has already
// replaced RemoteAddr with the forwarded client address, without a port.
func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
