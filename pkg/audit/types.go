package audit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/campusgate/pkg/auth"
	"github.com/platinummonkey/campusgate/pkg/contextkeys"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authentication events
	EventTypeAuthRegister        EventType = "auth.register"
	EventTypeAuthLogin           EventType = "auth.login"
	EventTypeAuthLoginFailed     EventType = "auth.login_failed"
	EventTypeAuthRefresh         EventType = "auth.refresh"
	EventTypeAuthRefreshMismatch EventType = "auth.refresh_mismatch"
	EventTypeAuthLogout          EventType = "auth.logout"
	EventTypeAuthKeyIssued       EventType = "auth.api_key_issued"
	EventTypeAuthKeyRejected     EventType = "auth.api_key_rejected"

	// Authorization events
	EventTypeAuthzAccessDenied EventType = "authz.access_denied"
	EventTypeAuthzRoleChange   EventType = "authz.role_change"

	// Maintenance events
	EventTypeMaintenanceKeyPurge EventType = "maintenance.api_key_purge"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// Event is a single audit record. It never carries passwords, tokens or key
// plaintext.
type Event struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Type      EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor
	UserID string    `json:"user_id,omitempty"`
	Email  string    `json:"email,omitempty"`
	Role   auth.Role `json:"role,omitempty"`

	// Target of the action, e.g. the user whose role changed
	ResourceID string `json:"resource_id,omitempty"`

	// Request context
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Method    string `json:"method,omitempty"`
	Path      string `json:"path,omitempty"`

	Message  string                 `json:"message,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// NewEvent builds an event stamped with the request context. r may be nil for
// events raised outside a request.
func NewEvent(ctx context.Context, r *http.Request, eventType EventType, status EventStatus) *Event {
	e := &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		Status:    status,
		RequestID: contextkeys.GetRequestID(ctx),
	}
	if r != nil {
		e.IPAddress = clientIP(r)
		e.UserAgent = r.UserAgent()
		e.Method = r.Method
		e.Path = r.URL.Path
	}
	return e
}

// WithPrincipal records p as the actor
func (e *Event) WithPrincipal(p *auth.Principal) *Event {
	if p != nil {
		e.UserID = p.ID
		e.Email = p.Email
		e.Role = p.Role
	}
	return e
}

// WithUser records u as the actor
func (e *Event) WithUser(u *auth.User) *Event {
	if u != nil {
		p := u.Principal()
		e.WithPrincipal(&p)
	}
	return e
}

// WithResource sets the target id
func (e *Event) WithResource(id string) *Event {
	e.ResourceID = id
	return e
}

// WithMessage sets the message
func (e *Event) WithMessage(msg string) *Event {
	e.Message = msg
	return e
}

// WithMetadata adds a metadata entry
func (e *Event) WithMetadata(key string, value interface{}) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// clientIP returns the first X-Forwarded-For hop or the remote host
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
