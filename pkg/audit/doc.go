// Package audit records security-relevant actions: logins, refresh rotation,
// logouts, API key issuance, denied requests and role changes.
//
// Events are built from the request and the acting principal, then handed to
// a Logger. LogrusLogger writes JSON lines; DBLogger stores rows in the
// audit_events table; MultiLogger fans out to several sinks. AsyncLogger moves
// a slow sink onto a bounded queue and drops events when the queue is full.
//
//	sink := audit.NewMultiLogger(audit.NewLogrusLogger(os.Stdout), dbLogger)
//	audit.Emit(ctx, sink, audit.NewEvent(ctx, r, audit.EventTypeAuthLogin, audit.EventStatusSuccess).
//		WithUser(session.User))
//
// Emit never fails the caller; a sink error is logged at warn level.
//
// Events never carry passwords, tokens or API key plaintext.
package audit
