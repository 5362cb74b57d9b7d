package logging

import "log/slog"

// Common field names for consistent logging across the gatekeeper.
const (
	FieldService   = "service"
	FieldClientID  = "client_id"
	FieldOwnerID   = "owner_id"
	FieldIP        = "ip"
	FieldPath      = "path"
	FieldError     = "error"
	FieldEventID   = "event_id"
	FieldEventType = "event_type"
	FieldReason    = "reason"
	FieldCategory  = "category"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// ClientID returns a slog attribute for the client ID.
func ClientID(id string) slog.Attr {
	return slog.String(FieldClientID, id)
}

// OwnerID returns a slog attribute for the owning account ID.
func OwnerID(id string) slog.Attr {
	return slog.String(FieldOwnerID, id)
}

// IP returns a slog attribute for the IP address.
func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}

// Path returns a slog attribute for the HTTP path.
func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}

// EventID returns a slog attribute for an event ID.
func EventID(id string) slog.Attr {
	return slog.String(FieldEventID, id)
}

// EventType returns a slog attribute for an event type.
func EventType(t string) slog.Attr {
	return slog.String(FieldEventType, t)
}

// Reason returns a slog attribute for a rejection reason code.
func Reason(reason string) slog.Attr {
	return slog.String(FieldReason, reason)
}

// Category returns a slog attribute for a blocked-traffic category.
func Category(category string) slog.Attr {
	return slog.String(FieldCategory, category)
}
