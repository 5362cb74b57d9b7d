package models

// Rejection reason codes surfaced to the caller and recorded in the
// blocked-traffic audit trail.
const (
	ReasonPayloadTooLarge     = "payload_too_large"
	ReasonMissingClientID     = "missing_client_id"
	ReasonInvalidClientID     = "invalid_client_id"
	ReasonExceededEventLimit  = "exceeded_event_limit"
	ReasonOriginNotAuthorized = "origin_not_authorized"
)

// Blocked-traffic categories.
const (
	CategoryValidation   = "Validation Error"
	CategorySecurity     = "Security Check"
	CategoryBotDetection = "Bot Detection"
	CategoryKnownBot     = "Known Bot"
	CategorySuspiciousUA = "Suspicious Pattern"
)

// ClientRecord describes a registered client as returned by the external
// directory service. The gatekeeper only reads these, never mutates them.
type ClientRecord struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Domain  string `json:"domain"`
	OwnerID string `json:"owner_id,omitempty"`
}

// Active reports whether the client may send events.
func (c *ClientRecord) Active() bool {
	return c != nil && c.Status == "ACTIVE"
}

// ValidationResult carries the sanitized request attributes of an event
// that passed every admission check.
type ValidationResult struct {
	ClientID  string
	UserAgent string
	IP        string
	OwnerID   string
}

// Rejection is the terminal outcome of a failed admission check.
type Rejection struct {
	Reason  string
	Message string
}

// AcceptedEvent is what the gatekeeper hands to the storage collaborator
// once an event has cleared the full pipeline.
type AcceptedEvent struct {
	ClientID  string         `json:"client_id"`
	OwnerID   string         `json:"owner_id,omitempty"`
	VisitorID string         `json:"visitor_id,omitempty"`
	EventID   string         `json:"event_id,omitempty"`
	EventType string         `json:"event_type"`
	UserAgent string         `json:"user_agent"`
	IP        string         `json:"ip"`
	Payload   map[string]any `json:"payload"`
}

// Response is the wire shape returned by the collect endpoint. The exact
// format is owned by the HTTP layer; the pipeline only supplies status
// tags and messages.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
