// Package service wires the admission stages into the single pipeline
// every inbound event flows through: validation, bot classification,
// visitor hashing and duplicate suppression. Each stage can short-circuit
// with a terminal outcome; no stage failure propagates as a pipeline
// failure.
package service

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/pathlight-analytics/gatekeeper/internal/bot"
	"github.com/pathlight-analytics/gatekeeper/internal/clientstats"
	"github.com/pathlight-analytics/gatekeeper/internal/dedup"
	"github.com/pathlight-analytics/gatekeeper/internal/identity"
	"github.com/pathlight-analytics/gatekeeper/internal/logging"
	"github.com/pathlight-analytics/gatekeeper/internal/metrics"
	"github.com/pathlight-analytics/gatekeeper/internal/models"
	"github.com/pathlight-analytics/gatekeeper/internal/salt"
	"github.com/pathlight-analytics/gatekeeper/internal/validator"
)

// Outcome status tags. Ignored and duplicate events are acknowledged to
// the sender but never processed.
const (
	StatusSuccess   = "success"
	StatusIgnored   = "ignored"
	StatusDuplicate = "duplicate"
	StatusError     = "error"
)

// Outcome is the terminal result of one pipeline pass.
type Outcome struct {
	Status  string
	Reason  string
	Message string
}

// EventWriter receives events that cleared every admission check. Storage
// is outside the gatekeeper's scope; the default writer just logs.
type EventWriter interface {
	WriteEvent(ctx context.Context, event *models.AcceptedEvent) error
}

// LogWriter is the default EventWriter.
type LogWriter struct{}

func (LogWriter) WriteEvent(ctx context.Context, event *models.AcceptedEvent) error {
	logging.Default().DebugContext(ctx, "Accepted event",
		logging.ClientID(event.ClientID),
		logging.EventType(event.EventType),
	)
	return nil
}

// GateService runs the full admission pipeline.
type GateService struct {
	validator *validator.Validator
	salts     *salt.Manager
	dedup     *dedup.Suppressor
	stats     *clientstats.Recorder
	writer    EventWriter
	log       *logging.Logger
}

// NewGateService constructs the pipeline. stats may be nil when usage
// stats are disabled; writer defaults to LogWriter.
func NewGateService(v *validator.Validator, salts *salt.Manager, suppressor *dedup.Suppressor, stats *clientstats.Recorder, writer EventWriter) *GateService {
	if writer == nil {
		writer = LogWriter{}
	}
	return &GateService{
		validator: v,
		salts:     salts,
		dedup:     suppressor,
		stats:     stats,
		writer:    writer,
		log:       logging.Default(),
	}
}

// Process runs one event through the pipeline and returns its terminal
// outcome. body is the raw payload bytes (for the size ceiling), payload
// the decoded fields.
func (s *GateService) Process(ctx context.Context, body []byte, payload map[string]any, query url.Values, r *http.Request) Outcome {
	start := time.Now()
	defer func() {
		metrics.ProcessDuration.Observe(time.Since(start).Seconds())
	}()

	metrics.EventBytesTotal.Add(float64(len(body)))

	result, rejection := s.validator.Validate(ctx, body, query, r)
	if rejection != nil {
		metrics.EventsTotal.WithLabelValues(StatusError).Inc()
		return Outcome{
			Status:  StatusError,
			Reason:  rejection.Reason,
			Message: rejection.Message,
		}
	}

	if decision := bot.Classify(result.UserAgent, r); decision.Blocked {
		s.validator.RecordBlocked(ctx, r, decision.Reason, decision.Category, decision.BotName, result.ClientID)
		metrics.EventsTotal.WithLabelValues(StatusIgnored).Inc()
		s.log.DebugContext(ctx, "Dropped bot traffic",
			logging.ClientID(result.ClientID),
			logging.Reason(decision.Reason),
			slog.String("bot_name", decision.BotName),
		)
		// Bots get acknowledged, not rejected, so they have no signal to
		// adapt against.
		return Outcome{Status: StatusIgnored}
	}

	eventType := stringField(payload, "type")
	if eventType == "" {
		eventType = "track"
	}

	var visitorID string
	if anonymousID := stringField(payload, "anonymous_id"); anonymousID != "" {
		visitorID = identity.SaltedID(anonymousID, s.salts.DailySalt(ctx))
	}

	if eventID := stringField(payload, "event_id"); eventID != "" {
		if s.dedup.CheckDuplicate(ctx, eventID, eventType) {
			metrics.EventsTotal.WithLabelValues(StatusDuplicate).Inc()
			s.log.DebugContext(ctx, "Dropped duplicate event",
				logging.ClientID(result.ClientID),
				logging.EventID(eventID),
				logging.EventType(eventType),
			)
			return Outcome{Status: StatusDuplicate}
		}
	}

	event := &models.AcceptedEvent{
		ClientID:  result.ClientID,
		OwnerID:   result.OwnerID,
		VisitorID: visitorID,
		EventID:   stringField(payload, "event_id"),
		EventType: eventType,
		UserAgent: result.UserAgent,
		IP:        result.IP,
		Payload:   payload,
	}

	if err := s.writer.WriteEvent(ctx, event); err != nil {
		// Availability over strict delivery: the event is acknowledged
		// and the loss is visible operationally.
		metrics.DependencyErrors.WithLabelValues("writer").Inc()
		s.log.ErrorContext(ctx, "Failed to hand off accepted event",
			logging.ClientID(result.ClientID),
			logging.Error(err),
		)
	}

	s.recordStats(ctx, result.ClientID, result.IP)

	metrics.EventsTotal.WithLabelValues(StatusSuccess).Inc()
	return Outcome{Status: StatusSuccess}
}

// recordStats updates usage counters fire-and-forget.
func (s *GateService) recordStats(ctx context.Context, clientID, ip string) {
	if s.stats == nil {
		return
	}

	ctx = context.WithoutCancel(ctx)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.ErrorContext(ctx, "Panic while recording client stats", slog.Any("panic", r))
			}
		}()
		if err := s.stats.RecordAccepted(ctx, clientID, ip); err != nil {
			s.log.WarnContext(ctx, "Failed to record client stats",
				logging.ClientID(clientID),
				logging.Error(err),
			)
		}
	}()
}

// stringField extracts a string payload field, tolerating absent or
// non-string values.
func stringField(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}
