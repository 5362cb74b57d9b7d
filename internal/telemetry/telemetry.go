// Package telemetry ships blocked-traffic observations to the external
// telemetry collaborator. Publishing is fire-and-forget: the admission
// pipeline never blocks on or fails because of the sink.
package telemetry

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/pathlight-analytics/gatekeeper/internal/logging"
)

// BlockedObservation is the audit record emitted for every rejected or
// bot-dropped event.
type BlockedObservation struct {
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
	Category  string    `json:"category"`
	BotName   string    `json:"bot_name,omitempty"`
	ClientID  string    `json:"client_id,omitempty"`
	Path      string    `json:"path,omitempty"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
}

// Sink records blocked-traffic observations.
type Sink interface {
	RecordBlocked(ctx context.Context, obs BlockedObservation)
	Close() error
}

// NATSSink publishes observations as JSON to a NATS subject.
type NATSSink struct {
	conn    *nats.Conn
	subject string
	log     *logging.Logger
}

// NewNATSSink connects to NATS and returns a sink publishing to subject.
func NewNATSSink(url, subject string) (*NATSSink, error) {
	log := logging.Default()
	conn, err := nats.Connect(url,
		nats.Name("gatekeeper-telemetry"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("Telemetry NATS disconnected", logging.Error(err))
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info("Telemetry NATS reconnected")
		}),
	)
	if err != nil {
		return nil, err
	}

	return &NATSSink{
		conn:    conn,
		subject: subject,
		log:     log,
	}, nil
}

// RecordBlocked publishes the observation in a detached goroutine.
// Failures are logged, never surfaced.
func (s *NATSSink) RecordBlocked(ctx context.Context, obs BlockedObservation) {
	if obs.Timestamp.IsZero() {
		obs.Timestamp = time.Now().UTC()
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.ErrorContext(ctx, "Panic while recording blocked traffic", slog.Any("panic", r))
			}
		}()

		data, err := json.Marshal(obs)
		if err != nil {
			s.log.ErrorContext(ctx, "Failed to marshal blocked-traffic observation", logging.Error(err))
			return
		}
		if err := s.conn.Publish(s.subject, data); err != nil {
			s.log.ErrorContext(ctx, "Failed to publish blocked-traffic observation",
				slog.String("subject", s.subject),
				logging.Error(err),
			)
		}
	}()
}

// Close drains the connection so buffered observations flush.
func (s *NATSSink) Close() error {
	return s.conn.Drain()
}

// NoOpSink discards observations (telemetry disabled).
type NoOpSink struct{}

func (NoOpSink) RecordBlocked(ctx context.Context, obs BlockedObservation) {}

func (NoOpSink) Close() error { return nil }
