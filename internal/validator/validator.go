// Package validator orchestrates the admission checks every inbound
// analytics event must pass: payload size, client resolution, quota,
// origin authorization and field sanitization. Checks run in a fixed
// order and short-circuit with a distinct rejection reason; every
// rejection also emits a blocked-traffic observation.
package validator

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/pathlight-analytics/gatekeeper/internal/directory"
	"github.com/pathlight-analytics/gatekeeper/internal/logging"
	"github.com/pathlight-analytics/gatekeeper/internal/metrics"
	"github.com/pathlight-analytics/gatekeeper/internal/models"
	"github.com/pathlight-analytics/gatekeeper/internal/telemetry"
)

// Directory resolves client registrations.
type Directory interface {
	GetClientByID(ctx context.Context, clientID string) (*models.ClientRecord, error)
}

// QuotaGate decides whether an owner may ingest another event.
type QuotaGate interface {
	Allow(ctx context.Context, ownerID string) bool
}

// Validator runs the ordered admission checks.
type Validator struct {
	directory  Directory
	quota      QuotaGate
	sink       telemetry.Sink
	maxPayload int
	log        *logging.Logger
}

// New creates a request validator. maxPayload <= 0 uses the default
// ceiling.
func New(dir Directory, quota QuotaGate, sink telemetry.Sink, maxPayload int) *Validator {
	if maxPayload <= 0 {
		maxPayload = PayloadMaxSize
	}
	return &Validator{
		directory:  dir,
		quota:      quota,
		sink:       sink,
		maxPayload: maxPayload,
		log:        logging.Default(),
	}
}

// Validate runs every admission check in order and returns either the
// sanitized request attributes or the first rejection. The check order is
// part of the contract: payload size, client id presence, client lookup,
// quota, origin.
func (v *Validator) Validate(ctx context.Context, body []byte, query url.Values, r *http.Request) (*models.ValidationResult, *models.Rejection) {
	if !ValidatePayloadSize(body, v.maxPayload) {
		v.recordBlocked(ctx, r, models.ReasonPayloadTooLarge, models.CategoryValidation, "", "")
		return nil, &models.Rejection{
			Reason:  models.ReasonPayloadTooLarge,
			Message: "Payload too large",
		}
	}

	clientID := SanitizeString(query.Get("client_id"), ShortStringMaxLength)
	if clientID == "" {
		v.recordBlocked(ctx, r, models.ReasonMissingClientID, models.CategoryValidation, "", "")
		return nil, &models.Rejection{
			Reason:  models.ReasonMissingClientID,
			Message: "Missing client ID",
		}
	}

	client, err := v.directory.GetClientByID(ctx, clientID)
	if err != nil {
		// An unreachable directory means the client cannot be authorized;
		// unlike cache or metering failures this rejects rather than
		// fails open, because admitting events for unknown clients would
		// attribute data to nobody.
		metrics.DependencyErrors.WithLabelValues("directory").Inc()
		v.log.ErrorContext(ctx, "Client lookup failed",
			logging.ClientID(clientID),
			logging.Error(err),
		)
	}
	if err != nil || !client.Active() {
		v.recordBlocked(ctx, r, models.ReasonInvalidClientID, models.CategoryValidation, "", clientID)
		return nil, &models.Rejection{
			Reason:  models.ReasonInvalidClientID,
			Message: "Invalid or inactive client ID",
		}
	}

	if client.OwnerID != "" {
		if !v.quota.Allow(ctx, client.OwnerID) {
			v.recordBlocked(ctx, r, models.ReasonExceededEventLimit, models.CategoryValidation, "", clientID)
			return nil, &models.Rejection{
				Reason:  models.ReasonExceededEventLimit,
				Message: "Exceeded event limit",
			}
		}
	}

	// Origin is only enforced when the header is present; native and
	// server-side clients do not send one.
	if origin := r.Header.Get("Origin"); origin != "" {
		if !directory.IsValidOrigin(origin, client.Domain) {
			v.recordBlocked(ctx, r, models.ReasonOriginNotAuthorized, models.CategorySecurity, "", clientID)
			return nil, &models.Rejection{
				Reason:  models.ReasonOriginNotAuthorized,
				Message: "Origin not authorized",
			}
		}
	}

	return &models.ValidationResult{
		ClientID:  clientID,
		UserAgent: SanitizeString(r.Header.Get("User-Agent"), StringMaxLength),
		IP:        ExtractIP(r),
		OwnerID:   client.OwnerID,
	}, nil
}

// RecordBlocked emits a blocked-traffic observation for callers outside
// the validator's own checks (bot drops). An empty category falls back to
// the generic bot-detection one.
func (v *Validator) RecordBlocked(ctx context.Context, r *http.Request, reason, category, botName, clientID string) {
	if category == "" {
		category = models.CategoryBotDetection
	}
	v.recordBlocked(ctx, r, reason, category, botName, clientID)
}

func (v *Validator) recordBlocked(ctx context.Context, r *http.Request, reason, category, botName, clientID string) {
	metrics.BlockedTotal.WithLabelValues(reason, category).Inc()
	v.log.DebugContext(ctx, "Blocked event",
		logging.Reason(reason),
		logging.Category(category),
		logging.ClientID(clientID),
		logging.IP(ExtractIP(r)),
		logging.Path(r.URL.Path),
	)
	v.sink.RecordBlocked(ctx, telemetry.BlockedObservation{
		Timestamp: time.Now().UTC(),
		Reason:    reason,
		Category:  category,
		BotName:   botName,
		ClientID:  clientID,
		Path:      r.URL.Path,
		IP:        ExtractIP(r),
		UserAgent: SanitizeString(r.Header.Get("User-Agent"), StringMaxLength),
	})
}
