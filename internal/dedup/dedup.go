// Package dedup provides first-writer-wins idempotency checks per event id.
package dedup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pathlight-analytics/gatekeeper/internal/cache"
	"github.com/pathlight-analytics/gatekeeper/internal/logging"
	"github.com/pathlight-analytics/gatekeeper/internal/metrics"
)

// exitPrefix tags events that clients may re-send across a longer tail of
// retry and flush windows, so their markers are retained twice as long.
const exitPrefix = "exit_"

// Suppressor drops events whose id has already been seen within the
// retention window for their type.
type Suppressor struct {
	store       *cache.Store
	standardTTL time.Duration
	exitTTL     time.Duration
	log         *logging.Logger
}

// NewSuppressor creates a duplicate suppressor. Zero TTLs default to 24h
// for standard events and 48h for exit events.
func NewSuppressor(store *cache.Store, standardTTL, exitTTL time.Duration) *Suppressor {
	if standardTTL <= 0 {
		standardTTL = 24 * time.Hour
	}
	if exitTTL <= 0 {
		exitTTL = 48 * time.Hour
	}
	return &Suppressor{
		store:       store,
		standardTTL: standardTTL,
		exitTTL:     exitTTL,
		log:         logging.Default(),
	}
}

// CheckDuplicate returns true when the event id was already seen within
// its retention window. The first caller for a key claims it and sees
// false; every later caller within the window sees true. An atomic
// set-if-not-exists both claims the key and answers the check, so there
// is no check-then-set race. Cache failures fail open: a down cache
// degrades dedup accuracy, not ingestion availability.
func (s *Suppressor) CheckDuplicate(ctx context.Context, eventID, eventType string) bool {
	key := fmt.Sprintf("dedup:%s:%s", eventType, eventID)

	ttl := s.standardTTL
	if strings.HasPrefix(eventID, exitPrefix) {
		ttl = s.exitTTL
	}

	claimed, err := s.store.SetNX(ctx, key, "1", ttl)
	if err != nil {
		metrics.DependencyErrors.WithLabelValues("dedup").Inc()
		s.log.ErrorContext(ctx, "Failed to check duplicate event",
			logging.EventID(eventID),
			logging.EventType(eventType),
			logging.Error(err),
		)
		return false
	}

	if !claimed {
		metrics.DuplicatesTotal.Inc()
	}
	return !claimed
}
