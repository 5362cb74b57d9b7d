// Package clientstats keeps per-client usage counters in the shared
// Redis, so every gatekeeper instance increments the same numbers and
// other services can read them back without talking to us.
//
// A stats:{client_id} hash carries the running totals. Beside it live
// rolling counters keyed by hour (stats:hourly:..., kept 48h) and by day
// (stats:daily:..., kept 7d), plus a per-day set of source IPs
// (stats:ips:..., kept 7d) for unique-visitor counts.
package clientstats

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Stats represents current ingest statistics for a client.
type Stats struct {
	ClientID         string     `json:"client_id"`
	LastEventAt      *time.Time `json:"last_event_at,omitempty"`
	LastEventIP      string     `json:"last_event_ip,omitempty"`
	TotalEvents      int64      `json:"total_events"`
	EventsLastHour   int64      `json:"events_last_hour"`
	EventsToday      int64      `json:"events_today"`
	UniqueIPsToday   int64      `json:"unique_ips_today"`
	StatsRetrievedAt time.Time  `json:"stats_retrieved_at"`
}

// Recorder writes and reads per-client ingest counters.
type Recorder struct {
	redis *redis.Client
}

// NewRecorder creates a recorder from an existing Redis connection.
func NewRecorder(client *redis.Client) *Recorder {
	return &Recorder{redis: client}
}

// RecordAccepted counts one accepted event for a client. All counter
// updates go out in a single pipelined round trip; a failure loses one
// increment and callers log it rather than retry.
func (r *Recorder) RecordAccepted(ctx context.Context, clientID, clientIP string) error {
	now := time.Now()
	hourKey := now.Format("2006010215") // YYYYMMDDHH
	dayKey := now.Format("20060102")    // YYYYMMDD
	nowUnix := strconv.FormatInt(now.Unix(), 10)

	pipe := r.redis.Pipeline()

	statsKey := fmt.Sprintf("stats:%s", clientID)
	pipe.HSet(ctx, statsKey, map[string]interface{}{
		"last_event_at": nowUnix,
		"last_event_ip": clientIP,
	})
	pipe.HIncrBy(ctx, statsKey, "total_events", 1)

	hourlyKey := fmt.Sprintf("stats:hourly:%s:%s", clientID, hourKey)
	pipe.IncrBy(ctx, hourlyKey, 1)
	pipe.Expire(ctx, hourlyKey, 48*time.Hour)

	dailyKey := fmt.Sprintf("stats:daily:%s:%s", clientID, dayKey)
	pipe.IncrBy(ctx, dailyKey, 1)
	pipe.Expire(ctx, dailyKey, 7*24*time.Hour)

	// Events without a resolvable source IP still count, they just do
	// not feed the unique-visitor set.
	if clientIP != "" {
		ipsKey := fmt.Sprintf("stats:ips:%s:%s", clientID, dayKey)
		pipe.SAdd(ctx, ipsKey, clientIP)
		pipe.Expire(ctx, ipsKey, 7*24*time.Hour)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return nil
}

// Stats returns the current counters for a client.
func (r *Recorder) Stats(ctx context.Context, clientID string) (*Stats, error) {
	now := time.Now()
	hourKey := now.Format("2006010215")
	dayKey := now.Format("20060102")

	statsKey := fmt.Sprintf("stats:%s", clientID)
	fields, err := r.redis.HGetAll(ctx, statsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read stats: %w", err)
	}

	stats := &Stats{
		ClientID:         clientID,
		StatsRetrievedAt: now,
	}

	if v, ok := fields["last_event_at"]; ok {
		if unix, err := strconv.ParseInt(v, 10, 64); err == nil {
			t := time.Unix(unix, 0)
			stats.LastEventAt = &t
		}
	}
	stats.LastEventIP = fields["last_event_ip"]
	if v, ok := fields["total_events"]; ok {
		stats.TotalEvents, _ = strconv.ParseInt(v, 10, 64)
	}

	hourlyKey := fmt.Sprintf("stats:hourly:%s:%s", clientID, hourKey)
	if v, err := r.redis.Get(ctx, hourlyKey).Int64(); err == nil {
		stats.EventsLastHour = v
	}

	dailyKey := fmt.Sprintf("stats:daily:%s:%s", clientID, dayKey)
	if v, err := r.redis.Get(ctx, dailyKey).Int64(); err == nil {
		stats.EventsToday = v
	}

	ipsKey := fmt.Sprintf("stats:ips:%s:%s", clientID, dayKey)
	if v, err := r.redis.SCard(ctx, ipsKey).Result(); err == nil {
		stats.UniqueIPsToday = v
	}

	return stats, nil
}
