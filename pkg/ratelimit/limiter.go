// Package ratelimit enforces per (tool, actor) quotas across three sliding
// windows (minute, hour, day) plus an explicit cooldown. Check is advisory and
// never mutates state; Record applies the increment. Each key's
// read-modify-write runs under a per-key mutex so interleaved invocations
// cannot under-count.
package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/keshwara/gatekit/pkg/store"
)

// Limiter decides admit/deny per (tool, actor) key and supplies retry-after
// hints. State is persisted so counters survive restarts.
type Limiter struct {
	st       store.Store
	defaults Limits

	mu        sync.Mutex
	overrides map[string]Limits
	keyLocks  map[string]*sync.Mutex

	now func() time.Time
}

// New creates a limiter persisting counters to st. Zero fields in defaults
// take the stock values.
func New(st store.Store, defaults Limits) *Limiter {
	if defaults.PerMinute <= 0 {
		defaults.PerMinute = DefaultLimits.PerMinute
	}
	if defaults.PerHour <= 0 {
		defaults.PerHour = DefaultLimits.PerHour
	}
	if defaults.PerDay <= 0 {
		defaults.PerDay = DefaultLimits.PerDay
	}
	if defaults.CooldownSeconds <= 0 {
		defaults.CooldownSeconds = DefaultLimits.CooldownSeconds
	}

	return &Limiter{
		st:        st,
		defaults:  defaults,
		overrides: make(map[string]Limits),
		keyLocks:  make(map[string]*sync.Mutex),
		now:       time.Now,
	}
}

// SetOverride replaces the default limits for one tool.
func (l *Limiter) SetOverride(tool string, limits Limits) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.overrides[tool] = limits

	log.Info().
		Str("tool", tool).
		Int("per_minute", limits.PerMinute).
		Int("per_hour", limits.PerHour).
		Int("per_day", limits.PerDay).
		Msg("Rate limit override set")
}

// Override returns the configured override for a tool, if any.
func (l *Limiter) Override(tool string) (Limits, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.overrides[tool]
	return lim, ok
}

// LimitsFor returns the effective limits for a tool.
func (l *Limiter) LimitsFor(tool string) Limits {
	if lim, ok := l.Override(tool); ok {
		return lim
	}
	return l.defaults
}

func key(tool, actorID string) string {
	return tool + ":" + actorID
}

func (l *Limiter) keyLock(k string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	km, ok := l.keyLocks[k]
	if !ok {
		km = &sync.Mutex{}
		l.keyLocks[k] = km
	}
	return km
}

func (l *Limiter) load(ctx context.Context, k string) (record, error) {
	var rec record
	found, err := store.GetJSON(ctx, l.st, k, &rec)
	if err != nil {
		return record{}, err
	}
	if !found {
		now := l.now()
		rec = record{
			Minute: window{WindowStart: now},
			Hour:   window{WindowStart: now},
			Day:    window{WindowStart: now},
		}
	}
	return rec, nil
}

// effectiveCount treats a stale window as empty without resetting it.
func effectiveCount(w window, granularity time.Duration, now time.Time) int {
	if now.Sub(w.WindowStart) >= granularity {
		return 0
	}
	return w.Count
}

// rollover resets a stale window's count and restarts its clock.
func rollover(w *window, granularity time.Duration, now time.Time) {
	if now.Sub(w.WindowStart) >= granularity {
		w.Count = 0
		w.WindowStart = now
	}
}

func retryAfter(w window, granularity time.Duration, now time.Time) int {
	left := granularity - now.Sub(w.WindowStart)
	secs := int(math.Ceil(left.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Check reports whether a call for (tool, actor) would be admitted. It
// performs no mutation: callers must separately Record on actual execution,
// so two overlapping calls can both pass Check before either records.
func (l *Limiter) Check(ctx context.Context, tool, actorID string) (Decision, error) {
	k := key(tool, actorID)
	km := l.keyLock(k)
	km.Lock()
	defer km.Unlock()

	rec, err := l.load(ctx, k)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to load rate limit state: %w", err)
	}

	now := l.now()
	limits := l.LimitsFor(tool)

	if rec.CooldownUntil != nil && now.Before(*rec.CooldownUntil) {
		secs := int(math.Ceil(rec.CooldownUntil.Sub(now).Seconds()))
		if secs < 1 {
			secs = 1
		}
		return Decision{
			Allowed:           false,
			RetryAfterSeconds: secs,
			Reason:            "Cooldown active",
		}, nil
	}

	minuteCount := effectiveCount(rec.Minute, time.Minute, now)
	hourCount := effectiveCount(rec.Hour, time.Hour, now)
	dayCount := effectiveCount(rec.Day, 24*time.Hour, now)

	remaining := Remaining{
		Minute: max(0, limits.PerMinute-minuteCount),
		Hour:   max(0, limits.PerHour-hourCount),
		Day:    max(0, limits.PerDay-dayCount),
	}

	// First exceeded granularity wins: minute, then hour, then day.
	switch {
	case minuteCount >= limits.PerMinute:
		return Decision{
			Allowed:           false,
			RetryAfterSeconds: retryAfter(rec.Minute, time.Minute, now),
			Reason:            fmt.Sprintf("Minute limit exceeded (%d/%d)", minuteCount, limits.PerMinute),
			Remaining:         remaining,
		}, nil
	case hourCount >= limits.PerHour:
		return Decision{
			Allowed:           false,
			RetryAfterSeconds: retryAfter(rec.Hour, time.Hour, now),
			Reason:            fmt.Sprintf("Hour limit exceeded (%d/%d)", hourCount, limits.PerHour),
			Remaining:         remaining,
		}, nil
	case dayCount >= limits.PerDay:
		return Decision{
			Allowed:           false,
			RetryAfterSeconds: retryAfter(rec.Day, 24*time.Hour, now),
			Reason:            fmt.Sprintf("Day limit exceeded (%d/%d)", dayCount, limits.PerDay),
			Remaining:         remaining,
		}, nil
	}

	return Decision{Allowed: true, Remaining: remaining}, nil
}

// Record rolls stale windows forward and unconditionally increments all three
// counters for the key.
func (l *Limiter) Record(ctx context.Context, tool, actorID string) error {
	k := key(tool, actorID)
	km := l.keyLock(k)
	km.Lock()
	defer km.Unlock()

	rec, err := l.load(ctx, k)
	if err != nil {
		return fmt.Errorf("failed to load rate limit state: %w", err)
	}
	rec.Tool = tool
	rec.ActorID = actorID

	now := l.now()
	rollover(&rec.Minute, time.Minute, now)
	rollover(&rec.Hour, time.Hour, now)
	rollover(&rec.Day, 24*time.Hour, now)

	rec.Minute.Count++
	rec.Hour.Count++
	rec.Day.Count++

	if err := store.SetJSON(ctx, l.st, k, rec); err != nil {
		return fmt.Errorf("failed to persist rate limit state: %w", err)
	}
	return nil
}

// SetCooldown places the key in cooldown. seconds <= 0 uses the tool's
// configured cooldown.
func (l *Limiter) SetCooldown(ctx context.Context, tool, actorID string, seconds int) error {
	if seconds <= 0 {
		seconds = l.LimitsFor(tool).CooldownSeconds
	}

	k := key(tool, actorID)
	km := l.keyLock(k)
	km.Lock()
	defer km.Unlock()

	rec, err := l.load(ctx, k)
	if err != nil {
		return fmt.Errorf("failed to load rate limit state: %w", err)
	}
	rec.Tool = tool
	rec.ActorID = actorID

	until := l.now().Add(time.Duration(seconds) * time.Second)
	rec.CooldownUntil = &until

	if err := store.SetJSON(ctx, l.st, k, rec); err != nil {
		return fmt.Errorf("failed to persist cooldown: %w", err)
	}

	log.Warn().
		Str("tool", tool).
		Str("actor", actorID).
		Int("seconds", seconds).
		Msg("Cooldown set")
	return nil
}

// Reset clears all rate limit state.
func (l *Limiter) Reset(ctx context.Context) error {
	records, err := l.st.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list rate limit state: %w", err)
	}
	for _, raw := range records {
		var rec record
		if err := decode(raw, &rec); err != nil {
			continue
		}
		if rec.Tool == "" && rec.ActorID == "" {
			continue
		}
		if err := l.st.Delete(ctx, key(rec.Tool, rec.ActorID)); err != nil {
			return err
		}
	}
	return nil
}

func decode(raw json.RawMessage, v interface{}) error {
	return json.Unmarshal(raw, v)
}

// ResetActor clears all state for one actor across tools.
func (l *Limiter) ResetActor(ctx context.Context, actorID string) error {
	records, err := l.st.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list rate limit state: %w", err)
	}
	for _, raw := range records {
		var rec record
		if err := decode(raw, &rec); err != nil {
			continue
		}
		if rec.ActorID != actorID {
			continue
		}
		if err := l.st.Delete(ctx, key(rec.Tool, rec.ActorID)); err != nil {
			return err
		}
	}
	return nil
}
