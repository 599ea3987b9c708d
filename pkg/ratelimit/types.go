package ratelimit

import "time"

// Limits holds the quota for one tool. A per-tool override replaces the
// defaults wholesale; partial overrides are not merged.
type Limits struct {
	PerMinute       int `json:"per_minute"`
	PerHour         int `json:"per_hour"`
	PerDay          int `json:"per_day"`
	CooldownSeconds int `json:"cooldown_seconds"`
}

// DefaultLimits applies to every tool without an override.
var DefaultLimits = Limits{
	PerMinute:       30,
	PerHour:         300,
	PerDay:          1000,
	CooldownSeconds: 60,
}

// window is a sliding counter: a count paired with the timestamp its current
// window began. Stale windows are reset lazily on next access.
type window struct {
	Count       int       `json:"count"`
	WindowStart time.Time `json:"window_start"`
}

// record is the persisted state for one (tool, actor) key.
type record struct {
	Tool          string     `json:"tool"`
	ActorID       string     `json:"actor_id"`
	Minute        window     `json:"minute"`
	Hour          window     `json:"hour"`
	Day           window     `json:"day"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
}

// Remaining reports the quota left in each granularity.
type Remaining struct {
	Minute int `json:"minute"`
	Hour   int `json:"hour"`
	Day    int `json:"day"`
}

// Decision is the outcome of a Check. RetryAfterSeconds is set only on
// denial and counts down to the blocking window's reset (or cooldown end).
type Decision struct {
	Allowed           bool      `json:"allowed"`
	RetryAfterSeconds int       `json:"retry_after_seconds,omitempty"`
	Reason            string    `json:"reason,omitempty"`
	Remaining         Remaining `json:"remaining"`
}
