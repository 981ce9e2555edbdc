package promotion

import "time"

// State is a promotion's lifecycle state at a point in time.
type State string

const (
	StateActive     State = "active"
	StateDisabled   State = "disabled"
	StateNotStarted State = "not_started"
	StateExpired    State = "expired"
	StateExhausted  State = "exhausted"
)

// Evaluate returns the lifecycle state of rec at now. It is pure and safe
// for concurrent use.
//
// Checks apply in order, first match wins: disabled, not started, expired,
// exhausted, active. The ordering is part of the contract: a promotion that
// is both disabled and expired reports disabled, because the operator
// kill-switch takes precedence over time decay.
//
// A record with ValidFrom >= ValidUntil violates a creation-time invariant.
// The check order already makes such a record permanently invalid: any
// instant is either before ValidFrom (not started) or at/after ValidUntil
// (expired), so active is unreachable.
func Evaluate(rec *Record, now time.Time) State {
	if !rec.Enabled {
		return StateDisabled
	}
	if rec.ValidFrom != nil && now.Before(*rec.ValidFrom) {
		return StateNotStarted
	}
	if !now.Before(rec.ValidUntil) {
		return StateExpired
	}
	if rec.UsageLimit != nil && rec.UsageCount >= *rec.UsageLimit {
		return StateExhausted
	}
	return StateActive
}
