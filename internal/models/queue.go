package models

import (
	"time"
)

// Search intent constants. The intent is the gender the searcher wants to be
// paired with.
const (
	SearchIntentAny    = "any"
	SearchIntentMale   = "male"
	SearchIntentFemale = "female"
)

// ValidSearchIntent reports whether s is a known search intent.
func ValidSearchIntent(s string) bool {
	return s == SearchIntentAny || s == SearchIntentMale || s == SearchIntentFemale
}

// WaitingEntry is a user parked in the matchmaking pool. Entries are
// transient: they live only in Redis and are consumed by a successful claim,
// an explicit cancel or the stale-entry sweep.
type WaitingEntry struct {
	UserID   uint
	Gender   string
	Intent   string
	JoinedAt time.Time
}
