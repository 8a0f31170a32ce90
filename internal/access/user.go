package access

import "time"

// User is the persisted per-user access and schedule state.
//
// TrialStart/TrialEnd are set together exactly once per user lifetime.
// SubscribedUntil is nil when no subscription grant exists. ExpiredNotified is
// true once the expiry notice has been sent for the current expiry episode;
// it is cleared by any transition back into an access-granting state.
type User struct {
	ID              int64
	Timezone        string // IANA zone name, "" when unset
	TrialStart      *time.Time
	TrialEnd        *time.Time
	SubscribedUntil *time.Time
	ExpiredNotified bool
	CreatedAt       time.Time
}

// HasTimezone reports whether the user has picked a zone yet.
func (u User) HasTimezone() bool { return u.Timezone != "" }
