package access

import "time"

// Source identifies which mechanism currently grants a user access.
type Source string

const (
	SourceSubscription Source = "subscription"
	SourceTrial        Source = "trial"
	SourceNone         Source = "none"
)

// Decision is the derived access state for one user at one instant.
// It is never persisted.
type Decision struct {
	Granted   bool
	Source    Source
	Remaining time.Duration
}

// Evaluate decides access from the user's persisted fields and the given
// instant. It is a pure, total function: absent timestamps mean "no access
// from that source", never an error. An active subscription takes precedence
// over an active trial.
func Evaluate(u User, now time.Time) Decision {
	if u.SubscribedUntil != nil && u.SubscribedUntil.After(now) {
		return Decision{Granted: true, Source: SourceSubscription, Remaining: u.SubscribedUntil.Sub(now)}
	}
	if u.TrialEnd != nil && u.TrialEnd.After(now) {
		return Decision{Granted: true, Source: SourceTrial, Remaining: u.TrialEnd.Sub(now)}
	}
	return Decision{Granted: false, Source: SourceNone}
}
