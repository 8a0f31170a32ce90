package access

import (
	"context"
	"fmt"
	"time"

	"remindbot/pkg/logx"
)

// Store is the persistence surface the engine mutates through.
//
// Every mutator below is a single atomic update on the storage side: two
// concurrent calls must not both observe the "before" state (e.g. both grant
// a trial, or both see subscribed_until unset).
type Store interface {
	EnsureUser(ctx context.Context, id int64) error
	GetUser(ctx context.Context, id int64) (User, error)
	// GrantTrial sets the trial window only if none exists yet and clears
	// expired_notified. It reports whether this call installed the window.
	GrantTrial(ctx context.Context, id int64, start, end time.Time) (bool, error)
	// ExtendSubscription sets subscribed_until = max(current, now) + d and
	// clears expired_notified, returning the new expiry.
	ExtendSubscription(ctx context.Context, id int64, now time.Time, d time.Duration) (time.Time, error)
	// RevokeSubscription clears subscribed_until. Trial fields and
	// expired_notified are left untouched.
	RevokeSubscription(ctx context.Context, id int64) error
	AppendAudit(ctx context.Context, userID int64, action, detail string) error
}

type Config struct {
	TrialDuration time.Duration
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Service is the access-state engine bound to a store and a clock.
type Service struct {
	store Store
	log   logx.Logger

	trialDuration time.Duration
	now           func() time.Time
}

func NewService(cfg Config, store Store, log logx.Logger) *Service {
	if cfg.TrialDuration <= 0 {
		cfg.TrialDuration = 3 * 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		store:         store,
		log:           log,
		trialDuration: cfg.TrialDuration,
		now:           cfg.Now,
	}
}

func (s *Service) Now() time.Time { return s.now() }

// Evaluate loads the user and decides access at the current instant.
// Unknown users get the zero decision (not granted), not an error.
func (s *Service) Evaluate(ctx context.Context, id int64) (Decision, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return Decision{Source: SourceNone}, nil
		}
		return Decision{}, err
	}
	return Evaluate(u, s.now()), nil
}

// GrantTrialIfAbsent installs the one-time trial window if the user has never
// had one. It is idempotent: repeat calls leave the original window in place.
func (s *Service) GrantTrialIfAbsent(ctx context.Context, id int64) (granted bool, err error) {
	if err := s.store.EnsureUser(ctx, id); err != nil {
		return false, fmt.Errorf("ensure user %d: %w", id, err)
	}
	now := s.now()
	granted, err = s.store.GrantTrial(ctx, id, now, now.Add(s.trialDuration))
	if err != nil {
		return false, fmt.Errorf("grant trial for %d: %w", id, err)
	}
	if granted {
		s.log.Info("trial granted",
			logx.Int64("user", id),
			logx.Duration("duration", s.trialDuration))
		if aerr := s.store.AppendAudit(ctx, id, "trial_granted", s.trialDuration.String()); aerr != nil {
			s.log.Warn("audit append failed", logx.Int64("user", id), logx.Err(aerr))
		}
	}
	return granted, nil
}

// ExtendSubscription stacks d on top of whatever subscription time remains
// (or on the current instant when none remains), so granting twice never
// shortens an existing grant. Clears the expiry-notified flag.
func (s *Service) ExtendSubscription(ctx context.Context, id int64, d time.Duration) (time.Time, error) {
	if d <= 0 {
		return time.Time{}, fmt.Errorf("extend subscription for %d: non-positive duration %s", id, d)
	}
	if err := s.store.EnsureUser(ctx, id); err != nil {
		return time.Time{}, fmt.Errorf("ensure user %d: %w", id, err)
	}
	until, err := s.store.ExtendSubscription(ctx, id, s.now(), d)
	if err != nil {
		return time.Time{}, fmt.Errorf("extend subscription for %d: %w", id, err)
	}
	s.log.Info("subscription extended",
		logx.Int64("user", id),
		logx.Duration("by", d),
		logx.Time("until", until))
	if aerr := s.store.AppendAudit(ctx, id, "subscription_extended", d.String()); aerr != nil {
		s.log.Warn("audit append failed", logx.Int64("user", id), logx.Err(aerr))
	}
	return until, nil
}

// RevokeSubscription clears the subscription grant. A still-active trial keeps
// granting access; the expiry-notified flag is not touched here.
func (s *Service) RevokeSubscription(ctx context.Context, id int64) error {
	if err := s.store.EnsureUser(ctx, id); err != nil {
		return fmt.Errorf("ensure user %d: %w", id, err)
	}
	if err := s.store.RevokeSubscription(ctx, id); err != nil {
		return fmt.Errorf("revoke subscription for %d: %w", id, err)
	}
	s.log.Info("subscription revoked", logx.Int64("user", id))
	if aerr := s.store.AppendAudit(ctx, id, "subscription_revoked", ""); aerr != nil {
		s.log.Warn("audit append failed", logx.Int64("user", id), logx.Err(aerr))
	}
	return nil
}
