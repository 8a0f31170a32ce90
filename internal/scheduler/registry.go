package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"remindbot/internal/access"
	"remindbot/internal/remind"
	"remindbot/internal/schedule"
	"remindbot/pkg/logx"
)

// Service is the trigger registry.
type Service struct {
	mu sync.Mutex

	cfg Config
	log logx.Logger

	store      Store
	sender     Messenger
	dispatcher Dispatcher
	pruner     Pruner

	triggers map[triggerKey]*trigger
	gen      uint64

	running bool
	runCtx  context.Context

	hk *housekeeper
}

func New(cfg Config, store Store, sender Messenger, dispatcher Dispatcher, log logx.Logger) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.AuditRetention <= 0 {
		cfg.AuditRetention = 90 * 24 * time.Hour
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:        cfg,
		log:        log,
		store:      store,
		sender:     sender,
		dispatcher: dispatcher,
		triggers:   map[triggerKey]*trigger{},
	}
}

// SetPruner enables audit pruning from the housekeeping cron.
func (s *Service) SetPruner(p Pruner) { s.pruner = p }

// Start arms timers for all installed triggers and starts housekeeping.
// Reschedule may be called before Start; definitions installed while stopped
// get timers here.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.runCtx = ctx
	now := s.cfg.Now()
	for _, t := range s.triggers {
		s.armLocked(t, now)
	}
	n := len(s.triggers)
	s.mu.Unlock()

	s.startHousekeeping()
	s.log.Info("scheduler started", logx.Int("triggers", n))
}

// Stop halts all timers and housekeeping. Trigger definitions are kept; a
// later Start re-arms them.
func (s *Service) Stop() {
	s.mu.Lock()
	s.running = false
	s.runCtx = nil
	for _, t := range s.triggers {
		if t.timer != nil {
			t.timer.Stop()
			t.timer = nil
		}
	}
	s.mu.Unlock()

	s.stopHousekeeping()
	s.log.Info("scheduler stopped")
}

// Reschedule atomically replaces the user's trigger set to match persisted
// state: three kind-triggers when the user has a timezone and access, none
// otherwise. This is also the sole cancellation path for "timezone cleared",
// "access revoked" and "access expired between ticks".
func (s *Service) Reschedule(ctx context.Context, userID int64) error {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if access.IsNotFound(err) {
			s.CancelAll(userID)
			return nil
		}
		// Persistence failure: abort without touching the existing set.
		return fmt.Errorf("reschedule user %d: %w", userID, err)
	}

	now := s.cfg.Now()
	if !u.HasTimezone() || !access.Evaluate(u, now).Granted {
		s.CancelAll(userID)
		return nil
	}

	loc, err := schedule.Validate(u.Timezone)
	if err != nil {
		// A stored zone the tz database no longer knows. Drop the triggers
		// and surface the error; recovery logs and carries on.
		s.CancelAll(userID)
		return fmt.Errorf("reschedule user %d: %w", userID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelUserLocked(userID)
	for kind, at := range s.cfg.Times {
		s.installLocked(userID, kind, u.Timezone, loc, at, now)
	}
	return nil
}

// CancelAll removes every trigger for the user regardless of kind. A firing
// already in progress is unaffected; its re-armed timer carries a stale
// generation and will be ignored.
func (s *Service) CancelAll(userID int64) {
	s.mu.Lock()
	s.cancelUserLocked(userID)
	s.mu.Unlock()
}

// Count reports the number of live triggers for one user.
func (s *Service) Count(userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.triggers {
		if k.user == userID {
			n++
		}
	}
	return n
}

// ScheduledUsers returns the ids of all users with at least one live trigger.
func (s *Service) ScheduledUsers() []int64 {
	s.mu.Lock()
	seen := map[int64]struct{}{}
	for k := range s.triggers {
		seen[k.user] = struct{}{}
	}
	s.mu.Unlock()

	out := make([]int64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Snapshot returns a stable-ordered view of all live triggers.
func (s *Service) Snapshot() []TriggerInfo {
	s.mu.Lock()
	out := make([]TriggerInfo, 0, len(s.triggers))
	for _, t := range s.triggers {
		out = append(out, TriggerInfo{
			UserID:    t.key.user,
			Kind:      t.key.kind,
			Zone:      t.zone,
			LocalTime: t.at,
			NextAt:    t.nextAt,
		})
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// ApplyTimes swaps the fire times (config hot reload) and reschedules every
// currently scheduled user under the new local times.
func (s *Service) ApplyTimes(ctx context.Context, times map[remind.Kind]schedule.LocalTime) {
	s.mu.Lock()
	s.cfg.Times = times
	s.mu.Unlock()

	for _, id := range s.ScheduledUsers() {
		if err := s.Reschedule(ctx, id); err != nil {
			s.log.Warn("reschedule after time change failed", logx.Int64("user", id), logx.Err(err))
		}
	}
}

// TimesLine renders the configured fire times in day order, e.g.
// "08:00 / 12:00 / 20:00". Used by the status surfaces.
func (s *Service) TimesLine() string {
	s.mu.Lock()
	times := s.cfg.Times
	s.mu.Unlock()

	parts := make([]string, 0, len(times))
	for _, kind := range remind.Kinds() {
		if at, ok := times[kind]; ok {
			parts = append(parts, at.String())
		}
	}
	return strings.Join(parts, " / ")
}

// ---- internals (s.mu held unless noted) ----

func (s *Service) cancelUserLocked(userID int64) {
	for k, t := range s.triggers {
		if k.user != userID {
			continue
		}
		if t.timer != nil {
			t.timer.Stop()
			t.timer = nil
		}
		delete(s.triggers, k)
	}
}

func (s *Service) installLocked(userID int64, kind remind.Kind, zone string, loc *time.Location, at schedule.LocalTime, now time.Time) {
	s.gen++
	t := &trigger{
		key:    triggerKey{user: userID, kind: kind},
		zone:   zone,
		loc:    loc,
		at:     at,
		nextAt: schedule.NextFire(loc, at, now),
		gen:    s.gen,
	}
	s.triggers[t.key] = t
	if s.running {
		s.armLocked(t, now)
	}
	s.log.Debug("trigger installed",
		logx.Int64("user", userID),
		logx.String("kind", string(kind)),
		logx.String("zone", zone),
		logx.Time("next", t.nextAt))
}

func (s *Service) armLocked(t *trigger, now time.Time) {
	if t.timer != nil {
		t.timer.Stop()
	}
	if !t.nextAt.After(now) {
		// Stale nextAt from a stopped period; recompute before arming.
		t.nextAt = schedule.NextFire(t.loc, t.at, now)
	}
	key, gen := t.key, t.gen
	t.timer = time.AfterFunc(t.nextAt.Sub(now), func() { s.fired(key, gen) })
}

// fired runs in the timer goroutine. It re-arms the next occurrence first so
// a slow delivery never delays the schedule, then performs one
// read-evaluate-act sequence against persisted state.
func (s *Service) fired(key triggerKey, gen uint64) {
	s.mu.Lock()
	t, ok := s.triggers[key]
	if !ok || t.gen != gen {
		// Replaced or cancelled since this timer was armed.
		s.mu.Unlock()
		return
	}
	now := s.cfg.Now()
	t.nextAt = schedule.NextFire(t.loc, t.at, now)
	if s.running {
		t.timer = time.AfterFunc(t.nextAt.Sub(now), func() { s.fired(key, gen) })
	}
	ctx := s.runCtx
	s.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	s.runJob(ctx, key.user, key.kind)
}

// runJob is one firing: load, re-evaluate access, then either remind or route
// to the expiry dispatcher. Access granted at schedule time means nothing at
// fire time.
func (s *Service) runJob(ctx context.Context, userID int64, kind remind.Kind) {
	jctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	u, err := s.store.GetUser(jctx, userID)
	if err != nil {
		if access.IsNotFound(err) {
			s.CancelAll(userID)
			return
		}
		s.log.Error("user load failed at fire time", logx.Int64("user", userID), logx.Err(err))
		return
	}

	if !access.Evaluate(u, s.cfg.Now()).Granted {
		s.dispatcher.OnAccessDenied(jctx, userID)
		return
	}

	// Best effort; a failed delivery must not disturb the schedule.
	_ = s.sender.Send(jctx, userID, remind.Message(kind))
}
