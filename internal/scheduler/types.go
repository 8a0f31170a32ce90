package scheduler

import (
	"context"
	"time"

	"remindbot/internal/access"
	"remindbot/internal/remind"
	"remindbot/internal/schedule"
)

// Config controls the trigger registry and its housekeeping.
type Config struct {
	// Times maps each reminder kind to its fixed local fire time.
	Times map[remind.Kind]schedule.LocalTime

	SweepEnabled  bool
	SweepSchedule string // cron spec or descriptor, e.g. "@hourly"

	// AuditRetention bounds the audit table; 0 keeps the default (90 days).
	AuditRetention time.Duration

	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Store is the slice of persistence the registry reads. It never writes user
// rows; access mutations go through the access engine.
type Store interface {
	GetUser(ctx context.Context, id int64) (access.User, error)
	ListUsersWithTimezone(ctx context.Context) ([]access.User, error)
}

// Messenger delivers a reminder; implemented by notify.Service.
type Messenger interface {
	Send(ctx context.Context, userID int64, text string) error
}

// Dispatcher handles a firing that found access denied; implemented by
// notify.Dispatcher.
type Dispatcher interface {
	OnAccessDenied(ctx context.Context, userID int64)
}

// Pruner trims the audit table; implemented by storage.Store.
type Pruner interface {
	PruneAudit(ctx context.Context, olderThan time.Time) (int64, error)
}

type triggerKey struct {
	user int64
	kind remind.Kind
}

type trigger struct {
	key    triggerKey
	zone   string
	loc    *time.Location
	at     schedule.LocalTime
	nextAt time.Time
	timer  *time.Timer
	gen    uint64
}

// TriggerInfo is a read-only view of one live trigger, for status output and
// for asserting restart-recovery equivalence.
type TriggerInfo struct {
	UserID    int64
	Kind      remind.Kind
	Zone      string
	LocalTime schedule.LocalTime
	NextAt    time.Time
}
