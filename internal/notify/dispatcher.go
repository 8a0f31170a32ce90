package notify

import (
	"context"

	"remindbot/pkg/logx"
)

const expiredText = "⛔ Your free trial has expired.\n\n" +
	"To continue receiving reminders, you need an active subscription.\n" +
	"Click Subscribe or type /subscribe."

// NoticeStore is the slice of persistence the dispatcher needs. The claim is
// a single atomic flip of expired_notified so concurrent firings for the same
// user cannot both send the notice.
type NoticeStore interface {
	ClaimExpiryNotice(ctx context.Context, userID int64) (claimed bool, err error)
	AppendAudit(ctx context.Context, userID int64, action, detail string) error
}

// TriggerCanceller tears down a user's live triggers. Implemented by the
// scheduler registry; bound late because the registry also calls back into
// the dispatcher from firing triggers.
type TriggerCanceller interface {
	CancelAll(userID int64)
}

// Dispatcher emits the one-time "access expired" notice per expiry episode.
type Dispatcher struct {
	store    NoticeStore
	svc      *Service
	triggers TriggerCanceller
	log      logx.Logger
}

func NewDispatcher(store NoticeStore, svc *Service, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{store: store, svc: svc, log: log}
}

// SetTriggers late-binds the scheduler registry.
func (d *Dispatcher) SetTriggers(t TriggerCanceller) { d.triggers = t }

// OnAccessDenied handles a firing (or any access check) that observed an
// expired user: remaining triggers are cancelled, and the expiry notice goes
// out at most once for the current episode. The claim stands even if delivery
// fails, so a persistently broken channel cannot cause a notification storm.
func (d *Dispatcher) OnAccessDenied(ctx context.Context, userID int64) {
	if d.triggers != nil {
		d.triggers.CancelAll(userID)
	}

	claimed, err := d.store.ClaimExpiryNotice(ctx, userID)
	if err != nil {
		d.log.Error("expiry notice claim failed", logx.Int64("user", userID), logx.Err(err))
		return
	}
	if !claimed {
		// Already notified for this episode.
		return
	}

	d.log.Info("access expired; notifying", logx.Int64("user", userID))
	if err := d.svc.Send(ctx, userID, expiredText); err != nil {
		// Deliberately not un-claimed: at-most-once-attempt policy.
		d.log.Warn("expiry notice delivery failed", logx.Int64("user", userID), logx.Err(err))
	}
	if aerr := d.store.AppendAudit(ctx, userID, "expiry_notified", ""); aerr != nil {
		d.log.Warn("audit append failed", logx.Int64("user", userID), logx.Err(aerr))
	}
}
