package scheduler

import (
	"context"

	"remindbot/pkg/logx"
)

// RecoverAll rebuilds the registry from persisted user records, assuming no
// in-memory state survived the restart. It is Reschedule applied to every
// user with a timezone, so the post-recovery schedule is exactly what a live
// process would have produced from the same rows: users with expired access
// recover to zero triggers with no special casing.
//
// Individual failures (e.g. a stored zone the tz database no longer knows)
// are logged and skipped; they never abort recovery for the remaining users.
func (s *Service) RecoverAll(ctx context.Context) error {
	users, err := s.store.ListUsersWithTimezone(ctx)
	if err != nil {
		return err
	}

	recovered, failed := 0, 0
	for _, u := range users {
		if err := s.Reschedule(ctx, u.ID); err != nil {
			failed++
			s.log.Warn("recovery failed for user",
				logx.Int64("user", u.ID),
				logx.String("zone", u.Timezone),
				logx.Err(err))
			continue
		}
		recovered++
	}

	s.log.Info("recovery complete",
		logx.Int("users", len(users)),
		logx.Int("recovered", recovered),
		logx.Int("failed", failed))
	return nil
}
