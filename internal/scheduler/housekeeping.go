package scheduler

import (
	"context"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"remindbot/internal/access"
	"remindbot/pkg/logx"
)

// housekeeper runs the periodic maintenance schedules: the access-expiry
// sweep and the audit prune.
type housekeeper struct {
	c *cron.Cron
}

func (s *Service) startHousekeeping() {
	s.mu.Lock()
	cfg := s.cfg
	already := s.hk != nil
	s.mu.Unlock()
	if already {
		return
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser))

	if cfg.SweepEnabled {
		spec := strings.TrimSpace(cfg.SweepSchedule)
		if spec == "" {
			spec = "@hourly"
		}
		if _, err := c.AddFunc(spec, s.sweep); err != nil {
			s.log.Error("sweep schedule rejected", logx.String("spec", spec), logx.Err(err))
		} else {
			s.log.Debug("sweep scheduled", logx.String("spec", spec))
		}
	}

	if s.pruner != nil {
		if _, err := c.AddFunc("@daily", s.pruneAudit); err != nil {
			s.log.Error("audit prune schedule rejected", logx.Err(err))
		}
	}

	c.Start()
	s.mu.Lock()
	s.hk = &housekeeper{c: c}
	s.mu.Unlock()
}

func (s *Service) stopHousekeeping() {
	s.mu.Lock()
	hk := s.hk
	s.hk = nil
	s.mu.Unlock()
	if hk != nil {
		<-hk.c.Stop().Done()
	}
}

// sweep re-evaluates access for every currently scheduled user and routes
// expired ones through the dispatcher. Expiry between reminder firings is
// otherwise only noticed at the next firing, which can be hours away.
func (s *Service) sweep() {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx == nil {
		return
	}

	ids := s.ScheduledUsers()
	expired := 0
	for _, id := range ids {
		uctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		u, err := s.store.GetUser(uctx, id)
		cancel()
		if err != nil {
			if access.IsNotFound(err) {
				s.CancelAll(id)
			} else {
				s.log.Warn("sweep load failed", logx.Int64("user", id), logx.Err(err))
			}
			continue
		}
		if access.Evaluate(u, s.cfg.Now()).Granted {
			continue
		}
		expired++
		nctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		s.dispatcher.OnAccessDenied(nctx, id)
		cancel()
	}
	if expired > 0 {
		s.log.Info("sweep complete", logx.Int("scheduled", len(ids)), logx.Int("expired", expired))
	}
}

func (s *Service) pruneAudit() {
	s.mu.Lock()
	ctx := s.runCtx
	retention := s.cfg.AuditRetention
	s.mu.Unlock()
	if ctx == nil || s.pruner == nil {
		return
	}

	pctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	n, err := s.pruner.PruneAudit(pctx, s.cfg.Now().Add(-retention))
	if err != nil {
		s.log.Warn("audit prune failed", logx.Err(err))
		return
	}
	if n > 0 {
		s.log.Debug("audit pruned", logx.Int64("removed", n))
	}
}
