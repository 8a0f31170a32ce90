// Package notify delivers outbound messages and owns the once-per-episode
// expiry notice.
package notify

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"remindbot/pkg/logx"
)

// Sender is the external messaging channel. Delivery is best effort: the
// caller logs failures and never retries synchronously.
type Sender interface {
	Send(ctx context.Context, userID int64, text string) error
}

type Config struct {
	// RatePerSec caps outbound sends (Telegram throttles bots hard).
	RatePerSec int
}

// Service wraps a Sender with rate limiting and failure logging.
type Service struct {
	sender  Sender
	limiter *rate.Limiter
	log     logx.Logger
}

func NewService(cfg Config, sender Sender, log logx.Logger) *Service {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 25
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		sender: sender,
		// Burst = rate per sec, so short spikes don't block too hard.
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		log:     log,
	}
}

// Send delivers text to one user. The error is returned for observability but
// callers in the scheduling path ignore it; a failed send never rolls back
// the state change that triggered it.
func (s *Service) Send(ctx context.Context, userID int64, text string) error {
	wctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.limiter.Wait(wctx); err != nil {
		s.log.Warn("send rate wait aborted", logx.Int64("user", userID), logx.Err(err))
		return err
	}
	if err := s.sender.Send(ctx, userID, text); err != nil {
		s.log.Warn("send failed", logx.Int64("user", userID), logx.Err(err))
		return err
	}
	return nil
}
