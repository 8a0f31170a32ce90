// Package app wires configuration, storage, the access engine, the trigger
// registry and the Telegram transport into one runnable unit.
package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"remindbot/internal/access"
	"remindbot/internal/config"
	"remindbot/internal/notify"
	"remindbot/internal/remind"
	"remindbot/internal/schedule"
	"remindbot/internal/scheduler"
	"remindbot/internal/storage"
	"remindbot/internal/transport/telegram"
	"remindbot/pkg/logx"
)

type App struct {
	cfgm *config.Manager

	logs *logx.Service
	log  logx.Logger

	store      *storage.Store
	access     *access.Service
	sender     *lateSender
	notifier   *notify.Service
	dispatcher *notify.Dispatcher
	sched      *scheduler.Service
	bot        *telegram.Bot
}

// lateSender defers binding the Telegram bot as the outbound channel. The
// notify service is constructed before the bot (the bot depends on the
// scheduler, which depends on notify), so the concrete sender arrives last.
type lateSender struct {
	v atomic.Pointer[telegram.Bot]
}

func (l *lateSender) Set(b *telegram.Bot) { l.v.Store(b) }

func (l *lateSender) Send(ctx context.Context, userID int64, text string) error {
	b := l.v.Load()
	if b == nil {
		return fmt.Errorf("send to %d: transport not ready", userID)
	}
	return b.Send(ctx, userID, text)
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	config.LoadEnv(cfg)

	logs, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		_ = logs.Close()
		return nil, err
	}
	store, err := storage.Open(storage.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logs.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	times, err := parseTimes(cfg.Reminders)
	if err != nil {
		_ = store.Close()
		_ = logs.Close()
		return nil, err
	}

	acc := access.NewService(access.Config{
		TrialDuration: trialDuration(cfg.Access.TrialDays),
	}, store, log.With(logx.String("comp", "access")))

	sender := &lateSender{}
	notifier := notify.NewService(notify.Config{}, sender, log.With(logx.String("comp", "notify")))
	dispatcher := notify.NewDispatcher(store, notifier, log.With(logx.String("comp", "notify")))

	sched := scheduler.New(scheduler.Config{
		Times:         times,
		SweepEnabled:  cfg.Sweep.Enabled,
		SweepSchedule: cfg.Sweep.Schedule,
	}, store, notifier, dispatcher, log.With(logx.String("comp", "scheduler")))
	dispatcher.SetTriggers(sched)
	sched.SetPruner(store)

	pollTimeout, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout)
	if err != nil {
		_ = store.Close()
		_ = logs.Close()
		return nil, err
	}
	bot, err := telegram.New(telegram.Config{
		Token:        cfg.Telegram.Token,
		PollTimeout:  pollTimeout,
		AdminUserIDs: cfg.Telegram.AdminUserIDs,
	}, telegram.Deps{
		Access:     acc,
		Scheduler:  sched,
		Dispatcher: dispatcher,
		Users:      store,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		_ = store.Close()
		_ = logs.Close()
		return nil, fmt.Errorf("init telegram: %w", err)
	}
	sender.Set(bot)

	return &App{
		cfgm:       cfgm,
		logs:       logs,
		log:        log,
		store:      store,
		access:     acc,
		sender:     sender,
		notifier:   notifier,
		dispatcher: dispatcher,
		sched:      sched,
		bot:        bot,
	}, nil
}

// Run starts the scheduler, recovers persisted triggers, watches the config
// file, and blocks in the Telegram poll loop until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.sched.Start(ctx)
	defer a.sched.Stop()

	if err := a.sched.RecoverAll(ctx); err != nil {
		// A dead store at boot is fatal; partial per-user failures are not.
		return fmt.Errorf("restart recovery: %w", err)
	}

	go func() {
		if err := a.cfgm.Watch(ctx); err != nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()
	go a.reloadLoop(ctx)

	a.log.Info("bot starting")
	a.bot.Start(ctx)

	a.log.Info("shutting down")
	return a.store.Close()
}

// reloadLoop applies hot-reloadable settings when the config file changes:
// log level/sinks and reminder fire times. Everything else needs a restart.
func (a *App) reloadLoop(ctx context.Context) {
	sub := a.cfgm.Subscribe(1)
	defer a.cfgm.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok || cfg == nil {
				return
			}
			a.logs.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
				File: logx.FileConfig{
					Enabled: cfg.Logging.File.Enabled,
					Path:    cfg.Logging.File.Path,
				},
			})
			times, err := parseTimes(cfg.Reminders)
			if err != nil {
				a.log.Warn("reload: bad reminder times; keeping current", logx.Err(err))
				continue
			}
			a.sched.ApplyTimes(ctx, times)
			a.log.Info("reload applied")
		}
	}
}

// Close releases resources not already torn down by Run.
func (a *App) Close() {
	_ = a.store.Close()
	_ = a.logs.Close()
}

func parseTimes(rc config.RemindersConfig) (map[remind.Kind]schedule.LocalTime, error) {
	out := make(map[remind.Kind]schedule.LocalTime, 3)
	for _, f := range []struct {
		kind remind.Kind
		raw  string
	}{
		{remind.Morning, rc.Morning},
		{remind.Midday, rc.Midday},
		{remind.Evening, rc.Evening},
	} {
		t, err := schedule.ParseLocalTime(f.raw)
		if err != nil {
			return nil, fmt.Errorf("reminders.%s: %w", f.kind, err)
		}
		out[f.kind] = t
	}
	return out, nil
}

func trialDuration(days int) time.Duration {
	if days <= 0 {
		days = 3
	}
	return time.Duration(days) * 24 * time.Hour
}
