// Package telegram is the telebot-based transport: it delivers outbound
// messages and routes user and admin commands into the core services.
package telegram

import (
	"context"
	"errors"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"remindbot/internal/access"
	"remindbot/internal/notify"
	"remindbot/internal/scheduler"
	"remindbot/pkg/logx"
)

type Config struct {
	Token        string
	PollTimeout  time.Duration
	AdminUserIDs []int64
}

// UserStore is the persistence slice the command layer touches directly.
type UserStore interface {
	GetUser(ctx context.Context, id int64) (access.User, error)
	SetTimezone(ctx context.Context, id int64, zone string) error
}

type Deps struct {
	Access     *access.Service
	Scheduler  *scheduler.Service
	Dispatcher *notify.Dispatcher
	Users      UserStore
}

type Bot struct {
	cfg  Config
	deps Deps
	log  logx.Logger

	bot    *tele.Bot
	admins map[int64]struct{}
}

func New(cfg Config, deps Deps, log logx.Logger) (*Bot, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	tb, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	admins := make(map[int64]struct{}, len(cfg.AdminUserIDs))
	for _, id := range cfg.AdminUserIDs {
		admins[id] = struct{}{}
	}

	b := &Bot{cfg: cfg, deps: deps, log: log, bot: tb, admins: admins}
	b.registerHandlers()
	return b, nil
}

// Start begins long polling and blocks until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	b.setCommands()

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.bot.Start()
	}()

	<-ctx.Done()
	b.bot.Stop()
	<-done
}

// Send implements notify.Sender. Telegram delivery errors are returned for
// the caller to log; they never abort scheduling logic.
func (b *Bot) Send(ctx context.Context, userID int64, text string) error {
	_ = ctx // telebot's API client has no context plumbing
	_, err := b.bot.Send(&tele.User{ID: userID}, text, mainMenu())
	return err
}

func (b *Bot) isAdmin(id int64) bool {
	_, ok := b.admins[id]
	return ok
}

// setCommands populates the Telegram "Menu" button.
func (b *Bot) setCommands() {
	cmds := []tele.Command{
		{Text: "start", Description: "Activate schedule"},
		{Text: "timezone", Description: "Set your time zone"},
		{Text: "status", Description: "Show your status"},
		{Text: "subscribe", Description: "Subscription info"},
		{Text: "help", Description: "Show commands menu"},
		{Text: "whoami", Description: "Show your user_id"},
	}
	if err := b.bot.SetCommands(cmds); err != nil {
		b.log.Warn("set commands failed", logx.Err(err))
	}
}
