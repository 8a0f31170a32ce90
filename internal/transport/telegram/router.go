package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v4"

	"remindbot/internal/access"
	"remindbot/internal/schedule"
	"remindbot/pkg/logx"
)

const handlerTimeout = 15 * time.Second

var (
	btnTZ        = tele.Btn{Unique: "TZ"}
	btnSubscribe = tele.Btn{Unique: subscribeData}
)

func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.onStart)
	b.bot.Handle("/help", b.onHelp)
	b.bot.Handle("/status", b.onStatus)
	b.bot.Handle("/timezone", b.onTimezone)
	b.bot.Handle("/subscribe", b.onSubscribe)
	b.bot.Handle("/whoami", b.onWhoami)

	b.bot.Handle("/admin", b.onAdminHelp)
	b.bot.Handle("/activate", b.onActivate)
	b.bot.Handle("/lifetime", b.onLifetime)
	b.bot.Handle("/revoke", b.onRevoke)

	b.bot.Handle(&btnTZ, b.onTimezonePicked)
	b.bot.Handle(&btnSubscribe, b.onSubscribeCallback)

	b.bot.Handle(tele.OnText, b.onMessage)
}

func handlerCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), handlerTimeout)
}

func (b *Bot) onStart(c tele.Context) error {
	ctx, cancel := handlerCtx()
	defer cancel()
	userID := c.Sender().ID

	if _, err := b.deps.Access.GrantTrialIfAbsent(ctx, userID); err != nil {
		b.log.Error("start: trial grant failed", logx.Int64("user", userID), logx.Err(err))
		return c.Send("Internal error.", mainMenu())
	}

	dec, err := b.deps.Access.Evaluate(ctx, userID)
	if err != nil {
		return c.Send("Internal error.", mainMenu())
	}
	if !dec.Granted {
		_ = c.Send(helpText, mainMenu())
		b.deps.Dispatcher.OnAccessDenied(ctx, userID)
		return nil
	}

	u, err := b.deps.Users.GetUser(ctx, userID)
	if err != nil {
		return c.Send("Internal error.", mainMenu())
	}
	if !u.HasTimezone() {
		_ = c.Send("Welcome! First, set your time zone using /timezone.", mainMenu())
		return c.Send(helpText, mainMenu())
	}

	if err := b.deps.Scheduler.Reschedule(ctx, userID); err != nil {
		b.log.Warn("start: reschedule failed", logx.Int64("user", userID), logx.Err(err))
	}

	var leftLine string
	if dec.Source == access.SourceTrial {
		leftLine = "Trial time left: " + humanDuration(dec.Remaining)
	} else {
		leftLine = "Subscription time left: " + humanDuration(dec.Remaining)
	}
	_ = c.Send(fmt.Sprintf(
		"✅ Schedule is active (%s local time).\n%s\nUse /timezone to change your time zone.",
		b.scheduleLine(), leftLine), mainMenu())
	return c.Send(helpText, mainMenu())
}

func (b *Bot) onHelp(c tele.Context) error {
	return c.Send(helpText, mainMenu())
}

func (b *Bot) onStatus(c tele.Context) error {
	ctx, cancel := handlerCtx()
	defer cancel()
	userID := c.Sender().ID

	if _, err := b.deps.Access.GrantTrialIfAbsent(ctx, userID); err != nil {
		return c.Send("No data yet. Use /start.", mainMenu())
	}
	u, err := b.deps.Users.GetUser(ctx, userID)
	if err != nil {
		return c.Send("No data yet. Use /start.", mainMenu())
	}

	tz := u.Timezone
	if tz == "" {
		tz = "Not set"
	}

	dec, err := b.deps.Access.Evaluate(ctx, userID)
	if err != nil {
		return c.Send("Internal error.", mainMenu())
	}
	var accessLine string
	switch dec.Source {
	case access.SourceSubscription:
		accessLine = "Access: ✅ Subscription (" + humanDuration(dec.Remaining) + " left)"
	case access.SourceTrial:
		accessLine = "Access: ✅ Trial (" + humanDuration(dec.Remaining) + " left)"
	default:
		accessLine = "Access: ⛔ EXPIRED (no active subscription)"
	}

	return c.Send(fmt.Sprintf(
		"📌 Status\n- Time zone: %s\n- %s\n- Schedule: %s (local)\n",
		tz, accessLine, b.scheduleLine()), mainMenu())
}

func (b *Bot) onTimezone(c tele.Context) error {
	ctx, cancel := handlerCtx()
	defer cancel()
	userID := c.Sender().ID

	if _, err := b.deps.Access.GrantTrialIfAbsent(ctx, userID); err != nil {
		return c.Send("Internal error.", mainMenu())
	}
	dec, err := b.deps.Access.Evaluate(ctx, userID)
	if err != nil {
		return c.Send("Internal error.", mainMenu())
	}
	if !dec.Granted {
		_ = c.Send(helpText, mainMenu())
		b.deps.Dispatcher.OnAccessDenied(ctx, userID)
		return nil
	}

	return c.Send("Choose your time zone:", timezoneKeyboard())
}

func (b *Bot) onTimezonePicked(c tele.Context) error {
	ctx, cancel := handlerCtx()
	defer cancel()
	userID := c.Sender().ID
	_ = c.Respond()

	dec, err := b.deps.Access.Evaluate(ctx, userID)
	if err != nil {
		return c.Edit("Internal error.")
	}
	if !dec.Granted {
		_ = c.Edit("Trial expired. Type /subscribe.")
		b.deps.Dispatcher.OnAccessDenied(ctx, userID)
		return nil
	}

	zone := c.Data()
	if _, err := schedule.Validate(zone); err != nil {
		if errors.Is(err, schedule.ErrInvalidTimezone) {
			return c.Edit("Unknown time zone. Try again with /timezone.")
		}
		return c.Edit("Internal error.")
	}
	if err := b.deps.Users.SetTimezone(ctx, userID, zone); err != nil {
		b.log.Error("set timezone failed", logx.Int64("user", userID), logx.Err(err))
		return c.Edit("Internal error.")
	}
	if err := b.deps.Scheduler.Reschedule(ctx, userID); err != nil {
		b.log.Warn("reschedule after timezone change failed", logx.Int64("user", userID), logx.Err(err))
	}

	return c.Edit(fmt.Sprintf(
		"✅ Time zone saved: %s\nSchedule: %s (your local time).",
		zone, b.scheduleLine()))
}

func (b *Bot) onSubscribe(c tele.Context) error {
	return c.Send(subscribeText, subscribeKeyboard())
}

func (b *Bot) onSubscribeCallback(c tele.Context) error {
	_ = c.Respond()
	return c.Edit(subscribeText + "\nFor now, type /subscribe.")
}

func (b *Bot) onWhoami(c tele.Context) error {
	userID := c.Sender().ID
	admin := "NO"
	if b.isAdmin(userID) {
		admin = "YES"
	}
	return c.Send(fmt.Sprintf("Your user_id: %d\nAdmin: %s", userID, admin), mainMenu())
}

func (b *Bot) onMessage(c tele.Context) error {
	ctx, cancel := handlerCtx()
	defer cancel()
	userID := c.Sender().ID

	if _, err := b.deps.Access.GrantTrialIfAbsent(ctx, userID); err != nil {
		return c.Send("Internal error.", mainMenu())
	}
	dec, err := b.deps.Access.Evaluate(ctx, userID)
	if err != nil {
		return c.Send("Internal error.", mainMenu())
	}
	if !dec.Granted {
		return c.Send("⛔ Your trial has expired. Click Subscribe or type /subscribe.", mainMenu())
	}
	return c.Send("👍 Received", mainMenu())
}

// ---- admin ----

func (b *Bot) onAdminHelp(c tele.Context) error {
	if !b.isAdmin(c.Sender().ID) {
		return c.Send("Access denied.", mainMenu())
	}
	return c.Send(adminHelpText, mainMenu())
}

func (b *Bot) onActivate(c tele.Context) error {
	if !b.isAdmin(c.Sender().ID) {
		return c.Send("Access denied.", mainMenu())
	}
	args := c.Args()
	if len(args) < 2 {
		return c.Send("Usage: /activate <user_id> <days>", mainMenu())
	}
	uid, err1 := strconv.ParseInt(args[0], 10, 64)
	days, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil || uid <= 0 || days <= 0 {
		return c.Send("Usage: /activate <user_id> <days>", mainMenu())
	}

	ctx, cancel := handlerCtx()
	defer cancel()
	if _, err := b.deps.Access.ExtendSubscription(ctx, uid, time.Duration(days)*24*time.Hour); err != nil {
		b.log.Error("activate failed", logx.Int64("user", uid), logx.Err(err))
		return c.Send("Activation failed; see logs.", mainMenu())
	}
	if err := b.deps.Scheduler.Reschedule(ctx, uid); err != nil {
		b.log.Warn("reschedule after activate failed", logx.Int64("user", uid), logx.Err(err))
	}

	_ = c.Send(fmt.Sprintf("✅ Granted %d day(s) to user %d.", days, uid), mainMenu())
	// Best-effort heads-up to the target; ignore failures.
	_ = b.Send(ctx, uid, fmt.Sprintf("✅ Subscription activated for %d day(s). Type /start.", days))
	return nil
}

func (b *Bot) onLifetime(c tele.Context) error {
	if !b.isAdmin(c.Sender().ID) {
		return c.Send("Access denied.", mainMenu())
	}
	args := c.Args()
	if len(args) < 1 {
		return c.Send("Usage: /lifetime <user_id>", mainMenu())
	}
	uid, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || uid <= 0 {
		return c.Send("Usage: /lifetime <user_id>", mainMenu())
	}

	ctx, cancel := handlerCtx()
	defer cancel()
	if _, err := b.deps.Access.ExtendSubscription(ctx, uid, 10*365*24*time.Hour); err != nil {
		b.log.Error("lifetime grant failed", logx.Int64("user", uid), logx.Err(err))
		return c.Send("Activation failed; see logs.", mainMenu())
	}
	if err := b.deps.Scheduler.Reschedule(ctx, uid); err != nil {
		b.log.Warn("reschedule after lifetime failed", logx.Int64("user", uid), logx.Err(err))
	}

	_ = c.Send(fmt.Sprintf("✅ Granted LIFETIME (10y) to user %d.", uid), mainMenu())
	_ = b.Send(ctx, uid, "✅ Subscription activated (lifetime). Type /start.")
	return nil
}

func (b *Bot) onRevoke(c tele.Context) error {
	if !b.isAdmin(c.Sender().ID) {
		return c.Send("Access denied.", mainMenu())
	}
	args := c.Args()
	if len(args) < 1 {
		return c.Send("Usage: /revoke <user_id>", mainMenu())
	}
	uid, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || uid <= 0 {
		return c.Send("Usage: /revoke <user_id>", mainMenu())
	}

	ctx, cancel := handlerCtx()
	defer cancel()
	if err := b.deps.Access.RevokeSubscription(ctx, uid); err != nil {
		b.log.Error("revoke failed", logx.Int64("user", uid), logx.Err(err))
		return c.Send("Revoke failed; see logs.", mainMenu())
	}
	// Reschedule, not a blind cancel: a still-active trial keeps the
	// reminders running.
	if err := b.deps.Scheduler.Reschedule(ctx, uid); err != nil {
		b.log.Warn("reschedule after revoke failed", logx.Int64("user", uid), logx.Err(err))
	}

	_ = c.Send(fmt.Sprintf("✅ Subscription revoked for user %d.", uid), mainMenu())
	_ = b.Send(ctx, uid, "⛔ Subscription revoked. Trial may be expired. Type /subscribe.")
	return nil
}

// scheduleLine renders the current fire times, e.g. "08:00 / 12:00 / 20:00".
func (b *Bot) scheduleLine() string {
	return b.deps.Scheduler.TimesLine()
}
