package telegram

import (
	"fmt"
	"time"

	tele "gopkg.in/telebot.v4"
)

const subscribeData = "SUBSCRIBE"

const helpText = "📋 Commands\n" +
	"/start — activate schedule\n" +
	"/timezone — set your time zone\n" +
	"/status — show your status\n" +
	"/subscribe — subscription info\n" +
	"/help — show this menu\n"

const adminHelpText = "🔐 Admin commands\n" +
	"/whoami — show your user_id\n" +
	"/activate <user_id> <days> — grant subscription for N days\n" +
	"/lifetime <user_id> — grant subscription for 10 years\n" +
	"/revoke <user_id> — remove subscription\n" +
	"/admin — show this help\n"

const subscribeText = "✅ Subscription is not connected to payments yet.\n\n" +
	"Next step: payment integration (Stripe/Telegram Payments).\n" +
	"For now, this is a placeholder screen."

func mainMenu() *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{ResizeKeyboard: true, Placeholder: "Choose a command…"}
	m.Reply(
		m.Row(m.Text("/start"), m.Text("/status")),
		m.Row(m.Text("/timezone"), m.Text("/subscribe")),
		m.Row(m.Text("/help")),
	)
	return m
}

func subscribeKeyboard() *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	btn := m.Data("✅ Subscribe", subscribeData)
	m.Inline(m.Row(btn))
	return m
}

// timezoneKeyboard offers the supported zones; callback data is "TZ:<name>".
func timezoneKeyboard() *tele.ReplyMarkup {
	zones := []struct{ label, name string }{
		{"🇬🇧 UK (London)", "Europe/London"},
		{"🇮🇪 Ireland (Dublin)", "Europe/Dublin"},
		{"🇨🇦 Canada (Toronto)", "America/Toronto"},
		{"🇨🇦 Canada (Vancouver)", "America/Vancouver"},
		{"🇨🇦 Canada (Edmonton)", "America/Edmonton"},
		{"🇨🇦 Canada (Winnipeg)", "America/Winnipeg"},
		{"🇨🇦 Canada (Halifax)", "America/Halifax"},
		{"🇨🇦 Canada (St Johns)", "America/St_Johns"},
	}
	m := &tele.ReplyMarkup{}
	rows := make([]tele.Row, 0, len(zones))
	for _, z := range zones {
		rows = append(rows, m.Row(m.Data(z.label, "TZ", z.name)))
	}
	m.Inline(rows...)
	return m
}

// humanDuration renders remaining time the way users expect: coarse, largest
// two units only.
func humanDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int64(d.Seconds())
	days := sec / 86400
	hours := (sec % 86400) / 3600
	mins := (sec % 3600) / 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, mins)
	default:
		return fmt.Sprintf("%dm", mins)
	}
}
