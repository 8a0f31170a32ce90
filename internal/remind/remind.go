// Package remind defines the reminder kinds and their message content.
package remind

import "math/rand"

// Kind names one of the three daily reminders.
type Kind string

const (
	Morning Kind = "morning"
	Midday  Kind = "midday"
	Evening Kind = "evening"
)

// Kinds returns all reminder kinds in firing order.
func Kinds() []Kind { return []Kind{Morning, Midday, Evening} }

func (k Kind) Valid() bool {
	switch k {
	case Morning, Midday, Evening:
		return true
	}
	return false
}

var quotes = []string{
	"Discipline beats motivation.",
	"Small steps every day.",
	"Focus on the next action, not the whole mountain.",
	"Your habits decide your future.",
	"Action creates confidence.",
}

// Message returns the reminder text for a kind. Morning and evening carry a
// random quote; midday is a fixed check-in.
func Message(k Kind) string {
	switch k {
	case Morning:
		return "☀️ Morning quote:\n“" + quotes[rand.Intn(len(quotes))] + "”\n\nWhat ONE thing will you do today to increase your income?"
	case Midday:
		return "🕛 Midday check:\nWhat have you done so far today to reach your goal?"
	case Evening:
		return "🌙 Evening quote:\n“" + quotes[rand.Intn(len(quotes))] + "”\n\nWhat did you do today that moved you closer to your goal?"
	default:
		return ""
	}
}
