// Package semaforo classifies deadlines (prescripción dates) into risk levels.
package semaforo

import (
	"time"
)

// Level is the deadline-proximity bucket.
type Level string

const (
	LevelNone   Level = "none"
	LevelGreen  Level = "green"
	LevelYellow Level = "yellow"
	LevelRed    Level = "red"
)

// Thresholds in whole days remaining. Anything above YellowMaxDays is green.
const (
	RedMaxDays    = 182
	YellowMaxDays = 365
)

// Status bundles the three views of a deadline for dashboards.
type Status struct {
	Level         Level  `json:"level"`
	DaysRemaining *int   `json:"days_remaining"`
	Label         string `json:"label"`
}

// DaysRemaining returns target minus reference in calendar days, negative when overdue.
// Time of day is ignored; both dates are taken in local time.
func DaysRemaining(target, reference time.Time) int {
	t := calendarDay(target)
	r := calendarDay(reference)
	return int(t.Sub(r).Hours() / 24)
}

// calendarDay projects the local calendar date onto UTC midnight so day arithmetic is not
// skewed by DST changes.
func calendarDay(t time.Time) time.Time {
	y, m, d := t.Local().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Classify maps a nullable deadline to a Level relative to reference.
func Classify(target *time.Time, reference time.Time) Level {
	if target == nil || target.IsZero() {
		return LevelNone
	}
	return levelForDays(DaysRemaining(*target, reference))
}

// ClassifyString parses YYYY-MM-DD (or RFC3339) and classifies it. Unparsable input is LevelNone.
func ClassifyString(value string, reference time.Time) Level {
	t, ok := parseDate(value)
	if !ok {
		return LevelNone
	}
	return Classify(&t, reference)
}

func levelForDays(days int) Level {
	switch {
	case days <= RedMaxDays:
		return LevelRed
	case days <= YellowMaxDays:
		return LevelYellow
	default:
		return LevelGreen
	}
}

// Label is the short phrase shown next to the light.
func Label(level Level) string {
	switch level {
	case LevelGreen:
		return "En término"
	case LevelYellow:
		return "Próximo a prescribir"
	case LevelRed:
		return "Crítico o prescrito"
	default:
		return "Sin fecha de prescripción"
	}
}

// Evaluate returns level, day count and label computed from the same thresholds.
func Evaluate(target *time.Time, reference time.Time) Status {
	level := Classify(target, reference)
	st := Status{Level: level, Label: Label(level)}
	if level != LevelNone {
		days := DaysRemaining(*target, reference)
		st.DaysRemaining = &days
	}
	return st
}

// Rank orders levels by urgency, red first.
func Rank(level Level) int {
	switch level {
	case LevelRed:
		return 0
	case LevelYellow:
		return 1
	case LevelGreen:
		return 2
	default:
		return 3
	}
}

func parseDate(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	if t, err := time.ParseInLocation("2006-01-02", value, time.Local); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, true
	}
	return time.Time{}, false
}
