// Package schedule converts between structured notification schedules and
// five-field cron expressions.
//
// Compile and Decompile are pure functions: Decompile(Compile(s)) returns s
// for every schedule Compile accepts, with WeeklyDays in canonical form.
// WeeklyDays is a set: order and repeats carry no meaning, and Decompile
// always lists each day once in ascending order. A frequency only accepts
// the day selector it uses. The scheduler never parses expressions itself;
// it hands them to the cron library as opaque strings.
package schedule

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Frequency is how often a structured schedule repeats.
type Frequency string

const (
	Daily   Frequency = "Daily"
	Weekly  Frequency = "Weekly"
	Monthly Frequency = "Monthly"
)

// TimeOfDay is a wall-clock hour and minute in the rule's time zone.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

func (t TimeOfDay) valid() bool {
	return t.Hour >= 0 && t.Hour <= 23 && t.Minute >= 0 && t.Minute <= 59
}

// UnmarshalJSON accepts either {"hour":9,"minute":30} or "09:30".
func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		parsed, err := ParseTimeOfDay(s)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	}
	type fields TimeOfDay
	var f fields
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*t = TimeOfDay(f)
	return nil
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return TimeOfDay{}, invalid("time_of_day", ErrInvalidTimeOfDay)
	}
	hour, err1 := strconv.Atoi(h)
	minute, err2 := strconv.Atoi(m)
	t := TimeOfDay{Hour: hour, Minute: minute}
	if err1 != nil || err2 != nil || !t.valid() {
		return TimeOfDay{}, invalid("time_of_day", ErrInvalidTimeOfDay)
	}
	return t, nil
}

// Schedule is the structured form edited by rule authors. WeeklyDays is
// only meaningful for Weekly and MonthlyDay only for Monthly.
type Schedule struct {
	Frequency  Frequency      `json:"frequency"`
	Time       TimeOfDay      `json:"time"`
	WeeklyDays []time.Weekday `json:"weekly_days,omitempty"`
	MonthlyDay int            `json:"monthly_day,omitempty"`
}

// Compile turns s into a cron expression of the form
// "minute hour day-of-month month day-of-week".
func Compile(s Schedule) (string, error) {
	if !s.Time.valid() {
		return "", invalid("time_of_day", ErrInvalidTimeOfDay)
	}
	prefix := fmt.Sprintf("%d %d", s.Time.Minute, s.Time.Hour)

	switch s.Frequency {
	case Daily:
		if err := noSelectors(s, true, true); err != nil {
			return "", err
		}
		return prefix + " * * *", nil
	case Weekly:
		if err := noSelectors(s, false, true); err != nil {
			return "", err
		}
		days, err := canonicalDays(s.WeeklyDays)
		if err != nil {
			return "", err
		}
		parts := make([]string, len(days))
		for i, d := range days {
			parts[i] = strconv.Itoa(int(d))
		}
		return prefix + " * * " + strings.Join(parts, ","), nil
	case Monthly:
		if err := noSelectors(s, true, false); err != nil {
			return "", err
		}
		if s.MonthlyDay < 1 || s.MonthlyDay > 31 {
			return "", invalid("monthly_day", ErrMonthlyDayRequired)
		}
		return fmt.Sprintf("%s %d * *", prefix, s.MonthlyDay), nil
	}
	return "", invalid("frequency", ErrUnknownFrequency)
}

// Decompile reconstructs the structured schedule behind a compiled
// expression. Expressions that Compile could not have produced are rejected
// with ErrUnsupportedExpression.
func Decompile(expr string) (Schedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return Schedule{}, invalid("cron_expression", ErrUnsupportedExpression)
	}
	minute, err1 := strconv.Atoi(fields[0])
	hour, err2 := strconv.Atoi(fields[1])
	t := TimeOfDay{Hour: hour, Minute: minute}
	if err1 != nil || err2 != nil || !t.valid() || fields[3] != "*" {
		return Schedule{}, invalid("cron_expression", ErrUnsupportedExpression)
	}

	dom, dow := fields[2], fields[4]
	switch {
	case dow != "*":
		if dom != "*" {
			return Schedule{}, invalid("cron_expression", ErrUnsupportedExpression)
		}
		var days []time.Weekday
		for _, p := range strings.Split(dow, ",") {
			n, err := strconv.Atoi(p)
			if err != nil || n < 0 || n > 7 {
				return Schedule{}, invalid("cron_expression", ErrUnsupportedExpression)
			}
			days = append(days, time.Weekday(n%7))
		}
		days, err := canonicalDays(days)
		if err != nil {
			return Schedule{}, err
		}
		return Schedule{Frequency: Weekly, Time: t, WeeklyDays: days}, nil
	case dom != "*":
		day, err := strconv.Atoi(dom)
		if err != nil || day < 1 || day > 31 {
			return Schedule{}, invalid("cron_expression", ErrUnsupportedExpression)
		}
		return Schedule{Frequency: Monthly, Time: t, MonthlyDay: day}, nil
	}
	return Schedule{Frequency: Daily, Time: t}, nil
}

func noSelectors(s Schedule, weekly, monthly bool) error {
	if weekly && len(s.WeeklyDays) > 0 {
		return invalid("weekly_days", ErrSelectorNotApplicable)
	}
	if monthly && s.MonthlyDay != 0 {
		return invalid("monthly_day", ErrSelectorNotApplicable)
	}
	return nil
}

// canonicalDays validates, de-duplicates and sorts weekdays.
func canonicalDays(days []time.Weekday) ([]time.Weekday, error) {
	if len(days) == 0 {
		return nil, invalid("weekly_days", ErrWeeklyDaysRequired)
	}
	seen := make(map[time.Weekday]bool, len(days))
	out := make([]time.Weekday, 0, len(days))
	for _, d := range days {
		if d < time.Sunday || d > time.Saturday {
			return nil, invalid("weekly_days", ErrInvalidWeekday)
		}
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Validate checks any standard five-field cron expression, including ones
// written by hand that Decompile cannot represent.
func Validate(expr string) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return invalid("cron_expression", fmt.Errorf("%w: %v", ErrInvalidExpression, err))
	}
	return nil
}

// NextFire returns the first fire time strictly after the given instant,
// evaluated in loc.
func NextFire(expr string, loc *time.Location, after time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return time.Time{}, invalid("cron_expression", fmt.Errorf("%w: %v", ErrInvalidExpression, err))
	}
	if loc == nil {
		loc = time.UTC
	}
	return sched.Next(after.In(loc)), nil
}
