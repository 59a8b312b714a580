package schedule

import "errors"

// Sentinel errors for schedule compilation. They are always returned wrapped
// in a *ValidationError naming the offending field.
var (
	ErrWeeklyDaysRequired    = errors.New("at least one weekday is required for a weekly schedule")
	ErrMonthlyDayRequired    = errors.New("a day of month between 1 and 31 is required for a monthly schedule")
	ErrInvalidTimeOfDay      = errors.New("time of day must be between 00:00 and 23:59")
	ErrInvalidWeekday        = errors.New("weekday must be between Sunday (0) and Saturday (6)")
	ErrSelectorNotApplicable = errors.New("day selector does not apply to this frequency")
	ErrUnknownFrequency      = errors.New("frequency must be Daily, Weekly or Monthly")
	ErrUnsupportedExpression = errors.New("cron expression is not a daily, weekly or monthly schedule")
	ErrInvalidExpression     = errors.New("invalid cron expression")
)

// ValidationError names the field that failed validation.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}
