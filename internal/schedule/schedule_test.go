package schedule

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile(t *testing.T) {
	tests := []struct {
		name string
		in   Schedule
		want string
	}{
		{"daily", Schedule{Frequency: Daily, Time: TimeOfDay{Hour: 9, Minute: 30}}, "30 9 * * *"},
		{"daily midnight", Schedule{Frequency: Daily, Time: TimeOfDay{}}, "0 0 * * *"},
		{"weekly single", Schedule{Frequency: Weekly, Time: TimeOfDay{Hour: 7}, WeeklyDays: []time.Weekday{time.Monday}}, "0 7 * * 1"},
		{"weekly unsorted with dup", Schedule{Frequency: Weekly, Time: TimeOfDay{Hour: 18, Minute: 5},
			WeeklyDays: []time.Weekday{time.Friday, time.Monday, time.Friday, time.Sunday}}, "5 18 * * 0,1,5"},
		{"monthly", Schedule{Frequency: Monthly, Time: TimeOfDay{Hour: 23, Minute: 59}, MonthlyDay: 31}, "59 23 31 * *"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compile(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name  string
		in    Schedule
		field string
		err   error
	}{
		{"weekly without days", Schedule{Frequency: Weekly, Time: TimeOfDay{Hour: 8}}, "weekly_days", ErrWeeklyDaysRequired},
		{"monthly without day", Schedule{Frequency: Monthly, Time: TimeOfDay{Hour: 8}}, "monthly_day", ErrMonthlyDayRequired},
		{"monthly day 32", Schedule{Frequency: Monthly, Time: TimeOfDay{Hour: 8}, MonthlyDay: 32}, "monthly_day", ErrMonthlyDayRequired},
		{"bad hour", Schedule{Frequency: Daily, Time: TimeOfDay{Hour: 24}}, "time_of_day", ErrInvalidTimeOfDay},
		{"bad weekday", Schedule{Frequency: Weekly, WeeklyDays: []time.Weekday{9}}, "weekly_days", ErrInvalidWeekday},
		{"unknown frequency", Schedule{Frequency: "Hourly"}, "frequency", ErrUnknownFrequency},
		{"daily with weekdays", Schedule{Frequency: Daily, Time: TimeOfDay{Hour: 8}, WeeklyDays: []time.Weekday{time.Monday}}, "weekly_days", ErrSelectorNotApplicable},
		{"daily with month day", Schedule{Frequency: Daily, Time: TimeOfDay{Hour: 8}, MonthlyDay: 1}, "monthly_day", ErrSelectorNotApplicable},
		{"weekly with month day", Schedule{Frequency: Weekly, Time: TimeOfDay{Hour: 8}, WeeklyDays: []time.Weekday{time.Monday}, MonthlyDay: 5}, "monthly_day", ErrSelectorNotApplicable},
		{"monthly with weekdays", Schedule{Frequency: Monthly, Time: TimeOfDay{Hour: 8}, WeeklyDays: []time.Weekday{time.Monday}, MonthlyDay: 5}, "weekly_days", ErrSelectorNotApplicable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.err), "got %v", err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestCompileDecompile_RoundTrip(t *testing.T) {
	var cases []Schedule
	for _, tod := range []TimeOfDay{{0, 0}, {6, 15}, {12, 0}, {23, 59}} {
		cases = append(cases, Schedule{Frequency: Daily, Time: tod})
		cases = append(cases,
			Schedule{Frequency: Weekly, Time: tod, WeeklyDays: []time.Weekday{time.Sunday}},
			Schedule{Frequency: Weekly, Time: tod, WeeklyDays: []time.Weekday{time.Monday, time.Wednesday, time.Friday}},
			Schedule{Frequency: Weekly, Time: tod, WeeklyDays: []time.Weekday{0, 1, 2, 3, 4, 5, 6}},
		)
		for _, day := range []int{1, 15, 28, 31} {
			cases = append(cases, Schedule{Frequency: Monthly, Time: tod, MonthlyDay: day})
		}
	}

	for _, in := range cases {
		expr, err := Compile(in)
		require.NoError(t, err)

		out, err := Decompile(expr)
		require.NoError(t, err, expr)
		assert.Equal(t, in, out, expr)
	}
}

func TestCompileDecompile_WeekdaysAreASet(t *testing.T) {
	in := Schedule{Frequency: Weekly, Time: TimeOfDay{Hour: 8},
		WeeklyDays: []time.Weekday{time.Wednesday, time.Monday, time.Wednesday}}
	expr, err := Compile(in)
	require.NoError(t, err)
	assert.Equal(t, "0 8 * * 1,3", expr)

	out, err := Decompile(expr)
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Monday, time.Wednesday}, out.WeeklyDays)

	again, err := Compile(out)
	require.NoError(t, err)
	assert.Equal(t, expr, again)
}

func TestDecompile_SundayAsSeven(t *testing.T) {
	s, err := Decompile("0 8 * * 1,7")
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Sunday, time.Monday}, s.WeeklyDays)
}

func TestDecompile_Rejects(t *testing.T) {
	for _, expr := range []string{
		"",
		"0 8 * *",
		"*/5 * * * *",
		"0 8 1 * 1",
		"0 8 * 6 *",
		"0 8 1-5 * *",
		"0 8 * * MON",
		"60 8 * * *",
	} {
		_, err := Decompile(expr)
		assert.ErrorIs(t, err, ErrUnsupportedExpression, expr)
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("*/15 8-17 * * 1-5"))
	assert.NoError(t, Validate("30 9 * * *"))

	err := Validate("not a cron")
	assert.ErrorIs(t, err, ErrInvalidExpression)
}

func TestNextFire_UsesLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	after := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC) // 07:00 in New York
	next, err := NextFire("30 9 * * *", loc, after)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 3, 2, 9, 30, 0, 0, loc).UTC(), next.UTC())
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("07:05")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay{Hour: 7, Minute: 5}, tod)
	assert.Equal(t, "07:05", tod.String())

	_, err = ParseTimeOfDay("25:00")
	assert.ErrorIs(t, err, ErrInvalidTimeOfDay)
	_, err = ParseTimeOfDay("noon")
	assert.ErrorIs(t, err, ErrInvalidTimeOfDay)
}

func TestTimeOfDay_UnmarshalJSON(t *testing.T) {
	var s Schedule
	require.NoError(t, json.Unmarshal([]byte(`{"frequency":"Daily","time":"07:05"}`), &s))
	assert.Equal(t, TimeOfDay{Hour: 7, Minute: 5}, s.Time)

	require.NoError(t, json.Unmarshal([]byte(`{"frequency":"Daily","time":{"hour":18,"minute":45}}`), &s))
	assert.Equal(t, TimeOfDay{Hour: 18, Minute: 45}, s.Time)

	err := json.Unmarshal([]byte(`{"frequency":"Daily","time":"24:00"}`), &s)
	assert.ErrorIs(t, err, ErrInvalidTimeOfDay)
}
