package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// splitAmount splits "15m" into (15, "m"). A missing number means 1.
func splitAmount(s string) (int, string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	n := 1
	if i > 0 {
		v, err := strconv.Atoi(s[:i])
		if err != nil {
			return 0, "", err
		}
		n = v
	}
	return n, strings.TrimSpace(s[i:]), nil
}

// ---------------------------------------------------------------------------
// Period and Interval
// ---------------------------------------------------------------------------

// Period is a lookback window such as "7d", "1mo" or "1y".
type Period string

// Start returns the beginning of the window ending at now.
func (p Period) Start(now time.Time) (time.Time, error) {
	n, unit, err := splitAmount(string(p))
	if err != nil || n <= 0 {
		return time.Time{}, fmt.Errorf("%w: period %q", ErrInvalidParams, p)
	}
	switch unit {
	case "d":
		return now.AddDate(0, 0, -n), nil
	case "wk":
		return now.AddDate(0, 0, -7*n), nil
	case "mo":
		return now.AddDate(0, -n, 0), nil
	case "y":
		return now.AddDate(-n, 0, 0), nil
	default:
		return time.Time{}, fmt.Errorf("%w: period %q", ErrInvalidParams, p)
	}
}

// Interval is a bar sampling interval such as "1h", "1d" or "1mo".
type Interval string

// Split returns the amount and unit of the interval.
func (iv Interval) Split() (int, string, error) {
	n, unit, err := splitAmount(string(iv))
	if err != nil || n <= 0 {
		return 0, "", fmt.Errorf("%w: interval %q", ErrInvalidParams, iv)
	}
	switch unit {
	case "m", "h", "d", "wk", "mo":
		return n, unit, nil
	}
	return 0, "", fmt.Errorf("%w: interval %q", ErrInvalidParams, iv)
}

// Duration returns the fixed length of the interval. ok is false for
// calendar-month intervals.
func (iv Interval) Duration() (time.Duration, bool) {
	n, unit, err := iv.Split()
	if err != nil {
		return 0, false
	}
	switch unit {
	case "m":
		return time.Duration(n) * time.Minute, true
	case "h":
		return time.Duration(n) * time.Hour, true
	case "d":
		return time.Duration(n) * 24 * time.Hour, true
	case "wk":
		return time.Duration(n) * 7 * 24 * time.Hour, true
	}
	return 0, false
}

// Months returns the interval length in months, or 0 if it is not a
// calendar-month interval.
func (iv Interval) Months() int {
	n, unit, err := iv.Split()
	if err != nil || unit != "mo" {
		return 0
	}
	return n
}

// Timeframe pairs a lookback period with a sampling interval.
type Timeframe struct {
	Name     string   `json:"name"`
	Period   Period   `json:"period"`
	Interval Interval `json:"interval"`
}

var timeframes = map[string]Timeframe{
	"1h":  {Name: "1h", Period: "7d", Interval: "1h"},
	"1d":  {Name: "1d", Period: "1mo", Interval: "1d"},
	"1mo": {Name: "1mo", Period: "1y", Interval: "1mo"},
}

// DefaultTimeframe is used when no timeframe is given.
const DefaultTimeframe = "1d"

// ParseTimeframe resolves a preset name. Long forms such as "1 Hour" are
// accepted as well.
func ParseTimeframe(s string) (Timeframe, error) {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	switch key {
	case "":
		key = DefaultTimeframe
	case "1hour", "hourly":
		key = "1h"
	case "1day", "daily":
		key = "1d"
	case "1month", "monthly":
		key = "1mo"
	}
	tf, ok := timeframes[key]
	if !ok {
		return Timeframe{}, fmt.Errorf("%w: unknown timeframe %q", ErrInvalidParams, s)
	}
	return tf, nil
}

// ---------------------------------------------------------------------------
// Lag
// ---------------------------------------------------------------------------

// LagUnit is the unit a lag is expressed in.
type LagUnit string

const (
	LagBars    LagUnit = "bars"
	LagMinutes LagUnit = "m"
	LagHours   LagUnit = "h"
	LagDays    LagUnit = "d"
	LagMonths  LagUnit = "mo"
)

// Lag is a lead/lag offset with an explicit unit. The zero value is no lag.
type Lag struct {
	Amount int     `json:"amount"`
	Unit   LagUnit `json:"unit"`
}

// IsZero reports whether the lag is a no-op.
func (l Lag) IsZero() bool { return l.Amount == 0 }

// String renders the lag in the form ParseLag accepts.
func (l Lag) String() string {
	if l.IsZero() {
		return "0"
	}
	return strconv.Itoa(l.Amount) + string(l.Unit)
}

// ParseLag parses "3bars", "1m", "1h", "1d", "2mo", long forms like
// "1 Hour", and "0" or "" for no lag.
func ParseLag(s string) (Lag, error) {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	if key == "" || key == "0" || key == "none" {
		return Lag{}, nil
	}
	n, unit, err := splitAmount(key)
	if err != nil || n < 0 {
		return Lag{}, fmt.Errorf("%w: lag %q", ErrInvalidParams, s)
	}
	var u LagUnit
	switch unit {
	case "bar", "bars":
		u = LagBars
	case "m", "min", "minute", "minutes":
		u = LagMinutes
	case "h", "hour", "hours":
		u = LagHours
	case "d", "day", "days":
		u = LagDays
	case "mo", "month", "months":
		u = LagMonths
	default:
		return Lag{}, fmt.Errorf("%w: lag unit %q", ErrInvalidParams, unit)
	}
	if n == 0 {
		return Lag{}, nil
	}
	return Lag{Amount: n, Unit: u}, nil
}

// Steps converts the lag to a number of bars at the given interval. Bar lags
// convert directly. A duration lag converts only when it is an exact positive
// multiple of the interval; month lags only apply to month intervals. Any
// other combination returns ErrUnsupportedLag.
func (l Lag) Steps(iv Interval) (int, error) {
	if l.IsZero() {
		return 0, nil
	}
	if l.Unit == LagBars {
		return l.Amount, nil
	}
	unsupported := fmt.Errorf("%w: %s lag with %s interval", ErrUnsupportedLag, l, iv)

	if months := iv.Months(); months > 0 {
		if l.Unit != LagMonths || l.Amount%months != 0 {
			return 0, unsupported
		}
		return l.Amount / months, nil
	}
	if l.Unit == LagMonths {
		return 0, unsupported
	}

	step, ok := iv.Duration()
	if !ok {
		return 0, unsupported
	}
	var d time.Duration
	switch l.Unit {
	case LagMinutes:
		d = time.Duration(l.Amount) * time.Minute
	case LagHours:
		d = time.Duration(l.Amount) * time.Hour
	case LagDays:
		d = time.Duration(l.Amount) * 24 * time.Hour
	}
	if d < step || d%step != 0 {
		return 0, unsupported
	}
	return int(d / step), nil
}
