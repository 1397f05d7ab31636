package alpaca

import (
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
)

// ET wall-clock time after which a session's daily bar is final.
const (
	settleHour   = 20
	settleMinute = 5
)

// LatestFinishedTradingDay returns the most recent trading day whose session
// has ended, using the Alpaca trading calendar.
func LatestFinishedTradingDay(cfg Config) (time.Time, error) {
	client := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		BaseURL:   cfg.BaseURL,
	})

	et, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.Time{}, fmt.Errorf("loading ET timezone: %w", err)
	}
	now := time.Now().In(et)

	calendar, err := client.GetCalendar(alpaca.GetCalendarRequest{
		Start: now.AddDate(0, 0, -7),
		End:   now,
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("GetCalendar: %w", err)
	}

	days := make([]string, len(calendar))
	for i, d := range calendar {
		days[i] = d.Date
	}
	return latestFinished(days, now)
}

// latestFinished picks the last finished session from ascending calendar
// dates (YYYY-MM-DD). now must be in ET.
func latestFinished(days []string, now time.Time) (time.Time, error) {
	if len(days) == 0 {
		return time.Time{}, fmt.Errorf("no trading days returned from calendar")
	}
	today := now.Format("2006-01-02")
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), settleHour, settleMinute, 0, 0, now.Location())

	for i := len(days) - 1; i >= 0; i-- {
		day, err := time.Parse("2006-01-02", days[i])
		if err != nil {
			continue
		}
		if days[i] == today {
			if now.After(cutoff) {
				return day, nil
			}
			continue
		}
		if days[i] < today {
			return day, nil
		}
	}
	return time.Time{}, fmt.Errorf("could not determine latest finished trading day")
}
