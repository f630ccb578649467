package utils

import (
	"time"

	"market-relay/src/logger"

	"github.com/scmhub/calendar"
)

// TradingCalendar answers market-hours questions for the US equity market
// the relay proxies, using scmhub/calendar (MIC xnys).
type TradingCalendar struct {
	Calendar *calendar.Calendar
	Fallback bool
	Timezone *time.Location
}

// -----------------------------------------------------------------------------

func NewTradingCalendar(log *logger.Logger) *TradingCalendar {
	cal := calendar.GetCalendar("xnys")
	if cal == nil {
		log.Warning("Failed to load 'xnys' calendar. Using simple fallback (Mon-Fri 09:30-16:00 NY).")
		nyLoc, _ := time.LoadLocation("America/New_York")
		if nyLoc == nil {
			nyLoc = time.UTC // Worst case
		}
		return &TradingCalendar{Fallback: true, Timezone: nyLoc}
	}

	return &TradingCalendar{Calendar: cal, Fallback: false, Timezone: cal.Loc}
}

// -----------------------------------------------------------------------------

func (tc *TradingCalendar) IsTradingDay(date time.Time) bool {
	// Normalize to timezone if available
	if tc.Timezone != nil {
		date = date.In(tc.Timezone)
	}

	if tc.Fallback {
		// Simple fallback: Mon-Fri
		weekday := date.Weekday()
		return weekday != time.Saturday && weekday != time.Sunday
	}
	return tc.Calendar.IsBusinessDay(date)
}

// -----------------------------------------------------------------------------

// IsOpenOnMinute checks if the market is open at a specific minute.
func (tc *TradingCalendar) IsOpenOnMinute(t time.Time) bool {
	// Normalize to timezone if available
	if tc.Timezone != nil {
		t = t.In(tc.Timezone)
	}

	if tc.Fallback {
		if !tc.IsTradingDay(t) {
			return false
		}

		hour := t.Hour()
		minute := t.Minute()

		// 9:30 - 16:00 NY Time
		if (hour > 9 || (hour == 9 && minute >= 30)) && hour < 16 {
			return true
		}
		return false
	}

	return tc.Calendar.IsOpen(t)
}

// -----------------------------------------------------------------------------

// Status summarizes the current market state for the status endpoint.
func (tc *TradingCalendar) Status(now time.Time) map[string]interface{} {
	local := now
	if tc.Timezone != nil {
		local = now.In(tc.Timezone)
	}

	return map[string]interface{}{
		"is_open":        tc.IsOpenOnMinute(now),
		"is_trading_day": tc.IsTradingDay(now),
		"timestamp":      local.Format(time.RFC3339),
		"timezone":       tc.Timezone.String(),
	}
}
