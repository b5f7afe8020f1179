// Package calendar answers trading-day questions for the Taiwan and US
// markets using static per-year holiday tables. Pure date math, no I/O.
package calendar

import (
	"errors"
	"time"

	"go_stocksync/models"
)

// ErrInvalidDate is returned for zero-value dates.
var ErrInvalidDate = errors.New("calendar: invalid date")

// Taiwan exchange holidays (TWSE/TPEx share the same calendar).
// Years missing from the table are treated as having no known holidays.
var twHolidays = map[int][]string{
	2024: {
		"2024-01-01", // 元旦
		"2024-02-08", // 農曆春節前一日
		"2024-02-09", // 農曆除夕
		"2024-02-10", // 農曆春節
		"2024-02-11", // 農曆春節
		"2024-02-12", // 農曆春節
		"2024-02-13", // 農曆春節
		"2024-02-14", // 農曆春節
		"2024-02-28", // 和平紀念日
		"2024-04-04", // 兒童節
		"2024-04-05", // 清明節
		"2024-06-10", // 端午節
		"2024-09-17", // 中秋節
		"2024-10-10", // 國慶日
	},
	2025: {
		"2025-01-01", // 元旦
		"2025-01-27", // 農曆春節前一日
		"2025-01-28", // 農曆除夕
		"2025-01-29", // 農曆春節
		"2025-01-30", // 農曆春節
		"2025-01-31", // 農曆春節
		"2025-02-28", // 和平紀念日
		"2025-04-03", // 兒童節補假
		"2025-04-04", // 兒童節
		"2025-04-05", // 清明節
		"2025-05-31", // 端午節
		"2025-10-06", // 中秋節
		"2025-10-10", // 國慶日
	},
}

// US exchange holidays, from the NYSE official holiday table.
var usHolidays = map[int][]string{
	2024: {
		"2024-01-01", // New Year's Day
		"2024-01-15", // Martin Luther King Jr. Day
		"2024-02-19", // Presidents' Day
		"2024-03-29", // Good Friday
		"2024-05-27", // Memorial Day
		"2024-06-19", // Juneteenth
		"2024-07-04", // Independence Day
		"2024-09-02", // Labor Day
		"2024-11-28", // Thanksgiving Day
		"2024-12-25", // Christmas Day
	},
	2025: {
		"2025-01-01", // New Year's Day
		"2025-01-20", // Martin Luther King Jr. Day
		"2025-02-17", // Presidents' Day
		"2025-04-18", // Good Friday
		"2025-05-26", // Memorial Day
		"2025-06-19", // Juneteenth
		"2025-07-04", // Independence Day
		"2025-09-01", // Labor Day
		"2025-11-27", // Thanksgiving Day
		"2025-12-25", // Christmas Day
	},
}

func holidayTable(market models.Market) map[int][]string {
	if market.IsUS() {
		return usHolidays
	}
	return twHolidays
}

// IsTradingDay reports whether date is a trading day for the given market:
// false on weekends and on listed exchange holidays.
func IsTradingDay(date time.Time, market models.Market) (bool, error) {
	if date.IsZero() {
		return false, ErrInvalidDate
	}

	weekday := date.Weekday()
	if weekday == time.Saturday || weekday == time.Sunday {
		return false, nil
	}

	dateStr := date.Format("2006-01-02")
	for _, holiday := range holidayTable(market)[date.Year()] {
		if holiday == dateStr {
			return false, nil
		}
	}

	return true, nil
}

// PreviousTradingDay returns the most recent trading day strictly before
// date. Weekends are skipped with fixed jumps, then remaining holidays one
// day at a time; a weekday that is not a holiday always exists, so the loop
// terminates.
func PreviousTradingDay(date time.Time, market models.Market) (time.Time, error) {
	if date.IsZero() {
		return time.Time{}, ErrInvalidDate
	}

	previous := date.AddDate(0, 0, -1)

	if previous.Weekday() == time.Saturday {
		previous = previous.AddDate(0, 0, -1)
	}
	if previous.Weekday() == time.Sunday {
		previous = previous.AddDate(0, 0, -2)
	}

	for {
		trading, err := IsTradingDay(previous, market)
		if err != nil {
			return time.Time{}, err
		}
		if trading {
			return previous, nil
		}
		previous = previous.AddDate(0, 0, -1)
	}
}
