package operations

import "time"

// TradingDates lists the candidate trading days between from and to,
// inclusive, in chronological order. Only weekends are excluded: there is no
// holiday calendar, so holiday dates are fetched anyway and absorbed by the
// retry-then-fail path for that single date.
func TradingDates(from, to time.Time) []time.Time {
	from = truncateDay(from)
	to = truncateDay(to)

	var dates []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		dates = append(dates, d)
	}
	return dates
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
