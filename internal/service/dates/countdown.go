package dates

import "time"

// Countdown places a date relative to today.
type Countdown struct {
	NextOccurrence string `json:"nextOccurrence"`
	DaysUntil      int    `json:"daysUntil"`
	IsToday        bool   `json:"isToday"`
	IsPast         bool   `json:"isPast"`
}

// NextOccurrence is the event itself, or for recurring events the first
// anniversary on or after today. A Feb 29 event falls on Mar 1 in common years.
func NextOccurrence(eventDate, today time.Time, recurring bool) time.Time {
	if !recurring || !eventDate.Before(today) {
		return eventDate
	}
	next := time.Date(today.Year(), eventDate.Month(), eventDate.Day(), 0, 0, 0, 0, time.UTC)
	if next.Before(today) {
		next = time.Date(today.Year()+1, eventDate.Month(), eventDate.Day(), 0, 0, 0, 0, time.UTC)
	}
	return next
}

// CountdownFor computes the countdown of a YYYY-MM-DD event from a YYYY-MM-DD today.
func CountdownFor(eventDate, today string, recurring bool) (Countdown, error) {
	ev, err := time.Parse(time.DateOnly, eventDate)
	if err != nil {
		return Countdown{}, err
	}
	now, err := time.Parse(time.DateOnly, today)
	if err != nil {
		return Countdown{}, err
	}

	next := NextOccurrence(ev, now, recurring)
	days := int(next.Sub(now).Hours() / 24)
	return Countdown{
		NextOccurrence: next.Format(time.DateOnly),
		DaysUntil:      days,
		IsToday:        days == 0,
		IsPast:         days < 0,
	}, nil
}
