package contacts

import "time"

// UpcomingWindow is how many days ahead the birthday filter looks
const UpcomingWindow = 7

// UpcomingBirthdays returns the contacts whose next birthday falls within
// [today, today+days]. A February 29 birthday counts as March 1 in common years.
func UpcomingBirthdays(all []*Contact, today time.Time, days int) []*Contact {
	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, days)

	upcoming := make([]*Contact, 0)
	for _, c := range all {
		next := nextBirthday(c.Birthday, start)
		if !next.After(end) {
			upcoming = append(upcoming, c)
		}
	}
	return upcoming
}

// nextBirthday returns the first anniversary of birthday on or after from
func nextBirthday(birthday Date, from time.Time) time.Time {
	next := anniversary(birthday, from.Year())
	if next.Before(from) {
		next = anniversary(birthday, from.Year()+1)
	}
	return next
}

func anniversary(birthday Date, year int) time.Time {
	// time.Date normalizes Feb 29 to Mar 1 in common years
	return time.Date(year, birthday.Month(), birthday.Day(), 0, 0, 0, 0, time.UTC)
}
