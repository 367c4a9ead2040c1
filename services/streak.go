// services/streak.go
package services

import "time"

// Milestones are the derived login events for one user on one reference
// date. Streak and Absence cannot both fire on the same day: a live streak
// means the user logged in today.
type Milestones struct {
	Streak       bool
	StreakLength int
	Absence      bool
}

// StreakLength counts consecutive login days walking backward from the
// reference date. Dates are YYYY-MM-DD strings in any order; duplicates are
// harmless. A user who did not log in on the reference date has a streak of
// zero.
func StreakLength(dates []string, ref time.Time) int {
	if len(dates) == 0 {
		return 0
	}
	seen := make(map[string]bool, len(dates))
	for _, d := range dates {
		seen[d] = true
	}

	day := truncateToDay(ref)
	n := 0
	for seen[day.Format(DateLayout)] {
		n++
		day = day.AddDate(0, 0, -1)
	}
	return n
}

// DetectMilestones runs the one streak algorithm shared by the login hook
// and the nightly sweep, so both trigger paths agree on when a milestone
// fires.
//
// The streak bonus fires at every multiple of 7 consecutive days (7, 14,
// 21, ...), not only at exactly 7. The absence penalty fires when the most
// recent login is exactly 3 whole days before the reference date; a student
// who never returns is penalized once, not daily.
func DetectMilestones(dates []string, ref time.Time) Milestones {
	m := Milestones{StreakLength: StreakLength(dates, ref)}
	m.Streak = m.StreakLength >= 7 && m.StreakLength%7 == 0

	if last, ok := mostRecentLogin(dates); ok {
		gap := int(truncateToDay(ref).Sub(last).Hours() / 24)
		m.Absence = gap == 3
	}
	return m
}

func mostRecentLogin(dates []string) (time.Time, bool) {
	var last time.Time
	found := false
	for _, d := range dates {
		t, err := time.ParseInLocation(DateLayout, d, time.UTC)
		if err != nil {
			continue
		}
		if !found || t.After(last) {
			last = t
			found = true
		}
	}
	return last, found
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
