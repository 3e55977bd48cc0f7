package main

import "time"

// missingLoginDays is the sentinel for accounts with no parseable last
// login; it is above every threshold, so such accounts always classify as
// Deactivated.
const missingLoginDays = 999

type Status string

const (
	StatusActive      Status = "Active"
	StatusInactive    Status = "Inactive"
	StatusDeactivated Status = "Deactivated"
)

// daysInactive returns the whole-day gap between the last login and today,
// both normalized to midnight. Future-dated logins clamp to zero and are
// flagged so the run report can surface them.
func daysInactive(lastLogin time.Time, today time.Time) (int, bool) {
	if lastLogin.IsZero() {
		return missingLoginDays, false
	}
	last := dateOnly(lastLogin)
	ref := dateOnly(today)
	if last.After(ref) {
		return 0, true
	}
	return int(ref.Sub(last).Hours() / 24), false
}

// statusFor maps an inactivity gap to a status. Thresholds are inclusive:
// exactly inactiveAfter days is Inactive, exactly deactivatedAfter days is
// Deactivated.
func statusFor(days int, inactiveAfter int, deactivatedAfter int) Status {
	if days >= deactivatedAfter {
		return StatusDeactivated
	}
	if days >= inactiveAfter {
		return StatusInactive
	}
	return StatusActive
}

// classifyUsers fills the derived inactivity fields on every record and
// returns how many records carried a future-dated login.
func classifyUsers(users []UserRecord, today time.Time, inactiveAfter int, deactivatedAfter int) int {
	futureLogins := 0
	for i := range users {
		days, future := daysInactive(users[i].LastLogin, today)
		if future {
			futureLogins++
		}
		users[i].DaysInactive = days
		users[i].Status = statusFor(days, inactiveAfter, deactivatedAfter)
	}
	return futureLogins
}

func dateOnly(value time.Time) time.Time {
	if value.IsZero() {
		return value
	}
	return time.Date(value.Year(), value.Month(), value.Day(), 0, 0, 0, 0, value.Location())
}
