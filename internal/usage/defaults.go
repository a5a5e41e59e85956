package usage

import "time"

const (
	window = 7 * 24 * time.Hour

	DefaultFreeLimit = 20
	DefaultPaidLimit = 1000
)

func newUsage(plan Plan, now time.Time) Usage {
	return Usage{
		Plan:     plan.Name,
		Limit:    plan.Limit,
		Used:     0,
		ResetsAt: now.Add(window),
	}
}

// roll resets an expired window and applies the current plan. It reports
// whether anything changed.
func roll(u *Usage, plan Plan, now time.Time) bool {
	changed := false
	if !now.Before(u.ResetsAt) {
		u.Used = 0
		u.ResetsAt = now.Add(window)
		changed = true
	}
	if u.Plan != plan.Name || u.Limit != plan.Limit {
		u.Plan = plan.Name
		u.Limit = plan.Limit
		changed = true
	}
	return changed
}

func exceeds(u Usage, n int) bool {
	return u.Limit >= 0 && u.Used+n > u.Limit
}
