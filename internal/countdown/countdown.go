// Package countdown splits the time left until a target into display units.
package countdown

import "time"

// Remaining is the time left until the target, floored to whole seconds.
type Remaining struct {
	Target  time.Time `json:"target"`
	Days    int64     `json:"days"`
	Hours   int64     `json:"hours"`
	Minutes int64     `json:"minutes"`
	Seconds int64     `json:"seconds"`
	Done    bool      `json:"done"`
}

// Until returns the time left from now to target. Past targets yield all zeros and Done.
func Until(now, target time.Time) Remaining {
	r := Remaining{Target: target}
	left := int64(target.Sub(now) / time.Second)
	if left <= 0 {
		r.Done = true
		return r
	}

	r.Days = left / 86400
	r.Hours = left % 86400 / 3600
	r.Minutes = left % 3600 / 60
	r.Seconds = left % 60
	return r
}
