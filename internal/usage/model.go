package usage

import (
	"errors"
	"time"
)

// ErrLimitReached is returned when an AI request would exceed the plan quota.
var ErrLimitReached = errors.New("usage limit reached")

// Usage represents a user's plan consumption snapshot.
type Usage struct {
	Plan     string    `json:"plan"`
	Limit    int       `json:"limit"`
	Used     int       `json:"used"`
	ResetsAt time.Time `json:"resetsAt"`
}

// Unlimited reports whether the plan has no cap.
func (u Usage) Unlimited() bool {
	return u.Limit < 0
}

// Plan is the quota a role grants per window.
type Plan struct {
	Name  string
	Limit int
}
