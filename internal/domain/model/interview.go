package model

import "time"

// InterviewAttempt is written each time a credit is spent.
type InterviewAttempt struct {
	ID             string
	UserID         string
	PlanID         string
	StartedAt      time.Time
	RemainingAfter int
}
