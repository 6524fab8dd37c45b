package model

import (
	"time"
)

// Subscription is the entitlement embedded in a User.
// InterviewsTotal == InterviewsUsed + InterviewsRemaining after every mutation.
type Subscription struct {
	Active              bool
	PlanID              string
	PlanName            string
	StartDate           time.Time
	EndDate             time.Time
	InterviewsTotal     int
	InterviewsUsed      int
	InterviewsRemaining int
}

// Expired reports whether now is past the exclusive end date.
func (s *Subscription) Expired(now time.Time) bool {
	return !s.EndDate.IsZero() && now.After(s.EndDate)
}

// Balanced checks the credit conservation invariant.
func (s *Subscription) Balanced() bool {
	return s.InterviewsTotal == s.InterviewsUsed+s.InterviewsRemaining &&
		s.InterviewsUsed >= 0 && s.InterviewsRemaining >= 0
}

// IsPlanChange reports whether buying plan would switch an active subscription
// to another plan. Plan changes reset the credit pool.
func (s *Subscription) IsPlanChange(planID string) bool {
	return s.Active && s.PlanID != planID
}

// Grant applies a redeemed purchase of plan worth credits interviews.
func (s *Subscription) Grant(plan *Plan, credits int, now time.Time) {
	if s.IsPlanChange(plan.ID) {
		s.InterviewsTotal = credits
		s.InterviewsUsed = 0
		s.InterviewsRemaining = credits
	} else {
		s.InterviewsTotal += credits
		s.InterviewsRemaining += credits
	}
	s.Active = true
	s.PlanID = plan.ID
	s.PlanName = plan.Name
	s.StartDate = now
	s.EndDate = plan.EndDate(now)
}

// Consume spends one interview credit. Callers check eligibility first.
func (s *Subscription) Consume() bool {
	if !s.Active || s.InterviewsRemaining <= 0 {
		return false
	}
	s.InterviewsUsed++
	s.InterviewsRemaining--
	return true
}

// Deactivate flips the subscription off. It never re-activates on its own.
func (s *Subscription) Deactivate() { s.Active = false }
