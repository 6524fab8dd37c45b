package model

import (
	"strings"
	"time"

	"prepvio-subscription/internal/domain"
)

// User owns exactly one subscription. New users start with an inert one.
type User struct {
	ID           string
	Email        string
	Name         string
	Subscription Subscription
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func NewUser(id, email, name string) (*User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now().UTC()
	return &User{
		ID:        id,
		Email:     strings.TrimSpace(email),
		Name:      strings.TrimSpace(name),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }
