package model

import "time"

// Notification is an in-app message for a user.
type Notification struct {
	ID        string
	UserID    string
	Title     string
	Message   string
	Meta      map[string]any
	CreatedAt time.Time
}
