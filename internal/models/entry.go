// Package models defines the diary entries and reminders the engine schedules.
package models

import "time"

// Entry is a diary entry. It owns zero or more reminders.
type Entry struct {
	// ID is a globally unique identifier (UUID), assigned on first save.
	ID string

	Title   string
	Content string

	// EventDate is the optional date the entry is about.
	EventDate *time.Time

	// CreatedAt and UpdatedAt are stored in UTC.
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NotificationBody returns the text delivered with the entry's reminders.
func (e Entry) NotificationBody() string {
	if e.Content != "" {
		return e.Content
	}
	return e.Title
}
