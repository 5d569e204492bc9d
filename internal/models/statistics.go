package models

// Statistic keys reported by the store.
const (
	StatEntries            = "entries"
	StatReminders          = "reminders"
	StatActiveReminders    = "active_reminders"
	StatRecurringReminders = "recurring_reminders"
)
