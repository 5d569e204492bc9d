// Package notify is the delivery gateway between the reminder engine and a
// notification platform. The Gateway owns every platform call: it rejects
// past fire times, normalizes job ids, applies the configured time zone,
// bounds each call with a timeout, classifies platform failures into the
// sentinel errors of this package and recovers from corrupted platform state.
package notify

import (
	"context"
	"time"
)

// Channel is the delivery channel (category) jobs are posted to.
type Channel struct {
	ID   string
	Name string
}

// Job is a concrete scheduled delivery as the platform sees it.
type Job struct {
	ID        int64
	FireAt    time.Time
	Title     string
	Body      string
	Payload   string
	ChannelID string
	Sound     string
}

// PendingJob is what the platform reports for a job that has not fired yet.
type PendingJob struct {
	ID     int64
	Title  string
	FireAt time.Time
}

// Platform is the notification platform binding.
type Platform interface {
	Initialize(ctx context.Context, ch Channel) error
	ScheduleAt(ctx context.Context, job Job) error
	Cancel(ctx context.Context, id int64) error
	CancelAll(ctx context.Context) error
	Pending(ctx context.Context) ([]PendingJob, error)

	NotificationsAllowed(ctx context.Context) (bool, error)
	RequestNotifications(ctx context.Context) (bool, error)
	ExactTimingAllowed(ctx context.Context) (bool, error)
	RequestExactTiming(ctx context.Context) (bool, error)
}

// StateStore is the key/value area the platform persists its schedule in.
// The gateway only needs to enumerate and delete keys to purge corrupted
// state.
type StateStore interface {
	Keys(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, key string) error
}

// StateKeeper is implemented by platforms that keep records other than the
// schedule in the StateStore. Recovery never purges a key the platform keeps.
type StateKeeper interface {
	KeepsState(key string) bool
}

// Permissions is the platform permission state the shell uses to hide or
// disable reminder features.
type Permissions struct {
	Notifications bool
	ExactTiming   bool
}

// Notification is one schedule request.
type Notification struct {
	ID      int64
	Title   string
	Body    string
	FireAt  time.Time
	Payload string
	Sound   string

	// Zone overrides the gateway zone for this job.
	Zone *time.Location
}
