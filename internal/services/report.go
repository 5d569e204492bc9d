package services

import (
	"errors"
	"fmt"
)

// SyncReport summarises one synchronization pass.
//
// Attempted counts schedule calls issued to the gateway. SkippedPast counts
// anchors of non-recurring reminders at or before now plus schedule calls the
// gateway rejected with notify.ErrPastTime; past occurrences of recurring
// reminders are never produced by the expander and are not counted. Failed
// counts occurrences that could not be scheduled; Errors holds their causes.
// Cancelled counts successful job cancellations.
//
// Scheduled counts successful calls at the time they were made. When a
// schedule call hits corrupted platform state the gateway's recovery cancels
// every job on the platform, including jobs counted earlier in the same pass;
// ResyncNeeded is then set and the platform holds fewer jobs than Scheduled
// says until a ResyncAll runs.
type SyncReport struct {
	Attempted    int
	Scheduled    int
	SkippedPast  int
	Failed       int
	Cancelled    int
	ResyncNeeded bool
	Errors       []error
}

func (r *SyncReport) fail(err error) {
	r.Failed++
	r.Errors = append(r.Errors, err)
}

// Merge adds other's counters and errors to r.
func (r *SyncReport) Merge(other SyncReport) {
	r.Attempted += other.Attempted
	r.Scheduled += other.Scheduled
	r.SkippedPast += other.SkippedPast
	r.Failed += other.Failed
	r.Cancelled += other.Cancelled
	r.ResyncNeeded = r.ResyncNeeded || other.ResyncNeeded
	r.Errors = append(r.Errors, other.Errors...)
}

// Err joins the collected errors, or returns nil.
func (r SyncReport) Err() error {
	return errors.Join(r.Errors...)
}

func (r SyncReport) String() string {
	return fmt.Sprintf("attempted=%d scheduled=%d skipped_past=%d failed=%d cancelled=%d resync_needed=%t",
		r.Attempted, r.Scheduled, r.SkippedPast, r.Failed, r.Cancelled, r.ResyncNeeded)
}

// AuditReport compares the jobs the store implies with the jobs the platform
// reports as pending.
type AuditReport struct {
	Expected int
	Pending  int

	// Missing are expected job ids the platform does not have.
	Missing []int64

	// Stale are pending job ids no active reminder accounts for.
	Stale []int64

	// Incomplete is set when the platform could not be enumerated; Missing
	// then lists every expected id.
	Incomplete bool
}

// Consistent reports whether platform and store agree.
func (a AuditReport) Consistent() bool {
	return !a.Incomplete && len(a.Missing) == 0 && len(a.Stale) == 0
}
