// Package jobid maps (reminder id, occurrence index) pairs to the positive
// job identifiers the notification platform accepts, and back.
//
// The mapping is jobID = reminderID + index*Stride. Ids stay pairwise distinct
// across reminders as long as every reminder id is below Stride
// (MaxReminderID); the store allocates ids from a monotonically increasing
// sequence, so that covers 99 999 reminders over the lifetime of a database.
// Larger ids are still accepted but may collide with a smaller reminder's
// later occurrences.
package jobid

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidIdentifier = errors.New("invalid identifier")

const (
	// Stride separates the id ranges of consecutive occurrence indices.
	Stride int64 = 100000

	// MaxReminderID is the largest reminder id with collision-free job ids.
	MaxReminderID = Stride - 1

	// MaxJobID is the largest id the platform accepts (signed 32-bit).
	MaxJobID int64 = math.MaxInt32

	// MaxHorizon bounds the occurrences one reminder may have scheduled. A
	// cancel sweep that cannot see the platform's pending jobs covers this
	// many indices, whatever horizon scheduled them.
	MaxHorizon = 1000
)

// Allocate returns the job id for occurrence index of reminderID.
func Allocate(reminderID int64, index int) (int64, error) {
	if reminderID <= 0 {
		return 0, fmt.Errorf("%w: reminder id %d is not positive; persist the reminder first", ErrInvalidIdentifier, reminderID)
	}
	if index < 0 {
		return 0, fmt.Errorf("%w: negative occurrence index %d", ErrInvalidIdentifier, index)
	}
	if int64(index) > (MaxJobID-reminderID)/Stride {
		return 0, fmt.Errorf("%w: job id for reminder %d occurrence %d overflows", ErrInvalidIdentifier, reminderID, index)
	}
	return reminderID + int64(index)*Stride, nil
}

// Split is the reverse mapping. It is exact for reminder ids up to
// MaxReminderID and only informative (for logging) beyond that.
func Split(jobID int64) (reminderID int64, index int) {
	if jobID <= 0 {
		return 0, 0
	}
	reminderID = jobID % Stride
	index = int(jobID / Stride)
	if reminderID == 0 {
		// reminder ids that are multiples of Stride fold into the previous index
		reminderID = Stride
		index--
	}
	return reminderID, index
}

// Derive lists every job id that occurrences 0..horizon-1 of reminderID can
// have been scheduled under. Indices that would overflow are omitted.
func Derive(reminderID int64, horizon int) ([]int64, error) {
	if reminderID <= 0 {
		return nil, fmt.Errorf("%w: reminder id %d is not positive", ErrInvalidIdentifier, reminderID)
	}
	ids := make([]int64, 0, horizon)
	for i := 0; i < horizon; i++ {
		id, err := Allocate(reminderID, i)
		if err != nil {
			break
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Owns reports whether jobID is one of the ids Allocate can produce for
// reminderID.
func Owns(reminderID, jobID int64) bool {
	if reminderID <= 0 || jobID < reminderID {
		return false
	}
	return (jobID-reminderID)%Stride == 0
}

// CollisionFree reports whether reminderID is within the range the mapping
// guarantees unique job ids for.
func CollisionFree(reminderID int64) bool {
	return reminderID > 0 && reminderID <= MaxReminderID
}
