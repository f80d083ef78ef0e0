// README: Timeline policy; computes which lifecycle timestamps a transition may set.
package order

import "time"

// Timeline is a snapshot of the nullable lifecycle milestone timestamps on an
// order. Fields are write-once from the engine's perspective: once set they
// are never cleared or moved.
type Timeline struct {
	CreatedAt   time.Time
	AssignedAt  *time.Time
	StartedAt   *time.Time
	PickedUpAt  *time.Time
	ArrivedAt   *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time
}

// Timeline field names as used in the persisted document.
const (
	FieldAssignedAt         = "assignedAt"
	FieldStartedAt          = "startedAt"
	FieldPickedUpAt         = "pickedUpAt"
	FieldArrivedAt          = "arrivedAt"
	FieldCompletedAt        = "completedAt"
	FieldCancelledAt        = "cancelledAt"
	FieldLastStatusChangeAt = "lastStatusChangeAt"
)

// timelineFieldsByStatus maps each canonical state to the milestone fields it
// is allowed to set on entry. Fields already set on the snapshot are never
// touched again.
var timelineFieldsByStatus = map[Status][]string{
	StatusActive:         nil,
	StatusNotAssigned:    nil,
	StatusNotAccepted:    {FieldAssignedAt},
	StatusNotStartedYet:  {FieldAssignedAt},
	StatusStarted:        {FieldAssignedAt, FieldStartedAt},
	StatusPickedUp:       {FieldPickedUpAt},
	StatusReadyToDeliver: {FieldPickedUpAt, FieldArrivedAt},
	StatusDelivered:      {FieldArrivedAt, FieldCompletedAt},
	StatusFailedDelivery: {FieldCancelledAt},
	StatusIncomplete:     {FieldCancelledAt},
	StatusCancelled:      {FieldCancelledAt},
}

// TimelineUpdates computes the timestamp writes for a transition into
// newStatus given the existing snapshot. The result contains only fields that
// are currently unset; lastStatusChangeAt is always included. completedAt and
// cancelledAt are additionally force-set when the corresponding terminal state
// is reached, independent of the table — stats depend on them and they must
// never be missing on a terminal order.
func TimelineUpdates(newStatus Status, existing Timeline, now time.Time) map[string]time.Time {
	updates := map[string]time.Time{
		FieldLastStatusChangeAt: now,
	}

	for _, field := range timelineFieldsByStatus[newStatus] {
		if existing.fieldSet(field) {
			continue
		}
		updates[field] = now
	}

	if IsTerminalSuccess(newStatus) && existing.CompletedAt == nil {
		updates[FieldCompletedAt] = now
	}
	if IsTerminalFailure(newStatus) && existing.CancelledAt == nil {
		updates[FieldCancelledAt] = now
	}

	return updates
}

func (t Timeline) fieldSet(field string) bool {
	switch field {
	case FieldAssignedAt:
		return t.AssignedAt != nil
	case FieldStartedAt:
		return t.StartedAt != nil
	case FieldPickedUpAt:
		return t.PickedUpAt != nil
	case FieldArrivedAt:
		return t.ArrivedAt != nil
	case FieldCompletedAt:
		return t.CompletedAt != nil
	case FieldCancelledAt:
		return t.CancelledAt != nil
	}
	return false
}

// apply merges computed updates back into the snapshot.
func (t Timeline) apply(updates map[string]time.Time) Timeline {
	set := func(dst **time.Time, field string) {
		if ts, ok := updates[field]; ok {
			v := ts
			*dst = &v
		}
	}
	set(&t.AssignedAt, FieldAssignedAt)
	set(&t.StartedAt, FieldStartedAt)
	set(&t.PickedUpAt, FieldPickedUpAt)
	set(&t.ArrivedAt, FieldArrivedAt)
	set(&t.CompletedAt, FieldCompletedAt)
	set(&t.CancelledAt, FieldCancelledAt)
	return t
}
