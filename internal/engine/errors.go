package engine

import "fmt"

// InvalidTransitionError reports a lifecycle step attempted from a status
// that does not permit it. The current status travels with the error so the
// caller can say what state the order is actually in.
type InvalidTransitionError struct {
	ServiceOrderID string
	Current        string
	Target         string
}

func (e InvalidTransitionError) Error() string {
	if e.Current == e.Target {
		return fmt.Sprintf("work order %s cannot be modified in status %s", e.ServiceOrderID, e.Current)
	}
	return fmt.Sprintf("work order %s cannot move from %s to %s", e.ServiceOrderID, e.Current, e.Target)
}

// AlreadyBookedError reports a booking attempt against a vehicle whose
// booking flag is already set by another open order.
type AlreadyBookedError struct {
	VehicleID int64
}

func (e AlreadyBookedError) Error() string {
	return fmt.Sprintf("vehicle %d is already booked for service", e.VehicleID)
}

// ConflictError reports that the optimistic-concurrency retry budget ran out
// without a clean commit.
type ConflictError struct {
	ServiceOrderID string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("work order %s: concurrent updates exceeded retry budget", e.ServiceOrderID)
}
