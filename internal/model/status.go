package model

import "fmt"

const (
	StatusPending  = "pending"
	StatusCached   = "cached"
	StatusFetching = "fetching"
	StatusFetched  = "fetched"
	StatusFailed   = "failed"
)

var allowedTransitions = map[string]map[string]bool{
	"": {
		StatusPending: true,
	},
	StatusPending: {
		StatusPending:  true,
		StatusCached:   true,
		StatusFetching: true,
	},
	StatusCached: {
		StatusCached:  true,
		StatusPending: true, // overwrite mode re-queues cached units
	},
	StatusFetching: {
		StatusFetching: true,
		StatusFetched:  true,
		StatusFailed:   true,
	},
	StatusFetched: {
		StatusFetched: true,
	},
	StatusFailed: {
		StatusFailed:  true,
		StatusPending: true, // a later run retries terminal failures
	},
}

func IsKnownStatus(status string) bool {
	_, ok := allowedTransitions[status]
	return ok
}

func CanTransition(from, to string) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// UnitRecord is the engine's in-memory state for one unit of the current run.
type UnitRecord struct {
	Unit   WorkUnit
	Status string
	Reason string
}

func TransitionUnitStatus(rec *UnitRecord, toStatus string, reason string) error {
	from := rec.Status
	if !CanTransition(from, toStatus) {
		return fmt.Errorf("invalid unit status transition: %q -> %q (unit=%s)", from, toStatus, rec.Unit.UnitID())
	}
	rec.Status = toStatus
	rec.Reason = reason
	return nil
}
