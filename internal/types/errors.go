package types

import (
	"errors"
	"fmt"
)

// DuplicateWorkError is returned by Enqueue when an equivalent pending or
// processing work item already exists for (item_type, item_id, action).
type DuplicateWorkError struct {
	ItemType string
	ItemID   string
	Action   Action
}

func (e *DuplicateWorkError) Error() string {
	return fmt.Sprintf("duplicate work: %s %s/%s already pending or processing", e.Action, e.ItemType, e.ItemID)
}

// InvalidTransitionError is returned when a work item state change is not
// allowed from its current status (e.g. completing an item twice).
type InvalidTransitionError struct {
	WorkItemID string
	From       WorkStatus
	To         WorkStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition for work item %s: %s -> %s", e.WorkItemID, e.From, e.To)
}

// AlreadyFinishedError is returned when FinishRun is called on a run that has
// already been finished.
type AlreadyFinishedError struct {
	RunID string
}

func (e *AlreadyFinishedError) Error() string {
	return fmt.Sprintf("bot run %s is already finished", e.RunID)
}

// TransientError wraps a network or timeout failure that is safe to retry
// with backoff up to the configured attempt budget.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient error in %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// ValidationError marks a malformed item or failed quality gate. It is never
// retried; the item is routed to flagged with an explanatory ledger entry.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

// ConflictError signals an ownership conflict: a settle attempt on a work
// item claimed by a different worker. Not a bug: the caller simply proceeds
// to the next item.
type ConflictError struct {
	WorkItemID string
	AssignedTo string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("work item %s is claimed by %s", e.WorkItemID, e.AssignedTo)
}

// ConsistencyError reports ledger/content-store divergence detected by a
// self-check. Fatal: it aborts the run and is never silently swallowed.
type ConsistencyError struct {
	ItemID  string
	EntryID int64
	Detail  string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("ledger consistency violation for item %s at entry %d: %s", e.ItemID, e.EntryID, e.Detail)
}

// IsTransient reports whether err is (or wraps) a TransientError
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsValidation reports whether err is (or wraps) a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConsistency reports whether err is (or wraps) a ConsistencyError
func IsConsistency(err error) bool {
	var ce *ConsistencyError
	return errors.As(err, &ce)
}

// IsConflict reports whether err is (or wraps) a ConflictError
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsDuplicateWork reports whether err is (or wraps) a DuplicateWorkError
func IsDuplicateWork(err error) bool {
	var de *DuplicateWorkError
	return errors.As(err, &de)
}
