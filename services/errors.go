package services

import (
	"errors"
	"fmt"
)

// Failure kinds. Every expected failure of the economy matches exactly one of these
// through errors.Is.
var (
	ErrPermissionDenied        = errors.New("permission denied")
	ErrNotFound                = errors.New("not found")
	ErrInvalidState            = errors.New("invalid state")
	ErrBudgetExceeded          = errors.New("budget exceeded")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrInsufficientSkillPoints = errors.New("insufficient skill points")
	ErrCapacityExceeded        = errors.New("capacity exceeded")
	ErrAlreadyExists           = errors.New("already exists")
	ErrInvalidInput            = errors.New("invalid input")
)

// EconomyError is a typed failure with the operation that produced it.
type EconomyError struct {
	Domain  string // e.g. "job", "guild", "budget"
	Op      string
	Kind    error
	Message string
	Err     error
}

func (e *EconomyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

func (e *EconomyError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

func (e *EconomyError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

func newError(domain, op string, kind error, message string) *EconomyError {
	return &EconomyError{Domain: domain, Op: op, Kind: kind, Message: message}
}

func failf(domain, op string, kind error, format string, args ...any) *EconomyError {
	return newError(domain, op, kind, fmt.Sprintf(format, args...))
}

// BudgetExceededError is returned when a teacher's daily ceiling would be crossed.
type BudgetExceededError struct {
	TeacherID string
	SubjectID string
	Available int64
	Requested int64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("budget exceeded: available %d, requested %d", e.Available, e.Requested)
}

func (e *BudgetExceededError) Is(target error) bool {
	return target == ErrBudgetExceeded
}

var (
	ErrUserNotFound = newError("user", "Find", ErrNotFound, "user not found")

	ErrJobNotFound      = newError("job", "Find", ErrNotFound, "job not found")
	ErrNotJobOwner      = newError("job", "Authorize", ErrPermissionDenied, "only the issuing teacher may manage this job")
	ErrInvalidJobStatus = newError("job", "Close", ErrInvalidState, "job is not open or in progress")
	ErrAssignmentFull   = newError("job", "Assign", ErrCapacityExceeded, "job has no free recipient slots")
	ErrAlreadyApplied   = newError("job", "Apply", ErrAlreadyExists, "already applied to this job")
	ErrNoRecipients     = newError("job", "Close", ErrInvalidState, "job has no approved recipients")

	ErrSkillNotFound   = newError("skill", "Find", ErrNotFound, "skill not found")
	ErrSkillAtMaxLevel = newError("skill", "Spend", ErrInvalidState, "skill is already at its maximum level")
	ErrPartialSpend    = newError("skill", "Spend", ErrInvalidInput, "points must equal the cost of exactly one level")

	ErrQuestNotFound         = newError("quest", "Find", ErrNotFound, "quest not found")
	ErrQuestClosed           = newError("quest", "Accept", ErrInvalidState, "quest is not available")
	ErrQuestAlreadyAccepted  = newError("quest", "Accept", ErrAlreadyExists, "quest already accepted")
	ErrQuestNotAccepted      = newError("quest", "Complete", ErrInvalidState, "quest was not accepted")
	ErrQuestAlreadyCompleted = newError("quest", "Complete", ErrInvalidState, "quest already completed")

	ErrEventNotFound      = newError("event", "Find", ErrNotFound, "event not found")
	ErrEventClosed        = newError("event", "Join", ErrInvalidState, "event is not accepting participants")
	ErrEventAlreadyJoined = newError("event", "Join", ErrAlreadyExists, "already joined this event")
	ErrEventFull          = newError("event", "Join", ErrCapacityExceeded, "event is full")

	ErrGuildNotFound      = newError("guild", "Find", ErrNotFound, "guild not found")
	ErrDuplicateGuildName = newError("guild", "Create", ErrAlreadyExists, "a guild with this name already exists")
	ErrAlreadyInGuild     = newError("guild", "Join", ErrAlreadyExists, "user already belongs to a guild")
	ErrNotInGuild         = newError("guild", "Leave", ErrNotFound, "user is not in a guild")
	ErrGuildFull          = newError("guild", "Join", ErrCapacityExceeded, "guild is full")
	ErrLeaderCannotLeave  = newError("guild", "Leave", ErrInvalidState, "the guild leader cannot leave")
)

// IsExpected reports whether err is one of the recoverable economy failures rather
// than an infrastructure fault.
func IsExpected(err error) bool {
	for _, kind := range []error{
		ErrPermissionDenied, ErrNotFound, ErrInvalidState, ErrBudgetExceeded,
		ErrInsufficientFunds, ErrInsufficientSkillPoints, ErrCapacityExceeded,
		ErrAlreadyExists, ErrInvalidInput,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
