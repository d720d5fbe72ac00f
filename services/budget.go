package services

import (
	"context"
	"time"

	"classroom-economy/models"
	"classroom-economy/store"
)

// GeneralSubject is used for budget metering when a reward names no subject.
const GeneralSubject = "general"

// BudgetGuard meters teacher XP issuance per subject per calendar day.
type BudgetGuard struct {
	DefaultCeiling int64
}

// BudgetResult is the outcome of a successful TryConsume.
type BudgetResult struct {
	Granted   bool  `json:"granted"`
	Exempt    bool  `json:"exempt"`
	Remaining int64 `json:"remaining"`
}

// TryConsume checks and increments the issuer's budget inside tx. The row stays locked
// until tx ends, so concurrent grants against the same budget serialize here. On
// rejection nothing is written and the caller must abort its unit of work.
func (g *BudgetGuard) TryConsume(tx store.Tx, issuer *models.User, subjectID string, day time.Time, amount int64) (*BudgetResult, error) {
	if amount <= 0 {
		return nil, failf("budget", "Consume", ErrInvalidInput, "amount must be positive, got %d", amount)
	}
	switch issuer.Role {
	case models.RoleOperator:
		return &BudgetResult{Granted: true, Exempt: true, Remaining: -1}, nil
	case models.RoleTeacher:
	default:
		return nil, failf("budget", "Consume", ErrPermissionDenied, "role %q cannot issue rewards", issuer.Role)
	}
	if subjectID == "" {
		subjectID = GeneralSubject
	}

	b, err := tx.LockBudget(issuer.ID, subjectID, day, g.DefaultCeiling)
	if err != nil {
		return nil, err
	}
	if b.UsedAmount+amount > b.BudgetCeiling {
		logf("Budget", "❌ rejected teacher=%s subject=%s day=%s available=%d requested=%d",
			issuer.ID, subjectID, day.Format(time.DateOnly), b.Remaining(), amount)
		return nil, &BudgetExceededError{
			TeacherID: issuer.ID,
			SubjectID: subjectID,
			Available: b.Remaining(),
			Requested: amount,
		}
	}
	b.UsedAmount += amount
	if err := tx.SaveBudget(b); err != nil {
		return nil, err
	}
	return &BudgetResult{Granted: true, Remaining: b.Remaining()}, nil
}

// SetCeiling changes one day's ceiling. Only operators may do this, and never below
// what has already been issued.
func (g *BudgetGuard) SetCeiling(tx store.Tx, actor *models.User, teacherID, subjectID string, day time.Time, ceiling int64) (*models.BudgetRecord, error) {
	if actor.Role != models.RoleOperator {
		return nil, failf("budget", "SetCeiling", ErrPermissionDenied, "only operators can change budgets")
	}
	if ceiling < 0 {
		return nil, failf("budget", "SetCeiling", ErrInvalidInput, "ceiling must not be negative")
	}
	if subjectID == "" {
		subjectID = GeneralSubject
	}
	b, err := tx.LockBudget(teacherID, subjectID, day, g.DefaultCeiling)
	if err != nil {
		return nil, err
	}
	if ceiling < b.UsedAmount {
		return nil, failf("budget", "SetCeiling", ErrInvalidState, "ceiling %d is below the %d already issued", ceiling, b.UsedAmount)
	}
	b.BudgetCeiling = ceiling
	if err := tx.SaveBudget(b); err != nil {
		return nil, err
	}
	return b, nil
}

// SetDailyBudget is the operator entry point for SetCeiling.
func (c *Core) SetDailyBudget(ctx context.Context, actorID, teacherID, subjectID string, day time.Time, ceiling int64) (*models.BudgetRecord, error) {
	if day.IsZero() {
		day = c.Today()
	} else {
		day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	}
	var out *models.BudgetRecord
	err := c.run(ctx, func(u *unit) error {
		actor, err := c.requireUser(u.tx, actorID)
		if err != nil {
			return err
		}
		if _, err := c.requireUser(u.tx, teacherID); err != nil {
			return err
		}
		out, err = c.Budget.SetCeiling(u.tx, actor, teacherID, subjectID, day, ceiling)
		return err
	})
	return out, err
}

// PruneBudgets deletes budget rows older than keepDays.
func (c *Core) PruneBudgets(ctx context.Context, keepDays int) (int64, error) {
	cutoff := c.Today().AddDate(0, 0, -keepDays)
	var n int64
	err := c.run(ctx, func(u *unit) error {
		var err error
		n, err = u.tx.DeleteBudgetsBefore(cutoff)
		return err
	})
	return n, err
}
