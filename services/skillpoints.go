package services

import (
	"context"
	"errors"

	"classroom-economy/models"
	"classroom-economy/store"

	"github.com/google/uuid"
)

// SkillPointsForLevel is the bracket table for reaching level n.
func SkillPointsForLevel(n int) int64 {
	switch {
	case n <= 25:
		return 1
	case n <= 50:
		return 2
	case n <= 75:
		return 2
	case n <= 90:
		return 3
	default:
		return 5
	}
}

// SkillPointAllocator is the only writer of SkillPointBalance and UserSkill.
type SkillPointAllocator struct{}

// AwardLevels pays the bracket amount for every level above the highest one already
// awarded, up to level. Returns the points credited.
func (a *SkillPointAllocator) AwardLevels(tx store.Tx, userID string, level int) (int64, error) {
	b, err := tx.LockSkillPoints(userID)
	if err != nil {
		return 0, err
	}
	if b.HighestLevelAwarded < 1 {
		b.HighestLevelAwarded = 1
	}
	if level <= b.HighestLevelAwarded {
		return 0, nil
	}
	var awarded int64
	for n := b.HighestLevelAwarded + 1; n <= level; n++ {
		awarded += SkillPointsForLevel(n)
	}
	b.HighestLevelAwarded = level
	b.Available += awarded
	b.Total += awarded
	return awarded, tx.SaveSkillPoints(b)
}

// Credit adds a flat reward from a job, quest or event.
func (a *SkillPointAllocator) Credit(tx store.Tx, userID string, points int64) error {
	if points == 0 {
		return nil
	}
	if points < 0 {
		return failf("skill", "Credit", ErrInvalidInput, "cannot credit %d skill points", points)
	}
	b, err := tx.LockSkillPoints(userID)
	if err != nil {
		return err
	}
	b.Available += points
	b.Total += points
	return tx.SaveSkillPoints(b)
}

// Spend raises one skill by exactly one level. points must equal the skill's cost.
func (a *SkillPointAllocator) Spend(tx store.Tx, userID, skillID string, points int64) (*models.UserSkill, *models.SkillPointBalance, error) {
	skill, err := tx.GetSkill(skillID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, ErrSkillNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	if points != skill.CostPerLevel {
		return nil, nil, ErrPartialSpend
	}

	// The balance row is the user's spend lock; the skill row may not exist yet.
	b, err := tx.LockSkillPoints(userID)
	if err != nil {
		return nil, nil, err
	}
	us, err := tx.GetUserSkill(userID, skillID)
	if errors.Is(err, store.ErrNotFound) {
		us = &models.UserSkill{UserID: userID, SkillID: skillID}
	} else if err != nil {
		return nil, nil, err
	}
	if us.Level >= skill.MaxLevel {
		return nil, nil, ErrSkillAtMaxLevel
	}
	if b.Available < skill.CostPerLevel {
		return nil, nil, failf("skill", "Spend", ErrInsufficientSkillPoints,
			"need %d skill points, have %d", skill.CostPerLevel, b.Available)
	}
	b.Available -= skill.CostPerLevel
	b.Spent += skill.CostPerLevel
	if err := tx.SaveSkillPoints(b); err != nil {
		return nil, nil, err
	}
	us.Level++
	if err := tx.SaveUserSkill(us); err != nil {
		return nil, nil, err
	}
	return us, b, nil
}

// CreateSkill adds a catalog entry. Operators only.
func (c *Core) CreateSkill(ctx context.Context, actorID string, s *models.Skill) (*models.Skill, error) {
	if s.Name == "" {
		return nil, failf("skill", "Create", ErrInvalidInput, "name is required")
	}
	if s.MaxLevel <= 0 || s.CostPerLevel <= 0 {
		return nil, failf("skill", "Create", ErrInvalidInput, "max level and cost must be positive")
	}
	err := c.run(ctx, func(u *unit) error {
		actor, err := c.requireUser(u.tx, actorID)
		if err != nil {
			return err
		}
		if actor.Role != models.RoleOperator {
			return failf("skill", "Create", ErrPermissionDenied, "only operators can define skills")
		}
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		return u.tx.CreateSkill(s)
	})
	if errors.Is(err, store.ErrDuplicate) {
		return nil, failf("skill", "Create", ErrAlreadyExists, "skill %s already exists", s.ID)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
