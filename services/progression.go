package services

import (
	"context"
	"time"

	"classroom-economy/models"
	"classroom-economy/store"

	"github.com/shopspring/decimal"
)

type ProgressionService struct {
	core *Core
}

func NewProgressionService(core *Core) *ProgressionService {
	return &ProgressionService{core: core}
}

// GrantRequest is a direct XP grant from a teacher or operator.
type GrantRequest struct {
	StudentID  string            `json:"student_id"`
	TeacherID  string            `json:"-"`
	SubjectID  string            `json:"subject_id"`
	Amount     int64             `json:"amount"`
	Reason     string            `json:"reason"`
	SourceType models.SourceType `json:"source_type"`
}

type GrantResult struct {
	TotalXP     int64           `json:"total_xp"`
	BonusXP     int64           `json:"bonus_xp"`
	Multiplier  decimal.Decimal `json:"multiplier"`
	Streak      int             `json:"streak"`
	GuildBonus  int             `json:"guild_bonus_pct"`
	Level       int             `json:"level"`
	LeveledUp   bool            `json:"leveled_up"`
	SkillPoints int64           `json:"skill_points_awarded"`
	UserXP      int64           `json:"user_total_xp"`
}

// GrantXP applies the streak multiplier and the guild xp bonus to amount and charges the
// requested amount against the teacher's budget, all in one unit of work.
func (s *ProgressionService) GrantXP(ctx context.Context, req GrantRequest) (*GrantResult, error) {
	if req.Amount <= 0 {
		return nil, failf("xp", "Grant", ErrInvalidInput, "amount must be positive, got %d", req.Amount)
	}
	switch req.SourceType {
	case "":
		req.SourceType = models.SourceManual
	case models.SourceManual, models.SourceActivity:
	default:
		return nil, failf("xp", "Grant", ErrInvalidInput, "source type %q cannot be granted directly", req.SourceType)
	}
	if req.StudentID == req.TeacherID {
		return nil, failf("xp", "Grant", ErrPermissionDenied, "cannot grant xp to yourself")
	}

	var out *GrantResult
	err := s.core.run(ctx, func(u *unit) error {
		issuer, err := s.core.requireUser(u.tx, req.TeacherID)
		if err != nil {
			return err
		}
		if !issuer.Role.CanIssue() {
			return failf("xp", "Grant", ErrPermissionDenied, "role %q cannot grant xp", issuer.Role)
		}
		if _, err := s.core.requireUser(u.tx, req.StudentID); err != nil {
			return err
		}
		if _, err := s.core.Budget.TryConsume(u.tx, issuer, req.SubjectID, u.day, req.Amount); err != nil {
			return err
		}

		streak, err := s.core.recordActivity(u, req.StudentID)
		if err != nil {
			return err
		}
		mult := streak.Record.CurrentMultiplier
		streaked := decimal.NewFromInt(req.Amount).Mul(mult).Floor().IntPart()
		total, pct, err := s.core.GuildBonus.Apply(u.tx, req.StudentID, streaked, models.BenefitXPBonus)
		if err != nil {
			return err
		}

		credit, err := s.core.creditXP(u, req.StudentID, req.Amount, total-req.Amount, mult, source{
			Type:     req.SourceType,
			IssuedBy: issuer.ID,
			Reason:   req.Reason,
		})
		if err != nil {
			return err
		}
		out = &GrantResult{
			TotalXP:     credit.Total,
			BonusXP:     credit.Bonus,
			Multiplier:  mult,
			Streak:      streak.Record.CurrentStreak,
			GuildBonus:  pct,
			Level:       credit.LevelAfter,
			LeveledUp:   credit.LevelAfter > credit.LevelBefore,
			SkillPoints: credit.SkillPoints,
			UserXP:      credit.TotalXP,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Snapshot is the derived progression view of one user.
type Snapshot struct {
	UserID      string                   `json:"user_id"`
	Level       int                      `json:"level"`
	TotalXP     int64                    `json:"total_xp"`
	XPToNext    int64                    `json:"xp_to_next"`
	Money       int64                    `json:"money"`
	SkillPoints models.SkillPointBalance `json:"skill_points"`
	Reputation  models.ReputationRecord  `json:"reputation"`
	Streak      models.StreakRecord      `json:"streak"`
	GuildID     string                   `json:"guild_id,omitempty"`
	ComputedAt  time.Time                `json:"computed_at"`
}

// Snapshot reads through the cache. Every committed write to the user invalidates it,
// and a snapshot read while such a write committed is returned but not cached.
func (s *ProgressionService) Snapshot(ctx context.Context, userID string) (*Snapshot, error) {
	if snap, ok := s.core.cache.GetSnapshot(ctx, userID); ok {
		return snap, nil
	}
	version := s.core.versions.get(userID)
	var out *Snapshot
	err := s.core.read(ctx, func(tx store.Tx) error {
		if _, err := s.core.requireUser(tx, userID); err != nil {
			return err
		}
		xp, err := s.core.Ledger.TotalXP(tx, userID)
		if err != nil {
			return err
		}
		money, err := s.core.Ledger.MoneyBalance(tx, userID)
		if err != nil {
			return err
		}
		sp, err := tx.LockSkillPoints(userID)
		if err != nil {
			return err
		}
		rep, err := tx.LockReputation(userID)
		if err != nil {
			return err
		}
		streak, err := tx.LockStreak(userID)
		if err != nil {
			return err
		}
		snap := &Snapshot{
			UserID:      userID,
			Level:       LevelFromXP(xp),
			TotalXP:     xp,
			XPToNext:    XPToNextLevel(xp),
			Money:       money,
			SkillPoints: *sp,
			Reputation:  *rep,
			Streak:      *streak,
			ComputedAt:  s.core.Now(),
		}
		if m, err := tx.GetMembership(userID); err == nil {
			snap.GuildID = m.GuildID
		} else if !isNotFound(err) {
			return err
		}
		out = snap
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.core.versions.get(userID) == version {
		s.core.cache.SetSnapshot(ctx, out)
	}
	return out, nil
}

func (s *ProgressionService) History(ctx context.Context, userID string, limit int) ([]models.RewardGrant, error) {
	var out []models.RewardGrant
	err := s.core.read(ctx, func(tx store.Tx) error {
		if _, err := s.core.requireUser(tx, userID); err != nil {
			return err
		}
		var err error
		out, err = s.core.Ledger.History(tx, userID, limit)
		return err
	})
	return out, err
}

type SpendResult struct {
	Skill   *models.UserSkill         `json:"skill"`
	Balance *models.SkillPointBalance `json:"balance"`
}

// SpendSkillPoint raises one skill by one level.
func (s *ProgressionService) SpendSkillPoint(ctx context.Context, userID, skillID string, points int64) (*SpendResult, error) {
	var out *SpendResult
	err := s.core.run(ctx, func(u *unit) error {
		if _, err := s.core.requireUser(u.tx, userID); err != nil {
			return err
		}
		us, bal, err := s.core.Skills.Spend(u.tx, userID, skillID, points)
		if err != nil {
			return err
		}
		u.touch(userID)
		out = &SpendResult{Skill: us, Balance: bal}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SweepStreaks is the nightly batch that breaks stale streaks.
func (s *ProgressionService) SweepStreaks(ctx context.Context) (int, error) {
	var n int
	err := s.core.run(ctx, func(u *unit) error {
		users, err := s.core.Streaks.Sweep(u.tx, u.day)
		if err != nil {
			return err
		}
		u.touch(users...)
		n = len(users)
		return nil
	})
	return n, err
}
