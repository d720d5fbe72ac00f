package services

import (
	"context"
	"time"

	"classroom-economy/models"
	"classroom-economy/store"

	"github.com/google/uuid"
)

type QuestService struct {
	core *Core
}

func NewQuestService(core *Core) *QuestService {
	return &QuestService{core: core}
}

type NewQuest struct {
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	SubjectID      string     `json:"subject_id"`
	Reward         Reward     `json:"reward"`
	AvailableFrom  *time.Time `json:"available_from,omitempty"`
	AvailableUntil *time.Time `json:"available_until,omitempty"`
}

// QuestResult is the reward a completed quest paid.
type QuestResult struct {
	Progress *models.QuestProgress `json:"progress"`
	Payout   Payout                `json:"payout"`
}

type questCompletedPayload struct {
	QuestID string `json:"quest_id"`
	XP      int64  `json:"xp"`
	Money   int64  `json:"money"`
}

func (s *QuestService) CreateQuest(ctx context.Context, issuerID string, in NewQuest) (*models.Quest, error) {
	if in.Title == "" {
		return nil, failf("quest", "Create", ErrInvalidInput, "title is required")
	}
	if err := in.Reward.validate("quest"); err != nil {
		return nil, err
	}
	if in.AvailableFrom != nil && in.AvailableUntil != nil && in.AvailableUntil.Before(*in.AvailableFrom) {
		return nil, failf("quest", "Create", ErrInvalidInput, "availability window ends before it starts")
	}
	q := &models.Quest{
		ID:                uuid.NewString(),
		Title:             in.Title,
		Description:       in.Description,
		IssuerID:          issuerID,
		SubjectID:         in.SubjectID,
		XPReward:          in.Reward.XP,
		MoneyReward:       in.Reward.Money,
		SkillPointsReward: in.Reward.SkillPoints,
		ReputationReward:  in.Reward.Reputation,
		Active:            true,
		AvailableFrom:     in.AvailableFrom,
		AvailableUntil:    in.AvailableUntil,
	}
	err := s.core.run(ctx, func(u *unit) error {
		issuer, err := s.core.requireUser(u.tx, issuerID)
		if err != nil {
			return err
		}
		if !issuer.Role.CanIssue() {
			return failf("quest", "Create", ErrPermissionDenied, "role %q cannot post quests", issuer.Role)
		}
		return u.tx.CreateQuest(q)
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (s *QuestService) getQuest(tx store.Tx, id string) (*models.Quest, error) {
	q, err := tx.GetQuest(id)
	if isNotFound(err) {
		return nil, ErrQuestNotFound
	}
	return q, err
}

func (s *QuestService) AcceptQuest(ctx context.Context, questID, userID string) (*models.QuestProgress, error) {
	var out *models.QuestProgress
	err := s.core.run(ctx, func(u *unit) error {
		if _, err := s.core.requireUser(u.tx, userID); err != nil {
			return err
		}
		q, err := s.getQuest(u.tx, questID)
		if err != nil {
			return err
		}
		if !q.OpenAt(u.now) {
			return ErrQuestClosed
		}
		if _, err := u.tx.GetQuestProgress(questID, userID); err == nil {
			return ErrQuestAlreadyAccepted
		} else if !isNotFound(err) {
			return err
		}
		out = &models.QuestProgress{
			QuestID:    questID,
			UserID:     userID,
			Status:     models.QuestAccepted,
			AcceptedAt: u.now,
		}
		return u.tx.SaveQuestProgress(out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CompleteQuest pays the single-recipient reward. The issuer's budget is charged when
// the issuer is a teacher.
func (s *QuestService) CompleteQuest(ctx context.Context, questID, userID string) (*QuestResult, error) {
	var out *QuestResult
	err := s.core.run(ctx, func(u *unit) error {
		q, err := s.getQuest(u.tx, questID)
		if err != nil {
			return err
		}
		p, err := u.tx.GetQuestProgress(questID, userID)
		if isNotFound(err) {
			return ErrQuestNotAccepted
		}
		if err != nil {
			return err
		}
		if p.Status == models.QuestCompleted {
			return ErrQuestAlreadyCompleted
		}
		issuer, err := s.core.requireUser(u.tx, q.IssuerID)
		if err != nil {
			return err
		}

		payouts, _, err := s.core.Payouts.Distribute(u, Distribution{
			Source:     source{Type: models.SourceQuest, ID: q.ID, IssuedBy: q.IssuerID, Reason: q.Title},
			Pool:       Reward{XP: q.XPReward, Money: q.MoneyReward, SkillPoints: q.SkillPointsReward, Reputation: q.ReputationReward},
			Recipients: []string{userID},
			Issuer:     issuer,
			SubjectID:  q.SubjectID,
		})
		if err != nil {
			return err
		}

		p.Status = models.QuestCompleted
		p.CompletedAt = ptrTime(u.now)
		if err := u.tx.SaveQuestProgress(p); err != nil {
			return err
		}
		if err := u.emit(models.OutboxQuestCompleted, userID, questCompletedPayload{
			QuestID: q.ID, XP: payouts[0].XP, Money: payouts[0].Money,
		}); err != nil {
			return err
		}
		out = &QuestResult{Progress: p, Payout: payouts[0]}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
