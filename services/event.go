package services

import (
	"context"
	"time"

	"classroom-economy/models"
	"classroom-economy/store"

	"github.com/google/uuid"
)

type EventService struct {
	core *Core
}

func NewEventService(core *Core) *EventService {
	return &EventService{core: core}
}

type NewEvent struct {
	Title           string    `json:"title"`
	SubjectID       string    `json:"subject_id"`
	StartsAt        time.Time `json:"starts_at"`
	EndsAt          time.Time `json:"ends_at"`
	MaxParticipants int       `json:"max_participants"`
	Reward          Reward    `json:"reward"`
}

type EventCloseResult struct {
	Event   *models.RewardEvent `json:"event"`
	Payouts []Payout            `json:"payouts"`
}

func (s *EventService) CreateEvent(ctx context.Context, issuerID string, in NewEvent) (*models.RewardEvent, error) {
	if in.Title == "" {
		return nil, failf("event", "Create", ErrInvalidInput, "title is required")
	}
	if in.StartsAt.IsZero() || !in.EndsAt.After(in.StartsAt) {
		return nil, failf("event", "Create", ErrInvalidInput, "event window is empty")
	}
	if in.MaxParticipants < 0 {
		return nil, failf("event", "Create", ErrInvalidInput, "max participants cannot be negative")
	}
	if err := in.Reward.validate("event"); err != nil {
		return nil, err
	}
	ev := &models.RewardEvent{
		ID:                uuid.NewString(),
		Title:             in.Title,
		IssuerID:          issuerID,
		SubjectID:         in.SubjectID,
		Status:            models.EventScheduled,
		StartsAt:          in.StartsAt,
		EndsAt:            in.EndsAt,
		MaxParticipants:   in.MaxParticipants,
		XPReward:          in.Reward.XP,
		MoneyReward:       in.Reward.Money,
		SkillPointsReward: in.Reward.SkillPoints,
		ReputationReward:  in.Reward.Reputation,
	}
	err := s.core.run(ctx, func(u *unit) error {
		issuer, err := s.core.requireUser(u.tx, issuerID)
		if err != nil {
			return err
		}
		if !issuer.Role.CanIssue() {
			return failf("event", "Create", ErrPermissionDenied, "role %q cannot schedule events", issuer.Role)
		}
		return u.tx.CreateEvent(ev)
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func (s *EventService) lockEvent(tx store.Tx, id string) (*models.RewardEvent, error) {
	ev, err := tx.LockEvent(id)
	if isNotFound(err) {
		return nil, ErrEventNotFound
	}
	return ev, err
}

// JoinEvent registers a participant while the event window is open. A zero
// MaxParticipants means unlimited.
func (s *EventService) JoinEvent(ctx context.Context, eventID, userID string) (*models.EventParticipation, error) {
	var out *models.EventParticipation
	err := s.core.run(ctx, func(u *unit) error {
		if _, err := s.core.requireUser(u.tx, userID); err != nil {
			return err
		}
		ev, err := s.lockEvent(u.tx, eventID)
		if err != nil {
			return err
		}
		if ev.Status != models.EventScheduled || !ev.Within(u.now) {
			return ErrEventClosed
		}
		if _, err := u.tx.GetParticipation(eventID, userID); err == nil {
			return ErrEventAlreadyJoined
		} else if !isNotFound(err) {
			return err
		}
		if ev.MaxParticipants > 0 {
			ps, err := u.tx.ListParticipations(eventID)
			if err != nil {
				return err
			}
			if len(ps) >= ev.MaxParticipants {
				return ErrEventFull
			}
		}
		out = &models.EventParticipation{EventID: eventID, UserID: userID, JoinedAt: u.now}
		return u.tx.SaveParticipation(out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CloseEvent pays every participant the full reward. The issuer's budget is charged
// xp times the number of participants.
func (s *EventService) CloseEvent(ctx context.Context, eventID, issuerID string) (*EventCloseResult, error) {
	var out *EventCloseResult
	err := s.core.run(ctx, func(u *unit) error {
		ev, err := s.lockEvent(u.tx, eventID)
		if err != nil {
			return err
		}
		if ev.IssuerID != issuerID {
			return failf("event", "Close", ErrPermissionDenied, "only the issuer may close this event")
		}
		if ev.Status != models.EventScheduled {
			return failf("event", "Close", ErrInvalidState, "event is %s", ev.Status)
		}
		issuer, err := s.core.requireUser(u.tx, issuerID)
		if err != nil {
			return err
		}
		ps, err := u.tx.ListParticipations(eventID)
		if err != nil {
			return err
		}

		var payouts []Payout
		if len(ps) > 0 {
			recipients := make([]string, 0, len(ps))
			for _, p := range ps {
				recipients = append(recipients, p.UserID)
			}
			payouts, _, err = s.core.Payouts.Distribute(u, Distribution{
				Source:     source{Type: models.SourceEvent, ID: ev.ID, IssuedBy: issuerID, Reason: ev.Title},
				Pool:       Reward{XP: ev.XPReward, Money: ev.MoneyReward, SkillPoints: ev.SkillPointsReward, Reputation: ev.ReputationReward},
				Recipients: recipients,
				Issuer:     issuer,
				SubjectID:  ev.SubjectID,
				Broadcast:  true,
			})
			if err != nil {
				return err
			}
			for i := range ps {
				ps[i].Rewarded = true
				if err := u.tx.SaveParticipation(&ps[i]); err != nil {
					return err
				}
			}
		}

		ev.Status = models.EventClosed
		ev.ClosedAt = ptrTime(u.now)
		if err := u.tx.SaveEvent(ev); err != nil {
			return err
		}
		out = &EventCloseResult{Event: ev, Payouts: payouts}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
