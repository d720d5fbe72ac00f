package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"classroom-economy/models"
	"classroom-economy/store"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

const DefaultGuildSize = 20

type GuildService struct {
	core *Core
}

func NewGuildService(core *Core) *GuildService {
	return &GuildService{core: core}
}

type BenefitView struct {
	models.GuildBenefit
	Unlocked bool `json:"unlocked"`
}

// GuildView is a guild with its derived level and benefit state.
type GuildView struct {
	Guild    *models.Guild        `json:"guild"`
	Level    int                  `json:"level"`
	Members  []models.GuildMember `json:"members"`
	Benefits []BenefitView        `json:"benefits"`
	Bonus    map[string]int       `json:"bonus"`
}

func (s *GuildService) activity(u *unit, guildID, userID string, kind models.GuildActivityKind, detail string) error {
	return u.tx.AppendGuildActivity(&models.GuildActivity{
		ID:        uuid.NewString(),
		GuildID:   guildID,
		UserID:    userID,
		Kind:      kind,
		Detail:    detail,
		CreatedAt: u.now,
	})
}

func (s *GuildService) requireNoGuild(tx store.Tx, userID string) error {
	_, err := tx.GetMembership(userID)
	if err == nil {
		return ErrAlreadyInGuild
	}
	if isNotFound(err) {
		return nil
	}
	return err
}

// CreateGuild founds a guild led by leaderID and seeds its benefit schedule. Names are
// unique by slug.
func (s *GuildService) CreateGuild(ctx context.Context, leaderID, name string, maxMembers int) (*models.Guild, error) {
	name = strings.TrimSpace(name)
	sl := slug.Make(name)
	if sl == "" {
		return nil, failf("guild", "Create", ErrInvalidInput, "guild name %q is empty", name)
	}
	if maxMembers <= 0 {
		maxMembers = DefaultGuildSize
	}
	g := &models.Guild{
		ID:         uuid.NewString(),
		Name:       name,
		Slug:       sl,
		LeaderID:   leaderID,
		MaxMembers: maxMembers,
	}
	err := s.core.run(ctx, func(u *unit) error {
		if _, err := s.core.requireUser(u.tx, leaderID); err != nil {
			return err
		}
		if err := s.requireNoGuild(u.tx, leaderID); err != nil {
			return err
		}
		if _, err := u.tx.GetGuildBySlug(sl); err == nil {
			return ErrDuplicateGuildName
		} else if !isNotFound(err) {
			return err
		}
		if err := u.tx.CreateGuild(g); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return ErrDuplicateGuildName
			}
			return err
		}
		if err := u.tx.CreateBenefits(s.core.GuildBonus.SeedBenefits(g.ID)); err != nil {
			return err
		}
		if err := u.tx.SaveMembership(&models.GuildMember{UserID: leaderID, GuildID: g.ID, JoinedAt: u.now}); err != nil {
			return err
		}
		u.touch(leaderID)
		return s.activity(u, g.ID, leaderID, models.GuildActivityCreated, name)
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (s *GuildService) lockGuild(tx store.Tx, id string) (*models.Guild, error) {
	g, err := tx.LockGuild(id)
	if isNotFound(err) {
		return nil, ErrGuildNotFound
	}
	return g, err
}

func (s *GuildService) JoinGuild(ctx context.Context, guildID, userID string) (*models.GuildMember, error) {
	var out *models.GuildMember
	err := s.core.run(ctx, func(u *unit) error {
		if _, err := s.core.requireUser(u.tx, userID); err != nil {
			return err
		}
		g, err := s.lockGuild(u.tx, guildID)
		if err != nil {
			return err
		}
		if err := s.requireNoGuild(u.tx, userID); err != nil {
			return err
		}
		n, err := u.tx.CountMembers(g.ID)
		if err != nil {
			return err
		}
		if n >= int64(g.MaxMembers) {
			return ErrGuildFull
		}
		out = &models.GuildMember{UserID: userID, GuildID: g.ID, JoinedAt: u.now}
		if err := u.tx.SaveMembership(out); err != nil {
			return err
		}
		u.touch(userID)
		return s.activity(u, g.ID, userID, models.GuildActivityJoined, "")
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LeaveGuild removes a member. Contributions stay with the guild.
func (s *GuildService) LeaveGuild(ctx context.Context, userID string) error {
	return s.core.run(ctx, func(u *unit) error {
		m, err := u.tx.GetMembership(userID)
		if isNotFound(err) {
			return ErrNotInGuild
		}
		if err != nil {
			return err
		}
		g, err := s.lockGuild(u.tx, m.GuildID)
		if err != nil {
			return err
		}
		if g.LeaderID == userID {
			return ErrLeaderCannotLeave
		}
		if err := u.tx.DeleteMembership(userID); err != nil {
			return err
		}
		u.touch(userID)
		return s.activity(u, g.ID, userID, models.GuildActivityLeft, "")
	})
}

// Contribute moves money from the member's balance into the guild treasury.
func (s *GuildService) Contribute(ctx context.Context, userID string, amount int64) (*models.Guild, error) {
	if amount <= 0 {
		return nil, failf("guild", "Contribute", ErrInvalidInput, "amount must be positive")
	}
	var out *models.Guild
	err := s.core.run(ctx, func(u *unit) error {
		if _, err := u.tx.LockUser(userID); err != nil {
			if isNotFound(err) {
				return ErrUserNotFound
			}
			return err
		}
		m, err := u.tx.GetMembership(userID)
		if isNotFound(err) {
			return ErrNotInGuild
		}
		if err != nil {
			return err
		}
		balance, err := s.core.Ledger.MoneyBalance(u.tx, userID)
		if err != nil {
			return err
		}
		if balance < amount {
			return failf("guild", "Contribute", ErrInsufficientFunds, "balance %d is below %d", balance, amount)
		}
		if err := s.core.creditMoney(u, userID, -amount, 0, source{
			Type:   models.SourceGuildContribution,
			ID:     m.GuildID,
			Reason: "guild treasury contribution",
		}); err != nil {
			return err
		}
		out, err = s.core.creditGuild(u, m.GuildID, userID, 0, amount)
		if err != nil {
			return err
		}
		m.ContributedMoney += amount
		if err := u.tx.SaveMembership(m); err != nil {
			return err
		}
		return s.activity(u, m.GuildID, userID, models.GuildActivityContribution, fmt.Sprintf("%d money", amount))
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GuildService) GetGuild(ctx context.Context, guildID string) (*GuildView, error) {
	var out *GuildView
	err := s.core.read(ctx, func(tx store.Tx) error {
		g, err := s.lockGuild(tx, guildID)
		if err != nil {
			return err
		}
		members, err := tx.ListMembers(g.ID)
		if err != nil {
			return err
		}
		benefits, err := tx.ListBenefits(g.ID)
		if err != nil {
			return err
		}
		level := g.Level()
		view := &GuildView{
			Guild:   g,
			Level:   level,
			Members: members,
			Bonus:   map[string]int{},
		}
		for _, b := range benefits {
			view.Benefits = append(view.Benefits, BenefitView{GuildBenefit: b, Unlocked: b.Active(level)})
		}
		for _, kind := range []models.BenefitType{models.BenefitXPBonus, models.BenefitMoneyBonus, models.BenefitReputationBonus} {
			view.Bonus[string(kind)] = SumBenefits(benefits, kind, level)
		}
		out = view
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
