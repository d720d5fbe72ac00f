package services

import (
	"errors"

	"classroom-economy/models"
	"classroom-economy/store"

	"github.com/google/uuid"
)

// Share of each base payout share that a team-eligible job adds to the recipient's guild.
const (
	GuildXPSharePercent    = 25
	GuildMoneySharePercent = 5
)

type benefitSeed struct {
	name          string
	kind          models.BenefitType
	value         int
	requiredLevel int
}

var benefitSchedule = []benefitSeed{
	{"Study Circle", models.BenefitXPBonus, 5, 2},
	{"Shared Purse", models.BenefitMoneyBonus, 5, 3},
	{"Scholars' Focus", models.BenefitXPBonus, 5, 5},
	{"Guild Standing", models.BenefitReputationBonus, 10, 6},
	{"Merchant Network", models.BenefitMoneyBonus, 10, 8},
	{"Mastery Hall", models.BenefitXPBonus, 10, 10},
}

// GuildBonusEngine turns guild benefits into reward percentages.
type GuildBonusEngine struct{}

// SeedBenefits returns the fixed benefit schedule for a new guild.
func (e *GuildBonusEngine) SeedBenefits(guildID string) []models.GuildBenefit {
	out := make([]models.GuildBenefit, 0, len(benefitSchedule))
	for _, s := range benefitSchedule {
		out = append(out, models.GuildBenefit{
			ID:            uuid.NewString(),
			GuildID:       guildID,
			Name:          s.name,
			BenefitType:   s.kind,
			Value:         s.value,
			RequiredLevel: s.requiredLevel,
		})
	}
	return out
}

// Percent sums the active benefits of kind for the user's guild. Users without a guild
// get 0. Values add up without a ceiling.
func (e *GuildBonusEngine) Percent(tx store.Tx, userID string, kind models.BenefitType) (int, error) {
	m, err := tx.GetMembership(userID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	g, err := tx.LockGuild(m.GuildID)
	if err != nil {
		return 0, err
	}
	benefits, err := tx.ListBenefits(g.ID)
	if err != nil {
		return 0, err
	}
	return SumBenefits(benefits, kind, g.Level()), nil
}

// GuildPercents is every bonus a user's guild grants, read at one guild level.
type GuildPercents struct {
	XP         int
	Money      int
	Reputation int
}

// Percents reads all bonus kinds for the user's guild under one lock.
func (e *GuildBonusEngine) Percents(tx store.Tx, userID string) (GuildPercents, error) {
	m, err := tx.GetMembership(userID)
	if errors.Is(err, store.ErrNotFound) {
		return GuildPercents{}, nil
	}
	if err != nil {
		return GuildPercents{}, err
	}
	g, err := tx.LockGuild(m.GuildID)
	if err != nil {
		return GuildPercents{}, err
	}
	benefits, err := tx.ListBenefits(g.ID)
	if err != nil {
		return GuildPercents{}, err
	}
	level := g.Level()
	return GuildPercents{
		XP:         SumBenefits(benefits, models.BenefitXPBonus, level),
		Money:      SumBenefits(benefits, models.BenefitMoneyBonus, level),
		Reputation: SumBenefits(benefits, models.BenefitReputationBonus, level),
	}, nil
}

// SumBenefits adds the values of every benefit of kind unlocked at level.
func SumBenefits(benefits []models.GuildBenefit, kind models.BenefitType, level int) int {
	total := 0
	for _, b := range benefits {
		if b.BenefitType == kind && b.Active(level) {
			total += b.Value
		}
	}
	return total
}

// ApplyPercent is base + floor(base*pct/100).
func ApplyPercent(base int64, pct int) int64 {
	if pct <= 0 || base <= 0 {
		return base
	}
	return base + base*int64(pct)/100
}

// Apply returns base with the user's guild bonus of kind applied, and the percent used.
func (e *GuildBonusEngine) Apply(tx store.Tx, userID string, base int64, kind models.BenefitType) (int64, int, error) {
	pct, err := e.Percent(tx, userID, kind)
	if err != nil {
		return 0, 0, err
	}
	return ApplyPercent(base, pct), pct, nil
}
