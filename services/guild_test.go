package services

import (
	"testing"

	"classroom-economy/models"
	"classroom-economy/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) setGuildXP(guildID string, xp int64) {
	f.t.Helper()
	f.tx(func(tx store.Tx) {
		g, err := tx.LockGuild(guildID)
		require.NoError(f.t, err)
		g.XP = xp
		require.NoError(f.t, tx.SaveGuild(g))
	})
}

func TestCreateGuild(t *testing.T) {
	f := newFixture(t)
	leader := f.student()
	guilds := NewGuildService(f.core)

	g, err := guilds.CreateGuild(f.ctx, leader, "  Night Owls ", 0)
	require.NoError(t, err)
	assert.Equal(t, "Night Owls", g.Name)
	assert.Equal(t, "night-owls", g.Slug)
	assert.Equal(t, DefaultGuildSize, g.MaxMembers)

	view, err := guilds.GetGuild(f.ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Level)
	assert.Len(t, view.Benefits, len(benefitSchedule))
	require.Len(t, view.Members, 1)
	assert.Equal(t, leader, view.Members[0].UserID)
	assert.Equal(t, 0, view.Bonus[string(models.BenefitXPBonus)])
	for _, b := range view.Benefits {
		assert.False(t, b.Unlocked, b.Name)
	}
}

func TestCreateGuild_Conflicts(t *testing.T) {
	f := newFixture(t)
	a, b := f.student(), f.student()
	guilds := NewGuildService(f.core)

	_, err := guilds.CreateGuild(f.ctx, a, "Night Owls", 0)
	require.NoError(t, err)

	_, err = guilds.CreateGuild(f.ctx, b, "night owls!", 0)
	assert.ErrorIs(t, err, ErrDuplicateGuildName)

	_, err = guilds.CreateGuild(f.ctx, a, "Second Home", 0)
	assert.ErrorIs(t, err, ErrAlreadyInGuild)

	_, err = guilds.CreateGuild(f.ctx, b, "   ", 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestJoinAndLeaveGuild(t *testing.T) {
	f := newFixture(t)
	leader, a, b := f.student(), f.student(), f.student()
	guilds := NewGuildService(f.core)

	g, err := guilds.CreateGuild(f.ctx, leader, "Pair", 2)
	require.NoError(t, err)

	_, err = guilds.JoinGuild(f.ctx, g.ID, a)
	require.NoError(t, err)
	_, err = guilds.JoinGuild(f.ctx, g.ID, a)
	assert.ErrorIs(t, err, ErrAlreadyInGuild)
	_, err = guilds.JoinGuild(f.ctx, g.ID, b)
	assert.ErrorIs(t, err, ErrGuildFull)
	_, err = guilds.JoinGuild(f.ctx, "nope", b)
	assert.ErrorIs(t, err, ErrGuildNotFound)

	assert.ErrorIs(t, guilds.LeaveGuild(f.ctx, leader), ErrLeaderCannotLeave)
	require.NoError(t, guilds.LeaveGuild(f.ctx, a))
	assert.ErrorIs(t, guilds.LeaveGuild(f.ctx, a), ErrNotInGuild)

	_, err = guilds.JoinGuild(f.ctx, g.ID, b)
	require.NoError(t, err)
}

func TestContribute(t *testing.T) {
	f := newFixture(t)
	op, s := f.operator(), f.student()
	guilds := NewGuildService(f.core)
	g, err := guilds.CreateGuild(f.ctx, s, "Savers", 0)
	require.NoError(t, err)
	f.closedJob(op, NewJob{Reward: Reward{Money: 100}}, s)

	updated, err := guilds.Contribute(f.ctx, s, 40)
	require.NoError(t, err)
	assert.Equal(t, int64(40), updated.Treasury)
	assert.Equal(t, int64(60), f.money(s))

	_, err = guilds.Contribute(f.ctx, s, 61)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, int64(60), f.money(s))

	_, err = guilds.Contribute(f.ctx, s, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	view, err := guilds.GetGuild(f.ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(40), view.Members[0].ContributedMoney)

	outsider := f.student()
	_, err = guilds.Contribute(f.ctx, outsider, 1)
	assert.ErrorIs(t, err, ErrNotInGuild)
}

func TestGuildLevelUpUnlocksXPBonus(t *testing.T) {
	f := newFixture(t)
	op, s := f.operator(), f.student()
	guilds := NewGuildService(f.core)
	g, err := guilds.CreateGuild(f.ctx, s, "Climbers", 0)
	require.NoError(t, err)
	f.setGuildXP(g.ID, 990)

	// 25% of 40 lifts the guild to exactly 1000
	f.closedJob(op, NewJob{Reward: Reward{XP: 40}, TeamEligible: true}, s)

	view, err := guilds.GetGuild(f.ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, view.Level)
	assert.Equal(t, 5, view.Bonus[string(models.BenefitXPBonus)])
	assert.Equal(t, 1, f.outboxKinds()[models.OutboxGuildLeveledUp])

	res := f.grant(op, s, 100)
	assert.Equal(t, 5, res.GuildBonus)
	assert.Equal(t, int64(105), res.TotalXP)
}

func TestGuildBonusAppliesToPayouts(t *testing.T) {
	f := newFixture(t)
	op, s := f.operator(), f.student()
	g, err := NewGuildService(f.core).CreateGuild(f.ctx, s, "Veterans", 0)
	require.NoError(t, err)
	// level 8: xp 10%, money 15%, reputation 10%
	f.setGuildXP(g.ID, 7000)

	res := f.closedJob(op, NewJob{Reward: Reward{XP: 100, Money: 100, Reputation: 50}}, s)
	p := res.Payouts[0]
	assert.Equal(t, 10, p.GuildXPPct)
	assert.Equal(t, 15, p.GuildMoneyPct)
	assert.Equal(t, int64(110), p.XP)
	assert.Equal(t, int64(115), p.Money)
	assert.Equal(t, int64(55), p.Reputation)
	assert.Equal(t, int64(55), f.reputation(s).Points)
}

func TestApplyPercent(t *testing.T) {
	assert.Equal(t, int64(115), ApplyPercent(100, 15))
	assert.Equal(t, int64(7), ApplyPercent(7, 10))
	assert.Equal(t, int64(100), ApplyPercent(100, 0))
	assert.Equal(t, int64(-5), ApplyPercent(-5, 10))
}

func TestSumBenefits(t *testing.T) {
	benefits := (&GuildBonusEngine{}).SeedBenefits("g")
	assert.Equal(t, 0, SumBenefits(benefits, models.BenefitXPBonus, 1))
	assert.Equal(t, 5, SumBenefits(benefits, models.BenefitXPBonus, 2))
	assert.Equal(t, 10, SumBenefits(benefits, models.BenefitXPBonus, 5))
	assert.Equal(t, 20, SumBenefits(benefits, models.BenefitXPBonus, 10))
	assert.Equal(t, 15, SumBenefits(benefits, models.BenefitMoneyBonus, 8))
	assert.Equal(t, 10, SumBenefits(benefits, models.BenefitReputationBonus, 50))
}

func TestReputationTier(t *testing.T) {
	assert.Equal(t, 0, ReputationTier(0))
	assert.Equal(t, 0, ReputationTier(999))
	assert.Equal(t, 1, ReputationTier(1000))
	assert.Equal(t, 2, ReputationTier(-2500))
	assert.Equal(t, MaxReputationTier, ReputationTier(1_000_000))
}

func TestNegativeReputationIsNotBoosted(t *testing.T) {
	f := newFixture(t)
	op, s := f.operator(), f.student()
	g, err := NewGuildService(f.core).CreateGuild(f.ctx, s, "Rowdy", 0)
	require.NoError(t, err)
	f.setGuildXP(g.ID, 9000)

	f.closedJob(op, NewJob{Reward: Reward{Reputation: -1200}}, s)
	rep := f.reputation(s)
	assert.Equal(t, int64(-1200), rep.Points)
	assert.Equal(t, 1, rep.Tier)
}
