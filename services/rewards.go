package services

import (
	"fmt"

	"classroom-economy/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Reward is the pool carried by a job, quest or event.
type Reward struct {
	XP          int64 `json:"xp"`
	Money       int64 `json:"money"`
	SkillPoints int64 `json:"skill_points"`
	Reputation  int64 `json:"reputation"`
}

func (r Reward) validate(domain string) error {
	if r.XP < 0 || r.Money < 0 || r.SkillPoints < 0 {
		return failf(domain, "Create", ErrInvalidInput, "rewards cannot be negative")
	}
	if r.XP == 0 && r.Money == 0 && r.SkillPoints == 0 && r.Reputation == 0 {
		return failf(domain, "Create", ErrInvalidInput, "reward is empty")
	}
	return nil
}

// source identifies where a credit came from.
type source struct {
	Type     models.SourceType
	ID       string
	IssuedBy string
	Reason   string
}

// XPCredit is the ledger effect of one XP grant.
type XPCredit struct {
	Base        int64 `json:"base"`
	Bonus       int64 `json:"bonus"`
	Total       int64 `json:"total"`
	TotalXP     int64 `json:"total_xp"`
	LevelBefore int   `json:"level_before"`
	LevelAfter  int   `json:"level_after"`
	SkillPoints int64 `json:"skill_points_awarded"`
}

type xpGainedPayload struct {
	Amount     int64             `json:"amount"`
	TotalXP    int64             `json:"total_xp"`
	Level      int               `json:"level"`
	SourceType models.SourceType `json:"source_type"`
	SourceID   string            `json:"source_id,omitempty"`
}

type levelUpPayload struct {
	From        int   `json:"from"`
	To          int   `json:"to"`
	SkillPoints int64 `json:"skill_points"`
}

// creditXP appends an XP grant, then awards skill points for every level it crossed and
// queues xp_gained and level_up events.
func (c *Core) creditXP(u *unit, userID string, base, bonus int64, mult decimal.Decimal, src source) (*XPCredit, error) {
	before, err := c.Ledger.TotalXP(u.tx, userID)
	if err != nil {
		return nil, err
	}
	out := &XPCredit{
		Base:        base,
		Bonus:       bonus,
		Total:       base + bonus,
		TotalXP:     before,
		LevelBefore: LevelFromXP(before),
	}
	out.LevelAfter = out.LevelBefore
	if out.Total == 0 {
		return out, nil
	}

	if err := c.Ledger.Append(u.tx, &models.RewardGrant{
		ID:          uuid.NewString(),
		UserID:      userID,
		Currency:    models.CurrencyXP,
		BaseAmount:  base,
		BonusAmount: bonus,
		TotalAmount: out.Total,
		Multiplier:  mult,
		SourceType:  src.Type,
		SourceID:    src.ID,
		IssuedBy:    src.IssuedBy,
		Reason:      src.Reason,
		CreatedAt:   u.now,
	}); err != nil {
		return nil, err
	}
	u.touch(userID)

	out.TotalXP = before + out.Total
	out.LevelAfter = LevelFromXP(out.TotalXP)
	if err := u.emit(models.OutboxXPGained, userID, xpGainedPayload{
		Amount:     out.Total,
		TotalXP:    out.TotalXP,
		Level:      out.LevelAfter,
		SourceType: src.Type,
		SourceID:   src.ID,
	}); err != nil {
		return nil, err
	}

	if out.LevelAfter > out.LevelBefore {
		out.SkillPoints, err = c.Skills.AwardLevels(u.tx, userID, out.LevelAfter)
		if err != nil {
			return nil, err
		}
		if err := u.emit(models.OutboxLevelUp, userID, levelUpPayload{
			From:        out.LevelBefore,
			To:          out.LevelAfter,
			SkillPoints: out.SkillPoints,
		}); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// creditMoney appends a money grant. A negative base is only valid for debit sources.
func (c *Core) creditMoney(u *unit, userID string, base, bonus int64, src source) error {
	if base+bonus == 0 {
		return nil
	}
	if err := c.Ledger.Append(u.tx, &models.RewardGrant{
		ID:          uuid.NewString(),
		UserID:      userID,
		Currency:    models.CurrencyMoney,
		BaseAmount:  base,
		BonusAmount: bonus,
		TotalAmount: base + bonus,
		Multiplier:  one,
		SourceType:  src.Type,
		SourceID:    src.ID,
		IssuedBy:    src.IssuedBy,
		Reason:      src.Reason,
		CreatedAt:   u.now,
	}); err != nil {
		return err
	}
	u.touch(userID)
	return nil
}

type milestonePayload struct {
	Days  int   `json:"days"`
	XP    int64 `json:"xp"`
	Money int64 `json:"money"`
}

// recordActivity moves the user's streak for today and pays any milestone it reached.
func (c *Core) recordActivity(u *unit, userID string) (*StreakUpdate, error) {
	up, err := c.Streaks.RecordActivity(u.tx, userID, u.day, u.now)
	if err != nil {
		return nil, err
	}
	u.touch(userID)
	for _, days := range up.Milestones {
		xp, money := MilestoneReward(days)
		src := source{
			Type:   models.SourceStreakMilestone,
			ID:     fmt.Sprintf("%s:%d", up.Record.RunStartedOn.Format("2006-01-02"), days),
			Reason: fmt.Sprintf("%d-day streak", days),
		}
		if _, err := c.creditXP(u, userID, xp, 0, one, src); err != nil {
			return nil, err
		}
		if err := c.creditMoney(u, userID, money, 0, src); err != nil {
			return nil, err
		}
		if err := u.emit(models.OutboxStreakMilestone, userID, milestonePayload{Days: days, XP: xp, Money: money}); err != nil {
			return nil, err
		}
		logf("Streak", "🔥 user=%s reached %d-day milestone (+%d xp, +%d money)", userID, days, xp, money)
	}
	return up, nil
}

type guildLevelPayload struct {
	GuildID string `json:"guild_id"`
	From    int    `json:"from"`
	To      int    `json:"to"`
}

// creditGuild adds XP and treasury to a guild and records a level-up when its derived
// level rises.
func (c *Core) creditGuild(u *unit, guildID, userID string, xp, treasury int64) (*models.Guild, error) {
	g, err := u.tx.LockGuild(guildID)
	if err != nil {
		return nil, err
	}
	if xp == 0 && treasury == 0 {
		return g, nil
	}
	before := g.Level()
	g.XP += xp
	g.Treasury += treasury
	if err := u.tx.SaveGuild(g); err != nil {
		return nil, err
	}
	after := g.Level()
	if after > before {
		if err := u.tx.AppendGuildActivity(&models.GuildActivity{
			ID:        uuid.NewString(),
			GuildID:   g.ID,
			UserID:    userID,
			Kind:      models.GuildActivityLeveledUp,
			Detail:    fmt.Sprintf("level %d -> %d", before, after),
			CreatedAt: u.now,
		}); err != nil {
			return nil, err
		}
		if err := u.emit(models.OutboxGuildLeveledUp, userID, guildLevelPayload{GuildID: g.ID, From: before, To: after}); err != nil {
			return nil, err
		}
		logf("Guild", "⬆️ guild=%s leveled up %d -> %d", g.ID, before, after)
	}
	return g, nil
}
