package services

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"classroom-economy/models"
)

// MaxLeadershipBonus caps the attribute bonus on job payouts, in percent.
const MaxLeadershipBonus = 20

// LeadershipPercent is 2% per leadership point, capped at +20%.
func LeadershipPercent(leadership int) int {
	pct := leadership * 2
	if pct < 0 {
		return 0
	}
	if pct > MaxLeadershipBonus {
		return MaxLeadershipBonus
	}
	return pct
}

// Payout is what one recipient received.
type Payout struct {
	UserID        string `json:"user_id"`
	BaseXP        int64  `json:"base_xp"`
	XP            int64  `json:"xp"`
	BaseMoney     int64  `json:"base_money"`
	Money         int64  `json:"money"`
	SkillPoints   int64  `json:"skill_points"`
	Reputation    int64  `json:"reputation"`
	LeadershipPct int    `json:"leadership_pct"`
	GuildXPPct    int    `json:"guild_xp_pct"`
	GuildMoneyPct int    `json:"guild_money_pct"`
	GuildID       string `json:"guild_id,omitempty"`
	GuildXP       int64  `json:"guild_xp,omitempty"`
	GuildTreasury int64  `json:"guild_treasury,omitempty"`
	LevelBefore   int    `json:"level_before"`
	LevelAfter    int    `json:"level_after"`
}

// Remainder is what floor division left over. It is recorded, never redistributed.
type Remainder struct {
	XP    int64 `json:"xp"`
	Money int64 `json:"money"`
}

// Distribution describes one pooled payout.
type Distribution struct {
	Source     source
	Pool       Reward
	Recipients []string
	Issuer     *models.User
	SubjectID  string

	// Broadcast pays every recipient the whole pool instead of splitting it.
	Broadcast bool
	// Leadership applies the recipients' attribute bonus.
	Leadership bool
	// TeamEligible propagates part of every base share to the recipient's guild.
	TeamEligible bool
}

// PayoutDistributor splits a reward pool between recipients inside one unit of work.
// Any failure aborts the caller's transaction, so no recipient is paid unless all are.
type PayoutDistributor struct {
	core *Core
}

// Distribute pays every recipient and returns their payouts ordered by user id.
func (p *PayoutDistributor) Distribute(u *unit, d Distribution) ([]Payout, Remainder, error) {
	c := p.core
	k := int64(len(d.Recipients))
	if k == 0 {
		return nil, Remainder{}, ErrNoRecipients
	}
	seen := make(map[string]bool, k)
	for _, id := range d.Recipients {
		if seen[id] {
			return nil, Remainder{}, failf("payout", "Distribute", ErrInvalidInput, "recipient %s listed twice", id)
		}
		seen[id] = true
	}

	shareXP, shareMoney := d.Pool.XP, d.Pool.Money
	charge := d.Pool.XP * k
	if !d.Broadcast {
		shareXP, shareMoney = d.Pool.XP/k, d.Pool.Money/k
		charge = d.Pool.XP
	}

	if charge > 0 {
		if _, err := c.Budget.TryConsume(u.tx, d.Issuer, d.SubjectID, u.day, charge); err != nil {
			return nil, Remainder{}, err
		}
	}

	// Lock order is by user id so concurrent payouts sharing recipients cannot deadlock.
	recipients := append([]string(nil), d.Recipients...)
	sort.Strings(recipients)

	users := make([]*models.User, 0, k)
	bonuses := make([]GuildPercents, 0, k)
	for _, userID := range recipients {
		user, err := c.requireUser(u.tx, userID)
		if err != nil {
			return nil, Remainder{}, err
		}
		// Guild levels are read before anyone is paid, so propagation from this payout
		// cannot change the bonus of a later recipient.
		gp, err := c.GuildBonus.Percents(u.tx, userID)
		if err != nil {
			return nil, Remainder{}, err
		}
		users = append(users, user)
		bonuses = append(bonuses, gp)
	}

	payouts := make([]Payout, 0, k)
	for i, user := range users {
		po, err := p.payOne(u, d, user, bonuses[i], shareXP, shareMoney)
		if err != nil {
			return nil, Remainder{}, err
		}
		payouts = append(payouts, *po)
	}
	if d.TeamEligible {
		for i := range payouts {
			if err := p.propagate(u, &payouts[i]); err != nil {
				return nil, Remainder{}, err
			}
		}
	}

	var rem Remainder
	if !d.Broadcast {
		rem = Remainder{XP: d.Pool.XP - shareXP*k, Money: d.Pool.Money - shareMoney*k}
		if err := u.tx.AppendRemainder(&models.PayoutRemainder{
			ID:         uuid.NewString(),
			SourceType: d.Source.Type,
			SourceID:   d.Source.ID,
			Recipients: int(k),
			PoolXP:     d.Pool.XP,
			PoolMoney:  d.Pool.Money,
			XP:         rem.XP,
			Money:      rem.Money,
			CreatedAt:  u.now,
		}); err != nil {
			return nil, Remainder{}, err
		}
		logf("Payout", "%s=%s recipients=%d remainder xp=%d money=%d",
			d.Source.Type, d.Source.ID, k, rem.XP, rem.Money)
	}
	return payouts, rem, nil
}

func (p *PayoutDistributor) payOne(u *unit, d Distribution, user *models.User, gp GuildPercents, shareXP, shareMoney int64) (*Payout, error) {
	c := p.core
	po := &Payout{UserID: user.ID, BaseXP: shareXP, BaseMoney: shareMoney}

	if _, err := c.recordActivity(u, user.ID); err != nil {
		return nil, err
	}

	mult := one
	xp, money := shareXP, shareMoney
	if d.Leadership {
		po.LeadershipPct = LeadershipPercent(user.Leadership)
		if po.LeadershipPct > 0 {
			mult = decimal.NewFromInt(int64(100 + po.LeadershipPct)).Div(decimal.NewFromInt(100))
			xp = xp * int64(100+po.LeadershipPct) / 100
			money = money * int64(100+po.LeadershipPct) / 100
		}
	}

	po.GuildXPPct, po.GuildMoneyPct = gp.XP, gp.Money
	po.XP = ApplyPercent(xp, po.GuildXPPct)
	po.Money = ApplyPercent(money, po.GuildMoneyPct)

	credit, err := c.creditXP(u, user.ID, shareXP, po.XP-shareXP, mult, d.Source)
	if err != nil {
		return nil, err
	}
	po.LevelBefore, po.LevelAfter = credit.LevelBefore, credit.LevelAfter
	if err := c.creditMoney(u, user.ID, shareMoney, po.Money-shareMoney, d.Source); err != nil {
		return nil, err
	}

	if d.Pool.SkillPoints > 0 {
		if err := c.Skills.Credit(u.tx, user.ID, d.Pool.SkillPoints); err != nil {
			return nil, err
		}
		po.SkillPoints = d.Pool.SkillPoints
	}
	if d.Pool.Reputation != 0 {
		rep := d.Pool.Reputation
		if rep > 0 {
			rep = ApplyPercent(rep, gp.Reputation)
		}
		if _, err := c.Reputation.Adjust(u.tx, user.ID, rep); err != nil {
			return nil, err
		}
		po.Reputation = rep
	}
	return po, nil
}

// propagate credits the recipient's guild with a share of the base payout. It is added
// on top of what the recipient got, not taken from it.
func (p *PayoutDistributor) propagate(u *unit, po *Payout) error {
	m, err := u.tx.GetMembership(po.UserID)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}
	po.GuildID = m.GuildID
	po.GuildXP = po.BaseXP * GuildXPSharePercent / 100
	po.GuildTreasury = po.BaseMoney * GuildMoneySharePercent / 100
	if _, err := p.core.creditGuild(u, m.GuildID, po.UserID, po.GuildXP, po.GuildTreasury); err != nil {
		return err
	}
	m.ContributedXP += po.GuildXP
	m.ContributedMoney += po.GuildTreasury
	return u.tx.SaveMembership(m)
}
