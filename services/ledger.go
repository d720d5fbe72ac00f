package services

import (
	"classroom-economy/models"
	"classroom-economy/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RewardLedger is the append-only record of every XP and money movement. Balances are
// sums over it; nothing else stores them.
type RewardLedger struct{}

// Append validates and writes one grant. Only debit sources may carry a negative total.
func (l *RewardLedger) Append(tx store.Tx, g *models.RewardGrant) error {
	if !g.Currency.Valid() {
		return failf("ledger", "Append", ErrInvalidInput, "unknown currency %q", g.Currency)
	}
	if !g.SourceType.Valid() {
		return failf("ledger", "Append", ErrInvalidInput, "unknown source type %q", g.SourceType)
	}
	if g.TotalAmount != g.BaseAmount+g.BonusAmount {
		return failf("ledger", "Append", ErrInvalidInput, "total %d != base %d + bonus %d", g.TotalAmount, g.BaseAmount, g.BonusAmount)
	}
	if g.SourceType.IsDebit() {
		if g.TotalAmount >= 0 {
			return failf("ledger", "Append", ErrInvalidInput, "%s grants must be negative", g.SourceType)
		}
	} else if g.BaseAmount < 0 || g.BonusAmount < 0 {
		return failf("ledger", "Append", ErrInvalidInput, "%s grants cannot be negative", g.SourceType)
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.Multiplier.IsZero() {
		g.Multiplier = decimal.NewFromInt(1)
	}
	return tx.AppendGrant(g)
}

func (l *RewardLedger) TotalXP(tx store.Tx, userID string) (int64, error) {
	return tx.SumGrants(userID, models.CurrencyXP)
}

func (l *RewardLedger) MoneyBalance(tx store.Tx, userID string) (int64, error) {
	return tx.SumGrants(userID, models.CurrencyMoney)
}

// History returns the newest grants first.
func (l *RewardLedger) History(tx store.Tx, userID string, limit int) ([]models.RewardGrant, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return tx.ListGrants(userID, limit)
}
