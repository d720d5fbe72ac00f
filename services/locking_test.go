package services

import (
	"context"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"classroom-economy/models"
	"classroom-economy/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// callLog records the store calls that decide lock order. The memory store serializes
// whole transactions, so ordering is what these tests can observe.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	l.calls = append(l.calls, call)
	l.mu.Unlock()
}

func (l *callLog) reset() {
	l.mu.Lock()
	l.calls = nil
	l.mu.Unlock()
}

func (l *callLog) index(call string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Index(l.calls, call)
}

func (l *callLog) withPrefix(prefix string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, c := range l.calls {
		if len(c) > len(prefix) && c[:len(prefix)] == prefix {
			out = append(out, c[len(prefix):])
		}
	}
	return out
}

type loggingStore struct {
	inner store.Store
	log   *callLog
}

func (s *loggingStore) Transaction(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.inner.Transaction(ctx, func(tx store.Tx) error {
		return fn(&loggingTx{Tx: tx, log: s.log})
	})
}

type loggingTx struct {
	store.Tx
	log *callLog
}

func (t *loggingTx) LockUser(id string) (*models.User, error) {
	t.log.add("LockUser")
	return t.Tx.LockUser(id)
}

func (t *loggingTx) SumGrants(userID string, currency models.Currency) (int64, error) {
	t.log.add("SumGrants:" + string(currency))
	return t.Tx.SumGrants(userID, currency)
}

func (t *loggingTx) LockSkillPoints(userID string) (*models.SkillPointBalance, error) {
	t.log.add("LockSkillPoints")
	return t.Tx.LockSkillPoints(userID)
}

func (t *loggingTx) GetUserSkill(userID, skillID string) (*models.UserSkill, error) {
	t.log.add("GetUserSkill")
	return t.Tx.GetUserSkill(userID, skillID)
}

func (t *loggingTx) LockStreak(userID string) (*models.StreakRecord, error) {
	t.log.add("LockStreak:" + userID)
	return t.Tx.LockStreak(userID)
}

func newLoggedFixture(t *testing.T) (*fixture, *callLog) {
	t.Helper()
	f := newFixture(t)
	log := &callLog{}
	f.core = NewCore(Options{
		Store:    &loggingStore{inner: f.st, log: log},
		Now:      func() time.Time { return f.now },
		Location: time.UTC,
	})
	return f, log
}

func TestContribute_LocksUserBeforeReadingBalance(t *testing.T) {
	f, log := newLoggedFixture(t)
	op, s := f.operator(), f.student()
	guilds := NewGuildService(f.core)
	_, err := guilds.CreateGuild(f.ctx, s, "Night Owls", 0)
	require.NoError(t, err)
	f.closedJob(op, NewJob{Reward: Reward{Money: 100}}, s)

	log.reset()
	_, err = guilds.Contribute(f.ctx, s, 100)
	require.NoError(t, err)

	lock, read := log.index("LockUser"), log.index("SumGrants:"+string(models.CurrencyMoney))
	require.NotEqual(t, -1, lock)
	require.NotEqual(t, -1, read)
	assert.Less(t, lock, read)

	_, err = guilds.Contribute(f.ctx, s, 1)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, int64(0), f.money(s))
}

func TestSpendSkillPoint_LocksBalanceBeforeReadingSkill(t *testing.T) {
	f, log := newLoggedFixture(t)
	op, s := f.operator(), f.student()
	skill := f.skill(op, 1, 1)
	f.closedJob(op, NewJob{Reward: Reward{SkillPoints: 2}}, s)
	progression := NewProgressionService(f.core)

	log.reset()
	_, err := progression.SpendSkillPoint(f.ctx, s, skill.ID, 1)
	require.NoError(t, err)

	lock, read := log.index("LockSkillPoints"), log.index("GetUserSkill")
	require.NotEqual(t, -1, lock)
	require.NotEqual(t, -1, read)
	assert.Less(t, lock, read)

	// a second spend on a maxed skill charges nothing
	_, err = progression.SpendSkillPoint(f.ctx, s, skill.ID, 1)
	assert.ErrorIs(t, err, ErrSkillAtMaxLevel)
	bal := f.skillPoints(s)
	assert.Equal(t, int64(1), bal.Available)
	assert.Equal(t, int64(1), bal.Spent)
}

func TestCloseJob_LocksRecipientsInIDOrder(t *testing.T) {
	f, log := newLoggedFixture(t)
	op := f.operator()
	recipients := []string{f.student(), f.student(), f.student()}
	// apply in reverse id order so the assignment order disagrees with the lock order
	sort.Sort(sort.Reverse(sort.StringSlice(recipients)))

	log.reset()
	res := f.closedJob(op, NewJob{Reward: Reward{XP: 90}}, recipients...)
	require.Len(t, res.Payouts, 3)

	locked := log.withPrefix("LockStreak:")
	require.Len(t, locked, 3)
	assert.True(t, sort.StringsAreSorted(locked), locked)
}
