package services

import (
	"context"
	"testing"
	"time"

	"classroom-economy/models"
	"classroom-economy/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// 10:00 UTC on a Tuesday
var testNow = time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC)

type fixture struct {
	t    *testing.T
	ctx  context.Context
	st   *store.MemoryStore
	core *Core
	now  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, Options{})
}

func newFixtureWith(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{t: t, ctx: context.Background(), st: store.NewMemoryStore(), now: testNow}
	opts.Store = f.st
	opts.Now = func() time.Time { return f.now }
	opts.Location = time.UTC
	f.core = NewCore(opts)
	return f
}

func (f *fixture) advanceDays(n int) {
	f.now = f.now.AddDate(0, 0, n)
}

func (f *fixture) user(role models.Role) string {
	f.t.Helper()
	u, err := f.core.EnsureUser(f.ctx, uuid.NewString(), role)
	require.NoError(f.t, err)
	return u.ID
}

func (f *fixture) student() string  { return f.user(models.RoleStudent) }
func (f *fixture) teacher() string  { return f.user(models.RoleTeacher) }
func (f *fixture) operator() string { return f.user(models.RoleOperator) }

func (f *fixture) tx(fn func(tx store.Tx)) {
	f.t.Helper()
	require.NoError(f.t, f.st.Transaction(f.ctx, func(tx store.Tx) error {
		fn(tx)
		return nil
	}))
}

func (f *fixture) xp(userID string) int64 {
	f.t.Helper()
	var n int64
	f.tx(func(tx store.Tx) {
		var err error
		n, err = tx.SumGrants(userID, models.CurrencyXP)
		require.NoError(f.t, err)
	})
	return n
}

func (f *fixture) money(userID string) int64 {
	f.t.Helper()
	var n int64
	f.tx(func(tx store.Tx) {
		var err error
		n, err = tx.SumGrants(userID, models.CurrencyMoney)
		require.NoError(f.t, err)
	})
	return n
}

func (f *fixture) grants(userID string) []models.RewardGrant {
	f.t.Helper()
	var out []models.RewardGrant
	f.tx(func(tx store.Tx) {
		var err error
		out, err = tx.ListGrants(userID, 0)
		require.NoError(f.t, err)
	})
	return out
}

func (f *fixture) pendingOutbox() []models.OutboxEvent {
	f.t.Helper()
	var out []models.OutboxEvent
	f.tx(func(tx store.Tx) {
		var err error
		out, err = tx.PendingOutbox(0)
		require.NoError(f.t, err)
	})
	return out
}

func (f *fixture) outboxKinds() map[models.OutboxKind]int {
	kinds := map[models.OutboxKind]int{}
	for _, ev := range f.pendingOutbox() {
		kinds[ev.Kind]++
	}
	return kinds
}

func (f *fixture) budget(teacherID, subjectID string) models.BudgetRecord {
	f.t.Helper()
	var out models.BudgetRecord
	f.tx(func(tx store.Tx) {
		b, err := tx.LockBudget(teacherID, subjectID, f.core.Today(), f.core.Budget.DefaultCeiling)
		require.NoError(f.t, err)
		out = *b
	})
	return out
}

func (f *fixture) seedBudgetUsed(teacherID, subjectID string, used int64) {
	f.t.Helper()
	f.tx(func(tx store.Tx) {
		b, err := tx.LockBudget(teacherID, subjectID, f.core.Today(), f.core.Budget.DefaultCeiling)
		require.NoError(f.t, err)
		b.UsedAmount = used
		require.NoError(f.t, tx.SaveBudget(b))
	})
}

// seedStreak puts userID on a run of length streak whose last active day is last.
func (f *fixture) seedStreak(userID string, streak int, last time.Time) {
	f.t.Helper()
	f.tx(func(tx store.Tx) {
		r, err := tx.LockStreak(userID)
		require.NoError(f.t, err)
		r.CurrentStreak = streak
		r.MaxStreak = streak
		r.LastActivityDate = ptrTime(last)
		r.RunStartedOn = ptrTime(last.AddDate(0, 0, -(streak - 1)))
		r.CurrentMultiplier = StreakMultiplier(streak)
		require.NoError(f.t, tx.SaveStreak(r))
	})
}

func (f *fixture) streak(userID string) models.StreakRecord {
	f.t.Helper()
	var out models.StreakRecord
	f.tx(func(tx store.Tx) {
		r, err := tx.LockStreak(userID)
		require.NoError(f.t, err)
		out = *r
	})
	return out
}

func (f *fixture) skillPoints(userID string) models.SkillPointBalance {
	f.t.Helper()
	var out models.SkillPointBalance
	f.tx(func(tx store.Tx) {
		b, err := tx.LockSkillPoints(userID)
		require.NoError(f.t, err)
		out = *b
	})
	return out
}

func (f *fixture) reputation(userID string) models.ReputationRecord {
	f.t.Helper()
	var out models.ReputationRecord
	f.tx(func(tx store.Tx) {
		r, err := tx.LockReputation(userID)
		require.NoError(f.t, err)
		out = *r
	})
	return out
}

func (f *fixture) setLeadership(userID string, leadership int) {
	f.t.Helper()
	_, err := f.core.SyncRoster(f.ctx, []RosterEntry{{ID: userID, DisplayName: "student", Leadership: leadership}})
	require.NoError(f.t, err)
}

func (f *fixture) grant(teacherID, studentID string, amount int64) *GrantResult {
	f.t.Helper()
	res, err := NewProgressionService(f.core).GrantXP(f.ctx, GrantRequest{
		StudentID: studentID,
		TeacherID: teacherID,
		SubjectID: "math",
		Amount:    amount,
	})
	require.NoError(f.t, err)
	return res
}

// closedJob posts a job, approves every recipient and closes it.
func (f *fixture) closedJob(issuerID string, in NewJob, recipients ...string) *CloseResult {
	f.t.Helper()
	jobs := NewJobService(f.core)
	if in.Title == "" {
		in.Title = "Tidy the lab"
	}
	if in.MaxRecipients == 0 {
		in.MaxRecipients = len(recipients)
	}
	job, err := jobs.CreateJob(f.ctx, issuerID, in)
	require.NoError(f.t, err)
	for _, id := range recipients {
		_, err := jobs.ApplyJob(f.ctx, job.ID, id)
		require.NoError(f.t, err)
		_, err = jobs.ApproveAssignment(f.ctx, job.ID, issuerID, id)
		require.NoError(f.t, err)
	}
	res, err := jobs.CloseJob(f.ctx, job.ID, issuerID)
	require.NoError(f.t, err)
	return res
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
