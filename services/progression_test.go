package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"classroom-economy/models"
	"classroom-economy/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapCache struct {
	mu          sync.Mutex
	snaps       map[string]Snapshot
	invalidated []string
}

func newMapCache() *mapCache {
	return &mapCache{snaps: map[string]Snapshot{}}
}

func (c *mapCache) GetSnapshot(_ context.Context, userID string) (*Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.snaps[userID]
	if !ok {
		return nil, false
	}
	return &s, true
}

func (c *mapCache) SetSnapshot(_ context.Context, s *Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps[s.UserID] = *s
}

func (c *mapCache) Invalidate(_ context.Context, userIDs ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range userIDs {
		delete(c.snaps, id)
		c.invalidated = append(c.invalidated, id)
	}
}

func TestGrantXP_AppliesStreakMultiplier(t *testing.T) {
	f := newFixture(t)
	teacher, student := f.teacher(), f.student()
	f.seedStreak(student, 6, f.core.Today())

	res := f.grant(teacher, student, 100)
	assert.Equal(t, int64(130), res.TotalXP)
	assert.Equal(t, int64(30), res.BonusXP)
	assert.True(t, res.Multiplier.Equal(dec("1.3")))
	assert.Equal(t, 6, res.Streak)
	assert.Equal(t, int64(130), res.UserXP)

	// the budget meters what the teacher asked for, not the bonus
	assert.Equal(t, int64(100), f.budget(teacher, "math").UsedAmount)

	gs := f.grants(student)
	require.Len(t, gs, 1)
	assert.Equal(t, int64(100), gs[0].BaseAmount)
	assert.Equal(t, int64(30), gs[0].BonusAmount)
	assert.Equal(t, models.SourceManual, gs[0].SourceType)
	assert.Equal(t, teacher, gs[0].IssuedBy)
}

func TestGrantXP_StreakContinuationPaysMilestone(t *testing.T) {
	f := newFixture(t)
	teacher, student := f.teacher(), f.student()
	f.seedStreak(student, 6, f.core.Today().AddDate(0, 0, -1))

	res := f.grant(teacher, student, 100)
	assert.Equal(t, 7, res.Streak)
	assert.Equal(t, int64(135), res.TotalXP)

	milestoneXP, milestoneMoney := MilestoneReward(7)
	assert.Equal(t, 135+milestoneXP, f.xp(student))
	assert.Equal(t, milestoneMoney, f.money(student))
}

func TestGrantXP_MultiLevelAwardsEverySkillPoint(t *testing.T) {
	f := newFixture(t)
	op, student := f.operator(), f.student()

	res := f.grant(op, student, TotalXPForLevel(25))
	assert.Equal(t, 25, res.Level)
	assert.True(t, res.LeveledUp)
	assert.Equal(t, int64(24), res.SkillPoints)

	res = f.grant(op, student, TotalXPForLevel(27)-TotalXPForLevel(25))
	assert.Equal(t, 27, res.Level)
	assert.Equal(t, int64(4), res.SkillPoints)

	sp := f.skillPoints(student)
	assert.Equal(t, int64(28), sp.Available)
	assert.Equal(t, int64(28), sp.Total)
	assert.Equal(t, 27, sp.HighestLevelAwarded)

	kinds := f.outboxKinds()
	assert.Equal(t, 2, kinds[models.OutboxXPGained])
	assert.Equal(t, 2, kinds[models.OutboxLevelUp])
}

func TestGrantXP_Validation(t *testing.T) {
	f := newFixture(t)
	teacher, student := f.teacher(), f.student()
	svc := NewProgressionService(f.core)

	cases := []struct {
		name string
		req  GrantRequest
		kind error
	}{
		{"zero amount", GrantRequest{StudentID: student, TeacherID: teacher, Amount: 0}, ErrInvalidInput},
		{"negative amount", GrantRequest{StudentID: student, TeacherID: teacher, Amount: -5}, ErrInvalidInput},
		{"pooled source", GrantRequest{StudentID: student, TeacherID: teacher, Amount: 5, SourceType: models.SourceJob}, ErrInvalidInput},
		{"self grant", GrantRequest{StudentID: teacher, TeacherID: teacher, Amount: 5}, ErrPermissionDenied},
		{"student issuer", GrantRequest{StudentID: teacher, TeacherID: student, Amount: 5}, ErrPermissionDenied},
		{"unknown student", GrantRequest{StudentID: uuid.NewString(), TeacherID: teacher, Amount: 5}, ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.GrantXP(f.ctx, tc.req)
			assert.ErrorIs(t, err, tc.kind)
			assert.True(t, IsExpected(err))
		})
	}
	assert.Equal(t, int64(0), f.budget(teacher, "general").UsedAmount)
}

func TestGrantXP_ActivitySource(t *testing.T) {
	f := newFixture(t)
	teacher, student := f.teacher(), f.student()

	_, err := NewProgressionService(f.core).GrantXP(f.ctx, GrantRequest{
		StudentID: student, TeacherID: teacher, Amount: 15, SourceType: models.SourceActivity, Reason: "homework",
	})
	require.NoError(t, err)
	gs := f.grants(student)
	require.Len(t, gs, 1)
	assert.Equal(t, models.SourceActivity, gs[0].SourceType)
	assert.Equal(t, "homework", gs[0].Reason)
}

func TestSnapshot_ReadsThroughCacheAndIsInvalidated(t *testing.T) {
	cache := newMapCache()
	f := newFixtureWith(t, Options{Cache: cache})
	teacher, student := f.teacher(), f.student()
	svc := NewProgressionService(f.core)

	snap, err := svc.Snapshot(f.ctx, student)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Level)
	assert.Equal(t, int64(128), snap.XPToNext)
	_, cached := cache.GetSnapshot(f.ctx, student)
	assert.True(t, cached)

	f.grant(teacher, student, 200)
	_, cached = cache.GetSnapshot(f.ctx, student)
	assert.False(t, cached)
	assert.Contains(t, cache.invalidated, student)

	snap, err = svc.Snapshot(f.ctx, student)
	require.NoError(t, err)
	assert.Equal(t, int64(200), snap.TotalXP)
	assert.Equal(t, 2, snap.Level)
	assert.Equal(t, int64(1), snap.SkillPoints.Available)
	assert.Equal(t, 1, snap.Streak.CurrentStreak)
	assert.Empty(t, snap.GuildID)
}

func TestSnapshot_UnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := NewProgressionService(f.core).Snapshot(f.ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHistory_NewestFirst(t *testing.T) {
	f := newFixture(t)
	teacher, student := f.teacher(), f.student()
	svc := NewProgressionService(f.core)

	f.grant(teacher, student, 10)
	f.grant(teacher, student, 20)
	f.grant(teacher, student, 30)

	gs, err := svc.History(f.ctx, student, 2)
	require.NoError(t, err)
	require.Len(t, gs, 2)
	assert.Equal(t, int64(30), gs[0].TotalAmount)
	assert.Equal(t, int64(20), gs[1].TotalAmount)
}

func TestEnsureUser(t *testing.T) {
	f := newFixture(t)
	id := uuid.NewString()

	u, err := f.core.EnsureUser(f.ctx, id, models.RoleStudent)
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, u.Role)

	u, err = f.core.EnsureUser(f.ctx, id, models.RoleTeacher)
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher, u.Role)

	u, err = f.core.EnsureUser(f.ctx, uuid.NewString(), models.Role("wizard"))
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, u.Role)

	_, err = f.core.EnsureUser(f.ctx, "not-a-uuid", models.RoleStudent)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSyncRoster(t *testing.T) {
	f := newFixture(t)
	teacher := f.teacher()
	newcomer := uuid.NewString()

	n, err := f.core.SyncRoster(f.ctx, []RosterEntry{
		{ID: teacher, DisplayName: "Ms. Novak", Leadership: 3},
		{ID: newcomer, DisplayName: "Petr", Leadership: 7},
		{ID: "garbage"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// unchanged entries are not rewritten
	n, err = f.core.SyncRoster(f.ctx, []RosterEntry{{ID: newcomer, DisplayName: "Petr", Leadership: 7}})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// roles stay with the gateway
	u, err := f.core.EnsureUser(f.ctx, teacher, models.RoleTeacher)
	require.NoError(t, err)
	assert.Equal(t, "Ms. Novak", u.DisplayName)
	assert.Equal(t, 3, u.Leadership)
}

// interleaveStore runs next once, right after the following transaction finishes.
type interleaveStore struct {
	inner store.Store
	next  func()
}

func (s *interleaveStore) Transaction(ctx context.Context, fn func(tx store.Tx) error) error {
	err := s.inner.Transaction(ctx, fn)
	if next := s.next; next != nil {
		s.next = nil
		next()
	}
	return err
}

func TestSnapshot_NotCachedWhenWriteCommitsDuringRead(t *testing.T) {
	cache := newMapCache()
	f := newFixture(t)
	st := &interleaveStore{inner: f.st}
	f.core = NewCore(Options{
		Store:    st,
		Now:      func() time.Time { return f.now },
		Location: time.UTC,
		Cache:    cache,
	})
	teacher, student := f.teacher(), f.student()
	svc := NewProgressionService(f.core)

	st.next = func() { f.grant(teacher, student, 200) }
	snap, err := svc.Snapshot(f.ctx, student)
	require.NoError(t, err)
	assert.Equal(t, int64(0), snap.TotalXP)

	_, cached := cache.GetSnapshot(f.ctx, student)
	assert.False(t, cached, "a snapshot older than the last commit was cached")

	snap, err = svc.Snapshot(f.ctx, student)
	require.NoError(t, err)
	assert.Equal(t, int64(200), snap.TotalXP)
	_, cached = cache.GetSnapshot(f.ctx, student)
	assert.True(t, cached)
}
