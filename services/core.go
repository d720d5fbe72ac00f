package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"classroom-economy/models"
	"classroom-economy/store"

	"github.com/google/uuid"
)

// DefaultDailyBudget is the XP ceiling a teacher gets per subject per day when no
// record exists yet.
const DefaultDailyBudget int64 = 1000

// SnapshotCache is the read-side cache for progression snapshots.
type SnapshotCache interface {
	GetSnapshot(ctx context.Context, userID string) (*Snapshot, bool)
	SetSnapshot(ctx context.Context, s *Snapshot)
	Invalidate(ctx context.Context, userIDs ...string)
}

type noopCache struct{}

func (noopCache) GetSnapshot(context.Context, string) (*Snapshot, bool) { return nil, false }
func (noopCache) SetSnapshot(context.Context, *Snapshot)                {}
func (noopCache) Invalidate(context.Context, ...string)                 {}

// writeVersions counts committed writes per user. A snapshot computed while the
// user's version moved must not be cached.
type writeVersions struct {
	mu sync.Mutex
	v  map[string]uint64
}

func (w *writeVersions) get(userID string) uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.v[userID]
}

func (w *writeVersions) bump(userIDs []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, id := range userIDs {
		w.v[id]++
	}
}

// Options configures the shared economy core.
type Options struct {
	Store              store.Store
	Now                func() time.Time
	Location           *time.Location
	DefaultDailyBudget int64
	Outbox             *OutboxDispatcher
	Cache              SnapshotCache
}

// Core holds the components every service composes. It owns no state of its own;
// all state lives behind Store.
type Core struct {
	Store    store.Store
	Location *time.Location
	now      func() time.Time

	Ledger     *RewardLedger
	Streaks    *StreakEngine
	Budget     *BudgetGuard
	Skills     *SkillPointAllocator
	Reputation *ReputationTracker
	GuildBonus *GuildBonusEngine
	Payouts    *PayoutDistributor

	outbox   *OutboxDispatcher
	cache    SnapshotCache
	versions *writeVersions
}

func NewCore(opts Options) *Core {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.DefaultDailyBudget <= 0 {
		opts.DefaultDailyBudget = DefaultDailyBudget
	}
	if opts.Cache == nil {
		opts.Cache = noopCache{}
	}
	c := &Core{
		Store:      opts.Store,
		Location:   opts.Location,
		now:        opts.Now,
		Ledger:     &RewardLedger{},
		Streaks:    &StreakEngine{},
		Budget:     &BudgetGuard{DefaultCeiling: opts.DefaultDailyBudget},
		Skills:     &SkillPointAllocator{},
		Reputation: &ReputationTracker{},
		GuildBonus: &GuildBonusEngine{},
		outbox:     opts.Outbox,
		cache:      opts.Cache,
		versions:   &writeVersions{v: map[string]uint64{}},
	}
	c.Payouts = &PayoutDistributor{core: c}
	return c
}

// Now returns the current time from the configured clock.
func (c *Core) Now() time.Time {
	return c.now()
}

// Today is the current calendar date in the configured location, as UTC midnight.
func (c *Core) Today() time.Time {
	return CivilDay(c.now(), c.Location)
}

// CivilDay maps t to its calendar date in loc, represented as midnight UTC so dates
// compare and subtract exactly.
func CivilDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween is the whole number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

// unit is one atomic unit of work: the open transaction plus what must happen once it
// commits.
type unit struct {
	tx      store.Tx
	now     time.Time
	day     time.Time
	touched map[string]struct{}
	emitted int
}

func (u *unit) touch(userIDs ...string) {
	for _, id := range userIDs {
		u.touched[id] = struct{}{}
	}
}

// emit queues an integration event in the same transaction as the change it describes.
func (u *unit) emit(kind models.OutboxKind, userID string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", kind, err)
	}
	u.emitted++
	return u.tx.AppendOutbox(&models.OutboxEvent{
		ID:        uuid.NewString(),
		Kind:      kind,
		UserID:    userID,
		Payload:   raw,
		Status:    models.OutboxPending,
		CreatedAt: u.now,
	})
}

// run executes fn as one unit of work. Nothing leaves the process until the commit
// succeeded: cache invalidation and outbox delivery happen afterwards.
func (c *Core) run(ctx context.Context, fn func(u *unit) error) error {
	now := c.now()
	var committed *unit
	err := c.Store.Transaction(ctx, func(tx store.Tx) error {
		u := &unit{
			tx:      tx,
			now:     now,
			day:     CivilDay(now, c.Location),
			touched: map[string]struct{}{},
		}
		if err := fn(u); err != nil {
			return err
		}
		committed = u
		return nil
	})
	if err != nil {
		return err
	}

	if len(committed.touched) > 0 {
		ids := make([]string, 0, len(committed.touched))
		for id := range committed.touched {
			ids = append(ids, id)
		}
		c.versions.bump(ids)
		c.cache.Invalidate(ctx, ids...)
	}
	if committed.emitted > 0 && c.outbox != nil {
		c.outbox.Kick()
	}
	return nil
}

// read runs fn in a transaction that is expected not to write.
func (c *Core) read(ctx context.Context, fn func(tx store.Tx) error) error {
	return c.Store.Transaction(ctx, fn)
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

func (c *Core) requireUser(tx store.Tx, id string) (*models.User, error) {
	u, err := tx.GetUser(id)
	if isNotFound(err) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// EnsureUser registers a user on first authentication. The gateway is authoritative for
// roles, so a changed role is written back.
func (c *Core) EnsureUser(ctx context.Context, id string, role models.Role) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, failf("user", "Ensure", ErrInvalidInput, "user id %q is not a uuid", id)
	}
	if !role.Valid() {
		role = models.RoleStudent
	}
	var out *models.User
	err := c.run(ctx, func(u *unit) error {
		user, err := u.tx.EnsureUser(&models.User{ID: id, Role: role})
		if err != nil {
			return err
		}
		if user.Role != role {
			user.Role = role
			if err := u.tx.SaveUser(user); err != nil {
				return err
			}
		}
		out = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// logf keeps the component prefix convention in one place.
func logf(component, format string, args ...any) {
	log.Printf("["+component+"] "+format, args...)
}

// RosterEntry is one user record from the school roster.
type RosterEntry struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Leadership  int    `json:"leadership"`
}

// SyncRoster upserts display names and leadership attributes. Roles are left to the
// gateway. Returns how many users were written.
func (c *Core) SyncRoster(ctx context.Context, entries []RosterEntry) (int, error) {
	n := 0
	err := c.run(ctx, func(u *unit) error {
		for _, e := range entries {
			if _, err := uuid.Parse(e.ID); err != nil {
				logf("Roster", "⚠️ skipping entry with bad id %q", e.ID)
				continue
			}
			user, err := u.tx.EnsureUser(&models.User{ID: e.ID, Role: models.RoleStudent})
			if err != nil {
				return err
			}
			if user.DisplayName == e.DisplayName && user.Leadership == e.Leadership {
				continue
			}
			user.DisplayName = e.DisplayName
			user.Leadership = e.Leadership
			if err := u.tx.SaveUser(user); err != nil {
				return err
			}
			u.touch(user.ID)
			n++
		}
		return nil
	})
	return n, err
}
