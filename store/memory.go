package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"classroom-economy/models"

	"github.com/shopspring/decimal"
)

// MemoryStore keeps everything in process. Transactions are serialized and work on a
// copy of the state that replaces the live state only when fn succeeds, which gives the
// same all-or-nothing behaviour as the database.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&memTx{s: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = work
	return nil
}

type pairKey struct{ a, b string }

type budgetKey struct {
	teacher, subject string
	day              time.Time
}

type milestoneKey struct {
	user string
	run  time.Time
	days int
}

type memState struct {
	users          map[string]models.User
	grants         []models.RewardGrant
	streaks        map[string]models.StreakRecord
	milestones     map[milestoneKey]models.StreakMilestone
	budgets        map[budgetKey]models.BudgetRecord
	skillPoints    map[string]models.SkillPointBalance
	skills         map[string]models.Skill
	userSkills     map[pairKey]models.UserSkill
	reputation     map[string]models.ReputationRecord
	jobs           map[string]models.Job
	assignments    map[string]models.JobAssignment
	remainders     []models.PayoutRemainder
	guilds         map[string]models.Guild
	benefits       []models.GuildBenefit
	members        map[string]models.GuildMember
	guildActivity  []models.GuildActivity
	quests         map[string]models.Quest
	questProgress  map[pairKey]models.QuestProgress
	events         map[string]models.RewardEvent
	participations map[pairKey]models.EventParticipation
	outbox         []models.OutboxEvent
}

func newMemState() *memState {
	return &memState{
		users:          map[string]models.User{},
		streaks:        map[string]models.StreakRecord{},
		milestones:     map[milestoneKey]models.StreakMilestone{},
		budgets:        map[budgetKey]models.BudgetRecord{},
		skillPoints:    map[string]models.SkillPointBalance{},
		skills:         map[string]models.Skill{},
		userSkills:     map[pairKey]models.UserSkill{},
		reputation:     map[string]models.ReputationRecord{},
		jobs:           map[string]models.Job{},
		assignments:    map[string]models.JobAssignment{},
		guilds:         map[string]models.Guild{},
		members:        map[string]models.GuildMember{},
		quests:         map[string]models.Quest{},
		questProgress:  map[pairKey]models.QuestProgress{},
		events:         map[string]models.RewardEvent{},
		participations: map[pairKey]models.EventParticipation{},
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (st *memState) clone() *memState {
	return &memState{
		users:          copyMap(st.users),
		grants:         append([]models.RewardGrant(nil), st.grants...),
		streaks:        copyMap(st.streaks),
		milestones:     copyMap(st.milestones),
		budgets:        copyMap(st.budgets),
		skillPoints:    copyMap(st.skillPoints),
		skills:         copyMap(st.skills),
		userSkills:     copyMap(st.userSkills),
		reputation:     copyMap(st.reputation),
		jobs:           copyMap(st.jobs),
		assignments:    copyMap(st.assignments),
		remainders:     append([]models.PayoutRemainder(nil), st.remainders...),
		guilds:         copyMap(st.guilds),
		benefits:       append([]models.GuildBenefit(nil), st.benefits...),
		members:        copyMap(st.members),
		guildActivity:  append([]models.GuildActivity(nil), st.guildActivity...),
		quests:         copyMap(st.quests),
		questProgress:  copyMap(st.questProgress),
		events:         copyMap(st.events),
		participations: copyMap(st.participations),
		outbox:         append([]models.OutboxEvent(nil), st.outbox...),
	}
}

type memTx struct {
	s *memState
}

func ptr[T any](v T) *T { return &v }

func stamp(t *time.Time) {
	if t.IsZero() {
		*t = time.Now().UTC()
	}
}

// --- users ---

func (t *memTx) GetUser(id string) (*models.User, error) {
	u, ok := t.s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return ptr(u), nil
}

// LockUser is GetUser: memory transactions are already serialized.
func (t *memTx) LockUser(id string) (*models.User, error) {
	return t.GetUser(id)
}

func (t *memTx) EnsureUser(u *models.User) (*models.User, error) {
	if existing, ok := t.s.users[u.ID]; ok {
		return ptr(existing), nil
	}
	stamp(&u.CreatedAt)
	u.UpdatedAt = u.CreatedAt
	t.s.users[u.ID] = *u
	return ptr(*u), nil
}

func (t *memTx) SaveUser(u *models.User) error {
	u.UpdatedAt = time.Now().UTC()
	t.s.users[u.ID] = *u
	return nil
}

// --- ledger ---

func (t *memTx) AppendGrant(g *models.RewardGrant) error {
	stamp(&g.CreatedAt)
	t.s.grants = append(t.s.grants, *g)
	return nil
}

func (t *memTx) SumGrants(userID string, currency models.Currency) (int64, error) {
	var total int64
	for _, g := range t.s.grants {
		if g.UserID == userID && g.Currency == currency {
			total += g.TotalAmount
		}
	}
	return total, nil
}

func (t *memTx) ListGrants(userID string, limit int) ([]models.RewardGrant, error) {
	var out []models.RewardGrant
	for i := len(t.s.grants) - 1; i >= 0; i-- {
		if t.s.grants[i].UserID != userID {
			continue
		}
		out = append(out, t.s.grants[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (t *memTx) GrantsBetween(from, to time.Time) ([]models.RewardGrant, error) {
	var out []models.RewardGrant
	for _, g := range t.s.grants {
		if !g.CreatedAt.Before(from) && g.CreatedAt.Before(to) {
			out = append(out, g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// --- streaks ---

func (t *memTx) LockStreak(userID string) (*models.StreakRecord, error) {
	r, ok := t.s.streaks[userID]
	if !ok {
		r = models.StreakRecord{UserID: userID, CurrentMultiplier: decimal.NewFromInt(1)}
		t.s.streaks[userID] = r
	}
	return ptr(r), nil
}

func (t *memTx) SaveStreak(r *models.StreakRecord) error {
	r.UpdatedAt = time.Now().UTC()
	t.s.streaks[r.UserID] = *r
	return nil
}

func (t *memTx) StaleStreaks(before time.Time) ([]models.StreakRecord, error) {
	var out []models.StreakRecord
	for _, r := range t.s.streaks {
		if r.CurrentStreak > 0 && r.LastActivityDate != nil && r.LastActivityDate.Before(before) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (t *memTx) HasMilestone(userID string, runStartedOn time.Time, days int) (bool, error) {
	_, ok := t.s.milestones[milestoneKey{userID, runStartedOn, days}]
	return ok, nil
}

func (t *memTx) AddMilestone(m *models.StreakMilestone) error {
	k := milestoneKey{m.UserID, m.RunStartedOn, m.Days}
	if _, ok := t.s.milestones[k]; ok {
		return ErrDuplicate
	}
	t.s.milestones[k] = *m
	return nil
}

// --- budgets ---

func (t *memTx) LockBudget(teacherID, subjectID string, day time.Time, defaultCeiling int64) (*models.BudgetRecord, error) {
	k := budgetKey{teacherID, subjectID, day}
	b, ok := t.s.budgets[k]
	if !ok {
		b = models.BudgetRecord{TeacherID: teacherID, SubjectID: subjectID, Day: day, BudgetCeiling: defaultCeiling}
		t.s.budgets[k] = b
	}
	return ptr(b), nil
}

func (t *memTx) SaveBudget(b *models.BudgetRecord) error {
	b.UpdatedAt = time.Now().UTC()
	t.s.budgets[budgetKey{b.TeacherID, b.SubjectID, b.Day}] = *b
	return nil
}

func (t *memTx) DeleteBudgetsBefore(day time.Time) (int64, error) {
	var n int64
	for k := range t.s.budgets {
		if k.day.Before(day) {
			delete(t.s.budgets, k)
			n++
		}
	}
	return n, nil
}

// --- skill points ---

func (t *memTx) LockSkillPoints(userID string) (*models.SkillPointBalance, error) {
	b, ok := t.s.skillPoints[userID]
	if !ok {
		b = models.SkillPointBalance{UserID: userID, HighestLevelAwarded: 1}
		t.s.skillPoints[userID] = b
	}
	return ptr(b), nil
}

func (t *memTx) SaveSkillPoints(b *models.SkillPointBalance) error {
	b.UpdatedAt = time.Now().UTC()
	t.s.skillPoints[b.UserID] = *b
	return nil
}

func (t *memTx) CreateSkill(s *models.Skill) error {
	if _, ok := t.s.skills[s.ID]; ok {
		return ErrDuplicate
	}
	stamp(&s.CreatedAt)
	t.s.skills[s.ID] = *s
	return nil
}

func (t *memTx) GetSkill(id string) (*models.Skill, error) {
	s, ok := t.s.skills[id]
	if !ok {
		return nil, ErrNotFound
	}
	return ptr(s), nil
}

func (t *memTx) GetUserSkill(userID, skillID string) (*models.UserSkill, error) {
	us, ok := t.s.userSkills[pairKey{userID, skillID}]
	if !ok {
		return nil, ErrNotFound
	}
	return ptr(us), nil
}

func (t *memTx) SaveUserSkill(us *models.UserSkill) error {
	stamp(&us.CreatedAt)
	us.UpdatedAt = time.Now().UTC()
	t.s.userSkills[pairKey{us.UserID, us.SkillID}] = *us
	return nil
}

// --- reputation ---

func (t *memTx) LockReputation(userID string) (*models.ReputationRecord, error) {
	r, ok := t.s.reputation[userID]
	if !ok {
		r = models.ReputationRecord{UserID: userID}
		t.s.reputation[userID] = r
	}
	return ptr(r), nil
}

func (t *memTx) SaveReputation(r *models.ReputationRecord) error {
	r.UpdatedAt = time.Now().UTC()
	t.s.reputation[r.UserID] = *r
	return nil
}

// --- jobs ---

func (t *memTx) CreateJob(j *models.Job) error {
	if _, ok := t.s.jobs[j.ID]; ok {
		return ErrDuplicate
	}
	stamp(&j.CreatedAt)
	j.UpdatedAt = j.CreatedAt
	t.s.jobs[j.ID] = *j
	return nil
}

func (t *memTx) LockJob(id string) (*models.Job, error) {
	j, ok := t.s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return ptr(j), nil
}

func (t *memTx) SaveJob(j *models.Job) error {
	j.UpdatedAt = time.Now().UTC()
	t.s.jobs[j.ID] = *j
	return nil
}

func (t *memTx) ListAssignments(jobID string) ([]models.JobAssignment, error) {
	var out []models.JobAssignment
	for _, a := range t.s.assignments {
		if a.JobID == jobID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AppliedAt.Equal(out[j].AppliedAt) {
			return out[i].AppliedAt.Before(out[j].AppliedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *memTx) GetAssignment(jobID, userID string) (*models.JobAssignment, error) {
	for _, a := range t.s.assignments {
		if a.JobID == jobID && a.UserID == userID {
			return ptr(a), nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) SaveAssignment(a *models.JobAssignment) error {
	for id, existing := range t.s.assignments {
		if id != a.ID && existing.JobID == a.JobID && existing.UserID == a.UserID {
			return ErrDuplicate
		}
	}
	t.s.assignments[a.ID] = *a
	return nil
}

func (t *memTx) AppendRemainder(r *models.PayoutRemainder) error {
	stamp(&r.CreatedAt)
	t.s.remainders = append(t.s.remainders, *r)
	return nil
}

// --- guilds ---

func (t *memTx) CreateGuild(g *models.Guild) error {
	for _, existing := range t.s.guilds {
		if existing.ID == g.ID || existing.Slug == g.Slug {
			return ErrDuplicate
		}
	}
	stamp(&g.CreatedAt)
	g.UpdatedAt = g.CreatedAt
	t.s.guilds[g.ID] = *g
	return nil
}

func (t *memTx) LockGuild(id string) (*models.Guild, error) {
	g, ok := t.s.guilds[id]
	if !ok {
		return nil, ErrNotFound
	}
	return ptr(g), nil
}

func (t *memTx) GetGuildBySlug(slug string) (*models.Guild, error) {
	for _, g := range t.s.guilds {
		if g.Slug == slug {
			return ptr(g), nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) SaveGuild(g *models.Guild) error {
	g.UpdatedAt = time.Now().UTC()
	t.s.guilds[g.ID] = *g
	return nil
}

func (t *memTx) CreateBenefits(bs []models.GuildBenefit) error {
	t.s.benefits = append(t.s.benefits, bs...)
	return nil
}

func (t *memTx) ListBenefits(guildID string) ([]models.GuildBenefit, error) {
	var out []models.GuildBenefit
	for _, b := range t.s.benefits {
		if b.GuildID == guildID {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RequiredLevel < out[j].RequiredLevel })
	return out, nil
}

func (t *memTx) GetMembership(userID string) (*models.GuildMember, error) {
	m, ok := t.s.members[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return ptr(m), nil
}

func (t *memTx) ListMembers(guildID string) ([]models.GuildMember, error) {
	var out []models.GuildMember
	for _, m := range t.s.members {
		if m.GuildID == guildID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (t *memTx) SaveMembership(m *models.GuildMember) error {
	t.s.members[m.UserID] = *m
	return nil
}

func (t *memTx) DeleteMembership(userID string) error {
	delete(t.s.members, userID)
	return nil
}

func (t *memTx) CountMembers(guildID string) (int64, error) {
	var n int64
	for _, m := range t.s.members {
		if m.GuildID == guildID {
			n++
		}
	}
	return n, nil
}

func (t *memTx) AppendGuildActivity(a *models.GuildActivity) error {
	stamp(&a.CreatedAt)
	t.s.guildActivity = append(t.s.guildActivity, *a)
	return nil
}

// --- quests ---

func (t *memTx) CreateQuest(q *models.Quest) error {
	if _, ok := t.s.quests[q.ID]; ok {
		return ErrDuplicate
	}
	stamp(&q.CreatedAt)
	q.UpdatedAt = q.CreatedAt
	t.s.quests[q.ID] = *q
	return nil
}

func (t *memTx) GetQuest(id string) (*models.Quest, error) {
	q, ok := t.s.quests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return ptr(q), nil
}

func (t *memTx) GetQuestProgress(questID, userID string) (*models.QuestProgress, error) {
	p, ok := t.s.questProgress[pairKey{questID, userID}]
	if !ok {
		return nil, ErrNotFound
	}
	return ptr(p), nil
}

func (t *memTx) SaveQuestProgress(p *models.QuestProgress) error {
	t.s.questProgress[pairKey{p.QuestID, p.UserID}] = *p
	return nil
}

// --- events ---

func (t *memTx) CreateEvent(e *models.RewardEvent) error {
	if _, ok := t.s.events[e.ID]; ok {
		return ErrDuplicate
	}
	stamp(&e.CreatedAt)
	e.UpdatedAt = e.CreatedAt
	t.s.events[e.ID] = *e
	return nil
}

func (t *memTx) LockEvent(id string) (*models.RewardEvent, error) {
	e, ok := t.s.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	return ptr(e), nil
}

func (t *memTx) SaveEvent(e *models.RewardEvent) error {
	e.UpdatedAt = time.Now().UTC()
	t.s.events[e.ID] = *e
	return nil
}

func (t *memTx) GetParticipation(eventID, userID string) (*models.EventParticipation, error) {
	p, ok := t.s.participations[pairKey{eventID, userID}]
	if !ok {
		return nil, ErrNotFound
	}
	return ptr(p), nil
}

func (t *memTx) SaveParticipation(p *models.EventParticipation) error {
	t.s.participations[pairKey{p.EventID, p.UserID}] = *p
	return nil
}

func (t *memTx) ListParticipations(eventID string) ([]models.EventParticipation, error) {
	var out []models.EventParticipation
	for _, p := range t.s.participations {
		if p.EventID == eventID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

// --- outbox ---

func (t *memTx) AppendOutbox(e *models.OutboxEvent) error {
	stamp(&e.CreatedAt)
	t.s.outbox = append(t.s.outbox, *e)
	return nil
}

func (t *memTx) PendingOutbox(limit int) ([]models.OutboxEvent, error) {
	var out []models.OutboxEvent
	for _, e := range t.s.outbox {
		if e.Status != models.OutboxPending {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (t *memTx) ClaimableOutbox(limit int, staleBefore time.Time) ([]models.OutboxEvent, error) {
	var out []models.OutboxEvent
	for _, e := range t.s.outbox {
		stale := e.Status == models.OutboxClaimed && e.ClaimedAt != nil && e.ClaimedAt.Before(staleBefore)
		if e.Status != models.OutboxPending && !stale {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (t *memTx) SaveOutbox(e *models.OutboxEvent) error {
	for i := range t.s.outbox {
		if t.s.outbox[i].ID == e.ID {
			t.s.outbox[i] = *e
			return nil
		}
	}
	return ErrNotFound
}
