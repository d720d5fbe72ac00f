package store

import (
	"context"
	"errors"
	"time"

	"classroom-economy/models"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore is the production store on PostgreSQL. Row locks are SELECT ... FOR UPDATE,
// so two units of work touching the same job, budget or balance serialize on that row.
type GormStore struct {
	DB *gorm.DB
}

// OpenPostgres connects with duplicate-key translation enabled so unique violations
// surface as ErrDuplicate.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

// Migrate creates or updates every table the economy owns.
func (s *GormStore) Migrate() error {
	return s.DB.AutoMigrate(
		&models.User{},
		&models.RewardGrant{},
		&models.StreakRecord{},
		&models.StreakMilestone{},
		&models.BudgetRecord{},
		&models.SkillPointBalance{},
		&models.Skill{},
		&models.UserSkill{},
		&models.ReputationRecord{},
		&models.Job{},
		&models.JobAssignment{},
		&models.PayoutRemainder{},
		&models.Guild{},
		&models.GuildMember{},
		&models.GuildBenefit{},
		&models.GuildActivity{},
		&models.Quest{},
		&models.QuestProgress{},
		&models.RewardEvent{},
		&models.EventParticipation{},
		&models.OutboxEvent{},
	)
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Tx) error) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	})
}

type gormTx struct {
	db *gorm.DB
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}

func (t *gormTx) forUpdate() *gorm.DB {
	return t.db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// insertIfMissing relies on the primary key to make lazy creation race-free.
func (t *gormTx) insertIfMissing(value any) error {
	return translate(t.db.Clauses(clause.OnConflict{DoNothing: true}).Create(value).Error)
}

// --- users ---

func (t *gormTx) GetUser(id string) (*models.User, error) {
	var u models.User
	if err := t.db.First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (t *gormTx) LockUser(id string) (*models.User, error) {
	var u models.User
	if err := t.forUpdate().First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (t *gormTx) EnsureUser(u *models.User) (*models.User, error) {
	if err := t.insertIfMissing(u); err != nil {
		return nil, err
	}
	return t.GetUser(u.ID)
}

func (t *gormTx) SaveUser(u *models.User) error {
	return translate(t.db.Save(u).Error)
}

// --- ledger ---

func (t *gormTx) AppendGrant(g *models.RewardGrant) error {
	return translate(t.db.Create(g).Error)
}

func (t *gormTx) SumGrants(userID string, currency models.Currency) (int64, error) {
	var total int64
	err := t.db.Model(&models.RewardGrant{}).
		Where("user_id = ? AND currency = ?", userID, currency).
		Select("COALESCE(SUM(total_amount), 0)").
		Scan(&total).Error
	return total, translate(err)
}

func (t *gormTx) ListGrants(userID string, limit int) ([]models.RewardGrant, error) {
	var grants []models.RewardGrant
	err := t.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&grants).Error
	return grants, translate(err)
}

func (t *gormTx) GrantsBetween(from, to time.Time) ([]models.RewardGrant, error) {
	var grants []models.RewardGrant
	err := t.db.Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at ASC").
		Find(&grants).Error
	return grants, translate(err)
}

// --- streaks ---

func (t *gormTx) LockStreak(userID string) (*models.StreakRecord, error) {
	if err := t.insertIfMissing(&models.StreakRecord{UserID: userID, CurrentMultiplier: decimal.NewFromInt(1)}); err != nil {
		return nil, err
	}
	var r models.StreakRecord
	if err := t.forUpdate().First(&r, "user_id = ?", userID).Error; err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

func (t *gormTx) SaveStreak(r *models.StreakRecord) error {
	return translate(t.db.Save(r).Error)
}

func (t *gormTx) StaleStreaks(before time.Time) ([]models.StreakRecord, error) {
	var recs []models.StreakRecord
	err := t.forUpdate().
		Where("current_streak > 0 AND last_activity_date < ?", before).
		Find(&recs).Error
	return recs, translate(err)
}

func (t *gormTx) HasMilestone(userID string, runStartedOn time.Time, days int) (bool, error) {
	var count int64
	err := t.db.Model(&models.StreakMilestone{}).
		Where("user_id = ? AND run_started_on = ? AND days = ?", userID, runStartedOn, days).
		Count(&count).Error
	return count > 0, translate(err)
}

func (t *gormTx) AddMilestone(m *models.StreakMilestone) error {
	return translate(t.db.Create(m).Error)
}

// --- budgets ---

func (t *gormTx) LockBudget(teacherID, subjectID string, day time.Time, defaultCeiling int64) (*models.BudgetRecord, error) {
	if err := t.insertIfMissing(&models.BudgetRecord{
		TeacherID:     teacherID,
		SubjectID:     subjectID,
		Day:           day,
		BudgetCeiling: defaultCeiling,
	}); err != nil {
		return nil, err
	}
	var b models.BudgetRecord
	err := t.forUpdate().
		Where("teacher_id = ? AND subject_id = ? AND day = ?", teacherID, subjectID, day).
		First(&b).Error
	if err != nil {
		return nil, translate(err)
	}
	return &b, nil
}

func (t *gormTx) SaveBudget(b *models.BudgetRecord) error {
	return translate(t.db.Save(b).Error)
}

func (t *gormTx) DeleteBudgetsBefore(day time.Time) (int64, error) {
	res := t.db.Where("day < ?", day).Delete(&models.BudgetRecord{})
	return res.RowsAffected, translate(res.Error)
}

// --- skill points ---

func (t *gormTx) LockSkillPoints(userID string) (*models.SkillPointBalance, error) {
	if err := t.insertIfMissing(&models.SkillPointBalance{UserID: userID, HighestLevelAwarded: 1}); err != nil {
		return nil, err
	}
	var b models.SkillPointBalance
	if err := t.forUpdate().First(&b, "user_id = ?", userID).Error; err != nil {
		return nil, translate(err)
	}
	return &b, nil
}

func (t *gormTx) SaveSkillPoints(b *models.SkillPointBalance) error {
	return translate(t.db.Save(b).Error)
}

func (t *gormTx) CreateSkill(s *models.Skill) error {
	return translate(t.db.Create(s).Error)
}

func (t *gormTx) GetSkill(id string) (*models.Skill, error) {
	var s models.Skill
	if err := t.db.First(&s, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (t *gormTx) GetUserSkill(userID, skillID string) (*models.UserSkill, error) {
	var us models.UserSkill
	err := t.forUpdate().
		Where("user_id = ? AND skill_id = ?", userID, skillID).
		First(&us).Error
	if err != nil {
		return nil, translate(err)
	}
	return &us, nil
}

func (t *gormTx) SaveUserSkill(us *models.UserSkill) error {
	return translate(t.db.Save(us).Error)
}

// --- reputation ---

func (t *gormTx) LockReputation(userID string) (*models.ReputationRecord, error) {
	if err := t.insertIfMissing(&models.ReputationRecord{UserID: userID}); err != nil {
		return nil, err
	}
	var r models.ReputationRecord
	if err := t.forUpdate().First(&r, "user_id = ?", userID).Error; err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

func (t *gormTx) SaveReputation(r *models.ReputationRecord) error {
	return translate(t.db.Save(r).Error)
}

// --- jobs ---

func (t *gormTx) CreateJob(j *models.Job) error {
	return translate(t.db.Create(j).Error)
}

func (t *gormTx) LockJob(id string) (*models.Job, error) {
	var j models.Job
	if err := t.forUpdate().First(&j, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &j, nil
}

func (t *gormTx) SaveJob(j *models.Job) error {
	return translate(t.db.Save(j).Error)
}

func (t *gormTx) ListAssignments(jobID string) ([]models.JobAssignment, error) {
	var as []models.JobAssignment
	err := t.db.Where("job_id = ?", jobID).
		Order("applied_at ASC, id ASC").
		Find(&as).Error
	return as, translate(err)
}

func (t *gormTx) GetAssignment(jobID, userID string) (*models.JobAssignment, error) {
	var a models.JobAssignment
	if err := t.db.Where("job_id = ? AND user_id = ?", jobID, userID).First(&a).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (t *gormTx) SaveAssignment(a *models.JobAssignment) error {
	return translate(t.db.Save(a).Error)
}

func (t *gormTx) AppendRemainder(r *models.PayoutRemainder) error {
	return translate(t.db.Create(r).Error)
}

// --- guilds ---

func (t *gormTx) CreateGuild(g *models.Guild) error {
	return translate(t.db.Create(g).Error)
}

func (t *gormTx) LockGuild(id string) (*models.Guild, error) {
	var g models.Guild
	if err := t.forUpdate().First(&g, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &g, nil
}

func (t *gormTx) GetGuildBySlug(slug string) (*models.Guild, error) {
	var g models.Guild
	if err := t.db.First(&g, "slug = ?", slug).Error; err != nil {
		return nil, translate(err)
	}
	return &g, nil
}

func (t *gormTx) SaveGuild(g *models.Guild) error {
	return translate(t.db.Save(g).Error)
}

func (t *gormTx) CreateBenefits(bs []models.GuildBenefit) error {
	if len(bs) == 0 {
		return nil
	}
	return translate(t.db.Create(&bs).Error)
}

func (t *gormTx) ListBenefits(guildID string) ([]models.GuildBenefit, error) {
	var bs []models.GuildBenefit
	err := t.db.Where("guild_id = ?", guildID).
		Order("required_level ASC").
		Find(&bs).Error
	return bs, translate(err)
}

func (t *gormTx) GetMembership(userID string) (*models.GuildMember, error) {
	var m models.GuildMember
	if err := t.db.First(&m, "user_id = ?", userID).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (t *gormTx) ListMembers(guildID string) ([]models.GuildMember, error) {
	var ms []models.GuildMember
	err := t.db.Where("guild_id = ?", guildID).
		Order("joined_at ASC").
		Find(&ms).Error
	return ms, translate(err)
}

func (t *gormTx) SaveMembership(m *models.GuildMember) error {
	return translate(t.db.Save(m).Error)
}

func (t *gormTx) DeleteMembership(userID string) error {
	return translate(t.db.Where("user_id = ?", userID).Delete(&models.GuildMember{}).Error)
}

func (t *gormTx) CountMembers(guildID string) (int64, error) {
	var count int64
	err := t.db.Model(&models.GuildMember{}).Where("guild_id = ?", guildID).Count(&count).Error
	return count, translate(err)
}

func (t *gormTx) AppendGuildActivity(a *models.GuildActivity) error {
	return translate(t.db.Create(a).Error)
}

// --- quests ---

func (t *gormTx) CreateQuest(q *models.Quest) error {
	return translate(t.db.Create(q).Error)
}

func (t *gormTx) GetQuest(id string) (*models.Quest, error) {
	var q models.Quest
	if err := t.db.First(&q, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &q, nil
}

func (t *gormTx) GetQuestProgress(questID, userID string) (*models.QuestProgress, error) {
	var p models.QuestProgress
	err := t.forUpdate().
		Where("quest_id = ? AND user_id = ?", questID, userID).
		First(&p).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (t *gormTx) SaveQuestProgress(p *models.QuestProgress) error {
	return translate(t.db.Save(p).Error)
}

// --- events ---

func (t *gormTx) CreateEvent(e *models.RewardEvent) error {
	return translate(t.db.Create(e).Error)
}

func (t *gormTx) LockEvent(id string) (*models.RewardEvent, error) {
	var e models.RewardEvent
	if err := t.forUpdate().First(&e, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &e, nil
}

func (t *gormTx) SaveEvent(e *models.RewardEvent) error {
	return translate(t.db.Save(e).Error)
}

func (t *gormTx) GetParticipation(eventID, userID string) (*models.EventParticipation, error) {
	var p models.EventParticipation
	if err := t.db.Where("event_id = ? AND user_id = ?", eventID, userID).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (t *gormTx) SaveParticipation(p *models.EventParticipation) error {
	return translate(t.db.Save(p).Error)
}

func (t *gormTx) ListParticipations(eventID string) ([]models.EventParticipation, error) {
	var ps []models.EventParticipation
	err := t.db.Where("event_id = ?", eventID).
		Order("joined_at ASC, user_id ASC").
		Find(&ps).Error
	return ps, translate(err)
}

// --- outbox ---

func (t *gormTx) AppendOutbox(e *models.OutboxEvent) error {
	return translate(t.db.Create(e).Error)
}

func (t *gormTx) PendingOutbox(limit int) ([]models.OutboxEvent, error) {
	var evs []models.OutboxEvent
	err := t.db.Where("status = ?", models.OutboxPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&evs).Error
	return evs, translate(err)
}

func (t *gormTx) ClaimableOutbox(limit int, staleBefore time.Time) ([]models.OutboxEvent, error) {
	var evs []models.OutboxEvent
	err := t.db.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ? OR (status = ? AND claimed_at < ?)", models.OutboxPending, models.OutboxClaimed, staleBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&evs).Error
	return evs, translate(err)
}

func (t *gormTx) SaveOutbox(e *models.OutboxEvent) error {
	return translate(t.db.Save(e).Error)
}
