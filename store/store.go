// Package store is the transactional persistence boundary of the economy. Services
// only ever see Store and Tx; every multi-step mutation runs inside one Transaction.
package store

import (
	"context"
	"errors"
	"time"

	"classroom-economy/models"
)

var (
	// ErrNotFound is returned by getters when the row does not exist.
	ErrNotFound = errors.New("store: record not found")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("store: duplicate key")
)

// Store runs units of work. fn's writes are committed only when fn returns nil;
// any error (or panic) discards all of them.
type Store interface {
	Transaction(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of typed operations available inside a unit of work.
// Lock* methods take a row lock held until the transaction ends and create the row
// with its defaults if it is missing.
type Tx interface {
	GetUser(id string) (*models.User, error)
	// LockUser serializes every unit of work that spends from the user's money balance.
	LockUser(id string) (*models.User, error)
	EnsureUser(u *models.User) (*models.User, error)
	SaveUser(u *models.User) error

	AppendGrant(g *models.RewardGrant) error
	SumGrants(userID string, currency models.Currency) (int64, error)
	ListGrants(userID string, limit int) ([]models.RewardGrant, error)
	GrantsBetween(from, to time.Time) ([]models.RewardGrant, error)

	LockStreak(userID string) (*models.StreakRecord, error)
	SaveStreak(r *models.StreakRecord) error
	StaleStreaks(before time.Time) ([]models.StreakRecord, error)
	HasMilestone(userID string, runStartedOn time.Time, days int) (bool, error)
	AddMilestone(m *models.StreakMilestone) error

	LockBudget(teacherID, subjectID string, day time.Time, defaultCeiling int64) (*models.BudgetRecord, error)
	SaveBudget(b *models.BudgetRecord) error
	DeleteBudgetsBefore(day time.Time) (int64, error)

	LockSkillPoints(userID string) (*models.SkillPointBalance, error)
	SaveSkillPoints(b *models.SkillPointBalance) error
	CreateSkill(s *models.Skill) error
	GetSkill(id string) (*models.Skill, error)
	GetUserSkill(userID, skillID string) (*models.UserSkill, error)
	SaveUserSkill(us *models.UserSkill) error

	LockReputation(userID string) (*models.ReputationRecord, error)
	SaveReputation(r *models.ReputationRecord) error

	CreateJob(j *models.Job) error
	LockJob(id string) (*models.Job, error)
	SaveJob(j *models.Job) error
	ListAssignments(jobID string) ([]models.JobAssignment, error)
	GetAssignment(jobID, userID string) (*models.JobAssignment, error)
	SaveAssignment(a *models.JobAssignment) error
	AppendRemainder(r *models.PayoutRemainder) error

	CreateGuild(g *models.Guild) error
	LockGuild(id string) (*models.Guild, error)
	GetGuildBySlug(slug string) (*models.Guild, error)
	SaveGuild(g *models.Guild) error
	CreateBenefits(bs []models.GuildBenefit) error
	ListBenefits(guildID string) ([]models.GuildBenefit, error)
	GetMembership(userID string) (*models.GuildMember, error)
	ListMembers(guildID string) ([]models.GuildMember, error)
	SaveMembership(m *models.GuildMember) error
	DeleteMembership(userID string) error
	CountMembers(guildID string) (int64, error)
	AppendGuildActivity(a *models.GuildActivity) error

	CreateQuest(q *models.Quest) error
	GetQuest(id string) (*models.Quest, error)
	GetQuestProgress(questID, userID string) (*models.QuestProgress, error)
	SaveQuestProgress(p *models.QuestProgress) error

	CreateEvent(e *models.RewardEvent) error
	LockEvent(id string) (*models.RewardEvent, error)
	SaveEvent(e *models.RewardEvent) error
	GetParticipation(eventID, userID string) (*models.EventParticipation, error)
	SaveParticipation(p *models.EventParticipation) error
	ListParticipations(eventID string) ([]models.EventParticipation, error)

	AppendOutbox(e *models.OutboxEvent) error
	PendingOutbox(limit int) ([]models.OutboxEvent, error)
	// ClaimableOutbox returns pending rows plus claimed rows whose claim is older than
	// staleBefore, oldest first.
	ClaimableOutbox(limit int, staleBefore time.Time) ([]models.OutboxEvent, error)
	SaveOutbox(e *models.OutboxEvent) error
}
