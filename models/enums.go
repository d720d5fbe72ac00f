package models

// Role is the caller's standing in the economy. Only teachers are budget-metered.
type Role string

const (
	RoleStudent  Role = "student"
	RoleTeacher  Role = "teacher"
	RoleOperator Role = "operator"
)

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleOperator:
		return true
	}
	return false
}

// CanIssue reports whether the role may hand out rewards at all.
func (r Role) CanIssue() bool {
	return r == RoleTeacher || r == RoleOperator
}

// Currency identifies which balance a RewardGrant moves.
type Currency string

const (
	CurrencyXP    Currency = "xp"
	CurrencyMoney Currency = "money"
)

func (c Currency) Valid() bool {
	return c == CurrencyXP || c == CurrencyMoney
}

// SourceType is what produced a grant.
type SourceType string

const (
	SourceManual            SourceType = "manual"
	SourceActivity          SourceType = "activity"
	SourceJob               SourceType = "job"
	SourceQuest             SourceType = "quest"
	SourceEvent             SourceType = "event"
	SourceStreakMilestone   SourceType = "streak_milestone"
	SourceGuildContribution SourceType = "guild_contribution"
)

func (s SourceType) Valid() bool {
	switch s {
	case SourceManual, SourceActivity, SourceJob, SourceQuest, SourceEvent,
		SourceStreakMilestone, SourceGuildContribution:
		return true
	}
	return false
}

// IsDebit is true for sources that take currency away from a user.
func (s SourceType) IsDebit() bool {
	return s == SourceGuildContribution
}

// BenefitType is the bonus channel a GuildBenefit feeds.
type BenefitType string

const (
	BenefitXPBonus         BenefitType = "xp_bonus"
	BenefitMoneyBonus      BenefitType = "money_bonus"
	BenefitReputationBonus BenefitType = "reputation_bonus"
)

func (b BenefitType) Valid() bool {
	switch b {
	case BenefitXPBonus, BenefitMoneyBonus, BenefitReputationBonus:
		return true
	}
	return false
}

type JobStatus string

const (
	JobOpen       JobStatus = "OPEN"
	JobInProgress JobStatus = "IN_PROGRESS"
	JobCompleted  JobStatus = "COMPLETED"
	JobCancelled  JobStatus = "CANCELLED"
)

// Payable reports whether a job in this status may still be closed and paid.
func (s JobStatus) Payable() bool {
	return s == JobOpen || s == JobInProgress
}

type AssignmentStatus string

const (
	AssignmentApplied   AssignmentStatus = "APPLIED"
	AssignmentApproved  AssignmentStatus = "APPROVED"
	AssignmentCompleted AssignmentStatus = "COMPLETED"
	AssignmentRejected  AssignmentStatus = "REJECTED"
)

type QuestStatus string

const (
	QuestAccepted  QuestStatus = "ACCEPTED"
	QuestCompleted QuestStatus = "COMPLETED"
)

type EventStatus string

const (
	EventScheduled EventStatus = "SCHEDULED"
	EventClosed    EventStatus = "CLOSED"
)

// OutboxKind is the closed set of integration events emitted after commit.
type OutboxKind string

const (
	OutboxXPGained        OutboxKind = "xp_gained"
	OutboxLevelUp         OutboxKind = "level_up"
	OutboxQuestCompleted  OutboxKind = "quest_completed"
	OutboxJobCompleted    OutboxKind = "job_completed"
	OutboxStreakMilestone OutboxKind = "streak_milestone"
	OutboxGuildLeveledUp  OutboxKind = "guild_leveled_up"
)

type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "pending"
	OutboxClaimed   OutboxStatus = "claimed"
	OutboxDelivered OutboxStatus = "delivered"
	OutboxFailed    OutboxStatus = "failed"
)

type GuildActivityKind string

const (
	GuildActivityCreated      GuildActivityKind = "created"
	GuildActivityJoined       GuildActivityKind = "member_joined"
	GuildActivityLeft         GuildActivityKind = "member_left"
	GuildActivityContribution GuildActivityKind = "contribution"
	GuildActivityLeveledUp    GuildActivityKind = "leveled_up"
)
