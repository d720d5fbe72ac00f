package models

import "time"

// BudgetRecord meters one teacher's XP issuance for one subject on one calendar day.
type BudgetRecord struct {
	TeacherID     string    `gorm:"primaryKey;type:uuid" json:"teacher_id"`
	SubjectID     string    `gorm:"primaryKey;type:varchar(64)" json:"subject_id"`
	Day           time.Time `gorm:"primaryKey;type:date" json:"day"`
	BudgetCeiling int64     `gorm:"not null" json:"budget_ceiling"`
	UsedAmount    int64     `gorm:"not null;default:0" json:"used_amount"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Remaining is what can still be issued today.
func (b *BudgetRecord) Remaining() int64 {
	if b.UsedAmount >= b.BudgetCeiling {
		return 0
	}
	return b.BudgetCeiling - b.UsedAmount
}
