package models

import (
	"time"

	"gorm.io/gorm"
)

// User is the local identity row. Created on first authenticated request, never deleted here.
type User struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Role        Role   `gorm:"type:varchar(16);not null;default:'student'" json:"role"`
	DisplayName string `json:"display_name,omitempty"`

	// Leadership is an attribute maintained by the character sheet; each point is worth
	// a 2% payout bonus on jobs, capped at +20%.
	Leadership int `json:"leadership" gorm:"default:0"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
