package models

import "time"

// PeriodSelection remembers the last period a chat looked at.
type PeriodSelection struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	ChatID    int64     `gorm:"uniqueIndex;not null" json:"chat_id"`
	PeriodKey string    `gorm:"type:varchar(10);not null" json:"period_key"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PeriodSelection) TableName() string {
	return "period_selections"
}
