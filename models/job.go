package models

import "time"

// Job is one income event: a cleaning job done for a client.
type Job struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`
	UserID      uint      `gorm:"index;not null" json:"-"`
	Date        time.Time `gorm:"not null" json:"date"`
	Client      string    `gorm:"size:255;not null" json:"client"`
	Description string    `gorm:"size:512" json:"description"`
	Amount      int64     `gorm:"not null" json:"amount"` // pence
	Paid        bool      `gorm:"default:false" json:"paid"`
	Method      string    `gorm:"size:16" json:"method"` // cash | bank | card | other
}
