package models

import "time"

// Expense is the persisted record produced when an expense entry is saved:
// the finalized (total, business portion) pair plus descriptive fields. Line
// items are a working-set concern and are never stored.
type Expense struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	CreatedAt       time.Time `json:"-"`
	UpdatedAt       time.Time `json:"-"`
	UserID          uint      `gorm:"index;not null" json:"-"`
	Date            time.Time `gorm:"not null" json:"date"`
	Merchant        string    `gorm:"size:255;not null" json:"merchant"`
	Category        string    `gorm:"size:64" json:"category"`
	Total           int64     `gorm:"not null" json:"total"`            // pence
	BusinessPortion int64     `gorm:"not null" json:"business_portion"` // pence
	Note            string    `gorm:"size:512" json:"note"`
	ReceiptURL      string    `gorm:"size:512" json:"receipt_url"`
}
