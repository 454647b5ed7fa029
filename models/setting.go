package models

import "time"

// Setting holds per-user income thresholds and display currency (one-to-one
// with User). A row is created with defaults on first read.
type Setting struct {
	ID                 uint      `gorm:"primaryKey" json:"-"`
	CreatedAt          time.Time `json:"-"`
	UpdatedAt          time.Time `json:"-"`
	UserID             uint      `gorm:"uniqueIndex;not null" json:"-"`
	MonthlyIncomeLimit int64     `gorm:"default:0" json:"monthly_income_limit"` // pence, 0 = no limit
	AnnualIncomeLimit  int64     `gorm:"default:0" json:"annual_income_limit"`  // pence, 0 = no limit
	WarnAtPercent      int       `gorm:"default:80" json:"warn_at_percent"`
	Currency           string    `gorm:"size:8;default:GBP" json:"currency"`
}
