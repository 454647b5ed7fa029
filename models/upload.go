package models

import "time"

// Upload records a stored receipt image. StorePath is the public relative
// path handed back to the client and later saved on the expense as
// receipt_url.
type Upload struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`
	UserID      uint      `gorm:"index;not null" json:"-"`
	FileName    string    `gorm:"size:255;not null" json:"file_name"`
	StorePath   string    `gorm:"column:store_path;size:512" json:"store_path"` // e.g. public/receipts/xxx.jpg
	ContentType string    `gorm:"size:128" json:"content_type"`
	ExpenseID   *uint     `gorm:"index" json:"expense_id"` // set once the expense is saved
}
