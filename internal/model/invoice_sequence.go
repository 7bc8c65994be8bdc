package model

import "time"

// InvoiceSequence is the per-day counter behind generated invoice numbers.
// Day is the UTC date formatted YYYYMMDD.
type InvoiceSequence struct {
	Day       string `gorm:"type:char(8);primaryKey"`
	LastValue int    `gorm:"not null;default:0"`
	UpdatedAt time.Time
}
