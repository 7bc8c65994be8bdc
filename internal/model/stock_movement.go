package model

import (
	"time"

	"github.com/google/uuid"
)

// Stock movement kinds.
const (
	StockMovementInvoice = "invoice"
)

// StockMovement records every stock change applied by this service.
// Rows are immutable.
type StockMovement struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProductID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	Kind        string     `gorm:"type:varchar(20);not null"`
	Quantity    int        `gorm:"not null"` // negative = out
	StockBefore int        `gorm:"not null"`
	StockAfter  int        `gorm:"not null"`
	Reason      string
	ReferenceID *uuid.UUID `gorm:"type:uuid"`
	CreatedAt   time.Time
}
