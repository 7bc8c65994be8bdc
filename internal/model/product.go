package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the catalog row. Catalog CRUD lives elsewhere; this service
// reads name/brand/price and writes QuantityInStock under a row lock.
type Product struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name            string    `gorm:"index;not null"`
	Brand           string
	Price           decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	QuantityInStock int             `gorm:"not null;default:0"`
	Barcode         *string         `gorm:"uniqueIndex"`
	IsActive        bool            `gorm:"not null;default:true"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
