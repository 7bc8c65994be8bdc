package model

import (
	"time"

	"github.com/google/uuid"
)

// Customer is a billing profile. UserID links it to at most one login;
// walk-in customers managed by staff have none.
type Customer struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID      *uuid.UUID `gorm:"type:uuid;uniqueIndex"`
	FirstName   string     `gorm:"not null"`
	LastName    string     `gorm:"not null"`
	PhoneNumber string
	Email       string `gorm:"uniqueIndex;not null"`
	Address     string
	ZipCode     string
	City        string
	Country     string
	IsActive    bool `gorm:"not null;default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (c *Customer) FullName() string { return c.FirstName + " " + c.LastName }
