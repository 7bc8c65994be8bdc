package model

import (
	"time"

	"github.com/google/uuid"
)

// Roles carried in the JWT. Staff is the privileged back-office role.
const (
	RoleStaff    = "staff"
	RoleCustomer = "customer"
)

// User stores an authenticated account. Token issuance reads it; the
// invoice workflow only sees the resulting claims.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Username     string    `gorm:"uniqueIndex;not null"`
	Email        *string
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"type:varchar(20);not null;default:'customer'"`
	IsActive     bool   `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsStaff reports whether the user holds the privileged role.
func (u *User) IsStaff() bool { return u.Role == RoleStaff }
