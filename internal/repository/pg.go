package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrStaleInvoice means the invoice changed between read and write.
var ErrStaleInvoice = errors.New("invoice was modified concurrently")

// Postgres SQLSTATE codes the service layer cares about.
const (
	pgUniqueViolation   = "23505"
	pgLockNotAvailable  = "55P03"
	pgDeadlockDetected  = "40P01"
	pgSerializationFail = "40001"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsUniqueViolation reports a unique constraint failure.
func IsUniqueViolation(err error) bool {
	return pgCode(err) == pgUniqueViolation || errors.Is(err, gorm.ErrDuplicatedKey)
}

// IsLockTimeout reports lock_timeout expiry, a detected deadlock or a
// serialization failure. All are safe to retry.
func IsLockTimeout(err error) bool {
	switch pgCode(err) {
	case pgLockNotAvailable, pgDeadlockDetected, pgSerializationFail:
		return true
	}
	return false
}

// IsNotFound reports gorm's record-not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// SetLocalLockTimeout bounds row-lock waits for the rest of tx. It is a
// no-op outside Postgres and when tx is nil.
func SetLocalLockTimeout(tx *gorm.DB, d time.Duration) error {
	if tx == nil || d <= 0 || tx.Dialector.Name() != "postgres" {
		return nil
	}
	ms := d.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", ms)).Error
}
