package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrStockChanged means a conditional stock update matched no row: the
	// variant no longer holds enough units.
	ErrStockChanged = errors.New("repository: stock changed concurrently")
	// ErrStatusChanged means a status transition lost a race with another one.
	ErrStatusChanged = errors.New("repository: status changed concurrently")
)

func IsNotFound(err error) bool { return errors.Is(err, gorm.ErrRecordNotFound) }

// IsUniqueViolation reports a unique index hit (SQLSTATE 23505).
func IsUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
