package service

import (
	"context"
	"errors"

	"github.com/VCalixtoR/gestaomt-back/internal/apierror"
	"github.com/VCalixtoR/gestaomt-back/internal/repository"

	"gorm.io/gorm"
)

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

// txFailure classifies an error that aborted a transaction. Domain errors
// raised inside the closure pass through; races surface as conflicts and
// anything else as a TransactionFailure carrying msg.
func txFailure(msg string, err error) error {
	if err == nil {
		return nil
	}
	var ae *apierror.Error
	switch {
	case errors.As(err, &ae):
		return err
	case errors.Is(err, repository.ErrStockChanged):
		return apierror.Conflictf("El stock fue modificado por otra operacion, intente nuevamente")
	case errors.Is(err, repository.ErrStatusChanged):
		return apierror.Conflictf("El estado fue modificado por otra operacion")
	case repository.IsUniqueViolation(err):
		return apierror.Conflictf("%s: registro duplicado", msg)
	default:
		return apierror.Transaction(msg, err)
	}
}
