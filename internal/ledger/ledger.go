// Package ledger owns the student balance column. Every mutation is a single
// additive UPDATE so concurrent credits and debits to one user serialize on
// the row without a read-modify-write in application code.
package ledger

import (
	"context"
	"errors"

	"github.com/gdg-garage/sputnik-ledger/internal/apperr"
	"github.com/gdg-garage/sputnik-ledger/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Ledger struct {
	db  *gorm.DB
	log *zap.Logger
}

func New(db *gorm.DB, log *zap.Logger) *Ledger {
	return &Ledger{db: db, log: log.With(zap.String("service", "ledger"))}
}

// Credit adds amount to the user's balance. tx is the caller's transaction;
// nil runs the update on its own.
func (l *Ledger) Credit(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount int64) error {
	if amount < 0 {
		return apperr.Invalid("credit amount must be non-negative, got %d", amount)
	}
	return l.apply(ctx, tx, userID, amount)
}

// Debit subtracts amount from the user's balance. The result is not clamped
// at zero: balance must stay equal to the sum of the user's active rewards.
func (l *Ledger) Debit(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount int64) error {
	if amount < 0 {
		return apperr.Invalid("debit amount must be non-negative, got %d", amount)
	}
	return l.apply(ctx, tx, userID, -amount)
}

func (l *Ledger) apply(ctx context.Context, tx *gorm.DB, userID uuid.UUID, delta int64) error {
	if tx == nil {
		tx = l.db
	}
	res := tx.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("balance", gorm.Expr("balance + ?", delta))
	if res.Error != nil {
		l.log.Error("Failed to update balance", zap.Error(res.Error), zap.String("user_id", userID.String()), zap.Int64("delta", delta))
		return apperr.Wrap(res.Error, "failed to update balance")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("user %s not found", userID)
	}
	return nil
}

// Balance reads the current balance.
func (l *Ledger) Balance(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error) {
	if tx == nil {
		tx = l.db
	}
	var user models.User
	err := tx.WithContext(ctx).Select("id", "balance").First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, apperr.NotFound("user %s not found", userID)
	}
	if err != nil {
		return 0, apperr.Wrap(err, "failed to read balance")
	}
	return user.Balance, nil
}
