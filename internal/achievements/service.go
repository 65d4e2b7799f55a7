// Package achievements implements the award lifecycle: issuance and
// cancellation against the balance ledger, the student inbox, the audit log
// and balance reconciliation.
package achievements

import (
	"context"
	"errors"

	"github.com/gdg-garage/sputnik-ledger/internal/apperr"
	"github.com/gdg-garage/sputnik-ledger/internal/ledger"
	"github.com/gdg-garage/sputnik-ledger/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Notifier is told about committed issuances and cancellations. It must not
// block on delivery and has no way to fail the workflow.
type Notifier interface {
	AwardIssued(ctx context.Context, award models.IssuedAchievement)
	AwardCanceled(ctx context.Context, award models.IssuedAchievement)
}

type Service struct {
	db       *gorm.DB
	ledger   *ledger.Ledger
	notifier Notifier
	log      *zap.Logger
}

func NewService(db *gorm.DB, l *ledger.Ledger, notifier Notifier, log *zap.Logger) *Service {
	return &Service{
		db:       db,
		ledger:   l,
		notifier: notifier,
		log:      log.With(zap.String("service", "achievements")),
	}
}

// first loads one row into dest and maps a missing row to NotFound.
func first(tx *gorm.DB, dest any, what string, id uuid.UUID) error {
	err := tx.First(dest, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("%s %s not found", what, id)
	}
	if err != nil {
		return apperr.Wrap(err, "failed to load "+what)
	}
	return nil
}

func (s *Service) loadStudent(tx *gorm.DB, id uuid.UUID) (*models.User, error) {
	var student models.User
	err := tx.Where("role = ?", models.RoleStudent).First(&student, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("student %s not found", id)
	}
	if err != nil {
		return nil, apperr.Wrap(err, "failed to load student")
	}
	return &student, nil
}

// loadAward reads an award with everything notifications and responses
// render.
func loadAward(tx *gorm.DB, id uuid.UUID) (*models.IssuedAchievement, error) {
	var award models.IssuedAchievement
	err := tx.
		Preload("Achievement").
		Preload("Issuer").
		Preload("Student.Settings").
		Preload("Canceler").
		First(&award, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("issued achievement %s not found", id)
	}
	if err != nil {
		return nil, apperr.Wrap(err, "failed to load issued achievement")
	}
	return &award, nil
}
