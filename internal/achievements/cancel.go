package achievements

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gdg-garage/sputnik-ledger/internal/apperr"
	"github.com/gdg-garage/sputnik-ledger/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxReasonLength = 255

// NormalizeReason trims a free-text cancellation reason and checks its
// length.
func NormalizeReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", apperr.Invalid("cancellation reason is required")
	}
	if utf8.RuneCountInString(reason) > maxReasonLength {
		return "", apperr.Invalid("cancellation reason is longer than %d characters", maxReasonLength)
	}
	return reason, nil
}

// Cancel reverses an active award: flips it to canceled, debits the reward
// snapshot and appends an audit entry, all in one transaction. Canceling an
// already canceled award is a Conflict and leaves the balance untouched.
func (s *Service) Cancel(ctx context.Context, canceler models.Actor, awardID uuid.UUID, reason string) (*models.IssuedAchievement, error) {
	if !canceler.Role.CanIssue() {
		return nil, apperr.Forbidden("role %q cannot cancel achievements", canceler.Role)
	}
	reason, err := NormalizeReason(reason)
	if err != nil {
		return nil, err
	}

	var award *models.IssuedAchievement
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.IssuedAchievement
		if err := first(tx, &current, "issued achievement", awardID); err != nil {
			return err
		}
		if current.IsCanceled {
			return apperr.Conflict("issued achievement %s is already canceled", awardID)
		}
		var actor models.User
		if err := first(tx, &actor, "canceler", canceler.ID); err != nil {
			return err
		}

		// The is_canceled guard makes the flip single-shot even when two
		// cancellations read the award as active at the same time.
		now := time.Now()
		res := tx.Model(&models.IssuedAchievement{}).
			Where("id = ? AND is_canceled = ?", awardID, false).
			Updates(map[string]any{
				"is_canceled":         true,
				"cancellation_reason": reason,
				"canceler_id":         actor.ID,
				"canceled_at":         now,
			})
		if res.Error != nil {
			return apperr.Wrap(res.Error, "failed to cancel award")
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("issued achievement %s is already canceled", awardID)
		}

		if err := s.ledger.Debit(ctx, tx, current.StudentID, current.Reward); err != nil {
			return err
		}

		operation := models.AchievementOperation{
			Type:                models.OperationCancel,
			ActorID:             actor.ID,
			IssuedAchievementID: awardID,
		}
		if err := tx.Omit(clause.Associations).Create(&operation).Error; err != nil {
			return apperr.Wrap(err, "failed to append audit entry")
		}

		loaded, err := loadAward(tx, awardID)
		if err != nil {
			return err
		}
		award = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Achievement canceled",
		zap.String("award_id", award.ID.String()),
		zap.String("canceler_id", canceler.ID.String()),
		zap.String("student_id", award.StudentID.String()),
		zap.Int64("reward", award.Reward))

	if s.notifier != nil {
		s.notifier.AwardCanceled(ctx, *award)
	}
	return award, nil
}
