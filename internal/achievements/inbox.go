package achievements

import (
	"context"
	"time"

	"github.com/gdg-garage/sputnik-ledger/internal/apperr"
	"github.com/gdg-garage/sputnik-ledger/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ListUnseen returns the student's active awards that are not acknowledged
// yet, newest first. Canceled awards never show up in the inbox.
func (s *Service) ListUnseen(ctx context.Context, studentID uuid.UUID) ([]models.IssuedAchievement, error) {
	var out []models.IssuedAchievement
	err := s.db.WithContext(ctx).
		Select("issued_achievements.*").
		Joins("JOIN award_acknowledgments ON award_acknowledgments.issued_achievement_id = issued_achievements.id").
		Where("award_acknowledgments.student_id = ? AND award_acknowledgments.seen = ?", studentID, false).
		Where("issued_achievements.is_canceled = ?", false).
		Preload("Achievement").
		Preload("Issuer").
		Order("issued_achievements.created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, apperr.Wrap(err, "failed to list unseen awards")
	}
	return out, nil
}

// MarkSeen acknowledges the given awards. IDs that do not belong to the
// student, or are already seen, are ignored. It returns how many awards
// changed state.
func (s *Service) MarkSeen(ctx context.Context, studentID uuid.UUID, awardIDs []uuid.UUID) (int64, error) {
	if len(awardIDs) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.AwardAcknowledgment{}).
		Where("student_id = ? AND issued_achievement_id IN ? AND seen = ?", studentID, awardIDs, false).
		Updates(map[string]any{"seen": true, "seen_at": time.Now()})
	if res.Error != nil {
		return 0, apperr.Wrap(res.Error, "failed to mark awards as seen")
	}
	if skipped := int64(len(awardIDs)) - res.RowsAffected; skipped > 0 {
		s.log.Debug("Ignored awards in mark-as-seen", zap.String("student_id", studentID.String()), zap.Int64("skipped", skipped))
	}
	return res.RowsAffected, nil
}
