package achievements

import (
	"context"

	"github.com/gdg-garage/sputnik-ledger/internal/apperr"
	"github.com/gdg-garage/sputnik-ledger/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Issue awards an achievement to a student. The award row, the balance
// credit, the audit entry and the inbox entry commit together; the
// notification is enqueued only after commit.
func (s *Service) Issue(ctx context.Context, issuer models.Actor, studentID, achievementID uuid.UUID) (*models.IssuedAchievement, error) {
	if !issuer.Role.CanIssue() {
		return nil, apperr.Forbidden("role %q cannot issue achievements", issuer.Role)
	}

	var award *models.IssuedAchievement
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var achievement models.Achievement
		if err := first(tx, &achievement, "achievement", achievementID); err != nil {
			return err
		}
		if _, err := s.loadStudent(tx, studentID); err != nil {
			return err
		}
		var actor models.User
		if err := first(tx, &actor, "issuer", issuer.ID); err != nil {
			return err
		}

		created := models.IssuedAchievement{
			AchievementID: achievement.ID,
			IssuerID:      actor.ID,
			StudentID:     studentID,
			Reward:        achievement.Reward,
		}
		if err := tx.Omit(clause.Associations).Create(&created).Error; err != nil {
			return apperr.Wrap(err, "failed to record award")
		}

		if err := s.ledger.Credit(ctx, tx, studentID, created.Reward); err != nil {
			return err
		}

		operation := models.AchievementOperation{
			Type:                models.OperationIssue,
			ActorID:             actor.ID,
			IssuedAchievementID: created.ID,
		}
		if err := tx.Omit(clause.Associations).Create(&operation).Error; err != nil {
			return apperr.Wrap(err, "failed to append audit entry")
		}

		ack := models.AwardAcknowledgment{
			IssuedAchievementID: created.ID,
			StudentID:           studentID,
		}
		if err := tx.Create(&ack).Error; err != nil {
			return apperr.Wrap(err, "failed to create inbox entry")
		}

		loaded, err := loadAward(tx, created.ID)
		if err != nil {
			return err
		}
		award = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Achievement issued",
		zap.String("award_id", award.ID.String()),
		zap.String("achievement_id", award.AchievementID.String()),
		zap.String("issuer_id", award.IssuerID.String()),
		zap.String("student_id", award.StudentID.String()),
		zap.Int64("reward", award.Reward))

	if s.notifier != nil {
		s.notifier.AwardIssued(ctx, *award)
	}
	return award, nil
}
