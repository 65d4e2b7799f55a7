package achievements

import (
	"context"
	"errors"

	"github.com/gdg-garage/sputnik-ledger/internal/apperr"
	"github.com/gdg-garage/sputnik-ledger/internal/models"
	"github.com/gdg-garage/sputnik-ledger/internal/pagination"
	"gorm.io/gorm"
)

var OperationPaginationConfig = pagination.Config{
	SortableColumns: []string{"created_at"},
	Columns:         map[string]string{"created_at": "achievement_operations.created_at"},
	DefaultSortBy:   []pagination.SortField{{Column: "created_at", Direction: pagination.Desc}},
	FilterableColumns: map[string]string{
		"type":       "achievement_operations.type",
		"actor_id":   "achievement_operations.actor_id",
		"student_id": "issued_achievements.student_id",
	},
	DefaultLimit: 20,
	MaxLimit:     100,
	TieBreaker:   "achievement_operations.id ASC",
}

// Operations pages through the audit log. Admins see everything, curators
// only operations on students of their own institute.
func (s *Service) Operations(ctx context.Context, requester models.Actor, q pagination.Query) (*pagination.Page[models.AchievementOperation], error) {
	db := s.db.WithContext(ctx)

	base := db.Model(&models.AchievementOperation{}).
		Joins("JOIN issued_achievements ON issued_achievements.id = achievement_operations.issued_achievement_id")

	switch requester.Role {
	case models.RoleAdmin:
	case models.RoleCurator:
		var curator models.User
		err := db.First(&curator, "id = ?", requester.ID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("curator %s not found", requester.ID)
		}
		if err != nil {
			return nil, apperr.Wrap(err, "failed to load curator")
		}
		if curator.InstituteID == nil {
			return nil, apperr.Forbidden("curator is not attached to an institute")
		}
		base = base.
			Joins("JOIN users AS students ON students.id = issued_achievements.student_id").
			Where("students.institute_id = ?", *curator.InstituteID)
	default:
		return nil, apperr.Forbidden("role %q cannot read the audit log", requester.Role)
	}

	page, err := pagination.Paginate[models.AchievementOperation](base, q, OperationPaginationConfig, func(tx *gorm.DB) *gorm.DB {
		return tx.
			Select("achievement_operations.*").
			Preload("Actor").
			Preload("IssuedAchievement.Achievement").
			Preload("IssuedAchievement.Student")
	})
	if err != nil {
		if apperr.KindOf(err) != apperr.KindInternal {
			return nil, err
		}
		return nil, apperr.Wrap(err, "failed to list operations")
	}
	return page, nil
}
