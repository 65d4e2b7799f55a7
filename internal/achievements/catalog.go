package achievements

import (
	"context"
	"strings"
	"time"

	"github.com/gdg-garage/sputnik-ledger/internal/apperr"
	"github.com/gdg-garage/sputnik-ledger/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CreateAchievementInput struct {
	Name               string
	Type               models.AchievementType
	Category           models.AchievementCategory
	Rarity             models.AchievementRarity
	Reward             int64
	HiddenIconPath     string
	OpenedIconPath     string
	SputnikRequirement string
	StudentRequirement string
	Hint               *string
	RoflDescription    *string
}

func (in CreateAchievementInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return apperr.Invalid("achievement name is required")
	}
	if in.Reward < 0 {
		return apperr.Invalid("reward must be non-negative, got %d", in.Reward)
	}
	switch in.Rarity {
	case models.RarityCommon, models.RarityRare, models.RarityEpic, models.RarityLegendary:
	default:
		return apperr.Invalid("unknown rarity %q", in.Rarity)
	}
	switch in.Type {
	case models.AchievementTypeRegular, models.AchievementTypeEvent, models.AchievementTypeSecret:
	default:
		return apperr.Invalid("unknown achievement type %q", in.Type)
	}
	return nil
}

// CreateAchievement adds a catalog entry. Only admins maintain the catalog.
func (s *Service) CreateAchievement(ctx context.Context, actor models.Actor, in CreateAchievementInput) (*models.Achievement, error) {
	if actor.Role != models.RoleAdmin {
		return nil, apperr.Forbidden("only admins can create achievements")
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	achievement := models.Achievement{
		Name:               strings.TrimSpace(in.Name),
		Type:               in.Type,
		Category:           in.Category,
		Rarity:             in.Rarity,
		Reward:             in.Reward,
		HiddenIconPath:     in.HiddenIconPath,
		OpenedIconPath:     in.OpenedIconPath,
		SputnikRequirement: in.SputnikRequirement,
		StudentRequirement: in.StudentRequirement,
		Hint:               in.Hint,
		RoflDescription:    in.RoflDescription,
	}
	if err := s.db.WithContext(ctx).Create(&achievement).Error; err != nil {
		return nil, apperr.Wrap(err, "failed to create achievement")
	}
	s.log.Info("Achievement created", zap.String("achievement_id", achievement.ID.String()), zap.Int64("reward", achievement.Reward))
	return &achievement, nil
}

func (s *Service) ListAchievements(ctx context.Context) ([]models.Achievement, error) {
	var out []models.Achievement
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&out).Error; err != nil {
		return nil, apperr.Wrap(err, "failed to list achievements")
	}
	return out, nil
}

func (s *Service) GetAchievement(ctx context.Context, id uuid.UUID) (*models.Achievement, error) {
	var achievement models.Achievement
	if err := first(s.db.WithContext(ctx), &achievement, "achievement", id); err != nil {
		return nil, err
	}
	return &achievement, nil
}

// CatalogEntry is a catalog achievement as seen by one user.
type CatalogEntry struct {
	Achievement models.Achievement
	Unlocked    bool
	UnlockedAt  *time.Time
}

// AchievementsForUser returns the whole catalog, marking the entries the
// user holds at least one active award for.
func (s *Service) AchievementsForUser(ctx context.Context, userID uuid.UUID) ([]CatalogEntry, error) {
	catalog, err := s.ListAchievements(ctx)
	if err != nil {
		return nil, err
	}

	var active []models.IssuedAchievement
	err = s.db.WithContext(ctx).
		Select("achievement_id", "created_at").
		Where("student_id = ? AND is_canceled = ?", userID, false).
		Find(&active).Error
	if err != nil {
		return nil, apperr.Wrap(err, "failed to load unlocked achievements")
	}

	byID := make(map[uuid.UUID]time.Time, len(active))
	for _, a := range active {
		if at, ok := byID[a.AchievementID]; !ok || a.CreatedAt.Before(at) {
			byID[a.AchievementID] = a.CreatedAt
		}
	}

	out := make([]CatalogEntry, len(catalog))
	for i, a := range catalog {
		out[i] = CatalogEntry{Achievement: a}
		if at, ok := byID[a.ID]; ok {
			at := at
			out[i].Unlocked = true
			out[i].UnlockedAt = &at
		}
	}
	return out, nil
}

// StudentCatalog is AchievementsForUser for a student looked up by staff.
func (s *Service) StudentCatalog(ctx context.Context, studentID uuid.UUID) ([]CatalogEntry, error) {
	if _, err := s.loadStudent(s.db.WithContext(ctx), studentID); err != nil {
		return nil, err
	}
	return s.AchievementsForUser(ctx, studentID)
}

// UnlockedAwards lists a student's active awards, newest first.
func (s *Service) UnlockedAwards(ctx context.Context, studentID uuid.UUID) ([]models.IssuedAchievement, error) {
	db := s.db.WithContext(ctx)
	if _, err := s.loadStudent(db, studentID); err != nil {
		return nil, err
	}

	var out []models.IssuedAchievement
	err := db.
		Preload("Achievement").
		Preload("Issuer").
		Where("student_id = ? AND is_canceled = ?", studentID, false).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, apperr.Wrap(err, "failed to list awards")
	}
	return out, nil
}
