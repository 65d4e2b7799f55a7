package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gdg-garage/sputnik-ledger/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ProfileHandler struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewProfileHandler(db *gorm.DB, log *zap.Logger) *ProfileHandler {
	return &ProfileHandler{db: db, log: log.With(zap.String("handler", "profile"))}
}

type MeOutput struct {
	Body *models.User
}

func (h *ProfileHandler) HandleMe(ctx context.Context, input *struct{}) (*MeOutput, error) {
	actor, err := currentActor(ctx)
	if err != nil {
		return nil, err
	}
	var user models.User
	err = h.db.WithContext(ctx).
		Preload("Group").
		Preload("Institute").
		Preload("Settings").
		First(&user, "id = ?", actor.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, huma.Error404NotFound("User not found")
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to load user")
	}
	return &MeOutput{Body: &user}, nil
}

type SettingsOutput struct {
	Body models.UserSettings
}

// settings returns the user's settings row, creating it with the defaults on
// first access.
func (h *ProfileHandler) settings(tx *gorm.DB, actor models.Actor) (models.UserSettings, error) {
	var s models.UserSettings
	err := tx.Attrs(models.DefaultUserSettings(actor.ID)).
		FirstOrCreate(&s, models.UserSettings{UserID: actor.ID}).Error
	return s, err
}

func (h *ProfileHandler) HandleGetSettings(ctx context.Context, input *struct{}) (*SettingsOutput, error) {
	actor, err := currentActor(ctx)
	if err != nil {
		return nil, err
	}
	s, err := h.settings(h.db.WithContext(ctx), actor)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to load settings")
	}
	return &SettingsOutput{Body: s}, nil
}

type UpdateSettingsRequest struct {
	Body struct {
		IsVisibleInTop               *bool `json:"is_visible_in_top,omitempty" doc:"Show name and avatar on the leaderboard to other students"`
		ReceiveTelegramNotifications *bool `json:"receive_telegram_notifications,omitempty"`
		ReceiveDiscordNotifications  *bool `json:"receive_discord_notifications,omitempty"`
	}
}

func (h *ProfileHandler) HandleUpdateSettings(ctx context.Context, input *UpdateSettingsRequest) (*SettingsOutput, error) {
	actor, err := currentActor(ctx)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if v := input.Body.IsVisibleInTop; v != nil {
		updates["is_visible_in_top"] = *v
	}
	if v := input.Body.ReceiveTelegramNotifications; v != nil {
		updates["receive_telegram_notifications"] = *v
	}
	if v := input.Body.ReceiveDiscordNotifications; v != nil {
		updates["receive_discord_notifications"] = *v
	}

	var s models.UserSettings
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := h.settings(tx, actor)
		if err != nil {
			return err
		}
		if len(updates) > 0 {
			if err := tx.Model(&current).Updates(updates).Error; err != nil {
				return err
			}
		}
		return tx.First(&s, "user_id = ?", actor.ID).Error
	})
	if err != nil {
		h.log.Error("Failed to update settings", zap.Error(err), zap.String("user_id", actor.ID.String()))
		return nil, huma.Error500InternalServerError("Failed to update settings")
	}
	return &SettingsOutput{Body: s}, nil
}
