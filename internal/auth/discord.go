package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gdg-garage/sputnik-ledger/internal/models"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

type RedirectOutput struct {
	Status   int
	Location string `header:"Location"`
}

// HandleDiscordLink starts linking the caller's Discord account. The OAuth
// state is a short-lived signed token naming the caller, so the callback
// needs no session.
func (h *AuthHandler) HandleDiscordLink(ctx context.Context, input *struct{}) (*RedirectOutput, error) {
	actor, ok := ActorFrom(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}
	state, err := h.sign(actor.ID, purposeDiscordLink, stateDuration)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to sign state")
	}
	return &RedirectOutput{
		Status:   http.StatusTemporaryRedirect,
		Location: h.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOnline),
	}, nil
}

type DiscordCallbackInput struct {
	Code  string `query:"code"`
	State string `query:"state"`
}

type DiscordCallbackOutput struct {
	Body struct {
		Message   string `json:"message"`
		DiscordID string `json:"discord_id"`
	}
}

func (h *AuthHandler) HandleDiscordCallback(ctx context.Context, input *DiscordCallbackInput) (*DiscordCallbackOutput, error) {
	if input.Code == "" {
		return nil, huma.Error400BadRequest("Code not found")
	}
	userID, _, err := h.parse(input.State, purposeDiscordLink)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid state")
	}

	token, err := h.oauthConfig.Exchange(ctx, input.Code)
	if err != nil {
		h.log.Warn("Discord token exchange failed", zap.Error(err))
		return nil, huma.Error500InternalServerError("Failed to exchange token")
	}

	client := h.oauthConfig.Client(ctx, token)
	resp, err := client.Get(h.discordUserAPI)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to get user info")
	}
	defer resp.Body.Close()

	var discordUser struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&discordUser); err != nil || discordUser.ID == "" {
		return nil, huma.Error500InternalServerError("Failed to decode user info")
	}

	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&models.User{}).Where("discord_id = ? AND id <> ?", discordUser.ID, userID).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return errDiscordTaken
		}
		res := tx.Model(&models.User{}).Where("id = ?", userID).Update("discord_id", discordUser.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	switch {
	case errors.Is(err, errDiscordTaken):
		return nil, huma.Error409Conflict("Discord account is linked to another user")
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, huma.Error404NotFound("User not found")
	case err != nil:
		return nil, huma.Error500InternalServerError("Failed to link account")
	}

	h.log.Info("Discord account linked", zap.String("user_id", userID.String()), zap.String("discord_id", discordUser.ID))

	out := &DiscordCallbackOutput{}
	out.Body.Message = "Discord account " + discordUser.Username + " linked"
	out.Body.DiscordID = discordUser.ID
	return out, nil
}

var errDiscordTaken = errors.New("discord account already linked")
