package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gdg-garage/sputnik-ledger/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type contextKey string

const actorKey contextKey = "actor"

// WithActor stores the authenticated caller in ctx.
func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFrom returns the caller stored by the middleware.
func ActorFrom(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(models.Actor)
	return actor, ok
}

// AuthMiddleware resolves the caller from an X-API-KEY header, an auth_token
// cookie or a bearer token, in that order, and stores it as a models.Actor.
func (h *AuthHandler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if apiKey := r.Header.Get("X-API-KEY"); apiKey != "" {
			userID, err := h.resolveAPIKey(r.Context(), apiKey)
			if err != nil {
				http.Error(w, "Unauthorized: "+err.Error(), http.StatusUnauthorized)
				return
			}
			h.serveAs(w, r, next, userID)
			return
		}

		raw, fromCookie := tokenFromRequest(r)
		if raw == "" {
			http.Error(w, "Unauthorized: No token found", http.StatusUnauthorized)
			return
		}

		userID, exp, err := h.parse(raw, purposeSession)
		if err != nil {
			http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
			return
		}

		// Sliding session: refresh the cookie once it is past half its life.
		if fromCookie && time.Until(exp) < TokenDuration/2 {
			if token, err := h.GenerateToken(userID); err == nil {
				http.SetCookie(w, &http.Cookie{
					Name:     CookieName,
					Value:    token,
					Expires:  time.Now().Add(TokenDuration),
					HttpOnly: true,
					Path:     "/",
				})
			}
		}

		h.serveAs(w, r, next, userID)
	})
}

func tokenFromRequest(r *http.Request) (string, bool) {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer "), false
	}
	return "", false
}

var (
	errUnknownKey = errors.New("unknown API key")
	errExpiredKey = errors.New("API key expired")
)

func (h *AuthHandler) resolveAPIKey(ctx context.Context, raw string) (uuid.UUID, error) {
	var key models.APIKey
	err := h.db.WithContext(ctx).Where("key = ?", raw).First(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, errUnknownKey
	}
	if err != nil {
		return uuid.Nil, err
	}
	if key.ExpiresAt != nil && time.Now().After(*key.ExpiresAt) {
		return uuid.Nil, errExpiredKey
	}
	if err := h.db.WithContext(ctx).Model(&key).UpdateColumn("last_used_at", time.Now()).Error; err != nil {
		h.log.Warn("Failed to touch API key", zap.Error(err), zap.String("api_key_id", key.ID.String()))
	}
	return key.UserID, nil
}

// serveAs loads the user's current role so a role change applies to tokens
// issued before it.
func (h *AuthHandler) serveAs(w http.ResponseWriter, r *http.Request, next http.Handler, userID uuid.UUID) {
	var user models.User
	err := h.db.WithContext(r.Context()).Select("id", "role", "is_banned").First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		http.Error(w, "Unauthorized: User not found", http.StatusUnauthorized)
		return
	}
	if err != nil {
		h.log.Error("Failed to load caller", zap.Error(err), zap.String("user_id", userID.String()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if user.IsBanned {
		http.Error(w, "Forbidden: account is banned", http.StatusForbidden)
		return
	}

	ctx := WithActor(r.Context(), models.Actor{ID: user.ID, Role: user.Role})
	next.ServeHTTP(w, r.WithContext(ctx))
}
