package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/gdg-garage/sputnik-ledger/internal/auth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Handlers struct {
	Auth         *auth.AuthHandler
	Achievements *AchievementHandler
	Ranking      *RankingHandler
	Profile      *ProfileHandler
	APIKeys      *APIKeyHandler
}

// requireAuth runs the auth middleware in front of a single operation.
func requireAuth(authHandler *auth.AuthHandler) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		r, w := humachi.Unwrap(ctx)
		authHandler.AuthMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			next(huma.WithContext(ctx, r.Context()))
		})).ServeHTTP(w, r)
	}
}

func RegisterRoutes(r *chi.Mux, h Handlers) huma.API {
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	config := huma.DefaultConfig("Sputnik Achievements API", "1.0.0")
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"cookieAuth": {
			Type: "apiKey",
			In:   "cookie",
			Name: auth.CookieName,
		},
		"bearerAuth": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
		"apiKeyAuth": {
			Type: "apiKey",
			In:   "header",
			Name: "X-API-KEY",
		},
	}
	api := humachi.New(r, config)

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	huma.Get(api, "/auth/discord/callback", h.Auth.HandleDiscordCallback)

	protected := func(o *huma.Operation) {
		o.Security = []map[string][]string{{"cookieAuth": {}}, {"bearerAuth": {}}, {"apiKeyAuth": {}}}
		o.Middlewares = append(o.Middlewares, requireAuth(h.Auth))
	}

	huma.Get(api, "/auth/discord/link", h.Auth.HandleDiscordLink, protected)

	huma.Get(api, "/me", h.Profile.HandleMe, protected)
	huma.Get(api, "/me/settings", h.Profile.HandleGetSettings, protected)
	huma.Patch(api, "/me/settings", h.Profile.HandleUpdateSettings, protected)

	huma.Get(api, "/achievements", h.Achievements.HandleList, protected)
	huma.Post(api, "/achievements", h.Achievements.HandleCreate, protected)
	huma.Get(api, "/achievements/me/unlocked", h.Achievements.HandleMyUnlocked, protected)
	huma.Get(api, "/students/{id}/achievements", h.Achievements.HandleStudentCatalog, protected)
	huma.Get(api, "/students/{id}/achievements/unlocked", h.Achievements.HandleStudentUnlocked, protected)
	huma.Post(api, "/achievements/issue", h.Achievements.HandleIssue, protected)
	huma.Post(api, "/achievements/cancel", h.Achievements.HandleCancel, protected)
	huma.Get(api, "/achievements/me/unseen", h.Achievements.HandleUnseen, protected)
	huma.Patch(api, "/achievements/me/unseen/mark-as-seen", h.Achievements.HandleMarkSeen, protected)
	huma.Get(api, "/achievements/operations", h.Achievements.HandleOperations, protected)

	huma.Get(api, "/ranks/me", h.Ranking.HandleMyRanks, protected)
	huma.Get(api, "/ranks/me/{scope}", h.Ranking.HandleMyRank, protected)
	huma.Get(api, "/leaderboard/{scope}", h.Ranking.HandleLeaderboard, protected)

	huma.Post(api, "/api-keys", h.APIKeys.HandleCreate, protected)
	huma.Get(api, "/api-keys", h.APIKeys.HandleList, protected)
	huma.Delete(api, "/api-keys/{id}", h.APIKeys.HandleDelete, protected)

	return api
}

