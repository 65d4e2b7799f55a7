package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/gdg-garage/sputnik-ledger/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

const (
	DiscordAuthorizeEndpoint = "https://discord.com/api/oauth2/authorize"
	DiscordTokenEndpoint     = "https://discord.com/api/oauth2/token"
	DiscordUserAPI           = "https://discord.com/api/users/@me"

	CookieName    = "auth_token"
	TokenDuration = 24 * time.Hour
	stateDuration = 10 * time.Minute

	purposeSession     = "session"
	purposeDiscordLink = "discord_link"
)

type AuthHandler struct {
	oauthConfig    *oauth2.Config
	discordUserAPI string
	db             *gorm.DB
	secret         []byte
	log            *zap.Logger
}

func NewAuthHandler(cfg *config.Config, db *gorm.DB, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.DiscordClientID,
			ClientSecret: cfg.DiscordClientSecret,
			RedirectURL:  cfg.DiscordRedirectURL,
			Scopes:       []string{"identify"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  DiscordAuthorizeEndpoint,
				TokenURL: DiscordTokenEndpoint,
			},
		},
		discordUserAPI: DiscordUserAPI,
		db:             db,
		secret:         []byte(cfg.JWTSecret),
		log:            log.With(zap.String("service", "auth")),
	}
}

type claims struct {
	UserID  string `json:"user_id"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

func (h *AuthHandler) sign(userID uuid.UUID, purpose string, ttl time.Duration) (string, error) {
	c := claims{
		UserID:  userID.String(),
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(h.secret)
}

// GenerateToken issues a session token for the user.
func (h *AuthHandler) GenerateToken(userID uuid.UUID) (string, error) {
	return h.sign(userID, purposeSession, TokenDuration)
}

var errInvalidToken = errors.New("invalid token")

// parse validates a token of the given purpose and returns its subject and
// expiry.
func (h *AuthHandler) parse(raw, purpose string) (uuid.UUID, time.Time, error) {
	var c claims
	token, err := jwt.ParseWithClaims(raw, &c, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return h.secret, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, time.Time{}, errInvalidToken
	}
	if c.Purpose != purpose {
		return uuid.Nil, time.Time{}, errInvalidToken
	}
	id, err := uuid.Parse(c.UserID)
	if err != nil {
		return uuid.Nil, time.Time{}, errInvalidToken
	}
	var exp time.Time
	if c.ExpiresAt != nil {
		exp = c.ExpiresAt.Time
	}
	return id, exp, nil
}
