package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gdg-garage/sputnik-ledger/internal/apperr"
	"github.com/gdg-garage/sputnik-ledger/internal/auth"
	"github.com/gdg-garage/sputnik-ledger/internal/models"
	"go.uber.org/zap"
)

// httpError maps a service error to the matching HTTP status. Internal
// causes are logged and not shown to the client.
func httpError(log *zap.Logger, err error) error {
	var e *apperr.Error
	if !errors.As(err, &e) {
		log.Error("Unexpected error", zap.Error(err))
		return huma.Error500InternalServerError("Internal server error")
	}
	switch e.Kind {
	case apperr.KindNotFound:
		return huma.Error404NotFound(e.Message)
	case apperr.KindConflict:
		return huma.Error409Conflict(e.Message)
	case apperr.KindForbidden:
		return huma.Error403Forbidden(e.Message)
	case apperr.KindInvalid:
		return huma.Error422UnprocessableEntity(e.Message)
	default:
		log.Error("Request failed", zap.Error(err))
		return huma.Error500InternalServerError("Internal server error")
	}
}

func currentActor(ctx context.Context) (models.Actor, error) {
	actor, ok := auth.ActorFrom(ctx)
	if !ok {
		return models.Actor{}, huma.Error401Unauthorized("Unauthorized")
	}
	return actor, nil
}
