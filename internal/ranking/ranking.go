// Package ranking computes dense ranks and privacy-masked leaderboards over
// student balances. It only reads; the ledger is the sole writer of balance.
package ranking

import (
	"context"
	"database/sql"
	"errors"

	"github.com/gdg-garage/sputnik-ledger/internal/apperr"
	"github.com/gdg-garage/sputnik-ledger/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Scope string

const (
	ScopeGroup      Scope = "group"
	ScopeInstitute  Scope = "institute"
	ScopeUniversity Scope = "university"
)

var Scopes = []Scope{ScopeGroup, ScopeInstitute, ScopeUniversity}

func ParseScope(raw string) (Scope, error) {
	switch s := Scope(raw); s {
	case ScopeGroup, ScopeInstitute, ScopeUniversity:
		return s, nil
	}
	return "", apperr.Invalid("unknown scope %q", raw)
}

// Position is a rank within a scope together with the scope size.
type Position struct {
	Rank  int64 `json:"rank"`
	Total int64 `json:"total"`
}

// Ranks holds all three positions of one user read from the same snapshot.
// Group and Institute are nil when the user belongs to none.
type Ranks struct {
	Group      *Position `json:"group"`
	Institute  *Position `json:"institute"`
	University Position  `json:"university"`
}

type Engine struct {
	db       *gorm.DB
	maxLimit int
	log      *zap.Logger
}

func NewEngine(db *gorm.DB, maxLimit int, log *zap.Logger) *Engine {
	if maxLimit <= 0 {
		maxLimit = 100
	}
	return &Engine{db: db, maxLimit: maxLimit, log: log.With(zap.String("service", "ranking"))}
}

// snapshot runs fn in a read-only REPEATABLE READ transaction so every count
// it issues sees the same balances.
func (e *Engine) snapshot(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return e.db.WithContext(ctx).Transaction(fn, &sql.TxOptions{
		Isolation: sql.LevelRepeatableRead,
		ReadOnly:  true,
	})
}

// ranked is the population a rank is computed over: non-banned students.
func ranked(tx *gorm.DB) *gorm.DB {
	return tx.Model(&models.User{}).Where("users.role = ? AND users.is_banned = ?", models.RoleStudent, false)
}

// inScope restricts ranked to the scope. id is ignored for ScopeUniversity.
func inScope(tx *gorm.DB, scope Scope, id uint) *gorm.DB {
	q := ranked(tx)
	switch scope {
	case ScopeGroup:
		q = q.Where("users.group_id = ?", id)
	case ScopeInstitute:
		q = q.Where("users.institute_id = ?", id)
	}
	return q
}

// scopeID returns the user's own group or institute id for scope.
func scopeID(user models.User, scope Scope) (uint, bool) {
	switch scope {
	case ScopeGroup:
		if user.GroupID != nil {
			return *user.GroupID, true
		}
		return 0, false
	case ScopeInstitute:
		if user.InstituteID != nil {
			return *user.InstituteID, true
		}
		return 0, false
	}
	return 0, true
}

// loadRanked loads the subject of a rank query. Only users in the ranked
// population have a position, so rank never exceeds total.
func loadRanked(tx *gorm.DB, id uuid.UUID) (*models.User, error) {
	user, err := loadUser(tx, id)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleStudent || user.IsBanned {
		return nil, apperr.Forbidden("user %s is not ranked", id)
	}
	return user, nil
}

func loadUser(tx *gorm.DB, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := tx.Select("id", "role", "balance", "is_banned", "group_id", "institute_id").First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("user %s not found", id)
	}
	if err != nil {
		return nil, apperr.Wrap(err, "failed to load user")
	}
	return &user, nil
}

func position(tx *gorm.DB, scope Scope, id uint, balance int64) (*Position, error) {
	var p Position
	if err := inScope(tx, scope, id).Where("users.balance > ?", balance).Count(&p.Rank).Error; err != nil {
		return nil, apperr.Wrap(err, "failed to count higher balances")
	}
	p.Rank++
	if err := inScope(tx, scope, id).Count(&p.Total).Error; err != nil {
		return nil, apperr.Wrap(err, "failed to count scope")
	}
	return &p, nil
}

// Rank returns the user's dense rank in scope: one plus the number of ranked
// users with a strictly greater balance. Tied balances share a rank. Staff
// and banned users are not ranked and get a Forbidden error.
func (e *Engine) Rank(ctx context.Context, userID uuid.UUID, scope Scope) (*Position, error) {
	var out *Position
	err := e.snapshot(ctx, func(tx *gorm.DB) error {
		user, err := loadRanked(tx, userID)
		if err != nil {
			return err
		}
		id, ok := scopeID(*user, scope)
		if !ok {
			return apperr.NotFound("user %s has no %s", userID, scope)
		}
		out, err = position(tx, scope, id, user.Balance)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AllRanks computes the group, institute and university positions from one
// snapshot, so the three are comparable with each other.
func (e *Engine) AllRanks(ctx context.Context, userID uuid.UUID) (*Ranks, error) {
	var out Ranks
	err := e.snapshot(ctx, func(tx *gorm.DB) error {
		user, err := loadRanked(tx, userID)
		if err != nil {
			return err
		}
		for _, scope := range Scopes {
			id, ok := scopeID(*user, scope)
			if !ok {
				continue
			}
			p, err := position(tx, scope, id, user.Balance)
			if err != nil {
				return err
			}
			switch scope {
			case ScopeGroup:
				out.Group = p
			case ScopeInstitute:
				out.Institute = p
			case ScopeUniversity:
				out.University = *p
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
