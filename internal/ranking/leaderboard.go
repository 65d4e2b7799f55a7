package ranking

import (
	"context"

	"github.com/gdg-garage/sputnik-ledger/internal/apperr"
	"github.com/gdg-garage/sputnik-ledger/internal/models"
	"github.com/gdg-garage/sputnik-ledger/internal/pagination"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LeaderboardRow is one leaderboard slot. Identity fields are nil when the
// row is redacted; Rank and Balance are always set.
type LeaderboardRow struct {
	Rank      int64      `json:"rank"`
	UserID    *uuid.UUID `json:"user_id"`
	FirstName *string    `json:"first_name"`
	LastName  *string    `json:"last_name"`
	Avatar    *string    `json:"avatar"`
	GroupName *string    `json:"group_name"`
	Balance   int64      `json:"balance"`
	Redacted  bool       `json:"redacted"`
}

func (e *Engine) leaderboardConfig() pagination.Config {
	return pagination.Config{
		SortableColumns: []string{"balance"},
		Columns:         map[string]string{"balance": "users.balance"},
		DefaultSortBy:   []pagination.SortField{{Column: "balance", Direction: pagination.Desc}},
		DefaultLimit:    20,
		MaxLimit:        e.maxLimit,
		TieBreaker:      "users.id ASC",
	}
}

// resolveScope picks the group or institute the leaderboard covers. Students
// always get their own; staff pass one explicitly or fall back to their own.
func resolveScope(requester models.User, scope Scope, requested *uint) (uint, error) {
	if scope == ScopeUniversity {
		return 0, nil
	}
	if requester.Role.IsStaff() && requested != nil {
		return *requested, nil
	}
	id, ok := scopeID(requester, scope)
	if !ok {
		if requester.Role.IsStaff() {
			return 0, apperr.Invalid("%s id is required", scope)
		}
		return 0, apperr.NotFound("user %s has no %s", requester.ID, scope)
	}
	return id, nil
}

// TopStudents returns a balance-descending page of ranked students in scope.
// For a student requester, rows of other students who opted out of the
// leaderboard are redacted after the page is fetched, so ordering, totals and
// page membership are the same for every requester.
func (e *Engine) TopStudents(ctx context.Context, requester models.Actor, scope Scope, requestedID *uint, q pagination.Query) (*pagination.Page[LeaderboardRow], error) {
	q.SortBy = nil
	cfg := e.leaderboardConfig()

	var out *pagination.Page[LeaderboardRow]
	err := e.snapshot(ctx, func(tx *gorm.DB) error {
		viewer, err := loadUser(tx, requester.ID)
		if err != nil {
			return err
		}
		id, err := resolveScope(*viewer, scope, requestedID)
		if err != nil {
			return err
		}

		page, err := pagination.Paginate[models.User](inScope(tx, scope, id), q, cfg, func(db *gorm.DB) *gorm.DB {
			return db.Preload("Group").Preload("Settings")
		})
		if err != nil {
			if apperr.KindOf(err) == apperr.KindInvalid {
				return err
			}
			return apperr.Wrap(err, "failed to load leaderboard")
		}

		var firstRank int64
		if len(page.Data) > 0 {
			if err := inScope(tx, scope, id).Where("users.balance > ?", page.Data[0].Balance).Count(&firstRank).Error; err != nil {
				return apperr.Wrap(err, "failed to rank leaderboard page")
			}
			firstRank++
		}

		redact := !requester.Role.IsStaff()
		offset := int64(page.Meta.Offset())
		var prev LeaderboardRow
		out = pagination.Map(page, func(i int, u models.User) LeaderboardRow {
			row := LeaderboardRow{Balance: u.Balance}
			switch {
			case i == 0:
				row.Rank = firstRank
			case u.Balance == prev.Balance:
				row.Rank = prev.Rank
			default:
				row.Rank = offset + int64(i) + 1
			}
			prev = row

			if redact && u.ID != requester.ID && hidden(u) {
				row.Redacted = true
				return row
			}
			row.UserID = &u.ID
			row.FirstName = &u.FirstName
			row.LastName = &u.LastName
			row.Avatar = &u.Avatar
			if u.Group != nil {
				row.GroupName = &u.Group.Name
			}
			return row
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Debug("Leaderboard served",
		zap.String("scope", string(scope)),
		zap.String("requester_id", requester.ID.String()),
		zap.Int("rows", len(out.Data)))
	return out, nil
}

// hidden reports whether the user opted out of the leaderboard. Users without
// a settings row have the defaults, which are visible.
func hidden(u models.User) bool {
	return u.Settings != nil && !u.Settings.IsVisibleInTop
}
