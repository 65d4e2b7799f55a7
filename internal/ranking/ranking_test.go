package ranking

import (
	"context"
	"testing"

	"github.com/gdg-garage/sputnik-ledger/internal/achievements"
	"github.com/gdg-garage/sputnik-ledger/internal/apperr"
	"github.com/gdg-garage/sputnik-ledger/internal/database"
	"github.com/gdg-garage/sputnik-ledger/internal/ledger"
	"github.com/gdg-garage/sputnik-ledger/internal/models"
	"github.com/gdg-garage/sputnik-ledger/internal/pagination"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type world struct {
	db     *gorm.DB
	engine *Engine
}

func newWorld(t *testing.T) *world {
	t.Helper()
	db := database.OpenTest(t)
	require.NoError(t, db.Create(&models.Institute{ID: 1, Name: "IT"}).Error)
	require.NoError(t, db.Create(&models.Institute{ID: 2, Name: "Physics"}).Error)
	require.NoError(t, db.Create(&models.Group{ID: 1, Name: "IT-101", InstituteID: 1}).Error)
	require.NoError(t, db.Create(&models.Group{ID: 2, Name: "IT-102", InstituteID: 1}).Error)
	require.NoError(t, db.Create(&models.Group{ID: 3, Name: "PH-101", InstituteID: 2}).Error)
	return &world{db: db, engine: NewEngine(db, 50, zap.NewNop())}
}

type userOpts struct {
	role    models.Role
	group   uint
	balance int64
	hidden  bool
	banned  bool
}

func (w *world) user(t *testing.T, name string, o userOpts) models.User {
	t.Helper()
	if o.role == "" {
		o.role = models.RoleStudent
	}
	u := models.User{FirstName: name, Role: o.role, Balance: o.balance, IsBanned: o.banned}
	if o.group != 0 {
		var g models.Group
		require.NoError(t, w.db.First(&g, o.group).Error)
		u.GroupID = &g.ID
		u.InstituteID = &g.InstituteID
	}
	require.NoError(t, w.db.Create(&u).Error)
	settings := models.DefaultUserSettings(u.ID)
	settings.IsVisibleInTop = !o.hidden
	require.NoError(t, w.db.Create(&settings).Error)
	return u
}

func TestTiesShareRank(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	a := w.user(t, "A", userOpts{group: 1, balance: 80})
	b := w.user(t, "B", userOpts{group: 1, balance: 80})
	c := w.user(t, "C", userOpts{group: 1, balance: 60})

	for _, tc := range []struct {
		user models.User
		rank int64
	}{{a, 1}, {b, 1}, {c, 3}} {
		p, err := w.engine.Rank(ctx, tc.user.ID, ScopeGroup)
		require.NoError(t, err)
		assert.Equal(t, tc.rank, p.Rank, tc.user.FirstName)
		assert.Equal(t, int64(3), p.Total)
		assert.LessOrEqual(t, p.Rank, p.Total)
	}
}

func TestRankScopes(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	me := w.user(t, "Me", userOpts{group: 1, balance: 50})
	w.user(t, "Classmate", userOpts{group: 1, balance: 40})
	w.user(t, "Neighbour", userOpts{group: 2, balance: 90})
	w.user(t, "Physicist", userOpts{group: 3, balance: 100})
	w.user(t, "Banned", userOpts{group: 1, balance: 1000, banned: true})
	w.user(t, "Staff", userOpts{role: models.RoleCurator, group: 1, balance: 1000})
	orphan := w.user(t, "Orphan", userOpts{balance: 10})

	ranks, err := w.engine.AllRanks(ctx, me.ID)
	require.NoError(t, err)
	require.NotNil(t, ranks.Group)
	require.NotNil(t, ranks.Institute)
	assert.Equal(t, Position{Rank: 1, Total: 2}, *ranks.Group)
	assert.Equal(t, Position{Rank: 2, Total: 3}, *ranks.Institute)
	assert.Equal(t, Position{Rank: 3, Total: 5}, ranks.University)

	ranks, err = w.engine.AllRanks(ctx, orphan.ID)
	require.NoError(t, err)
	assert.Nil(t, ranks.Group)
	assert.Nil(t, ranks.Institute)
	assert.Equal(t, Position{Rank: 5, Total: 5}, ranks.University)

	_, err = w.engine.Rank(ctx, orphan.ID, ScopeGroup)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = w.engine.Rank(ctx, uuid.New(), ScopeUniversity)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestOnlyActiveStudentsAreRanked(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	w.user(t, "Student", userOpts{group: 1, balance: 10})
	sputnik := w.user(t, "Sputnik", userOpts{role: models.RoleSputnik, group: 1})
	banned := w.user(t, "Banned", userOpts{group: 1, banned: true})

	for _, u := range []models.User{sputnik, banned} {
		_, err := w.engine.Rank(ctx, u.ID, ScopeGroup)
		assert.True(t, apperr.Is(err, apperr.KindForbidden), u.FirstName)

		_, err = w.engine.AllRanks(ctx, u.ID)
		assert.True(t, apperr.Is(err, apperr.KindForbidden), u.FirstName)
	}
}

func TestRankAfterCancellation(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	l := ledger.New(w.db, zap.NewNop())
	svc := achievements.NewService(w.db, l, nil, zap.NewNop())

	sputnik := w.user(t, "Sputnik", userOpts{role: models.RoleSputnik})
	s := w.user(t, "S", userOpts{group: 1})
	w.user(t, "Rival", userOpts{group: 1, balance: 70})
	a := models.Achievement{Name: "A", Type: models.AchievementTypeRegular, Category: models.CategoryStudy, Rarity: models.RarityCommon, Reward: 50}
	require.NoError(t, w.db.Create(&a).Error)

	issuer := models.Actor{ID: sputnik.ID, Role: sputnik.Role}
	first, err := svc.Issue(ctx, issuer, s.ID, a.ID)
	require.NoError(t, err)
	_, err = svc.Issue(ctx, issuer, s.ID, a.ID)
	require.NoError(t, err)

	p, err := w.engine.Rank(ctx, s.ID, ScopeGroup)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.Rank)

	_, err = svc.Cancel(ctx, issuer, first.ID, "mistake")
	require.NoError(t, err)

	p, err = w.engine.Rank(ctx, s.ID, ScopeGroup)
	require.NoError(t, err)
	assert.Equal(t, Position{Rank: 2, Total: 2}, *p)
}

func TestParseScope(t *testing.T) {
	s, err := ParseScope("institute")
	require.NoError(t, err)
	assert.Equal(t, ScopeInstitute, s)

	_, err = ParseScope("galaxy")
	assert.True(t, apperr.Is(err, apperr.KindInvalid))
}

func TestTopStudents(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	top := w.user(t, "Top", userOpts{group: 1, balance: 100})
	shy := w.user(t, "Shy", userOpts{group: 1, balance: 80, hidden: true})
	tied := w.user(t, "Tied", userOpts{group: 1, balance: 80})
	me := w.user(t, "Me", userOpts{group: 1, balance: 60, hidden: true})
	w.user(t, "Last", userOpts{group: 1, balance: 10})
	w.user(t, "Elsewhere", userOpts{group: 3, balance: 500})
	curator := w.user(t, "Curator", userOpts{role: models.RoleCurator})

	student := models.Actor{ID: me.ID, Role: models.RoleStudent}

	page, err := w.engine.TopStudents(ctx, student, ScopeGroup, nil, pagination.Query{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Meta.TotalItems)
	require.Len(t, page.Data, 5)

	ranks := make([]int64, len(page.Data))
	for i, row := range page.Data {
		ranks[i] = row.Rank
	}
	assert.Equal(t, []int64{1, 2, 2, 4, 5}, ranks)

	assert.Equal(t, top.ID, *page.Data[0].UserID)
	assert.Equal(t, "IT-101", *page.Data[0].GroupName)

	var shyRow, tiedRow *LeaderboardRow
	for i := 1; i <= 2; i++ {
		if page.Data[i].Redacted {
			shyRow = &page.Data[i]
		} else {
			tiedRow = &page.Data[i]
		}
	}
	require.NotNil(t, shyRow)
	require.NotNil(t, tiedRow)
	assert.Nil(t, shyRow.UserID)
	assert.Nil(t, shyRow.FirstName)
	assert.Nil(t, shyRow.Avatar)
	assert.Nil(t, shyRow.GroupName)
	assert.Equal(t, int64(80), shyRow.Balance)
	assert.Equal(t, tied.ID, *tiedRow.UserID)

	require.NotNil(t, page.Data[3].UserID, "own row is never redacted")
	assert.Equal(t, me.ID, *page.Data[3].UserID)

	t.Run("StaffSeeEverything", func(t *testing.T) {
		group := uint(1)
		page, err := w.engine.TopStudents(ctx, models.Actor{ID: curator.ID, Role: curator.Role}, ScopeGroup, &group, pagination.Query{})
		require.NoError(t, err)
		require.Len(t, page.Data, 5)
		for _, row := range page.Data {
			assert.False(t, row.Redacted)
		}
		ids := []uuid.UUID{*page.Data[1].UserID, *page.Data[2].UserID}
		assert.Contains(t, ids, shy.ID)
	})

	t.Run("StaffNeedScopeID", func(t *testing.T) {
		_, err := w.engine.TopStudents(ctx, models.Actor{ID: curator.ID, Role: curator.Role}, ScopeGroup, nil, pagination.Query{})
		assert.True(t, apperr.Is(err, apperr.KindInvalid))
	})

	t.Run("SecondPageKeepsRanks", func(t *testing.T) {
		page, err := w.engine.TopStudents(ctx, student, ScopeGroup, nil, pagination.Query{Page: 2, Limit: 2})
		require.NoError(t, err)
		require.Len(t, page.Data, 2)
		assert.Equal(t, int64(2), page.Data[0].Rank)
		assert.Equal(t, int64(4), page.Data[1].Rank)
		assert.Equal(t, 3, page.Meta.TotalPages)
	})

	t.Run("University", func(t *testing.T) {
		page, err := w.engine.TopStudents(ctx, student, ScopeUniversity, nil, pagination.Query{Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, int64(6), page.Meta.TotalItems)
		assert.Equal(t, int64(500), page.Data[0].Balance)
	})
}
