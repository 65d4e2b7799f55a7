package achievements

import (
	"context"
	"sync"
	"testing"

	"github.com/gdg-garage/sputnik-ledger/internal/database"
	"github.com/gdg-garage/sputnik-ledger/internal/ledger"
	"github.com/gdg-garage/sputnik-ledger/internal/models"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingNotifier struct {
	mu       sync.Mutex
	issued   []models.IssuedAchievement
	canceled []models.IssuedAchievement
}

func (n *recordingNotifier) AwardIssued(_ context.Context, award models.IssuedAchievement) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.issued = append(n.issued, award)
}

func (n *recordingNotifier) AwardCanceled(_ context.Context, award models.IssuedAchievement) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.canceled = append(n.canceled, award)
}

type fixture struct {
	db       *gorm.DB
	ledger   *ledger.Ledger
	notifier *recordingNotifier
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := database.OpenTest(t)
	l := ledger.New(db, zap.NewNop())
	n := &recordingNotifier{}
	return &fixture{db: db, ledger: l, notifier: n, svc: NewService(db, l, n, zap.NewNop())}
}

func (f *fixture) user(t *testing.T, role models.Role, instituteID *uint) models.User {
	t.Helper()
	u := models.User{FirstName: string(role), Role: role, InstituteID: instituteID}
	require.NoError(t, f.db.Create(&u).Error)
	settings := models.DefaultUserSettings(u.ID)
	require.NoError(t, f.db.Create(&settings).Error)
	return u
}

func (f *fixture) achievement(t *testing.T, name string, reward int64) models.Achievement {
	t.Helper()
	a := models.Achievement{
		Name:     name,
		Type:     models.AchievementTypeRegular,
		Category: models.CategoryStudy,
		Rarity:   models.RarityCommon,
		Reward:   reward,
	}
	require.NoError(t, f.db.Create(&a).Error)
	return a
}

func (f *fixture) balance(t *testing.T, u models.User) int64 {
	t.Helper()
	b, err := f.ledger.Balance(context.Background(), nil, u.ID)
	require.NoError(t, err)
	return b
}

func actorOf(u models.User) models.Actor {
	return models.Actor{ID: u.ID, Role: u.Role}
}

func uintPtr(v uint) *uint {
	return &v
}
