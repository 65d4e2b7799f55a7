package achievements

import (
	"context"
	"sync"
	"testing"

	"github.com/gdg-garage/sputnik-ledger/internal/apperr"
	"github.com/gdg-garage/sputnik-ledger/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndCancelScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sputnik := f.user(t, models.RoleSputnik, nil)
	student := f.user(t, models.RoleStudent, nil)
	a := f.achievement(t, "First Lab", 50)

	first, err := f.svc.Issue(ctx, actorOf(sputnik), student.ID, a.ID)
	require.NoError(t, err)
	_, err = f.svc.Issue(ctx, actorOf(sputnik), student.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), f.balance(t, student))

	canceled, err := f.svc.Cancel(ctx, actorOf(sputnik), first.ID, "issued by mistake")
	require.NoError(t, err)
	assert.Equal(t, int64(50), f.balance(t, student))
	assert.Equal(t, models.AwardCanceled, canceled.State())
	require.NotNil(t, canceled.CancellationReason)
	assert.Equal(t, "issued by mistake", *canceled.CancellationReason)
	require.NotNil(t, canceled.CancelerID)
	assert.Equal(t, sputnik.ID, *canceled.CancelerID)
	assert.NotNil(t, canceled.CanceledAt)

	var ops []models.AchievementOperation
	require.NoError(t, f.db.Order("created_at ASC").Find(&ops).Error)
	require.Len(t, ops, 3)
	assert.Equal(t, models.OperationIssue, ops[0].Type)
	assert.Equal(t, models.OperationCancel, ops[2].Type)
	assert.Equal(t, first.ID, ops[2].IssuedAchievementID)

	assert.Len(t, f.notifier.issued, 2)
	assert.Len(t, f.notifier.canceled, 1)
}

func TestIssueSnapshotsReward(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	curator := f.user(t, models.RoleCurator, nil)
	student := f.user(t, models.RoleStudent, nil)
	a := f.achievement(t, "Olympiad", 30)

	award, err := f.svc.Issue(ctx, actorOf(curator), student.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30), award.Reward)
	assert.Equal(t, a.Name, award.Achievement.Name)
	assert.Equal(t, student.ID, award.Student.ID)

	require.NoError(t, f.db.Model(&models.Achievement{}).Where("id = ?", a.ID).Update("reward", 500).Error)

	_, err = f.svc.Cancel(ctx, actorOf(curator), award.ID, "duplicate")
	require.NoError(t, err)
	assert.Equal(t, int64(0), f.balance(t, student))
}

func TestIssueErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sputnik := f.user(t, models.RoleSputnik, nil)
	student := f.user(t, models.RoleStudent, nil)
	other := f.user(t, models.RoleStudent, nil)
	a := f.achievement(t, "Hackathon", 10)

	t.Run("StudentCannotIssue", func(t *testing.T) {
		_, err := f.svc.Issue(ctx, actorOf(other), student.ID, a.ID)
		assert.True(t, apperr.Is(err, apperr.KindForbidden))
	})

	t.Run("UnknownAchievement", func(t *testing.T) {
		_, err := f.svc.Issue(ctx, actorOf(sputnik), student.ID, uuid.New())
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})

	t.Run("UnknownStudent", func(t *testing.T) {
		_, err := f.svc.Issue(ctx, actorOf(sputnik), uuid.New(), a.ID)
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})

	t.Run("RecipientIsNotAStudent", func(t *testing.T) {
		_, err := f.svc.Issue(ctx, actorOf(sputnik), sputnik.ID, a.ID)
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})

	var count int64
	require.NoError(t, f.db.Model(&models.IssuedAchievement{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Zero(t, f.balance(t, student))
	assert.Empty(t, f.notifier.issued)
}

func TestIssueRollsBackOnAuditFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sputnik := f.user(t, models.RoleSputnik, nil)
	student := f.user(t, models.RoleStudent, nil)
	a := f.achievement(t, "Rollback", 40)

	require.NoError(t, f.db.Migrator().DropTable(&models.AchievementOperation{}))

	_, err := f.svc.Issue(ctx, actorOf(sputnik), student.ID, a.ID)
	require.Error(t, err)

	var count int64
	require.NoError(t, f.db.Model(&models.IssuedAchievement{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Zero(t, f.balance(t, student))
	assert.Empty(t, f.notifier.issued)
}

func TestCancelErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sputnik := f.user(t, models.RoleSputnik, nil)
	student := f.user(t, models.RoleStudent, nil)
	a := f.achievement(t, "Talk", 25)
	award, err := f.svc.Issue(ctx, actorOf(sputnik), student.ID, a.ID)
	require.NoError(t, err)

	t.Run("StudentCannotCancel", func(t *testing.T) {
		_, err := f.svc.Cancel(ctx, actorOf(student), award.ID, "nope")
		assert.True(t, apperr.Is(err, apperr.KindForbidden))
	})

	t.Run("BlankReason", func(t *testing.T) {
		_, err := f.svc.Cancel(ctx, actorOf(sputnik), award.ID, "   ")
		assert.True(t, apperr.Is(err, apperr.KindInvalid))
	})

	t.Run("UnknownAward", func(t *testing.T) {
		_, err := f.svc.Cancel(ctx, actorOf(sputnik), uuid.New(), "typo")
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})

	t.Run("DoubleCancel", func(t *testing.T) {
		_, err := f.svc.Cancel(ctx, actorOf(sputnik), award.ID, "typo")
		require.NoError(t, err)

		_, err = f.svc.Cancel(ctx, actorOf(sputnik), award.ID, "typo again")
		assert.True(t, apperr.Is(err, apperr.KindConflict))
		assert.Zero(t, f.balance(t, student))
		assert.Len(t, f.notifier.canceled, 1)
	})
}

func TestConcurrentCancelDebitsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sputnik := f.user(t, models.RoleSputnik, nil)
	student := f.user(t, models.RoleStudent, nil)
	a := f.achievement(t, "Race", 70)
	award, err := f.svc.Issue(ctx, actorOf(sputnik), student.ID, a.ID)
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Cancel(ctx, actorOf(sputnik), award.ID, "race")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case apperr.Is(err, apperr.KindConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 7, conflicts)
	assert.Zero(t, f.balance(t, student))

	var cancels int64
	require.NoError(t, f.db.Model(&models.AchievementOperation{}).Where("type = ?", models.OperationCancel).Count(&cancels).Error)
	assert.Equal(t, int64(1), cancels)
}

func TestNormalizeReason(t *testing.T) {
	reason, err := NormalizeReason("  wrong student \n")
	require.NoError(t, err)
	assert.Equal(t, "wrong student", reason)

	long := make([]rune, maxReasonLength+1)
	for i := range long {
		long[i] = 'ы'
	}
	_, err = NormalizeReason(string(long))
	assert.True(t, apperr.Is(err, apperr.KindInvalid))

	_, err = NormalizeReason(string(long[:maxReasonLength]))
	assert.NoError(t, err)
}
