package jobs

import (
	"context"
	"time"

	"github.com/gdg-garage/sputnik-ledger/internal/achievements"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func PurgeJob(db *gorm.DB, schedule string, log *zap.Logger) Job {
	return Job{
		Name:     "purge-expired-api-keys",
		Schedule: schedule,
		Run: func(ctx context.Context) error {
			n, err := PurgeExpiredAPIKeys(ctx, db, time.Now())
			if err != nil {
				return err
			}
			log.Info("Expired API keys purged", zap.Int64("deleted", n))
			return nil
		},
	}
}

// ReconcileJob reports balance drift. Drifts are logged by the service; the
// job fails only when the check itself cannot run.
func ReconcileJob(svc *achievements.Service, schedule string) Job {
	return Job{
		Name:     "reconcile-balances",
		Schedule: schedule,
		Run: func(ctx context.Context) error {
			_, err := svc.Reconcile(ctx)
			return err
		},
	}
}
