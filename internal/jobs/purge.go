package jobs

import (
	"context"
	"time"

	"github.com/gdg-garage/sputnik-ledger/internal/apperr"
	"github.com/gdg-garage/sputnik-ledger/internal/models"
	"gorm.io/gorm"
)

// PurgeExpiredAPIKeys deletes API keys that expired before now. Running it
// twice is harmless.
func PurgeExpiredAPIKeys(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Delete(&models.APIKey{})
	if res.Error != nil {
		return 0, apperr.Wrap(res.Error, "failed to purge expired api keys")
	}
	return res.RowsAffected, nil
}
