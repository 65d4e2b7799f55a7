package achievements

import (
	"context"

	"github.com/gdg-garage/sputnik-ledger/internal/apperr"
	"github.com/gdg-garage/sputnik-ledger/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Drift is a student whose balance differs from the sum of their active
// award rewards.
type Drift struct {
	UserID   uuid.UUID
	Balance  int64
	Expected int64
}

func (d Drift) Delta() int64 {
	return d.Balance - d.Expected
}

// Reconcile recomputes every student balance from the award table and reports
// mismatches. It only reads; fixing a drift is an operator decision.
func (s *Service) Reconcile(ctx context.Context) ([]Drift, error) {
	var drifts []Drift
	err := s.db.WithContext(ctx).Raw(`
		SELECT users.id AS user_id,
		       users.balance AS balance,
		       COALESCE(SUM(CASE WHEN issued_achievements.is_canceled = ? THEN issued_achievements.reward ELSE 0 END), 0) AS expected
		FROM users
		LEFT JOIN issued_achievements ON issued_achievements.student_id = users.id
		WHERE users.role = ?
		GROUP BY users.id, users.balance
		HAVING users.balance <> COALESCE(SUM(CASE WHEN issued_achievements.is_canceled = ? THEN issued_achievements.reward ELSE 0 END), 0)
		ORDER BY users.id`,
		false, models.RoleStudent, false,
	).Scan(&drifts).Error
	if err != nil {
		return nil, apperr.Wrap(err, "failed to reconcile balances")
	}

	for _, d := range drifts {
		s.log.Warn("Balance drift detected",
			zap.String("user_id", d.UserID.String()),
			zap.Int64("balance", d.Balance),
			zap.Int64("expected", d.Expected),
			zap.Int64("delta", d.Delta()))
	}
	s.log.Info("Balance reconciliation finished", zap.Int("drifts", len(drifts)))
	return drifts, nil
}
