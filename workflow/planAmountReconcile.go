package workflow

import (
	"context"

	"bitbucket.org/causeway/donors_backend/config"
	"github.com/sirupsen/logrus"
)

// ReconcilePlanAmounts repairs plans whose installment amount was lost by the
// legacy importer (stored as zero while the total and count survived). One
// idempotent UPDATE: rerunning it matches no rows.
func ReconcilePlanAmounts(ctx context.Context, logger *logrus.Logger, dryRun bool) (int64, error) {
	db := config.GetDB()

	if dryRun {
		var count int64
		err := db.WithContext(ctx).Raw(`
			SELECT COUNT(*)
			FROM donor_payment_plans
			WHERE installment_amount = 0
			  AND total_amount > 0
			  AND installment_count > 0
		`).Scan(&count).Error
		if err != nil {
			return 0, err
		}
		logger.WithFields(logrus.Fields{
			"field":   "ReconcilePlanAmounts",
			"dry_run": true,
			"matched": count,
		}).Info("plan amount reconcile (dry run)")
		return count, nil
	}

	result := db.WithContext(ctx).Exec(`
		UPDATE donor_payment_plans
		SET installment_amount = ROUND(total_amount / installment_count, 2)
		WHERE installment_amount = 0
		  AND total_amount > 0
		  AND installment_count > 0
	`)
	if result.Error != nil {
		return 0, result.Error
	}
	logger.WithFields(logrus.Fields{
		"field":    "ReconcilePlanAmounts",
		"repaired": result.RowsAffected,
	}).Info("plan amount reconcile completed")
	return result.RowsAffected, nil
}
