package workflow

import (
	"context"

	"bitbucket.org/causeway/donors_backend/config"
	"bitbucket.org/causeway/donors_backend/models"
	"github.com/sirupsen/logrus"
)

// SyncAllDonorAggregates replays the donor projection sync for every donor
// (or one, when donorId > 0), each in its own transaction so a bad row does
// not hold up the rest. Also recomputes the financial totals, since legacy
// data drifts on both.
func SyncAllDonorAggregates(ctx context.Context, logger *logrus.Logger, donorId int) (synced int, failed int, err error) {
	db := config.GetDB()

	var donorIds []int
	query := db.WithContext(ctx).Model(&models.Donor{})
	if donorId > 0 {
		query = query.Where("id = ?", donorId)
	}
	if err := query.Order("id").Pluck("id", &donorIds).Error; err != nil {
		return 0, 0, err
	}

	for _, id := range donorIds {
		tx := db.Begin()
		if syncErr := models.RecomputeDonorFinancials(tx, ctx, id); syncErr != nil {
			tx.Rollback()
			failed++
			logger.WithFields(logrus.Fields{
				"field":    "SyncAllDonorAggregates",
				"donor_id": id,
			}).WithError(syncErr).Error("financial recompute failed")
			continue
		}
		if syncErr := models.SyncDonorAggregate(tx, ctx, id); syncErr != nil {
			tx.Rollback()
			failed++
			logger.WithFields(logrus.Fields{
				"field":    "SyncAllDonorAggregates",
				"donor_id": id,
			}).WithError(syncErr).Error("aggregate sync failed")
			continue
		}
		if commitErr := tx.Commit().Error; commitErr != nil {
			failed++
			continue
		}
		models.InvalidateDonorCache(id)
		synced++
	}

	logger.WithFields(logrus.Fields{
		"field":  "SyncAllDonorAggregates",
		"synced": synced,
		"failed": failed,
	}).Info("donor aggregate sync completed")
	return synced, failed, nil
}
