package workflow

import (
	"context"
	"errors"

	"bitbucket.org/causeway/donors_backend/config"
	"bitbucket.org/causeway/donors_backend/models"
	"github.com/sirupsen/logrus"
)

// MaterializeMissingSchedules finds plans with no installment rows (legacy
// imports predate the schedule table) and generates each plan's schedule.
// Plans that grew rows between the scan and the generate are skipped, so a
// concurrent run is harmless.
func MaterializeMissingSchedules(ctx context.Context, logger *logrus.Logger, planId int, dryRun bool) (generated int, skipped int, err error) {
	db := config.GetDB()

	var planIds []int
	query := db.WithContext(ctx).Model(&models.PaymentPlan{}).
		Where("NOT EXISTS (SELECT 1 FROM plan_installments i WHERE i.plan_id = donor_payment_plans.id)")
	if planId > 0 {
		query = query.Where("id = ?", planId)
	}
	if err := query.Order("id").Pluck("id", &planIds).Error; err != nil {
		return 0, 0, err
	}

	logger.WithFields(logrus.Fields{
		"field":   "MaterializeMissingSchedules",
		"matched": len(planIds),
		"dry_run": dryRun,
	}).Info("plans without schedules")
	if dryRun {
		return 0, len(planIds), nil
	}

	for _, id := range planIds {
		if _, genErr := models.GenerateSchedule(ctx, id, nil); genErr != nil {
			if errors.Is(genErr, models.ErrScheduleExists) {
				skipped++
				continue
			}
			logger.WithFields(logrus.Fields{
				"field":   "MaterializeMissingSchedules",
				"plan_id": id,
			}).WithError(genErr).Error("schedule generation failed")
			return generated, skipped, genErr
		}
		generated++
	}

	logger.WithFields(logrus.Fields{
		"field":     "MaterializeMissingSchedules",
		"generated": generated,
		"skipped":   skipped,
	}).Info("schedule backfill completed")
	return generated, skipped, nil
}
