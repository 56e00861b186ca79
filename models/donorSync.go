package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/causeway/donors_backend/config"
	"gorm.io/gorm"
)

const donorCacheKeyPrefix = "donorAggregate:"

// SyncDonorAggregate re-derives the donor's cached plan projection from the
// plan tables. It is the only writer of has_active_plan, active_plan_id and
// the cached_* columns, and it is idempotent: the result depends only on the
// current plan state, never on which mutation triggered the call. Runs inside
// the caller's transaction.
func SyncDonorAggregate(tx *gorm.DB, ctx context.Context, donorId int) error {
	var donor Donor
	if err := tx.WithContext(ctx).First(&donor, donorId).Error; err != nil {
		return err
	}

	// an active plan always wins the projection
	var active PaymentPlan
	err := tx.WithContext(ctx).
		Where("donor_id = ? AND status = ?", donorId, PlanStatusActive).
		Order("id DESC").First(&active).Error
	if err == nil {
		return writeDonorProjection(tx, ctx, donorId, &active, DonorPaymentStatusPaying)
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}

	// a paused plan keeps the link but the donor is not actively paying
	var paused PaymentPlan
	err = tx.WithContext(ctx).
		Where("donor_id = ? AND status = ?", donorId, PlanStatusPaused).
		Order("id DESC").First(&paused).Error
	if err == nil {
		return writeDonorProjection(tx, ctx, donorId, &paused, DonorPaymentStatusNotStarted)
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}

	// no live plan: if the donor still points at one, resolve what became of it
	if donor.ActivePlanId == nil {
		// nothing cached, nothing to clear; payment status is left alone
		return nil
	}

	var former PaymentPlan
	err = tx.WithContext(ctx).First(&former, *donor.ActivePlanId).Error
	if err == gorm.ErrRecordNotFound {
		// plan row is gone; fall back to the donor's balance
		status := DonorPaymentStatusNoPledge
		if donor.Balance.IsPositive() {
			status = DonorPaymentStatusNotStarted
		} else if donor.Balance.IsZero() {
			status = DonorPaymentStatusCompleted
		}
		return clearDonorProjection(tx, ctx, donorId, status)
	}
	if err != nil {
		return err
	}

	var status DonorPaymentStatus
	switch former.Status {
	case PlanStatusCompleted:
		status = DonorPaymentStatusCompleted
	case PlanStatusDefaulted:
		status = DonorPaymentStatusDefaulted
	default: // cancelled
		status = DonorPaymentStatusNotStarted
	}
	return clearDonorProjection(tx, ctx, donorId, status)
}

func writeDonorProjection(tx *gorm.DB, ctx context.Context, donorId int, plan *PaymentPlan, status DonorPaymentStatus) error {
	return tx.WithContext(ctx).Model(&Donor{}).Where("id = ?", donorId).
		Updates(map[string]interface{}{
			"has_active_plan":           true,
			"active_plan_id":            plan.ID,
			"cached_installment_amount": plan.InstallmentAmount,
			"cached_duration":           plan.InstallmentCount,
			"cached_start_date":         plan.StartDate,
			"cached_next_due_date":      plan.NextDueDate,
			"payment_status":            status,
		}).Error
}

func clearDonorProjection(tx *gorm.DB, ctx context.Context, donorId int, status DonorPaymentStatus) error {
	return tx.WithContext(ctx).Model(&Donor{}).Where("id = ?", donorId).
		Updates(map[string]interface{}{
			"has_active_plan":           false,
			"active_plan_id":            nil,
			"cached_installment_amount": nil,
			"cached_duration":           nil,
			"cached_start_date":         nil,
			"cached_next_due_date":      nil,
			"payment_status":            status,
		}).Error
}

func donorCacheKey(donorId int) string {
	return fmt.Sprintf("%s%d", donorCacheKeyPrefix, donorId)
}

func InvalidateDonorCache(donorId int) {
	config.RemoveRedisKey(donorCacheKey(donorId))
}

// GetDonorAggregate serves the donor read model, cached in redis for five
// minutes. Cache misses fall through to the database.
func GetDonorAggregate(ctx context.Context, donorId int) (*Donor, error) {
	var cached Donor
	if found, err := config.GetRedisObject(donorCacheKey(donorId), &cached); err == nil && found {
		return &cached, nil
	}

	donor, err := GetDonor(ctx, donorId)
	if err != nil {
		return nil, err
	}
	config.SetRedisObject(donorCacheKey(donorId), donor, 5*time.Minute)
	return donor, nil
}
