package models

import (
	"context"
	"errors"

	"bitbucket.org/causeway/donors_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Precondition errors. Handlers map these to 409 so the operator can tell
// "this isn't allowed right now" apart from "fix your input".
var (
	ErrScheduleExists         = errors.New("schedule already exists for this plan")
	ErrNothingToReschedule    = errors.New("nothing to reschedule: plan has no pending installments")
	ErrInstallmentNotEditable = errors.New("installment is not pending and cannot be edited")
	ErrPledgeNotRejected      = errors.New("only rejected pledges can be deleted")
	ErrPledgeHasPlans         = errors.New("pledge is still referenced by a payment plan")
)

// two decimal places for all stored currency values
func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// sum of approved payments for the donor
func donorTotalPaid(tx *gorm.DB, ctx context.Context, donorId int) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := tx.WithContext(ctx).Model(&Payment{}).
		Where("donor_id = ? AND status = ?", donorId, PaymentApprovalStatusApproved).
		Select("COALESCE(SUM(amount), 0)").Scan(&total).Error
	return total, err
}

// sum of approved pledges for the donor
func donorTotalPledged(tx *gorm.DB, ctx context.Context, donorId int) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := tx.WithContext(ctx).Model(&Pledge{}).
		Where("donor_id = ? AND status = ?", donorId, PledgeStatusApproved).
		Select("COALESCE(SUM(amount), 0)").Scan(&total).Error
	return total, err
}

// RecomputeDonorFinancials re-derives total_pledged, total_paid, balance and
// pledge_count from the pledges and payments tables inside the caller's
// transaction. The cached columns on donors are never treated as authoritative.
func RecomputeDonorFinancials(tx *gorm.DB, ctx context.Context, donorId int) error {
	totalPledged, err := donorTotalPledged(tx, ctx, donorId)
	if err != nil {
		return err
	}
	totalPaid, err := donorTotalPaid(tx, ctx, donorId)
	if err != nil {
		return err
	}
	var pledgeCount int64
	if err := tx.WithContext(ctx).Model(&Pledge{}).
		Where("donor_id = ?", donorId).Count(&pledgeCount).Error; err != nil {
		return err
	}
	return tx.WithContext(ctx).Model(&Donor{}).Where("id = ?", donorId).
		Updates(map[string]interface{}{
			"total_pledged": roundMoney(totalPledged),
			"total_paid":    roundMoney(totalPaid),
			"balance":       roundMoney(totalPledged.Sub(totalPaid)),
			"pledge_count":  pledgeCount,
		}).Error
}

func getDB() *gorm.DB {
	return config.GetDB()
}
