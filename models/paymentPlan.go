package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/causeway/donors_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentPlan is the master record an approved pledge is converted into.
// The donor-level cached columns mirror this table and are re-derived by
// SyncDonorAggregate after every mutation here.
type PaymentPlan struct {
	ID                int             `gorm:"primary_key" json:"id"`
	DonorId           int             `gorm:"index;not null" json:"donor_id"`
	PledgeId          int             `gorm:"index;not null" json:"pledge_id"`
	TotalAmount       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	InstallmentAmount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"installment_amount"`
	FrequencyUnit     FrequencyUnit   `gorm:"size:10;not null;default:'month'" json:"frequency_unit"`
	FrequencyNumber   int             `gorm:"not null;default:1" json:"frequency_number"`
	InstallmentCount  int             `gorm:"not null" json:"installment_count"`
	PaymentsMade      int             `gorm:"not null;default:0" json:"payments_made"`
	StartDate         time.Time       `gorm:"not null" json:"start_date"`
	NextDueDate       *time.Time      `json:"next_due_date"`
	Status            PlanStatus      `gorm:"size:20;not null;default:'active'" json:"status"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PaymentPlan) TableName() string {
	return "donor_payment_plans"
}

type NewPaymentPlan struct {
	PledgeId          int             `json:"pledge_id" binding:"required"`
	InstallmentAmount decimal.Decimal `json:"installment_amount"`
	FrequencyUnit     FrequencyUnit   `json:"frequency_unit"`
	FrequencyNumber   int             `json:"frequency_number"`
	InstallmentCount  int             `json:"installment_count" binding:"required"`
	StartDate         time.Time       `json:"start_date" binding:"required"`
	// PaymentIds link already-received payments to the earliest installments
	// (call-workflow conversions arrive with payments in hand).
	PaymentIds []int `json:"payment_ids"`
}

// CreatePaymentPlan converts an approved pledge into an active plan and
// materializes its schedule, all in one transaction.
func CreatePaymentPlan(ctx context.Context, input *NewPaymentPlan) (*PaymentPlan, error) {
	pledge, err := utils.FetchModel[Pledge](ctx, input.PledgeId)
	if err != nil {
		return nil, errors.New("pledge not found")
	}
	if pledge.Status != PledgeStatusApproved {
		return nil, errors.New("only approved pledges can be converted into a plan")
	}
	if input.InstallmentCount < 1 {
		return nil, errors.New("installment count must be at least 1")
	}
	unit := input.FrequencyUnit
	if unit == "" {
		unit = FrequencyUnitMonth
	}
	if !unit.Valid() {
		return nil, errors.New("unknown frequency unit")
	}
	number := input.FrequencyNumber
	if number == 0 {
		number = 1
	}
	if number < 1 {
		return nil, errors.New("frequency number must be at least 1")
	}
	if input.StartDate.IsZero() {
		return nil, errors.New("start date is required")
	}

	existingActive, err := utils.ResourceCountWhere[PaymentPlan](ctx,
		"donor_id = ? AND status IN ?", pledge.DonorId, []PlanStatus{PlanStatusActive, PlanStatusPaused})
	if err != nil {
		return nil, err
	}
	if existingActive > 0 {
		return nil, errors.New("donor already has an active or paused plan")
	}

	amount := repairedInstallmentAmount(pledge.Amount, input.InstallmentAmount, input.InstallmentCount)
	paymentsMade := len(input.PaymentIds)
	if paymentsMade > input.InstallmentCount {
		return nil, errors.New("more payments supplied than installments")
	}

	plan := PaymentPlan{
		DonorId:           pledge.DonorId,
		PledgeId:          pledge.ID,
		TotalAmount:       roundMoney(pledge.Amount),
		InstallmentAmount: amount,
		FrequencyUnit:     unit,
		FrequencyNumber:   number,
		InstallmentCount:  input.InstallmentCount,
		PaymentsMade:      paymentsMade,
		StartDate:         utils.DateOnly(input.StartDate),
		Status:            PlanStatusActive,
	}

	db := getDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&plan).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if _, err := materializeSchedule(tx, ctx, &plan, input.PaymentIds); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := SyncDonorAggregate(tx, ctx, plan.DonorId); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	InvalidateDonorCache(plan.DonorId)
	return &plan, nil
}

func GetPaymentPlan(ctx context.Context, id int) (*PaymentPlan, error) {
	return utils.FetchModel[PaymentPlan](ctx, id)
}

func GetPaymentPlans(ctx context.Context, donorId *int, status *PlanStatus, limit int, offset int) ([]*PaymentPlan, int64, error) {
	db := getDB()
	dbCtx := db.WithContext(ctx).Model(&PaymentPlan{})
	if donorId != nil && *donorId > 0 {
		dbCtx = dbCtx.Where("donor_id = ?", *donorId)
	}
	if status != nil && *status != "" {
		dbCtx = dbCtx.Where("status = ?", *status)
	}

	var total int64
	if err := dbCtx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	var results []*PaymentPlan
	if err := dbCtx.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

// ReschedulePlan shifts every pending installment forward from the new
// anchor date, preserving the plan's frequency spacing. Paid and overdue
// rows are never moved. One transaction; the plan's next_due_date becomes
// the anchor.
func ReschedulePlan(ctx context.Context, planId int, anchor time.Time) ([]*Installment, error) {
	release, err := utils.PlanLock(ctx, planId, "models", "ReschedulePlan")
	if err != nil {
		return nil, err
	}
	defer release()

	plan, err := utils.FetchModel[PaymentPlan](ctx, planId)
	if err != nil {
		return nil, err
	}
	if anchor.IsZero() {
		return nil, errors.New("anchor date is required")
	}

	db := getDB()
	var pending []*Installment
	if err := db.WithContext(ctx).
		Where("plan_id = ? AND status = ?", planId, InstallmentStatusPending).
		Order("installment_number").
		Find(&pending).Error; err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, ErrNothingToReschedule
	}

	cursor := utils.DateOnly(anchor)
	tx := db.Begin()
	for _, inst := range pending {
		inst.DueDate = cursor
		if err := tx.WithContext(ctx).Save(inst).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		cursor = StepDueDate(cursor, plan.FrequencyUnit, plan.FrequencyNumber)
	}

	newNextDue := utils.DateOnly(anchor)
	plan.NextDueDate = &newNextDue
	if err := tx.WithContext(ctx).Save(plan).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := SyncDonorAggregate(tx, ctx, plan.DonorId); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	InvalidateDonorCache(plan.DonorId)
	return pending, nil
}

// SetPlanStatus applies an operator status change. No state machine is
// enforced; the donor projection depends only on the new status.
func SetPlanStatus(ctx context.Context, planId int, status PlanStatus) (*PaymentPlan, error) {
	if !status.Valid() {
		return nil, errors.New("invalid plan status")
	}

	release, err := utils.PlanLock(ctx, planId, "models", "SetPlanStatus")
	if err != nil {
		return nil, err
	}
	defer release()

	plan, err := utils.FetchModel[PaymentPlan](ctx, planId)
	if err != nil {
		return nil, err
	}

	db := getDB()
	tx := db.Begin()
	plan.Status = status
	if err := tx.WithContext(ctx).Save(plan).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := SyncDonorAggregate(tx, ctx, plan.DonorId); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	InvalidateDonorCache(plan.DonorId)
	return plan, nil
}

type UpdatePlanSchedule struct {
	InstallmentAmount *decimal.Decimal `json:"installment_amount"`
	InstallmentCount  *int             `json:"installment_count"`
	StartDate         *time.Time       `json:"start_date"`
	NextDueDate       *time.Time       `json:"next_due_date"`
}

// UpdatePlanScheduleFields edits the plan's schedule attributes and re-syncs
// the donor projection in full (never a subset of the cached fields).
// Installment rows themselves are only moved by reschedule or the editor.
func UpdatePlanScheduleFields(ctx context.Context, planId int, input *UpdatePlanSchedule) (*PaymentPlan, error) {
	release, err := utils.PlanLock(ctx, planId, "models", "UpdatePlanScheduleFields")
	if err != nil {
		return nil, err
	}
	defer release()

	plan, err := utils.FetchModel[PaymentPlan](ctx, planId)
	if err != nil {
		return nil, err
	}

	if input.InstallmentAmount != nil {
		if !input.InstallmentAmount.IsPositive() {
			return nil, errors.New("installment amount must be positive")
		}
		plan.InstallmentAmount = roundMoney(*input.InstallmentAmount)
	}
	if input.InstallmentCount != nil {
		if *input.InstallmentCount < 1 {
			return nil, errors.New("installment count must be at least 1")
		}
		plan.InstallmentCount = *input.InstallmentCount
	}
	if input.StartDate != nil {
		plan.StartDate = utils.DateOnly(*input.StartDate)
	}
	if input.NextDueDate != nil {
		nextDue := utils.DateOnly(*input.NextDueDate)
		plan.NextDueDate = &nextDue
	}

	db := getDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Save(plan).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := SyncDonorAggregate(tx, ctx, plan.DonorId); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	InvalidateDonorCache(plan.DonorId)
	return plan, nil
}

// DeletePaymentPlan removes a plan and its schedule: call sessions that
// reference the plan are unlinked, the donor projection is cleared with a
// payment status recomputed from the current balance, and everything happens
// in one transaction.
func DeletePaymentPlan(ctx context.Context, planId int) (*PaymentPlan, error) {
	release, err := utils.PlanLock(ctx, planId, "models", "DeletePaymentPlan")
	if err != nil {
		return nil, err
	}
	defer release()

	plan, err := utils.FetchModel[PaymentPlan](ctx, planId)
	if err != nil {
		return nil, err
	}

	db := getDB()
	tx := db.Begin()
	if err := deletePaymentPlanTx(tx, ctx, plan); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	InvalidateDonorCache(plan.DonorId)
	return plan, nil
}

// deletePaymentPlanTx is the shared plan-deletion protocol, usable from the
// call-session cascade as well. Runs inside the caller's transaction.
func deletePaymentPlanTx(tx *gorm.DB, ctx context.Context, plan *PaymentPlan) error {
	// unlink call sessions that reference the plan
	if err := tx.WithContext(ctx).Model(&CallSession{}).
		Where("plan_id = ?", plan.ID).Update("plan_id", nil).Error; err != nil {
		return err
	}
	// drop the schedule
	if err := tx.WithContext(ctx).
		Where("plan_id = ?", plan.ID).Delete(&Installment{}).Error; err != nil {
		return err
	}
	// clear the donor projection if this was the active plan, deriving the
	// payment status from the donor's current balance
	var donor Donor
	if err := tx.WithContext(ctx).First(&donor, plan.DonorId).Error; err != nil {
		return err
	}
	if donor.ActivePlanId != nil && *donor.ActivePlanId == plan.ID {
		status := DonorPaymentStatusNoPledge
		if donor.Balance.IsPositive() {
			status = DonorPaymentStatusNotStarted
		} else if donor.Balance.IsZero() {
			status = DonorPaymentStatusCompleted
		}
		if err := clearDonorProjection(tx, ctx, donor.ID, status); err != nil {
			return err
		}
	}
	return tx.WithContext(ctx).Delete(plan).Error
}
