package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/causeway/donors_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Installment is one scheduled due payment within a plan.
type Installment struct {
	ID                int               `gorm:"primary_key" json:"id"`
	PlanId            int               `gorm:"index;not null;uniqueIndex:idx_plan_installment_no" json:"plan_id"`
	InstallmentNumber int               `gorm:"not null;uniqueIndex:idx_plan_installment_no" json:"installment_number"`
	DueDate           time.Time         `gorm:"not null" json:"due_date"`
	Amount            decimal.Decimal   `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status            InstallmentStatus `gorm:"size:20;not null;default:'pending'" json:"status"`
	PaymentId         *int              `gorm:"index" json:"payment_id"`
	CreatedAt         time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Installment) TableName() string {
	return "plan_installments"
}

// StepDueDate advances a due date by one frequency step. Unrecognized units
// on legacy rows fall back to one month.
func StepDueDate(from time.Time, unit FrequencyUnit, number int) time.Time {
	if number < 1 {
		number = 1
	}
	switch unit {
	case FrequencyUnitDay:
		return from.AddDate(0, 0, number)
	case FrequencyUnitWeek:
		return from.AddDate(0, 0, 7*number)
	case FrequencyUnitMonth:
		return from.AddDate(0, number, 0)
	case FrequencyUnitYear:
		return from.AddDate(number, 0, 0)
	default:
		return from.AddDate(0, 1, 0)
	}
}

// ScheduleParams is everything the generator needs to materialize a plan's
// schedule from scratch.
type ScheduleParams struct {
	PlanId            int
	InstallmentAmount decimal.Decimal
	FrequencyUnit     FrequencyUnit
	FrequencyNumber   int
	InstallmentCount  int
	PaymentsMade      int
	StartDate         time.Time
	// PaymentIds are already-received payment ids, associated by position
	// with the earliest paid installments.
	PaymentIds []int
	// Today decides pending vs overdue for unpaid installments.
	Today time.Time
}

// BuildSchedule produces the full ordered installment list for a plan.
// Pure computation: no reads, no writes, deterministic for a given Today.
func BuildSchedule(p ScheduleParams) ([]Installment, error) {
	if p.InstallmentCount < 1 {
		return nil, errors.New("installment count must be at least 1")
	}
	if !p.InstallmentAmount.IsPositive() {
		return nil, errors.New("installment amount must be positive")
	}
	if p.FrequencyNumber < 1 {
		return nil, errors.New("frequency number must be at least 1")
	}
	if !p.FrequencyUnit.Valid() {
		return nil, errors.New("unknown frequency unit")
	}
	if p.PaymentsMade < 0 || p.PaymentsMade > p.InstallmentCount {
		return nil, errors.New("payments made must be between 0 and the installment count")
	}

	today := utils.DateOnly(p.Today)
	cursor := utils.DateOnly(p.StartDate)

	rows := make([]Installment, 0, p.InstallmentCount)
	for i := 1; i <= p.InstallmentCount; i++ {
		status := InstallmentStatusPending
		var paymentId *int
		if i <= p.PaymentsMade {
			status = InstallmentStatusPaid
			if i-1 < len(p.PaymentIds) {
				id := p.PaymentIds[i-1]
				paymentId = &id
			}
		} else if cursor.Before(today) {
			status = InstallmentStatusOverdue
		}

		rows = append(rows, Installment{
			PlanId:            p.PlanId,
			InstallmentNumber: i,
			DueDate:           cursor,
			Amount:            roundMoney(p.InstallmentAmount),
			Status:            status,
			PaymentId:         paymentId,
		})
		cursor = StepDueDate(cursor, p.FrequencyUnit, p.FrequencyNumber)
	}
	return rows, nil
}

// GenerateSchedule materializes the schedule for an existing plan. If any
// installment rows already exist the call is rejected with ErrScheduleExists;
// regeneration requires deleting the plan and recreating it.
func GenerateSchedule(ctx context.Context, planId int, paymentIds []int) ([]Installment, error) {
	release, err := utils.PlanLock(ctx, planId, "models", "GenerateSchedule")
	if err != nil {
		return nil, err
	}
	defer release()

	plan, err := utils.FetchModel[PaymentPlan](ctx, planId)
	if err != nil {
		return nil, err
	}

	existing, err := utils.ResourceCountWhere[Installment](ctx, "plan_id = ?", planId)
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, ErrScheduleExists
	}

	db := getDB()
	tx := db.Begin()
	rows, err := materializeSchedule(tx, ctx, plan, utils.UniqueSlice(paymentIds))
	if err != nil {
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
	return rows, nil
}

// materializeSchedule repairs a drifted installment amount, writes the full
// schedule in one batch insert and moves the plan's next_due_date to the
// first pending row. Runs inside the caller's transaction.
func materializeSchedule(tx *gorm.DB, ctx context.Context, plan *PaymentPlan, paymentIds []int) ([]Installment, error) {
	amount := repairedInstallmentAmount(plan.TotalAmount, plan.InstallmentAmount, plan.InstallmentCount)

	rows, err := BuildSchedule(ScheduleParams{
		PlanId:            plan.ID,
		InstallmentAmount: amount,
		FrequencyUnit:     plan.FrequencyUnit,
		FrequencyNumber:   plan.FrequencyNumber,
		InstallmentCount:  plan.InstallmentCount,
		PaymentsMade:      plan.PaymentsMade,
		StartDate:         plan.StartDate,
		PaymentIds:        paymentIds,
		Today:             time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	if err := tx.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}

	plan.InstallmentAmount = amount
	plan.NextDueDate = nil
	for i := range rows {
		if rows[i].Status != InstallmentStatusPaid {
			due := rows[i].DueDate
			plan.NextDueDate = &due
			break
		}
	}
	if err := tx.WithContext(ctx).Save(plan).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// repairedInstallmentAmount enforces the amount invariant: when the stored
// per-installment amount no longer multiplies out to the plan total (within
// one cent per installment), it is recomputed as total/count.
func repairedInstallmentAmount(total decimal.Decimal, installment decimal.Decimal, count int) decimal.Decimal {
	if count < 1 {
		return installment
	}
	tolerance := decimal.NewFromFloat(0.01).Mul(decimal.NewFromInt(int64(count)))
	if installment.IsPositive() && installment.Mul(decimal.NewFromInt(int64(count))).Sub(total).Abs().LessThanOrEqual(tolerance) {
		return roundMoney(installment)
	}
	return total.Div(decimal.NewFromInt(int64(count))).Round(2)
}

// GetInstallments returns a plan's schedule ordered by installment number.
func GetInstallments(ctx context.Context, planId int) ([]*Installment, error) {
	db := getDB()
	var results []*Installment
	err := db.WithContext(ctx).
		Where("plan_id = ?", planId).
		Order("installment_number").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// UpdateInstallmentDueDate changes the due date of exactly one installment.
// Only pending installments are eligible; the plan's next_due_date is left
// alone on purpose (reschedule is the operation that moves it).
func UpdateInstallmentDueDate(ctx context.Context, installmentId int, newDate time.Time) (*Installment, error) {
	inst, err := utils.FetchModel[Installment](ctx, installmentId)
	if err != nil {
		return nil, err
	}
	if inst.Status != InstallmentStatusPending {
		return nil, ErrInstallmentNotEditable
	}

	inst.DueDate = utils.DateOnly(newDate)
	db := getDB()
	if err := db.WithContext(ctx).Save(inst).Error; err != nil {
		return nil, err
	}
	return inst, nil
}
