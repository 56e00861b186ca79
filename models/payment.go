package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/causeway/donors_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Payment struct {
	ID            int                   `gorm:"primary_key" json:"id"`
	DonorId       int                   `gorm:"index;not null" json:"donor_id" binding:"required"`
	PledgeId      *int                  `gorm:"index" json:"pledge_id"`
	Amount        decimal.Decimal       `gorm:"type:decimal(12,2);not null" json:"amount" binding:"required"`
	Method        PaymentMethod         `gorm:"size:20;not null" json:"method"`
	Status        PaymentApprovalStatus `gorm:"size:20;not null;default:'pending'" json:"status"`
	ReceiptNumber string                `gorm:"size:64;uniqueIndex" json:"receipt_number"`
	ReceivedDate  time.Time             `gorm:"not null" json:"received_date"`
	Notes         string                `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time             `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time             `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPayment struct {
	DonorId      int             `json:"donor_id" binding:"required"`
	PledgeId     *int            `json:"pledge_id"`
	Amount       decimal.Decimal `json:"amount" binding:"required"`
	Method       string          `json:"method"`
	ReceivedDate time.Time       `json:"received_date"`
	Notes        string          `json:"notes"`
}

func (input NewPayment) validate(ctx context.Context) (PaymentMethod, error) {
	if !input.Amount.IsPositive() {
		return "", errors.New("payment amount must be positive")
	}
	method, err := NormalizePaymentMethod(input.Method)
	if err != nil {
		return "", err
	}
	if err := utils.ValidateResourceId[Donor](ctx, input.DonorId); err != nil {
		return "", errors.New("donor not found")
	}
	if input.PledgeId != nil && *input.PledgeId > 0 {
		if err := utils.ValidateResourceId[Pledge](ctx, *input.PledgeId); err != nil {
			return "", errors.New("pledge not found")
		}
	}
	return method, nil
}

func CreatePayment(ctx context.Context, input *NewPayment) (*Payment, error) {
	method, err := input.validate(ctx)
	if err != nil {
		return nil, err
	}

	receivedDate := input.ReceivedDate
	if receivedDate.IsZero() {
		receivedDate = utils.DateOnly(time.Now().UTC())
	}

	payment := Payment{
		DonorId:       input.DonorId,
		PledgeId:      input.PledgeId,
		Amount:        roundMoney(input.Amount),
		Method:        method,
		Status:        PaymentApprovalStatusPending,
		ReceiptNumber: fmt.Sprintf("RCP-%s", uuid.NewString()[:8]),
		ReceivedDate:  receivedDate,
		Notes:         input.Notes,
	}

	db := getDB()
	if err := db.WithContext(ctx).Create(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// SetPaymentStatus moves a payment between pending/approved/declined. An
// approval re-derives the donor's totals and, when the donor has an active
// plan, satisfies that plan's earliest pending installment.
func SetPaymentStatus(ctx context.Context, id int, status PaymentApprovalStatus) (*Payment, error) {
	if !status.Valid() {
		return nil, errors.New("invalid payment status")
	}
	payment, err := utils.FetchModel[Payment](ctx, id)
	if err != nil {
		return nil, err
	}
	wasApproved := payment.Status == PaymentApprovalStatusApproved

	db := getDB()
	tx := db.Begin()
	payment.Status = status
	if err := tx.WithContext(ctx).Save(payment).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := RecomputeDonorFinancials(tx, ctx, payment.DonorId); err != nil {
		tx.Rollback()
		return nil, err
	}
	if status == PaymentApprovalStatusApproved && !wasApproved {
		if err := applyPaymentToActivePlan(tx, ctx, payment); err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	InvalidateDonorCache(payment.DonorId)
	return payment, nil
}

// applyPaymentToActivePlan advances the donor's active plan by one
// installment: the earliest pending (or overdue) row becomes paid and linked
// to the payment, payments_made is bumped, next_due_date moves to the next
// still-pending row, and the donor projection is re-synced.
func applyPaymentToActivePlan(tx *gorm.DB, ctx context.Context, payment *Payment) error {
	var plan PaymentPlan
	err := tx.WithContext(ctx).
		Where("donor_id = ? AND status = ?", payment.DonorId, PlanStatusActive).
		First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil // no active plan, a one-off donation
		}
		return err
	}

	var next Installment
	err = tx.WithContext(ctx).
		Where("plan_id = ? AND status IN ?", plan.ID, []InstallmentStatus{InstallmentStatusPending, InstallmentStatusOverdue}).
		Order("installment_number").
		First(&next).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil // schedule fully satisfied
		}
		return err
	}

	next.Status = InstallmentStatusPaid
	next.PaymentId = &payment.ID
	if err := tx.WithContext(ctx).Save(&next).Error; err != nil {
		return err
	}

	plan.PaymentsMade++
	if plan.PaymentsMade >= plan.InstallmentCount {
		plan.Status = PlanStatusCompleted
		plan.NextDueDate = nil
	} else {
		var upcoming Installment
		err := tx.WithContext(ctx).
			Where("plan_id = ? AND status IN ?", plan.ID, []InstallmentStatus{InstallmentStatusPending, InstallmentStatusOverdue}).
			Order("installment_number").
			First(&upcoming).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			plan.NextDueDate = nil
		} else {
			due := upcoming.DueDate
			plan.NextDueDate = &due
		}
	}
	if err := tx.WithContext(ctx).Save(&plan).Error; err != nil {
		return err
	}

	return SyncDonorAggregate(tx, ctx, plan.DonorId)
}

func GetPayment(ctx context.Context, id int) (*Payment, error) {
	return utils.FetchModel[Payment](ctx, id)
}

func GetPayments(ctx context.Context, donorId *int, status *PaymentApprovalStatus, limit int, offset int) ([]*Payment, int64, error) {
	db := getDB()
	dbCtx := db.WithContext(ctx).Model(&Payment{})
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
	var results []*Payment
	if err := dbCtx.Order("received_date DESC, id DESC").Limit(limit).Offset(offset).Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

// DeletePayment releases allocations tied to the payment, unlinks any
// installment that referenced it, deletes the row and re-derives the donor's
// total_paid and balance. One transaction, all or nothing.
func DeletePayment(ctx context.Context, id int) (*Payment, error) {
	payment, err := utils.FetchModel[Payment](ctx, id)
	if err != nil {
		return nil, err
	}

	db := getDB()
	tx := db.Begin()

	if err := deallocateResources(tx, ctx, AllocationReferenceTypePayment, id); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Model(&Installment{}).
		Where("payment_id = ?", id).Update("payment_id", nil).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Delete(payment).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := RecomputeDonorFinancials(tx, ctx, payment.DonorId); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	InvalidateDonorCache(payment.DonorId)
	return payment, nil
}
