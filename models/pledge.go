package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/causeway/donors_backend/utils"
	"github.com/shopspring/decimal"
)

type Pledge struct {
	ID         int             `gorm:"primary_key" json:"id"`
	DonorId    int             `gorm:"index;not null" json:"donor_id" binding:"required"`
	Amount     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount" binding:"required"`
	Status     PledgeStatus    `gorm:"size:20;not null;default:'pending'" json:"status"`
	PledgeDate time.Time       `gorm:"not null" json:"pledge_date"`
	Campaign   string          `gorm:"size:255" json:"campaign"`
	Notes      string          `gorm:"type:text" json:"notes"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPledge struct {
	DonorId    int             `json:"donor_id" binding:"required"`
	Amount     decimal.Decimal `json:"amount" binding:"required"`
	PledgeDate time.Time       `json:"pledge_date"`
	Campaign   string          `json:"campaign"`
	Notes      string          `json:"notes"`
}

func CreatePledge(ctx context.Context, input *NewPledge) (*Pledge, error) {
	if !input.Amount.IsPositive() {
		return nil, errors.New("pledge amount must be positive")
	}
	if err := utils.ValidateResourceId[Donor](ctx, input.DonorId); err != nil {
		return nil, errors.New("donor not found")
	}

	pledgeDate := input.PledgeDate
	if pledgeDate.IsZero() {
		pledgeDate = utils.DateOnly(time.Now().UTC())
	}

	pledge := Pledge{
		DonorId:    input.DonorId,
		Amount:     roundMoney(input.Amount),
		Status:     PledgeStatusPending,
		PledgeDate: pledgeDate,
		Campaign:   input.Campaign,
		Notes:      input.Notes,
	}

	db := getDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&pledge).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := RecomputeDonorFinancials(tx, ctx, pledge.DonorId); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &pledge, nil
}

// SetPledgeStatus approves or rejects a pledge and re-derives the donor's
// pledged totals (rejected pledges never count toward total_pledged).
func SetPledgeStatus(ctx context.Context, id int, status PledgeStatus) (*Pledge, error) {
	if !status.Valid() {
		return nil, errors.New("invalid pledge status")
	}
	pledge, err := utils.FetchModel[Pledge](ctx, id)
	if err != nil {
		return nil, err
	}

	db := getDB()
	tx := db.Begin()
	pledge.Status = status
	if err := tx.WithContext(ctx).Save(pledge).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := RecomputeDonorFinancials(tx, ctx, pledge.DonorId); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	InvalidateDonorCache(pledge.DonorId)
	return pledge, nil
}

func GetPledge(ctx context.Context, id int) (*Pledge, error) {
	return utils.FetchModel[Pledge](ctx, id)
}

func GetPledges(ctx context.Context, donorId *int, status *PledgeStatus, limit int, offset int) ([]*Pledge, int64, error) {
	db := getDB()
	dbCtx := db.WithContext(ctx).Model(&Pledge{})
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
	var results []*Pledge
	if err := dbCtx.Order("pledge_date DESC, id DESC").Limit(limit).Offset(offset).Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

// DeletePledge is allowed only for rejected pledges with no payment plan
// still referencing them. Allocations are reset to available and payments
// are unlinked (never deleted); the whole protocol is one transaction.
func DeletePledge(ctx context.Context, id int) (*Pledge, error) {
	pledge, err := utils.FetchModel[Pledge](ctx, id)
	if err != nil {
		return nil, err
	}
	if pledge.Status != PledgeStatusRejected {
		return nil, ErrPledgeNotRejected
	}
	planCount, err := utils.ResourceCountWhere[PaymentPlan](ctx, "pledge_id = ?", id)
	if err != nil {
		return nil, err
	}
	if planCount > 0 {
		return nil, ErrPledgeHasPlans
	}

	db := getDB()
	tx := db.Begin()

	// release allocations tied to the pledge
	if err := deallocateResources(tx, ctx, AllocationReferenceTypePledge, id); err != nil {
		tx.Rollback()
		return nil, err
	}
	// unlink payments that referenced the pledge, keep the payments
	if err := tx.WithContext(ctx).Model(&Payment{}).
		Where("pledge_id = ?", id).Update("pledge_id", nil).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Delete(pledge).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	// rejected pledges never affected total_pledged; this refreshes the count
	if err := RecomputeDonorFinancials(tx, ctx, pledge.DonorId); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	InvalidateDonorCache(pledge.DonorId)
	return pledge, nil
}
