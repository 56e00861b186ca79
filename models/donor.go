package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/causeway/donors_backend/utils"
	"github.com/shopspring/decimal"
)

type Donor struct {
	ID        int    `gorm:"primary_key" json:"id"`
	FirstName string `gorm:"size:100;not null" json:"first_name" binding:"required"`
	LastName  string `gorm:"size:100;not null" json:"last_name"`
	Email     string `gorm:"size:255;index" json:"email"`
	Phone     string `gorm:"size:32;index" json:"phone"`
	Address   string `gorm:"type:text" json:"address"`
	Notes     string `gorm:"type:text" json:"notes"`

	// financial aggregates, re-derived from pledges/payments
	TotalPledged decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"total_pledged"`
	TotalPaid    decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"total_paid"`
	Balance      decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"balance"`
	PledgeCount  int             `gorm:"default:0" json:"pledge_count"`

	// active-plan projection, mirrored from donor_payment_plans by
	// SyncDonorAggregate. Read-path convenience only, never authoritative.
	HasActivePlan           bool               `gorm:"default:false" json:"has_active_plan"`
	ActivePlanId            *int               `gorm:"index" json:"active_plan_id"`
	CachedInstallmentAmount decimal.Decimal    `gorm:"type:decimal(12,2);default:0" json:"cached_installment_amount"`
	CachedDuration          int                `gorm:"default:0" json:"cached_duration"`
	CachedStartDate         *time.Time         `json:"cached_start_date"`
	CachedNextDueDate       *time.Time         `json:"cached_next_due_date"`
	PaymentStatus           DonorPaymentStatus `gorm:"size:20;default:'no_pledge'" json:"payment_status"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewDonor struct {
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	Notes     string `json:"notes"`
}

func (input NewDonor) validate() (string, error) {
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return "", errors.New("email is not valid")
	}
	phone := ""
	if input.Phone != "" {
		normalized, err := utils.NormalizePhoneNumber(input.Phone)
		if err != nil {
			return "", err
		}
		phone = normalized
	}
	return phone, nil
}

func CreateDonor(ctx context.Context, input *NewDonor) (*Donor, error) {
	phone, err := input.validate()
	if err != nil {
		return nil, err
	}
	if input.Email != "" {
		if err := utils.ValidateUnique[Donor](ctx, "email", input.Email, 0); err != nil {
			return nil, err
		}
	}

	donor := Donor{
		FirstName:     input.FirstName,
		LastName:      input.LastName,
		Email:         input.Email,
		Phone:         phone,
		Address:       input.Address,
		Notes:         input.Notes,
		PaymentStatus: DonorPaymentStatusNoPledge,
	}

	db := getDB()
	if err := db.WithContext(ctx).Create(&donor).Error; err != nil {
		return nil, err
	}
	return &donor, nil
}

func UpdateDonor(ctx context.Context, id int, input *NewDonor) (*Donor, error) {
	phone, err := input.validate()
	if err != nil {
		return nil, err
	}
	if input.Email != "" {
		if err := utils.ValidateUnique[Donor](ctx, "email", input.Email, id); err != nil {
			return nil, err
		}
	}

	donor, err := utils.FetchModel[Donor](ctx, id)
	if err != nil {
		return nil, err
	}

	donor.FirstName = input.FirstName
	donor.LastName = input.LastName
	donor.Email = input.Email
	donor.Phone = phone
	donor.Address = input.Address
	donor.Notes = input.Notes

	db := getDB()
	if err := db.WithContext(ctx).Save(donor).Error; err != nil {
		return nil, err
	}
	InvalidateDonorCache(donor.ID)
	return donor, nil
}

func GetDonor(ctx context.Context, id int) (*Donor, error) {
	return utils.FetchModel[Donor](ctx, id)
}

// GetDonors filters by free-text name/email/phone search.
func GetDonors(ctx context.Context, q *string, paymentStatus *DonorPaymentStatus, limit int, offset int) ([]*Donor, int64, error) {
	db := getDB()
	dbCtx := db.WithContext(ctx).Model(&Donor{})

	if q != nil && *q != "" {
		like := "%" + *q + "%"
		dbCtx = dbCtx.Where("(first_name LIKE ? OR last_name LIKE ? OR email LIKE ? OR phone LIKE ?)", like, like, like, like)
	}
	if paymentStatus != nil && *paymentStatus != "" {
		dbCtx = dbCtx.Where("payment_status = ?", *paymentStatus)
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
	var results []*Donor
	if err := dbCtx.Order("last_name, first_name").Limit(limit).Offset(offset).Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

// DeleteDonor refuses while pledges, payments or plans still reference the
// donor; those have their own deletion protocols.
func DeleteDonor(ctx context.Context, id int) (*Donor, error) {
	donor, err := utils.FetchModel[Donor](ctx, id)
	if err != nil {
		return nil, err
	}

	pledgeCount, err := utils.ResourceCountWhere[Pledge](ctx, "donor_id = ?", id)
	if err != nil {
		return nil, err
	}
	paymentCount, err := utils.ResourceCountWhere[Payment](ctx, "donor_id = ?", id)
	if err != nil {
		return nil, err
	}
	planCount, err := utils.ResourceCountWhere[PaymentPlan](ctx, "donor_id = ?", id)
	if err != nil {
		return nil, err
	}
	if pledgeCount > 0 || paymentCount > 0 || planCount > 0 {
		return nil, errors.New("donor still has pledges, payments or plans; delete those first")
	}

	db := getDB()
	if err := db.WithContext(ctx).Delete(donor).Error; err != nil {
		return nil, err
	}
	InvalidateDonorCache(id)
	return donor, nil
}
