package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/causeway/donors_backend/config"
	"bitbucket.org/causeway/donors_backend/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Drift detection output (nightly/admin-triggered).
type DriftReport struct {
	ID            int       `gorm:"primary_key" json:"id"`
	CheckType     string    `gorm:"size:50;index;not null" json:"check_type"`  // e.g. PLAN_AMOUNT, DONOR_AGGREGATE
	EntityType    string    `gorm:"size:50;index;not null" json:"entity_type"` // e.g. PaymentPlan, Donor
	EntityId      int       `gorm:"index;not null" json:"entity_id"`
	Details       string    `gorm:"type:text" json:"details"` // human-readable mismatch detail
	CorrelationId string    `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// RunDriftChecks writes mismatch rows to drift_reports. Intended for a nightly
// schedule or an admin trigger; it only reports, never repairs.
func RunDriftChecks(ctx context.Context) (correlationId string, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	db := config.GetDB()
	if db == nil {
		return "", fmt.Errorf("db is nil")
	}
	logger := config.GetLogger()

	cid, ok := utils.GetCorrelationIdFromContext(ctx)
	if !ok || cid == "" {
		cid = uuid.NewString()
	}
	now := time.Now().UTC()

	// 1) installment_amount * installment_count drifted from total_amount
	type planDrift struct {
		PlanId   int
		Expected string
		Actual   string
	}
	var planDrifts []planDrift
	if err := db.WithContext(ctx).Raw(`
		SELECT
			p.id AS plan_id,
			CAST(p.total_amount AS CHAR) AS expected,
			CAST(p.installment_amount * p.installment_count AS CHAR) AS actual
		FROM donor_payment_plans p
		WHERE p.installment_count > 0
		  AND ABS(p.installment_amount * p.installment_count - p.total_amount) > 0.01 * p.installment_count
	`).Scan(&planDrifts).Error; err != nil {
		return cid, err
	}
	for _, d := range planDrifts {
		_ = db.WithContext(ctx).Create(&DriftReport{
			CheckType:     "PLAN_AMOUNT",
			EntityType:    "PaymentPlan",
			EntityId:      d.PlanId,
			Details:       fmt.Sprintf("installment_amount*installment_count=%s drifted from total_amount=%s", d.Actual, d.Expected),
			CorrelationId: cid,
			CreatedAt:     now,
		}).Error
	}

	// 2) donor cached projection points at a plan that is not live
	type donorDrift struct {
		DonorId int
		PlanId  int
		Status  *string
	}
	var donorDrifts []donorDrift
	if err := db.WithContext(ctx).Raw(`
		SELECT d.id AS donor_id, d.active_plan_id AS plan_id, p.status AS status
		FROM donors d
		LEFT JOIN donor_payment_plans p ON p.id = d.active_plan_id
		WHERE d.active_plan_id IS NOT NULL
		  AND (p.id IS NULL OR p.status NOT IN ('active', 'paused'))
	`).Scan(&donorDrifts).Error; err != nil {
		return cid, err
	}
	for _, d := range donorDrifts {
		detail := "active_plan_id points at a deleted plan"
		if d.Status != nil {
			detail = fmt.Sprintf("active_plan_id points at plan %d with status %s", d.PlanId, *d.Status)
		}
		_ = db.WithContext(ctx).Create(&DriftReport{
			CheckType:     "DONOR_AGGREGATE",
			EntityType:    "Donor",
			EntityId:      d.DonorId,
			Details:       detail,
			CorrelationId: cid,
			CreatedAt:     now,
		}).Error
	}

	// 3) installment status partition: paid rows beyond payments_made, or
	//    pending rows already past due
	type instDrift struct {
		InstallmentId int
		Details       string
	}
	var instDrifts []instDrift
	if err := db.WithContext(ctx).Raw(`
		SELECT i.id AS installment_id,
		       CONCAT('paid installment #', i.installment_number, ' exceeds payments_made=', p.payments_made) AS details
		FROM plan_installments i
		JOIN donor_payment_plans p ON p.id = i.plan_id
		WHERE i.status = 'paid' AND i.installment_number > p.payments_made
		UNION ALL
		SELECT i.id AS installment_id,
		       CONCAT('pending installment #', i.installment_number, ' is past due (', DATE(i.due_date), ')') AS details
		FROM plan_installments i
		WHERE i.status = 'pending' AND i.due_date < CURDATE()
	`).Scan(&instDrifts).Error; err != nil {
		return cid, err
	}
	for _, d := range instDrifts {
		_ = db.WithContext(ctx).Create(&DriftReport{
			CheckType:     "INSTALLMENT_STATUS",
			EntityType:    "Installment",
			EntityId:      d.InstallmentId,
			Details:       d.Details,
			CorrelationId: cid,
			CreatedAt:     now,
		}).Error
	}

	// 4) donor totals vs sums over approved pledges/payments
	type totalsDrift struct {
		DonorId int
		Details string
	}
	var totalsDrifts []totalsDrift
	if err := db.WithContext(ctx).Raw(`
		SELECT d.id AS donor_id,
		       CONCAT('total_paid=', CAST(d.total_paid AS CHAR),
		              ' != sum(approved payments)=', CAST(COALESCE(SUM(pm.amount), 0) AS CHAR)) AS details
		FROM donors d
		LEFT JOIN payments pm ON pm.donor_id = d.id AND pm.status = 'approved'
		GROUP BY d.id
		HAVING ROUND(d.total_paid, 2) <> ROUND(COALESCE(SUM(pm.amount), 0), 2)
	`).Scan(&totalsDrifts).Error; err != nil {
		return cid, err
	}
	for _, d := range totalsDrifts {
		_ = db.WithContext(ctx).Create(&DriftReport{
			CheckType:     "DONOR_TOTALS",
			EntityType:    "Donor",
			EntityId:      d.DonorId,
			Details:       d.Details,
			CorrelationId: cid,
			CreatedAt:     now,
		}).Error
	}

	if logger != nil {
		logger.WithFields(logrus.Fields{
			"field":               "DriftChecks",
			"correlation_id":      cid,
			"plan_drifts":         len(planDrifts),
			"donor_drifts":        len(donorDrifts),
			"installment_drifts":  len(instDrifts),
			"donor_totals_drifts": len(totalsDrifts),
		}).Info("drift checks completed")
	}
	return cid, nil
}

func GetDriftReports(ctx context.Context, correlationId string, limit int, offset int) ([]*DriftReport, int64, error) {
	db := getDB()
	dbCtx := db.WithContext(ctx).Model(&DriftReport{})
	if correlationId != "" {
		dbCtx = dbCtx.Where("correlation_id = ?", correlationId)
	}
	var total int64
	if err := dbCtx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var results []*DriftReport
	if err := dbCtx.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, total, nil
}
