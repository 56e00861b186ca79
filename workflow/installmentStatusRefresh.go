package workflow

import (
	"context"

	"bitbucket.org/causeway/donors_backend/config"
	"github.com/sirupsen/logrus"
)

// RefreshInstallmentStatuses re-derives every installment's status from its
// plan: rows numbered at or below payments_made are paid, the rest are
// overdue when past due and pending otherwise. Safe to run repeatedly; a
// clean database yields zero affected rows.
func RefreshInstallmentStatuses(ctx context.Context, logger *logrus.Logger) (int64, error) {
	db := config.GetDB()

	var affected int64
	steps := []struct {
		name string
		sql  string
	}{
		{"mark_paid", `
			UPDATE plan_installments i
			JOIN donor_payment_plans p ON p.id = i.plan_id
			SET i.status = 'paid'
			WHERE i.installment_number <= p.payments_made
			  AND i.status <> 'paid'
		`},
		{"mark_overdue", `
			UPDATE plan_installments i
			JOIN donor_payment_plans p ON p.id = i.plan_id
			SET i.status = 'overdue'
			WHERE i.installment_number > p.payments_made
			  AND i.due_date < CURDATE()
			  AND i.status <> 'overdue'
		`},
		{"mark_pending", `
			UPDATE plan_installments i
			JOIN donor_payment_plans p ON p.id = i.plan_id
			SET i.status = 'pending'
			WHERE i.installment_number > p.payments_made
			  AND i.due_date >= CURDATE()
			  AND i.status <> 'pending'
		`},
	}
	for _, step := range steps {
		result := db.WithContext(ctx).Exec(step.sql)
		if result.Error != nil {
			return affected, result.Error
		}
		logger.WithFields(logrus.Fields{
			"field": "RefreshInstallmentStatuses",
			"step":  step.name,
			"rows":  result.RowsAffected,
		}).Info("installment status refresh step")
		affected += result.RowsAffected
	}
	return affected, nil
}
