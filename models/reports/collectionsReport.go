package reports

import (
	"context"

	"bitbucket.org/causeway/donors_backend/config"
)

type CollectionsByDonorResponse struct {
	DonorId       int     `json:"donor_id"`
	DonorName     *string `json:"donor_name"`
	TotalPledged  string  `json:"total_pledged"`
	TotalPaid     string  `json:"total_paid"`
	Balance       string  `json:"balance"`
	PaymentCount  int     `json:"payment_count"`
	PaymentStatus string  `json:"payment_status"`
}

// GetCollectionsByDonorReport summarizes approved money movement per donor.
func GetCollectionsByDonorReport(ctx context.Context) ([]*CollectionsByDonorResponse, error) {
	sql := `
SELECT
    pmv.donor_id,
    CONCAT(donors.first_name, ' ', donors.last_name) AS donor_name,
    CAST(donors.total_pledged AS CHAR) AS total_pledged,
    CAST(pmv.total_paid AS CHAR) AS total_paid,
    CAST(donors.total_pledged - pmv.total_paid AS CHAR) AS balance,
    pmv.payment_count,
    donors.payment_status
FROM
    (
        SELECT
            donor_id,
            SUM(amount) AS total_paid,
            COUNT(payments.id) AS payment_count
        FROM
            payments
        WHERE
            status = 'approved'
        GROUP BY
            donor_id
    ) AS pmv
    LEFT JOIN donors ON donors.id = pmv.donor_id;
`
	var records []*CollectionsByDonorResponse
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql).Scan(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

type OverdueInstallmentResponse struct {
	DonorId           int     `json:"donor_id"`
	DonorName         *string `json:"donor_name"`
	PlanId            int     `json:"plan_id"`
	InstallmentNumber int     `json:"installment_number"`
	DueDate           string  `json:"due_date"`
	Amount            string  `json:"amount"`
}

// GetOverdueInstallmentsReport lists every overdue installment with its donor,
// oldest due date first. The outreach team works this list top down.
func GetOverdueInstallmentsReport(ctx context.Context) ([]*OverdueInstallmentResponse, error) {
	sql := `
SELECT
    p.donor_id,
    CONCAT(donors.first_name, ' ', donors.last_name) AS donor_name,
    i.plan_id,
    i.installment_number,
    DATE_FORMAT(i.due_date, '%Y-%m-%d') AS due_date,
    CAST(i.amount AS CHAR) AS amount
FROM
    plan_installments i
    JOIN donor_payment_plans p ON p.id = i.plan_id
    LEFT JOIN donors ON donors.id = p.donor_id
WHERE
    i.status = 'overdue'
ORDER BY
    i.due_date, i.plan_id, i.installment_number;
`
	var records []*OverdueInstallmentResponse
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql).Scan(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
