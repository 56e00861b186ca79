package reports

import (
	"context"
	"fmt"
	"io"

	"bitbucket.org/causeway/donors_backend/config"
	"bitbucket.org/causeway/donors_backend/models"
	"bitbucket.org/causeway/donors_backend/utils"
	"github.com/xuri/excelize/v2"
)

type PlanScheduleRow struct {
	InstallmentNumber int     `json:"installment_number"`
	DueDate           string  `json:"due_date"`
	Amount            string  `json:"amount"`
	Status            string  `json:"status"`
	PaymentId         *int    `json:"payment_id"`
	ReceiptNumber     *string `json:"receipt_number"`
}

func getPlanScheduleRows(ctx context.Context, planId int) ([]*PlanScheduleRow, error) {
	sql := `
SELECT
    i.installment_number,
    DATE_FORMAT(i.due_date, '%Y-%m-%d') AS due_date,
    CAST(i.amount AS CHAR) AS amount,
    i.status,
    i.payment_id,
    p.receipt_number
FROM
    plan_installments i
    LEFT JOIN payments p ON p.id = i.payment_id
WHERE
    i.plan_id = ?
ORDER BY
    i.installment_number;
`
	var records []*PlanScheduleRow
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql, planId).Scan(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// ExportPlanScheduleExcel streams the plan's installment schedule as an xlsx
// workbook with a header block describing the plan itself.
func ExportPlanScheduleExcel(ctx context.Context, planId int, w io.Writer) error {
	plan, err := utils.FetchModel[models.PaymentPlan](ctx, planId)
	if err != nil {
		return err
	}
	rows, err := getPlanScheduleRows(ctx, planId)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	sheet := "Schedule"
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetCellValue(sheet, "A1", "Plan")
	f.SetCellValue(sheet, "B1", plan.ID)
	f.SetCellValue(sheet, "A2", "Total")
	f.SetCellValue(sheet, "B2", plan.TotalAmount.StringFixed(2))
	f.SetCellValue(sheet, "A3", "Installments")
	f.SetCellValue(sheet, "B3", plan.InstallmentCount)
	f.SetCellValue(sheet, "A4", "Paid")
	f.SetCellValue(sheet, "B4", plan.PaymentsMade)
	f.SetCellValue(sheet, "A5", "Status")
	f.SetCellValue(sheet, "B5", string(plan.Status))

	headerRow := 7
	for col, h := range []string{"No", "DueDate", "Amount", "Status", "Receipt"} {
		cell, _ := excelize.CoordinatesToCellName(col+1, headerRow)
		f.SetCellValue(sheet, cell, h)
	}
	for i, r := range rows {
		rowNo := headerRow + 1 + i
		f.SetCellValue(sheet, "A"+fmt.Sprint(rowNo), r.InstallmentNumber)
		f.SetCellValue(sheet, "B"+fmt.Sprint(rowNo), r.DueDate)
		f.SetCellValue(sheet, "C"+fmt.Sprint(rowNo), r.Amount)
		f.SetCellValue(sheet, "D"+fmt.Sprint(rowNo), r.Status)
		f.SetCellValue(sheet, "E"+fmt.Sprint(rowNo), utils.DereferencePtr(r.ReceiptNumber, ""))
	}

	return f.Write(w)
}
