package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestStepDueDate(t *testing.T) {
	cases := []struct {
		name   string
		from   string
		unit   FrequencyUnit
		number int
		want   string
	}{
		{"one month", "2024-01-01", FrequencyUnitMonth, 1, "2024-02-01"},
		{"two months", "2024-01-01", FrequencyUnitMonth, 2, "2024-03-01"},
		{"one week", "2024-01-01", FrequencyUnitWeek, 1, "2024-01-08"},
		{"ten days", "2024-01-01", FrequencyUnitDay, 10, "2024-01-11"},
		{"one year", "2024-02-29", FrequencyUnitYear, 1, "2025-03-01"},
		{"month end normalizes", "2024-01-31", FrequencyUnitMonth, 1, "2024-03-02"},
		{"zero number treated as one", "2024-01-01", FrequencyUnitMonth, 0, "2024-02-01"},
		{"legacy unknown unit falls back to month", "2024-01-01", FrequencyUnit("fortnight"), 1, "2024-02-01"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := StepDueDate(date(tc.from), tc.unit, tc.number)
			if !got.Equal(date(tc.want)) {
				t.Errorf("StepDueDate(%s, %s, %d) = %s, want %s", tc.from, tc.unit, tc.number, got.Format("2006-01-02"), tc.want)
			}
		})
	}
}

func TestBuildScheduleMonthlyTwelve(t *testing.T) {
	rows, err := BuildSchedule(ScheduleParams{
		PlanId:            1,
		InstallmentAmount: decimal.RequireFromString("33.33"),
		FrequencyUnit:     FrequencyUnitMonth,
		FrequencyNumber:   1,
		InstallmentCount:  12,
		PaymentsMade:      0,
		StartDate:         date("2024-01-01"),
		Today:             date("2024-01-01"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 12 {
		t.Fatalf("got %d rows, want 12", len(rows))
	}
	for i, row := range rows {
		if row.InstallmentNumber != i+1 {
			t.Errorf("row %d: number = %d, want %d", i, row.InstallmentNumber, i+1)
		}
		want := date("2024-01-01").AddDate(0, i, 0)
		if !row.DueDate.Equal(want) {
			t.Errorf("row %d: due date = %s, want %s", i, row.DueDate.Format("2006-01-02"), want.Format("2006-01-02"))
		}
		if !row.Amount.Equal(decimal.RequireFromString("33.33")) {
			t.Errorf("row %d: amount = %s, want 33.33", i, row.Amount)
		}
		if row.Status != InstallmentStatusPending {
			t.Errorf("row %d: status = %s, want pending", i, row.Status)
		}
	}
	last := rows[11].DueDate
	if !last.Equal(date("2024-12-01")) {
		t.Errorf("last due date = %s, want 2024-12-01", last.Format("2006-01-02"))
	}
}

func TestBuildSchedulePaidPartition(t *testing.T) {
	rows, err := BuildSchedule(ScheduleParams{
		PlanId:            7,
		InstallmentAmount: decimal.RequireFromString("50.00"),
		FrequencyUnit:     FrequencyUnitMonth,
		FrequencyNumber:   1,
		InstallmentCount:  6,
		PaymentsMade:      2,
		StartDate:         date("2024-01-15"),
		PaymentIds:        []int{101, 102},
		Today:             date("2024-03-20"),
	})
	if err != nil {
		t.Fatal(err)
	}
	// paid up to payments_made, with positional payment linkage
	for i := 0; i < 2; i++ {
		if rows[i].Status != InstallmentStatusPaid {
			t.Errorf("row %d: status = %s, want paid", i, rows[i].Status)
		}
		if rows[i].PaymentId == nil || *rows[i].PaymentId != 101+i {
			t.Errorf("row %d: payment id = %v, want %d", i, rows[i].PaymentId, 101+i)
		}
	}
	// installment 3 due 2024-03-15 is past Today and unpaid
	if rows[2].Status != InstallmentStatusOverdue {
		t.Errorf("row 2: status = %s, want overdue", rows[2].Status)
	}
	for i := 3; i < 6; i++ {
		if rows[i].Status != InstallmentStatusPending {
			t.Errorf("row %d: status = %s, want pending", i, rows[i].Status)
		}
		if rows[i].PaymentId != nil {
			t.Errorf("row %d: unexpected payment id %d", i, *rows[i].PaymentId)
		}
	}
}

func TestBuildScheduleValidation(t *testing.T) {
	base := ScheduleParams{
		PlanId:            1,
		InstallmentAmount: decimal.RequireFromString("10.00"),
		FrequencyUnit:     FrequencyUnitMonth,
		FrequencyNumber:   1,
		InstallmentCount:  4,
		StartDate:         date("2024-01-01"),
		Today:             date("2024-01-01"),
	}

	bad := base
	bad.InstallmentCount = 0
	if _, err := BuildSchedule(bad); err == nil {
		t.Error("zero count accepted")
	}

	bad = base
	bad.InstallmentAmount = decimal.Zero
	if _, err := BuildSchedule(bad); err == nil {
		t.Error("zero amount accepted")
	}

	bad = base
	bad.FrequencyNumber = 0
	if _, err := BuildSchedule(bad); err == nil {
		t.Error("zero frequency number accepted")
	}

	bad = base
	bad.FrequencyUnit = FrequencyUnit("decade")
	if _, err := BuildSchedule(bad); err == nil {
		t.Error("unknown frequency unit accepted")
	}

	bad = base
	bad.PaymentsMade = 5
	if _, err := BuildSchedule(bad); err == nil {
		t.Error("payments made beyond count accepted")
	}
}

func TestRepairedInstallmentAmount(t *testing.T) {
	cases := []struct {
		name        string
		total       string
		installment string
		count       int
		want        string
	}{
		{"exact amount kept", "600.00", "50.00", 12, "50.00"},
		{"rounding remainder within tolerance kept", "400.00", "33.33", 12, "33.33"},
		{"zero amount recomputed", "400.00", "0", 12, "33.33"},
		{"drifted amount recomputed", "400.00", "40.00", 12, "33.33"},
		{"single installment", "250.00", "0", 1, "250.00"},
		{"uneven division rounds to cents", "100.00", "0", 3, "33.33"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := repairedInstallmentAmount(
				decimal.RequireFromString(tc.total),
				decimal.RequireFromString(tc.installment),
				tc.count,
			)
			if !got.Equal(decimal.RequireFromString(tc.want)) {
				t.Errorf("repairedInstallmentAmount(%s, %s, %d) = %s, want %s",
					tc.total, tc.installment, tc.count, got, tc.want)
			}
		})
	}
}

// A rebuilt schedule conserves the plan total to within one cent per
// installment regardless of how the division rounds.
func TestBuildScheduleConservation(t *testing.T) {
	totals := []string{"400.00", "100.00", "999.99", "17.53"}
	counts := []int{1, 3, 7, 12, 52}
	for _, total := range totals {
		for _, count := range counts {
			totalDec := decimal.RequireFromString(total)
			amount := repairedInstallmentAmount(totalDec, decimal.Zero, count)
			rows, err := BuildSchedule(ScheduleParams{
				PlanId:            1,
				InstallmentAmount: amount,
				FrequencyUnit:     FrequencyUnitWeek,
				FrequencyNumber:   1,
				InstallmentCount:  count,
				StartDate:         date("2024-06-01"),
				Today:             date("2024-06-01"),
			})
			if err != nil {
				t.Fatalf("total=%s count=%d: %v", total, count, err)
			}
			sum := decimal.Zero
			for _, row := range rows {
				sum = sum.Add(row.Amount)
			}
			tolerance := decimal.NewFromFloat(0.01).Mul(decimal.NewFromInt(int64(count)))
			if sum.Sub(totalDec).Abs().GreaterThan(tolerance) {
				t.Errorf("total=%s count=%d: schedule sums to %s, off by more than %s",
					total, count, sum, tolerance)
			}
		}
	}
}
