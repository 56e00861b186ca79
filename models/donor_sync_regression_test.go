package models_test

import (
	"context"
	"testing"
	"time"

	"bitbucket.org/causeway/donors_backend/models"
	"bitbucket.org/causeway/donors_backend/utils"
	"bitbucket.org/causeway/donors_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Exercises the full pledge-to-plan lifecycle and verifies the donor's
// cached projection after every plan mutation. Start dates sit in the
// future so freshly generated rows are pending, not overdue.
func TestDonorProjectionFollowsPlanLifecycle(t *testing.T) {
	requireIntegration(t)
	setupIntegration(t)
	ctx := context.Background()

	start := utils.DateOnly(time.Now().UTC()).AddDate(0, 1, 0)

	donor, err := models.CreateDonor(ctx, &models.NewDonor{
		FirstName: "Mary",
		LastName:  "Holt",
		Email:     "mary.holt@example.org",
	})
	if err != nil {
		t.Fatal(err)
	}
	if donor.PaymentStatus != models.DonorPaymentStatusNoPledge {
		t.Fatalf("new donor payment status = %s, want no_pledge", donor.PaymentStatus)
	}

	pledge, err := models.CreatePledge(ctx, &models.NewPledge{
		DonorId: donor.ID,
		Amount:  decimal.RequireFromString("400.00"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := models.SetPledgeStatus(ctx, pledge.ID, models.PledgeStatusApproved); err != nil {
		t.Fatal(err)
	}

	d, err := models.GetDonor(ctx, donor.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !d.TotalPledged.Equal(decimal.RequireFromString("400.00")) {
		t.Errorf("total pledged = %s, want 400.00", d.TotalPledged)
	}
	if !d.Balance.Equal(decimal.RequireFromString("400.00")) {
		t.Errorf("balance = %s, want 400.00", d.Balance)
	}

	plan, err := models.CreatePaymentPlan(ctx, &models.NewPaymentPlan{
		PledgeId:         pledge.ID,
		InstallmentCount: 12,
		StartDate:        start,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !plan.InstallmentAmount.Equal(decimal.RequireFromString("33.33")) {
		t.Errorf("installment amount = %s, want 33.33", plan.InstallmentAmount)
	}

	installments, err := models.GetInstallments(ctx, plan.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(installments) != 12 {
		t.Fatalf("got %d installments, want 12", len(installments))
	}
	for i, inst := range installments {
		if inst.Status != models.InstallmentStatusPending {
			t.Errorf("installment %d status = %s, want pending", i+1, inst.Status)
		}
	}

	// generating again is rejected
	if _, err := models.GenerateSchedule(ctx, plan.ID, nil); err != models.ErrScheduleExists {
		t.Errorf("second generate: got %v, want ErrScheduleExists", err)
	}

	d, _ = models.GetDonor(ctx, donor.ID)
	if !d.HasActivePlan || d.ActivePlanId == nil || *d.ActivePlanId != plan.ID {
		t.Fatalf("projection not pointing at plan %d: %+v", plan.ID, d)
	}
	if d.PaymentStatus != models.DonorPaymentStatusPaying {
		t.Errorf("payment status = %s, want paying", d.PaymentStatus)
	}
	if d.CachedDuration != 12 {
		t.Errorf("cached duration = %d, want 12", d.CachedDuration)
	}
	if d.CachedNextDueDate == nil || !d.CachedNextDueDate.Equal(start) {
		t.Errorf("cached next due = %v, want %s", d.CachedNextDueDate, start.Format("2006-01-02"))
	}

	// an approved payment advances payments_made and the installment linkage
	payment, err := models.CreatePayment(ctx, &models.NewPayment{
		DonorId:  donor.ID,
		PledgeId: &pledge.ID,
		Amount:   decimal.RequireFromString("33.33"),
		Method:   "dd",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := models.SetPaymentStatus(ctx, payment.ID, models.PaymentApprovalStatusApproved); err != nil {
		t.Fatal(err)
	}

	plan2, _ := models.GetPaymentPlan(ctx, plan.ID)
	if plan2.PaymentsMade != 1 {
		t.Errorf("payments made = %d, want 1", plan2.PaymentsMade)
	}
	installments, _ = models.GetInstallments(ctx, plan.ID)
	if installments[0].Status != models.InstallmentStatusPaid {
		t.Errorf("first installment status = %s, want paid", installments[0].Status)
	}
	if installments[0].PaymentId == nil || *installments[0].PaymentId != payment.ID {
		t.Errorf("first installment not linked to payment %d", payment.ID)
	}
	wantNext := start.AddDate(0, 1, 0)
	if plan2.NextDueDate == nil || !plan2.NextDueDate.Equal(wantNext) {
		t.Errorf("next due date = %v, want %s", plan2.NextDueDate, wantNext.Format("2006-01-02"))
	}

	// pausing keeps the link but the donor is no longer paying
	if _, err := models.SetPlanStatus(ctx, plan.ID, models.PlanStatusPaused); err != nil {
		t.Fatal(err)
	}
	d, _ = models.GetDonor(ctx, donor.ID)
	if !d.HasActivePlan || d.ActivePlanId == nil {
		t.Error("pause cleared the plan link")
	}
	if d.PaymentStatus != models.DonorPaymentStatusNotStarted {
		t.Errorf("paused payment status = %s, want not_started", d.PaymentStatus)
	}

	// reactivation restores the paying projection
	if _, err := models.SetPlanStatus(ctx, plan.ID, models.PlanStatusActive); err != nil {
		t.Fatal(err)
	}
	d, _ = models.GetDonor(ctx, donor.ID)
	if d.PaymentStatus != models.DonorPaymentStatusPaying {
		t.Errorf("reactivated payment status = %s, want paying", d.PaymentStatus)
	}

	// cancellation clears the projection
	if _, err := models.SetPlanStatus(ctx, plan.ID, models.PlanStatusCancelled); err != nil {
		t.Fatal(err)
	}
	d, _ = models.GetDonor(ctx, donor.ID)
	if d.HasActivePlan || d.ActivePlanId != nil {
		t.Error("cancellation left the plan link in place")
	}
	if d.PaymentStatus != models.DonorPaymentStatusNotStarted {
		t.Errorf("cancelled payment status = %s, want not_started", d.PaymentStatus)
	}

	// the bulk sync is a no-op on a clean database
	logger := logrus.New()
	synced, failed, err := workflow.SyncAllDonorAggregates(ctx, logger, 0)
	if err != nil || failed != 0 {
		t.Fatalf("bulk sync: synced=%d failed=%d err=%v", synced, failed, err)
	}
	d2, _ := models.GetDonor(ctx, donor.ID)
	if d2.PaymentStatus != d.PaymentStatus || d2.HasActivePlan != d.HasActivePlan {
		t.Error("bulk sync changed a donor that was already consistent")
	}
}

func TestReschedulePreservesPaidRows(t *testing.T) {
	requireIntegration(t)
	setupIntegration(t)
	ctx := context.Background()

	start := utils.DateOnly(time.Now().UTC()).AddDate(0, 0, 10)

	donor, err := models.CreateDonor(ctx, &models.NewDonor{FirstName: "Ade"})
	if err != nil {
		t.Fatal(err)
	}
	pledge, err := models.CreatePledge(ctx, &models.NewPledge{
		DonorId: donor.ID,
		Amount:  decimal.RequireFromString("120.00"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := models.SetPledgeStatus(ctx, pledge.ID, models.PledgeStatusApproved); err != nil {
		t.Fatal(err)
	}
	plan, err := models.CreatePaymentPlan(ctx, &models.NewPaymentPlan{
		PledgeId:         pledge.ID,
		InstallmentCount: 6,
		StartDate:        start,
	})
	if err != nil {
		t.Fatal(err)
	}

	// two approved payments mark rows 1 and 2 paid
	for i := 0; i < 2; i++ {
		p, err := models.CreatePayment(ctx, &models.NewPayment{
			DonorId: donor.ID,
			Amount:  decimal.RequireFromString("20.00"),
			Method:  "cash",
		})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := models.SetPaymentStatus(ctx, p.ID, models.PaymentApprovalStatusApproved); err != nil {
			t.Fatal(err)
		}
	}

	anchor := start.AddDate(0, 3, 0)
	moved, err := models.ReschedulePlan(ctx, plan.ID, anchor)
	if err != nil {
		t.Fatal(err)
	}
	if len(moved) != 4 {
		t.Fatalf("rescheduled %d rows, want 4", len(moved))
	}

	installments, _ := models.GetInstallments(ctx, plan.ID)
	// paid rows keep their original dates
	if !installments[0].DueDate.Equal(start) {
		t.Errorf("paid row 1 moved to %s", installments[0].DueDate.Format("2006-01-02"))
	}
	if !installments[1].DueDate.Equal(start.AddDate(0, 1, 0)) {
		t.Errorf("paid row 2 moved to %s", installments[1].DueDate.Format("2006-01-02"))
	}
	// pending rows re-anchor with monthly spacing
	for i := 2; i < 6; i++ {
		want := anchor.AddDate(0, i-2, 0)
		if !installments[i].DueDate.Equal(want) {
			t.Errorf("row %d due %s, want %s", i+1,
				installments[i].DueDate.Format("2006-01-02"), want.Format("2006-01-02"))
		}
	}
	plan2, _ := models.GetPaymentPlan(ctx, plan.ID)
	if plan2.NextDueDate == nil || !plan2.NextDueDate.Equal(anchor) {
		t.Errorf("next due date = %v, want anchor", plan2.NextDueDate)
	}

	// paying the plan off completes it; nothing is left to reschedule
	for i := 0; i < 4; i++ {
		p, err := models.CreatePayment(ctx, &models.NewPayment{
			DonorId: donor.ID,
			Amount:  decimal.RequireFromString("20.00"),
			Method:  "cash",
		})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := models.SetPaymentStatus(ctx, p.ID, models.PaymentApprovalStatusApproved); err != nil {
			t.Fatal(err)
		}
	}
	plan3, _ := models.GetPaymentPlan(ctx, plan.ID)
	if plan3.Status != models.PlanStatusCompleted {
		t.Errorf("plan status = %s, want completed after final payment", plan3.Status)
	}
	if _, err := models.ReschedulePlan(ctx, plan.ID, anchor); err != models.ErrNothingToReschedule {
		t.Errorf("got %v, want ErrNothingToReschedule", err)
	}

	d, _ := models.GetDonor(ctx, donor.ID)
	if d.PaymentStatus != models.DonorPaymentStatusCompleted {
		t.Errorf("donor payment status = %s, want completed", d.PaymentStatus)
	}
}

func TestRescheduleSameAnchorIsIdempotent(t *testing.T) {
	requireIntegration(t)
	setupIntegration(t)
	ctx := context.Background()

	_, _, plan := approvedPledgeWithPlan(t, ctx, "80.00", 4)
	anchor := utils.DateOnly(time.Now().UTC()).AddDate(0, 2, 0)

	first, err := models.ReschedulePlan(ctx, plan.ID, anchor)
	if err != nil {
		t.Fatal(err)
	}
	second, err := models.ReschedulePlan(ctx, plan.ID, anchor)
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != len(first) {
		t.Fatalf("repeat run moved %d rows, first run moved %d", len(second), len(first))
	}
	for i := range first {
		if !second[i].DueDate.Equal(first[i].DueDate) {
			t.Errorf("row %d drifted on the repeat run: %s vs %s",
				first[i].InstallmentNumber, second[i].DueDate, first[i].DueDate)
		}
	}

	p, err := models.GetPaymentPlan(ctx, plan.ID)
	if err != nil {
		t.Fatal(err)
	}
	if p.NextDueDate == nil || !p.NextDueDate.Equal(anchor) {
		t.Errorf("next due date = %v, want the anchor %s", p.NextDueDate, anchor)
	}
}

func TestDonorEmailMustBeUnique(t *testing.T) {
	requireIntegration(t)
	setupIntegration(t)
	ctx := context.Background()

	first, err := models.CreateDonor(ctx, &models.NewDonor{FirstName: "Amy", Email: "amy@example.org"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := models.CreateDonor(ctx, &models.NewDonor{FirstName: "Other", Email: "amy@example.org"}); err == nil {
		t.Error("second donor created with a taken email")
	}

	// a donor keeping their own email on update is not a collision
	if _, err := models.UpdateDonor(ctx, first.ID, &models.NewDonor{FirstName: "Amy", Email: "amy@example.org"}); err != nil {
		t.Errorf("update with own email rejected: %v", err)
	}
}
