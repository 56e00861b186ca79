package models_test

import (
	"context"
	"testing"
	"time"

	"bitbucket.org/causeway/donors_backend/config"
	"bitbucket.org/causeway/donors_backend/models"
	"bitbucket.org/causeway/donors_backend/utils"
	"github.com/shopspring/decimal"
)

func approvedPledgeWithPlan(t *testing.T, ctx context.Context, amount string, count int) (*models.Donor, *models.Pledge, *models.PaymentPlan) {
	t.Helper()
	donor, err := models.CreateDonor(ctx, &models.NewDonor{FirstName: "Test"})
	if err != nil {
		t.Fatal(err)
	}
	pledge, err := models.CreatePledge(ctx, &models.NewPledge{
		DonorId: donor.ID,
		Amount:  decimal.RequireFromString(amount),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := models.SetPledgeStatus(ctx, pledge.ID, models.PledgeStatusApproved); err != nil {
		t.Fatal(err)
	}
	plan, err := models.CreatePaymentPlan(ctx, &models.NewPaymentPlan{
		PledgeId:         pledge.ID,
		InstallmentCount: count,
		StartDate:        utils.DateOnly(time.Now().UTC()).AddDate(0, 0, 7),
	})
	if err != nil {
		t.Fatal(err)
	}
	return donor, pledge, plan
}

func TestDeletePledgePreconditions(t *testing.T) {
	requireIntegration(t)
	setupIntegration(t)
	ctx := context.Background()

	_, pledge, plan := approvedPledgeWithPlan(t, ctx, "300.00", 3)

	// approved pledges cannot be deleted
	if _, err := models.DeletePledge(ctx, pledge.ID); err != models.ErrPledgeNotRejected {
		t.Errorf("got %v, want ErrPledgeNotRejected", err)
	}

	// rejected but still referenced by a plan
	if _, err := models.SetPledgeStatus(ctx, pledge.ID, models.PledgeStatusRejected); err != nil {
		t.Fatal(err)
	}
	if _, err := models.DeletePledge(ctx, pledge.ID); err != models.ErrPledgeHasPlans {
		t.Errorf("got %v, want ErrPledgeHasPlans", err)
	}

	// remove the plan, then deletion goes through
	if _, err := models.DeletePaymentPlan(ctx, plan.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := models.DeletePledge(ctx, pledge.ID); err != nil {
		t.Fatalf("delete rejected pledge: %v", err)
	}
	if _, err := models.GetPledge(ctx, pledge.ID); err != utils.ErrorRecordNotFound {
		t.Errorf("got %v, want ErrorRecordNotFound", err)
	}
}

func TestDeletePlanClearsProjectionAndSchedule(t *testing.T) {
	requireIntegration(t)
	setupIntegration(t)
	ctx := context.Background()

	donor, _, plan := approvedPledgeWithPlan(t, ctx, "100.00", 4)

	if _, err := models.DeletePaymentPlan(ctx, plan.ID); err != nil {
		t.Fatal(err)
	}

	installments, err := models.GetInstallments(ctx, plan.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(installments) != 0 {
		t.Errorf("%d installment rows survived the delete", len(installments))
	}

	d, _ := models.GetDonor(ctx, donor.ID)
	if d.HasActivePlan || d.ActivePlanId != nil {
		t.Error("projection still points at the deleted plan")
	}
	// balance is still the full pledge, so the donor returns to not_started
	if d.PaymentStatus != models.DonorPaymentStatusNotStarted {
		t.Errorf("payment status = %s, want not_started", d.PaymentStatus)
	}
}

func TestDeletePaymentRecomputesTotals(t *testing.T) {
	requireIntegration(t)
	setupIntegration(t)
	ctx := context.Background()

	donor, _, plan := approvedPledgeWithPlan(t, ctx, "90.00", 3)

	payment, err := models.CreatePayment(ctx, &models.NewPayment{
		DonorId: donor.ID,
		Amount:  decimal.RequireFromString("30.00"),
		Method:  "card",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := models.SetPaymentStatus(ctx, payment.ID, models.PaymentApprovalStatusApproved); err != nil {
		t.Fatal(err)
	}

	d, _ := models.GetDonor(ctx, donor.ID)
	if !d.TotalPaid.Equal(decimal.RequireFromString("30.00")) {
		t.Fatalf("total paid = %s, want 30.00", d.TotalPaid)
	}

	if _, err := models.DeletePayment(ctx, payment.ID); err != nil {
		t.Fatal(err)
	}

	d, _ = models.GetDonor(ctx, donor.ID)
	if !d.TotalPaid.IsZero() {
		t.Errorf("total paid = %s, want 0 after delete", d.TotalPaid)
	}
	if !d.Balance.Equal(decimal.RequireFromString("90.00")) {
		t.Errorf("balance = %s, want 90.00", d.Balance)
	}

	// the installment linkage is cleared but payments_made is left alone;
	// the nightly refresh reconciles the partition
	installments, _ := models.GetInstallments(ctx, plan.ID)
	if installments[0].PaymentId != nil {
		t.Error("deleted payment still linked to installment")
	}
	plan2, _ := models.GetPaymentPlan(ctx, plan.ID)
	if plan2.PaymentsMade != 1 {
		t.Errorf("payments made = %d, want 1", plan2.PaymentsMade)
	}
}

func TestDeletePlanFailureRollsBackProtocol(t *testing.T) {
	requireIntegration(t)
	setupIntegration(t)
	ctx := context.Background()

	donor, _, plan := approvedPledgeWithPlan(t, ctx, "120.00", 4)

	session, err := models.CreateCallSession(ctx, &models.NewCallSession{DonorId: donor.ID, OperatorId: 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := models.UpdateCallSessionFields(ctx, session.ID, &models.UpdateCallSession{PlanId: &plan.ID}); err != nil {
		t.Fatal(err)
	}

	// Force the final step of the protocol (the plan row delete) to fail so
	// the unlink and installment deletes that ran before it must roll back.
	db := config.GetDB()
	if err := db.Exec(`CREATE TRIGGER block_plan_delete BEFORE DELETE ON donor_payment_plans
		FOR EACH ROW SIGNAL SQLSTATE '45000' SET MESSAGE_TEXT = 'delete blocked'`).Error; err != nil {
		t.Fatal(err)
	}
	defer db.Exec("DROP TRIGGER IF EXISTS block_plan_delete")

	if _, err := models.DeletePaymentPlan(ctx, plan.ID); err == nil {
		t.Fatal("delete succeeded with the blocking trigger in place")
	}

	installments, err := models.GetInstallments(ctx, plan.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(installments) != 4 {
		t.Errorf("%d installment rows left, want all 4 back after rollback", len(installments))
	}
	s, err := models.GetCallSession(ctx, session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if s.PlanId == nil || *s.PlanId != plan.ID {
		t.Error("call session unlink survived the rollback")
	}
	d, _ := models.GetDonor(ctx, donor.ID)
	if !d.HasActivePlan || d.ActivePlanId == nil || *d.ActivePlanId != plan.ID {
		t.Error("donor projection cleared despite the rollback")
	}

	// with the trigger gone the protocol completes
	if err := db.Exec("DROP TRIGGER IF EXISTS block_plan_delete").Error; err != nil {
		t.Fatal(err)
	}
	if _, err := models.DeletePaymentPlan(ctx, plan.ID); err != nil {
		t.Fatal(err)
	}
}

func TestDeleteCallSessionCascade(t *testing.T) {
	requireIntegration(t)
	setupIntegration(t)
	ctx := context.Background()

	donor, _, plan := approvedPledgeWithPlan(t, ctx, "60.00", 2)

	session, err := models.CreateCallSession(ctx, &models.NewCallSession{
		DonorId:    donor.ID,
		OperatorId: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := models.UpdateCallSessionFields(ctx, session.ID, &models.UpdateCallSession{
		PlanId: &plan.ID,
	}); err != nil {
		t.Fatal(err)
	}

	db := config.GetDB()
	if err := db.Create(&models.CallAttempt{SessionId: session.ID, AttemptedAt: time.Now(), Result: "answered"}).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Create(&models.SmsLog{SessionId: session.ID, Phone: "+447911123456", Body: "reminder", SentAt: time.Now()}).Error; err != nil {
		t.Fatal(err)
	}

	// unlink variant: the plan must survive
	if _, err := models.DeleteCallSession(ctx, session.ID, false); err != nil {
		t.Fatal(err)
	}
	if _, err := models.GetCallSession(ctx, session.ID); err != utils.ErrorRecordNotFound {
		t.Errorf("session survived: %v", err)
	}
	var attempts int64
	db.Model(&models.CallAttempt{}).Where("session_id = ?", session.ID).Count(&attempts)
	if attempts != 0 {
		t.Errorf("%d attempt rows survived", attempts)
	}
	if _, err := models.GetPaymentPlan(ctx, plan.ID); err != nil {
		t.Errorf("plan deleted on unlink variant: %v", err)
	}

	// delete-plan variant: full plan protocol runs inside the cascade
	session2, err := models.CreateCallSession(ctx, &models.NewCallSession{DonorId: donor.ID, OperatorId: 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := models.UpdateCallSessionFields(ctx, session2.ID, &models.UpdateCallSession{PlanId: &plan.ID}); err != nil {
		t.Fatal(err)
	}
	if _, err := models.DeleteCallSession(ctx, session2.ID, true); err != nil {
		t.Fatal(err)
	}
	if _, err := models.GetPaymentPlan(ctx, plan.ID); err != utils.ErrorRecordNotFound {
		t.Errorf("plan survived delete-plan variant: %v", err)
	}
	d, _ := models.GetDonor(ctx, donor.ID)
	if d.HasActivePlan || d.ActivePlanId != nil {
		t.Error("projection still points at the cascade-deleted plan")
	}
}
