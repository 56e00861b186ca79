package models

import (
	"errors"
	"strings"
)

type PlanStatus string

const (
	PlanStatusActive    PlanStatus = "active"
	PlanStatusPaused    PlanStatus = "paused"
	PlanStatusCompleted PlanStatus = "completed"
	PlanStatusCancelled PlanStatus = "cancelled"
	PlanStatusDefaulted PlanStatus = "defaulted"
)

func (s PlanStatus) Valid() bool {
	switch s {
	case PlanStatusActive, PlanStatusPaused, PlanStatusCompleted, PlanStatusCancelled, PlanStatusDefaulted:
		return true
	}
	return false
}

type InstallmentStatus string

const (
	InstallmentStatusPending InstallmentStatus = "pending"
	InstallmentStatusPaid    InstallmentStatus = "paid"
	InstallmentStatusOverdue InstallmentStatus = "overdue"
)

func (s InstallmentStatus) Valid() bool {
	switch s {
	case InstallmentStatusPending, InstallmentStatusPaid, InstallmentStatusOverdue:
		return true
	}
	return false
}

// DonorPaymentStatus is the derived status mirrored onto the donor record.
type DonorPaymentStatus string

const (
	DonorPaymentStatusNoPledge   DonorPaymentStatus = "no_pledge"
	DonorPaymentStatusNotStarted DonorPaymentStatus = "not_started"
	DonorPaymentStatusPaying     DonorPaymentStatus = "paying"
	DonorPaymentStatusCompleted  DonorPaymentStatus = "completed"
	DonorPaymentStatusDefaulted  DonorPaymentStatus = "defaulted"
)

type PledgeStatus string

const (
	PledgeStatusPending  PledgeStatus = "pending"
	PledgeStatusApproved PledgeStatus = "approved"
	PledgeStatusRejected PledgeStatus = "rejected"
)

func (s PledgeStatus) Valid() bool {
	switch s {
	case PledgeStatusPending, PledgeStatusApproved, PledgeStatusRejected:
		return true
	}
	return false
}

type PaymentApprovalStatus string

const (
	PaymentApprovalStatusPending  PaymentApprovalStatus = "pending"
	PaymentApprovalStatusApproved PaymentApprovalStatus = "approved"
	PaymentApprovalStatusDeclined PaymentApprovalStatus = "declined"
)

func (s PaymentApprovalStatus) Valid() bool {
	switch s {
	case PaymentApprovalStatusPending, PaymentApprovalStatusApproved, PaymentApprovalStatusDeclined:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodDirectDebit  PaymentMethod = "direct_debit"
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodCheque       PaymentMethod = "cheque"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodOther        PaymentMethod = "other"
)

// NormalizePaymentMethod maps the aliases the call center keys in
// onto the canonical method values.
func NormalizePaymentMethod(raw string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "card", "cc", "credit card", "debit card":
		return PaymentMethodCard, nil
	case "direct_debit", "dd", "direct debit", "directdebit":
		return PaymentMethodDirectDebit, nil
	case "cash":
		return PaymentMethodCash, nil
	case "cheque", "check":
		return PaymentMethodCheque, nil
	case "bank_transfer", "bank transfer", "transfer", "bacs", "standing order":
		return PaymentMethodBankTransfer, nil
	case "other", "":
		return PaymentMethodOther, nil
	}
	return "", errors.New("unknown payment method")
}

type FrequencyUnit string

const (
	FrequencyUnitDay   FrequencyUnit = "day"
	FrequencyUnitWeek  FrequencyUnit = "week"
	FrequencyUnitMonth FrequencyUnit = "month"
	FrequencyUnitYear  FrequencyUnit = "year"
)

func (u FrequencyUnit) Valid() bool {
	switch u {
	case FrequencyUnitDay, FrequencyUnitWeek, FrequencyUnitMonth, FrequencyUnitYear:
		return true
	}
	return false
}

type AllocationStatus string

const (
	AllocationStatusAvailable AllocationStatus = "available"
	AllocationStatusAllocated AllocationStatus = "allocated"
)

// AllocationReferenceType names the record an allocation is tied to.
type AllocationReferenceType string

const (
	AllocationReferenceTypePledge  AllocationReferenceType = "pledges"
	AllocationReferenceTypePayment AllocationReferenceType = "payments"
)
