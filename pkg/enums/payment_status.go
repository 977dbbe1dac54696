package enums

import (
	"fmt"
	"strings"
)

// PaymentStatus is the settlement axis of an order, driven only by the gateway.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusApproved PaymentStatus = "approved"
	PaymentStatusRejected PaymentStatus = "rejected"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusApproved,
	PaymentStatusRejected,
	PaymentStatusRefunded,
}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:  {PaymentStatusApproved, PaymentStatusRejected},
	PaymentStatusApproved: {PaymentStatusRefunded},
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether next is reachable from p in one step.
func (p PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, candidate := range paymentTransitions[p] {
		if candidate == next {
			return true
		}
	}
	return false
}

// PaymentStatusesFrom lists the states that may legally move to next.
func PaymentStatusesFrom(next PaymentStatus) []PaymentStatus {
	var out []PaymentStatus
	for _, candidate := range validPaymentStatuses {
		if candidate.CanTransitionTo(next) {
			out = append(out, candidate)
		}
	}
	return out
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}

// PaymentStatusFromGateway folds the gateway's vocabulary onto the local axis.
// cancelled is reported by the gateway for expired or voided charges and is
// treated like a rejection.
func PaymentStatusFromGateway(raw string) (PaymentStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "approved":
		return PaymentStatusApproved, true
	case "rejected", "cancelled":
		return PaymentStatusRejected, true
	case "refunded", "charged_back":
		return PaymentStatusRefunded, true
	case "pending", "in_process", "authorized", "in_mediation":
		return PaymentStatusPending, true
	}
	return "", false
}
