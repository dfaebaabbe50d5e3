package enums

import (
	"fmt"
	"strings"
)

type PlanID string

const (
	PlanFree    PlanID = "free"
	PlanPremium PlanID = "premium"
)

func (p PlanID) String() string { return string(p) }

func (p PlanID) IsValid() bool {
	return p == PlanFree || p == PlanPremium
}

func ParsePlanID(value string) (PlanID, error) {
	p := PlanID(strings.ToLower(strings.TrimSpace(value)))
	if !p.IsValid() {
		return "", fmt.Errorf("invalid plan id %q", value)
	}
	return p, nil
}

type BillingInterval string

const (
	IntervalMonthly BillingInterval = "monthly"
	IntervalYearly  BillingInterval = "yearly"
)

func (b BillingInterval) String() string { return string(b) }

func (b BillingInterval) IsValid() bool {
	return b == IntervalMonthly || b == IntervalYearly
}

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionInactive  SubscriptionStatus = "inactive"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionPending   SubscriptionStatus = "pending"
)

func (s SubscriptionStatus) String() string { return string(s) }

func (s SubscriptionStatus) IsValid() bool {
	switch s {
	case SubscriptionActive, SubscriptionInactive, SubscriptionCancelled, SubscriptionPending:
		return true
	}
	return false
}

func ParseSubscriptionStatus(value string) (SubscriptionStatus, error) {
	s := SubscriptionStatus(strings.ToLower(strings.TrimSpace(value)))
	if !s.IsValid() {
		return "", fmt.Errorf("invalid subscription status %q", value)
	}
	return s, nil
}

type PaymentMethod string

const (
	PaymentMpesa PaymentMethod = "mpesa"
	PaymentFree  PaymentMethod = "free"
)

func (m PaymentMethod) String() string { return string(m) }

func (m PaymentMethod) IsValid() bool {
	return m == PaymentMpesa || m == PaymentFree
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentTimedOut  PaymentStatus = "timed_out"
	PaymentCancelled PaymentStatus = "cancelled"
)

func (s PaymentStatus) String() string { return string(s) }

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed, PaymentTimedOut, PaymentCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether the payment can no longer change state.
func (s PaymentStatus) IsTerminal() bool {
	return s != PaymentPending
}

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

func (r UserRole) String() string { return string(r) }

func (r UserRole) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}
