// Package billing implements the credit and membership model that gates
// analysis requests.
package billing

import (
	"context"
	"fmt"
	"time"
)

// Plan identifies a purchasable plan.
type Plan string

const (
	PlanOneTime    Plan = "one_time"
	PlanMonthly    Plan = "monthly"
	PlanQuarter    Plan = "quarter"
	PlanSemiannual Plan = "semiannual"
	PlanAnnual     Plan = "annual"
	PlanLifetime   Plan = "lifetime"
)

// membershipMonths maps each membership plan to its duration in months.
// Lifetime has no expiry and is handled separately.
var membershipMonths = map[Plan]int{
	PlanMonthly:    1,
	PlanQuarter:    3,
	PlanSemiannual: 6,
	PlanAnnual:     12,
}

// ParsePlan validates a plan name.
func ParsePlan(s string) (Plan, error) {
	switch Plan(s) {
	case PlanOneTime, PlanMonthly, PlanQuarter, PlanSemiannual, PlanAnnual, PlanLifetime:
		return Plan(s), nil
	}
	return "", fmt.Errorf("unknown plan: %q", s)
}

// IsMembership reports whether the plan grants time-based membership rather
// than credits.
func (p Plan) IsMembership() bool {
	if p == PlanLifetime {
		return true
	}
	_, ok := membershipMonths[p]
	return ok
}

// AccessInfo is a user's billing state.
type AccessInfo struct {
	Email               string     `json:"email"`
	Credits             int        `json:"credits"`
	MembershipPlan      string     `json:"membershipPlan,omitempty"`
	MembershipExpiresAt *time.Time `json:"membershipExpiresAt,omitempty"`
}

// Store persists user billing state. Implementations must be safe for
// concurrent use; credit decrements in particular must be atomic.
type Store interface {
	// GetAccessInfo returns the user's billing state, or ErrUserNotFound.
	GetAccessInfo(ctx context.Context, email string) (*AccessInfo, error)

	// EnsureUser returns the user's billing state, creating the user with
	// the signup credit grant on first sight.
	EnsureUser(ctx context.Context, email string) (*AccessInfo, error)

	// DecrementCredit atomically consumes one credit and returns the
	// remaining balance. Fails with ErrInsufficientCredits at zero.
	DecrementCredit(ctx context.Context, email string) (int, error)

	// AddCredits adds n credits and returns the new balance.
	AddCredits(ctx context.Context, email string, n int) (int, error)

	// ActivateMembership activates or extends a membership plan.
	ActivateMembership(ctx context.Context, email string, plan Plan, now time.Time) error

	// Close releases store resources.
	Close() error
}

// Sentinel errors shared by store implementations.
var (
	ErrUserNotFound        = fmt.Errorf("user not found")
	ErrInsufficientCredits = fmt.Errorf("insufficient credits")
)

// HasActiveMembership reports whether the user currently holds an active
// membership: lifetime is always active, any other plan requires an expiry
// in the future.
func HasActiveMembership(info *AccessInfo, now time.Time) bool {
	if info == nil || info.MembershipPlan == "" {
		return false
	}
	if Plan(info.MembershipPlan) == PlanLifetime {
		return true
	}
	return info.MembershipExpiresAt != nil && info.MembershipExpiresAt.After(now)
}

// NextExpiry computes the expiry after activating plan at now, extending
// from the current expiry when the membership is still active. Lifetime
// returns nil.
func NextExpiry(current *time.Time, plan Plan, now time.Time) *time.Time {
	if plan == PlanLifetime {
		return nil
	}
	months, ok := membershipMonths[plan]
	if !ok {
		return nil
	}
	base := now
	if current != nil && current.After(now) {
		base = *current
	}
	expiry := base.AddDate(0, months, 0)
	return &expiry
}

// ApplyPlan applies a purchased plan to a user: membership plans activate or
// extend membership, one_time adds a single credit.
func ApplyPlan(ctx context.Context, store Store, email string, plan Plan, now time.Time) error {
	if _, err := store.EnsureUser(ctx, email); err != nil {
		return err
	}
	if plan.IsMembership() {
		return store.ActivateMembership(ctx, email, plan, now)
	}
	if plan == PlanOneTime {
		_, err := store.AddCredits(ctx, email, 1)
		return err
	}
	return fmt.Errorf("plan %q grants nothing to apply", plan)
}
