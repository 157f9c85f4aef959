package subscription

import (
	"time"

	"github.com/google/uuid"
)

// BillingInterval represents the billing frequency of a tier price.
type BillingInterval string

const (
	IntervalMonth BillingInterval = "month"
	IntervalYear  BillingInterval = "year"
)

// Status mirrors the gateway's subscription status vocabulary. Local rows
// never invent statuses of their own; they project what the gateway reports.
type Status string

const (
	StatusIncomplete        Status = "incomplete"
	StatusIncompleteExpired Status = "incomplete_expired"
	StatusTrialing          Status = "trialing"
	StatusActive            Status = "active"
	StatusPastDue           Status = "past_due"
	StatusCanceled          Status = "canceled"
	StatusUnpaid            Status = "unpaid"
)

// IsBillable reports whether a subscription in this status is entitled to
// receive issues. past_due stays billable while the gateway runs its own
// dunning cycle.
func (s Status) IsBillable() bool {
	switch s {
	case StatusTrialing, StatusActive, StatusPastDue:
		return true
	default:
		return false
	}
}

// TierPrice is one purchasable price of a tier. A tier has at most one
// active price per interval.
type TierPrice struct {
	ID               uuid.UUID
	TierID           uuid.UUID
	Interval         BillingInterval
	Amount           int64 // minor currency units
	Currency         string
	ExternalPriceRef string // gateway price identifier
	IsActive         bool
}

// Tier is a purchasable subscription plan. AddonSlots fixes exactly how many
// add-on products a subscriber on this tier selects.
type Tier struct {
	ID          uuid.UUID
	Name        string
	Description string
	AddonSlots  int
	IsActive    bool
	Prices      []TierPrice
}

// ActivePrice returns the single active price for the given interval.
func (t *Tier) ActivePrice(interval BillingInterval) (*TierPrice, bool) {
	for i := range t.Prices {
		p := &t.Prices[i]
		if p.Interval == interval && p.IsActive {
			return p, true
		}
	}
	return nil, false
}

// AddonProduct is an optional selectable product attached to a subscription.
// Add-ons are not separately billed; the tier's slot count bounds selection.
type AddonProduct struct {
	ID                 uuid.UUID
	Name               string
	Description        string
	ExternalProductRef string
}

// Profile is the reader identity. Created by normal signup or lazily by the
// Resolver on first purchase. ExternalCustomerRef is empty until the first
// purchase links the profile to a gateway customer.
type Profile struct {
	ID                  uuid.UUID
	Email               string
	ExternalCustomerRef string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Subscription is the local projection of a gateway subscription. One
// billable subscription per profile; cancellation is a status transition,
// never a row removal.
type Subscription struct {
	ID                 uuid.UUID
	ProfileID          uuid.UUID
	ExternalRef        string // gateway subscription identifier, unique
	TierID             uuid.UUID
	TierPriceID        uuid.UUID
	Status             Status
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
