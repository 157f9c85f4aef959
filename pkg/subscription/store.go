package subscription

import (
	"context"

	"github.com/google/uuid"
)

// Catalog is the read path over subscription tiers. It returns inactive
// tiers too; admin preview flows need them, so callers re-check IsActive
// themselves.
type Catalog interface {
	// FindTierByID returns the tier with all of its prices, or ErrTierNotFound.
	FindTierByID(ctx context.Context, id uuid.UUID) (*Tier, error)
}

// ProfileStore persists reader profiles. Profile rows are created by auth
// signup or by the store-side provisioning trigger, never directly by this
// package.
type ProfileStore interface {
	// FindByEmail looks up a profile by exact email match; the store's
	// collation decides case sensitivity. Returns ErrProfileNotFound.
	FindByEmail(ctx context.Context, email string) (*Profile, error)

	// AttachCustomerRef sets the external customer reference on a profile
	// that does not have one yet.
	AttachCustomerRef(ctx context.Context, profileID uuid.UUID, customerRef string) error
}

// SubscriptionStore persists local subscription projections.
type SubscriptionStore interface {
	// Create inserts a new subscription row. A duplicate external reference
	// returns ErrSubscriptionExists so redelivered checkout events are
	// detectable.
	Create(ctx context.Context, sub *Subscription) error

	// FindByID returns ErrSubscriptionNotFound when missing.
	FindByID(ctx context.Context, id uuid.UUID) (*Subscription, error)

	// FindByExternalRef matches the gateway subscription reference.
	// Returns ErrSubscriptionNotFound when missing.
	FindByExternalRef(ctx context.Context, externalRef string) (*Subscription, error)

	// FindByProfileID returns the profile's subscription, or
	// ErrSubscriptionNotFound.
	FindByProfileID(ctx context.Context, profileID uuid.UUID) (*Subscription, error)

	// Update overwrites the mutable fields of an existing row.
	Update(ctx context.Context, sub *Subscription) error
}

// SelectionStore persists the add-on selection set of a subscription. The
// set has no incremental diff operation: every change replaces the whole set.
type SelectionStore interface {
	// ListBySubscription returns the currently selected addon product ids.
	ListBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]uuid.UUID, error)

	// ReplaceForSubscription atomically swaps the selection set.
	ReplaceForSubscription(ctx context.Context, subscriptionID uuid.UUID, addonProductIDs []uuid.UUID) error
}

// ProcessedEventStore records webhook event ids so redelivered events are
// skipped instead of reprojected.
type ProcessedEventStore interface {
	// MarkProcessed records the event id. It returns false when the id was
	// already recorded.
	MarkProcessed(ctx context.Context, eventID string) (bool, error)

	// Forget removes a recorded event id. Called when processing fails after
	// the mark, so the gateway's redelivery gets another attempt.
	Forget(ctx context.Context, eventID string) error
}

// IdentityProvisioner requests identity creation from the backing store's
// auth subsystem. The profile row materializes asynchronously via a
// store-side trigger; this call cannot make that synchronous.
type IdentityProvisioner interface {
	Provision(ctx context.Context, email string) error
}

// Notifier is the fire-and-forget email sink. Every call site treats a
// failure here as non-fatal.
type Notifier interface {
	SendClaimEmail(ctx context.Context, to, claimURL string) error
}
