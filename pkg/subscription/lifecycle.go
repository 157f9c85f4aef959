package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/foliopress/folio/pkg/lock"
	"github.com/foliopress/folio/pkg/logger"
)

// Lifecycle commands share one shape: load, lease, gateway mutation, local
// mutation. The gateway goes first because it owns billing truth; a local
// write the gateway never saw is a correctness bug, while a gateway write
// the local store missed is recoverable staleness that the next webhook or
// a reconciliation pass repairs. A failure between the two phases is a
// *PartialError and must reach an operator, not a retry loop.

// Cancel schedules cancellation at period end.
func (s *Service) Cancel(ctx context.Context, subscriptionID uuid.UUID) error {
	sub, release, err := s.acquireSubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}
	defer s.release(ctx, release)

	cancelAtPeriodEnd := true
	if err := s.gateway.UpdateSubscription(ctx, sub.ExternalRef, SubscriptionUpdate{
		CancelAtPeriodEnd: &cancelAtPeriodEnd,
	}); err != nil {
		return fmt.Errorf("schedule gateway cancellation: %w", err)
	}

	sub.CancelAtPeriodEnd = true
	sub.UpdatedAt = time.Now().UTC()
	if err := s.subs.Update(ctx, sub); err != nil {
		return newPartialError("cancel",
			[]string{StepStripeCancelScheduled}, StepLocalCancelFlagSet, err)
	}

	s.log.InfoContext(ctx, "cancellation scheduled",
		logger.Component("lifecycle"), logger.SubscriptionID(sub.ID))
	return nil
}

// Reactivate withdraws a pending cancellation. Only valid while
// CancelAtPeriodEnd is set; anything else is ErrNotPendingCancellation.
func (s *Service) Reactivate(ctx context.Context, subscriptionID uuid.UUID) error {
	sub, release, err := s.acquireSubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}
	defer s.release(ctx, release)

	if !sub.CancelAtPeriodEnd {
		return ErrNotPendingCancellation
	}

	cancelAtPeriodEnd := false
	if err := s.gateway.UpdateSubscription(ctx, sub.ExternalRef, SubscriptionUpdate{
		CancelAtPeriodEnd: &cancelAtPeriodEnd,
	}); err != nil {
		return fmt.Errorf("withdraw gateway cancellation: %w", err)
	}

	sub.CancelAtPeriodEnd = false
	sub.UpdatedAt = time.Now().UTC()
	if err := s.subs.Update(ctx, sub); err != nil {
		return newPartialError("reactivate",
			[]string{StepStripeReactivated}, StepLocalCancelFlagCleared, err)
	}

	s.log.InfoContext(ctx, "cancellation withdrawn",
		logger.Component("lifecycle"), logger.SubscriptionID(sub.ID))
	return nil
}

// ChangeTierParams describes a tier change for an existing subscription.
type ChangeTierParams struct {
	TierID          uuid.UUID
	Interval        BillingInterval
	AddonProductIDs []uuid.UUID
}

// ChangeTier moves the subscription to a new tier: update the gateway price
// with proration, then the local tier and price, then the selection set.
// The target tier passes the same validation ladder as checkout, and a
// validation failure never reaches the gateway.
func (s *Service) ChangeTier(ctx context.Context, subscriptionID uuid.UUID, params ChangeTierParams) error {
	sub, release, err := s.acquireSubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}
	defer s.release(ctx, release)

	tier, err := s.catalog.FindTierByID(ctx, params.TierID)
	if err != nil {
		return err
	}
	if !tier.IsActive {
		return fmt.Errorf("%w: %s", ErrInactiveTier, tier.Name)
	}
	if len(params.AddonProductIDs) != tier.AddonSlots {
		return fmt.Errorf("%w: tier %s has %d slots, got %d selections",
			ErrAddonCountMismatch, tier.Name, tier.AddonSlots, len(params.AddonProductIDs))
	}
	price, ok := tier.ActivePrice(params.Interval)
	if !ok {
		return fmt.Errorf("%w: tier %s, interval %s", ErrPriceNotFound, tier.Name, params.Interval)
	}

	priceRef := price.ExternalPriceRef
	if err := s.gateway.UpdateSubscription(ctx, sub.ExternalRef, SubscriptionUpdate{
		PriceRef:  &priceRef,
		Proration: ProrationCreate,
	}); err != nil {
		return fmt.Errorf("update gateway price: %w", err)
	}
	completed := []string{StepStripePriceUpdated}

	sub.TierID = tier.ID
	sub.TierPriceID = price.ID
	sub.UpdatedAt = time.Now().UTC()
	if err := s.subs.Update(ctx, sub); err != nil {
		return newPartialError("change_tier", completed, StepLocalTierUpdated, err)
	}
	completed = append(completed, StepLocalTierUpdated)

	if err := s.selections.ReplaceForSubscription(ctx, sub.ID, params.AddonProductIDs); err != nil {
		return newPartialError("change_tier", completed, StepAddonSelectionsReplaced, err)
	}

	s.log.InfoContext(ctx, "tier changed",
		logger.Component("lifecycle"),
		logger.SubscriptionID(sub.ID),
	)
	return nil
}

// SwapAddons replaces the subscription's add-on selection set. Add-ons are
// not separately billed, so there is no gateway call; the replacement is
// still validated against the current tier's slot count and serialized under
// the subscription lease.
func (s *Service) SwapAddons(ctx context.Context, subscriptionID uuid.UUID, addonProductIDs []uuid.UUID) error {
	sub, release, err := s.acquireSubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}
	defer s.release(ctx, release)

	tier, err := s.catalog.FindTierByID(ctx, sub.TierID)
	if err != nil {
		return err
	}
	if len(addonProductIDs) != tier.AddonSlots {
		return fmt.Errorf("%w: tier %s has %d slots, got %d selections",
			ErrAddonCountMismatch, tier.Name, tier.AddonSlots, len(addonProductIDs))
	}

	if err := s.selections.ReplaceForSubscription(ctx, sub.ID, addonProductIDs); err != nil {
		return fmt.Errorf("replace addon selections: %w", err)
	}

	return nil
}

// ListAddons returns the subscription's current add-on selection set. Reads
// do not take the lease; a concurrent swap just makes the answer stale.
func (s *Service) ListAddons(ctx context.Context, subscriptionID uuid.UUID) ([]uuid.UUID, error) {
	if _, err := s.subs.FindByID(ctx, subscriptionID); err != nil {
		return nil, err
	}
	return s.selections.ListBySubscription(ctx, subscriptionID)
}

// acquireSubscription loads the row and takes its lease, serializing the
// two-phase command sequences against each other.
func (s *Service) acquireSubscription(ctx context.Context, id uuid.UUID) (*Subscription, lock.ReleaseFunc, error) {
	sub, err := s.subs.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	release, err := s.locker.Acquire(ctx, sub.ID.String(), s.lockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrLockBusy) {
			return nil, nil, ErrSubscriptionBusy
		}
		return nil, nil, fmt.Errorf("acquire subscription lease: %w", err)
	}

	return sub, release, nil
}

func (s *Service) release(ctx context.Context, release lock.ReleaseFunc) {
	if err := release(ctx); err != nil {
		// ErrLockLost here means the lease expired mid-command, which is
		// worth knowing about: the TTL may be too short for gateway latency.
		s.log.WarnContext(ctx, "failed to release subscription lease",
			logger.Component("lifecycle"), logger.Error(err))
	}
}
