package subscription

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/foliopress/folio/pkg/logger"
)

// CheckoutParams is a purchase intent from the storefront.
type CheckoutParams struct {
	TierID          uuid.UUID
	Interval        BillingInterval
	AddonProductIDs []uuid.UUID
	CustomerEmail   string // optional prefill for the hosted checkout form
	SuccessURL      string
	CancelURL       string
}

// CreateCheckoutSession validates the purchase intent against the catalog
// and opens a hosted checkout session. Validation runs before any gateway
// call; a failed validation never reaches the network.
//
// The validation ladder is ordered and each rung is a distinct error:
// ErrTierNotFound, ErrInactiveTier, ErrAddonCountMismatch, ErrPriceNotFound.
func (s *Service) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	tier, err := s.catalog.FindTierByID(ctx, params.TierID)
	if err != nil {
		return nil, err
	}

	if !tier.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrInactiveTier, tier.Name)
	}

	// Exactly the slot count, not "at most". A tier with slots requires a
	// full selection up front; a tier without slots rejects any selection.
	if len(params.AddonProductIDs) != tier.AddonSlots {
		return nil, fmt.Errorf("%w: tier %s has %d slots, got %d selections",
			ErrAddonCountMismatch, tier.Name, tier.AddonSlots, len(params.AddonProductIDs))
	}

	price, ok := tier.ActivePrice(params.Interval)
	if !ok {
		return nil, fmt.Errorf("%w: tier %s, interval %s", ErrPriceNotFound, tier.Name, params.Interval)
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, CheckoutSessionParams{
		PriceRef:      price.ExternalPriceRef,
		CustomerEmail: params.CustomerEmail,
		SuccessURL:    params.SuccessURL,
		CancelURL:     params.CancelURL,
		Intent: CheckoutIntent{
			TierID:          tier.ID,
			TierPriceID:     price.ID,
			AddonProductIDs: params.AddonProductIDs,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	s.log.InfoContext(ctx, "checkout session created",
		logger.Component("checkout"),
		slog.String("tier_id", tier.ID.String()),
		slog.String("interval", string(params.Interval)),
	)

	return session, nil
}
