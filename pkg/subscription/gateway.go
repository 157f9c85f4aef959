package subscription

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProrationBehavior controls how a mid-cycle price change is billed.
type ProrationBehavior string

const (
	ProrationCreate ProrationBehavior = "create_prorations"
	ProrationNone   ProrationBehavior = "none"
)

// CheckoutIntent is the purchase intent round-tripped through the gateway as
// opaque metadata. The gateway is the only durable storage of intent between
// session creation and the completion webhook; there is no local
// pending-checkout table.
type CheckoutIntent struct {
	TierID          uuid.UUID
	TierPriceID     uuid.UUID
	AddonProductIDs []uuid.UUID
}

const (
	metaTierID      = "tier_id"
	metaTierPriceID = "tier_price_id"
	metaAddonIDs    = "addon_ids"
)

// Metadata encodes the intent as a flat string map for the gateway.
func (i CheckoutIntent) Metadata() map[string]string {
	m := map[string]string{
		metaTierID:      i.TierID.String(),
		metaTierPriceID: i.TierPriceID.String(),
	}
	if len(i.AddonProductIDs) > 0 {
		ids := make([]string, len(i.AddonProductIDs))
		for n, id := range i.AddonProductIDs {
			ids[n] = id.String()
		}
		m[metaAddonIDs] = strings.Join(ids, ",")
	}
	return m
}

// IntentFromMetadata decodes a round-tripped intent. Missing or malformed
// fields are a hard error: the webhook cannot be projected without knowing
// which tier was purchased.
func IntentFromMetadata(m map[string]string) (CheckoutIntent, error) {
	var intent CheckoutIntent

	tierID, err := uuid.Parse(m[metaTierID])
	if err != nil {
		return intent, fmt.Errorf("%w: %s: %v", ErrInvalidEventMetadata, metaTierID, err)
	}
	priceID, err := uuid.Parse(m[metaTierPriceID])
	if err != nil {
		return intent, fmt.Errorf("%w: %s: %v", ErrInvalidEventMetadata, metaTierPriceID, err)
	}

	intent.TierID = tierID
	intent.TierPriceID = priceID

	if raw := m[metaAddonIDs]; raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := uuid.Parse(strings.TrimSpace(part))
			if err != nil {
				return CheckoutIntent{}, fmt.Errorf("%w: %s: %v", ErrInvalidEventMetadata, metaAddonIDs, err)
			}
			intent.AddonProductIDs = append(intent.AddonProductIDs, id)
		}
	}

	return intent, nil
}

// CheckoutSessionParams describes a hosted checkout session request.
type CheckoutSessionParams struct {
	PriceRef      string // gateway price identifier
	CustomerEmail string // optional billing email prefill
	SuccessURL    string
	CancelURL     string
	Intent        CheckoutIntent
}

// CheckoutSession is a created hosted checkout session.
type CheckoutSession struct {
	SessionID string
	URL       string // redirect target for the purchaser
}

// GatewaySubscription is the gateway's authoritative view of a subscription.
// Webhook payload fields are not trusted for period boundaries; handlers
// fetch this instead.
type GatewaySubscription struct {
	ExternalRef        string
	Status             Status
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
	PriceRef           string
}

// SubscriptionUpdate is a partial gateway-side mutation. Nil fields are left
// untouched.
type SubscriptionUpdate struct {
	PriceRef          *string
	CancelAtPeriodEnd *bool
	Proration         ProrationBehavior // only consulted when PriceRef is set
}

// PaymentGateway is the minimal gateway surface the core depends on. All
// calls are network operations: fallible, non-instant, and bounded by the
// caller's context deadline.
type PaymentGateway interface {
	// CreateCheckoutSession opens a hosted checkout session. The intent in
	// params is attached as metadata and returned verbatim on the
	// completion webhook.
	CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error)

	// RetrieveSubscription fetches the live subscription state.
	RetrieveSubscription(ctx context.Context, externalRef string) (*GatewaySubscription, error)

	// UpdateSubscription applies a partial mutation. A context deadline hit
	// here returns ErrGatewayOutcomeUnknown: the mutation may have been
	// applied.
	UpdateSubscription(ctx context.Context, externalRef string, update SubscriptionUpdate) error
}
