package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
)

// StripeConfig holds configuration for the Stripe payment gateway.
type StripeConfig struct {
	SecretKey      string        `env:"STRIPE_SECRET_KEY,required"`
	WebhookSecret  string        `env:"STRIPE_WEBHOOK_SECRET,required"`
	RequestTimeout time.Duration `env:"STRIPE_REQUEST_TIMEOUT" envDefault:"15s"`
}

// StripeGateway implements PaymentGateway on the Stripe API.
type StripeGateway struct {
	client         *client.API
	webhookSecret  string
	requestTimeout time.Duration
}

// NewStripeGateway creates a Stripe-backed payment gateway. A dedicated
// client instance is used instead of the SDK's global key so tests and
// multi-account setups stay possible.
func NewStripeGateway(cfg StripeConfig) (*StripeGateway, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("stripe secret key is required")
	}
	if cfg.WebhookSecret == "" {
		return nil, errors.New("stripe webhook secret is required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}

	return &StripeGateway{
		client:         client.New(cfg.SecretKey, nil),
		webhookSecret:  cfg.WebhookSecret,
		requestTimeout: cfg.RequestTimeout,
	}, nil
}

// CreateCheckoutSession opens a hosted checkout session in subscription
// mode. The purchase intent rides in the session metadata and comes back on
// checkout.session.completed.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, p CheckoutSessionParams) (*CheckoutSession, error) {
	ctx, cancel := context.WithTimeout(ctx, g.requestTimeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceRef),
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	params.Metadata = p.Intent.Metadata()
	if p.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(p.CustomerEmail)
	}

	sess, err := g.client.CheckoutSessions.New(params)
	if err != nil {
		return nil, errors.Join(ErrGatewayUnavailable, err)
	}
	if sess.URL == "" {
		return nil, ErrNoCheckoutURL
	}

	return &CheckoutSession{SessionID: sess.ID, URL: sess.URL}, nil
}

// RetrieveSubscription fetches the live subscription state from Stripe.
func (g *StripeGateway) RetrieveSubscription(ctx context.Context, externalRef string) (*GatewaySubscription, error) {
	ctx, cancel := context.WithTimeout(ctx, g.requestTimeout)
	defer cancel()

	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := g.client.Subscriptions.Get(externalRef, params)
	if err != nil {
		return nil, errors.Join(ErrGatewayUnavailable, err)
	}

	return gatewaySubscriptionFromStripe(sub), nil
}

// UpdateSubscription applies a partial mutation. Swapping the price requires
// the current subscription item id, so a price change costs one extra read.
// Timeouts and cancellations map to ErrGatewayOutcomeUnknown because Stripe
// may have applied the mutation before the connection died.
func (g *StripeGateway) UpdateSubscription(ctx context.Context, externalRef string, update SubscriptionUpdate) error {
	ctx, cancel := context.WithTimeout(ctx, g.requestTimeout)
	defer cancel()

	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	if update.CancelAtPeriodEnd != nil {
		params.CancelAtPeriodEnd = stripe.Bool(*update.CancelAtPeriodEnd)
	}

	if update.PriceRef != nil {
		getParams := &stripe.SubscriptionParams{}
		getParams.Context = ctx
		current, err := g.client.Subscriptions.Get(externalRef, getParams)
		if err != nil {
			// The read phase mutated nothing, so this is a plain failure.
			return errors.Join(ErrGatewayUnavailable, err)
		}
		if current.Items == nil || len(current.Items.Data) == 0 {
			return fmt.Errorf("%w: subscription %s has no items", ErrGatewayUnavailable, externalRef)
		}

		params.Items = []*stripe.SubscriptionItemsParams{
			{
				ID:    stripe.String(current.Items.Data[0].ID),
				Price: stripe.String(*update.PriceRef),
			},
		}

		proration := update.Proration
		if proration == "" {
			proration = ProrationCreate
		}
		params.ProrationBehavior = stripe.String(string(proration))
	}

	if _, err := g.client.Subscriptions.Update(externalRef, params); err != nil {
		return wrapMutationErr(err)
	}

	return nil
}

// ParseWebhookEvent verifies the payload signature and normalizes the event.
// Unhandled event types return ErrUnsupportedEvent; the receiver acks those
// so the gateway stops redelivering them.
func (g *StripeGateway) ParseWebhookEvent(payload []byte, signature string) (*Event, error) {
	stripeEvent, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		return nil, errors.Join(ErrWebhookVerification, err)
	}

	switch stripeEvent.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(stripeEvent.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}

		ev := &Event{
			ID:       stripeEvent.ID,
			Type:     EventCheckoutCompleted,
			Metadata: sess.Metadata,
		}
		if sess.Subscription != nil {
			ev.ExternalSubscriptionRef = sess.Subscription.ID
		}
		if sess.Customer != nil {
			ev.ExternalCustomerRef = sess.Customer.ID
		}
		if sess.CustomerDetails != nil && sess.CustomerDetails.Email != "" {
			ev.CustomerEmail = sess.CustomerDetails.Email
		} else {
			ev.CustomerEmail = sess.CustomerEmail
		}
		return ev, nil

	case "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(stripeEvent.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}

		evType := EventSubscriptionUpdated
		if stripeEvent.Type == "customer.subscription.deleted" {
			evType = EventSubscriptionDeleted
		}

		ev := &Event{
			ID:                      stripeEvent.ID,
			Type:                    evType,
			ExternalSubscriptionRef: sub.ID,
			Status:                  Status(sub.Status),
			CancelAtPeriodEnd:       sub.CancelAtPeriodEnd,
			CurrentPeriodStart:      time.Unix(sub.CurrentPeriodStart, 0).UTC(),
			CurrentPeriodEnd:        time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
		}
		if sub.Customer != nil {
			ev.ExternalCustomerRef = sub.Customer.ID
		}
		return ev, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEvent, stripeEvent.Type)
	}
}

func gatewaySubscriptionFromStripe(sub *stripe.Subscription) *GatewaySubscription {
	out := &GatewaySubscription{
		ExternalRef:        sub.ID,
		Status:             Status(sub.Status),
		CurrentPeriodStart: time.Unix(sub.CurrentPeriodStart, 0).UTC(),
		CurrentPeriodEnd:   time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		out.PriceRef = sub.Items.Data[0].Price.ID
	}
	return out
}

// wrapMutationErr classifies a failed gateway mutation. A deadline or
// cancellation is an unknown outcome, not a confirmed rejection.
func wrapMutationErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errors.Join(ErrGatewayOutcomeUnknown, err)
	}
	return errors.Join(ErrGatewayUnavailable, err)
}
