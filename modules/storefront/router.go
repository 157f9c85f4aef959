// Package storefront exposes the subscription core over HTTP. It is thin
// glue: request decoding, webhook signature verification at the edge, and
// error-to-status mapping. All business rules live in pkg/subscription.
package storefront

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/foliopress/folio/pkg/subscription"
)

// SubscriptionService is the core surface the storefront mounts.
type SubscriptionService interface {
	CreateCheckoutSession(ctx context.Context, params subscription.CheckoutParams) (*subscription.CheckoutSession, error)
	HandleEvent(ctx context.Context, ev subscription.Event) error
	Cancel(ctx context.Context, subscriptionID uuid.UUID) error
	Reactivate(ctx context.Context, subscriptionID uuid.UUID) error
	ChangeTier(ctx context.Context, subscriptionID uuid.UUID, params subscription.ChangeTierParams) error
	SwapAddons(ctx context.Context, subscriptionID uuid.UUID, addonProductIDs []uuid.UUID) error
	ListAddons(ctx context.Context, subscriptionID uuid.UUID) ([]uuid.UUID, error)
}

// WebhookParser verifies a raw gateway payload and returns the normalized
// event. Verification failures must happen here, before any processing.
type WebhookParser interface {
	ParseWebhookEvent(payload []byte, signature string) (*subscription.Event, error)
}

// RouterOption configures the storefront router.
type RouterOption func(*handlers)

// WithLogger sets the module logger.
func WithLogger(log *slog.Logger) RouterOption {
	return func(h *handlers) {
		if log != nil {
			h.log = log
		}
	}
}

// WithHealthcheck registers a named dependency probe for GET /healthz.
func WithHealthcheck(name string, check func(context.Context) error) RouterOption {
	return func(h *handlers) {
		h.checks = append(h.checks, namedCheck{name: name, check: check})
	}
}

// Router mounts the storefront endpoints.
//
// Example:
//
//	r := chi.NewRouter()
//	r.Mount("/store", storefront.Router(svc, gateway,
//	    storefront.WithHealthcheck("postgres", pg.Healthcheck(pool)),
//	    storefront.WithHealthcheck("redis", redis.Healthcheck(client)),
//	))
func Router(svc SubscriptionService, webhooks WebhookParser, opts ...RouterOption) chi.Router {
	if svc == nil {
		panic("storefront: SubscriptionService is required")
	}
	if webhooks == nil {
		panic("storefront: WebhookParser is required")
	}

	h := &handlers{
		svc:      svc,
		webhooks: webhooks,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}

	r := chi.NewRouter()

	r.Post("/checkout", h.createCheckout)
	r.Post("/webhooks/stripe", h.receiveWebhook)

	r.Route("/subscriptions/{subscriptionID}", func(sub chi.Router) {
		sub.Post("/cancel", h.cancel)
		sub.Post("/reactivate", h.reactivate)
		sub.Post("/tier", h.changeTier)
		sub.Get("/addons", h.listAddons)
		sub.Put("/addons", h.swapAddons)
	})

	r.Get("/healthz", h.healthz)

	return r
}

type namedCheck struct {
	name  string
	check func(context.Context) error
}

type handlers struct {
	svc      SubscriptionService
	webhooks WebhookParser
	checks   []namedCheck
	log      *slog.Logger
}
