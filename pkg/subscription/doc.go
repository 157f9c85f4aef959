// Package subscription is the storefront core of the magazine: it keeps a
// reader's paid-access state consistent between the payment gateway, which
// owns money movement and billing status, and the local store, which owns
// what the reader is entitled to receive.
//
// The package is built from five cooperating pieces:
//
//   - Catalog: read-only lookup of subscription tiers and their prices.
//   - Resolver: finds or provisions the reader profile for an email and
//     gateway customer reference, absorbing the asynchronous store-side
//     profile creation behind a bounded poll.
//   - Service.CreateCheckoutSession: validates a purchase intent and opens a
//     hosted checkout session; the intent rides along as gateway metadata and
//     comes back on the completion webhook.
//   - Service.HandleEvent: projects gateway lifecycle events onto local
//     subscription rows. Delivery is at-least-once and unordered, so
//     handlers are idempotent and tolerate events arriving before the rows
//     they reference.
//   - Lifecycle commands (Cancel, Reactivate, ChangeTier, SwapAddons):
//     user-initiated mutations that talk to the gateway first and the local
//     store second, under a per-subscription lease.
//
// # Error taxonomy
//
// Business-rule violations (inactive tier, addon count mismatch, missing
// price, reactivation without a pending cancellation) are sentinel errors and
// map to user-facing form errors. Gateway failures are wrapped in
// ErrGatewayUnavailable, or ErrGatewayOutcomeUnknown when a mutation timed
// out and may or may not have been applied. Any sequence that succeeded at
// the gateway but failed locally returns a *PartialError naming the steps
// that completed, so operators can reconcile instead of blindly retrying a
// non-idempotent gateway call.
//
// # Wiring
//
//	catalog := subscription.NewPGStore(pool)
//	gateway, _ := subscription.NewStripeGateway(gatewayCfg)
//	resolver := subscription.NewResolver(catalog, provisioner, notifier)
//	svc := subscription.NewService(catalog, catalog, catalog, catalog, gateway, resolver,
//		subscription.WithLocker(lock.NewRedisLocker(redisClient, "sub")),
//		subscription.WithProcessedEventStore(subscription.NewRedisEventStore(redisClient)),
//	)
package subscription
