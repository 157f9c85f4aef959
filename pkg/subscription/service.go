package subscription

import (
	"log/slog"
	"time"

	"github.com/foliopress/folio/pkg/lock"
)

const defaultLockTTL = 30 * time.Second

// Service coordinates the catalog, the local stores, and the payment
// gateway. One instance is shared by the checkout handler, the webhook
// receiver, and the lifecycle endpoints; it holds no per-request state.
type Service struct {
	catalog    Catalog
	profiles   ProfileStore
	subs       SubscriptionStore
	selections SelectionStore
	gateway    PaymentGateway
	resolver   *Resolver

	events  ProcessedEventStore
	locker  lock.Locker
	lockTTL time.Duration
	log     *slog.Logger
}

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithLocker sets the per-subscription lease implementation. Defaults to an
// in-process locker; multi-replica deployments should pass the Redis one.
func WithLocker(l lock.Locker) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.locker = l
		}
	}
}

// WithLockTTL bounds how long a lifecycle command may hold its lease.
func WithLockTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithProcessedEventStore sets the webhook dedup store. Defaults to an
// in-memory set; multi-replica deployments should pass the Redis one.
func WithProcessedEventStore(store ProcessedEventStore) ServiceOption {
	return func(s *Service) {
		if store != nil {
			s.events = store
		}
	}
}

// NewService creates a Service. Panics if a required dependency is nil to
// fail fast during initialization rather than at first use.
func NewService(
	catalog Catalog,
	profiles ProfileStore,
	subs SubscriptionStore,
	selections SelectionStore,
	gateway PaymentGateway,
	resolver *Resolver,
	opts ...ServiceOption,
) *Service {
	if catalog == nil {
		panic("subscription: Catalog is required")
	}
	if profiles == nil {
		panic("subscription: ProfileStore is required")
	}
	if subs == nil {
		panic("subscription: SubscriptionStore is required")
	}
	if selections == nil {
		panic("subscription: SelectionStore is required")
	}
	if gateway == nil {
		panic("subscription: PaymentGateway is required")
	}
	if resolver == nil {
		panic("subscription: Resolver is required")
	}

	s := &Service{
		catalog:    catalog,
		profiles:   profiles,
		subs:       subs,
		selections: selections,
		gateway:    gateway,
		resolver:   resolver,
		events:     NewMemoryEventStore(),
		locker:     lock.NewMemoryLocker(),
		lockTTL:    defaultLockTTL,
		log:        slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}
