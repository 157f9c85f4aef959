package subscription_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/foliopress/folio/pkg/subscription"
)

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) FindTierByID(ctx context.Context, id uuid.UUID) (*subscription.Tier, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.Tier), args.Error(1)
}

type mockProfileStore struct {
	mock.Mock
}

func (m *mockProfileStore) FindByEmail(ctx context.Context, email string) (*subscription.Profile, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.Profile), args.Error(1)
}

func (m *mockProfileStore) AttachCustomerRef(ctx context.Context, profileID uuid.UUID, customerRef string) error {
	args := m.Called(ctx, profileID, customerRef)
	return args.Error(0)
}

type mockSubscriptionStore struct {
	mock.Mock
}

func (m *mockSubscriptionStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *mockSubscriptionStore) FindByID(ctx context.Context, id uuid.UUID) (*subscription.Subscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.Subscription), args.Error(1)
}

func (m *mockSubscriptionStore) FindByExternalRef(ctx context.Context, externalRef string) (*subscription.Subscription, error) {
	args := m.Called(ctx, externalRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.Subscription), args.Error(1)
}

func (m *mockSubscriptionStore) FindByProfileID(ctx context.Context, profileID uuid.UUID) (*subscription.Subscription, error) {
	args := m.Called(ctx, profileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.Subscription), args.Error(1)
}

func (m *mockSubscriptionStore) Update(ctx context.Context, sub *subscription.Subscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

type mockSelectionStore struct {
	mock.Mock
}

func (m *mockSelectionStore) ListBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *mockSelectionStore) ReplaceForSubscription(ctx context.Context, subscriptionID uuid.UUID, addonProductIDs []uuid.UUID) error {
	args := m.Called(ctx, subscriptionID, addonProductIDs)
	return args.Error(0)
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateCheckoutSession(ctx context.Context, params subscription.CheckoutSessionParams) (*subscription.CheckoutSession, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.CheckoutSession), args.Error(1)
}

func (m *mockGateway) RetrieveSubscription(ctx context.Context, externalRef string) (*subscription.GatewaySubscription, error) {
	args := m.Called(ctx, externalRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.GatewaySubscription), args.Error(1)
}

func (m *mockGateway) UpdateSubscription(ctx context.Context, externalRef string, update subscription.SubscriptionUpdate) error {
	args := m.Called(ctx, externalRef, update)
	return args.Error(0)
}

type mockProvisioner struct {
	mock.Mock
}

func (m *mockProvisioner) Provision(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendClaimEmail(ctx context.Context, to, claimURL string) error {
	args := m.Called(ctx, to, claimURL)
	return args.Error(0)
}

// noSleep advances the polling loop without waiting.
func noSleep(_ context.Context, _ time.Duration) error { return nil }

// testDeps bundles the mocks a Service needs; fields default to mocks whose
// unexpected calls fail the test.
type testDeps struct {
	catalog     *mockCatalog
	profiles    *mockProfileStore
	subs        *mockSubscriptionStore
	selections  *mockSelectionStore
	gateway     *mockGateway
	provisioner *mockProvisioner
	notifier    *mockNotifier
}

func newTestDeps() *testDeps {
	return &testDeps{
		catalog:     &mockCatalog{},
		profiles:    &mockProfileStore{},
		subs:        &mockSubscriptionStore{},
		selections:  &mockSelectionStore{},
		gateway:     &mockGateway{},
		provisioner: &mockProvisioner{},
		notifier:    &mockNotifier{},
	}
}

func (d *testDeps) newService(opts ...subscription.ServiceOption) *subscription.Service {
	resolver := subscription.NewResolver(d.profiles, d.provisioner, d.notifier,
		subscription.WithSleep(noSleep),
	)
	return subscription.NewService(d.catalog, d.profiles, d.subs, d.selections, d.gateway, resolver, opts...)
}

// tierWithSlots builds a tier with one active monthly price and the given
// number of addon slots.
func tierWithSlots(slots int) *subscription.Tier {
	tierID := uuid.New()
	return &subscription.Tier{
		ID:         tierID,
		Name:       "Print + Digital",
		AddonSlots: slots,
		IsActive:   true,
		Prices: []subscription.TierPrice{
			{
				ID:               uuid.New(),
				TierID:           tierID,
				Interval:         subscription.IntervalMonth,
				Amount:           1200,
				Currency:         "USD",
				ExternalPriceRef: "price_month_1200",
				IsActive:         true,
			},
			{
				ID:               uuid.New(),
				TierID:           tierID,
				Interval:         subscription.IntervalYear,
				Amount:           11900,
				Currency:         "USD",
				ExternalPriceRef: "price_year_11900",
				IsActive:         false,
			},
		},
	}
}

func addonIDs(n int) []uuid.UUID {
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
	}
	return ids
}
