package storefront_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/foliopress/folio/modules/storefront"
	"github.com/foliopress/folio/pkg/subscription"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) CreateCheckoutSession(ctx context.Context, params subscription.CheckoutParams) (*subscription.CheckoutSession, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.CheckoutSession), args.Error(1)
}

func (m *mockService) HandleEvent(ctx context.Context, ev subscription.Event) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *mockService) Cancel(ctx context.Context, subscriptionID uuid.UUID) error {
	args := m.Called(ctx, subscriptionID)
	return args.Error(0)
}

func (m *mockService) Reactivate(ctx context.Context, subscriptionID uuid.UUID) error {
	args := m.Called(ctx, subscriptionID)
	return args.Error(0)
}

func (m *mockService) ChangeTier(ctx context.Context, subscriptionID uuid.UUID, params subscription.ChangeTierParams) error {
	args := m.Called(ctx, subscriptionID, params)
	return args.Error(0)
}

func (m *mockService) SwapAddons(ctx context.Context, subscriptionID uuid.UUID, addonProductIDs []uuid.UUID) error {
	args := m.Called(ctx, subscriptionID, addonProductIDs)
	return args.Error(0)
}

func (m *mockService) ListAddons(ctx context.Context, subscriptionID uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

type mockParser struct {
	mock.Mock
}

func (m *mockParser) ParseWebhookEvent(payload []byte, signature string) (*subscription.Event, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.Event), args.Error(1)
}

func newServer(t *testing.T, svc *mockService, parser *mockParser, opts ...storefront.RouterOption) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(storefront.Router(svc, parser, opts...))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestCheckoutEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("returns the session url", func(t *testing.T) {
		t.Parallel()

		svc := &mockService{}
		parser := &mockParser{}
		tierID := uuid.New()

		svc.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(p subscription.CheckoutParams) bool {
			return p.TierID == tierID && p.Interval == subscription.IntervalMonth
		})).Return(&subscription.CheckoutSession{
			SessionID: "cs_1",
			URL:       "https://checkout.example.com/cs_1",
		}, nil).Once()

		srv := newServer(t, svc, parser)

		resp := postJSON(t, srv.URL+"/checkout", map[string]any{
			"tier_id":     tierID,
			"interval":    "month",
			"success_url": "https://folio.press/thanks",
			"cancel_url":  "https://folio.press/subscribe",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var body struct {
			URL string `json:"url"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "https://checkout.example.com/cs_1", body.URL)
	})

	t.Run("validation failure maps to 422", func(t *testing.T) {
		t.Parallel()

		svc := &mockService{}
		parser := &mockParser{}
		svc.On("CreateCheckoutSession", mock.Anything, mock.Anything).
			Return(nil, subscription.ErrAddonCountMismatch).Once()

		srv := newServer(t, svc, parser)

		resp := postJSON(t, srv.URL+"/checkout", map[string]any{
			"tier_id": uuid.New(), "interval": "month",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("unknown tier maps to 404", func(t *testing.T) {
		t.Parallel()

		svc := &mockService{}
		parser := &mockParser{}
		svc.On("CreateCheckoutSession", mock.Anything, mock.Anything).
			Return(nil, subscription.ErrTierNotFound).Once()

		srv := newServer(t, svc, parser)

		resp := postJSON(t, srv.URL+"/checkout", map[string]any{
			"tier_id": uuid.New(), "interval": "month",
		})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("gateway trouble maps to 502", func(t *testing.T) {
		t.Parallel()

		svc := &mockService{}
		parser := &mockParser{}
		svc.On("CreateCheckoutSession", mock.Anything, mock.Anything).
			Return(nil, subscription.ErrGatewayUnavailable).Once()

		srv := newServer(t, svc, parser)

		resp := postJSON(t, srv.URL+"/checkout", map[string]any{
			"tier_id": uuid.New(), "interval": "month",
		})
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	})

	t.Run("malformed body maps to 400", func(t *testing.T) {
		t.Parallel()

		svc := &mockService{}
		parser := &mockParser{}
		srv := newServer(t, svc, parser)

		resp, err := http.Post(srv.URL+"/checkout", "application/json", strings.NewReader("{"))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		svc.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
	})
}

func TestWebhookEndpoint(t *testing.T) {
	t.Parallel()

	postWebhook := func(t *testing.T, url, payload, signature string) *http.Response {
		t.Helper()
		req, err := http.NewRequest(http.MethodPost, url+"/webhooks/stripe", strings.NewReader(payload))
		require.NoError(t, err)
		req.Header.Set("Stripe-Signature", signature)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	t.Run("verified event is processed and acknowledged", func(t *testing.T) {
		t.Parallel()

		svc := &mockService{}
		parser := &mockParser{}
		ev := &subscription.Event{ID: "evt_1", Type: subscription.EventSubscriptionUpdated}

		parser.On("ParseWebhookEvent", []byte(`{"id":"evt_1"}`), "sig_valid").Return(ev, nil).Once()
		svc.On("HandleEvent", mock.Anything, *ev).Return(nil).Once()

		srv := newServer(t, svc, parser)

		resp := postWebhook(t, srv.URL, `{"id":"evt_1"}`, "sig_valid")
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		parser.AssertExpectations(t)
		svc.AssertExpectations(t)
	})

	t.Run("bad signature maps to 400 without processing", func(t *testing.T) {
		t.Parallel()

		svc := &mockService{}
		parser := &mockParser{}
		parser.On("ParseWebhookEvent", mock.Anything, "sig_bad").
			Return(nil, subscription.ErrWebhookVerification).Once()

		srv := newServer(t, svc, parser)

		resp := postWebhook(t, srv.URL, `{}`, "sig_bad")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		svc.AssertNotCalled(t, "HandleEvent", mock.Anything, mock.Anything)
	})

	t.Run("unsupported event type is acknowledged", func(t *testing.T) {
		t.Parallel()

		svc := &mockService{}
		parser := &mockParser{}
		parser.On("ParseWebhookEvent", mock.Anything, mock.Anything).
			Return(nil, subscription.ErrUnsupportedEvent).Once()

		srv := newServer(t, svc, parser)

		resp := postWebhook(t, srv.URL, `{}`, "sig_valid")
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		svc.AssertNotCalled(t, "HandleEvent", mock.Anything, mock.Anything)
	})

	t.Run("processing failure maps to 500 for redelivery", func(t *testing.T) {
		t.Parallel()

		svc := &mockService{}
		parser := &mockParser{}
		ev := &subscription.Event{ID: "evt_2", Type: subscription.EventCheckoutCompleted}

		parser.On("ParseWebhookEvent", mock.Anything, mock.Anything).Return(ev, nil).Once()
		svc.On("HandleEvent", mock.Anything, *ev).Return(errors.New("db down")).Once()

		srv := newServer(t, svc, parser)

		resp := postWebhook(t, srv.URL, `{}`, "sig_valid")
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})
}

func TestLifecycleEndpoints(t *testing.T) {
	t.Parallel()

	t.Run("cancel returns 204", func(t *testing.T) {
		t.Parallel()

		svc := &mockService{}
		parser := &mockParser{}
		id := uuid.New()
		svc.On("Cancel", mock.Anything, id).Return(nil).Once()

		srv := newServer(t, svc, parser)

		resp := postJSON(t, srv.URL+"/subscriptions/"+id.String()+"/cancel", nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	})

	t.Run("reactivate without pending cancellation maps to 422", func(t *testing.T) {
		t.Parallel()

		svc := &mockService{}
		parser := &mockParser{}
		id := uuid.New()
		svc.On("Reactivate", mock.Anything, id).
			Return(subscription.ErrNotPendingCancellation).Once()

		srv := newServer(t, svc, parser)

		resp := postJSON(t, srv.URL+"/subscriptions/"+id.String()+"/reactivate", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("busy subscription maps to 409", func(t *testing.T) {
		t.Parallel()

		svc := &mockService{}
		parser := &mockParser{}
		id := uuid.New()
		svc.On("Cancel", mock.Anything, id).Return(subscription.ErrSubscriptionBusy).Once()

		srv := newServer(t, svc, parser)

		resp := postJSON(t, srv.URL+"/subscriptions/"+id.String()+"/cancel", nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("partial operation maps to 500", func(t *testing.T) {
		t.Parallel()

		svc := &mockService{}
		parser := &mockParser{}
		id := uuid.New()
		svc.On("Cancel", mock.Anything, id).Return(&subscription.PartialError{
			Op:         "cancel",
			Completed:  []string{subscription.StepStripeCancelScheduled},
			FailedStep: subscription.StepLocalCancelFlagSet,
			Err:        errors.New("db down"),
		}).Once()

		srv := newServer(t, svc, parser)

		resp := postJSON(t, srv.URL+"/subscriptions/"+id.String()+"/cancel", nil)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

		var body struct {
			Error string `json:"error"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "partial_operation", body.Error)
	})

	t.Run("change tier forwards params", func(t *testing.T) {
		t.Parallel()

		svc := &mockService{}
		parser := &mockParser{}
		id := uuid.New()
		tierID := uuid.New()

		svc.On("ChangeTier", mock.Anything, id, mock.MatchedBy(func(p subscription.ChangeTierParams) bool {
			return p.TierID == tierID && p.Interval == subscription.IntervalYear
		})).Return(nil).Once()

		srv := newServer(t, svc, parser)

		resp := postJSON(t, srv.URL+"/subscriptions/"+id.String()+"/tier", map[string]any{
			"tier_id":  tierID,
			"interval": "year",
		})
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		svc.AssertExpectations(t)
	})

	t.Run("swap addons forwards the selection set", func(t *testing.T) {
		t.Parallel()

		svc := &mockService{}
		parser := &mockParser{}
		id := uuid.New()
		addons := []uuid.UUID{uuid.New(), uuid.New()}

		svc.On("SwapAddons", mock.Anything, id, addons).Return(nil).Once()

		srv := newServer(t, svc, parser)

		payload, err := json.Marshal(map[string]any{"addon_product_ids": addons})
		require.NoError(t, err)
		req, err := http.NewRequest(http.MethodPut, srv.URL+"/subscriptions/"+id.String()+"/addons", bytes.NewReader(payload))
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		svc.AssertExpectations(t)
	})

	t.Run("gateway unavailable maps to 502", func(t *testing.T) {
		t.Parallel()

		svc := &mockService{}
		parser := &mockParser{}
		id := uuid.New()
		svc.On("Cancel", mock.Anything, id).Return(subscription.ErrGatewayUnavailable).Once()

		srv := newServer(t, svc, parser)

		resp := postJSON(t, srv.URL+"/subscriptions/"+id.String()+"/cancel", nil)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

		var body struct {
			Error string `json:"error"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "gateway_unavailable", body.Error)
	})

	t.Run("unknown gateway outcome gets its own 502 code", func(t *testing.T) {
		t.Parallel()

		svc := &mockService{}
		parser := &mockParser{}
		id := uuid.New()
		svc.On("Cancel", mock.Anything, id).Return(subscription.ErrGatewayOutcomeUnknown).Once()

		srv := newServer(t, svc, parser)

		resp := postJSON(t, srv.URL+"/subscriptions/"+id.String()+"/cancel", nil)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

		// The caller must be able to tell "retry later" apart from "the
		// gateway may have already applied this".
		var body struct {
			Error string `json:"error"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "gateway_outcome_unknown", body.Error)
	})

	t.Run("lists the current addon selection", func(t *testing.T) {
		t.Parallel()

		svc := &mockService{}
		parser := &mockParser{}
		id := uuid.New()
		addons := []uuid.UUID{uuid.New(), uuid.New()}

		svc.On("ListAddons", mock.Anything, id).Return(addons, nil).Once()

		srv := newServer(t, svc, parser)

		resp, err := http.Get(srv.URL + "/subscriptions/" + id.String() + "/addons")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			AddonProductIDs []uuid.UUID `json:"addon_product_ids"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, addons, body.AddonProductIDs)
	})

	t.Run("listing addons for an unknown subscription maps to 404", func(t *testing.T) {
		t.Parallel()

		svc := &mockService{}
		parser := &mockParser{}
		id := uuid.New()
		svc.On("ListAddons", mock.Anything, id).
			Return(nil, subscription.ErrSubscriptionNotFound).Once()

		srv := newServer(t, svc, parser)

		resp, err := http.Get(srv.URL + "/subscriptions/" + id.String() + "/addons")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("malformed subscription id maps to 400", func(t *testing.T) {
		t.Parallel()

		svc := &mockService{}
		parser := &mockParser{}
		srv := newServer(t, svc, parser)

		resp := postJSON(t, srv.URL+"/subscriptions/not-a-uuid/cancel", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		svc.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything)
	})
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	t.Run("all checks pass", func(t *testing.T) {
		t.Parallel()

		srv := newServer(t, &mockService{}, &mockParser{},
			storefront.WithHealthcheck("postgres", func(context.Context) error { return nil }),
			storefront.WithHealthcheck("redis", func(context.Context) error { return nil }),
		)

		resp, err := http.Get(srv.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("failing dependency maps to 503", func(t *testing.T) {
		t.Parallel()

		srv := newServer(t, &mockService{}, &mockParser{},
			storefront.WithHealthcheck("postgres", func(context.Context) error { return nil }),
			storefront.WithHealthcheck("redis", func(context.Context) error {
				return errors.New("connection refused")
			}),
		)

		resp, err := http.Get(srv.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})
}
