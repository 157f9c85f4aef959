package subscription

import (
	"errors"
	"fmt"
	"strings"
)

// Business-rule errors. Expected outcomes, returned to the caller as-is and
// never retried automatically.
var (
	ErrTierNotFound           = errors.New("subscription tier not found")
	ErrInactiveTier           = errors.New("subscription tier is not active")
	ErrAddonCountMismatch     = errors.New("addon selection count does not match tier slots")
	ErrPriceNotFound          = errors.New("no active price for the requested interval")
	ErrNotPendingCancellation = errors.New("subscription is not pending cancellation")

	// ErrProfileHasActiveSubscription rejects creating a second billable
	// subscription for one profile. A canceled or expired row does not block
	// a new purchase.
	ErrProfileHasActiveSubscription = errors.New("profile already has a billable subscription")
)

// Repository errors.
var (
	ErrProfileNotFound      = errors.New("profile not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrSubscriptionExists   = errors.New("subscription already exists")
)

// External-service errors. ErrGatewayOutcomeUnknown marks a mutation that
// timed out: the gateway may or may not have applied it, which is a
// different situation from a confirmed rejection and must not be retried as
// if nothing happened.
var (
	ErrGatewayUnavailable    = errors.New("payment gateway request failed")
	ErrGatewayOutcomeUnknown = errors.New("payment gateway outcome unknown")
	ErrNoCheckoutURL         = errors.New("no checkout URL returned from gateway")
	ErrWebhookVerification   = errors.New("webhook signature verification failed")
	ErrUnsupportedEvent      = errors.New("unsupported webhook event type")
	ErrInvalidEventMetadata  = errors.New("webhook event metadata is missing or malformed")
)

// ErrSubscriptionBusy is returned when another lifecycle command holds the
// per-subscription lease.
var ErrSubscriptionBusy = errors.New("subscription is being modified by another operation")

// Step names used in partial-operation errors. These are stable identifiers
// operators key runbooks on; changing one is a breaking change.
const (
	StepAuthUserCreated         = "auth_user_created"
	StepProfileNotFound         = "profile_not_found_after_retries"
	StepIdentityResolved        = "identity_resolved"
	StepGatewaySubFetched       = "gateway_subscription_fetched"
	StepSubscriptionCreated     = "subscription_created"
	StepAddonSelectionsSaved    = "addon_selections_saved"
	StepStripeCancelScheduled   = "stripe_cancel_scheduled"
	StepLocalCancelFlagSet      = "local_cancel_flag_set"
	StepStripeReactivated       = "stripe_reactivation_requested"
	StepLocalCancelFlagCleared  = "local_cancel_flag_cleared"
	StepStripePriceUpdated      = "stripe_price_updated"
	StepLocalTierUpdated        = "local_tier_updated"
	StepAddonSelectionsReplaced = "addon_selections_replaced"
)

// PartialError reports a multi-step cross-system operation that completed
// some steps and failed on a named later step. It always carries the exact
// list of completed step names so an operator can finish or roll back by
// hand. Callers must not blindly retry: the completed steps may include a
// non-idempotent gateway mutation.
type PartialError struct {
	Op         string   // operation name, e.g. "cancel"
	Completed  []string // step names that finished before the failure
	FailedStep string   // step name that failed
	Err        error    // underlying cause
}

func newPartialError(op string, completed []string, failedStep string, err error) *PartialError {
	return &PartialError{Op: op, Completed: completed, FailedStep: failedStep, Err: err}
}

func (e *PartialError) Error() string {
	done := "none"
	if len(e.Completed) > 0 {
		done = strings.Join(e.Completed, ", ")
	}
	return fmt.Sprintf("%s: step %s failed (completed: %s): %v", e.Op, e.FailedStep, done, e.Err)
}

func (e *PartialError) Unwrap() error { return e.Err }

// AsPartialError extracts a PartialError from an error chain.
func AsPartialError(err error) (*PartialError, bool) {
	var pe *PartialError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
