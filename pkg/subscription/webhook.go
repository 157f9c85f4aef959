package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/foliopress/folio/pkg/logger"
)

// EventType is the normalized gateway event type.
type EventType string

const (
	EventCheckoutCompleted   EventType = "checkout_completed"
	EventSubscriptionUpdated EventType = "subscription_updated"
	EventSubscriptionDeleted EventType = "subscription_deleted"
)

// Event is a verified, normalized gateway webhook event. Signature
// verification happens at the transport edge before an Event is built;
// handlers trust the event's authenticity but not its ordering or
// uniqueness.
type Event struct {
	ID   string
	Type EventType

	ExternalSubscriptionRef string
	ExternalCustomerRef     string
	CustomerEmail           string
	Metadata                map[string]string

	Status             Status
	CancelAtPeriodEnd  bool
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
}

// HandleEvent projects a gateway lifecycle event onto local state. Delivery
// is at-least-once with no ordering guarantee across types; every branch is
// safe to re-run.
func (s *Service) HandleEvent(ctx context.Context, ev Event) error {
	switch ev.Type {
	case EventCheckoutCompleted:
		return s.handleCheckoutCompleted(ctx, ev)
	case EventSubscriptionUpdated:
		return s.handleSubscriptionUpdated(ctx, ev)
	case EventSubscriptionDeleted:
		return s.handleSubscriptionDeleted(ctx, ev)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedEvent, ev.Type)
	}
}

// handleCheckoutCompleted creates the local subscription from a completed
// hosted checkout. The round-tripped metadata carries the purchase intent;
// period boundaries come from a live gateway fetch, not the webhook payload.
func (s *Service) handleCheckoutCompleted(ctx context.Context, ev Event) error {
	fresh, err := s.events.MarkProcessed(ctx, ev.ID)
	if err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	if !fresh {
		s.log.InfoContext(ctx, "duplicate checkout event skipped",
			logger.Component("webhook"), logger.EventID(ev.ID))
		return nil
	}

	if err := s.projectCheckout(ctx, ev); err != nil {
		// The event never finished projecting. Forget its id so the
		// gateway's redelivery is processed instead of skipped as a
		// duplicate; the unique external-ref constraint still absorbs any
		// redelivery racing this attempt.
		if ferr := s.events.Forget(ctx, ev.ID); ferr != nil {
			s.log.ErrorContext(ctx, "failed to forget unprocessed event",
				logger.Component("webhook"),
				logger.EventID(ev.ID),
				logger.Error(ferr),
			)
		}
		return err
	}
	return nil
}

func (s *Service) projectCheckout(ctx context.Context, ev Event) error {
	intent, err := IntentFromMetadata(ev.Metadata)
	if err != nil {
		return err
	}

	profile, err := s.resolver.Resolve(ctx, ev.CustomerEmail, ev.ExternalCustomerRef)
	if err != nil {
		return fmt.Errorf("resolve identity: %w", err)
	}

	// One billable subscription per profile, enforced here rather than in
	// storage. A row for the same external ref is this event redelivered
	// and falls through to Create's unique-ref handling; a canceled row
	// does not block a new purchase.
	existing, err := s.subs.FindByProfileID(ctx, profile.ID)
	switch {
	case err == nil:
		if existing.ExternalRef != ev.ExternalSubscriptionRef && existing.Status.IsBillable() {
			return fmt.Errorf("%w: profile %s", ErrProfileHasActiveSubscription, profile.ID)
		}
	case !errors.Is(err, ErrSubscriptionNotFound):
		return fmt.Errorf("find subscription by profile: %w", err)
	}

	// From here on every failure is a partial operation: identity side
	// effects have already happened and must be named for the operator.
	completed := []string{StepIdentityResolved}

	live, err := s.gateway.RetrieveSubscription(ctx, ev.ExternalSubscriptionRef)
	if err != nil {
		return newPartialError("checkout_completed", completed, StepGatewaySubFetched, err)
	}
	completed = append(completed, StepGatewaySubFetched)

	now := time.Now().UTC()
	sub := &Subscription{
		ID:                 uuid.New(),
		ProfileID:          profile.ID,
		ExternalRef:        ev.ExternalSubscriptionRef,
		TierID:             intent.TierID,
		TierPriceID:        intent.TierPriceID,
		Status:             live.Status,
		CurrentPeriodStart: live.CurrentPeriodStart,
		CurrentPeriodEnd:   live.CurrentPeriodEnd,
		CancelAtPeriodEnd:  live.CancelAtPeriodEnd,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.subs.Create(ctx, sub); err != nil {
		// A unique-ref collision means a redelivery already projected this
		// subscription; the row, not the dedup cache, is the last defense.
		if errors.Is(err, ErrSubscriptionExists) {
			s.log.InfoContext(ctx, "subscription already projected",
				logger.Component("webhook"), logger.EventID(ev.ID))
			return nil
		}
		return newPartialError("checkout_completed", completed, StepSubscriptionCreated, err)
	}
	completed = append(completed, StepSubscriptionCreated)

	if len(intent.AddonProductIDs) > 0 {
		if err := s.selections.ReplaceForSubscription(ctx, sub.ID, intent.AddonProductIDs); err != nil {
			return newPartialError("checkout_completed", completed, StepAddonSelectionsSaved, err)
		}
	}

	s.log.InfoContext(ctx, "subscription created from checkout",
		logger.Component("webhook"),
		logger.EventID(ev.ID),
		logger.SubscriptionID(sub.ID),
		logger.ProfileID(profile.ID),
	)

	return nil
}

// handleSubscriptionUpdated projects gateway status, period boundaries, and
// the cancel flag onto the local row. A missing row is a no-op: the
// "updated" event may outrun "completed" for the same subscription.
func (s *Service) handleSubscriptionUpdated(ctx context.Context, ev Event) error {
	sub, err := s.subs.FindByExternalRef(ctx, ev.ExternalSubscriptionRef)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			s.log.DebugContext(ctx, "update for unknown subscription ignored",
				logger.Component("webhook"),
				logger.EventID(ev.ID),
				slog.String("external_ref", ev.ExternalSubscriptionRef),
			)
			return nil
		}
		return fmt.Errorf("find subscription by external ref: %w", err)
	}

	sub.Status = ev.Status
	sub.CurrentPeriodStart = ev.CurrentPeriodStart
	sub.CurrentPeriodEnd = ev.CurrentPeriodEnd
	sub.CancelAtPeriodEnd = ev.CancelAtPeriodEnd
	sub.UpdatedAt = time.Now().UTC()

	if err := s.subs.Update(ctx, sub); err != nil {
		return fmt.Errorf("project subscription update: %w", err)
	}

	return nil
}

// handleSubscriptionDeleted is a terminal projection to canceled, never a
// row deletion.
func (s *Service) handleSubscriptionDeleted(ctx context.Context, ev Event) error {
	sub, err := s.subs.FindByExternalRef(ctx, ev.ExternalSubscriptionRef)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			return nil
		}
		return fmt.Errorf("find subscription by external ref: %w", err)
	}

	sub.Status = StatusCanceled
	sub.UpdatedAt = time.Now().UTC()

	if err := s.subs.Update(ctx, sub); err != nil {
		return fmt.Errorf("project subscription deletion: %w", err)
	}

	s.log.InfoContext(ctx, "subscription canceled by gateway",
		logger.Component("webhook"),
		logger.SubscriptionID(sub.ID),
	)

	return nil
}
