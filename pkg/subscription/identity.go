package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/foliopress/folio/pkg/logger"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultPollAttempts = 5
)

// SleepFunc suspends for d or until the context is done. Injected so tests
// can run the polling loop without real time passing.
type SleepFunc func(ctx context.Context, d time.Duration) error

func realSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Resolver finds or provisions the reader profile for an email and gateway
// customer reference. Identity creation and profile-row creation live in two
// independent subsystems with no shared transaction; the bounded poll turns
// that eventual-consistency window into a short synchronous wait.
type Resolver struct {
	profiles    ProfileStore
	provisioner IdentityProvisioner
	notifier    Notifier
	log         *slog.Logger

	sleep        SleepFunc
	pollInterval time.Duration
	pollAttempts int
	claimBaseURL string
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithResolverLogger sets the resolver's logger.
func WithResolverLogger(log *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if log != nil {
			r.log = log
		}
	}
}

// WithSleep replaces the polling sleep, for tests.
func WithSleep(sleep SleepFunc) ResolverOption {
	return func(r *Resolver) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// WithClaimBaseURL sets the base URL of the claim-account page linked from
// the provisioning email.
func WithClaimBaseURL(u string) ResolverOption {
	return func(r *Resolver) { r.claimBaseURL = u }
}

// NewResolver creates a Resolver. Panics on nil required dependencies to
// fail fast during initialization.
func NewResolver(profiles ProfileStore, provisioner IdentityProvisioner, notifier Notifier, opts ...ResolverOption) *Resolver {
	if profiles == nil {
		panic("subscription: ProfileStore is required")
	}
	if provisioner == nil {
		panic("subscription: IdentityProvisioner is required")
	}
	if notifier == nil {
		panic("subscription: Notifier is required")
	}

	r := &Resolver{
		profiles:     profiles,
		provisioner:  provisioner,
		notifier:     notifier,
		log:          slog.Default(),
		sleep:        realSleep,
		pollInterval: defaultPollInterval,
		pollAttempts: defaultPollAttempts,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the profile owning email, linked to customerRef.
//
// A profile that already carries a customer reference is returned unchanged:
// first writer wins, a profile is never re-pointed at a different gateway
// customer through this path. When no profile exists, provisioning is
// requested and the resulting row is polled for; exhausting the poll budget
// is a fatal *PartialError, not something retried further here.
func (r *Resolver) Resolve(ctx context.Context, email, customerRef string) (*Profile, error) {
	profile, err := r.profiles.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if profile.ExternalCustomerRef != "" {
			return profile, nil
		}
		if err := r.profiles.AttachCustomerRef(ctx, profile.ID, customerRef); err != nil {
			return nil, fmt.Errorf("attach customer ref: %w", err)
		}
		profile.ExternalCustomerRef = customerRef
		return profile, nil
	case !errors.Is(err, ErrProfileNotFound):
		return nil, fmt.Errorf("find profile by email: %w", err)
	}

	if err := r.provisioner.Provision(ctx, email); err != nil {
		return nil, fmt.Errorf("provision identity: %w", err)
	}

	profile, err = r.pollForProfile(ctx, email)
	if err != nil {
		return nil, err
	}

	if err := r.profiles.AttachCustomerRef(ctx, profile.ID, customerRef); err != nil {
		return nil, newPartialError("resolve_identity",
			[]string{StepAuthUserCreated}, "customer_ref_attach_failed", err)
	}
	profile.ExternalCustomerRef = customerRef

	// Best-effort claim notification; a mail failure never fails resolution.
	if err := r.notifier.SendClaimEmail(ctx, email, r.claimBaseURL); err != nil {
		r.log.WarnContext(ctx, "claim email failed",
			logger.Component("identity_resolver"),
			logger.ProfileID(profile.ID),
			logger.Error(err),
		)
	}

	return profile, nil
}

// pollForProfile waits for the store-side trigger to materialize the profile
// row, checking exactly pollAttempts times at a fixed interval.
func (r *Resolver) pollForProfile(ctx context.Context, email string) (*Profile, error) {
	for range r.pollAttempts {
		if err := r.sleep(ctx, r.pollInterval); err != nil {
			return nil, fmt.Errorf("poll for profile: %w", err)
		}

		profile, err := r.profiles.FindByEmail(ctx, email)
		if err == nil {
			return profile, nil
		}
		if !errors.Is(err, ErrProfileNotFound) {
			return nil, fmt.Errorf("poll for profile: %w", err)
		}
	}

	return nil, newPartialError("resolve_identity",
		[]string{StepAuthUserCreated}, StepProfileNotFound, ErrProfileNotFound)
}
