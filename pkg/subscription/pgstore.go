package subscription

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/foliopress/folio/pkg/pg"
)

// PGStore implements Catalog, ProfileStore, SubscriptionStore, and
// SelectionStore on a pgx connection pool. One type for all four keeps the
// wiring flat; the interfaces stay separate so tests can fake them
// independently.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates the postgres-backed store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	if pool == nil {
		panic("subscription: pgx pool is required")
	}
	return &PGStore{pool: pool}
}

// FindTierByID returns the tier with all of its prices, active or not.
func (s *PGStore) FindTierByID(ctx context.Context, id uuid.UUID) (*Tier, error) {
	var tier Tier
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, description, addon_slots, is_active
		 FROM tiers WHERE id = $1`, id,
	).Scan(&tier.ID, &tier.Name, &tier.Description, &tier.AddonSlots, &tier.IsActive)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrTierNotFound
		}
		return nil, fmt.Errorf("query tier: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, tier_id, billing_interval, amount, currency, external_price_ref, is_active
		 FROM tier_prices WHERE tier_id = $1
		 ORDER BY billing_interval, is_active DESC`, id)
	if err != nil {
		return nil, fmt.Errorf("query tier prices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p TierPrice
		if err := rows.Scan(&p.ID, &p.TierID, &p.Interval, &p.Amount, &p.Currency, &p.ExternalPriceRef, &p.IsActive); err != nil {
			return nil, fmt.Errorf("scan tier price: %w", err)
		}
		tier.Prices = append(tier.Prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tier prices: %w", err)
	}

	return &tier, nil
}

// FindByEmail looks up a profile by exact email.
func (s *PGStore) FindByEmail(ctx context.Context, email string) (*Profile, error) {
	var p Profile
	var customerRef *string
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, external_customer_ref, created_at, updated_at
		 FROM profiles WHERE email = $1`, email,
	).Scan(&p.ID, &p.Email, &customerRef, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("query profile: %w", err)
	}
	if customerRef != nil {
		p.ExternalCustomerRef = *customerRef
	}
	return &p, nil
}

// AttachCustomerRef links a gateway customer to a profile that has none.
// The WHERE clause makes concurrent attaches first-writer-wins.
func (s *PGStore) AttachCustomerRef(ctx context.Context, profileID uuid.UUID, customerRef string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE profiles SET external_customer_ref = $2, updated_at = now()
		 WHERE id = $1 AND external_customer_ref IS NULL`, profileID, customerRef)
	if err != nil {
		return fmt.Errorf("attach customer ref: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the profile vanished or another writer attached first;
		// distinguish for the caller.
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM profiles WHERE id = $1)`, profileID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("attach customer ref: %w", err)
		}
		if !exists {
			return ErrProfileNotFound
		}
	}
	return nil
}

// Create inserts a subscription row. A duplicate external reference maps to
// ErrSubscriptionExists.
func (s *PGStore) Create(ctx context.Context, sub *Subscription) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO subscriptions
		 (id, profile_id, external_ref, tier_id, tier_price_id, status,
		  current_period_start, current_period_end, cancel_at_period_end,
		  created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		sub.ID, sub.ProfileID, sub.ExternalRef, sub.TierID, sub.TierPriceID,
		sub.Status, sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd, sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return ErrSubscriptionExists
		}
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

func (s *PGStore) FindByID(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	return s.findSubscription(ctx, `id = $1`, id)
}

func (s *PGStore) FindByExternalRef(ctx context.Context, externalRef string) (*Subscription, error) {
	return s.findSubscription(ctx, `external_ref = $1`, externalRef)
}

func (s *PGStore) FindByProfileID(ctx context.Context, profileID uuid.UUID) (*Subscription, error) {
	return s.findSubscription(ctx, `profile_id = $1`, profileID)
}

func (s *PGStore) findSubscription(ctx context.Context, where string, arg any) (*Subscription, error) {
	var sub Subscription
	err := s.pool.QueryRow(ctx,
		`SELECT id, profile_id, external_ref, tier_id, tier_price_id, status,
		        current_period_start, current_period_end, cancel_at_period_end,
		        created_at, updated_at
		 FROM subscriptions WHERE `+where, arg,
	).Scan(&sub.ID, &sub.ProfileID, &sub.ExternalRef, &sub.TierID, &sub.TierPriceID,
		&sub.Status, &sub.CurrentPeriodStart, &sub.CurrentPeriodEnd,
		&sub.CancelAtPeriodEnd, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("query subscription: %w", err)
	}
	return &sub, nil
}

// Update overwrites the mutable projection fields of an existing row.
func (s *PGStore) Update(ctx context.Context, sub *Subscription) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE subscriptions SET
		   tier_id = $2, tier_price_id = $3, status = $4,
		   current_period_start = $5, current_period_end = $6,
		   cancel_at_period_end = $7, updated_at = $8
		 WHERE id = $1`,
		sub.ID, sub.TierID, sub.TierPriceID, sub.Status,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd, sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

// ListBySubscription returns the selected addon product ids.
func (s *PGStore) ListBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT addon_product_id FROM subscription_addon_selections
		 WHERE subscription_id = $1 ORDER BY addon_product_id`, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("query addon selections: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan addon selection: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate addon selections: %w", err)
	}
	return ids, nil
}

// ReplaceForSubscription swaps the whole selection set in one transaction.
// There is no incremental diff: delete-then-insert keeps the invariant that
// the set always equals the last accepted selection.
func (s *PGStore) ReplaceForSubscription(ctx context.Context, subscriptionID uuid.UUID, addonProductIDs []uuid.UUID) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM subscription_addon_selections WHERE subscription_id = $1`,
			subscriptionID); err != nil {
			return fmt.Errorf("clear addon selections: %w", err)
		}

		for _, addonID := range addonProductIDs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO subscription_addon_selections (subscription_id, addon_product_id)
				 VALUES ($1, $2)`, subscriptionID, addonID); err != nil {
				return fmt.Errorf("insert addon selection: %w", err)
			}
		}
		return nil
	})
}
