package subscription

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ErrInvalidCatalogFile is returned when the static catalog definition
// violates a catalog invariant.
var ErrInvalidCatalogFile = errors.New("invalid catalog definition")

// StaticCatalog is a read-only Catalog loaded from a YAML definition. It
// serves dev and preview environments where the full database is not worth
// standing up; the production catalog lives in postgres behind PGStore.
type StaticCatalog struct {
	tiers map[uuid.UUID]*Tier
}

type catalogFile struct {
	Tiers []struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		AddonSlots  int    `yaml:"addon_slots"`
		IsActive    bool   `yaml:"is_active"`
		Prices      []struct {
			ID               string `yaml:"id"`
			Interval         string `yaml:"interval"`
			Amount           int64  `yaml:"amount"`
			Currency         string `yaml:"currency"`
			ExternalPriceRef string `yaml:"external_price_ref"`
			IsActive         bool   `yaml:"is_active"`
		} `yaml:"prices"`
	} `yaml:"tiers"`
}

// NewStaticCatalogFromFile loads a catalog definition from a YAML file.
func NewStaticCatalogFromFile(path string) (*StaticCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return NewStaticCatalog(data)
}

// NewStaticCatalog parses a YAML catalog definition and validates the
// catalog invariants: unique tier ids, non-negative slot counts, and at
// most one active price per tier and interval.
func NewStaticCatalog(data []byte) (*StaticCatalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Join(ErrInvalidCatalogFile, err)
	}

	tiers := make(map[uuid.UUID]*Tier, len(file.Tiers))
	for _, rawTier := range file.Tiers {
		tierID, err := uuid.Parse(rawTier.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: tier id %q: %v", ErrInvalidCatalogFile, rawTier.ID, err)
		}
		if _, dup := tiers[tierID]; dup {
			return nil, fmt.Errorf("%w: duplicate tier id %s", ErrInvalidCatalogFile, tierID)
		}
		if rawTier.AddonSlots < 0 {
			return nil, fmt.Errorf("%w: tier %s has negative addon slots", ErrInvalidCatalogFile, rawTier.Name)
		}

		tier := &Tier{
			ID:          tierID,
			Name:        rawTier.Name,
			Description: rawTier.Description,
			AddonSlots:  rawTier.AddonSlots,
			IsActive:    rawTier.IsActive,
		}

		activeByInterval := make(map[BillingInterval]bool)
		for _, rawPrice := range rawTier.Prices {
			priceID, err := uuid.Parse(rawPrice.ID)
			if err != nil {
				return nil, fmt.Errorf("%w: price id %q: %v", ErrInvalidCatalogFile, rawPrice.ID, err)
			}

			interval := BillingInterval(rawPrice.Interval)
			if interval != IntervalMonth && interval != IntervalYear {
				return nil, fmt.Errorf("%w: tier %s has unknown interval %q", ErrInvalidCatalogFile, rawTier.Name, rawPrice.Interval)
			}
			if rawPrice.IsActive {
				if activeByInterval[interval] {
					return nil, fmt.Errorf("%w: tier %s has more than one active %s price", ErrInvalidCatalogFile, rawTier.Name, interval)
				}
				activeByInterval[interval] = true
			}

			tier.Prices = append(tier.Prices, TierPrice{
				ID:               priceID,
				TierID:           tierID,
				Interval:         interval,
				Amount:           rawPrice.Amount,
				Currency:         rawPrice.Currency,
				ExternalPriceRef: rawPrice.ExternalPriceRef,
				IsActive:         rawPrice.IsActive,
			})
		}

		tiers[tierID] = tier
	}

	return &StaticCatalog{tiers: tiers}, nil
}

// FindTierByID implements Catalog.
func (c *StaticCatalog) FindTierByID(_ context.Context, id uuid.UUID) (*Tier, error) {
	tier, ok := c.tiers[id]
	if !ok {
		return nil, ErrTierNotFound
	}

	// Return a copy so callers cannot mutate the shared catalog.
	out := *tier
	out.Prices = append([]TierPrice(nil), tier.Prices...)
	return &out, nil
}
