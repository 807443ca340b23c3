// Package entitlements resolves a user to the perks granted by their
// account's tier.
package entitlements

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/imagehost/internal/server/perks"
)

// PerkSource lists the perk names a user's tier grants. A user without an
// account or tier has no names; that is not an error.
type PerkSource interface {
	PerkNames(ctx context.Context, userID string) ([]string, error)
}

type Store struct {
	source  PerkSource
	catalog *perks.Catalog
}

func NewStore(source PerkSource, catalog *perks.Catalog) *Store {
	return &Store{source: source, catalog: catalog}
}

// Names returns the raw perk names, including ones the catalog does not
// recognize.
func (s *Store) Names(ctx context.Context, userID string) ([]string, error) {
	names, err := s.source.PerkNames(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("perks of %s: %w", userID, err)
	}
	return names, nil
}

// PerksOf returns the recognized perks of userID. Only storage failures
// produce an error.
func (s *Store) PerksOf(ctx context.Context, userID string) (perks.Set, error) {
	names, err := s.Names(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.catalog.ParseAll(names), nil
}

func (s *Store) HasPerk(ctx context.Context, userID string, perk perks.Perk) (bool, error) {
	set, err := s.PerksOf(ctx, userID)
	if err != nil {
		return false, err
	}
	return set.Has(perk), nil
}
