// Package memory implements every repository over process memory. It backs
// service tests and single-process runs without PostgreSQL; its rules
// (unique names, cascades, not-found errors) follow the SQL schema.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/imagehost/internal/dbx"
	"github.com/dmitrijs2005/imagehost/internal/server/models"
)

// DefaultTiers mirrors the tiers seeded by the initial migration.
func DefaultTiers() map[string][]string {
	return map[string][]string{
		"Basic":      {"200px thumbnail"},
		"Premium":    {"200px thumbnail", "400px thumbnail", "original image"},
		"Enterprise": {"200px thumbnail", "400px thumbnail", "original image", "expiring link"},
	}
}

// Store holds all tables behind one mutex.
type Store struct {
	mu sync.Mutex

	tiers     map[string]int64
	tierPerks map[int64][]string

	users         map[string]*models.User
	refreshTokens map[string]*models.RefreshToken
	accounts      map[string]*models.Account
	images        map[string]*models.Image
	imageOrder    []string
	links         map[string]*models.ExpiringLink
	linkOrder     []string

	nextAccountID int64
}

// NewStore creates an empty store with the given tiers (tier name to perk
// names).
func NewStore(tiers map[string][]string) *Store {
	s := &Store{
		tiers:         map[string]int64{},
		tierPerks:     map[int64][]string{},
		users:         map[string]*models.User{},
		refreshTokens: map[string]*models.RefreshToken{},
		accounts:      map[string]*models.Account{},
		images:        map[string]*models.Image{},
		links:         map[string]*models.ExpiringLink{},
	}
	var id int64
	for name, perks := range tiers {
		id++
		s.tiers[name] = id
		s.tierPerks[id] = append([]string(nil), perks...)
	}
	return s
}

// SetTier moves the user's account to tierName; an unknown name clears
// the tier.
func (s *Store) SetTier(userID, tierName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[userID]
	if !ok {
		return
	}
	acc.TierID = s.tierID(tierName)
}

func (s *Store) tierID(name string) *int64 {
	id, ok := s.tiers[name]
	if !ok {
		return nil
	}
	return &id
}

func (s *Store) Users() *Users                 { return &Users{s: s} }
func (s *Store) RefreshTokens() *RefreshTokens { return &RefreshTokens{s: s} }
func (s *Store) Accounts() *Accounts           { return &Accounts{s: s} }
func (s *Store) Images() *Images               { return &Images{s: s} }
func (s *Store) Links() *Links                 { return &Links{s: s} }

// Executor returns a dbx.Executor whose transactions run fn directly. The
// store has no rollback; a failing fn leaves earlier writes in place.
func (s *Store) Executor() dbx.Executor {
	return executor{}
}

type executor struct{}

func (executor) Conn() dbx.DBTX { return nil }

func (executor) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	return fn(ctx, nil)
}

func now() time.Time {
	return time.Now().UTC()
}
