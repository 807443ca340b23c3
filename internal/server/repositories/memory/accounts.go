package memory

import (
	"context"

	"github.com/dmitrijs2005/imagehost/internal/common"
	"github.com/dmitrijs2005/imagehost/internal/server/models"
)

type Accounts struct {
	s *Store
}

func (r *Accounts) Create(_ context.Context, userID string, tierName string) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.accounts[userID]; ok {
		return nil, common.ErrorAlreadyExists
	}

	r.s.nextAccountID++
	acc := &models.Account{ID: r.s.nextAccountID, UserID: userID, TierID: r.s.tierID(tierName)}
	r.s.accounts[userID] = acc

	c := *acc
	return &c, nil
}

func (r *Accounts) GetByUserID(_ context.Context, userID string) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	acc, ok := r.s.accounts[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *acc
	return &c, nil
}

func (r *Accounts) PerkNames(_ context.Context, userID string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	acc, ok := r.s.accounts[userID]
	if !ok || acc.TierID == nil {
		return []string{}, nil
	}
	return append([]string{}, r.s.tierPerks[*acc.TierID]...), nil
}
