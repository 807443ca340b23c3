package memory

import (
	"context"
	"time"

	"github.com/dmitrijs2005/imagehost/internal/common"
	"github.com/dmitrijs2005/imagehost/internal/server/models"
)

type RefreshTokens struct {
	s *Store
}

func (r *RefreshTokens) Create(_ context.Context, token *models.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.refreshTokens[token.Token]; ok {
		return common.ErrorAlreadyExists
	}
	stored := *token
	stored.CreatedAt = now()
	r.s.refreshTokens[token.Token] = &stored
	return nil
}

func (r *RefreshTokens) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rt, ok := r.s.refreshTokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *rt
	return &c, nil
}

func (r *RefreshTokens) Delete(_ context.Context, token string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.refreshTokens, token)
	return nil
}

func (r *RefreshTokens) DeleteExpired(_ context.Context, at time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for k, rt := range r.s.refreshTokens {
		if !rt.Expires.After(at) {
			delete(r.s.refreshTokens, k)
			n++
		}
	}
	return n, nil
}
