package memory

import (
	"context"

	"github.com/dmitrijs2005/imagehost/internal/common"
	"github.com/dmitrijs2005/imagehost/internal/server/models"
	"github.com/google/uuid"
)

type Users struct {
	s *Store
}

func (r *Users) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.UserName == user.UserName {
			return nil, common.ErrorAlreadyExists
		}
	}

	user.ID = uuid.NewString()
	user.CreatedAt = now()
	stored := *user
	r.s.users[user.ID] = &stored
	return user, nil
}

func (r *Users) GetUserByLogin(_ context.Context, login string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.UserName == login {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *Users) GetByID(_ context.Context, id string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *u
	return &c, nil
}
