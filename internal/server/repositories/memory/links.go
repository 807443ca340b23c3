package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrijs2005/imagehost/internal/common"
	"github.com/dmitrijs2005/imagehost/internal/server/models"
	"github.com/google/uuid"
)

type Links struct {
	s *Store
}

func (r *Links) Create(_ context.Context, link *models.ExpiringLink) (*models.ExpiringLink, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.images[link.ImageID]; !ok {
		return nil, fmt.Errorf("image %s: %w", link.ImageID, common.ErrorNotFound)
	}
	if !link.Expiring.After(link.Created) {
		return nil, fmt.Errorf("expiring must be after created: %w", common.ErrorBadRequest)
	}
	for _, l := range r.s.links {
		if l.Name == link.Name {
			return nil, common.ErrorAlreadyExists
		}
	}

	link.ID = uuid.NewString()
	stored := *link
	r.s.links[link.ID] = &stored
	r.s.linkOrder = append(r.s.linkOrder, link.ID)
	return link, nil
}

func (r *Links) FindByName(_ context.Context, name string) (*models.ExpiringLink, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, l := range r.s.links {
		if l.Name == name {
			c := *l
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *Links) GetByID(_ context.Context, id string) (*models.ExpiringLink, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	l, ok := r.s.links[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *l
	return &c, nil
}

func (r *Links) ListByOwner(_ context.Context, ownerID string) ([]*models.ExpiringLink, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.s.listLinks(func(l *models.ExpiringLink) bool {
		img, ok := r.s.images[l.ImageID]
		return ok && img.OwnerID == ownerID
	}), nil
}

func (r *Links) ListAll(_ context.Context) ([]*models.ExpiringLink, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.s.listLinks(func(*models.ExpiringLink) bool { return true }), nil
}

func (r *Links) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.removeLink(id)
	return nil
}

func (r *Links) DeleteByImage(_ context.Context, imageID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.s.removeLinksWhere(func(l *models.ExpiringLink) bool { return l.ImageID == imageID }), nil
}

func (r *Links) DeleteExpired(_ context.Context, at time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.s.removeLinksWhere(func(l *models.ExpiringLink) bool { return !l.Expiring.After(at) }), nil
}

// Callers hold s.mu.
func (s *Store) listLinks(keep func(*models.ExpiringLink) bool) []*models.ExpiringLink {
	var result []*models.ExpiringLink
	for _, id := range s.linkOrder {
		if l := s.links[id]; keep(l) {
			c := *l
			result = append(result, &c)
		}
	}
	return result
}

func (s *Store) removeLinksWhere(match func(*models.ExpiringLink) bool) int64 {
	var n int64
	for id, l := range s.links {
		if match(l) {
			s.removeLink(id)
			n++
		}
	}
	return n
}

func (s *Store) removeLink(id string) {
	if _, ok := s.links[id]; !ok {
		return
	}
	delete(s.links, id)
	s.linkOrder = slices.DeleteFunc(s.linkOrder, func(v string) bool { return v == id })
}
