// Package access decides whether a requester may obtain an artifact of an
// image: the original, a thumbnail at a given height, or a new expiring
// link. Decisions short-circuit on staff and ownership before any perk
// lookup.
package access

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/imagehost/internal/common"
	"github.com/dmitrijs2005/imagehost/internal/server/auth"
	"github.com/dmitrijs2005/imagehost/internal/server/metrics"
	"github.com/dmitrijs2005/imagehost/internal/server/models"
	"github.com/dmitrijs2005/imagehost/internal/server/perks"
)

// Artifact names used in metrics labels.
const (
	ArtifactOriginal     = "original"
	ArtifactThumbnail    = "thumbnail"
	ArtifactExpiringLink = "expiring_link"
)

// Entitlements answers perk questions for a user.
type Entitlements interface {
	HasPerk(ctx context.Context, userID string, perk perks.Perk) (bool, error)
}

// Policy holds the switchable decision rules.
type Policy struct {
	// NativeHeightNeedsThumbnailPerk keeps the thumbnail perk mandatory
	// when the requested height equals the image's own height. When false
	// the original-image perk also grants that thumbnail.
	NativeHeightNeedsThumbnailPerk bool
}

func DefaultPolicy() Policy {
	return Policy{NativeHeightNeedsThumbnailPerk: true}
}

type Engine struct {
	entitlements Entitlements
	catalog      *perks.Catalog
	policy       Policy
	observer     metrics.Observer
}

func NewEngine(entitlements Entitlements, catalog *perks.Catalog, policy Policy, observer metrics.Observer) *Engine {
	if observer == nil {
		observer = metrics.Nop{}
	}
	return &Engine{entitlements: entitlements, catalog: catalog, policy: policy, observer: observer}
}

// AuthorizeOriginal returns nil on grant and common.ErrorForbidden on deny.
func (e *Engine) AuthorizeOriginal(ctx context.Context, requester auth.Identity, image *models.Image) error {
	return e.decide(ctx, ArtifactOriginal, requester, image, func() (bool, error) {
		return e.entitlements.HasPerk(ctx, requester.UserID, perks.Perk{Kind: perks.OriginalImage})
	})
}

// AuthorizeThumbnail checks access to a thumbnail at height. A height with
// no perk configured is denied.
func (e *Engine) AuthorizeThumbnail(ctx context.Context, requester auth.Identity, image *models.Image, height int) error {
	return e.decide(ctx, ArtifactThumbnail, requester, image, func() (bool, error) {
		perk, ok := e.catalog.Thumbnail(height)
		if !ok {
			return false, nil
		}
		granted, err := e.entitlements.HasPerk(ctx, requester.UserID, perk)
		if err != nil || granted {
			return granted, err
		}
		if !e.policy.NativeHeightNeedsThumbnailPerk && image.Height != nil && *image.Height == height {
			return e.entitlements.HasPerk(ctx, requester.UserID, perks.Perk{Kind: perks.OriginalImage})
		}
		return false, nil
	})
}

// AuthorizeExpiringLink checks whether requester may create a link to image.
// Redeeming a link needs no identity and is not decided here.
func (e *Engine) AuthorizeExpiringLink(ctx context.Context, requester auth.Identity, image *models.Image) error {
	return e.decide(ctx, ArtifactExpiringLink, requester, image, func() (bool, error) {
		return e.entitlements.HasPerk(ctx, requester.UserID, perks.Perk{Kind: perks.ExpiringLink})
	})
}

func (e *Engine) decide(ctx context.Context, artifact string, requester auth.Identity, image *models.Image, hasPerk func() (bool, error)) error {
	if requester.IsStaff {
		e.observer.AccessDecision(artifact, metrics.OutcomeGranted)
		return nil
	}
	if requester.Anonymous() || requester.UserID != image.OwnerID {
		e.observer.AccessDecision(artifact, metrics.OutcomeForbidden)
		return common.ErrorForbidden
	}

	granted, err := hasPerk()
	if err != nil {
		e.observer.AccessDecision(artifact, metrics.OutcomeError)
		return fmt.Errorf("entitlements lookup: %w", err)
	}
	if !granted {
		e.observer.AccessDecision(artifact, metrics.OutcomeForbidden)
		return common.ErrorForbidden
	}

	e.observer.AccessDecision(artifact, metrics.OutcomeGranted)
	return nil
}
