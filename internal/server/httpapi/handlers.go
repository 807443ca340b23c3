// Package httpapi exposes the image hosting services over HTTP: auth,
// image management, media delivery and public expiring links.
package httpapi

import (
	"context"
	"io"

	"github.com/dmitrijs2005/imagehost/internal/logging"
	"github.com/dmitrijs2005/imagehost/internal/server/auth"
	"github.com/dmitrijs2005/imagehost/internal/server/links"
	"github.com/dmitrijs2005/imagehost/internal/server/models"
	"github.com/dmitrijs2005/imagehost/internal/server/perks"
	"github.com/dmitrijs2005/imagehost/internal/server/services"
	"github.com/go-playground/validator/v10"
)

// UserService is the auth surface the handlers need.
type UserService interface {
	Register(ctx context.Context, username, password string) (*models.User, error)
	Login(ctx context.Context, username, password string) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Perks(ctx context.Context, userID string) ([]string, error)
}

// ImageService is the image surface the handlers need.
type ImageService interface {
	Upload(ctx context.Context, owner auth.Identity, filename string, r io.Reader) (*models.Image, error)
	List(ctx context.Context, requester auth.Identity) ([]*models.Image, error)
	Get(ctx context.Context, requester auth.Identity, id string) (*models.Image, error)
	Delete(ctx context.Context, requester auth.Identity, id string) error
	OpenOriginal(ctx context.Context, requester auth.Identity, id string) (*services.Artifact, error)
	OpenThumbnail(ctx context.Context, requester auth.Identity, id string, height int) (*services.Artifact, error)
	OpenLink(ctx context.Context, name string) (*services.Artifact, error)
}

// LinkService is the expiring link surface the handlers need.
type LinkService interface {
	RequestCreate(ctx context.Context, requester auth.Identity, imageID string, seconds int) (*links.Created, error)
	List(ctx context.Context, requester auth.Identity) ([]*models.ExpiringLink, error)
	Get(ctx context.Context, requester auth.Identity, id string) (*models.ExpiringLink, error)
	Delete(ctx context.Context, requester auth.Identity, id string) error
	URL(link *models.ExpiringLink) string
}

// PerkSets resolves a user's typed perks, used to decide which media URLs
// an image listing advertises.
type PerkSets interface {
	PerksOf(ctx context.Context, userID string) (perks.Set, error)
}

type Handlers struct {
	users         UserService
	images        ImageService
	links         LinkService
	perkSets      PerkSets
	catalog       *perks.Catalog
	publicBaseURL string
	maxUploadSize int64
	validate      *validator.Validate
	logger        logging.Logger
}

// Deps groups the collaborators of Handlers.
type Deps struct {
	Users         UserService
	Images        ImageService
	Links         LinkService
	PerkSets      PerkSets
	Catalog       *perks.Catalog
	PublicBaseURL string
	MaxUploadSize int64
	Logger        logging.Logger
}

func NewHandlers(d Deps) *Handlers {
	if d.Logger == nil {
		d.Logger = logging.Nop{}
	}
	return &Handlers{
		users:         d.Users,
		images:        d.Images,
		links:         d.Links,
		perkSets:      d.PerkSets,
		catalog:       d.Catalog,
		publicBaseURL: d.PublicBaseURL,
		maxUploadSize: d.MaxUploadSize,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		logger:        d.Logger.With("module", "http"),
	}
}
