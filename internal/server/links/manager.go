// Package links creates, redeems and retires expiring public links.
//
// A link moves from a validated request to a stored row, may be redeemed
// any number of times while unexpired, and ends either when a redemption
// finds it expired (the row is deleted on the spot) or when the sweep
// removes it.
package links

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/imagehost/internal/common"
	"github.com/dmitrijs2005/imagehost/internal/dbx"
	"github.com/dmitrijs2005/imagehost/internal/logging"
	"github.com/dmitrijs2005/imagehost/internal/server/auth"
	"github.com/dmitrijs2005/imagehost/internal/server/metrics"
	"github.com/dmitrijs2005/imagehost/internal/server/models"
	"github.com/dmitrijs2005/imagehost/internal/server/repositories/repomanager"
)

// TokenSize is the number of random bytes in a link name.
const TokenSize = 32

// maxNameAttempts bounds retries on a (practically impossible) name clash.
const maxNameAttempts = 3

// Authorizer decides whether requester may create a link to image.
type Authorizer interface {
	AuthorizeExpiringLink(ctx context.Context, requester auth.Identity, image *models.Image) error
}

// Options configure link creation.
type Options struct {
	MinDuration   time.Duration
	MaxDuration   time.Duration
	PublicBaseURL string
}

// Created is the result of a successful RequestCreate.
type Created struct {
	Link *models.ExpiringLink
	URL  string
}

type Manager struct {
	exec       dbx.Executor
	rm         repomanager.RepositoryManager
	authorizer Authorizer
	opts       Options
	clock      func() time.Time
	newName    func() (string, error)
	logger     logging.Logger
	observer   metrics.Observer
}

func NewManager(exec dbx.Executor, rm repomanager.RepositoryManager, authorizer Authorizer, opts Options,
	clock func() time.Time, logger logging.Logger, observer metrics.Observer) *Manager {
	if clock == nil {
		clock = time.Now
	}
	if observer == nil {
		observer = metrics.Nop{}
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Manager{
		exec:       exec,
		rm:         rm,
		authorizer: authorizer,
		opts:       opts,
		clock:      clock,
		newName:    func() (string, error) { return common.MakeRandHexString(TokenSize) },
		logger:     logger.With("module", "links"),
		observer:   observer,
	}
}

// RequestCreate mints a link to imageID valid for seconds. Out-of-window
// durations yield common.ErrorBadRequest, a missing image
// common.ErrorNotFound, a denied requester common.ErrorForbidden. Nothing is
// stored on any of those paths.
func (m *Manager) RequestCreate(ctx context.Context, requester auth.Identity, imageID string, seconds int) (*Created, error) {
	// Bounds are compared in whole seconds so huge values cannot overflow
	// back into the window.
	if int64(seconds) < int64(m.opts.MinDuration/time.Second) || int64(seconds) > int64(m.opts.MaxDuration/time.Second) {
		return nil, fmt.Errorf("duration %ds outside [%.0f, %.0f]: %w",
			seconds, m.opts.MinDuration.Seconds(), m.opts.MaxDuration.Seconds(), common.ErrorBadRequest)
	}

	conn := m.exec.Conn()

	image, err := m.rm.Images(conn).GetByID(ctx, imageID)
	if err != nil {
		return nil, err
	}

	if err := m.authorizer.AuthorizeExpiringLink(ctx, requester, image); err != nil {
		return nil, err
	}

	created := m.clock().UTC()
	link := &models.ExpiringLink{
		ImageID:  image.ID,
		Created:  created,
		Expiring: created.Add(time.Duration(seconds) * time.Second),
	}

	for attempt := 1; ; attempt++ {
		link.Name, err = m.newName()
		if err != nil {
			return nil, fmt.Errorf("generate link name: %w", err)
		}
		_, err = m.rm.Links(conn).Create(ctx, link)
		if err == nil {
			break
		}
		if !errors.Is(err, common.ErrorAlreadyExists) || attempt == maxNameAttempts {
			return nil, err
		}
	}

	m.observer.LinkEvent(metrics.LinkCreated)
	m.logger.Info(ctx, "link created", "image_id", image.ID, "link_id", link.ID, "expiring", link.Expiring)

	return &Created{Link: link, URL: m.URL(link)}, nil
}

// URL is the absolute public address of link.
func (m *Manager) URL(link *models.ExpiringLink) string {
	return strings.TrimRight(m.opts.PublicBaseURL, "/") + "/link/" + link.Name
}

// Redeem returns the image behind name. An unknown name gives
// common.ErrorNotFound; an expired link is deleted and gives
// common.ErrorGone even if the delete fails. Redemption does not consume
// the link.
func (m *Manager) Redeem(ctx context.Context, name string) (*models.Image, error) {
	conn := m.exec.Conn()
	repo := m.rm.Links(conn)

	link, err := repo.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}

	if link.Expired(m.clock()) {
		if err := repo.Delete(ctx, link.ID); err != nil {
			m.logger.Warn(ctx, "failed to delete expired link", "link_id", link.ID, "error", err)
		}
		m.observer.LinkEvent(metrics.LinkExpired)
		return nil, common.ErrorGone
	}

	image, err := m.rm.Images(conn).GetByID(ctx, link.ImageID)
	if err != nil {
		return nil, err
	}

	m.observer.LinkEvent(metrics.LinkRedeemed)
	return image, nil
}

// SweepExpired deletes every link with expiring <= now and returns how
// many rows went. Running it again with nothing new expired returns 0.
func (m *Manager) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	n, err := m.rm.Links(m.exec.Conn()).DeleteExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("sweep expired links: %w", err)
	}
	m.observer.LinksSwept(n)
	return n, nil
}

// List returns links to the requester's images; staff see every link.
func (m *Manager) List(ctx context.Context, requester auth.Identity) ([]*models.ExpiringLink, error) {
	repo := m.rm.Links(m.exec.Conn())
	if requester.IsStaff {
		return repo.ListAll(ctx)
	}
	return repo.ListByOwner(ctx, requester.UserID)
}

// Get returns one link. Links to images the requester does not own look
// exactly like missing ones, unless the requester is staff.
func (m *Manager) Get(ctx context.Context, requester auth.Identity, id string) (*models.ExpiringLink, error) {
	conn := m.exec.Conn()

	link, err := m.rm.Links(conn).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if requester.IsStaff {
		return link, nil
	}

	image, err := m.rm.Images(conn).GetByID(ctx, link.ImageID)
	if err != nil {
		return nil, err
	}
	if image.OwnerID != requester.UserID {
		return nil, common.ErrorNotFound
	}
	return link, nil
}

// Delete removes a link visible to the requester under the rules of Get.
func (m *Manager) Delete(ctx context.Context, requester auth.Identity, id string) error {
	link, err := m.Get(ctx, requester, id)
	if err != nil {
		return err
	}
	if err := m.rm.Links(m.exec.Conn()).Delete(ctx, link.ID); err != nil {
		return err
	}
	m.observer.LinkEvent(metrics.LinkDeleted)
	return nil
}
