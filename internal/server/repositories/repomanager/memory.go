package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/imagehost/internal/dbx"
	"github.com/dmitrijs2005/imagehost/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/imagehost/internal/server/repositories/images"
	"github.com/dmitrijs2005/imagehost/internal/server/repositories/links"
	"github.com/dmitrijs2005/imagehost/internal/server/repositories/memory"
	"github.com/dmitrijs2005/imagehost/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/imagehost/internal/server/repositories/users"
)

// InMemoryRepositoryManager hands out repositories sharing one memory.Store.
// The DBTX arguments are ignored.
type InMemoryRepositoryManager struct {
	store *memory.Store
}

func NewInMemoryRepositoryManager(store *memory.Store) *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{store: store}
}

func (m *InMemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error {
	return nil
}

func (m *InMemoryRepositoryManager) Users(dbx.DBTX) users.Repository {
	return m.store.Users()
}

func (m *InMemoryRepositoryManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository {
	return m.store.RefreshTokens()
}

func (m *InMemoryRepositoryManager) Accounts(dbx.DBTX) accounts.Repository {
	return m.store.Accounts()
}

func (m *InMemoryRepositoryManager) Images(dbx.DBTX) images.Repository {
	return m.store.Images()
}

func (m *InMemoryRepositoryManager) Links(dbx.DBTX) links.Repository {
	return m.store.Links()
}
