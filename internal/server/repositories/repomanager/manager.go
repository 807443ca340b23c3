package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/imagehost/internal/dbx"
	"github.com/dmitrijs2005/imagehost/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/imagehost/internal/server/repositories/images"
	"github.com/dmitrijs2005/imagehost/internal/server/repositories/links"
	"github.com/dmitrijs2005/imagehost/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/imagehost/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so the same
// service code runs inside or outside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Accounts(db dbx.DBTX) accounts.Repository
	Images(db dbx.DBTX) images.Repository
	Links(db dbx.DBTX) links.Repository
}
