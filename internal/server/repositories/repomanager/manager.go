package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/cardkeeper/internal/dbx"
	"github.com/dmitrijs2005/cardkeeper/internal/saga"
	"github.com/dmitrijs2005/cardkeeper/internal/server/repositories/admins"
	"github.com/dmitrijs2005/cardkeeper/internal/server/repositories/industries"
	"github.com/dmitrijs2005/cardkeeper/internal/server/repositories/links"
	"github.com/dmitrijs2005/cardkeeper/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DB or transaction handle.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Admins(db dbx.DBTX) admins.Repository
	Industries(db dbx.DBTX) industries.Repository
	Links(db dbx.DBTX) links.Repository
	Fields(db dbx.DBTX) saga.RecordStore
}
