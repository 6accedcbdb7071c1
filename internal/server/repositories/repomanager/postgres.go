// Package repomanager wires the PostgreSQL repositories together and runs
// the embedded goose migrations.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/cardkeeper/internal/dbx"
	"github.com/dmitrijs2005/cardkeeper/internal/saga"
	"github.com/dmitrijs2005/cardkeeper/internal/server/migrations"
	"github.com/dmitrijs2005/cardkeeper/internal/server/repositories/admins"
	"github.com/dmitrijs2005/cardkeeper/internal/server/repositories/fields"
	"github.com/dmitrijs2005/cardkeeper/internal/server/repositories/industries"
	"github.com/dmitrijs2005/cardkeeper/internal/server/repositories/links"
	"github.com/dmitrijs2005/cardkeeper/internal/server/repositories/users"
)

type PostgresRepositoryManager struct{}

func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Admins(db dbx.DBTX) admins.Repository {
	return admins.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Industries(db dbx.DBTX) industries.Repository {
	return industries.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Links(db dbx.DBTX) links.Repository {
	return links.NewPostgresRepository(db)
}

// Fields returns the file-field record store used by the saga.
func (m *PostgresRepositoryManager) Fields(db dbx.DBTX) saga.RecordStore {
	return fields.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded migrations.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	return nil
}

func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}
