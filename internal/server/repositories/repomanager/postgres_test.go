package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/cardkeeper/internal/saga"
	"github.com/dmitrijs2005/cardkeeper/internal/server/migrations"
)

func newDB(t *testing.T) *sql.DB {
	t.Helper()
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func stubGoose(t *testing.T, fn func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error) {
	t.Helper()
	orig := gooseUpContext
	gooseUpContext = fn
	t.Cleanup(func() { gooseUpContext = orig })
}

func TestFactories(t *testing.T) {
	db := newDB(t)
	m := NewPostgresRepositoryManager()

	if m.Users(db) == nil || m.Admins(db) == nil || m.Industries(db) == nil || m.Links(db) == nil {
		t.Fatal("nil repository")
	}

	var _ saga.RecordStore = m.Fields(db)
}

func TestRunMigrations_Success(t *testing.T) {
	db := newDB(t)

	called := false
	stubGoose(t, func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		called = true
		if dir != "." {
			return errors.New("unexpected dir")
		}
		return nil
	})

	if err := NewPostgresRepositoryManager().RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("RunMigrations error: %v", err)
	}
	if !called {
		t.Fatal("goose was not invoked")
	}
}

func TestRunMigrations_Error(t *testing.T) {
	db := newDB(t)

	boom := errors.New("boom")
	stubGoose(t, func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return boom
	})

	err := NewPostgresRepositoryManager().RunMigrations(context.Background(), db)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	names, err := fs.Glob(migrations.Migrations, "*.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(names) == 0 {
		t.Fatal("no migrations embedded")
	}
}
