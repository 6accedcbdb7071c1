package admins

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/cardkeeper/internal/common"
	"github.com/dmitrijs2005/cardkeeper/internal/dbx"
	"github.com/dmitrijs2005/cardkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, admin *models.Admin) (*models.Admin, error) {
	query :=
		`INSERT INTO admins (username, password_hash, role)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		admin.Username, admin.PasswordHash, admin.Role).Scan(&admin.ID, &admin.CreatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return admin, nil
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.Admin, error) {
	query :=
		`SELECT id, username, password_hash, role, created_at FROM admins
		 WHERE username = $1
		 `

	a := &models.Admin{}
	err := r.db.QueryRowContext(ctx, query, username).
		Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Role, &a.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return a, nil
}

func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM admins`).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
