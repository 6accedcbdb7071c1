package industries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

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

func (r *PostgresRepository) Create(ctx context.Context, industry *models.Industry) (*models.Industry, error) {
	query :=
		`INSERT INTO industries (name)
		 VALUES ($1)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query, industry.Name).Scan(&industry.ID, &industry.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	industry.Image = ""
	return industry, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Industry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}

	query :=
		`SELECT id, name, image, created_at FROM industries
		 WHERE id = $1
		 `

	in := &models.Industry{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&in.ID, &in.Name, &in.Image, &in.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return in, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]models.Industry, error) {
	query :=
		`SELECT id, name, image, created_at FROM industries
		 ORDER BY name
		 `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.Industry
	for rows.Next() {
		var in models.Industry
		if err := rows.Scan(&in.ID, &in.Name, &in.Image, &in.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
