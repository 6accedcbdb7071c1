// Package links stores the link catalog: categories and their subcategories.
package links

import (
	"context"
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

func (r *PostgresRepository) CreateCategory(ctx context.Context, c *models.LinkCategory) (*models.LinkCategory, error) {
	query :=
		`INSERT INTO link_categories (name, is_active)
		 VALUES ($1, $2)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query, c.Name, c.IsActive).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	subQuery :=
		`INSERT INTO link_subcategories (category_id, name, icon, is_active, position)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id
		 `

	for i := range c.SubCategories {
		sc := &c.SubCategories[i]
		if err := r.db.QueryRowContext(ctx, subQuery, c.ID, sc.Name, sc.Icon, sc.IsActive, i).Scan(&sc.ID); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
	}
	return c, nil
}

// ListCategories returns categories by name, each with its subcategories in
// insertion order. activeOnly hides inactive categories and subcategories.
func (r *PostgresRepository) ListCategories(ctx context.Context, activeOnly bool) ([]models.LinkCategory, error) {
	query :=
		`SELECT c.id, c.name, c.is_active, c.created_at,
		 s.id, s.name, s.icon, s.is_active
		 FROM link_categories c
		 LEFT JOIN link_subcategories s ON s.category_id = c.id AND (s.is_active OR NOT $1)
		 WHERE c.is_active OR NOT $1
		 ORDER BY c.name, s.position
		 `

	rows, err := r.db.QueryContext(ctx, query, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.LinkCategory
	for rows.Next() {
		var (
			c                    models.LinkCategory
			subID, subName, icon *string
			subActive            *bool
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.IsActive, &c.CreatedAt, &subID, &subName, &icon, &subActive); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if n := len(out); n == 0 || out[n-1].ID != c.ID {
			out = append(out, c)
		}
		if subID != nil {
			last := &out[len(out)-1]
			last.SubCategories = append(last.SubCategories, models.LinkSubCategory{
				ID: *subID, Name: deref(subName), Icon: deref(icon), IsActive: subActive != nil && *subActive,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
