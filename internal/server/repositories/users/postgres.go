package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/cardkeeper/internal/common"
	"github.com/dmitrijs2005/cardkeeper/internal/dbx"
	"github.com/dmitrijs2005/cardkeeper/internal/server/models"
)

const selectUser = `SELECT id, username, email, mobile, slug, profile_image,
		 company_name, company_address, company_mobile, company_email, company_website, company_logo,
		 business_images, created_at, updated_at
		 FROM users
		 `

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the user's text fields. File fields start empty and are
// only ever written through the fields repository.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (username, email, mobile, slug,
		 company_name, company_address, company_mobile, company_email, company_website)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at, updated_at
		 `

	b := user.Business
	err := r.db.QueryRowContext(ctx, query,
		user.Username, user.Email, user.Mobile, user.Slug,
		b.CompanyName, b.CompanyAddress, b.CompanyMobile, b.CompanyEmail, b.CompanyWebsite,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	user.ProfileImage = ""
	user.Business.CompanyLogo = ""
	user.BusinessImages = nil
	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}
	return r.getOne(ctx, selectUser+`WHERE id = $1`, id)
}

func (r *PostgresRepository) GetBySlug(ctx context.Context, slug string) (*models.User, error) {
	return r.getOne(ctx, selectUser+`WHERE slug = $1`, slug)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg string) (*models.User, error) {
	u := &models.User{}
	var images []byte

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.Email, &u.Mobile, &u.Slug, &u.ProfileImage,
		&u.Business.CompanyName, &u.Business.CompanyAddress, &u.Business.CompanyMobile,
		&u.Business.CompanyEmail, &u.Business.CompanyWebsite, &u.Business.CompanyLogo,
		&images, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if len(images) > 0 {
		if err := json.Unmarshal(images, &u.BusinessImages); err != nil {
			return nil, fmt.Errorf("db error: business_images: %w", err)
		}
	}
	return u, nil
}

// UpdateBusinessDetails writes the company text fields. The logo is a file
// field and is left alone.
func (r *PostgresRepository) UpdateBusinessDetails(ctx context.Context, id string, b models.BusinessDetails) error {
	if _, err := uuid.Parse(id); err != nil {
		return common.ErrorNotFound
	}

	query :=
		`UPDATE users SET company_name = $1, company_address = $2, company_mobile = $3,
		 company_email = $4, company_website = $5, updated_at = now()
		 WHERE id = $6
		 `

	res, err := r.db.ExecContext(ctx, query,
		b.CompanyName, b.CompanyAddress, b.CompanyMobile, b.CompanyEmail, b.CompanyWebsite, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) SetIndustries(ctx context.Context, id string, selected []models.SelectedIndustry) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM user_industries WHERE user_id = $1`, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	query :=
		`INSERT INTO user_industries (user_id, industry_id, tags, position)
		 VALUES ($1, $2, $3, $4)
		 `

	for i, s := range selected {
		tags, err := json.Marshal(nonNil(s.Tags))
		if err != nil {
			return fmt.Errorf("db error: tags: %w", err)
		}
		if _, err := r.db.ExecContext(ctx, query, id, s.IndustryID, tags, i); err != nil {
			return insertErr(err)
		}
	}
	return nil
}

func (r *PostgresRepository) ListIndustries(ctx context.Context, id string) ([]models.SelectedIndustry, error) {
	query :=
		`SELECT industry_id, tags FROM user_industries
		 WHERE user_id = $1
		 ORDER BY position
		 `

	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.SelectedIndustry
	for rows.Next() {
		var (
			s    models.SelectedIndustry
			tags []byte
		)
		if err := rows.Scan(&s.IndustryID, &tags); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if len(tags) > 0 {
			if err := json.Unmarshal(tags, &s.Tags); err != nil {
				return nil, fmt.Errorf("db error: tags: %w", err)
			}
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) SetLinks(ctx context.Context, id string, links []models.AttachedLink) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM user_links WHERE user_id = $1`, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	query :=
		`INSERT INTO user_links (user_id, category_id, subcategory_id, url, position)
		 VALUES ($1, $2, $3, $4, $5)
		 `

	for i, l := range links {
		if _, err := r.db.ExecContext(ctx, query, id, l.CategoryID, l.SubCategoryID, l.URL, i); err != nil {
			return insertErr(err)
		}
	}
	return nil
}

func (r *PostgresRepository) ListLinks(ctx context.Context, id string) ([]models.AttachedLink, error) {
	query :=
		`SELECT category_id, subcategory_id, url FROM user_links
		 WHERE user_id = $1
		 ORDER BY position
		 `

	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.AttachedLink
	for rows.Next() {
		var l models.AttachedLink
		if err := rows.Scan(&l.CategoryID, &l.SubCategoryID, &l.URL); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

// insertErr maps constraint failures on a selection insert. A missing
// referenced row means the caller named something not in the catalog.
func insertErr(err error) error {
	switch {
	case dbx.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: unknown catalog entry", common.ErrorValidation)
	case dbx.IsUniqueViolation(err):
		return fmt.Errorf("%w: duplicate entry", common.ErrorValidation)
	}
	return fmt.Errorf("db error: %w", err)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
