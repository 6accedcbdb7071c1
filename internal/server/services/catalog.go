package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/cardkeeper/internal/common"
	"github.com/dmitrijs2005/cardkeeper/internal/dbx"
	"github.com/dmitrijs2005/cardkeeper/internal/server/models"
	"github.com/dmitrijs2005/cardkeeper/internal/server/repositories/repomanager"
)

const maxCatalogName = 50

// LinkCatalogService manages the link categories users attach links under.
type LinkCatalogService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewLinkCatalogService(db *sql.DB, m repomanager.RepositoryManager) *LinkCatalogService {
	return &LinkCatalogService{db: db, repomanager: m}
}

// CreateCategory adds an active category with its subcategories.
func (s *LinkCatalogService) CreateCategory(ctx context.Context, name string, subs []models.LinkSubCategory) (*models.LinkCategory, error) {
	c := &models.LinkCategory{Name: strings.TrimSpace(name), IsActive: true}
	if err := checkCatalogName("name", c.Name); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(subs))
	for _, sc := range subs {
		sc.Name = strings.TrimSpace(sc.Name)
		sc.Icon = strings.TrimSpace(sc.Icon)
		if err := checkCatalogName("subcategory name", sc.Name); err != nil {
			return nil, err
		}
		if seen[strings.ToLower(sc.Name)] {
			return nil, fmt.Errorf("%w: subcategory %q listed twice", common.ErrorValidation, sc.Name)
		}
		seen[strings.ToLower(sc.Name)] = true
		sc.ID = ""
		sc.IsActive = true
		c.SubCategories = append(c.SubCategories, sc)
	}

	var out *models.LinkCategory
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		out, err = s.repomanager.Links(tx).CreateCategory(ctx, c)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListCategories returns the catalog; all includes inactive entries.
func (s *LinkCatalogService) ListCategories(ctx context.Context, all bool) ([]models.LinkCategory, error) {
	return s.repomanager.Links(s.db).ListCategories(ctx, !all)
}

func checkCatalogName(what, v string) error {
	switch {
	case v == "":
		return fmt.Errorf("%w: %s is required", common.ErrorValidation, what)
	case utf8.RuneCountInString(v) > maxCatalogName:
		return fmt.Errorf("%w: %s is longer than %d characters", common.ErrorValidation, what, maxCatalogName)
	}
	return nil
}
