package links

import (
	"context"

	"github.com/dmitrijs2005/cardkeeper/internal/server/models"
)

type Repository interface {
	// CreateCategory inserts the category and its subcategories; run it in a
	// transaction.
	CreateCategory(ctx context.Context, c *models.LinkCategory) (*models.LinkCategory, error)
	ListCategories(ctx context.Context, activeOnly bool) ([]models.LinkCategory, error)
}
