package admins

import (
	"context"

	"github.com/dmitrijs2005/cardkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, admin *models.Admin) (*models.Admin, error)
	GetByUsername(ctx context.Context, username string) (*models.Admin, error)
	Count(ctx context.Context) (int64, error)
}
