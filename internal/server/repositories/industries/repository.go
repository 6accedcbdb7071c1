package industries

import (
	"context"

	"github.com/dmitrijs2005/cardkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, industry *models.Industry) (*models.Industry, error)
	GetByID(ctx context.Context, id string) (*models.Industry, error)
	List(ctx context.Context) ([]models.Industry, error)
}
