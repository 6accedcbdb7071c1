package users

import (
	"context"

	"github.com/dmitrijs2005/cardkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetBySlug(ctx context.Context, slug string) (*models.User, error)
	UpdateBusinessDetails(ctx context.Context, id string, b models.BusinessDetails) error

	// SetIndustries and SetLinks replace the whole selection; run them in a
	// transaction.
	SetIndustries(ctx context.Context, id string, selected []models.SelectedIndustry) error
	ListIndustries(ctx context.Context, id string) ([]models.SelectedIndustry, error)
	SetLinks(ctx context.Context, id string, links []models.AttachedLink) error
	ListLinks(ctx context.Context, id string) ([]models.AttachedLink, error)
}
