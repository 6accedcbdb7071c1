// Package services contains server-side business logic: card profiles and
// their file fields, the industry catalog, and accounts.
package services

import (
	"context"

	"github.com/dmitrijs2005/cardkeeper/internal/blobstore"
	"github.com/dmitrijs2005/cardkeeper/internal/saga"
	"github.com/dmitrijs2005/cardkeeper/internal/server/repositories/fields"
)

// File fields and where their blobs live.
var (
	ProfileImageField = saga.Field{
		Name:        fields.ProfileImage,
		Namespace:   blobstore.NamespaceProfileImages,
		Cardinality: saga.Single,
	}
	CompanyLogoField = saga.Field{
		Name:        fields.CompanyLogo,
		Namespace:   blobstore.NamespaceCompanyLogos,
		Cardinality: saga.Single,
	}
	BusinessImagesField = saga.Field{
		Name:        fields.BusinessImages,
		Namespace:   blobstore.NamespaceBusinessImages,
		Cardinality: saga.List,
	}
	IndustryImageField = saga.Field{
		Name:        fields.IndustryImage,
		Namespace:   blobstore.NamespaceIndustryImages,
		Cardinality: saga.Single,
	}
)

// FileFields runs file-field updates. *saga.Saga implements it.
type FileFields interface {
	Replace(ctx context.Context, recordID string, field saga.Field, payload *blobstore.Payload) (*saga.Result, error)
	ReplaceAll(ctx context.Context, recordID string, field saga.Field, items []saga.Item) (*saga.Result, error)
	Clear(ctx context.Context, recordID string, field saga.Field) (*saga.Result, error)
}

// Linker turns a storage key into a client-facing URL.
// *delivery.Resolver implements it.
type Linker interface {
	URL(ctx context.Context, key, base string) (string, error)
}
