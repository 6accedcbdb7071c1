package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/cardkeeper/internal/blobstore"
	"github.com/dmitrijs2005/cardkeeper/internal/common"
	"github.com/dmitrijs2005/cardkeeper/internal/logging"
	"github.com/dmitrijs2005/cardkeeper/internal/saga"
	"github.com/dmitrijs2005/cardkeeper/internal/server/models"
	"github.com/dmitrijs2005/cardkeeper/internal/server/repositories/repomanager"
)

type IndustryView struct {
	Industry *models.Industry
	ImageURL string
}

// IndustryService manages the industry catalog.
type IndustryService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	files       FileFields
	links       Linker
	baseURL     string
	logger      logging.Logger
}

func NewIndustryService(db *sql.DB, m repomanager.RepositoryManager, files FileFields, links Linker, baseURL string, logger logging.Logger) *IndustryService {
	return &IndustryService{
		db:          db,
		repomanager: m,
		files:       files,
		links:       links,
		baseURL:     baseURL,
		logger:      logger.With("module", "industries"),
	}
}

func (s *IndustryService) Create(ctx context.Context, name string) (*models.Industry, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", common.ErrorValidation)
	}
	return s.repomanager.Industries(s.db).Create(ctx, &models.Industry{Name: name})
}

func (s *IndustryService) Get(ctx context.Context, id string) (*IndustryView, error) {
	in, err := s.repomanager.Industries(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &IndustryView{
		Industry: in,
		ImageURL: resolveLink(ctx, s.links, s.logger, s.baseURL, in.ID, in.Image),
	}, nil
}

// List returns the whole catalog by name.
func (s *IndustryService) List(ctx context.Context) ([]IndustryView, error) {
	all, err := s.repomanager.Industries(s.db).List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]IndustryView, 0, len(all))
	for i := range all {
		in := &all[i]
		out = append(out, IndustryView{
			Industry: in,
			ImageURL: resolveLink(ctx, s.links, s.logger, s.baseURL, in.ID, in.Image),
		})
	}
	return out, nil
}

func (s *IndustryService) ReplaceImage(ctx context.Context, id string, p *blobstore.Payload) (*saga.Result, error) {
	return s.files.Replace(ctx, id, IndustryImageField, p)
}

func (s *IndustryService) ClearImage(ctx context.Context, id string) (*saga.Result, error) {
	return s.files.Clear(ctx, id, IndustryImageField)
}
