// Package httpapi is the HTTP boundary of the card server: routing, auth,
// multipart decoding into file-field operations, and error mapping.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/dmitrijs2005/cardkeeper/internal/blobstore"
	"github.com/dmitrijs2005/cardkeeper/internal/delivery"
	"github.com/dmitrijs2005/cardkeeper/internal/logging"
	"github.com/dmitrijs2005/cardkeeper/internal/metrics"
	"github.com/dmitrijs2005/cardkeeper/internal/saga"
	"github.com/dmitrijs2005/cardkeeper/internal/server/models"
	"github.com/dmitrijs2005/cardkeeper/internal/server/services"
)

const (
	readHeaderTimeout = 5 * time.Second
	idleTimeout       = 60 * time.Second
)

type Profiles interface {
	GetProfile(ctx context.Context, userID string) (*services.Profile, error)
	ReplaceProfileImage(ctx context.Context, userID string, p *blobstore.Payload) (*saga.Result, error)
	ClearProfileImage(ctx context.Context, userID string) (*saga.Result, error)
	ReplaceCompanyLogo(ctx context.Context, userID string, p *blobstore.Payload) (*saga.Result, error)
	ClearCompanyLogo(ctx context.Context, userID string) (*saga.Result, error)
	ReplaceBusinessImages(ctx context.Context, userID string, items []saga.Item) (*saga.Result, error)
	UpdateBusinessDetails(ctx context.Context, userID string, b models.BusinessDetails, logo *blobstore.Payload) (*services.Profile, error)
	SetIndustries(ctx context.Context, userID string, selected []models.SelectedIndustry) (*services.Profile, error)
	SetLinks(ctx context.Context, userID string, links []models.AttachedLink) (*services.Profile, error)
}

type Industries interface {
	Create(ctx context.Context, name string) (*models.Industry, error)
	Get(ctx context.Context, id string) (*services.IndustryView, error)
	List(ctx context.Context) ([]services.IndustryView, error)
	ReplaceImage(ctx context.Context, id string, p *blobstore.Payload) (*saga.Result, error)
	ClearImage(ctx context.Context, id string) (*saga.Result, error)
}

type LinkCatalog interface {
	CreateCategory(ctx context.Context, name string, subs []models.LinkSubCategory) (*models.LinkCategory, error)
	ListCategories(ctx context.Context, all bool) ([]models.LinkCategory, error)
}

type Accounts interface {
	CreateUser(ctx context.Context, u *models.User) (*models.User, error)
	Login(ctx context.Context, username, password string) (string, error)
	UserToken(ctx context.Context, userID string) (string, error)
}

type Options struct {
	Address              string
	SecretKey            string
	MaxUploadBytes       int64
	MaxConcurrentUploads int64
	ShutdownTimeout      time.Duration
}

type Deps struct {
	Profiles   Profiles
	Industries Industries
	Catalog    LinkCatalog
	Accounts   Accounts
	Delivery   *delivery.Handler
	Metrics    *metrics.Metrics
	Logger     logging.Logger
	// Health reports whether dependencies are reachable. Optional.
	Health func(context.Context) error
}

type Server struct {
	opts       Options
	profiles   Profiles
	industries Industries
	catalog    LinkCatalog
	accounts   Accounts
	delivery   *delivery.Handler
	metrics    *metrics.Metrics
	logger     logging.Logger
	health     func(context.Context) error
	jwtSecret  []byte
	uploads    *semaphore.Weighted
}

func NewServer(o Options, d Deps) *Server {
	if o.MaxConcurrentUploads <= 0 {
		o.MaxConcurrentUploads = 1
	}
	return &Server{
		opts:       o,
		profiles:   d.Profiles,
		industries: d.Industries,
		catalog:    d.Catalog,
		accounts:   d.Accounts,
		delivery:   d.Delivery,
		metrics:    d.Metrics,
		logger:     d.Logger.With("module", "http_server"),
		health:     d.Health,
		jwtSecret:  []byte(o.SecretKey),
		uploads:    semaphore.NewWeighted(o.MaxConcurrentUploads),
	}
}

// Handler returns the routed handler with request logging applied.
func (s *Server) Handler() http.Handler {
	return s.withRequestLogging(s.routes())
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.opts.Address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}

	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ShutdownTimeout)
		defer cancel()
		done <- srv.Shutdown(sctx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-done
}
