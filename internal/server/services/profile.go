package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/cardkeeper/internal/blobstore"
	"github.com/dmitrijs2005/cardkeeper/internal/common"
	"github.com/dmitrijs2005/cardkeeper/internal/dbx"
	"github.com/dmitrijs2005/cardkeeper/internal/logging"
	"github.com/dmitrijs2005/cardkeeper/internal/saga"
	"github.com/dmitrijs2005/cardkeeper/internal/server/models"
	"github.com/dmitrijs2005/cardkeeper/internal/server/repositories/repomanager"
)

// Profile is a user together with links to its files. A link is empty when
// the field is empty or the blob could not be resolved.
type Profile struct {
	User              *models.User
	ProfileImageURL   string
	CompanyLogoURL    string
	BusinessImageURLs []string
	Industries        []models.SelectedIndustry
	Links             []models.AttachedLink
}

// ProfileFlags reports which parts of a card have been filled in.
type ProfileFlags struct {
	BusinessDetails    bool
	ProfilePicture     bool
	SelectedIndustries bool
	AttachedLinks      bool
	BusinessImages     bool
}

func (p *Profile) Flags() ProfileFlags {
	return ProfileFlags{
		BusinessDetails:    p.User.Business.CompanyName != "",
		ProfilePicture:     p.User.ProfileImage != "",
		SelectedIndustries: len(p.Industries) > 0,
		AttachedLinks:      len(p.Links) > 0,
		BusinessImages:     len(p.User.BusinessImages) > 0,
	}
}

// ProfileService reads card profiles and updates their file fields.
type ProfileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	files       FileFields
	links       Linker
	baseURL     string
	logger      logging.Logger
}

func NewProfileService(db *sql.DB, m repomanager.RepositoryManager, files FileFields, links Linker, baseURL string, logger logging.Logger) *ProfileService {
	return &ProfileService{
		db:          db,
		repomanager: m,
		files:       files,
		links:       links,
		baseURL:     baseURL,
		logger:      logger.With("module", "profiles"),
	}
}

func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	repo := s.repomanager.Users(s.db)
	u, err := repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	industries, err := repo.ListIndustries(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	links, err := repo.ListLinks(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	p := &Profile{
		User:            u,
		ProfileImageURL: s.link(ctx, u.ID, u.ProfileImage),
		CompanyLogoURL:  s.link(ctx, u.ID, u.Business.CompanyLogo),
		Industries:      industries,
		Links:           links,
	}
	for _, k := range u.BusinessImages {
		p.BusinessImageURLs = append(p.BusinessImageURLs, s.link(ctx, u.ID, k))
	}
	return p, nil
}

// UpdateBusinessDetails replaces the company text fields. b.CompanyLogo is
// ignored; a non-nil logo is stored through the company logo file field
// once the text fields are saved.
func (s *ProfileService) UpdateBusinessDetails(ctx context.Context, userID string, b models.BusinessDetails, logo *blobstore.Payload) (*Profile, error) {
	b.CompanyName = strings.TrimSpace(b.CompanyName)
	b.CompanyAddress = strings.TrimSpace(b.CompanyAddress)
	b.CompanyMobile = strings.TrimSpace(b.CompanyMobile)
	b.CompanyEmail = strings.ToLower(strings.TrimSpace(b.CompanyEmail))
	b.CompanyWebsite = strings.TrimSpace(b.CompanyWebsite)

	var errs []error
	if b.CompanyName == "" {
		errs = append(errs, errors.New("companyName is required"))
	}
	if b.CompanyEmail != "" {
		if _, err := mail.ParseAddress(b.CompanyEmail); err != nil {
			errs = append(errs, fmt.Errorf("companyEmail %q is invalid", b.CompanyEmail))
		}
	}
	if b.CompanyWebsite != "" && !isWebURL(b.CompanyWebsite) {
		errs = append(errs, fmt.Errorf("companyWebsite %q is not an http(s) URL", b.CompanyWebsite))
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", common.ErrorValidation, errors.Join(errs...))
	}

	if err := s.repomanager.Users(s.db).UpdateBusinessDetails(ctx, userID, b); err != nil {
		return nil, err
	}
	if logo != nil {
		if _, err := s.files.Replace(ctx, userID, CompanyLogoField, logo); err != nil {
			return nil, err
		}
	}
	return s.GetProfile(ctx, userID)
}

// SetIndustries replaces the user's selected industries, keeping their order.
func (s *ProfileService) SetIndustries(ctx context.Context, userID string, selected []models.SelectedIndustry) (*Profile, error) {
	seen := make(map[string]bool, len(selected))
	clean := make([]models.SelectedIndustry, 0, len(selected))
	for _, in := range selected {
		id := strings.TrimSpace(in.IndustryID)
		if _, err := uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("%w: industry %q is invalid", common.ErrorValidation, in.IndustryID)
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: industry %q selected twice", common.ErrorValidation, id)
		}
		seen[id] = true
		clean = append(clean, models.SelectedIndustry{IndustryID: id, Tags: cleanTags(in.Tags)})
	}

	err := s.withUser(ctx, userID, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Users(tx).SetIndustries(ctx, userID, clean)
	})
	if err != nil {
		return nil, err
	}
	return s.GetProfile(ctx, userID)
}

// SetLinks replaces the user's attached links. Each subcategory may appear
// once and must belong to the category it is filed under.
func (s *ProfileService) SetLinks(ctx context.Context, userID string, links []models.AttachedLink) (*Profile, error) {
	seen := make(map[string]bool, len(links))
	clean := make([]models.AttachedLink, 0, len(links))
	for _, l := range links {
		l.CategoryID = strings.TrimSpace(l.CategoryID)
		l.SubCategoryID = strings.TrimSpace(l.SubCategoryID)
		l.URL = strings.TrimSpace(l.URL)

		if _, err := uuid.Parse(l.CategoryID); err != nil {
			return nil, fmt.Errorf("%w: category %q is invalid", common.ErrorValidation, l.CategoryID)
		}
		if _, err := uuid.Parse(l.SubCategoryID); err != nil {
			return nil, fmt.Errorf("%w: subcategory %q is invalid", common.ErrorValidation, l.SubCategoryID)
		}
		if !isWebURL(l.URL) {
			return nil, fmt.Errorf("%w: url %q is not an http(s) URL", common.ErrorValidation, l.URL)
		}
		if seen[l.SubCategoryID] {
			return nil, fmt.Errorf("%w: subcategory %q attached twice", common.ErrorValidation, l.SubCategoryID)
		}
		seen[l.SubCategoryID] = true
		clean = append(clean, l)
	}

	err := s.withUser(ctx, userID, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Users(tx).SetLinks(ctx, userID, clean)
	})
	if err != nil {
		return nil, err
	}
	return s.GetProfile(ctx, userID)
}

// withUser runs fn in a transaction after checking the user exists, so a
// missing user is reported as not found rather than as a bad reference.
func (s *ProfileService) withUser(ctx context.Context, userID string, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repomanager.Users(tx).GetByID(ctx, userID); err != nil {
			return err
		}
		return fn(ctx, tx)
	})
}

func (s *ProfileService) link(ctx context.Context, userID, key string) string {
	return resolveLink(ctx, s.links, s.logger, s.baseURL, userID, key)
}

func (s *ProfileService) ReplaceProfileImage(ctx context.Context, userID string, p *blobstore.Payload) (*saga.Result, error) {
	return s.files.Replace(ctx, userID, ProfileImageField, p)
}

func (s *ProfileService) ClearProfileImage(ctx context.Context, userID string) (*saga.Result, error) {
	return s.files.Clear(ctx, userID, ProfileImageField)
}

func (s *ProfileService) ReplaceCompanyLogo(ctx context.Context, userID string, p *blobstore.Payload) (*saga.Result, error) {
	return s.files.Replace(ctx, userID, CompanyLogoField, p)
}

func (s *ProfileService) ClearCompanyLogo(ctx context.Context, userID string) (*saga.Result, error) {
	return s.files.Clear(ctx, userID, CompanyLogoField)
}

// ReplaceBusinessImages sets the gallery to items, in order. Kept items
// must already be in the gallery.
func (s *ProfileService) ReplaceBusinessImages(ctx context.Context, userID string, items []saga.Item) (*saga.Result, error) {
	return s.files.ReplaceAll(ctx, userID, BusinessImagesField, items)
}

// resolveLink returns "" for an empty key, and logs and returns "" when the
// key cannot be linked.
func resolveLink(ctx context.Context, links Linker, logger logging.Logger, base, recordID, key string) string {
	if key == "" {
		return ""
	}
	u, err := links.URL(ctx, key, base)
	if err != nil {
		logger.Warn(ctx, "cannot link file", "record_id", recordID, "key", key, "error", err)
		return ""
	}
	return u
}

func isWebURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// cleanTags trims tags and drops blanks and repeats.
func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
