package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/dmitrijs2005/cardkeeper/internal/blobstore"
	"github.com/dmitrijs2005/cardkeeper/internal/common"
	"github.com/dmitrijs2005/cardkeeper/internal/dbx"
	"github.com/dmitrijs2005/cardkeeper/internal/server/auth"
	"github.com/dmitrijs2005/cardkeeper/internal/server/models"
	"github.com/dmitrijs2005/cardkeeper/internal/server/repositories/repomanager"
)

const minPasswordLength = 8

// AccountService creates users and admins and logs admins in.
type AccountService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
}

func NewAccountService(db *sql.DB, m repomanager.RepositoryManager, secretKey string, tokenValidity time.Duration) *AccountService {
	return &AccountService{
		db:                          db,
		repomanager:                 m,
		jwtSecret:                   []byte(secretKey),
		accessTokenValidityDuration: tokenValidity,
	}
}

// CreateUser registers a card owner. The slug defaults to one derived from
// the username, or the email's local part when there is no username.
func (s *AccountService) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	u.Username = strings.TrimSpace(u.Username)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.Mobile = strings.TrimSpace(u.Mobile)

	var errs []error
	if u.Mobile == "" {
		errs = append(errs, errors.New("mobile is required"))
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		errs = append(errs, fmt.Errorf("email %q is invalid", u.Email))
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", common.ErrorValidation, errors.Join(errs...))
	}

	if u.Slug == "" {
		base := u.Username
		if base == "" {
			base, _, _ = strings.Cut(u.Email, "@")
		}
		u.Slug = strings.ReplaceAll(blobstore.Slugify(base), "_", "-")
	}

	return s.repomanager.Users(s.db).Create(ctx, u)
}

// CreateAdmin adds an admin account. It fails with common.ErrorAlreadyExists
// when the username is taken.
func (s *AccountService) CreateAdmin(ctx context.Context, username, password string) (*models.Admin, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", common.ErrorValidation)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", common.ErrorValidation, minPasswordLength)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var admin *models.Admin
	err = dbx.WithTx(ctx, s.db, &sql.TxOptions{Isolation: sql.LevelSerializable}, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Admins(tx)
		if _, err := repo.GetByUsername(ctx, username); err == nil {
			return common.ErrorAlreadyExists
		} else if !errors.Is(err, common.ErrorNotFound) {
			return err
		}

		var cerr error
		admin, cerr = repo.Create(ctx, &models.Admin{Username: username, PasswordHash: hash, Role: common.RoleAdmin})
		return cerr
	})
	if err != nil {
		return nil, err
	}
	return admin, nil
}

// CountAdmins reports how many admin accounts exist.
func (s *AccountService) CountAdmins(ctx context.Context) (int64, error) {
	return s.repomanager.Admins(s.db).Count(ctx)
}

// Login verifies admin credentials and returns an access token.
func (s *AccountService) Login(ctx context.Context, username, password string) (string, error) {
	admin, err := s.repomanager.Admins(s.db).GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorUnauthorized
		}
		return "", common.ErrorInternal
	}

	ok, err := auth.VerifyPassword(admin.PasswordHash, password)
	if err != nil || !ok {
		return "", common.ErrorUnauthorized
	}

	token, err := auth.GenerateToken(admin.ID, admin.Role, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return "", common.ErrorInternal
	}
	return token, nil
}

// UserToken issues an access token for a card owner.
func (s *AccountService) UserToken(ctx context.Context, userID string) (string, error) {
	u, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	token, err := auth.GenerateToken(u.ID, common.RoleUser, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return "", common.ErrorInternal
	}
	return token, nil
}
