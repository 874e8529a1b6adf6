// UserService handles principal lifecycle: registration, credential checks,
// and soft account deletion. It is the first-party principal directory that
// the token lifecycle manager resolves owners against.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/obelousov/authkeeper/internal/common"
	"github.com/obelousov/authkeeper/internal/dbx"
	"github.com/obelousov/authkeeper/internal/logging"
	"github.com/obelousov/authkeeper/internal/server/models"
	"github.com/obelousov/authkeeper/internal/server/repositories/repomanager"
)

// RoleUser is the role granted to every registered account. Roles on the
// user record are the single source of authorization claims.
const RoleUser = "USER"

// RoleAdmin marks accounts allowed to delete other users.
const RoleAdmin = "ADMIN"

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// UserService provides registration, login, and account deletion.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

// NewUserService constructs a UserService using repositories.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		logger:      logger.With("module", "users"),
	}
}

// validatePassword enforces the registration password policy: at least six
// characters with an upper-case letter, a lower-case letter, and a digit.
func validatePassword(password string) error {
	if len(password) < 6 {
		return fmt.Errorf("%w: password must be at least 6 characters", common.ErrValidation)
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return fmt.Errorf("%w: password must contain upper-case, lower-case and digit characters", common.ErrValidation)
	}
	return nil
}

func validateRegistration(email, password, displayName string) error {
	if !emailRe.MatchString(email) {
		return fmt.Errorf("%w: invalid email", common.ErrValidation)
	}
	if err := validatePassword(password); err != nil {
		return err
	}
	if displayName == "" || len(displayName) > 30 {
		return fmt.Errorf("%w: display name must be 1-30 characters", common.ErrValidation)
	}
	return nil
}

// Register validates the input, hashes the password and creates the user
// with the default USER role. A duplicate email yields common.ErrEmailTaken.
func (s *UserService) Register(ctx context.Context, email, password, displayName string) (*models.User, error) {
	if err := validateRegistration(email, password, displayName); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.User{
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		Roles:        []string{RoleUser},
	}

	repo := s.repomanager.Users(s.db)
	user, err = repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrEmailTaken) {
			return nil, common.ErrEmailTaken
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.logger.Info(ctx, "user registered", "principal", user.ID)

	return user, nil
}

// Login verifies email and password and returns the user. Unknown email and
// wrong password collapse into the same common.ErrorUnauthorized so a caller
// cannot enumerate accounts.
func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, common.ErrorUnauthorized
	}

	return user, nil
}

// GetByID resolves an active principal by id, excluding soft-deleted
// accounts.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("error resolving principal: %w", err)
	}
	return user, nil
}

// DeleteAccount soft-deletes the caller's own account after confirming the
// password, and revokes every active refresh token in the same transaction:
// a deleted account must not retain a rotatable chain.
func (s *UserService) DeleteAccount(ctx context.Context, userID, passwordConfirmation string) error {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrPrincipalNotFound
		}
		return fmt.Errorf("error resolving principal: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(passwordConfirmation)); err != nil {
		return common.ErrorUnauthorized
	}

	return s.deleteAndRevoke(ctx, user.ID)
}

// AdminDeleteUser soft-deletes an arbitrary account without a password
// check; the transport layer gates it behind the ADMIN role.
func (s *UserService) AdminDeleteUser(ctx context.Context, userID string) error {
	if _, err := s.repomanager.Users(s.db).GetByID(ctx, userID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrPrincipalNotFound
		}
		return fmt.Errorf("error resolving principal: %w", err)
	}
	return s.deleteAndRevoke(ctx, userID)
}

func (s *UserService) deleteAndRevoke(ctx context.Context, userID string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).SoftDelete(ctx, userID); err != nil {
			return fmt.Errorf("error deleting user: %w", err)
		}
		if _, err := s.repomanager.RefreshTokens(tx).RevokeAllActive(ctx, userID); err != nil {
			return fmt.Errorf("error revoking refresh tokens: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "user deleted", "principal", userID)
	return nil
}
