// Package services contains server-side business logic. This file implements
// TokenService, the token lifecycle manager: it mints access/refresh token
// pairs, rotates refresh tokens under a single-use guarantee, and propagates
// revocation.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/obelousov/authkeeper/internal/common"
	"github.com/obelousov/authkeeper/internal/dbx"
	"github.com/obelousov/authkeeper/internal/logging"
	"github.com/obelousov/authkeeper/internal/server/auth"
	"github.com/obelousov/authkeeper/internal/server/config"
	"github.com/obelousov/authkeeper/internal/server/models"
	"github.com/obelousov/authkeeper/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived access token and a long-lived refresh
// secret. Rotation always returns both: a caller that discards the new
// refresh secret strands its session chain.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenService orchestrates issuance, rotation, and revocation of token
// pairs. It holds no in-process lock across a store round trip; all
// exclusivity comes from the store's conditional update, so the service is
// correct under multiple concurrent instances, not just multiple goroutines.
type TokenService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	issuer                       *auth.Issuer
	refreshTokenValidityDuration time.Duration
	logger                       logging.Logger
	now                          func() time.Time
}

// NewTokenService constructs a TokenService using repositories, the access
// token issuer, and server config.
func NewTokenService(db *sql.DB, m repomanager.RepositoryManager, issuer *auth.Issuer, cfg *config.Config, logger logging.Logger) *TokenService {
	return &TokenService{
		db:                           db,
		repomanager:                  m,
		issuer:                       issuer,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		logger:                       logger.With("module", "tokens"),
		now:                          time.Now,
	}
}

// newRefreshRecord builds an unrevoked refresh token record for the user.
func (s *TokenService) newRefreshRecord(userID string) (*models.RefreshToken, error) {
	secret, err := common.MakeRefreshSecret()
	if err != nil {
		return nil, fmt.Errorf("error generating refresh secret: %w", err)
	}
	now := s.now()
	return &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		Secret:    secret,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.refreshTokenValidityDuration),
	}, nil
}

// IssueTokens mints a new token pair for an already-authenticated user.
// Issuance is additive: pre-existing refresh tokens are untouched, so a
// principal may hold several concurrently active refresh tokens (one per
// device).
func (s *TokenService) IssueTokens(ctx context.Context, user *models.User) (*TokenPair, error) {
	accessToken, err := s.issuer.Issue(user.ID, user.Roles)
	if err != nil {
		return nil, fmt.Errorf("error issuing access token: %w", err)
	}

	record, err := s.newRefreshRecord(user.ID)
	if err != nil {
		return nil, err
	}

	repo := s.repomanager.RefreshTokens(s.db)
	if err := repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("error storing refresh token: %w", err)
	}

	s.logger.Info(ctx, "tokens issued", "principal", user.ID)

	return &TokenPair{AccessToken: accessToken, RefreshToken: record.Secret}, nil
}

// RotateRefresh exchanges a still-valid refresh secret for a fresh token
// pair, retiring the presented token.
//
// Failure modes, in check order:
//   - common.ErrTokenNotFound: unknown secret.
//   - common.ErrTokenRevoked: the token was rotated before (reuse of a
//     superseded secret) or explicitly revoked, or it lost a concurrent
//     rotation race.
//   - common.ErrTokenExpired: past expiry; the store is left unmutated.
//   - common.ErrPrincipalNotFound: the owning account no longer resolves;
//     the principal's tokens are revoked before the error surfaces, so a
//     deleted account's chain can never be rotated again.
func (s *TokenService) RotateRefresh(ctx context.Context, presentedSecret string) (*TokenPair, error) {
	repo := s.repomanager.RefreshTokens(s.db)

	token, err := repo.FindBySecret(ctx, presentedSecret)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrTokenNotFound
		}
		return nil, fmt.Errorf("error searching refresh token: %w", err)
	}

	if token.Revoked {
		if token.ReplacedBy != nil {
			// A superseded secret came back: either a replayed request or a
			// stolen token racing its legitimate owner.
			s.logger.Warn(ctx, "refresh token reuse detected", "principal", token.UserID, "token", token.ID)
		}
		return nil, common.ErrTokenRevoked
	}

	if token.Expired(s.now()) {
		return nil, common.ErrTokenExpired
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// Revoke-on-read: the account is gone, close the live chain
			// before surfacing the error.
			if _, revokeErr := repo.RevokeAllActive(ctx, token.UserID); revokeErr != nil {
				return nil, fmt.Errorf("error revoking tokens of missing principal: %w", revokeErr)
			}
			s.logger.Warn(ctx, "refresh token for missing principal revoked", "principal", token.UserID)
			return nil, common.ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("error resolving principal: %w", err)
	}

	accessToken, err := s.issuer.Issue(user.ID, user.Roles)
	if err != nil {
		return nil, fmt.Errorf("error issuing access token: %w", err)
	}

	replacement, err := s.newRefreshRecord(user.ID)
	if err != nil {
		return nil, err
	}

	// The replacement insert and the conditional transition commit together
	// or not at all: the loser of a concurrent rotation rolls back its
	// replacement record and the winner's chain is the only one left.
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		txRepo := s.repomanager.RefreshTokens(tx)
		if err := txRepo.Create(ctx, replacement); err != nil {
			return fmt.Errorf("error storing replacement token: %w", err)
		}
		if err := txRepo.MarkRotated(ctx, token.ID, replacement.ID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrVersionConflict) {
			// A concurrent rotation won the race; treat the loser exactly
			// like a reuse attempt.
			return nil, common.ErrTokenRevoked
		}
		return nil, err
	}

	s.logger.Info(ctx, "refresh token rotated", "principal", user.ID, "token", token.ID, "replaced_by", replacement.ID)

	return &TokenPair{AccessToken: accessToken, RefreshToken: replacement.Secret}, nil
}

// RevokeUserRefreshTokens marks every active refresh token of the principal
// as revoked; used for logout-everywhere and account deletion. Idempotent:
// repeating the call affects zero records.
func (s *TokenService) RevokeUserRefreshTokens(ctx context.Context, userID string) (int64, error) {
	repo := s.repomanager.RefreshTokens(s.db)
	affected, err := repo.RevokeAllActive(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("error revoking refresh tokens: %w", err)
	}
	s.logger.Info(ctx, "refresh tokens revoked", "principal", userID, "count", affected)
	return affected, nil
}
