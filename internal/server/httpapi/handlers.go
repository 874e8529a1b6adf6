package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/obelousov/authkeeper/internal/common"
	"github.com/obelousov/authkeeper/internal/server/services"
)

// AuthHandler exposes the account and token lifecycle over HTTP.
type AuthHandler struct {
	users  *services.UserService
	tokens *services.TokenService
}

func NewAuthHandler(users *services.UserService, tokens *services.TokenService) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens}
}

type registerRequest struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"displayName" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type deleteAccountRequest struct {
	Password string `json:"password" binding:"required"`
}

type tokenPairResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type userResponse struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	DisplayName string   `json:"displayName"`
	Roles       []string `json:"roles"`
}

// Register handles POST /api/auth/register: creates the account and signs it
// in, returning the first token pair.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	pair, err := h.tokens.IssueTokens(c.Request.Context(), user)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, tokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	pair, err := h.tokens.IssueTokens(c.Request.Context(), user)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, tokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// Refresh handles POST /api/auth/refresh: rotates the presented refresh
// token and returns a fresh pair. The presented token is single-use; any
// failure leaves it unusable or untouched depending on the cause, never
// half-rotated.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	pair, err := h.tokens.RotateRefresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, tokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// Logout handles POST /api/auth/logout: revokes every active refresh token
// of the caller. Access tokens already issued stay valid until expiry.
func (h *AuthHandler) Logout(c *gin.Context) {
	principalID := GetPrincipalID(c)
	if _, err := h.tokens.RevokeUserRefreshTokens(c.Request.Context(), principalID); err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out everywhere"})
}

// Identity handles GET /api/auth/identity: echoes the verified claims back
// to the caller.
func (h *AuthHandler) Identity(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), GetPrincipalID(c))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, userResponse{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Roles:       user.Roles,
	})
}

// DeleteMe handles DELETE /api/auth/me: password-confirmed soft delete of the
// caller's own account.
func (h *AuthHandler) DeleteMe(c *gin.Context) {
	var req deleteAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.users.DeleteAccount(c.Request.Context(), GetPrincipalID(c), req.Password); err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "account deleted"})
}

// AdminDeleteUser handles DELETE /api/auth/users/:id. Route is gated by
// AdminRequired.
func (h *AuthHandler) AdminDeleteUser(c *gin.Context) {
	if err := h.users.AdminDeleteUser(c.Request.Context(), c.Param("id")); err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "account deleted"})
}

// abortWithServiceError maps service sentinels onto HTTP statuses. Anything
// unrecognized becomes a generic 500 so internals never leak to clients.
func abortWithServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
	case errors.Is(err, common.ErrTokenNotFound),
		errors.Is(err, common.ErrTokenRevoked),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrInvalidAccessToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
	case errors.Is(err, common.ErrPrincipalNotFound),
		errors.Is(err, common.ErrorUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
