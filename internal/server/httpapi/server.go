// Package httpapi is the HTTP transport: a gin engine exposing the account
// and token lifecycle endpoints, with Bearer verification on the protected
// group and per-IP rate limiting on the anonymous endpoints.
package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/obelousov/authkeeper/internal/server/auth"
	"github.com/obelousov/authkeeper/internal/server/config"
	"github.com/obelousov/authkeeper/internal/server/services"
)

// NewRouter assembles the gin engine with all routes and middleware.
func NewRouter(cfg *config.Config, issuer *auth.Issuer, users *services.UserService, tokens *services.TokenService) *gin.Engine {
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "authkeeper"})
	})

	h := NewAuthHandler(users, tokens)
	authLimiter := NewRateLimiter(cfg.AuthRPS, cfg.AuthBurst)

	api := r.Group("/api/auth")
	{
		// anonymous, rate limited
		public := api.Group("", authLimiter.Middleware())
		{
			public.POST("/register", h.Register)
			public.POST("/login", h.Login)
			public.POST("/refresh", h.Refresh)
		}

		protected := api.Group("", AuthRequired(issuer))
		{
			protected.GET("/identity", h.Identity)
			protected.POST("/logout", h.Logout)
			protected.DELETE("/me", h.DeleteMe)

			admin := protected.Group("", AdminRequired())
			{
				admin.DELETE("/users/:id", h.AdminDeleteUser)
			}
		}
	}

	return r
}
