package router // router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/kidspro/kids-specialists/internal/auth"
	"github.com/kidspro/kids-specialists/internal/handler"
	"github.com/kidspro/kids-specialists/internal/middleware"
	"github.com/kidspro/kids-specialists/internal/model"
)

// Deps carries everything the route table needs: the handlers plus the
// token issuer and user resolver for the authentication middleware.
// Optional middlewares (rate limiting, response cache) are applied when
// non-nil and skipped otherwise, so the service runs without Redis.
type Deps struct {
	Auth        *handler.AuthHandler
	Specialists *handler.SpecialistHandler
	Categories  *handler.CategoryHandler

	Issuer *auth.Issuer
	Users  middleware.UserResolver

	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
}

// Register wires the complete route table on the provided Echo instance.
func Register(e *echo.Echo, d Deps) {
	// Health check for load balancers and monitoring.
	e.GET("/healthz", handler.Health)

	// Unauthenticated session operations live under /v1/auth.  These are
	// the brute-force targets, so the token-bucket limiter guards them.
	authGroup := e.Group("/v1/auth")
	if d.RateLimit != nil {
		authGroup.Use(d.RateLimit)
	}
	authGroup.POST("/register", d.Auth.Register)
	authGroup.POST("/login", d.Auth.Login)
	authGroup.POST("/refresh", d.Auth.Refresh)

	// Public browse endpoints.  Guests can search the directory and read
	// the category reference table; responses are cacheable.
	public := e.Group("/v1")
	if d.Cache != nil {
		public.Use(d.Cache)
	}
	public.GET("/specialists", d.Specialists.List)
	public.GET("/specialists/:id", d.Specialists.Get)
	public.GET("/categories", d.Categories.List)
	public.GET("/categories/:slug", d.Categories.GetBySlug)

	// Everything below requires a live session: the middleware verifies
	// the access token and re-resolves the account on every request.
	protected := e.Group("/v1", middleware.Authenticate(d.Issuer, d.Users))

	protected.POST("/auth/logout", d.Auth.Logout)
	protected.GET("/me", d.Auth.Me)
	protected.PATCH("/me", d.Auth.UpdateProfile)
	protected.PATCH("/users/:id/deactivate", d.Auth.DeactivateUser,
		middleware.RequireRole(model.RoleAdmin))

	// ---- Listings ----
	protected.POST("/specialists", d.Specialists.Create)
	protected.GET("/specialists/mine", d.Specialists.Mine)
	protected.PUT("/specialists/:id", d.Specialists.Update)
	protected.PATCH("/specialists/:id", d.Specialists.Update)
	protected.DELETE("/specialists/:id", d.Specialists.Delete,
		middleware.RequireRole(model.RoleAdmin))
	protected.PUT("/specialists/:id/avatar", d.Specialists.UpdateAvatar)
	protected.DELETE("/specialists/:id/avatar", d.Specialists.DeleteAvatar)
}
