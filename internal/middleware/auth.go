package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kidspro/kids-specialists/internal/auth"
	"github.com/kidspro/kids-specialists/internal/model"
	"github.com/kidspro/kids-specialists/internal/repository"
)

// ContextUserKey is where Authenticate stores the resolved user record.
const ContextUserKey = "current_user"

// UserResolver looks up the live user record for the id embedded in an
// access token. *repository.UserRepo satisfies it; tests inject a fake so
// the gateway can be exercised without a database.
type UserResolver interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// Authenticate validates a Bearer access token and re-resolves the user
// from the credential store on every call. The re-resolution is the point:
// a deactivated or deleted account is rejected immediately even while the
// bearer still holds an unexpired, correctly signed token.
//
// Status mapping: no token 401; expired 401 (message says so, clients may
// refresh); malformed, bad signature or wrong token type 403; user missing
// or inactive 401.
func Authenticate(issuer *auth.Issuer, users UserResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"success": false, "message": "missing access token"})
			}
			raw := strings.TrimPrefix(header, "Bearer ")

			claims, err := issuer.ParseAccess(raw)
			if err != nil {
				if errors.Is(err, auth.ErrTokenExpired) {
					return c.JSON(http.StatusUnauthorized, echo.Map{
						"success": false, "message": "token expired"})
				}
				return c.JSON(http.StatusForbidden, echo.Map{
					"success": false, "message": "invalid token"})
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()

			u, err := users.GetByID(ctx, claims.UserID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return c.JSON(http.StatusUnauthorized, echo.Map{
						"success": false, "message": "user not found or inactive"})
				}
				return c.JSON(http.StatusInternalServerError, echo.Map{
					"success": false, "message": "server error"})
			}
			if !u.IsActive {
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"success": false, "message": "user not found or inactive"})
			}

			c.Set(ContextUserKey, u)
			return next(c)
		}
	}
}

// CurrentUser returns the user attached by Authenticate.
func CurrentUser(c echo.Context) (model.User, bool) {
	u, ok := c.Get(ContextUserKey).(model.User)
	return u, ok
}
