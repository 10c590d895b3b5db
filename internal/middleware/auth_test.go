package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/kidspro/kids-specialists/internal/auth"
	"github.com/kidspro/kids-specialists/internal/model"
	"github.com/kidspro/kids-specialists/internal/repository"
)

type fakeResolver struct {
	byID map[uint64]model.User
}

func (f *fakeResolver) GetByID(_ context.Context, id uint64) (model.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func runAuthenticated(t *testing.T, issuer *auth.Issuer, users UserResolver, authorization string) (int, bool, model.User) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	reached := false
	var seen model.User
	next := func(c echo.Context) error {
		reached = true
		seen, _ = CurrentUser(c)
		return c.NoContent(http.StatusOK)
	}
	assert.NoError(t, Authenticate(issuer, users)(next)(c))
	return rec.Code, reached, seen
}

func TestAuthenticateStatusMapping(t *testing.T) {
	issuer := auth.NewIssuer(auth.Config{
		Secret:     "test-secret",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	})
	expiredIssuer := auth.NewIssuer(auth.Config{
		Secret:     "test-secret",
		AccessTTL:  -time.Minute,
		RefreshTTL: -time.Minute,
	})
	foreignIssuer := auth.NewIssuer(auth.Config{Secret: "other-secret", AccessTTL: 15 * time.Minute})

	active := model.User{ID: 1, Email: "a@b.ru", Role: model.RoleUser, IsActive: true}
	inactive := model.User{ID: 2, Email: "b@b.ru", Role: model.RoleUser, IsActive: false}
	users := &fakeResolver{byID: map[uint64]model.User{1: active, 2: inactive}}

	pair, err := issuer.IssuePair(1, "a@b.ru", model.RoleUser)
	assert.NoError(t, err)
	expiredPair, err := expiredIssuer.IssuePair(1, "a@b.ru", model.RoleUser)
	assert.NoError(t, err)
	foreignPair, err := foreignIssuer.IssuePair(1, "a@b.ru", model.RoleUser)
	assert.NoError(t, err)
	inactivePair, err := issuer.IssuePair(2, "b@b.ru", model.RoleUser)
	assert.NoError(t, err)
	ghostPair, err := issuer.IssuePair(99, "ghost@b.ru", model.RoleUser)
	assert.NoError(t, err)

	cases := []struct {
		name          string
		authorization string
		wantCode      int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"not a bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusForbidden},
		{"foreign signature", "Bearer " + foreignPair.AccessToken, http.StatusForbidden},
		{"refresh token as access", "Bearer " + pair.RefreshToken, http.StatusForbidden},
		{"expired", "Bearer " + expiredPair.AccessToken, http.StatusUnauthorized},
		{"unknown user", "Bearer " + ghostPair.AccessToken, http.StatusUnauthorized},
		{"deactivated user", "Bearer " + inactivePair.AccessToken, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, reached, _ := runAuthenticated(t, issuer, users, tc.authorization)
			assert.Equal(t, tc.wantCode, code)
			assert.False(t, reached, "the handler must not run")
		})
	}

	t.Run("valid token reaches handler", func(t *testing.T) {
		code, reached, seen := runAuthenticated(t, issuer, users, "Bearer "+pair.AccessToken)
		assert.Equal(t, http.StatusOK, code)
		assert.True(t, reached)
		assert.Equal(t, active, seen)
	})
}

// Deactivation takes effect on the very next request even though the
// bearer still holds a correctly signed, unexpired access token.
func TestAuthenticateReResolvesUserEachRequest(t *testing.T) {
	issuer := auth.NewIssuer(auth.Config{
		Secret:     "test-secret",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	})
	users := &fakeResolver{byID: map[uint64]model.User{
		1: {ID: 1, Email: "a@b.ru", Role: model.RoleUser, IsActive: true},
	}}
	pair, err := issuer.IssuePair(1, "a@b.ru", model.RoleUser)
	assert.NoError(t, err)

	code, reached, _ := runAuthenticated(t, issuer, users, "Bearer "+pair.AccessToken)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, reached)

	u := users.byID[1]
	u.IsActive = false
	users.byID[1] = u

	code, reached, _ = runAuthenticated(t, issuer, users, "Bearer "+pair.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, reached)
}

func TestRequireRole(t *testing.T) {
	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	run := func(setup func(echo.Context)) int {
		req := httptest.NewRequest(http.MethodDelete, "/v1/specialists/1", nil)
		rec := httptest.NewRecorder()
		c := echo.New().NewContext(req, rec)
		if setup != nil {
			setup(c)
		}
		assert.NoError(t, RequireRole(model.RoleAdmin)(next)(c))
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, run(nil))
	assert.Equal(t, http.StatusForbidden, run(func(c echo.Context) {
		c.Set(ContextUserKey, model.User{ID: 1, Role: model.RoleSpecialist, IsActive: true})
	}))
	assert.Equal(t, http.StatusOK, run(func(c echo.Context) {
		c.Set(ContextUserKey, model.User{ID: 1, Role: model.RoleAdmin, IsActive: true})
	}))
}
