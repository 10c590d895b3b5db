package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/labstack/echo/v4"

	"github.com/kidspro/kids-specialists/internal/auth"
	"github.com/kidspro/kids-specialists/internal/middleware"
	"github.com/kidspro/kids-specialists/internal/model"
	"github.com/kidspro/kids-specialists/internal/repository"
	"github.com/kidspro/kids-specialists/internal/service"
)

// AuthHandler bundles dependencies for the auth endpoints.
type AuthHandler struct {
	Users        UserStore
	Sessions     SessionLedger
	Specialists  SpecialistStore // profile-name fan-out to authored listings
	Issuer       *auth.Issuer
	Hasher       auth.Hasher
	Email        service.EmailVerifier
	SessionLimit int
}

func NewAuthHandler(users UserStore, sessions SessionLedger, specialists SpecialistStore,
	issuer *auth.Issuer, hasher auth.Hasher, email service.EmailVerifier, sessionLimit int) *AuthHandler {
	return &AuthHandler{
		Users:        users,
		Sessions:     sessions,
		Specialists:  specialists,
		Issuer:       issuer,
		Hasher:       hasher,
		Email:        email,
		SessionLimit: sessionLimit,
	}
}

// ----- DTOs -----

var (
	fullNameRx = regexp.MustCompile(`^[а-яА-ЯёЁ\- ]+$`)
	phoneRx    = regexp.MustCompile(`^[0-9\s\-+()]{10,15}$`)
)

// passwordPolicy enforces the composition rules bcrypt cannot express:
// at least one lowercase, one uppercase and one digit, Latin alphabet
// only. Lookaheads are unsupported by Go regexp, hence the manual scan.
func passwordPolicy(value interface{}) error {
	s, _ := value.(string)
	var lower, upper, digit bool
	for _, r := range s {
		switch {
		case unicode.Is(unicode.Cyrillic, r):
			return errors.New("must not contain Cyrillic characters")
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !lower || !upper || !digit {
		return errors.New("must contain at least one uppercase letter, one lowercase letter and one digit")
	}
	return nil
}

func stringEquals(expected, message string) validation.RuleFunc {
	return func(value interface{}) error {
		if s, _ := value.(string); s != expected {
			return errors.New(message)
		}
		return nil
	}
}

type registerReq struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	FullName        string `json:"fullName"`
	Phone           string `json:"phone"`
}

func (r registerReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(0, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 100), validation.By(passwordPolicy)),
		// Matched against the submitted confirmation, never a stored value.
		validation.Field(&r.ConfirmPassword, validation.Required, validation.By(stringEquals(r.Password, "passwords do not match"))),
		validation.Field(&r.FullName, validation.Required, validation.Length(2, 50),
			validation.Match(fullNameRx).Error("must contain only Cyrillic letters, spaces and hyphens")),
		validation.Field(&r.Phone, validation.Match(phoneRx).Error("invalid phone format")),
	)
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r loginReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

func (r refreshReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

type profileUpdateReq struct {
	FullName *string `json:"fullName"`
	Phone    *string `json:"phone"`
}

func (r profileUpdateReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.Length(2, 50),
			validation.Match(fullNameRx).Error("must contain only Cyrillic letters, spaces and hyphens")),
		validation.Field(&r.Phone, validation.Match(phoneRx).Error("invalid phone format")),
	)
}

type userResponse struct {
	ID        uint64    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	Phone     *string   `json:"phone"`
	AvatarURL string    `json:"avatarUrl"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func toUserResponse(u model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Phone:     u.Phone,
		AvatarURL: u.AvatarURL,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

type authResponse struct {
	User         userResponse `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

// ----- Handlers -----

// Register creates an account and returns tokens immediately. Order
// matters: validation, then the deliverability gate, then the duplicate
// check, all before any hash is computed or row inserted.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return respondValidation(c, err)
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	// The gate bounds itself with its own timeout and fails closed.
	if res := h.Email.Check(c.Request().Context(), email); !res.Deliverable {
		return respondFieldErrors(c, "email is not deliverable",
			[]FieldError{{Field: "email", Message: res.Reason}})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Users.GetByEmail(ctx, email); err == nil {
		return respondError(c, http.StatusConflict, "user with this email already exists")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return respondError(c, http.StatusInternalServerError, "server error")
	}

	fullName := collapseSpaces(req.FullName)
	var phone *string
	if p := strings.TrimSpace(req.Phone); p != "" {
		phone = &p
	}

	hash, err := h.Hasher.Hash(req.Password)
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "server error")
	}

	u, err := h.Users.Create(ctx, email, hash, fullName, phone)
	if err != nil {
		// Concurrent registration of the same email loses here.
		if errors.Is(err, repository.ErrEmailExists) {
			return respondError(c, http.StatusConflict, "user with this email already exists")
		}
		return respondError(c, http.StatusInternalServerError, "server error")
	}

	pair, err := h.Issuer.IssuePair(u.ID, u.Email, u.Role)
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "server error")
	}
	if err := h.Sessions.Store(ctx, u.ID, pair.RefreshToken, pair.RefreshExpiresAt); err != nil {
		return respondError(c, http.StatusInternalServerError, "server error")
	}
	if err := h.Sessions.PruneToMostRecent(ctx, u.ID, h.SessionLimit); err != nil {
		log.Printf("auth: prune sessions for user %d: %v", u.ID, err)
	}

	return respondData(c, http.StatusCreated, "registration successful", authResponse{
		User:         toUserResponse(u),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// Login verifies credentials and returns a fresh token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return respondValidation(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return respondError(c, http.StatusUnauthorized, "invalid email or password")
		}
		return respondError(c, http.StatusInternalServerError, "server error")
	}
	if !u.IsActive {
		return respondError(c, http.StatusUnauthorized, "account deactivated")
	}
	if !h.Hasher.Verify(u.PasswordHash, req.Password) {
		return respondError(c, http.StatusUnauthorized, "invalid email or password")
	}

	pair, err := h.Issuer.IssuePair(u.ID, u.Email, u.Role)
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "server error")
	}
	if err := h.Sessions.Store(ctx, u.ID, pair.RefreshToken, pair.RefreshExpiresAt); err != nil {
		return respondError(c, http.StatusInternalServerError, "server error")
	}
	// Keep the N most recent sessions; the oldest device is silently
	// logged out when the cap is exceeded.
	if err := h.Sessions.PruneToMostRecent(ctx, u.ID, h.SessionLimit); err != nil {
		log.Printf("auth: prune sessions for user %d: %v", u.ID, err)
	}

	return respondData(c, http.StatusOK, "login successful", authResponse{
		User:         toUserResponse(u),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// Refresh exchanges a live refresh token for a new access token. The
// ledger is the authority: the token must exist there, be unexpired, and
// belong to an active user. The ledger itself is never mutated here.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return respondValidation(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	owner, err := h.Sessions.Validate(ctx, strings.TrimSpace(req.RefreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return respondError(c, http.StatusUnauthorized, "invalid or expired refresh token")
		}
		return respondError(c, http.StatusInternalServerError, "server error")
	}
	if !owner.IsActive {
		return respondError(c, http.StatusUnauthorized, "account deactivated")
	}

	access, err := h.Issuer.ReissueAccess(owner.UserID, owner.Email, owner.Role)
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "server error")
	}
	return respondData(c, http.StatusOK, "token refreshed", echo.Map{"accessToken": access})
}

// Logout revokes sessions. The supplied refresh token (if any) is deleted
// first, then every remaining session of the authenticated user, so a
// logout always logs the user out of all devices.
func (h *AuthHandler) Logout(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "not authenticated")
	}

	// Invalid JSON just leaves the token empty; the bearer suffices.
	var req refreshReq
	_ = c.Bind(&req)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if token := strings.TrimSpace(req.RefreshToken); token != "" {
		if err := h.Sessions.Delete(ctx, token); err != nil {
			return respondError(c, http.StatusInternalServerError, "server error")
		}
	}
	if err := h.Sessions.DeleteAllForUser(ctx, u.ID); err != nil {
		return respondError(c, http.StatusInternalServerError, "server error")
	}
	return respondData(c, http.StatusOK, "logged out", nil)
}

// Me returns the authenticated user's profile. The middleware already
// re-resolved the record, so this is a pure read of the request identity.
func (h *AuthHandler) Me(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "not authenticated")
	}
	return respondData(c, http.StatusOK, "", toUserResponse(u))
}

// DeactivateUser soft-disables an account and revokes all of its
// sessions. Admin only (enforced by route middleware). The middleware's
// per-request re-resolution makes the block take effect on the target's
// very next call, even with unexpired access tokens in the wild.
func (h *AuthHandler) DeactivateUser(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return respondError(c, http.StatusBadRequest, "invalid id")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Users.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return respondError(c, http.StatusNotFound, "user not found")
		}
		return respondError(c, http.StatusInternalServerError, "server error")
	}
	if err := h.Users.Deactivate(ctx, id); err != nil {
		return respondError(c, http.StatusInternalServerError, "server error")
	}
	if err := h.Sessions.DeleteAllForUser(ctx, id); err != nil {
		return respondError(c, http.StatusInternalServerError, "server error")
	}
	return respondData(c, http.StatusOK, "user deactivated", nil)
}

// UpdateProfile applies a partial profile update. A display-name change
// fans out to every listing the user authored, as a reconciliation step
// after the profile write commits; the fan-out is not transactional with
// the profile write.
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "not authenticated")
	}

	var req profileUpdateReq
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "invalid request body")
	}
	if req.FullName == nil && req.Phone == nil {
		return respondError(c, http.StatusBadRequest, "no fields to update")
	}
	if err := req.Validate(); err != nil {
		return respondValidation(c, err)
	}

	var fullName *string
	if req.FullName != nil {
		n := collapseSpaces(*req.FullName)
		fullName = &n
	}
	var phone *string
	if req.Phone != nil {
		p := strings.TrimSpace(*req.Phone)
		phone = &p
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	updated, err := h.Users.UpdateProfile(ctx, u.ID, fullName, phone)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return respondError(c, http.StatusNotFound, "user not found")
		}
		return respondError(c, http.StatusInternalServerError, "server error")
	}

	if fullName != nil {
		// The profile write is already committed; a fan-out failure is
		// logged and reconciled by the next rename rather than failing
		// the request.
		if err := h.Specialists.SyncAuthoredName(ctx, u.ID, *fullName); err != nil {
			log.Printf("auth: sync authored listings for user %d: %v", u.ID, err)
		}
	}

	return respondData(c, http.StatusOK, "profile updated", toUserResponse(updated))
}
