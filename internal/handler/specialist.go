package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/labstack/echo/v4"

	"github.com/kidspro/kids-specialists/internal/middleware"
	"github.com/kidspro/kids-specialists/internal/model"
	"github.com/kidspro/kids-specialists/internal/queue"
	"github.com/kidspro/kids-specialists/internal/repository"
	"github.com/kidspro/kids-specialists/internal/service"
	"github.com/kidspro/kids-specialists/internal/storage"
)

// defaultCategory is assigned when a listing is published without one.
const defaultCategory = "Другое"

// SpecialistHandler serves the listing endpoints.
type SpecialistHandler struct {
	Specialists SpecialistStore
	Users       UserStore
	Files       storage.FileStore
	Events      service.EventPublisher
}

func NewSpecialistHandler(specialists SpecialistStore, users UserStore,
	files storage.FileStore, events service.EventPublisher) *SpecialistHandler {
	return &SpecialistHandler{Specialists: specialists, Users: users, Files: files, Events: events}
}

// ----- DTOs -----

type specialistReq struct {
	Name         string  `json:"name" form:"name"`
	Specialty    string  `json:"specialty" form:"specialty"`
	Category     string  `json:"category" form:"category"`
	Description  string  `json:"description" form:"description"`
	Location     string  `json:"location" form:"location"`
	Experience   float64 `json:"experience" form:"experience"`
	Rating       float64 `json:"rating" form:"rating"`
	PricePerHour float64 `json:"price_per_hour" form:"price_per_hour"`
	AvatarURL    string  `json:"avatar_url" form:"avatar_url"`
}

func (r specialistReq) Validate() error {
	return validation.ValidateStruct(&r,
		// Name may be blank: it defaults to the author's display name.
		validation.Field(&r.Name, validation.Length(2, 100)),
		validation.Field(&r.Specialty, validation.Required, validation.Length(0, 150)),
		validation.Field(&r.Category, validation.Length(0, 100)),
		validation.Field(&r.Location, validation.Required, validation.Length(0, 150)),
		validation.Field(&r.Description, validation.Length(0, 2000)),
	)
}

type specialistResponse struct {
	ID           uint64    `json:"id"`
	Name         string    `json:"name"`
	Specialty    string    `json:"specialty"`
	Category     string    `json:"category"`
	Description  string    `json:"description"`
	Experience   float64   `json:"experience"`
	Rating       float64   `json:"rating"`
	Location     string    `json:"location"`
	PricePerHour float64   `json:"price_per_hour"`
	AvatarURL    string    `json:"avatar_url"`
	UserID       uint64    `json:"user_id"`
	IsApproved   bool      `json:"is_approved"`
	CreatedAt    time.Time `json:"created_at"`
}

func toSpecialistResponse(s model.Specialist) specialistResponse {
	return specialistResponse{
		ID:           s.ID,
		Name:         s.Name,
		Specialty:    s.Specialty,
		Category:     s.Category,
		Description:  s.Description,
		Experience:   s.Experience,
		Rating:       s.Rating,
		Location:     s.Location,
		PricePerHour: s.PricePerHour,
		AvatarURL:    s.AvatarURL,
		UserID:       s.UserID,
		IsApproved:   s.IsApproved,
		CreatedAt:    s.CreatedAt,
	}
}

func toSpecialistResponses(list []model.Specialist) []specialistResponse {
	out := make([]specialistResponse, 0, len(list))
	for _, s := range list {
		out = append(out, toSpecialistResponse(s))
	}
	return out
}

// ----- Handlers -----

// List returns all listings, optionally filtered by ?search= (name or
// specialty, case-insensitive) and ?category= (slug).
func (h *SpecialistHandler) List(c echo.Context) error {
	search := collapseSpaces(c.QueryParam("search"))
	category := collapseSpaces(c.QueryParam("category"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	list, err := h.Specialists.Search(ctx, search, category)
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "server error")
	}
	return respondList(c, toSpecialistResponses(list), len(list))
}

// Get returns one listing by id.
func (h *SpecialistHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return respondError(c, http.StatusBadRequest, "invalid id")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, err := h.Specialists.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return respondError(c, http.StatusNotFound, "specialist not found")
		}
		return respondError(c, http.StatusInternalServerError, "server error")
	}
	return respondData(c, http.StatusOK, "", toSpecialistResponse(s))
}

// Mine returns the authenticated user's own listings.
func (h *SpecialistHandler) Mine(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "not authenticated")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	list, err := h.Specialists.ListByUser(ctx, u.ID)
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "server error")
	}
	return respondList(c, toSpecialistResponses(list), len(list))
}

// Create publishes a listing. Publishing is the qualifying action of the
// role lifecycle: a plain user is promoted to specialist in the same
// logical operation, exactly once; admins skip promotion and their
// listings are pre-approved, while everyone else's start unapproved
// pending review.
func (h *SpecialistHandler) Create(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "not authenticated")
	}

	var req specialistReq
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return respondValidation(c, err)
	}

	name := collapseSpaces(req.Name)
	if name == "" {
		name = u.FullName
	}
	category := collapseSpaces(req.Category)
	if category == "" {
		category = defaultCategory
	}

	avatarURL := model.DefaultAvatarURL
	if file, err := c.FormFile("avatar"); err == nil {
		src, err := file.Open()
		if err != nil {
			return respondError(c, http.StatusBadRequest, "could not read uploaded file")
		}
		defer src.Close()
		avatarURL, err = h.Files.Save(filepath.Ext(file.Filename), src)
		if err != nil {
			return respondError(c, http.StatusInternalServerError, "server error")
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	created, err := h.Specialists.Create(ctx, model.Specialist{
		Name:         name,
		Specialty:    collapseSpaces(req.Specialty),
		Category:     category,
		Description:  collapseSpaces(req.Description),
		Experience:   floorAt(req.Experience, 0),
		Rating:       clamp(req.Rating, 0, 5),
		Location:     collapseSpaces(req.Location),
		PricePerHour: floorAt(req.PricePerHour, 0),
		AvatarURL:    avatarURL,
		UserID:       u.ID,
		CreatedBy:    u.ID,
		IsApproved:   u.Role == model.RoleAdmin,
	})
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "server error")
	}

	promoted := false
	if u.Role == model.RoleUser {
		if err := h.Users.PromoteToSpecialist(ctx, u.ID); err != nil {
			return respondError(c, http.StatusInternalServerError, "server error")
		}
		promoted = true
	}

	if h.Events != nil {
		// Best effort: a broker outage must not fail the publish.
		_ = h.Events.PublishSpecialistPublished(ctx, queue.SpecialistPublishedEvent{
			SpecialistID: created.ID,
			UserID:       u.ID,
			Name:         created.Name,
			Specialty:    created.Specialty,
			Category:     created.Category,
			Approved:     created.IsApproved,
			Promoted:     promoted,
			PublishedAt:  time.Now().UTC().Format(time.RFC3339),
		})
	}

	message := "profile created and pending approval"
	if created.IsApproved {
		message = "specialist created"
	}
	return respondData(c, http.StatusCreated, message, toSpecialistResponse(created))
}

// Update overwrites a listing. Only the author or an admin may edit.
func (h *SpecialistHandler) Update(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "not authenticated")
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return respondError(c, http.StatusBadRequest, "invalid id")
	}

	var req specialistReq
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return respondValidation(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	existing, err := h.Specialists.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return respondError(c, http.StatusNotFound, "specialist not found")
		}
		return respondError(c, http.StatusInternalServerError, "server error")
	}
	if u.Role != model.RoleAdmin && existing.CreatedBy != u.ID {
		return respondError(c, http.StatusForbidden, "insufficient permissions")
	}

	existing.Name = collapseSpaces(req.Name)
	existing.Specialty = collapseSpaces(req.Specialty)
	existing.Category = collapseSpaces(req.Category)
	existing.Description = collapseSpaces(req.Description)
	existing.Experience = floorAt(req.Experience, 0)
	existing.Rating = clamp(req.Rating, 0, 5)
	existing.Location = collapseSpaces(req.Location)
	existing.PricePerHour = floorAt(req.PricePerHour, 0)
	if req.AvatarURL != "" {
		existing.AvatarURL = collapseSpaces(req.AvatarURL)
	}

	updated, err := h.Specialists.Update(ctx, existing)
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "server error")
	}
	return respondData(c, http.StatusOK, "specialist updated", toSpecialistResponse(updated))
}

// Delete removes a listing and its stored avatar. Admin only (enforced
// by route middleware).
func (h *SpecialistHandler) Delete(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return respondError(c, http.StatusBadRequest, "invalid id")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, err := h.Specialists.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return respondError(c, http.StatusNotFound, "specialist not found")
		}
		return respondError(c, http.StatusInternalServerError, "server error")
	}
	if err := h.Files.Delete(s.AvatarURL); err != nil {
		log.Printf("specialist: delete avatar %s: %v", s.AvatarURL, err)
	}
	if err := h.Specialists.Delete(ctx, id); err != nil {
		return respondError(c, http.StatusInternalServerError, "server error")
	}
	return respondData(c, http.StatusOK, "specialist deleted", nil)
}

// UpdateAvatar replaces a listing's avatar image.
func (h *SpecialistHandler) UpdateAvatar(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "not authenticated")
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return respondError(c, http.StatusBadRequest, "invalid id")
	}
	file, err := c.FormFile("avatar")
	if err != nil {
		return respondError(c, http.StatusBadRequest, "file is required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	existing, err := h.Specialists.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return respondError(c, http.StatusNotFound, "specialist not found")
		}
		return respondError(c, http.StatusInternalServerError, "server error")
	}
	if u.Role != model.RoleAdmin && existing.CreatedBy != u.ID {
		return respondError(c, http.StatusForbidden, "insufficient permissions")
	}

	src, err := file.Open()
	if err != nil {
		return respondError(c, http.StatusBadRequest, "could not read uploaded file")
	}
	defer src.Close()

	newURL, err := h.Files.Save(filepath.Ext(file.Filename), src)
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "server error")
	}
	if err := h.Files.Delete(existing.AvatarURL); err != nil {
		log.Printf("specialist: delete old avatar %s: %v", existing.AvatarURL, err)
	}

	updated, err := h.Specialists.UpdateAvatar(ctx, id, newURL)
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "server error")
	}
	return respondData(c, http.StatusOK, "avatar updated", toSpecialistResponse(updated))
}

// DeleteAvatar removes an uploaded avatar and restores the default image.
func (h *SpecialistHandler) DeleteAvatar(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "not authenticated")
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return respondError(c, http.StatusBadRequest, "invalid id")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	existing, err := h.Specialists.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return respondError(c, http.StatusNotFound, "specialist not found")
		}
		return respondError(c, http.StatusInternalServerError, "server error")
	}
	if u.Role != model.RoleAdmin && existing.CreatedBy != u.ID {
		return respondError(c, http.StatusForbidden, "insufficient permissions")
	}

	if err := h.Files.Delete(existing.AvatarURL); err != nil {
		log.Printf("specialist: delete avatar %s: %v", existing.AvatarURL, err)
	}
	updated, err := h.Specialists.UpdateAvatar(ctx, id, model.DefaultAvatarURL)
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "server error")
	}
	return respondData(c, http.StatusOK, "avatar removed", toSpecialistResponse(updated))
}
