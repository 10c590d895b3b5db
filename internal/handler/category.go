package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kidspro/kids-specialists/internal/repository"
)

// CategoryHandler serves the category reference endpoints.
type CategoryHandler struct {
	Categories CategoryStore
}

func NewCategoryHandler(categories CategoryStore) *CategoryHandler {
	return &CategoryHandler{Categories: categories}
}

type categoryResponse struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	IconURL     string `json:"icon_url"`
}

// List returns all categories ordered by name.
func (h *CategoryHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	cats, err := h.Categories.List(ctx)
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "server error")
	}
	out := make([]categoryResponse, 0, len(cats))
	for _, cat := range cats {
		out = append(out, categoryResponse{
			ID: cat.ID, Name: cat.Name, Slug: cat.Slug,
			Description: cat.Description, IconURL: cat.IconURL,
		})
	}
	return respondList(c, out, len(out))
}

// GetBySlug returns one category by its slug.
func (h *CategoryHandler) GetBySlug(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	cat, err := h.Categories.GetBySlug(ctx, c.Param("slug"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return respondError(c, http.StatusNotFound, "category not found")
		}
		return respondError(c, http.StatusInternalServerError, "server error")
	}
	return respondData(c, http.StatusOK, "", categoryResponse{
		ID: cat.ID, Name: cat.Name, Slug: cat.Slug,
		Description: cat.Description, IconURL: cat.IconURL,
	})
}
