package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/kidspro/kids-specialists/internal/model"
)

// CategoryRepo reads the `categories` reference table.
type CategoryRepo struct{ DB *sql.DB }

func NewCategoryRepo(db *sql.DB) *CategoryRepo { return &CategoryRepo{DB: db} }

// List returns all categories ordered by name.
func (r *CategoryRepo) List(ctx context.Context) ([]model.Category, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id,name,slug,description,icon_url FROM categories ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Category{}
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.IconURL); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetBySlug fetches one category by its unique slug.
func (r *CategoryRepo) GetBySlug(ctx context.Context, slug string) (model.Category, error) {
	var c model.Category
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,name,slug,description,icon_url FROM categories WHERE slug=? LIMIT 1",
		slug).Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.IconURL)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Category{}, ErrNotFound
	}
	return c, err
}
