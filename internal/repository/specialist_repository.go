package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/kidspro/kids-specialists/internal/model"
)

const specialistColumns = "id,name,specialty,category,description,experience,rating,location,price_per_hour,avatar_url,user_id,created_by,is_approved,created_at"

// SpecialistRepo persists published listings in the `specialists` table.
type SpecialistRepo struct{ DB *sql.DB }

func NewSpecialistRepo(db *sql.DB) *SpecialistRepo { return &SpecialistRepo{DB: db} }

// Search returns listings newest-first, optionally filtered by a
// case-insensitive search over name/specialty and by category slug.
func (r *SpecialistRepo) Search(ctx context.Context, search, categorySlug string) ([]model.Specialist, error) {
	q := `SELECT spec.id,spec.name,spec.specialty,spec.category,spec.description,
		spec.experience,spec.rating,spec.location,spec.price_per_hour,
		spec.avatar_url,spec.user_id,spec.created_by,spec.is_approved,spec.created_at
		FROM specialists spec
		INNER JOIN categories cat ON spec.category = cat.name`
	var cond []string
	var args []interface{}

	if search != "" {
		like := "%" + strings.ToLower(search) + "%"
		cond = append(cond, "(LOWER(spec.name) LIKE ? OR LOWER(spec.specialty) LIKE ?)")
		args = append(args, like, like)
	}
	if categorySlug != "" {
		cond = append(cond, "LOWER(cat.slug) = ?")
		args = append(args, strings.ToLower(categorySlug))
	}
	if len(cond) > 0 {
		q += " WHERE " + strings.Join(cond, " AND ")
	}
	q += " ORDER BY spec.id DESC"

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Specialist{}
	for rows.Next() {
		s, err := scanSpecialist(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetByID fetches a single listing.
func (r *SpecialistRepo) GetByID(ctx context.Context, id uint64) (model.Specialist, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+specialistColumns+" FROM specialists WHERE id=? LIMIT 1", id)
	s, err := scanSpecialist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Specialist{}, ErrNotFound
	}
	return s, err
}

// ListByUser returns all listings created by the user, newest-first.
func (r *SpecialistRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Specialist, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+specialistColumns+" FROM specialists WHERE user_id=? ORDER BY id DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Specialist{}
	for rows.Next() {
		s, err := scanSpecialist(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Create inserts a listing and returns the stored record.
func (r *SpecialistRepo) Create(ctx context.Context, s model.Specialist) (model.Specialist, error) {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO specialists
		 (name, specialty, category, description, experience, rating, location,
		  price_per_hour, avatar_url, user_id, created_by, is_approved)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		s.Name, s.Specialty, s.Category, s.Description, s.Experience, s.Rating,
		s.Location, s.PricePerHour, s.AvatarURL, s.UserID, s.CreatedBy, s.IsApproved)
	if err != nil {
		return model.Specialist{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Specialist{}, err
	}
	return r.GetByID(ctx, uint64(id))
}

// Update overwrites the editable columns of a listing.
func (r *SpecialistRepo) Update(ctx context.Context, s model.Specialist) (model.Specialist, error) {
	if _, err := r.DB.ExecContext(ctx,
		`UPDATE specialists SET
		 name=?, specialty=?, category=?, description=?, experience=?, rating=?,
		 location=?, price_per_hour=?, avatar_url=?
		 WHERE id=?`,
		s.Name, s.Specialty, s.Category, s.Description, s.Experience, s.Rating,
		s.Location, s.PricePerHour, s.AvatarURL, s.ID); err != nil {
		return model.Specialist{}, err
	}
	// Missing rows surface as ErrNotFound from the read-back.
	return r.GetByID(ctx, s.ID)
}

// Delete removes a listing.
func (r *SpecialistRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM specialists WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateAvatar stores a new avatar URL for a listing.
func (r *SpecialistRepo) UpdateAvatar(ctx context.Context, id uint64, avatarURL string) (model.Specialist, error) {
	if _, err := r.DB.ExecContext(ctx,
		"UPDATE specialists SET avatar_url=? WHERE id=?", avatarURL, id); err != nil {
		return model.Specialist{}, err
	}
	return r.GetByID(ctx, id)
}

// SyncAuthoredName renames every listing created by the user. Invoked
// after a profile rename commits so a specialist's display name stays
// consistent across their cards. Idempotent: re-running with the same
// name changes nothing.
func (r *SpecialistRepo) SyncAuthoredName(ctx context.Context, userID uint64, name string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE specialists SET name=? WHERE created_by=?", name, userID)
	return err
}

type rowScanner interface{ Scan(dest ...interface{}) error }

func scanSpecialist(row rowScanner) (model.Specialist, error) {
	var s model.Specialist
	err := row.Scan(&s.ID, &s.Name, &s.Specialty, &s.Category, &s.Description,
		&s.Experience, &s.Rating, &s.Location, &s.PricePerHour, &s.AvatarURL,
		&s.UserID, &s.CreatedBy, &s.IsApproved, &s.CreatedAt)
	return s, err
}
