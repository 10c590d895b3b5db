package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/kidspro/kids-specialists/internal/model"
)

const userColumns = "id,email,password_hash,full_name,phone,avatar_url,role,is_active,created_at,updated_at"

// UserRepo is the credential store backed by the `users` table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts a user with the default role and avatar and returns the
// stored record. The password is already hashed by the caller; the email
// is case-normalized here so uniqueness holds regardless of input casing.
// A duplicate email maps to ErrEmailExists.
func (r *UserRepo) Create(ctx context.Context, email, passwordHash, fullName string, phone *string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, full_name, phone, avatar_url) VALUES (?,?,?,?,?)",
		email, passwordHash, fullName, phone, model.DefaultAvatarURL)
	if err != nil {
		// MySQL duplicate-key error for the unique email index.
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return model.User{}, ErrEmailExists
		}
		return model.User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, err
	}
	return r.GetByID(ctx, uint64(id))
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// UpdateProfile applies the non-nil fields and returns the updated record.
// The caller is responsible for fullName normalization; a nil phone means
// "leave unchanged" while a pointer to "" clears the column.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, fullName, phone *string) (model.User, error) {
	sets := make([]string, 0, 3)
	args := make([]interface{}, 0, 4)
	if fullName != nil {
		sets = append(sets, "full_name=?")
		args = append(args, *fullName)
	}
	if phone != nil {
		sets = append(sets, "phone=?")
		if *phone == "" {
			args = append(args, nil)
		} else {
			args = append(args, *phone)
		}
	}
	sets = append(sets, "updated_at=NOW()")
	args = append(args, id)

	// A missing row surfaces as ErrNotFound from the read-back below;
	// RowsAffected cannot distinguish it from a no-op update.
	if _, err := r.DB.ExecContext(ctx,
		"UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id=?", args...); err != nil {
		return model.User{}, err
	}
	return r.GetByID(ctx, id)
}

// PromoteToSpecialist advances a plain user to the specialist role. The
// guard in the WHERE clause makes the transition one-way and idempotent:
// specialists and admins are left untouched, and concurrent promotions
// collapse into a single effective write.
func (r *UserRepo) PromoteToSpecialist(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET role=?, updated_at=NOW() WHERE id=? AND role=?",
		model.RoleSpecialist, id, model.RoleUser)
	return err
}

// Deactivate soft-disables an account. History is kept; all future
// authentication for the user fails from the next request on.
func (r *UserRepo) Deactivate(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET is_active=0, updated_at=NOW() WHERE id=?", id)
	return err
}

func (r *UserRepo) scanOne(row *sql.Row) (model.User, error) {
	var u model.User
	var phone sql.NullString
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &phone,
		&u.AvatarURL, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	if phone.Valid {
		u.Phone = &phone.String
	}
	return u, nil
}
