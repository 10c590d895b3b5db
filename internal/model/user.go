package model

import "time"

// Roles a user account can hold.  A user starts as RoleUser, becomes
// RoleSpecialist the first time they publish a listing, and RoleAdmin is
// provisioned out-of-band.  There is no demotion path.
const (
	RoleUser       = "user"
	RoleSpecialist = "specialist"
	RoleAdmin      = "admin"
)

// DefaultAvatarURL is the sentinel avatar assigned to new users and
// restored when an uploaded avatar is removed.
const DefaultAvatarURL = "/uploads/avatars/default.jpg"

// User represents an application user record as stored in the `users`
// table.  PasswordHash never leaves the repository/handler boundary; the
// handlers expose separate response types with JSON tags.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Email        – unique, case-normalized email address (immutable).
//	PasswordHash – bcrypt hashed password.
//	FullName     – display name (trimmed, internal whitespace collapsed).
//	Phone        – optional contact phone.
//	AvatarURL    – avatar image URL, defaults to DefaultAvatarURL.
//	Role         – one of user/specialist/admin.
//	IsActive     – whether the account is active; deactivation blocks all
//	               future authentication without deleting history.
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64
	Email        string
	PasswordHash string
	FullName     string
	Phone        *string
	AvatarURL    string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RefreshToken models a row of the `refresh_tokens` session ledger.  Each
// row belongs to a user (cascade delete with the user) and stores the raw
// signed token string together with its expiry.  At most SessionLimit rows
// stay live per user; the oldest beyond the cap are evicted on insert.
type RefreshToken struct {
	ID        uint64
	UserID    uint64
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// SessionOwner is the result of validating a refresh token against the
// ledger: the joined owner identity needed to decide whether the session
// may mint a new access token.
type SessionOwner struct {
	UserID   uint64
	Email    string
	Role     string
	IsActive bool
}
