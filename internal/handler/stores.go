package handler

import (
	"context"
	"time"

	"github.com/kidspro/kids-specialists/internal/model"
)

// The handlers depend on these narrow store contracts instead of the
// concrete repositories so the request flows can be tested against
// in-memory fakes. The repository types satisfy them directly.

// UserStore is the credential store contract.
type UserStore interface {
	Create(ctx context.Context, email, passwordHash, fullName string, phone *string) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	UpdateProfile(ctx context.Context, id uint64, fullName, phone *string) (model.User, error)
	PromoteToSpecialist(ctx context.Context, id uint64) error
	Deactivate(ctx context.Context, id uint64) error
}

// SessionLedger is the refresh-token store contract.
type SessionLedger interface {
	Store(ctx context.Context, userID uint64, token string, expiresAt time.Time) error
	Validate(ctx context.Context, token string) (model.SessionOwner, error)
	Delete(ctx context.Context, token string) error
	DeleteAllForUser(ctx context.Context, userID uint64) error
	PruneToMostRecent(ctx context.Context, userID uint64, limit int) error
}

// SpecialistStore is the listing store contract.
type SpecialistStore interface {
	Search(ctx context.Context, search, categorySlug string) ([]model.Specialist, error)
	GetByID(ctx context.Context, id uint64) (model.Specialist, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Specialist, error)
	Create(ctx context.Context, s model.Specialist) (model.Specialist, error)
	Update(ctx context.Context, s model.Specialist) (model.Specialist, error)
	Delete(ctx context.Context, id uint64) error
	UpdateAvatar(ctx context.Context, id uint64, avatarURL string) (model.Specialist, error)
	SyncAuthoredName(ctx context.Context, userID uint64, name string) error
}

// CategoryStore is the category reference-table contract.
type CategoryStore interface {
	List(ctx context.Context) ([]model.Category, error)
	GetBySlug(ctx context.Context, slug string) (model.Category, error)
}
