package handler

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/kidspro/kids-specialists/internal/model"
	"github.com/kidspro/kids-specialists/internal/queue"
	"github.com/kidspro/kids-specialists/internal/repository"
	"github.com/kidspro/kids-specialists/internal/service"
)

// In-memory doubles for the store contracts. They reproduce the
// repositories' observable behavior (sentinel errors, guarded updates,
// prune ordering) without a database.

type fakeUsers struct {
	byID     map[uint64]model.User
	nextID   uint64
	promoted map[uint64]int // promotion attempts that actually flipped the role
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[uint64]model.User{}, promoted: map[uint64]int{}}
}

func (f *fakeUsers) add(u model.User) model.User {
	if u.ID == 0 {
		f.nextID++
		u.ID = f.nextID
	} else if u.ID > f.nextID {
		f.nextID = u.ID
	}
	f.byID[u.ID] = u
	return u
}

func (f *fakeUsers) Create(_ context.Context, email, passwordHash, fullName string, phone *string) (model.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			return model.User{}, repository.ErrEmailExists
		}
	}
	return f.add(model.User{
		Email:        email,
		PasswordHash: passwordHash,
		FullName:     fullName,
		Phone:        phone,
		AvatarURL:    model.DefaultAvatarURL,
		Role:         model.RoleUser,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}), nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) UpdateProfile(_ context.Context, id uint64, fullName, phone *string) (model.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	if fullName != nil {
		u.FullName = *fullName
	}
	if phone != nil {
		if *phone == "" {
			u.Phone = nil
		} else {
			p := *phone
			u.Phone = &p
		}
	}
	f.byID[id] = u
	return u, nil
}

// PromoteToSpecialist mirrors the guarded UPDATE: only a plain user is
// promoted, anything else is a silent no-op.
func (f *fakeUsers) PromoteToSpecialist(_ context.Context, id uint64) error {
	u, ok := f.byID[id]
	if !ok {
		return nil
	}
	if u.Role == model.RoleUser {
		u.Role = model.RoleSpecialist
		f.byID[id] = u
		f.promoted[id]++
	}
	return nil
}

func (f *fakeUsers) Deactivate(_ context.Context, id uint64) error {
	u, ok := f.byID[id]
	if !ok {
		return nil
	}
	u.IsActive = false
	f.byID[id] = u
	return nil
}

type sessionRec struct {
	userID    uint64
	token     string
	expiresAt time.Time
	seq       int // insertion order stands in for created_at
}

type fakeSessions struct {
	users   *fakeUsers
	records []sessionRec
	seq     int
}

func newFakeSessions(users *fakeUsers) *fakeSessions {
	return &fakeSessions{users: users}
}

func (f *fakeSessions) forUser(userID uint64) []sessionRec {
	var out []sessionRec
	for _, r := range f.records {
		if r.userID == userID {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeSessions) has(token string) bool {
	for _, r := range f.records {
		if r.token == token {
			return true
		}
	}
	return false
}

func (f *fakeSessions) Store(_ context.Context, userID uint64, token string, expiresAt time.Time) error {
	f.seq++
	f.records = append(f.records, sessionRec{userID: userID, token: token, expiresAt: expiresAt, seq: f.seq})
	return nil
}

func (f *fakeSessions) Validate(_ context.Context, token string) (model.SessionOwner, error) {
	for _, r := range f.records {
		if r.token == token && r.expiresAt.After(time.Now()) {
			u, ok := f.users.byID[r.userID]
			if !ok {
				return model.SessionOwner{}, repository.ErrNotFound
			}
			return model.SessionOwner{UserID: u.ID, Email: u.Email, Role: u.Role, IsActive: u.IsActive}, nil
		}
	}
	return model.SessionOwner{}, repository.ErrNotFound
}

func (f *fakeSessions) Delete(_ context.Context, token string) error {
	out := f.records[:0]
	for _, r := range f.records {
		if r.token != token {
			out = append(out, r)
		}
	}
	f.records = out
	return nil
}

func (f *fakeSessions) DeleteAllForUser(_ context.Context, userID uint64) error {
	out := f.records[:0]
	for _, r := range f.records {
		if r.userID != userID {
			out = append(out, r)
		}
	}
	f.records = out
	return nil
}

func (f *fakeSessions) PruneToMostRecent(_ context.Context, userID uint64, limit int) error {
	mine := f.forUser(userID)
	if len(mine) <= limit {
		return nil
	}
	sort.Slice(mine, func(i, j int) bool { return mine[i].seq > mine[j].seq })
	evict := map[int]bool{}
	for _, r := range mine[limit:] {
		evict[r.seq] = true
	}
	out := f.records[:0]
	for _, r := range f.records {
		if !evict[r.seq] {
			out = append(out, r)
		}
	}
	f.records = out
	return nil
}

type fakeSpecialists struct {
	byID   map[uint64]model.Specialist
	nextID uint64
	synced []string // names passed to SyncAuthoredName
}

func newFakeSpecialists() *fakeSpecialists {
	return &fakeSpecialists{byID: map[uint64]model.Specialist{}}
}

func (f *fakeSpecialists) add(s model.Specialist) model.Specialist {
	if s.ID == 0 {
		f.nextID++
		s.ID = f.nextID
	} else if s.ID > f.nextID {
		f.nextID = s.ID
	}
	f.byID[s.ID] = s
	return s
}

func (f *fakeSpecialists) Search(_ context.Context, search, categorySlug string) ([]model.Specialist, error) {
	var out []model.Specialist
	for _, s := range f.byID {
		if search != "" {
			needle := strings.ToLower(search)
			if !strings.Contains(strings.ToLower(s.Name), needle) &&
				!strings.Contains(strings.ToLower(s.Specialty), needle) {
				continue
			}
		}
		if categorySlug != "" && s.Category != categorySlug {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeSpecialists) GetByID(_ context.Context, id uint64) (model.Specialist, error) {
	s, ok := f.byID[id]
	if !ok {
		return model.Specialist{}, repository.ErrNotFound
	}
	return s, nil
}

func (f *fakeSpecialists) ListByUser(_ context.Context, userID uint64) ([]model.Specialist, error) {
	var out []model.Specialist
	for _, s := range f.byID {
		if s.CreatedBy == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeSpecialists) Create(_ context.Context, s model.Specialist) (model.Specialist, error) {
	s.CreatedAt = time.Now().UTC()
	return f.add(s), nil
}

func (f *fakeSpecialists) Update(_ context.Context, s model.Specialist) (model.Specialist, error) {
	if _, ok := f.byID[s.ID]; !ok {
		return model.Specialist{}, repository.ErrNotFound
	}
	f.byID[s.ID] = s
	return s, nil
}

func (f *fakeSpecialists) Delete(_ context.Context, id uint64) error {
	if _, ok := f.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeSpecialists) UpdateAvatar(_ context.Context, id uint64, avatarURL string) (model.Specialist, error) {
	s, ok := f.byID[id]
	if !ok {
		return model.Specialist{}, repository.ErrNotFound
	}
	s.AvatarURL = avatarURL
	f.byID[id] = s
	return s, nil
}

func (f *fakeSpecialists) SyncAuthoredName(_ context.Context, userID uint64, name string) error {
	f.synced = append(f.synced, name)
	for id, s := range f.byID {
		if s.CreatedBy == userID {
			s.Name = name
			f.byID[id] = s
		}
	}
	return nil
}

type fakeVerifier struct {
	deliverable bool
	reason      string
	checked     []string
}

func (f *fakeVerifier) Check(_ context.Context, email string) service.DeliverabilityResult {
	f.checked = append(f.checked, email)
	return service.DeliverabilityResult{Deliverable: f.deliverable, Reason: f.reason}
}

type fakeFiles struct {
	saves   int
	deleted []string
}

func (f *fakeFiles) Save(ext string, _ io.Reader) (string, error) {
	f.saves++
	return fmt.Sprintf("/uploads/avatars/fake-%d%s", f.saves, ext), nil
}

func (f *fakeFiles) Delete(url string) error {
	f.deleted = append(f.deleted, url)
	return nil
}

type fakeEvents struct {
	published []queue.SpecialistPublishedEvent
}

func (f *fakeEvents) PublishSpecialistPublished(_ context.Context, ev queue.SpecialistPublishedEvent) error {
	f.published = append(f.published, ev)
	return nil
}
