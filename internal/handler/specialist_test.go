package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/kidspro/kids-specialists/internal/middleware"
	"github.com/kidspro/kids-specialists/internal/model"
)

type specialistFixture struct {
	handler     *SpecialistHandler
	users       *fakeUsers
	specialists *fakeSpecialists
	files       *fakeFiles
	events      *fakeEvents
}

func newSpecialistFixture() *specialistFixture {
	users := newFakeUsers()
	specialists := newFakeSpecialists()
	files := &fakeFiles{}
	events := &fakeEvents{}
	return &specialistFixture{
		handler:     NewSpecialistHandler(specialists, users, files, events),
		users:       users,
		specialists: specialists,
		files:       files,
		events:      events,
	}
}

func asUser(u model.User) func(echo.Context) {
	return func(c echo.Context) {
		c.Set(middleware.ContextUserKey, u)
	}
}

func withParam(u model.User, name, value string) func(echo.Context) {
	return func(c echo.Context) {
		c.Set(middleware.ContextUserKey, u)
		c.SetParamNames(name)
		c.SetParamValues(value)
	}
}

const listingBody = `{
	"name": "Иван Иванов",
	"specialty": "Логопед",
	"category": "Логопеды",
	"location": "Москва",
	"experience": 5,
	"rating": 4.5,
	"price_per_hour": 1500
}`

func TestPublishPromotesUserExactlyOnce(t *testing.T) {
	f := newSpecialistFixture()
	u := f.users.add(model.User{Email: "a@b.ru", FullName: "Иван Иванов", Role: model.RoleUser, IsActive: true})

	code, env := call(t, f.handler.Create, http.MethodPost, "/v1/specialists", listingBody, asUser(u))
	assert.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "profile created and pending approval", env.Message)

	var resp specialistResponse
	assert.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.False(t, resp.IsApproved, "non-admin listings await review")
	assert.Equal(t, u.ID, resp.UserID)

	assert.Equal(t, model.RoleSpecialist, f.users.byID[u.ID].Role)
	assert.Equal(t, 1, f.users.promoted[u.ID])

	if assert.Len(t, f.events.published, 1) {
		assert.True(t, f.events.published[0].Promoted)
		assert.Equal(t, resp.ID, f.events.published[0].SpecialistID)
	}

	// Publishing again is not a second promotion.
	u = f.users.byID[u.ID]
	code, _ = call(t, f.handler.Create, http.MethodPost, "/v1/specialists", listingBody, asUser(u))
	assert.Equal(t, http.StatusCreated, code)
	assert.Equal(t, 1, f.users.promoted[u.ID])
	if assert.Len(t, f.events.published, 2) {
		assert.False(t, f.events.published[1].Promoted)
	}
}

func TestPublishByAdminIsPreApproved(t *testing.T) {
	f := newSpecialistFixture()
	admin := f.users.add(model.User{Email: "root@b.ru", FullName: "Админ Админов", Role: model.RoleAdmin, IsActive: true})

	code, env := call(t, f.handler.Create, http.MethodPost, "/v1/specialists", listingBody, asUser(admin))
	assert.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "specialist created", env.Message)

	var resp specialistResponse
	assert.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.True(t, resp.IsApproved)
	assert.Equal(t, model.RoleAdmin, f.users.byID[admin.ID].Role, "admins are never demoted or promoted")
	assert.Zero(t, f.users.promoted[admin.ID])
}

func TestPublishAppliesDefaultsAndBounds(t *testing.T) {
	f := newSpecialistFixture()
	u := f.users.add(model.User{Email: "a@b.ru", FullName: "Мария Кузнецова", Role: model.RoleUser, IsActive: true})

	body := `{"specialty":"Психолог","location":"Казань","rating":7.5,"experience":-3,"price_per_hour":-100}`
	code, env := call(t, f.handler.Create, http.MethodPost, "/v1/specialists", body, asUser(u))
	assert.Equal(t, http.StatusCreated, code)

	var resp specialistResponse
	assert.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "Мария Кузнецова", resp.Name, "blank name falls back to the author's display name")
	assert.Equal(t, "Другое", resp.Category)
	assert.Equal(t, 5.0, resp.Rating, "rating is clamped to the 0..5 scale")
	assert.Zero(t, resp.Experience)
	assert.Zero(t, resp.PricePerHour)
	assert.Equal(t, model.DefaultAvatarURL, resp.AvatarURL)
}

func TestPublishRequiresSpecialtyAndLocation(t *testing.T) {
	f := newSpecialistFixture()
	u := f.users.add(model.User{Email: "a@b.ru", FullName: "Иван Иванов", Role: model.RoleUser, IsActive: true})

	code, env := call(t, f.handler.Create, http.MethodPost, "/v1/specialists", `{"name":"Иван Иванов"}`, asUser(u))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation failed", env.Message)
	fields := map[string]bool{}
	for _, fe := range env.Errors {
		fields[fe.Field] = true
	}
	assert.True(t, fields["specialty"])
	assert.True(t, fields["location"])
	assert.Equal(t, model.RoleUser, f.users.byID[u.ID].Role, "a rejected publish must not promote")
}

func TestUpdateIsOwnerOrAdminOnly(t *testing.T) {
	f := newSpecialistFixture()
	owner := f.users.add(model.User{Email: "a@b.ru", FullName: "Иван", Role: model.RoleSpecialist, IsActive: true})
	other := f.users.add(model.User{Email: "b@b.ru", FullName: "Пётр", Role: model.RoleSpecialist, IsActive: true})
	admin := f.users.add(model.User{Email: "c@b.ru", FullName: "Админ", Role: model.RoleAdmin, IsActive: true})
	s := f.specialists.add(model.Specialist{Name: "Иван", Specialty: "Логопед", Location: "Москва", UserID: owner.ID, CreatedBy: owner.ID})

	code, env := call(t, f.handler.Update, http.MethodPut, "/v1/specialists/1", listingBody, withParam(other, "id", "1"))
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "insufficient permissions", env.Message)
	assert.Equal(t, "Иван", f.specialists.byID[s.ID].Name)

	code, _ = call(t, f.handler.Update, http.MethodPut, "/v1/specialists/1", listingBody, withParam(owner, "id", "1"))
	assert.Equal(t, http.StatusOK, code)

	code, _ = call(t, f.handler.Update, http.MethodPut, "/v1/specialists/1", listingBody, withParam(admin, "id", "1"))
	assert.Equal(t, http.StatusOK, code)
}

func TestDeleteRemovesListingAndAvatarFile(t *testing.T) {
	f := newSpecialistFixture()
	admin := f.users.add(model.User{Email: "c@b.ru", FullName: "Админ", Role: model.RoleAdmin, IsActive: true})
	s := f.specialists.add(model.Specialist{
		Name: "Иван", Specialty: "Логопед", AvatarURL: "/uploads/avatars/x.jpg",
		UserID: 42, CreatedBy: 42,
	})

	code, env := call(t, f.handler.Delete, http.MethodDelete, "/v1/specialists/1", "", withParam(admin, "id", "1"))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "specialist deleted", env.Message)
	assert.NotContains(t, f.specialists.byID, s.ID)
	assert.Equal(t, []string{"/uploads/avatars/x.jpg"}, f.files.deleted)
}

func TestGetListingErrors(t *testing.T) {
	f := newSpecialistFixture()

	code, env := call(t, f.handler.Get, http.MethodGet, "/v1/specialists/abc", "", func(c echo.Context) {
		c.SetParamNames("id")
		c.SetParamValues("abc")
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid id", env.Message)

	code, env = call(t, f.handler.Get, http.MethodGet, "/v1/specialists/99", "", func(c echo.Context) {
		c.SetParamNames("id")
		c.SetParamValues("99")
	})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "specialist not found", env.Message)
}

func TestMineListsOnlyOwnListings(t *testing.T) {
	f := newSpecialistFixture()
	u := f.users.add(model.User{Email: "a@b.ru", FullName: "Иван", Role: model.RoleSpecialist, IsActive: true})
	f.specialists.add(model.Specialist{Name: "Иван", Specialty: "Логопед", UserID: u.ID, CreatedBy: u.ID})
	f.specialists.add(model.Specialist{Name: "Чужая", Specialty: "Психолог", UserID: 99, CreatedBy: 99})

	code, env := call(t, f.handler.Mine, http.MethodGet, "/v1/specialists/mine", "", asUser(u))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, env.Total)

	var list []specialistResponse
	assert.NoError(t, json.Unmarshal(env.Data, &list))
	if assert.Len(t, list, 1) {
		assert.Equal(t, "Иван", list[0].Name)
	}
}

func TestAvatarReplaceAndReset(t *testing.T) {
	f := newSpecialistFixture()
	owner := f.users.add(model.User{Email: "a@b.ru", FullName: "Иван", Role: model.RoleSpecialist, IsActive: true})
	s := f.specialists.add(model.Specialist{
		Name: "Иван", Specialty: "Логопед", AvatarURL: "/uploads/avatars/old.jpg",
		UserID: owner.ID, CreatedBy: owner.ID,
	})

	// Replacing requires a multipart file.
	code, env := call(t, f.handler.UpdateAvatar, http.MethodPut, "/v1/specialists/1/avatar", "", withParam(owner, "id", "1"))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "file is required", env.Message)

	// Resetting restores the default image and discards the stored file.
	code, env = call(t, f.handler.DeleteAvatar, http.MethodDelete, "/v1/specialists/1/avatar", "", withParam(owner, "id", "1"))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "avatar removed", env.Message)
	assert.Equal(t, model.DefaultAvatarURL, f.specialists.byID[s.ID].AvatarURL)
	assert.Equal(t, []string{"/uploads/avatars/old.jpg"}, f.files.deleted)
}
