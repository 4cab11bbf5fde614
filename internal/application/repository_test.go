package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rev2018/placement-tracker/internal/database"
	"github.com/rev2018/placement-tracker/internal/database/dbtest"
	"github.com/rev2018/placement-tracker/internal/errcode"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestRepository(t *testing.T) (*Repository, *gorm.DB, *fakeClock) {
	t.Helper()
	db := dbtest.Open(t)
	clock := &fakeClock{t: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
	repo := NewRepository(db)
	repo.now = clock.Now
	return repo, db, clock
}

func seedUser(t *testing.T, db *gorm.DB, email string) uint {
	t.Helper()
	user := database.User{FullName: "Test User", Email: email, PasswordHash: "x", CreatedAt: time.Now().UTC()}
	require.NoError(t, db.Create(&user).Error)
	return user.ID
}

func validFields(company, role string) Fields {
	return Fields{
		CompanyName: company,
		Role:        role,
		Status:      "Interview",
		AppliedDate: "2024-01-01",
	}
}

func TestCreate_DefaultsStatusToApplied(t *testing.T) {
	repo, db, _ := newTestRepository(t)
	ctx := context.Background()
	userID := seedUser(t, db, "a@x.com")

	id, err := repo.Create(ctx, userID, Fields{CompanyName: "Acme", Role: "SWE", Status: "", AppliedDate: "2024-01-01"})
	require.NoError(t, err)

	app, err := repo.Get(ctx, userID, id)
	require.NoError(t, err)
	assert.Equal(t, StatusApplied, app.Status)
	assert.Equal(t, "Acme", app.CompanyName)
	assert.Equal(t, "SWE", app.Role)
	assert.Equal(t, "2024-01-01", app.AppliedDate)
	assert.Empty(t, app.NextRoundDate)
	assert.Empty(t, app.Notes)
	assert.Empty(t, app.ResumeLink)
	assert.True(t, app.CreatedAt.Equal(app.UpdatedAt))
}

func TestCreate_UnknownStatusFallsBack(t *testing.T) {
	repo, db, _ := newTestRepository(t)
	ctx := context.Background()
	userID := seedUser(t, db, "a@x.com")

	f := validFields("Acme", "SWE")
	f.Status = "Ghosted"
	id, err := repo.Create(ctx, userID, f)
	require.NoError(t, err)

	app, err := repo.Get(ctx, userID, id)
	require.NoError(t, err)
	assert.Equal(t, StatusApplied, app.Status)
}

func TestCreate_BlankOptionalFieldsStoredAsNull(t *testing.T) {
	repo, db, _ := newTestRepository(t)
	ctx := context.Background()
	userID := seedUser(t, db, "a@x.com")

	f := validFields("Acme", "SWE")
	f.Notes = "   "
	f.NextRoundDate = ""
	id, err := repo.Create(ctx, userID, f)
	require.NoError(t, err)

	var model database.Application
	require.NoError(t, db.First(&model, id).Error)
	assert.Nil(t, model.Notes)
	assert.Nil(t, model.NextRoundDate)
	assert.Nil(t, model.ResumeLink)
}

func TestCreate_ValidationKeepsAllFieldErrors(t *testing.T) {
	repo, db, _ := newTestRepository(t)
	ctx := context.Background()
	userID := seedUser(t, db, "a@x.com")

	_, err := repo.Create(ctx, userID, Fields{NextRoundDate: "next week"})
	var verr *errcode.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "company_name")
	assert.Contains(t, verr.Fields, "role")
	assert.Contains(t, verr.Fields, "applied_date")
	assert.Contains(t, verr.Fields, "next_round_date")

	_, err = repo.Create(ctx, userID, Fields{CompanyName: "Acme", Role: "SWE", AppliedDate: "01/02/2024"})
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "applied_date")

	var count int64
	require.NoError(t, db.Model(&database.Application{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestUpdate_RoundTrip(t *testing.T) {
	repo, db, _ := newTestRepository(t)
	ctx := context.Background()
	userID := seedUser(t, db, "a@x.com")

	id, err := repo.Create(ctx, userID, validFields("Acme", "SWE"))
	require.NoError(t, err)
	before, err := repo.Get(ctx, userID, id)
	require.NoError(t, err)

	update := Fields{
		CompanyName:   "Acme Corp",
		Role:          "Senior SWE",
		Status:        "Selected",
		AppliedDate:   "2024-01-02",
		NextRoundDate: "2024-02-01",
		Notes:         "offer call, bring \"questions\"",
		ResumeLink:    "https://example.com/cv.pdf",
	}
	require.NoError(t, repo.Update(ctx, userID, id, update))

	after, err := repo.Get(ctx, userID, id)
	require.NoError(t, err)
	assert.Equal(t, update.CompanyName, after.CompanyName)
	assert.Equal(t, update.Role, after.Role)
	assert.Equal(t, StatusSelected, after.Status)
	assert.Equal(t, update.AppliedDate, after.AppliedDate)
	assert.Equal(t, update.NextRoundDate, after.NextRoundDate)
	assert.Equal(t, update.Notes, after.Notes)
	assert.Equal(t, update.ResumeLink, after.ResumeLink)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))
	assert.True(t, after.CreatedAt.Equal(before.CreatedAt))
}

func TestUpdate_StrictlyIncreasesWithFrozenClock(t *testing.T) {
	repo, db, _ := newTestRepository(t)
	ctx := context.Background()
	userID := seedUser(t, db, "a@x.com")

	frozen := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return frozen }

	id, err := repo.Create(ctx, userID, validFields("Acme", "SWE"))
	require.NoError(t, err)
	before, err := repo.Get(ctx, userID, id)
	require.NoError(t, err)

	require.NoError(t, repo.Update(ctx, userID, id, validFields("Acme", "SWE")))
	after, err := repo.Get(ctx, userID, id)
	require.NoError(t, err)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))
}

func TestUpdate_ClearsOptionalFields(t *testing.T) {
	repo, db, _ := newTestRepository(t)
	ctx := context.Background()
	userID := seedUser(t, db, "a@x.com")

	f := validFields("Acme", "SWE")
	f.Notes = "first round"
	id, err := repo.Create(ctx, userID, f)
	require.NoError(t, err)

	require.NoError(t, repo.Update(ctx, userID, id, validFields("Acme", "SWE")))
	var model database.Application
	require.NoError(t, db.First(&model, id).Error)
	assert.Nil(t, model.Notes)
}

func TestUpdate_Validation(t *testing.T) {
	repo, db, _ := newTestRepository(t)
	ctx := context.Background()
	userID := seedUser(t, db, "a@x.com")

	id, err := repo.Create(ctx, userID, validFields("Acme", "SWE"))
	require.NoError(t, err)

	err = repo.Update(ctx, userID, id, Fields{CompanyName: "Acme"})
	var verr *errcode.ValidationError
	require.ErrorAs(t, err, &verr)

	app, err := repo.Get(ctx, userID, id)
	require.NoError(t, err)
	assert.Equal(t, "SWE", app.Role)
}

func TestCrossUserAccessNeverSucceeds(t *testing.T) {
	repo, db, _ := newTestRepository(t)
	ctx := context.Background()
	alice := seedUser(t, db, "alice@x.com")
	bob := seedUser(t, db, "bob@x.com")

	id, err := repo.Create(ctx, alice, validFields("Acme", "SWE"))
	require.NoError(t, err)

	_, err = repo.Get(ctx, bob, id)
	assert.ErrorIs(t, err, ErrNotFound)

	err = repo.Update(ctx, bob, id, validFields("Hijacked", "SWE"))
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.Delete(ctx, bob, id))

	app, err := repo.Get(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, "Acme", app.CompanyName)

	bobs, err := repo.List(ctx, bob, Filter{})
	require.NoError(t, err)
	assert.Empty(t, bobs)
}

func TestDelete_IsIdempotent(t *testing.T) {
	repo, db, _ := newTestRepository(t)
	ctx := context.Background()
	userID := seedUser(t, db, "a@x.com")

	id, err := repo.Create(ctx, userID, validFields("Acme", "SWE"))
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, userID, id))
	require.NoError(t, repo.Delete(ctx, userID, id))
	require.NoError(t, repo.Delete(ctx, userID, id+999))

	_, err = repo.Get(ctx, userID, id)
	assert.ErrorIs(t, err, ErrNotFound)

	err = repo.Update(ctx, userID, id, validFields("Acme", "SWE"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList_OrderedByMostRecentlyUpdated(t *testing.T) {
	repo, db, _ := newTestRepository(t)
	ctx := context.Background()
	userID := seedUser(t, db, "a@x.com")

	first, err := repo.Create(ctx, userID, validFields("First", "SWE"))
	require.NoError(t, err)
	second, err := repo.Create(ctx, userID, validFields("Second", "SWE"))
	require.NoError(t, err)
	third, err := repo.Create(ctx, userID, validFields("Third", "SWE"))
	require.NoError(t, err)

	require.NoError(t, repo.Update(ctx, userID, first, validFields("First", "SWE")))

	items, err := repo.List(ctx, userID, Filter{})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []uint{first, third, second}, []uint{items[0].ID, items[1].ID, items[2].ID})
}

func TestList_TiesBrokenByID(t *testing.T) {
	repo, db, _ := newTestRepository(t)
	ctx := context.Background()
	userID := seedUser(t, db, "a@x.com")

	frozen := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return frozen }

	a, err := repo.Create(ctx, userID, validFields("A", "SWE"))
	require.NoError(t, err)
	b, err := repo.Create(ctx, userID, validFields("B", "SWE"))
	require.NoError(t, err)

	items, err := repo.List(ctx, userID, Filter{})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, b, items[0].ID)
	assert.Equal(t, a, items[1].ID)
}

func TestList_SearchIsCaseInsensitiveAcrossCompanyAndRole(t *testing.T) {
	repo, db, _ := newTestRepository(t)
	ctx := context.Background()
	userID := seedUser(t, db, "a@x.com")

	acme := validFields("Acme", "SWE")
	acme.Status = "Rejected"
	_, err := repo.Create(ctx, userID, acme)
	require.NoError(t, err)
	_, err = repo.Create(ctx, userID, validFields("Globex", "Data Scientist"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, userID, validFields("Initech", "Backend Engineer"))
	require.NoError(t, err)

	items, err := repo.List(ctx, userID, NewFilter("CME", ""))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Acme", items[0].CompanyName)

	// 子串匹配，不做模糊或子序列匹配
	items, err = repo.List(ctx, userID, NewFilter("aci", ""))
	require.NoError(t, err)
	assert.Empty(t, items)

	items, err = repo.List(ctx, userID, NewFilter("SCIENT", "Bogus"))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Globex", items[0].CompanyName)
}

func TestList_SearchTreatsWildcardsLiterally(t *testing.T) {
	repo, db, _ := newTestRepository(t)
	ctx := context.Background()
	userID := seedUser(t, db, "a@x.com")

	_, err := repo.Create(ctx, userID, validFields("100% Remote", "SWE"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, userID, validFields("Acme", "SWE"))
	require.NoError(t, err)

	items, err := repo.List(ctx, userID, NewFilter("%", ""))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "100% Remote", items[0].CompanyName)

	items, err = repo.List(ctx, userID, NewFilter("_", ""))
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestList_StatusFilter(t *testing.T) {
	repo, db, _ := newTestRepository(t)
	ctx := context.Background()
	userID := seedUser(t, db, "a@x.com")

	for i, status := range []string{"Applied", "Interview", "Interview", "Selected"} {
		f := validFields(fmt.Sprintf("Company %d", i), "SWE")
		f.Status = status
		_, err := repo.Create(ctx, userID, f)
		require.NoError(t, err)
	}

	items, err := repo.List(ctx, userID, NewFilter("", "Interview"))
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = repo.List(ctx, userID, NewFilter("", "interview"))
	require.NoError(t, err)
	assert.Len(t, items, 4, "unknown status value means no filter")
}

func TestSummarize_SumsToTotalAndMatchesList(t *testing.T) {
	repo, db, _ := newTestRepository(t)
	ctx := context.Background()
	userID := seedUser(t, db, "a@x.com")
	other := seedUser(t, db, "b@x.com")

	statuses := []string{"Applied", "Test", "Selected", "Selected", "Rejected", ""}
	for i, status := range statuses {
		f := validFields(fmt.Sprintf("Company %d", i), "SWE")
		f.Status = status
		_, err := repo.Create(ctx, userID, f)
		require.NoError(t, err)
	}
	_, err := repo.Create(ctx, other, validFields("Elsewhere", "SWE"))
	require.NoError(t, err)

	summary, err := repo.Summarize(ctx, userID)
	require.NoError(t, err)

	assert.Len(t, summary.Counts, 5)
	assert.EqualValues(t, 2, summary.Counts[StatusApplied])
	assert.EqualValues(t, 1, summary.Counts[StatusTest])
	assert.EqualValues(t, 0, summary.Counts[StatusInterview])
	assert.EqualValues(t, 2, summary.Counts[StatusSelected])
	assert.EqualValues(t, 1, summary.Counts[StatusRejected])
	assert.EqualValues(t, 2, summary.Selected)

	var sum int64
	for _, n := range summary.Counts {
		sum += n
	}
	assert.Equal(t, summary.Total, sum)

	items, err := repo.List(ctx, userID, Filter{})
	require.NoError(t, err)
	assert.EqualValues(t, len(items), summary.Total)
}

func TestSummarize_EmptyUser(t *testing.T) {
	repo, db, _ := newTestRepository(t)
	userID := seedUser(t, db, "a@x.com")

	summary, err := repo.Summarize(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, summary.Counts, 5)
	assert.Zero(t, summary.Total)
	assert.Zero(t, summary.Selected)
}
