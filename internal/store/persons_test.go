package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rememberme/rememberme/internal/apperr"
	"github.com/rememberme/rememberme/internal/model"
)

func mkPerson(t *testing.T, db *DB, userID, first, last string) *model.Person {
	t.Helper()
	p := &model.Person{UserID: userID, FirstName: first, LastName: last, Importance: model.ImportanceMedium}
	require.NoError(t, db.CreatePerson(p))
	return p
}

func TestPersonCRUD(t *testing.T) {
	db := testDB(t)

	p := mkPerson(t, db, "u1", "Ada", "Lovelace")
	assert.NotEmpty(t, p.ID)
	assert.False(t, p.CreatedAt.IsZero())

	got, err := db.GetPerson("u1", p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Ada Lovelace", got.FullName())

	other, err := db.GetPerson("u2", p.ID)
	require.NoError(t, err)
	assert.Nil(t, other, "rows are scoped by user")

	got.Email = "ada@example.com"
	got.Importance = model.ImportanceHigh
	require.NoError(t, db.UpdatePerson(got))
	got, err = db.GetPerson("u1", p.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", got.Email)
	assert.Equal(t, model.ImportanceHigh, got.Importance)

	missing := &model.Person{ID: "nope", UserID: "u1", FirstName: "X", Importance: model.ImportanceLow}
	assert.True(t, apperr.Is(db.UpdatePerson(missing), apperr.KindNotFound))

	require.NoError(t, db.DeletePerson("u1", p.ID))
	got, err = db.GetPerson("u1", p.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.True(t, apperr.Is(db.DeletePerson("u1", p.ID), apperr.KindNotFound))
}

func TestListPersonsFilters(t *testing.T) {
	db := testDB(t)

	ada := mkPerson(t, db, "u1", "Ada", "Lovelace")
	bob := mkPerson(t, db, "u1", "Bob", "Stone")
	cy := mkPerson(t, db, "u1", "Cy", "Young")
	mkPerson(t, db, "u2", "Ada", "Other")

	_, err := db.AddPersonTag("u1", ada.ID, "NASA")
	require.NoError(t, err)
	_, err = db.AddPersonTag("u1", bob.ID, "nasa")
	require.NoError(t, err)
	require.NoError(t, db.SetArchived("u1", cy.ID, true))

	all, err := db.ListPersons("u1", PersonFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, []string{"NASA"}, all[0].Tags)

	withArchived, err := db.ListPersons("u1", PersonFilter{IncludeArchived: true})
	require.NoError(t, err)
	assert.Len(t, withArchived, 3)

	byQuery, err := db.ListPersons("u1", PersonFilter{Query: "love"})
	require.NoError(t, err)
	require.Len(t, byQuery, 1)
	assert.Equal(t, ada.ID, byQuery[0].ID)

	byTag, err := db.ListPersons("u1", PersonFilter{Tag: "Nasa"})
	require.NoError(t, err)
	assert.Len(t, byTag, 2)

	users, err := db.ListUsersWithPersons()
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, users)

	tags, err := db.ListTags("u1")
	require.NoError(t, err)
	require.Len(t, tags, 1, "tag names are case-insensitive")
	assert.Equal(t, 2, tags[0].Members)
}

func TestCreatePersonWithTagsIsAtomic(t *testing.T) {
	db := testDB(t)

	p := &model.Person{UserID: "u1", FirstName: "Ada"}
	require.NoError(t, db.CreatePersonWithTags(p, []string{"Work", "work", "Chess"}))
	got, err := db.RequirePerson("u1", p.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Work", "Chess"}, got.Tags)

	bad := &model.Person{UserID: "u1", FirstName: "Grace"}
	err = db.CreatePersonWithTags(bad, []string{"Navy", "   "})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	all, err := db.ListPersons("u1", PersonFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1, "a failed tag rolls back the insert")
	tags, err := db.ListTags("u1")
	require.NoError(t, err)
	assert.Len(t, tags, 2, "nor is the Navy tribe left behind")
}

func TestUpdatePersonWithTags(t *testing.T) {
	db := testDB(t)

	p := &model.Person{UserID: "u1", FirstName: "Ada"}
	require.NoError(t, db.CreatePersonWithTags(p, []string{"Work"}))

	p.LastName = "Lovelace"
	require.NoError(t, db.UpdatePersonWithTags(p, nil))
	got, err := db.RequirePerson("u1", p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Work"}, got.Tags, "nil leaves memberships alone")

	require.NoError(t, db.UpdatePersonWithTags(p, []string{"Chess"}))
	got, err = db.RequirePerson("u1", p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Chess"}, got.Tags)
	assert.Equal(t, "Lovelace", got.LastName)

	require.NoError(t, db.UpdatePersonWithTags(p, []string{}))
	got, err = db.RequirePerson("u1", p.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Tags)

	err = db.UpdatePersonWithTags(p, []string{""})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	got, err = db.RequirePerson("u1", p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lovelace", got.LastName)

	missing := &model.Person{ID: "nope", UserID: "u1", FirstName: "X", Importance: model.ImportanceLow}
	assert.True(t, apperr.Is(db.UpdatePersonWithTags(missing, []string{"Work"}), apperr.KindNotFound))
}

func TestLogInteractionAdvancesLastContact(t *testing.T) {
	db := testDB(t)
	p := mkPerson(t, db, "u1", "Ada", "")

	recent := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	older := recent.AddDate(0, -1, 0)

	require.NoError(t, db.LogInteraction(&model.Interaction{UserID: "u1", PersonID: p.ID, Kind: "call", OccurredAt: recent}))
	require.NoError(t, db.LogInteraction(&model.Interaction{UserID: "u1", PersonID: p.ID, Kind: "text", OccurredAt: older}))

	got, err := db.GetPerson("u1", p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastInteractionAt)
	assert.True(t, got.LastInteractionAt.Equal(recent), "an older interaction must not move it back")

	list, err := db.ListInteractions("u1", p.ID, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, model.InteractionKind("call"), list[0].Kind)

	require.NoError(t, db.DeleteInteraction("u1", list[0].ID))
	got, err = db.GetPerson("u1", p.ID)
	require.NoError(t, err)
	assert.True(t, got.LastInteractionAt.Equal(older))

	err = db.LogInteraction(&model.Interaction{UserID: "u2", PersonID: p.ID, Kind: "call"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestInterestsMemoriesRelationships(t *testing.T) {
	db := testDB(t)
	a := mkPerson(t, db, "u1", "Ada", "")
	b := mkPerson(t, db, "u1", "Bob", "")

	first, err := db.AddInterest("u1", a.ID, "Chess")
	require.NoError(t, err)
	again, err := db.AddInterest("u1", a.ID, "chess ")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	_, err = db.AddInterest("u1", a.ID, "  ")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	require.NoError(t, db.AddMemory("u1", &model.SharedMemory{PersonID: a.ID, Content: "Hiked Mt. Tam"}))
	mems, err := db.ListMemories("u1", a.ID)
	require.NoError(t, err)
	require.Len(t, mems, 1)

	require.NoError(t, db.CreateRelationship(&model.Relationship{UserID: "u1", PersonID: a.ID, RelatedPersonID: b.ID, Label: "sibling"}))
	err = db.CreateRelationship(&model.Relationship{UserID: "u1", PersonID: b.ID, RelatedPersonID: a.ID})
	assert.True(t, apperr.Is(err, apperr.KindConflict), "pairs are unordered")
	err = db.CreateRelationship(&model.Relationship{UserID: "u1", PersonID: a.ID, RelatedPersonID: a.ID})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	rels, err := db.ListRelationships("u1", b.ID)
	require.NoError(t, err)
	assert.Len(t, rels, 1)
}

func TestMergePersons(t *testing.T) {
	db := testDB(t)
	keeper := mkPerson(t, db, "u1", "Jon", "Smith")
	dup := &model.Person{
		UserID: "u1", FirstName: "John", LastName: "Smith", Email: "john@example.com",
		WhereMet: "Conference", Importance: model.ImportanceMedium,
	}
	require.NoError(t, db.CreatePerson(dup))
	friend := mkPerson(t, db, "u1", "Zoe", "")

	at := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.LogInteraction(&model.Interaction{UserID: "u1", PersonID: dup.ID, Kind: "call", OccurredAt: at}))
	_, err := db.AddInterest("u1", keeper.ID, "Chess")
	require.NoError(t, err)
	_, err = db.AddInterest("u1", dup.ID, "chess")
	require.NoError(t, err)
	_, err = db.AddInterest("u1", dup.ID, "Jazz")
	require.NoError(t, err)
	_, err = db.AddPersonTag("u1", keeper.ID, "Work")
	require.NoError(t, err)
	_, err = db.AddPersonTag("u1", dup.ID, "Work")
	require.NoError(t, err)
	require.NoError(t, db.CreateRelationship(&model.Relationship{UserID: "u1", PersonID: keeper.ID, RelatedPersonID: dup.ID}))
	require.NoError(t, db.CreateRelationship(&model.Relationship{UserID: "u1", PersonID: keeper.ID, RelatedPersonID: friend.ID}))
	require.NoError(t, db.CreateRelationship(&model.Relationship{UserID: "u1", PersonID: friend.ID, RelatedPersonID: dup.ID}))

	merged, err := db.MergePersons("u1", keeper.ID, []string{dup.ID})
	require.NoError(t, err)
	assert.Equal(t, "john@example.com", merged.Email)
	assert.Equal(t, "Conference", merged.WhereMet)
	require.NotNil(t, merged.LastInteractionAt)
	assert.True(t, merged.LastInteractionAt.Equal(at))
	assert.Equal(t, []string{"Chess", "Jazz"}, merged.Interests)
	assert.Equal(t, []string{"Work"}, merged.Tags)

	gone, err := db.GetPerson("u1", dup.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	list, err := db.ListInteractions("u1", keeper.ID, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	rels, err := db.ListRelationships("u1", keeper.ID)
	require.NoError(t, err)
	require.Len(t, rels, 1, "self link and repeated pair dropped")
}

func TestMergePersonsRejectsBadInput(t *testing.T) {
	db := testDB(t)
	keeper := mkPerson(t, db, "u1", "Jon", "Smith")
	dup := mkPerson(t, db, "u1", "John", "Smith")
	foreign := mkPerson(t, db, "u2", "John", "Smith")

	_, err := db.MergePersons("u1", keeper.ID, nil)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = db.MergePersons("u1", keeper.ID, []string{keeper.ID})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = db.MergePersons("u1", keeper.ID, []string{dup.ID, foreign.ID})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	still, err := db.GetPerson("u1", dup.ID)
	require.NoError(t, err)
	assert.NotNil(t, still, "failed merge leaves everything in place")
}
