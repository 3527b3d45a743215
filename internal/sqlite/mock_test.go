package sqlite

import (
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/larder/pkg/larder"
	"github.com/mesh-intelligence/larder/pkg/model"
	"github.com/mesh-intelligence/larder/pkg/types"
)

func mockHarness(t *testing.T) (*harness, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	m, err := model.Parse([]byte(testModelXML), model.FormatXML, "")
	require.NoError(t, err)
	store := NewStoreWithDB(db)
	coord := larder.NewCoordinator(m)
	coord.AddStore(store)
	return &harness{
		model:  m,
		store:  store,
		coord:  coord,
		ctx:    larder.NewContext(coord),
		person: m.EntityWithName("Person"),
		pet:    m.EntityWithName("Pet"),
		badge:  m.EntityWithName("Badge"),
	}, mock
}

func expectSchemaVersion(mock sqlmock.Sqlmock, version string) {
	mock.ExpectQuery(regexp.QuoteMeta(queryMetadataTable)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow(MetadataTable))
	mock.ExpectQuery(regexp.QuoteMeta(queryVersion)).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(version))
}

func TestBootstrapFailureRollsBack(t *testing.T) {
	h, mock := mockHarness(t)
	mock.ExpectQuery(regexp.QuoteMeta(queryMetadataTable)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE "People"`)).
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	_, err := h.ctx.Fetch(h.person, "")
	require.Error(t, err)
	var pse *types.PersistentStoreError
	require.ErrorAs(t, err, &pse)
	assert.Equal(t, "bootstrap", pse.Op)
	assert.Contains(t, pse.Query, `CREATE TABLE "People"`)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, int64(1), h.store.Stats().Errors)
}

func TestInsertFailureIsReported(t *testing.T) {
	h, mock := mockHarness(t)
	expectSchemaVersion(mock, "1")
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "People" ("name", "age") VALUES (?, ?)`)).
		WithArgs("Ann", int64(30)).
		WillReturnError(errors.New("constraint failed"))

	h.newPerson(t, "Ann")
	saved, err := h.ctx.Save()
	assert.False(t, saved)
	var pse *types.PersistentStoreError
	require.ErrorAs(t, err, &pse)
	assert.Equal(t, "insert Person", pse.Op)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateWritesOnlyPendingValues(t *testing.T) {
	h, mock := mockHarness(t)
	expectSchemaVersion(mock, "1")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "People" WHERE "objectID" = ?`)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"objectID", "name", "age", "score", "active", "born", "photo"}).
			AddRow(int64(7), "Ann", int64(41), nil, int64(0), nil, nil))
	for range h.person.Relationships() {
		mock.ExpectQuery(`SELECT "[0-9a-f_inverse]+" FROM "Z_[0-9A-F]+"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
	}
	expectSchemaVersion(mock, "1")
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "People" SET "active" = ? WHERE "objectID" = ?`)).
		WithArgs(int64(1), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ann := h.ctx.NewObjectWithID(h.person, 7)
	require.NoError(t, ann.SetValue("active", true))
	age, err := ann.Value("age")
	require.NoError(t, err)
	assert.Equal(t, int64(41), age)
	h.save(t)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStructureIncompatible(t *testing.T) {
	h, mock := mockHarness(t)
	expectSchemaVersion(mock, "1")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "People" WHERE "objectID" = ?`)).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"objectID", "name", "nickname"}).AddRow(int64(3), "Ann", "A"))

	err := h.ctx.NewObjectWithID(h.person, 3).FireFault()
	assert.ErrorIs(t, err, types.ErrStructureIncompatible)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMetadataWithoutVersion(t *testing.T) {
	h, mock := mockHarness(t)
	mock.ExpectQuery(regexp.QuoteMeta(queryMetadataTable)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow(MetadataTable))
	mock.ExpectQuery(regexp.QuoteMeta(queryVersion)).
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	_, err := h.ctx.Fetch(h.person, "")
	assert.ErrorIs(t, err, types.ErrStructureIncompatible)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVersionMismatchMock(t *testing.T) {
	h, mock := mockHarness(t)
	expectSchemaVersion(mock, "0")

	_, err := h.ctx.Fetch(h.person, "")
	assert.ErrorIs(t, err, types.ErrMigrationUnsupported)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkFailureIsReported(t *testing.T) {
	h, mock := mockHarness(t)
	expectSchemaVersion(mock, "1")
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "People" ("name", "age") VALUES (?, ?)`)).
		WithArgs("Ann", int64(30)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "Badges" DEFAULT VALUES`)).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec(`INSERT INTO "Z_[0-9A-F]+"`).
		WithArgs(int64(1), int64(2)).
		WillReturnError(errors.New("database is locked"))

	ann := h.newPerson(t, "Ann")
	require.NoError(t, ann.Add("badges", h.ctx.NewObject(h.badge)))
	_, err := h.ctx.Save()
	var pse *types.PersistentStoreError
	require.ErrorAs(t, err, &pse)
	assert.Equal(t, "link Person.badges", pse.Op)
	assert.True(t, ann.HasChanges(), "failed link stays pending")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteFailureIsReported(t *testing.T) {
	h, mock := mockHarness(t)
	expectSchemaVersion(mock, "1")
	expectSchemaVersion(mock, "1")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "People" WHERE "objectID" = ?`)).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"objectID", "name", "age", "score", "active", "born", "photo"}).
			AddRow(int64(5), "Ann", int64(41), nil, int64(1), nil, nil))
	for range h.person.Relationships() {
		mock.ExpectQuery(`SELECT "[0-9a-f_inverse]+" FROM "Z_[0-9A-F]+"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
	}
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "People" WHERE "objectID" = ?`)).
		WithArgs(int64(5)).
		WillReturnError(errors.New("disk full"))

	require.NoError(t, h.ctx.Delete(h.ctx.NewObjectWithID(h.person, 5)))
	_, err := h.ctx.Save()
	var pse *types.PersistentStoreError
	require.ErrorAs(t, err, &pse)
	assert.Equal(t, "delete Person", pse.Op)
	assert.Len(t, h.ctx.DeletedObjects(), 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFailedLinkLeavesBothSidesPending(t *testing.T) {
	h, mock := mockHarness(t)
	expectSchemaVersion(mock, "1")
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "People" ("name", "age") VALUES (?, ?)`)).
		WithArgs("Ann", int64(30)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "Pets" ("name") VALUES (?)`)).
		WithArgs("Rex").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec(`INSERT INTO "Z_[0-9A-F]+"`).
		WithArgs(int64(1), int64(2)).
		WillReturnError(errors.New("database is locked"))

	ann := h.newPerson(t, "Ann")
	rex := h.ctx.NewObject(h.pet)
	require.NoError(t, rex.SetValue("name", "Rex"))
	require.NoError(t, ann.Add("pets", rex))
	_, err := h.ctx.Save()
	require.Error(t, err)

	pets, owner := h.person.Relationship("pets"), h.pet.Relationship("owner")
	assert.False(t, rex.IsSavingInserted(owner, ann))
	assert.True(t, rex.HasPendingInsert(owner, ann))
	assert.True(t, ann.HasPendingInsert(pets, rex))
	assert.NoError(t, mock.ExpectationsWereMet())
}
