package sqlite

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mesh-intelligence/larder/pkg/larder"
	"github.com/mesh-intelligence/larder/pkg/types"
)

func TestNewStoreValidatesConfig(t *testing.T) {
	_, err := NewStore(types.Config{})
	assert.ErrorIs(t, err, types.ErrBackendEmpty)

	dir := filepath.Join(t.TempDir(), "nested", "data")
	s, err := NewStore(types.Config{Backend: types.BackendSQLite, DataDir: dir})
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID())
	assert.Equal(t, filepath.Join(dir, types.DefaultDatabaseFile), s.Path())
	assert.DirExists(t, dir)
}

func TestStoreBootstrap(t *testing.T) {
	delegate := &recordingDelegate{}
	h := openHarness(t, t.TempDir(), WithDelegate(delegate))

	objs, err := h.ctx.Fetch(h.person, "")
	require.NoError(t, err)
	assert.Empty(t, objs)

	_, err = os.Stat(filepath.Join(h.dir, types.DefaultDatabaseFile))
	require.NoError(t, err)

	rows, err := h.store.db.Query(`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`)
	require.NoError(t, err)
	var tables []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		tables = append(tables, name)
	}
	require.NoError(t, rows.Close())

	friends := h.person.Relationship("friends")
	pets := h.person.Relationship("pets")
	badges := h.person.Relationship("badges")
	assert.ElementsMatch(t, []string{
		"People", "Pets", "Badges", MetadataTable,
		friends.TableName(), pets.TableName(), badges.TableName(),
	}, tables)
	assert.Equal(t, pets.TableName(), h.pet.Relationship("owner").TableName())

	_, err = h.ctx.Fetch(h.pet, "")
	require.NoError(t, err)
	require.Len(t, delegate.created, 1)
	assert.Same(t, h.store, delegate.created[0])
}

func TestStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	h := openHarness(t, dir)
	born := time.Date(2001, 2, 3, 4, 5, 6, 0, time.UTC)

	ann := h.newPerson(t, "Ann")
	require.NoError(t, ann.SetValue("score", 1.5))
	require.NoError(t, ann.SetValue("active", true))
	require.NoError(t, ann.SetValue("born", born))
	require.NoError(t, ann.SetValue("photo", []byte{1, 2, 3}))
	h.save(t)
	require.Greater(t, ann.ObjectID(), int64(0))
	assert.False(t, ann.HasChanges())

	h2 := openHarness(t, dir)
	got, err := h2.ctx.ObjectWithObjectID(h2.person, ann.ObjectID())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsFault())

	values, err := got.Values()
	require.NoError(t, err)
	assert.False(t, got.IsFault())
	assert.Equal(t, "Ann", values["name"])
	assert.Equal(t, int64(30), values["age"])
	assert.Equal(t, 1.5, values["score"])
	assert.Equal(t, true, values["active"])
	assert.Equal(t, []byte{1, 2, 3}, values["photo"])
	require.IsType(t, time.Time{}, values["born"])
	assert.True(t, born.Equal(values["born"].(time.Time)))
}

func TestStoreUpdate(t *testing.T) {
	dir := t.TempDir()
	h := openHarness(t, dir)
	ann := h.newPerson(t, "Ann")
	h.save(t)

	require.NoError(t, ann.SetValue("name", "Anne"))
	require.NoError(t, ann.SetValue("score", nil))
	h.save(t)
	assert.Equal(t, 1, h.countRows(t, "People"))

	h2 := openHarness(t, dir)
	got, err := h2.ctx.ObjectWithAttributePath("Person.name", "Anne")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ann.ObjectID(), got.ObjectID())
	score, err := got.Value("score")
	require.NoError(t, err)
	assert.Nil(t, score)
}

func TestStoreReflexiveLinkWritesOneRow(t *testing.T) {
	dir := t.TempDir()
	h := openHarness(t, dir)
	friends := h.person.Relationship("friends")

	a := h.newPerson(t, "A")
	b := h.newPerson(t, "B")
	require.NoError(t, a.Add("friends", b))
	h.save(t)
	assert.Equal(t, 1, h.countRows(t, friends.TableName()))

	h2 := openHarness(t, dir)
	for _, tc := range []struct{ self, other int64 }{
		{a.ObjectID(), b.ObjectID()},
		{b.ObjectID(), a.ObjectID()},
	} {
		got, err := h2.ctx.ObjectWithObjectID(h2.person, tc.self)
		require.NoError(t, err)
		related, err := got.Related(h2.person.Relationship("friends"))
		require.NoError(t, err)
		require.Len(t, related, 1)
		assert.Equal(t, tc.other, related[0].ObjectID())
	}

	require.NoError(t, a.Remove("friends", b))
	h.save(t)
	assert.Equal(t, 0, h.countRows(t, friends.TableName()))
	related, err := b.Related(friends)
	require.NoError(t, err)
	assert.Empty(t, related)
}

func TestStoreOneToMany(t *testing.T) {
	dir := t.TempDir()
	h := openHarness(t, dir)

	ann := h.newPerson(t, "Ann")
	rex := h.ctx.NewObject(h.pet)
	require.NoError(t, rex.SetValue("name", "Rex"))
	require.NoError(t, rex.SetValue("owner", ann))
	tom := h.ctx.NewObject(h.pet)
	require.NoError(t, tom.SetValue("name", "Tom"))
	require.NoError(t, ann.Add("pets", tom))
	h.save(t)
	assert.Equal(t, 2, h.countRows(t, h.person.Relationship("pets").TableName()))

	h2 := openHarness(t, dir)
	got, err := h2.ctx.ObjectWithObjectID(h2.person, ann.ObjectID())
	require.NoError(t, err)
	pets, err := got.Value("pets")
	require.NoError(t, err)
	var names []string
	for _, p := range pets.([]*larder.ManagedObject) {
		n, err := p.Value("name")
		require.NoError(t, err)
		names = append(names, n.(string))
	}
	assert.ElementsMatch(t, []string{"Rex", "Tom"}, names)

	pet, err := h2.ctx.ObjectWithObjectID(h2.pet, rex.ObjectID())
	require.NoError(t, err)
	owner, err := pet.Value("owner")
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, ann.ObjectID(), owner.(*larder.ManagedObject).ObjectID())
}

func TestStoreOneSidedLinkToEmptyEntity(t *testing.T) {
	h := openHarness(t, t.TempDir())
	ann := h.newPerson(t, "Ann")
	badge := h.ctx.NewObject(h.badge)
	require.NoError(t, ann.Add("badges", badge))
	h.save(t)

	assert.Greater(t, badge.ObjectID(), int64(0))
	assert.Equal(t, 1, h.countRows(t, "Badges"))
	assert.Equal(t, 1, h.countRows(t, h.person.Relationship("badges").TableName()))
}

func TestStoreFetch(t *testing.T) {
	h := openHarness(t, t.TempDir())
	h.newPerson(t, "Ann")
	h.newPerson(t, "O'Brien")
	h.save(t)

	all, err := h.ctx.Fetch(h.person, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	none, err := h.ctx.Fetch(h.person, `"name" = 'Nobody'`)
	require.NoError(t, err)
	assert.Empty(t, none)

	got, err := h.ctx.ObjectWith(h.person.Property("name"), "O'Brien")
	require.NoError(t, err)
	require.NotNil(t, got)
	name, err := got.Value("name")
	require.NoError(t, err)
	assert.Equal(t, "O'Brien", name)

	missing, err := h.ctx.ObjectWithObjectID(h.person, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = h.ctx.Fetch(h.person, "no_such_column = 1")
	assert.ErrorIs(t, err, types.ErrPersistentStore)
}

func TestStoreSecondSaveIsNoop(t *testing.T) {
	h := openHarness(t, t.TempDir())
	h.newPerson(t, "Ann")
	h.save(t)

	before := h.store.Stats()
	saved, err := h.ctx.Save()
	require.NoError(t, err)
	assert.False(t, saved)
	assert.Equal(t, before, h.store.Stats())
}

func TestStoreFaultFiresOnce(t *testing.T) {
	dir := t.TempDir()
	h := openHarness(t, dir)
	h.newPerson(t, "Ann")
	h.save(t)

	h2 := openHarness(t, dir)
	got, err := h2.ctx.ObjectWith(h2.person.Property("name"), "Ann")
	require.NoError(t, err)
	_, err = got.Value("name")
	require.NoError(t, err)

	before := h2.store.Stats()
	_, err = got.Value("age")
	require.NoError(t, err)
	require.NoError(t, got.FireFault())
	assert.Equal(t, before.Statements(), h2.store.Stats().Statements())
}

func TestStoreFaultMissingRow(t *testing.T) {
	h := openHarness(t, t.TempDir())
	ghost := h.ctx.NewObjectWithID(h.person, 999)
	err := ghost.FireFault()
	assert.ErrorIs(t, err, types.ErrFaultFailed)
	assert.True(t, types.IsPersistentStore(err))
}

func TestStoreMissingRelatedRowLogsWarning(t *testing.T) {
	dir := t.TempDir()
	h := openHarness(t, dir)
	ann := h.newPerson(t, "Ann")
	rex := h.ctx.NewObject(h.pet)
	require.NoError(t, ann.Add("pets", rex))
	h.save(t)
	_, err := h.store.db.Exec(`DELETE FROM "Pets"`)
	require.NoError(t, err)

	core, logs := observer.New(zap.WarnLevel)
	h2 := openHarness(t, dir, WithLogger(zap.New(core).Sugar()))
	got, err := h2.ctx.ObjectWithObjectID(h2.person, ann.ObjectID())
	require.NoError(t, err)
	pets, err := got.Related(h2.person.Relationship("pets"))
	require.NoError(t, err)
	assert.Empty(t, pets)

	warnings := logs.FilterMessage("related row missing").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, "Person.pets", warnings[0].ContextMap()["relationship"])
}

func TestStoreDelete(t *testing.T) {
	h := openHarness(t, t.TempDir())
	ann := h.newPerson(t, "Ann")
	bob := h.newPerson(t, "Bob")
	rex := h.ctx.NewObject(h.pet)
	require.NoError(t, ann.Add("friends", bob))
	require.NoError(t, ann.Add("pets", rex))
	h.save(t)

	require.NoError(t, h.ctx.Delete(ann))
	h.save(t)

	assert.Equal(t, 1, h.countRows(t, "People"))
	assert.Equal(t, 0, h.countRows(t, h.person.Relationship("friends").TableName()))
	assert.Equal(t, 0, h.countRows(t, h.person.Relationship("pets").TableName()))
	assert.Empty(t, h.ctx.DeletedObjects())

	friends, err := bob.Related(h.person.Relationship("friends"))
	require.NoError(t, err)
	assert.Empty(t, friends)
	owner, err := rex.Value("owner")
	require.NoError(t, err)
	assert.Nil(t, owner)
}

func TestStoreDeleteUnsavedObject(t *testing.T) {
	h := openHarness(t, t.TempDir())
	h.newPerson(t, "Ann")
	h.save(t)

	ghost := h.newPerson(t, "Ghost")
	require.NoError(t, h.ctx.Delete(ghost))
	h.save(t)
	assert.Equal(t, 1, h.countRows(t, "People"))
	assert.Equal(t, larder.UnknownID, ghost.ObjectID())
}

func TestStoreVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	h := openHarness(t, dir)
	_, err := h.ctx.Fetch(h.person, "")
	require.NoError(t, err)

	v2 := strings.ReplaceAll(testModelXML, `"1"`, `"2"`)
	h2 := openHarnessWithModel(t, dir, v2)
	_, err = h2.ctx.Fetch(h2.person, "")
	assert.ErrorIs(t, err, types.ErrMigrationUnsupported)
	assert.ErrorIs(t, err, types.ErrPersistentStore)
}

func TestStoreDuplicatePlural(t *testing.T) {
	doc := `<models current-version="1">
  <model version="1">
    <entity name="Person" plural="People"><property name="name"/></entity>
    <entity name="Crowd" plural="people"><property name="size" type="Integer"/></entity>
  </model>
</models>`
	h := openHarnessWithModel(t, t.TempDir(), doc)
	_, err := h.ctx.Fetch(h.person, "")
	assert.ErrorIs(t, err, types.ErrDuplicateEntityPlural)

	var n int
	require.NoError(t, h.store.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table'`).Scan(&n))
	assert.Zero(t, n)
}

func TestStoreRequiresCoordinator(t *testing.T) {
	h := openHarness(t, t.TempDir())
	detached, err := NewStore(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()})
	require.NoError(t, err)

	_, err = detached.ExecuteRequest(larder.NewFetchRequest(h.ctx, h.person, ""))
	assert.ErrorIs(t, err, types.ErrCoordinatorUnavailable)
	assert.ErrorIs(t, detached.EnsureDatabaseConsistency(), types.ErrCoordinatorUnavailable)
}

func TestStoreClosed(t *testing.T) {
	h := openHarness(t, t.TempDir())
	require.NoError(t, h.store.EnsureDatabaseConsistency())
	require.NoError(t, h.store.Close())
	require.NoError(t, h.store.Close())

	_, err := h.ctx.Fetch(h.person, "")
	assert.ErrorIs(t, err, types.ErrStoreClosed)
}

func TestStoreSlowStatements(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	h := openHarness(t, t.TempDir(),
		WithLogger(zap.New(core).Sugar()),
		WithSlowQueryThreshold(time.Nanosecond))
	_, err := h.ctx.Fetch(h.person, "")
	require.NoError(t, err)

	stats := h.store.Stats()
	assert.Positive(t, stats.SlowQueries)
	assert.Positive(t, stats.TotalExecs)
	assert.Positive(t, stats.TotalQueries)
	assert.NotZero(t, logs.FilterMessage("slow statement").Len())
	assert.Contains(t, stats.String(), "slow=")
}
