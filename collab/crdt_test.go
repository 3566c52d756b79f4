package collab

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func testActor(b byte) Id {
	var actor Id
	actor[0] = b
	return actor
}

func testRoot() OpId {
	return OpId{Counter: 1}
}

func newTestStore(actorByte byte, kind ObjectKind) *Store {
	store := NewStore(testActor(actorByte))
	store.EnsureObject(testRoot(), kind)
	return store
}

// exchange ops until neither side has anything left to send
func syncStores(a *Store, b *Store) {
	aState := NewSyncState()
	bState := NewSyncState()
	for {
		aMessage := a.GenerateSyncMessage(aState, 0)
		bMessage := b.GenerateSyncMessage(bState, 0)
		if aMessage == nil && bMessage == nil {
			return
		}
		if aMessage != nil {
			b.ReceiveSyncMessage(bState, aMessage)
		}
		if bMessage != nil {
			a.ReceiveSyncMessage(aState, bMessage)
		}
	}
}

func listStrings(store *Store, objId OpId) []string {
	values := store.ListValues(objId)
	out := make([]string, len(values))
	for i, value := range values {
		out[i] = value.Str
	}
	return out
}

func TestStoreApplyIdempotent(t *testing.T) {
	a := newTestStore(1, ObjectMap)

	op := a.MapPut(testRoot(), "title", StringValue("one"))
	version := a.Version()

	assert.Equal(t, a.Apply(op), false)
	assert.Equal(t, a.Version(), version)

	value, ok := a.MapGet(testRoot(), "title")
	assert.Equal(t, ok, true)
	assert.Equal(t, value.Str, "one")
}

func TestStoreMapLastWriterWins(t *testing.T) {
	a := newTestStore(1, ObjectMap)
	b := newTestStore(2, ObjectMap)

	// same counter, different actor. the larger actor wins on both sides.
	a.MapPut(testRoot(), "title", StringValue("from a"))
	b.MapPut(testRoot(), "title", StringValue("from b"))
	syncStores(a, b)

	aValue, _ := a.MapGet(testRoot(), "title")
	bValue, _ := b.MapGet(testRoot(), "title")
	assert.Equal(t, aValue.Str, "from b")
	assert.Equal(t, bValue.Str, "from b")
	assert.Equal(t, a.Version(), b.Version())
}

func TestStoreDeleteVersusConcurrentEdit(t *testing.T) {
	a := newTestStore(1, ObjectMap)
	b := newTestStore(2, ObjectMap)

	a.MapPut(testRoot(), "k", StringValue("v1"))
	syncStores(a, b)

	// a deletes, b concurrently edits. deletes are writes in the same
	// register, so the edit from the larger actor wins.
	a.MapDelete(testRoot(), "k")
	b.MapPut(testRoot(), "k", StringValue("v2"))
	syncStores(a, b)

	aValue, aOk := a.MapGet(testRoot(), "k")
	bValue, bOk := b.MapGet(testRoot(), "k")
	assert.Equal(t, aOk, true)
	assert.Equal(t, bOk, true)
	assert.Equal(t, aValue.Str, "v2")
	assert.Equal(t, bValue.Str, "v2")

	// reversed roles: now the delete comes from the larger actor and wins
	a.MapPut(testRoot(), "k2", StringValue("v1"))
	syncStores(a, b)
	a.MapPut(testRoot(), "k2", StringValue("v2"))
	b.MapDelete(testRoot(), "k2")
	syncStores(a, b)

	_, aOk = a.MapGet(testRoot(), "k2")
	_, bOk = b.MapGet(testRoot(), "k2")
	assert.Equal(t, aOk, false)
	assert.Equal(t, bOk, false)
}

func TestStoreListInsertAtIndex(t *testing.T) {
	a := newTestStore(1, ObjectList)

	a.ListAppend(testRoot(), StringValue("x"))
	a.ListAppend(testRoot(), StringValue("y"))
	a.ListAppend(testRoot(), StringValue("z"))
	a.ListInsert(testRoot(), 1, StringValue("w"))

	assert.Equal(t, listStrings(a, testRoot()), []string{"x", "w", "y", "z"})

	a.ListInsert(testRoot(), 0, StringValue("head"))
	assert.Equal(t, listStrings(a, testRoot()), []string{"head", "x", "w", "y", "z"})

	assert.Equal(t, a.ListRemove(testRoot(), 2), true)
	assert.Equal(t, listStrings(a, testRoot()), []string{"head", "x", "y", "z"})
	assert.Equal(t, a.ListLen(testRoot()), 4)

	// out of range is a no-op
	assert.Equal(t, a.ListRemove(testRoot(), 10), false)
}

func TestStoreListConcurrentAppendsConverge(t *testing.T) {
	a := newTestStore(1, ObjectList)
	b := newTestStore(2, ObjectList)

	a.ListAppend(testRoot(), StringValue("a1"))
	a.ListAppend(testRoot(), StringValue("a2"))
	b.ListAppend(testRoot(), StringValue("b1"))
	syncStores(a, b)

	// head siblings order newest-actor first: (1,b) before (1,a), and a2
	// stays chained after a1
	expected := []string{"b1", "a1", "a2"}
	assert.Equal(t, listStrings(a, testRoot()), expected)
	assert.Equal(t, listStrings(b, testRoot()), expected)
}

func TestStoreOutOfOrderDelivery(t *testing.T) {
	a := newTestStore(1, ObjectMap)

	childObj := a.MapPutObject(testRoot(), "child", ObjectMap)
	a.MapPut(childObj, "name", StringValue("nested"))
	listObj := a.MapPutObject(testRoot(), "items", ObjectList)
	a.ListAppend(listObj, StringValue("first"))
	a.ListAppend(listObj, StringValue("second"))

	// deliver the full history in reverse. child ops arrive before the
	// ops that create their containers and must buffer, not drop.
	ops := a.AllOps()
	b := newTestStore(2, ObjectMap)
	for i := len(ops) - 1; 0 <= i; i -= 1 {
		b.Apply(ops[i])
	}

	assert.Equal(t, b.Version(), a.Version())
	value, ok := b.MapGet(childObj, "name")
	assert.Equal(t, ok, true)
	assert.Equal(t, value.Str, "nested")
	assert.Equal(t, listStrings(b, listObj), []string{"first", "second"})
}

func TestStoreOpsSincePerActorPrefix(t *testing.T) {
	a := newTestStore(1, ObjectMap)
	b := newTestStore(2, ObjectMap)

	a.MapPut(testRoot(), "k1", StringValue("v1"))
	a.MapPut(testRoot(), "k2", StringValue("v2"))
	b.MapPut(testRoot(), "k3", StringValue("v3"))
	syncStores(a, b)
	a.MapPut(testRoot(), "k4", StringValue("v4"))

	// a peer that saw counter 1 from actor a gets the rest of a's ops in
	// ascending order plus all of b's
	missing := a.OpsSince(VersionVector{testActor(1): 1}, 0)
	assert.Equal(t, len(missing), 3)
	for i := 1; i < len(missing); i += 1 {
		if missing[i].Id.Actor == missing[i-1].Id.Actor {
			if missing[i].Id.Counter <= missing[i-1].Id.Counter {
				t.Fatalf("ops for one actor out of order: %s then %s", missing[i-1].Id, missing[i].Id)
			}
		}
	}

	// a limit truncates without breaking the prefix property: the smaller
	// actor's ops come first, ascending
	limited := a.OpsSince(VersionVector{}, 2)
	assert.Equal(t, len(limited), 2)
	assert.Equal(t, limited[0].Id, OpId{Counter: 1, Actor: testActor(1)})
	assert.Equal(t, limited[1].Id, OpId{Counter: 2, Actor: testActor(1)})
}

func TestSyncMessageExchangeStopsWhenCaughtUp(t *testing.T) {
	a := newTestStore(1, ObjectMap)
	b := newTestStore(2, ObjectMap)

	a.MapPut(testRoot(), "k", StringValue("v"))

	aState := NewSyncState()
	bState := NewSyncState()

	// a announces once, then has nothing more until b announces
	first := a.GenerateSyncMessage(aState, 0)
	assert.NotEqual(t, first, nil)
	assert.Equal(t, len(first.Ops), 0)
	assert.Equal(t, a.GenerateSyncMessage(aState, 0), (*SyncMessage)(nil))

	b.ReceiveSyncMessage(bState, first)
	announce := b.GenerateSyncMessage(bState, 0)
	assert.NotEqual(t, announce, nil)
	a.ReceiveSyncMessage(aState, announce)

	// now a knows what b lacks
	ops := a.GenerateSyncMessage(aState, 0)
	assert.NotEqual(t, ops, nil)
	assert.Equal(t, len(ops.Ops), 1)
	b.ReceiveSyncMessage(bState, ops)

	// both quiesce
	assert.Equal(t, a.GenerateSyncMessage(aState, 0), (*SyncMessage)(nil))
	assert.Equal(t, b.GenerateSyncMessage(bState, 0), (*SyncMessage)(nil))

	value, ok := b.MapGet(testRoot(), "k")
	assert.Equal(t, ok, true)
	assert.Equal(t, value.Str, "v")
}

func TestSyncNeverResendsBufferedOps(t *testing.T) {
	a := newTestStore(1, ObjectMap)
	b := newTestStore(2, ObjectMap)

	childObj := a.MapPutObject(testRoot(), "child", ObjectMap)
	syncStores(a, b)
	put := b.MapPut(childObj, "k", StringValue("v"))

	// c hears b's edit before a's container op. the edit buffers but
	// still counts as received, so a resync must not resend it.
	c := newTestStore(3, ObjectMap)
	assert.Equal(t, c.Apply(put), true)
	assert.Equal(t, c.Version().Includes(put.Id), true)
	_, ok := c.MapGet(childObj, "k")
	assert.Equal(t, ok, false)

	missing := b.OpsSince(c.Version(), 0)
	for _, op := range missing {
		assert.NotEqual(t, op.Id, put.Id)
		c.Apply(op)
	}

	// once the container op arrives the buffered edit materializes
	value, ok := c.MapGet(childObj, "k")
	assert.Equal(t, ok, true)
	assert.Equal(t, value.Str, "v")
}
