package collab

import (
	"fmt"
	"sort"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// operation-based replicated store offering mergeable map and list objects.
// every op carries a unique (lamport counter, actor) id. applying the same
// op twice is a no-op, and ops whose object or list parent has not arrived
// yet are buffered, so any interleaving of deliveries converges.

// comparable
type OpId struct {
	Counter uint64
	Actor   Id
}

func (self OpId) IsZero() bool {
	return self == OpId{}
}

func (self OpId) Cmp(other OpId) int {
	if self.Counter < other.Counter {
		return -1
	}
	if other.Counter < self.Counter {
		return 1
	}
	return self.Actor.Cmp(other.Actor)
}

func (self OpId) String() string {
	return fmt.Sprintf("%d@%s", self.Counter, self.Actor)
}

type ObjectKind int

const (
	ObjectMap  ObjectKind = 1
	ObjectList ObjectKind = 2
)

type ValueKind int

const (
	ValueString ValueKind = 1
	ValueInt    ValueKind = 2
	ValueBool   ValueKind = 3
	ValueBytes  ValueKind = 4
	ValueObject ValueKind = 5
)

type Value struct {
	Kind   ValueKind
	Str    string
	Int    int64
	Bool   bool
	Bytes  []byte
	Object OpId
}

func StringValue(s string) Value {
	return Value{Kind: ValueString, Str: s}
}

func IntValue(i int64) Value {
	return Value{Kind: ValueInt, Int: i}
}

func BoolValue(b bool) Value {
	return Value{Kind: ValueBool, Bool: b}
}

func BytesValue(b []byte) Value {
	return Value{Kind: ValueBytes, Bytes: b}
}

type OpKind int

const (
	OpPut          OpKind = 1
	OpPutObject    OpKind = 2
	OpMapDelete    OpKind = 3
	OpInsert       OpKind = 4
	OpInsertObject OpKind = 5
	OpRemove       OpKind = 6
)

// one tagged mutation. the zero Parent for list inserts is the head
// sentinel. for OpPutObject/OpInsertObject the created object takes the
// op's own id.
type Op struct {
	Id         OpId
	Obj        OpId
	Kind       OpKind
	Key        string
	Parent     OpId
	Target     OpId
	Value      Value
	ObjectKind ObjectKind
}

// per-key register. deletes are writes so delete-vs-concurrent-edit
// resolves by the same last-writer-wins order as edit-vs-edit.
type mapEntry struct {
	opId    OpId
	value   Value
	deleted bool
}

type listElem struct {
	id      OpId
	value   Value
	visible bool
}

type object struct {
	kind ObjectKind

	// map state
	entries map[string]*mapEntry

	// list state (rga: parent-addressed inserts, tombstoned removes)
	elems    map[OpId]*listElem
	children map[OpId][]OpId
}

func newObject(kind ObjectKind) *object {
	obj := &object{
		kind: kind,
	}
	switch kind {
	case ObjectMap:
		obj.entries = map[string]*mapEntry{}
	case ObjectList:
		obj.elems = map[OpId]*listElem{}
		obj.children = map[OpId][]OpId{}
	}
	return obj
}

// what a replica has seen: max counter per actor. ops from one actor
// always replicate as ascending prefixes, so a single max is sound.
type VersionVector map[Id]uint64

func (self VersionVector) Includes(opId OpId) bool {
	return opId.Counter <= self[opId.Actor]
}

func (self VersionVector) Observe(opId OpId) {
	if self[opId.Actor] < opId.Counter {
		self[opId.Actor] = opId.Counter
	}
}

func (self VersionVector) MergeMax(other VersionVector) {
	for actor, counter := range other {
		if self[actor] < counter {
			self[actor] = counter
		}
	}
}

func (self VersionVector) Clone() VersionVector {
	next := VersionVector{}
	for actor, counter := range self {
		next[actor] = counter
	}
	return next
}

type Store struct {
	actor Id
	clock uint64

	objects map[OpId]*object
	ops     map[OpId]*Op
	// actor -> ops ascending by counter
	actorOps map[Id][]*Op
	version  VersionVector

	// ops whose object, list parent, or remove target has not arrived
	waiting map[OpId][]*Op
}

func NewStore(actor Id) *Store {
	return &Store{
		actor:    actor,
		objects:  map[OpId]*object{},
		ops:      map[OpId]*Op{},
		actorOps: map[Id][]*Op{},
		version:  VersionVector{},
		waiting:  map[OpId][]*Op{},
	}
}

func (self *Store) Actor() Id {
	return self.actor
}

func (self *Store) Version() VersionVector {
	return self.version.Clone()
}

// well-known containers exist implicitly on every replica so that
// independently created replicas agree on the root graph and never drop
// each other's entries on first merge
func (self *Store) EnsureObject(objId OpId, kind ObjectKind) {
	if _, ok := self.objects[objId]; !ok {
		self.objects[objId] = newObject(kind)
	}
}

func (self *Store) nextOpId() OpId {
	self.clock += 1
	return OpId{Counter: self.clock, Actor: self.actor}
}

// Apply integrates an op, local or remote. Returns whether the op was new.
// Buffered ops still count as received (they are in the log and version)
// so sync never resends them; only their materialization is deferred.
func (self *Store) Apply(op *Op) bool {
	if _, ok := self.ops[op.Id]; ok {
		return false
	}

	if self.clock < op.Id.Counter {
		self.clock = op.Id.Counter
	}
	self.ops[op.Id] = op
	self.recordActorOp(op)
	self.version.Observe(op.Id)

	self.integrate(op)
	return true
}

func (self *Store) recordActorOp(op *Op) {
	ops := self.actorOps[op.Id.Actor]
	if n := len(ops); 0 < n && op.Id.Counter < ops[n-1].Id.Counter {
		// out of order arrival within an actor sequence. keep sorted.
		i := sort.Search(n, func(i int) bool {
			return op.Id.Counter <= ops[i].Id.Counter
		})
		ops = append(ops, nil)
		copy(ops[i+1:], ops[i:])
		ops[i] = op
		self.actorOps[op.Id.Actor] = ops
	} else {
		self.actorOps[op.Id.Actor] = append(ops, op)
	}
}

func (self *Store) integrate(op *Op) {
	switch op.Kind {
	case OpPutObject, OpInsertObject:
		// the created object exists even if its reference later loses
		// last-writer-wins, since child ops may target it
		self.EnsureObject(op.Id, op.ObjectKind)
	}

	obj, ok := self.objects[op.Obj]
	if ok {
		switch op.Kind {
		case OpPut, OpPutObject, OpMapDelete:
			self.integrateMapOp(obj, op)
		case OpInsert, OpInsertObject:
			self.integrateInsert(obj, op)
		case OpRemove:
			self.integrateRemove(obj, op)
		}
	} else {
		self.waiting[op.Obj] = append(self.waiting[op.Obj], op)
	}

	switch op.Kind {
	case OpPutObject, OpInsertObject:
		// the object exists even if the referencing op was buffered,
		// so ops addressed to it can materialize now
		self.flushWaiting(op.Id)
	}
}

func (self *Store) integrateMapOp(obj *object, op *Op) {
	entry := obj.entries[op.Key]
	if entry != nil && op.Id.Cmp(entry.opId) < 0 {
		// an observed writer already won
		return
	}
	next := &mapEntry{
		opId: op.Id,
	}
	switch op.Kind {
	case OpPut:
		next.value = op.Value
	case OpPutObject:
		next.value = Value{Kind: ValueObject, Object: op.Id}
	case OpMapDelete:
		next.deleted = true
	}
	obj.entries[op.Key] = next
}

func (self *Store) integrateInsert(obj *object, op *Op) {
	if _, ok := obj.elems[op.Id]; ok {
		return
	}
	if !op.Parent.IsZero() {
		if _, ok := obj.elems[op.Parent]; !ok {
			self.waiting[op.Parent] = append(self.waiting[op.Parent], op)
			return
		}
	}

	elem := &listElem{
		id:      op.Id,
		visible: true,
	}
	switch op.Kind {
	case OpInsert:
		elem.value = op.Value
	case OpInsertObject:
		elem.value = Value{Kind: ValueObject, Object: op.Id}
	}
	obj.elems[op.Id] = elem

	// siblings under the same parent order newest first, so an insert
	// lands at its local position and ties still break deterministically
	kids := obj.children[op.Parent]
	i := sort.Search(len(kids), func(i int) bool {
		return kids[i].Cmp(op.Id) <= 0
	})
	kids = append(kids, OpId{})
	copy(kids[i+1:], kids[i:])
	kids[i] = op.Id
	obj.children[op.Parent] = kids

	self.flushWaiting(op.Id)
}

func (self *Store) integrateRemove(obj *object, op *Op) {
	elem, ok := obj.elems[op.Target]
	if !ok {
		self.waiting[op.Target] = append(self.waiting[op.Target], op)
		return
	}
	elem.visible = false
}

func (self *Store) flushWaiting(ref OpId) {
	queue := self.waiting[ref]
	if len(queue) == 0 {
		return
	}
	delete(self.waiting, ref)
	for _, op := range queue {
		self.integrate(op)
	}
}

// --- map reads ---

func (self *Store) MapGet(objId OpId, key string) (Value, bool) {
	obj, ok := self.objects[objId]
	if !ok || obj.kind != ObjectMap {
		return Value{}, false
	}
	entry, ok := obj.entries[key]
	if !ok || entry.deleted {
		return Value{}, false
	}
	return entry.value, true
}

func (self *Store) MapKeys(objId OpId) []string {
	obj, ok := self.objects[objId]
	if !ok || obj.kind != ObjectMap {
		return nil
	}
	keys := []string{}
	for key, entry := range obj.entries {
		if !entry.deleted {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys
}

// --- map writes ---

func (self *Store) MapPut(objId OpId, key string, value Value) *Op {
	op := &Op{
		Id:    self.nextOpId(),
		Obj:   objId,
		Kind:  OpPut,
		Key:   key,
		Value: value,
	}
	self.Apply(op)
	return op
}

func (self *Store) MapPutObject(objId OpId, key string, kind ObjectKind) OpId {
	op := &Op{
		Id:         self.nextOpId(),
		Obj:        objId,
		Kind:       OpPutObject,
		Key:        key,
		ObjectKind: kind,
	}
	self.Apply(op)
	return op.Id
}

func (self *Store) MapDelete(objId OpId, key string) *Op {
	op := &Op{
		Id:   self.nextOpId(),
		Obj:  objId,
		Kind: OpMapDelete,
		Key:  key,
	}
	self.Apply(op)
	return op
}

// --- list reads ---

// visible element ids in order: depth first, node before its subtree,
// newer siblings first
func (self *Store) listOrder(obj *object) []OpId {
	order := []OpId{}
	var walk func(parent OpId)
	walk = func(parent OpId) {
		for _, id := range obj.children[parent] {
			if elem := obj.elems[id]; elem != nil && elem.visible {
				order = append(order, id)
			}
			walk(id)
		}
	}
	walk(OpId{})
	return order
}

func (self *Store) ListLen(objId OpId) int {
	obj, ok := self.objects[objId]
	if !ok || obj.kind != ObjectList {
		return 0
	}
	return len(self.listOrder(obj))
}

func (self *Store) ListGet(objId OpId, index int) (Value, bool) {
	obj, ok := self.objects[objId]
	if !ok || obj.kind != ObjectList {
		return Value{}, false
	}
	order := self.listOrder(obj)
	if index < 0 || len(order) <= index {
		return Value{}, false
	}
	return obj.elems[order[index]].value, true
}

func (self *Store) ListValues(objId OpId) []Value {
	obj, ok := self.objects[objId]
	if !ok || obj.kind != ObjectList {
		return nil
	}
	order := self.listOrder(obj)
	values := make([]Value, len(order))
	for i, id := range order {
		values[i] = obj.elems[id].value
	}
	return values
}

// --- list writes ---

func (self *Store) listParentForIndex(obj *object, index int) OpId {
	order := self.listOrder(obj)
	if index <= 0 || len(order) == 0 {
		return OpId{}
	}
	if len(order) <= index {
		return order[len(order)-1]
	}
	return order[index-1]
}

func (self *Store) ListInsert(objId OpId, index int, value Value) *Op {
	obj := self.objects[objId]
	op := &Op{
		Id:     self.nextOpId(),
		Obj:    objId,
		Kind:   OpInsert,
		Parent: self.listParentForIndex(obj, index),
		Value:  value,
	}
	self.Apply(op)
	return op
}

func (self *Store) ListAppend(objId OpId, value Value) *Op {
	return self.ListInsert(objId, self.ListLen(objId), value)
}

func (self *Store) ListInsertObject(objId OpId, index int, kind ObjectKind) OpId {
	obj := self.objects[objId]
	op := &Op{
		Id:         self.nextOpId(),
		Obj:        objId,
		Kind:       OpInsertObject,
		Parent:     self.listParentForIndex(obj, index),
		ObjectKind: kind,
	}
	self.Apply(op)
	return op.Id
}

func (self *Store) ListRemove(objId OpId, index int) bool {
	obj, ok := self.objects[objId]
	if !ok || obj.kind != ObjectList {
		return false
	}
	order := self.listOrder(obj)
	if index < 0 || len(order) <= index {
		return false
	}
	op := &Op{
		Id:     self.nextOpId(),
		Obj:    objId,
		Kind:   OpRemove,
		Target: order[index],
	}
	self.Apply(op)
	return true
}

// --- sync support ---

// ops the remote lacks, per-actor ascending so delivery keeps the prefix
// property the version vector relies on. A limit of 0 means unbounded.
func (self *Store) OpsSince(version VersionVector, limit int) []*Op {
	actors := maps.Keys(self.actorOps)
	slices.SortFunc(actors, func(a Id, b Id) int {
		return a.Cmp(b)
	})

	missing := []*Op{}
	for _, actor := range actors {
		seen := version[actor]
		for _, op := range self.actorOps[actor] {
			if seen < op.Id.Counter {
				missing = append(missing, op)
				if 0 < limit && limit <= len(missing) {
					return missing
				}
			}
		}
	}
	return missing
}

// all ops in deterministic order, for the persisted blob
func (self *Store) AllOps() []*Op {
	return self.OpsSince(VersionVector{}, 0)
}
