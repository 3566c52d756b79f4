package collab

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// global undo. Checkpoints are full snapshots of the shapes collection
// stored in replicated stacks, so any peer can undo the shared canvas.

const maxUndoHistory = 50

type shapeSnapshot struct {
	Id      string `msgpack:"id"`
	Shape   Shape  `msgpack:"shape"`
	LayerId string `msgpack:"layer_id,omitempty"`
	GroupId string `msgpack:"group_id,omitempty"`
}

// snapshot in z order, with any unordered shapes appended, so restore
// can rebuild both the shapes map and the order list
func (self *Document) serializeShapes() ([]byte, error) {
	snapshots := []shapeSnapshot{}
	inOrder := map[Id]bool{}

	appendShape := func(id Id) {
		shape, ok := self.readShape(id)
		if !ok {
			return
		}
		snapshot := shapeSnapshot{
			Id:    id.String(),
			Shape: shape,
		}
		if layerId, ok := self.shapeLayer(id); ok {
			snapshot.LayerId = layerId.String()
		}
		if groupId, ok := self.shapeGroup(id); ok {
			snapshot.GroupId = groupId.String()
		}
		snapshots = append(snapshots, snapshot)
	}

	for _, id := range self.readOrder(rootShapeOrder) {
		if !inOrder[id] {
			inOrder[id] = true
			appendShape(id)
		}
	}
	for _, record := range self.readAllShapes() {
		if !inOrder[record.Id] {
			appendShape(record.Id)
		}
	}

	return msgpack.Marshal(snapshots)
}

// clears the shapes collection and rebuilds it from a snapshot
func (self *Document) restoreShapes(snapshot []byte) error {
	var snapshots []shapeSnapshot
	if err := msgpack.Unmarshal(snapshot, &snapshots); err != nil {
		return fmt.Errorf("bad undo snapshot: %w", err)
	}

	for _, key := range self.store.MapKeys(rootShapes) {
		self.store.MapDelete(rootShapes, key)
	}

	order := []Id{}
	for _, entry := range snapshots {
		id, err := ParseId(entry.Id)
		if err != nil {
			continue
		}
		shapeObj := self.store.MapPutObject(rootShapes, id.String(), ObjectMap)
		shape := entry.Shape
		writeShape(self.store, shapeObj, &shape)
		if entry.LayerId != "" {
			self.store.MapPut(shapeObj, "layer_id", StringValue(entry.LayerId))
		}
		if entry.GroupId != "" {
			self.store.MapPut(shapeObj, "group_id", StringValue(entry.GroupId))
		}
		order = append(order, id)
	}
	self.setOrder(rootShapeOrder, order)
	return nil
}

func stackTop(store *Store, stackObj OpId) ([]byte, bool) {
	n := store.ListLen(stackObj)
	if n == 0 {
		return nil, false
	}
	value, ok := store.ListGet(stackObj, n-1)
	if !ok || value.Kind != ValueBytes {
		return nil, false
	}
	return value.Bytes, true
}

// PushUndoCheckpoint records the current shape state. Call before a
// mutation. A new checkpoint clears the redo stack.
func (self *Document) PushUndoCheckpoint() error {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	snapshot, err := self.serializeShapes()
	if err != nil {
		return err
	}

	for n := self.store.ListLen(rootRedoStack); 0 < n; n -= 1 {
		self.store.ListRemove(rootRedoStack, n-1)
	}

	self.store.ListAppend(rootUndoStack, BytesValue(snapshot))
	for maxUndoHistory < self.store.ListLen(rootUndoStack) {
		self.store.ListRemove(rootUndoStack, 0)
	}

	self.markDirty()
	return nil
}

// Undo restores the last checkpoint, pushing the current state onto the
// redo stack. Returns false when there is nothing to undo.
func (self *Document) Undo() (bool, error) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	prevSnapshot, ok := stackTop(self.store, rootUndoStack)
	if !ok {
		return false, nil
	}

	currentSnapshot, err := self.serializeShapes()
	if err != nil {
		return false, err
	}

	self.store.ListRemove(rootUndoStack, self.store.ListLen(rootUndoStack)-1)
	self.store.ListAppend(rootRedoStack, BytesValue(currentSnapshot))

	if err := self.restoreShapes(prevSnapshot); err != nil {
		return false, err
	}
	self.markDirty()
	return true, nil
}

// Redo reverses the last undo. Returns false when there is nothing to
// redo.
func (self *Document) Redo() (bool, error) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	nextSnapshot, ok := stackTop(self.store, rootRedoStack)
	if !ok {
		return false, nil
	}

	currentSnapshot, err := self.serializeShapes()
	if err != nil {
		return false, err
	}

	self.store.ListRemove(rootRedoStack, self.store.ListLen(rootRedoStack)-1)
	self.store.ListAppend(rootUndoStack, BytesValue(currentSnapshot))

	if err := self.restoreShapes(nextSnapshot); err != nil {
		return false, err
	}
	self.markDirty()
	return true, nil
}

func (self *Document) UndoDepth() int {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.store.ListLen(rootUndoStack)
}

func (self *Document) RedoDepth() int {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.store.ListLen(rootRedoStack)
}

func (self *Document) ClearUndoHistory() {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	for n := self.store.ListLen(rootUndoStack); 0 < n; n -= 1 {
		self.store.ListRemove(rootUndoStack, n-1)
	}
	for n := self.store.ListLen(rootRedoStack); 0 < n; n -= 1 {
		self.store.ListRemove(rootRedoStack, n-1)
	}
}
