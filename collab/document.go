package collab

import (
	"fmt"
	"sync"
)

// replicated drawing document. All state lives in the store so that two
// replicas converge by exchanging ops; the Document layer adds locking,
// the dirty flag, and the change monitor used to wake sync loops.

// root containers. fixed ids so replicas created independently agree on
// the root graph and never drop each other's entries on first merge.
var (
	rootShapes     = OpId{Counter: 1}
	rootShapeOrder = OpId{Counter: 2}
	rootGroups     = OpId{Counter: 3}
	rootLayers     = OpId{Counter: 4}
	rootLayerOrder = OpId{Counter: 5}
	rootUndoStack  = OpId{Counter: 6}
	rootRedoStack  = OpId{Counter: 7}
	rootMeta       = OpId{Counter: 8}
)

type ShapeRecord struct {
	Id    Id
	Shape Shape
}

type Group struct {
	Id      Id
	Members []Id
	Parent  Id
}

type Layer struct {
	Id      Id
	Name    string
	Visible bool
	Locked  bool
}

type Document struct {
	stateLock sync.Mutex

	id          Id
	store       *Store
	storagePath string
	dirty       bool

	changeMonitor *Monitor
}

func NewDocument() *Document {
	document := &Document{
		id:            NewId(),
		store:         NewStore(NewId()),
		changeMonitor: NewMonitor(),
	}
	document.ensureRoots()
	document.store.MapPut(rootMeta, "id", StringValue(document.id.String()))

	defaultLayerId := NewId()
	layerObj := document.store.MapPutObject(rootLayers, defaultLayerId.String(), ObjectMap)
	document.store.MapPut(layerObj, "name", StringValue("Layer 1"))
	document.store.MapPut(layerObj, "visible", BoolValue(true))
	document.store.MapPut(layerObj, "locked", BoolValue(false))
	document.store.ListAppend(rootLayerOrder, StringValue(defaultLayerId.String()))

	return document
}

func newDocumentFromOps(ops []*Op) (*Document, error) {
	document := &Document{
		store:         NewStore(NewId()),
		changeMonitor: NewMonitor(),
	}
	document.ensureRoots()
	for _, op := range ops {
		document.store.Apply(op)
	}
	if idStr := getString(document.store, rootMeta, "id"); idStr != "" {
		id, err := ParseId(idStr)
		if err != nil {
			return nil, fmt.Errorf("bad document id: %w", err)
		}
		document.id = id
	} else {
		document.id = NewId()
	}
	return document, nil
}

func (self *Document) ensureRoots() {
	self.store.EnsureObject(rootShapes, ObjectMap)
	self.store.EnsureObject(rootShapeOrder, ObjectList)
	self.store.EnsureObject(rootGroups, ObjectMap)
	self.store.EnsureObject(rootLayers, ObjectMap)
	self.store.EnsureObject(rootLayerOrder, ObjectList)
	self.store.EnsureObject(rootUndoStack, ObjectList)
	self.store.EnsureObject(rootRedoStack, ObjectList)
	self.store.EnsureObject(rootMeta, ObjectMap)
}

func (self *Document) Id() Id {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.id
}

func (self *Document) Actor() Id {
	return self.store.Actor()
}

func (self *Document) IsDirty() bool {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.dirty
}

func (self *Document) StoragePath() string {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.storagePath
}

func (self *Document) SetStoragePath(path string) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.storagePath = path
}

// ChangeNotify returns a channel that closes on the next document change.
// Grab a fresh channel before reading state to avoid missing updates.
func (self *Document) ChangeNotify() <-chan struct{} {
	return self.changeMonitor.NotifyChannel()
}

func (self *Document) ChangeCount() uint64 {
	return self.changeMonitor.Count()
}

// callers hold stateLock
func (self *Document) markDirty() {
	self.dirty = true
	self.changeMonitor.NotifyAll()
}

// --- shape operations ---

func (self *Document) AddShape(shape Shape) Id {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	id := NewId()
	shapeObj := self.store.MapPutObject(rootShapes, id.String(), ObjectMap)
	writeShape(self.store, shapeObj, &shape)
	self.store.ListAppend(rootShapeOrder, StringValue(id.String()))
	self.markDirty()
	return id
}

// UpdateShape replaces the whole record under the same id. Field-level
// concurrent edits to one shape resolve whole-record, which keeps the
// codec simple at the cost of merge granularity. Layer and group
// assignment carry over from the old record.
func (self *Document) UpdateShape(id Id, shape Shape) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.updateShape(id, shape)
	self.markDirty()
}

func (self *Document) updateShape(id Id, shape Shape) {
	layerId, hasLayer := self.shapeLayer(id)
	groupId, hasGroup := self.shapeGroup(id)

	shapeObj := self.store.MapPutObject(rootShapes, id.String(), ObjectMap)
	writeShape(self.store, shapeObj, &shape)
	if hasLayer {
		self.store.MapPut(shapeObj, "layer_id", StringValue(layerId.String()))
	}
	if hasGroup {
		self.store.MapPut(shapeObj, "group_id", StringValue(groupId.String()))
	}
}

func (self *Document) DeleteShape(id Id) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	self.store.MapDelete(rootShapes, id.String())
	self.removeFromOrder(rootShapeOrder, id)
	self.markDirty()
}

func (self *Document) removeFromOrder(orderObj OpId, id Id) {
	idStr := id.String()
	for i, value := range self.store.ListValues(orderObj) {
		if value.Kind == ValueString && value.Str == idStr {
			self.store.ListRemove(orderObj, i)
			return
		}
	}
}

func (self *Document) ReadShape(id Id) (Shape, bool) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.readShape(id)
}

func (self *Document) readShape(id Id) (Shape, bool) {
	value, ok := self.store.MapGet(rootShapes, id.String())
	if !ok || value.Kind != ValueObject {
		return Shape{}, false
	}
	return readShape(self.store, value.Object)
}

func (self *Document) ReadAllShapes() []ShapeRecord {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.readAllShapes()
}

func (self *Document) readAllShapes() []ShapeRecord {
	records := []ShapeRecord{}
	for _, key := range self.store.MapKeys(rootShapes) {
		id, err := ParseId(key)
		if err != nil {
			continue
		}
		if shape, ok := self.readShape(id); ok {
			records = append(records, ShapeRecord{Id: id, Shape: shape})
		}
	}
	return records
}

func (self *Document) ShapeCount() int {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return len(self.readAllShapes())
}

// --- z order ---

func (self *Document) ReadShapeOrder() []Id {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.readOrder(rootShapeOrder)
}

func (self *Document) readOrder(orderObj OpId) []Id {
	order := []Id{}
	for _, value := range self.store.ListValues(orderObj) {
		if value.Kind != ValueString {
			continue
		}
		if id, err := ParseId(value.Str); err == nil {
			order = append(order, id)
		}
	}
	return order
}

func (self *Document) setOrder(orderObj OpId, order []Id) {
	for n := self.store.ListLen(orderObj); 0 < n; n -= 1 {
		self.store.ListRemove(orderObj, n-1)
	}
	for _, id := range order {
		self.store.ListAppend(orderObj, StringValue(id.String()))
	}
}

func idSet(ids []Id) map[Id]bool {
	set := map[Id]bool{}
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func (self *Document) BringToFront(ids []Id) {
	if len(ids) == 0 {
		return
	}
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	set := idSet(ids)
	order := self.readOrder(rootShapeOrder)
	kept := []Id{}
	moved := []Id{}
	for _, id := range order {
		if set[id] {
			moved = append(moved, id)
		} else {
			kept = append(kept, id)
		}
	}
	self.setOrder(rootShapeOrder, append(kept, moved...))
	self.markDirty()
}

func (self *Document) SendToBack(ids []Id) {
	if len(ids) == 0 {
		return
	}
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	set := idSet(ids)
	order := self.readOrder(rootShapeOrder)
	kept := []Id{}
	moved := []Id{}
	for _, id := range order {
		if set[id] {
			moved = append(moved, id)
		} else {
			kept = append(kept, id)
		}
	}
	self.setOrder(rootShapeOrder, append(moved, kept...))
	self.markDirty()
}

func (self *Document) BringForward(ids []Id) {
	if len(ids) == 0 {
		return
	}
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	set := idSet(ids)
	order := self.readOrder(rootShapeOrder)
	// scan from the top down so a moved shape does not cascade past
	// several neighbors in one call
	for i := len(order) - 2; 0 <= i; i -= 1 {
		if set[order[i]] && !set[order[i+1]] {
			order[i], order[i+1] = order[i+1], order[i]
		}
	}
	self.setOrder(rootShapeOrder, order)
	self.markDirty()
}

func (self *Document) SendBackward(ids []Id) {
	if len(ids) == 0 {
		return
	}
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	set := idSet(ids)
	order := self.readOrder(rootShapeOrder)
	// scan from the bottom up, mirroring BringForward
	for i := 1; i < len(order); i += 1 {
		if set[order[i]] && !set[order[i-1]] {
			order[i], order[i-1] = order[i-1], order[i]
		}
	}
	self.setOrder(rootShapeOrder, order)
	self.markDirty()
}

// --- movement and connections ---

func (self *Document) TranslateShape(id Id, dx int32, dy int32) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if shape, ok := self.readShape(id); ok {
		self.updateShape(id, shape.Translated(dx, dy))
		self.markDirty()
	}
}

// UpdateConnectionsForMove drags connected line endpoints along with a
// moved shape. Returns the ids of the connectors that changed.
func (self *Document) UpdateConnectionsForMove(movedId Id, dx int32, dy int32) []Id {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	updated := []Id{}
	for _, record := range self.readAllShapes() {
		shape := record.Shape
		if !shape.IsConnector() {
			continue
		}
		changed := false
		if shape.StartConnection == movedId {
			shape.Start = shape.Start.Translate(dx, dy)
			changed = true
		}
		if shape.EndConnection == movedId {
			shape.End = shape.End.Translate(dx, dy)
			changed = true
		}
		if changed {
			self.updateShape(record.Id, shape)
			updated = append(updated, record.Id)
		}
	}
	if 0 < len(updated) {
		self.markDirty()
	}
	return updated
}

// UpdateConnectionsForResize moves connected endpoints to the matching
// snap point on the resized geometry. Endpoints whose snap point cannot
// be matched stay put.
func (self *Document) UpdateConnectionsForResize(resizedId Id, oldShape *Shape, newShape *Shape) []Id {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if len(oldShape.SnapPoints()) != len(newShape.SnapPoints()) {
		return nil
	}

	updated := []Id{}
	for _, record := range self.readAllShapes() {
		shape := record.Shape
		if !shape.IsConnector() {
			continue
		}
		changed := false
		if shape.StartConnection == resizedId {
			if pos, ok := FindCorrespondingSnap(oldShape, newShape, shape.Start); ok {
				shape.Start = pos
				changed = true
			}
		}
		if shape.EndConnection == resizedId {
			if pos, ok := FindCorrespondingSnap(oldShape, newShape, shape.End); ok {
				shape.End = pos
				changed = true
			}
		}
		if changed {
			self.updateShape(record.Id, shape)
			updated = append(updated, record.Id)
		}
	}
	if 0 < len(updated) {
		self.markDirty()
	}
	return updated
}

// --- groups ---

func (self *Document) CreateGroup(members []Id, parent Id) (Id, error) {
	if len(members) == 0 {
		return Id{}, fmt.Errorf("cannot create empty group")
	}
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	id := NewId()
	groupObj := self.store.MapPutObject(rootGroups, id.String(), ObjectMap)
	membersObj := self.store.MapPutObject(groupObj, "members", ObjectList)
	for _, memberId := range members {
		self.store.ListAppend(membersObj, StringValue(memberId.String()))
	}
	if !parent.IsZero() {
		self.store.MapPut(groupObj, "parent", StringValue(parent.String()))
	}
	for _, memberId := range members {
		self.setShapeGroup(memberId, id)
	}
	self.markDirty()
	return id, nil
}

// DeleteGroup removes the group and clears membership from its shapes.
func (self *Document) DeleteGroup(id Id) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if group, ok := self.readGroup(id); ok {
		for _, memberId := range group.Members {
			self.setShapeGroup(memberId, Id{})
		}
	}
	self.store.MapDelete(rootGroups, id.String())
	self.markDirty()
}

func (self *Document) ReadGroup(id Id) (Group, bool) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.readGroup(id)
}

func (self *Document) readGroup(id Id) (Group, bool) {
	value, ok := self.store.MapGet(rootGroups, id.String())
	if !ok || value.Kind != ValueObject {
		return Group{}, false
	}
	groupObj := value.Object

	group := Group{
		Id: id,
	}
	if membersValue, ok := self.store.MapGet(groupObj, "members"); ok && membersValue.Kind == ValueObject {
		for _, memberValue := range self.store.ListValues(membersValue.Object) {
			if memberValue.Kind != ValueString {
				continue
			}
			if memberId, err := ParseId(memberValue.Str); err == nil {
				group.Members = append(group.Members, memberId)
			}
		}
	}
	if parentStr := getString(self.store, groupObj, "parent"); parentStr != "" {
		if parentId, err := ParseId(parentStr); err == nil {
			group.Parent = parentId
		}
	}
	return group, true
}

func (self *Document) ReadAllGroups() []Group {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.readAllGroups()
}

func (self *Document) readAllGroups() []Group {
	groups := []Group{}
	for _, key := range self.store.MapKeys(rootGroups) {
		id, err := ParseId(key)
		if err != nil {
			continue
		}
		if group, ok := self.readGroup(id); ok {
			groups = append(groups, group)
		}
	}
	return groups
}

func (self *Document) GetShapeGroup(id Id) (Id, bool) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.shapeGroup(id)
}

func (self *Document) shapeGroup(id Id) (Id, bool) {
	value, ok := self.store.MapGet(rootShapes, id.String())
	if !ok || value.Kind != ValueObject {
		return Id{}, false
	}
	groupStr := getString(self.store, value.Object, "group_id")
	if groupStr == "" {
		return Id{}, false
	}
	groupId, err := ParseId(groupStr)
	if err != nil {
		return Id{}, false
	}
	return groupId, true
}

// SetShapeGroup assigns a shape to a group. A zero groupId clears the
// assignment.
func (self *Document) SetShapeGroup(id Id, groupId Id) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.setShapeGroup(id, groupId)
	self.markDirty()
}

func (self *Document) setShapeGroup(id Id, groupId Id) {
	value, ok := self.store.MapGet(rootShapes, id.String())
	if !ok || value.Kind != ValueObject {
		return
	}
	if groupId.IsZero() {
		self.store.MapDelete(value.Object, "group_id")
	} else {
		self.store.MapPut(value.Object, "group_id", StringValue(groupId.String()))
	}
}

// SetGroupParent nests a group under another. A zero parent makes the
// group top level.
func (self *Document) SetGroupParent(id Id, parent Id) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	value, ok := self.store.MapGet(rootGroups, id.String())
	if !ok || value.Kind != ValueObject {
		return
	}
	if parent.IsZero() {
		self.store.MapDelete(value.Object, "parent")
	} else {
		self.store.MapPut(value.Object, "parent", StringValue(parent.String()))
	}
	self.markDirty()
}

// GetRootGroup walks the parent chain to the topmost group. Cycles from
// concurrent reparenting terminate at the repeated node.
func (self *Document) GetRootGroup(id Id) Id {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	current := id
	seen := map[Id]bool{}
	for {
		group, ok := self.readGroup(current)
		if !ok || group.Parent.IsZero() {
			return current
		}
		if seen[group.Parent] {
			return current
		}
		seen[current] = true
		current = group.Parent
	}
}

// GetAllGroupShapes collects member shapes of a group and every group
// nested under it.
func (self *Document) GetAllGroupShapes(id Id) []Id {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	allShapes := []Id{}
	toVisit := []Id{id}
	visited := map[Id]bool{}
	for 0 < len(toVisit) {
		groupId := toVisit[len(toVisit)-1]
		toVisit = toVisit[:len(toVisit)-1]
		if visited[groupId] {
			continue
		}
		visited[groupId] = true

		group, ok := self.readGroup(groupId)
		if !ok {
			continue
		}
		allShapes = append(allShapes, group.Members...)
		for _, nested := range self.readAllGroups() {
			if nested.Parent == groupId {
				toVisit = append(toVisit, nested.Id)
			}
		}
	}
	return allShapes
}

// --- layers ---

func (self *Document) CreateLayer(name string) Id {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	id := NewId()
	layerObj := self.store.MapPutObject(rootLayers, id.String(), ObjectMap)
	self.store.MapPut(layerObj, "name", StringValue(name))
	self.store.MapPut(layerObj, "visible", BoolValue(true))
	self.store.MapPut(layerObj, "locked", BoolValue(false))
	self.store.ListAppend(rootLayerOrder, StringValue(id.String()))
	self.markDirty()
	return id
}

// DeleteLayer reassigns the layer's shapes to another layer, then removes
// it. The last remaining layer cannot be deleted.
func (self *Document) DeleteLayer(id Id) error {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	order := self.readOrder(rootLayerOrder)
	if len(order) <= 1 {
		return fmt.Errorf("cannot delete the last layer")
	}

	var fallback Id
	for _, layerId := range order {
		if layerId != id {
			fallback = layerId
			break
		}
	}
	if fallback.IsZero() {
		return fmt.Errorf("no other layer to move shapes to")
	}

	for _, record := range self.readAllShapes() {
		if layerId, ok := self.shapeLayer(record.Id); ok && layerId == id {
			self.setShapeLayer(record.Id, fallback)
		}
	}

	self.store.MapDelete(rootLayers, id.String())
	self.removeFromOrder(rootLayerOrder, id)
	self.markDirty()
	return nil
}

func (self *Document) ReadLayer(id Id) (Layer, bool) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.readLayer(id)
}

func (self *Document) readLayer(id Id) (Layer, bool) {
	value, ok := self.store.MapGet(rootLayers, id.String())
	if !ok || value.Kind != ValueObject {
		return Layer{}, false
	}
	layerObj := value.Object

	layer := Layer{
		Id:      id,
		Name:    "Unnamed",
		Visible: true,
	}
	if name := getString(self.store, layerObj, "name"); name != "" {
		layer.Name = name
	}
	if v, ok := self.store.MapGet(layerObj, "visible"); ok && v.Kind == ValueBool {
		layer.Visible = v.Bool
	}
	if v, ok := self.store.MapGet(layerObj, "locked"); ok && v.Kind == ValueBool {
		layer.Locked = v.Bool
	}
	return layer, true
}

func (self *Document) ReadLayerOrder() []Id {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.readOrder(rootLayerOrder)
}

func (self *Document) ReadAllLayers() []Layer {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	layers := []Layer{}
	for _, id := range self.readOrder(rootLayerOrder) {
		if layer, ok := self.readLayer(id); ok {
			layers = append(layers, layer)
		}
	}
	return layers
}

// DefaultLayer is the bottom layer in the order.
func (self *Document) DefaultLayer() (Id, error) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	order := self.readOrder(rootLayerOrder)
	if len(order) == 0 {
		return Id{}, fmt.Errorf("no layers in document")
	}
	return order[0], nil
}

func (self *Document) RenameLayer(id Id, name string) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if value, ok := self.store.MapGet(rootLayers, id.String()); ok && value.Kind == ValueObject {
		self.store.MapPut(value.Object, "name", StringValue(name))
		self.markDirty()
	}
}

func (self *Document) SetLayerVisible(id Id, visible bool) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if value, ok := self.store.MapGet(rootLayers, id.String()); ok && value.Kind == ValueObject {
		self.store.MapPut(value.Object, "visible", BoolValue(visible))
		self.markDirty()
	}
}

func (self *Document) SetLayerLocked(id Id, locked bool) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if value, ok := self.store.MapGet(rootLayers, id.String()); ok && value.Kind == ValueObject {
		self.store.MapPut(value.Object, "locked", BoolValue(locked))
		self.markDirty()
	}
}

func (self *Document) GetShapeLayer(id Id) (Id, bool) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.shapeLayer(id)
}

func (self *Document) shapeLayer(id Id) (Id, bool) {
	value, ok := self.store.MapGet(rootShapes, id.String())
	if !ok || value.Kind != ValueObject {
		return Id{}, false
	}
	layerStr := getString(self.store, value.Object, "layer_id")
	if layerStr == "" {
		return Id{}, false
	}
	layerId, err := ParseId(layerStr)
	if err != nil {
		return Id{}, false
	}
	return layerId, true
}

func (self *Document) SetShapeLayer(id Id, layerId Id) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.setShapeLayer(id, layerId)
	self.markDirty()
}

func (self *Document) setShapeLayer(id Id, layerId Id) {
	value, ok := self.store.MapGet(rootShapes, id.String())
	if !ok || value.Kind != ValueObject {
		return
	}
	if layerId.IsZero() {
		self.store.MapDelete(value.Object, "layer_id")
	} else {
		self.store.MapPut(value.Object, "layer_id", StringValue(layerId.String()))
	}
}

// MoveLayer places the layer at newIndex in the order, clamped to the
// valid range.
func (self *Document) MoveLayer(id Id, newIndex int) error {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	order := self.readOrder(rootLayerOrder)
	currentPos := -1
	for i, layerId := range order {
		if layerId == id {
			currentPos = i
			break
		}
	}
	if currentPos < 0 {
		return fmt.Errorf("layer not found in order")
	}

	order = append(order[:currentPos], order[currentPos+1:]...)
	if len(order) < newIndex {
		newIndex = len(order)
	}
	if newIndex < 0 {
		newIndex = 0
	}
	order = append(order[:newIndex], append([]Id{id}, order[newIndex:]...)...)

	self.setOrder(rootLayerOrder, order)
	self.markDirty()
	return nil
}

// --- sync ---

func (self *Document) Version() VersionVector {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.store.Version()
}

func (self *Document) GenerateSyncMessage(state *SyncState, batchLimit int) *SyncMessage {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.store.GenerateSyncMessage(state, batchLimit)
}

func (self *Document) ReceiveSyncMessage(state *SyncState, message *SyncMessage) bool {
	self.stateLock.Lock()
	changed := self.store.ReceiveSyncMessage(state, message)
	if changed {
		self.markDirty()
	}
	self.stateLock.Unlock()
	return changed
}
