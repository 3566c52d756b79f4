package collab

import (
	"fmt"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestUndoRedo(t *testing.T) {
	document := NewDocument()

	a := document.AddShape(rectShape(0, 0, 1, 1))

	assert.Equal(t, document.PushUndoCheckpoint(), nil)
	b := document.AddShape(rectShape(5, 5, 6, 6))
	assert.Equal(t, document.ShapeCount(), 2)

	undone, err := document.Undo()
	assert.Equal(t, err, nil)
	assert.Equal(t, undone, true)
	assert.Equal(t, document.ShapeCount(), 1)
	_, ok := document.ReadShape(b)
	assert.Equal(t, ok, false)
	assert.Equal(t, document.ReadShapeOrder(), []Id{a})
	assert.Equal(t, document.RedoDepth(), 1)

	redone, err := document.Redo()
	assert.Equal(t, err, nil)
	assert.Equal(t, redone, true)
	assert.Equal(t, document.ShapeCount(), 2)
	_, ok = document.ReadShape(b)
	assert.Equal(t, ok, true)
	assert.Equal(t, document.ReadShapeOrder(), []Id{a, b})

	// nothing left on either stack after one more undo+undo
	document.Undo()
	undone, err = document.Undo()
	assert.Equal(t, err, nil)
	assert.Equal(t, undone, false)
}

func TestUndoRestoresGeometryAndAssignments(t *testing.T) {
	document := NewDocument()

	id := document.AddShape(rectShape(0, 0, 10, 5))
	layerId := document.CreateLayer("Overlay")
	document.SetShapeLayer(id, layerId)
	other := document.AddShape(rectShape(20, 0, 21, 1))
	groupId, _ := document.CreateGroup([]Id{id, other}, Id{})

	document.PushUndoCheckpoint()
	document.UpdateShape(id, rectShape(3, 3, 30, 15))
	document.SetShapeLayer(id, Id{})

	undone, err := document.Undo()
	assert.Equal(t, err, nil)
	assert.Equal(t, undone, true)

	shape, ok := document.ReadShape(id)
	assert.Equal(t, ok, true)
	assert.Equal(t, shape.Start, NewPosition(0, 0))
	assert.Equal(t, shape.End, NewPosition(10, 5))

	gotLayer, ok := document.GetShapeLayer(id)
	assert.Equal(t, ok, true)
	assert.Equal(t, gotLayer, layerId)
	gotGroup, ok := document.GetShapeGroup(id)
	assert.Equal(t, ok, true)
	assert.Equal(t, gotGroup, groupId)
}

func TestPushCheckpointClearsRedo(t *testing.T) {
	document := NewDocument()

	document.PushUndoCheckpoint()
	document.AddShape(rectShape(0, 0, 1, 1))
	document.Undo()
	assert.Equal(t, document.RedoDepth(), 1)

	document.PushUndoCheckpoint()
	assert.Equal(t, document.RedoDepth(), 0)

	redone, err := document.Redo()
	assert.Equal(t, err, nil)
	assert.Equal(t, redone, false)
}

func TestUndoHistoryDepthBounded(t *testing.T) {
	document := NewDocument()

	for i := 0; i < maxUndoHistory+10; i += 1 {
		document.AddShape(Shape{
			Kind:    ShapeText,
			Pos:     NewPosition(int32(i), 0),
			Content: fmt.Sprintf("t%d", i),
		})
		document.PushUndoCheckpoint()
	}
	assert.Equal(t, document.UndoDepth(), maxUndoHistory)

	// the oldest checkpoints fell off; the newest still undoes cleanly
	undone, err := document.Undo()
	assert.Equal(t, err, nil)
	assert.Equal(t, undone, true)
	assert.Equal(t, document.ShapeCount(), maxUndoHistory+10)
}

func TestClearUndoHistory(t *testing.T) {
	document := NewDocument()

	document.PushUndoCheckpoint()
	document.AddShape(rectShape(0, 0, 1, 1))
	document.PushUndoCheckpoint()
	document.Undo()

	document.ClearUndoHistory()
	assert.Equal(t, document.UndoDepth(), 0)
	assert.Equal(t, document.RedoDepth(), 0)
}

func TestUndoStacksReplicate(t *testing.T) {
	a := NewDocument()
	b := NewDocument()
	syncDocuments(a, b)

	a.PushUndoCheckpoint()
	a.AddShape(rectShape(0, 0, 4, 4))
	syncDocuments(a, b)
	assert.Equal(t, b.UndoDepth(), 1)

	// the peer that did not make the change can undo it
	undone, err := b.Undo()
	assert.Equal(t, err, nil)
	assert.Equal(t, undone, true)
	syncDocuments(a, b)

	assert.Equal(t, a.ShapeCount(), 0)
	assert.Equal(t, b.ShapeCount(), 0)
}
