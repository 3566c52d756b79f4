package collab

import (
	"bytes"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestOpCodecRoundTrip(t *testing.T) {
	ops := []*Op{
		{
			Id:    OpId{Counter: 7, Actor: testActor(1)},
			Obj:   OpId{Counter: 1},
			Kind:  OpPut,
			Key:   "title",
			Value: StringValue("hello"),
		},
		{
			Id:         OpId{Counter: 8, Actor: testActor(1)},
			Obj:        OpId{Counter: 1},
			Kind:       OpPutObject,
			Key:        "child",
			ObjectKind: ObjectList,
		},
		{
			Id:     OpId{Counter: 3, Actor: testActor(2)},
			Obj:    OpId{Counter: 8, Actor: testActor(1)},
			Kind:   OpInsert,
			Parent: OpId{Counter: 2, Actor: testActor(2)},
			Value:  IntValue(-42),
		},
		{
			Id:   OpId{Counter: 4, Actor: testActor(2)},
			Obj:  OpId{Counter: 1},
			Kind: OpMapDelete,
			Key:  "title",
		},
		{
			Id:     OpId{Counter: 5, Actor: testActor(2)},
			Obj:    OpId{Counter: 8, Actor: testActor(1)},
			Kind:   OpRemove,
			Target: OpId{Counter: 3, Actor: testActor(2)},
		},
		{
			Id:    OpId{Counter: 9, Actor: testActor(1)},
			Obj:   OpId{Counter: 1},
			Kind:  OpPut,
			Key:   "flag",
			Value: BoolValue(true),
		},
		{
			Id:    OpId{Counter: 10, Actor: testActor(1)},
			Obj:   OpId{Counter: 1},
			Kind:  OpPut,
			Key:   "blob",
			Value: BytesValue([]byte{0x01, 0x02, 0x03}),
		},
		{
			Id:   OpId{Counter: 11, Actor: testActor(1)},
			Obj:  OpId{Counter: 1},
			Kind: OpPut,
			Key:  "ref",
			Value: Value{
				Kind:   ValueObject,
				Object: OpId{Counter: 8, Actor: testActor(1)},
			},
		},
	}
	for _, op := range ops {
		decoded, err := DecodeOp(EncodeOp(op))
		assert.Equal(t, err, nil)
		assert.Equal(t, decoded, op)
	}
}

func TestOpCodecRejectsMissingId(t *testing.T) {
	_, err := DecodeOp([]byte{})
	assert.NotEqual(t, err, nil)
}

func TestSyncMessageCodecRoundTrip(t *testing.T) {
	message := &SyncMessage{
		Version: VersionVector{
			testActor(1): 12,
			testActor(2): 5,
		},
		Ops: []*Op{
			{
				Id:    OpId{Counter: 12, Actor: testActor(1)},
				Obj:   OpId{Counter: 1},
				Kind:  OpPut,
				Key:   "k",
				Value: StringValue("v"),
			},
		},
	}

	decoded, err := DecodeSyncMessage(EncodeSyncMessage(message))
	assert.Equal(t, err, nil)
	assert.Equal(t, decoded.Version, message.Version)
	assert.Equal(t, decoded.Ops, message.Ops)

	// a bare announcement has a version and no ops
	announce := &SyncMessage{Version: VersionVector{testActor(3): 1}}
	decoded, err = DecodeSyncMessage(EncodeSyncMessage(announce))
	assert.Equal(t, err, nil)
	assert.Equal(t, decoded.Version, announce.Version)
	assert.Equal(t, len(decoded.Ops), 0)
}

func TestDocumentBlobRoundTrip(t *testing.T) {
	store := newTestStore(1, ObjectMap)
	store.MapPut(testRoot(), "title", StringValue("drawing"))
	childObj := store.MapPutObject(testRoot(), "items", ObjectList)
	store.ListAppend(childObj, StringValue("first"))

	blob := EncodeDocumentOps(store.AllOps())
	ops, err := DecodeDocumentOps(blob)
	assert.Equal(t, err, nil)
	assert.Equal(t, ops, store.AllOps())
}

func TestDocumentBlobRejectsBadHeader(t *testing.T) {
	_, err := DecodeDocumentOps([]byte{'M', 'D'})
	assert.NotEqual(t, err, nil)

	_, err = DecodeDocumentOps([]byte{'X', 'D', 'O', 'C', 1})
	assert.NotEqual(t, err, nil)

	// future format version
	_, err = DecodeDocumentOps([]byte{'M', 'D', 'O', 'C', 99})
	assert.NotEqual(t, err, nil)
}

func TestSyncFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	payload := []byte("sync payload")
	assert.Equal(t, WriteSyncFrame(&buf, payload), nil)
	assert.Equal(t, WriteSyncFrame(&buf, nil), nil)

	frame, err := ReadSyncFrame(&buf, DefaultMaxSyncFrameByteCount)
	assert.Equal(t, err, nil)
	assert.Equal(t, frame, payload)

	// the zero length sentinel
	frame, err = ReadSyncFrame(&buf, DefaultMaxSyncFrameByteCount)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(frame), 0)
}

func TestSyncFrameEnforcesMaxSize(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, WriteSyncFrame(&buf, make([]byte, 100)), nil)

	_, err := ReadSyncFrame(&buf, ByteCount(10))
	assert.Equal(t, err, errFrameTooLarge)
}

func TestPresenceFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	payload := []byte("presence payload")
	assert.Equal(t, WritePresenceFrame(&buf, payload), nil)

	frame, err := ReadPresenceFrame(&buf, DefaultMaxPresenceFrameByteCount)
	assert.Equal(t, err, nil)
	assert.Equal(t, frame, payload)

	assert.Equal(t, WritePresenceFrame(&buf, make([]byte, 100)), nil)
	_, err = ReadPresenceFrame(&buf, ByteCount(10))
	assert.Equal(t, err, errFrameTooLarge)
}
