package collab

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// wire formats. Document sync frames are an 8 byte little endian length
// followed by a protowire-encoded sync message; a zero length frame is the
// caught-up sentinel. Presence frames are a 4 byte little endian length
// followed by a msgpack payload.

var (
	DefaultMaxSyncFrameByteCount     = mib(16)
	DefaultMaxPresenceFrameByteCount = kib(64)
)

var errFrameTooLarge = errors.New("frame exceeds maximum size")

func WriteSyncFrame(w io.Writer, payload []byte) error {
	var header [8]byte
	binary.LittleEndian.PutUint64(header[:], uint64(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := w.Write(payload)
	return err
}

func ReadSyncFrame(r io.Reader, maxByteCount ByteCount) ([]byte, error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint64(header[:])
	if n == 0 {
		return []byte{}, nil
	}
	if uint64(maxByteCount) < n {
		return nil, errFrameTooLarge
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func WritePresenceFrame(w io.Writer, payload []byte) error {
	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func ReadPresenceFrame(r io.Reader, maxByteCount ByteCount) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(header[:])
	if uint64(maxByteCount) < uint64(n) {
		return nil, errFrameTooLarge
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// --- op id ---

func parseOpId(b []byte) (OpId, error) {
	var opId OpId
	for 0 < len(b) {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return OpId{}, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return OpId{}, protowire.ParseError(n)
			}
			opId.Counter = v
			b = b[n:]
		case 2:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return OpId{}, protowire.ParseError(n)
			}
			actor, err := IdFromBytes(v)
			if err != nil {
				return OpId{}, err
			}
			opId.Actor = actor
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return OpId{}, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return opId, nil
}

func appendOpId(b []byte, num protowire.Number, opId OpId) []byte {
	var sub []byte
	sub = protowire.AppendTag(sub, 1, protowire.VarintType)
	sub = protowire.AppendVarint(sub, opId.Counter)
	sub = protowire.AppendTag(sub, 2, protowire.BytesType)
	sub = protowire.AppendBytes(sub, opId.Actor.Bytes())
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendBytes(b, sub)
	return b
}

func parseValue(b []byte) (Value, error) {
	var value Value
	for 0 < len(b) {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Value{}, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Value{}, protowire.ParseError(n)
			}
			value.Kind = ValueKind(v)
			b = b[n:]
		case 2:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return Value{}, protowire.ParseError(n)
			}
			value.Str = v
			b = b[n:]
		case 3:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Value{}, protowire.ParseError(n)
			}
			value.Int = protowire.DecodeZigZag(v)
			b = b[n:]
		case 4:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Value{}, protowire.ParseError(n)
			}
			value.Bool = v != 0
			b = b[n:]
		case 5:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Value{}, protowire.ParseError(n)
			}
			value.Bytes = append([]byte{}, v...)
			b = b[n:]
		case 6:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Value{}, protowire.ParseError(n)
			}
			opId, err := parseOpId(v)
			if err != nil {
				return Value{}, err
			}
			value.Object = opId
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Value{}, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return value, nil
}

// --- op ---

func encodeOpBytes(op *Op) []byte {
	var sub []byte
	sub = appendOpId(sub, 1, op.Id)
	sub = appendOpId(sub, 2, op.Obj)
	sub = protowire.AppendTag(sub, 3, protowire.VarintType)
	sub = protowire.AppendVarint(sub, uint64(op.Kind))
	if op.Key != "" {
		sub = protowire.AppendTag(sub, 4, protowire.BytesType)
		sub = protowire.AppendString(sub, op.Key)
	}
	if !op.Parent.IsZero() {
		sub = appendOpId(sub, 5, op.Parent)
	}
	if !op.Target.IsZero() {
		sub = appendOpId(sub, 6, op.Target)
	}
	switch op.Kind {
	case OpPut, OpInsert:
		sub = protowire.AppendTag(sub, 7, protowire.BytesType)
		sub = appendValueSub(sub, op.Value)
	case OpPutObject, OpInsertObject:
		sub = protowire.AppendTag(sub, 8, protowire.VarintType)
		sub = protowire.AppendVarint(sub, uint64(op.ObjectKind))
	}
	return sub
}

func appendValueSub(b []byte, value Value) []byte {
	var sub []byte
	sub = protowire.AppendTag(sub, 1, protowire.VarintType)
	sub = protowire.AppendVarint(sub, uint64(value.Kind))
	switch value.Kind {
	case ValueString:
		sub = protowire.AppendTag(sub, 2, protowire.BytesType)
		sub = protowire.AppendString(sub, value.Str)
	case ValueInt:
		sub = protowire.AppendTag(sub, 3, protowire.VarintType)
		sub = protowire.AppendVarint(sub, protowire.EncodeZigZag(value.Int))
	case ValueBool:
		sub = protowire.AppendTag(sub, 4, protowire.VarintType)
		if value.Bool {
			sub = protowire.AppendVarint(sub, 1)
		} else {
			sub = protowire.AppendVarint(sub, 0)
		}
	case ValueBytes:
		sub = protowire.AppendTag(sub, 5, protowire.BytesType)
		sub = protowire.AppendBytes(sub, value.Bytes)
	case ValueObject:
		sub = appendOpId(sub, 6, value.Object)
	}
	return protowire.AppendBytes(b, sub)
}

func parseOp(b []byte) (*Op, error) {
	op := &Op{}
	for 0 < len(b) {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case 1, 2, 5, 6:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			opId, err := parseOpId(v)
			if err != nil {
				return nil, err
			}
			switch num {
			case 1:
				op.Id = opId
			case 2:
				op.Obj = opId
			case 5:
				op.Parent = opId
			case 6:
				op.Target = opId
			}
			b = b[n:]
		case 3:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			op.Kind = OpKind(v)
			b = b[n:]
		case 4:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			op.Key = v
			b = b[n:]
		case 7:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			value, err := parseValue(v)
			if err != nil {
				return nil, err
			}
			op.Value = value
			b = b[n:]
		case 8:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			op.ObjectKind = ObjectKind(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	if op.Id.IsZero() {
		return nil, errors.New("op missing id")
	}
	return op, nil
}

// --- sync message ---

func EncodeSyncMessage(message *SyncMessage) []byte {
	var b []byte
	for actor, counter := range message.Version {
		var sub []byte
		sub = protowire.AppendTag(sub, 1, protowire.BytesType)
		sub = protowire.AppendBytes(sub, actor.Bytes())
		sub = protowire.AppendTag(sub, 2, protowire.VarintType)
		sub = protowire.AppendVarint(sub, counter)
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, sub)
	}
	for _, op := range message.Ops {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeOpBytes(op))
	}
	return b
}

func DecodeSyncMessage(b []byte) (*SyncMessage, error) {
	message := &SyncMessage{
		Version: VersionVector{},
	}
	for 0 < len(b) {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			actor, counter, err := parseVersionEntry(v)
			if err != nil {
				return nil, err
			}
			message.Version[actor] = counter
			b = b[n:]
		case 2:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			op, err := parseOp(v)
			if err != nil {
				return nil, err
			}
			message.Ops = append(message.Ops, op)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return message, nil
}

func parseVersionEntry(b []byte) (Id, uint64, error) {
	var actor Id
	var counter uint64
	for 0 < len(b) {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Id{}, 0, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Id{}, 0, protowire.ParseError(n)
			}
			id, err := IdFromBytes(v)
			if err != nil {
				return Id{}, 0, err
			}
			actor = id
			b = b[n:]
		case 2:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Id{}, 0, protowire.ParseError(n)
			}
			counter = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Id{}, 0, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return actor, counter, nil
}

// --- persisted document blob ---

var documentMagic = []byte{'M', 'D', 'O', 'C', 1}

func EncodeDocumentOps(ops []*Op) []byte {
	b := append([]byte{}, documentMagic...)
	for _, op := range ops {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeOpBytes(op))
	}
	return b
}

func DecodeDocumentOps(b []byte) ([]*Op, error) {
	if len(b) < len(documentMagic) {
		return nil, errors.New("truncated document")
	}
	for i, c := range documentMagic[:4] {
		if b[i] != c {
			return nil, errors.New("not a document blob")
		}
	}
	if b[4] != documentMagic[4] {
		return nil, fmt.Errorf("unsupported document version %d", b[4])
	}
	b = b[len(documentMagic):]

	ops := []*Op{}
	for 0 < len(b) {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			op, err := parseOp(v)
			if err != nil {
				return nil, err
			}
			ops = append(ops, op)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return ops, nil
}

// EncodeOp and DecodeOp expose the single-op codec for tooling.
func EncodeOp(op *Op) []byte {
	return encodeOpBytes(op)
}

func DecodeOp(b []byte) (*Op, error) {
	return parseOp(b)
}
