package collab

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"
)

// comparable
// 128-bit random identifier, stable across merges.
// used for shapes, groups, layers, peers, and crdt actors.
type Id [16]byte

func NewId() Id {
	return Id(ulid.Make())
}

func IdFromBytes(idBytes []byte) (Id, error) {
	if len(idBytes) != 16 {
		return Id{}, errors.New("Id must be 16 bytes")
	}
	return Id(idBytes), nil
}

func RequireIdFromBytes(idBytes []byte) Id {
	id, err := IdFromBytes(idBytes)
	if err != nil {
		panic(err)
	}
	return id
}

func ParseId(idStr string) (Id, error) {
	return parseUuid(idStr)
}

func (self Id) Bytes() []byte {
	return self[0:16]
}

func (self Id) IsZero() bool {
	return self == Id{}
}

func (self Id) String() string {
	return encodeUuid(self)
}

// sort order for lww tie-breaks
func (self Id) Cmp(other Id) int {
	return bytes.Compare(self[0:16], other[0:16])
}

func parseUuid(src string) (dst [16]byte, err error) {
	switch len(src) {
	case 36:
		src = src[0:8] + src[9:13] + src[14:18] + src[19:23] + src[24:]
	case 32:
		// dashes already stripped, assume valid
	default:
		// assume invalid.
		return dst, fmt.Errorf("cannot parse id %v", src)
	}

	buf, err := hex.DecodeString(src)
	if err != nil {
		return dst, err
	}

	copy(dst[:], buf)
	return dst, err
}

func encodeUuid(src [16]byte) string {
	return fmt.Sprintf("%x-%x-%x-%x-%x", src[0:4], src[4:6], src[6:8], src[8:10], src[10:16])
}

// comparable
// a cell coordinate on the shared canvas
type Position struct {
	X int32
	Y int32
}

func NewPosition(x int32, y int32) Position {
	return Position{X: x, Y: y}
}

func (self Position) Translate(dx int32, dy int32) Position {
	return Position{X: self.X + dx, Y: self.Y + dy}
}

// manhattan distance, used for snap point correspondence
func (self Position) ManhattanDistance(other Position) int32 {
	dx := self.X - other.X
	if dx < 0 {
		dx = -dx
	}
	dy := self.Y - other.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// use this type when counting bytes
type ByteCount = int64

func kib(c ByteCount) ByteCount {
	return c * ByteCount(1024)
}

func mib(c ByteCount) ByteCount {
	return c * ByteCount(1024*1024)
}
