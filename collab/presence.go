package collab

import (
	"fmt"
	"sync"
	"time"
)

// ephemeral peer presence: cursors and activities. Presence never touches
// the document store and is forgotten on disconnect or staleness.

const PeerColorCount = 8

type ToolKind string

const (
	ToolSelect        ToolKind = "Select"
	ToolFreehand      ToolKind = "Freehand"
	ToolText          ToolKind = "Text"
	ToolLine          ToolKind = "Line"
	ToolArrow         ToolKind = "Arrow"
	ToolRectangle     ToolKind = "Rectangle"
	ToolDoubleBox     ToolKind = "DoubleBox"
	ToolDiamond       ToolKind = "Diamond"
	ToolEllipse       ToolKind = "Ellipse"
	ToolTriangle      ToolKind = "Triangle"
	ToolParallelogram ToolKind = "Parallelogram"
	ToolHexagon       ToolKind = "Hexagon"
	ToolTrapezoid     ToolKind = "Trapezoid"
	ToolRoundedRect   ToolKind = "RoundedRect"
	ToolCylinder      ToolKind = "Cylinder"
	ToolCloud         ToolKind = "Cloud"
	ToolStar          ToolKind = "Star"
)

type ActivityKind string

const (
	ActivityIdle     ActivityKind = "Idle"
	ActivityDrawing  ActivityKind = "Drawing"
	ActivitySelected ActivityKind = "Selected"
	ActivityDragging ActivityKind = "Dragging"
	ActivityResizing ActivityKind = "Resizing"
	ActivityTyping   ActivityKind = "Typing"
)

// CursorActivity is what the peer is doing. Fields beyond Kind apply per
// activity: Drawing carries Tool/Start/Current, Selected/Dragging/
// Resizing carry ShapeId, Typing carries Position.
type CursorActivity struct {
	Kind ActivityKind `msgpack:"kind"`

	Tool    ToolKind `msgpack:"tool,omitempty"`
	Start   Position `msgpack:"start,omitempty"`
	Current Position `msgpack:"current,omitempty"`

	ShapeId Id `msgpack:"shape_id,omitempty"`

	Position Position `msgpack:"position,omitempty"`
}

func IdleActivity() CursorActivity {
	return CursorActivity{Kind: ActivityIdle}
}

func (self *CursorActivity) Label() string {
	switch self.Kind {
	case ActivityDrawing:
		return "Drawing"
	case ActivitySelected:
		return "Selected"
	case ActivityDragging:
		return "Moving"
	case ActivityResizing:
		return "Resizing"
	case ActivityTyping:
		return "Typing"
	}
	return "Idle"
}

type PeerPresence struct {
	PeerId      Id             `msgpack:"peer_id"`
	CursorPos   Position       `msgpack:"cursor_pos"`
	Activity    CursorActivity `msgpack:"activity"`
	ColorIndex  uint8          `msgpack:"color_index"`
	TimestampMs uint64         `msgpack:"timestamp_ms"`
}

func NewPeerPresence(peerId Id, cursorPos Position, activity CursorActivity) *PeerPresence {
	return &PeerPresence{
		PeerId:      peerId,
		CursorPos:   cursorPos,
		Activity:    activity,
		ColorIndex:  peerId[0] % PeerColorCount,
		TimestampMs: uint64(time.Now().UnixMilli()),
	}
}

// DisplayName is a short per-peer handle derived from the id.
func (self *PeerPresence) DisplayName() string {
	return fmt.Sprintf("Peer-%02x%02x", self.PeerId[0], self.PeerId[1])
}

type PresenceSettings struct {
	StaleTimeout  time.Duration
	PruneInterval time.Duration
}

func DefaultPresenceSettings() *PresenceSettings {
	return &PresenceSettings{
		StaleTimeout:  5 * time.Second,
		PruneInterval: 1 * time.Second,
	}
}

type peerEntry struct {
	presence   *PeerPresence
	lastUpdate time.Time
}

// PresenceManager tracks remote peers. Safe for concurrent use by
// connection loops and the prune ticker.
type PresenceManager struct {
	localPeerId Id
	settings    *PresenceSettings

	stateLock sync.Mutex
	peers     map[Id]*peerEntry
}

func NewPresenceManagerWithDefaults(localPeerId Id) *PresenceManager {
	return NewPresenceManager(localPeerId, DefaultPresenceSettings())
}

func NewPresenceManager(localPeerId Id, settings *PresenceSettings) *PresenceManager {
	return &PresenceManager{
		localPeerId: localPeerId,
		settings:    settings,
		peers:       map[Id]*peerEntry{},
	}
}

func (self *PresenceManager) LocalPeerId() Id {
	return self.localPeerId
}

// UpdatePeer records a presence update. Our own presence is never stored.
func (self *PresenceManager) UpdatePeer(presence *PeerPresence) {
	if presence.PeerId == self.localPeerId {
		return
	}
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.peers[presence.PeerId] = &peerEntry{
		presence:   presence,
		lastUpdate: time.Now(),
	}
}

func (self *PresenceManager) RemovePeer(peerId Id) bool {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	if _, ok := self.peers[peerId]; !ok {
		return false
	}
	delete(self.peers, peerId)
	return true
}

// PruneStale drops peers with no update inside the stale timeout and
// returns their ids.
func (self *PresenceManager) PruneStale() []Id {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	now := time.Now()
	pruned := []Id{}
	for peerId, entry := range self.peers {
		if self.settings.StaleTimeout <= now.Sub(entry.lastUpdate) {
			delete(self.peers, peerId)
			pruned = append(pruned, peerId)
		}
	}
	return pruned
}

func (self *PresenceManager) ActivePeers() []*PeerPresence {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	peers := make([]*PeerPresence, 0, len(self.peers))
	for _, entry := range self.peers {
		peers = append(peers, entry.presence)
	}
	return peers
}

func (self *PresenceManager) PeerCount() int {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return len(self.peers)
}
