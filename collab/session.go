package collab

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
)

// a session hosts one document on the network: it accepts inbound peers,
// dials tickets, and runs a document sync loop and a presence loop per
// peer. Events surface to the embedding ui through a buffered channel.

type ProtocolId byte

const (
	ProtocolDoc      ProtocolId = 1
	ProtocolPresence ProtocolId = 2
)

var handshakeMagic = []byte{'M', 'S', 'H', 'D'}

type SessionEventType int

const (
	SessionEventReady SessionEventType = iota
	SessionEventDocumentChanged
	SessionEventPresenceUpdated
	SessionEventPresenceRemoved
	SessionEventPeerConnected
	SessionEventPeerDisconnected
	SessionEventError
)

type SessionEvent struct {
	Type     SessionEventType
	Ticket   string
	PeerId   Id
	Presence *PeerPresence
	Err      error
}

type SessionSettings struct {
	// host:port to listen on. empty disables the listener, for replicas
	// that only dial out.
	ListenAddress string

	HandshakeTimeout time.Duration
	EventBufferSize  int

	SyncSettings     *SyncEngineSettings
	PresenceSettings *PresenceSettings
}

func DefaultSessionSettings() *SessionSettings {
	return &SessionSettings{
		ListenAddress:    "127.0.0.1:0",
		HandshakeTimeout: 5 * time.Second,
		EventBufferSize:  64,
		SyncSettings:     DefaultSyncEngineSettings(),
		PresenceSettings: DefaultPresenceSettings(),
	}
}

type Session struct {
	ctx    context.Context
	cancel context.CancelFunc

	document *Document
	peerId   Id
	settings *SessionSettings

	listener net.Listener
	ticket   string

	presence  *PresenceManager
	broadcast *PresenceBroadcast

	events chan *SessionEvent

	stateLock sync.Mutex
	peerCount int
}

func NewSessionWithDefaults(ctx context.Context, document *Document) (*Session, error) {
	return NewSession(ctx, document, DefaultSessionSettings())
}

func NewSession(ctx context.Context, document *Document, settings *SessionSettings) (*Session, error) {
	cancelCtx, cancel := context.WithCancel(ctx)

	peerId := NewId()
	session := &Session{
		ctx:       cancelCtx,
		cancel:    cancel,
		document:  document,
		peerId:    peerId,
		settings:  settings,
		presence:  NewPresenceManager(peerId, settings.PresenceSettings),
		broadcast: NewPresenceBroadcast(peerId),
		events:    make(chan *SessionEvent, settings.EventBufferSize),
	}

	if settings.ListenAddress != "" {
		listener, err := net.Listen("tcp", settings.ListenAddress)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("listen: %w", err)
		}
		session.listener = listener

		ticket, err := EncodeTicket(&Ticket{
			PeerId: peerId,
			Addrs:  []string{"tcp://" + listener.Addr().String()},
		})
		if err != nil {
			listener.Close()
			cancel()
			return nil, err
		}
		session.ticket = ticket

		go session.acceptLoop()
	} else {
		ticket, err := EncodeTicket(&Ticket{
			PeerId: peerId,
		})
		if err != nil {
			cancel()
			return nil, err
		}
		session.ticket = ticket
	}

	go session.pruneLoop()

	session.emit(&SessionEvent{
		Type:   SessionEventReady,
		Ticket: session.ticket,
		PeerId: peerId,
	})

	return session, nil
}

func (self *Session) PeerId() Id {
	return self.peerId
}

func (self *Session) Ticket() string {
	return self.ticket
}

func (self *Session) Document() *Document {
	return self.document
}

func (self *Session) Presence() *PresenceManager {
	return self.presence
}

func (self *Session) Events() <-chan *SessionEvent {
	return self.events
}

func (self *Session) PeerCount() int {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.peerCount
}

// events are advisory. a full queue drops rather than stalling sync.
func (self *Session) emit(event *SessionEvent) {
	select {
	case self.events <- event:
	default:
		glog.V(1).Infof("[session]dropped event %d\n", event.Type)
	}
}

// --- handshake ---

func (self *Session) writeHandshake(conn io.Writer, protocol ProtocolId) error {
	header := make([]byte, 0, 21)
	header = append(header, handshakeMagic...)
	header = append(header, byte(protocol))
	header = append(header, self.peerId.Bytes()...)
	_, err := conn.Write(header)
	return err
}

func readHandshake(conn io.Reader) (ProtocolId, Id, error) {
	header := make([]byte, 21)
	if _, err := io.ReadFull(conn, header); err != nil {
		return 0, Id{}, err
	}
	for i, c := range handshakeMagic {
		if header[i] != c {
			return 0, Id{}, fmt.Errorf("bad handshake magic")
		}
	}
	protocol := ProtocolId(header[4])
	switch protocol {
	case ProtocolDoc, ProtocolPresence:
	default:
		return 0, Id{}, fmt.Errorf("unknown protocol %d", protocol)
	}
	peerId, err := IdFromBytes(header[5:21])
	if err != nil {
		return 0, Id{}, err
	}
	return protocol, peerId, nil
}

// --- accept path ---

func (self *Session) acceptLoop() {
	for {
		conn, err := self.listener.Accept()
		if err != nil {
			select {
			case <-self.ctx.Done():
			default:
				self.emit(&SessionEvent{
					Type: SessionEventError,
					Err:  err,
				})
			}
			return
		}
		go self.handleConn(conn)
	}
}

func (self *Session) handleConn(conn net.Conn) {
	if 0 < self.settings.HandshakeTimeout {
		conn.SetDeadline(time.Now().Add(self.settings.HandshakeTimeout))
	}
	protocol, remotePeerId, err := readHandshake(conn)
	if err == nil {
		err = self.writeHandshake(conn, protocol)
	}
	if err != nil {
		glog.V(1).Infof("[session]handshake failed: %s\n", err)
		conn.Close()
		return
	}
	conn.SetDeadline(time.Time{})
	self.runProtocol(conn, protocol, remotePeerId)
}

// HandleStream runs a protocol over an already-established stream, for
// transports that are not plain tcp. The handshake still flows over the
// stream.
func (self *Session) HandleStream(conn io.ReadWriteCloser) {
	protocol, remotePeerId, err := readHandshake(conn)
	if err == nil {
		err = self.writeHandshake(conn, protocol)
	}
	if err != nil {
		glog.V(1).Infof("[session]handshake failed: %s\n", err)
		conn.Close()
		return
	}
	self.runProtocol(conn, protocol, remotePeerId)
}

func (self *Session) runProtocol(conn io.ReadWriteCloser, protocol ProtocolId, remotePeerId Id) {
	switch protocol {
	case ProtocolDoc:
		self.runDocConn(conn, remotePeerId)
	case ProtocolPresence:
		self.runPresenceConn(conn, remotePeerId)
	}
}

func (self *Session) runDocConn(conn io.ReadWriteCloser, remotePeerId Id) {
	self.stateLock.Lock()
	self.peerCount += 1
	self.stateLock.Unlock()
	self.emit(&SessionEvent{
		Type:   SessionEventPeerConnected,
		PeerId: remotePeerId,
	})

	engine := NewSyncEngine(self.ctx, self.document, conn, func() {
		self.emit(&SessionEvent{
			Type: SessionEventDocumentChanged,
		})
	}, self.settings.SyncSettings)
	if err := engine.Run(); err != nil {
		glog.V(1).Infof("[session]doc sync with %s ended: %s\n", remotePeerId, err)
	}

	self.stateLock.Lock()
	self.peerCount -= 1
	self.stateLock.Unlock()
	self.emit(&SessionEvent{
		Type:   SessionEventPeerDisconnected,
		PeerId: remotePeerId,
	})
}

func (self *Session) runPresenceConn(conn io.ReadWriteCloser, remotePeerId Id) {
	err := RunPresenceLoop(self.ctx, conn, self.broadcast, self.handlePresenceMessage)
	if err != nil {
		glog.V(1).Infof("[session]presence with %s ended: %s\n", remotePeerId, err)
	}
}

func (self *Session) handlePresenceMessage(message *PresenceMessage) {
	switch message.Type {
	case PresenceUpdate:
		if message.Presence == nil || message.Presence.PeerId == self.peerId {
			return
		}
		self.presence.UpdatePeer(message.Presence)
		self.emit(&SessionEvent{
			Type:     SessionEventPresenceUpdated,
			PeerId:   message.Presence.PeerId,
			Presence: message.Presence,
		})
	case PresenceLeave:
		if self.presence.RemovePeer(message.PeerId) {
			self.emit(&SessionEvent{
				Type:   SessionEventPresenceRemoved,
				PeerId: message.PeerId,
			})
		}
	}
}

func (self *Session) pruneLoop() {
	ticker := time.NewTicker(self.settings.PresenceSettings.PruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-self.ctx.Done():
			return
		case <-ticker.C:
			for _, peerId := range self.presence.PruneStale() {
				self.emit(&SessionEvent{
					Type:   SessionEventPresenceRemoved,
					PeerId: peerId,
				})
			}
		}
	}
}

// --- dial path ---

// Join connects to the peer named by a ticket, opening document sync and
// presence streams. Addresses are tried in order until one accepts.
func (self *Session) Join(ticketStr string) error {
	ticket, err := DecodeTicket(ticketStr)
	if err != nil {
		return err
	}
	if len(ticket.Addrs) == 0 {
		return fmt.Errorf("ticket has no addresses")
	}

	var lastErr error
	for _, addr := range ticket.Addrs {
		docConn, err := self.dial(addr, ProtocolDoc)
		if err != nil {
			lastErr = err
			continue
		}
		presenceConn, err := self.dial(addr, ProtocolPresence)
		if err != nil {
			docConn.Close()
			lastErr = err
			continue
		}

		go self.runDocConn(docConn, ticket.PeerId)
		go self.runPresenceConn(presenceConn, ticket.PeerId)
		return nil
	}
	return fmt.Errorf("could not reach any ticket address: %w", lastErr)
}

func (self *Session) dial(addr string, protocol ProtocolId) (io.ReadWriteCloser, error) {
	var conn io.ReadWriteCloser
	var err error
	switch {
	case strings.HasPrefix(addr, "tcp://"):
		var netConn net.Conn
		netConn, err = net.DialTimeout("tcp", strings.TrimPrefix(addr, "tcp://"), self.settings.HandshakeTimeout)
		conn = netConn
	case strings.HasPrefix(addr, "ws://"), strings.HasPrefix(addr, "wss://"):
		conn, err = DialWs(self.ctx, addr)
	default:
		err = fmt.Errorf("unsupported address %s", addr)
	}
	if err != nil {
		return nil, err
	}

	if err := self.writeHandshake(conn, protocol); err != nil {
		conn.Close()
		return nil, err
	}
	remoteProtocol, _, err := readHandshake(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if remoteProtocol != protocol {
		conn.Close()
		return nil, fmt.Errorf("protocol mismatch")
	}
	return conn, nil
}

// --- local presence ---

// SetLocalPresence publishes this peer's cursor state to all connections.
func (self *Session) SetLocalPresence(cursorPos Position, activity CursorActivity) {
	self.broadcast.Broadcast(NewPeerPresence(self.peerId, cursorPos, activity))
}

// --- shutdown ---

// Shutdown announces departure to peers, then tears down connections and
// the listener.
func (self *Session) Shutdown() {
	self.broadcast.BroadcastLeave()
	// best effort: give connection loops a moment to flush the leave
	time.Sleep(100 * time.Millisecond)

	self.cancel()
	if self.listener != nil {
		self.listener.Close()
	}
}
