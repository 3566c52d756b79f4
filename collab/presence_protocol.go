package collab

import (
	"context"
	"io"
	"sync"

	"github.com/golang/glog"
	"github.com/vmihailenco/msgpack/v5"
)

// presence wire protocol: length-prefixed msgpack messages fanned out to
// every presence connection. Presence is lossy by design; a slow
// connection drops intermediate updates and resynchronizes from the
// latest local state.

type PresenceMessageType int

const (
	PresenceUpdate     PresenceMessageType = 1
	PresenceLeave      PresenceMessageType = 2
	PresenceRequestAll PresenceMessageType = 3
)

type PresenceMessage struct {
	Type     PresenceMessageType `msgpack:"type"`
	Presence *PeerPresence       `msgpack:"presence,omitempty"`
	PeerId   Id                  `msgpack:"peer_id,omitempty"`
}

func EncodePresenceMessage(message *PresenceMessage) ([]byte, error) {
	return msgpack.Marshal(message)
}

func DecodePresenceMessage(b []byte) (*PresenceMessage, error) {
	message := &PresenceMessage{}
	if err := msgpack.Unmarshal(b, message); err != nil {
		return nil, err
	}
	return message, nil
}

type presenceSubscriber struct {
	c      chan *PresenceMessage
	lagged bool
}

// PresenceBroadcast fans presence messages out to subscribed connection
// loops and remembers the latest local presence for lag recovery and
// RequestAll replies.
type PresenceBroadcast struct {
	localPeerId Id

	subscribers CallbackList[*presenceSubscriber]

	stateLock     sync.Mutex
	localPresence *PeerPresence
}

func NewPresenceBroadcast(localPeerId Id) *PresenceBroadcast {
	return &PresenceBroadcast{
		localPeerId: localPeerId,
	}
}

func (self *PresenceBroadcast) LocalPeerId() Id {
	return self.localPeerId
}

func (self *PresenceBroadcast) LocalPresence() *PeerPresence {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.localPresence
}

func (self *PresenceBroadcast) subscribe() *presenceSubscriber {
	sub := &presenceSubscriber{
		c: make(chan *PresenceMessage, 64),
	}
	self.subscribers.Add(sub)
	return sub
}

func (self *PresenceBroadcast) unsubscribe(sub *presenceSubscriber) {
	self.subscribers.Remove(sub)
}

// consumeLagged reads and clears the lag flag
func (self *PresenceBroadcast) consumeLagged(sub *presenceSubscriber) bool {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	lagged := sub.lagged
	sub.lagged = false
	return lagged
}

func (self *PresenceBroadcast) fanout(message *PresenceMessage) {
	for _, sub := range self.subscribers.Get() {
		select {
		case sub.c <- message:
		default:
			// full. drop the oldest so the queue keeps moving, and mark
			// the subscriber to resend the latest local state.
			select {
			case <-sub.c:
			default:
			}
			select {
			case sub.c <- message:
			default:
			}
			self.stateLock.Lock()
			sub.lagged = true
			self.stateLock.Unlock()
		}
	}
}

// Broadcast sends a local presence update to all connections.
func (self *PresenceBroadcast) Broadcast(presence *PeerPresence) {
	self.stateLock.Lock()
	self.localPresence = presence
	self.stateLock.Unlock()
	self.fanout(&PresenceMessage{
		Type:     PresenceUpdate,
		Presence: presence,
	})
}

// BroadcastLeave announces a graceful exit.
func (self *PresenceBroadcast) BroadcastLeave() {
	self.fanout(&PresenceMessage{
		Type:   PresenceLeave,
		PeerId: self.localPeerId,
	})
}

func writePresenceMessage(w io.Writer, message *PresenceMessage) error {
	data, err := EncodePresenceMessage(message)
	if err != nil {
		return err
	}
	return WritePresenceFrame(w, data)
}

// RunPresenceLoop drives one presence connection: it requests the peer's
// state on connect, relays broadcast messages out, and hands incoming
// messages to the callback. Blocking; callers run it in a goroutine.
func RunPresenceLoop(
	ctx context.Context,
	conn io.ReadWriteCloser,
	broadcast *PresenceBroadcast,
	incoming func(*PresenceMessage),
) error {
	cancelCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer conn.Close()

	sub := broadcast.subscribe()
	defer broadcast.unsubscribe(sub)

	// buffered so the reader keeps draining while this loop is mid-write
	messages := make(chan *PresenceMessage, 64)
	readErr := make(chan error, 1)
	go func() {
		defer close(messages)
		for {
			frame, err := ReadPresenceFrame(conn, DefaultMaxPresenceFrameByteCount)
			if err != nil {
				readErr <- err
				return
			}
			message, err := DecodePresenceMessage(frame)
			if err != nil {
				glog.V(1).Infof("[presence]drop bad frame: %s\n", err)
				continue
			}
			select {
			case messages <- message:
			case <-cancelCtx.Done():
				return
			}
		}
	}()

	// learn the peer's current state
	if err := writePresenceMessage(conn, &PresenceMessage{Type: PresenceRequestAll}); err != nil {
		return err
	}

	sendLocal := func() error {
		if presence := broadcast.LocalPresence(); presence != nil {
			return writePresenceMessage(conn, &PresenceMessage{
				Type:     PresenceUpdate,
				Presence: presence,
			})
		}
		return nil
	}

	for {
		select {
		case <-cancelCtx.Done():
			return nil
		case message, ok := <-sub.c:
			if !ok {
				return nil
			}
			if err := writePresenceMessage(conn, message); err != nil {
				return err
			}
			if broadcast.consumeLagged(sub) {
				if err := sendLocal(); err != nil {
					return err
				}
			}
		case message, ok := <-messages:
			if !ok {
				select {
				case err := <-readErr:
					if err == io.EOF {
						return nil
					}
					return err
				default:
					return nil
				}
			}
			if message.Type == PresenceRequestAll {
				if err := sendLocal(); err != nil {
					return err
				}
			}
			if incoming != nil {
				incoming(message)
			}
		}
	}
}
