package collab

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func TestPresenceManagerTracksPeers(t *testing.T) {
	local := testActor(1)
	manager := NewPresenceManagerWithDefaults(local)

	remote := testActor(2)
	manager.UpdatePeer(NewPeerPresence(remote, NewPosition(3, 4), IdleActivity()))
	assert.Equal(t, manager.PeerCount(), 1)

	peers := manager.ActivePeers()
	assert.Equal(t, len(peers), 1)
	assert.Equal(t, peers[0].PeerId, remote)
	assert.Equal(t, peers[0].CursorPos, NewPosition(3, 4))
	assert.Equal(t, peers[0].ColorIndex, uint8(2%PeerColorCount))

	// our own presence is never stored
	manager.UpdatePeer(NewPeerPresence(local, NewPosition(0, 0), IdleActivity()))
	assert.Equal(t, manager.PeerCount(), 1)

	assert.Equal(t, manager.RemovePeer(remote), true)
	assert.Equal(t, manager.RemovePeer(remote), false)
	assert.Equal(t, manager.PeerCount(), 0)
}

func TestPresenceManagerPrunesStalePeers(t *testing.T) {
	manager := NewPresenceManager(testActor(1), &PresenceSettings{
		StaleTimeout:  50 * time.Millisecond,
		PruneInterval: 10 * time.Millisecond,
	})

	remote := testActor(2)
	manager.UpdatePeer(NewPeerPresence(remote, NewPosition(0, 0), IdleActivity()))
	assert.Equal(t, len(manager.PruneStale()), 0)

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, manager.PruneStale(), []Id{remote})
	assert.Equal(t, manager.PeerCount(), 0)
}

func TestPresenceMessageCodecRoundTrip(t *testing.T) {
	update := &PresenceMessage{
		Type: PresenceUpdate,
		Presence: NewPeerPresence(testActor(1), NewPosition(10, 20), CursorActivity{
			Kind:    ActivityDrawing,
			Tool:    ToolRectangle,
			Start:   NewPosition(10, 20),
			Current: NewPosition(15, 25),
		}),
	}
	data, err := EncodePresenceMessage(update)
	assert.Equal(t, err, nil)
	decoded, err := DecodePresenceMessage(data)
	assert.Equal(t, err, nil)
	assert.Equal(t, decoded, update)

	leave := &PresenceMessage{
		Type:   PresenceLeave,
		PeerId: testActor(2),
	}
	data, err = EncodePresenceMessage(leave)
	assert.Equal(t, err, nil)
	decoded, err = DecodePresenceMessage(data)
	assert.Equal(t, err, nil)
	assert.Equal(t, decoded, leave)
}

func TestPresenceBroadcastDropsOldestWhenLagged(t *testing.T) {
	broadcast := NewPresenceBroadcast(testActor(1))
	sub := broadcast.subscribe()
	defer broadcast.unsubscribe(sub)

	for i := 0; i < 70; i += 1 {
		broadcast.Broadcast(NewPeerPresence(testActor(1), NewPosition(int32(i), 0), IdleActivity()))
	}

	// the queue stayed full but kept moving, and the lag was flagged once
	assert.Equal(t, len(sub.c), 64)
	assert.Equal(t, broadcast.consumeLagged(sub), true)
	assert.Equal(t, broadcast.consumeLagged(sub), false)

	// the oldest updates were the ones dropped
	first := <-sub.c
	assert.NotEqual(t, first.Presence.CursorPos.X, int32(0))

	// the latest local presence is retained for recovery
	assert.Equal(t, broadcast.LocalPresence().CursorPos.X, int32(69))
}

func TestPresenceLoopExchangesState(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	timeout := 5 * time.Second

	aPeer := testActor(1)
	bPeer := testActor(2)
	aBroadcast := NewPresenceBroadcast(aPeer)
	bBroadcast := NewPresenceBroadcast(bPeer)
	aBroadcast.Broadcast(NewPeerPresence(aPeer, NewPosition(1, 1), IdleActivity()))
	bBroadcast.Broadcast(NewPeerPresence(bPeer, NewPosition(2, 2), IdleActivity()))

	aMessages := make(chan *PresenceMessage, 64)
	bMessages := make(chan *PresenceMessage, 64)
	aConn, bConn := net.Pipe()
	go RunPresenceLoop(ctx, aConn, aBroadcast, func(message *PresenceMessage) {
		aMessages <- message
	})
	go RunPresenceLoop(ctx, bConn, bBroadcast, func(message *PresenceMessage) {
		bMessages <- message
	})

	// the connect-time request pulls the current state from each side
	waitForUpdateFrom := func(messages chan *PresenceMessage, peerId Id) {
		end := time.After(timeout)
		for {
			select {
			case message := <-messages:
				if message.Type == PresenceUpdate && message.Presence != nil && message.Presence.PeerId == peerId {
					return
				}
			case <-end:
				t.Fatalf("no presence update from %s", peerId)
			}
		}
	}
	waitForUpdateFrom(aMessages, bPeer)
	waitForUpdateFrom(bMessages, aPeer)

	// a live update flows through the broadcast to the remote loop
	aBroadcast.Broadcast(NewPeerPresence(aPeer, NewPosition(9, 9), IdleActivity()))
	end := time.After(timeout)
live:
	for {
		select {
		case message := <-bMessages:
			if message.Type == PresenceUpdate && message.Presence.CursorPos == NewPosition(9, 9) {
				break live
			}
		case <-end:
			t.Fatal("live presence update not delivered")
		}
	}

	aBroadcast.BroadcastLeave()
	end = time.After(timeout)
	for {
		select {
		case message := <-bMessages:
			if message.Type == PresenceLeave {
				assert.Equal(t, message.PeerId, aPeer)
				return
			}
		case <-end:
			t.Fatal("leave not delivered")
		}
	}
}
