package collab

import (
	"context"
	"net"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func waitFor(t *testing.T, timeout time.Duration, what string, condition func() bool) {
	end := time.Now().Add(timeout)
	for time.Now().Before(end) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func converged(a *Document, b *Document) bool {
	return reflect.DeepEqual(a.Version(), b.Version())
}

func TestSyncEngineConverges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	timeout := 5 * time.Second

	a := NewDocument()
	b := NewDocument()
	aShape := a.AddShape(rectShape(0, 0, 5, 5))
	bShape := b.AddShape(rectShape(20, 20, 25, 25))

	aConn, bConn := net.Pipe()
	aEngine := NewSyncEngineWithDefaults(ctx, a, aConn, nil)
	bEngine := NewSyncEngineWithDefaults(ctx, b, bConn, nil)
	defer aEngine.Cancel()
	defer bEngine.Cancel()
	go aEngine.Run()
	go bEngine.Run()

	waitFor(t, timeout, "initial convergence", func() bool {
		return converged(a, b)
	})
	assert.Equal(t, a.ShapeCount(), 2)
	assert.Equal(t, b.ShapeCount(), 2)
	_, ok := b.ReadShape(aShape)
	assert.Equal(t, ok, true)
	_, ok = a.ReadShape(bShape)
	assert.Equal(t, ok, true)

	// live edits propagate while the loops run
	cShape := a.AddShape(rectShape(40, 0, 45, 5))
	a.TranslateShape(bShape, 1, 1)
	waitFor(t, timeout, "live convergence", func() bool {
		return converged(a, b)
	})
	shape, ok := b.ReadShape(cShape)
	assert.Equal(t, ok, true)
	assert.Equal(t, shape.Start, NewPosition(40, 0))
	shape, _ = b.ReadShape(bShape)
	assert.Equal(t, shape.Start, NewPosition(21, 21))
}

func TestSyncEngineRelaysThroughMiddlePeer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	timeout := 5 * time.Second

	a := NewDocument()
	b := NewDocument()
	c := NewDocument()

	abA, abB := net.Pipe()
	bcB, bcC := net.Pipe()
	engines := []*SyncEngine{
		NewSyncEngineWithDefaults(ctx, a, abA, nil),
		NewSyncEngineWithDefaults(ctx, b, abB, nil),
		NewSyncEngineWithDefaults(ctx, b, bcB, nil),
		NewSyncEngineWithDefaults(ctx, c, bcC, nil),
	}
	for _, engine := range engines {
		defer engine.Cancel()
		go engine.Run()
	}

	// an edit at one end reaches the other end through the middle replica
	id := a.AddShape(rectShape(0, 0, 3, 3))
	waitFor(t, timeout, "relay convergence", func() bool {
		return converged(a, b) && converged(b, c)
	})
	_, ok := c.ReadShape(id)
	assert.Equal(t, ok, true)
}

func TestSyncEngineFlushesChangeLandingMidFlush(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	timeout := 5 * time.Second

	document := NewDocument()
	document.AddShape(rectShape(0, 0, 5, 5))

	local, remote := net.Pipe()
	engine := NewSyncEngineWithDefaults(ctx, document, local, nil)
	defer engine.Cancel()
	go engine.Run()

	// drive the remote end of the protocol by hand so the engine can be
	// held mid-flush: pipe writes rendezvous, so until this side reads
	// the caught-up sentinel the engine sits inside its flush
	mirror := NewDocument()
	state := NewSyncState()
	readFrame := func() []byte {
		remote.SetReadDeadline(time.Now().Add(timeout))
		frame, err := ReadSyncFrame(remote, DefaultMaxSyncFrameByteCount)
		if err != nil {
			t.Fatalf("read frame: %s", err)
		}
		return frame
	}
	applyFrame := func(frame []byte) {
		if len(frame) == 0 {
			return
		}
		message, err := DecodeSyncMessage(frame)
		if err != nil {
			t.Fatalf("decode frame: %s", err)
		}
		mirror.ReceiveSyncMessage(state, message)
	}

	// the engine's opening announcement and sentinel
	applyFrame(readFrame())
	assert.Equal(t, len(readFrame()), 0)

	// announce this side so the engine streams its ops
	remote.SetWriteDeadline(time.Now().Add(timeout))
	err := WriteSyncFrame(remote, EncodeSyncMessage(&SyncMessage{
		Version: mirror.Version(),
	}))
	assert.Equal(t, err, nil)

	// take the ops reply but leave the trailing sentinel unread
	applyFrame(readFrame())

	// an edit lands while the engine is pinned at the sentinel write.
	// its wakeup fires against a notify channel the loop has already
	// consumed, so only the change-count catch-up can recover it.
	id := document.AddShape(rectShape(60, 0, 62, 2))

	// release the sentinel. the edit must now arrive with no further
	// traffic from this side.
	waitFor(t, timeout, "mid-flush edit to propagate", func() bool {
		applyFrame(readFrame())
		_, ok := mirror.ReadShape(id)
		return ok
	})
	shape, _ := mirror.ReadShape(id)
	assert.Equal(t, shape.Start, NewPosition(60, 0))
}

func TestSyncEngineChangeCallback(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := NewDocument()
	b := NewDocument()
	a.AddShape(rectShape(0, 0, 1, 1))

	changed := make(chan struct{}, 16)
	aConn, bConn := net.Pipe()
	aEngine := NewSyncEngineWithDefaults(ctx, a, aConn, nil)
	bEngine := NewSyncEngineWithDefaults(ctx, b, bConn, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer aEngine.Cancel()
	defer bEngine.Cancel()
	go aEngine.Run()
	go bEngine.Run()

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("change callback never fired")
	}
}
