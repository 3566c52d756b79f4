package collab

import (
	"context"
	"io"
	"sync"
)

// per-connection document sync loop. Both ends run the same loop: flush
// outstanding ops, then react to local document changes and incoming
// frames until the connection or context ends. A zero-length frame is
// the caught-up sentinel that tells the peer a flush is complete.

type SyncEngineSettings struct {
	BatchLimit        int
	MaxFrameByteCount ByteCount
}

func DefaultSyncEngineSettings() *SyncEngineSettings {
	return &SyncEngineSettings{
		BatchLimit:        1024,
		MaxFrameByteCount: DefaultMaxSyncFrameByteCount,
	}
}

type SyncEngine struct {
	ctx    context.Context
	cancel context.CancelFunc

	document *Document
	conn     io.ReadWriteCloser
	state    *SyncState

	// called after incoming ops change the document
	documentChanged func()

	settings *SyncEngineSettings
	log      LogFunction
}

func NewSyncEngineWithDefaults(
	ctx context.Context,
	document *Document,
	conn io.ReadWriteCloser,
	documentChanged func(),
) *SyncEngine {
	return NewSyncEngine(ctx, document, conn, documentChanged, DefaultSyncEngineSettings())
}

func NewSyncEngine(
	ctx context.Context,
	document *Document,
	conn io.ReadWriteCloser,
	documentChanged func(),
	settings *SyncEngineSettings,
) *SyncEngine {
	cancelCtx, cancel := context.WithCancel(ctx)
	return &SyncEngine{
		ctx:             cancelCtx,
		cancel:          cancel,
		document:        document,
		conn:            conn,
		state:           NewSyncState(),
		documentChanged: documentChanged,
		settings:        settings,
		log:             LogFn(LogLevelDebug, "sync"),
	}
}

// Run drives the sync loop until the connection closes or the context
// ends. Blocking; callers run it in a goroutine.
func (self *SyncEngine) Run() error {
	defer self.cancel()
	defer self.conn.Close()

	// the reader queues frames without ever blocking on this loop. both
	// ends flush concurrently, and a reader that stalls while its side is
	// mid-write deadlocks the connection.
	var readLock sync.Mutex
	pending := [][]byte{}
	readMonitor := NewMonitor()
	readDone := make(chan error, 1)
	go func() {
		for {
			frame, err := ReadSyncFrame(self.conn, self.settings.MaxFrameByteCount)
			if err != nil {
				readDone <- err
				return
			}
			readLock.Lock()
			pending = append(pending, frame)
			readLock.Unlock()
			readMonitor.NotifyAll()
		}
	}()

	// opening announcement
	lastFlushCount := self.document.ChangeCount()
	if err := self.flush(); err != nil {
		return err
	}

	for {
		// take the notify channels before draining so a change or frame
		// that lands in between still wakes the loop
		notify := self.document.ChangeNotify()
		frameNotify := readMonitor.NotifyChannel()

		readLock.Lock()
		frames := pending
		pending = nil
		readLock.Unlock()
		for _, frame := range frames {
			if err := self.handleFrame(frame); err != nil {
				return err
			}
		}
		if 0 < len(frames) {
			continue
		}

		// a change that landed during a flush closed a channel this
		// iteration never selects on. the change count settles what the
		// last flush actually covered; catch up before blocking.
		if count := self.document.ChangeCount(); count != lastFlushCount {
			lastFlushCount = count
			if err := self.flush(); err != nil {
				return err
			}
			continue
		}

		select {
		case <-self.ctx.Done():
			return nil
		case err := <-readDone:
			if err == io.EOF {
				return nil
			}
			return err
		case <-notify:
			lastFlushCount = self.document.ChangeCount()
			if err := self.flush(); err != nil {
				return err
			}
		case <-frameNotify:
		}
	}
}

func (self *SyncEngine) Cancel() {
	self.cancel()
	self.conn.Close()
}

// flush sends everything the remote lacks, then the caught-up sentinel
func (self *SyncEngine) flush() error {
	sent := 0
	for {
		message := self.document.GenerateSyncMessage(self.state, self.settings.BatchLimit)
		if message == nil {
			break
		}
		if err := WriteSyncFrame(self.conn, EncodeSyncMessage(message)); err != nil {
			return err
		}
		sent += len(message.Ops)
	}
	if err := WriteSyncFrame(self.conn, nil); err != nil {
		return err
	}
	if 0 < sent {
		self.log("sent %d ops", sent)
	}
	return nil
}

func (self *SyncEngine) handleFrame(frame []byte) error {
	if len(frame) == 0 {
		// peer finished a flush. nothing to do.
		return nil
	}
	message, err := DecodeSyncMessage(frame)
	if err != nil {
		return err
	}
	changed := self.document.ReceiveSyncMessage(self.state, message)
	if 0 < len(message.Ops) {
		self.log("received %d ops", len(message.Ops))
	}
	// respond with anything the announcement revealed the peer lacks
	if err := self.flush(); err != nil {
		return err
	}
	if changed && self.documentChanged != nil {
		self.documentChanged()
	}
	return nil
}
