package collab

// incremental anti-entropy between two replicas. Each side tracks what the
// other is known to hold and streams only the missing ops. The exchange is
// symmetric: both sides open by announcing their version, then respond to
// announcements and new local ops until neither has anything to send.

type SyncState struct {
	// merged from the remote's announcements plus everything we sent
	remoteVersion VersionVector
	remoteKnown   bool
	announced     bool
}

func NewSyncState() *SyncState {
	return &SyncState{
		remoteVersion: VersionVector{},
	}
}

type SyncMessage struct {
	Version VersionVector
	Ops     []*Op
}

// GenerateSyncMessage returns the next message to send, or nil when the
// remote is caught up with everything this side holds. Call in a loop
// after each local change and each received message.
func (self *Store) GenerateSyncMessage(state *SyncState, batchLimit int) *SyncMessage {
	if !state.remoteKnown {
		// nothing useful to compute until the remote announces. send
		// our own announcement exactly once.
		if state.announced {
			return nil
		}
		state.announced = true
		return &SyncMessage{
			Version: self.Version(),
		}
	}

	ops := self.OpsSince(state.remoteVersion, batchLimit)
	if len(ops) == 0 {
		if !state.announced {
			state.announced = true
			return &SyncMessage{
				Version: self.Version(),
			}
		}
		return nil
	}
	state.announced = true
	for _, op := range ops {
		state.remoteVersion.Observe(op.Id)
	}
	return &SyncMessage{
		Version: self.Version(),
		Ops:     ops,
	}
}

// ReceiveSyncMessage applies an incoming message and returns whether any
// op changed the local store.
func (self *Store) ReceiveSyncMessage(state *SyncState, message *SyncMessage) bool {
	changed := false
	for _, op := range message.Ops {
		if self.Apply(op) {
			changed = true
		}
	}
	state.remoteKnown = true
	state.remoteVersion.MergeMax(message.Version)
	for _, op := range message.Ops {
		state.remoteVersion.Observe(op.Id)
	}
	return changed
}
