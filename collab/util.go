package collab

import (
	"sync"

	"golang.org/x/exp/slices"
)

// wakeup-coalescing change notification.
// NotifyAll never loses a wakeup: a waiter that grabbed the channel before
// the notify still sees it close. Bursts of notifies may coalesce into a
// single wakeup, which is paired with a monotonically increasing count so
// callers can tell how far behind they are.
type Monitor struct {
	mutex  sync.Mutex
	update chan struct{}
	count  uint64
}

func NewMonitor() *Monitor {
	return &Monitor{
		update: make(chan struct{}),
	}
}

// the channel closes on the next NotifyAll
func (self *Monitor) NotifyChannel() <-chan struct{} {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.update
}

func (self *Monitor) NotifyAll() {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	self.count += 1
	close(self.update)
	self.update = make(chan struct{})
}

func (self *Monitor) Count() uint64 {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.count
}

// makes a copy of the list on update
type CallbackList[T comparable] struct {
	mutex     sync.Mutex
	callbacks []T
}

func (self *CallbackList[T]) Get() []T {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.callbacks
}

func (self *CallbackList[T]) Add(callback T) {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	i := slices.Index(self.callbacks, callback)
	if 0 <= i {
		// already present
		return
	}
	nextCallbacks := slices.Clone(self.callbacks)
	nextCallbacks = append(nextCallbacks, callback)
	self.callbacks = nextCallbacks
}

func (self *CallbackList[T]) Remove(callback T) {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	i := slices.Index(self.callbacks, callback)
	if i < 0 {
		// not present
		return
	}
	nextCallbacks := slices.Clone(self.callbacks)
	nextCallbacks = slices.Delete(nextCallbacks, i, i+1)
	self.callbacks = nextCallbacks
}
