package session

import "sync"

// KeyedLock serializes turns per participant. The transport may deliver
// events for the same participant concurrently; the session read-modify-write
// inside a turn is only safe if those turns run one at a time.
type KeyedLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewKeyedLock creates an empty keyed lock.
func NewKeyedLock() *KeyedLock {
	return &KeyedLock{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the participant's lock, creating it on first use. Lock
// entries are never released; the participant population is bounded by the
// session store's own lifetime.
func (l *KeyedLock) Lock(participantID string) {
	l.mu.Lock()
	m, ok := l.locks[participantID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[participantID] = m
	}
	l.mu.Unlock()
	m.Lock()
}

// Unlock releases the participant's lock.
func (l *KeyedLock) Unlock(participantID string) {
	l.mu.Lock()
	m := l.locks[participantID]
	l.mu.Unlock()
	if m != nil {
		m.Unlock()
	}
}
