package core

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("scan session not found")

type sessionEntry struct {
	session      *Session
	lastAccessed uint64
}

// SessionCache holds up to maxSize scan sessions, evicting the least recently
// used one when full.
type SessionCache struct {
	lock      sync.Mutex
	sessions  map[uuid.UUID]*sessionEntry
	maxSize   int
	clock     uint64
	adapter   *Adapter
	assembler Assembler
}

func NewSessionCache(maxSize int, adapter *Adapter, assembler Assembler) *SessionCache {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &SessionCache{
		sessions:  make(map[uuid.UUID]*sessionEntry, maxSize),
		maxSize:   maxSize,
		adapter:   adapter,
		assembler: assembler,
	}
}

func (pool *SessionCache) Create() *Session {
	pool.lock.Lock()
	defer pool.lock.Unlock()

	if len(pool.sessions) >= pool.maxSize {
		oldestSessionID := uuid.Nil
		var oldestTime uint64
		for id, entry := range pool.sessions {
			if oldestSessionID == uuid.Nil || entry.lastAccessed < oldestTime {
				oldestSessionID = id
				oldestTime = entry.lastAccessed
			}
		}

		pool.sessions[oldestSessionID].session.Close()
		delete(pool.sessions, oldestSessionID)
	}

	session := NewSession(uuid.New(), pool.adapter, pool.assembler)
	pool.sessions[session.ID()] = &sessionEntry{session: session, lastAccessed: pool.tick()}
	return session
}

func (pool *SessionCache) Get(sessionID uuid.UUID) (*Session, error) {
	pool.lock.Lock()
	defer pool.lock.Unlock()

	entry, ok := pool.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	entry.lastAccessed = pool.tick()
	return entry.session, nil
}

func (pool *SessionCache) Len() int {
	pool.lock.Lock()
	defer pool.lock.Unlock()
	return len(pool.sessions)
}

func (pool *SessionCache) Close() {
	pool.lock.Lock()
	defer pool.lock.Unlock()

	for id, entry := range pool.sessions {
		entry.session.Close()
		delete(pool.sessions, id)
	}
}

func (pool *SessionCache) tick() uint64 {
	pool.clock++
	return pool.clock
}

// Detached returns a session that is not tracked by the cache.
func (pool *SessionCache) Detached() *Session {
	return NewSession(uuid.New(), pool.adapter, pool.assembler)
}
