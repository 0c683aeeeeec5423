package usecase

import (
	"sync"

	"github.com/google/uuid"
)

// GameLocks serializes mutations per game id within one process. Entries are
// reference counted and dropped once no goroutine holds or waits for them.
type GameLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*gameLock
}

type gameLock struct {
	mu   sync.Mutex
	refs int
}

func NewGameLocks() *GameLocks {
	return &GameLocks{locks: make(map[uuid.UUID]*gameLock)}
}

// Lock blocks until the caller owns id and returns the release function.
func (l *GameLocks) Lock(id uuid.UUID) (unlock func()) {
	l.mu.Lock()
	gl, ok := l.locks[id]
	if !ok {
		gl = &gameLock{}
		l.locks[id] = gl
	}
	gl.refs++
	l.mu.Unlock()

	gl.mu.Lock()
	return func() {
		gl.mu.Unlock()
		l.mu.Lock()
		gl.refs--
		if gl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

// held returns the number of ids with a holder or waiter.
func (l *GameLocks) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
