// Package userlock serializes work per Telegram user while letting
// different users proceed in parallel.
package userlock

import (
	"strconv"
	"sync"

	"github.com/moby/locker"
)

// Locks is a set of mutexes keyed by user id. locker drops an entry once no
// goroutine holds or waits for it, so memory does not grow with the user base.
type Locks struct {
	locker *locker.Locker
}

// New returns an empty lock set.
func New() *Locks {
	return &Locks{locker: locker.New()}
}

// Lock blocks until the user's mutex is held and returns the function that releases it.
func (l *Locks) Lock(userID int64) (unlock func()) {
	key := strconv.FormatInt(userID, 10)
	l.locker.Lock(key)

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = l.locker.Unlock(key)
		})
	}
}
