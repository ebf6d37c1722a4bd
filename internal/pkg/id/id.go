package id

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// New returns a user id. ids are ULIDs: sortable by creation time and strictly
// increasing within one process, so two registrations in the same millisecond
// still get distinct, ordered ids.
func New() string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Valid reports whether s is a well-formed user id.
func Valid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
