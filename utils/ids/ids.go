package ids

import (
	"crypto/rand"
	"sync"
	"time"

	google_uuid "github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// MustUUID returns a random UUID string
func MustUUID() string {
	return google_uuid.New().String()
}

// CallID returns a time-sortable ULID used to correlate
// a single call across the processes it passes through.
func CallID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
