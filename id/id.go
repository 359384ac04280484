// Package id mints the ULIDs used for loans, schedule entries and ledger
// log records. A ULID carries its creation millisecond in the leading
// characters, so ids sort in the order they were minted.
package id

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator mints ULIDs from one monotonic entropy source. Within a single
// millisecond the random part is incremented rather than redrawn, which
// keeps a batch of schedule entries in insertion order.
type Generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewGenerator reads randomness from r (crypto/rand when nil).
func NewGenerator(r io.Reader) *Generator {
	if r == nil {
		r = rand.Reader
	}
	return &Generator{entropy: ulid.Monotonic(r, 0)}
}

// At returns a ULID stamped with t. It panics only when the entropy source
// fails or a millisecond exhausts its 80 random bits.
func (g *Generator) At(t time.Time) string {
	g.mu.Lock()
	v, err := ulid.New(ulid.Timestamp(t), g.entropy)
	g.mu.Unlock()
	if err != nil {
		panic("id: " + err.Error())
	}
	return v.String()
}

var std = NewGenerator(nil)

// New returns a ULID for the current instant.
func New() string { return std.At(time.Now()) }

// NewAt returns a ULID for t.
func NewAt(t time.Time) string { return std.At(t) }

// Valid reports whether s parses as a ULID.
func Valid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
