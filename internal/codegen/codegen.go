// Package codegen produces record identifiers and short lookup codes.
// It performs no I/O; uniqueness against the store is the caller's concern.
package codegen

import (
	"math/rand"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 8
)

// codePattern matches every code a caller may supply or this package emits.
var codePattern = regexp.MustCompile(`^[A-Z0-9]{6,12}$`)

// Generator draws identifiers from a single seedable randomness source.
// Safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// New returns a Generator seeded from the current time.
func New() *Generator {
	return NewSeeded(time.Now().UnixNano())
}

// NewSeeded returns a Generator with a fixed seed, for deterministic tests.
func NewSeeded(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// RecordID returns a random version-4 UUID string (8-4-4-4-12 hex groups).
func (g *Generator) RecordID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return uuid.Must(uuid.NewRandomFromReader(g.rnd)).String()
}

// LookupCode returns an 8-character code drawn uniformly from [A-Z0-9].
// The draws are not cryptographically secure; collision handling lives in
// the allocation layer.
func (g *Generator) LookupCode() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	b := make([]byte, codeLength)
	for i := range b {
		b[i] = codeAlphabet[g.rnd.Intn(len(codeAlphabet))]
	}
	return string(b)
}

// ValidCode reports whether s is an acceptable lookup code: 6 to 12
// uppercase letters or digits.
func ValidCode(s string) bool {
	return codePattern.MatchString(s)
}
