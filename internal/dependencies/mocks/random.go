package mocks

import (
	"fmt"
	"sync"

	"github.com/mcoot/lobbynet/internal/dependencies/random"
)

// queue hands out scripted values in order
type queue[T any] struct {
	items []T
	next  int
}

func (q *queue[T]) push(values ...T) {
	q.items = append(q.items, values...)
}

func (q *queue[T]) pop() (T, bool) {
	if q.next >= len(q.items) {
		var zero T
		return zero, false
	}
	v := q.items[q.next]
	q.next++
	return v, true
}

// MockRandom returns scripted values, with deterministic fallbacks once a queue runs dry
// Safe for concurrent use; directory calls arrive from several goroutines in tests.
type MockRandom struct {
	mu      sync.Mutex
	intn    queue[int]
	strings queue[string]
	uuids   queue[string]
	tokens  queue[string]

	uuidCounter  int
	tokenCounter int
}

// Ensure MockRandom implements Random
var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a new MockRandom
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// Intn returns the next queued result, or 0 if none remaining
func (r *MockRandom) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, _ := r.intn.pop()
	return v
}

// String returns the next queued result, or "" if none remaining
func (r *MockRandom) String(length int, alphabet string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, _ := r.strings.pop()
	return v
}

// UUID returns the next queued result, or a counter-based placeholder
func (r *MockRandom) UUID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.uuids.pop(); ok {
		return v
	}
	r.uuidCounter++
	return fmt.Sprintf("00000000-0000-4000-8000-%012d", r.uuidCounter)
}

// Token returns the next queued result, or a unique counter-based token
func (r *MockRandom) Token(prefix string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.tokens.pop(); ok {
		return v
	}
	r.tokenCounter++
	return fmt.Sprintf("%smock%d", prefix, r.tokenCounter)
}

// QueueIntn adds values to the Intn result queue
func (r *MockRandom) QueueIntn(values ...int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intn.push(values...)
}

// QueueString adds values to the String result queue
func (r *MockRandom) QueueString(values ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strings.push(values...)
}

// QueueUUID adds values to the UUID result queue
func (r *MockRandom) QueueUUID(values ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uuids.push(values...)
}

// QueueToken adds values to the Token result queue
func (r *MockRandom) QueueToken(values ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens.push(values...)
}
