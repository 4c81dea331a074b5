package terminal

import (
	"iter"
	"sync"
)

// Origin tags where a transcript entry came from.
type Origin string

const (
	// OriginEcho is the local echo of a submitted command.
	OriginEcho Origin = "echo"
	// OriginOutput is a line of server output.
	OriginOutput Origin = "output"
	// OriginStatus is an informational line.
	OriginStatus Origin = "status"
	// OriginError is a failure line.
	OriginError Origin = "error"
)

// Entry is one renderable line of the transcript.
type Entry struct {
	Origin Origin
	Text   string
}

// DefaultLogStreamLines is the recommended cap for log-style streams.
const DefaultLogStreamLines = 50

// DisplayBuffer is an ordered transcript of entries. When maxLines > 0,
// appending beyond the bound evicts the oldest entries; otherwise the buffer
// is unbounded. Eviction only ever removes from the front.
type DisplayBuffer struct {
	mu       sync.Mutex
	entries  []Entry
	maxLines int
}

// NewDisplayBuffer creates a buffer holding at most maxLines entries.
// maxLines <= 0 means unbounded.
func NewDisplayBuffer(maxLines int) *DisplayBuffer {
	if maxLines < 0 {
		maxLines = 0
	}
	return &DisplayBuffer{maxLines: maxLines}
}

// Append adds e to the end of the buffer, trimming from the front if the
// configured bound is exceeded.
func (b *DisplayBuffer) Append(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, e)
	if b.maxLines > 0 && len(b.entries) > b.maxLines {
		trim := len(b.entries) - b.maxLines
		// Copy so the evicted prefix can be collected.
		b.entries = append([]Entry(nil), b.entries[trim:]...)
	}
}

// Clear empties the buffer.
func (b *DisplayBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = nil
}

// Len returns the number of entries currently held.
func (b *DisplayBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// MaxLines returns the configured bound (0 = unbounded).
func (b *DisplayBuffer) MaxLines() int {
	return b.maxLines
}

// Entries returns a copy of the current entries in append order.
func (b *DisplayBuffer) Entries() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	result := make([]Entry, len(b.entries))
	copy(result, b.entries)
	return result
}

// Snapshot returns a finite, restartable sequence over the entries present
// at the time of the call. Ranging over it never touches the buffer.
func (b *DisplayBuffer) Snapshot() iter.Seq[Entry] {
	entries := b.Entries()
	return func(yield func(Entry) bool) {
		for _, e := range entries {
			if !yield(e) {
				return
			}
		}
	}
}
