package mutate

import (
	"fmt"

	"github.com/snow-ghost/cracker/core"
)

// Buffer is a fixed-capacity character buffer edited in place.
// Indexes passed to its methods must address the active length; violations panic like slice indexing.
type Buffer struct {
	data []byte
	n    int
}

// NewBuffer allocates a buffer able to hold capacity characters.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{data: make([]byte, capacity)}
}

// Reset replaces the buffer contents with s.
func (b *Buffer) Reset(s string) error {
	if len(s) > len(b.data) {
		return fmt.Errorf("%w: %d characters into capacity %d", core.ErrBufferCapacity, len(s), len(b.data))
	}
	b.n = copy(b.data, s)
	return nil
}

// Len is the number of active characters.
func (b *Buffer) Len() int { return b.n }

// Cap is the most characters the buffer can hold.
func (b *Buffer) Cap() int { return len(b.data) }

// At returns the character at position i.
func (b *Buffer) At(i int) byte { return b.data[:b.n][i] }

// Set overwrites position i and returns the previous character.
func (b *Buffer) Set(i int, c byte) byte {
	active := b.data[:b.n]
	prev := active[i]
	active[i] = c
	return prev
}

// Swap exchanges the characters at i and i+1.
func (b *Buffer) Swap(i int) {
	active := b.data[:b.n]
	active[i], active[i+1] = active[i+1], active[i]
}

// Insert places c before position i; i == Len appends.
func (b *Buffer) Insert(i int, c byte) error {
	if b.n == len(b.data) {
		return fmt.Errorf("%w: insert into full buffer of %d", core.ErrBufferCapacity, b.n)
	}
	if i < 0 || i > b.n {
		panic(fmt.Sprintf("mutate: insert index %d out of range [0,%d]", i, b.n))
	}
	copy(b.data[i+1:b.n+1], b.data[i:b.n])
	b.data[i] = c
	b.n++
	return nil
}

// Delete removes the character at i and returns it.
func (b *Buffer) Delete(i int) byte {
	c := b.data[:b.n][i]
	copy(b.data[i:b.n-1], b.data[i+1:b.n])
	b.n--
	return c
}

// String copies the active contents into a string.
func (b *Buffer) String() string { return string(b.data[:b.n]) }

// Snapshot is a saved copy of a buffer's active contents.
type Snapshot []byte

// Snapshot copies the active contents.
func (b *Buffer) Snapshot() Snapshot {
	return append(Snapshot(nil), b.data[:b.n]...)
}

// Restore puts back contents saved by Snapshot.
func (b *Buffer) Restore(s Snapshot) {
	b.n = copy(b.data, s)
}
