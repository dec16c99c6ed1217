package buffer

import (
	"errors"

	"github.com/indigo-web/utils/uf"
)

// ErrTooLarge is returned when an append would grow the buffer past its ceiling or its
// chunk budget.
var ErrTooLarge = errors.New("buffer: too large")

// View is a range of bytes inside a Buffer. Views are plain indexes, so they survive
// reallocations of the storage they point into. They are resolved lazily via Buffer.Get.
type View struct {
	Offset, Length int
}

// End returns the index right after the last byte of the view.
func (v View) End() int {
	return v.Offset + v.Length
}

// Buffer is a growable byte storage. It grows in fixed-size chunks, at most once per append,
// and refuses to grow past either its ceiling or its chunk budget. The byte right after the
// logical length is always zero, so the room for it is reserved on every growth.
//
// Besides the write length, the buffer keeps a read cursor (offset), which lets the same
// buffer serve as a scratch area being filled by socket reads and drained by a parser.
type Buffer struct {
	memory    []byte
	offset    int
	length    int
	begin     int
	chunkSize int
	budget    int
	ceiling   int
}

// New returns an empty buffer. The first chunk is allocated immediately and is not counted
// against the budget.
func New(budget, chunkSize, ceiling int) *Buffer {
	if chunkSize <= 0 {
		chunkSize = 64
	}

	if ceiling < 1 {
		ceiling = 1
	}

	initial := chunkSize
	if initial > ceiling {
		initial = ceiling
	}

	return &Buffer{
		memory:    make([]byte, initial),
		chunkSize: chunkSize,
		budget:    budget,
		ceiling:   ceiling,
	}
}

// Append copies the data to the end of the buffer, returning the view on the copy.
func (b *Buffer) Append(elements []byte) (View, error) {
	if err := b.grow(len(elements)); err != nil {
		return View{}, err
	}

	view := View{Offset: b.length, Length: len(elements)}
	copy(b.memory[b.length:], elements)
	b.length += len(elements)
	b.memory[b.length] = 0

	return view, nil
}

// AppendString is the same as Append, but for strings.
func (b *Buffer) AppendString(str string) (View, error) {
	return b.Append(uf.S2B(str))
}

// AppendByte writes a single byte.
func (b *Buffer) AppendByte(c byte) error {
	if err := b.grow(1); err != nil {
		return err
	}

	b.memory[b.length] = c
	b.length++
	b.memory[b.length] = 0

	return nil
}

// grow makes sure n more bytes (plus the terminator) fit. The missing amount is rounded up
// to whole chunks, so a single reallocation is always enough.
func (b *Buffer) grow(n int) error {
	need := b.length + n + 1
	if need <= len(b.memory) {
		return nil
	}

	chunks := (need - len(b.memory) + b.chunkSize - 1) / b.chunkSize
	size := len(b.memory) + chunks*b.chunkSize
	if size > b.ceiling {
		if need > b.ceiling {
			return ErrTooLarge
		}

		size = b.ceiling
	}

	if chunks > b.budget {
		return ErrTooLarge
	}

	memory := make([]byte, size)
	copy(memory, b.memory[:b.length])
	b.memory = memory
	b.budget -= chunks

	return nil
}

// Room returns how many bytes can still be appended before hitting the ceiling. The chunk
// budget is not taken into account.
func (b *Buffer) Room() int {
	return b.ceiling - b.length - 1
}

// Len returns the logical length of the buffer.
func (b *Buffer) Len() int {
	return b.length
}

// Size returns the allocated capacity.
func (b *Buffer) Size() int {
	return len(b.memory)
}

// Bytes returns all the written data.
func (b *Buffer) Bytes() []byte {
	return b.memory[:b.length]
}

// Get resolves the view against the current storage.
func (b *Buffer) Get(v View) []byte {
	return b.memory[v.Offset:v.End()]
}

// String resolves the view as a string. The string shares the memory with the buffer and
// therefore is valid until the bytes under the view are overwritten.
func (b *Buffer) String(v View) string {
	return uf.B2S(b.Get(v))
}

// Set overwrites a single byte inside the written area.
func (b *Buffer) Set(i int, c byte) {
	b.memory[i] = c
}

// Overwrite copies data into the written area starting at off. The data must fit into the
// already written part.
func (b *Buffer) Overwrite(off int, data []byte) {
	copy(b.memory[off:b.length], data)
}

// Cut removes the bytes under the view, shifting everything after it to the left. Views
// behind the removed region must be re-based by the caller.
func (b *Buffer) Cut(v View) {
	copy(b.memory[v.Offset:], b.memory[v.End():b.length])
	b.length -= v.Length
	b.memory[b.length] = 0

	if b.offset > b.length {
		b.offset = b.length
	}
}

// Offset returns the read cursor.
func (b *Buffer) Offset() int {
	return b.offset
}

// Advance moves the read cursor by n bytes forward.
func (b *Buffer) Advance(n int) {
	b.offset += n
	if b.offset > b.length {
		b.offset = b.length
	}
}

// Unread returns the bytes between the read cursor and the end of the data.
func (b *Buffer) Unread() []byte {
	return b.memory[b.offset:b.length]
}

// Compact moves the unread bytes to the beginning of the buffer, resetting the read cursor.
func (b *Buffer) Compact() {
	if b.offset == 0 {
		return
	}

	n := copy(b.memory, b.memory[b.offset:b.length])
	b.length = n
	b.offset = 0
	b.begin = 0
	b.memory[b.length] = 0
}

// SegmentLength returns a number of bytes written since the last Finish.
func (b *Buffer) SegmentLength() int {
	return b.length - b.begin
}

// Preview returns the current segment without completing it.
func (b *Buffer) Preview() View {
	return View{Offset: b.begin, Length: b.length - b.begin}
}

// Finish completes current segment, returning its view.
func (b *Buffer) Finish() View {
	segment := b.Preview()
	b.begin = b.length

	return segment
}

// Reset zeroes the cursor and the length. The storage is retained.
func (b *Buffer) Reset() {
	b.offset = 0
	b.length = 0
	b.begin = 0
	b.memory[0] = 0
}
