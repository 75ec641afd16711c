// Package buffer provides a byte cursor for reading and writing 6LoWPAN
// wire formats with explicit position and network byte order.
package buffer

import (
	"encoding/binary"
	"errors"
)

// ErrTruncatedBuffer is returned when a read runs past the end of the
// buffer, or a write runs past its capacity. It is fatal to the current
// frame only (spec §7); callers abort and drop-trace rather than retry.
var ErrTruncatedBuffer = errors.New("sixlowpan: truncated buffer")

// Cursor is a position-tracking view over a byte slice. It never
// reallocates: the caller sizes the underlying slice (typically via a
// codec's SerializedSize) before writing into it.
type Cursor struct {
	data []byte
	pos  int
}

// New wraps an existing byte slice for reading or writing from position 0.
func New(data []byte) *Cursor {
	return &Cursor{data: data}
}

// NewWriter allocates a zeroed buffer of the given size for writing.
func NewWriter(size int) *Cursor {
	return &Cursor{data: make([]byte, size)}
}

// Bytes returns the full underlying slice.
func (c *Cursor) Bytes() []byte {
	return c.data
}

// Remaining returns the number of bytes between the current position and
// the end of the buffer.
func (c *Cursor) Remaining() int {
	return len(c.data) - c.pos
}

// Position returns the current cursor offset.
func (c *Cursor) Position() int {
	return c.pos
}

// SetPosition moves the cursor to an absolute offset.
func (c *Cursor) SetPosition(pos int) error {
	if pos < 0 || pos > len(c.data) {
		return ErrTruncatedBuffer
	}
	c.pos = pos
	return nil
}

// Skip advances the cursor by n bytes without reading them.
func (c *Cursor) Skip(n int) error {
	if c.pos+n > len(c.data) || c.pos+n < 0 {
		return ErrTruncatedBuffer
	}
	c.pos += n
	return nil
}

// PeekByte returns the byte at the current position without advancing.
func (c *Cursor) PeekByte() (byte, error) {
	if c.pos >= len(c.data) {
		return 0, ErrTruncatedBuffer
	}
	return c.data[c.pos], nil
}

// ReadU8 reads a single byte and advances the cursor.
func (c *Cursor) ReadU8() (byte, error) {
	if c.pos >= len(c.data) {
		return 0, ErrTruncatedBuffer
	}
	b := c.data[c.pos]
	c.pos++
	return b, nil
}

// ReadU16 reads a 16-bit unsigned integer in network byte order.
func (c *Cursor) ReadU16() (uint16, error) {
	if c.pos+2 > len(c.data) {
		return 0, ErrTruncatedBuffer
	}
	v := binary.BigEndian.Uint16(c.data[c.pos : c.pos+2])
	c.pos += 2
	return v, nil
}

// ReadU32 reads a 32-bit unsigned integer in network byte order.
func (c *Cursor) ReadU32() (uint32, error) {
	if c.pos+4 > len(c.data) {
		return 0, ErrTruncatedBuffer
	}
	v := binary.BigEndian.Uint32(c.data[c.pos : c.pos+4])
	c.pos += 4
	return v, nil
}

// Read reads n raw bytes and advances the cursor. The returned slice
// aliases the underlying buffer.
func (c *Cursor) Read(n int) ([]byte, error) {
	if n < 0 || c.pos+n > len(c.data) {
		return nil, ErrTruncatedBuffer
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// WriteU8 writes a single byte and advances the cursor.
func (c *Cursor) WriteU8(b byte) error {
	if c.pos >= len(c.data) {
		return ErrTruncatedBuffer
	}
	c.data[c.pos] = b
	c.pos++
	return nil
}

// WriteU16 writes a 16-bit unsigned integer in network byte order.
func (c *Cursor) WriteU16(v uint16) error {
	if c.pos+2 > len(c.data) {
		return ErrTruncatedBuffer
	}
	binary.BigEndian.PutUint16(c.data[c.pos:c.pos+2], v)
	c.pos += 2
	return nil
}

// WriteU32 writes a 32-bit unsigned integer in network byte order.
func (c *Cursor) WriteU32(v uint32) error {
	if c.pos+4 > len(c.data) {
		return ErrTruncatedBuffer
	}
	binary.BigEndian.PutUint32(c.data[c.pos:c.pos+4], v)
	c.pos += 4
	return nil
}

// Write copies b into the buffer and advances the cursor.
func (c *Cursor) Write(b []byte) error {
	if c.pos+len(b) > len(c.data) {
		return ErrTruncatedBuffer
	}
	copy(c.data[c.pos:], b)
	c.pos += len(b)
	return nil
}
