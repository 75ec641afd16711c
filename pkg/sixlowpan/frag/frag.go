// Package frag implements the FRAG1 and FRAGN 6LoWPAN fragmentation
// headers (RFC 4944 §5.3, spec §3.5, §6.1).
package frag

import (
	"fmt"

	"github.com/therealutkarshpriyadarshi/network/pkg/sixlowpan/buffer"
	"github.com/therealutkarshpriyadarshi/network/pkg/sixlowpan/dispatch"
)

const (
	// Frag1Size is the on-wire size of a FRAG1 header in bytes.
	Frag1Size = 4
	// FragNSize is the on-wire size of a FRAGN header in bytes.
	FragNSize = 5

	// sizeMask isolates the low 11 bits of the first two octets that carry
	// the datagram size.
	sizeMask = 0x07FF
)

// Frag1 is the first-fragment header: dispatch bits 11000, an 11-bit
// datagram size, and a 16-bit datagram tag.
type Frag1 struct {
	DatagramSize uint16 // total octets of the datagram being fragmented (adaptation.Device records the compressed size)
	DatagramTag  uint16
}

// FragN is the subsequent-fragment header: as Frag1, plus a 1-byte
// datagram offset in units of 8 octets.
type FragN struct {
	DatagramSize   uint16
	DatagramTag    uint16
	DatagramOffset uint8
}

// SerializedSize returns the on-wire size of a Frag1 header.
func (Frag1) SerializedSize() int { return Frag1Size }

// SerializedSize returns the on-wire size of a FragN header.
func (FragN) SerializedSize() int { return FragNSize }

// Serialize writes the FRAG1 header: top 5 bits 11000, low 11 bits
// datagram size (network order), then the 16-bit datagram tag.
func (f Frag1) Serialize(c *buffer.Cursor) error {
	if f.DatagramSize > sizeMask {
		return fmt.Errorf("sixlowpan/frag: datagram size %d exceeds 11-bit ceiling", f.DatagramSize)
	}
	first := dispatch.ByteFrag1Low | byte(f.DatagramSize>>8)
	if err := c.WriteU8(first); err != nil {
		return fmt.Errorf("sixlowpan/frag: serialize frag1: %w", err)
	}
	if err := c.WriteU8(byte(f.DatagramSize)); err != nil {
		return fmt.Errorf("sixlowpan/frag: serialize frag1: %w", err)
	}
	if err := c.WriteU16(f.DatagramTag); err != nil {
		return fmt.Errorf("sixlowpan/frag: serialize frag1: %w", err)
	}
	return nil
}

// DeserializeFrag1 reads a FRAG1 header, masking the size field to its
// low 11 bits per spec §6.1.
func DeserializeFrag1(c *buffer.Cursor) (Frag1, error) {
	first, err := c.ReadU8()
	if err != nil {
		return Frag1{}, fmt.Errorf("sixlowpan/frag: deserialize frag1: %w", err)
	}
	second, err := c.ReadU8()
	if err != nil {
		return Frag1{}, fmt.Errorf("sixlowpan/frag: deserialize frag1: %w", err)
	}
	size := (uint16(first)<<8 | uint16(second)) & sizeMask
	tag, err := c.ReadU16()
	if err != nil {
		return Frag1{}, fmt.Errorf("sixlowpan/frag: deserialize frag1: %w", err)
	}
	return Frag1{DatagramSize: size, DatagramTag: tag}, nil
}

// Serialize writes the FRAGN header: as Frag1 but with dispatch bits
// 11100, followed by the trailing 1-byte datagram offset.
func (f FragN) Serialize(c *buffer.Cursor) error {
	if f.DatagramSize > sizeMask {
		return fmt.Errorf("sixlowpan/frag: datagram size %d exceeds 11-bit ceiling", f.DatagramSize)
	}
	first := dispatch.ByteFragNLow | byte(f.DatagramSize>>8)
	if err := c.WriteU8(first); err != nil {
		return fmt.Errorf("sixlowpan/frag: serialize fragn: %w", err)
	}
	if err := c.WriteU8(byte(f.DatagramSize)); err != nil {
		return fmt.Errorf("sixlowpan/frag: serialize fragn: %w", err)
	}
	if err := c.WriteU16(f.DatagramTag); err != nil {
		return fmt.Errorf("sixlowpan/frag: serialize fragn: %w", err)
	}
	if err := c.WriteU8(f.DatagramOffset); err != nil {
		return fmt.Errorf("sixlowpan/frag: serialize fragn: %w", err)
	}
	return nil
}

// DeserializeFragN reads a FRAGN header.
func DeserializeFragN(c *buffer.Cursor) (FragN, error) {
	first, err := c.ReadU8()
	if err != nil {
		return FragN{}, fmt.Errorf("sixlowpan/frag: deserialize fragn: %w", err)
	}
	second, err := c.ReadU8()
	if err != nil {
		return FragN{}, fmt.Errorf("sixlowpan/frag: deserialize fragn: %w", err)
	}
	size := (uint16(first)<<8 | uint16(second)) & sizeMask
	tag, err := c.ReadU16()
	if err != nil {
		return FragN{}, fmt.Errorf("sixlowpan/frag: deserialize fragn: %w", err)
	}
	offset, err := c.ReadU8()
	if err != nil {
		return FragN{}, fmt.Errorf("sixlowpan/frag: deserialize fragn: %w", err)
	}
	return FragN{DatagramSize: size, DatagramTag: tag, DatagramOffset: offset}, nil
}
