// Package fragmenter implements the 6LoWPAN TX fragmentation engine: it
// slices a compressed datagram into FRAG1/FRAGN link-layer frames when the
// datagram does not fit the link MTU (spec §4.5).
package fragmenter

import (
	"errors"
	"fmt"

	"github.com/therealutkarshpriyadarshi/network/pkg/sixlowpan/buffer"
	"github.com/therealutkarshpriyadarshi/network/pkg/sixlowpan/dispatch"
	"github.com/therealutkarshpriyadarshi/network/pkg/sixlowpan/frag"
)

// ErrHeadersExceedMTU is returned when the compressed headers alone (plus a
// FRAG1 header) would not fit in a single frame, so fragmentation cannot
// make progress (spec §4.5, §7).
var ErrHeadersExceedMTU = errors.New("sixlowpan/fragmenter: compressed headers exceed MTU")

// TagSource supplies the 16-bit datagram tag used to correlate a
// datagram's fragments. It is injected rather than hard-coded to
// math/rand so tests can supply a deterministic value (spec §9
// "process-wide random source" note).
type TagSource interface {
	NextTag() uint16
}

// TagSourceFunc adapts a plain function to a TagSource.
type TagSourceFunc func() uint16

// NextTag calls f.
func (f TagSourceFunc) NextTag() uint16 { return f() }

// Frame is one outbound link-layer frame ready to hand to the link device.
type Frame struct {
	Bytes   []byte
	Variant dispatch.Variant
}

// Fragment splits a compressed datagram into one or more frames.
//
// compressedHeaders is the wire bytes of the dispatch-carrying prefix (HC1
// header, or a bare 0x41 uncompressed dispatch byte) that must travel on
// the first frame; body is everything that follows it. originalDatagramSize
// is the value recorded in every fragment's datagram_size field so the
// receiver can pre-size its reassembly buffer (spec §4.5). When the
// combined size already fits mtu, Fragment returns a single unfragmented
// frame instead.
func Fragment(compressedHeaders, body []byte, originalDatagramSize, mtu int, tags TagSource) ([]Frame, error) {
	total := len(compressedHeaders) + len(body)
	if total <= mtu {
		b := make([]byte, total)
		copy(b, compressedHeaders)
		copy(b[len(compressedHeaders):], body)
		variant := dispatch.HC1
		if len(compressedHeaders) > 0 {
			variant = dispatch.Classify(compressedHeaders[0])
		}
		return []Frame{{Bytes: b, Variant: variant}}, nil
	}

	if len(compressedHeaders)+frag.Frag1Size >= mtu {
		return nil, fmt.Errorf("sixlowpan/fragmenter: header size %d + FRAG1 size %d >= MTU %d: %w",
			len(compressedHeaders), frag.Frag1Size, mtu, ErrHeadersExceedMTU)
	}

	tag := tags.NextTag()

	firstPayloadSize := (mtu - frag.Frag1Size - len(compressedHeaders)) &^ 0x07
	if firstPayloadSize > len(body) {
		firstPayloadSize = len(body)
	}

	frames := make([]Frame, 0, 2)

	f1 := frag.Frag1{DatagramSize: uint16(originalDatagramSize), DatagramTag: tag}
	c := buffer.NewWriter(f1.SerializedSize() + len(compressedHeaders) + firstPayloadSize)
	if err := f1.Serialize(c); err != nil {
		return nil, fmt.Errorf("sixlowpan/fragmenter: %w", err)
	}
	if err := c.Write(compressedHeaders); err != nil {
		return nil, fmt.Errorf("sixlowpan/fragmenter: %w", err)
	}
	if err := c.Write(body[:firstPayloadSize]); err != nil {
		return nil, fmt.Errorf("sixlowpan/fragmenter: %w", err)
	}
	frames = append(frames, Frame{Bytes: c.Bytes(), Variant: dispatch.FRAG1})

	subsequentPayloadSize := (mtu - frag.FragNSize) &^ 0x07
	if subsequentPayloadSize <= 0 {
		return nil, fmt.Errorf("sixlowpan/fragmenter: MTU %d too small for FRAGN: %w", mtu, ErrHeadersExceedMTU)
	}

	// datagram_offset counts 8-octet units from the start of the datagram
	// being fragmented, including the compressed-header prefix the FRAG1
	// frame carried (spec §4.5).
	offset := (firstPayloadSize + len(compressedHeaders)) >> 3
	bodyOffset := firstPayloadSize

	for bodyOffset < len(body) {
		end := bodyOffset + subsequentPayloadSize
		if end > len(body) {
			end = len(body)
		}
		chunk := body[bodyOffset:end]

		fn := frag.FragN{DatagramSize: uint16(originalDatagramSize), DatagramTag: tag, DatagramOffset: uint8(offset)}
		c := buffer.NewWriter(fn.SerializedSize() + len(chunk))
		if err := fn.Serialize(c); err != nil {
			return nil, fmt.Errorf("sixlowpan/fragmenter: %w", err)
		}
		if err := c.Write(chunk); err != nil {
			return nil, fmt.Errorf("sixlowpan/fragmenter: %w", err)
		}
		frames = append(frames, Frame{Bytes: c.Bytes(), Variant: dispatch.FRAGN})

		offset += len(chunk) >> 3
		bodyOffset = end
	}

	return frames, nil
}
