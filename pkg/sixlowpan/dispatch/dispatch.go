// Package dispatch classifies and emits the leading 6LoWPAN dispatch byte
// that identifies what kind of payload follows (RFC 4944 §5, RFC 6282).
package dispatch

import (
	"errors"
	"fmt"

	"github.com/therealutkarshpriyadarshi/network/pkg/sixlowpan/buffer"
)

// Variant is the classification of a 6LoWPAN dispatch octet (spec §3.3).
type Variant int

const (
	// NALP marks a frame that is not a LoWPAN frame at all.
	NALP Variant = iota
	// UNCOMPRESSED marks a frame carrying a full, uncompressed IPv6 header.
	UNCOMPRESSED
	// HC1 marks a frame compressed with LOWPAN_HC1.
	HC1
	// BC0 marks a broadcast header, unsupported by this core.
	BC0
	// IPHC marks a frame compressed with LOWPAN_IPHC, recognized but not
	// implemented by this core (see spec §1, §9).
	IPHC
	// MESH marks a mesh-routing header, unsupported by this core.
	MESH
	// FRAG1 marks the first fragment of a fragmented datagram.
	FRAG1
	// FRAGN marks a subsequent fragment of a fragmented datagram.
	FRAGN
	// UNSUPPORTED is the sentinel for a byte matching no known range.
	UNSUPPORTED
)

// Wire values for the dispatch byte ranges (spec §3.3).
const (
	ByteUncompressed byte = 0x41
	ByteHC1          byte = 0x42
	ByteBC0          byte = 0x50
	ByteIPHCLow      byte = 0x60
	ByteIPHCHigh     byte = 0x7F
	ByteMeshLow      byte = 0x80
	ByteMeshHigh     byte = 0xBF
	ByteFrag1Low     byte = 0xC0
	ByteFrag1High    byte = 0xC7
	ByteFragNLow     byte = 0xE0
	ByteFragNHigh    byte = 0xE7
	ByteUnsupported  byte = 0xFF
)

// ErrUnsupportedEncoding is returned for dispatch bytes that this core
// recognizes but cannot process (NALP, BC0, IPHC, MESH, unknown), or that
// it does not recognize at all. It is fatal at the RX handler: the frame
// is dropped (spec §7).
var ErrUnsupportedEncoding = errors.New("sixlowpan: unsupported encoding")

// String names a Variant for logging.
func (v Variant) String() string {
	switch v {
	case NALP:
		return "NALP"
	case UNCOMPRESSED:
		return "UNCOMPRESSED"
	case HC1:
		return "HC1"
	case BC0:
		return "BC0"
	case IPHC:
		return "IPHC"
	case MESH:
		return "MESH"
	case FRAG1:
		return "FRAG1"
	case FRAGN:
		return "FRAGN"
	default:
		return fmt.Sprintf("UNSUPPORTED(%d)", int(v))
	}
}

// Classify performs the range match of spec §3.3 on a dispatch octet.
func Classify(b byte) Variant {
	switch {
	case b <= 0x3F:
		return NALP
	case b == ByteUncompressed:
		return UNCOMPRESSED
	case b == ByteHC1:
		return HC1
	case b == ByteBC0:
		return BC0
	case b >= ByteIPHCLow && b <= ByteIPHCHigh:
		return IPHC
	case b >= ByteMeshLow && b <= ByteMeshHigh:
		return MESH
	case b >= ByteFrag1Low && b <= ByteFrag1High:
		return FRAG1
	case b >= ByteFragNLow && b <= ByteFragNHigh:
		return FRAGN
	default:
		return UNSUPPORTED
	}
}

// Peek classifies the dispatch byte at the cursor's current position
// without consuming it, so the caller can route to the right codec.
func Peek(c *buffer.Cursor) (Variant, error) {
	b, err := c.PeekByte()
	if err != nil {
		return UNSUPPORTED, fmt.Errorf("sixlowpan/dispatch: peek: %w", err)
	}
	return Classify(b), nil
}

// EmitUncompressed writes the standalone UNCOMPRESSED dispatch byte
// (0x41). HC1 and FRAG1/FRAGN embed their own dispatch bits within their
// larger headers and are not emitted through this function (spec §4.2).
func EmitUncompressed(c *buffer.Cursor) error {
	if err := c.WriteU8(ByteUncompressed); err != nil {
		return fmt.Errorf("sixlowpan/dispatch: emit uncompressed: %w", err)
	}
	return nil
}

// ConsumeUncompressed reads and validates the standalone UNCOMPRESSED
// dispatch byte.
func ConsumeUncompressed(c *buffer.Cursor) error {
	b, err := c.ReadU8()
	if err != nil {
		return fmt.Errorf("sixlowpan/dispatch: consume uncompressed: %w", err)
	}
	if b != ByteUncompressed {
		return fmt.Errorf("sixlowpan/dispatch: expected 0x%02x, got 0x%02x: %w", ByteUncompressed, b, ErrUnsupportedEncoding)
	}
	return nil
}

// CheckSupported returns ErrUnsupportedEncoding for NALP, BC0, IPHC, MESH,
// and UNSUPPORTED variants, matching the reference's fatal-at-frame policy
// (spec §4.2, §7). HC1, FRAG1, FRAGN, and UNCOMPRESSED pass through.
func CheckSupported(v Variant) error {
	switch v {
	case NALP, BC0, IPHC, MESH, UNSUPPORTED:
		return fmt.Errorf("sixlowpan/dispatch: %s: %w", v, ErrUnsupportedEncoding)
	default:
		return nil
	}
}
