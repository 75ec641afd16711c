// Package hc1 implements RFC 4944 §10.1 HC1 IPv6 header compression and
// decompression, with the HC2 UDP-field extension the dispatch byte's low
// bit signals (spec §3.4, §4.3, §4.4).
package hc1

import (
	"errors"
	"fmt"

	"github.com/therealutkarshpriyadarshi/network/pkg/common"
	"github.com/therealutkarshpriyadarshi/network/pkg/ipv6"
	"github.com/therealutkarshpriyadarshi/network/pkg/sixlowpan/buffer"
	"github.com/therealutkarshpriyadarshi/network/pkg/sixlowpan/dispatch"
	"github.com/therealutkarshpriyadarshi/network/pkg/sixlowpan/headerstore"
	"github.com/therealutkarshpriyadarshi/network/pkg/sixlowpan/linklocal"
	"github.com/therealutkarshpriyadarshi/network/pkg/udp"
)

// AddrCompression is the 2-bit SAM/DAM field: how much of an address is
// carried inline versus elided in favor of link-local context.
type AddrCompression uint8

const (
	// PIII carries both prefix and interface id inline.
	PIII AddrCompression = 0x00
	// PIIC carries the prefix inline and elides the interface id.
	PIIC AddrCompression = 0x01
	// PCII elides the prefix and carries the interface id inline.
	PCII AddrCompression = 0x02
	// PCIC elides both prefix and interface id.
	PCIC AddrCompression = 0x03
)

func (a AddrCompression) String() string {
	switch a {
	case PIII:
		return "PIII"
	case PIIC:
		return "PIIC"
	case PCII:
		return "PCII"
	case PCIC:
		return "PCIC"
	default:
		return fmt.Sprintf("AddrCompression(%d)", uint8(a))
	}
}

// NextHeaderCode is the 2-bit NH compression field. The wire values are not
// in the obvious TCP-before-ICMP order; they are copied from the original
// implementation's encoding table (spec §4.3).
type NextHeaderCode uint8

const (
	// NC means next header is carried inline, uncompressed.
	NC NextHeaderCode = 0x00
	// UDP means next header is UDP, whose fields HC2 may further compress.
	UDP NextHeaderCode = 0x01
	// TCP means next header is TCP.
	TCP NextHeaderCode = 0x03
	// ICMP means next header is ICMPv6.
	ICMP NextHeaderCode = 0x02
)

func (n NextHeaderCode) String() string {
	switch n {
	case NC:
		return "NC"
	case UDP:
		return "UDP"
	case TCP:
		return "TCP"
	case ICMP:
		return "ICMP"
	default:
		return fmt.Sprintf("NextHeaderCode(%d)", uint8(n))
	}
}

// ErrHC2Unsupported is returned when the HC2 bit is set for a next-header
// compression code other than UDP, or when the inline UDP fields can't be
// parsed; the original asserts on this, this engine reports it as an error
// instead (spec.md SUPPLEMENTED FEATURES #2).
var ErrHC2Unsupported = errors.New("sixlowpan/hc1: HC2 compression unsupported for this next header")

// UDPFields holds the HC2-compressed UDP header fields carried inline in
// the HC1 header, kept as named fields rather than an opaque byte blob so a
// caller can inspect them without a full decompress (spec.md SUPPLEMENTED
// FEATURES #3).
type UDPFields struct {
	SrcPort  uint16
	DstPort  uint16
	Length   uint16
	Checksum uint16
}

const udpFieldsSize = 8

// Header is a decoded HC1 (plus optional HC2) header.
type Header struct {
	SrcCompression AddrCompression
	DstCompression AddrCompression
	TCFLElided     bool
	NHCompression  NextHeaderCode
	HC2Present     bool

	HopLimit uint8

	SrcPrefix [8]byte
	SrcIID    [8]byte
	DstPrefix [8]byte
	DstIID    [8]byte

	TrafficClass uint8
	FlowLabel    uint32 // low 20 bits significant

	// NextHeader is the resolved IPv6 next-header value: set from
	// NHCompression for UDP/TCP/ICMP, or read inline when NHCompression
	// is NC (spec.md Open Questions decision 4).
	NextHeader common.Protocol

	UDP UDPFields
}

// SerializedSize returns the on-wire size of the HC1 header in its current
// configuration, mirroring the original's GetSerializedSize.
func (h Header) SerializedSize() int {
	size := 3 // dispatch + encoding + hop limit
	switch h.SrcCompression {
	case PIII:
		size += 16
	case PIIC, PCII:
		size += 8
	case PCIC:
	}
	switch h.DstCompression {
	case PIII:
		size += 16
	case PIIC, PCII:
		size += 8
	case PCIC:
	}
	if !h.TCFLElided {
		size += 4
	}
	if h.NHCompression == NC {
		size++
	}
	if h.HC2Present && h.NHCompression == UDP {
		size += udpFieldsSize
	}
	return size
}

func (h Header) encodingByte() byte {
	e := byte(h.SrcCompression)
	e = e<<2 | byte(h.DstCompression)
	e = e<<1 | boolBit(h.TCFLElided)
	e = e<<2 | byte(h.NHCompression)
	e = e<<1 | boolBit(h.HC2Present)
	return e
}

func boolBit(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// Serialize writes the HC1 (and optional HC2) header to c.
func (h Header) Serialize(c *buffer.Cursor) error {
	if err := c.WriteU8(dispatch.ByteHC1); err != nil {
		return err
	}
	if err := c.WriteU8(h.encodingByte()); err != nil {
		return err
	}
	if err := c.WriteU8(h.HopLimit); err != nil {
		return err
	}

	if h.SrcCompression == PIII || h.SrcCompression == PIIC {
		if err := c.Write(h.SrcPrefix[:]); err != nil {
			return err
		}
	}
	if h.SrcCompression == PIII || h.SrcCompression == PCII {
		if err := c.Write(h.SrcIID[:]); err != nil {
			return err
		}
	}
	if h.DstCompression == PIII || h.DstCompression == PIIC {
		if err := c.Write(h.DstPrefix[:]); err != nil {
			return err
		}
	}
	if h.DstCompression == PIII || h.DstCompression == PCII {
		if err := c.Write(h.DstIID[:]); err != nil {
			return err
		}
	}

	if !h.TCFLElided {
		if err := c.WriteU8(h.TrafficClass); err != nil {
			return err
		}
		// Flow label is written little-endian within its 3 inline bytes,
		// a deliberate deviation from network byte order preserved from
		// the original (spec §9 note 3).
		if err := c.WriteU8(byte(h.FlowLabel)); err != nil {
			return err
		}
		if err := c.WriteU8(byte(h.FlowLabel >> 8)); err != nil {
			return err
		}
		if err := c.WriteU8(byte(h.FlowLabel >> 16)); err != nil {
			return err
		}
	}

	if h.NHCompression == NC {
		if err := c.WriteU8(byte(h.NextHeader)); err != nil {
			return err
		}
	}

	if h.HC2Present {
		if h.NHCompression != UDP {
			return ErrHC2Unsupported
		}
		if err := c.WriteU16(h.UDP.SrcPort); err != nil {
			return err
		}
		if err := c.WriteU16(h.UDP.DstPort); err != nil {
			return err
		}
		if err := c.WriteU16(h.UDP.Length); err != nil {
			return err
		}
		if err := c.WriteU16(h.UDP.Checksum); err != nil {
			return err
		}
	}

	return nil
}

// Deserialize reads an HC1 (and optional HC2) header from c.
func Deserialize(c *buffer.Cursor) (Header, error) {
	var h Header

	first, err := c.ReadU8()
	if err != nil {
		return Header{}, err
	}
	if first != dispatch.ByteHC1 {
		return Header{}, fmt.Errorf("sixlowpan/hc1: unexpected dispatch byte 0x%02x", first)
	}

	enc, err := c.ReadU8()
	if err != nil {
		return Header{}, err
	}
	h.HC2Present = enc&0x01 != 0
	h.NHCompression = NextHeaderCode((enc >> 1) & 0x03)
	h.TCFLElided = (enc>>3)&0x01 != 0
	h.DstCompression = AddrCompression((enc >> 4) & 0x03)
	h.SrcCompression = AddrCompression((enc >> 6) & 0x03)

	h.HopLimit, err = c.ReadU8()
	if err != nil {
		return Header{}, err
	}

	if h.SrcCompression == PIII || h.SrcCompression == PIIC {
		b, err := c.Read(8)
		if err != nil {
			return Header{}, err
		}
		copy(h.SrcPrefix[:], b)
	}
	if h.SrcCompression == PIII || h.SrcCompression == PCII {
		b, err := c.Read(8)
		if err != nil {
			return Header{}, err
		}
		copy(h.SrcIID[:], b)
	}
	if h.DstCompression == PIII || h.DstCompression == PIIC {
		b, err := c.Read(8)
		if err != nil {
			return Header{}, err
		}
		copy(h.DstPrefix[:], b)
	}
	if h.DstCompression == PIII || h.DstCompression == PCII {
		b, err := c.Read(8)
		if err != nil {
			return Header{}, err
		}
		copy(h.DstIID[:], b)
	}

	if !h.TCFLElided {
		h.TrafficClass, err = c.ReadU8()
		if err != nil {
			return Header{}, err
		}
		b0, err := c.ReadU8()
		if err != nil {
			return Header{}, err
		}
		b1, err := c.ReadU8()
		if err != nil {
			return Header{}, err
		}
		b2, err := c.ReadU8()
		if err != nil {
			return Header{}, err
		}
		h.FlowLabel = uint32(b0) | uint32(b1)<<8 | uint32(b2)<<16
	}

	// NH is set from the compression code, and only overridden by an
	// inline byte when the code is NC (spec.md Open Questions decision 4).
	switch h.NHCompression {
	case UDP:
		h.NextHeader = common.ProtocolUDP
	case TCP:
		h.NextHeader = common.ProtocolTCP
	case ICMP:
		h.NextHeader = common.ProtocolICMPv6
	case NC:
		nh, err := c.ReadU8()
		if err != nil {
			return Header{}, err
		}
		h.NextHeader = common.Protocol(nh)
	}

	if h.HC2Present {
		if h.NHCompression != UDP {
			return Header{}, ErrHC2Unsupported
		}
		h.UDP.SrcPort, err = c.ReadU16()
		if err != nil {
			return Header{}, fmt.Errorf("%w: %w", ErrHC2Unsupported, err)
		}
		h.UDP.DstPort, err = c.ReadU16()
		if err != nil {
			return Header{}, fmt.Errorf("%w: %w", ErrHC2Unsupported, err)
		}
		h.UDP.Length, err = c.ReadU16()
		if err != nil {
			return Header{}, fmt.Errorf("%w: %w", ErrHC2Unsupported, err)
		}
		h.UDP.Checksum, err = c.ReadU16()
		if err != nil {
			return Header{}, fmt.Errorf("%w: %w", ErrHC2Unsupported, err)
		}
	}

	return h, nil
}

func classifyCompression(addr common.IPv6Address, linkAddr []byte) (AddrCompression, error) {
	iidMatches, err := linklocal.MatchesLinkAddress(addr, linkAddr)
	if err != nil {
		return 0, err
	}
	ll := addr.IsLinkLocal()
	switch {
	case iidMatches && ll:
		return PCIC, nil
	case ll:
		return PCII, nil
	case iidMatches:
		return PIIC, nil
	default:
		return PIII, nil
	}
}

// Compress derives an HC1 header from ipHdr's fixed fields plus the link
// addresses of the two peers (spec §4.3). It returns the header, the bytes
// that remain of the datagram after the IPv6 header (and, when HC2 applies,
// the UDP header) are stripped, and the count of bytes stripped.
func Compress(ipHdr *ipv6.Packet, lSrc, lDst []byte) (Header, []byte, int, error) {
	var h Header

	srcComp, err := classifyCompression(ipHdr.Source, lSrc)
	if err != nil {
		return Header{}, nil, 0, fmt.Errorf("sixlowpan/hc1: classify source: %w", err)
	}
	dstComp, err := classifyCompression(ipHdr.Destination, lDst)
	if err != nil {
		return Header{}, nil, 0, fmt.Errorf("sixlowpan/hc1: classify destination: %w", err)
	}
	h.SrcCompression = srcComp
	h.DstCompression = dstComp
	copy(h.SrcPrefix[:], ipHdr.Source[0:8])
	copy(h.SrcIID[:], ipHdr.Source[8:16])
	copy(h.DstPrefix[:], ipHdr.Destination[0:8])
	copy(h.DstIID[:], ipHdr.Destination[8:16])

	if ipHdr.TrafficClass == 0 && ipHdr.FlowLabel == 0 {
		h.TCFLElided = true
	} else {
		h.TrafficClass = ipHdr.TrafficClass
		h.FlowLabel = ipHdr.FlowLabel
	}

	h.HopLimit = ipHdr.HopLimit

	payload := ipHdr.Payload
	bytesRemoved := ipv6.HeaderLength

	switch ipHdr.NextHeader {
	case common.ProtocolUDP:
		udpHdr, err := udp.Parse(payload)
		if err != nil {
			return Header{}, nil, 0, fmt.Errorf("sixlowpan/hc1: parse UDP header: %w", err)
		}
		h.NHCompression = UDP
		h.HC2Present = true
		h.UDP = UDPFields{
			SrcPort:  udpHdr.SourcePort,
			DstPort:  udpHdr.DestinationPort,
			Length:   udpHdr.Length,
			Checksum: udpHdr.Checksum,
		}
		payload = payload[udp.HeaderLength:]
		bytesRemoved += udp.HeaderLength
	case common.ProtocolTCP:
		h.NHCompression = TCP
	case common.ProtocolICMPv6:
		h.NHCompression = ICMP
	default:
		h.NHCompression = NC
		h.NextHeader = ipHdr.NextHeader
	}

	return h, payload, bytesRemoved, nil
}

// Decompress rebuilds an IPv6 packet from a decoded HC1 header, the two
// peers' link addresses, and the bytes that followed the HC1 header on the
// wire. When store is non-nil, the reconstructed IPv6 (and, when HC2
// applies, UDP) headers are pushed into it in that order, so a caller can
// reassemble the original octet stream verbatim (spec §4.4, §3.6).
func Decompress(h Header, lSrc, lDst []byte, tail []byte, store *headerstore.Store) (*ipv6.Packet, error) {
	src, err := resolveAddress(h.SrcCompression, h.SrcPrefix, h.SrcIID, lSrc)
	if err != nil {
		return nil, fmt.Errorf("sixlowpan/hc1: resolve source address: %w", err)
	}
	dst, err := resolveAddress(h.DstCompression, h.DstPrefix, h.DstIID, lDst)
	if err != nil {
		return nil, fmt.Errorf("sixlowpan/hc1: resolve destination address: %w", err)
	}

	pkt := &ipv6.Packet{
		Version:      ipv6.IPv6Version,
		TrafficClass: h.TrafficClass,
		FlowLabel:    h.FlowLabel,
		NextHeader:   h.NextHeader,
		HopLimit:     h.HopLimit,
		Source:       src,
		Destination:  dst,
	}

	if h.HC2Present && h.NHCompression == UDP {
		udpHdr := &udp.Packet{
			SourcePort:      h.UDP.SrcPort,
			DestinationPort: h.UDP.DstPort,
			Length:          h.UDP.Length,
			Checksum:        h.UDP.Checksum,
			Data:            tail,
		}
		udpBytes, err := udpHdr.Serialize()
		if err != nil {
			return nil, fmt.Errorf("sixlowpan/hc1: rebuild UDP header: %w", err)
		}
		udpBytes = udpBytes[:udp.HeaderLength]

		pkt.Payload = append(append([]byte{}, udpBytes...), tail...)
		pkt.PayloadLen = uint16(len(tail) + udp.HeaderLength)

		if store != nil {
			store.Insert(headerstore.Header{Kind: headerstore.KindIPv6})
			store.Insert(headerstore.Header{Kind: headerstore.KindUDP, Bytes: udpBytes})
		}
	} else {
		pkt.Payload = tail
		pkt.PayloadLen = uint16(len(tail))

		if store != nil {
			store.Insert(headerstore.Header{Kind: headerstore.KindIPv6})
		}
	}

	if store != nil {
		ipBytes, err := pkt.Serialize()
		if err == nil {
			store.Insert(headerstore.Header{Kind: headerstore.KindIPv6, Bytes: ipBytes[:ipv6.HeaderLength]})
		}
	}

	return pkt, nil
}

func resolveAddress(comp AddrCompression, prefix, iid [8]byte, linkAddr []byte) (common.IPv6Address, error) {
	var addr common.IPv6Address

	switch comp {
	case PIII:
		copy(addr[0:8], prefix[:])
		copy(addr[8:16], iid[:])
	case PIIC:
		copy(addr[0:8], prefix[:])
		derived, err := linklocal.ToEUI64(linkAddr)
		if err != nil {
			return addr, err
		}
		copy(addr[8:16], derived[:])
	case PCII:
		ll := linklocal.LinkLocalPrefix()
		copy(addr[0:8], ll[:])
		copy(addr[8:16], iid[:])
	case PCIC:
		ll := linklocal.LinkLocalPrefix()
		copy(addr[0:8], ll[:])
		derived, err := linklocal.ToEUI64(linkAddr)
		if err != nil {
			return addr, err
		}
		copy(addr[8:16], derived[:])
	}
	return addr, nil
}
