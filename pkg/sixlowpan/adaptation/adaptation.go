// Package adaptation implements the 6LoWPAN adaptation device: the glue
// between an IPv6-speaking network layer and an underlying link device,
// running HC1 compression/fragmentation on transmit and dispatch
// classification/reassembly on receive (spec §4.7).
package adaptation

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/therealutkarshpriyadarshi/network/pkg/common"
	"github.com/therealutkarshpriyadarshi/network/pkg/icmp"
	"github.com/therealutkarshpriyadarshi/network/pkg/ipv6"
	"github.com/therealutkarshpriyadarshi/network/pkg/sixlowpan/buffer"
	"github.com/therealutkarshpriyadarshi/network/pkg/sixlowpan/dispatch"
	"github.com/therealutkarshpriyadarshi/network/pkg/sixlowpan/frag"
	"github.com/therealutkarshpriyadarshi/network/pkg/sixlowpan/fragmenter"
	"github.com/therealutkarshpriyadarshi/network/pkg/sixlowpan/hc1"
	"github.com/therealutkarshpriyadarshi/network/pkg/sixlowpan/headerstore"
	"github.com/therealutkarshpriyadarshi/network/pkg/sixlowpan/reassembly"
	"github.com/therealutkarshpriyadarshi/network/pkg/sixlowpan/trace"
)

// ProtocolSelector is the fixed link-device protocol value every outbound
// 6LoWPAN frame is sent with (spec §6.2). The receiver ignores it and
// dispatches on the frame's own leading octet instead.
const ProtocolSelector uint16 = 0x809A

// LinkDevice is the underlying link-layer device an adaptation Device
// wraps. MTU, address, link-up, and broadcast/multicast predicates
// delegate straight through to it (spec §4.7).
type LinkDevice interface {
	// Send hands a composed link-layer frame to the device for
	// transmission toward dst, tagged with protocolSelector. It reports
	// whether the frame was accepted for transmission.
	Send(frame []byte, dst []byte, protocolSelector uint16) bool
	// Address returns this device's own link-layer address.
	Address() []byte
	Mtu() int
	IsLinkUp() bool
	IsBroadcast() bool
	IsMulticast() bool
}

// PacketType classifies an inbound frame the way a link device would
// before handing it to the adaptation layer, mirroring the host/
// broadcast/multicast/otherhost distinction a promiscuous sniffer and a
// regular receiver disagree on (spec §4.7).
type PacketType int

const (
	PacketHost PacketType = iota
	PacketBroadcast
	PacketMulticast
	PacketOtherhost
)

func (p PacketType) String() string {
	switch p {
	case PacketHost:
		return "Host"
	case PacketBroadcast:
		return "Broadcast"
	case PacketMulticast:
		return "Multicast"
	case PacketOtherhost:
		return "Otherhost"
	default:
		return fmt.Sprintf("PacketType(%d)", int(p))
	}
}

// Config holds the adaptation device's tunables (spec §6.3).
type Config struct {
	// FragmentReassemblyListSize bounds concurrent reassembly entries;
	// 0 means unbounded.
	FragmentReassemblyListSize int
	// FragmentExpirationTimeout is the per-entry reassembly TTL.
	FragmentExpirationTimeout time.Duration
	// Mtu is the link-layer MTU in octets used by fragmentation.
	Mtu int
}

// DefaultConfig returns the spec's stated defaults.
func DefaultConfig() Config {
	return Config{
		FragmentReassemblyListSize: 0,
		FragmentExpirationTimeout:  180 * time.Second,
		Mtu:                        102,
	}
}

type pendingRX struct {
	packetType PacketType
	srcLink    []byte
}

// Device is a 6LoWPAN adaptation device wrapping a LinkDevice (spec §4.7).
type Device struct {
	link    LinkDevice
	cfg     Config
	hooks   trace.Hooks
	logger  *slog.Logger
	tags    fragmenter.TagSource
	ifindex int

	reasm *reassembly.Engine

	mu      sync.Mutex
	pending map[reassembly.Key]pendingRX

	// Receive is invoked for a fully reconstructed IPv6 packet addressed
	// to this host (PacketHost, PacketBroadcast, or PacketMulticast).
	Receive func(pkt *ipv6.Packet, srcLink []byte)
	// PromiscReceive is invoked for every inbound packet this device
	// successfully decodes, regardless of PacketType.
	PromiscReceive func(pkt *ipv6.Packet, srcLink []byte)
}

// New builds an adaptation device over link. hooks fires Tx on every
// outbound frame, Rx on every inbound frame, and Drop for
// FragmentTimeout/FragmentBufferFull reassembly events (spec §6.4). A nil
// logger falls back to slog.Default().
func New(link LinkDevice, cfg Config, hooks trace.Hooks, logger *slog.Logger, tags fragmenter.TagSource, ifindex int) *Device {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Device{
		link:    link,
		cfg:     cfg,
		hooks:   hooks,
		logger:  logger,
		tags:    tags,
		ifindex: ifindex,
		pending: make(map[reassembly.Key]pendingRX),
	}
	d.reasm = reassembly.New(reassembly.Config{
		ListSize:          cfg.FragmentReassemblyListSize,
		ExpirationTimeout: cfg.FragmentExpirationTimeout,
	}, hooks, d.onReassembled)
	return d
}

func (d *Device) deviceLabel() string {
	return fmt.Sprintf("%x", d.link.Address())
}

// Mtu, Address, IsLinkUp, IsBroadcast, and IsMulticast delegate straight
// through to the underlying link device (spec §4.7).
func (d *Device) Mtu() int           { return d.link.Mtu() }
func (d *Device) Address() []byte    { return d.link.Address() }
func (d *Device) IsLinkUp() bool     { return d.link.IsLinkUp() }
func (d *Device) IsBroadcast() bool  { return d.link.IsBroadcast() }
func (d *Device) IsMulticast() bool  { return d.link.IsMulticast() }

// Send runs HC1 compression, fragments if the result doesn't fit the
// configured MTU, and forwards every resulting frame to the link device
// under the fixed ProtocolSelector (spec §4.7, §6.2). It reports false on
// any codec or link-level failure.
func (d *Device) Send(pkt *ipv6.Packet, dstLink []byte) bool {
	srcLink := d.link.Address()

	h, tail, _, err := hc1.Compress(pkt, srcLink, dstLink)
	if err != nil {
		d.logger.Warn("sixlowpan send: compress failed", "device", d.deviceLabel(), "error", err)
		return false
	}

	headerBuf := buffer.NewWriter(h.SerializedSize())
	if err := h.Serialize(headerBuf); err != nil {
		d.logger.Warn("sixlowpan send: serialize header failed", "device", d.deviceLabel(), "error", err)
		return false
	}

	// FRAG1's datagram_size field carries the compressed datagram's own
	// total size (header + tail), not the pre-compression IPv6 datagram
	// size: spec.md's S2 scenario states its 240-octet input "after
	// compression" and that value round-trips through the FRAG1 wire
	// bytes unchanged.
	compressedTotal := len(headerBuf.Bytes()) + len(tail)
	frames, err := fragmenter.Fragment(headerBuf.Bytes(), tail, compressedTotal, d.cfg.Mtu, d.tags)
	if err != nil {
		d.logger.Warn("sixlowpan send: fragmentation failed", "device", d.deviceLabel(), "error", err)
		return false
	}

	for _, f := range frames {
		if !d.link.Send(f.Bytes, dstLink, ProtocolSelector) {
			d.logger.Warn("sixlowpan send: link rejected frame", "device", d.deviceLabel())
			return false
		}
		d.hooks.FireTx(f.Bytes, d.deviceLabel(), d.ifindex)
	}
	return true
}

// Recv classifies an inbound frame's dispatch byte and routes it through
// direct HC1/UNCOMPRESSED decoding or fragment reassembly, per the RX
// state machine of spec §4.7. Unsupported encodings are logged and
// dropped; the device remains operational for subsequent frames.
func (d *Device) Recv(frame []byte, srcLink, dstLink []byte, packetType PacketType) {
	d.hooks.FireRx(frame, d.deviceLabel(), d.ifindex)

	c := buffer.New(frame)
	variant, err := dispatch.Peek(c)
	if err != nil {
		d.logger.Warn("sixlowpan recv: empty or truncated frame", "device", d.deviceLabel(), "error", err)
		return
	}
	if err := dispatch.CheckSupported(variant); err != nil {
		d.logger.Warn("sixlowpan recv: unsupported encoding", "device", d.deviceLabel(), "variant", variant, "error", err)
		return
	}

	switch variant {
	case dispatch.UNCOMPRESSED:
		d.recvUncompressed(c, srcLink, packetType)
	case dispatch.HC1:
		d.recvHC1(c, srcLink, dstLink, packetType)
	case dispatch.FRAG1:
		d.recvFrag1(c, srcLink, dstLink, packetType)
	case dispatch.FRAGN:
		d.recvFragN(c, srcLink, dstLink)
	}
}

func (d *Device) recvUncompressed(c *buffer.Cursor, srcLink []byte, packetType PacketType) {
	if err := dispatch.ConsumeUncompressed(c); err != nil {
		d.logger.Warn("sixlowpan recv: consume uncompressed dispatch", "device", d.deviceLabel(), "error", err)
		return
	}
	rest, err := c.Read(c.Remaining())
	if err != nil {
		d.logger.Warn("sixlowpan recv: read uncompressed body", "device", d.deviceLabel(), "error", err)
		return
	}
	pkt, err := ipv6.Parse(rest)
	if err != nil {
		d.logger.Warn("sixlowpan recv: parse uncompressed datagram", "device", d.deviceLabel(), "error", err)
		return
	}
	d.deliver(pkt, packetType, srcLink)
}

func (d *Device) recvHC1(c *buffer.Cursor, srcLink, dstLink []byte, packetType PacketType) {
	h, err := hc1.Deserialize(c)
	if err != nil {
		d.logger.Warn("sixlowpan recv: deserialize HC1 header", "device", d.deviceLabel(), "error", err)
		return
	}
	tail, err := c.Read(c.Remaining())
	if err != nil {
		d.logger.Warn("sixlowpan recv: read HC1 tail", "device", d.deviceLabel(), "error", err)
		return
	}
	pkt, err := hc1.Decompress(h, srcLink, dstLink, tail, nil)
	if err != nil {
		d.logger.Warn("sixlowpan recv: decompress HC1 header", "device", d.deviceLabel(), "error", err)
		return
	}
	d.deliver(pkt, packetType, srcLink)
}

// recvFrag1 decodes FRAG1's embedded HC1/UNCOMPRESSED header into a
// header-storage ready to be prepended once reassembly completes, then
// hands the fragment's remaining payload to the reassembly engine at
// offset 0 (spec §4.6 "On FRAG1 arrival", §4.7 "[decompress headers]").
func (d *Device) recvFrag1(c *buffer.Cursor, srcLink, dstLink []byte, packetType PacketType) {
	f1, err := frag.DeserializeFrag1(c)
	if err != nil {
		d.logger.Warn("sixlowpan recv: deserialize FRAG1 header", "device", d.deviceLabel(), "error", err)
		return
	}

	headerVariant, err := dispatch.Peek(c)
	if err != nil {
		d.logger.Warn("sixlowpan recv: peek FRAG1 embedded header", "device", d.deviceLabel(), "error", err)
		return
	}

	store := headerstore.New()
	switch headerVariant {
	case dispatch.HC1:
		h, err := hc1.Deserialize(c)
		if err != nil {
			d.logger.Warn("sixlowpan recv: deserialize FRAG1 embedded HC1 header", "device", d.deviceLabel(), "error", err)
			return
		}
		if _, err := hc1.Decompress(h, srcLink, dstLink, nil, store); err != nil {
			d.logger.Warn("sixlowpan recv: decompress FRAG1 embedded HC1 header", "device", d.deviceLabel(), "error", err)
			return
		}
	case dispatch.UNCOMPRESSED:
		if err := dispatch.ConsumeUncompressed(c); err != nil {
			d.logger.Warn("sixlowpan recv: consume FRAG1 embedded uncompressed dispatch", "device", d.deviceLabel(), "error", err)
			return
		}
		hdrBytes, err := c.Read(ipv6.HeaderLength)
		if err != nil {
			d.logger.Warn("sixlowpan recv: read FRAG1 embedded uncompressed header", "device", d.deviceLabel(), "error", err)
			return
		}
		store.Insert(headerstore.Header{Kind: headerstore.KindIPv6, Bytes: append([]byte{}, hdrBytes...)})
	default:
		d.logger.Warn("sixlowpan recv: unsupported header inside FRAG1", "device", d.deviceLabel(), "variant", headerVariant)
		return
	}

	body, err := c.Read(c.Remaining())
	if err != nil {
		d.logger.Warn("sixlowpan recv: read FRAG1 payload", "device", d.deviceLabel(), "error", err)
		return
	}

	key := reassembly.NewKey(srcLink, dstLink, f1.DatagramSize, f1.DatagramTag)
	d.mu.Lock()
	d.pending[key] = pendingRX{packetType: packetType, srcLink: append([]byte{}, srcLink...)}
	d.mu.Unlock()

	d.reasm.InsertFrag1(key, body, store)
}

func (d *Device) recvFragN(c *buffer.Cursor, srcLink, dstLink []byte) {
	fn, err := frag.DeserializeFragN(c)
	if err != nil {
		d.logger.Warn("sixlowpan recv: deserialize FRAGN header", "device", d.deviceLabel(), "error", err)
		return
	}
	body, err := c.Read(c.Remaining())
	if err != nil {
		d.logger.Warn("sixlowpan recv: read FRAGN payload", "device", d.deviceLabel(), "error", err)
		return
	}
	key := reassembly.NewKey(srcLink, dstLink, fn.DatagramSize, fn.DatagramTag)
	d.reasm.InsertFragN(key, body, int(fn.DatagramOffset)<<3)
}

func (d *Device) onReassembled(key reassembly.Key, body []byte, headers *headerstore.Store) {
	d.mu.Lock()
	meta, ok := d.pending[key]
	delete(d.pending, key)
	d.mu.Unlock()
	if !ok {
		meta = pendingRX{packetType: PacketHost}
	}

	var full []byte
	if headers != nil {
		full = append(full, headers.Assemble()...)
	}
	full = append(full, body...)

	pkt, err := ipv6.Parse(full)
	if err != nil {
		d.logger.Warn("sixlowpan recv: parse reassembled datagram", "device", d.deviceLabel(), "error", err)
		return
	}
	d.deliver(pkt, meta.packetType, meta.srcLink)
}

// deliver fires PromiscReceive for every decoded packet, and Receive only
// when packetType is not Otherhost, matching a real link device's
// distinction between promiscuous sniffing and normal upward delivery.
func (d *Device) deliver(pkt *ipv6.Packet, packetType PacketType, srcLink []byte) {
	if pkt.NextHeader == common.ProtocolICMPv6 {
		d.logICMPv6(pkt)
	}
	if d.PromiscReceive != nil {
		d.PromiscReceive(pkt, srcLink)
	}
	if packetType != PacketOtherhost && d.Receive != nil {
		d.Receive(pkt, srcLink)
	}
}

// logICMPv6 recognizes the next-header-ICMPv6 case HC1's NH field can
// carry: the wire layout of an ICMPv6 echo request/reply's first 8 bytes
// (type, code, checksum, id, sequence) matches RFC 792's ICMP header, so
// the teacher's icmp.Parse can decode it for a log line even though this
// package otherwise only deals in ICMPv6 type numbers, not ICMPv4's.
func (d *Device) logICMPv6(pkt *ipv6.Packet) {
	msg, err := icmp.Parse(pkt.Payload)
	if err != nil {
		d.logger.Debug("sixlowpan recv: unparseable ICMPv6 payload", "device", d.deviceLabel(), "error", err)
		return
	}
	d.logger.Debug("sixlowpan recv: ICMPv6 datagram", "device", d.deviceLabel(), "icmp_type", uint8(msg.Type), "icmp_code", uint8(msg.Code))
}
