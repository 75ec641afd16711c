package commands

import (
	"log/slog"

	"github.com/therealutkarshpriyadarshi/network/pkg/sixlowpan/adaptation"
	"github.com/therealutkarshpriyadarshi/network/pkg/sixlowpan/fragmenter"
	"github.com/therealutkarshpriyadarshi/network/pkg/sixlowpan/trace"
)

// devicePair is two adaptation devices wired over an in-memory link,
// mirroring the sender/receiver roles of an ns-3 two-node topology.
type devicePair struct {
	Sender, Receiver *adaptation.Device
}

var nextTag uint16

// sequentialTags hands out increasing datagram tags the way a real
// adaptation device would, instead of a fixed test value.
func sequentialTags() fragmenter.TagSource {
	return fragmenter.TagSourceFunc(func() uint16 {
		nextTag++
		return nextTag
	})
}

func newDevicePair(cfg adaptation.Config, logger *slog.Logger) *devicePair {
	srcAddr := []byte{0x00, 0x00, 0x00, 0xff, 0xfe, 0x00, 0x00, 0x01}
	dstAddr := []byte{0x00, 0x00, 0x00, 0xff, 0xfe, 0x00, 0x00, 0x02}

	linkA, linkB := newMemLinkPair(srcAddr, dstAddr, cfg.Mtu)
	hooks := trace.DefaultSlog(logger)

	sender := adaptation.New(linkA, cfg, hooks, logger.With("role", "sender"), sequentialTags(), 1)
	receiver := adaptation.New(linkB, cfg, hooks, logger.With("role", "receiver"), sequentialTags(), 2)

	linkA.peer.recv = func(frame, src, dst []byte) { receiver.Recv(frame, src, dst, adaptation.PacketHost) }
	linkB.peer.recv = func(frame, src, dst []byte) { sender.Recv(frame, src, dst, adaptation.PacketHost) }

	return &devicePair{Sender: sender, Receiver: receiver}
}
