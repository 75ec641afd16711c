package commands

import (
	"github.com/spf13/cobra"

	"github.com/therealutkarshpriyadarshi/network/pkg/common"
	"github.com/therealutkarshpriyadarshi/network/pkg/ipv6"
	"github.com/therealutkarshpriyadarshi/network/pkg/sixlowpan/linklocal"
	"github.com/therealutkarshpriyadarshi/network/pkg/udp"
)

var roundTripCmd = &cobra.Command{
	Use:   "round-trip",
	Short: "send a single HC1-compressed UDP datagram that fits one frame",
	Long: `round-trip builds a small UDP datagram, sends it through an adaptation
device's HC1 compressor, and confirms it decompresses back to the original
payload on the receiving device without fragmentation.`,
	RunE: runRoundTrip,
}

func runRoundTrip(cmd *cobra.Command, args []string) error {
	logger, sessionID := sessionLogger()
	cfg := loadAdaptationConfig()
	pair := newDevicePair(cfg, logger)

	srcAddr := linkLocalOf(pair.Sender)
	dstAddr := linkLocalOf(pair.Receiver)

	payload := []byte("hello 6lowpan")
	udpPkt := &udp.Packet{SourcePort: 61618, DestinationPort: 61618, Data: payload}
	udpBytes, err := udpPkt.Serialize()
	if err != nil {
		return err
	}
	ipPkt := ipv6.NewPacket(srcAddr, dstAddr, common.ProtocolUDP, udpBytes)

	delivered := make(chan *ipv6.Packet, 1)
	pair.Receiver.Receive = func(pkt *ipv6.Packet, srcLink []byte) { delivered <- pkt }

	printf("session %s: sending %d-byte UDP datagram (%d-byte IPv6 total)\n",
		sessionID, len(udpBytes), ipv6.HeaderLength+len(udpBytes))

	if ok := pair.Sender.Send(ipPkt, pair.Receiver.Address()); !ok {
		printf("send rejected\n")
		return nil
	}

	select {
	case pkt := <-delivered:
		printf("received datagram from %x to %x, payload %q\n",
			pkt.Source, pkt.Destination, pkt.Payload[udp.HeaderLength:])
	default:
		printf("no datagram delivered\n")
	}
	return nil
}

func linkLocalOf(dev interface{ Address() []byte }) common.IPv6Address {
	iid, err := linklocal.ToEUI64(dev.Address())
	if err != nil {
		panic(err)
	}
	return linklocal.AddressFromEUI64(iid)
}
