package commands

import (
	"github.com/spf13/cobra"
	"golang.org/x/net/icmp"
	xipv6 "golang.org/x/net/ipv6"

	"github.com/therealutkarshpriyadarshi/network/pkg/common"
	"github.com/therealutkarshpriyadarshi/network/pkg/ipv6"
	"github.com/therealutkarshpriyadarshi/network/pkg/udp"
)

var fragmentICMP bool

var fragmentCmd = &cobra.Command{
	Use:   "fragment",
	Short: "send a datagram large enough to require FRAG1/FRAGN fragmentation",
	Long: `fragment builds a payload larger than the configured MTU, forcing the
sender to emit a FRAG1 fragment followed by one or more FRAGN fragments. With
--icmp, the payload is an ICMPv6 echo request instead of UDP, exercising
HC1's NH=ICMP branch.`,
	RunE: runFragment,
}

func init() {
	fragmentCmd.Flags().BoolVar(&fragmentICMP, "icmp", false, "use an ICMPv6 echo request payload instead of UDP")
}

func runFragment(cmd *cobra.Command, args []string) error {
	logger, sessionID := sessionLogger()
	cfg := loadAdaptationConfig()
	pair := newDevicePair(cfg, logger)

	srcAddr := linkLocalOf(pair.Sender)
	dstAddr := linkLocalOf(pair.Receiver)

	var (
		payload    []byte
		protocol   common.Protocol
		payloadErr error
	)
	if fragmentICMP {
		payload, payloadErr = buildEchoRequest(220)
		protocol = common.ProtocolICMPv6
	} else {
		data := make([]byte, 220)
		for i := range data {
			data[i] = byte(i)
		}
		udpPkt := &udp.Packet{SourcePort: 61618, DestinationPort: 61618, Data: data}
		payload, payloadErr = udpPkt.Serialize()
		protocol = common.ProtocolUDP
	}
	if payloadErr != nil {
		return payloadErr
	}

	ipPkt := ipv6.NewPacket(srcAddr, dstAddr, protocol, payload)

	delivered := make(chan *ipv6.Packet, 1)
	pair.Receiver.Receive = func(pkt *ipv6.Packet, srcLink []byte) { delivered <- pkt }

	printf("session %s: sending %d-byte datagram over %d-byte MTU\n", sessionID, len(payload), cfg.Mtu)

	if ok := pair.Sender.Send(ipPkt, pair.Receiver.Address()); !ok {
		printf("send rejected\n")
		return nil
	}

	select {
	case pkt := <-delivered:
		printf("reassembled datagram delivered: %d bytes\n", len(pkt.Payload))
	default:
		printf("no datagram delivered (see DESIGN.md decision on datagram_size arithmetic)\n")
	}
	return nil
}

// buildEchoRequest constructs a minimal ICMPv6 echo request of the given
// data length, using the checksum-less form (checksum 0): the adaptation
// device never validates transport checksums, only HC1's NH classification.
func buildEchoRequest(dataLen int) ([]byte, error) {
	data := make([]byte, dataLen)
	for i := range data {
		data[i] = byte(i)
	}
	msg := icmp.Message{
		Type: xipv6.ICMPTypeEchoRequest,
		Code: 0,
		Body: &icmp.Echo{ID: 1, Seq: 1, Data: data},
	}
	return msg.Marshal(nil)
}
