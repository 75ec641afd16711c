package commands

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	xipv6 "golang.org/x/net/ipv6"

	"github.com/therealutkarshpriyadarshi/network/pkg/ipv6"
	"github.com/therealutkarshpriyadarshi/network/pkg/sixlowpan/adaptation"
	"github.com/therealutkarshpriyadarshi/network/pkg/sixlowpan/fragmenter"
	"github.com/therealutkarshpriyadarshi/network/pkg/sixlowpan/trace"
)

var serveRealSocket bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run an adaptation device that logs every Tx/Rx/Drop trace event until interrupted",
	Long: `serve keeps an adaptation device alive and wired to the trace hooks so its
Tx/Rx/Drop activity can be watched. By default it listens on an in-memory
link with no traffic source; with --real-socket it instead binds a loopback
UDP socket (wrapped for IPv6 control-message access via
golang.org/x/net/ipv6) and treats every inbound UDP datagram as an inbound
6LoWPAN frame sent by its own peer address.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveRealSocket, "real-socket", false, "back the link device with a real loopback UDP socket")
}

// socketLink adapts a UDP PacketConn into an adaptation.LinkDevice: every
// Send writes the frame as a single UDP datagram to peer, and every
// datagram the read loop pulls off the socket is handed to onRecv as an
// inbound frame.
type socketLink struct {
	conn   *net.UDPConn
	pconn  *xipv6.PacketConn
	peer   *net.UDPAddr
	addr   []byte
	mtu    int
	onRecv func(frame []byte, src []byte)
}

func (s *socketLink) Send(frame []byte, dst []byte, protocolSelector uint16) bool {
	_, err := s.conn.WriteToUDP(frame, s.peer)
	return err == nil
}
func (s *socketLink) Address() []byte   { return s.addr }
func (s *socketLink) Mtu() int          { return s.mtu }
func (s *socketLink) IsLinkUp() bool    { return true }
func (s *socketLink) IsBroadcast() bool { return false }
func (s *socketLink) IsMulticast() bool { return false }

// readLoop pulls datagrams off the socket until it is closed, which is
// how the caller unblocks ReadFromUDP to honor ctx cancellation.
func (s *socketLink) readLoop(ctx context.Context) {
	buf := make([]byte, 2048)
	for {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.onRecv(append([]byte{}, buf[:n]...), []byte(addr.IP.To16()))
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, sessionID := sessionLogger()
	cfg := loadAdaptationConfig()
	hooks := trace.DefaultSlog(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if !serveRealSocket {
		pair := newDevicePair(cfg, logger)
		printf("session %s: in-memory pair ready (sender %x, receiver %x); Ctrl-C to stop\n",
			sessionID, pair.Sender.Address(), pair.Receiver.Address())
		<-sigCh
		cancel()
		return nil
	}

	laddr, err := net.ResolveUDPAddr("udp6", "[::1]:0")
	if err != nil {
		return fmt.Errorf("resolve loopback address: %w", err)
	}
	conn, err := net.ListenUDP("udp6", laddr)
	if err != nil {
		return fmt.Errorf("bind loopback socket: %w", err)
	}
	defer conn.Close()

	pconn := xipv6.NewPacketConn(conn)
	if err := pconn.SetControlMessage(xipv6.FlagHopLimit, true); err != nil {
		logger.Warn("serve: ipv6 control message setup failed", "error", err)
	}

	link := &socketLink{
		conn:  conn,
		pconn: pconn,
		peer:  conn.LocalAddr().(*net.UDPAddr),
		addr:  []byte{0x00, 0x00, 0x00, 0xff, 0xfe, 0x00, 0x00, 0x01},
		mtu:   cfg.Mtu,
	}
	dev := adaptation.New(link, cfg, hooks, logger, fragmenter.TagSourceFunc(func() uint16 { nextTag++; return nextTag }), 1)
	link.onRecv = func(frame, src []byte) { dev.Recv(frame, src, link.addr, adaptation.PacketHost) }
	dev.Receive = func(pkt *ipv6.Packet, srcLink []byte) {
		logger.Info("serve: delivered reassembled/direct datagram", "bytes", len(pkt.Payload))
	}

	go link.readLoop(ctx)

	printf("session %s: listening on %s (loopback peer-of-self mode); Ctrl-C to stop\n", sessionID, conn.LocalAddr())
	<-sigCh
	cancel()
	conn.Close()
	return nil
}
