package commands

// memLink is a LinkDevice backed by a direct call into a peer's Recv,
// standing in for a radio when no real socket is available. Frames are
// delivered synchronously in Send so the demo commands can inspect the
// peer's state immediately afterward.
type memLink struct {
	addr []byte
	mtu  int
	peer *memLinkPeer
}

// memLinkPeer is set once both devices in a pair exist, to break the
// construction cycle between a Device and the LinkDevice it wraps.
type memLinkPeer struct {
	recv func(frame, src, dst []byte)
}

func newMemLinkPair(addrA, addrB []byte, mtu int) (*memLink, *memLink) {
	a := &memLink{addr: addrA, mtu: mtu, peer: &memLinkPeer{}}
	b := &memLink{addr: addrB, mtu: mtu, peer: &memLinkPeer{}}
	return a, b
}

func (l *memLink) Send(frame []byte, dst []byte, protocolSelector uint16) bool {
	if l.peer.recv == nil {
		return false
	}
	l.peer.recv(frame, l.addr, dst)
	return true
}

func (l *memLink) Address() []byte   { return l.addr }
func (l *memLink) Mtu() int          { return l.mtu }
func (l *memLink) IsLinkUp() bool    { return true }
func (l *memLink) IsBroadcast() bool { return false }
func (l *memLink) IsMulticast() bool { return false }
