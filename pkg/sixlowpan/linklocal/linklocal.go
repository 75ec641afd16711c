// Package linklocal derives the link-local IPv6 context HC1 compresses
// and decompresses addresses against: the fe80::/10 prefix and the
// modified-EUI-64 interface identifier built from a link-layer address
// (spec §3.1, §4.4).
package linklocal

import (
	"fmt"

	"github.com/therealutkarshpriyadarshi/network/pkg/common"
)

// universalLocalBit is the "u" bit of a modified EUI-64 (IEEE 802 bit 1 of
// the first octet); flipping it marks a locally-derived identifier as
// universally unique the way RFC 4291 appendix A requires.
const universalLocalBit = 0x02

// ToEUI64 derives the 8-byte interface identifier used to fill an elided
// IPv6 address component, from a link-layer address of 2 (16-bit short),
// 6 (48-bit), or 8 (64-bit extended) bytes (spec §3.1, §4.4).
func ToEUI64(linkAddr []byte) ([8]byte, error) {
	var iid [8]byte
	switch len(linkAddr) {
	case 8:
		copy(iid[:], linkAddr)
		iid[0] ^= universalLocalBit
	case 6:
		copy(iid[0:3], linkAddr[0:3])
		iid[3] = 0xff
		iid[4] = 0xfe
		copy(iid[5:8], linkAddr[3:6])
		iid[0] ^= universalLocalBit
	case 2:
		// RFC 4944 §6: short addresses have no universal/local bit to
		// flip; the IID is the reserved 00:00:00:ff:fe:00 prefix plus the
		// short address verbatim.
		iid[3] = 0xff
		iid[4] = 0xfe
		copy(iid[6:8], linkAddr)
	default:
		return iid, fmt.Errorf("sixlowpan/linklocal: unsupported link address width %d", len(linkAddr))
	}
	return iid, nil
}

// LinkLocalPrefix returns the fe80::/10 prefix bytes used to fill an
// elided IPv6 address prefix (spec §4.4).
func LinkLocalPrefix() [8]byte {
	return [8]byte{0xfe, 0x80, 0, 0, 0, 0, 0, 0}
}

// AddressFromEUI64 builds a full fe80::/10 link-local address from an
// interface identifier.
func AddressFromEUI64(iid [8]byte) common.IPv6Address {
	var addr common.IPv6Address
	prefix := LinkLocalPrefix()
	copy(addr[0:8], prefix[:])
	copy(addr[8:16], iid[:])
	return addr
}

// MatchesLinkAddress reports whether addr's interface identifier (low 64
// bits) equals the EUI-64 derived from linkAddr, used to decide HC1
// interface-id elision (spec §4.3 step 1).
func MatchesLinkAddress(addr common.IPv6Address, linkAddr []byte) (bool, error) {
	iid, err := ToEUI64(linkAddr)
	if err != nil {
		return false, err
	}
	for i := 0; i < 8; i++ {
		if addr[8+i] != iid[i] {
			return false, nil
		}
	}
	return true, nil
}
