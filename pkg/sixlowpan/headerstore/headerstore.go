// Package headerstore holds decoded network-layer headers awaiting
// assembly onto a reassembled or decompressed packet (spec §3.6).
//
// The reference implementation keeps these as polymorphic header objects
// behind a kind-keyed map of smart-pointer handles (spec §9,
// "Smart-pointer-graph of header objects"). Here each header is reduced to
// its already-serialized bytes plus a Kind tag, stored in insertion order;
// ownership moves into the Store on Insert and out again when the caller
// assembles the final packet prefix.
package headerstore

import "fmt"

// Kind identifies which network-layer header an entry carries.
type Kind int

const (
	KindDispatchRaw Kind = iota
	KindHC1
	KindIPv6
	KindUDP
	KindTCP
	KindICMPv6
)

// String names a Kind for logging.
func (k Kind) String() string {
	switch k {
	case KindDispatchRaw:
		return "DispatchRaw"
	case KindHC1:
		return "HC1"
	case KindIPv6:
		return "IPv6"
	case KindUDP:
		return "UDP"
	case KindTCP:
		return "TCP"
	case KindICMPv6:
		return "ICMPv6"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Header is a single stored header: its kind tag and its serialized bytes.
type Header struct {
	Kind  Kind
	Bytes []byte
}

// Store is an ordered collection of headers, at most one per Kind,
// preserving insertion order for reassembly (spec §3.6).
type Store struct {
	order  []Kind
	byKind map[Kind]Header
}

// New creates an empty header store.
func New() *Store {
	return &Store{byKind: make(map[Kind]Header)}
}

// Insert adds or replaces the header for its Kind. A replace keeps the
// header's original position in insertion order.
func (s *Store) Insert(h Header) {
	if _, exists := s.byKind[h.Kind]; !exists {
		s.order = append(s.order, h.Kind)
	}
	s.byKind[h.Kind] = h
}

// Get returns the header stored for the given Kind, if any.
func (s *Store) Get(k Kind) (Header, bool) {
	h, ok := s.byKind[k]
	return h, ok
}

// Remove deletes the header for the given Kind, if present.
func (s *Store) Remove(k Kind) {
	if _, exists := s.byKind[k]; !exists {
		return
	}
	delete(s.byKind, k)
	for i, kind := range s.order {
		if kind == k {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Ordered returns the stored headers in insertion order.
func (s *Store) Ordered() []Header {
	out := make([]Header, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.byKind[k])
	}
	return out
}

// Len returns the number of distinct header kinds stored.
func (s *Store) Len() int {
	return len(s.order)
}

// TotalSize returns the sum of the serialized size of every stored header
// (spec §3.6 invariant: total serialized size equals the sum of stored
// headers' sizes).
func (s *Store) TotalSize() int {
	total := 0
	for _, h := range s.byKind {
		total += len(h.Bytes)
	}
	return total
}

// Assemble concatenates every stored header's bytes, in insertion order,
// ready to be prepended to a reassembled or decompressed packet body.
func (s *Store) Assemble() []byte {
	out := make([]byte, 0, s.TotalSize())
	for _, k := range s.order {
		out = append(out, s.byKind[k].Bytes...)
	}
	return out
}
