// Package trace defines the observability hooks an adaptation device fires
// on every outbound frame, inbound frame, and drop (spec §6.4).
package trace

import (
	"log/slog"
)

// Reason names why a frame or reassembly entry was dropped (spec §6.4,
// §7). Only FragmentTimeout and FragmentBufferFull are produced by this
// core; the others are named so the full reason set matches the
// specification even though the link-layer core doesn't emit them itself.
type Reason int

const (
	TtlExpired Reason = iota
	NoRoute
	BadChecksum
	InterfaceDown
	RouteError
	FragmentTimeout
	FragmentBufferFull
)

func (r Reason) String() string {
	switch r {
	case TtlExpired:
		return "TtlExpired"
	case NoRoute:
		return "NoRoute"
	case BadChecksum:
		return "BadChecksum"
	case InterfaceDown:
		return "InterfaceDown"
	case RouteError:
		return "RouteError"
	case FragmentTimeout:
		return "FragmentTimeout"
	case FragmentBufferFull:
		return "FragmentBufferFull"
	default:
		return "Unknown"
	}
}

// Hooks is the set of callbacks an adaptation device fires. Any field left
// nil is simply not called — a caller that only cares about drops leaves
// Tx and Rx unset.
type Hooks struct {
	Tx   func(frame []byte, device string, ifindex int)
	Rx   func(frame []byte, device string, ifindex int)
	Drop func(reason Reason, device string, ifindex int)
}

// FireTx invokes the Tx hook if set; nil hooks are simply skipped so a
// caller need not check before firing.
func (h Hooks) FireTx(frame []byte, device string, ifindex int) {
	if h.Tx != nil {
		h.Tx(frame, device, ifindex)
	}
}

// FireRx invokes the Rx hook if set.
func (h Hooks) FireRx(frame []byte, device string, ifindex int) {
	if h.Rx != nil {
		h.Rx(frame, device, ifindex)
	}
}

// FireDrop invokes the Drop hook if set.
func (h Hooks) FireDrop(reason Reason, device string, ifindex int) {
	if h.Drop != nil {
		h.Drop(reason, device, ifindex)
	}
}

// DefaultSlog returns Hooks that log every firing through logger at Debug
// (Tx/Rx) or Warn (Drop) level, in the style of Splat-NDPeekr's
// *slog.Logger-in-config idiom. A nil logger falls back to slog.Default().
func DefaultSlog(logger *slog.Logger) Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return Hooks{
		Tx: func(frame []byte, device string, ifindex int) {
			logger.Debug("sixlowpan tx", "device", device, "ifindex", ifindex, "bytes", len(frame))
		},
		Rx: func(frame []byte, device string, ifindex int) {
			logger.Debug("sixlowpan rx", "device", device, "ifindex", ifindex, "bytes", len(frame))
		},
		Drop: func(reason Reason, device string, ifindex int) {
			logger.Warn("sixlowpan drop", "reason", reason, "device", device, "ifindex", ifindex)
		},
	}
}
