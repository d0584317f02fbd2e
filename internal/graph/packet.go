package graph

import (
	"fmt"

	"github.com/calcflow/calcflow/errs"
)

// Packet pairs a type-erased payload with the timestamp allocated at
// construction. Packets are transferred, not copied: Port.Write consumes the
// value and Take invalidates its source, and because a port only admits
// timestamps it has never seen, a duplicated packet is inert on any port that
// accepted the original.
type Packet struct {
	payload any
	ts      Timestamp
}

// NewPacket builds a packet owning value, stamped with a freshly issued
// timestamp.
func NewPacket[T any](value T) Packet {
	return Packet{payload: value, ts: NextTimestamp()}
}

// EmptyPacket returns the invalid packet: nil payload, sentinel timestamp.
func EmptyPacket() Packet {
	return Packet{payload: nil, ts: TimestampNone}
}

// packetAt builds a packet with an explicit timestamp. Tests use it to craft
// stale packets; production code always goes through NewPacket.
func packetAt[T any](value T, ts Timestamp) Packet {
	return Packet{payload: value, ts: ts}
}

// Valid reports whether the packet carries a payload and an issued timestamp.
func (p Packet) Valid() bool {
	return p.ts != TimestampNone && p.payload != nil
}

// Timestamp returns the stored timestamp; TimestampNone for the invalid packet.
func (p Packet) Timestamp() Timestamp { return p.ts }

// Take transfers the payload and timestamp out of p, leaving it invalid.
func (p *Packet) Take() Packet {
	moved := *p
	p.payload = nil
	p.ts = TimestampNone
	return moved
}

// Before orders packets by timestamp.
func (p Packet) Before(other Packet) bool { return p.ts < other.ts }

// After orders packets by timestamp.
func (p Packet) After(other Packet) bool { return p.ts > other.ts }

// Equal reports timestamp equality. Two valid packets compare equal only when
// one is a duplicate of the other; the generator never reissues a timestamp.
func (p Packet) Equal(other Packet) bool { return p.ts == other.ts }

// Value retrieves the payload as T. It fails with CodeEmptyPacket on the
// invalid packet and CodeTypeMismatch when the payload was constructed with a
// different type.
func Value[T any](p Packet) (T, error) {
	var zero T
	if !p.Valid() {
		return zero, errs.New("graph/packet", errs.CodeEmptyPacket,
			errs.WithMessage("typed read from the invalid packet"))
	}
	typed, ok := p.payload.(T)
	if !ok {
		return zero, errs.New("graph/packet", errs.CodeTypeMismatch,
			errs.WithMessage(fmt.Sprintf("payload is %T, not %T", p.payload, zero)))
	}
	return typed, nil
}
