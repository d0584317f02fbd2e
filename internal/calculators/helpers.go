package calculators

import (
	"github.com/calcflow/calcflow/internal/graph"
)

// sideReader is the slice of graph.Context the tag helpers need.
type sideReader interface {
	SideParameter(tag string) (graph.Packet, error)
}

func intValue(packet graph.Packet) (int, error) {
	return graph.Value[int](packet)
}

// readFrame polls the tagged input port for one image packet. The bool is
// false when the port is missing or empty; the scheduler simply skips the
// tick.
func readFrame(cc *graph.Context, tag string) (graph.Packet, bool) {
	port, err := cc.InputPort(tag)
	if err != nil || port.Size() == 0 {
		return graph.EmptyPacket(), false
	}
	return port.Read(), true
}

// writeFrame emits packet on the tagged output port, returning the
// unknown_port error when the port was never bound (an unterminated chain).
func writeFrame(cc *graph.Context, tag string, packet graph.Packet) error {
	port, err := cc.OutputPort(tag)
	if err != nil {
		return err
	}
	port.Write(packet)
	return nil
}
