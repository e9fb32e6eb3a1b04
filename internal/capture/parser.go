package capture

import (
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"NetFlowScope/internal/model"
)

// ParsePacket extracts the flow-relevant metadata from a decoded packet.
// Non-IPv4 packets are rejected here, upstream of the engine, so the flow
// key resolver stays total.
func ParsePacket(packet gopacket.Packet) (*model.PacketEvent, error) {
	ev := &model.PacketEvent{Timestamp: time.Now()}

	if meta := packet.Metadata(); meta != nil {
		if !meta.Timestamp.IsZero() {
			ev.Timestamp = meta.Timestamp
		}
		ev.Length = meta.Length
	}
	if ev.Length == 0 {
		ev.Length = len(packet.Data())
	}

	ipLayer := packet.Layer(layers.LayerTypeIPv4)
	if ipLayer == nil {
		return nil, fmt.Errorf("not an IPv4 packet")
	}
	ip := ipLayer.(*layers.IPv4)
	ev.SrcIP = ip.SrcIP
	ev.DstIP = ip.DstIP
	ev.Protocol = uint8(ip.Protocol)

	switch {
	case packet.Layer(layers.LayerTypeTCP) != nil:
		tcp := packet.Layer(layers.LayerTypeTCP).(*layers.TCP)
		ev.SrcPort = uint16(tcp.SrcPort)
		ev.DstPort = uint16(tcp.DstPort)
		ev.Flags = model.TCPFlags{
			SYN: tcp.SYN,
			ACK: tcp.ACK,
			FIN: tcp.FIN,
			RST: tcp.RST,
			PSH: tcp.PSH,
			URG: tcp.URG,
		}
	case packet.Layer(layers.LayerTypeUDP) != nil:
		udp := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		ev.SrcPort = uint16(udp.SrcPort)
		ev.DstPort = uint16(udp.DstPort)
	default:
		// ICMP and other IP protocols are tracked portless; the flow
		// key resolver collapses them per host pair.
	}

	return ev, nil
}
