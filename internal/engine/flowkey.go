package engine

import "NetFlowScope/internal/model"

// ResolveKey maps a packet to its canonical bidirectional flow key. The two
// endpoints are ordered by (address, port) so that packets of both
// directions resolve to the same key. Protocols without ports (ICMP and
// anything else that is not TCP/UDP) use zero sentinel ports, collapsing
// all such traffic between two hosts into one flow.
func ResolveKey(ev *model.PacketEvent) model.FlowKey {
	src := ev.SrcIP.String()
	dst := ev.DstIP.String()

	srcPort, dstPort := ev.SrcPort, ev.DstPort
	if ev.Protocol != model.ProtoTCP && ev.Protocol != model.ProtoUDP {
		srcPort, dstPort = 0, 0
	}

	if endpointLess(src, srcPort, dst, dstPort) {
		return model.FlowKey{
			AAddr:    src,
			APort:    srcPort,
			BAddr:    dst,
			BPort:    dstPort,
			Protocol: ev.Protocol,
		}
	}
	return model.FlowKey{
		AAddr:    dst,
		APort:    dstPort,
		BAddr:    src,
		BPort:    srcPort,
		Protocol: ev.Protocol,
	}
}

// endpointLess defines the total order on (address, port) used for key
// canonicalization.
func endpointLess(aAddr string, aPort uint16, bAddr string, bPort uint16) bool {
	if aAddr != bAddr {
		return aAddr < bAddr
	}
	return aPort < bPort
}
