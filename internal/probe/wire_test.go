package probe

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"NetFlowScope/internal/model"
)

func TestPackFlags_Roundtrip(t *testing.T) {
	cases := []model.TCPFlags{
		{},
		{SYN: true},
		{SYN: true, ACK: true},
		{FIN: true, ACK: true},
		{RST: true},
		{SYN: true, ACK: true, FIN: true, RST: true, PSH: true, URG: true},
	}
	for _, f := range cases {
		if got := unpackFlags(packFlags(f)); got != f {
			t.Errorf("Flags %+v round-tripped to %+v", f, got)
		}
	}
}

func TestWireEvent_Roundtrip(t *testing.T) {
	ev := &model.PacketEvent{
		Timestamp: time.Now().Truncate(time.Microsecond),
		SrcIP:     net.ParseIP("10.0.0.1"),
		DstIP:     net.ParseIP("10.0.0.2"),
		SrcPort:   51000,
		DstPort:   443,
		Protocol:  model.ProtoTCP,
		Length:    1460,
		Flags:     model.TCPFlags{ACK: true, PSH: true},
	}

	data, err := json.Marshal(toWire(ev))
	if err != nil {
		t.Fatalf("Failed to marshal wire event: %v", err)
	}
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		t.Fatalf("Failed to unmarshal wire event: %v", err)
	}
	got := fromWire(w)

	if !got.SrcIP.Equal(ev.SrcIP) || !got.DstIP.Equal(ev.DstIP) {
		t.Errorf("Addresses changed in transit: %s -> %s", got.SrcIP, got.DstIP)
	}
	if got.SrcPort != ev.SrcPort || got.DstPort != ev.DstPort {
		t.Errorf("Ports changed in transit: %d -> %d", got.SrcPort, got.DstPort)
	}
	if got.Protocol != ev.Protocol || got.Length != ev.Length {
		t.Errorf("Metadata changed in transit: proto=%d length=%d", got.Protocol, got.Length)
	}
	if got.Flags != ev.Flags {
		t.Errorf("Flags changed in transit: %+v", got.Flags)
	}
	if !got.Timestamp.Equal(ev.Timestamp) {
		t.Errorf("Timestamp changed in transit: %v vs %v", got.Timestamp, ev.Timestamp)
	}
}
