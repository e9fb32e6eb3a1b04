package capture

import (
	"fmt"
	"log"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"

	"NetFlowScope/internal/config"
	"NetFlowScope/internal/model"
)

const defaultSnapshotLen int32 = 1600

// Source captures packets from a live network interface and feeds parsed
// events to a consumer. It may drop packets under load and guarantees only
// arrival order.
type Source struct {
	handle *pcap.Handle
	iface  string
}

// NewSource opens the configured interface for live capture.
func NewSource(cfg config.CaptureConfig) (*Source, error) {
	snaplen := cfg.SnapshotLen
	if snaplen <= 0 {
		snaplen = defaultSnapshotLen
	}

	handle, err := pcap.OpenLive(cfg.Interface, snaplen, cfg.Promiscuous, pcap.BlockForever)
	if err != nil {
		return nil, fmt.Errorf("failed to open device %s: %w", cfg.Interface, err)
	}
	if cfg.BPFFilter != "" {
		if err := handle.SetBPFFilter(cfg.BPFFilter); err != nil {
			handle.Close()
			return nil, fmt.Errorf("failed to set BPF filter %q: %w", cfg.BPFFilter, err)
		}
	}

	log.Printf("Capture started on interface %s", cfg.Interface)
	return &Source{handle: handle, iface: cfg.Interface}, nil
}

// Run reads packets until the handle is closed, parsing each and handing
// the event to emit. Parse failures (non-IPv4 traffic) are skipped; emit
// returning false counts as a drop by the consumer.
func (s *Source) Run(emit func(ev *model.PacketEvent) bool) {
	packetSource := gopacket.NewPacketSource(s.handle, s.handle.LinkType())
	var processed, skipped, dropped uint64
	for packet := range packetSource.Packets() {
		ev, err := ParsePacket(packet)
		if err != nil {
			skipped++
			continue
		}
		if !emit(ev) {
			dropped++
		}
		processed++
		if processed%100000 == 0 {
			log.Printf("%d packets captured on %s (%d skipped, %d dropped)", processed, s.iface, skipped, dropped)
		}
	}
}

// Close stops the capture; Run returns once the handle drains.
func (s *Source) Close() {
	s.handle.Close()
}
