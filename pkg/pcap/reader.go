// Package pcap reads capture files for offline replay.
package pcap

import (
	"log"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"

	"NetFlowScope/internal/capture"
	"NetFlowScope/internal/model"
)

// Reader reads packets from a pcap file.
type Reader struct {
	handle *pcap.Handle
}

// NewReader creates a new pcap reader for the given file path.
func NewReader(filePath string) (*Reader, error) {
	handle, err := pcap.OpenOffline(filePath)
	if err != nil {
		return nil, err
	}
	return &Reader{handle: handle}, nil
}

// Close closes the pcap handle.
func (r *Reader) Close() {
	r.handle.Close()
}

// ReadPackets parses every packet in the file and calls emit with each
// event, preserving capture timestamps. Packets the parser cannot handle
// are counted and skipped.
func (r *Reader) ReadPackets(emit func(ev *model.PacketEvent)) (parsed, skipped int) {
	packetSource := gopacket.NewPacketSource(r.handle, r.handle.LinkType())
	for packet := range packetSource.Packets() {
		ev, err := capture.ParsePacket(packet)
		if err != nil {
			skipped++
			continue
		}
		emit(ev)
		parsed++
	}
	if skipped > 0 {
		log.Printf("Skipped %d unparsable packets", skipped)
	}
	return parsed, skipped
}
