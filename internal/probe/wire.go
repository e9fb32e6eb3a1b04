package probe

import (
	"net"
	"time"

	"NetFlowScope/internal/model"
)

// TCP flag bits as laid out in the TCP header, used to pack flags into a
// single byte on the wire.
const (
	flagFIN = 1 << iota
	flagSYN
	flagRST
	flagPSH
	flagACK
	flagURG
)

// wireEvent is the JSON payload published per packet. Addresses travel as
// strings so the payload stays self-describing across probe versions.
type wireEvent struct {
	Timestamp time.Time `json:"ts"`
	SrcIP     string    `json:"src_ip"`
	DstIP     string    `json:"dst_ip"`
	SrcPort   uint16    `json:"src_port"`
	DstPort   uint16    `json:"dst_port"`
	Protocol  uint8     `json:"protocol"`
	Length    int       `json:"length"`
	Flags     uint8     `json:"flags"`
}

func packFlags(f model.TCPFlags) uint8 {
	var b uint8
	if f.FIN {
		b |= flagFIN
	}
	if f.SYN {
		b |= flagSYN
	}
	if f.RST {
		b |= flagRST
	}
	if f.PSH {
		b |= flagPSH
	}
	if f.ACK {
		b |= flagACK
	}
	if f.URG {
		b |= flagURG
	}
	return b
}

func unpackFlags(b uint8) model.TCPFlags {
	return model.TCPFlags{
		FIN: b&flagFIN != 0,
		SYN: b&flagSYN != 0,
		RST: b&flagRST != 0,
		PSH: b&flagPSH != 0,
		ACK: b&flagACK != 0,
		URG: b&flagURG != 0,
	}
}

func toWire(ev *model.PacketEvent) wireEvent {
	return wireEvent{
		Timestamp: ev.Timestamp,
		SrcIP:     ev.SrcIP.String(),
		DstIP:     ev.DstIP.String(),
		SrcPort:   ev.SrcPort,
		DstPort:   ev.DstPort,
		Protocol:  ev.Protocol,
		Length:    ev.Length,
		Flags:     packFlags(ev.Flags),
	}
}

func fromWire(w wireEvent) *model.PacketEvent {
	return &model.PacketEvent{
		Timestamp: w.Timestamp,
		SrcIP:     net.ParseIP(w.SrcIP),
		DstIP:     net.ParseIP(w.DstIP),
		SrcPort:   w.SrcPort,
		DstPort:   w.DstPort,
		Protocol:  w.Protocol,
		Length:    w.Length,
		Flags:     unpackFlags(w.Flags),
	}
}
