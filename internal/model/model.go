package model

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// IANA protocol numbers for the protocols the engine keys flows on.
const (
	ProtoICMP uint8 = 1
	ProtoTCP  uint8 = 6
	ProtoUDP  uint8 = 17
)

// ProtocolName returns a display name for an IP protocol number.
func ProtocolName(p uint8) string {
	switch p {
	case ProtoTCP:
		return "TCP"
	case ProtoUDP:
		return "UDP"
	case ProtoICMP:
		return "ICMP"
	default:
		return strconv.Itoa(int(p))
	}
}

// TCPFlags holds the control bits of a TCP segment. Zero value for
// non-TCP packets.
type TCPFlags struct {
	SYN bool
	ACK bool
	FIN bool
	RST bool
	PSH bool
	URG bool
}

// PacketEvent holds the metadata extracted from a single captured packet.
// Events are immutable once handed to the engine and are not retained
// after processing.
type PacketEvent struct {
	Timestamp time.Time
	SrcIP     net.IP
	DstIP     net.IP
	SrcPort   uint16
	DstPort   uint16
	Protocol  uint8
	Length    int
	Flags     TCPFlags
}

// FlowKey is the direction-independent identifier of a bidirectional flow.
// Endpoint A always orders before endpoint B under (address, port), so
// packets of both directions resolve to the same key.
type FlowKey struct {
	AAddr    string
	APort    uint16
	BAddr    string
	BPort    uint16
	Protocol uint8
}

// String renders the key in its canonical map-key form.
func (k FlowKey) String() string {
	return fmt.Sprintf("%s:%d-%s:%d-%d", k.AAddr, k.APort, k.BAddr, k.BPort, k.Protocol)
}

// SessionState tracks the lifecycle of a session. TCP sessions walk
// New -> Established -> Closing -> Closed; UDP/ICMP sessions only know
// Active and Closed (idle timeout).
type SessionState uint8

const (
	StateNew SessionState = iota
	StateEstablished
	StateClosing
	StateActive
	StateClosed
)

// String returns the display name of the state.
func (s SessionState) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateEstablished:
		return "ESTABLISHED"
	case StateClosing:
		return "CLOSING"
	case StateActive:
		return "ACTIVE"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Session represents one tracked bidirectional flow. SrcAddr/SrcPort is the
// initiating endpoint (first packet seen); counters are split by direction.
type Session struct {
	ID        uint64
	Key       FlowKey
	SrcAddr   string
	DstAddr   string
	SrcPort   uint16
	DstPort   uint16
	Protocol  uint8
	State     SessionState
	FirstSeen time.Time
	LastSeen  time.Time

	PacketsSent uint64
	PacketsRecv uint64
	BytesSent   uint64
	BytesRecv   uint64

	// State machine bookkeeping.
	SeenReply  bool
	FINFromSrc bool
	FINFromDst bool
}

// TotalBytes returns the byte count over both directions.
func (s *Session) TotalBytes() uint64 {
	return s.BytesSent + s.BytesRecv
}

// TotalPackets returns the packet count over both directions.
func (s *Session) TotalPackets() uint64 {
	return s.PacketsSent + s.PacketsRecv
}

// Duration returns how long the session has been observed.
func (s *Session) Duration() time.Duration {
	return s.LastSeen.Sub(s.FirstSeen)
}

// IPStatistic aggregates traffic per address. SessionCount is the number of
// distinct flow keys ever seen involving the address, not concurrently live
// sessions.
type IPStatistic struct {
	Addr            string
	BytesSent       uint64
	BytesReceived   uint64
	PacketsSent     uint64
	PacketsReceived uint64
	SessionCount    uint64
	FirstSeen       time.Time
	LastSeen        time.Time
}

// TotalBytes returns the byte count over both directions.
func (s *IPStatistic) TotalBytes() uint64 {
	return s.BytesSent + s.BytesReceived
}

// TotalPackets returns the packet count over both directions.
func (s *IPStatistic) TotalPackets() uint64 {
	return s.PacketsSent + s.PacketsReceived
}

// HistoryBucket is one fixed time-window aggregate of observed traffic.
type HistoryBucket struct {
	Timestamp time.Time
	Bytes     uint64
	Packets   uint64
}

// TrafficSample is a history bucket enriched with the engine state at flush
// time, as handed to persistence sinks.
type TrafficSample struct {
	Timestamp    time.Time
	Bytes        uint64
	Packets      uint64
	LiveSessions int
	ActiveIPs    int
}

// Summary holds the engine-wide totals, computed on demand from current
// state rather than incrementally cached.
type Summary struct {
	Running          bool
	StartTime        time.Time
	LiveSessions     int
	TotalIPs         int
	TotalBytes       uint64
	TotalPackets     uint64
	MalformedPackets uint64
	RejectedSessions uint64
	DroppedFinalized uint64
}
