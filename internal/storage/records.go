package storage

import (
	"time"

	"NetFlowScope/internal/model"
)

// SessionRecord is the persisted form of a finalized session.
type SessionRecord struct {
	SessionID   uint64    `gorm:"primaryKey" json:"session_id"`
	FlowKey     string    `gorm:"index" json:"flow_key"`
	SrcAddr     string    `gorm:"index" json:"src_addr"`
	DstAddr     string    `gorm:"index" json:"dst_addr"`
	SrcPort     uint16    `json:"src_port"`
	DstPort     uint16    `json:"dst_port"`
	Protocol    string    `json:"protocol"`
	State       string    `json:"state"`
	FirstSeen   time.Time `gorm:"index" json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	PacketsSent uint64    `json:"packets_sent"`
	PacketsRecv uint64    `json:"packets_recv"`
	BytesSent   uint64    `json:"bytes_sent"`
	BytesRecv   uint64    `json:"bytes_recv"`
}

// IPStatRecord is the persisted form of a per-IP statistic snapshot.
type IPStatRecord struct {
	Addr            string    `gorm:"primaryKey" json:"addr"`
	BytesSent       uint64    `json:"bytes_sent"`
	BytesReceived   uint64    `json:"bytes_received"`
	PacketsSent     uint64    `json:"packets_sent"`
	PacketsReceived uint64    `json:"packets_received"`
	SessionCount    uint64    `json:"session_count"`
	FirstSeen       time.Time `json:"first_seen"`
	LastSeen        time.Time `json:"last_seen"`
}

// TrafficSampleRecord is one persisted traffic history sample.
type TrafficSampleRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Timestamp    time.Time `gorm:"index" json:"timestamp"`
	Bytes        uint64    `json:"bytes"`
	Packets      uint64    `json:"packets"`
	LiveSessions int       `json:"live_sessions"`
	ActiveIPs    int       `json:"active_ips"`
}

func newSessionRecord(s *model.Session) SessionRecord {
	return SessionRecord{
		SessionID:   s.ID,
		FlowKey:     s.Key.String(),
		SrcAddr:     s.SrcAddr,
		DstAddr:     s.DstAddr,
		SrcPort:     s.SrcPort,
		DstPort:     s.DstPort,
		Protocol:    model.ProtocolName(s.Protocol),
		State:       s.State.String(),
		FirstSeen:   s.FirstSeen,
		LastSeen:    s.LastSeen,
		PacketsSent: s.PacketsSent,
		PacketsRecv: s.PacketsRecv,
		BytesSent:   s.BytesSent,
		BytesRecv:   s.BytesRecv,
	}
}

func newIPStatRecord(st model.IPStatistic) IPStatRecord {
	return IPStatRecord{
		Addr:            st.Addr,
		BytesSent:       st.BytesSent,
		BytesReceived:   st.BytesReceived,
		PacketsSent:     st.PacketsSent,
		PacketsReceived: st.PacketsReceived,
		SessionCount:    st.SessionCount,
		FirstSeen:       st.FirstSeen,
		LastSeen:        st.LastSeen,
	}
}
