package engine

import (
	"testing"
	"time"

	"NetFlowScope/internal/model"
)

func ingest(t *testing.T, table *SessionTable, ev *model.PacketEvent) Delta {
	t.Helper()
	return table.Ingest(ev, ResolveKey(ev))
}

func TestSessionTable_TCPHandshake(t *testing.T) {
	table := NewSessionTable(16, 0)

	syn := packetEvent("10.0.0.1", 51000, "10.0.0.2", 80, model.ProtoTCP)
	syn.Length = 60
	syn.Flags = model.TCPFlags{SYN: true}

	synAck := packetEvent("10.0.0.2", 80, "10.0.0.1", 51000, model.ProtoTCP)
	synAck.Length = 60
	synAck.Flags = model.TCPFlags{SYN: true, ACK: true}

	ack := packetEvent("10.0.0.1", 51000, "10.0.0.2", 80, model.ProtoTCP)
	ack.Length = 52
	ack.Flags = model.TCPFlags{ACK: true}

	d1 := ingest(t, table, syn)
	if !d1.NewSession {
		t.Fatal("Expected the SYN to create a session")
	}
	ingest(t, table, synAck)
	ingest(t, table, ack)

	sessions := table.Snapshot()
	if len(sessions) != 1 {
		t.Fatalf("Expected 1 session after handshake, got %d", len(sessions))
	}
	s := sessions[0]
	if s.State != model.StateEstablished {
		t.Errorf("Expected state ESTABLISHED, got %s", s.State)
	}
	if s.SrcAddr != "10.0.0.1" || s.SrcPort != 51000 {
		t.Errorf("Expected the SYN sender to be recorded as initiator, got %s:%d", s.SrcAddr, s.SrcPort)
	}
	if s.BytesSent != 112 || s.PacketsSent != 2 {
		t.Errorf("Expected initiator counters 112B/2pkts, got %dB/%dpkts", s.BytesSent, s.PacketsSent)
	}
	if s.BytesRecv != 60 || s.PacketsRecv != 1 {
		t.Errorf("Expected responder counters 60B/1pkt, got %dB/%dpkts", s.BytesRecv, s.PacketsRecv)
	}
}

func TestSessionTable_FINTeardown(t *testing.T) {
	table := NewSessionTable(16, 0)

	finSrc := packetEvent("10.0.0.1", 51000, "10.0.0.2", 80, model.ProtoTCP)
	finSrc.Flags = model.TCPFlags{FIN: true, ACK: true}
	finDst := packetEvent("10.0.0.2", 80, "10.0.0.1", 51000, model.ProtoTCP)
	finDst.Flags = model.TCPFlags{FIN: true, ACK: true}

	d1 := ingest(t, table, finSrc)
	if d1.Closed != nil {
		t.Fatal("Expected the session to stay open after a single FIN")
	}
	if got := table.Snapshot()[0].State; got != model.StateClosing {
		t.Fatalf("Expected state CLOSING after one FIN, got %s", got)
	}

	d2 := ingest(t, table, finDst)
	if d2.Closed == nil {
		t.Fatal("Expected the second FIN to close the session")
	}
	if d2.Closed.State != model.StateClosed {
		t.Errorf("Expected finalized state CLOSED, got %s", d2.Closed.State)
	}
	if table.Live() != 0 {
		t.Errorf("Expected the closed session to be removed, %d still live", table.Live())
	}
}

func TestSessionTable_RSTClosesImmediately(t *testing.T) {
	table := NewSessionTable(16, 0)

	syn := packetEvent("10.0.0.1", 51000, "10.0.0.2", 80, model.ProtoTCP)
	syn.Flags = model.TCPFlags{SYN: true}
	ingest(t, table, syn)

	rst := packetEvent("10.0.0.2", 80, "10.0.0.1", 51000, model.ProtoTCP)
	rst.Flags = model.TCPFlags{RST: true}
	d := ingest(t, table, rst)

	if d.Closed == nil {
		t.Fatal("Expected the RST to close the session")
	}
	if table.Live() != 0 {
		t.Errorf("Expected 0 live sessions after RST, got %d", table.Live())
	}
}

func TestSessionTable_LateSegmentStartsNewSession(t *testing.T) {
	table := NewSessionTable(16, 0)

	rst := packetEvent("10.0.0.1", 51000, "10.0.0.2", 80, model.ProtoTCP)
	rst.Flags = model.TCPFlags{RST: true}
	d1 := ingest(t, table, rst)
	if d1.Closed == nil {
		t.Fatal("Expected a lone RST to open and close a session in one packet")
	}

	// A stray segment on the same key after removal must not resurrect the
	// old session.
	ack := packetEvent("10.0.0.1", 51000, "10.0.0.2", 80, model.ProtoTCP)
	ack.Flags = model.TCPFlags{ACK: true}
	d2 := ingest(t, table, ack)
	if !d2.NewSession {
		t.Error("Expected a segment after close to start a fresh session")
	}
	if d2.SessionID == d1.SessionID {
		t.Error("Expected the fresh session to have a new ID")
	}
}

func TestSessionTable_CapacityRejection(t *testing.T) {
	table := NewSessionTable(16, 1)

	ingest(t, table, packetEvent("10.0.0.1", 1000, "10.0.0.2", 80, model.ProtoUDP))
	d := ingest(t, table, packetEvent("10.0.0.3", 1000, "10.0.0.4", 80, model.ProtoUDP))

	if !d.Rejected {
		t.Fatal("Expected the second session to be rejected at capacity")
	}
	if d.Bytes != 100 || d.Packets != 1 {
		t.Errorf("Expected the rejected delta to still carry traffic counts, got %dB/%dpkts", d.Bytes, d.Packets)
	}
	if table.Rejected() != 1 {
		t.Errorf("Expected rejected counter 1, got %d", table.Rejected())
	}
	if table.Live() != 1 {
		t.Errorf("Expected 1 live session, got %d", table.Live())
	}

	// A packet on the existing session is still accepted at capacity.
	d = ingest(t, table, packetEvent("10.0.0.2", 80, "10.0.0.1", 1000, model.ProtoUDP))
	if d.Rejected {
		t.Error("Expected updates to existing sessions to bypass the capacity check")
	}
}

func TestSessionTable_EvictIdle(t *testing.T) {
	table := NewSessionTable(16, 0)
	now := time.Now()

	old := packetEvent("10.0.0.1", 1000, "10.0.0.2", 53, model.ProtoUDP)
	old.Timestamp = now.Add(-10 * time.Minute)
	fresh := packetEvent("10.0.0.3", 1000, "10.0.0.4", 53, model.ProtoUDP)
	fresh.Timestamp = now

	ingest(t, table, old)
	ingest(t, table, fresh)

	evicted := table.EvictIdle(now, 5*time.Minute)
	if len(evicted) != 1 {
		t.Fatalf("Expected 1 evicted session, got %d", len(evicted))
	}
	if evicted[0].State != model.StateClosed {
		t.Errorf("Expected evicted session marked CLOSED, got %s", evicted[0].State)
	}
	if table.Live() != 1 {
		t.Errorf("Expected 1 session left after eviction, got %d", table.Live())
	}
}

func TestSessionTable_ClockAnomalyClamped(t *testing.T) {
	table := NewSessionTable(16, 0)
	now := time.Now()

	first := packetEvent("10.0.0.1", 1000, "10.0.0.2", 53, model.ProtoUDP)
	first.Timestamp = now
	ingest(t, table, first)

	// A packet stamped before first-seen must not move the window backward.
	stale := packetEvent("10.0.0.2", 53, "10.0.0.1", 1000, model.ProtoUDP)
	stale.Timestamp = now.Add(-time.Hour)
	ingest(t, table, stale)

	s := table.Snapshot()[0]
	if s.FirstSeen.Before(now) || s.LastSeen.Before(now) {
		t.Errorf("Expected timestamps clamped at %v, got first=%v last=%v", now, s.FirstSeen, s.LastSeen)
	}
	if s.TotalPackets() != 2 {
		t.Errorf("Expected the stale packet still counted, got %d packets", s.TotalPackets())
	}
}

func TestSessionTable_SnapshotOrdering(t *testing.T) {
	table := NewSessionTable(16, 0)
	now := time.Now()

	for i, ts := range []time.Time{now.Add(-2 * time.Second), now, now.Add(-time.Second)} {
		ev := packetEvent("10.0.1.1", uint16(2000+i), "10.0.1.2", 443, model.ProtoTCP)
		ev.Timestamp = ts
		ingest(t, table, ev)
	}

	snap := table.Snapshot()
	for i := 1; i < len(snap); i++ {
		if snap[i].LastSeen.After(snap[i-1].LastSeen) {
			t.Fatalf("Expected snapshot ordered by last-seen descending, got %v before %v",
				snap[i-1].LastSeen, snap[i].LastSeen)
		}
	}
}
