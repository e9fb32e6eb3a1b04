package storage

import (
	"net"
	"testing"
	"time"

	"NetFlowScope/internal/config"
	"NetFlowScope/internal/engine"
	"NetFlowScope/internal/model"
)

func TestPersister_FlushReachesSink(t *testing.T) {
	sink := newTestSink(t)
	eng, err := engine.New(config.EngineConfig{NumShards: 16})
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	eng.Ingest(&model.PacketEvent{
		Timestamp: time.Now(),
		SrcIP:     net.ParseIP("10.0.0.1"),
		DstIP:     net.ParseIP("10.0.0.2"),
		SrcPort:   5000,
		DstPort:   53,
		Protocol:  model.ProtoUDP,
		Length:    100,
	})
	eng.Flush()

	p := NewPersister(eng, []model.Sink{sink}, sink, config.StorageConfig{})
	p.flush()

	records, err := sink.QuerySessions(10, 0, "", true)
	if err != nil {
		t.Fatalf("Failed to query sessions: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected the finalized session persisted, got %d records", len(records))
	}
	stats, err := sink.QueryIPStats(10, 0, "", true)
	if err != nil {
		t.Fatalf("Failed to query ip stats: %v", err)
	}
	if len(stats) != 2 {
		t.Errorf("Expected 2 ip statistics persisted, got %d", len(stats))
	}
}

func TestPersister_RetentionCleanup(t *testing.T) {
	sink := newTestSink(t)
	eng, err := engine.New(config.EngineConfig{NumShards: 16})
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	old := testSession(1, 100)
	old.FirstSeen = time.Now().AddDate(0, 0, -90)
	fresh := testSession(2, 100)
	if err := sink.WriteSessions([]*model.Session{old, fresh}); err != nil {
		t.Fatalf("Failed to write sessions: %v", err)
	}

	p := NewPersister(eng, []model.Sink{sink}, sink, config.StorageConfig{RetentionDays: 30})
	p.cleanup()

	records, err := sink.QuerySessions(10, 0, "", true)
	if err != nil {
		t.Fatalf("Failed to query sessions: %v", err)
	}
	if len(records) != 1 || records[0].SessionID != 2 {
		t.Errorf("Expected retention to keep only the fresh session, got %d records", len(records))
	}
}

func TestPersister_RetentionDisabled(t *testing.T) {
	sink := newTestSink(t)
	eng, err := engine.New(config.EngineConfig{NumShards: 16})
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	old := testSession(1, 100)
	old.FirstSeen = time.Now().AddDate(0, 0, -90)
	if err := sink.WriteSessions([]*model.Session{old}); err != nil {
		t.Fatalf("Failed to write session: %v", err)
	}

	p := NewPersister(eng, []model.Sink{sink}, sink, config.StorageConfig{})
	p.cleanup()

	records, _ := sink.QuerySessions(10, 0, "", true)
	if len(records) != 1 {
		t.Errorf("Expected no cleanup with retention disabled, got %d records", len(records))
	}
}
