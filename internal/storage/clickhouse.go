package storage

import (
	"context"
	"fmt"
	"log"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"NetFlowScope/internal/config"
	"NetFlowScope/internal/model"
)

const createSessionTableStatement = `
CREATE TABLE IF NOT EXISTS session_log (
    SessionID   UInt64,
    FlowKey     String,
    SrcAddr     String,
    DstAddr     String,
    SrcPort     UInt16,
    DstPort     UInt16,
    Protocol    String,
    State       String,
    FirstSeen   DateTime,
    LastSeen    DateTime,
    PacketsSent UInt64,
    PacketsRecv UInt64,
    BytesSent   UInt64,
    BytesRecv   UInt64
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(FirstSeen)
ORDER BY (FirstSeen, SessionID);
`

const createIPStatTableStatement = `
CREATE TABLE IF NOT EXISTS ip_statistics (
    Addr            String,
    BytesSent       UInt64,
    BytesReceived   UInt64,
    PacketsSent     UInt64,
    PacketsReceived UInt64,
    SessionCount    UInt64,
    FirstSeen       DateTime,
    LastSeen        DateTime
) ENGINE = ReplacingMergeTree(LastSeen)
ORDER BY Addr;
`

const createTrafficTableStatement = `
CREATE TABLE IF NOT EXISTS traffic_samples (
    Timestamp    DateTime,
    Bytes        UInt64,
    Packets      UInt64,
    LiveSessions UInt32,
    ActiveIPs    UInt32
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY Timestamp;
`

// ClickHouseSink persists engine output to ClickHouse for long-horizon
// analytical queries.
type ClickHouseSink struct {
	conn driver.Conn
}

// NewClickHouseSink connects to ClickHouse and ensures the tables exist.
func NewClickHouseSink(cfg config.ClickHouseConfig) (*ClickHouseSink, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	ctx := context.Background()
	for _, ddl := range []string{createSessionTableStatement, createIPStatTableStatement, createTrafficTableStatement} {
		if err := conn.Exec(ctx, ddl); err != nil {
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}
	log.Println("Successfully connected to ClickHouse and ensured tables exist.")

	return &ClickHouseSink{conn: conn}, nil
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

// Name identifies the sink in logs.
func (s *ClickHouseSink) Name() string { return "clickhouse" }

// WriteSessions batch-inserts finalized sessions into session_log.
func (s *ClickHouseSink) WriteSessions(sessions []*model.Session) error {
	if len(sessions) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(context.Background(), "INSERT INTO session_log")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, sess := range sessions {
		r := newSessionRecord(sess)
		if err := batch.Append(
			r.SessionID, r.FlowKey, r.SrcAddr, r.DstAddr,
			r.SrcPort, r.DstPort, r.Protocol, r.State,
			r.FirstSeen, r.LastSeen,
			r.PacketsSent, r.PacketsRecv, r.BytesSent, r.BytesRecv,
		); err != nil {
			return fmt.Errorf("failed to append session to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	log.Printf("Wrote %d finalized sessions to ClickHouse", len(sessions))
	return nil
}

// WriteIPStats batch-inserts the per-IP snapshot; ReplacingMergeTree keeps
// the newest row per address.
func (s *ClickHouseSink) WriteIPStats(stats []model.IPStatistic) error {
	if len(stats) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(context.Background(), "INSERT INTO ip_statistics")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, st := range stats {
		if err := batch.Append(
			st.Addr, st.BytesSent, st.BytesReceived,
			st.PacketsSent, st.PacketsReceived, st.SessionCount,
			st.FirstSeen, st.LastSeen,
		); err != nil {
			return fmt.Errorf("failed to append ip statistic to batch: %w", err)
		}
	}
	return batch.Send()
}

// WriteSample inserts one traffic history sample.
func (s *ClickHouseSink) WriteSample(sample model.TrafficSample) error {
	return s.conn.Exec(context.Background(),
		"INSERT INTO traffic_samples (Timestamp, Bytes, Packets, LiveSessions, ActiveIPs) VALUES (?, ?, ?, ?, ?)",
		sample.Timestamp, sample.Bytes, sample.Packets, uint32(sample.LiveSessions), uint32(sample.ActiveIPs),
	)
}

// Close closes the ClickHouse connection.
func (s *ClickHouseSink) Close() error {
	return s.conn.Close()
}
