package storage

import (
	"fmt"
	"log"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"NetFlowScope/internal/config"
	"NetFlowScope/internal/model"
)

// Columns a historical query may sort by. Anything else falls back to the
// default, which also keeps column names out of caller-controlled SQL.
var sessionOrderColumns = map[string]string{
	"first_seen":    "first_seen",
	"last_seen":     "last_seen",
	"bytes_sent":    "bytes_sent",
	"bytes_recv":    "bytes_recv",
	"packets_sent":  "packets_sent",
	"packets_recv":  "packets_recv",
	"total_bytes":   "bytes_sent + bytes_recv",
	"total_packets": "packets_sent + packets_recv",
	"duration":      "julianday(last_seen) - julianday(first_seen)",
}

var ipStatOrderColumns = map[string]string{
	"addr":          "addr",
	"bytes_sent":    "bytes_sent",
	"session_count": "session_count",
	"last_seen":     "last_seen",
	"total_bytes":   "bytes_sent + bytes_received",
	"total_packets": "packets_sent + packets_received",
}

// SQLiteSink persists engine output to a local SQLite database and serves
// the paginated historical queries of the API.
type SQLiteSink struct {
	db *gorm.DB
}

// NewSQLiteSink opens (or creates) the database and migrates the schema.
func NewSQLiteSink(cfg config.SQLiteConfig) (*SQLiteSink, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// WAL keeps concurrent API reads from blocking the flush path.
	if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
		log.Printf("Warning: failed to enable WAL mode: %v", err)
	}

	if err := db.AutoMigrate(&SessionRecord{}, &IPStatRecord{}, &TrafficSampleRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate sqlite schema: %w", err)
	}

	log.Printf("SQLite sink ready at %s", cfg.Path)
	return &SQLiteSink{db: db}, nil
}

// Name identifies the sink in logs.
func (s *SQLiteSink) Name() string { return "sqlite" }

// WriteSessions upserts a batch of finalized sessions.
func (s *SQLiteSink) WriteSessions(sessions []*model.Session) error {
	if len(sessions) == 0 {
		return nil
	}
	records := make([]SessionRecord, len(sessions))
	for i, sess := range sessions {
		records[i] = newSessionRecord(sess)
	}
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&records).Error
}

// WriteIPStats upserts the current per-IP statistics snapshot.
func (s *SQLiteSink) WriteIPStats(stats []model.IPStatistic) error {
	if len(stats) == 0 {
		return nil
	}
	records := make([]IPStatRecord, len(stats))
	for i, st := range stats {
		records[i] = newIPStatRecord(st)
	}
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&records).Error
}

// WriteSample appends one traffic history sample.
func (s *SQLiteSink) WriteSample(sample model.TrafficSample) error {
	record := TrafficSampleRecord{
		Timestamp:    sample.Timestamp,
		Bytes:        sample.Bytes,
		Packets:      sample.Packets,
		LiveSessions: sample.LiveSessions,
		ActiveIPs:    sample.ActiveIPs,
	}
	return s.db.Create(&record).Error
}

// QuerySessions returns a page of historical sessions.
func (s *SQLiteSink) QuerySessions(limit, offset int, orderBy string, descending bool) ([]SessionRecord, error) {
	var records []SessionRecord
	err := s.db.
		Order(orderClause(sessionOrderColumns, orderBy, "last_seen", descending)).
		Limit(clampLimit(limit)).
		Offset(max(offset, 0)).
		Find(&records).Error
	return records, err
}

// QueryIPStats returns a page of persisted per-IP statistics.
func (s *SQLiteSink) QueryIPStats(limit, offset int, orderBy string, descending bool) ([]IPStatRecord, error) {
	var records []IPStatRecord
	err := s.db.
		Order(orderClause(ipStatOrderColumns, orderBy, "total_bytes", descending)).
		Limit(clampLimit(limit)).
		Offset(max(offset, 0)).
		Find(&records).Error
	return records, err
}

// QueryTraffic returns the traffic samples of the trailing window.
func (s *SQLiteSink) QueryTraffic(hours int) ([]TrafficSampleRecord, error) {
	if hours <= 0 {
		hours = 24
	}
	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)
	var records []TrafficSampleRecord
	err := s.db.
		Where("timestamp >= ?", cutoff).
		Order("timestamp ASC").
		Find(&records).Error
	return records, err
}

// CleanupOldData deletes sessions and samples older than the retention
// window. Applied by the storage layer, not the engine.
func (s *SQLiteSink) CleanupOldData(days int) error {
	if days <= 0 {
		days = 30
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	if err := s.db.Where("first_seen < ?", cutoff).Delete(&SessionRecord{}).Error; err != nil {
		return err
	}
	return s.db.Where("timestamp < ?", cutoff).Delete(&TrafficSampleRecord{}).Error
}

// Close closes the underlying database handle.
func (s *SQLiteSink) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

// orderClause builds a safe ORDER BY expression from a whitelist.
func orderClause(columns map[string]string, orderBy, fallback string, descending bool) string {
	col, ok := columns[orderBy]
	if !ok {
		col = columns[fallback]
	}
	direction := "ASC"
	if descending {
		direction = "DESC"
	}
	return fmt.Sprintf("%s %s", col, direction)
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return 100
	}
	return limit
}
