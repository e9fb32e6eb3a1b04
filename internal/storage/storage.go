// Package storage persists engine output. Sinks are constructed from
// configuration; a sink that fails to initialize is skipped with a warning
// so the monitor keeps running with whatever storage is reachable.
package storage

import (
	"log"

	"NetFlowScope/internal/config"
	"NetFlowScope/internal/model"
)

// NewSinks builds every enabled sink. The returned SQLiteSink is non-nil
// only when SQLite is enabled and usable; the API uses it for historical
// queries.
func NewSinks(cfg config.StorageConfig) ([]model.Sink, *SQLiteSink) {
	var sinks []model.Sink
	var store *SQLiteSink

	if cfg.SQLite.Enabled {
		s, err := NewSQLiteSink(cfg.SQLite)
		if err != nil {
			log.Printf("Warning: could not initialize sqlite sink: %v. Skipping.", err)
		} else {
			sinks = append(sinks, s)
			store = s
		}
	}

	if cfg.ClickHouse.Enabled {
		s, err := NewClickHouseSink(cfg.ClickHouse)
		if err != nil {
			log.Printf("Warning: could not initialize clickhouse sink: %v. Skipping.", err)
		} else {
			sinks = append(sinks, s)
		}
	}

	return sinks, store
}
