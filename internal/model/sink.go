package model

// Sink defines a generic interface for persisting engine output. Writes are
// best-effort: a failing sink is logged and skipped, it never blocks or
// stops the engine.
type Sink interface {
	// Name identifies the sink in logs.
	Name() string

	// WriteSessions persists a batch of finalized sessions.
	WriteSessions(sessions []*Session) error

	// WriteIPStats persists a point-in-time snapshot of per-IP statistics.
	WriteIPStats(stats []IPStatistic) error

	// WriteSample persists one traffic history sample.
	WriteSample(sample TrafficSample) error

	// Close releases the sink's resources.
	Close() error
}
