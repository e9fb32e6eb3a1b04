package storage

import (
	"log"
	"sync"
	"time"

	"NetFlowScope/internal/config"
	"NetFlowScope/internal/engine"
	"NetFlowScope/internal/model"
)

const (
	defaultFlushInterval = 10 * time.Second
	cleanupInterval      = 24 * time.Hour
)

// Persister periodically drains finalized sessions from the engine and
// fans them out to every configured sink, together with the current per-IP
// snapshot and the newest traffic sample. DrainFinalized is destructive,
// so there is exactly one drain loop regardless of the number of sinks.
// When a SQLite store and a retention window are configured it also applies
// the retention cleanup, once at startup and then daily.
type Persister struct {
	eng        *engine.Engine
	sinks      []model.Sink
	store      *SQLiteSink
	interval   time.Duration
	retainDays int

	done chan struct{}
	wg   sync.WaitGroup
}

// NewPersister wires the engine to its sinks. An unset or unparsable flush
// interval falls back to the default. store may be nil.
func NewPersister(eng *engine.Engine, sinks []model.Sink, store *SQLiteSink, cfg config.StorageConfig) *Persister {
	interval := defaultFlushInterval
	if cfg.FlushInterval != "" {
		if d, err := time.ParseDuration(cfg.FlushInterval); err == nil && d > 0 {
			interval = d
		} else {
			log.Printf("Warning: invalid flush interval %q, using %v", cfg.FlushInterval, defaultFlushInterval)
		}
	}
	return &Persister{
		eng:        eng,
		sinks:      sinks,
		store:      store,
		interval:   interval,
		retainDays: cfg.RetentionDays,
		done:       make(chan struct{}),
	}
}

// Start launches the flush loop. It is a no-op when no sinks are enabled.
func (p *Persister) Start() {
	if len(p.sinks) == 0 {
		log.Println("No storage sinks enabled, persister idle.")
		return
	}
	p.wg.Add(1)
	go p.loop()
	log.Printf("Persister started with %d sink(s), flushing every %v", len(p.sinks), p.interval)
}

func (p *Persister) loop() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	cleanupTicker := time.NewTicker(cleanupInterval)
	defer cleanupTicker.Stop()

	p.cleanup()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.flush()
		case <-cleanupTicker.C:
			p.cleanup()
		}
	}
}

func (p *Persister) flush() {
	finalized := p.eng.DrainFinalized()
	stats := p.eng.IPStats()
	sample, sampleOK := p.eng.Sample()

	for _, sink := range p.sinks {
		if err := sink.WriteSessions(finalized); err != nil {
			log.Printf("Error writing sessions to %s sink: %v", sink.Name(), err)
		}
		if err := sink.WriteIPStats(stats); err != nil {
			log.Printf("Error writing ip stats to %s sink: %v", sink.Name(), err)
		}
		if !sampleOK {
			continue
		}
		if err := sink.WriteSample(sample); err != nil {
			log.Printf("Error writing traffic sample to %s sink: %v", sink.Name(), err)
		}
	}
}

// cleanup applies the retention window to the SQLite store.
func (p *Persister) cleanup() {
	if p.store == nil || p.retainDays <= 0 {
		return
	}
	if err := p.store.CleanupOldData(p.retainDays); err != nil {
		log.Printf("Error applying retention cleanup: %v", err)
		return
	}
	log.Printf("Removed persisted data older than %d days", p.retainDays)
}

// Stop flushes once more so sessions finalized by the engine's shutdown
// sweep reach storage, then closes every sink.
func (p *Persister) Stop() {
	if len(p.sinks) == 0 {
		return
	}
	close(p.done)
	p.wg.Wait()
	p.flush()
	for _, sink := range p.sinks {
		if err := sink.Close(); err != nil {
			log.Printf("Error closing %s sink: %v", sink.Name(), err)
		}
	}
	log.Println("Persister stopped.")
}
