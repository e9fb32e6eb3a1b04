package engine

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"NetFlowScope/internal/config"
	"NetFlowScope/internal/model"
)

const (
	defaultIdleTimeout   = 5 * time.Minute
	defaultSweepInterval = time.Minute
	defaultChannelSize   = 10000
	defaultFinalizedCap  = 10000
)

// Engine owns the session table, the statistics aggregator and the
// finalized-session hand-off queue. One ingestion goroutine consumes the
// input channel serially (single writer, packet order per key preserved),
// one sweeper evicts idle sessions periodically, and any number of readers
// take snapshots concurrently.
type Engine struct {
	table *SessionTable
	agg   *Aggregator

	idleTimeout   time.Duration
	sweepInterval time.Duration

	input chan *model.PacketEvent

	finalMu      sync.Mutex
	finalized    []*model.Session
	finalizedCap int

	malformed atomic.Uint64
	dropped   atomic.Uint64

	running   atomic.Bool
	done      chan struct{}
	wg        sync.WaitGroup
	startTime time.Time
}

// New creates an engine from configuration. Duration fields that are empty
// fall back to defaults; malformed ones are an error.
func New(cfg config.EngineConfig) (*Engine, error) {
	idle, err := parseDuration(cfg.IdleTimeout, defaultIdleTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid idle_timeout: %w", err)
	}
	sweep, err := parseDuration(cfg.SweepInterval, defaultSweepInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid sweep_interval: %w", err)
	}
	window, err := parseDuration(cfg.HistoryWindow, time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid history_window: %w", err)
	}

	channelSize := cfg.SizeOfPacketChannel
	if channelSize <= 0 {
		channelSize = defaultChannelSize
	}
	finalizedCap := cfg.FinalizedQueueSize
	if finalizedCap <= 0 {
		finalizedCap = defaultFinalizedCap
	}

	return &Engine{
		table:         NewSessionTable(cfg.NumShards, cfg.MaxSessions),
		agg:           NewAggregator(cfg.NumShards, cfg.HistorySize, window),
		idleTimeout:   idle,
		sweepInterval: sweep,
		input:         make(chan *model.PacketEvent, channelSize),
		finalizedCap:  finalizedCap,
	}, nil
}

func parseDuration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %s", d)
	}
	return d, nil
}

// Start launches the ingestion worker and the eviction sweeper. Calling
// Start on a running engine is a no-op.
func (e *Engine) Start() {
	if !e.running.CompareAndSwap(false, true) {
		return
	}
	e.startTime = time.Now()
	e.done = make(chan struct{})

	e.wg.Add(2)
	go e.ingestLoop()
	go e.sweeper()
	log.Printf("Engine started (idle timeout %s, sweep interval %s)", e.idleTimeout, e.sweepInterval)
}

// Stop shuts down the ingestion worker and the sweeper, finalizing all
// remaining live sessions. Calling Stop on a stopped engine is a no-op.
func (e *Engine) Stop() {
	if !e.running.CompareAndSwap(true, false) {
		return
	}
	close(e.done)
	e.wg.Wait()

	// Flush everything still live so the final drain sees it.
	e.Flush()
	log.Println("Engine stopped.")
}

// Flush finalizes every live session immediately, regardless of idle time.
// Offline replay uses this in place of the sweeper.
func (e *Engine) Flush() {
	for _, s := range e.table.EvictIdle(time.Now(), -1) {
		e.finalize(s)
	}
}

// Running reports whether the engine is processing packets.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Enqueue hands a packet event to the ingestion path without blocking. The
// event is dropped when the engine is stopped or the channel is full; the
// packet source contract tolerates gaps.
func (e *Engine) Enqueue(ev *model.PacketEvent) bool {
	if !e.running.Load() {
		return false
	}
	select {
	case e.input <- ev:
		return true
	default:
		return false
	}
}

func (e *Engine) ingestLoop() {
	defer e.wg.Done()
	for {
		select {
		case <-e.done:
			// Enqueue refuses new events once the engine is stopping,
			// so what remains in the channel is finite; process it all
			// rather than dropping packets that were already accepted.
			for {
				select {
				case ev := <-e.input:
					e.Ingest(ev)
				default:
					return
				}
			}
		case ev := <-e.input:
			e.Ingest(ev)
		}
	}
}

// Ingest processes one packet event synchronously. It is the single-writer
// mutation path: callers other than the engine's own loop (such as offline
// replay) must not invoke it concurrently with Start.
func (e *Engine) Ingest(ev *model.PacketEvent) {
	if ev == nil || ev.SrcIP == nil || ev.DstIP == nil || ev.Length < 0 {
		e.malformed.Add(1)
		log.Printf("dropping malformed packet event: %+v", ev)
		return
	}

	key := ResolveKey(ev)
	delta := e.table.Ingest(ev, key)

	// IP statistics are updated for every packet, including ones whose
	// session was rejected at capacity.
	e.agg.ApplyDelta(delta.From, delta.To, delta.Bytes, delta.Packets, delta.Timestamp)
	if delta.NewSession {
		e.agg.NoteSession(delta.From, delta.To, delta.Timestamp)
	}
	if delta.Closed != nil {
		e.finalize(delta.Closed)
	}
}

func (e *Engine) sweeper() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			evicted := e.table.EvictIdle(time.Now(), e.idleTimeout)
			for _, s := range evicted {
				e.finalize(s)
			}
			if len(evicted) > 0 {
				log.Printf("evicted %d idle sessions", len(evicted))
			}
		case <-e.done:
			return
		}
	}
}

// finalize queues a closed session for the storage drain. The queue is
// bounded: when full, the oldest entry is dropped first so eviction always
// completes and memory stays bounded even with no drain consumer.
func (e *Engine) finalize(s *model.Session) {
	e.finalMu.Lock()
	if len(e.finalized) >= e.finalizedCap {
		e.finalized = e.finalized[1:]
		e.dropped.Add(1)
	}
	e.finalized = append(e.finalized, s)
	e.finalMu.Unlock()
}

// DrainFinalized returns the sessions finalized since the last call and
// clears the queue. Persistence is pull-based so storage latency cannot
// block the engine.
func (e *Engine) DrainFinalized() []*model.Session {
	e.finalMu.Lock()
	out := e.finalized
	e.finalized = nil
	e.finalMu.Unlock()
	return out
}

// Sessions returns a point-in-time copy of all live sessions, most
// recently active first.
func (e *Engine) Sessions() []model.Session {
	return e.table.Snapshot()
}

// IPStats returns a point-in-time copy of all per-IP statistics.
func (e *Engine) IPStats() []model.IPStatistic {
	return e.agg.IPStats()
}

// TopIPs returns the top talkers by the requested metric.
func (e *Engine) TopIPs(limit int, orderBy string) []model.IPStatistic {
	return e.agg.TopIPs(limit, orderBy)
}

// History returns a copy of the traffic history buckets, oldest first.
func (e *Engine) History() []model.HistoryBucket {
	return e.agg.History()
}

// Sample returns the newest history bucket together with current live
// counts, as written to persistence sinks.
func (e *Engine) Sample() (model.TrafficSample, bool) {
	bucket, ok := e.agg.LatestBucket()
	if !ok {
		return model.TrafficSample{}, false
	}
	_, _, ips := e.agg.Totals()
	return model.TrafficSample{
		Timestamp:    bucket.Timestamp,
		Bytes:        bucket.Bytes,
		Packets:      bucket.Packets,
		LiveSessions: e.table.Live(),
		ActiveIPs:    ips,
	}, true
}

// Summary computes the engine-wide totals on demand.
func (e *Engine) Summary() model.Summary {
	bytes, packets, ips := e.agg.Totals()
	return model.Summary{
		Running:          e.running.Load(),
		StartTime:        e.startTime,
		LiveSessions:     e.table.Live(),
		TotalIPs:         ips,
		TotalBytes:       bytes,
		TotalPackets:     packets,
		MalformedPackets: e.malformed.Load(),
		RejectedSessions: e.table.Rejected(),
		DroppedFinalized: e.dropped.Load(),
	}
}
