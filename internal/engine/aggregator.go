package engine

import (
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"NetFlowScope/internal/model"
)

// Aggregator derives per-IP counters and the bounded traffic history from
// the stream of session deltas. Per-IP state is sharded under the same
// discipline as the session table; the history ring has its own short lock.
type Aggregator struct {
	shards     []*ipShard
	shardCount uint32

	histMu   sync.Mutex
	buckets  []model.HistoryBucket
	capacity int
	window   time.Duration
}

type ipShard struct {
	mu    sync.RWMutex
	stats map[string]*model.IPStatistic
}

// NewAggregator creates an aggregator with a history ring of historySize
// buckets of window width each.
func NewAggregator(numShards uint32, historySize int, window time.Duration) *Aggregator {
	if numShards == 0 || numShards >= 32768 {
		numShards = defaultShardCount
	}
	if historySize <= 0 {
		historySize = 3600
	}
	if window <= 0 {
		window = time.Second
	}
	a := &Aggregator{
		shards:     make([]*ipShard, numShards),
		shardCount: numShards,
		buckets:    make([]model.HistoryBucket, 0, historySize),
		capacity:   historySize,
		window:     window,
	}
	for i := range a.shards {
		a.shards[i] = &ipShard{stats: make(map[string]*model.IPStatistic)}
	}
	return a
}

func (a *Aggregator) getShard(addr string) *ipShard {
	hasher := fnv.New32a()
	hasher.Write([]byte(addr))
	return a.shards[hasher.Sum32()%a.shardCount]
}

// ApplyDelta credits the sender's sent counters and the receiver's received
// counters, updates both last-seen stamps, and adds the traffic to the
// history bucket covering ts. Each delta is applied exactly once, driven by
// the single ingestion path, so no deduplication is needed.
func (a *Aggregator) ApplyDelta(from, to string, bytes, packets uint64, ts time.Time) {
	sender := a.getOrCreate(from, ts)
	sender.mu.Lock()
	st := sender.stats[from]
	st.BytesSent += bytes
	st.PacketsSent += packets
	if ts.After(st.LastSeen) {
		st.LastSeen = ts
	}
	sender.mu.Unlock()

	receiver := a.getOrCreate(to, ts)
	receiver.mu.Lock()
	st = receiver.stats[to]
	st.BytesReceived += bytes
	st.PacketsReceived += packets
	if ts.After(st.LastSeen) {
		st.LastSeen = ts
	}
	receiver.mu.Unlock()

	a.addToHistory(bytes, packets, ts)
}

// NoteSession records a new distinct flow key involving both addresses.
// Called once per session creation by the ingestion path.
func (a *Aggregator) NoteSession(from, to string, ts time.Time) {
	for _, addr := range []string{from, to} {
		shard := a.getOrCreate(addr, ts)
		shard.mu.Lock()
		shard.stats[addr].SessionCount++
		shard.mu.Unlock()
	}
}

// getOrCreate ensures a statistic entry exists for addr and returns its
// shard. Entries are created lazily on first packet and never deleted
// while the process runs.
func (a *Aggregator) getOrCreate(addr string, ts time.Time) *ipShard {
	shard := a.getShard(addr)
	shard.mu.Lock()
	if _, ok := shard.stats[addr]; !ok {
		shard.stats[addr] = &model.IPStatistic{
			Addr:      addr,
			FirstSeen: ts,
			LastSeen:  ts,
		}
	}
	shard.mu.Unlock()
	return shard
}

// addToHistory folds traffic into the bucket whose window covers ts,
// appending a new bucket and evicting the oldest when the window rolls over.
func (a *Aggregator) addToHistory(bytes, packets uint64, ts time.Time) {
	start := ts.Truncate(a.window)

	a.histMu.Lock()
	defer a.histMu.Unlock()

	n := len(a.buckets)
	if n > 0 && !start.After(a.buckets[n-1].Timestamp) {
		// Same window, or a straggler from an already-rolled window;
		// fold into the newest bucket rather than reordering history.
		a.buckets[n-1].Bytes += bytes
		a.buckets[n-1].Packets += packets
		return
	}

	a.buckets = append(a.buckets, model.HistoryBucket{
		Timestamp: start,
		Bytes:     bytes,
		Packets:   packets,
	})
	if len(a.buckets) > a.capacity {
		a.buckets = a.buckets[1:]
	}
}

// IPStats returns copies of all per-IP statistics ordered by total bytes
// descending, ties broken by address ascending.
func (a *Aggregator) IPStats() []model.IPStatistic {
	var out []model.IPStatistic
	for _, shard := range a.shards {
		shard.mu.RLock()
		for _, st := range shard.stats {
			out = append(out, *st)
		}
		shard.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalBytes() != out[j].TotalBytes() {
			return out[i].TotalBytes() > out[j].TotalBytes()
		}
		return out[i].Addr < out[j].Addr
	})
	return out
}

// TopIPs returns at most limit entries sorted descending by the requested
// field: "bytes" (default), "packets" or "sessions". Ties are broken by
// address ascending for determinism.
func (a *Aggregator) TopIPs(limit int, orderBy string) []model.IPStatistic {
	out := a.IPStats()

	var metric func(*model.IPStatistic) uint64
	switch orderBy {
	case "packets":
		metric = (*model.IPStatistic).TotalPackets
	case "sessions":
		metric = func(st *model.IPStatistic) uint64 { return st.SessionCount }
	default:
		metric = (*model.IPStatistic).TotalBytes
	}
	sort.Slice(out, func(i, j int) bool {
		if metric(&out[i]) != metric(&out[j]) {
			return metric(&out[i]) > metric(&out[j])
		}
		return out[i].Addr < out[j].Addr
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// History returns a copy of the traffic history, oldest bucket first.
func (a *Aggregator) History() []model.HistoryBucket {
	a.histMu.Lock()
	defer a.histMu.Unlock()
	out := make([]model.HistoryBucket, len(a.buckets))
	copy(out, a.buckets)
	return out
}

// LatestBucket returns the newest history bucket, if any.
func (a *Aggregator) LatestBucket() (model.HistoryBucket, bool) {
	a.histMu.Lock()
	defer a.histMu.Unlock()
	if len(a.buckets) == 0 {
		return model.HistoryBucket{}, false
	}
	return a.buckets[len(a.buckets)-1], true
}

// Totals sums all per-IP sent counters on demand. Summing one direction
// avoids double counting: every byte is credited to exactly one sender.
func (a *Aggregator) Totals() (bytes, packets uint64, ips int) {
	for _, shard := range a.shards {
		shard.mu.RLock()
		for _, st := range shard.stats {
			bytes += st.BytesSent
			packets += st.PacketsSent
			ips++
		}
		shard.mu.RUnlock()
	}
	return bytes, packets, ips
}
