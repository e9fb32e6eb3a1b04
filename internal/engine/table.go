package engine

import (
	"hash/fnv"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"NetFlowScope/internal/model"
)

const defaultShardCount = 256

// sessionShard is one partition of the session table with its own lock,
// so a long reader snapshot never stalls ingestion on other shards.
type sessionShard struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session
}

// Delta describes the effect of one ingested packet, handed to the
// statistics aggregator by the engine.
type Delta struct {
	From       string
	To         string
	Bytes      uint64
	Packets    uint64
	Timestamp  time.Time
	SessionID  uint64
	NewSession bool
	Rejected   bool
	// Closed is the finalized session when this packet completed a TCP
	// teardown; nil otherwise.
	Closed *model.Session
}

// SessionTable is the single source of truth for live sessions. It is safe
// for one writer (the ingestion path) and many concurrent readers.
type SessionTable struct {
	shards     []*sessionShard
	shardCount uint32

	maxSessions int
	nextID      atomic.Uint64
	live        atomic.Int64
	rejected    atomic.Uint64
}

// NewSessionTable creates a sharded session table. maxSessions <= 0 means
// unbounded.
func NewSessionTable(numShards uint32, maxSessions int) *SessionTable {
	if numShards == 0 || numShards >= 32768 {
		numShards = defaultShardCount
	}
	t := &SessionTable{
		shards:      make([]*sessionShard, numShards),
		shardCount:  numShards,
		maxSessions: maxSessions,
	}
	for i := range t.shards {
		t.shards[i] = &sessionShard{sessions: make(map[string]*model.Session)}
	}
	return t
}

// getShard returns the appropriate shard for a given key.
func (t *SessionTable) getShard(key string) *sessionShard {
	hasher := fnv.New32a()
	hasher.Write([]byte(key))
	return t.shards[hasher.Sum32()%t.shardCount]
}

// Ingest creates or updates the session for the packet's flow key and
// returns the resulting delta. Sessions that complete a TCP teardown are
// removed immediately and returned in Delta.Closed so resources are freed
// on normal connection close rather than waiting for the sweeper.
//
// When the table is at capacity, new-session creation is rejected but the
// delta is still returned so the packet's bytes count toward IP statistics.
func (t *SessionTable) Ingest(ev *model.PacketEvent, key model.FlowKey) Delta {
	delta := Delta{
		From:      ev.SrcIP.String(),
		To:        ev.DstIP.String(),
		Bytes:     uint64(ev.Length),
		Packets:   1,
		Timestamp: ev.Timestamp,
	}

	ks := key.String()
	shard := t.getShard(ks)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	s, ok := shard.sessions[ks]
	if !ok {
		if t.maxSessions > 0 && int(t.live.Load()) >= t.maxSessions {
			t.rejected.Add(1)
			delta.Rejected = true
			return delta
		}
		s = &model.Session{
			ID:        t.nextID.Add(1),
			Key:       key,
			SrcAddr:   delta.From,
			DstAddr:   delta.To,
			SrcPort:   ev.SrcPort,
			DstPort:   ev.DstPort,
			Protocol:  ev.Protocol,
			State:     initialState(ev.Protocol),
			FirstSeen: ev.Timestamp,
			LastSeen:  ev.Timestamp,
		}
		s.PacketsSent = 1
		s.BytesSent = uint64(ev.Length)
		if ev.Protocol == model.ProtoTCP {
			advanceTCP(s, ev.Flags, true)
		}
		shard.sessions[ks] = s
		t.live.Add(1)
		delta.SessionID = s.ID
		delta.NewSession = true
		if s.State == model.StateClosed {
			// Lone RST opened and closed the session in one packet.
			delete(shard.sessions, ks)
			t.live.Add(-1)
			delta.Closed = s
		}
		return delta
	}

	fromInitiator := delta.From == s.SrcAddr && ev.SrcPort == s.SrcPort
	if fromInitiator {
		s.PacketsSent++
		s.BytesSent += uint64(ev.Length)
	} else {
		s.PacketsRecv++
		s.BytesRecv += uint64(ev.Length)
	}

	// Clock anomalies never terminate the engine: a timestamp before
	// first-seen is clamped, one before last-seen leaves last-seen alone.
	switch {
	case ev.Timestamp.Before(s.FirstSeen):
		log.Printf("clamped packet timestamp %s before session first-seen %s", ev.Timestamp, s.FirstSeen)
	case ev.Timestamp.After(s.LastSeen):
		s.LastSeen = ev.Timestamp
	}

	if ev.Protocol == model.ProtoTCP {
		advanceTCP(s, ev.Flags, fromInitiator)
	}
	delta.SessionID = s.ID

	if s.State == model.StateClosed {
		delete(shard.sessions, ks)
		t.live.Add(-1)
		delta.Closed = s
	}
	return delta
}

// EvictIdle removes every session idle longer than threshold and returns
// them for finalization, marked CLOSED. Locks are taken per shard so a
// sweep over a large table keeps ingestion latency bounded.
func (t *SessionTable) EvictIdle(now time.Time, threshold time.Duration) []*model.Session {
	var evicted []*model.Session
	for _, shard := range t.shards {
		shard.mu.Lock()
		removed := 0
		for key, s := range shard.sessions {
			if now.Sub(s.LastSeen) > threshold {
				s.State = model.StateClosed
				evicted = append(evicted, s)
				delete(shard.sessions, key)
				removed++
			}
		}
		t.live.Add(-int64(removed))
		shard.mu.Unlock()
	}
	return evicted
}

// Snapshot returns deep copies of all live sessions ordered by last-seen
// descending, the ordering consumers rely on for "active sessions" views.
func (t *SessionTable) Snapshot() []model.Session {
	out := make([]model.Session, 0, t.live.Load())
	for _, shard := range t.shards {
		shard.mu.RLock()
		for _, s := range shard.sessions {
			out = append(out, *s)
		}
		shard.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastSeen.Equal(out[j].LastSeen) {
			return out[i].LastSeen.After(out[j].LastSeen)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// Live returns the number of live sessions.
func (t *SessionTable) Live() int {
	return int(t.live.Load())
}

// Rejected returns how many new sessions were refused at capacity.
func (t *SessionTable) Rejected() uint64 {
	return t.rejected.Load()
}
