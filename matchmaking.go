package main

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var ErrInvalidMode = errors.New("invalid game mode")

var queueModes = []GameMode{ModeFFA, ModeTDM}

// QueueEntry is a player waiting for a match
type QueueEntry struct {
	PlayerID string
	Mode     GameMode
	JoinedAt time.Time
	Ping     int // ms
	seq      uint64
}

func (e *QueueEntry) before(o *QueueEntry) bool {
	if !e.JoinedAt.Equal(o.JoinedAt) {
		return e.JoinedAt.Before(o.JoinedAt)
	}
	return e.seq < o.seq
}

// MatchHandler creates a room for the matched players. Returning false puts
// the players back in the queue.
type MatchHandler func(mode GameMode, playerIDs []string) bool

// StatusNotifier delivers a queue_status to one player.
type StatusNotifier func(playerID string, status QueueStatusMsg)

// Matchmaker holds one queue per game mode and forms matches on Sweep.
type Matchmaker struct {
	mu     sync.Mutex
	queues map[GameMode]map[string]*QueueEntry
	seq    uint64

	MinPlayers    int
	MaxPlayers    int
	PingThreshold int

	now     func() time.Time
	notify  StatusNotifier
	onMatch MatchHandler
	metrics *Metrics
	// active filters requeued players; nil accepts everyone.
	active func(playerID string) bool
}

// NewMatchmaker creates a Matchmaker with default player limits
func NewMatchmaker(notify StatusNotifier, onMatch MatchHandler) *Matchmaker {
	mm := &Matchmaker{
		queues:        make(map[GameMode]map[string]*QueueEntry, len(queueModes)),
		MinPlayers:    MinPlayers,
		MaxPlayers:    MaxPlayers,
		PingThreshold: PingThreshold,
		now:           time.Now,
		notify:        notify,
		onMatch:       onMatch,
	}
	for _, m := range queueModes {
		mm.queues[m] = make(map[string]*QueueEntry)
	}
	return mm
}

// Enqueue upserts the player's entry and reports queue status. Re-joining the
// same mode keeps the first join time; switching modes starts over.
func (mm *Matchmaker) Enqueue(playerID string, mode GameMode, ping int) error {
	if !mode.Valid() {
		return fmt.Errorf("%q: %w", mode, ErrInvalidMode)
	}

	mm.mu.Lock()
	entry, ok := mm.queues[mode][playerID]
	if ok {
		entry.Ping = ping
	} else {
		for _, m := range queueModes {
			delete(mm.queues[m], playerID)
		}
		mm.seq++
		entry = &QueueEntry{
			PlayerID: playerID,
			Mode:     mode,
			JoinedAt: mm.now(),
			Ping:     ping,
			seq:      mm.seq,
		}
		mm.queues[mode][playerID] = entry
	}
	status := mm.statusLocked(entry)
	mm.mu.Unlock()

	if mm.notify != nil {
		mm.notify(playerID, status)
	}
	return nil
}

// Dequeue removes the player from whichever queue holds it
func (mm *Matchmaker) Dequeue(playerID string) bool {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	removed := false
	for _, m := range queueModes {
		if _, ok := mm.queues[m][playerID]; ok {
			delete(mm.queues[m], playerID)
			removed = true
		}
	}
	return removed
}

// UpdatePing refreshes a queued player's latency
func (mm *Matchmaker) UpdatePing(playerID string, ping int) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	for _, m := range queueModes {
		if e, ok := mm.queues[m][playerID]; ok {
			e.Ping = ping
		}
	}
}

// Contains reports whether the player is queued in any mode
func (mm *Matchmaker) Contains(playerID string) bool {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	for _, m := range queueModes {
		if _, ok := mm.queues[m][playerID]; ok {
			return true
		}
	}
	return false
}

// QueueSize returns the number of players waiting for mode
func (mm *Matchmaker) QueueSize(mode GameMode) int {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return len(mm.queues[mode])
}

type formedMatch struct {
	mode     GameMode
	entries  []*QueueEntry
	fallback bool
}

// Sweep forms at most one match per mode, hands it to the MatchHandler and
// refreshes the status of everyone still waiting.
func (mm *Matchmaker) Sweep() {
	mm.mu.Lock()
	var formed []formedMatch
	for _, mode := range queueModes {
		if fm, ok := mm.formLocked(mode); ok {
			formed = append(formed, fm)
		}
	}
	mm.mu.Unlock()

	for _, fm := range formed {
		ids := make([]string, len(fm.entries))
		for i, e := range fm.entries {
			ids[i] = e.PlayerID
		}
		if mm.onMatch != nil && mm.onMatch(fm.mode, ids) {
			mm.metrics.IncMatchFormed(fm.fallback)
			Log.Infow("match formed", "mode", fm.mode, "players", len(ids), "fallback", fm.fallback)
			continue
		}
		mm.requeue(fm.entries)
	}

	mm.broadcastStatus()
}

// formLocked removes and returns the players for one match, if possible.
func (mm *Matchmaker) formLocked(mode GameMode) (formedMatch, bool) {
	q := mm.queues[mode]
	if len(q) < mm.MinPlayers {
		return formedMatch{}, false
	}

	sorted := make([]*QueueEntry, 0, len(q))
	for _, e := range q {
		sorted = append(sorted, e)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].before(sorted[j]) })

	fm := formedMatch{mode: mode}
	groups := groupByPing(sorted, mm.PingThreshold)
	if len(groups) > 0 && len(groups[0]) >= mm.MinPlayers {
		fm.entries = groups[0]
	} else {
		fm.entries = sorted
		fm.fallback = true
	}
	if len(fm.entries) > mm.MaxPlayers {
		fm.entries = fm.entries[:mm.MaxPlayers]
	}
	for _, e := range fm.entries {
		delete(q, e.PlayerID)
	}
	return fm, true
}

// groupByPing partitions entries (already in join order) greedily: each
// unassigned entry seeds a group of all unassigned entries within threshold
// of its ping. Groups are returned largest first; equal sizes keep seed order.
func groupByPing(entries []*QueueEntry, threshold int) [][]*QueueEntry {
	used := make([]bool, len(entries))
	var groups [][]*QueueEntry
	for i, seed := range entries {
		if used[i] {
			continue
		}
		used[i] = true
		group := []*QueueEntry{seed}
		for j := i + 1; j < len(entries); j++ {
			if used[j] {
				continue
			}
			if abs(entries[j].Ping-seed.Ping) <= threshold {
				group = append(group, entries[j])
				used[j] = true
			}
		}
		groups = append(groups, group)
	}
	sort.SliceStable(groups, func(i, j int) bool { return len(groups[i]) > len(groups[j]) })
	return groups
}

// requeue restores entries whose room could not be created. Players who
// re-queued or left in the meantime are not touched.
func (mm *Matchmaker) requeue(entries []*QueueEntry) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	for _, e := range entries {
		if mm.inAnyLocked(e.PlayerID) || (mm.active != nil && !mm.active(e.PlayerID)) {
			continue
		}
		mm.queues[e.Mode][e.PlayerID] = e
	}
}

func (mm *Matchmaker) inAnyLocked(playerID string) bool {
	for _, m := range queueModes {
		if _, ok := mm.queues[m][playerID]; ok {
			return true
		}
	}
	return false
}

func (mm *Matchmaker) broadcastStatus() {
	if mm.notify == nil {
		return
	}
	type pending struct {
		id     string
		status QueueStatusMsg
	}
	mm.mu.Lock()
	var out []pending
	for _, m := range queueModes {
		for id, e := range mm.queues[m] {
			out = append(out, pending{id, mm.statusLocked(e)})
		}
	}
	mm.mu.Unlock()

	for _, p := range out {
		mm.notify(p.id, p.status)
	}
}

func (mm *Matchmaker) statusLocked(entry *QueueEntry) QueueStatusMsg {
	q := mm.queues[entry.Mode]
	pos := 0
	for _, e := range q {
		if !entry.before(e) {
			pos++
		}
	}
	return QueueStatusMsg{
		Position:       pos,
		PlayersInQueue: len(q),
		EstimatedWait:  max(0, (mm.MinPlayers-len(q))*WaitSecsPerPlayer),
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
