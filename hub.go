package main

import (
	"context"
	"sync"
	"time"
)

const (
	defaultMaxConnsPerIP = 5
	maxTotalConns        = 1000
	maxPingMs            = 10000
)

// Outbound is the sending half of a player connection. SendRaw must not
// block; it returns false when the message was dropped.
type Outbound interface {
	SendRaw(data []byte) bool
	Close()
}

// PlayerIdentity is the registry's record of one connected player
type PlayerIdentity struct {
	ID          string
	Name        string
	CharacterID string
	Color       string
	RoomID      string // empty when not in a room
	State       ConnState
	Ping        int // ms
	LastPingAt  time.Time
	ConnectedAt time.Time

	out Outbound
}

// Hub tracks every live connection and routes messages between players,
// the matchmaker and rooms. Hub.mu is never held while calling into a room
// or the matchmaker.
type Hub struct {
	mu         sync.RWMutex
	players    map[string]*PlayerIdentity
	unregister chan string
	done       chan struct{} // closed when Run returns

	// Connection limiting (mutex-protected, accessed from HTTP handlers)
	connMu        sync.Mutex
	ipConns       map[string]int
	totalConns    int
	maxConnsPerIP int

	rooms      *RoomManager
	matchmaker *Matchmaker
	history    *History
	recorder   *Recorder
	metrics    *Metrics
	now        func() time.Time
}

// NewHub creates a Hub. history may be nil.
func NewHub(ctx context.Context, cfg Config, history *History) *Hub {
	h := &Hub{
		players:       make(map[string]*PlayerIdentity),
		unregister:    make(chan string, 64),
		done:          make(chan struct{}),
		ipConns:       make(map[string]int),
		maxConnsPerIP: cfg.MaxConnsPerIP,
		history:       history,
		recorder:      NewRecorder(cfg.ReplayFrames),
		metrics:       &Metrics{},
		now:           time.Now,
	}
	if h.maxConnsPerIP <= 0 {
		h.maxConnsPerIP = defaultMaxConnsPerIP
	}

	h.rooms = NewRoomManager(ctx, h, cfg.MaxRooms)
	h.rooms.metrics = h.metrics
	h.rooms.sink = h.recorder
	h.rooms.onFinish = h.onRoomFinished

	h.matchmaker = NewMatchmaker(h.sendQueueStatus, h.createMatch)
	h.matchmaker.metrics = h.metrics
	h.matchmaker.active = func(id string) bool {
		st, ok := h.State(id)
		return ok && st == StateQueued
	}
	return h
}

func (h *Hub) CanAccept(ip string) bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.totalConns >= maxTotalConns {
		return false
	}
	if h.ipConns[ip] >= h.maxConnsPerIP {
		return false
	}
	return true
}

func (h *Hub) TrackConnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]++
	h.totalConns++
}

func (h *Hub) TrackDisconnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]--
	if h.ipConns[ip] <= 0 {
		delete(h.ipConns, ip)
	}
	h.totalConns--
}

// Run processes disconnects and drives the matchmaking sweep until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(MatchmakingInterval)
	defer ticker.Stop()
	defer close(h.done)

	for {
		select {
		case id := <-h.unregister:
			h.OnDisconnect(id)
		case <-ticker.C:
			h.matchmaker.Sweep()
		case <-ctx.Done():
			return
		}
	}
}

// Unregister queues a disconnect for the hub goroutine, or handles it
// directly once the hub has stopped.
func (h *Hub) Unregister(playerID string) {
	select {
	case h.unregister <- playerID:
	case <-h.done:
		h.OnDisconnect(playerID)
	}
}

// RegisterConnection assigns a fresh player id to a new connection.
func (h *Hub) RegisterConnection(out Outbound) string {
	id := GenerateUUID()
	now := h.now()
	h.mu.Lock()
	h.players[id] = &PlayerIdentity{
		ID:          id,
		State:       StateUnauthenticated,
		LastPingAt:  now,
		ConnectedAt: now,
		out:         out,
	}
	h.mu.Unlock()
	h.metrics.IncConnAccepted()
	return id
}

// OnDisconnect removes every trace of the player. Idempotent.
func (h *Hub) OnDisconnect(playerID string) {
	h.mu.Lock()
	p, ok := h.players[playerID]
	roomID := ""
	if ok {
		roomID = p.RoomID
		delete(h.players, playerID)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	p.out.Close()
	h.matchmaker.Dequeue(playerID)
	if roomID != "" {
		h.rooms.RemovePlayer(roomID, playerID)
	}
	Log.Infow("player disconnected", "player", playerID, "name", p.Name)
}

// CloseAll closes every connection's outbound side. Read pumps then
// unregister their players as usual.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	outs := make([]Outbound, 0, len(h.players))
	for _, p := range h.players {
		outs = append(outs, p.out)
	}
	h.mu.RUnlock()
	for _, out := range outs {
		out.Close()
	}
}

// SendToPlayer encodes and sends msg. Unknown players are ignored.
func (h *Hub) SendToPlayer(playerID string, msg Message) {
	data, err := CreateMessage(msg)
	if err != nil {
		Log.Errorw("encode message", "type", msg.MessageType(), "err", err)
		return
	}
	h.SendRaw(playerID, data)
}

// SendRaw delivers pre-encoded bytes to one player
func (h *Hub) SendRaw(playerID string, data []byte) {
	h.mu.RLock()
	p, ok := h.players[playerID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	if !p.out.SendRaw(data) {
		h.metrics.IncSendDropped()
	}
}

// Broadcast sends msg to every connected player except exclude.
func (h *Hub) Broadcast(msg Message, exclude string) {
	data, err := CreateMessage(msg)
	if err != nil {
		Log.Errorw("encode message", "type", msg.MessageType(), "err", err)
		return
	}
	h.mu.RLock()
	targets := make([]Outbound, 0, len(h.players))
	for id, p := range h.players {
		if id != exclude {
			targets = append(targets, p.out)
		}
	}
	h.mu.RUnlock()

	for _, out := range targets {
		if !out.SendRaw(data) {
			h.metrics.IncSendDropped()
		}
	}
}

// State returns the player's connection state
func (h *Hub) State(playerID string) (ConnState, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.players[playerID]
	if !ok {
		return 0, false
	}
	return p.State, true
}

// Identity returns a copy of the player's record
func (h *Hub) Identity(playerID string) (PlayerIdentity, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.players[playerID]
	if !ok {
		return PlayerIdentity{}, false
	}
	return *p, true
}

// ClientCount returns the number of connected players
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.players)
}

// TotalConns returns the tracked connection count
func (h *Hub) TotalConns() int {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	return h.totalConns
}

// setState moves the player from one state to another; no-op otherwise.
func (h *Hub) setState(playerID string, from, to ConnState) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.players[playerID]
	if !ok || p.State != from {
		return false
	}
	p.State = to
	return true
}

func (h *Hub) roomOf(playerID string) *Room {
	h.mu.RLock()
	p, ok := h.players[playerID]
	roomID := ""
	if ok {
		roomID = p.RoomID
	}
	h.mu.RUnlock()
	if roomID == "" {
		return nil
	}
	return h.rooms.Get(roomID)
}

func (h *Hub) sendQueueStatus(playerID string, status QueueStatusMsg) {
	h.SendToPlayer(playerID, status)
}

// createMatch is the matchmaker's hand-off: it builds a room, claims the
// players that are still queued and tells everyone where they are playing.
// It runs on the hub goroutine, serialized with disconnects.
func (h *Hub) createMatch(mode GameMode, ids []string) bool {
	room, err := h.rooms.Create(DefaultRoomConfig(mode))
	if err != nil {
		Log.Warnw("create room", "mode", mode, "err", err)
		return false
	}

	type member struct{ id, name, characterID string }
	h.mu.Lock()
	members := make([]member, 0, len(ids))
	for _, id := range ids {
		p, ok := h.players[id]
		if !ok || p.State != StateQueued {
			continue
		}
		members = append(members, member{id, p.Name, p.CharacterID})
	}
	if len(members) < h.matchmaker.MinPlayers {
		h.mu.Unlock()
		h.rooms.teardown(room)
		return false
	}
	for _, m := range members {
		p := h.players[m.id]
		p.State = StateInMatch
		p.RoomID = room.ID
	}
	h.mu.Unlock()

	// A join_queue for another mode may have landed after the sweep took
	// these entries.
	for _, m := range members {
		h.matchmaker.Dequeue(m.id)
	}

	for _, m := range members {
		if err := room.AddPlayer(m.id, m.name, m.characterID); err != nil {
			Log.Warnw("add player", "room", room.ID, "player", m.id, "err", err)
			h.releasePlayer(m.id, room.ID)
			continue
		}
		if _, ok := h.Identity(m.id); !ok {
			// Disconnected while the room was being built.
			h.rooms.RemovePlayer(room.ID, m.id)
		}
	}

	found := MatchFoundMsg{
		RoomID:   room.ID,
		MapID:    room.MapID,
		GameMode: room.Mode,
		Players:  room.Roster(),
	}
	for _, e := range found.Players {
		h.SendToPlayer(e.ID, found)
	}
	return true
}

// releasePlayer returns a player to idle if it is still bound to roomID.
func (h *Hub) releasePlayer(playerID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if p, ok := h.players[playerID]; ok && p.RoomID == roomID {
		p.RoomID = ""
		p.State = StateIdle
	}
}

// onRoomFinished returns a finished room's players to the idle state and
// records the result.
func (h *Hub) onRoomFinished(res MatchResult) {
	for _, s := range res.Scores {
		h.releasePlayer(s.PlayerID, res.RoomID)
	}

	if h.history != nil {
		if err := h.history.RecordMatch(res); err != nil {
			Log.Errorw("record match", "room", res.RoomID, "err", err)
		}
	}
}
