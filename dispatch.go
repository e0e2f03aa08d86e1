package main

import (
	"strings"
	"unicode/utf8"
)

const maxNameLen = 16

// ConnState is the lifecycle stage of a connection.
type ConnState int

const (
	StateUnauthenticated ConnState = iota
	StateIdle
	StateQueued
	StateInMatch
)

func (s ConnState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateIdle:
		return "idle"
	case StateQueued:
		return "queued"
	case StateInMatch:
		return "in-match"
	}
	return "unknown"
}

var legalMessages = map[ConnState]map[string]bool{
	StateUnauthenticated: {MsgConnect: true, MsgPing: true},
	StateIdle:            {MsgConnect: true, MsgPing: true, MsgJoinQueue: true},
	StateQueued:          {MsgPing: true, MsgJoinQueue: true, MsgLeaveQueue: true},
	StateInMatch:         {MsgPing: true, MsgPlayerInput: true, MsgPlayerShoot: true},
}

// Allows reports whether a client message of kind is legal in state s.
func (s ConnState) Allows(kind string) bool {
	return legalMessages[s][kind]
}

// OnMessage decodes one inbound message and routes it. Malformed, unknown
// and out-of-state messages are logged and dropped.
func (h *Hub) OnMessage(playerID string, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			Log.Errorw("dispatch panic", "player", playerID, "panic", r)
		}
	}()
	h.metrics.IncMessageIn()

	msg, err := ParseMessage(raw)
	if err != nil {
		h.metrics.IncMalformed()
		Log.Debugw("drop message", "player", playerID, "err", err)
		return
	}

	state, ok := h.State(playerID)
	if !ok {
		return
	}
	if !state.Allows(msg.MessageType()) {
		h.metrics.IncRejected()
		Log.Debugw("drop message", "player", playerID, "type", msg.MessageType(), "state", state)
		return
	}

	switch m := msg.(type) {
	case *ConnectMsg:
		h.handleConnect(playerID, m)
	case *PingMsg:
		h.handlePing(playerID, m)
	case *JoinQueueMsg:
		h.handleJoinQueue(playerID, m)
	case *LeaveQueueMsg:
		h.handleLeaveQueue(playerID)
	case *PlayerInputMsg:
		if room := h.roomOf(playerID); room != nil {
			room.HandleInput(playerID, m.Input)
		}
	case *PlayerShootMsg:
		if room := h.roomOf(playerID); room != nil {
			room.HandleShoot(playerID, m.Origin, m.Direction)
		}
	}
}

func (h *Hub) handleConnect(playerID string, m *ConnectMsg) {
	name := sanitizeName(m.PlayerName)
	if name == "" {
		name = "Player_" + playerID[:min(4, len(playerID))]
	}
	char := LookupCharacter(m.CharacterID)

	h.mu.Lock()
	p, ok := h.players[playerID]
	if ok {
		p.Name = name
		p.CharacterID = char.ID
		p.Color = char.Color
		p.LastPingAt = h.now()
		if p.State == StateUnauthenticated {
			p.State = StateIdle
		}
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	Log.Infow("player connected", "player", playerID, "name", name, "character", char.ID)
	now := h.now().UnixMilli()
	h.SendToPlayer(playerID, PongMsg{Timestamp: now, ServerTime: now})
}

func (h *Hub) handlePing(playerID string, m *PingMsg) {
	now := h.now()
	rtt := int(Clamp(float64(now.UnixMilli()-m.Timestamp), 0, maxPingMs))

	h.mu.Lock()
	p, ok := h.players[playerID]
	queued := false
	if ok {
		p.Ping = rtt
		p.LastPingAt = now
		queued = p.State == StateQueued
	}
	h.mu.Unlock()

	if queued {
		h.matchmaker.UpdatePing(playerID, rtt)
	}
	h.SendToPlayer(playerID, PongMsg{Timestamp: m.Timestamp, ServerTime: now.UnixMilli()})
}

func (h *Hub) handleJoinQueue(playerID string, m *JoinQueueMsg) {
	if !m.PreferredMode.Valid() {
		h.metrics.IncRejected()
		Log.Debugw("drop join_queue", "player", playerID, "mode", m.PreferredMode)
		return
	}

	h.mu.Lock()
	p, ok := h.players[playerID]
	ping := 0
	if ok {
		p.State = StateQueued
		ping = p.Ping
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	if err := h.matchmaker.Enqueue(playerID, m.PreferredMode, ping); err != nil {
		Log.Warnw("enqueue", "player", playerID, "err", err)
		return
	}
	Log.Infow("player queued", "player", playerID, "mode", m.PreferredMode, "ping", ping)
}

func (h *Hub) handleLeaveQueue(playerID string) {
	h.matchmaker.Dequeue(playerID)
	h.setState(playerID, StateQueued, StateIdle)
}

// sanitizeName trims whitespace and control characters and caps the length.
func sanitizeName(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > maxNameLen {
		s = string([]rune(s)[:maxNameLen])
	}
	return s
}
