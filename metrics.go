package main

import "sync/atomic"

// Metrics holds process-wide counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ConnsAccepted   int64
	ConnsRejected   int64
	MessagesIn      int64
	MalformedIn     int64 // unparseable or unknown type
	RejectedIn      int64 // not legal in the connection's state
	SendsDropped    int64 // outbound buffer full
	MatchesFormed   int64
	FallbackMatches int64 // formed ignoring ping groups
	RoomsEnded      int64
	InputsAccepted  int64
	InputsStale     int64
	InputsOverflow  int64
	ShotsFired      int64
	Hits            int64
	Headshots       int64
	Kills           int64
	TickCount       int64
	TotalTickNs     int64
}

func add(p *int64) { atomic.AddInt64(p, 1) }

func (m *Metrics) IncConnAccepted() {
	if m != nil {
		add(&m.ConnsAccepted)
	}
}

func (m *Metrics) IncConnRejected() {
	if m != nil {
		add(&m.ConnsRejected)
	}
}

func (m *Metrics) IncMessageIn() {
	if m != nil {
		add(&m.MessagesIn)
	}
}

func (m *Metrics) IncMalformed() {
	if m != nil {
		add(&m.MalformedIn)
	}
}

func (m *Metrics) IncRejected() {
	if m != nil {
		add(&m.RejectedIn)
	}
}

func (m *Metrics) IncSendDropped() {
	if m != nil {
		add(&m.SendsDropped)
	}
}

func (m *Metrics) IncMatchFormed(fallback bool) {
	if m == nil {
		return
	}
	add(&m.MatchesFormed)
	if fallback {
		add(&m.FallbackMatches)
	}
}

func (m *Metrics) IncRoomEnded() {
	if m != nil {
		add(&m.RoomsEnded)
	}
}

func (m *Metrics) IncInputAccepted() {
	if m != nil {
		add(&m.InputsAccepted)
	}
}

func (m *Metrics) IncInputStale() {
	if m != nil {
		add(&m.InputsStale)
	}
}

func (m *Metrics) IncInputOverflow() {
	if m != nil {
		add(&m.InputsOverflow)
	}
}

func (m *Metrics) IncShot() {
	if m != nil {
		add(&m.ShotsFired)
	}
}

func (m *Metrics) IncHit(headshot bool) {
	if m == nil {
		return
	}
	add(&m.Hits)
	if headshot {
		add(&m.Headshots)
	}
}

func (m *Metrics) IncKill() {
	if m != nil {
		add(&m.Kills)
	}
}

func (m *Metrics) AddTick(ns int64) {
	if m == nil {
		return
	}
	add(&m.TickCount)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot returns a read-only copy for HTTP output
func (m *Metrics) Snapshot() map[string]any {
	ticks := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if ticks > 0 {
		avgMs = float64(total) / float64(ticks) / 1e6
	}
	return map[string]any{
		"conns_accepted":   atomic.LoadInt64(&m.ConnsAccepted),
		"conns_rejected":   atomic.LoadInt64(&m.ConnsRejected),
		"messages_in":      atomic.LoadInt64(&m.MessagesIn),
		"malformed_in":     atomic.LoadInt64(&m.MalformedIn),
		"rejected_in":      atomic.LoadInt64(&m.RejectedIn),
		"sends_dropped":    atomic.LoadInt64(&m.SendsDropped),
		"matches_formed":   atomic.LoadInt64(&m.MatchesFormed),
		"fallback_matches": atomic.LoadInt64(&m.FallbackMatches),
		"rooms_ended":      atomic.LoadInt64(&m.RoomsEnded),
		"inputs_accepted":  atomic.LoadInt64(&m.InputsAccepted),
		"inputs_stale":     atomic.LoadInt64(&m.InputsStale),
		"inputs_overflow":  atomic.LoadInt64(&m.InputsOverflow),
		"shots_fired":      atomic.LoadInt64(&m.ShotsFired),
		"hits":             atomic.LoadInt64(&m.Hits),
		"headshots":        atomic.LoadInt64(&m.Headshots),
		"kills":            atomic.LoadInt64(&m.Kills),
		"tick_count":       ticks,
		"avg_tick_ms":      avgMs,
	}
}
