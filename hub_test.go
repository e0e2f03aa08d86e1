package main

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tidwall/gjson"
)

// mockOutbound captures what the hub sends to one connection
type mockOutbound struct {
	mu     sync.Mutex
	msgs   [][]byte
	closed bool
	full   bool
}

func (m *mockOutbound) SendRaw(data []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.full {
		return false
	}
	m.msgs = append(m.msgs, data)
	return true
}

func (m *mockOutbound) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

func (m *mockOutbound) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.msgs))
	for i, raw := range m.msgs {
		out[i] = gjson.GetBytes(raw, "type").Str
	}
	return out
}

func (m *mockOutbound) last(t *testing.T, kind string) Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.msgs) - 1; i >= 0; i-- {
		if gjson.GetBytes(m.msgs[i], "type").Str == kind {
			msg, err := ParseMessage(m.msgs[i])
			if err != nil {
				t.Fatalf("parse %s: %v", kind, err)
			}
			return msg
		}
	}
	t.Fatalf("no %s message received", kind)
	return nil
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub(ctx, Config{}, nil)
	t.Cleanup(func() {
		h.rooms.StopAll()
		cancel()
	})
	return h
}

func send(t *testing.T, h *Hub, id string, msg Message) {
	t.Helper()
	data, err := CreateMessage(msg)
	if err != nil {
		t.Fatal(err)
	}
	h.OnMessage(id, data)
}

func connectPlayer(t *testing.T, h *Hub, name string) (string, *mockOutbound) {
	t.Helper()
	out := &mockOutbound{}
	id := h.RegisterConnection(out)
	send(t, h, id, ConnectMsg{PlayerName: name, CharacterID: "leon"})
	return id, out
}

func wantState(t *testing.T, h *Hub, id string, want ConnState) {
	t.Helper()
	got, ok := h.State(id)
	if !ok {
		t.Fatalf("%s is not registered", id)
	}
	if got != want {
		t.Fatalf("state = %s, want %s", got, want)
	}
}

func TestConnStateTable(t *testing.T) {
	cases := []struct {
		state ConnState
		kind  string
		ok    bool
	}{
		{StateUnauthenticated, MsgConnect, true},
		{StateUnauthenticated, MsgPing, true},
		{StateUnauthenticated, MsgJoinQueue, false},
		{StateUnauthenticated, MsgPlayerInput, false},
		{StateIdle, MsgJoinQueue, true},
		{StateIdle, MsgLeaveQueue, false},
		{StateIdle, MsgPlayerShoot, false},
		{StateQueued, MsgLeaveQueue, true},
		{StateQueued, MsgJoinQueue, true},
		{StateQueued, MsgConnect, false},
		{StateInMatch, MsgPlayerInput, true},
		{StateInMatch, MsgPlayerShoot, true},
		{StateInMatch, MsgJoinQueue, false},
		{StateInMatch, MsgPong, false},
	}
	for _, tc := range cases {
		if got := tc.state.Allows(tc.kind); got != tc.ok {
			t.Errorf("%s allows %s = %v, want %v", tc.state, tc.kind, got, tc.ok)
		}
	}
}

func TestConnectMovesToIdle(t *testing.T) {
	h := newTestHub(t)
	out := &mockOutbound{}
	id := h.RegisterConnection(out)
	wantState(t, h, id, StateUnauthenticated)

	send(t, h, id, ConnectMsg{PlayerName: "  Alice\x07  ", CharacterID: "nobody"})
	wantState(t, h, id, StateIdle)

	p, _ := h.Identity(id)
	if p.Name != "Alice" {
		t.Errorf("name = %q, want sanitized Alice", p.Name)
	}
	if p.CharacterID != characters[0].ID {
		t.Errorf("unknown character should fall back, got %q", p.CharacterID)
	}
	if types := out.types(); len(types) != 1 || types[0] != MsgPong {
		t.Errorf("connect reply = %v, want [pong]", types)
	}
}

func TestConnectDefaultName(t *testing.T) {
	h := newTestHub(t)
	id, _ := connectPlayer(t, h, "   ")
	p, _ := h.Identity(id)
	if !strings.HasPrefix(p.Name, "Player_") || p.Name != "Player_"+id[:4] {
		t.Errorf("name = %q", p.Name)
	}
}

func TestSanitizeName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Bob", "Bob"},
		{"  padded  ", "padded"},
		{"tab\tname", "tabname"},
		{"ÉmilieÉmilieÉmilieXYZ", "ÉmilieÉmilieÉmil"},
		{"\x00\x1f", ""},
	}
	for _, tc := range cases {
		if got := sanitizeName(tc.in); got != tc.want {
			t.Errorf("sanitizeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestOutOfStateMessageDropped(t *testing.T) {
	h := newTestHub(t)
	out := &mockOutbound{}
	id := h.RegisterConnection(out)

	send(t, h, id, JoinQueueMsg{PreferredMode: ModeFFA})
	wantState(t, h, id, StateUnauthenticated)
	if h.matchmaker.Contains(id) {
		t.Error("unauthenticated player was queued")
	}
	if h.metrics.RejectedIn != 1 {
		t.Errorf("rejected = %d, want 1", h.metrics.RejectedIn)
	}

	h.OnMessage(id, []byte("not json"))
	if h.metrics.MalformedIn != 1 {
		t.Errorf("malformed = %d, want 1", h.metrics.MalformedIn)
	}
	if len(out.types()) != 0 {
		t.Errorf("nothing should be sent back, got %v", out.types())
	}
}

func TestPingMeasuresLatency(t *testing.T) {
	h := newTestHub(t)
	now := time.UnixMilli(1700000000000)
	h.now = func() time.Time { return now }
	id, out := connectPlayer(t, h, "A")

	send(t, h, id, PingMsg{Timestamp: now.UnixMilli() - 80})
	p, _ := h.Identity(id)
	if p.Ping != 80 {
		t.Errorf("ping = %d, want 80", p.Ping)
	}
	pong := out.last(t, MsgPong).(*PongMsg)
	if pong.Timestamp != now.UnixMilli()-80 || pong.ServerTime != now.UnixMilli() {
		t.Errorf("pong = %+v", pong)
	}

	// Clock skew never produces a negative ping.
	send(t, h, id, PingMsg{Timestamp: now.UnixMilli() + 5000})
	if p, _ := h.Identity(id); p.Ping != 0 {
		t.Errorf("ping = %d, want 0", p.Ping)
	}
}

func TestQueueLifecycle(t *testing.T) {
	h := newTestHub(t)
	id, out := connectPlayer(t, h, "A")

	send(t, h, id, JoinQueueMsg{PreferredMode: "ctf"})
	wantState(t, h, id, StateIdle)

	send(t, h, id, JoinQueueMsg{PreferredMode: ModeTDM})
	wantState(t, h, id, StateQueued)
	if h.matchmaker.QueueSize(ModeTDM) != 1 {
		t.Fatal("player not in the tdm queue")
	}
	status := out.last(t, MsgQueueStatus).(*QueueStatusMsg)
	if status.Position != 1 || status.PlayersInQueue != 1 {
		t.Errorf("queue_status = %+v", status)
	}

	send(t, h, id, LeaveQueueMsg{})
	wantState(t, h, id, StateIdle)
	if h.matchmaker.Contains(id) {
		t.Error("player still queued after leave")
	}
}

func queuePair(t *testing.T, h *Hub) (a, b string, outA, outB *mockOutbound) {
	t.Helper()
	a, outA = connectPlayer(t, h, "A")
	b, outB = connectPlayer(t, h, "B")
	send(t, h, a, JoinQueueMsg{PreferredMode: ModeFFA})
	send(t, h, b, JoinQueueMsg{PreferredMode: ModeFFA})
	h.matchmaker.Sweep()
	return
}

func TestMatchPlacesPlayers(t *testing.T) {
	h := newTestHub(t)
	a, b, outA, _ := queuePair(t, h)

	wantState(t, h, a, StateInMatch)
	wantState(t, h, b, StateInMatch)
	pa, _ := h.Identity(a)
	pb, _ := h.Identity(b)
	if pa.RoomID == "" || pa.RoomID != pb.RoomID {
		t.Fatalf("room ids %q and %q", pa.RoomID, pb.RoomID)
	}
	if h.matchmaker.Contains(a) || h.matchmaker.Contains(b) {
		t.Error("matched players still queued")
	}

	found := outA.last(t, MsgMatchFound).(*MatchFoundMsg)
	if found.RoomID != pa.RoomID || found.GameMode != ModeFFA || len(found.Players) != 2 {
		t.Errorf("match_found = %+v", found)
	}
	if _, ok := GetMap(found.MapID); !ok {
		t.Errorf("unknown map %q", found.MapID)
	}

	room := h.rooms.Get(pa.RoomID)
	if room == nil || room.Status() != StatusStarting {
		t.Fatalf("room = %v", room)
	}

	// In-match players may send input but not queue again.
	send(t, h, a, JoinQueueMsg{PreferredMode: ModeFFA})
	wantState(t, h, a, StateInMatch)
}

func TestMatchClaimsPlayerFromOtherQueue(t *testing.T) {
	h := newTestHub(t)
	a, _ := connectPlayer(t, h, "A")
	b, _ := connectPlayer(t, h, "B")
	send(t, h, a, JoinQueueMsg{PreferredMode: ModeFFA})
	send(t, h, b, JoinQueueMsg{PreferredMode: ModeFFA})

	// a switches to tdm after the ffa sweep took both entries.
	send(t, h, a, JoinQueueMsg{PreferredMode: ModeTDM})
	h.matchmaker.Dequeue(b)
	if !h.createMatch(ModeFFA, []string{a, b}) {
		t.Fatal("createMatch failed")
	}

	wantState(t, h, a, StateInMatch)
	if h.matchmaker.Contains(a) {
		t.Error("matched player left behind in the tdm queue")
	}
	if h.matchmaker.QueueSize(ModeTDM) != 0 {
		t.Errorf("tdm queue size = %d", h.matchmaker.QueueSize(ModeTDM))
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	h := newTestHub(t)
	id, out := connectPlayer(t, h, "A")
	send(t, h, id, JoinQueueMsg{PreferredMode: ModeFFA})

	h.OnDisconnect(id)
	h.OnDisconnect(id)

	if _, ok := h.State(id); ok {
		t.Error("player still registered")
	}
	if h.matchmaker.Contains(id) {
		t.Error("player still queued")
	}
	if !out.closed {
		t.Error("outbound not closed")
	}
	if h.ClientCount() != 0 {
		t.Errorf("client count = %d", h.ClientCount())
	}
}

func TestDisconnectInMatchEndsRoom(t *testing.T) {
	h := newTestHub(t)
	a, b, _, outB := queuePair(t, h)
	pa, _ := h.Identity(a)

	h.OnDisconnect(a)

	if h.rooms.Get(pa.RoomID) != nil {
		t.Error("room should be torn down once below minimum")
	}
	wantState(t, h, b, StateIdle)
	if p, _ := h.Identity(b); p.RoomID != "" {
		t.Errorf("room id = %q after match end", p.RoomID)
	}
	if n := len(outB.types()); n == 0 {
		t.Fatal("survivor got nothing")
	}
	outB.last(t, MsgPlayerLeft)
	outB.last(t, MsgGameEnd)

	// Back to idle: can queue again.
	send(t, h, b, JoinQueueMsg{PreferredMode: ModeFFA})
	wantState(t, h, b, StateQueued)
}

func TestDisconnectedBeforeSweepNotMatched(t *testing.T) {
	h := newTestHub(t)
	a, _ := connectPlayer(t, h, "A")
	b, _ := connectPlayer(t, h, "B")
	c, _ := connectPlayer(t, h, "C")
	for _, id := range []string{a, b, c} {
		send(t, h, id, JoinQueueMsg{PreferredMode: ModeFFA})
	}
	h.OnDisconnect(b)
	h.matchmaker.Sweep()

	pa, _ := h.Identity(a)
	room := h.rooms.Get(pa.RoomID)
	if room == nil {
		t.Fatal("a should be in a room")
	}
	for _, id := range room.PlayerIDs() {
		if id == b {
			t.Error("disconnected player placed in room")
		}
	}
}

func TestBroadcastExcludes(t *testing.T) {
	h := newTestHub(t)
	a, outA := connectPlayer(t, h, "A")
	_, outB := connectPlayer(t, h, "B")
	before := len(outA.types())

	h.Broadcast(ErrorMsg{Code: "maintenance", Message: "restarting"}, a)
	if len(outA.types()) != before {
		t.Error("excluded player received broadcast")
	}
	outB.last(t, MsgError)
}

func TestSendDroppedCounted(t *testing.T) {
	h := newTestHub(t)
	id, out := connectPlayer(t, h, "A")
	out.mu.Lock()
	out.full = true
	out.mu.Unlock()
	h.SendToPlayer(id, PongMsg{})
	if h.metrics.SendsDropped != 1 {
		t.Errorf("dropped = %d, want 1", h.metrics.SendsDropped)
	}
}

func TestConnectionLimits(t *testing.T) {
	h := newTestHub(t)
	for i := 0; i < defaultMaxConnsPerIP; i++ {
		if !h.CanAccept("1.2.3.4") {
			t.Fatalf("connection %d refused", i)
		}
		h.TrackConnect("1.2.3.4")
	}
	if h.CanAccept("1.2.3.4") {
		t.Error("per-IP limit not enforced")
	}
	if !h.CanAccept("5.6.7.8") {
		t.Error("other IPs should be unaffected")
	}
	h.TrackDisconnect("1.2.3.4")
	if !h.CanAccept("1.2.3.4") {
		t.Error("slot not released")
	}
}
