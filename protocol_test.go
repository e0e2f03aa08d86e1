package main

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestCreateMessageTagsType(t *testing.T) {
	data, err := CreateMessage(PongMsg{Timestamp: 5, ServerTime: 9})
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, data)
	}
	if m["type"] != MsgPong {
		t.Errorf("type = %v, want %s", m["type"], MsgPong)
	}
	if m["timestamp"] != float64(5) || m["serverTime"] != float64(9) {
		t.Errorf("payload fields lost: %s", data)
	}
}

func TestCreateMessageEmptyBody(t *testing.T) {
	data, err := CreateMessage(LeaveQueueMsg{})
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if string(data) != `{"type":"leave_queue"}` {
		t.Errorf("got %s", data)
	}
}

func TestProtocolRoundTrip(t *testing.T) {
	winner := "p1"
	countdown := 3
	cases := []Message{
		ConnectMsg{PlayerName: "Alice", CharacterID: "leon"},
		PingMsg{Timestamp: 1700000000000},
		JoinQueueMsg{PreferredMode: ModeTDM},
		LeaveQueueMsg{},
		PlayerInputMsg{Input: PlayerInput{SequenceNumber: 7, Forward: true, Jump: true, Rotation: Vec2{X: 1.5, Y: -0.2}, Timestamp: 42}},
		PlayerShootMsg{Origin: Vec3{X: 1, Y: 2, Z: 3}, Direction: Vec3{Z: -1}, Timestamp: 99},
		PongMsg{Timestamp: 1, ServerTime: 2},
		QueueStatusMsg{Position: 2, PlayersInQueue: 3, EstimatedWait: 0},
		MatchFoundMsg{RoomID: "r", MapID: "warehouse", GameMode: ModeFFA, Players: []RosterEntry{{ID: "p1", Name: "A", CharacterID: "leon"}}},
		RoomStateMsg{RoomID: "r", MapID: "warehouse", GameMode: ModeTDM, Status: StatusStarting, Players: []RosterEntry{{ID: "p1", Team: TeamRed, IsReady: true}}, Countdown: &countdown},
		PlayerJoinedMsg{PlayerID: "p2", PlayerName: "B", CharacterID: "jonas", Team: TeamBlue},
		PlayerLeftMsg{PlayerID: "p2"},
		GameStartMsg{MapID: "warehouse", GameMode: ModeFFA, Duration: 300, YourSpawnPoint: Vec3{X: -10, Y: 1, Z: -10}},
		GameEndMsg{Winner: &winner, FinalScores: []FinalScore{{PlayerID: "p1", Kills: 3, Deaths: 1}}},
		GameEndMsg{FinalScores: []FinalScore{}, TeamScores: &TeamScores{Red: 4, Blue: 4}},
		GameStateMsg{Snapshot: Snapshot{
			Tick:      12,
			Timestamp: 1000,
			Players:   []PlayerState{{ID: "p1", Health: 62.5, IsAlive: true, Position: Vec3{Y: 1}}},
			Events: []GameEvent{
				{Type: EventHit, Data: HitEvent{ShooterID: "p2", TargetID: "p1", Damage: 37.5, IsHeadshot: true}},
				{Type: EventKill, Data: KillEvent{KillerID: "p2", VictimID: "p3", Weapon: WeaponName}},
				{Type: EventSpawn, Data: SpawnEvent{PlayerID: "p3", Position: Vec3{X: 10, Y: 1}}},
			},
		}},
		PlayerHitMsg{TargetID: "p1", Damage: 15, NewHealth: 85, HitPosition: Vec3{X: 1}, IsHeadshot: false},
		PlayerDeathMsg{VictimID: "p1", KillerID: "p2", RespawnTime: 3000},
		PlayerSpawnMsg{PlayerID: "p1", Position: Vec3{X: 5, Y: 1, Z: 5}, Rotation: 3.9},
		ErrorMsg{Code: "bad", Message: "nope"},
	}

	for _, want := range cases {
		t.Run(want.MessageType(), func(t *testing.T) {
			data, err := CreateMessage(want)
			if err != nil {
				t.Fatalf("CreateMessage: %v", err)
			}
			got, err := ParseMessage(data)
			if err != nil {
				t.Fatalf("ParseMessage(%s): %v", data, err)
			}
			if got.MessageType() != want.MessageType() {
				t.Fatalf("type = %s, want %s", got.MessageType(), want.MessageType())
			}
			gotVal := reflect.ValueOf(got).Elem().Interface()
			if !reflect.DeepEqual(gotVal, want) {
				t.Errorf("round trip mismatch\n got: %#v\nwant: %#v", gotVal, want)
			}
		})
	}
}

func TestParseMessageErrors(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want error
	}{
		{"not json", `{"type":`, ErrMalformedMessage},
		{"array", `[1,2]`, ErrMalformedMessage},
		{"missing type", `{"timestamp":1}`, ErrMalformedMessage},
		{"numeric type", `{"type":7}`, ErrMalformedMessage},
		{"unknown type", `{"type":"teleport"}`, ErrUnknownMessageType},
		{"reserved chat", `{"type":"chat_message","text":"hi"}`, ErrUnknownMessageType},
		{"wrong field type", `{"type":"ping","timestamp":"soon"}`, ErrMalformedMessage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseMessage([]byte(tc.raw))
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestParseMessageIgnoresUnknownFields(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"type":"ping","timestamp":10,"extra":true}`))
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	ping, ok := msg.(*PingMsg)
	if !ok {
		t.Fatalf("got %T, want *PingMsg", msg)
	}
	if ping.Timestamp != 10 {
		t.Errorf("timestamp = %d, want 10", ping.Timestamp)
	}
}

func TestGameEventUnknownType(t *testing.T) {
	var ev GameEvent
	err := json.Unmarshal([]byte(`{"type":"explode","data":{}}`), &ev)
	if !errors.Is(err, ErrUnknownMessageType) {
		t.Errorf("err = %v, want ErrUnknownMessageType", err)
	}
}

func TestGameEndNullWinner(t *testing.T) {
	data, err := CreateMessage(GameEndMsg{FinalScores: []FinalScore{}})
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	json.Unmarshal(data, &m)
	if v, ok := m["winner"]; !ok || v != nil {
		t.Errorf("winner should be present and null, got %v (present=%v)", v, ok)
	}
}
