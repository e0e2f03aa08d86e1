package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// Client -> Server message types
const (
	MsgConnect     = "connect"
	MsgPing        = "ping"
	MsgJoinQueue   = "join_queue"
	MsgLeaveQueue  = "leave_queue"
	MsgPlayerInput = "player_input"
	MsgPlayerShoot = "player_shoot"
)

// Server -> Client message types
const (
	MsgPong         = "pong"
	MsgQueueStatus  = "queue_status"
	MsgMatchFound   = "match_found"
	MsgRoomState    = "room_state"
	MsgPlayerJoined = "player_joined"
	MsgPlayerLeft   = "player_left"
	MsgGameStart    = "game_start"
	MsgGameEnd      = "game_end"
	MsgGameState    = "game_state"
	MsgPlayerHit    = "player_hit"
	MsgPlayerDeath  = "player_death"
	MsgPlayerSpawn  = "player_spawn"
	MsgError        = "error"

	// MsgChatMessage is reserved; no handler exists.
	MsgChatMessage = "chat_message"
)

const typeKey = "type"

var (
	ErrMalformedMessage   = errors.New("malformed message")
	ErrUnknownMessageType = errors.New("unknown message type")
)

// Message is any tagged record carried over the wire.
type Message interface {
	MessageType() string
}

// ---------- client -> server ----------

type ConnectMsg struct {
	PlayerName  string `json:"playerName"`
	CharacterID string `json:"characterId"`
}

type PingMsg struct {
	Timestamp int64 `json:"timestamp"`
}

type JoinQueueMsg struct {
	PreferredMode GameMode `json:"preferredMode"`
}

type LeaveQueueMsg struct{}

// PlayerInput is one sampled frame of client controls.
type PlayerInput struct {
	SequenceNumber int64 `json:"sequenceNumber"`
	Forward        bool  `json:"forward"`
	Backward       bool  `json:"backward"`
	Left           bool  `json:"left"`
	Right          bool  `json:"right"`
	Jump           bool  `json:"jump"`
	Shoot          bool  `json:"shoot"`
	Rotation       Vec2  `json:"rotation"`
	Timestamp      int64 `json:"timestamp"`
}

type PlayerInputMsg struct {
	Input PlayerInput `json:"input"`
}

type PlayerShootMsg struct {
	Origin    Vec3  `json:"origin"`
	Direction Vec3  `json:"direction"`
	Timestamp int64 `json:"timestamp"`
}

// ---------- server -> client ----------

type PongMsg struct {
	Timestamp  int64 `json:"timestamp"`
	ServerTime int64 `json:"serverTime"`
}

type QueueStatusMsg struct {
	Position       int `json:"position"`
	PlayersInQueue int `json:"playersInQueue"`
	EstimatedWait  int `json:"estimatedWait"` // seconds
}

// RosterEntry describes a room member in lobby-level messages.
type RosterEntry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CharacterID string `json:"characterId"`
	Team        Team   `json:"team,omitempty"`
	IsReady     bool   `json:"isReady,omitempty"`
}

type MatchFoundMsg struct {
	RoomID   string        `json:"roomId"`
	MapID    string        `json:"mapId"`
	GameMode GameMode      `json:"gameMode"`
	Players  []RosterEntry `json:"players"`
}

type RoomStateMsg struct {
	RoomID    string        `json:"roomId"`
	MapID     string        `json:"mapId"`
	GameMode  GameMode      `json:"gameMode"`
	Status    RoomStatus    `json:"status"`
	Players   []RosterEntry `json:"players"`
	Countdown *int          `json:"countdown,omitempty"`
}

type PlayerJoinedMsg struct {
	PlayerID    string `json:"playerId"`
	PlayerName  string `json:"playerName"`
	CharacterID string `json:"characterId"`
	Team        Team   `json:"team,omitempty"`
}

type PlayerLeftMsg struct {
	PlayerID string `json:"playerId"`
}

type GameStartMsg struct {
	MapID          string   `json:"mapId"`
	GameMode       GameMode `json:"gameMode"`
	Duration       int      `json:"duration"`
	YourSpawnPoint Vec3     `json:"yourSpawnPoint"`
}

type FinalScore struct {
	PlayerID string `json:"playerId"`
	Kills    int    `json:"kills"`
	Deaths   int    `json:"deaths"`
}

type TeamScores struct {
	Red  int `json:"red"`
	Blue int `json:"blue"`
}

// GameEndMsg.Winner is a player id (ffa), a team name (tdm) or nil for a draw.
type GameEndMsg struct {
	Winner      *string      `json:"winner"`
	FinalScores []FinalScore `json:"finalScores"`
	TeamScores  *TeamScores  `json:"teamScores,omitempty"`
}

type GameStateMsg struct {
	Snapshot Snapshot `json:"snapshot"`
}

// Snapshot is the complete world state broadcast at the end of a tick.
type Snapshot struct {
	Tick      uint64        `json:"tick"`
	Timestamp int64         `json:"timestamp"`
	Players   []PlayerState `json:"players"`
	Events    []GameEvent   `json:"events"`
}

type PlayerHitMsg struct {
	TargetID    string  `json:"targetId"`
	Damage      float64 `json:"damage"`
	NewHealth   float64 `json:"newHealth"`
	HitPosition Vec3    `json:"hitPosition"`
	IsHeadshot  bool    `json:"isHeadshot"`
}

type PlayerDeathMsg struct {
	VictimID    string `json:"victimId"`
	KillerID    string `json:"killerId"`
	RespawnTime int64  `json:"respawnTime"` // ms
}

type PlayerSpawnMsg struct {
	PlayerID string  `json:"playerId"`
	Position Vec3    `json:"position"`
	Rotation float64 `json:"rotation"`
}

type ErrorMsg struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (ConnectMsg) MessageType() string      { return MsgConnect }
func (PingMsg) MessageType() string         { return MsgPing }
func (JoinQueueMsg) MessageType() string    { return MsgJoinQueue }
func (LeaveQueueMsg) MessageType() string   { return MsgLeaveQueue }
func (PlayerInputMsg) MessageType() string  { return MsgPlayerInput }
func (PlayerShootMsg) MessageType() string  { return MsgPlayerShoot }
func (PongMsg) MessageType() string         { return MsgPong }
func (QueueStatusMsg) MessageType() string  { return MsgQueueStatus }
func (MatchFoundMsg) MessageType() string   { return MsgMatchFound }
func (RoomStateMsg) MessageType() string    { return MsgRoomState }
func (PlayerJoinedMsg) MessageType() string { return MsgPlayerJoined }
func (PlayerLeftMsg) MessageType() string   { return MsgPlayerLeft }
func (GameStartMsg) MessageType() string    { return MsgGameStart }
func (GameEndMsg) MessageType() string      { return MsgGameEnd }
func (GameStateMsg) MessageType() string    { return MsgGameState }
func (PlayerHitMsg) MessageType() string    { return MsgPlayerHit }
func (PlayerDeathMsg) MessageType() string  { return MsgPlayerDeath }
func (PlayerSpawnMsg) MessageType() string  { return MsgPlayerSpawn }
func (ErrorMsg) MessageType() string        { return MsgError }

// ---------- snapshot events ----------

const (
	EventHit   = "hit"
	EventKill  = "kill"
	EventSpawn = "spawn"
)

type HitEvent struct {
	ShooterID   string  `json:"shooterId"`
	TargetID    string  `json:"targetId"`
	Damage      float64 `json:"damage"`
	HitPosition Vec3    `json:"hitPosition"`
	IsHeadshot  bool    `json:"isHeadshot"`
}

type KillEvent struct {
	KillerID string `json:"killerId"`
	VictimID string `json:"victimId"`
	Weapon   string `json:"weapon"`
}

type SpawnEvent struct {
	PlayerID string `json:"playerId"`
	Position Vec3   `json:"position"`
}

// GameEvent is a tagged union; Data holds a HitEvent, KillEvent or SpawnEvent value.
type GameEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func (e *GameEvent) UnmarshalJSON(raw []byte) error {
	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return err
	}
	e.Type = env.Type
	switch env.Type {
	case EventHit:
		var d HitEvent
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return err
		}
		e.Data = d
	case EventKill:
		var d KillEvent
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return err
		}
		e.Data = d
	case EventSpawn:
		var d SpawnEvent
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return err
		}
		e.Data = d
	default:
		return fmt.Errorf("event %q: %w", env.Type, ErrUnknownMessageType)
	}
	return nil
}

// ---------- codec ----------

// CreateMessage encodes msg as a JSON object tagged with its type.
func CreateMessage(msg Message) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("%s: %w", msg.MessageType(), ErrMalformedMessage)
	}
	tag, _ := json.Marshal(msg.MessageType())

	var buf bytes.Buffer
	buf.Grow(len(body) + len(tag) + 10)
	buf.WriteString(`{"type":`)
	buf.Write(tag)
	if rest := bytes.TrimSpace(body[1:]); len(rest) > 1 {
		buf.WriteByte(',')
	}
	buf.Write(body[1:])
	return buf.Bytes(), nil
}

var decoders = map[string]func() Message{
	MsgConnect:      func() Message { return &ConnectMsg{} },
	MsgPing:         func() Message { return &PingMsg{} },
	MsgJoinQueue:    func() Message { return &JoinQueueMsg{} },
	MsgLeaveQueue:   func() Message { return &LeaveQueueMsg{} },
	MsgPlayerInput:  func() Message { return &PlayerInputMsg{} },
	MsgPlayerShoot:  func() Message { return &PlayerShootMsg{} },
	MsgPong:         func() Message { return &PongMsg{} },
	MsgQueueStatus:  func() Message { return &QueueStatusMsg{} },
	MsgMatchFound:   func() Message { return &MatchFoundMsg{} },
	MsgRoomState:    func() Message { return &RoomStateMsg{} },
	MsgPlayerJoined: func() Message { return &PlayerJoinedMsg{} },
	MsgPlayerLeft:   func() Message { return &PlayerLeftMsg{} },
	MsgGameStart:    func() Message { return &GameStartMsg{} },
	MsgGameEnd:      func() Message { return &GameEndMsg{} },
	MsgGameState:    func() Message { return &GameStateMsg{} },
	MsgPlayerHit:    func() Message { return &PlayerHitMsg{} },
	MsgPlayerDeath:  func() Message { return &PlayerDeathMsg{} },
	MsgPlayerSpawn:  func() Message { return &PlayerSpawnMsg{} },
	MsgError:        func() Message { return &ErrorMsg{} },
}

// ParseMessage decodes a tagged JSON object into its concrete message type.
// The returned Message is a pointer to the concrete struct.
func ParseMessage(raw []byte) (Message, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrMalformedMessage
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, ErrMalformedMessage
	}
	kind := root.Get(typeKey)
	if kind.Type != gjson.String {
		return nil, fmt.Errorf("missing %s: %w", typeKey, ErrMalformedMessage)
	}
	newMsg, ok := decoders[kind.Str]
	if !ok {
		return nil, fmt.Errorf("%q: %w", kind.Str, ErrUnknownMessageType)
	}
	msg := newMsg()
	if err := json.Unmarshal(raw, msg); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", kind.Str, ErrMalformedMessage, err)
	}
	return msg, nil
}
