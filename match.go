package main

import "time"

// GameMode defines the type of match
type GameMode string

const (
	ModeFFA GameMode = "ffa"
	ModeTDM GameMode = "tdm"
)

// Valid reports whether m is a supported mode
func (m GameMode) Valid() bool {
	return m == ModeFFA || m == ModeTDM
}

// IsTeamMode returns whether the game mode uses teams
func (m GameMode) IsTeamMode() bool {
	return m == ModeTDM
}

// RoomStatus is the lifecycle phase of a room. Ended is terminal.
type RoomStatus string

const (
	StatusWaiting  RoomStatus = "waiting"
	StatusStarting RoomStatus = "starting"
	StatusPlaying  RoomStatus = "playing"
	StatusEnded    RoomStatus = "ended"
)

// Team is empty outside team mode
type Team string

const (
	TeamNone Team = ""
	TeamRed  Team = "red"
	TeamBlue Team = "blue"
)

// RoomConfig holds settings for a match
type RoomConfig struct {
	Mode         GameMode
	MapID        string // empty picks a random map
	MinPlayers   int
	MaxPlayers   int
	Duration     int // seconds
	Countdown    int // seconds
	ScoreToWin   int // kills (ffa) or team kills (tdm)
	RespawnDelay time.Duration
	// MaxPendingInputs bounds each player's input backlog. The queue is lossy
	// under flood: past the bound the oldest samples are dropped.
	MaxPendingInputs int
}

// DefaultRoomConfig returns default config for the given mode
func DefaultRoomConfig(mode GameMode) RoomConfig {
	cfg := RoomConfig{
		Mode:             ModeFFA,
		MinPlayers:       MinPlayers,
		MaxPlayers:       MaxPlayers,
		Duration:         MatchDuration,
		Countdown:        CountdownSecs,
		ScoreToWin:       ScoreToWinFFA,
		RespawnDelay:     RespawnDelay,
		MaxPendingInputs: 2 * TickRate,
	}
	if mode == ModeTDM {
		cfg.Mode = ModeTDM
		cfg.ScoreToWin = ScoreToWinTDM
	}
	return cfg
}

// assignTeam auto-balances a new player to the smaller team
func assignTeam(mode GameMode, players map[string]*PlayerState) Team {
	if !mode.IsTeamMode() {
		return TeamNone
	}
	red, blue := 0, 0
	for _, p := range players {
		switch p.Team {
		case TeamRed:
			red++
		case TeamBlue:
			blue++
		}
	}
	if red <= blue {
		return TeamRed
	}
	return TeamBlue
}
