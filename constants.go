package main

import "time"

const (
	TickRate     = 20 // simulation ticks per second
	TickDuration = time.Second / TickRate
	TickDelta    = 1.0 / float64(TickRate)
)

// Player physics and hitboxes
const (
	MaxHealth     = 100.0
	MoveSpeed     = 8.0
	JumpForce     = 5.0
	Gravity       = -20.0
	GroundHeight  = 1.0
	JumpTolerance = 0.1 // jump allowed while y <= GroundHeight+JumpTolerance
	PlayerHeight  = 1.8
	BodyRadius    = 0.4
	HeadRadius    = 0.2
	RespawnDelay  = 3 * time.Second
)

// Weapon
const (
	WeaponName         = "rifle"
	WeaponDamage       = 15.0
	HeadshotMultiplier = 2.5
	WeaponRange        = 100.0
)

// Match defaults
const (
	MinPlayers    = 2
	MaxPlayers    = 6
	MatchDuration = 300 // seconds
	CountdownSecs = 5
	ScoreToWinFFA = 20
	ScoreToWinTDM = 30
)

// Matchmaking
const (
	MatchmakingInterval = 2 * time.Second
	PingThreshold       = 50 // ms
	WaitSecsPerPlayer   = 5
)

// Character is a cosmetic skin; it has no effect on stats.
type Character struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

var characters = []Character{
	{ID: "matheus", Name: "Matheus", Color: "#e74c3c"},
	{ID: "rafael", Name: "Rafael", Color: "#3498db"},
	{ID: "jonas", Name: "Jonas", Color: "#2ecc71"},
	{ID: "valdinei", Name: "Valdinei", Color: "#9b59b6"},
	{ID: "evaldo", Name: "Evaldo", Color: "#f39c12"},
	{ID: "leon", Name: "Leon", Color: "#1abc9c"},
	{ID: "jaja", Name: "Jajá", Color: "#e91e63"},
	{ID: "davidson", Name: "Davidson", Color: "#00bcd4"},
	{ID: "josiane", Name: "Josiane", Color: "#ff5722"},
	{ID: "matias", Name: "Matias", Color: "#795548"},
	{ID: "brisa", Name: "Brisa", Color: "#607d8b"},
}

// LookupCharacter returns the character with the given id, falling back to
// the first catalogue entry for unknown ids.
func LookupCharacter(id string) Character {
	for _, c := range characters {
		if c.ID == id {
			return c
		}
	}
	return characters[0]
}
