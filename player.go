package main

import "math"

// PlayerState is a player's per-match record. It is also the wire form used
// in snapshots.
type PlayerState struct {
	ID          string  `json:"id"`
	CharacterID string  `json:"characterId"`
	Position    Vec3    `json:"position"`
	Rotation    Vec2    `json:"rotation"`
	Velocity    Vec3    `json:"velocity"`
	Health      float64 `json:"health"`
	IsAlive     bool    `json:"isAlive"`
	Kills       int     `json:"kills"`
	Deaths      int     `json:"deaths"`
	Team        Team    `json:"team,omitempty"`
}

// NewPlayerState creates a live player at spawn
func NewPlayerState(id, characterID string, team Team, spawn SpawnPoint) *PlayerState {
	p := &PlayerState{
		ID:          id,
		CharacterID: characterID,
		Team:        team,
	}
	p.Respawn(spawn)
	return p
}

// Respawn moves the player to spawn with full health and zero velocity.
func (p *PlayerState) Respawn(spawn SpawnPoint) {
	p.Position = spawn.Position
	p.Rotation = Vec2{X: spawn.Yaw}
	p.Velocity = Vec3{}
	p.Health = MaxHealth
	p.IsAlive = true
}

// TakeDamage subtracts amount, clamping health to [0, MaxHealth]. Returns
// true if this damage killed the player. Dead players take no damage.
func (p *PlayerState) TakeDamage(amount float64) bool {
	if !p.IsAlive || !isFinite(amount) || amount <= 0 {
		return false
	}
	p.Health = Clamp(p.Health-amount, 0, MaxHealth)
	return p.Health == 0
}

// Kill marks the player dead and records the death.
func (p *PlayerState) Kill() {
	p.Health = 0
	p.IsAlive = false
	p.Velocity = Vec3{}
	p.Deaths++
}

// movementVector converts directional flags into a horizontal unit vector
// relative to yaw. Opposing flags cancel; the result has length 0 or 1.
func movementVector(yaw float64, in PlayerInput) (x, z float64) {
	sin, cos := math.Sincos(yaw)
	if in.Forward {
		x -= sin
		z -= cos
	}
	if in.Backward {
		x += sin
		z += cos
	}
	if in.Left {
		x -= cos
		z += sin
	}
	if in.Right {
		x += cos
		z -= sin
	}
	l := math.Hypot(x, z)
	if l < 1e-9 {
		return 0, 0
	}
	return x / l, z / l
}

// ApplyInput integrates one tick of movement. Dead players are skipped.
func (p *PlayerState) ApplyInput(in PlayerInput, dt float64) {
	if !p.IsAlive {
		return
	}
	if isFinite(in.Rotation.X) && isFinite(in.Rotation.Y) {
		p.Rotation = in.Rotation
	}

	mx, mz := movementVector(p.Rotation.X, in)
	p.Velocity.X = mx * MoveSpeed
	p.Velocity.Z = mz * MoveSpeed

	if in.Jump && p.Position.Y <= GroundHeight+JumpTolerance {
		p.Velocity.Y = JumpForce
	}
	p.Velocity.Y += Gravity * dt

	p.Position = p.Position.Add(p.Velocity.Scale(dt))

	if p.Position.Y < GroundHeight {
		p.Position.Y = GroundHeight
		p.Velocity.Y = 0
	}
}

// HeadCenter is the center of the head hitbox
func (p *PlayerState) HeadCenter() Vec3 {
	return p.Position.Add(Vec3{Y: PlayerHeight - HeadRadius})
}
