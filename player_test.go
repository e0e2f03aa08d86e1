package main

import (
	"math"
	"testing"

	"pgregory.net/rapid"
)

func newTestPlayer() *PlayerState {
	return NewPlayerState("p1", "leon", TeamNone, sp(0, GroundHeight, 0, 0))
}

func TestPlayerSpawnsAlive(t *testing.T) {
	p := NewPlayerState("p1", "leon", TeamRed, sp(3, 1, -4, 1.2))
	if !p.IsAlive || p.Health != MaxHealth {
		t.Errorf("new player should be alive at full health, got alive=%v health=%v", p.IsAlive, p.Health)
	}
	if p.Position != (Vec3{X: 3, Y: 1, Z: -4}) {
		t.Errorf("position = %+v", p.Position)
	}
	if p.Rotation.X != 1.2 {
		t.Errorf("yaw = %v, want 1.2", p.Rotation.X)
	}
	if p.Team != TeamRed {
		t.Errorf("team = %q", p.Team)
	}
}

func TestTakeDamageKills(t *testing.T) {
	p := newTestPlayer()
	if p.TakeDamage(WeaponDamage) {
		t.Fatal("one body shot should not kill")
	}
	if p.Health != MaxHealth-WeaponDamage {
		t.Errorf("health = %v, want %v", p.Health, MaxHealth-WeaponDamage)
	}
	if !p.TakeDamage(500) {
		t.Fatal("overkill should report death")
	}
	if p.Health != 0 {
		t.Errorf("health should clamp at 0, got %v", p.Health)
	}
}

func TestTakeDamageIgnoresBadAmounts(t *testing.T) {
	p := newTestPlayer()
	for _, amt := range []float64{0, -10, math.NaN(), math.Inf(1)} {
		if p.TakeDamage(amt) {
			t.Errorf("TakeDamage(%v) reported a kill", amt)
		}
	}
	if p.Health != MaxHealth {
		t.Errorf("health changed to %v", p.Health)
	}
}

func TestDeadPlayerTakesNoDamage(t *testing.T) {
	p := newTestPlayer()
	p.Kill()
	if p.TakeDamage(10) {
		t.Error("dead player should not die again")
	}
	if p.Deaths != 1 {
		t.Errorf("deaths = %d, want 1", p.Deaths)
	}
}

func TestRespawnRestores(t *testing.T) {
	p := newTestPlayer()
	p.Velocity = Vec3{X: 3}
	p.Kill()
	p.Respawn(sp(10, 1, 10, 3.9))
	if !p.IsAlive || p.Health != MaxHealth || p.Velocity != (Vec3{}) {
		t.Errorf("respawn did not reset: %+v", p)
	}
	if p.Deaths != 1 {
		t.Error("respawn must keep the death count")
	}
}

func TestApplyInputForward(t *testing.T) {
	p := newTestPlayer()
	p.ApplyInput(PlayerInput{Forward: true}, TickDelta)
	// yaw 0 faces -Z
	wantZ := -MoveSpeed * TickDelta
	if math.Abs(p.Position.Z-wantZ) > 1e-9 || math.Abs(p.Position.X) > 1e-9 {
		t.Errorf("position = %+v, want z=%v", p.Position, wantZ)
	}
	if p.Position.Y != GroundHeight {
		t.Errorf("should stay on the ground, y = %v", p.Position.Y)
	}
}

func TestApplyInputDiagonalNotFaster(t *testing.T) {
	p := newTestPlayer()
	p.ApplyInput(PlayerInput{Forward: true, Right: true}, TickDelta)
	dist := math.Hypot(p.Position.X, p.Position.Z)
	if math.Abs(dist-MoveSpeed*TickDelta) > 1e-9 {
		t.Errorf("diagonal distance = %v, want %v", dist, MoveSpeed*TickDelta)
	}
}

func TestApplyInputOpposingCancel(t *testing.T) {
	p := newTestPlayer()
	p.ApplyInput(PlayerInput{Forward: true, Backward: true, Left: true, Right: true}, TickDelta)
	if p.Position.X != 0 || p.Position.Z != 0 {
		t.Errorf("opposing keys should cancel, got %+v", p.Position)
	}
}

func TestApplyInputJumpAndLand(t *testing.T) {
	p := newTestPlayer()
	p.ApplyInput(PlayerInput{Jump: true}, TickDelta)
	if p.Position.Y <= GroundHeight {
		t.Fatalf("jump should leave the ground, y = %v", p.Position.Y)
	}

	// Airborne: a second jump does nothing extra.
	p.ApplyInput(PlayerInput{}, TickDelta)
	p.ApplyInput(PlayerInput{}, TickDelta)
	vy := p.Velocity.Y
	p.ApplyInput(PlayerInput{Jump: true}, TickDelta)
	if p.Velocity.Y > vy {
		t.Error("mid-air jump should be ignored")
	}

	for i := 0; i < 2*TickRate; i++ {
		p.ApplyInput(PlayerInput{}, TickDelta)
	}
	if p.Position.Y != GroundHeight || p.Velocity.Y != 0 {
		t.Errorf("should have landed, y=%v vy=%v", p.Position.Y, p.Velocity.Y)
	}
}

func TestApplyInputIgnoresNonFiniteRotation(t *testing.T) {
	p := newTestPlayer()
	p.ApplyInput(PlayerInput{Rotation: Vec2{X: math.NaN(), Y: 0}}, TickDelta)
	if p.Rotation.X != 0 {
		t.Errorf("rotation = %+v", p.Rotation)
	}
}

func TestApplyInputDeadPlayer(t *testing.T) {
	p := newTestPlayer()
	p.Kill()
	before := p.Position
	p.ApplyInput(PlayerInput{Forward: true, Jump: true}, TickDelta)
	if p.Position != before {
		t.Error("dead player moved")
	}
}

func TestHealthStaysInRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := newTestPlayer()
		hits := rapid.SliceOfN(rapid.Float64Range(-50, 200), 0, 20).Draw(t, "hits")
		for _, h := range hits {
			p.TakeDamage(h)
			if p.Health < 0 || p.Health > MaxHealth {
				t.Fatalf("health %v out of range", p.Health)
			}
		}
	})
}

func TestMovementVectorUnitOrZero(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		yaw := rapid.Float64Range(-4*math.Pi, 4*math.Pi).Draw(t, "yaw")
		in := PlayerInput{
			Forward:  rapid.Bool().Draw(t, "forward"),
			Backward: rapid.Bool().Draw(t, "backward"),
			Left:     rapid.Bool().Draw(t, "left"),
			Right:    rapid.Bool().Draw(t, "right"),
		}
		x, z := movementVector(yaw, in)
		l := math.Hypot(x, z)
		if l != 0 && math.Abs(l-1) > 1e-9 {
			t.Fatalf("|move| = %v, want 0 or 1", l)
		}
	})
}

func TestPlayerNeverBelowGround(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := newTestPlayer()
		n := rapid.IntRange(1, 100).Draw(t, "ticks")
		for i := 0; i < n; i++ {
			p.ApplyInput(PlayerInput{
				Forward: rapid.Bool().Draw(t, "forward"),
				Jump:    rapid.Bool().Draw(t, "jump"),
			}, TickDelta)
			if p.Position.Y < GroundHeight {
				t.Fatalf("tick %d: y = %v below ground", i, p.Position.Y)
			}
		}
	})
}
