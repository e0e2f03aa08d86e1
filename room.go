package main

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"
)

var (
	ErrRoomFull     = errors.New("room full")
	ErrRoomEnded    = errors.New("room ended")
	ErrPlayerInRoom = errors.New("player already in room")
)

// Messenger delivers encoded messages to individual players. SendRaw must
// not block; unknown players are ignored.
type Messenger interface {
	SendRaw(playerID string, data []byte)
}

// SnapshotSink receives every snapshot a room broadcasts.
type SnapshotSink interface {
	RecordSnapshot(roomID string, snap Snapshot)
}

// MatchResult summarizes a finished room
type MatchResult struct {
	RoomID     string
	Mode       GameMode
	MapID      string
	Winner     string // player id, team name, or empty for no winner
	Scores     []FinalScore
	Names      map[string]string // player id -> display name
	Teams      map[string]Team
	TeamScores *TeamScores
	StartedAt  time.Time
	EndedAt    time.Time
}

type roomPlayer struct {
	name        string
	characterID string
	state       *PlayerState
	pending     []PlayerInput
	lastSeq     int64
	seenSeq     bool
}

// Room holds the state for one match
type Room struct {
	ID    string
	Mode  GameMode
	MapID string

	cfg     RoomConfig
	mapData *MapData
	out     Messenger
	sched   *Scheduler
	rng     *rand.Rand

	// Optional collaborators, set before Run.
	metrics *Metrics
	sink    SnapshotSink
	onEnd   func(*Room, MatchResult)

	mu            sync.Mutex
	status        RoomStatus
	players       map[string]*roomPlayer
	order         []string // join order
	countdown     int
	timeRemaining int
	tick          uint64
	phaseTicks    int
	teamScores    TeamScores
	events        []GameEvent
	startedAt     time.Time
	result        MatchResult

	stop chan struct{}
}

// NewRoom creates a room in the waiting state. cfg.MapID selects the map;
// an unknown or empty id picks one at random.
func NewRoom(id string, cfg RoomConfig, out Messenger, sched *Scheduler) *Room {
	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	md, ok := GetMap(cfg.MapID)
	if !ok {
		md = &mapList[rng.IntN(len(mapList))]
	}
	if !cfg.Mode.Valid() {
		cfg.Mode = ModeFFA
	}
	return &Room{
		ID:            id,
		Mode:          cfg.Mode,
		MapID:         md.ID,
		cfg:           cfg,
		mapData:       md,
		out:           out,
		sched:         sched,
		rng:           rng,
		status:        StatusWaiting,
		players:       make(map[string]*roomPlayer),
		countdown:     cfg.Countdown,
		timeRemaining: cfg.Duration,
		stop:          make(chan struct{}),
	}
}

// Run drives the fixed-rate tick loop until Stop is called or ctx is done.
func (r *Room) Run(ctx context.Context) {
	ticker := time.NewTicker(TickDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.update()
		case <-r.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop terminates the tick loop. Safe to call more than once.
func (r *Room) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
}

// withLock runs fn under the room lock and fires onEnd after unlocking if
// fn moved the room into the ended state.
func (r *Room) withLock(fn func()) {
	r.mu.Lock()
	before := r.status
	fn()
	justEnded := before != StatusEnded && r.status == StatusEnded
	res := r.result
	r.mu.Unlock()

	if justEnded && r.onEnd != nil {
		r.onEnd(r, res)
	}
}

// AddPlayer spawns a player into the room and starts the countdown once the
// minimum player count is reached.
func (r *Room) AddPlayer(id, name, characterID string) error {
	var err error
	r.withLock(func() {
		switch {
		case r.status == StatusEnded:
			err = ErrRoomEnded
			return
		case len(r.players) >= r.cfg.MaxPlayers:
			err = ErrRoomFull
			return
		}
		if _, ok := r.players[id]; ok {
			err = ErrPlayerInRoom
			return
		}

		team := assignTeam(r.Mode, r.statesByID())
		p := &roomPlayer{
			name:        name,
			characterID: characterID,
			state:       NewPlayerState(id, characterID, team, r.pickSpawn(team)),
		}
		r.players[id] = p
		r.order = append(r.order, id)

		r.broadcast(PlayerJoinedMsg{
			PlayerID:    id,
			PlayerName:  name,
			CharacterID: characterID,
			Team:        team,
		}, "")
		r.send(id, r.roomState())

		if r.status == StatusWaiting && len(r.players) >= r.cfg.MinPlayers {
			r.startCountdown()
		}
	})
	return err
}

// RemovePlayer removes a player. Returns false if the player was not present.
// Dropping below the minimum while starting or playing ends the match.
func (r *Room) RemovePlayer(id string) bool {
	removed := false
	r.withLock(func() {
		if _, ok := r.players[id]; !ok {
			return
		}
		removed = true
		delete(r.players, id)
		for i, pid := range r.order {
			if pid == id {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
		if r.sched != nil {
			r.sched.Cancel(TaskKey{RoomID: r.ID, PlayerID: id})
		}

		r.broadcast(PlayerLeftMsg{PlayerID: id}, "")

		if (r.status == StatusStarting || r.status == StatusPlaying) && len(r.players) < r.cfg.MinPlayers {
			r.endGame()
		}
	})
	return removed
}

// End forces the match into the ended state
func (r *Room) End() {
	r.withLock(func() {
		if r.status != StatusEnded {
			r.endGame()
		}
	})
}

// HandleInput queues one input sample for the next ticks
func (r *Room) HandleInput(id string, in PlayerInput) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[id]
	if !ok || r.status != StatusPlaying || !p.state.IsAlive {
		return
	}
	if p.seenSeq && in.SequenceNumber <= p.lastSeq {
		r.metrics.IncInputStale()
		return
	}
	p.lastSeq = in.SequenceNumber
	p.seenSeq = true

	p.pending = append(p.pending, in)
	if limit := r.cfg.MaxPendingInputs; limit > 0 && len(p.pending) > limit {
		p.pending = p.pending[len(p.pending)-limit:]
		r.metrics.IncInputOverflow()
	}
	r.metrics.IncInputAccepted()
}

// HandleShoot resolves a hit-scan shot from the given player
func (r *Room) HandleShoot(id string, origin, dir Vec3) {
	r.withLock(func() {
		shooter, ok := r.players[id]
		if !ok || !shooter.state.IsAlive || r.status != StatusPlaying {
			return
		}
		r.metrics.IncShot()

		hit, ok := Raycast(origin, dir, id, r.orderedStates(), WeaponRange)
		if !ok {
			return
		}
		target, ok := r.players[hit.TargetID]
		if !ok {
			return
		}

		damage := WeaponDamage
		if hit.IsHeadshot {
			damage *= HeadshotMultiplier
		}
		died := target.state.TakeDamage(damage)
		r.metrics.IncHit(hit.IsHeadshot)

		r.events = append(r.events, GameEvent{Type: EventHit, Data: HitEvent{
			ShooterID:   id,
			TargetID:    hit.TargetID,
			Damage:      damage,
			HitPosition: hit.Point,
			IsHeadshot:  hit.IsHeadshot,
		}})
		r.broadcast(PlayerHitMsg{
			TargetID:    hit.TargetID,
			Damage:      damage,
			NewHealth:   target.state.Health,
			HitPosition: hit.Point,
			IsHeadshot:  hit.IsHeadshot,
		}, "")

		if died {
			r.handleDeath(hit.TargetID, target, id, shooter)
		}
	})
}

func (r *Room) handleDeath(victimID string, victim *roomPlayer, killerID string, killer *roomPlayer) {
	victim.state.Kill()
	victim.pending = nil
	killer.state.Kills++
	if r.Mode.IsTeamMode() {
		switch killer.state.Team {
		case TeamRed:
			r.teamScores.Red++
		case TeamBlue:
			r.teamScores.Blue++
		}
	}
	r.metrics.IncKill()

	r.events = append(r.events, GameEvent{Type: EventKill, Data: KillEvent{
		KillerID: killerID,
		VictimID: victimID,
		Weapon:   WeaponName,
	}})
	r.broadcast(PlayerDeathMsg{
		VictimID:    victimID,
		KillerID:    killerID,
		RespawnTime: r.cfg.RespawnDelay.Milliseconds(),
	}, "")

	if r.sched != nil {
		r.sched.Schedule(TaskKey{RoomID: r.ID, PlayerID: victimID}, r.cfg.RespawnDelay, func() {
			r.respawn(victimID)
		})
	}

	r.checkWin()
}

// respawn runs from the scheduler; the room may have ended or the player
// left in the meantime.
func (r *Room) respawn(id string) {
	r.withLock(func() {
		p, ok := r.players[id]
		if !ok || r.status != StatusPlaying || p.state.IsAlive {
			return
		}
		spawn := r.pickSpawn(p.state.Team)
		p.state.Respawn(spawn)
		p.pending = nil

		r.events = append(r.events, GameEvent{Type: EventSpawn, Data: SpawnEvent{
			PlayerID: id,
			Position: spawn.Position,
		}})
		r.broadcast(PlayerSpawnMsg{
			PlayerID: id,
			Position: spawn.Position,
			Rotation: spawn.Yaw,
		}, "")
	})
}

func (r *Room) checkWin() {
	if r.status != StatusPlaying {
		return
	}
	if r.Mode.IsTeamMode() {
		if r.teamScores.Red >= r.cfg.ScoreToWin || r.teamScores.Blue >= r.cfg.ScoreToWin {
			r.endGame()
		}
		return
	}
	for _, p := range r.players {
		if p.state.Kills >= r.cfg.ScoreToWin {
			r.endGame()
			return
		}
	}
}

// update runs one simulation tick
func (r *Room) update() {
	start := time.Now()
	r.withLock(r.step)
	r.metrics.AddTick(time.Since(start).Nanoseconds())
}

func (r *Room) step() {
	r.tick++
	switch r.status {
	case StatusStarting:
		r.phaseTicks++
		if r.phaseTicks%TickRate != 0 {
			return
		}
		r.countdown--
		if r.countdown <= 0 {
			r.startGame()
			return
		}
		r.broadcast(r.roomState(), "")

	case StatusPlaying:
		r.phaseTicks++
		if r.phaseTicks%TickRate == 0 {
			r.timeRemaining--
			if r.timeRemaining <= 0 {
				r.endGame()
				return
			}
		}
		for _, id := range r.order {
			p := r.players[id]
			if len(p.pending) == 0 {
				continue
			}
			in := p.pending[0]
			p.pending = p.pending[1:]
			p.state.ApplyInput(in, TickDelta)
		}
		r.broadcastSnapshot()
	}
}

func (r *Room) startCountdown() {
	r.status = StatusStarting
	r.countdown = r.cfg.Countdown
	r.phaseTicks = 0
	r.broadcast(r.roomState(), "")
}

func (r *Room) startGame() {
	r.status = StatusPlaying
	r.timeRemaining = r.cfg.Duration
	r.phaseTicks = 0
	r.startedAt = time.Now()

	for _, id := range r.order {
		p := r.players[id]
		spawn := r.pickSpawn(p.state.Team)
		p.state.Respawn(spawn)
		p.pending = nil
		r.send(id, GameStartMsg{
			MapID:          r.MapID,
			GameMode:       r.Mode,
			Duration:       r.cfg.Duration,
			YourSpawnPoint: spawn.Position,
		})
	}
}

func (r *Room) endGame() {
	r.status = StatusEnded
	if r.sched != nil {
		r.sched.CancelRoom(r.ID)
	}

	scores := make([]FinalScore, 0, len(r.order))
	names := make(map[string]string, len(r.order))
	teams := make(map[string]Team, len(r.order))
	for _, id := range r.order {
		p := r.players[id]
		p.pending = nil
		scores = append(scores, FinalScore{PlayerID: id, Kills: p.state.Kills, Deaths: p.state.Deaths})
		names[id] = p.name
		teams[id] = p.state.Team
	}

	winner := r.winner()
	msg := GameEndMsg{FinalScores: scores}
	if winner != "" {
		msg.Winner = &winner
	}
	if r.Mode.IsTeamMode() {
		ts := r.teamScores
		msg.TeamScores = &ts
	}
	r.broadcast(msg, "")

	r.result = MatchResult{
		RoomID:     r.ID,
		Mode:       r.Mode,
		MapID:      r.MapID,
		Winner:     winner,
		Scores:     scores,
		Names:      names,
		Teams:      teams,
		TeamScores: msg.TeamScores,
		StartedAt:  r.startedAt,
		EndedAt:    time.Now(),
	}
}

// winner returns the best team (tdm) or the player with the unique highest
// non-zero kill count (ffa). Empty means no winner.
func (r *Room) winner() string {
	if r.Mode.IsTeamMode() {
		switch {
		case r.teamScores.Red > r.teamScores.Blue:
			return string(TeamRed)
		case r.teamScores.Blue > r.teamScores.Red:
			return string(TeamBlue)
		}
		return ""
	}
	best, bestKills, tied := "", 0, false
	for _, id := range r.order {
		k := r.players[id].state.Kills
		switch {
		case k > bestKills:
			best, bestKills, tied = id, k, false
		case k == bestKills && k > 0:
			tied = true
		}
	}
	if tied {
		return ""
	}
	return best
}

func (r *Room) broadcastSnapshot() {
	snap := Snapshot{
		Tick:      r.tick,
		Timestamp: time.Now().UnixMilli(),
		Players:   make([]PlayerState, 0, len(r.order)),
		Events:    make([]GameEvent, len(r.events)),
	}
	for _, id := range r.order {
		snap.Players = append(snap.Players, *r.players[id].state)
	}
	copy(snap.Events, r.events)
	r.events = r.events[:0]

	r.broadcast(GameStateMsg{Snapshot: snap}, "")
	if r.sink != nil {
		r.sink.RecordSnapshot(r.ID, snap)
	}
}

// pickSpawn chooses uniformly among the spawn points valid for team.
func (r *Room) pickSpawn(team Team) SpawnPoint {
	points := r.mapData.SpawnPointsFor(team)
	if len(points) == 0 {
		points = r.mapData.SpawnPoints
	}
	return points[r.rng.IntN(len(points))]
}

func (r *Room) roomState() RoomStateMsg {
	msg := RoomStateMsg{
		RoomID:   r.ID,
		MapID:    r.MapID,
		GameMode: r.Mode,
		Status:   r.status,
		Players:  r.roster(true),
	}
	if r.status == StatusStarting {
		c := r.countdown
		msg.Countdown = &c
	}
	return msg
}

func (r *Room) roster(ready bool) []RosterEntry {
	out := make([]RosterEntry, 0, len(r.order))
	for _, id := range r.order {
		p := r.players[id]
		out = append(out, RosterEntry{
			ID:          id,
			Name:        p.name,
			CharacterID: p.characterID,
			Team:        p.state.Team,
			IsReady:     ready,
		})
	}
	return out
}

func (r *Room) orderedStates() []*PlayerState {
	out := make([]*PlayerState, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.players[id].state)
	}
	return out
}

func (r *Room) statesByID() map[string]*PlayerState {
	out := make(map[string]*PlayerState, len(r.players))
	for id, p := range r.players {
		out[id] = p.state
	}
	return out
}

// send and broadcast encode once and hand off to the Messenger. Callers
// hold r.mu; r.order is not mutated while iterating.
func (r *Room) send(id string, msg Message) {
	data, err := CreateMessage(msg)
	if err != nil {
		Log.Errorw("encode message", "room", r.ID, "type", msg.MessageType(), "err", err)
		return
	}
	r.out.SendRaw(id, data)
}

func (r *Room) broadcast(msg Message, exclude string) {
	data, err := CreateMessage(msg)
	if err != nil {
		Log.Errorw("encode message", "room", r.ID, "type", msg.MessageType(), "err", err)
		return
	}
	for _, id := range r.order {
		if id != exclude {
			r.out.SendRaw(id, data)
		}
	}
}

// ---------- read accessors ----------

// RoomInfo is a summary for listings
type RoomInfo struct {
	ID            string     `json:"id"`
	Mode          GameMode   `json:"mode"`
	MapID         string     `json:"mapId"`
	Status        RoomStatus `json:"status"`
	Players       int        `json:"players"`
	TimeRemaining int        `json:"timeRemaining"`
	Tick          uint64     `json:"tick"`
}

func (r *Room) Info() RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RoomInfo{
		ID:            r.ID,
		Mode:          r.Mode,
		MapID:         r.MapID,
		Status:        r.status,
		Players:       len(r.players),
		TimeRemaining: r.timeRemaining,
		Tick:          r.tick,
	}
}

func (r *Room) Status() RoomStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// PlayerIDs returns the roster in join order
func (r *Room) PlayerIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// Roster returns the lobby view of the room's players
func (r *Room) Roster() []RosterEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.roster(false)
}

// PlayerState returns a copy of a player's match state
func (r *Room) PlayerState(id string) (PlayerState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[id]
	if !ok {
		return PlayerState{}, false
	}
	return *p.state, true
}
