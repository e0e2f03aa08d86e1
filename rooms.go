package main

import (
	"context"
	"errors"
	"sort"
	"sync"
)

const defaultMaxRooms = 100

var ErrRoomLimit = errors.New("too many active rooms")

// RoomManager owns the room table: creation, lookup and teardown.
type RoomManager struct {
	mu       sync.RWMutex
	rooms    map[string]*Room
	maxRooms int

	ctx     context.Context
	out     Messenger
	sched   *Scheduler
	metrics *Metrics
	sink    SnapshotSink
	// onFinish runs once per room after it ends and has been torn down.
	onFinish func(MatchResult)
}

// NewRoomManager creates a RoomManager. Rooms run until ctx is done or they end.
func NewRoomManager(ctx context.Context, out Messenger, maxRooms int) *RoomManager {
	if maxRooms <= 0 {
		maxRooms = defaultMaxRooms
	}
	return &RoomManager{
		rooms:    make(map[string]*Room),
		maxRooms: maxRooms,
		ctx:      ctx,
		out:      out,
		sched:    NewScheduler(),
	}
}

// Create makes a new room and starts its tick loop
func (rm *RoomManager) Create(cfg RoomConfig) (*Room, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if len(rm.rooms) >= rm.maxRooms {
		return nil, ErrRoomLimit
	}

	room := NewRoom(GenerateUUID(), cfg, rm.out, rm.sched)
	room.metrics = rm.metrics
	room.sink = rm.sink
	room.onEnd = rm.finish
	rm.rooms[room.ID] = room

	go room.Run(rm.ctx)
	Log.Infow("room created", "room", room.ID, "mode", room.Mode, "map", room.MapID)
	return room, nil
}

// Get returns a room by ID
func (rm *RoomManager) Get(id string) *Room {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.rooms[id]
}

// RemovePlayer removes a player from a room and tears the room down once empty.
func (rm *RoomManager) RemovePlayer(roomID, playerID string) {
	room := rm.Get(roomID)
	if room == nil {
		return
	}
	if room.RemovePlayer(playerID) && room.PlayerCount() == 0 {
		rm.teardown(room)
	}
}

// StopRoom ends a room's match early. Returns false if the room is unknown.
func (rm *RoomManager) StopRoom(id string) bool {
	room := rm.Get(id)
	if room == nil {
		return false
	}
	room.End()
	rm.teardown(room)
	return true
}

// StopAll ends every room
func (rm *RoomManager) StopAll() {
	rm.mu.RLock()
	rooms := make([]*Room, 0, len(rm.rooms))
	for _, r := range rm.rooms {
		rooms = append(rooms, r)
	}
	rm.mu.RUnlock()

	for _, r := range rooms {
		r.End()
		rm.teardown(r)
	}
}

// List returns info about all active rooms
func (rm *RoomManager) List() []RoomInfo {
	rm.mu.RLock()
	rooms := make([]*Room, 0, len(rm.rooms))
	for _, r := range rm.rooms {
		rooms = append(rooms, r)
	}
	rm.mu.RUnlock()

	list := make([]RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		list = append(list, r.Info())
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// Count returns the number of active rooms
func (rm *RoomManager) Count() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.rooms)
}

// teardown removes the room from the table and stops its loop. Idempotent.
func (rm *RoomManager) teardown(room *Room) {
	rm.mu.Lock()
	_, ok := rm.rooms[room.ID]
	delete(rm.rooms, room.ID)
	rm.mu.Unlock()

	room.Stop()
	rm.sched.CancelRoom(room.ID)
	if ok {
		Log.Infow("room closed", "room", room.ID)
	}
}

// finish is the room's end hook. It runs outside the room lock.
func (rm *RoomManager) finish(room *Room, res MatchResult) {
	rm.teardown(room)
	rm.metrics.IncRoomEnded()
	Log.Infow("match ended", "room", room.ID, "mode", res.Mode, "winner", res.Winner, "players", len(res.Scores))
	if rm.onFinish != nil {
		rm.onFinish(res)
	}
}
