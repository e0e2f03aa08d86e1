package main

import (
	"bytes"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	defaultReplayFrames = 200 // 10s at TickRate
	maxRecordedRooms    = 256
)

// Recorder keeps the most recent snapshots of each room, msgpack-encoded,
// in a fixed-size ring. It implements SnapshotSink.
type Recorder struct {
	mu     sync.Mutex
	frames int
	rooms  map[string]*ring
	order  []string // insertion order, oldest first
}

type ring struct {
	buf  [][]byte
	next int
	full bool
}

// NewRecorder creates a Recorder holding up to frames snapshots per room.
func NewRecorder(frames int) *Recorder {
	if frames <= 0 {
		frames = defaultReplayFrames
	}
	return &Recorder{
		frames: frames,
		rooms:  make(map[string]*ring),
	}
}

func encodeSnapshot(snap Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeSnapshot reverses the recorder's frame encoding.
func DecodeSnapshot(frame []byte) (Snapshot, error) {
	var snap Snapshot
	dec := msgpack.NewDecoder(bytes.NewReader(frame))
	dec.SetCustomStructTag("json")
	err := dec.Decode(&snap)
	return snap, err
}

// RecordSnapshot appends snap to the room's ring, evicting the oldest frame
// when full. The oldest room is forgotten once maxRecordedRooms is reached.
func (rec *Recorder) RecordSnapshot(roomID string, snap Snapshot) {
	frame, err := encodeSnapshot(snap)
	if err != nil {
		Log.Errorw("encode snapshot", "room", roomID, "err", err)
		return
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	r, ok := rec.rooms[roomID]
	if !ok {
		if len(rec.order) >= maxRecordedRooms {
			delete(rec.rooms, rec.order[0])
			rec.order = rec.order[1:]
		}
		r = &ring{buf: make([][]byte, rec.frames)}
		rec.rooms[roomID] = r
		rec.order = append(rec.order, roomID)
	}
	r.buf[r.next] = frame
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

// Frames returns the room's recorded frames, oldest first.
func (rec *Recorder) Frames(roomID string) [][]byte {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	r, ok := rec.rooms[roomID]
	if !ok {
		return nil
	}
	var out [][]byte
	if r.full {
		out = append(out, r.buf[r.next:]...)
	}
	out = append(out, r.buf[:r.next]...)
	return out
}
