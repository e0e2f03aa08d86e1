package main

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/skip2/go-qrcode"
)

const (
	qrSize          = 256
	maxLoginBody    = 1024
	leaderboardSize = 10
)

// newUpgrader accepts any Origin when allowed is empty; browser clients are
// commonly served from a separate dev server. Otherwise the Origin must
// match an entry exactly or be absent (non-browser clients).
func newUpgrader(allowed []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowed) == 0 {
				return true
			}
			return slices.Contains(allowed, strings.TrimSuffix(origin, "/"))
		},
	}
}

func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Log.Debugw("write response", "err", err)
	}
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// Server bundles the HTTP handlers around a Hub.
type Server struct {
	hub         *Hub
	upgrader    websocket.Upgrader
	admin       *Admin
	publicURL   string
	historySize int // default row count for /admin/matches
}

// SetupRoutes configures HTTP routes
func SetupRoutes(hub *Hub, admin *Admin, cfg Config) *http.ServeMux {
	s := &Server{
		hub:         hub,
		upgrader:    newUpgrader(cfg.AllowedOrigins),
		admin:       admin,
		publicURL:   cfg.PublicURL,
		historySize: cfg.HistorySize,
	}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /{$}", s.handleWS)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /join.png", s.handleJoinQR)
	mux.HandleFunc("GET /leaderboard", s.handleLeaderboard)

	mux.HandleFunc("POST /admin/login", s.handleLogin)
	mux.HandleFunc("GET /admin/rooms", admin.RequireAdmin(s.handleRooms))
	mux.HandleFunc("POST /admin/rooms/stop", admin.RequireAdmin(s.handleStopRoom))
	mux.HandleFunc("GET /admin/rooms/replay", admin.RequireAdmin(s.handleReplay))
	mux.HandleFunc("GET /admin/matches", admin.RequireAdmin(s.handleMatches))

	return mux
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ip := extractIP(r)
	if !s.hub.CanAccept(ip) {
		s.hub.metrics.IncConnRejected()
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Warnw("upgrade", "addr", ip, "err", err)
		return
	}

	s.hub.TrackConnect(ip)

	client := NewClient(s.hub, conn, ip)
	client.playerID = s.hub.RegisterConnection(client)

	go client.WritePump()
	go client.ReadPump()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"clients":     s.hub.ClientCount(),
		"connections": s.hub.TotalConns(),
		"rooms":       s.hub.rooms.Count(),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	m := s.hub.metrics.Snapshot()
	m["clients"] = s.hub.ClientCount()
	m["rooms"] = s.hub.rooms.Count()
	for _, mode := range queueModes {
		m["queue_"+string(mode)] = s.hub.matchmaker.QueueSize(mode)
	}
	writeJSON(w, http.StatusOK, m)
}

// handleJoinQR renders the client URL as a QR code for phones on the LAN.
func (s *Server) handleJoinQR(w http.ResponseWriter, r *http.Request) {
	target := s.publicURL
	if target == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		target = scheme + "://" + r.Host + "/"
	}
	png, err := qrcode.Encode(target, qrcode.Medium, qrSize)
	if err != nil {
		Log.Errorw("encode qr", "url", target, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(png)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.hub.history == nil {
		writeJSON(w, http.StatusOK, []LeaderboardEntry{})
		return
	}
	entries, err := s.hub.history.Leaderboard(queryInt(r, "limit", leaderboardSize))
	if err != nil {
		Log.Errorw("leaderboard", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxLoginBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	token, err := s.admin.Login(req.Password, extractIP(r))
	switch {
	case errors.Is(err, ErrAdminDisabled):
		http.Error(w, "admin disabled", http.StatusNotFound)
		return
	case errors.Is(err, ErrTooManyAttempts):
		http.Error(w, err.Error(), http.StatusTooManyRequests)
		return
	case err != nil:
		Log.Warnw("admin login failed", "addr", extractIP(r))
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.hub.rooms.List())
}

func (s *Server) handleStopRoom(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" || !s.hub.rooms.StopRoom(id) {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	Log.Infow("room stopped by admin", "room", id, "addr", extractIP(r))
	writeJSON(w, http.StatusOK, map[string]string{"stopped": id})
}

// handleReplay returns the room's recorded snapshots, oldest first. With
// format=msgpack the raw frames are streamed back to back instead.
func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	frames := s.hub.recorder.Frames(id)
	if frames == nil {
		http.Error(w, "no recording", http.StatusNotFound)
		return
	}

	if r.URL.Query().Get("format") == "msgpack" {
		w.Header().Set("Content-Type", "application/msgpack")
		for _, f := range frames {
			if _, err := w.Write(f); err != nil {
				return
			}
		}
		return
	}

	snaps := make([]Snapshot, 0, len(frames))
	for _, f := range frames {
		snap, err := DecodeSnapshot(f)
		if err != nil {
			Log.Errorw("decode snapshot", "room", id, "err", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		snaps = append(snaps, snap)
	}
	writeJSON(w, http.StatusOK, snaps)
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	if s.hub.history == nil {
		writeJSON(w, http.StatusOK, []MatchRow{})
		return
	}
	matches, err := s.hub.history.RecentMatches(queryInt(r, "limit", s.historySize))
	if err != nil {
		Log.Errorw("recent matches", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}
