// Package api provides the HTTP API for observing and steering the world.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/hexsettle/internal/engine"
	"github.com/talgya/hexsettle/internal/persistence"
	"github.com/talgya/hexsettle/internal/world"
)

// Server serves the world state over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Runner   *engine.Runner
	DB       *persistence.DB
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.
	WorldID  string

	feed        *Feed
	unsubscribe func()
	http        *http.Server
}

// Handler builds the routing table and subscribes the day feed to the
// clock. Call Close to unsubscribe.
func (s *Server) Handler() http.Handler {
	if s.feed == nil {
		s.feed = NewFeed(s.Sim)
		s.Runner.Do(func() {
			s.unsubscribe = s.Sim.Clock.Subscribe(s.feed)
		})
	}

	adminLimiter := NewRateLimiter(60, time.Minute)
	admin := func(h http.HandlerFunc) http.HandlerFunc {
		return s.adminOnly(RateLimitMiddleware(adminLimiter, h))
	}

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/settlements", s.handleSettlements)
	mux.HandleFunc("GET /api/v1/settlement/{id}", s.handleSettlementDetail)
	mux.HandleFunc("GET /api/v1/units", s.handleUnits)
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	mux.HandleFunc("GET /api/v1/map", s.handleBulkMap)
	mux.HandleFunc("GET /api/v1/map/{q}/{r}", s.handleHexDetail)
	mux.HandleFunc("GET /api/v1/path", s.handlePath)
	mux.HandleFunc("GET /api/v1/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/v1/feed", s.handleFeed)

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("POST /api/v1/speed", admin(s.handleSpeed))
	mux.HandleFunc("POST /api/v1/settle", admin(s.handleSettle))
	mux.HandleFunc("POST /api/v1/move", admin(s.handleMove))
	mux.HandleFunc("POST /api/v1/work", admin(s.handleWork))
	mux.HandleFunc("POST /api/v1/build", admin(s.handleBuild))
	mux.HandleFunc("POST /api/v1/save", admin(s.handleSave))

	return mux
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	s.http = &http.Server{Addr: addr, Handler: s.Handler()}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops the HTTP server and detaches the feed.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Close()
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// Close unsubscribes the day feed from the clock.
func (s *Server) Close() {
	if s.unsubscribe != nil {
		s.Runner.Do(s.unsubscribe)
		s.unsubscribe = nil
	}
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no HEXSIM_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var status map[string]any
	s.Runner.Do(func() {
		day := s.Sim.Day()
		status = map[string]any{
			"name":        "hexsettle",
			"world_id":    s.WorldID,
			"day":         day,
			"date":        engine.DateOf(day),
			"sim_time":    engine.SimTime(day),
			"speed":       s.Sim.Clock.Speed().String(),
			"paused":      s.Sim.Clock.Paused(),
			"tiles":       s.Sim.WorldMap.HexCount(),
			"settlements": len(s.Sim.Settlements),
			"units":       s.Sim.Units.Len(),
			"population":  s.Sim.Stats.TotalPopulation,
			"births":      s.Sim.Stats.Births,
			"starvations": s.Sim.Stats.Starvations,
			"feed_conns":  s.feed.Len(),
		}
	})
	writeJSON(w, status)
}

type settlementSummary struct {
	ID          int            `json:"id"`
	Name        string         `json:"name"`
	Q           int            `json:"q"`
	R           int            `json:"r"`
	Population  int            `json:"population"`
	ClaimRadius int            `json:"claim_radius"`
	Stock       map[string]int `json:"stock"`
}

func (s *Server) handleSettlements(w http.ResponseWriter, r *http.Request) {
	var out []settlementSummary
	s.Runner.Do(func() {
		out = make([]settlementSummary, 0, len(s.Sim.Settlements))
		for _, st := range s.Sim.Settlements {
			c := world.PlaneToAxial(st.Position, s.Sim.WorldMap.HexRadius)
			out = append(out, settlementSummary{
				ID:          st.ID,
				Name:        st.Name,
				Q:           c.Q,
				R:           c.R,
				Population:  st.Population,
				ClaimRadius: st.ClaimRadius,
				Stock:       copyStock(st.Stockpile),
			})
		}
	})

	sort.Slice(out, func(i, j int) bool { return out[i].Population > out[j].Population })
	writeJSON(w, out)
}

func (s *Server) handleSettlementDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid settlement id", http.StatusBadRequest)
		return
	}

	var result map[string]any
	s.Runner.Do(func() {
		st := s.Sim.Settlement(id)
		if st == nil {
			return
		}
		var owned, worked []world.HexCoord
		for _, t := range st.Tiles() {
			if t.OwnerSettlementID != st.ID {
				continue
			}
			owned = append(owned, t.Coord)
			if t.Worked {
				worked = append(worked, t.Coord)
			}
		}
		result = map[string]any{
			"id":             st.ID,
			"name":           st.Name,
			"position":       st.Position,
			"population":     st.Population,
			"growth_counter": st.GrowthCounter,
			"claim_radius":   st.ClaimRadius,
			"stock":          st.StockEntries(),
			"delta_per_day":  copyStock(st.DeltaPerDay),
			"owned_tiles":    owned,
			"worked_tiles":   worked,
		}
	})
	if result == nil {
		http.Error(w, "settlement not found", http.StatusNotFound)
		return
	}
	writeJSON(w, result)
}

type unitSummary struct {
	ID         int             `json:"id"`
	Def        string          `json:"def"`
	Coord      world.HexCoord  `json:"coord"`
	MovesLeft  int             `json:"moves_left"`
	Remaining  int             `json:"remaining_steps"`
	WorkTarget *world.HexCoord `json:"work_target,omitempty"`
}

func (s *Server) handleUnits(w http.ResponseWriter, r *http.Request) {
	var out []unitSummary
	s.Runner.Do(func() {
		out = make([]unitSummary, 0, s.Sim.Units.Len())
		for _, u := range s.Sim.Units.All() {
			us := unitSummary{
				ID:        u.ID,
				Def:       u.Def.ID,
				Coord:     u.Tile.Coord,
				MovesLeft: u.MovesLeft,
				Remaining: len(u.Remaining()),
			}
			if u.WorkTarget != nil {
				c := u.WorkTarget.Coord
				us.WorkTarget = &c
			}
			out = append(out, us)
		}
	})
	writeJSON(w, out)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	var events []engine.Event
	s.Runner.Do(func() { events = s.Sim.RecentEvents(limit) })
	writeJSON(w, events)
}

// handleBulkMap returns all tiles for a map renderer.
func (s *Server) handleBulkMap(w http.ResponseWriter, r *http.Request) {
	type hexEntry struct {
		Q        int    `json:"q"`
		R        int    `json:"r"`
		Biome    string `json:"biome"`
		SubBiome string `json:"sub_biome,omitempty"`
		Owner    *int   `json:"owner,omitempty"`
		Worked   bool   `json:"worked,omitempty"`
		Building string `json:"building,omitempty"`
	}

	var hexes []hexEntry
	var hexRadius float64
	s.Runner.Do(func() {
		hexRadius = s.Sim.WorldMap.HexRadius
		hexes = make([]hexEntry, 0, s.Sim.WorldMap.HexCount())
		for _, t := range s.Sim.WorldMap.Tiles() {
			e := hexEntry{Q: t.Coord.Q, R: t.Coord.R, Biome: t.Biome, SubBiome: t.SubBiome, Worked: t.Worked}
			if t.Claimed() {
				owner := t.OwnerSettlementID
				e.Owner = &owner
			}
			if t.Building != nil {
				e.Building = t.Building.DefID
			}
			hexes = append(hexes, e)
		}
	})

	writeJSON(w, map[string]any{
		"hex_radius": hexRadius,
		"hexes":      hexes,
	})
}

func (s *Server) handleHexDetail(w http.ResponseWriter, r *http.Request) {
	q, err1 := strconv.Atoi(r.PathValue("q"))
	rr, err2 := strconv.Atoi(r.PathValue("r"))
	if err1 != nil || err2 != nil {
		http.Error(w, "invalid coordinates", http.StatusBadRequest)
		return
	}

	var tile world.Tile
	found := false
	s.Runner.Do(func() {
		if t := s.Sim.WorldMap.Get(world.HexCoord{Q: q, R: rr}); t != nil {
			tile = *t
			found = true
		}
	})
	if !found {
		http.Error(w, "hex not found", http.StatusNotFound)
		return
	}
	writeJSON(w, tile)
}

// parseCoord reads "q,r".
func parseCoord(v string) (world.HexCoord, error) {
	qs, rs, ok := strings.Cut(v, ",")
	if !ok {
		return world.HexCoord{}, fmt.Errorf("coordinate %q: want q,r", v)
	}
	q, err := strconv.Atoi(strings.TrimSpace(qs))
	if err != nil {
		return world.HexCoord{}, fmt.Errorf("coordinate %q: %w", v, err)
	}
	r, err := strconv.Atoi(strings.TrimSpace(rs))
	if err != nil {
		return world.HexCoord{}, fmt.Errorf("coordinate %q: %w", v, err)
	}
	return world.HexCoord{Q: q, R: r}, nil
}

func (s *Server) handlePath(w http.ResponseWriter, r *http.Request) {
	from, err := parseCoord(r.URL.Query().Get("from"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := parseCoord(r.URL.Query().Get("to"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var coords []world.HexCoord
	var cost float64
	s.Runner.Do(func() {
		if p := s.Sim.FindPath(from, to); p != nil {
			coords = p.Coords()
			cost = p.Cost
		}
	})
	if coords == nil {
		http.Error(w, "no path", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{"path": coords, "cost": cost})
}

// handleSnapshot streams the world as lz4-compressed JSON.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	var snap *persistence.Snapshot
	s.Runner.Do(func() { snap = persistence.NewSnapshot(s.Sim, s.WorldID) })

	var buf bytes.Buffer
	if err := persistence.WriteSnapshot(&buf, snap); err != nil {
		slog.Error("snapshot export failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"world-day%d.json.lz4\"", snap.Day))
	w.Write(buf.Bytes())
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	var catchUp []byte
	s.Runner.Do(func() {
		if s.Sim.LastReport.Day > 0 {
			catchUp, _ = json.Marshal(s.Sim.LastReport)
		}
	})
	s.feed.serve(w, r, catchUp)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string `json:"action"` // pause | resume | toggle | up | down
		Speed  string `json:"speed"`  // paused | x1 | x2 | x5
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	var speed engine.Speed
	var bad bool
	s.Runner.Do(func() {
		c := s.Sim.Clock
		switch {
		case req.Speed != "":
			sp, ok := engine.ParseSpeed(req.Speed)
			if !ok {
				bad = true
				return
			}
			c.SetSpeed(sp)
		case req.Action == "pause":
			c.SetSpeed(engine.Paused)
		case req.Action == "resume":
			c.SetSpeed(engine.X1)
		case req.Action == "toggle":
			c.TogglePause()
		case req.Action == "up":
			c.CycleUp()
		case req.Action == "down":
			c.CycleDown()
		default:
			bad = true
			return
		}
		speed = c.Speed()
	})
	if bad {
		http.Error(w, "use action pause|resume|toggle|up|down or speed paused|x1|x2|x5", http.StatusBadRequest)
		return
	}

	slog.Info("speed changed", "speed", speed.String())
	writeJSON(w, map[string]any{"speed": speed.String(), "paused": speed == engine.Paused})
}

type coordRequest struct {
	UnitID int `json:"unit_id"`
	Q      int `json:"q"`
	R      int `json:"r"`
}

func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		Q    int    `json:"q"`
		R    int    `json:"r"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	var summary settlementSummary
	var err error
	s.Runner.Do(func() {
		at := world.AxialToPlane(world.HexCoord{Q: req.Q, R: req.R}, s.Sim.WorldMap.HexRadius)
		st, perr := s.Sim.PlaceSettlement(req.Name, at)
		if perr != nil {
			err = perr
			return
		}
		c := world.PlaneToAxial(st.Position, s.Sim.WorldMap.HexRadius)
		summary = settlementSummary{
			ID:          st.ID,
			Name:        st.Name,
			Q:           c.Q,
			R:           c.R,
			Population:  st.Population,
			ClaimRadius: st.ClaimRadius,
			Stock:       copyStock(st.Stockpile),
		}
	})
	if err != nil {
		actionError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, summary)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req coordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	var coords []world.HexCoord
	var cost float64
	var err error
	s.Runner.Do(func() {
		p, perr := s.Sim.OrderMove(req.UnitID, world.HexCoord{Q: req.Q, R: req.R})
		if perr != nil {
			err = perr
			return
		}
		coords, cost = p.Coords(), p.Cost
	})
	if err != nil {
		actionError(w, err)
		return
	}
	writeJSON(w, map[string]any{"unit_id": req.UnitID, "path": coords, "cost": cost})
}

func (s *Server) handleWork(w http.ResponseWriter, r *http.Request) {
	var req coordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	target := world.HexCoord{Q: req.Q, R: req.R}

	var err error
	s.Runner.Do(func() { err = s.Sim.AssignWork(req.UnitID, target) })
	if err != nil {
		actionError(w, err)
		return
	}
	writeJSON(w, map[string]any{"unit_id": req.UnitID, "work_target": target})
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Building string `json:"building"`
		Q        int    `json:"q"`
		R        int    `json:"r"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	coord := world.HexCoord{Q: req.Q, R: req.R}

	var err error
	s.Runner.Do(func() { err = s.Sim.PlaceBuilding(req.Building, coord) })
	if err != nil {
		actionError(w, err)
		return
	}
	writeJSON(w, map[string]any{"building": req.Building, "coord": coord})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	var err error
	var day uint64
	s.Runner.Do(func() {
		day = s.Sim.Day()
		err = s.DB.SaveWorldState(s.Sim)
	})
	if err != nil {
		slog.Error("save failed", "error", err)
		http.Error(w, "save failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"day":     day,
		"message": "world saved",
	})
}

// actionError maps simulation errors to HTTP status codes.
func actionError(w http.ResponseWriter, err error) {
	status := http.StatusUnprocessableEntity
	switch {
	case errors.Is(err, engine.ErrUnknownSettlement),
		errors.Is(err, engine.ErrUnknownUnit),
		errors.Is(err, engine.ErrUnknownTile),
		errors.Is(err, engine.ErrUnknownDef):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrTooClose),
		errors.Is(err, engine.ErrOccupied):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrNoTiles):
		status = http.StatusServiceUnavailable
	}
	http.Error(w, err.Error(), status)
}

func copyStock(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
