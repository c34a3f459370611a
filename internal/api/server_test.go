package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/hexsettle/internal/defs"
	"github.com/talgya/hexsettle/internal/engine"
	"github.com/talgya/hexsettle/internal/persistence"
	"github.com/talgya/hexsettle/internal/world"
)

const testKey = "secret"

// newTestServer builds a server over a radius-5 plains hexagon with one
// settlement at the origin and its worker (unit 1).
func newTestServer(t *testing.T, adminKey string) (*Server, http.Handler) {
	t.Helper()
	m := world.NewMap(0.5)
	for _, c := range world.Range(world.HexCoord{}, 5) {
		m.Insert(world.NewTile(c, m.HexRadius))
	}
	sim := engine.NewSimulation(m, defs.DefaultRegistry(), engine.NewClock(time.Second), engine.DefaultConfig())
	t.Cleanup(sim.Close)
	if _, err := sim.PlaceSettlement("Ashford", world.Point{}); err != nil {
		t.Fatalf("place: %v", err)
	}

	srv := &Server{
		Sim:      sim,
		Runner:   engine.NewRunner(sim.Clock),
		AdminKey: adminKey,
		WorldID:  "test-world",
	}
	h := srv.Handler()
	t.Cleanup(srv.Close)
	return srv, h
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if method == http.MethodPost {
		req.Header.Set("Authorization", "Bearer "+testKey)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestStatus(t *testing.T) {
	_, h := newTestServer(t, testKey)
	rec := do(h, http.MethodGet, "/api/v1/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	status := decode[struct {
		WorldID     string `json:"world_id"`
		Day         uint64 `json:"day"`
		Speed       string `json:"speed"`
		Tiles       int    `json:"tiles"`
		Settlements int    `json:"settlements"`
		Units       int    `json:"units"`
	}](t, rec)
	if status.WorldID != "test-world" || status.Speed != "x1" || status.Tiles != 91 {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.Settlements != 1 || status.Units != 1 {
		t.Fatalf("expected 1 settlement and 1 unit, got %+v", status)
	}
}

func TestSettlementEndpoints(t *testing.T) {
	_, h := newTestServer(t, testKey)

	list := decode[[]settlementSummary](t, do(h, http.MethodGet, "/api/v1/settlements", ""))
	if len(list) != 1 || list[0].Name != "Ashford" || list[0].Stock[defs.Food] != 20 {
		t.Fatalf("unexpected settlements %+v", list)
	}

	rec := do(h, http.MethodGet, "/api/v1/settlement/1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	detail := decode[struct {
		OwnedTiles []world.HexCoord `json:"owned_tiles"`
	}](t, rec)
	if len(detail.OwnedTiles) != 19 {
		t.Fatalf("expected 19 owned tiles, got %d", len(detail.OwnedTiles))
	}

	if rec := do(h, http.MethodGet, "/api/v1/settlement/42", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := do(h, http.MethodGet, "/api/v1/settlement/abc", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestMapEndpoints(t *testing.T) {
	_, h := newTestServer(t, testKey)

	bulk := decode[struct {
		HexRadius float64 `json:"hex_radius"`
		Hexes     []struct {
			Q     int  `json:"q"`
			R     int  `json:"r"`
			Owner *int `json:"owner"`
		} `json:"hexes"`
	}](t, do(h, http.MethodGet, "/api/v1/map", ""))
	if bulk.HexRadius != 0.5 || len(bulk.Hexes) != 91 {
		t.Fatalf("unexpected bulk map: radius %v, %d hexes", bulk.HexRadius, len(bulk.Hexes))
	}
	owned := 0
	for _, hx := range bulk.Hexes {
		if hx.Owner != nil {
			owned++
		}
	}
	if owned != 19 {
		t.Fatalf("expected 19 owned hexes, got %d", owned)
	}

	tile := decode[world.Tile](t, do(h, http.MethodGet, "/api/v1/map/1/-1", ""))
	if tile.Coord != (world.HexCoord{Q: 1, R: -1}) || tile.OwnerSettlementID != 1 {
		t.Fatalf("unexpected tile %+v", tile)
	}
	if rec := do(h, http.MethodGet, "/api/v1/map/40/0", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestPath(t *testing.T) {
	_, h := newTestServer(t, testKey)

	rec := do(h, http.MethodGet, "/api/v1/path?from=0,0&to=3,0", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	got := decode[struct {
		Path []world.HexCoord `json:"path"`
		Cost float64          `json:"cost"`
	}](t, rec)
	if len(got.Path) < 2 || got.Path[0] != (world.HexCoord{}) || got.Path[len(got.Path)-1] != (world.HexCoord{Q: 3}) {
		t.Fatalf("unexpected path %v", got.Path)
	}

	if rec := do(h, http.MethodGet, "/api/v1/path?from=0,0&to=30,0", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for off-map goal, got %d", rec.Code)
	}
	if rec := do(h, http.MethodGet, "/api/v1/path?from=0;0&to=1,0", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed coordinate, got %d", rec.Code)
	}
}

func TestAdminAuth(t *testing.T) {
	_, open := newTestServer(t, "")
	if rec := do(open, http.MethodPost, "/api/v1/save", "{}"); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with admin disabled, got %d", rec.Code)
	}

	_, h := newTestServer(t, "other-key")
	if rec := do(h, http.MethodPost, "/api/v1/speed", `{"action":"pause"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong token, got %d", rec.Code)
	}
}

func TestSpeed(t *testing.T) {
	srv, h := newTestServer(t, testKey)

	cases := []struct {
		body string
		want engine.Speed
	}{
		{`{"action":"up"}`, engine.X2},
		{`{"action":"up"}`, engine.X5},
		{`{"action":"up"}`, engine.X5},
		{`{"action":"toggle"}`, engine.Paused},
		{`{"action":"toggle"}`, engine.X1},
		{`{"speed":"x1"}`, engine.X1},
		{`{"action":"down"}`, engine.Paused},
		{`{"action":"resume"}`, engine.X1},
	}
	for i, c := range cases {
		rec := do(h, http.MethodPost, "/api/v1/speed", c.body)
		if rec.Code != http.StatusOK {
			t.Fatalf("case %d: expected 200, got %d", i, rec.Code)
		}
		if got := srv.Sim.Clock.Speed(); got != c.want {
			t.Fatalf("case %d %s: expected %s, got %s", i, c.body, c.want, got)
		}
	}

	if rec := do(h, http.MethodPost, "/api/v1/speed", `{"action":"warp"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown action, got %d", rec.Code)
	}
}

func TestMoveAndWork(t *testing.T) {
	srv, h := newTestServer(t, testKey)

	rec := do(h, http.MethodPost, "/api/v1/move", `{"unit_id":1,"q":2,"r":0}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if u := srv.Sim.Units.Get(1); len(u.Remaining()) == 0 {
		t.Fatalf("expected the unit to have a path")
	}

	if rec := do(h, http.MethodPost, "/api/v1/move", `{"unit_id":99,"q":2,"r":0}`); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown unit, got %d", rec.Code)
	}
	if rec := do(h, http.MethodPost, "/api/v1/move", `{"unit_id":1,"q":30,"r":0}`); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for off-map goal, got %d", rec.Code)
	}

	rec = do(h, http.MethodPost, "/api/v1/work", `{"unit_id":1,"q":1,"r":0}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if u := srv.Sim.Units.Get(1); u.WorkTarget == nil || u.WorkTarget.Coord != (world.HexCoord{Q: 1}) {
		t.Fatalf("expected work target (1,0)")
	}

	scout, err := srv.Sim.SpawnUnit("scout", world.Point{})
	if err != nil {
		t.Fatalf("spawn scout: %v", err)
	}
	body := fmt.Sprintf(`{"unit_id":%d,"q":1,"r":0}`, scout.ID)
	if rec := do(h, http.MethodPost, "/api/v1/work", body); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for a scout, got %d", rec.Code)
	}
}

func TestBuildAndSettle(t *testing.T) {
	srv, h := newTestServer(t, testKey)

	if rec := do(h, http.MethodPost, "/api/v1/build", `{"building":"camp","q":0,"r":0}`); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if rec := do(h, http.MethodPost, "/api/v1/build", `{"building":"camp","q":0,"r":0}`); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for an occupied tile, got %d", rec.Code)
	}
	if rec := do(h, http.MethodPost, "/api/v1/build", `{"building":"lumber_hut","q":1,"r":0}`); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for a biome mismatch, got %d", rec.Code)
	}
	if rec := do(h, http.MethodPost, "/api/v1/build", `{"building":"castle","q":1,"r":0}`); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown building, got %d", rec.Code)
	}

	rec := do(h, http.MethodPost, "/api/v1/settle", `{"name":"Brindle","q":4,"r":0}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}
	got := decode[settlementSummary](t, rec)
	if got.ID != 2 || got.Name != "Brindle" || got.Q != 4 || got.R != 0 {
		t.Fatalf("unexpected settlement %+v", got)
	}
	if len(srv.Sim.Settlements) != 2 {
		t.Fatalf("expected 2 settlements, got %d", len(srv.Sim.Settlements))
	}
	if rec := do(h, http.MethodPost, "/api/v1/settle", `{"name":"Crowded","q":1,"r":0}`); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 when too close, got %d", rec.Code)
	}
}

func TestSaveWithoutDB(t *testing.T) {
	_, h := newTestServer(t, testKey)
	if rec := do(h, http.MethodPost, "/api/v1/save", "{}"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a database, got %d", rec.Code)
	}
}

func TestSaveWithDB(t *testing.T) {
	srv, h := newTestServer(t, testKey)
	db, err := persistence.Open("file::memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	srv.DB = db

	if rec := do(h, http.MethodPost, "/api/v1/save", "{}"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if ok, err := db.HasWorld(); err != nil || !ok {
		t.Fatalf("expected a saved world, got %v %v", ok, err)
	}
}

func TestSnapshot(t *testing.T) {
	_, h := newTestServer(t, testKey)
	rec := do(h, http.MethodGet, "/api/v1/snapshot", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/octet-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	snap, err := persistence.ReadSnapshot(rec.Body)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snap.WorldID != "test-world" || len(snap.Tiles) != 91 || len(snap.Settlements) != 1 {
		t.Fatalf("unexpected snapshot: %s, %d tiles, %d settlements", snap.WorldID, len(snap.Tiles), len(snap.Settlements))
	}
}

func TestEvents(t *testing.T) {
	_, h := newTestServer(t, testKey)
	events := decode[[]engine.Event](t, do(h, http.MethodGet, "/api/v1/events?limit=5", ""))
	if len(events) == 0 {
		t.Fatalf("expected the founding event")
	}
}

func TestFeed(t *testing.T) {
	srv, h := newTestServer(t, testKey)
	ts := httptest.NewServer(h)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/feed"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for srv.feed.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("feed client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	srv.Runner.Do(func() { srv.Sim.Clock.Advance(srv.Sim.Clock.Interval()) })

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var report engine.DayReport
	if err := json.Unmarshal(msg, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Day != 1 || len(report.Settlements) != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatalf("expected the first two requests to pass")
	}
	if rl.Allow("a") {
		t.Fatalf("expected the third request to be limited")
	}
	if !rl.Allow("b") {
		t.Fatalf("expected a different client to pass")
	}
	if got := rl.RetryAfter("a"); got != 61 {
		t.Fatalf("expected retry after 61s, got %d", got)
	}

	now = now.Add(time.Minute)
	if !rl.Allow("a") {
		t.Fatalf("expected the window to reset")
	}
}

func TestClientAddr(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.7:5123"
	if got := clientAddr(r); got != "10.0.0.7" {
		t.Fatalf("expected host without port, got %q", got)
	}
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := clientAddr(r); got != "203.0.113.9" {
		t.Fatalf("expected first forwarded hop, got %q", got)
	}
}
