package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/milk9111/robosim/ecs"
	"github.com/milk9111/robosim/prefabs"
	"github.com/milk9111/robosim/sim"
)

func newTestServer(t *testing.T) (*Server, *sim.Simulation, ecs.Entity) {
	t.Helper()
	world, err := prefabs.LoadWorldSpec(prefabs.DefaultWorld)
	if err != nil {
		t.Fatal(err)
	}
	bot, err := prefabs.LoadRobotSpec(prefabs.DefaultRobot)
	if err != nil {
		t.Fatal(err)
	}
	s := sim.New(world, sim.Options{})
	t.Cleanup(s.Close)
	e, err := s.AddRobot(bot, 0)
	if err != nil {
		t.Fatal(err)
	}
	return New(s, Options{}), s, e
}

func do(t *testing.T, srv *Server, method, path, body string) (int, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.App().Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(data)
}

func TestRobotRoutes(t *testing.T) {
	srv, _, e := newTestServer(t)
	id := e.String()

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		wantCode int
		contains string
	}{
		{name: "list", method: http.MethodGet, path: "/api/robots", wantCode: 200, contains: `"robots"`},
		{name: "get", method: http.MethodGet, path: "/api/robots/" + id, wantCode: 200, contains: `"name":"default"`},
		{name: "snapshot", method: http.MethodGet, path: "/api/snapshot", wantCode: 200, contains: `"steps"`},
		{name: "bad id", method: http.MethodGet, path: "/api/robots/abc", wantCode: 400, contains: "invalid robot id"},
		{name: "unknown robot", method: http.MethodGet, path: "/api/robots/999", wantCode: 404, contains: "unknown robot"},
		{name: "unknown lang", method: http.MethodPost, path: "/api/robots/" + id + "/program", body: `{"lang":"basic","source":"10 GOTO 10"}`, wantCode: 400},
		{name: "compile error", method: http.MethodPost, path: "/api/robots/" + id + "/program", body: `{"lang":"tengo","source":"moveForward("}`, wantCode: 400, contains: "compile"},
		{name: "missing file", method: http.MethodPost, path: "/api/robots/" + id + "/program", body: `{"file":"scripts/nope.tengo"}`, wantCode: 400},
		{name: "button", method: http.MethodPost, path: "/api/robots/" + id + "/buttons/enter", body: `{"pressed":true}`, wantCode: 204},
		{name: "unknown button", method: http.MethodPost, path: "/api/robots/" + id + "/buttons/home", body: `{"pressed":true}`, wantCode: 400},
		{name: "stop", method: http.MethodPost, path: "/api/robots/" + id + "/stop", wantCode: 204},
		{name: "reset", method: http.MethodPost, path: "/api/reset", wantCode: 204},
		{name: "websocket needs upgrade", method: http.MethodGet, path: "/ws/telemetry", wantCode: 426},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, srv, tt.method, tt.path, tt.body)
			if code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", code, tt.wantCode, body)
			}
			if tt.contains != "" && !strings.Contains(body, tt.contains) {
				t.Fatalf("body %s missing %s", body, tt.contains)
			}
		})
	}
}

func TestRunProgramRoute(t *testing.T) {
	srv, s, e := newTestServer(t)

	code, body := do(t, srv, http.MethodPost, "/api/robots/"+e.String()+"/program", `{"lang":"arduino","source":"moveForward(100, 10000);"}`)
	if code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", code, body)
	}
	var resp struct {
		RunID string `json:"run_id"`
	}
	if err := json.Unmarshal([]byte(body), &resp); err != nil || resp.RunID == "" {
		t.Fatalf("response %s: %v", body, err)
	}

	snap, _ := s.RobotSnapshot(e)
	if snap.Program == nil || snap.Program.RunID != resp.RunID || !snap.Program.Running {
		t.Fatalf("program = %+v", snap.Program)
	}

	if code, _ := do(t, srv, http.MethodPost, "/api/robots/"+e.String()+"/stop", ""); code != http.StatusNoContent {
		t.Fatalf("stop status = %d", code)
	}
	snap, _ = s.RobotSnapshot(e)
	if snap.Program.Running {
		t.Fatal("program still running after stop")
	}
}

func TestRunProgramFileRoute(t *testing.T) {
	srv, _, e := newTestServer(t)
	code, body := do(t, srv, http.MethodPost, "/api/robots/"+e.String()+"/program", `{"file":"scripts/drive.ino"}`)
	if code != http.StatusAccepted || !strings.Contains(body, "run_id") {
		t.Fatalf("status = %d, body %s", code, body)
	}
}
