package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-rnet/internal/audit"
	"github.com/nerrad567/gray-logic-rnet/internal/bridge"
	"github.com/nerrad567/gray-logic-rnet/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-rnet/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-rnet/internal/rnet"
	"github.com/nerrad567/gray-logic-rnet/internal/zone"
)

type mockEngine struct{ state rnet.State }

func (e mockEngine) State() rnet.State { return e.state }
func (e mockEngine) Endpoint() rnet.Endpoint {
	return rnet.Endpoint{Network: rnet.NetworkSerial, Address: "/dev/ttyUSB0"}
}

type mockMQTT struct{ connected bool }

func (m mockMQTT) IsConnected() bool { return m.connected }

type mockZones struct{ zones []zone.Zone }

func (m mockZones) ListZones() []zone.Zone { return m.zones }

type mockExecutor struct {
	mu   sync.Mutex
	err  error
	sent []bridge.Command
}

func (m *mockExecutor) Execute(_ context.Context, cmd bridge.Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, cmd)
	return nil
}

type mockHistory struct {
	mu      sync.Mutex
	filters []audit.Filter
}

func (m *mockHistory) List(_ context.Context, filter audit.Filter) (*audit.ListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filters = append(m.filters, filter)
	return &audit.ListResult{
		Entries: []audit.Entry{{ID: 7, CommandID: "cmd-1", Command: "volume", Controller: 1, Zone: 2, Value: 30, Source: "api", Result: audit.ResultOK}},
		Total:   1,
		Limit:   50,
	}, nil
}

func testServer(t *testing.T, engine mockEngine, exec *mockExecutor) *Server {
	t.Helper()

	vol := 25
	srv, err := New(Deps{
		Config: config.APIConfig{Host: "127.0.0.1", Port: 0, Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5}},
		Logger: logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test"),
		Engine: engine,
		MQTT:   mockMQTT{connected: true},
		Zones: mockZones{zones: []zone.Zone{
			{Controller: 1, Zone: 1, Name: "Kitchen", State: zone.State{Volume: &vol}},
			{Controller: 1, Zone: 2, Name: "Lounge"},
		}},
		Commands: exec,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("rnet_frames_received_total 1\n")) //nolint:errcheck // test handler
		}),
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv
}

func serve(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	return rec
}

func TestNew_RequiresDependencies(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("expected error without logger")
	}
}

func TestHandleHealth(t *testing.T) {
	tests := []struct {
		name       string
		state      rnet.State
		wantStatus string
	}{
		{name: "online", state: rnet.StateOnline, wantStatus: "healthy"},
		{name: "retrying", state: rnet.StateOfflineRetrying, wantStatus: "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testServer(t, mockEngine{state: tt.state}, &mockExecutor{})
			rec := serve(srv, http.MethodGet, "/api/v1/health", "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}

			var body struct {
				Status string `json:"status"`
				RNet   struct {
					State    string `json:"state"`
					Endpoint string `json:"endpoint"`
				} `json:"rnet"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.Status != tt.wantStatus || body.RNet.State != tt.state.String() || body.RNet.Endpoint != "/dev/ttyUSB0" {
				t.Errorf("body = %+v", body)
			}
			if rec.Header().Get("X-Request-ID") == "" {
				t.Error("missing X-Request-ID")
			}
		})
	}
}

func TestMetricsRoute(t *testing.T) {
	srv := testServer(t, mockEngine{state: rnet.StateOnline}, &mockExecutor{})
	rec := serve(srv, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "rnet_frames_received_total") {
		t.Errorf("metrics = %d %q", rec.Code, rec.Body.String())
	}
}

func TestHandleListZones(t *testing.T) {
	srv := testServer(t, mockEngine{state: rnet.StateOnline}, &mockExecutor{})
	rec := serve(srv, http.MethodGet, "/api/v1/zones", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Zones []zone.Zone `json:"zones"`
		Count int         `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Count != 2 || body.Zones[0].Name != "Kitchen" || body.Zones[0].State.Volume == nil || *body.Zones[0].State.Volume != 25 {
		t.Errorf("body = %+v", body)
	}
	if body.Zones[1].State.Power != nil {
		t.Error("unreported state should be omitted")
	}
}

func TestHandleZoneCommand(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		body     string
		execErr  error
		wantCode int
		wantSent *bridge.Command
	}{
		{
			name:     "volume accepted",
			path:     "/api/v1/zones/1/4/commands",
			body:     `{"command":"volume","value":30}`,
			wantCode: http.StatusAccepted,
			wantSent: &bridge.Command{Kind: rnet.VolumeSet, Zone: rnet.ZoneID{Controller: 1, Zone: 4}, Value: 30, Name: "volume", Source: "api"},
		},
		{
			name:     "all off accepted",
			path:     "/api/v1/zones/2/1/commands",
			body:     `{"command":"all_off"}`,
			wantCode: http.StatusAccepted,
			wantSent: &bridge.Command{Kind: rnet.AllOnOff, Zone: rnet.ZoneID{Controller: 2, Zone: 1}, Value: 0, Name: "all_off", Source: "api"},
		},
		{name: "bad controller", path: "/api/v1/zones/x/4/commands", body: `{"command":"volume","value":1}`, wantCode: http.StatusBadRequest},
		{name: "zone out of range", path: "/api/v1/zones/1/200/commands", body: `{"command":"volume","value":1}`, wantCode: http.StatusBadRequest},
		{name: "bad json", path: "/api/v1/zones/1/1/commands", body: `{`, wantCode: http.StatusBadRequest},
		{name: "unknown command", path: "/api/v1/zones/1/1/commands", body: `{"command":"treble","value":1}`, wantCode: http.StatusBadRequest},
		{name: "missing value", path: "/api/v1/zones/1/1/commands", body: `{"command":"source"}`, wantCode: http.StatusBadRequest},
		{
			name:     "not connected",
			path:     "/api/v1/zones/1/1/commands",
			body:     `{"command":"power","value":1}`,
			execErr:  rnet.ErrNotConnected,
			wantCode: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &mockExecutor{err: tt.execErr}
			srv := testServer(t, mockEngine{state: rnet.StateOnline}, exec)

			rec := serve(srv, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}

			exec.mu.Lock()
			defer exec.mu.Unlock()
			if tt.wantSent == nil {
				if len(exec.sent) != 0 {
					t.Errorf("sent = %v, want nothing", exec.sent)
				}
				return
			}
			if len(exec.sent) != 1 {
				t.Fatalf("sent %d commands, want 1", len(exec.sent))
			}
			sent := exec.sent[0]

			var body map[string]any
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			id, _ := body["command_id"].(string)
			if len(id) != 36 || sent.ID != id {
				t.Errorf("command_id = %v, sent ID = %q", body["command_id"], sent.ID)
			}

			sent.ID = ""
			if sent != *tt.wantSent {
				t.Errorf("sent = %+v, want %+v", sent, *tt.wantSent)
			}
		})
	}
}

func TestServerStartClose(t *testing.T) {
	srv := testServer(t, mockEngine{state: rnet.StateOnline}, &mockExecutor{})
	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck before Start should fail")
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer srv.Close() //nolint:errcheck // test cleanup

	resp, err := http.Get("http://" + srv.Addr() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() = %v", err)
	}
}

func TestHandleListCommands(t *testing.T) {
	srv := testServer(t, mockEngine{state: rnet.StateOnline}, &mockExecutor{})

	rec := serve(srv, http.MethodGet, "/api/v1/commands", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("without history: status = %d, want 404", rec.Code)
	}

	history := &mockHistory{}
	srv.history = history

	rec = serve(srv, http.MethodGet, "/api/v1/commands?command=volume&controller=1&zone=2&limit=10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}
	var body audit.ListResult
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Total != 1 || len(body.Entries) != 1 || body.Entries[0].CommandID != "cmd-1" {
		t.Errorf("body = %+v", body)
	}
	want := audit.Filter{Command: "volume", Controller: 1, Zone: 2, Limit: 10}
	if len(history.filters) != 1 || history.filters[0] != want {
		t.Errorf("filters = %+v, want %+v", history.filters, want)
	}

	rec = serve(srv, http.MethodGet, "/api/v1/commands?zone=abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad zone: status = %d, want 400", rec.Code)
	}
}

func TestRequestID(t *testing.T) {
	srv := testServer(t, mockEngine{state: rnet.StateOnline}, &mockExecutor{})

	tests := []struct {
		name     string
		header   string
		wantSame bool
	}{
		{name: "client id kept", header: "abc-123", wantSame: true},
		{name: "generated when missing", header: ""},
		{name: "oversized id replaced", header: strings.Repeat("x", maxRequestIDLen+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
			if tt.header != "" {
				req.Header.Set(requestIDHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			srv.buildRouter().ServeHTTP(rec, req)

			got := rec.Header().Get(requestIDHeader)
			if tt.wantSame && got != tt.header {
				t.Errorf("request ID = %q, want %q", got, tt.header)
			}
			if !tt.wantSame && len(got) != 36 {
				t.Errorf("request ID = %q, want generated UUID", got)
			}
		})
	}
}

func TestRecoverPanic(t *testing.T) {
	srv := testServer(t, mockEngine{state: rnet.StateOnline}, &mockExecutor{})
	h := srv.withRequestID(srv.recoverPanic(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Code != ErrCodeInternal || body.Status != http.StatusInternalServerError {
		t.Errorf("body = %+v", body)
	}
}

func TestWriteError_CodeFromStatus(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{http.StatusBadRequest, ErrCodeBadRequest},
		{http.StatusServiceUnavailable, ErrCodeUnavailable},
		{http.StatusGatewayTimeout, ErrCodeTimeout},
		{http.StatusTeapot, ErrCodeInternal},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeError(rec, tt.status, "msg")

		var body ErrorResponse
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if rec.Code != tt.status || body.Code != tt.want {
			t.Errorf("writeError(%d) = %d %q, want %q", tt.status, rec.Code, body.Code, tt.want)
		}
	}
}

func TestZoneCommand_BodyTooLarge(t *testing.T) {
	exec := &mockExecutor{}
	srv := testServer(t, mockEngine{state: rnet.StateOnline}, exec)

	body := `{"command":"volume","value":1,"pad":"` + strings.Repeat("x", maxRequestBodySize) + `"}`
	rec := serve(srv, http.MethodPost, "/api/v1/zones/1/1/commands", body)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if len(exec.sent) != 0 {
		t.Errorf("oversized command was sent")
	}
}
