package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dokzlo13/huemotion/internal/animation"
	"github.com/dokzlo13/huemotion/internal/engine"
	"github.com/dokzlo13/huemotion/internal/eventbus"
	"github.com/dokzlo13/huemotion/internal/light"
)

type fakeEngine struct {
	mu   sync.Mutex
	cmds []engine.Command
	res  engine.Result
	err  error
}

func (f *fakeEngine) Do(ctx context.Context, cmd engine.Command) (engine.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cmds = append(f.cmds, cmd)
	return f.res, f.err
}

func (f *fakeEngine) Status() engine.Status {
	return engine.Status{Playing: false}
}

func (f *fakeEngine) last() engine.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.cmds) == 0 {
		return nil
	}
	return f.cmds[len(f.cmds)-1]
}

func serve(t *testing.T, e Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	srv := New(Config{}, e, nil)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := serve(t, &fakeEngine{}, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"healthy"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestListLights(t *testing.T) {
	e := &fakeEngine{res: engine.Result{Lights: light.Collection{
		2: {Name: "Lamp", Reachable: true, State: light.State{}.WithOn(true)},
		1: {Name: "Desk", Reachable: false},
	}}}
	rec := serve(t, e, http.MethodGet, "/api/lights/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var views []LightView
	if err := json.Unmarshal(rec.Body.Bytes(), &views); err != nil {
		t.Fatal(err)
	}
	if len(views) != 2 || views[0].ID != 1 || views[1].Name != "Lamp" {
		t.Errorf("views = %+v", views)
	}
	if _, ok := e.last().(engine.GetLights); !ok {
		t.Errorf("command = %T, want GetLights", e.last())
	}
}

func TestDeviceCommands(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		want   engine.Command
	}{
		{"on", http.MethodPost, "/api/lights/3/on", "", http.StatusOK, engine.On{ID: 3}},
		{"off", http.MethodPost, "/api/lights/3/off", "", http.StatusOK, engine.Off{ID: 3}},
		{"state", http.MethodPut, "/api/lights/4/state", `{"hue":100,"bri":5}`, http.StatusOK,
			engine.SetState{ID: 4, State: light.State{}.WithHue(100).WithBri(5)}},
		{"empty state", http.MethodPut, "/api/lights/4/state", `{}`, http.StatusBadRequest, nil},
		{"bad json", http.MethodPut, "/api/lights/4/state", `{`, http.StatusBadRequest, nil},
		{"bad id", http.MethodPost, "/api/lights/0/on", "", http.StatusBadRequest, nil},
		{"id overflow", http.MethodPost, "/api/lights/300/on", "", http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &fakeEngine{}
			rec := serve(t, e, tt.method, tt.path, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
			got := e.last()
			if tt.want == nil {
				if got != nil {
					t.Errorf("command %T sent, want none", got)
				}
				return
			}
			if fmt.Sprintf("%#v", got) != fmt.Sprintf("%#v", tt.want) {
				if st, ok := got.(engine.SetState); !ok || !st.State.Equal(tt.want.(engine.SetState).State) {
					t.Errorf("command = %#v, want %#v", got, tt.want)
				}
			}
		})
	}
}

func TestStartAnimation(t *testing.T) {
	e := &fakeEngine{res: engine.Result{RunID: "run-1"}}
	rec := serve(t, e, http.MethodPost, "/api/animations/Rotate",
		`{"transition":2,"hold":1,"devices":[1,2],"hues":[0,20000]}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"run_id":"run-1"`) {
		t.Errorf("body = %s", rec.Body.String())
	}

	cmd, ok := e.last().(engine.StartAnimation)
	if !ok {
		t.Fatalf("command = %T, want StartAnimation", e.last())
	}
	if cmd.Source != Source || cmd.Spec.Kind != animation.KindRotate || cmd.Spec.Transition != 2*time.Second ||
		cmd.Spec.Hold != time.Second || len(cmd.Spec.Devices) != 2 || cmd.Spec.Hues[1] != 20000 {
		t.Errorf("command = %+v", cmd)
	}
}

func TestStartAnimation_Errors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   string
		err    error
		status int
	}{
		{"unknown kind", "/api/animations/strobe", "", nil, http.StatusNotFound},
		{"negative", "/api/animations/random", `{"transition":-1}`, nil, http.StatusBadRequest},
		{"no devices", "/api/animations/rotate", "", fmt.Errorf("build rotate: %w", animation.ErrNoDevices), http.StatusUnprocessableEntity},
		{"no scripts", "/api/animations/script", `{"script":"x"}`, animation.ErrScriptUnavailable, http.StatusServiceUnavailable},
		{"timeout", "/api/animations/rainbow", `{"period":10}`, context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"stopped", "/api/animations/rainbow", "", engine.ErrEngineStopped, http.StatusServiceUnavailable},
		{"transport", "/api/animations/random", "", fmt.Errorf("bridge down"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, &fakeEngine{err: tt.err}, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
			var body Error
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Status != tt.status {
				t.Errorf("error body = %s", rec.Body.String())
			}
		})
	}
}

func TestStop(t *testing.T) {
	e := &fakeEngine{}
	rec := serve(t, e, http.MethodPost, "/api/stop", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if _, ok := e.last().(engine.Stop); !ok {
		t.Errorf("command = %T, want Stop", e.last())
	}
}

func TestCORS(t *testing.T) {
	srv := New(Config{CORSOrigins: []string{"http://ui.local"}}, &fakeEngine{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/stop", nil)
	req.Header.Set("Origin", "http://ui.local")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "http://ui.local" {
		t.Errorf("preflight = %d %v", rec.Code, rec.Header())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://evil.local")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("unknown origin was allowed")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rec := serve(t, &fakeEngine{}, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("metrics output missing default collectors")
	}
}

func TestWebsocketStream(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(New(Config{}, &fakeEngine{}, hub).Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws?types=animation_started"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Broadcast(eventbus.Event{Type: eventbus.EventTypeFrame, Data: map[string]interface{}{"cursor": 1}})
	hub.Broadcast(eventbus.Event{Type: eventbus.EventTypeAnimationStarted, Data: map[string]interface{}{"run_id": "r1"}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if msg.Type != string(eventbus.EventTypeAnimationStarted) || msg.Data["run_id"] != "r1" {
		t.Errorf("message = %+v, want the filtered animation_started event", msg)
	}
}
