package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"coopsched/internal/config"
	"coopsched/internal/sched"
)

// testServer returns a server over a scheduler that is never started;
// tests drive it with Dispatch.
func testServer(t *testing.T) (*Server, *sched.Scheduler) {
	t.Helper()
	sc := sched.New(sched.DefaultConfig())
	t.Cleanup(func() { sc.Stop() })
	return New(config.DefaultServerConfig(), sc, zap.NewNop()), sc
}

// envelope is used to decode the standard response envelope.
type envelope struct {
	Status    string          `json:"status"`
	RequestID string          `json:"request_id"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
	Error     *APIError       `json:"error"`
}

func do(t *testing.T, srv *Server, method, path, body string, want int) envelope {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != want {
		t.Fatalf("%s %s: status=%d, want %d, body=%s", method, path, w.Code, want, w.Body.String())
	}
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: invalid JSON: %v", method, path, err)
	}
	return env
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)
	env := do(t, srv, "GET", "/health", "", http.StatusOK)
	if env.Status != "ok" {
		t.Errorf("status = %q, want ok", env.Status)
	}
	if !strings.HasPrefix(env.RequestID, "req_") {
		t.Errorf("request_id = %q, want req_ prefix", env.RequestID)
	}
	var data map[string]any
	json.Unmarshal(env.Data, &data)
	if data["status"] != "healthy" {
		t.Errorf("data.status = %v, want healthy", data["status"])
	}
}

func TestStats(t *testing.T) {
	srv, sc := testServer(t)
	sc.Enqueue(func(context.Context) (any, error) { return nil, nil }, sched.Low)
	sc.Enqueue(func(context.Context) (any, error) { return nil, nil }, sched.Idle)

	env := do(t, srv, "GET", "/api/v1/stats", "", http.StatusOK)
	var st StatsView
	if err := json.Unmarshal(env.Data, &st); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if st.Low != 1 || st.Idle != 1 || st.Queued != 2 {
		t.Errorf("stats = %+v, want low=1 idle=1 queued=2", st)
	}
	if st.Dispatching {
		t.Error("is_dispatching = true on an idle scheduler")
	}
}

func TestConfig_GetAndPatch(t *testing.T) {
	srv, sc := testServer(t)

	env := do(t, srv, "GET", "/api/v1/config", "", http.StatusOK)
	var cfg sched.Config
	json.Unmarshal(env.Data, &cfg)
	if cfg.ChunkSize != 3 {
		t.Errorf("chunk_size = %d, want 3", cfg.ChunkSize)
	}

	env = do(t, srv, "PATCH", "/api/v1/config", `{"chunk_size": 5, "debug_mode": true}`, http.StatusOK)
	json.Unmarshal(env.Data, &cfg)
	if cfg.ChunkSize != 5 || !cfg.DebugMode {
		t.Errorf("patched config = %+v, want chunk_size=5 debug_mode=true", cfg)
	}
	if got := sc.Config().ChunkSize; got != 5 {
		t.Errorf("scheduler chunk_size = %d, want 5", got)
	}
}

func TestConfig_PatchInvalid(t *testing.T) {
	srv, sc := testServer(t)

	env := do(t, srv, "PATCH", "/api/v1/config", `{"chunk_size": 0}`, http.StatusBadRequest)
	if env.Error == nil || env.Error.Code != codeValidation {
		t.Errorf("error = %+v, want %s", env.Error, codeValidation)
	}
	if got := sc.Config().ChunkSize; got != 3 {
		t.Errorf("chunk_size = %d after rejected patch, want 3", got)
	}

	do(t, srv, "PATCH", "/api/v1/config", `{"tick_ms": 5}`, http.StatusBadRequest)
}

func TestCreateTask_RunsOnDispatch(t *testing.T) {
	srv, sc := testServer(t)

	env := do(t, srv, "POST", "/api/v1/tasks", `{"kind":"sleep","priority":"low","ms":1,"label":"nap"}`, http.StatusAccepted)
	var v TaskView
	json.Unmarshal(env.Data, &v)
	if v.ID == 0 || v.State != "queued" || v.Priority != "low" || v.Label != "nap" {
		t.Fatalf("created = %+v", v)
	}

	if n := sc.Dispatch(context.Background()); n != 1 {
		t.Fatalf("Dispatch ran %d tasks, want 1", n)
	}

	env = do(t, srv, "GET", "/api/v1/tasks/1", "", http.StatusOK)
	json.Unmarshal(env.Data, &v)
	if v.State != "succeeded" {
		t.Errorf("state = %q, want succeeded", v.State)
	}
	if _, ok := v.Result.(string); !ok {
		t.Errorf("result = %#v, want duration string", v.Result)
	}
}

func TestCreateTask_Fail(t *testing.T) {
	srv, sc := testServer(t)
	do(t, srv, "POST", "/api/v1/tasks", `{"kind":"fail","priority":"high","message":"boom"}`, http.StatusAccepted)
	sc.Dispatch(context.Background())

	env := do(t, srv, "GET", "/api/v1/tasks/1", "", http.StatusOK)
	var v TaskView
	json.Unmarshal(env.Data, &v)
	if v.State != "failed" || v.Error != "boom" {
		t.Errorf("task = %+v, want failed with boom", v)
	}
}

func TestCreateTask_Fetch(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/javascript")
		w.Write([]byte("console.log('hi')"))
	}))
	defer origin.Close()

	srv, sc := testServer(t)
	body := `{"kind":"fetch","url":"` + origin.URL + `/app.js"}`
	env := do(t, srv, "POST", "/api/v1/tasks", body, http.StatusAccepted)
	var v TaskView
	json.Unmarshal(env.Data, &v)
	if v.Priority != "normal" {
		t.Errorf("priority = %q, want normal", v.Priority)
	}
	if v.Label != origin.URL+"/app.js" {
		t.Errorf("label = %q, want url", v.Label)
	}

	sc.Dispatch(context.Background())

	env = do(t, srv, "GET", "/api/v1/tasks/1", "", http.StatusOK)
	var got struct {
		State  string `json:"state"`
		Result struct {
			Size      int64  `json:"size"`
			SizeHuman string `json:"size_human"`
		} `json:"result"`
	}
	json.Unmarshal(env.Data, &got)
	if got.State != "succeeded" || got.Result.Size != 17 || got.Result.SizeHuman != "17 B" {
		t.Errorf("fetch task = %+v", got)
	}
}

func TestCreateTask_Validation(t *testing.T) {
	srv, _ := testServer(t)
	cases := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"unknown kind", `{"kind":"dance"}`},
		{"unknown priority", `{"kind":"sleep","priority":"urgent"}`},
		{"negative ms", `{"kind":"sleep","ms":-1}`},
		{"fetch without url", `{"kind":"fetch"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := do(t, srv, "POST", "/api/v1/tasks", tc.body, http.StatusBadRequest)
			if env.Status != "error" || env.Error == nil {
				t.Errorf("envelope = %+v, want error", env)
			}
		})
	}
}

func TestCreateTask_AfterStop(t *testing.T) {
	srv, sc := testServer(t)
	sc.Stop()
	env := do(t, srv, "POST", "/api/v1/tasks", `{"kind":"sleep"}`, http.StatusServiceUnavailable)
	if env.Error == nil || env.Error.Code != codeStopped {
		t.Errorf("error = %+v, want %s", env.Error, codeStopped)
	}
}

func TestListTasks_OrderedByID(t *testing.T) {
	srv, _ := testServer(t)
	for _, p := range []string{"idle", "high", "low"} {
		do(t, srv, "POST", "/api/v1/tasks", `{"kind":"sleep","priority":"`+p+`"}`, http.StatusAccepted)
	}
	env := do(t, srv, "GET", "/api/v1/tasks", "", http.StatusOK)
	var views []TaskView
	json.Unmarshal(env.Data, &views)
	if len(views) != 3 {
		t.Fatalf("got %d tasks, want 3", len(views))
	}
	for i, v := range views {
		if v.ID != sched.TaskID(i+1) {
			t.Errorf("views[%d].ID = %d, want %d", i, v.ID, i+1)
		}
	}
	if views[0].Priority != "idle" || views[1].Priority != "high" {
		t.Errorf("priorities = %s,%s", views[0].Priority, views[1].Priority)
	}
}

func TestGetTask_NotFound(t *testing.T) {
	srv, _ := testServer(t)
	do(t, srv, "GET", "/api/v1/tasks/42", "", http.StatusNotFound)
	do(t, srv, "GET", "/api/v1/tasks/abc", "", http.StatusBadRequest)
}

func TestRegistry_PrunesSettled(t *testing.T) {
	sc := sched.New(sched.DefaultConfig())
	defer sc.Stop()
	reg := newRegistry(2)

	add := func() *sched.Future {
		f := sc.Enqueue(func(context.Context) (any, error) { return nil, nil }, sched.High)
		if _, err := reg.admit(func() *tracked { return &tracked{ID: f.ID(), future: f} }); err != nil {
			t.Fatalf("admit: %v", err)
		}
		return f
	}
	add()
	add()
	sc.Dispatch(context.Background()) // settles 1 and 2
	add()

	got := reg.list()
	if len(got) != 2 || got[0].ID != 2 || got[1].ID != 3 {
		ids := make([]sched.TaskID, 0, len(got))
		for _, t := range got {
			ids = append(ids, t.ID)
		}
		t.Errorf("ids = %v, want [2 3]", ids)
	}
}

func TestRegistry_RefusesWhenUnsettledAtCap(t *testing.T) {
	sc := sched.New(sched.DefaultConfig())
	defer sc.Stop()
	reg := newRegistry(2)

	for i := 0; i < 2; i++ {
		f := sc.Enqueue(func(context.Context) (any, error) { return nil, nil }, sched.Low)
		if _, err := reg.admit(func() *tracked { return &tracked{ID: f.ID(), future: f} }); err != nil {
			t.Fatalf("admit %d: %v", i, err)
		}
	}

	called := false
	_, err := reg.admit(func() *tracked {
		called = true
		return nil
	})
	if !errors.Is(err, errRegistryFull) {
		t.Fatalf("err = %v, want errRegistryFull", err)
	}
	if called {
		t.Error("submit ran although the registry was full")
	}
	if n := len(reg.list()); n != 2 {
		t.Errorf("tracked = %d, want 2", n)
	}
}

func TestCreateTask_TooManyPending(t *testing.T) {
	sc := sched.New(sched.DefaultConfig())
	t.Cleanup(func() { sc.Stop() })
	cfg := config.DefaultServerConfig()
	cfg.MaxTracked = 1
	srv := New(cfg, sc, zap.NewNop())

	do(t, srv, "POST", "/api/v1/tasks", `{"kind":"sleep","priority":"low","ms":1}`, http.StatusAccepted)
	env := do(t, srv, "POST", "/api/v1/tasks", `{"kind":"sleep","priority":"low","ms":1}`, http.StatusTooManyRequests)
	if env.Error == nil || env.Error.Code != codeTooMany {
		t.Fatalf("error = %+v, want %s", env.Error, codeTooMany)
	}
	if q := sc.Stats().Queued(); q != 1 {
		t.Errorf("queued = %d, want 1 (refused task must not reach the scheduler)", q)
	}

	sc.Dispatch(context.Background())
	do(t, srv, "POST", "/api/v1/tasks", `{"kind":"sleep","priority":"low","ms":1}`, http.StatusAccepted)
}
