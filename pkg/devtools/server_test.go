package devtools

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/vango-dev/vstore/pkg/middleware"
	"github.com/vango-dev/vstore/pkg/store"
)

func newTestRegistry(t *testing.T, opts ...store.Option) (*store.Registry, chan struct{}) {
	t.Helper()
	release := make(chan struct{})
	reg, err := store.Create(store.Declarations{
		"counter": {
			"count": 0,
			"increment": store.SyncFunc(func(args ...any) store.Result {
				step := 1
				if len(args) > 0 {
					if f, ok := args[0].(float64); ok {
						step = int(f)
					}
				}
				return store.Thunk(func(st store.State) store.Delta {
					return store.Delta{"count": st["count"].(int) + step}
				})
			}),
			"load": store.AsyncFunc(func(ctx context.Context, args ...any) (any, error) {
				return store.Data(map[string]any{"loaded": true}), nil
			}),
			"block": store.AsyncFunc(func(ctx context.Context, args ...any) (any, error) {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-release:
					return "released", nil
				}
			}),
		},
	}, opts...)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	t.Cleanup(func() {
		select {
		case <-release:
		default:
			close(release)
		}
	})
	return reg, release
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
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

func TestServer_ListAndSnapshot(t *testing.T) {
	reg, _ := newTestRegistry(t)
	srv := New(reg)

	rec := doRequest(t, srv, http.MethodGet, "/stores", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	list := decode[map[string][]string](t, rec)
	if len(list["stores"]) != 1 || list["stores"][0] != "counter" {
		t.Fatalf("stores = %v", list)
	}

	rec = doRequest(t, srv, http.MethodGet, "/stores/counter", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	snap := decode[map[string]any](t, rec)
	state := snap["state"].(map[string]any)
	if state["count"] != float64(0) {
		t.Fatalf("count = %v", state["count"])
	}
	load := state["load"].(map[string]any)
	if load["loading"] != false || load["data"] != nil {
		t.Fatalf("load slot = %v", load)
	}
	if _, ok := state["increment"]; ok {
		t.Fatal("sync actions must not appear in state")
	}

	rec = doRequest(t, srv, http.MethodGet, "/stores/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing store status = %d, want 404", rec.Code)
	}
}

func TestServer_Dispatch(t *testing.T) {
	reg, _ := newTestRegistry(t)
	srv := New(reg)

	t.Run("sync", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/stores/counter/actions/increment", `{"args":[5]}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body)
		}
		resp := decode[map[string]any](t, rec)
		if resp["status"] != "applied" {
			t.Fatalf("status = %v", resp["status"])
		}
		state := resp["snapshot"].(map[string]any)["state"].(map[string]any)
		if state["count"] != float64(5) {
			t.Fatalf("count = %v", state["count"])
		}
	})

	t.Run("sync without body", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/stores/counter/actions/increment", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body)
		}
		if v, _ := reg.MustStore("counter").Value("count"); v != 6 {
			t.Fatalf("count = %v, want 6", v)
		}
	})

	t.Run("async wait", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/stores/counter/actions/load?wait=true", `{}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body)
		}
		resp := decode[map[string]any](t, rec)
		if resp["status"] != "success" || resp["callId"] == "" {
			t.Fatalf("resp = %v", resp)
		}
		data := resp["slot"].(map[string]any)["data"].(map[string]any)
		if data["loaded"] != true {
			t.Fatalf("slot data = %v", data)
		}
	})

	t.Run("bad body", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/stores/counter/actions/increment", `{`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("unknown action", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/stores/counter/actions/nope", "")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
		rec = doRequest(t, srv, http.MethodPost, "/stores/counter/actions/count", "")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("plain value status = %d, want 404", rec.Code)
		}
	})
}

func TestServer_CancelAndReset(t *testing.T) {
	reg, _ := newTestRegistry(t)
	srv := New(reg)
	block := reg.MustStore("counter").MustAsync("block")

	rec := doRequest(t, srv, http.MethodPost, "/stores/counter/actions/block", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if resp := decode[map[string]any](t, rec); resp["status"] != StatusStarted {
		t.Fatalf("resp = %v", resp)
	}
	if !block.Loading() {
		t.Fatal("expected the call to outlive the request")
	}

	rec = doRequest(t, srv, http.MethodPost, "/stores/counter/actions/block/cancel", "")
	if resp := decode[map[string]bool](t, rec); !resp["cancelled"] {
		t.Fatalf("resp = %v", resp)
	}
	waitFor(t, func() bool { return !block.Loading() })

	rec = doRequest(t, srv, http.MethodPost, "/stores/counter/actions/block/cancel", "")
	if resp := decode[map[string]bool](t, rec); resp["cancelled"] {
		t.Fatal("second cancel should be a no-op")
	}

	rec = doRequest(t, srv, http.MethodPost, "/stores/counter/actions/block/reset", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodPost, "/stores/counter/actions/increment/reset", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("reset of sync action status = %d, want 404", rec.Code)
	}
}

func TestServer_Metrics(t *testing.T) {
	promReg := prometheus.NewRegistry()
	reg, _ := newTestRegistry(t, store.WithMiddleware(middleware.Prometheus(middleware.WithRegistry(promReg))))
	srv := New(reg, WithMetrics("/metrics", promReg))

	doRequest(t, srv, http.MethodPost, "/stores/counter/actions/increment", "")
	rec := doRequest(t, srv, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `vstore_dispatches_total{action="increment",kind="sync",status="applied",store="counter"} 1`) {
		t.Fatalf("metrics output missing dispatch counter:\n%s", rec.Body)
	}
}

func TestServer_WebSocketStream(t *testing.T) {
	reg, _ := newTestRegistry(t)
	srv := New(reg)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/stores/counter/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer conn.Close()

	first := readMessage(t, conn)
	if first.Type != MessageSnapshot || first.Snapshot == nil || first.Version != 0 {
		t.Fatalf("first message = %+v", first)
	}

	reg.MustStore("counter").MustSync("increment").Dispatch()

	next := readMessage(t, conn)
	if next.Version != 1 {
		t.Fatalf("version = %d, want 1", next.Version)
	}
	if next.State["count"] != float64(1) {
		t.Fatalf("count = %v", next.State["count"])
	}
	if srv.Clients() != 1 {
		t.Fatalf("clients = %d, want 1", srv.Clients())
	}

	conn.Close()
	waitFor(t, func() bool { return srv.Clients() == 0 })
}

func TestServer_RunShutdown(t *testing.T) {
	reg, _ := newTestRegistry(t)
	srv := New(reg, WithShutdownTimeout(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, "127.0.0.1:0") }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestServer_DispatchWaitAborted(t *testing.T) {
	reg, _ := newTestRegistry(t)
	srv := New(reg)
	block := reg.MustStore("counter").MustAsync("block")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodPost, "/stores/counter/actions/block?wait=true", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504", rec.Code)
	}
	if resp := decode[map[string]string](t, rec); !strings.Contains(resp["error"], "before the call settled") {
		t.Errorf("resp = %v", resp)
	}
	if !block.Loading() {
		t.Error("expected the call to keep running after the request ended")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&store.StoreNotFoundError{Name: "x"}, http.StatusNotFound},
		{store.ErrUnknownAction, http.StatusNotFound},
		{errBadRequest, http.StatusBadRequest},
		{errWaitAborted, http.StatusGatewayTimeout},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error: %v", err)
	}
	return msg
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
