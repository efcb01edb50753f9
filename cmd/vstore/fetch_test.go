package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vango-dev/vstore/internal/errors"
)

func TestFetchCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/users/7":
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"id":7,"name":"Ada"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/users":
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]any{"created": body["name"]})
		case r.URL.Path == "/private":
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `{"reason":"nope"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	path := writeConfig(t, `{"transport": {"baseURL": "`+srv.URL+`"}}`)

	t.Run("get", func(t *testing.T) {
		out, err := execute(t, "fetch", "/users/7", "--config", path)
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		var got map[string]any
		if err := json.Unmarshal([]byte(out), &got); err != nil {
			t.Fatalf("output is not JSON: %q", out)
		}
		if got["name"] != "Ada" {
			t.Errorf("name = %v, want Ada", got["name"])
		}
	})

	t.Run("post body", func(t *testing.T) {
		out, err := execute(t, "fetch", "/users", "--config", path, "-X", "post", "--data", `{"name":"Grace"}`)
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		if !strings.Contains(out, `"created": "Grace"`) {
			t.Errorf("output = %s", out)
		}
	})

	t.Run("http error", func(t *testing.T) {
		_, err := execute(t, "fetch", "/private", "--config", path)
		if err == nil {
			t.Fatal("expected error for 403")
		}
		if got := errors.FromError(err, "V401"); got.Code != "V300" {
			t.Errorf("code = %s, want V300", got.Code)
		}
	})

	t.Run("bad data", func(t *testing.T) {
		_, err := execute(t, "fetch", "/users", "--config", path, "-X", "POST", "--data", "{")
		if got := errors.FromError(err, "V401"); got == nil || got.Code != "V400" {
			t.Errorf("err = %v, want V400", err)
		}
	})
}

func TestFetchBaseURLOverride(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `"ok"`)
	}))
	defer srv.Close()

	missing := writeConfig(t, `{}`) + ".absent"
	out, err := execute(t, "fetch", "/health", "--config", missing, "--base-url", srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if strings.TrimSpace(out) != `"ok"` {
		t.Errorf("output = %q", out)
	}
}

func TestFetchNoServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	path := writeConfig(t, `{"transport": {"baseURL": "`+url+`", "timeout": "2s"}}`)
	_, err := execute(t, "fetch", "/anything", "--config", path)
	if got := errors.FromError(err, "V401"); got == nil || got.Code != "V301" {
		t.Errorf("err = %v, want V301", err)
	}
}
