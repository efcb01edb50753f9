package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/vango-dev/vstore/internal/errors"
)

func TestMain(m *testing.M) {
	errors.DisableColors()
	os.Exit(m.Run())
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root, _ := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// writeConfig writes a vstore.json with body into a temp dir.
func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vstore.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVersionShort(t *testing.T) {
	out, err := execute(t, "version", "--short")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if out != version+"\n" {
		t.Errorf("output = %q, want %q", out, version+"\n")
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	path := writeConfig(t, `{"log": {"level": "loud"}}`)
	_, err := execute(t, "stores", "--config", path)
	if err == nil {
		t.Fatal("expected error for invalid log level")
	}
	if got := errors.FromError(err, "V401"); got.Code != "V102" {
		t.Errorf("code = %s, want V102", got.Code)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := execute(t, "stores", "--config", filepath.Join(t.TempDir(), "vstore.json"))
	if err == nil {
		t.Fatal("expected error for missing config")
	}
}
