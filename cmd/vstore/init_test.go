package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vango-dev/vstore/internal/config"
	"github.com/vango-dev/vstore/internal/errors"
)

func TestInitCommand(t *testing.T) {
	tests := []struct {
		format string
		file   string
	}{
		{"json", config.ConfigFileName},
		{"toml", config.TOMLConfigFileName},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "app")
			out, err := execute(t, "init", dir, "--format", tt.format)
			if err != nil {
				t.Fatalf("init: %v", err)
			}
			path := filepath.Join(dir, tt.file)
			if !strings.Contains(out, path) {
				t.Errorf("output = %q", out)
			}

			cfg, err := config.LoadFile(path)
			if err != nil {
				t.Fatalf("LoadFile: %v", err)
			}
			if err := cfg.Validate(); err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if cfg.Server.Address != config.DefaultAddress {
				t.Errorf("Server.Address = %q", cfg.Server.Address)
			}
			if _, ok := cfg.Stores["counter"].Values["count"]; !ok {
				t.Error("expected the counter store")
			}

			out, err = execute(t, "stores", "--config", path)
			if err != nil {
				t.Fatalf("stores: %v", err)
			}
			if !strings.Contains(out, "counter") {
				t.Errorf("stores output = %q", out)
			}
		})
	}
}

func TestInitRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, config.ConfigFileName), []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := execute(t, "init", dir)
	if got := errors.FromError(err, "V401"); got == nil || got.Code != "V400" {
		t.Fatalf("err = %v, want V400", err)
	}
	if _, err := execute(t, "init", dir, "--force"); err != nil {
		t.Fatalf("init --force: %v", err)
	}
}

func TestInitBadFormat(t *testing.T) {
	_, err := execute(t, "init", t.TempDir(), "--format", "yaml")
	if got := errors.FromError(err, "V401"); got == nil || got.Code != "V400" {
		t.Errorf("err = %v, want V400", err)
	}
}
