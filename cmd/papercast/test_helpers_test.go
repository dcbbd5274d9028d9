package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"papercast/internal/config"
	"papercast/internal/daemon"
	"papercast/internal/logging"
	"papercast/internal/testsupport"
)

// writeTestConfig persists cfg next to its temp directories and returns the path.
func writeTestConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// startServer runs a server for cfg and returns its address.
func startServer(t *testing.T, cfg *config.Config) string {
	t.Helper()
	logger := logging.NewNop()
	p, err := daemon.BuildPipeline(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("BuildPipeline: %v", err)
	}
	d, err := daemon.New(cfg, p, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return d.Status().APIAddress
}
