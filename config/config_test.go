package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Http.Port != 8080 || cfg.ML.NEstimators != 100 || cfg.ML.Seed != 42 || cfg.Dashboard.PageSize != 50 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, `
http:
  port: 9090
  timeout: 5s
data:
  encoding: latin1
ml:
  model_type: decision_tree
  n_estimators: 10
log:
  level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Http.Port != 9090 || cfg.Http.Timeout != 5*time.Second {
		t.Errorf("http section not applied: %+v", cfg.Http)
	}
	if cfg.Data.Encoding != "latin1" || cfg.Data.CustomersPath == "" {
		t.Errorf("data section: %+v", cfg.Data)
	}
	pc := cfg.Predictor()
	if pc.ModelType != "decision_tree" || pc.NEstimators != 10 || pc.TestRatio != 0.2 {
		t.Errorf("predictor config: %+v", pc)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log section: %+v", cfg.Log)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":   "http: [",
		"bad port":   "http:\n  port: 70000\n",
		"bad ratio":  "ml:\n  test_ratio: 1.5\n",
		"bad level":  "log:\n  level: shout\n",
		"empty data": "data:\n  customers_path: \"\"\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			writeFile(t, path, body)
			if _, err := Load(path); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "")
	if _, err := Load(path); err != nil {
		t.Fatalf("empty file should give defaults, got %v", err)
	}
}

func TestWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "log:\n  level: info\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 8)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, zap.NewNop(), func(cfg *Config) {
			select {
			case changes <- cfg:
			default:
			}
		})
	}()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case cfg := <-changes:
			if cfg.Log.Level != "warn" {
				continue
			}
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("Watch returned %v", err)
			}
			return
		case <-tick.C:
			// rewrite until the watcher, which starts asynchronously, sees it
			writeFile(t, path, "log:\n  level: warn\n")
		case <-deadline:
			t.Fatal("no change observed")
		}
	}
}
