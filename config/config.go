package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"custseg/dashboard"
	"custseg/logger"
	"custseg/ml"
	"custseg/pipeline"
)

type Config struct {
	Http struct {
		Port         int           `yaml:"port"`
		Timeout      time.Duration `yaml:"timeout"`
		MaxBodyBytes int64         `yaml:"max_body_bytes"`
	} `yaml:"http"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Data struct {
		TransactionsPath string `yaml:"transactions_path"`
		CustomersPath    string `yaml:"customers_path"`
		Encoding         string `yaml:"encoding"`
		BatchSize        int    `yaml:"batch_size"`
	} `yaml:"data"`
	ML struct {
		ModelType      string  `yaml:"model_type"`
		Seed           int64   `yaml:"seed"`
		NEstimators    int     `yaml:"n_estimators"`
		MaxDepth       int     `yaml:"max_depth"`
		TestRatio      float64 `yaml:"test_ratio"`
		SMOTENeighbors int     `yaml:"smote_neighbors"`
		Workers        int     `yaml:"workers"`
	} `yaml:"ml"`
	Dashboard dashboard.Config `yaml:"dashboard"`
	Log       logger.Config    `yaml:"log"`
}

// Default returns the configuration used for every field the file leaves out.
func Default() *Config {
	cfg := &Config{}
	cfg.Http.Port = 8080
	cfg.Http.Timeout = 30 * time.Second
	cfg.Http.MaxBodyBytes = 1 << 20
	cfg.Database.Path = "custseg.db"
	cfg.Data.TransactionsPath = "cleaned_transactions.csv"
	cfg.Data.CustomersPath = "customer_data_with_clusters.csv"
	cfg.Data.Encoding = pipeline.EncodingUTF8
	cfg.Data.BatchSize = 1000

	predictor := ml.DefaultPredictorConfig()
	cfg.ML.ModelType = predictor.ModelType
	cfg.ML.Seed = predictor.Seed
	cfg.ML.NEstimators = predictor.NEstimators
	cfg.ML.TestRatio = predictor.TestRatio
	cfg.ML.SMOTENeighbors = predictor.SMOTENeighbors

	cfg.Dashboard = dashboard.DefaultConfig()
	cfg.Log = logger.Config{Level: "info", Format: "json", MaxSizeMB: 100, MaxBackups: 3, MaxAgeDays: 28}
	return cfg
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Http.Port <= 0 || c.Http.Port > 65535 {
		return fmt.Errorf("http.port %d out of range", c.Http.Port)
	}
	if c.Data.TransactionsPath == "" || c.Data.CustomersPath == "" {
		return errors.New("data.transactions_path and data.customers_path are required")
	}
	if c.ML.TestRatio <= 0 || c.ML.TestRatio >= 1 {
		return fmt.Errorf("ml.test_ratio %v must be between 0 and 1", c.ML.TestRatio)
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// Predictor converts the ml section into the trainer's configuration.
func (c *Config) Predictor() ml.PredictorConfig {
	return ml.PredictorConfig{
		ModelType:      c.ML.ModelType,
		Seed:           c.ML.Seed,
		NEstimators:    c.ML.NEstimators,
		MaxDepth:       c.ML.MaxDepth,
		TestRatio:      c.ML.TestRatio,
		SMOTENeighbors: c.ML.SMOTENeighbors,
		Workers:        c.ML.Workers,
	}
}

func (c *Config) Sources() pipeline.Sources {
	return pipeline.Sources{
		TransactionsPath: c.Data.TransactionsPath,
		CustomersPath:    c.Data.CustomersPath,
		Encoding:         c.Data.Encoding,
	}
}

// Watch reloads path whenever it is written and hands the new config to onChange.
// Invalid edits are logged and skipped. Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, log *zap.Logger, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	// editors replace the file, so watch the directory
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs || !event.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			cfg, err := Load(abs)
			if err != nil {
				log.Warn("config reload failed", zap.String("path", abs), zap.Error(err))
				continue
			}
			onChange(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watcher error", zap.Error(err))
		}
	}
}
