package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/brunel/internal/export"
	"github.com/nvandessel/brunel/internal/network"
	"github.com/nvandessel/brunel/internal/params"
)

func TestDefault(t *testing.T) {
	config := Default()

	if config.Model != params.Default() {
		t.Errorf("expected default model parameters, got %+v", config.Model)
	}
	if config.Network.Seed != network.DefaultSeed {
		t.Errorf("expected Seed %d, got %d", network.DefaultSeed, config.Network.Seed)
	}
	if config.Network.Workers != 1 {
		t.Errorf("expected Workers 1, got %d", config.Network.Workers)
	}
	if config.Output.File != "simulationData.txt" {
		t.Errorf("expected Output.File 'simulationData.txt', got '%s'", config.Output.File)
	}
	if config.OutputFormat() != export.FormatText {
		t.Errorf("expected text format, got '%s'", config.Output.Format)
	}
	if !config.Store.Enabled {
		t.Error("expected Store.Enabled to be true by default")
	}
	if config.Logging.Level != "info" {
		t.Errorf("expected Logging.Level 'info', got '%s'", config.Logging.Level)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
model:
  neurons: 2500
  inhibitory_ratio: 6
network:
  seed: 42
  workers: 4
output:
  format: arrow
  plot: true
logging:
  level: debug
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.Model.Neurons != 2500 {
		t.Errorf("expected Neurons 2500, got %d", config.Model.Neurons)
	}
	if config.Model.InhibitoryRatio != 6 {
		t.Errorf("expected InhibitoryRatio 6, got %v", config.Model.InhibitoryRatio)
	}
	// Keys missing from the file keep their defaults.
	if config.Model.Delay != params.DefaultDelay {
		t.Errorf("expected default Delay, got %d", config.Model.Delay)
	}
	if config.Network.Seed != 42 || config.Network.Workers != 4 {
		t.Errorf("expected seed 42 and 4 workers, got %+v", config.Network)
	}
	if config.OutputFormat() != export.FormatArrow || !config.Output.Plot {
		t.Errorf("unexpected output section: %+v", config.Output)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("expected Logging.Level 'debug', got '%s'", config.Logging.Level)
	}
}

func TestLoadFromFile_ExpandsPaths(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("BRUNEL_TEST_DIR", tmpDir)
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := "output:\n  dir: ${BRUNEL_TEST_DIR}/out\nstore:\n  dir: ${BRUNEL_TEST_DIR}/db\n"
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if config.Output.Dir != tmpDir+"/out" {
		t.Errorf("expected expanded output dir, got '%s'", config.Output.Dir)
	}
	if config.Store.Dir != tmpDir+"/db" {
		t.Errorf("expected expanded store dir, got '%s'", config.Store.Dir)
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	tmpDir := t.TempDir()

	if _, err := LoadFromFile(filepath.Join(tmpDir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(tmpDir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("model: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(bad); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoad_DefaultLocation(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	// No file: defaults.
	config, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.Model.Neurons != params.DefaultNeurons {
		t.Errorf("expected default Neurons, got %d", config.Model.Neurons)
	}

	path := filepath.Join(home, ".brunel", FileName)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("model:\n  neurons: 1000\n"), 0600); err != nil {
		t.Fatal(err)
	}
	config, err = Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.Model.Neurons != 1000 {
		t.Errorf("expected Neurons 1000 from ~/.brunel/config.yaml, got %d", config.Model.Neurons)
	}
}

func TestLoad_ExplicitPathMustExist(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("BRUNEL_NEURONS", "1250")
	t.Setenv("BRUNEL_SEED", "18446744073709551615")
	t.Setenv("BRUNEL_NOISE_SEED", "7")
	t.Setenv("BRUNEL_WORKERS", "8")
	t.Setenv("BRUNEL_OUTPUT_FORMAT", "ARROW")
	t.Setenv("BRUNEL_PLOT", "yes")
	t.Setenv("BRUNEL_STORE_ENABLED", "false")
	t.Setenv("BRUNEL_LOG_LEVEL", "trace")

	config, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if config.Model.Neurons != 1250 {
		t.Errorf("expected Neurons 1250, got %d", config.Model.Neurons)
	}
	if config.Network.Seed != 18446744073709551615 {
		t.Errorf("expected max uint64 seed, got %d", config.Network.Seed)
	}
	if config.Network.NoiseSeed != 7 || config.Network.Workers != 8 {
		t.Errorf("unexpected network section: %+v", config.Network)
	}
	if config.Output.Format != "arrow" || !config.Output.Plot {
		t.Errorf("unexpected output section: %+v", config.Output)
	}
	if config.Store.Enabled {
		t.Error("expected store disabled by env")
	}
	if config.Logging.Level != "trace" {
		t.Errorf("expected trace level, got '%s'", config.Logging.Level)
	}
}

func TestLoad_InvalidEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("BRUNEL_WORKERS", "many")

	_, err := Load("")
	if err == nil {
		t.Fatal("expected error for non-numeric BRUNEL_WORKERS")
	}
	if !strings.Contains(err.Error(), "BRUNEL_WORKERS") {
		t.Errorf("error should name the variable: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*BrunelConfig)
		wantErr bool
	}{
		{"default", func(c *BrunelConfig) {}, false},
		{"empty level", func(c *BrunelConfig) { c.Logging.Level = "" }, false},
		{"bad level", func(c *BrunelConfig) { c.Logging.Level = "verbose" }, true},
		{"bad format", func(c *BrunelConfig) { c.Output.Format = "csv" }, true},
		{"negative workers", func(c *BrunelConfig) { c.Network.Workers = -1 }, true},
		{"too many workers", func(c *BrunelConfig) { c.Network.Workers = network.MaxWorkers + 1 }, true},
		{"max workers", func(c *BrunelConfig) { c.Network.Workers = network.MaxWorkers }, false},
		{"NaN threshold", func(c *BrunelConfig) { c.Model.Threshold = math.NaN() }, true},
		{"zero delay", func(c *BrunelConfig) { c.Model.Delay = 0 }, true},
		{"no neurons", func(c *BrunelConfig) { c.Model.Neurons = 0 }, true},
		{"negative backup count", func(c *BrunelConfig) { c.Backup.MaxCount = -1 }, true},
		{"bad backup age", func(c *BrunelConfig) { c.Backup.MaxAge = "soon" }, true},
		{"bad backup size", func(c *BrunelConfig) { c.Backup.MaxTotalSize = "10XB" }, true},
		{"backup retention", func(c *BrunelConfig) { c.Backup.MaxAge = "2w"; c.Backup.MaxTotalSize = "1GB" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.modify(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetSet(t *testing.T) {
	c := Default()

	tests := []struct {
		key   string
		value string
		want  any
	}{
		{"model.neurons", "600", 600},
		{"model.step_size_ms", "0.05", 0.05},
		{"network.seed", "99", uint64(99)},
		{"network.workers", "2", 2},
		{"output.format", "arrow", "arrow"},
		{"output.plot", "true", true},
		{"store.enabled", "0", false},
		{"logging.level", "DEBUG", "debug"},
		{"backup.max_count", "3", 3},
		{"backup.max_age", "30d", "30d"},
		{"backup.max_total_size", "100MB", "100MB"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if err := c.Set(tt.key, tt.value); err != nil {
				t.Fatalf("Set(%q, %q) error = %v", tt.key, tt.value, err)
			}
			got, ok := c.Get(tt.key)
			if !ok || got != tt.want {
				t.Errorf("Get(%q) = %v (%T), want %v (%T)", tt.key, got, got, tt.want, tt.want)
			}
		})
	}

	if err := c.Set("model.nope", "1"); err == nil {
		t.Error("expected error for unknown key")
	}
	if err := c.Set("model.delay", "1.5"); err == nil {
		t.Error("expected error for non-integer delay")
	}
	if err := c.Set("output.format", "csv"); err == nil {
		t.Error("expected error for unknown format")
	}
	nan := Default()
	if err := nan.Set("model.threshold_mv", "NaN"); err != nil {
		t.Fatalf("Set(NaN) error = %v", err)
	}
	if err := nan.Validate(); err == nil {
		t.Error("Validate() should reject a NaN threshold set from text")
	}
	if err := c.Set("backup.max_age", "forever"); err == nil {
		t.Error("expected error for invalid backup age")
	}
	if _, ok := c.Get("llm.provider"); ok {
		t.Error("Get should reject unknown keys")
	}

	for _, key := range Keys() {
		if _, ok := c.Get(key); !ok {
			t.Errorf("Keys() lists %q but Get does not know it", key)
		}
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	c := Default()
	c.Model.Neurons = 777
	c.Network.NoiseSeed = 5

	if err := c.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected mode 0600, got %v", info.Mode().Perm())
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if loaded.Model.Neurons != 777 || loaded.Network.NoiseSeed != 5 {
		t.Errorf("round trip lost values: %+v", loaded)
	}
}

func TestBackupConfig_Policy(t *testing.T) {
	tests := []struct {
		name string
		cfg  BackupConfig
		want string
	}{
		{"nothing configured", BackupConfig{}, "backup.CountPolicy"},
		{"count only", BackupConfig{MaxCount: 3}, "backup.CountPolicy"},
		{"age only", BackupConfig{MaxAge: "7d"}, "backup.AgePolicy"},
		{"size only", BackupConfig{MaxTotalSize: "1MB"}, "backup.SizePolicy"},
		{"count and age", BackupConfig{MaxCount: 3, MaxAge: "7d"}, "backup.AnyPolicy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fmt.Sprintf("%T", tt.cfg.Policy())
			if got != tt.want {
				t.Errorf("Policy() type = %s, want %s", got, tt.want)
			}
		})
	}
}
