package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	if cfg.Run.MaxConcurrent != 4 {
		t.Errorf("Run.MaxConcurrent = %d, want 4", cfg.Run.MaxConcurrent)
	}
	if cfg.Run.AttemptLimit != 20 {
		t.Errorf("Run.AttemptLimit = %d, want 20", cfg.Run.AttemptLimit)
	}
	if cfg.Run.Push {
		t.Error("Run.Push should be false by default")
	}
	if cfg.Run.SameBranch {
		t.Error("Run.SameBranch should be false by default")
	}

	if cfg.Executor.Backend != "claude" {
		t.Errorf("Executor.Backend = %q, want %q", cfg.Executor.Backend, "claude")
	}
	if cfg.Executor.FastModel == "" || cfg.Executor.HardModel == "" {
		t.Error("Executor.FastModel and Executor.HardModel should not be empty")
	}

	if cfg.MultiRepo.Enabled {
		t.Error("MultiRepo.Enabled should be false by default")
	}
	if cfg.MultiRepo.Mode != "monorepo" {
		t.Errorf("MultiRepo.Mode = %q, want %q", cfg.MultiRepo.Mode, "monorepo")
	}

	if cfg.Review.ReanalysisInterval != 3 {
		t.Errorf("Review.ReanalysisInterval = %d, want 3", cfg.Review.ReanalysisInterval)
	}
	if len(cfg.Review.ChecklistExtensions) == 0 {
		t.Error("Review.ChecklistExtensions should not be empty by default")
	}

	if cfg.Resources.CostWarningThreshold != 5.00 {
		t.Errorf("Resources.CostWarningThreshold = %f, want 5.00", cfg.Resources.CostWarningThreshold)
	}
	if cfg.Resources.CostLimit != 0 {
		t.Errorf("Resources.CostLimit = %f, want 0", cfg.Resources.CostLimit)
	}
	if cfg.Resources.TokenLimitPerTask != 0 {
		t.Errorf("Resources.TokenLimitPerTask = %d, want 0", cfg.Resources.TokenLimitPerTask)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "INFO")
	}
	if cfg.Logging.MaxSizeMB != 10 {
		t.Errorf("Logging.MaxSizeMB = %d, want 10", cfg.Logging.MaxSizeMB)
	}
	if cfg.Logging.MaxBackups != 3 {
		t.Errorf("Logging.MaxBackups = %d, want 3", cfg.Logging.MaxBackups)
	}
	if !cfg.Logging.Compress {
		t.Error("Logging.Compress should be true by default")
	}
}

func TestExecutorConfig_AttemptTimeout(t *testing.T) {
	tests := []struct {
		seconds  int
		expected time.Duration
	}{
		{30, 30 * time.Second},
		{120, 2 * time.Minute},
		{0, 0},
	}

	for _, tt := range tests {
		cfg := ExecutorConfig{AttemptTimeoutSeconds: tt.seconds}
		result := cfg.AttemptTimeout()
		if result != tt.expected {
			t.Errorf("AttemptTimeout() with %ds = %v, want %v", tt.seconds, result, tt.expected)
		}
	}
}

func TestValidMultiRepoModes(t *testing.T) {
	modes := ValidMultiRepoModes()

	expected := []string{"monorepo", "separate"}
	if len(modes) != len(expected) {
		t.Fatalf("ValidMultiRepoModes() length = %d, want %d", len(modes), len(expected))
	}
	for i, mode := range expected {
		if modes[i] != mode {
			t.Errorf("ValidMultiRepoModes()[%d] = %q, want %q", i, modes[i], mode)
		}
	}
}

func TestIsValidMultiRepoMode(t *testing.T) {
	tests := []struct {
		mode  string
		valid bool
	}{
		{"monorepo", true},
		{"separate", true},
		{"invalid", false},
		{"", false},
		{"MONOREPO", false}, // case sensitive
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			if result := IsValidMultiRepoMode(tt.mode); result != tt.valid {
				t.Errorf("IsValidMultiRepoMode(%q) = %v, want %v", tt.mode, result, tt.valid)
			}
		})
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("with XDG_CONFIG_HOME", func(t *testing.T) {
		original := os.Getenv("XDG_CONFIG_HOME")
		defer func() { _ = os.Setenv("XDG_CONFIG_HOME", original) }()

		_ = os.Setenv("XDG_CONFIG_HOME", "/custom/config")
		result := ConfigDir()
		expected := "/custom/config/taskforge"
		if result != expected {
			t.Errorf("ConfigDir() = %q, want %q", result, expected)
		}
	})

	t.Run("without XDG_CONFIG_HOME", func(t *testing.T) {
		original := os.Getenv("XDG_CONFIG_HOME")
		defer func() { _ = os.Setenv("XDG_CONFIG_HOME", original) }()

		_ = os.Setenv("XDG_CONFIG_HOME", "")
		result := ConfigDir()

		home, _ := os.UserHomeDir()
		expected := filepath.Join(home, ".config", "taskforge")
		if result != expected {
			t.Errorf("ConfigDir() = %q, want %q", result, expected)
		}
	})
}

func TestConfigFile(t *testing.T) {
	original := os.Getenv("XDG_CONFIG_HOME")
	defer func() { _ = os.Setenv("XDG_CONFIG_HOME", original) }()

	_ = os.Setenv("XDG_CONFIG_HOME", "/custom/config")
	result := ConfigFile()
	expected := "/custom/config/taskforge/config.yaml"
	if result != expected {
		t.Errorf("ConfigFile() = %q, want %q", result, expected)
	}
}

func TestGet(t *testing.T) {
	viper.Reset()
	SetDefaults()

	cfg := Get()
	if cfg == nil {
		t.Fatal("Get() returned nil")
	}

	if cfg.Run.MaxConcurrent != 4 {
		t.Errorf("Get().Run.MaxConcurrent = %d, want 4", cfg.Run.MaxConcurrent)
	}
}

func TestConfig_MultiRepo_ViperLoading(t *testing.T) {
	viper.Reset()
	SetDefaults()

	cfg := Get()
	if cfg.MultiRepo.Enabled {
		t.Error("MultiRepo.Enabled should be false after SetDefaults()")
	}

	viper.Set("multi_repo.enabled", true)
	viper.Set("multi_repo.mode", "separate")
	viper.Set("multi_repo.backend", "/repo/backend")
	viper.Set("multi_repo.frontend", "/repo/frontend")

	cfg = Get()
	if !cfg.MultiRepo.Enabled {
		t.Error("MultiRepo.Enabled should be true after viper.Set")
	}
	if cfg.MultiRepo.Mode != "separate" {
		t.Errorf("MultiRepo.Mode = %q, want %q", cfg.MultiRepo.Mode, "separate")
	}
	if cfg.MultiRepo.Backend != "/repo/backend" {
		t.Errorf("MultiRepo.Backend = %q, want %q", cfg.MultiRepo.Backend, "/repo/backend")
	}
}

func TestConfig_RunConfig_ConfigCascade(t *testing.T) {
	t.Run("default value", func(t *testing.T) {
		viper.Reset()
		SetDefaults()

		cfg := Get()
		if cfg.Run.MaxConcurrent != 4 {
			t.Error("default: Run.MaxConcurrent should be 4")
		}
	})

	t.Run("viper.Set overrides default (simulates CLI flag)", func(t *testing.T) {
		viper.Reset()
		SetDefaults()

		viper.Set("run.max_concurrent", 8)

		cfg := Get()
		if cfg.Run.MaxConcurrent != 8 {
			t.Error("after viper.Set: Run.MaxConcurrent should be 8")
		}
	})
}

func TestConfig_ReviewConfig_Prompts(t *testing.T) {
	cfg := Default()

	if cfg.Review.Prompts.Decomposition != "" {
		t.Error("Review.Prompts.Decomposition should be empty by default")
	}
	if cfg.Review.Prompts.Implementation != "" {
		t.Error("Review.Prompts.Implementation should be empty by default")
	}
}
