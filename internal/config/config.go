package config

import (
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete Task Forge configuration.
type Config struct {
	Run       RunConfig       `mapstructure:"run"`
	Executor  ExecutorConfig  `mapstructure:"executor"`
	MultiRepo MultiRepoConfig `mapstructure:"multi_repo"`
	Review    ReviewConfig    `mapstructure:"review"`
	Finalizer FinalizerConfig `mapstructure:"finalizer"`
	Resources ResourceConfig  `mapstructure:"resources"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// RunConfig controls top-level scheduling behavior for a run.
type RunConfig struct {
	// MaxConcurrent is the scheduler's wave concurrency cap: the maximum
	// number of tasks dispatched in-flight at once.
	MaxConcurrent int `mapstructure:"max_concurrent"`
	// AttemptLimit is the per-task attempt budget before a task is moved
	// to a terminal blocked state. 0 means unlimited.
	AttemptLimit int `mapstructure:"attempt_limit"`
	// Push controls whether the finalizer pushes the run's commits to the
	// remote after a successful run.
	Push bool `mapstructure:"push"`
	// SameBranch is recorded from --same-branch but not consulted: a run
	// never creates a per-run branch, so task commits always land on the
	// branch the run started on whatever its value.
	SameBranch bool `mapstructure:"same_branch"`
}

// ExecutorConfig selects and configures the executor subprocess backend.
type ExecutorConfig struct {
	// Backend names the executor binary/backend the Supervisor invokes
	// (e.g. "codex", "claude"). Run-wide; not overridable per task.
	Backend string `mapstructure:"backend"`
	// FastModel is the model identifier used for low-difficulty tasks and
	// first-pass review.
	FastModel string `mapstructure:"fast_model"`
	// HardModel is the model identifier used for escalated review passes
	// and re-analysis.
	HardModel string `mapstructure:"hard_model"`
	// AttemptTimeoutSeconds bounds the wall-clock duration of a single
	// executor invocation. 0 means no bound.
	AttemptTimeoutSeconds int `mapstructure:"attempt_timeout_seconds"`
}

// MultiRepoConfig controls dispatch across one or two git repositories.
type MultiRepoConfig struct {
	// Enabled turns on multi-repo routing. When false, all tasks commit to
	// the single repository rooted at the current working directory.
	Enabled bool `mapstructure:"enabled"`
	// Mode is "monorepo" (both scopes share one repository) or "separate"
	// (backend and frontend are distinct repositories).
	Mode string `mapstructure:"mode"`
	// Backend is the path to the backend repository (separate mode only).
	Backend string `mapstructure:"backend"`
	// Frontend is the path to the frontend repository (separate mode only).
	Frontend string `mapstructure:"frontend"`
}

// ReviewConfig controls the review and escalation engine.
type ReviewConfig struct {
	// ChecklistExtensions is the glob allow-list of file extensions
	// included when building a task's context chain.
	ChecklistExtensions []string `mapstructure:"checklist_extensions"`
	// ChecklistExcludes is a list of glob patterns excluded from the
	// context chain even if they match ChecklistExtensions
	// (e.g. "**/*_test.go").
	ChecklistExcludes []string `mapstructure:"checklist_excludes"`
	// ReanalysisInterval is validated (it must be at least 1) but not
	// consulted: deep re-analysis (blueprint rewrite) always triggers on
	// every third attempt, per state.ExecutionRecord.NeedsReanalysis.
	// Default 3.
	ReanalysisInterval int `mapstructure:"reanalysis_interval"`
	// Prompts contains custom prompt template overrides for each stage.
	// Empty strings use the built-in templates.
	Prompts PromptOverrides `mapstructure:"prompts"`
}

// PromptOverrides contains custom prompt template overrides per stage.
type PromptOverrides struct {
	Decomposition  string `mapstructure:"decomposition"`
	Blueprint      string `mapstructure:"blueprint"`
	Implementation string `mapstructure:"implementation"`
	Review         string `mapstructure:"review"`
	Reanalysis     string `mapstructure:"reanalysis"`
}

// FinalizerConfig controls the run-level critical-bug sweep (§4.7).
type FinalizerConfig struct {
	// MaxIterations bounds how many sweep iterations run before the
	// finalizer gives up without the CRITICAL_REVIEW_PASSED marker.
	MaxIterations int `mapstructure:"max_iterations"`
	// BaseBranch is the branch the cumulative diff is computed against.
	BaseBranch string `mapstructure:"base_branch"`
}

// ResourceConfig controls resource monitoring and cost tracking.
type ResourceConfig struct {
	// CostWarningThreshold, CostLimit and TokenLimitPerTask are loaded and
	// validated, but no component reads them: no cost warning is emitted
	// and no cost or token limit is enforced during a run.
	//
	// CostWarningThreshold is a run cost in USD.
	CostWarningThreshold float64 `mapstructure:"cost_warning_threshold"`
	// CostLimit is a run cost in USD; it must not be below
	// CostWarningThreshold when set. 0 = no limit.
	CostLimit float64 `mapstructure:"cost_limit"`
	// TokenLimitPerTask is a per-task token count. 0 = no limit.
	TokenLimitPerTask int64 `mapstructure:"token_limit_per_task"`
	// MetricsAddr is the listen address for the optional Prometheus
	// /metrics HTTP endpoint. Empty disables the endpoint.
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	// Level is one of DEBUG, INFO, WARN, ERROR.
	Level string `mapstructure:"level"`
	// MaxSizeMB rotates the debug log once it exceeds this size.
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of rotated log files retained.
	MaxBackups int `mapstructure:"max_backups"`
	// Compress gzip-compresses rotated log files.
	Compress bool `mapstructure:"compress"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Run: RunConfig{
			MaxConcurrent: 4,
			AttemptLimit:  20,
			Push:          false,
			SameBranch:    false,
		},
		Executor: ExecutorConfig{
			Backend:               "claude",
			FastModel:             "fast",
			HardModel:             "hard",
			AttemptTimeoutSeconds: 0,
		},
		MultiRepo: MultiRepoConfig{
			Enabled:  false,
			Mode:     "monorepo",
			Backend:  "",
			Frontend: "",
		},
		Review: ReviewConfig{
			ChecklistExtensions: []string{"*.go", "*.md", "*.yaml", "*.yml", "*.json", "*.ts", "*.tsx"},
			ChecklistExcludes:   []string{"**/*_test.go"},
			ReanalysisInterval:  3,
			Prompts: PromptOverrides{
				Decomposition:  "",
				Blueprint:      "",
				Implementation: "",
				Review:         "",
				Reanalysis:     "",
			},
		},
		Finalizer: FinalizerConfig{
			MaxIterations: 5,
			BaseBranch:    "main",
		},
		Resources: ResourceConfig{
			CostWarningThreshold: 5.00,
			CostLimit:            0,
			TokenLimitPerTask:    0,
			MetricsAddr:          "",
		},
		Logging: LoggingConfig{
			Level:      "INFO",
			MaxSizeMB:  10,
			MaxBackups: 3,
			Compress:   true,
		},
	}
}

// AttemptTimeout returns the per-attempt timeout as a time.Duration
// (0 means disabled).
func (c *ExecutorConfig) AttemptTimeout() time.Duration {
	return time.Duration(c.AttemptTimeoutSeconds) * time.Second
}

// SetDefaults registers default values with viper.
func SetDefaults() {
	defaults := Default()

	// Run defaults
	viper.SetDefault("run.max_concurrent", defaults.Run.MaxConcurrent)
	viper.SetDefault("run.attempt_limit", defaults.Run.AttemptLimit)
	viper.SetDefault("run.push", defaults.Run.Push)
	viper.SetDefault("run.same_branch", defaults.Run.SameBranch)

	// Executor defaults
	viper.SetDefault("executor.backend", defaults.Executor.Backend)
	viper.SetDefault("executor.fast_model", defaults.Executor.FastModel)
	viper.SetDefault("executor.hard_model", defaults.Executor.HardModel)
	viper.SetDefault("executor.attempt_timeout_seconds", defaults.Executor.AttemptTimeoutSeconds)

	// Multi-repo defaults
	viper.SetDefault("multi_repo.enabled", defaults.MultiRepo.Enabled)
	viper.SetDefault("multi_repo.mode", defaults.MultiRepo.Mode)
	viper.SetDefault("multi_repo.backend", defaults.MultiRepo.Backend)
	viper.SetDefault("multi_repo.frontend", defaults.MultiRepo.Frontend)

	// Review defaults
	viper.SetDefault("review.checklist_extensions", defaults.Review.ChecklistExtensions)
	viper.SetDefault("review.checklist_excludes", defaults.Review.ChecklistExcludes)
	viper.SetDefault("review.reanalysis_interval", defaults.Review.ReanalysisInterval)
	viper.SetDefault("review.prompts.decomposition", defaults.Review.Prompts.Decomposition)
	viper.SetDefault("review.prompts.blueprint", defaults.Review.Prompts.Blueprint)
	viper.SetDefault("review.prompts.implementation", defaults.Review.Prompts.Implementation)
	viper.SetDefault("review.prompts.review", defaults.Review.Prompts.Review)
	viper.SetDefault("review.prompts.reanalysis", defaults.Review.Prompts.Reanalysis)

	// Finalizer defaults
	viper.SetDefault("finalizer.max_iterations", defaults.Finalizer.MaxIterations)
	viper.SetDefault("finalizer.base_branch", defaults.Finalizer.BaseBranch)

	// Resource defaults
	viper.SetDefault("resources.cost_warning_threshold", defaults.Resources.CostWarningThreshold)
	viper.SetDefault("resources.cost_limit", defaults.Resources.CostLimit)
	viper.SetDefault("resources.token_limit_per_task", defaults.Resources.TokenLimitPerTask)
	viper.SetDefault("resources.metrics_addr", defaults.Resources.MetricsAddr)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)
}

// Load reads the configuration from viper into a Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Get returns the current configuration (convenience function).
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails.
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "taskforge")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".taskforge"
	}
	return filepath.Join(home, ".config", "taskforge")
}

// ConfigFile returns the path to the config file.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ValidMultiRepoModes returns the list of valid multi-repo mode values.
func ValidMultiRepoModes() []string {
	return []string{"monorepo", "separate"}
}

// IsValidMultiRepoMode checks if the given mode is valid.
func IsValidMultiRepoMode(mode string) bool {
	return slices.Contains(ValidMultiRepoModes(), mode)
}

// Validate checks the configuration for invalid values and returns all
// validation errors found. See validator.go.
func (c *Config) Validate() ValidationErrors {
	var errs ValidationErrors
	errs = append(errs, c.validateRun()...)
	errs = append(errs, c.validateExecutor()...)
	errs = append(errs, c.validateMultiRepo()...)
	errs = append(errs, c.validateReview()...)
	errs = append(errs, c.validateResources()...)
	errs = append(errs, c.validateLogging()...)
	return errs
}
