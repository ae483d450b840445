package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure.
type ValidationError struct {
	Field   string // The config field path (e.g., "run.max_concurrent")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels.
func ValidLogLevels() []string {
	return []string{"DEBUG", "INFO", "WARN", "ERROR"}
}

// validateRun validates the RunConfig.
func (c *Config) validateRun() []ValidationError {
	var errors []ValidationError

	if c.Run.MaxConcurrent < 1 {
		errors = append(errors, ValidationError{
			Field:   "run.max_concurrent",
			Value:   c.Run.MaxConcurrent,
			Message: "must be at least 1",
		})
	}

	const maxConcurrentLimit = 64
	if c.Run.MaxConcurrent > maxConcurrentLimit {
		errors = append(errors, ValidationError{
			Field:   "run.max_concurrent",
			Value:   c.Run.MaxConcurrent,
			Message: fmt.Sprintf("exceeds maximum of %d", maxConcurrentLimit),
		})
	}

	if c.Run.AttemptLimit < 0 {
		errors = append(errors, ValidationError{
			Field:   "run.attempt_limit",
			Value:   c.Run.AttemptLimit,
			Message: "must be non-negative (0 disables the limit)",
		})
	}

	return errors
}

// validateExecutor validates the ExecutorConfig.
func (c *Config) validateExecutor() []ValidationError {
	var errors []ValidationError

	if c.Executor.Backend == "" {
		errors = append(errors, ValidationError{
			Field:   "executor.backend",
			Value:   c.Executor.Backend,
			Message: "cannot be empty",
		})
	}

	if c.Executor.FastModel == "" {
		errors = append(errors, ValidationError{
			Field:   "executor.fast_model",
			Value:   c.Executor.FastModel,
			Message: "cannot be empty",
		})
	}

	if c.Executor.HardModel == "" {
		errors = append(errors, ValidationError{
			Field:   "executor.hard_model",
			Value:   c.Executor.HardModel,
			Message: "cannot be empty",
		})
	}

	if c.Executor.AttemptTimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "executor.attempt_timeout_seconds",
			Value:   c.Executor.AttemptTimeoutSeconds,
			Message: "must be non-negative (0 disables the timeout)",
		})
	}

	return errors
}

// validateMultiRepo validates the MultiRepoConfig.
func (c *Config) validateMultiRepo() []ValidationError {
	var errors []ValidationError

	if !c.MultiRepo.Enabled {
		return errors
	}

	if !IsValidMultiRepoMode(c.MultiRepo.Mode) {
		errors = append(errors, ValidationError{
			Field:   "multi_repo.mode",
			Value:   c.MultiRepo.Mode,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidMultiRepoModes(), ", ")),
		})
	}

	if c.MultiRepo.Mode == "separate" {
		if c.MultiRepo.Backend == "" {
			errors = append(errors, ValidationError{
				Field:   "multi_repo.backend",
				Value:   c.MultiRepo.Backend,
				Message: "required when multi_repo.mode is 'separate'",
			})
		}
		if c.MultiRepo.Frontend == "" {
			errors = append(errors, ValidationError{
				Field:   "multi_repo.frontend",
				Value:   c.MultiRepo.Frontend,
				Message: "required when multi_repo.mode is 'separate'",
			})
		}
	}

	return errors
}

// validateReview validates the ReviewConfig.
func (c *Config) validateReview() []ValidationError {
	var errors []ValidationError

	if c.Review.ReanalysisInterval < 1 {
		errors = append(errors, ValidationError{
			Field:   "review.reanalysis_interval",
			Value:   c.Review.ReanalysisInterval,
			Message: "must be at least 1",
		})
	}

	if len(c.Review.ChecklistExtensions) == 0 {
		errors = append(errors, ValidationError{
			Field:   "review.checklist_extensions",
			Value:   c.Review.ChecklistExtensions,
			Message: "must list at least one extension glob",
		})
	}

	return errors
}

// validateResources validates the ResourceConfig.
func (c *Config) validateResources() []ValidationError {
	var errors []ValidationError

	if c.Resources.CostWarningThreshold < 0 {
		errors = append(errors, ValidationError{
			Field:   "resources.cost_warning_threshold",
			Value:   c.Resources.CostWarningThreshold,
			Message: "must be non-negative",
		})
	}
	if c.Resources.CostLimit < 0 {
		errors = append(errors, ValidationError{
			Field:   "resources.cost_limit",
			Value:   c.Resources.CostLimit,
			Message: "must be non-negative (0 disables the limit)",
		})
	}
	if c.Resources.CostLimit > 0 && c.Resources.CostWarningThreshold > c.Resources.CostLimit {
		errors = append(errors, ValidationError{
			Field:   "resources.cost_warning_threshold",
			Value:   c.Resources.CostWarningThreshold,
			Message: fmt.Sprintf("should be less than cost_limit (%v)", c.Resources.CostLimit),
		})
	}
	if c.Resources.TokenLimitPerTask < 0 {
		errors = append(errors, ValidationError{
			Field:   "resources.token_limit_per_task",
			Value:   c.Resources.TokenLimitPerTask,
			Message: "must be non-negative (0 disables the limit)",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig.
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	const maxLogSizeMB = 1000
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
