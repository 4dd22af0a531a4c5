package sluice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/pipz"
)

// ValidationError represents a schema validation error with detailed context.
type ValidationError struct {
	Path    []string // Path to the error in the schema tree
	Message string   // Error message
}

func (e ValidationError) Error() string {
	if len(e.Path) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", strings.Join(e.Path, "."), e.Message)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
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

// ValidateSchema validates a schema without building it.
// Returns nil if valid, or ValidationErrors containing all issues found.
func (f *Factory[T]) ValidateSchema(schema Schema) error {
	start := time.Now()
	capitan.Emit(context.Background(), SchemaValidationStarted)

	f.mu.RLock()
	defer f.mu.RUnlock()

	var errors ValidationErrors
	if len(schema.Stages) == 0 {
		errors = append(errors, ValidationError{
			Path:    []string{"stages"},
			Message: "schema requires at least one stage",
		})
	}
	for i := range schema.Stages {
		f.validateStage(&schema.Stages[i], []string{fmt.Sprintf("stages[%d]", i)}, &errors)
	}

	if len(errors) == 0 {
		capitan.Emit(context.Background(), SchemaValidationCompleted,
			KeyDuration.Field(time.Since(start)))
		return nil
	}

	capitan.Emit(context.Background(), SchemaValidationFailed,
		KeyErrorCount.Field(len(errors)),
		KeyDuration.Field(time.Since(start)))
	return errors
}

// validateStage validates a single stage node.
func (f *Factory[T]) validateStage(node *StageNode, path []string, errors *ValidationErrors) {
	kind := node.kind()
	if kind == "" {
		*errors = append(*errors, ValidationError{
			Path:    path,
			Message: "exactly one of 'apply', 'filter', 'sorted', 'recover', 'bridge', 'stage' must be set",
		})
		return
	}

	switch kind {
	case stageApply:
		if _, exists := f.processors[pipz.Name(node.Apply)]; !exists {
			*errors = append(*errors, ValidationError{
				Path:    path,
				Message: fmt.Sprintf("processor '%s' not found", node.Apply),
			})
		}
		if node.Attempts < 0 {
			*errors = append(*errors, ValidationError{
				Path:    append(path, "attempts"),
				Message: "attempts must not be negative",
			})
		}
		if node.Backoff != "" {
			if node.Attempts == 0 {
				*errors = append(*errors, ValidationError{
					Path:    append(path, "backoff"),
					Message: "backoff requires attempts",
				})
			}
			if _, err := time.ParseDuration(node.Backoff); err != nil {
				*errors = append(*errors, ValidationError{
					Path:    append(path, "backoff"),
					Message: fmt.Sprintf("invalid duration '%s'", node.Backoff),
				})
			}
		}
		if node.Timeout != "" {
			if _, err := time.ParseDuration(node.Timeout); err != nil {
				*errors = append(*errors, ValidationError{
					Path:    append(path, "timeout"),
					Message: fmt.Sprintf("invalid duration '%s'", node.Timeout),
				})
			}
		}
		if node.Workers != 0 {
			*errors = append(*errors, ValidationError{
				Path:    append(path, "workers"),
				Message: "workers applies only to bridge stages",
			})
		}

	case stageFilter:
		if _, exists := f.predicates[node.Filter]; !exists {
			*errors = append(*errors, ValidationError{
				Path:    path,
				Message: fmt.Sprintf("predicate '%s' not found", node.Filter),
			})
		}
		f.rejectApplyOptions(node, path, errors)

	case stageSorted:
		if _, exists := f.orderings[node.Sorted]; !exists {
			*errors = append(*errors, ValidationError{
				Path:    path,
				Message: fmt.Sprintf("ordering '%s' not found", node.Sorted),
			})
		}
		f.rejectApplyOptions(node, path, errors)

	case stageRecover:
		if _, exists := f.fallbacks[node.Recover]; !exists {
			*errors = append(*errors, ValidationError{
				Path:    path,
				Message: fmt.Sprintf("fallback '%s' not found", node.Recover),
			})
		}
		f.rejectApplyOptions(node, path, errors)

	case stageBridge:
		if node.Bridge != "sequential" && node.Bridge != "parallel" {
			*errors = append(*errors, ValidationError{
				Path:    path,
				Message: fmt.Sprintf("unknown strategy '%s' (want 'sequential' or 'parallel')", node.Bridge),
			})
		}
		if node.Workers < 0 {
			*errors = append(*errors, ValidationError{
				Path:    append(path, "workers"),
				Message: "workers must not be negative",
			})
		}
		if node.Workers != 0 && node.Bridge == "sequential" {
			*errors = append(*errors, ValidationError{
				Path:    append(path, "workers"),
				Message: "workers applies only to parallel bridges",
			})
		}
		if node.Attempts != 0 || node.Backoff != "" || node.Timeout != "" {
			*errors = append(*errors, ValidationError{
				Path:    path,
				Message: "attempts, backoff, and timeout apply only to apply stages",
			})
		}

	case stageNamed:
		if _, exists := f.stages[node.Stage]; !exists {
			*errors = append(*errors, ValidationError{
				Path:    path,
				Message: fmt.Sprintf("stage '%s' not found", node.Stage),
			})
		}
		f.rejectApplyOptions(node, path, errors)
	}
}

// rejectApplyOptions flags retry/timeout/worker options on stages that do
// not take them.
func (f *Factory[T]) rejectApplyOptions(node *StageNode, path []string, errors *ValidationErrors) {
	if node.Attempts != 0 || node.Backoff != "" || node.Timeout != "" {
		*errors = append(*errors, ValidationError{
			Path:    path,
			Message: "attempts, backoff, and timeout apply only to apply stages",
		})
	}
	if node.Workers != 0 {
		*errors = append(*errors, ValidationError{
			Path:    append(path, "workers"),
			Message: "workers applies only to bridge stages",
		})
	}
}
