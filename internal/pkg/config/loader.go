// Package config provides fail-open environment configuration loading.
// Every loader returns a usable value: when an environment variable is
// unset the default applies silently, and when it is set but invalid the
// default applies with a warning and a fallback flag so callers can log
// and count the event. A service never refuses to start over a typo in
// an environment variable.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Result is the outcome of loading one configuration value.
type Result[T any] struct {
	// Value is the loaded value, or the default when fallback applied.
	Value T

	// Warning describes why the fallback applied. Empty otherwise.
	Warning string

	// FallbackApplied is true when the environment value was rejected.
	FallbackApplied bool
}

// String loads a string from the environment with no validation.
func String(envKey, defaultValue string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return defaultValue
}

// Validated loads a string and validates it, falling back to the default
// on failure.
func Validated(envKey, defaultValue string, validate func(string) error) Result[string] {
	return load(envKey, defaultValue, func(s string) (string, error) { return s, nil }, validate)
}

// Int loads an integer, falling back to the default when parsing or
// validation fails.
func Int(envKey string, defaultValue int, validate func(int) error) Result[int] {
	return load(envKey, defaultValue, strconv.Atoi, validate)
}

// Duration loads a Go duration string (e.g. "30m"), falling back to the
// default when parsing or validation fails.
func Duration(envKey string, defaultValue time.Duration, validate func(time.Duration) error) Result[time.Duration] {
	return load(envKey, defaultValue, time.ParseDuration, validate)
}

// load reads, parses, and validates one variable with the fail-open rule:
// unset means default without warning; invalid means default with warning.
func load[T any](envKey string, defaultValue T, parse func(string) (T, error), validate func(T) error) Result[T] {
	raw := os.Getenv(envKey)
	if raw == "" {
		return Result[T]{Value: defaultValue}
	}

	value, err := parse(raw)
	if err == nil && validate != nil {
		err = validate(value)
	}
	if err != nil {
		return Result[T]{
			Value:           defaultValue,
			Warning:         fmt.Sprintf("invalid %s=%q: %v, falling back to default %v", envKey, raw, err, defaultValue),
			FallbackApplied: true,
		}
	}
	return Result[T]{Value: value}
}
