package types

import "fmt"

// ConfigError marks a configuration file that cannot be used. Commands
// abort with exit code 2 and write nothing when they see one.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error in %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError wraps err with the offending file.
func NewConfigError(path string, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Path: path, Err: fmt.Errorf(format, args...)}
}
