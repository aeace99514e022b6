package entity

import "fmt"

// ConfigError reports an invalid entity configuration. It is fatal at
// startup.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("entity %q: %s", e.Key, e.Reason)
}
