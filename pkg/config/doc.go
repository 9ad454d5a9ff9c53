// Package config loads, defaults, and validates the cantina service
// configuration from YAML, with CANTINA_* environment overrides and an
// fsnotify-based watcher for hot reload.
//
// The loading sequence is: parse YAML, apply defaults, apply environment
// overrides, validate. A configuration that fails validation is never
// handed to the application.
package config
