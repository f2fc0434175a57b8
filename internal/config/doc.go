// Package config defines the settings shared by breakfast-alarmd and the
// breakfast-alarm CLI and provides helpers to load, validate and save them in
// YAML format.
//
// Validate fills defaults for every optional field, so callers can rely on a
// loaded Config being complete.
package config
