// Package config loads the service configuration from a YAML file, overlays
// secrets from the environment, and applies production defaults.
package config
