// Package config loads, normalizes, and validates assetforge configuration
// from TOML files.
package config
