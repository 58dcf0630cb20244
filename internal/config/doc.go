// Package config loads sercha-connect configuration from a TOML file and
// SERCHA_CONNECT_* environment variables.
package config
