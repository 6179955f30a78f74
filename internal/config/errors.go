package config

import "errors"

var (
	// ErrUnknownKey is returned when a key is not one of the config field names
	ErrUnknownKey = errors.New("unknown config key")

	// ErrWrite is returned when the config file cannot be persisted
	ErrWrite = errors.New("failed to write config")

	// ErrSerialize is returned when a config value cannot be encoded
	ErrSerialize = errors.New("failed to serialize config")
)
