// Package config loads, normalizes, and validates rtsync configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// RTSYNC_SERVER_TOKEN and RTSYNC_SERVER_URL. The Config type centralizes every
// knob the daemon and CLI need: where the queue lives, which server receives
// uploads, how eagerly the sync engine drains, and how connectivity is
// detected.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
