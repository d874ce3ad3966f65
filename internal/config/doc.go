// Package config loads, normalizes, and validates vaultingest configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// VAULTINGEST_API_TOKEN. The Config type centralizes every knob the engine and
// CLI need, allowing the session database location, endpoint credentials, and
// chunking policy to be discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
