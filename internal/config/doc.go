// Package config loads, normalizes, and validates the TOML configuration
// shared by the daemon and CLI.
//
// Load resolves the config path (explicit flag, ~/.config/murmur/config.toml,
// then ./murmur.toml), decodes over Default(), expands ~ in every path field,
// applies environment fallbacks for secrets, and validates the result.
// A missing file is not an error: defaults apply, and callers can report
// whether a file was found.
package config
