// Package main hosts the Murmur CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into HTTP
// calls against the daemon API, queue maintenance operations, transcript
// retrieval, and configuration scaffolding. It centralizes configuration
// resolution and daemon address discovery so subcommands can focus on user
// experience instead of wiring. When the daemon is not running, queue
// commands fall back to direct queue database access so the CLI stays
// usable between daemon sessions.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
