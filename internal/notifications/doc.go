// Package notifications delivers workflow events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Enumerated event types cover the major task milestones so stage
// handlers can emit consistent, user-friendly messages without duplicating
// HTTP glue, and the per-event toggles in the notifications config section
// decide which events actually go out.
//
// Extend this package if you need alternative transports; all workflow code
// depends only on the simple Service interface.
package notifications
