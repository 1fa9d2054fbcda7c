// Package ingest watches a drop folder and submits media files to the queue.
//
// The watcher combines fsnotify events with a periodic rescan: events start
// tracking a file the moment it appears, and the rescan both backstops missed
// events and drives the settle check. A file is submitted only after its size
// has held steady for the configured settle window, so partially copied files
// are never queued. Titles derive from file names; options are the daemon
// defaults at submission time.
package ingest
