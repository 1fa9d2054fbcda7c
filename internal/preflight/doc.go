// Package preflight provides readiness checks for the external binaries,
// directories, and collaborator services that Murmur depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and refuses to start while any
//     blocking check fails, so a misconfigured install fails fast instead of
//     failing every queued task.
//   - The CLI "murmur status" command uses the individual check functions
//     (CheckASRFromConfig, CheckDirectoryAccess) to display service health.
//
// Collaborator reachability is advisory rather than blocking: an inference
// server that is down at daemon start may come up before the first task is
// claimed, and its absence only fails the tasks that need it.
package preflight
