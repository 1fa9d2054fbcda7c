// Package llm provides an OpenAI-compatible chat completion client for
// transcript refinement.
//
// This package is used by:
//   - Refine stage: semantic re-segmentation, error correction, expression
//     optimization, and translation of merged transcripts
//
// # Configuration
//
// Requires base_url and model; api_key is optional because the default
// deployment targets a local inference server that accepts unauthenticated
// requests. When api_key is set it is sent as a bearer token, which also
// covers hosted OpenAI-compatible providers.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.CompleteJSON: send system/user prompts, receive a JSON payload.
// Client.HealthCheck: verify the endpoint and model respond.
// DecodeLLMJSON: decode model output while tolerating code fences and prose.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors, empty completions, and
// network timeouts with exponential backoff (base 1s, max 10s, up to 5
// attempts by default), honoring Retry-After when the server provides one.
// Context cancellation aborts retries immediately.
//
// # Fallback
//
// Model output is advisory. Callers keep their pre-refinement data and fall
// back to it when the client exhausts retries, so an unreachable or
// misbehaving model degrades output quality without failing the task.
package llm
