// Package media prepares source files for inference: it knows which
// container extensions the service accepts and extracts their audio as the
// mono 16kHz WAV the inference server expects. Container inspection lives in
// the ffprobe subpackage.
package media
