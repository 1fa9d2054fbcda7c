// Package diarizer calls the speaker diarization endpoint of the co-located
// inference server. It returns speaker turns sorted by start time with
// malformed entries dropped; projecting turns onto words is the merge stage's
// job, not the client's.
package diarizer
