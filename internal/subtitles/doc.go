// Package subtitles renders the final transcript into output artifacts.
//
// Three encoders cover the supported formats: JSON keeps full fidelity
// (words, confidences, speakers, translations), SRT and VTT keep text and
// timing only. All three are pure functions of the segment sequence, so
// encoding the same transcript twice yields byte-identical files.
//
// The encoding stage handler writes one artifact per requested format and
// lets formats succeed or fail independently; the task fails only when no
// format could be written.
package subtitles
