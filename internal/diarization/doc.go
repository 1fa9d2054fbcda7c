// Package diarization reconciles speaker turns from the diarization service
// with word-level transcript timestamps.
//
// Speaker turns and aligned words come from independent models and never agree
// exactly, so the merge projects turns onto the authoritative word timeline:
// each word takes the speaker of the turn it overlaps longest, and each
// segment takes the duration-weighted majority speaker of its words. Words and
// segments outside every turn stay unattributed rather than inheriting a
// neighbor's speaker.
package diarization
