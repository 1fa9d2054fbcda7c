package media

import (
	"path/filepath"
	"sort"
	"strings"
)

// supportedExtensions lists the container formats accepted at submission.
// Anything ffmpeg can demux would technically work; the list is kept to
// formats the pipeline is exercised against.
var supportedExtensions = map[string]struct{}{
	".mp3":  {},
	".wav":  {},
	".flac": {},
	".ogg":  {},
	".m4a":  {},
	".mp4":  {},
	".mkv":  {},
	".avi":  {},
	".mov":  {},
	".webm": {},
}

// SupportedExtension reports whether the file's extension is an accepted
// media container.
func SupportedExtension(path string) bool {
	ext := strings.ToLower(strings.TrimSpace(filepath.Ext(path)))
	_, ok := supportedExtensions[ext]
	return ok
}

// SupportedExtensions returns the accepted extensions sorted for display.
func SupportedExtensions() []string {
	out := make([]string, 0, len(supportedExtensions))
	for ext := range supportedExtensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}
