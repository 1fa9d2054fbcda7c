package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"murmur/internal/api"
	"murmur/internal/daemonctl"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Murmur", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Murmur:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Murmur", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestStatusKindFromSeverity(t *testing.T) {
	cases := map[string]statusKind{
		"ok":      statusOK,
		"warn":    statusWarn,
		"warning": statusWarn,
		"error":   statusError,
		"":        statusInfo,
		"bogus":   statusInfo,
	}
	for input, want := range cases {
		if got := statusKindFromSeverity(input); got != want {
			t.Fatalf("statusKindFromSeverity(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestDependencyLines(t *testing.T) {
	deps := []daemonctl.DependencyStatus{
		{DependencyStatus: api.DependencyStatus{Name: "ffmpeg", Available: false}, Severity: "error"},
		{DependencyStatus: api.DependencyStatus{Name: "ffprobe", Available: true, Command: "ffprobe"}, Severity: "ok"},
		{DependencyStatus: api.DependencyStatus{Name: "ntfy", Available: false, Optional: true, Detail: "not configured"}, Severity: "warn"},
	}
	summary := daemonctl.BuildDependencySummary(deps)

	lines := dependencyLines(deps, summary, false)
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "Summary") || !strings.Contains(lines[0], "1/3 available") {
		t.Fatalf("expected summary line first, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "[ERROR] not available") {
		t.Fatalf("expected error detail in second line, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "[OK] Ready (command: ffprobe)") {
		t.Fatalf("expected ready detail in third line, got %q", lines[2])
	}
	if !strings.Contains(lines[3], "[WARN] not configured") {
		t.Fatalf("expected warn detail in fourth line, got %q", lines[3])
	}
	if !strings.Contains(lines[4], "Missing dependencies") || !strings.Contains(lines[4], "ffmpeg, ntfy") {
		t.Fatalf("expected missing dependency list, got %q", lines[4])
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}
