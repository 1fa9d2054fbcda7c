package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"murmur/internal/api"
	"murmur/internal/config"
	"murmur/internal/preflight"
	"murmur/internal/queue"
)

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	Address    string
	ConfigPath string
	LogLevel   string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State    StartState
	Launched bool
}

// Launch starts a detached murmur daemon process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"daemon"}
	if addr := strings.TrimSpace(opts.Address); addr != "" {
		args = append(args, "--address", addr)
	}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForReady polls the daemon API until it reports a running daemon.
func WaitForReady(ctx context.Context, client *api.Client, timeout time.Duration) (api.DaemonStatus, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return api.DaemonStatus{}, ctx.Err()
		}
		status, err := client.Status(ctx)
		if err == nil && status.Running {
			return status, nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("daemon not ready")
		}
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return api.DaemonStatus{}, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches the daemon when it is not already reachable and waits
// for its API to come up.
func EnsureStarted(ctx context.Context, client *api.Client, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	status, err := client.Status(ctx)
	if err == nil && status.Running {
		return StartResult{State: StartStateAlreadyRunning}, nil
	}
	if err != nil && !isDaemonUnavailable(err) {
		return StartResult{}, err
	}

	if launchErr := Launch(executablePath, opts); launchErr != nil {
		return StartResult{}, launchErr
	}
	if _, waitErr := WaitForReady(ctx, client, waitTimeout); waitErr != nil {
		return StartResult{}, waitErr
	}
	return StartResult{State: StartStateStarted, Launched: true}, nil
}

// WaitForShutdown waits for the daemon API to disappear or report not-running.
func WaitForShutdown(ctx context.Context, client *api.Client, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		status, err := client.Status(ctx)
		if err != nil {
			if isDaemonUnavailable(err) {
				return nil
			}
			lastErr = err
		} else if !status.Running {
			return nil
		} else {
			lastErr = fmt.Errorf("daemon still running")
		}
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for shutdown")
	}
	return fmt.Errorf("daemon did not stop: %w", lastErr)
}

// ProcessInfo reports whether the daemon API is reachable and the daemon PID
// when available.
func ProcessInfo(ctx context.Context, client *api.Client) (bool, int, error) {
	status, err := client.Status(ctx)
	if err != nil {
		if isDaemonUnavailable(err) {
			return false, 0, nil
		}
		return true, 0, err
	}
	return true, status.PID, nil
}

// DeriveLogDir determines the daemon log directory from status and config hints.
func DeriveLogDir(lockPath, queueDBPath string, cfg *config.Config) string {
	if lockPath != "" {
		return filepath.Dir(lockPath)
	}
	if queueDBPath != "" {
		return filepath.Dir(queueDBPath)
	}
	if cfg != nil && strings.TrimSpace(cfg.Paths.LogDir) != "" {
		return cfg.Paths.LogDir
	}
	return ""
}

// ForceKillProcess sends SIGKILL to the daemon process and cleans pid/lock files.
func ForceKillProcess(pidPath, lockPath string, fallbackPID int) (int, error) {
	pid := fallbackPID
	data, err := os.ReadFile(pidPath)
	if err == nil {
		pidStr := strings.TrimSpace(string(data))
		if pidStr != "" {
			if parsed, parseErr := strconv.Atoi(pidStr); parseErr == nil && parsed > 0 {
				pid = parsed
			}
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("read daemon pid file %q: %w", pidPath, err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("unable to determine daemon pid (pid file: %s)", pidPath)
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Kill(); err != nil {
		return 0, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	if lockPath != "" {
		_ = os.Remove(lockPath)
	}
	return pid, nil
}

// ErrDaemonNotRunning indicates the daemon API is unavailable.
var ErrDaemonNotRunning = errors.New("daemon not running")

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	SignalSent bool
	ForcedKill bool
	PID        int
}

// RestartResult captures stop/start outcomes for daemon restart.
type RestartResult struct {
	WasRunning bool
	Stop       StopResult
	Start      StartResult
}

// StopAndTerminate signals the daemon to shut down and force-kills the process
// if it is still alive after gracePeriod.
func StopAndTerminate(ctx context.Context, client *api.Client, cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	status, err := client.Status(ctx)
	if err != nil {
		if isDaemonUnavailable(err) {
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, err
	}

	result := StopResult{PID: status.PID}
	if status.PID > 0 && status.PID != os.Getpid() {
		if proc, findErr := os.FindProcess(status.PID); findErr == nil {
			if sigErr := proc.Signal(syscall.SIGTERM); sigErr == nil {
				result.SignalSent = true
			}
		}
	}

	_ = WaitForShutdown(ctx, client, gracePeriod)
	alive, livePID, aliveErr := ProcessInfo(ctx, client)
	if aliveErr != nil {
		alive = false
	}
	if !alive {
		return result, nil
	}

	currentPID := livePID
	if currentPID == 0 {
		currentPID = status.PID
	}
	logDir := DeriveLogDir(status.LockFilePath, status.QueueDBPath, cfg)
	if logDir == "" {
		return result, fmt.Errorf("unable to determine daemon log directory")
	}
	pidPath := filepath.Join(logDir, "murmurd.pid")
	lockFile := filepath.Join(logDir, "murmurd.lock")
	killedPID, killErr := ForceKillProcess(pidPath, lockFile, currentPID)
	if killErr != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", killErr)
	}
	result.ForcedKill = true
	result.PID = killedPID
	return result, nil
}

// Restart stops the daemon if running, then ensures it is started.
func Restart(ctx context.Context, client *api.Client, cfg *config.Config, executablePath string, opts LaunchOptions, stopGracePeriod, startWaitTimeout time.Duration) (RestartResult, error) {
	stopResult, stopErr := StopAndTerminate(ctx, client, cfg, stopGracePeriod)
	if stopErr != nil && !errors.Is(stopErr, ErrDaemonNotRunning) {
		return RestartResult{}, stopErr
	}

	startResult, err := EnsureStarted(ctx, client, executablePath, opts, startWaitTimeout)
	if err != nil {
		return RestartResult{}, err
	}

	return RestartResult{
		WasRunning: stopErr == nil,
		Stop:       stopResult,
		Start:      startResult,
	}, nil
}

// StatusLine is a labeled severity/detail row for status rendering.
type StatusLine struct {
	Label    string
	Severity string
	Detail   string
}

// DependencyStatus augments an availability check with display severity.
type DependencyStatus struct {
	api.DependencyStatus
	Severity string
}

// DependencySummary aggregates dependency readiness.
type DependencySummary struct {
	Total           int
	Available       int
	MissingRequired int
	MissingOptional int
	Severity        string
	Detail          string
}

// StatusSnapshot combines live daemon status with offline fallbacks and
// config-derived checks for status output.
type StatusSnapshot struct {
	Daemon            api.DaemonStatus
	Reachable         bool
	QueueStats        map[string]int
	Dependencies      []DependencyStatus
	DependencySummary DependencySummary
	SystemChecks      []StatusLine
	PathChecks        []StatusLine
}

// BuildStatusSnapshot collects daemon status and applies offline fallbacks for
// queue stats and dependency availability.
func BuildStatusSnapshot(ctx context.Context, client *api.Client, cfg *config.Config) (*StatusSnapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	snapshot := &StatusSnapshot{}

	if status, err := client.Status(ctx); err == nil {
		snapshot.Daemon = status
		snapshot.Reachable = true
	}

	queueStats := make(map[string]int, len(snapshot.Daemon.Workflow.QueueStats))
	for k, v := range snapshot.Daemon.Workflow.QueueStats {
		queueStats[k] = v
	}

	deps := make([]DependencyStatus, 0, len(snapshot.Daemon.Dependencies))
	for _, dep := range snapshot.Daemon.Dependencies {
		deps = append(deps, DependencyStatus{DependencyStatus: dep})
	}

	if !snapshot.Daemon.Running {
		queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		store, openErr := queue.Open(cfg)
		if openErr == nil {
			stats, statsErr := store.Stats(queryCtx)
			_ = store.Close()
			if statsErr == nil {
				queueStats = make(map[string]int, len(stats))
				for status, count := range stats {
					queueStats[string(status)] = count
				}
			}
		}
	}

	if len(deps) == 0 {
		deps = ResolveDependencies(ctx, cfg)
	}
	for i := range deps {
		if strings.TrimSpace(deps[i].Severity) != "" {
			continue
		}
		severity := "ok"
		if !deps[i].Available {
			severity = "error"
			if deps[i].Optional {
				severity = "warn"
			}
		}
		deps[i].Severity = severity
	}

	snapshot.QueueStats = queueStats
	snapshot.Dependencies = deps
	snapshot.SystemChecks = BuildSystemChecks(cfg, snapshot.Daemon.Running)
	snapshot.PathChecks = BuildPathChecks(cfg)
	snapshot.DependencySummary = BuildDependencySummary(deps)
	return snapshot, nil
}

func isDaemonUnavailable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, os.ErrNotExist)
}

// ResolveDependencies returns current dependency availability for status output.
func ResolveDependencies(ctx context.Context, cfg *config.Config) []DependencyStatus {
	if cfg == nil {
		return nil
	}

	checks := preflight.CheckSystemDeps(ctx, cfg)
	statuses := make([]DependencyStatus, 0, len(checks))
	for _, check := range checks {
		severity := "ok"
		if !check.Available {
			severity = "error"
			if check.Optional {
				severity = "warn"
			}
		}
		statuses = append(statuses, DependencyStatus{
			DependencyStatus: api.DependencyStatus{
				Name:        check.Name,
				Command:     check.Command,
				Description: check.Description,
				Optional:    check.Optional,
				Available:   check.Available,
				Detail:      check.Detail,
			},
			Severity: severity,
		})
	}
	return statuses
}

// BuildSystemChecks resolves status lines that combine runtime state and
// collaborator connectivity.
func BuildSystemChecks(cfg *config.Config, daemonRunning bool) []StatusLine {
	lines := make([]StatusLine, 0, 6)
	if daemonRunning {
		lines = append(lines, StatusLine{Label: "Murmur", Severity: "ok", Detail: "Running"})
	} else {
		lines = append(lines, StatusLine{Label: "Murmur", Severity: "warn", Detail: "Not running (run `murmur start`)"})
	}

	asr := preflight.CheckASRFromConfig(cfg)
	switch {
	case asr.Passed:
		lines = append(lines, StatusLine{Label: "ASR", Severity: "ok", Detail: asr.Detail})
	case strings.EqualFold(strings.TrimSpace(asr.Detail), "Unknown"):
		lines = append(lines, StatusLine{Label: "ASR", Severity: "info", Detail: asr.Detail})
	default:
		lines = append(lines, StatusLine{Label: "ASR", Severity: "warn", Detail: asr.Detail})
	}

	diarizer := preflight.CheckDiarizerFromConfig(cfg)
	switch {
	case diarizer.Passed && strings.EqualFold(strings.TrimSpace(diarizer.Detail), "Disabled"):
		lines = append(lines, StatusLine{Label: "Diarization", Severity: "info", Detail: diarizer.Detail})
	case diarizer.Passed:
		lines = append(lines, StatusLine{Label: "Diarization", Severity: "ok", Detail: diarizer.Detail})
	case strings.EqualFold(strings.TrimSpace(diarizer.Detail), "Unknown"):
		lines = append(lines, StatusLine{Label: "Diarization", Severity: "info", Detail: diarizer.Detail})
	default:
		lines = append(lines, StatusLine{Label: "Diarization", Severity: "warn", Detail: diarizer.Detail})
	}

	llm := preflight.CheckLLMFromConfig(cfg)
	switch {
	case llm.Passed && strings.EqualFold(strings.TrimSpace(llm.Detail), "Disabled"):
		lines = append(lines, StatusLine{Label: "Refinement", Severity: "info", Detail: llm.Detail})
	case llm.Passed:
		lines = append(lines, StatusLine{Label: "Refinement", Severity: "ok", Detail: llm.Detail})
	case strings.EqualFold(strings.TrimSpace(llm.Detail), "Unknown"):
		lines = append(lines, StatusLine{Label: "Refinement", Severity: "info", Detail: llm.Detail})
	default:
		lines = append(lines, StatusLine{Label: "Refinement", Severity: "warn", Detail: llm.Detail})
	}

	watch := preflight.ProbeWatchDir(cfg)
	if watch.Configured {
		lines = append(lines, StatusLine{Label: "Watch Folder", Severity: "ok", Detail: watch.WatchDetail()})
	} else {
		lines = append(lines, StatusLine{Label: "Watch Folder", Severity: "info", Detail: watch.WatchDetail()})
	}

	if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
		lines = append(lines, StatusLine{Label: "Notifications", Severity: "ok", Detail: "Configured"})
	} else {
		lines = append(lines, StatusLine{Label: "Notifications", Severity: "warn", Detail: "Not configured"})
	}

	return lines
}

// BuildPathChecks resolves configured working directory readiness.
func BuildPathChecks(cfg *config.Config) []StatusLine {
	lines := make([]StatusLine, 0, 3)
	for _, dir := range []struct {
		label string
		path  string
	}{
		{label: "Output", path: cfg.Paths.OutputDir},
		{label: "Scratch", path: cfg.Paths.ScratchDir},
		{label: "Logs", path: cfg.Paths.LogDir},
	} {
		result := preflight.CheckDirectoryAccess(dir.label, dir.path)
		severity := "error"
		if result.Passed {
			severity = "ok"
		}
		lines = append(lines, StatusLine{
			Label:    dir.label,
			Severity: severity,
			Detail:   result.Detail,
		})
	}
	return lines
}

// BuildDependencySummary computes aggregate dependency readiness.
func BuildDependencySummary(deps []DependencyStatus) DependencySummary {
	if len(deps) == 0 {
		return DependencySummary{
			Severity: "info",
			Detail:   "No dependency checks configured",
		}
	}

	missingRequired := 0
	missingOptional := 0
	for _, dep := range deps {
		if dep.Available {
			continue
		}
		if dep.Optional {
			missingOptional++
		} else {
			missingRequired++
		}
	}

	missingCount := missingRequired + missingOptional
	available := len(deps) - missingCount
	severity := "ok"
	if missingRequired > 0 {
		severity = "error"
	} else if missingOptional > 0 {
		severity = "warn"
	}
	detail := fmt.Sprintf("%d/%d available (missing: %d required, %d optional)", available, len(deps), missingRequired, missingOptional)
	if missingCount == 0 {
		detail = fmt.Sprintf("%d/%d available", available, len(deps))
	}

	return DependencySummary{
		Total:           len(deps),
		Available:       available,
		MissingRequired: missingRequired,
		MissingOptional: missingOptional,
		Severity:        severity,
		Detail:          detail,
	}
}
