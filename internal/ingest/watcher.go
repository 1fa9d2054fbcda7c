package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/fsnotify/fsnotify"

	"murmur/internal/config"
	"murmur/internal/fileutil"
	"murmur/internal/logging"
	"murmur/internal/media"
	"murmur/internal/notifications"
	"murmur/internal/queue"
)

// partialSuffixes marks in-progress downloads and copies that must not be
// queued under their temporary names.
var partialSuffixes = []string{".part", ".partial", ".tmp", ".crdownload"}

// pendingFile tracks a candidate whose size must hold steady for the settle
// window before submission.
type pendingFile struct {
	lastSize   int64
	lastChange time.Time
}

// fileVersion records the size and mtime a file had when its task was queued.
// Matching versions skip the store dedupe on later sweeps.
type fileVersion struct {
	size    int64
	modTime time.Time
}

// Watcher submits media files dropped into the watch folder.
type Watcher struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	notifier notifications.Service

	watchDir string
	settle   time.Duration

	mu      sync.Mutex
	running bool
	pending map[string]*pendingFile
	handled map[string]fileVersion

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher builds a watch folder watcher, or nil when no watch folder is
// configured. A nil notifier falls back to the config-derived service.
func NewWatcher(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) *Watcher {
	if cfg == nil || store == nil {
		return nil
	}

	watchDir := strings.TrimSpace(cfg.Ingest.WatchDir)
	if watchDir == "" {
		return nil
	}

	settle := time.Duration(cfg.Ingest.SettleSeconds) * time.Second
	if settle < 0 {
		settle = 0
	}

	watcherLogger := logger
	if watcherLogger != nil {
		watcherLogger = watcherLogger.With(logging.String("component", "ingest-watcher"))
	}

	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	return &Watcher{
		cfg:      cfg,
		store:    store,
		logger:   watcherLogger,
		notifier: notifier,
		watchDir: watchDir,
		settle:   settle,
		pending:  make(map[string]*pendingFile),
		handled:  make(map[string]fileVersion),
	}
}

func (w *Watcher) Start(ctx context.Context) error {
	if w == nil {
		return errors.New("ingest watcher unavailable")
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return errors.New("ingest watcher already running")
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create filesystem watcher: %w", err)
	}
	if err := fsWatcher.Add(w.watchDir); err != nil {
		fsWatcher.Close()
		return fmt.Errorf("watch %s: %w", w.watchDir, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.ctx = runCtx
	w.cancel = cancel
	w.running = true

	w.wg.Add(1)
	go w.loop(fsWatcher)
	return nil
}

func (w *Watcher) Stop() {
	if w == nil {
		return
	}
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
}

func (w *Watcher) loop(fsWatcher *fsnotify.Watcher) {
	defer w.wg.Done()
	defer fsWatcher.Close()

	w.sweep()

	ticker := time.NewTicker(sweepInterval(w.settle))
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.sweep()
		case event, ok := <-fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return
			}
			w.log().Warn("watch folder event stream error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "watch_event_error"),
				logging.String(logging.FieldErrorHint, "check watch folder mount and inotify limits"),
			)
		}
	}
}

// handleEvent reacts to filesystem notifications. Events only start or stop
// tracking; submission always goes through the sweep so the settle check has
// one owner.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.drop(event.Name)
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	w.track(event.Name)
}

// sweep rescans the watch folder, reconciles tracked state against what is
// actually present, and submits entries whose size has held steady for the
// settle window. The rescan also recovers files whose events were missed.
func (w *Watcher) sweep() {
	ctx := w.ctx
	if ctx == nil {
		return
	}

	entries, err := os.ReadDir(w.watchDir)
	if err != nil {
		w.log().Warn("watch folder scan failed; will retry",
			logging.Error(err),
			logging.String(logging.FieldEventType, "watch_scan_failed"),
			logging.String(logging.FieldErrorHint, "check watch folder path and permissions"),
		)
		return
	}

	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(w.watchDir, entry.Name())
		seen[path] = struct{}{}
		w.track(path)
	}

	w.mu.Lock()
	for path := range w.pending {
		if _, ok := seen[path]; !ok {
			delete(w.pending, path)
		}
	}
	for path := range w.handled {
		if _, ok := seen[path]; !ok {
			delete(w.handled, path)
		}
	}
	w.mu.Unlock()

	for _, path := range w.settled() {
		w.submit(ctx, path)
	}
}

// track starts or refreshes settle tracking for a candidate file. Events and
// rescans both funnel through here, so duplicates collapse into one entry.
func (w *Watcher) track(path string) {
	if !eligible(path) {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		w.drop(path)
		return
	}
	if info.IsDir() {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if version, ok := w.handled[path]; ok {
		if version.size == info.Size() && version.modTime.Equal(info.ModTime()) {
			return
		}
		delete(w.handled, path)
	}

	entry, ok := w.pending[path]
	if !ok {
		w.pending[path] = &pendingFile{lastSize: info.Size(), lastChange: time.Now()}
		return
	}
	if info.Size() != entry.lastSize {
		entry.lastSize = info.Size()
		entry.lastChange = time.Now()
	}
}

func (w *Watcher) drop(path string) {
	w.mu.Lock()
	delete(w.pending, path)
	w.mu.Unlock()
}

// settled returns the tracked paths whose last size change is at least the
// settle window old. The sweep that just ran re-statted every present file,
// so an unchanged lastChange means the size actually held.
func (w *Watcher) settled() []string {
	now := time.Now()
	w.mu.Lock()
	defer w.mu.Unlock()

	var ready []string
	for path, entry := range w.pending {
		if now.Sub(entry.lastChange) >= w.settle {
			ready = append(ready, path)
		}
	}
	return ready
}

// submit queues one settled file and stops tracking it. The dedupe check keeps
// a file that stays in the watch folder from being submitted again: a live
// task means it is already in flight, and a terminal task created after the
// file's last modification means that exact file version was already handled.
// Only a file rewritten since its last task gets resubmitted.
func (w *Watcher) submit(ctx context.Context, path string) {
	w.drop(path)

	latest, err := w.store.LatestBySourcePath(ctx, path)
	if err != nil {
		w.log().Warn("ingest dedupe lookup failed; will retry",
			logging.Error(err),
			logging.String("source", path),
			logging.String(logging.FieldEventType, "ingest_dedupe_failed"),
			logging.String(logging.FieldErrorHint, "check queue database health"),
		)
		w.retryLater(path)
		return
	}
	if latest != nil {
		if !latest.IsTerminal() {
			w.log().Debug("watch folder file already queued",
				logging.String("source", path),
				logging.Int64("task_id", latest.ID),
			)
			return
		}
		if info, statErr := os.Stat(path); statErr == nil && !info.ModTime().After(latest.CreatedAt) {
			w.log().Debug("watch folder file already handled",
				logging.String("source", path),
				logging.Int64("task_id", latest.ID),
				logging.String("status", string(latest.Status)),
			)
			w.markHandled(path)
			return
		}
	}

	title := media.DeriveTitle(path)
	opts := queue.OptionsFromConfig(w.cfg)

	queuePath := path
	moved := false
	if w.cfg.Ingest.RemoveAfterQueue {
		dest, moveErr := w.relocate(path)
		if moveErr != nil {
			w.log().Warn("could not move ingested file into scratch; queueing in place",
				logging.Error(moveErr),
				logging.String("source", path),
				logging.String(logging.FieldEventType, "ingest_move_failed"),
				logging.String(logging.FieldErrorHint, "check scratch directory space and permissions"),
			)
		} else {
			queuePath = dest
			moved = true
		}
	}

	task, err := w.store.NewTask(ctx, queuePath, title, opts)
	if err != nil {
		if moved {
			if mvErr := fileutil.MoveFile(queuePath, path); mvErr != nil {
				w.log().Error("ingested file stranded in scratch after failed submission",
					logging.Error(mvErr),
					logging.String("path", queuePath),
					logging.String(logging.FieldEventType, "ingest_stranded_file"),
					logging.String(logging.FieldErrorHint, "move the file back into the watch folder manually"),
				)
			}
		}
		w.log().Warn("watch folder submission failed; will retry",
			logging.Error(err),
			logging.String("source", path),
			logging.String(logging.FieldEventType, "ingest_submit_failed"),
			logging.String(logging.FieldErrorHint, "check queue database health and daemon logs"),
		)
		w.retryLater(path)
		return
	}

	if !moved {
		w.markHandled(path)
	}

	w.log().Info("ingested media file",
		logging.Int64("task_id", task.ID),
		logging.String("title", title),
		logging.String("source", path),
		logging.String(logging.FieldEventType, "media_ingested"),
	)
	if w.notifier != nil {
		_ = w.notifier.Publish(ctx, notifications.EventTaskQueued, notifications.Payload{
			"title":  title,
			"source": filepath.Base(path),
		})
	}
}

// relocate moves a watch folder file into the scratch ingest area so the drop
// folder empties once its files are queued. The queued task points at the
// moved copy.
func (w *Watcher) relocate(path string) (string, error) {
	dir := filepath.Join(w.cfg.Paths.ScratchDir, "ingest")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create ingest dir: %w", err)
	}

	dest := filepath.Join(dir, filepath.Base(path))
	if _, err := os.Stat(dest); err == nil {
		ext := filepath.Ext(dest)
		stem := strings.TrimSuffix(filepath.Base(path), ext)
		dest = filepath.Join(dir, fmt.Sprintf("%s-%d%s", stem, time.Now().UnixNano(), ext))
	}

	if err := fileutil.MoveFile(path, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// retryLater re-tracks a path after a failed submission. The sentinel size
// forces the next stat to register as a change, so a full settle window
// passes before the retry.
func (w *Watcher) retryLater(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[path] = &pendingFile{lastSize: -1, lastChange: time.Now()}
}

// markHandled records the current file version so later sweeps skip the store
// dedupe until the file changes on disk.
func (w *Watcher) markHandled(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	w.mu.Lock()
	w.handled[path] = fileVersion{size: info.Size(), modTime: info.ModTime()}
	w.mu.Unlock()
}

func (w *Watcher) log() *slog.Logger {
	if w.logger != nil {
		return w.logger
	}
	return logging.NewNop()
}

func eligible(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	lower := strings.ToLower(base)
	for _, suffix := range partialSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return false
		}
	}
	return media.SupportedExtension(path)
}

func sweepInterval(settle time.Duration) time.Duration {
	interval := settle / 2
	if interval < 200*time.Millisecond {
		interval = 200 * time.Millisecond
	}
	if interval > 5*time.Second {
		interval = 5 * time.Second
	}
	return interval
}
