package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"murmur/internal/api"
	"murmur/internal/config"
	"murmur/internal/logging"
	"murmur/internal/queue"
	"murmur/internal/services"
)

type apiServer struct {
	bind    string
	token   string
	logger  *slog.Logger
	daemon  *Daemon
	taskSvc *api.TaskService

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.API.Bind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:    bind,
		token:   strings.TrimSpace(cfg.API.Token),
		logger:  logger,
		daemon:  d,
		taskSvc: api.NewTaskService(d.store, cfg),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/tasks", authMiddleware(srv.token, srv.handleTasks))
	mux.HandleFunc("/api/tasks/", authMiddleware(srv.token, srv.handleTaskSubpath))
	mux.HandleFunc("/api/queue/clear", authMiddleware(srv.token, srv.handleQueueClear))
	mux.HandleFunc("/api/status", authMiddleware(srv.token, srv.handleStatus))
	mux.HandleFunc("/api/health", authMiddleware(srv.token, srv.handleHealth))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s == nil {
		return ""
	}
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.bind
}

func (s *apiServer) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleTaskList(w, r)
	case http.MethodPost:
		s.handleTaskSubmit(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleTaskList(w http.ResponseWriter, r *http.Request) {
	statuses, ok := s.parseStatuses(w, r)
	if !ok {
		return
	}
	tasks, err := s.taskSvc.List(r.Context(), statuses...)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.TaskListResponse{Tasks: tasks})
}

func (s *apiServer) handleTaskSubmit(w http.ResponseWriter, r *http.Request) {
	var req api.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	view, err := s.taskSvc.Submit(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.TaskResponse{Task: *view})
}

// handleTaskSubpath dispatches /api/tasks/{id} and its result, cancel, and
// retry subresources.
func (s *apiServer) handleTaskSubpath(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/tasks/"), "/")
	if rest == "" {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	parts := strings.Split(rest, "/")
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	switch {
	case len(parts) == 1:
		s.handleTaskDescribe(w, r, id)
	case len(parts) == 2 && parts[1] == "result":
		s.handleTaskResult(w, r, id)
	case len(parts) == 2 && parts[1] == "cancel":
		s.handleTaskCancel(w, r, id)
	case len(parts) == 2 && parts[1] == "retry":
		s.handleTaskRetry(w, r, id)
	default:
		s.writeError(w, http.StatusNotFound, "task not found")
	}
}

func (s *apiServer) handleTaskDescribe(w http.ResponseWriter, r *http.Request, id int64) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	view, err := s.taskSvc.Describe(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if view == nil {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.TaskResponse{Task: *view})
}

func (s *apiServer) handleTaskResult(w http.ResponseWriter, r *http.Request, id int64) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	result, err := s.taskSvc.Result(r.Context(), id, r.URL.Query().Get("format"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	switch result.Outcome {
	case api.ResultReady:
		w.Header().Set("Content-Type", result.ContentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Body)
	case api.ResultNotFound:
		s.writeError(w, http.StatusNotFound, "task not found")
	case api.ResultFailed:
		message := result.ErrorMessage
		if message == "" {
			message = "task failed"
		}
		s.writeJSON(w, http.StatusConflict, api.ErrorResponse{Error: message, Kind: result.ErrorKind})
	case api.ResultCancelled:
		s.writeJSON(w, http.StatusConflict, api.ErrorResponse{Error: "task was cancelled", Kind: "cancelled"})
	default:
		s.writeJSON(w, http.StatusConflict, api.ErrorResponse{Error: "task has not completed", Kind: "pending"})
	}
}

func (s *apiServer) handleTaskCancel(w http.ResponseWriter, r *http.Request, id int64) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	result, err := s.taskSvc.Cancel(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if result.Outcome == api.CancelNotFound {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) handleTaskRetry(w http.ResponseWriter, r *http.Request, id int64) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	result, err := s.taskSvc.Retry(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if result.Outcome == api.RetryNotFound {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) handleQueueClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	statuses, ok := s.parseStatuses(w, r)
	if !ok {
		return
	}
	removed, err := s.taskSvc.Clear(r.Context(), statuses...)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ClearResponse{Removed: removed})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	deps := make([]api.DependencyStatus, len(status.Dependencies))
	for i, dep := range status.Dependencies {
		deps[i] = api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	payload := api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		QueueDBPath:  status.QueueDBPath,
		LockFilePath: status.LockFilePath,
		Workflow:     api.FromStatusSummary(status.Workflow),
		Dependencies: deps,
	}
	s.writeJSON(w, http.StatusOK, payload)
}

// handleHealth reports collaborator readiness. It always answers 200 so
// callers can read the per-stage detail; Healthy carries the verdict.
func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	summary := s.daemon.workflow.Status(r.Context())
	stages := api.StageHealthSlice(summary.StageHealth)
	healthy := true
	for _, stage := range stages {
		if !stage.Ready {
			healthy = false
			break
		}
	}
	s.writeJSON(w, http.StatusOK, api.HealthReport{Healthy: healthy, Stages: stages})
}

func (s *apiServer) parseStatuses(w http.ResponseWriter, r *http.Request) ([]queue.Status, bool) {
	var statuses []queue.Status
	for _, value := range r.URL.Query()["status"] {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		status, ok := queue.ParseStatus(trimmed)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", trimmed))
			return nil, false
		}
		statuses = append(statuses, status)
	}
	return statuses, true
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

// writeServiceError maps classified service errors onto HTTP status codes.
// Rejected submissions surface as 400 so clients can distinguish bad input
// from daemon faults.
func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	kind := services.Kind(err)
	switch kind {
	case "validation", "configuration":
		status = http.StatusBadRequest
	case "not_found":
		status = http.StatusNotFound
	}
	s.writeJSON(w, status, api.ErrorResponse{Error: err.Error(), Kind: kind})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String("component", "api-server"))
	}
	return logging.NewNop()
}
