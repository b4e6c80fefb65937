package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"subweave/internal/bus"
	"subweave/internal/config"
	"subweave/internal/logging"
	"subweave/internal/queue"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/jobs", srv.handleJobs)
	mux.HandleFunc("/api/jobs/", srv.handleJobItem)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
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
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return logging.NewNop()
}

type submitRequest struct {
	SubtitleContent string                `json:"subtitle_content"`
	Tone            string                `json:"tone"`
	ThinkingMode    bool                  `json:"thinking_mode"`
	Glossary        []queue.GlossaryEntry `json:"glossary"`
}

type jobView struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Attempts  int    `json:"attempts"`
	Progress  string `json:"progress"`
	LastError string `json:"last_error,omitempty"`
	Result    string `json:"result,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func viewOf(job *queue.Job) jobView {
	return jobView{
		ID:        job.ID,
		Status:    string(job.Status),
		Attempts:  job.Attempts,
		Progress:  job.ProgressStage,
		LastError: job.LastError,
		Result:    job.Result,
		CreatedAt: job.CreatedAt.Format(time.RFC3339),
		UpdatedAt: job.UpdatedAt.Format(time.RFC3339),
	}
}

func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleSubmit(w, r)
	case http.MethodGet:
		s.handleList(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.SubtitleContent) == "" {
		http.Error(w, "subtitle_content is required", http.StatusBadRequest)
		return
	}

	job, err := s.daemon.store.Submit(r.Context(), queue.Payload{
		SubtitleContent: req.SubtitleContent,
		Tone:            req.Tone,
		ThinkingMode:    req.ThinkingMode,
		Glossary:        req.Glossary,
	})
	if err != nil {
		s.log().Error("job submission failed", logging.Error(err))
		http.Error(w, "failed to enqueue job", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
}

func (s *apiServer) handleList(w http.ResponseWriter, r *http.Request) {
	var statuses []queue.Status
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, ok := queue.ParseStatus(raw)
		if !ok {
			http.Error(w, "unknown status filter", http.StatusBadRequest)
			return
		}
		statuses = append(statuses, status)
	}

	jobs, err := s.daemon.store.List(r.Context(), statuses...)
	if err != nil {
		s.log().Error("job listing failed", logging.Error(err))
		http.Error(w, "failed to list jobs", http.StatusInternalServerError)
		return
	}

	views := make([]jobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, viewOf(job))
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": views})
}

func (s *apiServer) handleJobItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if rest == "" {
		http.Error(w, "job id required", http.StatusBadRequest)
		return
	}
	if id, ok := strings.CutSuffix(rest, "/events"); ok {
		s.handleJobEvents(w, r, strings.TrimSuffix(id, "/"))
		return
	}

	job, err := s.daemon.store.GetByID(r.Context(), rest)
	if err != nil {
		s.log().Error("job lookup failed", logging.Error(err))
		http.Error(w, "failed to load job", http.StatusInternalServerError)
		return
	}
	if job == nil {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(job))
}

// handleJobEvents streams a job's bus events over SSE. The subscription is
// cancelled when the client disconnects so abandoned connections never
// leak subscribers.
func (s *apiServer) handleJobEvents(w http.ResponseWriter, r *http.Request, id string) {
	if id == "" {
		http.Error(w, "job id required", http.StatusBadRequest)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	job, err := s.daemon.store.GetByID(r.Context(), id)
	if err != nil {
		http.Error(w, "failed to load job", http.StatusInternalServerError)
		return
	}
	if job == nil {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}

	sub := s.daemon.broker.Subscribe(id)
	defer sub.Cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// The bus keeps no history, so seed late subscribers with the job's
	// current state from the durable record.
	writeSSE(w, bus.ProgressEvent(job.ProgressStage))
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event := <-sub.C:
			writeSSE(w, event)
			flusher.Flush()
			if event.Type == bus.EventCompleted || event.Type == bus.EventFailed {
				return
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, event bus.Event) {
	encoded, err := event.Encode()
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", encoded)
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status, err := s.daemon.Status(r.Context())
	if err != nil {
		s.log().Error("status aggregation failed", logging.Error(err))
		http.Error(w, "failed to aggregate status", http.StatusInternalServerError)
		return
	}

	checks := make(map[string]string, len(s.daemon.health))
	for _, check := range s.daemon.health {
		checkCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		if err := check.Check.HealthCheck(checkCtx); err != nil {
			checks[check.Name] = err.Error()
		} else {
			checks[check.Name] = "ok"
		}
		cancel()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"running": status.Running,
		"queue": map[string]int{
			"total":     status.Queue.Total,
			"queued":    status.Queue.Queued,
			"active":    status.Queue.Active,
			"completed": status.Queue.Completed,
			"failed":    status.Queue.Failed,
		},
		"queue_db": status.QueueDBPath,
		"checks":   checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
