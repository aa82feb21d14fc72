package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/collabify/cachekit/internal/config"
	apperrors "github.com/collabify/cachekit/internal/errors"
	"github.com/collabify/cachekit/internal/middleware"
	"github.com/collabify/cachekit/internal/projects"
	"github.com/collabify/cachekit/internal/worker"
)

// Lookups is the cached read side served over HTTP.
type Lookups interface {
	ProjectDetails(ctx context.Context, projectID string) (projects.ProjectDetails, error)
	UserInfo(ctx context.Context, userSub string) (projects.UserInfo, error)
}

type Invalidator interface {
	Invalidate(ctx context.Context, prefix string) int
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type Server struct {
	cfg         *config.Config
	lookups     Lookups
	cache       Invalidator
	asynqClient Enqueuer
	logger      *slog.Logger
}

func NewServer(cfg *config.Config, lookups Lookups, cache Invalidator, asynqClient Enqueuer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:         cfg,
		lookups:     lookups,
		cache:       cache,
		asynqClient: asynqClient,
		logger:      logger,
	}
}

// Register mounts the public and protected routes on r.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", s.HandleHealth)
	r.Get("/api/projects/{id}", s.HandleProjectDetails)
	r.Get("/api/users/{sub}", s.HandleUserInfo)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(s.cfg))
		r.Post("/api/cache/invalidate", s.HandleInvalidate)
	})
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) HandleProjectDetails(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")
	if projectID == "" {
		http.Error(w, "project id is required", http.StatusBadRequest)
		return
	}

	details, err := s.lookups.ProjectDetails(r.Context(), projectID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (s *Server) HandleUserInfo(w http.ResponseWriter, r *http.Request) {
	userSub := chi.URLParam(r, "sub")
	if userSub == "" {
		http.Error(w, "user sub is required", http.StatusBadRequest)
		return
	}

	info, err := s.lookups.UserInfo(r.Context(), userSub)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

type InvalidateRequest struct {
	Prefix string `json:"prefix"`
	Async  bool   `json:"async"`
}

type InvalidateResponse struct {
	Prefix  string `json:"prefix"`
	Deleted int    `json:"deleted"`
}

type InvalidateQueuedResponse struct {
	Prefix string `json:"prefix"`
	TaskID string `json:"task_id"`
}

func (s *Server) HandleInvalidate(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req InvalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Prefix) == "" {
		http.Error(w, "prefix is required", http.StatusBadRequest)
		return
	}

	if !req.Async {
		deleted := s.cache.Invalidate(r.Context(), req.Prefix)
		s.logger.InfoContext(r.Context(), "Cache invalidated", "prefix", req.Prefix, "deleted", deleted, "user_id", userID)
		writeJSON(w, http.StatusOK, InvalidateResponse{Prefix: req.Prefix, Deleted: deleted})
		return
	}

	if s.asynqClient == nil {
		http.Error(w, "Async invalidation unavailable", http.StatusServiceUnavailable)
		return
	}

	taskID := uuid.New().String()
	task, err := worker.NewInvalidateCacheTask(worker.InvalidateCachePayload{Prefix: req.Prefix})
	if err != nil {
		http.Error(w, "Failed to create task", http.StatusInternalServerError)
		return
	}

	if _, err := s.asynqClient.EnqueueContext(r.Context(), task, asynq.TaskID(taskID), asynq.Queue(worker.QueueDefault)); err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to enqueue invalidation", "prefix", req.Prefix, "error", err)
		http.Error(w, "Failed to enqueue task", http.StatusInternalServerError)
		return
	}

	s.logger.InfoContext(r.Context(), "Cache invalidation queued", "prefix", req.Prefix, "task_id", taskID, "user_id", userID)
	writeJSON(w, http.StatusAccepted, InvalidateQueuedResponse{Prefix: req.Prefix, TaskID: taskID})
}

type errorResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.StatusCode(err)
	if apperrors.IsType(err, apperrors.ErrorTypeUpstream) {
		status = http.StatusBadGateway
	}
	resp := errorResponse{Error: http.StatusText(status)}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		resp.Code = appErr.Code()
		resp.Suggestion = appErr.RecoverySuggestion()
		if status < http.StatusInternalServerError {
			resp.Error = appErr.Message
		}
	}

	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
