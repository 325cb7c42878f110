package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"payreminder/internal/constants"
	"payreminder/internal/database"
	"payreminder/internal/middleware"
	"payreminder/internal/models"
	"payreminder/internal/phone"
	"payreminder/internal/service"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Server struct {
	router     *mux.Router
	logger     *logrus.Logger
	cfg        *models.Config
	db         *database.Database
	dispatcher *service.Dispatcher
	scheduler  *service.Scheduler
	server     *http.Server

	// baseCtx is the application lifecycle context. Background runs started
	// by handlers derive from it so shutdown cancels them between entries
	// instead of killing a run after an entry was claimed.
	baseCtx context.Context
}

func NewServer(ctx context.Context, cfg *models.Config, db *database.Database,
	dispatcher *service.Dispatcher, scheduler *service.Scheduler, logger *logrus.Logger) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		logger:     logger,
		cfg:        cfg,
		db:         db,
		dispatcher: dispatcher,
		scheduler:  scheduler,
		baseCtx:    ctx,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Observability(s.logger))

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/queue", s.handleEnqueue()).Methods(http.MethodPost)
	api.HandleFunc("/queue", s.handleListQueue()).Methods(http.MethodGet)
	api.HandleFunc("/rate-limit", s.handleRateLimit()).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{name}/run", s.handleRunJob()).Methods(http.MethodPost)
	api.HandleFunc("/dispatch", s.handleDispatch()).Methods(http.MethodPost)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  constants.DefaultServerReadTimeoutSec * time.Second,
		WriteTimeout: constants.DefaultServerWriteTimeoutSec * time.Second,
		IdleTimeout:  constants.DefaultServerIdleTimeoutSec * time.Second,
	}

	s.logger.Infof("Starting server on port %d", s.cfg.Server.Port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			s.logger.WithError(err).Error("Failed to write health response")
		}
	}
}

type enqueueRequest struct {
	ClientID    *int64  `json:"client_id,omitempty"`
	Destination string  `json:"destination"`
	Body        string  `json:"body"`
	Template    *string `json:"template,omitempty"`
	ScheduledAt *string `json:"scheduled_at,omitempty"`
}

func (s *Server) handleEnqueue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req enqueueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.Destination == "" || req.Body == "" {
			http.Error(w, "destination and body are required", http.StatusBadRequest)
			return
		}

		// Collaborators paste wa.me links as destinations.
		destination := req.Destination
		if digits := phone.FromWhatsAppURL(destination); digits != "" {
			destination = digits
		}

		entry := &models.QueueEntry{
			ClientID:    req.ClientID,
			Destination: destination,
			Body:        req.Body,
			Template:    req.Template,
		}
		if req.ScheduledAt != nil {
			scheduledAt, err := time.Parse(time.RFC3339, *req.ScheduledAt)
			if err != nil {
				http.Error(w, "scheduled_at must be RFC3339", http.StatusBadRequest)
				return
			}
			entry.ScheduledAt = &scheduledAt
		}

		id, err := s.db.EnqueueMessage(r.Context(), entry)
		if err != nil {
			s.logger.WithError(err).Error("Failed to enqueue message")
			http.Error(w, "failed to enqueue message", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		s.writeJSON(w, map[string]interface{}{"id": id, "status": models.QueueStatusPending})
	}
}

func (s *Server) handleListQueue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := constants.DefaultQueueListSize
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		entries, err := s.db.ListRecent(r.Context(), limit)
		if err != nil {
			s.logger.WithError(err).Error("Failed to list queue entries")
			http.Error(w, "failed to list queue entries", http.StatusInternalServerError)
			return
		}

		items := make([]queueListItem, 0, len(entries))
		for _, entry := range entries {
			items = append(items, queueListItem{
				QueueEntry:         entry,
				DestinationDisplay: phone.FormatDisplay(entry.Destination),
			})
		}

		w.Header().Set("Content-Type", "application/json")
		s.writeJSON(w, map[string]interface{}{"entries": items, "count": len(items)})
	}
}

// queueListItem augments a backlog entry with a human-readable destination
// for the admin listing.
type queueListItem struct {
	models.QueueEntry
	DestinationDisplay string `json:"destinationDisplay"`
}

func (s *Server) handleRateLimit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		s.writeJSON(w, s.dispatcher.RateStats())
	}
}

// handleRunJob triggers a job outside its schedule. The job runs in the
// background because a dispatch pass can spend minutes in humanized
// delays.
func (s *Server) handleRunJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["name"]

		known := false
		for _, jobName := range s.scheduler.JobNames() {
			if jobName == name {
				known = true
				break
			}
		}
		if !known {
			http.Error(w, fmt.Sprintf("unknown job: %s", name), http.StatusNotFound)
			return
		}

		go func() {
			if err := s.scheduler.RunOnce(s.baseCtx, name); err != nil {
				s.logger.WithError(err).WithField("job", name).Error("On-demand job failed")
			}
		}()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		s.writeJSON(w, map[string]string{"job": name, "status": "started"})
	}
}

// handleDispatch starts a drain of the pending backlog in the background.
func (s *Server) handleDispatch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		go func() {
			summary, err := s.dispatcher.Run(s.baseCtx)
			if err != nil {
				s.logger.WithError(err).Error("On-demand dispatch failed")
				return
			}
			s.logger.WithFields(logrus.Fields{
				"sent":    summary.Sent,
				"failed":  summary.Failed,
				"skipped": summary.Skipped,
			}).Info("On-demand dispatch complete")
		}()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		s.writeJSON(w, map[string]string{"status": "started"})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, payload interface{}) {
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}
