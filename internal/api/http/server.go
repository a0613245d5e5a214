package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"memberdir/syncservice/internal/directory"
	"memberdir/syncservice/internal/domain"
	"memberdir/syncservice/internal/pagination"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DirectoryService is the facade the HTTP layer talks to. The concrete
// implementation lives in internal/directory.
type DirectoryService interface {
	FetchProfiles(ctx context.Context, listQuery domain.ListQuery) (domain.ProfilePage, error)
	SearchProfiles(ctx context.Context, query string) (domain.SearchResponse, error)
	RecordClick(ctx context.Context, profileID string) (domain.ClickReceipt, error)
	HeroImage(ctx context.Context) (string, error)
	ChangePage(requested int) int
	PaginationMeta() pagination.Meta
	RequestStatesSnapshot() directory.RequestStates
}

const maxQueryLength = 200

type Server struct {
	directory DirectoryService
	logger    *slog.Logger
}

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func NewServer(directoryService DirectoryService, options ...ServerOption) *Server {
	server := &Server{
		directory: directoryService,
		logger:    slog.Default(),
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	return server
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/profiles", s.handleProfiles)
	mux.HandleFunc("/api/profile-clicks", s.handleProfileClicks)
	mux.HandleFunc("/api/search", s.handleSearch)
	mux.HandleFunc("/api/page", s.handleChangePage)
	mux.HandleFunc("/api/hero-image", s.handleHeroImage)
	mux.HandleFunc("/api/hero-image/raw", s.handleImageProxy)
	mux.HandleFunc("/api/requests", s.handleRequestStates)
	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "directory-sync",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health"
		}),
	)
	return recoveryMiddleware(s.logger, rateLimitMiddleware(50, 100, metricsMiddleware(traced)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/profiles" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.directory == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "directory service is not configured")
		return
	}

	page, err := parseNonNegativeInt(r, "page", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid page")
		return
	}
	limit, err := parseNonNegativeInt(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid limit")
		return
	}

	listQuery := domain.ListQuery{
		Page:           page,
		Limit:          limit,
		Location:       strings.TrimSpace(r.URL.Query().Get("location")),
		Specialisation: strings.TrimSpace(r.URL.Query().Get("specialisation")),
	}

	listing, err := s.directory.FetchProfiles(r.Context(), listQuery)
	if err != nil {
		s.writeBackendError(w, r, "profile listing failed", err)
		return
	}

	s.logger.Info("profiles synced",
		slog.Int("page", listing.Page),
		slog.Int("count", len(listing.Profiles)),
		slog.Int("total", listing.Total),
	)
	writeJSON(w, http.StatusOK, listing)
}

func (s *Server) handleProfileClicks(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/profile-clicks" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.directory == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "directory service is not configured")
		return
	}

	var payload struct {
		ID string `json:"_id"`
	}
	if err := decodeJSONBody(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	profileID := strings.TrimSpace(payload.ID)
	if profileID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "_id is required")
		return
	}

	receipt, err := s.directory.RecordClick(r.Context(), profileID)
	if err != nil {
		s.writeBackendError(w, r, "click write failed", err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/search" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.directory == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "directory service is not configured")
		return
	}

	query := r.URL.Query().Get("q")
	if len(query) > maxQueryLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "query too long (max 200 characters)")
		return
	}

	response, err := s.directory.SearchProfiles(r.Context(), query)
	if err != nil {
		s.writeBackendError(w, r, "search failed", err)
		return
	}

	s.logger.Info("search completed",
		slog.String("query", truncate(strings.TrimSpace(query), 80)),
		slog.Int("totalItems", response.TotalItems),
		slog.Int64("elapsedMs", response.ElapsedMS),
	)
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleChangePage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/page" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.directory == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "directory service is not configured")
		return
	}

	var payload struct {
		Page int `json:"page"`
	}
	if err := decodeJSONBody(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	// Out-of-range pages are a no-op, not an error: the current page sticks.
	s.directory.ChangePage(payload.Page)
	writeJSON(w, http.StatusOK, s.directory.PaginationMeta())
}

func (s *Server) handleHeroImage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/hero-image" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.directory == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "directory service is not configured")
		return
	}

	imageURL, err := s.directory.HeroImage(r.Context())
	if err != nil {
		s.writeBackendError(w, r, "hero image selection failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"url":       imageURL,
		"available": imageURL != "",
	})
}

func (s *Server) handleRequestStates(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/requests" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.directory == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "directory service is not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.directory.RequestStatesSnapshot())
}

func (s *Server) writeBackendError(w http.ResponseWriter, r *http.Request, message string, err error) {
	s.logger.Warn(message,
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	switch {
	case errors.Is(err, directory.ErrBackendUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service_unavailable", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "upstream_timeout", "the directory backend timed out")
	default:
		writeError(w, http.StatusBadGateway, "upstream_error", message)
	}
}

func decodeJSONBody(r *http.Request, dest any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errors.New("invalid json body")
	}
	return nil
}

func parseNonNegativeInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 0 {
		return 0, errors.New("invalid value")
	}
	return parsed, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
