// Package relay serves the same-origin proxy in front of the backend.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

const (
	maxBodyBytes    = 4 << 20
	defaultTimeout  = 30 * time.Second
	shutdownTimeout = 5 * time.Second
)

// ErrNoBackend is reported when no backend URL is configured.
var ErrNoBackend = errors.New("backend is not configured")

// Handler forwards ?path= calls to the backend.
type Handler struct {
	Backend string
	Client  *http.Client
	Log     *zap.Logger
}

// NewHandler constructs a Handler. A nil client gets a default timeout.
func NewHandler(backend string, client *http.Client, logger *zap.Logger) *Handler {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Backend: strings.TrimSpace(backend),
		Client:  client,
		Log:     logger,
	}
}

// Routes returns the relay router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:     []string{"*"},
		AllowedMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:     []string{"Content-Type"},
		OptionsPassthrough: true,
	}))
	r.Get("/api/ping", h.Ping)
	r.HandleFunc("/api/gas", h.Forward)
	return r
}

type pingResponse struct {
	OK         bool   `json:"ok"`
	Message    string `json:"message"`
	HasBackend bool   `json:"has_backend"`
}

// Ping handles GET /api/ping.
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, pingResponse{OK: true, Message: "pong", HasBackend: h.Backend != ""})
}

type failureResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

// Forward handles /api/gas for every method.
//
// OPTIONS answers 204 with permissive CORS headers. Other methods are sent
// to the backend with the same method, query and body, and the backend's
// status and body are echoed back.
func (h *Handler) Forward(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	started := time.Now()
	logicalPath := r.URL.Query().Get("path")
	log := h.Log.With(
		zap.String("request_id", RequestIDFrom(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", logicalPath),
	)

	target, err := TargetURL(h.Backend, r.URL.Query())
	if err != nil {
		log.Error("relay: no backend", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, failureResponse{Message: "fetch to backend failed", Detail: err.Error()})
		return
	}

	var body io.Reader
	if r.Method != http.MethodGet {
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, failureResponse{Message: "failed to read request body", Detail: err.Error()})
			return
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, body)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, failureResponse{Message: "fetch to backend failed", Detail: err.Error()})
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.Client.Do(req)
	if err != nil {
		log.Warn("relay: backend unreachable", zap.Error(err), zap.Duration("elapsed", time.Since(started)))
		writeJSON(w, http.StatusBadGateway, failureResponse{Message: "fetch to backend failed", Detail: err.Error()})
		return
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		log.Warn("relay: failed to read backend response", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, failureResponse{Message: "fetch to backend failed", Detail: err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(raw); err != nil {
		log.Debug("relay: client went away", zap.Error(err))
	}
	log.Info("relay",
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)))
}

// TargetURL builds the backend URL carrying path and every other query parameter.
// For repeated parameters the last value wins.
func TargetURL(backend string, query url.Values) (string, error) {
	if backend == "" {
		return "", ErrNoBackend
	}
	u, err := url.Parse(backend)
	if err != nil {
		return "", fmt.Errorf("invalid backend url %q: %w", backend, err)
	}
	q := u.Query()
	q.Set("path", query.Get("path"))
	for k, vs := range query {
		if k == "path" || len(vs) == 0 {
			continue
		}
		q.Set(k, vs[len(vs)-1])
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Serve runs the relay on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("relay listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve relay: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("relay shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down relay: %w", err)
		}
		return nil
	}
}
