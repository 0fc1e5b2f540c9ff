package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/iwvelando/reverse-consolidation/internal/config"
	"github.com/iwvelando/reverse-consolidation/internal/deal"
	"github.com/iwvelando/reverse-consolidation/internal/engine"
	"github.com/iwvelando/reverse-consolidation/internal/position"
	"github.com/iwvelando/reverse-consolidation/internal/schedule"
	"github.com/iwvelando/reverse-consolidation/internal/telemetry"
	"github.com/iwvelando/reverse-consolidation/pkg/constants"
	"github.com/iwvelando/reverse-consolidation/pkg/output"
	"go.uber.org/zap"
)

// RequestIDHeader carries the request id on requests and responses.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

type handler struct {
	logger        *zap.Logger
	calc          *engine.Calculator
	maxUploadSize int64
	version       string
	now           func() time.Time
}

// Options tunes the handler.
type Options struct {
	MaxUploadSize int64
	Version       string
	// Now supplies the date used when a deal has no asOf. Defaults to time.Now.
	Now func() time.Time
}

// NewHandler constructs the HTTP handler that serves the evaluation API.
func NewHandler(logger *zap.Logger, calc *engine.Calculator, opts Options) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if calc == nil {
		calc = engine.NewCalculator(logger)
	}

	maxUploadSize := opts.MaxUploadSize
	if maxUploadSize <= 0 {
		maxUploadSize = constants.DefaultMaxUploadSizeBytes
	}

	trimmedVersion := strings.TrimSpace(opts.Version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	h := &handler{logger: logger, calc: calc, maxUploadSize: maxUploadSize, version: trimmedVersion, now: now}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(h.recoverer)
	r.Use(telemetry.Middleware)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", h.handleHealth)
	r.Handle("/metrics", telemetry.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/evaluate", h.handleEvaluate)
		r.Post("/evaluate/upload", h.handleEvaluateUpload)
		r.Post("/breakdown", h.handleBreakdown)
		r.Post("/export", h.handleExport)
		r.Get("/version", h.handleVersion)
	})

	return r
}

// requestID propagates or assigns a request id.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (h *handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				h.logger.Error("panic while serving request",
					zap.String("op", "server.recoverer"),
					zap.String("requestId", requestIDFrom(r.Context())),
					zap.Any("panic", rec),
				)
				h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type evaluateResponse struct {
	ID         string          `json:"id"`
	Merchant   config.Merchant `json:"merchant"`
	Result     *engine.Result  `json:"result,omitempty"`
	CSV        string          `json:"csv,omitempty"`
	Warnings   []string        `json:"warnings,omitempty"`
	Duration   string          `json:"duration"`
	ConfigYAML string          `json:"configYaml,omitempty"`
	Error      string          `json:"error,omitempty"`
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

func (h *handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleEvaluate"
	start := time.Now()

	cfg, ok := h.decodeDeal(w, r, op)
	if !ok {
		return
	}
	h.runEvaluation(w, r, cfg, start, op)
}

func (h *handler) handleEvaluateUpload(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleEvaluateUpload"
	start := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondError(w, r, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds limit of %d bytes", h.maxUploadSize), op)
			return
		}
		h.respondError(w, r, http.StatusBadRequest, fmt.Sprintf("failed to parse upload: %v", err), op)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, "missing deal file", op)
		return
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			h.logger.Warn("failed to close uploaded file",
				zap.String("op", op),
				zap.Error(closeErr),
			)
		}
	}()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		h.respondError(w, r, http.StatusInternalServerError, fmt.Sprintf("failed to read deal file: %v", err), op)
		return
	}

	cfg, err := config.LoadConfigurationFromReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, err.Error(), op)
		return
	}
	h.runEvaluation(w, r, cfg, start, op)
}

func (h *handler) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleBreakdown"

	day, err := strconv.Atoi(r.URL.Query().Get("day"))
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, "query parameter day must be an integer", op)
		return
	}

	cfg, ok := h.decodeDeal(w, r, op)
	if !ok {
		return
	}
	in, err := cfg.ToInputWithFixedTime(h.now())
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, err.Error(), op)
		return
	}

	breakdown, err := h.calc.Breakdown(in, day)
	if err != nil {
		h.respondError(w, r, statusFor(err), err.Error(), op)
		return
	}
	h.writeJSON(w, http.StatusOK, breakdown)
}

func (h *handler) handleExport(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleExport"

	cfg, ok := h.decodeDeal(w, r, op)
	if !ok {
		return
	}
	yamlBytes, err := cfg.Marshal()
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, fmt.Sprintf("failed to encode deal: %v", err), op)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{
		"configYaml": string(yamlBytes),
	})
}

func (h *handler) decodeDeal(w http.ResponseWriter, r *http.Request, op string) (*config.Configuration, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	var cfg config.Configuration
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondError(w, r, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request exceeds limit of %d bytes", h.maxUploadSize), op)
			return nil, false
		}
		h.respondError(w, r, http.StatusBadRequest, fmt.Sprintf("failed to decode deal: %v", err), op)
		return nil, false
	}
	return &cfg, true
}

func (h *handler) runEvaluation(w http.ResponseWriter, r *http.Request, cfg *config.Configuration, start time.Time, op string) {
	now := h.now()
	warnings := cfg.ValidateConfigurationWithFixedTime(now)

	in, err := cfg.ToInputWithFixedTime(now)
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, err.Error(), op)
		return
	}

	res, err := h.calc.Evaluate(r.Context(), in)
	if err != nil && !errors.Is(err, schedule.ErrNonTerminating) {
		h.respondError(w, r, statusFor(err), err.Error(), op)
		return
	}

	response := evaluateResponse{
		ID:       uuid.NewString(),
		Merchant: cfg.Merchant,
		Result:   res,
		CSV:      output.CsvString(res),
		Warnings: warnings,
		Duration: time.Since(start).String(),
	}
	if yamlBytes, marshalErr := cfg.Marshal(); marshalErr == nil {
		response.ConfigYAML = string(yamlBytes)
	} else {
		h.logger.Warn("failed to marshal deal",
			zap.String("op", op),
			zap.Error(marshalErr),
		)
	}

	status := http.StatusOK
	if err != nil {
		status = http.StatusUnprocessableEntity
		response.Error = err.Error()
		h.logger.Warn("deal did not pay off",
			zap.String("op", op),
			zap.String("requestId", requestIDFrom(r.Context())),
			zap.Error(err),
		)
	}

	h.logger.Info("deal evaluated",
		zap.String("op", op),
		zap.String("requestId", requestIDFrom(r.Context())),
		zap.String("evaluationId", response.ID),
		zap.Int("days", len(res.DailySchedule)),
		zap.Bool("incomplete", res.Incomplete),
		zap.Duration("duration", time.Since(start)),
	)

	h.writeJSON(w, status, response)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, deal.ErrInvalidConfiguration), errors.Is(err, position.ErrInvalidPosition):
		return http.StatusBadRequest
	case errors.Is(err, schedule.ErrNonTerminating):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) respondError(w http.ResponseWriter, r *http.Request, status int, msg string, op string) {
	h.logger.Error("request failed",
		zap.String("op", op),
		zap.String("requestId", requestIDFrom(r.Context())),
		zap.Int("status", status),
		zap.String("error", msg),
	)

	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}
