// Package server exposes the converter over HTTP.
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-json-experiment/json"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mcncl/jsonflat/internal/config"
	"github.com/mcncl/jsonflat/internal/converter"
	"github.com/mcncl/jsonflat/internal/errors"
	"github.com/mcncl/jsonflat/internal/models"
	"github.com/mcncl/jsonflat/internal/parser"
)

const (
	// RequestIDHeader carries the id assigned to each conversion request.
	RequestIDHeader = "X-Request-ID"

	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeJSON = "application/json; charset=utf-8"
)

type errorResponse struct {
	Error string `json:"error"`
}

// Server serves the conversion endpoint, a health check and metrics.
type Server struct {
	cfg      config.ServerConfig
	conv     *converter.Converter
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *Metrics
}

// New creates a Server with its own metrics registry.
func New(cfg config.ServerConfig, conv *converter.Converter, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := newRegistry()
	return &Server{
		cfg:      cfg,
		conv:     conv,
		logger:   logger,
		registry: registry,
		metrics:  NewMetrics(registry),
	}
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/convert", s.handleConvert)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return mux
}

// Run listens on the configured address until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully within the configured timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("http server listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		s.logger.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", contentTypeJSON)
	_ = json.MarshalWrite(w, map[string]string{"status": "ok"})
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	w.Header().Set(RequestIDHeader, requestID)
	logger := s.logger.With(zap.String("request_id", requestID))

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("conversion panicked", zap.Any("panic", rec))
			s.fail(w, logger, errors.NewEncodingError("unexpected failure", fmt.Errorf("%v", rec)))
		}
	}()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, int64(s.cfg.MaxBodySize.Bytes())))
	if err != nil {
		var maxErr *http.MaxBytesError
		if stderrors.As(err, &maxErr) {
			s.metrics.conversions.WithLabelValues("too_large").Inc()
			s.writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds %s", s.cfg.MaxBodySize.HumanReadable()))
			return
		}
		s.fail(w, logger, errors.NewInputError("failed to read request body", err))
		return
	}
	s.metrics.inputBytes.Observe(float64(len(body)))

	data, fileName, err := decodeRequest(body)
	if err != nil {
		s.fail(w, logger, err)
		return
	}

	result, err := s.conv.ConvertValue(data, fileName, converter.Hooks{})
	if err != nil {
		s.fail(w, logger, err)
		return
	}

	s.metrics.conversions.WithLabelValues("success").Inc()
	s.metrics.rows.Add(float64(result.Rows))
	s.metrics.duration.Observe(result.Duration.Seconds())
	logger.Info("conversion succeeded",
		zap.String("file", result.FileName),
		zap.Int("rows", result.Rows),
		zap.Int("columns", result.Columns),
	)

	w.Header().Set("Content-Type", contentTypeCSV)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, escapeFileName(result.FileName)))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.CSV)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.CSV); err != nil {
		logger.Warn("failed to write response", zap.Error(err))
	}
}

// uriComponentUnreserved are left unescaped by browsers' encodeURIComponent
// but escaped by url.QueryEscape.
var uriComponentUnreserved = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// escapeFileName percent-encodes name the way browsers' encodeURIComponent
// does, so clients can decode it back.
func escapeFileName(name string) string {
	return uriComponentUnreserved.Replace(url.QueryEscape(name))
}

// decodeRequest extracts jsonData and fileName from the request envelope.
func decodeRequest(body []byte) (models.JSONValue, string, error) {
	doc, err := parser.ParseBytes(body)
	if err != nil {
		if errors.TypeOf(err) == errors.ErrorTypeInput {
			return nil, "", errors.NewInputError("request body is empty", errors.ErrMissingData)
		}
		return nil, "", err
	}

	envelope, ok := doc.Root.(*models.JSONObject)
	if !ok {
		return nil, "", errors.NewInputError("request body must be a JSON object", errors.ErrMissingData)
	}

	data, ok := envelope.Get("jsonData")
	if !ok || isFalsy(data) {
		return nil, "", errors.NewInputError("no data to convert", errors.ErrMissingData)
	}

	var fileName string
	if v, ok := envelope.Get("fileName"); ok {
		fileName, _ = v.(string)
	}
	return data, fileName, nil
}

// isFalsy reports values a browser client treats as absent.
func isFalsy(v models.JSONValue) bool {
	switch val := v.(type) {
	case nil:
		return true
	case bool:
		return !val
	case string:
		return val == ""
	case models.Number:
		f, err := strconv.ParseFloat(string(val), 64)
		return err == nil && f == 0
	default:
		return false
	}
}

func (s *Server) fail(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := errors.HTTPStatus(err)
	s.metrics.conversions.WithLabelValues(string(errors.TypeOf(err))).Inc()

	message := errors.UserFriendlyError(err)
	if status >= http.StatusInternalServerError {
		logger.Error("conversion failed", zap.Error(err))
		message = fmt.Sprintf("conversion failed: %v", err)
	} else {
		logger.Info("conversion rejected", zap.Error(err))
	}
	s.writeError(w, status, message)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.MarshalWrite(w, errorResponse{Error: message}); err != nil {
		s.logger.Warn("failed to write error response", zap.Error(err))
	}
}
