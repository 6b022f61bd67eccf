// Package server exposes the two-image recolouring flow over HTTP. A client
// opens a session, uploads the image whose colours it wants, then uploads the
// image to recolour and gets a PNG back.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/non4ik-sdk/palettron/internal/colour"
	imageutil "github.com/non4ik-sdk/palettron/internal/image"
	"github.com/non4ik-sdk/palettron/internal/session"
)

const (
	// DefaultAddr is the listen address used when none is configured.
	DefaultAddr = ":8080"

	// DefaultMaxUploadBytes caps a single upload request.
	DefaultMaxUploadBytes int64 = 20 << 20

	// defaultReadHeaderTimeout prevents Slowloris attacks.
	defaultReadHeaderTimeout = 10 * time.Second

	// defaultShutdownTimeout bounds how long in-flight requests may drain.
	defaultShutdownTimeout = 15 * time.Second
)

// Form field names an image may be uploaded under. A photo is answered inline,
// a document as an attachment.
const (
	fieldPhoto    = "photo"
	fieldDocument = "document"
)

const (
	startMessage = "Send an image to use as a color palette.\n" +
		"Then send another image to apply that palette.\n"
	invalidImageMessage = "Please send a valid image file."
	paletteSavedMessage = "Palette saved. Now send the target image."
)

// Pinger is implemented by stores that can report their backend's health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Option configures a Server.
type Option func(*Server)

// WithAddr sets the listen address for ListenAndServe.
func WithAddr(addr string) Option {
	return func(s *Server) { s.addr = addr }
}

// WithLogger sets the server logger.
func WithLogger(logger hclog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMaxColours sets the palette size cap used for extraction.
func WithMaxColours(n int) Option {
	return func(s *Server) { s.maxColours = n }
}

// WithMaxConcurrent sets how many images may be processed at once.
// Default: GOMAXPROCS.
func WithMaxConcurrent(n int64) Option {
	return func(s *Server) { s.maxConcurrent = n }
}

// WithMaxUploadBytes sets the maximum allowed request body size in bytes.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) { s.maxUpload = n }
}

// WithRegistry sets the Prometheus registry metrics are recorded in and
// served from. Default: a fresh registry with Go and process collectors.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// Server handles palette sessions over HTTP.
type Server struct {
	store     session.Store
	extractor colour.Extractor

	addr          string
	logger        hclog.Logger
	maxColours    int
	maxConcurrent int64
	maxUpload     int64

	sem      *semaphore.Weighted
	registry *prometheus.Registry
	metrics  *Metrics
}

// New creates a Server backed by store and extractor.
func New(store session.Store, extractor colour.Extractor, opts ...Option) *Server {
	s := &Server{
		store:         store,
		extractor:     extractor,
		addr:          DefaultAddr,
		logger:        hclog.NewNullLogger(),
		maxColours:    colour.DefaultMaxColours,
		maxConcurrent: int64(runtime.GOMAXPROCS(0)),
		maxUpload:     DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.maxConcurrent < 1 {
		s.maxConcurrent = 1
	}
	s.sem = semaphore.NewWeighted(s.maxConcurrent)

	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(collectors.NewGoCollector())
		s.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	s.metrics = NewMetrics(s.registry)

	return s
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/start", s.handleStart)
	mux.HandleFunc("POST /v1/sessions", s.handleCreateSession)
	mux.HandleFunc("POST /v1/sessions/{id}/images", s.handleImage)
	mux.HandleFunc("DELETE /v1/sessions/{id}", s.handleClearSession)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	return s.instrument(mux)
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled, then drains in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: defaultReadHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (s *Server) handleStart(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, startMessage)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	id := uuid.NewString()
	s.logger.Debug("session created", "session", id)
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	if err := s.store.Clear(r.Context(), id); err != nil {
		s.logger.Error("failed to clear session", "session", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to clear session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.store.(Pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			s.logger.Warn("health check failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "session store unavailable")
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok")
}

// handleImage takes the first image of a session as the palette source and
// the second as the target to recolour.
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	logger := s.logger.With("session", id)

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	up, err := readUpload(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("image exceeds %d bytes", tooLarge.Limit))
		case errors.Is(err, errNotImage):
			writeError(w, http.StatusUnsupportedMediaType, invalidImageMessage)
		default:
			logger.Debug("rejected upload", "error", err)
			writeError(w, http.StatusBadRequest, invalidImageMessage)
		}
		return
	}

	// Reject non-images by header before waiting for a worker.
	format, err := imageutil.DetectFormat(up.data)
	if err != nil {
		logger.Debug("upload is not an image", "field", up.field, "error", err)
		writeError(w, http.StatusBadRequest, invalidImageMessage)
		return
	}
	logger = logger.With("format", format)

	if err := s.sem.Acquire(r.Context(), 1); err != nil {
		writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for a worker")
		return
	}
	defer s.sem.Release(1)
	s.metrics.jobsActive.Inc()
	defer s.metrics.jobsActive.Dec()

	var img *imageutil.RGB
	err = s.timeStage("decode", func() (err error) {
		img, err = imageutil.Decode(up.data)
		return err
	})
	if err != nil {
		logger.Debug("could not decode upload", "field", up.field, "error", err)
		writeError(w, http.StatusBadRequest, invalidImageMessage)
		return
	}

	palette, err := s.store.Take(r.Context(), id)
	switch {
	case errors.Is(err, session.ErrNotFound):
		s.savePalette(w, r, logger, id, img)
	case err != nil:
		logger.Error("failed to load session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load session")
	default:
		s.recolour(w, r, logger, id, palette, img, up.field)
	}
}

func (s *Server) savePalette(w http.ResponseWriter, r *http.Request, logger hclog.Logger,
	id string, img *imageutil.RGB,
) {
	var palette *colour.Palette
	err := s.timeStage("extract", func() (err error) {
		palette, err = s.extractor.Extract(img, s.maxColours)
		return err
	})
	if err != nil {
		logger.Error("palette extraction failed", "error", err)
		writeError(w, http.StatusInternalServerError, "palette extraction failed")
		return
	}

	if err := s.store.Put(r.Context(), id, palette); err != nil {
		logger.Error("failed to save palette", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save palette")
		return
	}
	s.metrics.paletteColours.Observe(float64(palette.Len()))
	logger.Info("palette saved", "colours", palette.Len())

	writeJSON(w, http.StatusOK, paletteSavedResponse{
		Status:  "palette_saved",
		Colours: palette.Len(),
		Palette: palette.ToHex(),
		Message: paletteSavedMessage,
	})
}

func (s *Server) recolour(w http.ResponseWriter, r *http.Request, logger hclog.Logger,
	id string, palette *colour.Palette, img *imageutil.RGB, field string,
) {
	var out []byte
	err := s.timeStage("apply", func() error {
		result, err := colour.Apply(palette, img)
		if err != nil {
			return err
		}
		return s.timeStage("encode", func() (err error) {
			out, err = imageutil.EncodePNG(result)
			return err
		})
	})
	if err != nil {
		logger.Error("failed to recolour image", "error", err)
		// Give the palette back so the client can retry with another target.
		if perr := s.store.Put(context.WithoutCancel(r.Context()), id, palette); perr != nil {
			logger.Error("failed to restore palette", "error", perr)
		}
		writeError(w, http.StatusInternalServerError, "failed to recolour image")
		return
	}
	logger.Info("image recoloured", "bytes", len(out), "sent_as", field)

	disposition := "inline"
	if field == fieldDocument {
		disposition = mime.FormatMediaType("attachment", map[string]string{"filename": id + ".png"})
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func (s *Server) timeStage(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	s.metrics.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	return err
}

type paletteSavedResponse struct {
	Status  string   `json:"status"`
	Colours int      `json:"colours"`
	Palette []string `json:"palette"`
	Message string   `json:"message"`
}

func sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if err := uuid.Validate(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return "", false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
