package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	imageutil "github.com/non4ik-sdk/palettron/internal/image"
)

var (
	errNoImage  = errors.New("no photo or document field in upload")
	errNotImage = errors.New("document is not an image")
)

// upload is the image part of a multipart request.
type upload struct {
	field string
	data  []byte
}

// readUpload returns the first "photo" or "document" part of the request.
// Documents must declare an image/* content type; photos are trusted and
// checked only by decoding.
func readUpload(r *http.Request) (*upload, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("expected multipart upload: %w", err)
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errNoImage
		}
		if err != nil {
			return nil, err
		}

		field := part.FormName()
		if field != fieldPhoto && field != fieldDocument {
			_ = part.Close()
			continue
		}
		if field == fieldDocument && !imageutil.IsImageMIME(part.Header.Get("Content-Type")) {
			_ = part.Close()
			return nil, errNotImage
		}

		data, err := io.ReadAll(part)
		_ = part.Close()
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			return nil, errNoImage
		}
		return &upload{field: field, data: data}, nil
	}
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// instrument counts requests by matched route and logs each one at debug level.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		s.metrics.requestsTotal.WithLabelValues(route, strconv.Itoa(rec.code)).Inc()
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path,
			"code", rec.code, "duration", time.Since(start))
	})
}
