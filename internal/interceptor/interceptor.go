// Package interceptor serves decrypted byte ranges of registered resources
// under a reserved path prefix and passes every other request through.
package interceptor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"podstream/internal/ctr"
	"podstream/internal/origin"
	"podstream/internal/registry"
)

const (
	DefaultPrefix    = "/decrypt-video/"
	DefaultChunkSize = 5 * 1024 * 1024
)

var ErrInvalidRange = errors.New("invalid range header")

var rangeRegex = regexp.MustCompile(`^bytes=(\d+)-(\d*)$`)

// ParseRange accepts exactly "bytes=<start>-" or "bytes=<start>-<end>".
func ParseRange(header string) (start, end int64, hasEnd bool, err error) {
	m := rangeRegex.FindStringSubmatch(header)
	if m == nil {
		return 0, 0, false, ErrInvalidRange
	}
	start, err = strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, 0, false, ErrInvalidRange
	}
	if m[2] == "" {
		return start, 0, false, nil
	}
	end, err = strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return 0, 0, false, ErrInvalidRange
	}
	return start, end, true, nil
}

type Options struct {
	// Prefix is the reserved path; the segment after it is the resource id.
	Prefix string
	// ChunkSize bounds the bytes served for a single range request.
	ChunkSize int64
}

func (o Options) withDefaults() Options {
	if o.Prefix == "" {
		o.Prefix = DefaultPrefix
	}
	if !strings.HasSuffix(o.Prefix, "/") {
		o.Prefix += "/"
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	return o
}

// Interceptor answers requests for <prefix><resourceId> with decrypted ranges
// of the resource's origin.
type Interceptor struct {
	registry  registry.Registry
	fetcher   origin.Fetcher
	decrypter *ctr.Decrypter
	next      http.Handler
	opts      Options
	logger    *zap.Logger
}

// NewInterceptor builds an interceptor. next receives every request outside
// the prefix; when nil those requests get a 404.
func NewInterceptor(reg registry.Registry, fetcher origin.Fetcher, decrypter *ctr.Decrypter, opts Options, next http.Handler, logger *zap.Logger) *Interceptor {
	if logger == nil {
		logger = zap.L()
	}
	return &Interceptor{
		registry:  reg,
		fetcher:   fetcher,
		decrypter: decrypter,
		next:      next,
		opts:      opts.withDefaults(),
		logger:    logger.Named("interceptor"),
	}
}

func (s *Interceptor) resourceID(path string) (string, bool) {
	id, ok := strings.CutPrefix(path, s.opts.Prefix)
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

func (s *Interceptor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, ok := s.resourceID(r.URL.Path)
	if !ok {
		if s.next != nil {
			s.next.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
		return
	}

	requestID := uuid.NewString()
	rec := &recorder{ResponseWriter: w}
	started := time.Now()

	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Expose-Headers", "Content-Range, Content-Length, Accept-Ranges, X-Request-Id")
	h.Set("X-Request-Id", requestID)

	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("request panicked",
				zap.String("request", requestID),
				zap.Any("panic", p),
				zap.Stack("stack"))
			if !rec.wroteHeader {
				http.Error(rec, fmt.Sprint(p), http.StatusInternalServerError)
			}
		}
		s.logger.Info("request",
			zap.String("request", requestID),
			zap.String("method", r.Method),
			zap.String("resource", id),
			zap.String("range", r.Header.Get("Range")),
			zap.Int("status", rec.status),
			zap.Int64("bytes", rec.written),
			zap.Duration("duration", time.Since(started)))
	}()

	switch r.Method {
	case http.MethodOptions:
		h.Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Range")
		rec.WriteHeader(http.StatusNoContent)
	case http.MethodGet, http.MethodHead:
		s.serve(rec, r, id)
	default:
		h.Set("Allow", "GET, HEAD, OPTIONS")
		http.Error(rec, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Interceptor) serve(w *recorder, r *http.Request, id string) {
	cfg, err := s.registry.Get(id)
	if err != nil {
		http.Error(w, fmt.Sprintf("no decryption config for %q", id), http.StatusNotFound)
		return
	}

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" || r.Method == http.MethodHead {
		s.serveMetadata(w, cfg)
		return
	}

	start, end, hasEnd, err := ParseRange(rangeHeader)
	if err != nil {
		unsatisfiable(w, cfg, fmt.Sprintf("malformed range %q", rangeHeader))
		return
	}
	// Every range, open-ended or not, is served at most one chunk at a time.
	if limit := start + s.opts.ChunkSize - 1; !hasEnd || end > limit {
		end = limit
	}
	if end > cfg.TotalSize-1 {
		end = cfg.TotalSize - 1
	}
	if start >= cfg.TotalSize || end < start {
		unsatisfiable(w, cfg, fmt.Sprintf("range %q outside resource of %d bytes", rangeHeader, cfg.TotalSize))
		return
	}

	ctx := r.Context()
	ciphertext, err := s.fetcher.Fetch(ctx, cfg.OriginURL, start, end)
	if err != nil {
		s.fail(ctx, w, id, err)
		return
	}
	if len(ciphertext) == 0 {
		unsatisfiable(w, cfg, "origin returned no data for the range")
		return
	}

	plaintext, err := s.decrypter.Decrypt(ctx, cfg.Key, cfg.IV, start, ciphertext)
	if err != nil {
		s.fail(ctx, w, id, err)
		return
	}

	actualEnd := start + int64(len(plaintext)) - 1
	h := w.Header()
	h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, actualEnd, cfg.TotalSize))
	h.Set("Content-Length", strconv.Itoa(len(plaintext)))
	h.Set("Content-Type", cfg.MimeType)
	h.Set("Accept-Ranges", "bytes")
	w.WriteHeader(http.StatusPartialContent)
	if _, err := w.Write(plaintext); err != nil {
		s.logger.Debug("client went away during write", zap.String("resource", id), zap.Error(err))
	}
}

// serveMetadata answers a request without a range with the resource's metadata only.
func (s *Interceptor) serveMetadata(w *recorder, cfg registry.Config) {
	h := w.Header()
	h.Set("Content-Length", strconv.FormatInt(cfg.TotalSize, 10))
	h.Set("Content-Type", cfg.MimeType)
	h.Set("Accept-Ranges", "bytes")
	w.WriteHeader(http.StatusOK)
}

func unsatisfiable(w *recorder, cfg registry.Config, msg string) {
	w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", cfg.TotalSize))
	http.Error(w, msg, http.StatusRequestedRangeNotSatisfiable)
}

// fail turns a fetch or decrypt error into a response. Nothing is written
// once the client has gone.
func (s *Interceptor) fail(ctx context.Context, w *recorder, id string, err error) {
	if ctx.Err() != nil {
		s.logger.Debug("request abandoned", zap.String("resource", id), zap.Error(err))
		return
	}

	var statusErr *origin.StatusError
	if errors.As(err, &statusErr) {
		s.logger.Warn("origin failure", zap.String("resource", id), zap.Int("status", statusErr.Status))
		http.Error(w, err.Error(), statusErr.Status)
		return
	}

	s.logger.Error("request failed", zap.String("resource", id), zap.Error(err))
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

type recorder struct {
	http.ResponseWriter
	status      int
	written     int64
	wroteHeader bool
}

func (r *recorder) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.status = status
	r.wroteHeader = true
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(p []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	n, err := r.ResponseWriter.Write(p)
	r.written += int64(n)
	return n, err
}
