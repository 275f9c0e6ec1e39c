// Package server exposes a kvstore.Store over HTTP.
//
// Routes:
//
//	GET    /v1/buckets                      list buckets
//	DELETE /v1/buckets/{bucket}             drop a bucket
//	GET    /v1/buckets/{bucket}/keys        prefix scan (?prefix=&limit=)
//	GET    /v1/buckets/{bucket}/keys/{key}  read one key
//	PUT    /v1/buckets/{bucket}/keys/{key}  create or replace
//	POST   /v1/buckets/{bucket}/keys/{key}  create only
//	DELETE /v1/buckets/{bucket}/keys/{key}  remove
//	POST   /v1/snapshot                     save to disk
//	POST   /v1/hibernate, /v1/boot          compact or restore the arenas
//	GET    /healthz, /readyz, /metrics
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/rbmap/internal/kvstore"
	"github.com/Sumatoshi-tech/rbmap/pkg/observability"
	"github.com/Sumatoshi-tech/rbmap/pkg/rbtree"
	"github.com/Sumatoshi-tech/rbmap/pkg/units"
)

const defaultMaxBody = units.MiB

// Options configures the HTTP handler.
type Options struct {
	Tracer trace.Tracer
	RED    *observability.REDMetrics
	Logger *slog.Logger
	// Metrics serves /metrics when non-nil.
	Metrics http.Handler
	// MaxBody caps PUT and POST bodies. Zero means 1 MiB.
	MaxBody int64
}

// Server routes HTTP requests to a store.
type Server struct {
	store  *kvstore.Store
	opts   Options
	logger *slog.Logger
}

// New creates a server for store.
func New(store *kvstore.Store, opts Options) *Server {
	if opts.MaxBody <= 0 {
		opts.MaxBody = defaultMaxBody
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{store: store, opts: opts, logger: logger}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.route(mux, "GET /v1/buckets", s.listBuckets)
	s.route(mux, "DELETE /v1/buckets/{bucket}", s.dropBucket)
	s.route(mux, "GET /v1/buckets/{bucket}/keys", s.rangeKeys)
	s.route(mux, "GET /v1/buckets/{bucket}/keys/{key}", s.getKey)
	s.route(mux, "PUT /v1/buckets/{bucket}/keys/{key}", s.putKey)
	s.route(mux, "POST /v1/buckets/{bucket}/keys/{key}", s.insertKey)
	s.route(mux, "DELETE /v1/buckets/{bucket}/keys/{key}", s.deleteKey)
	s.route(mux, "POST /v1/snapshot", s.saveSnapshot)
	s.route(mux, "POST /v1/hibernate", s.hibernate)
	s.route(mux, "POST /v1/boot", s.boot)

	mux.Handle("GET /healthz", observability.HealthHandler())
	mux.Handle("GET /readyz", observability.ReadyHandler(s.store.Ready))

	if s.opts.Metrics != nil {
		mux.Handle("GET /metrics", s.opts.Metrics)
	}

	return mux
}

func (s *Server) route(mux *http.ServeMux, pattern string, handler http.HandlerFunc) {
	if s.opts.Tracer == nil {
		mux.Handle(pattern, handler)

		return
	}

	mux.Handle(pattern, observability.HTTPMiddleware(s.opts.Tracer, s.opts.RED, pattern, handler))
}

type valueBody struct {
	Bucket  string `json:"bucket"`
	Key     string `json:"key"`
	Value   string `json:"value"`
	Created bool   `json:"created,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) listBuckets(rw http.ResponseWriter, _ *http.Request) {
	infos, err := s.store.Buckets()
	if err != nil {
		s.writeError(rw, err)

		return
	}

	if infos == nil {
		infos = []kvstore.BucketInfo{}
	}

	writeJSON(rw, http.StatusOK, infos)
}

func (s *Server) dropBucket(rw http.ResponseWriter, req *http.Request) {
	err := s.store.DropBucket(req.Context(), req.PathValue("bucket"))
	if err != nil {
		s.writeError(rw, err)

		return
	}

	rw.WriteHeader(http.StatusNoContent)
}

func (s *Server) rangeKeys(rw http.ResponseWriter, req *http.Request) {
	limit := 0

	if raw := req.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSON(rw, http.StatusBadRequest, errorBody{Error: "limit must be a non-negative integer"})

			return
		}

		limit = parsed
	}

	entries, err := s.store.Range(req.Context(), req.PathValue("bucket"), req.URL.Query().Get("prefix"), limit)
	if err != nil {
		s.writeError(rw, err)

		return
	}

	if entries == nil {
		entries = []rbtree.Entry[string, string]{}
	}

	writeJSON(rw, http.StatusOK, entries)
}

func (s *Server) getKey(rw http.ResponseWriter, req *http.Request) {
	bucket, key := req.PathValue("bucket"), req.PathValue("key")

	value, found, err := s.store.Get(req.Context(), bucket, key)
	if err != nil {
		s.writeError(rw, err)

		return
	}

	if !found {
		s.writeError(rw, &rbtree.KeyError{Key: key, Err: rbtree.ErrKeyNotFound})

		return
	}

	writeJSON(rw, http.StatusOK, valueBody{Bucket: bucket, Key: key, Value: value})
}

func (s *Server) putKey(rw http.ResponseWriter, req *http.Request) {
	bucket, key := req.PathValue("bucket"), req.PathValue("key")

	value, ok := s.readValue(rw, req)
	if !ok {
		return
	}

	created, err := s.store.Put(req.Context(), bucket, key, value)
	if err != nil {
		s.writeError(rw, err)

		return
	}

	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}

	writeJSON(rw, code, valueBody{Bucket: bucket, Key: key, Value: value, Created: created})
}

func (s *Server) insertKey(rw http.ResponseWriter, req *http.Request) {
	bucket, key := req.PathValue("bucket"), req.PathValue("key")

	value, ok := s.readValue(rw, req)
	if !ok {
		return
	}

	err := s.store.Insert(req.Context(), bucket, key, value)
	if err != nil {
		s.writeError(rw, err)

		return
	}

	writeJSON(rw, http.StatusCreated, valueBody{Bucket: bucket, Key: key, Value: value, Created: true})
}

func (s *Server) deleteKey(rw http.ResponseWriter, req *http.Request) {
	err := s.store.Delete(req.Context(), req.PathValue("bucket"), req.PathValue("key"))
	if err != nil {
		s.writeError(rw, err)

		return
	}

	rw.WriteHeader(http.StatusNoContent)
}

func (s *Server) saveSnapshot(rw http.ResponseWriter, req *http.Request) {
	err := s.store.Save(req.Context())
	if err != nil {
		s.writeError(rw, err)

		return
	}

	writeJSON(rw, http.StatusOK, map[string]string{"path": s.store.SnapshotPath()})
}

func (s *Server) hibernate(rw http.ResponseWriter, req *http.Request) {
	s.store.Hibernate(req.Context())
	rw.WriteHeader(http.StatusNoContent)
}

func (s *Server) boot(rw http.ResponseWriter, req *http.Request) {
	s.store.Boot(req.Context())
	rw.WriteHeader(http.StatusNoContent)
}

// readValue reads the raw request body as the value. It writes the error
// response itself and reports whether the caller may continue.
func (s *Server) readValue(rw http.ResponseWriter, req *http.Request) (string, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(rw, req.Body, s.opts.MaxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(rw, http.StatusRequestEntityTooLarge, errorBody{Error: err.Error()})

			return "", false
		}

		writeJSON(rw, http.StatusBadRequest, errorBody{Error: err.Error()})

		return "", false
	}

	return string(body), true
}

func (s *Server) writeError(rw http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}

	writeJSON(rw, code, errorBody{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, rbtree.ErrKeyNotFound), errors.Is(err, kvstore.ErrNoBucket):
		return http.StatusNotFound
	case errors.Is(err, rbtree.ErrDuplicateKey):
		return http.StatusConflict
	case errors.Is(err, rbtree.ErrTreeFull):
		return http.StatusInsufficientStorage
	case errors.Is(err, kvstore.ErrEmptyBucket):
		return http.StatusBadRequest
	case errors.Is(err, kvstore.ErrHibernated):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(rw http.ResponseWriter, code int, body any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)

	_ = json.NewEncoder(rw).Encode(body)
}
