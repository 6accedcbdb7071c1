package delivery

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dmitrijs2005/cardkeeper/internal/blobstore"
	"github.com/dmitrijs2005/cardkeeper/internal/logging"
)

const (
	cacheForever = blobstore.CacheControl
	retryAfter   = "5"
)

// Recorder counts deliveries; *metrics.Metrics implements it.
type Recorder interface {
	Delivered(mode string, code int)
}

type nopRecorder struct{}

func (nopRecorder) Delivered(string, int) {}

// Handler serves GET /file and GET /file/view.
type Handler struct {
	resolver *Resolver
	logger   logging.Logger
	recorder Recorder
}

func NewHandler(resolver *Resolver, logger logging.Logger, recorder Recorder) *Handler {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Handler{resolver: resolver, logger: logger, recorder: recorder}
}

// Register mounts both endpoints on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /file", h.ServeFile)
	mux.HandleFunc("GET /file/view", h.ServeView)
}

// ServeFile redirects to a signed URL when the backend supports it and
// streams the bytes otherwise.
func (h *Handler) ServeFile(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, false)
}

// ServeView always streams the bytes.
func (h *Handler) ServeView(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, true)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, stream bool) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	key := r.URL.Query().Get("key")
	if key == "" {
		h.notFound(w)
		return
	}

	var (
		d   *Descriptor
		err error
	)
	if stream {
		d, err = h.resolver.Stream(r.Context(), key)
	} else {
		d, err = h.resolver.Resolve(r.Context(), key)
	}
	if err != nil {
		h.fail(w, r, key, err)
		return
	}

	if d.Signed() {
		// The URL expires, so the redirect itself must not be cached.
		w.Header().Set("Cache-Control", "no-store")
		http.Redirect(w, r, d.URL, http.StatusFound)
		h.recorder.Delivered("redirect", http.StatusFound)
		return
	}

	hdr := w.Header()
	hdr.Set("Content-Type", d.ContentType)
	hdr.Set("Content-Length", strconv.Itoa(len(d.Data)))
	hdr.Set("Cache-Control", cacheForever)
	hdr.Set("X-Content-Type-Options", "nosniff")
	if d.Disposition != "" {
		hdr.Set("Content-Disposition", d.Disposition)
	}
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(d.Data)
	}
	h.recorder.Delivered("stream", http.StatusOK)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, key string, err error) {
	switch {
	case blobstore.IsNotFound(err), errors.Is(err, blobstore.ErrInvalidKey):
		h.notFound(w)
	case blobstore.IsTransient(err):
		h.logger.Warn(r.Context(), "file delivery failed", "key", key, "err", err)
		w.Header().Set("Retry-After", retryAfter)
		writeStatus(w, http.StatusServiceUnavailable, "Storage temporarily unavailable")
		h.recorder.Delivered("error", http.StatusServiceUnavailable)
	default:
		h.logger.Error(r.Context(), "file delivery failed", "key", key, "err", err)
		writeStatus(w, http.StatusBadGateway, "Could not load file")
		h.recorder.Delivered("error", http.StatusBadGateway)
	}
}

func (h *Handler) notFound(w http.ResponseWriter) {
	writeStatus(w, http.StatusNotFound, "File not found")
	h.recorder.Delivered("not_found", http.StatusNotFound)
}

type statusBody struct {
	Message string `json:"message"`
	Status  bool   `json:"status"`
}

func writeStatus(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(statusBody{Message: msg, Status: false})
}

// FileURL builds the delivery link for key under base.
func FileURL(base, key string) string {
	return base + "/file?key=" + url.QueryEscape(key)
}
