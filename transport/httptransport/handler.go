package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/alvintu/swift-ui-aws-amplify/cursor"
	"github.com/alvintu/swift-ui-aws-amplify/engine"
	"github.com/alvintu/swift-ui-aws-amplify/logging"
)

// RecordBackend is the server-side store the Handler exposes over HTTP.
type RecordBackend interface {
	// ApplyPush applies pushed changes, reporting per-record conflicts in
	// the result rather than as an error.
	ApplyPush(ctx context.Context, changes []engine.Change) (*engine.PushResult, error)

	// Query returns up to limit records after the given cursor. A nil
	// cursor queries from the beginning.
	Query(ctx context.Context, since cursor.Cursor, limit int) (*engine.Page, error)
}

// Handler serves the push/pull protocol for a RecordBackend.
type Handler struct {
	backend RecordBackend
	limits  Limits
	logger  *logging.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithHandlerLimits sets the request size and compression limits.
func WithHandlerLimits(l Limits) HandlerOption {
	return func(h *Handler) { h.limits = l }
}

// WithHandlerLogger sets the handler's logger.
func WithHandlerLogger(l *logging.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHandler creates an http.Handler serving POST /push and POST /pull.
func NewHandler(backend RecordBackend, opts ...HandlerOption) *Handler {
	h := &Handler{
		backend: backend,
		limits:  DefaultLimits(),
		logger:  logging.Default().WithComponent(logging.Component("transport/http")),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasSuffix(r.URL.Path, "/push"):
		h.handlePush(w, r)
	case strings.HasSuffix(r.URL.Path, "/pull"):
		h.handlePull(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handlePush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req pushRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}

	changes := make([]engine.Change, len(req.Changes))
	for i, wc := range req.Changes {
		changes[i] = fromWireChange(wc)
	}

	result, err := h.backend.ApplyPush(r.Context(), changes)
	if err != nil {
		h.logger.LogError(r.Context(), err, "push failed")
		respondWithError(w, http.StatusInternalServerError, "push failed")
		return
	}

	resp := pushResponse{Accepted: result.Accepted}
	if resp.Accepted == nil {
		resp.Accepted = []string{}
	}
	for _, rc := range result.Conflicts {
		resp.Conflicts = append(resp.Conflicts, toWireConflict(rc))
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePull(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req pullRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}

	var since cursor.Cursor
	if req.Since != nil {
		var err error
		since, err = cursor.UnmarshalWire(req.Since)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid cursor")
			return
		}
	}

	page, err := h.backend.Query(r.Context(), since, req.Limit)
	if err != nil {
		h.logger.LogError(r.Context(), err, "pull failed")
		respondWithError(w, http.StatusInternalServerError, "pull failed")
		return
	}

	resp := pullResponse{Records: []wireRecord{}, HasMore: page.HasMore}
	for _, rec := range page.Records {
		resp.Records = append(resp.Records, toWireRecord(rec))
	}
	if page.Next != nil {
		wc, err := cursor.MarshalWire(page.Next)
		if err != nil {
			h.logger.LogError(r.Context(), err, "encoding cursor failed")
			respondWithError(w, http.StatusInternalServerError, "pull failed")
			return
		}
		resp.Next = wc
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// decodeRequest reads a JSON request body under the configured limits.
// On failure it writes the error response and returns false.
func (h *Handler) decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		respondWithError(w, http.StatusUnsupportedMediaType, "unsupported media type")
		return false
	}

	reader, cleanup, err := newSafeRequestReader(w, r, h.limits)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return false
	}
	defer cleanup()

	if err := json.NewDecoder(reader).Decode(dst); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errDecompressedTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		respondWithError(w, status, "invalid request body")
		return false
	}
	return true
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
