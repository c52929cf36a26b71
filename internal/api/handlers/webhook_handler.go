package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"udl/internal/engine/nodes"
	"udl/internal/engine/webhooks"
)

// WebhookPathPrefix is the fixed URL prefix for inbound webhooks:
// POST /_webhooks/<plugin>/<path...>
const WebhookPathPrefix = "/_webhooks/"

const defaultMaxBodyBytes = 1 << 20 // 1 MiB

// WebhookHandler is the HTTP entry point of the webhook pipeline. It
// validates the request, verifies the signature, parses the body, enqueues
// the webhook for batch delivery and dispatches the registered handler.
type WebhookHandler struct {
	registry *webhooks.Registry
	queue    *webhooks.Queue
	store    nodes.Store
	actions  nodes.Actions
	maxBody  int64
}

func NewWebhookHandler(registry *webhooks.Registry, queue *webhooks.Queue, store nodes.Store, actions nodes.Actions, maxBody int64) *WebhookHandler {
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	return &WebhookHandler{
		registry: registry,
		queue:    queue,
		store:    store,
		actions:  actions,
		maxBody:  maxBody,
	}
}

func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, obj{"error": "Method not allowed"})
		return
	}

	plugin, path, ok := parseWebhookPath(r.URL.Path)
	if !ok {
		writeJSON(w, http.StatusNotFound, obj{"error": "Invalid webhook URL format"})
		return
	}

	log.Info().Msgf("Webhook received: %s/%s", plugin, path)

	// MaxBytesReader aborts the connection the moment the cap is exceeded,
	// so an oversized body is never drained.
	rawBody, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, obj{"error": "Payload too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, obj{"error": "Failed to read request body"})
		return
	}

	reg, ok := h.registry.Lookup(plugin, path)
	if !ok {
		writeJSON(w, http.StatusNotFound, obj{"error": "Webhook handler not found"})
		return
	}

	if reg.VerifySignature != nil {
		valid, err := reg.VerifySignature(rawBody, r.Header)
		if err != nil {
			log.Warn().Str("plugin", plugin).Err(err).Msg("webhook signature verification errored")
			writeJSON(w, http.StatusUnauthorized, obj{"error": "Signature verification failed"})
			return
		}
		if !valid {
			writeJSON(w, http.StatusUnauthorized, obj{"error": "Invalid signature"})
			return
		}
	}

	var body interface{}
	if isJSONContentType(r.Header.Get("Content-Type")) {
		if err := json.Unmarshal(rawBody, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, obj{"error": "Invalid JSON body"})
			return
		}
	}

	if h.queue != nil {
		h.queue.Enqueue(webhooks.QueuedWebhook{
			PluginName: plugin,
			RawBody:    rawBody,
			Body:       body,
			Headers:    flattenHeaders(r.Header),
			Timestamp:  time.Now().UnixMilli(),
		})
	}

	hctx := &webhooks.Context{
		Store:   h.store,
		Actions: h.actions,
		RawBody: rawBody,
		Body:    body,
	}

	rec := &responseRecorder{ResponseWriter: w}
	defer func() {
		if rv := recover(); rv != nil {
			log.Error().Interface("panic", rv).Msgf("webhook handler panicked: %s/%s", plugin, path)
			if !rec.wroteHeader {
				writeJSON(rec, http.StatusInternalServerError, obj{"error": "Internal server error"})
			}
		}
	}()

	if err := reg.Handler(rec, r, hctx); err != nil {
		if rec.wroteHeader {
			// The handler already committed a response; nothing sane to
			// overwrite it with.
			log.Error().Err(err).Msgf("webhook handler error after response sent: %s/%s", plugin, path)
			return
		}
		log.Error().Err(err).Msgf("webhook handler error: %s/%s", plugin, path)
		writeJSON(rec, http.StatusInternalServerError, obj{"error": "Internal server error"})
	}
}

// responseRecorder tracks whether the wrapped writer has committed headers.
type responseRecorder struct {
	http.ResponseWriter
	wroteHeader bool
}

func (r *responseRecorder) WriteHeader(code int) {
	r.wroteHeader = true
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

func parseWebhookPath(urlPath string) (plugin, path string, ok bool) {
	if !strings.HasPrefix(urlPath, WebhookPathPrefix) {
		return "", "", false
	}
	rest := strings.Trim(strings.TrimPrefix(urlPath, WebhookPathPrefix), "/")
	plugin, path, found := strings.Cut(rest, "/")
	if !found || plugin == "" || path == "" {
		return "", "", false
	}
	return plugin, path, true
}

func isJSONContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}

type obj map[string]interface{}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
