package webhooks

import (
	"net/http"

	"udl/internal/engine/nodes"
)

// HandlerFunc processes a verified inbound webhook. The handler owns the
// response; an error returned before headers are written becomes a 500,
// afterwards it is logged and swallowed.
type HandlerFunc func(w http.ResponseWriter, r *http.Request, hctx *Context) error

// VerifyFunc validates the authenticity of a raw webhook body. A false
// result means the signature did not match; an error means verification
// itself failed. The two are reported differently to the caller.
type VerifyFunc func(rawBody []byte, headers http.Header) (bool, error)

// Context carries the per-request collaborators into a handler. It is
// constructed for each request and not retained.
type Context struct {
	Store   nodes.Store
	Actions nodes.Actions
	RawBody []byte
	Body    interface{} // parsed JSON, nil for non-JSON content types
}

// QueuedWebhook is an inbound webhook buffered for batch delivery.
// Immutable once enqueued.
type QueuedWebhook struct {
	PluginName string            `json:"pluginName"`
	RawBody    []byte            `json:"-"`
	Body       interface{}       `json:"body,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Timestamp  int64             `json:"timestamp"` // epoch milliseconds
}

// Batch is the snapshot flushed from the queue after a quiet period.
// StartedAt is the timestamp of the first webhook in the batch, CompletedAt
// the flush time.
type Batch struct {
	Webhooks    []QueuedWebhook `json:"webhooks"`
	StartedAt   int64           `json:"startedAt"`
	CompletedAt int64           `json:"completedAt"`
}
