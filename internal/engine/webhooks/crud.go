package webhooks

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
	"udl/internal/engine/nodes"
)

// Operation is the closed set of mutations the default handler accepts.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpUpsert Operation = "upsert"
	OpDelete Operation = "delete"
)

func parseOperation(s string) (Operation, bool) {
	switch Operation(s) {
	case OpCreate, OpUpdate, OpUpsert, OpDelete:
		return Operation(s), true
	default:
		return "", false
	}
}

type defaultHandlerOptions struct {
	idField string
}

type DefaultHandlerOption func(*defaultHandlerOptions)

// WithIDField resolves node identity through an indexed field instead of
// treating nodeId as the store's internal identifier.
func WithIDField(field string) DefaultHandlerOption {
	return func(o *defaultHandlerOptions) {
		o.idField = field
	}
}

// NewDefaultHandler returns a handler implementing the generic CRUD webhook
// protocol: a JSON body of {operation, nodeId, nodeType, data} applied to
// the node store.
func NewDefaultHandler(pluginName string, opts ...DefaultHandlerOption) HandlerFunc {
	var o defaultHandlerOptions
	for _, opt := range opts {
		opt(&o)
	}

	return func(w http.ResponseWriter, r *http.Request, hctx *Context) error {
		body, ok := hctx.Body.(map[string]interface{})
		if !ok {
			writeJSON(w, http.StatusBadRequest, obj{"error": "Request body must be a JSON object"})
			return nil
		}

		opStr, _ := body["operation"].(string)
		op, ok := parseOperation(opStr)
		if !ok {
			writeJSON(w, http.StatusBadRequest, obj{"error": "Invalid operation: " + opStr})
			return nil
		}

		nodeID, _ := body["nodeId"].(string)
		if nodeID == "" {
			writeJSON(w, http.StatusBadRequest, obj{"error": "Missing nodeId"})
			return nil
		}

		nodeType, _ := body["nodeType"].(string)
		if nodeType == "" {
			writeJSON(w, http.StatusBadRequest, obj{"error": "Missing nodeType"})
			return nil
		}

		var data map[string]interface{}
		if raw, present := body["data"]; present && raw != nil {
			data, ok = raw.(map[string]interface{})
			if !ok {
				writeJSON(w, http.StatusBadRequest, obj{"error": "Field data must be an object"})
				return nil
			}
		}
		if data == nil && (op == OpCreate || op == OpUpsert) {
			writeJSON(w, http.StatusBadRequest, obj{"error": "Missing data for " + opStr + " operation"})
			return nil
		}

		ctx := r.Context()
		resolver := NewResolver(hctx.Store, o.idField)

		node, err := resolver.Resolve(ctx, nodeType, nodeID)
		if err != nil {
			return writeActionError(w, err)
		}

		switch op {
		case OpCreate:
			if node != nil {
				writeJSON(w, http.StatusConflict, obj{"error": "Node already exists", "nodeId": nodeID})
				return nil
			}
			internalID := resolver.InternalID(pluginName, nodeType, nodeID)
			if err := hctx.Actions.CreateNode(ctx, newNode(internalID, nodeType, nodeID, o.idField, data)); err != nil {
				return writeActionError(w, err)
			}
			writeJSON(w, http.StatusCreated, obj{"created": true, "nodeId": nodeID, "internalId": internalID})

		case OpUpdate:
			if node == nil {
				writeJSON(w, http.StatusNotFound, obj{"error": "Node not found", "nodeId": nodeID})
				return nil
			}
			if data != nil {
				if err := hctx.Actions.UpdateNode(ctx, node.ID, data); err != nil {
					return writeActionError(w, err)
				}
			}
			writeJSON(w, http.StatusOK, obj{"updated": true, "nodeId": nodeID, "internalId": node.ID})

		case OpUpsert:
			if node != nil {
				if err := hctx.Actions.UpdateNode(ctx, node.ID, data); err != nil {
					return writeActionError(w, err)
				}
				writeJSON(w, http.StatusOK, obj{"upserted": true, "nodeId": nodeID, "internalId": node.ID, "wasUpdate": true})
				return nil
			}
			internalID := resolver.InternalID(pluginName, nodeType, nodeID)
			if err := hctx.Actions.CreateNode(ctx, newNode(internalID, nodeType, nodeID, o.idField, data)); err != nil {
				return writeActionError(w, err)
			}
			writeJSON(w, http.StatusOK, obj{"upserted": true, "nodeId": nodeID, "internalId": internalID, "wasUpdate": false})

		case OpDelete:
			if node == nil {
				writeJSON(w, http.StatusNotFound, obj{"error": "Node not found", "nodeId": nodeID})
				return nil
			}
			deleted, err := hctx.Actions.DeleteNode(ctx, node.ID)
			if err != nil {
				return writeActionError(w, err)
			}
			if !deleted {
				// The node resolved a moment ago; a refused delete is
				// unexpected and not retryable.
				writeJSON(w, http.StatusInternalServerError, obj{"error": "Delete failed", "nodeId": nodeID, "internalId": node.ID})
				return nil
			}
			writeJSON(w, http.StatusOK, obj{"deleted": true, "nodeId": nodeID, "internalId": node.ID})
		}

		return nil
	}
}

// newNode builds the node for create paths. In idField mode the external id
// is stored under the id field when data does not already carry it, so later
// lookups can resolve it.
func newNode(internalID, nodeType, nodeID, idField string, data map[string]interface{}) *nodes.Node {
	fields := make(map[string]interface{}, len(data)+1)
	for k, v := range data {
		fields[k] = v
	}
	if idField != "" {
		if _, ok := fields[idField]; !ok {
			fields[idField] = nodeID
		}
	}
	return &nodes.Node{ID: internalID, Type: nodeType, Fields: fields}
}

type obj map[string]interface{}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeActionError(w http.ResponseWriter, err error) error {
	message := "Unknown error"
	if err != nil && err.Error() != "" {
		message = err.Error()
	}
	log.Error().Err(err).Msg("webhook store action failed")
	writeJSON(w, http.StatusInternalServerError, obj{"error": "Internal server error", "message": message})
	return nil
}
