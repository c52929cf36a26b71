package webhooks

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/google/uuid"
	"udl/internal/engine/nodes"
)

// Resolver maps externally supplied node identifiers to store nodes. With no
// idField the identifier is the store's internal id. With an idField it
// tries an indexed field lookup first and falls back to a linear scan with
// loose string/number equivalence when the index reports no match. The scan
// is O(n) per lookup and intentionally only taken on an index miss.
type Resolver struct {
	store   nodes.Store
	idField string
}

func NewResolver(store nodes.Store, idField string) *Resolver {
	return &Resolver{store: store, idField: idField}
}

// Resolve returns the node matching nodeID, or nil when nothing matches.
func (r *Resolver) Resolve(ctx context.Context, nodeType, nodeID string) (*nodes.Node, error) {
	if r.idField == "" {
		return r.store.Get(ctx, nodeID)
	}

	node, err := r.store.GetByField(ctx, nodeType, r.idField, nodeID)
	if err != nil {
		return nil, err
	}
	if node != nil {
		return node, nil
	}

	all, err := r.store.AllByType(ctx, nodeType)
	if err != nil {
		return nil, err
	}
	for _, n := range all {
		if looseEquals(n.Fields[r.idField], nodeID) {
			return n, nil
		}
	}
	return nil, nil
}

// InternalID derives the internal id for a new node. Direct mode uses the
// external id as-is; idField mode generates a deterministic UUID so that the
// same plugin/type/id triple always maps to the same node.
func (r *Resolver) InternalID(pluginName, nodeType, nodeID string) string {
	if r.idField == "" {
		return nodeID
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(pluginName+":"+nodeType+":"+nodeID)).String()
}

// looseEquals compares a stored field value against a webhook-supplied
// string id. A JSON-encoded numeric id must match a numerically stored
// field, so "42" equals 42.
func looseEquals(value interface{}, id string) bool {
	switch v := value.(type) {
	case string:
		return v == id
	case float64:
		f, err := strconv.ParseFloat(id, 64)
		return err == nil && f == v
	case int:
		n, err := strconv.ParseInt(id, 10, 64)
		return err == nil && n == int64(v)
	case int64:
		n, err := strconv.ParseInt(id, 10, 64)
		return err == nil && n == v
	case json.Number:
		return v.String() == id
	default:
		return false
	}
}
