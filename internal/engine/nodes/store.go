package nodes

import "context"

// Node is a single entry in the data layer. Fields holds the sourced
// content; ID is the store's internal identifier.
type Node struct {
	ID     string                 `json:"id"`
	Type   string                 `json:"type"`
	Fields map[string]interface{} `json:"fields"`
}

// Store is the read side of the node store. GetByField only consults a
// registered index; a nil result with no error means "no index match" and
// callers may fall back to scanning AllByType.
type Store interface {
	Get(ctx context.Context, id string) (*Node, error)
	GetByField(ctx context.Context, nodeType, field string, value interface{}) (*Node, error)
	AllByType(ctx context.Context, nodeType string) ([]*Node, error)
	HasIndex(nodeType, field string) bool
}

// Actions is the mutation side of the node store.
type Actions interface {
	CreateNode(ctx context.Context, node *Node) error
	// UpdateNode merges fields into the existing node.
	UpdateNode(ctx context.Context, id string, fields map[string]interface{}) error
	// DeleteNode reports whether the node was actually removed.
	DeleteNode(ctx context.Context, id string) (bool, error)
}
