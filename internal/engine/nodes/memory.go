package nodes

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory implementation of Store and Actions.
// Field indexes are opt-in via RegisterIndex and match on the exact stored
// value; type-mismatched lookups (a string against a numeric field) miss the
// index and are left to the caller's scan fallback.
type MemoryStore struct {
	mu      sync.RWMutex
	nodes   map[string]*Node
	byType  map[string]map[string]*Node
	indexes map[string]map[string]map[string]string // type -> field -> value key -> node id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes:   make(map[string]*Node),
		byType:  make(map[string]map[string]*Node),
		indexes: make(map[string]map[string]map[string]string),
	}
}

// RegisterIndex enables GetByField lookups for nodeType/field. Existing
// nodes of that type are indexed immediately.
func (s *MemoryStore) RegisterIndex(nodeType, field string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexes[nodeType] == nil {
		s.indexes[nodeType] = make(map[string]map[string]string)
	}
	if s.indexes[nodeType][field] != nil {
		return
	}

	idx := make(map[string]string)
	for id, node := range s.byType[nodeType] {
		if v, ok := node.Fields[field]; ok {
			idx[indexKey(v)] = id
		}
	}
	s.indexes[nodeType][field] = idx
}

func (s *MemoryStore) HasIndex(nodeType, field string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexes[nodeType][field] != nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodes[id], nil
}

func (s *MemoryStore) GetByField(ctx context.Context, nodeType, field string, value interface{}) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexes[nodeType][field]
	if idx == nil {
		return nil, nil
	}
	id, ok := idx[indexKey(value)]
	if !ok {
		return nil, nil
	}
	return s.nodes[id], nil
}

func (s *MemoryStore) AllByType(ctx context.Context, nodeType string) ([]*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Node, 0, len(s.byType[nodeType]))
	for _, node := range s.byType[nodeType] {
		result = append(result, node)
	}
	return result, nil
}

func (s *MemoryStore) CreateNode(ctx context.Context, node *Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.nodes[node.ID]; exists {
		return fmt.Errorf("node %s already exists", node.ID)
	}
	if node.Fields == nil {
		node.Fields = make(map[string]interface{})
	}

	s.nodes[node.ID] = node
	if s.byType[node.Type] == nil {
		s.byType[node.Type] = make(map[string]*Node)
	}
	s.byType[node.Type][node.ID] = node
	s.reindex(node)

	return nil
}

func (s *MemoryStore) UpdateNode(ctx context.Context, id string, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, exists := s.nodes[id]
	if !exists {
		return fmt.Errorf("node %s not found", id)
	}

	s.unindex(node)
	for k, v := range fields {
		node.Fields[k] = v
	}
	s.reindex(node)

	return nil
}

func (s *MemoryStore) DeleteNode(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, exists := s.nodes[id]
	if !exists {
		return false, nil
	}

	s.unindex(node)
	delete(s.nodes, id)
	delete(s.byType[node.Type], id)

	return true, nil
}

// Size reports the total node count, for observability.
func (s *MemoryStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

func (s *MemoryStore) reindex(node *Node) {
	for field, idx := range s.indexes[node.Type] {
		if v, ok := node.Fields[field]; ok {
			idx[indexKey(v)] = node.ID
		}
	}
}

func (s *MemoryStore) unindex(node *Node) {
	for field, idx := range s.indexes[node.Type] {
		if v, ok := node.Fields[field]; ok {
			delete(idx, indexKey(v))
		}
	}
}

// indexKey includes the dynamic type so that the string "42" and the number
// 42 occupy distinct index slots.
func indexKey(v interface{}) string {
	return fmt.Sprintf("%T\x00%v", v, v)
}
