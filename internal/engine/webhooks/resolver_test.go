package webhooks

import (
	"context"
	"testing"

	"udl/internal/engine/nodes"
)

func TestResolver_DirectMode(t *testing.T) {
	store := nodes.NewMemoryStore()
	ctx := context.Background()
	store.CreateNode(ctx, &nodes.Node{ID: "n1", Type: "Product"})

	resolver := NewResolver(store, "")

	node, err := resolver.Resolve(ctx, "Product", "n1")
	if err != nil || node == nil || node.ID != "n1" {
		t.Errorf("Expected n1, got %v, %v", node, err)
	}

	node, err = resolver.Resolve(ctx, "Product", "missing")
	if err != nil || node != nil {
		t.Errorf("Expected nil,nil, got %v, %v", node, err)
	}

	if got := resolver.InternalID("cms", "Product", "n1"); got != "n1" {
		t.Errorf("Direct mode must pass the id through, got %s", got)
	}
}

func TestResolver_IndexedLookup(t *testing.T) {
	store := nodes.NewMemoryStore()
	ctx := context.Background()
	store.RegisterIndex("Product", "sku")
	store.CreateNode(ctx, &nodes.Node{ID: "n1", Type: "Product", Fields: map[string]interface{}{"sku": "A-1"}})

	resolver := NewResolver(store, "sku")

	node, err := resolver.Resolve(ctx, "Product", "A-1")
	if err != nil || node == nil || node.ID != "n1" {
		t.Errorf("Expected indexed hit on n1, got %v, %v", node, err)
	}
}

func TestResolver_ScanFallbackNumericEquivalence(t *testing.T) {
	store := nodes.NewMemoryStore()
	ctx := context.Background()
	store.RegisterIndex("Product", "externalId")
	// Stored as a JSON number; the webhook supplies "42" as a string, which
	// misses the exact-value index and must be caught by the scan fallback.
	store.CreateNode(ctx, &nodes.Node{ID: "n1", Type: "Product", Fields: map[string]interface{}{"externalId": float64(42)}})

	resolver := NewResolver(store, "externalId")

	node, err := resolver.Resolve(ctx, "Product", "42")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if node == nil || node.ID != "n1" {
		t.Fatalf("Expected scan fallback to find n1, got %v", node)
	}

	node, err = resolver.Resolve(ctx, "Product", "43")
	if err != nil || node != nil {
		t.Errorf("Expected no match for 43, got %v, %v", node, err)
	}
}

func TestResolver_InternalIDDeterministic(t *testing.T) {
	store := nodes.NewMemoryStore()
	resolver := NewResolver(store, "externalId")

	a := resolver.InternalID("cms", "Product", "42")
	b := resolver.InternalID("cms", "Product", "42")
	if a != b {
		t.Errorf("Expected deterministic internal id, got %s and %s", a, b)
	}
	if a == resolver.InternalID("cms", "Product", "43") {
		t.Error("Different external ids must map to different internal ids")
	}
	if a == resolver.InternalID("other", "Product", "42") {
		t.Error("Different plugins must map to different internal ids")
	}
}

func TestLooseEquals(t *testing.T) {
	cases := []struct {
		name  string
		value interface{}
		id    string
		want  bool
	}{
		{"string match", "abc", "abc", true},
		{"string mismatch", "abc", "abd", false},
		{"float vs numeric string", float64(42), "42", true},
		{"float vs decimal string", float64(42.5), "42.5", true},
		{"int vs numeric string", 42, "42", true},
		{"int64 vs numeric string", int64(42), "42", true},
		{"float vs non-numeric string", float64(42), "abc", false},
		{"nil field", nil, "42", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := looseEquals(tc.value, tc.id); got != tc.want {
				t.Errorf("looseEquals(%v, %q) = %v, want %v", tc.value, tc.id, got, tc.want)
			}
		})
	}
}
