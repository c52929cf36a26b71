package webhooks

import (
	"net/http"
	"testing"
)

func noopHandler(w http.ResponseWriter, r *http.Request, hctx *Context) error {
	return nil
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	registry := NewRegistry()
	registry.Register("cms", Registration{Path: "sync", Handler: noopHandler})

	if _, ok := registry.Lookup("cms", "sync"); !ok {
		t.Error("Expected lookup to find cms/sync")
	}
	if _, ok := registry.Lookup("cms", "other"); ok {
		t.Error("Lookup matched wrong path")
	}
	if _, ok := registry.Lookup("other", "sync"); ok {
		t.Error("Lookup matched wrong plugin")
	}
}

func TestRegistry_LastWriteWins(t *testing.T) {
	registry := NewRegistry()
	registry.Register("cms", Registration{Path: "sync", Handler: noopHandler})
	registry.Register("cms", Registration{Path: "v2/sync", Handler: noopHandler})

	if _, ok := registry.Lookup("cms", "sync"); ok {
		t.Error("Old registration survived overwrite")
	}
	if _, ok := registry.Lookup("cms", "v2/sync"); !ok {
		t.Error("Expected new registration to be active")
	}
}

func TestRegistry_List(t *testing.T) {
	registry := NewRegistry()
	registry.Register("cms", Registration{
		Path:            "sync",
		Handler:         noopHandler,
		VerifySignature: HMACVerifier("secret", ""),
	})
	registry.Register("inventory", Registration{Path: "items", Handler: noopHandler})

	infos := registry.List()
	if len(infos) != 2 {
		t.Fatalf("Expected 2 registrations, got %d", len(infos))
	}
	for _, info := range infos {
		if info.PluginName == "cms" && !info.Verified {
			t.Error("Expected cms registration to report a verifier")
		}
		if info.PluginName == "inventory" && info.Verified {
			t.Error("Did not expect inventory registration to report a verifier")
		}
	}
}
