package webhooks

import "sync"

// Registration maps a plugin's webhook path to its handler. VerifySignature
// is optional; when nil the webhook is implicitly trusted.
type Registration struct {
	Path            string
	Handler         HandlerFunc
	VerifySignature VerifyFunc
}

// Registry holds one registration per plugin name for the process lifetime.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Registration
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Registration)}
}

// Register stores a registration for pluginName. Last write wins.
func (r *Registry) Register(pluginName string, reg Registration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[pluginName] = reg
}

// Lookup returns the registration only if both the plugin name and path
// match exactly.
func (r *Registry) Lookup(pluginName, path string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.entries[pluginName]
	if !ok || reg.Path != path {
		return Registration{}, false
	}
	return reg, true
}

// RegistrationInfo is the observability view of a registration.
type RegistrationInfo struct {
	PluginName string `json:"plugin_name"`
	Path       string `json:"path"`
	Verified   bool   `json:"verified"`
}

func (r *Registry) List() []RegistrationInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]RegistrationInfo, 0, len(r.entries))
	for name, reg := range r.entries {
		infos = append(infos, RegistrationInfo{
			PluginName: name,
			Path:       reg.Path,
			Verified:   reg.VerifySignature != nil,
		})
	}
	return infos
}
