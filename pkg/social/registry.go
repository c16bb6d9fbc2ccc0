package social

import (
	"sort"
	"strings"
	"sync"
)

// DefaultNetworks are the platforms every registry starts with.
var DefaultNetworks = []string{
	"twitter",
	"linkedin",
	"github",
	"facebook",
	"instagram",
	"youtube",
	"skype",
	"telegram",
	"discord",
	"medium",
	"behance",
	"dribbble",
	"stackoverflow",
	"twitch",
	"tiktok",
	"mastodon",
	"threads",
	"whatsapp",
	"signal",
}

// Registry is the set of known social platforms. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	names map[string]struct{}
	order []string
}

func NewRegistry(extra ...string) *Registry {
	r := &Registry{names: make(map[string]struct{}, len(DefaultNetworks)+len(extra))}
	for _, name := range DefaultNetworks {
		r.Add(name)
	}
	for _, name := range extra {
		r.Add(name)
	}
	return r
}

// Normalize lower-cases and trims a platform name.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Add registers a platform and reports whether it was new.
func (r *Registry) Add(name string) bool {
	name = Normalize(name)
	if name == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.names[name]; ok {
		return false
	}
	r.names[name] = struct{}{}
	r.order = append(r.order, name)
	return true
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.names[Normalize(name)]
	return ok
}

// List returns defaults first, then additions in insertion order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Sorted returns the platforms alphabetically.
func (r *Registry) Sorted() []string {
	out := r.List()
	sort.Strings(out)
	return out
}
