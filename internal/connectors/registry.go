package connectors

import (
	"sort"
	"strings"

	"github.com/dharmasatrya/fareaggregator/internal/ratelimit"
)

// Factory builds a fresh connector for one search.
type Factory func() Connector

// Registry maps source names to connector factories.
type Registry struct {
	factories map[string]Factory
	limiter   *ratelimit.SourceLimiter
}

func NewRegistry(limiter *ratelimit.SourceLimiter) *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		limiter:   limiter,
	}
}

func (r *Registry) Register(source string, f Factory) {
	r.factories[strings.ToLower(source)] = f
}

// Build resolves requested sources in order. Unknown names are skipped and a
// source requested twice is built once.
func (r *Registry) Build(sources []string) []Connector {
	seen := make(map[string]bool, len(sources))
	out := make([]Connector, 0, len(sources))
	for _, s := range sources {
		name := strings.ToLower(strings.TrimSpace(s))
		if seen[name] {
			continue
		}
		f, ok := r.factories[name]
		if !ok {
			continue
		}
		seen[name] = true
		out = append(out, RateLimited(f(), r.limiter))
	}
	return out
}

// Available lists registered sources alphabetically.
func (r *Registry) Available() []string {
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
