package publisher

import (
	"fmt"

	"TrendPress/internal/domain"
	"TrendPress/internal/ports"
)

// Registry keeps a mapping from platforms to their publisher implementations.
type Registry struct {
	publishers map[domain.Platform]ports.Publisher
}

// NewRegistry builds a registry over the given publishers.
func NewRegistry(publishers ...ports.Publisher) *Registry {
	r := &Registry{publishers: map[domain.Platform]ports.Publisher{}}
	for _, p := range publishers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a publisher implementation.
func (r *Registry) Register(p ports.Publisher) {
	if r.publishers == nil {
		r.publishers = map[domain.Platform]ports.Publisher{}
	}
	r.publishers[p.Platform()] = p
}

// Resolve returns a publisher by platform or an error if it is absent.
func (r *Registry) Resolve(platform domain.Platform) (ports.Publisher, error) {
	if p, ok := r.publishers[platform]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("publisher %s is not registered", platform)
}

// Map exposes the registered publishers keyed by platform.
func (r *Registry) Map() map[domain.Platform]ports.Publisher {
	return r.publishers
}
