package source

import (
	"fmt"
	"strings"

	"github.com/yourusername/vidsplit-go/internal/domain"
)

// Resolver maps a URL to its source handler. Handlers are tried in order
// and the first match wins.
type Resolver struct {
	handlers []domain.SourceHandler
}

// NewResolver creates a resolver over an ordered set of handlers
func NewResolver(handlers ...domain.SourceHandler) *Resolver {
	hs := make([]domain.SourceHandler, len(handlers))
	copy(hs, handlers)
	return &Resolver{handlers: hs}
}

// DefaultHandlers returns the built-in handlers in resolution order
func DefaultHandlers(policy Policy) []domain.SourceHandler {
	return []domain.SourceHandler{
		NewYouTubeHandler(policy),
		NewInstagramHandler(),
	}
}

// Resolve returns the handler for url or domain.ErrUnsupportedSource
func (r *Resolver) Resolve(url string) (domain.SourceHandler, error) {
	url = strings.TrimSpace(url)
	for _, h := range r.handlers {
		if h.Matches(url) {
			return h, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedSource, url)
}

// Names returns the handler names in resolution order
func (r *Resolver) Names() []string {
	names := make([]string, len(r.handlers))
	for i, h := range r.handlers {
		names[i] = h.Name()
	}
	return names
}
