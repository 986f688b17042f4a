package translator

import (
	"context"
	"sync"
)

// Registry manages translation functions between API dialects.
type Registry struct {
	mu        sync.RWMutex
	requests  map[Format]map[Format]RequestTransform
	responses map[Format]map[Format]ResponseTransform
}

// NewRegistry constructs an empty translator registry.
func NewRegistry() *Registry {
	return &Registry{
		requests:  make(map[Format]map[Format]RequestTransform),
		responses: make(map[Format]map[Format]ResponseTransform),
	}
}

var defaultRegistry = NewRegistry()

// Default returns the default global registry.
func Default() *Registry { return defaultRegistry }

// Register stores request/response transforms between two dialects.
func (r *Registry) Register(from, to Format, cfg TranslatorConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.requests[from]; !ok {
		r.requests[from] = make(map[Format]RequestTransform)
	}
	if cfg.RequestTransform != nil {
		r.requests[from][to] = cfg.RequestTransform
	}

	if _, ok := r.responses[from]; !ok {
		r.responses[from] = make(map[Format]ResponseTransform)
	}
	if cfg.ResponseTransform != nil {
		r.responses[from][to] = cfg.ResponseTransform
	}
}

// TranslateRequest converts a request payload between dialects.
// Returns the original payload if no translator is registered.
func (r *Registry) TranslateRequest(from, to Format, model string, rawJSON []byte, stream bool) []byte {
	if from == to {
		return rawJSON
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if byTarget, ok := r.requests[from]; ok {
		if fn, exists := byTarget[to]; exists && fn != nil {
			return fn(model, rawJSON, stream)
		}
	}
	return rawJSON
}

// TranslateResponse converts a non-streaming response between dialects.
func (r *Registry) TranslateResponse(ctx context.Context, from, to Format, model string, responseBody []byte) ([]byte, error) {
	if from == to {
		return responseBody, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if byTarget, ok := r.responses[from]; ok {
		if fn, exists := byTarget[to]; exists && fn != nil {
			return fn(ctx, model, responseBody)
		}
	}
	return responseBody, nil
}

// Register is a convenience for registering with the default registry.
func Register(from, to Format, cfg TranslatorConfig) {
	defaultRegistry.Register(from, to, cfg)
}

// TranslateRequest uses the default registry.
func TranslateRequest(from, to Format, model string, rawJSON []byte, stream bool) []byte {
	return defaultRegistry.TranslateRequest(from, to, model, rawJSON, stream)
}

// TranslateResponse uses the default registry.
func TranslateResponse(ctx context.Context, from, to Format, model string, responseBody []byte) ([]byte, error) {
	return defaultRegistry.TranslateResponse(ctx, from, to, model, responseBody)
}
