package warehouse

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Factory opens a Writer for one platform.
type Factory func(ctx context.Context, cfg Config) (Writer, error)

// Registry manages platform writer factories
type Registry interface {
	// Register adds a new platform writer factory
	Register(platform string, factory Factory) error
	// Create opens a writer for the specified platform
	Create(ctx context.Context, platform string, cfg Config) (Writer, error)
	// ListPlatforms returns the registered platforms in name order
	ListPlatforms() []string
}

type registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() Registry {
	return &registry{
		factories: make(map[string]Factory),
	}
}

// DefaultRegistry knows every supported platform.
func DefaultRegistry() Registry {
	r := NewRegistry()
	for platform, factory := range map[string]Factory{
		"bigquery":   OpenBigQuery,
		"databricks": OpenDatabricks,
		"duckdb":     OpenDuckDB,
		"postgres":   OpenPostgres,
		"snowflake":  OpenSnowflake,
	} {
		_ = r.Register(platform, factory)
	}
	return r
}

func (r *registry) Register(platform string, factory Factory) error {
	if platform == "" {
		return fmt.Errorf("platform name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[platform]; exists {
		return fmt.Errorf("platform %q is already registered", platform)
	}

	r.factories[platform] = factory
	return nil
}

func (r *registry) Create(ctx context.Context, platform string, cfg Config) (Writer, error) {
	r.mu.RLock()
	factory, exists := r.factories[platform]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("warehouse platform %q is not registered", platform)
	}

	return factory(ctx, cfg)
}

func (r *registry) ListPlatforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	platforms := make([]string, 0, len(r.factories))
	for platform := range r.factories {
		platforms = append(platforms, platform)
	}
	sort.Strings(platforms)
	return platforms
}
