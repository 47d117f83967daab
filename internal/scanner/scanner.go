package scanner

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"WolverineBrief/internal/domain"
)

// GeoFilter narrows a request to the neighbourhood of interest.
type GeoFilter struct {
	Field    string
	Values   []string
	Prefix   string
	Keywords []string
}

// Request carries all parameters required to scan one source.
type Request struct {
	SourceID string
	URL      string
	Category domain.Category
	Since    time.Time
	Geo      GeoFilter
	Options  map[string]string
	Timeout  time.Duration
	Location *time.Location
}

// Option returns an option value or fallback when absent.
func (r Request) Option(key, fallback string) string {
	if v, ok := r.Options[key]; ok && v != "" {
		return v
	}
	return fallback
}

// Zone returns the location used for timestamps without an offset.
func (r Request) Zone() *time.Location {
	if r.Location != nil {
		return r.Location
	}
	return time.UTC
}

// Scanner captures a single source format (ArcGIS, CKAN CSV, feed, HTML).
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) ([]domain.RawItem, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %q is not registered (known: %s)", name, strings.Join(r.Names(), ", "))
}

// Names lists registered scanners in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.scanners))
	for name := range r.scanners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
