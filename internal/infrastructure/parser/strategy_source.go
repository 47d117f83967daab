package parser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"WolverineBrief/internal/config"
	"WolverineBrief/internal/domain"
	"WolverineBrief/internal/ports"
	"WolverineBrief/internal/scanner"
)

// StrategySource implements SourceFetcher via registered scanner strategies.
type StrategySource struct {
	registry *scanner.Registry
	location *time.Location
	logger   *slog.Logger
}

var _ ports.SourceFetcher = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry; loc applies to source dates without an offset.
func NewStrategySource(reg *scanner.Registry, loc *time.Location, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		location: loc,
		logger:   log,
	}
}

// NewDefaultRegistry registers every built-in scanner.
func NewDefaultRegistry(logger *slog.Logger) *scanner.Registry {
	reg := scanner.NewRegistry()
	reg.Register(NewArcGISScanner(nil, logger))
	reg.Register(NewCKANCSVScanner(nil, logger))
	reg.Register(NewFeedScanner(nil))
	reg.Register(NewHTMLScanner(nil))
	return reg
}

// Fetch resolves the source's scanner and returns its candidates.
func (s *StrategySource) Fetch(ctx context.Context, src config.SourceConfig, since time.Time) ([]domain.RawItem, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	strategy, err := s.registry.Resolve(src.Kind)
	if err != nil {
		return nil, err
	}

	category, ok := domain.ParseCategory(src.Category)
	if !ok {
		category = domain.CategoryOther
	}

	s.debug("scan source", "source", src.ID, "scanner", src.Kind, "since", since.Format(time.DateOnly))

	req := scanner.Request{
		SourceID: src.ID,
		URL:      src.URL,
		Category: category,
		Since:    since,
		Geo: scanner.GeoFilter{
			Field:    src.Geo.Field,
			Values:   src.Geo.Values,
			Prefix:   src.Geo.Prefix,
			Keywords: src.Geo.Keywords,
		},
		Options:  src.Options,
		Timeout:  src.Timeout,
		Location: s.location,
	}

	results, err := strategy.Scan(ctx, req)
	if err != nil {
		return nil, err
	}

	for i := range results {
		if results[i].SourceID == "" {
			results[i].SourceID = src.ID
		}
		if results[i].Category == "" {
			results[i].Category = category
		}
	}
	s.debug("source produced items", "source", src.ID, "count", len(results))
	return results, nil
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
