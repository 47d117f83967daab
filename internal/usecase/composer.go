package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"WolverineBrief/internal/domain"
	"WolverineBrief/internal/ports"
)

// ComposerDeps wires the driven adapters of the compose stage.
type ComposerDeps struct {
	Repository  ports.ItemRepository
	Renderer    ports.Renderer
	Artifacts   ports.ArtifactStore
	Logger      *slog.Logger
	Title       string
	CouncilNote string
	Location    *time.Location
	Now         func() time.Time
}

// Composer groups a window's items and renders the digest.
type Composer struct {
	repository  ports.ItemRepository
	renderer    ports.Renderer
	artifacts   ports.ArtifactStore
	logger      *slog.Logger
	title       string
	councilNote string
	location    *time.Location
	now         func() time.Time
}

// NewComposer constructs the compose stage. Artifacts may be nil.
func NewComposer(deps ComposerDeps) *Composer {
	c := &Composer{
		repository:  deps.Repository,
		renderer:    deps.Renderer,
		artifacts:   deps.Artifacts,
		logger:      deps.Logger,
		title:       deps.Title,
		councilNote: deps.CouncilNote,
		location:    deps.Location,
		now:         deps.Now,
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.location == nil {
		c.location = time.UTC
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Compose renders the digest for window and saves the artifact.
func (c *Composer) Compose(ctx context.Context, window domain.DigestWindow) (domain.Digest, error) {
	if c.repository == nil || c.renderer == nil {
		return domain.Digest{}, fmt.Errorf("composer is not configured")
	}

	items, err := c.repository.QueryRange(ctx, window.Start, window.End)
	if err != nil {
		return domain.Digest{}, asStorageError("query range", err)
	}

	sections := GroupSections(window, items)
	text, err := c.renderer.Render(ports.RenderContext{
		Title:       c.title,
		Window:      window,
		Location:    c.location,
		CouncilNote: c.councilNote,
		Sections:    sections,
	})
	if err != nil {
		var re *domain.TemplateRenderError
		if !errors.As(err, &re) {
			err = &domain.TemplateRenderError{Template: "digest", Err: err}
		}
		return domain.Digest{}, err
	}

	digest := domain.Digest{
		Window:       window,
		Sections:     sections,
		RenderedText: text,
		GeneratedAt:  c.now(),
	}

	if c.artifacts != nil {
		if err := c.artifacts.Save(ctx, digest); err != nil {
			return domain.Digest{}, fmt.Errorf("save artifact: %w", err)
		}
	}

	c.logger.Info("digest composed",
		"window_start", window.Start.In(c.location).Format(time.DateOnly),
		"window_end", window.LastDay().In(c.location).Format(time.DateOnly),
		"items", digest.ItemCount(),
		"sections", len(sections))
	return digest, nil
}

// GroupSections keeps the items inside window and orders them by category
// priority, then newest first. Empty categories are omitted.
func GroupSections(window domain.DigestWindow, items []domain.RawItem) []domain.Section {
	byCategory := make(map[domain.Category][]domain.RawItem)
	for _, item := range items {
		if !window.Contains(item.OccurredAt) {
			continue
		}
		cat, ok := domain.ParseCategory(string(item.Category))
		if !ok {
			cat = domain.CategoryOther
		}
		byCategory[cat] = append(byCategory[cat], item)
	}

	var sections []domain.Section
	for _, cat := range domain.CategoryPriority {
		group := byCategory[cat]
		if len(group) == 0 {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool {
			a, b := group[i], group[j]
			if !a.OccurredAt.Equal(b.OccurredAt) {
				return a.OccurredAt.After(b.OccurredAt)
			}
			if a.SourceID != b.SourceID {
				return a.SourceID < b.SourceID
			}
			return a.ExternalID < b.ExternalID
		})
		sections = append(sections, domain.Section{Category: cat, Items: group})
	}
	return sections
}
