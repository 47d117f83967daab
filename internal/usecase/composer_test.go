package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WolverineBrief/internal/domain"
	"WolverineBrief/internal/infrastructure/render"
)

var weekEnd = time.Date(2026, time.October, 12, 4, 0, 0, 0, time.UTC)

func seededRepo(t *testing.T, items ...domain.RawItem) *memoryRepo {
	t.Helper()
	repo := newMemoryRepo()
	for _, item := range items {
		_, err := repo.InsertIfAbsent(context.Background(), item)
		require.NoError(t, err)
	}
	return repo
}

func newTestComposer(t *testing.T, repo *memoryRepo, artifacts *memoryArtifacts) *Composer {
	t.Helper()
	md, err := render.NewMarkdown("")
	require.NoError(t, err)

	generated := weekEnd
	return NewComposer(ComposerDeps{
		Repository: repo,
		Renderer:   md,
		Artifacts:  artifacts,
		Title:      "Weston Wolverine Brief",
		Now: func() time.Time {
			generated = generated.Add(time.Minute)
			return generated
		},
	})
}

func TestComposeIsByteIdentical(t *testing.T) {
	t.Parallel()

	repo := seededRepo(t,
		crimeItem("A", weekEnd.Add(-time.Hour)),
		domain.RawItem{SourceID: "permits", ExternalID: "P1", Title: "New build at 1 Main St", Category: domain.CategoryDevelopment, OccurredAt: weekEnd.Add(-48 * time.Hour)},
	)
	composer := newTestComposer(t, repo, nil)
	window := domain.WeekEnding(weekEnd)

	first, err := composer.Compose(context.Background(), window)
	require.NoError(t, err)
	second, err := composer.Compose(context.Background(), window)
	require.NoError(t, err)

	assert.Equal(t, first.RenderedText, second.RenderedText)
	assert.False(t, first.GeneratedAt.Equal(second.GeneratedAt))
	assert.Equal(t, 2, first.ItemCount())
}

func TestComposeEmptyWindow(t *testing.T) {
	t.Parallel()

	artifacts := &memoryArtifacts{}
	composer := newTestComposer(t, seededRepo(t, crimeItem("old", weekEnd.Add(-30*24*time.Hour))), artifacts)

	digest, err := composer.Compose(context.Background(), domain.WeekEnding(weekEnd))
	require.NoError(t, err)
	assert.Contains(t, digest.RenderedText, "No notable items were found for this week.")
	assert.Empty(t, digest.Sections)
	require.Len(t, artifacts.saved, 1, "an empty digest is still written")
}

func TestComposeRenderFailure(t *testing.T) {
	t.Parallel()

	composer := NewComposer(ComposerDeps{
		Repository: newMemoryRepo(),
		Renderer:   stubRenderer{err: errors.New("boom")},
		Title:      "t",
	})
	_, err := composer.Compose(context.Background(), domain.WeekEnding(weekEnd))
	var renderErr *domain.TemplateRenderError
	require.True(t, errors.As(err, &renderErr))
}

func TestGroupSectionsOrdering(t *testing.T) {
	t.Parallel()

	window := domain.WeekEnding(weekEnd)
	civic := domain.RawItem{SourceID: "council", ExternalID: "C1", Title: "Council vote", Category: domain.CategoryCivic, OccurredAt: weekEnd.Add(-time.Hour)}
	older := crimeItem("A", weekEnd.Add(-72*time.Hour))
	newer := crimeItem("B", weekEnd.Add(-24*time.Hour))

	sections := GroupSections(window, []domain.RawItem{civic, older, newer})
	require.Len(t, sections, 2)
	assert.Equal(t, domain.CategoryCrime, sections[0].Category)
	assert.Equal(t, []string{"B", "A"}, []string{sections[0].Items[0].ExternalID, sections[0].Items[1].ExternalID})
	assert.Equal(t, domain.CategoryCivic, sections[1].Category)
}

func TestGroupSectionsWindowBoundsAndTies(t *testing.T) {
	t.Parallel()

	window := domain.WeekEnding(weekEnd)
	atStart := crimeItem("start", window.Start)
	atEnd := crimeItem("end", window.End)
	tieB := crimeItem("tie-b", weekEnd.Add(-time.Hour))
	tieA := crimeItem("tie-a", weekEnd.Add(-time.Hour))
	unknown := domain.RawItem{SourceID: "x", ExternalID: "1", Title: "misc", Category: "weather", OccurredAt: weekEnd.Add(-time.Hour)}

	sections := GroupSections(window, []domain.RawItem{atEnd, tieB, atStart, tieA, unknown})
	require.Len(t, sections, 2)

	var ids []string
	for _, item := range sections[0].Items {
		ids = append(ids, item.ExternalID)
	}
	assert.Equal(t, []string{"tie-a", "tie-b", "start"}, ids)
	assert.Equal(t, domain.CategoryOther, sections[1].Category)
}
