package ports

import (
	"context"
	"time"

	"WolverineBrief/internal/config"
	"WolverineBrief/internal/domain"
)

// SourceFetcher pulls raw item candidates from one configured source.
type SourceFetcher interface {
	Fetch(ctx context.Context, src config.SourceConfig, since time.Time) ([]domain.RawItem, error)
}

// ItemRepository persists raw items for deduplication and digest queries.
type ItemRepository interface {
	ExistingKeys(ctx context.Context, sourceID string, externalIDs []string) (map[string]bool, error)
	InsertIfAbsent(ctx context.Context, item domain.RawItem) (bool, error)
	QueryRange(ctx context.Context, start, end time.Time) ([]domain.RawItem, error)
}

// RenderContext is everything the digest template can reference.
type RenderContext struct {
	Title       string
	Window      domain.DigestWindow
	Location    *time.Location
	CouncilNote string
	Sections    []domain.Section
}

// Renderer turns grouped items into the digest body.
type Renderer interface {
	Render(rc RenderContext) (string, error)
}

// ArtifactStore saves and loads the rendered digest between stage invocations.
type ArtifactStore interface {
	Save(ctx context.Context, digest domain.Digest) error
	Load(ctx context.Context) (domain.Digest, error)
}

// SubscriberDirectory reads the externally owned subscriber list.
type SubscriberDirectory interface {
	List(ctx context.Context) ([]domain.Subscriber, error)
}

// Transport delivers one message over email or SMS.
type Transport interface {
	Send(ctx context.Context, msg domain.Message) error
}

// Notifier posts short operator messages (run summaries) to a chat.
type Notifier interface {
	Publish(ctx context.Context, message string) error
}
