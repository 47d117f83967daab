package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"WolverineBrief/internal/config"
	"WolverineBrief/internal/domain"
	"WolverineBrief/internal/ports"
)

// CollectorDeps wires the driven adapters of the collect stage.
type CollectorDeps struct {
	Fetcher      ports.SourceFetcher
	Repository   ports.ItemRepository
	Logger       *slog.Logger
	Concurrency  int
	LookbackDays int
	Now          func() time.Time
}

// Collector fetches every configured source and stores new items.
type Collector struct {
	fetcher      ports.SourceFetcher
	repository   ports.ItemRepository
	logger       *slog.Logger
	concurrency  int
	lookbackDays int
	now          func() time.Time
}

// NewCollector constructs the collect stage.
func NewCollector(deps CollectorDeps) *Collector {
	c := &Collector{
		fetcher:      deps.Fetcher,
		repository:   deps.Repository,
		logger:       deps.Logger,
		concurrency:  deps.Concurrency,
		lookbackDays: deps.LookbackDays,
		now:          deps.Now,
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.concurrency <= 0 {
		c.concurrency = 1
	}
	if c.lookbackDays <= 0 {
		c.lookbackDays = 7
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

type fetchSlot struct {
	items []domain.RawItem
	err   *domain.SourceFetchError
}

// Collect fetches all sources, keeps valid unseen records and inserts them.
// Failed sources are warnings; any storage failure aborts the run.
func (c *Collector) Collect(ctx context.Context, sources []config.SourceConfig) (domain.CollectResult, error) {
	var result domain.CollectResult
	if c.fetcher == nil || c.repository == nil {
		return result, fmt.Errorf("collector is not configured")
	}

	since := c.now().AddDate(0, 0, -c.lookbackDays)
	slots := c.fetchAll(ctx, sources, since)

	var candidates []domain.RawItem
	inRun := make(map[domain.ItemKey]struct{})
	for i, slot := range slots {
		if slot.err != nil {
			c.logger.Warn("source fetch failed", "source", sources[i].ID, "error", slot.err.Err)
			result.Warnings = append(result.Warnings, slot.err)
			continue
		}
		for _, item := range slot.items {
			if err := item.Validate(); err != nil {
				c.logger.Warn("drop invalid record", "source", sources[i].ID, "error", err)
				result.Dropped++
				continue
			}
			if _, dup := inRun[item.Key()]; dup {
				continue
			}
			inRun[item.Key()] = struct{}{}
			candidates = append(candidates, item)
		}
	}

	fresh, seen, err := c.filterExisting(ctx, candidates)
	if err != nil {
		return result, err
	}
	result.Seen = seen

	for _, item := range fresh {
		inserted, err := c.repository.InsertIfAbsent(ctx, item)
		if err != nil {
			return result, asStorageError("insert", err)
		}
		if !inserted {
			result.Seen++
			continue
		}
		result.Inserted = append(result.Inserted, item)
	}

	c.logger.Info("collect finished",
		"sources", len(sources),
		"inserted", len(result.Inserted),
		"seen", result.Seen,
		"dropped", result.Dropped,
		"warnings", len(result.Warnings))
	return result, nil
}

// fetchAll runs the fetches in a bounded pool; slot i always belongs to sources[i].
func (c *Collector) fetchAll(ctx context.Context, sources []config.SourceConfig, since time.Time) []fetchSlot {
	slots := make([]fetchSlot, len(sources))

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, src := range sources {
		g.Go(func() error {
			items, err := c.fetcher.Fetch(ctx, src, since)
			if err != nil {
				slots[i].err = &domain.SourceFetchError{SourceID: src.ID, Err: err}
				return nil
			}
			slots[i].items = items
			return nil
		})
	}
	_ = g.Wait()
	return slots
}

func (c *Collector) filterExisting(ctx context.Context, items []domain.RawItem) ([]domain.RawItem, int, error) {
	bySource := make(map[string][]string)
	var order []string
	for _, item := range items {
		if _, ok := bySource[item.SourceID]; !ok {
			order = append(order, item.SourceID)
		}
		bySource[item.SourceID] = append(bySource[item.SourceID], item.ExternalID)
	}

	existing := make(map[string]map[string]bool, len(order))
	for _, sourceID := range order {
		keys, err := c.repository.ExistingKeys(ctx, sourceID, bySource[sourceID])
		if err != nil {
			return nil, 0, asStorageError("existing keys", err)
		}
		existing[sourceID] = keys
	}

	fresh := make([]domain.RawItem, 0, len(items))
	seen := 0
	for _, item := range items {
		if existing[item.SourceID][item.ExternalID] {
			seen++
			continue
		}
		fresh = append(fresh, item)
	}
	return fresh, seen, nil
}

func asStorageError(op string, err error) error {
	var se *domain.StorageError
	if errors.As(err, &se) {
		return err
	}
	return &domain.StorageError{Op: op, Err: err}
}
