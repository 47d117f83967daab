package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"WolverineBrief/internal/config"
	"WolverineBrief/internal/domain"
	"WolverineBrief/internal/ports"
)

type memoryRepo struct {
	mu        sync.Mutex
	items     map[domain.ItemKey]domain.RawItem
	insertErr error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[domain.ItemKey]domain.RawItem)}
}

func (r *memoryRepo) ExistingKeys(_ context.Context, sourceID string, ids []string) (map[string]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]bool)
	for _, id := range ids {
		if _, ok := r.items[domain.ItemKey{SourceID: sourceID, ExternalID: id}]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (r *memoryRepo) InsertIfAbsent(_ context.Context, item domain.RawItem) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return false, r.insertErr
	}
	if _, ok := r.items[item.Key()]; ok {
		return false, nil
	}
	r.items[item.Key()] = item
	return true, nil
}

func (r *memoryRepo) QueryRange(_ context.Context, start, end time.Time) ([]domain.RawItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.RawItem
	for _, item := range r.items {
		if !item.OccurredAt.Before(start) && item.OccurredAt.Before(end) {
			out = append(out, item)
		}
	}
	return out, nil
}

// mapFetcher returns canned items or errors per source id.
type mapFetcher struct {
	items map[string][]domain.RawItem
	errs  map[string]error
}

func (f mapFetcher) Fetch(_ context.Context, src config.SourceConfig, _ time.Time) ([]domain.RawItem, error) {
	if err := f.errs[src.ID]; err != nil {
		return nil, err
	}
	return f.items[src.ID], nil
}

type stubRenderer struct {
	err error
}

func (r stubRenderer) Render(rc ports.RenderContext) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	out := rc.Title
	for _, s := range rc.Sections {
		for _, item := range s.Items {
			out += "|" + item.Title
		}
	}
	return out, nil
}

type memoryArtifacts struct {
	saved []domain.Digest
}

func (m *memoryArtifacts) Save(_ context.Context, d domain.Digest) error {
	m.saved = append(m.saved, d)
	return nil
}

func (m *memoryArtifacts) Load(context.Context) (domain.Digest, error) {
	if len(m.saved) == 0 {
		return domain.Digest{}, errors.New("empty")
	}
	return m.saved[len(m.saved)-1], nil
}

type recordingTransport struct {
	mu   sync.Mutex
	sent []domain.Message
	fail map[string]error
}

func (t *recordingTransport) Send(_ context.Context, msg domain.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, msg)
	if err := t.fail[msg.Recipient]; err != nil {
		return err
	}
	return nil
}

func (t *recordingTransport) recipients() map[string]bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]bool, len(t.sent))
	for _, m := range t.sent {
		out[m.Recipient] = true
	}
	return out
}

type recordingNotifier struct {
	messages []string
	err      error
}

func (n *recordingNotifier) Publish(_ context.Context, message string) error {
	n.messages = append(n.messages, message)
	return n.err
}
