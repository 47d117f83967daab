package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/feeds"

	"WolverineBrief/internal/domain"
	"WolverineBrief/internal/ports"
)

const (
	markdownFile = "weekly_digest.md"
	jsonFile     = "weekly_digest.json"
	feedFile     = "weekly_digest.xml"
)

// ErrNoArtifact is returned by Load before any digest has been composed.
var ErrNoArtifact = errors.New("digest artifact not found, run compose first")

// FileStore keeps the latest digest as Markdown, a JSON sidecar and an RSS feed.
type FileStore struct {
	dir       string
	feedTitle string
	feedLink  string
}

var _ ports.ArtifactStore = (*FileStore)(nil)

// NewFileStore writes into dir; the feed title and link label the RSS channel.
func NewFileStore(dir, feedTitle, feedLink string) *FileStore {
	return &FileStore{dir: dir, feedTitle: feedTitle, feedLink: feedLink}
}

// MarkdownPath is where the rendered digest is written.
func (s *FileStore) MarkdownPath() string {
	return filepath.Join(s.dir, markdownFile)
}

type digestFile struct {
	WindowStart  time.Time     `json:"window_start"`
	WindowEnd    time.Time     `json:"window_end"`
	GeneratedAt  time.Time     `json:"generated_at"`
	Sections     []sectionFile `json:"sections"`
	RenderedText string        `json:"rendered_text"`
}

type sectionFile struct {
	Category string     `json:"category"`
	Items    []itemFile `json:"items"`
}

type itemFile struct {
	SourceID    string    `json:"source_id"`
	ExternalID  string    `json:"external_id"`
	Title       string    `json:"title"`
	Body        string    `json:"body,omitempty"`
	Subcategory string    `json:"subcategory,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
	URL         string    `json:"url,omitempty"`
}

// Save overwrites all three files for the digest.
func (s *FileStore) Save(ctx context.Context, digest domain.Digest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	if err := writeAtomic(filepath.Join(s.dir, markdownFile), []byte(digest.RenderedText)); err != nil {
		return err
	}

	payload, err := json.MarshalIndent(toFile(digest), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal digest: %w", err)
	}
	if err := writeAtomic(filepath.Join(s.dir, jsonFile), payload); err != nil {
		return err
	}

	rss, err := s.buildFeed(digest)
	if err != nil {
		return err
	}
	return writeAtomic(filepath.Join(s.dir, feedFile), []byte(rss))
}

// Load reads the digest written by the last Save.
func (s *FileStore) Load(ctx context.Context) (domain.Digest, error) {
	if err := ctx.Err(); err != nil {
		return domain.Digest{}, err
	}

	raw, err := os.ReadFile(filepath.Join(s.dir, jsonFile))
	if errors.Is(err, fs.ErrNotExist) {
		return domain.Digest{}, fmt.Errorf("%s: %w", s.dir, ErrNoArtifact)
	}
	if err != nil {
		return domain.Digest{}, fmt.Errorf("read digest: %w", err)
	}

	var file digestFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return domain.Digest{}, fmt.Errorf("decode digest: %w", err)
	}
	return fromFile(file), nil
}

func (s *FileStore) buildFeed(digest domain.Digest) (string, error) {
	feed := &feeds.Feed{
		Title:       s.feedTitle,
		Link:        &feeds.Link{Href: s.feedLink},
		Description: fmt.Sprintf("Items from %s to %s", digest.Window.Start.Format(time.DateOnly), digest.Window.LastDay().Format(time.DateOnly)),
		Created:     digest.Window.End,
		Updated:     digest.Window.End,
	}

	for _, section := range digest.Sections {
		for _, item := range section.Items {
			link := item.URL
			if link == "" {
				link = s.feedLink
			}
			feed.Items = append(feed.Items, &feeds.Item{
				Id:          item.Key().String(),
				Title:       fmt.Sprintf("[%s] %s", section.Category.Title(), item.Title),
				Link:        &feeds.Link{Href: link},
				Description: item.Body,
				Created:     item.OccurredAt,
			})
		}
	}

	rss, err := feed.ToRss()
	if err != nil {
		return "", fmt.Errorf("build rss: %w", err)
	}
	return rss, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func toFile(d domain.Digest) digestFile {
	file := digestFile{
		WindowStart:  d.Window.Start,
		WindowEnd:    d.Window.End,
		GeneratedAt:  d.GeneratedAt,
		RenderedText: d.RenderedText,
	}
	for _, section := range d.Sections {
		sf := sectionFile{Category: string(section.Category)}
		for _, item := range section.Items {
			sf.Items = append(sf.Items, itemFile{
				SourceID:    item.SourceID,
				ExternalID:  item.ExternalID,
				Title:       item.Title,
				Body:        item.Body,
				Subcategory: item.Subcategory,
				OccurredAt:  item.OccurredAt,
				URL:         item.URL,
			})
		}
		file.Sections = append(file.Sections, sf)
	}
	return file
}

func fromFile(f digestFile) domain.Digest {
	d := domain.Digest{
		Window:       domain.DigestWindow{Start: f.WindowStart, End: f.WindowEnd},
		GeneratedAt:  f.GeneratedAt,
		RenderedText: f.RenderedText,
	}
	for _, sf := range f.Sections {
		section := domain.Section{Category: domain.Category(sf.Category)}
		for _, it := range sf.Items {
			section.Items = append(section.Items, domain.RawItem{
				SourceID:    it.SourceID,
				ExternalID:  it.ExternalID,
				Title:       it.Title,
				Body:        it.Body,
				Category:    section.Category,
				Subcategory: it.Subcategory,
				OccurredAt:  it.OccurredAt,
				URL:         it.URL,
			})
		}
		d.Sections = append(d.Sections, section)
	}
	return d
}
