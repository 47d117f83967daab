package domain

import (
	"strings"
	"time"
)

// Category groups digest items into sections.
type Category string

const (
	CategoryCrime       Category = "crime"
	CategoryDevelopment Category = "development"
	CategoryCivic       Category = "civic"
	CategoryOther       Category = "other"
)

// CategoryPriority is the fixed order of digest sections.
var CategoryPriority = []Category{
	CategoryCrime,
	CategoryDevelopment,
	CategoryCivic,
	CategoryOther,
}

// ParseCategory maps a config or source value onto a known category.
func ParseCategory(value string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range CategoryPriority {
		if c == known {
			return c, true
		}
	}
	return "", false
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	_, ok := ParseCategory(string(c))
	return ok
}

// Title is the section heading used when rendering.
func (c Category) Title() string {
	switch c {
	case CategoryCrime:
		return "Crime"
	case CategoryDevelopment:
		return "Development"
	case CategoryCivic:
		return "Civic"
	default:
		return "Other"
	}
}

// ItemKey identifies a RawItem across all sources.
type ItemKey struct {
	SourceID   string
	ExternalID string
}

func (k ItemKey) String() string {
	return k.SourceID + "/" + k.ExternalID
}

// RawItem is one normalized record scraped from an open-data source.
// Subcategory is the source's own type label, such as the MCI category or
// the permit work type.
type RawItem struct {
	SourceID    string
	ExternalID  string
	Title       string
	Body        string
	Category    Category
	Subcategory string
	OccurredAt  time.Time
	URL         string
}

// Key returns the (source_id, external_id) pair used for deduplication.
func (i RawItem) Key() ItemKey {
	return ItemKey{SourceID: i.SourceID, ExternalID: i.ExternalID}
}

// Validate checks the fields every stored item must carry.
func (i RawItem) Validate() error {
	switch {
	case strings.TrimSpace(i.SourceID) == "":
		return &RecordValidationError{Key: i.Key(), Field: "source_id"}
	case strings.TrimSpace(i.ExternalID) == "":
		return &RecordValidationError{Key: i.Key(), Field: "external_id"}
	case strings.TrimSpace(i.Title) == "":
		return &RecordValidationError{Key: i.Key(), Field: "title"}
	case i.OccurredAt.IsZero():
		return &RecordValidationError{Key: i.Key(), Field: "occurred_at"}
	case !i.Category.Valid():
		return &RecordValidationError{Key: i.Key(), Field: "category"}
	}
	return nil
}

// CollectResult summarises one collector run.
type CollectResult struct {
	Inserted []RawItem
	Warnings []*SourceFetchError
	Dropped  int
	Seen     int
}
