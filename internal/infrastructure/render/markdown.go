package render

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/template"
	"time"

	"WolverineBrief/internal/domain"
	"WolverineBrief/internal/ports"
)

const defaultTemplateName = "weekly_digest.md.tmpl"

//go:embed templates/weekly_digest.md.tmpl
var defaultTemplate string

// Markdown renders digests through a text/template.
type Markdown struct {
	name string
	tmpl *template.Template
}

var _ ports.Renderer = (*Markdown)(nil)

// NewMarkdown parses the template at path, or the embedded default when path is empty.
func NewMarkdown(path string) (*Markdown, error) {
	name, text := defaultTemplateName, defaultTemplate
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, &domain.TemplateRenderError{Template: path, Err: err}
		}
		name, text = path, string(raw)
	}

	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, &domain.TemplateRenderError{Template: name, Err: err}
	}
	return &Markdown{name: name, tmpl: tmpl}, nil
}

type digestView struct {
	Title       string
	From        string
	To          string
	CouncilNote string
	Total       int
	Sections    []sectionView
}

type sectionView struct {
	Heading   string
	Count     int
	Breakdown []countView
	Items     []itemView
}

type countView struct {
	Label string
	Count int
}

// breakdownLimit caps the subcategory counts shown per section; zero shows all.
var breakdownLimit = map[domain.Category]int{
	domain.CategoryCrime:       0,
	domain.CategoryDevelopment: 5,
	domain.CategoryCivic:       5,
	domain.CategoryOther:       5,
}

type itemView struct {
	Title string
	Body  string
	URL   string
	Date  string
}

// Render executes the template for the grouped sections.
func (m *Markdown) Render(rc ports.RenderContext) (string, error) {
	if m == nil || m.tmpl == nil {
		return "", &domain.TemplateRenderError{Template: defaultTemplateName, Err: fmt.Errorf("renderer is not initialised")}
	}
	if strings.TrimSpace(rc.Title) == "" {
		return "", &domain.TemplateRenderError{Template: m.name, Err: fmt.Errorf("missing digest title")}
	}
	if rc.Window.End.IsZero() || !rc.Window.Start.Before(rc.Window.End) {
		return "", &domain.TemplateRenderError{Template: m.name, Err: fmt.Errorf("invalid window %v..%v", rc.Window.Start, rc.Window.End)}
	}

	loc := rc.Location
	if loc == nil {
		loc = time.UTC
	}

	view := digestView{
		Title:       rc.Title,
		From:        rc.Window.Start.In(loc).Format(time.DateOnly),
		To:          rc.Window.LastDay().In(loc).Format(time.DateOnly),
		CouncilNote: strings.TrimSpace(rc.CouncilNote),
	}
	for _, section := range rc.Sections {
		if len(section.Items) == 0 {
			continue
		}
		sv := sectionView{
			Heading:   section.Category.Title(),
			Count:     len(section.Items),
			Breakdown: breakdown(section.Items, breakdownLimit[section.Category]),
		}
		for _, item := range section.Items {
			sv.Items = append(sv.Items, itemView{
				Title: item.Title,
				Body:  item.Body,
				URL:   item.URL,
				Date:  item.OccurredAt.In(loc).Format("Mon Jan 2"),
			})
		}
		view.Total += sv.Count
		view.Sections = append(view.Sections, sv)
	}

	var buf bytes.Buffer
	if err := m.tmpl.Execute(&buf, view); err != nil {
		return "", &domain.TemplateRenderError{Template: m.name, Err: err}
	}
	return buf.String(), nil
}

// breakdown counts items per subcategory, largest first with ties by label.
func breakdown(items []domain.RawItem, limit int) []countView {
	counts := make(map[string]int)
	for _, item := range items {
		if label := strings.TrimSpace(item.Subcategory); label != "" {
			counts[label]++
		}
	}

	out := make([]countView, 0, len(counts))
	for label, n := range counts {
		out = append(out, countView{Label: label, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
