package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WolverineBrief/internal/domain"
	"WolverineBrief/internal/scanner"
)

func TestBuildWhere(t *testing.T) {
	t.Parallel()

	geo := scanner.GeoFilter{Field: "NEIGHBOURHOOD_158", Values: []string{"Weston (113)", "O'Connor (54)"}}
	since := time.Date(2026, time.October, 7, 0, 0, 0, 0, time.UTC)

	got := buildWhere(geo, "OCC_DATE", since)
	want := "(NEIGHBOURHOOD_158 = 'Weston (113)' OR NEIGHBOURHOOD_158 = 'O''Connor (54)') AND OCC_DATE >= DATE '2026-10-07'"
	assert.Equal(t, want, got)

	assert.Equal(t, "1=1", buildWhere(scanner.GeoFilter{}, "OCC_DATE", time.Time{}))
}

func TestArcGISScannerPaginates(t *testing.T) {
	t.Parallel()

	occurred := time.Date(2026, time.October, 10, 14, 0, 0, 0, time.UTC)
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		q := r.URL.Query()
		assert.Equal(t, "json", q.Get("f"))
		assert.Contains(t, q.Get("where"), "NEIGHBOURHOOD_158 = 'Weston (113)'")

		feature := func(id, offence string) string {
			return fmt.Sprintf(`{"attributes":{"EVENT_UNIQUE_ID":%q,"OCC_DATE":%d,"OFFENCE":%q,"MCI_CATEGORY":"Assault","NEIGHBOURHOOD_158":"Weston (113)"}}`,
				id, occurred.UnixMilli(), offence)
		}

		switch q.Get("resultOffset") {
		case "0":
			fmt.Fprintf(w, `{"features":[%s,%s]}`, feature("GO-1", "Assault"), feature("GO-2", "Robbery - Mugging"))
		case "2":
			fmt.Fprintf(w, `{"features":[%s]}`, feature("GO-3", "Assault Bodily Harm"))
		default:
			t.Errorf("unexpected offset %s", q.Get("resultOffset"))
		}
	}))
	defer server.Close()

	sc := NewArcGISScanner(server.Client(), nil)
	items, err := sc.Scan(context.Background(), scanner.Request{
		SourceID: "tps-mci",
		URL:      server.URL + "/query",
		Category: domain.CategoryCrime,
		Since:    occurred.AddDate(0, 0, -7),
		Geo:      scanner.GeoFilter{Field: "NEIGHBOURHOOD_158", Values: []string{"Weston (113)"}},
		Options:  map[string]string{"page_size": "2"},
	})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.EqualValues(t, 2, calls.Load())

	first := items[0]
	assert.Equal(t, "GO-1|Assault", first.ExternalID)
	assert.Equal(t, "Assault", first.Title)
	assert.Equal(t, "Weston (113)", first.Body)
	assert.True(t, first.OccurredAt.Equal(occurred))
	assert.Equal(t, "Assault, Weston (113)", items[1].Body)
	assert.Equal(t, "Assault", items[1].Subcategory)
}

func TestArcGISScannerReportsServiceError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"Invalid query"}}`))
	}))
	defer server.Close()

	sc := NewArcGISScanner(server.Client(), nil)
	_, err := sc.Scan(context.Background(), scanner.Request{SourceID: "tps-mci", URL: server.URL})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "Invalid query"))
}

func TestArcGISScannerHashesMissingID(t *testing.T) {
	t.Parallel()

	sc := NewArcGISScanner(nil, nil)
	req := scanner.Request{SourceID: "tps-mci", Category: domain.CategoryCrime, Geo: scanner.GeoFilter{Field: "NEIGHBOURHOOD_158"}}
	attrs := map[string]any{"OCC_DATE": float64(1760000000000), "OFFENCE": "Theft Over", "MCI_CATEGORY": "Theft Over"}

	a := sc.toItem(req, "OCC_DATE", attrs)
	b := sc.toItem(req, "OCC_DATE", attrs)
	assert.NotEmpty(t, a.ExternalID)
	assert.Equal(t, a.ExternalID, b.ExternalID)
	assert.Empty(t, a.Body)
}
