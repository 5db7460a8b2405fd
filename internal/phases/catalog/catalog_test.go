package catalog

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "home-planner/internal/common/errors"
	"home-planner/internal/models"
)

func products() []models.Product {
	cairo := models.Store{ID: "s1", Name: "Nile Home", City: "Cairo"}
	alex := models.Store{ID: "s2", Name: "Alex Living", City: "Alexandria"}
	return []models.Product{
		{ID: "p1", Title: "Linen sofa", Category: models.CategoryLivingRoom, Price: 1200, Rating: 4.6, Store: cairo, Location: models.GeoPoint{Lat: 30.04, Lng: 31.23}},
		{ID: "p2", Title: "Oak table", Category: models.CategoryKitchen, Price: 800, Rating: 4.2, Store: alex, Location: models.GeoPoint{Lat: 31.2, Lng: 29.9}},
		{ID: "p3", Title: "bed frame", Category: models.CategoryBedroom, Price: 950, Rating: 4.8, Store: cairo},
		{ID: "p4", Title: "Bath mat", Category: models.CategoryBathroom, Price: 30, Rating: 3.9, Store: alex, Location: models.GeoPoint{Lat: 31.21, Lng: 29.91}},
		{ID: "p5", Title: "Armchair", Category: models.CategoryLivingRoom, Price: 800, Rating: 4.4, Store: cairo, Location: models.GeoPoint{Lat: 30.05, Lng: 31.24}},
	}
}

func ids(ps []models.Product) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}

func ptr(v float64) *float64 { return &v }

func TestMatch(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"no filter", Filter{}, []string{"p1", "p2", "p3", "p4", "p5"}},
		{"category", Filter{Categories: []string{models.CategoryLivingRoom}}, []string{"p1", "p5"}},
		{"price range", Filter{MinPrice: ptr(100), MaxPrice: ptr(900)}, []string{"p2", "p5"}},
		{"min rating", Filter{MinRating: 4.5}, []string{"p1", "p3"}},
		{"city is case-insensitive", Filter{City: "alexandria"}, []string{"p2", "p4"}},
		{"text matches title", Filter{Query: "SOFA"}, []string{"p1"}},
		{"text matches store", Filter{Query: "alex"}, []string{"p2", "p4"}},
		{"ids restrict", Filter{IDs: []string{"p3", "p4"}}, []string{"p3", "p4"}},
		{"empty ids match nothing", Filter{IDs: []string{}}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Match(products(), tt.filter)))
		})
	}
}

func TestSortProducts(t *testing.T) {
	tests := []struct {
		key  SortKey
		want []string
	}{
		{SortNone, []string{"p1", "p2", "p3", "p4", "p5"}},
		{SortPriceAsc, []string{"p4", "p2", "p5", "p3", "p1"}},
		{SortPriceDesc, []string{"p1", "p3", "p2", "p5", "p4"}},
		{SortRatingDesc, []string{"p3", "p1", "p5", "p2", "p4"}},
		{SortTitleAsc, []string{"p5", "p4", "p3", "p1", "p2"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			ps := products()
			SortProducts(ps, tt.key)
			assert.Equal(t, tt.want, ids(ps))
		})
	}
}

func TestApply_Pagination(t *testing.T) {
	all := products()

	page := Apply(all, Query{Sort: SortPriceAsc, Page: 2, PageSize: 2})
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 3, page.Pages)
	assert.Equal(t, []string{"p5", "p3"}, ids(page.Items))

	last := Apply(all, Query{Page: 3, PageSize: 2})
	assert.Equal(t, []string{"p5"}, ids(last.Items))

	beyond := Apply(all, Query{Page: 9, PageSize: 2})
	assert.Empty(t, beyond.Items)
	assert.NotNil(t, beyond.Items)
	assert.Equal(t, 5, beyond.Total)

	defaults := Apply(all, Query{})
	assert.Equal(t, 1, defaults.Page)
	assert.Equal(t, DefaultPageSize, defaults.PageSize)
	assert.Len(t, defaults.Items, 5)

	assert.Equal(t, []string{"p1", "p2", "p3", "p4", "p5"}, ids(all), "input is not reordered")
}

func TestMarkers(t *testing.T) {
	markers := Markers(products())
	require.Len(t, markers, 4, "products without coordinates are skipped")
	assert.Equal(t, Marker{ProductID: "p1", Title: "Linen sofa", Price: 1200, Lat: 30.04, Lng: 31.23, StoreName: "Nile Home", StoreCity: "Cairo"}, markers[0])
}

func TestParseQuery(t *testing.T) {
	values := url.Values{
		"category":  {"Kitchen,Bedroom", "Living Room"},
		"minPrice":  {"100"},
		"maxPrice":  {"900"},
		"minRating": {"4"},
		"city":      {"Cairo"},
		"q":         {"oak"},
		"sort":      {"price_desc"},
		"page":      {"2"},
		"pageSize":  {"5"},
	}

	q, err := ParseQuery(values)
	require.NoError(t, err)
	assert.Equal(t, []string{"Kitchen", "Bedroom", "Living Room"}, q.Filter.Categories)
	assert.Equal(t, 100.0, *q.Filter.MinPrice)
	assert.Equal(t, 900.0, *q.Filter.MaxPrice)
	assert.Equal(t, 4.0, q.Filter.MinRating)
	assert.Equal(t, "Cairo", q.Filter.City)
	assert.Equal(t, "oak", q.Filter.Query)
	assert.Equal(t, SortPriceDesc, q.Sort)
	assert.Equal(t, 2, q.Page)
	assert.Equal(t, 5, q.PageSize)
}

func TestParseQuery_Invalid(t *testing.T) {
	values := url.Values{
		"category":  {"Garage"},
		"minPrice":  {"abc"},
		"minRating": {"7"},
		"sort":      {"random"},
		"page":      {"0"},
	}

	_, err := ParseQuery(values)
	require.Error(t, err)
	stdErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeValidation, stdErr.Code)

	fields := map[string]bool{}
	for _, f := range stdErr.Fields {
		fields[f.Field] = true
	}
	for _, name := range []string{"category", "minPrice", "minRating", "sort", "page"} {
		assert.True(t, fields[name], name)
	}
}

func TestParseQuery_PriceOrder(t *testing.T) {
	_, err := ParseQuery(url.Values{"minPrice": {"500"}, "maxPrice": {"100"}})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
}
