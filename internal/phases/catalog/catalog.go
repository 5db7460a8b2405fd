// Package catalog filters, sorts and paginates the product list and projects it
// onto map markers.
package catalog

import (
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"

	apperrors "home-planner/internal/common/errors"
	"home-planner/internal/models"
)

type SortKey string

const (
	SortNone       SortKey = ""
	SortPriceAsc   SortKey = "price_asc"
	SortPriceDesc  SortKey = "price_desc"
	SortRatingDesc SortKey = "rating_desc"
	SortTitleAsc   SortKey = "title_asc"
)

const (
	DefaultPageSize = 12
	MaxPageSize     = 100
)

type Filter struct {
	Categories []string `json:"categories,omitempty"`
	MinPrice   *float64 `json:"minPrice,omitempty"`
	MaxPrice   *float64 `json:"maxPrice,omitempty"`
	MinRating  float64  `json:"minRating,omitempty"`
	City       string   `json:"city,omitempty"`
	Query      string   `json:"query,omitempty"`
	// IDs restricts results to these products, typically the hits of a search backend.
	IDs []string `json:"-"`
}

type Query struct {
	Filter   Filter
	Sort     SortKey
	Page     int
	PageSize int
}

type Page struct {
	Items    []models.Product `json:"items"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
	Pages    int              `json:"pages"`
}

type Marker struct {
	ProductID string  `json:"productId"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	StoreName string  `json:"storeName"`
	StoreCity string  `json:"storeCity"`
}

// Apply runs filter, sort and pagination. Out-of-range pages return an empty
// item list with the correct totals.
func Apply(products []models.Product, q Query) Page {
	matched := Match(products, q.Filter)
	SortProducts(matched, q.Sort)

	size := q.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	page := q.Page
	if page <= 0 {
		page = 1
	}

	out := Page{Total: len(matched), Page: page, PageSize: size, Items: []models.Product{}}
	out.Pages = int(math.Ceil(float64(len(matched)) / float64(size)))
	start := (page - 1) * size
	if start < len(matched) {
		end := start + size
		if end > len(matched) {
			end = len(matched)
		}
		out.Items = matched[start:end]
	}
	return out
}

// Match returns the products accepted by f, in their original order.
func Match(products []models.Product, f Filter) []models.Product {
	cats := toSet(f.Categories)
	ids := toSet(f.IDs)
	query := strings.ToLower(strings.TrimSpace(f.Query))
	city := strings.ToLower(strings.TrimSpace(f.City))

	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if len(cats) > 0 && !cats[p.Category] {
			continue
		}
		if f.IDs != nil && !ids[p.ID] {
			continue
		}
		if f.MinPrice != nil && p.Price < *f.MinPrice {
			continue
		}
		if f.MaxPrice != nil && p.Price > *f.MaxPrice {
			continue
		}
		if p.Rating < f.MinRating {
			continue
		}
		if city != "" && strings.ToLower(p.Store.City) != city {
			continue
		}
		if query != "" && !matchesText(p, query) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func matchesText(p models.Product, query string) bool {
	for _, field := range []string{p.Title, p.Category, p.Store.Name} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

// SortProducts sorts in place. Ties keep their original order.
func SortProducts(products []models.Product, key SortKey) {
	var less func(a, b models.Product) bool
	switch key {
	case SortPriceAsc:
		less = func(a, b models.Product) bool { return a.Price < b.Price }
	case SortPriceDesc:
		less = func(a, b models.Product) bool { return a.Price > b.Price }
	case SortRatingDesc:
		less = func(a, b models.Product) bool { return a.Rating > b.Rating }
	case SortTitleAsc:
		less = func(a, b models.Product) bool { return strings.ToLower(a.Title) < strings.ToLower(b.Title) }
	default:
		return
	}
	sort.SliceStable(products, func(i, j int) bool { return less(products[i], products[j]) })
}

// Markers projects products with a usable coordinate onto the map.
func Markers(products []models.Product) []Marker {
	out := make([]Marker, 0, len(products))
	for _, p := range products {
		if p.Location.Lat == 0 && p.Location.Lng == 0 {
			continue
		}
		out = append(out, Marker{
			ProductID: p.ID,
			Title:     p.Title,
			Price:     p.Price,
			Lat:       p.Location.Lat,
			Lng:       p.Location.Lng,
			StoreName: p.Store.Name,
			StoreCity: p.Store.City,
		})
	}
	return out
}

// ParseQuery reads category (repeatable), minPrice, maxPrice, minRating, city,
// q, sort, page and pageSize from URL parameters.
func ParseQuery(values url.Values) (Query, error) {
	var (
		q      Query
		fields []apperrors.FieldError
	)

	for _, c := range values["category"] {
		for _, part := range strings.Split(c, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if !models.IsProductCategory(part) {
				fields = append(fields, apperrors.FieldError{Field: "category", Message: "unknown category " + part, Code: "INVALID_ENUM_VALUE"})
				continue
			}
			q.Filter.Categories = append(q.Filter.Categories, part)
		}
	}

	parseFloat := func(name string) *float64 {
		raw := values.Get(name)
		if raw == "" {
			return nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			fields = append(fields, apperrors.FieldError{Field: name, Message: "must be a non-negative number", Code: "INVALID_VALUE"})
			return nil
		}
		return &v
	}
	q.Filter.MinPrice = parseFloat("minPrice")
	q.Filter.MaxPrice = parseFloat("maxPrice")
	if r := parseFloat("minRating"); r != nil {
		if *r > 5 {
			fields = append(fields, apperrors.FieldError{Field: "minRating", Message: "must be at most 5", Code: "RANGE_VIOLATION"})
		}
		q.Filter.MinRating = *r
	}
	if q.Filter.MinPrice != nil && q.Filter.MaxPrice != nil && *q.Filter.MinPrice > *q.Filter.MaxPrice {
		fields = append(fields, apperrors.FieldError{Field: "maxPrice", Message: "must not be below minPrice", Code: "RANGE_VIOLATION"})
	}

	q.Filter.City = values.Get("city")
	q.Filter.Query = values.Get("q")

	switch s := SortKey(values.Get("sort")); s {
	case SortNone, SortPriceAsc, SortPriceDesc, SortRatingDesc, SortTitleAsc:
		q.Sort = s
	default:
		fields = append(fields, apperrors.FieldError{Field: "sort", Message: "unknown sort " + string(s), Code: "INVALID_ENUM_VALUE"})
	}

	parseInt := func(name string) int {
		raw := values.Get(name)
		if raw == "" {
			return 0
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			fields = append(fields, apperrors.FieldError{Field: name, Message: "must be a positive integer", Code: "INVALID_VALUE"})
			return 0
		}
		return v
	}
	q.Page = parseInt("page")
	q.PageSize = parseInt("pageSize")

	if len(fields) > 0 {
		return Query{}, apperrors.NewValidationError(fields)
	}
	return q, nil
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
