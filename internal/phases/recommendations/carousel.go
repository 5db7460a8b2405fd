// Package recommendations groups recommended items into per-room carousels.
package recommendations

import (
	"sort"

	"home-planner/internal/models"
)

type Carousel struct {
	Category string                      `json:"category"`
	Items    []models.RecommendationItem `json:"items"`
}

// Carousels returns one carousel per non-empty category: the known rooms in
// display order first, then any other category alphabetically. Items keep the
// backend's order.
func Carousels(byCategory map[string][]models.RecommendationItem) []Carousel {
	rank := make(map[string]int, len(models.ProductCategories))
	for i, c := range models.ProductCategories {
		rank[c] = i
	}

	categories := make([]string, 0, len(byCategory))
	for c, items := range byCategory {
		if len(items) > 0 {
			categories = append(categories, c)
		}
	}
	sort.Slice(categories, func(i, j int) bool {
		ri, iKnown := rank[categories[i]]
		rj, jKnown := rank[categories[j]]
		switch {
		case iKnown && jKnown:
			return ri < rj
		case iKnown != jKnown:
			return iKnown
		default:
			return categories[i] < categories[j]
		}
	})

	out := make([]Carousel, 0, len(categories))
	for _, c := range categories {
		items := make([]models.RecommendationItem, len(byCategory[c]))
		copy(items, byCategory[c])
		out = append(out, Carousel{Category: c, Items: items})
	}
	return out
}
