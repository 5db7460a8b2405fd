// Package placeholder holds the fixed preview dataset every phase renders
// before the first real submission.
package placeholder

import (
	"fmt"

	"home-planner/internal/models"
)

const PreviewID = "preview"

var previewStores = []models.Store{
	{ID: "st-1", Name: "Nile Home Furnishings", Address: "26 July St", City: "Cairo", Country: "Egypt", Phone: "+20 2 2575 0000", Hours: "10:00-22:00"},
	{ID: "st-2", Name: "Zamalek Design House", Address: "12 Brazil St", City: "Cairo", Country: "Egypt", Hours: "11:00-21:00"},
	{ID: "st-3", Name: "Alexandria Living", Address: "Fouad St", City: "Alexandria", Country: "Egypt", Email: "hello@alexliving.example", Hours: "09:00-20:00"},
}

type previewItem struct {
	title       string
	price       float64
	rating      float64
	description string
}

var previewCatalog = map[string][]previewItem{
	models.CategoryLivingRoom: {
		{"Three-seat linen sofa", 1250, 4.6, "Deep seats with removable covers"},
		{"Walnut coffee table", 420, 4.4, "Solid walnut top on steel legs"},
		{"Arc floor lamp", 180, 4.2, "Dimmable warm light"},
	},
	models.CategoryKitchen: {
		{"Oak dining table", 890, 4.5, "Seats six"},
		{"Counter stools (pair)", 240, 4.1, "Height-adjustable"},
		{"Open pantry shelving", 310, 4.0, "Powder-coated steel"},
	},
	models.CategoryBedroom: {
		{"Queen upholstered bed", 1100, 4.7, "Padded headboard with storage"},
		{"Two-door wardrobe", 760, 4.3, "Soft-close hinges"},
		{"Bedside table", 150, 4.2, "One drawer, one shelf"},
	},
	models.CategoryBathroom: {
		{"Vanity unit with basin", 540, 4.3, "Moisture-resistant finish"},
		{"Bamboo bath mat", 35, 4.0, "Quick-drying"},
		{"Mirror cabinet", 210, 4.4, "LED edge lighting"},
	},
	models.CategoryOtherRooms: {
		{"Home office desk", 380, 4.5, "Cable tray included"},
		{"Ergonomic chair", 320, 4.6, "Lumbar support"},
		{"Modular bookcase", 260, 4.1, "Expandable units"},
	},
}

var previewShares = []models.BudgetShare{
	{Category: models.CategoryLivingRoom, Percentage: 30},
	{Category: models.CategoryKitchen, Percentage: 25},
	{Category: models.CategoryBedroom, Percentage: 25},
	{Category: models.CategoryBathroom, Percentage: 10},
	{Category: models.CategoryOtherRooms, Percentage: 10},
}

// Result returns a fresh copy of the preview dataset. Callers may mutate it.
func Result() models.SubmissionResult {
	const previewBudget = 20000

	result := models.SubmissionResult{
		ID:              PreviewID,
		Recommendations: make(map[string][]models.RecommendationItem, len(previewCatalog)),
	}
	for _, share := range previewShares {
		share.Amount = previewBudget * share.Percentage / 100
		result.BudgetDistribution = append(result.BudgetDistribution, share)
	}

	n := 0
	for ci, category := range models.ProductCategories {
		for i, item := range previewCatalog[category] {
			n++
			id := fmt.Sprintf("preview-%d", n)
			image := fmt.Sprintf("https://placehold.co/600x400?text=%s", slug(item.title))

			result.Recommendations[category] = append(result.Recommendations[category], models.RecommendationItem{
				ID:          id,
				Title:       item.title,
				Category:    category,
				Price:       item.price,
				Rating:      item.rating,
				Description: item.description,
				ImageURL:    image,
				Link:        "https://example.com/products/" + id,
			})

			store := previewStores[(ci+i)%len(previewStores)]
			result.Products = append(result.Products, models.Product{
				ID:       id,
				Title:    item.title,
				Category: category,
				Image:    models.ProductImage{URL: image, Alt: item.title, Thumbnail: image + "&w=150"},
				Price:    item.price,
				Store:    store,
				Rating:   item.rating,
				Location: storeLocation(store.ID, i),
			})
		}
	}
	return result
}

// Images returns the preview gallery for the image phase.
func Images() []models.GeneratedImage {
	out := make([]models.GeneratedImage, 0, len(models.ProductCategories))
	for _, room := range models.ProductCategories {
		out = append(out, models.GeneratedImage{
			ID:       "preview-" + slug(room),
			Room:     room,
			Prompt:   "A furnished " + room,
			ImageURL: "https://placehold.co/1024x768?text=" + slug(room),
		})
	}
	return out
}

func storeLocation(storeID string, offset int) models.GeoPoint {
	base := map[string]models.GeoPoint{
		"st-1": {Lat: 30.0444, Lng: 31.2357},
		"st-2": {Lat: 30.0609, Lng: 31.2197},
		"st-3": {Lat: 31.2001, Lng: 29.9187},
	}[storeID]
	return models.GeoPoint{Lat: base.Lat + float64(offset)*0.001, Lng: base.Lng + float64(offset)*0.001}
}

func slug(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		default:
			if len(out) > 0 && out[len(out)-1] != '+' {
				out = append(out, '+')
			}
		}
	}
	for len(out) > 0 && out[len(out)-1] == '+' {
		out = out[:len(out)-1]
	}
	return string(out)
}
