// internal/models/plan.go
package models

// Product categories form a closed set.
const (
	CategoryLivingRoom = "Living Room"
	CategoryKitchen    = "Kitchen"
	CategoryBedroom    = "Bedroom"
	CategoryBathroom   = "Bathroom"
	CategoryOtherRooms = "Other Rooms"
)

// ProductCategories lists the closed category set in display order.
var ProductCategories = []string{
	CategoryLivingRoom,
	CategoryKitchen,
	CategoryBedroom,
	CategoryBathroom,
	CategoryOtherRooms,
}

// IsProductCategory reports whether c belongs to the closed category set.
func IsProductCategory(c string) bool {
	for _, known := range ProductCategories {
		if known == c {
			return true
		}
	}
	return false
}

// SubmissionResult is the backend's answer to a FormInput. Once received it is owned by the query cache.
type SubmissionResult struct {
	ID                 string                          `json:"id"`
	BudgetDistribution []BudgetShare                   `json:"budgetDistribution"`
	Recommendations    map[string][]RecommendationItem `json:"recommendations"`
	Products           []Product                       `json:"products"`
}

// BudgetShare is one slice of the budget chart. Either field may be zero when the backend
// reports only percentages or only amounts.
type BudgetShare struct {
	Category   string  `json:"category"`
	Percentage float64 `json:"percentage,omitempty"`
	Amount     float64 `json:"amount,omitempty"`
}

type RecommendationItem struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	Rating      float64 `json:"rating"`
	Description string  `json:"description"`
	ImageURL    string  `json:"imageUrl"`
	Link        string  `json:"link"`
}

type ProductImage struct {
	URL       string `json:"url"`
	Alt       string `json:"alt"`
	Thumbnail string `json:"thumbnail"`
}

type Store struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
	Country string `json:"country"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Hours   string `json:"hours,omitempty"`
}

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Product struct {
	ID       string       `json:"id"`
	Title    string       `json:"title"`
	Category string       `json:"category"`
	Image    ProductImage `json:"image"`
	Price    float64      `json:"price"`
	Store    Store        `json:"store"`
	Rating   float64      `json:"rating"`
	Location GeoPoint     `json:"location"`
}
