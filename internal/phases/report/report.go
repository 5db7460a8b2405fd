// Package report assembles the downloadable plan report and shares it by link.
package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"home-planner/internal/models"
	"home-planner/internal/phases/budget"
	"home-planner/internal/phases/recommendations"
)

const topProductCount = 10

type StoreSummary struct {
	Name     string `json:"name"`
	City     string `json:"city"`
	Country  string `json:"country"`
	Products int    `json:"products"`
}

type Report struct {
	PlanID          string                     `json:"planId"`
	GeneratedAt     time.Time                  `json:"generatedAt"`
	Preview         bool                       `json:"preview"`
	Form            *models.FormInput          `json:"form,omitempty"`
	Budget          budget.Chart               `json:"budget"`
	Recommendations []recommendations.Carousel `json:"recommendations"`
	ProductCount    int                        `json:"productCount"`
	TopProducts     []models.Product           `json:"topProducts"`
	Stores          []StoreSummary             `json:"stores"`
	Images          []models.GeneratedImage    `json:"images,omitempty"`
}

type Input struct {
	Form    *models.FormInput
	Result  models.SubmissionResult
	Images  []models.GeneratedImage
	Preview bool
	Now     time.Time
}

func Build(in Input) Report {
	currency := models.CurrencyUSD
	var total float64
	if in.Form != nil {
		currency = in.Form.Currency
		total = in.Form.Budget
	}
	if in.Now.IsZero() {
		in.Now = time.Now()
	}

	return Report{
		PlanID:          in.Result.ID,
		GeneratedAt:     in.Now.UTC(),
		Preview:         in.Preview,
		Form:            in.Form,
		Budget:          budget.Build(in.Result.BudgetDistribution, total, currency),
		Recommendations: recommendations.Carousels(in.Result.Recommendations),
		ProductCount:    len(in.Result.Products),
		TopProducts:     topProducts(in.Result.Products),
		Stores:          summarizeStores(in.Result.Products),
		Images:          in.Images,
	}
}

func topProducts(products []models.Product) []models.Product {
	out := make([]models.Product, len(products))
	copy(out, products)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rating > out[j].Rating })
	if len(out) > topProductCount {
		out = out[:topProductCount]
	}
	return out
}

func summarizeStores(products []models.Product) []StoreSummary {
	index := map[string]int{}
	var out []StoreSummary
	for _, p := range products {
		if p.Store.Name == "" {
			continue
		}
		key := p.Store.ID
		if key == "" {
			key = p.Store.Name + "|" + p.Store.City
		}
		if i, ok := index[key]; ok {
			out[i].Products++
			continue
		}
		index[key] = len(out)
		out = append(out, StoreSummary{Name: p.Store.Name, City: p.Store.City, Country: p.Store.Country, Products: 1})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Products > out[j].Products })
	return out
}

func (r Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

func (r Report) Markdown() string {
	var b strings.Builder
	currency := r.Budget.Currency

	b.WriteString("# Home furnishing plan\n\n")
	fmt.Fprintf(&b, "_Generated %s_\n\n", r.GeneratedAt.Format("2006-01-02 15:04 MST"))
	if r.Preview {
		b.WriteString("> This report uses sample data. Submit your home details to get your own plan.\n\n")
	}

	if f := r.Form; f != nil {
		b.WriteString("## Your home\n\n")
		fmt.Fprintf(&b, "- Budget: %s (%s)\n", budget.FormatAmount(f.Currency, f.Budget), f.Currency)
		fmt.Fprintf(&b, "- Area: %g %s\n", f.Area, f.AreaUnit)
		fmt.Fprintf(&b, "- Rooms: %d bedrooms, %d bathrooms, %d living room, %d kitchen\n", f.Bedrooms, f.Bathrooms, f.LivingRooms, f.Kitchens)
		if f.OtherRooms != "" {
			fmt.Fprintf(&b, "- Other rooms: %s\n", f.OtherRooms)
		}
		fmt.Fprintf(&b, "- Location: %s\n", f.Location)
		fmt.Fprintf(&b, "- Style: %s\n", f.Style)
		if f.Occupants != "" {
			fmt.Fprintf(&b, "- Occupants: %s\n", strings.ReplaceAll(string(f.Occupants), "_", " "))
		}
		b.WriteString("\n")
	}

	if len(r.Budget.Slices) > 0 {
		b.WriteString("## Budget distribution\n\n")
		b.WriteString("| Category | Amount | Share |\n|---|---:|---:|\n")
		for _, s := range r.Budget.Slices {
			fmt.Fprintf(&b, "| %s | %s | %.1f%% |\n", s.Category, s.Label, s.Percentage)
		}
		fmt.Fprintf(&b, "| **Total** | **%s** | |\n\n", budget.FormatAmount(currency, r.Budget.Total))
	}

	if len(r.Recommendations) > 0 {
		b.WriteString("## Recommendations\n\n")
		for _, c := range r.Recommendations {
			fmt.Fprintf(&b, "### %s\n\n", c.Category)
			for _, item := range c.Items {
				fmt.Fprintf(&b, "- **%s** (%s, %.1f/5)", item.Title, budget.FormatAmount(currency, item.Price), item.Rating)
				if item.Description != "" {
					fmt.Fprintf(&b, ": %s", item.Description)
				}
				if item.Link != "" {
					fmt.Fprintf(&b, " [view](%s)", item.Link)
				}
				b.WriteString("\n")
			}
			b.WriteString("\n")
		}
	}

	if len(r.TopProducts) > 0 {
		fmt.Fprintf(&b, "## Top products (%d of %d)\n\n", len(r.TopProducts), r.ProductCount)
		b.WriteString("| Product | Category | Price | Rating | Store |\n|---|---|---:|---:|---|\n")
		for _, p := range r.TopProducts {
			fmt.Fprintf(&b, "| %s | %s | %s | %.1f | %s |\n", p.Title, p.Category, budget.FormatAmount(currency, p.Price), p.Rating, p.Store.Name)
		}
		b.WriteString("\n")
	}

	if len(r.Stores) > 0 {
		b.WriteString("## Stores\n\n")
		for _, s := range r.Stores {
			fmt.Fprintf(&b, "- %s, %s (%d products)\n", s.Name, s.City, s.Products)
		}
		b.WriteString("\n")
	}

	if len(r.Images) > 0 {
		b.WriteString("## Room images\n\n")
		for _, img := range r.Images {
			label := img.Room
			if label == "" {
				label = img.Prompt
			}
			if strings.HasPrefix(img.ImageURL, "data:") {
				fmt.Fprintf(&b, "- %s (inline image)\n", label)
				continue
			}
			fmt.Fprintf(&b, "- %s: %s\n", label, img.ImageURL)
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}
