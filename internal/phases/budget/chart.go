// Package budget turns a budget distribution into chart-ready slices.
package budget

import (
	"fmt"
	"math"

	"home-planner/internal/models"
)

type Slice struct {
	Category   string  `json:"category"`
	Amount     float64 `json:"amount"`
	Percentage float64 `json:"percentage"`
	Label      string  `json:"label"`
}

type Chart struct {
	Currency models.Currency `json:"currency"`
	Total    float64         `json:"total"`
	Slices   []Slice         `json:"slices"`
}

// Build keeps the backend's order and fills in whichever of amount or
// percentage the backend left out. Amounts are derived from budget when only
// percentages are present; percentages are derived from the amounts otherwise.
func Build(dist []models.BudgetShare, budget float64, currency models.Currency) Chart {
	var sumAmount, sumPct float64
	for _, s := range dist {
		sumAmount += s.Amount
		sumPct += s.Percentage
	}

	chart := Chart{Currency: currency, Slices: make([]Slice, 0, len(dist))}
	for _, s := range dist {
		slice := Slice{Category: s.Category, Amount: s.Amount, Percentage: s.Percentage}
		switch {
		case sumAmount > 0 && sumPct == 0:
			slice.Percentage = s.Amount / sumAmount * 100
		case sumPct > 0 && sumAmount == 0:
			slice.Percentage = s.Percentage / sumPct * 100
			slice.Amount = budget * slice.Percentage / 100
		case sumPct > 0 && math.Abs(sumPct-100) > 0.01:
			slice.Percentage = s.Percentage / sumPct * 100
		}
		chart.Total += slice.Amount
		chart.Slices = append(chart.Slices, slice)
	}

	for i := range chart.Slices {
		chart.Slices[i].Label = FormatAmount(currency, chart.Slices[i].Amount)
	}
	return chart
}

// FormatAmount renders 6000 as "$6,000".
func FormatAmount(currency models.Currency, amount float64) string {
	whole := int64(math.Round(amount))
	sign := ""
	if whole < 0 {
		sign = "-"
		whole = -whole
	}
	digits := fmt.Sprintf("%d", whole)
	out := make([]byte, 0, len(digits)+len(digits)/3)
	for i := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, digits[i])
	}
	return sign + currency.Symbol() + string(out)
}
