package budget

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"home-planner/internal/models"
)

func TestBuild_AmountsOnly(t *testing.T) {
	dist := []models.BudgetShare{
		{Category: models.CategoryLivingRoom, Amount: 6000},
		{Category: models.CategoryKitchen, Amount: 5000},
		{Category: models.CategoryBedroom, Amount: 5000},
		{Category: models.CategoryBathroom, Amount: 2000},
		{Category: models.CategoryOtherRooms, Amount: 2000},
	}

	chart := Build(dist, 20000, models.CurrencyUSD)
	require.Len(t, chart.Slices, 5)
	assert.Equal(t, 20000.0, chart.Total)

	assert.Equal(t, models.CategoryLivingRoom, chart.Slices[0].Category)
	assert.Equal(t, 6000.0, chart.Slices[0].Amount)
	assert.InDelta(t, 30, chart.Slices[0].Percentage, 1e-9)
	assert.Equal(t, "$6,000", chart.Slices[0].Label)

	var pct float64
	for i, s := range chart.Slices {
		assert.Equal(t, dist[i].Amount, s.Amount)
		pct += s.Percentage
	}
	assert.InDelta(t, 100, pct, 1e-9)
}

func TestBuild_PercentagesOnly(t *testing.T) {
	dist := []models.BudgetShare{
		{Category: models.CategoryLivingRoom, Percentage: 40},
		{Category: models.CategoryKitchen, Percentage: 60},
	}

	chart := Build(dist, 10000, models.CurrencyEUR)
	assert.Equal(t, 4000.0, chart.Slices[0].Amount)
	assert.Equal(t, 6000.0, chart.Slices[1].Amount)
	assert.Equal(t, "€4,000", chart.Slices[0].Label)
	assert.Equal(t, 10000.0, chart.Total)
}

func TestBuild_RescalesPercentages(t *testing.T) {
	dist := []models.BudgetShare{
		{Category: "A", Percentage: 1, Amount: 100},
		{Category: "B", Percentage: 3, Amount: 300},
	}

	chart := Build(dist, 400, models.CurrencyGBP)
	assert.InDelta(t, 25, chart.Slices[0].Percentage, 1e-9)
	assert.InDelta(t, 75, chart.Slices[1].Percentage, 1e-9)
	assert.Equal(t, 100.0, chart.Slices[0].Amount)
}

func TestBuild_Empty(t *testing.T) {
	chart := Build(nil, 1000, models.CurrencyUSD)
	assert.Empty(t, chart.Slices)
	assert.Zero(t, chart.Total)
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		currency models.Currency
		amount   float64
		want     string
	}{
		{models.CurrencyUSD, 0, "$0"},
		{models.CurrencyUSD, 999.6, "$1,000"},
		{models.CurrencyGBP, 1234567, "£1,234,567"},
		{models.CurrencyEUR, -2500, "-€2,500"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatAmount(tt.currency, tt.amount))
	}
}
