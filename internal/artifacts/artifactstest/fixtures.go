// Package artifactstest writes small, hand-built artifacts that behave like
// the exported training runs, for tests.
package artifactstest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harvestlink/advisor/internal/artifacts"
	"github.com/harvestlink/advisor/internal/nn"
)

// Fixture is one model file and its encoders
type Fixture struct {
	Model    artifacts.ModelFile
	Encoders artifacts.EncoderFile
}

// Feature layouts recorded by the fixtures
var (
	CropFeatures = []string{
		"land_area", "soil_type", "water_availability", "irrigation_type",
		"rainfall_mm", "temperature_celsius", "humidity_percent", "season",
		"previous_crop", "market_demand_level", "district",
	}
	DemandFeatures = []string{
		"vegetable_name", "month", "year", "prev_demand_kg", "prev_price_rs",
		"festival_week", "school_holiday", "season", "city", "rainfall_mm",
		"temperature", "supply_volume_kg",
	}
	PriceCrashFeatures = []string{
		"vegetable_name", "current_price_rs", "prev_week_price_rs",
		"current_supply_kg", "current_demand_kg", "supply_demand_ratio", "month",
		"festival_next_week", "rainfall_mm", "num_farmers_producing",
		"cold_storage_available", "district",
	}
	SpoilageFeatures = []string{
		"vegetable_type", "storage_temperature", "humidity_percent",
		"transport_time_hours", "days_since_harvest", "storage_type",
		"packaging_type", "bruising_level", "initial_quality_score", "season",
		"district",
	}
)

var districts = []string{"Coimbatore", "Erode", "Madurai", "Salem"}

// Fixtures returns a fresh set of valid fixtures, keyed by artifact name
func Fixtures() map[string]*Fixture {
	return map[string]*Fixture{
		artifacts.Crop:       crop(),
		artifacts.Demand:     demand(),
		artifacts.PriceCrash: priceCrash(),
		artifacts.Spoilage:   spoilage(),
	}
}

// Write saves fixtures into dir
func Write(tb testing.TB, dir string, fixtures map[string]*Fixture) {
	tb.Helper()
	store, err := artifacts.NewStore(dir)
	require.NoError(tb, err)
	for name, f := range fixtures {
		require.NoError(tb, store.Save(name, f.Model, f.Encoders))
	}
}

// Store writes the valid fixtures into a temporary directory and opens it
func Store(tb testing.TB) *artifacts.Store {
	tb.Helper()
	dir := tb.TempDir()
	Write(tb, dir, Fixtures())
	store, err := artifacts.NewStore(dir)
	require.NoError(tb, err)
	return store
}

// stump splits once on feature at threshold
func stump(feature int, threshold float64, left, right []float64) nn.TreeSpec {
	return nn.TreeSpec{
		ChildrenLeft:  []int{1, -1, -1},
		ChildrenRight: []int{2, -1, -1},
		Feature:       []int{feature, -2, -2},
		Threshold:     []float64{threshold, -2, -2},
		Value:         [][]float64{sum(left, right), left, right},
	}
}

func sum(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out
}

// linear is a dense layer with one output unit and the given coefficients
func linear(n int, coef map[int]float64, bias float64) nn.LayerSpec {
	w := make([][]float64, n)
	for i := range w {
		w[i] = []float64{coef[i]}
	}
	return nn.LayerSpec{Weights: w, Bias: []float64{bias}}
}

func crop() *Fixture {
	n := len(CropFeatures)
	return &Fixture{
		Model: artifacts.ModelFile{
			Name:     artifacts.Crop,
			Features: CropFeatures,
			Predictors: map[string]nn.Spec{
				"model": {
					Type:        nn.TypeForestClassifier,
					NumFeatures: n,
					Classes:     []float64{0, 1, 2, 3, 4, 5},
					Trees: []nn.TreeSpec{
						// rainfall_mm
						stump(4, 950, []float64{2, 4, 6, 1, 0, 3}, []float64{5, 0, 1, 6, 3, 1}),
						// temperature_celsius
						stump(5, 29.5, []float64{3, 1, 2, 4, 0, 2}, []float64{1, 5, 2, 0, 1, 3}),
					},
				},
			},
		},
		Encoders: artifacts.EncoderFile{
			"soil_type":           {"Black", "Clay", "Loamy", "Red", "Sandy"},
			"water_availability":  {"High", "Low", "Medium"},
			"irrigation_type":     {"Borewell", "Canal", "Drip", "Rainfed"},
			"season":              {"Kharif", "Rabi", "Summer"},
			"previous_crop":       {"Cotton", "Groundnut", "Rice", "Sugarcane"},
			"market_demand_level": {"High", "Low", "Medium"},
			"district":            districts,
			"recommended_crop":    {"Banana", "Cotton", "Groundnut", "Rice", "Sugarcane", "Turmeric"},
		},
	}
}

func demand() *Fixture {
	n := len(DemandFeatures)
	return &Fixture{
		Model: artifacts.ModelFile{
			Name:     artifacts.Demand,
			Features: DemandFeatures,
			Predictors: map[string]nn.Spec{
				"model_demand": {
					Type:        nn.TypeForestRegressor,
					NumFeatures: n,
					// festival_week
					Trees: []nn.TreeSpec{stump(5, 0.5, []float64{480.25}, []float64{612.5})},
				},
				"model_price": {
					Type:        nn.TypeMLPRegressor,
					NumFeatures: n,
					// 1.1 * prev_price_rs + 0.5
					Layers: []nn.LayerSpec{linear(n, map[int]float64{4: 1.1}, 0.5)},
				},
			},
		},
		Encoders: artifacts.EncoderFile{
			"vegetable_name": {"Carrot", "Onion", "Potato", "Tomato"},
			"city":           {"Chennai", "Coimbatore", "Madurai"},
			"season":         {"Monsoon", "Summer", "Winter"},
		},
	}
}

func priceCrash() *Fixture {
	n := len(PriceCrashFeatures)
	return &Fixture{
		Model: artifacts.ModelFile{
			Name:     artifacts.PriceCrash,
			Features: PriceCrashFeatures,
			Predictors: map[string]nn.Spec{
				"model_crash": {
					Type:        nn.TypeForestClassifier,
					NumFeatures: n,
					Classes:     []float64{0, 1},
					// supply_demand_ratio
					Trees: []nn.TreeSpec{stump(5, 1.2, []float64{8, 2}, []float64{1, 9})},
				},
				"model_sev": {
					Type:        nn.TypeForestClassifier,
					NumFeatures: n,
					Classes:     []float64{0, 1, 2},
					// Medium up to a ratio of 2, High above
					Trees: []nn.TreeSpec{stump(5, 2.0, []float64{1, 0, 5}, []float64{6, 0, 1})},
				},
				"model_price": {
					Type:        nn.TypeMLPRegressor,
					NumFeatures: n,
					// 0.8 * current_price_rs
					Layers: []nn.LayerSpec{linear(n, map[int]float64{1: 0.8}, 0)},
				},
			},
		},
		Encoders: artifacts.EncoderFile{
			"vegetable_name": {"Carrot", "Onion", "Potato", "Tomato"},
			"district":       districts,
			"crash_severity": {"High", "Low", "Medium"},
		},
	}
}

func spoilage() *Fixture {
	n := len(SpoilageFeatures)

	hidden := make([][]float64, n)
	for i := range hidden {
		hidden[i] = []float64{0, 0}
	}
	hidden[1][0] = -0.2 // storage_temperature
	hidden[4][0] = -1   // days_since_harvest

	return &Fixture{
		Model: artifacts.ModelFile{
			Name:     artifacts.Spoilage,
			Features: SpoilageFeatures,
			Predictors: map[string]nn.Spec{
				"model_risk": {
					Type:        nn.TypeForestClassifier,
					NumFeatures: n,
					Classes:     []float64{0, 1, 2},
					// Low at or below 20C, then Medium for the first three days, High after
					Trees: []nn.TreeSpec{{
						ChildrenLeft:  []int{1, -1, 3, -1, -1},
						ChildrenRight: []int{2, -1, 4, -1, -1},
						Feature:       []int{1, -2, 4, -2, -2},
						Threshold:     []float64{20, -2, 3, -2, -2},
						Value: [][]float64{
							{7, 6, 7},
							{0, 5, 1},
							{7, 1, 6},
							{1, 1, 5},
							{6, 0, 1},
						},
					}},
				},
				"model_days": {
					Type:        nn.TypeMLPRegressor,
					NumFeatures: n,
					Activation:  "relu",
					// relu(12 - 0.2*temp - days) - 1
					Layers: []nn.LayerSpec{
						{Weights: hidden, Bias: []float64{12, 0}},
						{Weights: [][]float64{{1}, {0}}, Bias: []float64{-1}},
					},
				},
			},
		},
		Encoders: artifacts.EncoderFile{
			"vegetable_type":      {"Banana", "Carrot", "Onion", "Potato", "Tomato"},
			"storage_type":        {"Cold Storage", "Open Air", "Warehouse"},
			"packaging_type":      {"Crate", "Gunny Bag", "Plastic Bag"},
			"season":              {"Monsoon", "Summer", "Winter"},
			"district":            districts,
			"spoilage_risk_level": {"High", "Low", "Medium"},
		},
	}
}
