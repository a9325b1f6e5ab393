package inference

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/harvestlink/advisor/internal/errors"
	"github.com/harvestlink/advisor/internal/models"
	"github.com/harvestlink/advisor/internal/weather"
)

func defaultCrop() models.CropRequest { return models.DefaultCropRequest() }

func defaultDemand() models.DemandRequest { return models.DefaultDemandRequest() }

func defaultPriceCrash() models.PriceCrashRequest { return models.DefaultPriceCrashRequest() }

func defaultSpoilage() models.SpoilageRequest { return models.DefaultSpoilageRequest() }

func TestDefaultsNeverFail(t *testing.T) {
	o := newTestOrchestrator(t, salemWeather())
	ctx := context.Background()

	assert.NoError(t, o.RecommendCrops(ctx, defaultCrop()).Err())
	assert.NoError(t, o.ForecastDemand(ctx, defaultDemand()).Err())
	assert.NoError(t, o.AssessPriceCrash(ctx, defaultPriceCrash()).Err())
	assert.NoError(t, o.AssessSpoilage(ctx, defaultSpoilage()).Err())
}

func TestRecommendCropsScenario(t *testing.T) {
	o := newTestOrchestrator(t, salemWeather())

	req := defaultCrop()
	req.District = "Salem"
	req.SoilType = "Loamy"
	req.WaterAvailability = "High"

	res := o.RecommendCrops(context.Background(), req)
	require.NoError(t, res.Err())

	recs := res.Payload.Recommendations
	require.Len(t, recs, 3)

	// rainfall 900 and temperature 30 come from the weather, not the request
	assert.Equal(t, "Cotton", recs[0].Crop)
	assert.Equal(t, 33.33, recs[0].Confidence)
	assert.Equal(t, "Groundnut", recs[1].Crop)
	assert.Equal(t, 27.08, recs[1].Confidence)
	assert.Equal(t, "Turmeric", recs[2].Crop)
	assert.Equal(t, 21.88, recs[2].Confidence)

	yield := regexp.MustCompile(`^(1[5-9]|[2-4][0-9]) tons/acre$`)
	margin := regexp.MustCompile(`^(2[0-9]|3[0-9]|4[0-4])%$`)
	for i, rec := range recs {
		assert.Contains(t, rec.Reasoning, "30")
		assert.Contains(t, rec.Reasoning, "Loamy")
		assert.Equal(t,
			"Based on real-time weather (30°C), current Loamy soil and High water access, "+rec.Crop+" shows high suitability.",
			rec.Reasoning)
		assert.Regexp(t, yield, rec.ExpectedYield)
		assert.Regexp(t, margin, rec.ProfitMargin)
		assert.GreaterOrEqual(t, rec.Confidence, 0.0)
		assert.LessOrEqual(t, rec.Confidence, 100.0)
		if i > 0 {
			assert.LessOrEqual(t, rec.Confidence, recs[i-1].Confidence)
		}
	}

	assert.Equal(t, 30.0, res.Payload.WeatherContext.TempOr(0))
	assert.Equal(t, "2026-02-26T09:30:00.000000", res.Payload.Timestamp)
}

func TestRecommendCropsUsesRequestWithoutWeather(t *testing.T) {
	o := newTestOrchestrator(t, nil)

	// request rainfall 1000 > 950 and temperature 28 <= 29.5
	res := o.RecommendCrops(context.Background(), defaultCrop())
	require.NoError(t, res.Err())

	recs := res.Payload.Recommendations
	require.Len(t, recs, 3)
	assert.Equal(t, "Rice", recs[0].Crop)
	assert.Contains(t, recs[0].Reasoning, "(28°C)")
}

func TestTopKKeepsClassOrderOnTies(t *testing.T) {
	assert.Equal(t, []int{1, 3, 0}, topK([]float64{0.2, 0.3, 0.2, 0.3, 0.0}, 3))
	assert.Equal(t, []int{0, 1, 2}, topK([]float64{0.25, 0.25, 0.25, 0.25}, 3))
	assert.Equal(t, []int{1, 0}, topK([]float64{0.1, 0.9}, 3))
}

func TestForecastDemand(t *testing.T) {
	o := newTestOrchestrator(t, nil)

	res := o.ForecastDemand(context.Background(), defaultDemand())
	require.NoError(t, res.Err())

	forecast := res.Payload.Forecast
	require.Len(t, forecast, 30)
	assert.Equal(t, "Tomato", res.Payload.CropName)
	assert.Equal(t, "Chennai", res.Payload.Market)
	assert.Equal(t, "2026-02-26", forecast[0].Day)

	prev, err := time.Parse(time.DateOnly, forecast[0].Day)
	require.NoError(t, err)
	for i, p := range forecast {
		if i%7 == 0 {
			assert.Equal(t, 612.5, p.PredictedDemandKg, "day %d", i)
		} else {
			assert.Equal(t, 480.25, p.PredictedDemandKg, "day %d", i)
		}
		assert.Equal(t, 33.5, p.PredictedPriceRs)

		if i == 0 {
			continue
		}
		day, err := time.Parse(time.DateOnly, p.Day)
		require.NoError(t, err)
		assert.Equal(t, prev.AddDate(0, 0, 1), day)
		prev = day
	}
	assert.Equal(t, "2026-03-01", forecast[3].Day)
}

func TestDemandSeriesStopsEarly(t *testing.T) {
	o := newTestOrchestrator(t, nil)

	var days []string
	for p, err := range o.DemandSeries(context.Background(), defaultDemand()) {
		require.NoError(t, err)
		days = append(days, p.Day)
		if len(days) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"2026-02-26", "2026-02-27"}, days)

	// restartable
	n := 0
	for range o.DemandSeries(context.Background(), defaultDemand()) {
		n++
	}
	assert.Equal(t, 30, n)
}

func TestForecastDemandUnseenCity(t *testing.T) {
	o := newTestOrchestrator(t, nil)

	req := defaultDemand()
	req.MarketLocation = "Atlantis"
	res := o.ForecastDemand(context.Background(), req)
	require.False(t, res.OK())

	var unseen *perrors.UnseenCategoryError
	require.ErrorAs(t, res.Err(), &unseen)
	assert.Equal(t, "city", unseen.Field)
	assert.Equal(t, "Atlantis", unseen.Value)
}

func TestAssessPriceCrash(t *testing.T) {
	o := newTestOrchestrator(t, nil)

	tests := []struct {
		name   string
		supply float64
		demand float64
		want   models.PriceCrashResponse
	}{
		{"defaults crash with medium severity", 1000, 800,
			models.PriceCrashResponse{RiskLevel: "Medium", CrashProbability: 0.85, PredictedPrice: 24, CrashAlert: true}},
		{"glut crashes hard", 3000, 800,
			models.PriceCrashResponse{RiskLevel: "High", CrashProbability: 0.85, PredictedPrice: 24, CrashAlert: true}},
		{"balanced market", 500, 800,
			models.PriceCrashResponse{RiskLevel: "Low", CrashProbability: 0.15, PredictedPrice: 24, CrashAlert: false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := defaultPriceCrash()
			req.Supply = tt.supply
			req.Demand = tt.demand

			res := o.AssessPriceCrash(context.Background(), req)
			require.NoError(t, res.Err())
			assert.Equal(t, tt.want, res.Payload)

			if res.Payload.CrashAlert {
				assert.Equal(t, 0.85, res.Payload.CrashProbability)
			} else {
				assert.Equal(t, 0.15, res.Payload.CrashProbability)
			}
		})
	}
}

func TestAssessPriceCrashZeroDemand(t *testing.T) {
	o := newTestOrchestrator(t, nil)

	req := defaultPriceCrash()
	req.Supply = 1000
	req.Demand = 0

	res := o.AssessPriceCrash(context.Background(), req)
	require.False(t, res.OK())
	var invalid *perrors.InvalidInputError
	require.ErrorAs(t, res.Err(), &invalid)
	assert.Equal(t, "demand", invalid.Field)
}

func TestAssessPriceCrashRejectsNegatives(t *testing.T) {
	o := newTestOrchestrator(t, nil)

	req := defaultPriceCrash()
	req.Supply = -5

	res := o.AssessPriceCrash(context.Background(), req)
	var invalid *perrors.InvalidInputError
	require.ErrorAs(t, res.Err(), &invalid)
	assert.Equal(t, "supply", invalid.Field)
}

func TestAssessSpoilage(t *testing.T) {
	tests := []struct {
		name     string
		snapshot *weather.Snapshot
		mutate   func(*models.SpoilageRequest)
		risk     string
		days     float64
		advice   string
	}{
		{
			name:   "defaults",
			risk:   RiskMedium,
			days:   5,
			advice: "Ensure cold chain maintenance and sell within 48 hours.",
		},
		{
			name:     "cool weather overrides storage temperature",
			snapshot: &weather.Snapshot{Temp: weather.Float(18), Humidity: weather.Float(70)},
			risk:     RiskLow,
			days:     6.4,
			advice:   "Safe for local storage. Monitor quality daily.",
		},
		{
			name:   "old lot in the heat",
			mutate: func(r *models.SpoilageRequest) { r.DaysSinceHarvest = 20 },
			risk:   RiskHigh,
			days:   0,
			advice: "High risk due to 25°C temperature. Sell immediately or process into value-added products.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lookup := weather.NewStatic(nil)
			if tt.snapshot != nil {
				lookup.Set("Salem", *tt.snapshot)
			}
			o := newTestOrchestrator(t, lookup)

			req := defaultSpoilage()
			if tt.mutate != nil {
				tt.mutate(&req)
			}
			res := o.AssessSpoilage(context.Background(), req)
			require.NoError(t, res.Err())

			assert.Equal(t, tt.risk, res.Payload.RiskLevel)
			assert.Equal(t, tt.days, res.Payload.ShelfLifeDays)
			assert.Equal(t, tt.advice, res.Payload.Recommendations)
			assert.GreaterOrEqual(t, res.Payload.ShelfLifeDays, 0.0)
			assert.Contains(t, []string{RiskLow, RiskMedium, RiskHigh}, res.Payload.RiskLevel)
		})
	}
}

func TestUnseenCategoryFailsEveryPipeline(t *testing.T) {
	o := newTestOrchestrator(t, salemWeather())
	ctx := context.Background()

	crop := defaultCrop()
	crop.SoilType = "Volcanic"
	demand := defaultDemand()
	demand.CropName = "Dragonfruit"
	crash := defaultPriceCrash()
	crash.District = "Springfield"
	spoil := defaultSpoilage()
	spoil.StorageMethod = "Freezer"

	for name, err := range map[string]error{
		"crop":        o.RecommendCrops(ctx, crop).Err(),
		"demand":      o.ForecastDemand(ctx, demand).Err(),
		"price_crash": o.AssessPriceCrash(ctx, crash).Err(),
		"spoilage":    o.AssessSpoilage(ctx, spoil).Err(),
	} {
		var unseen *perrors.UnseenCategoryError
		assert.ErrorAs(t, err, &unseen, name)
		assert.Equal(t, "unseen_category", ErrorType(err), name)
	}
}

func TestConcurrentPredictions(t *testing.T) {
	o := newTestOrchestrator(t, salemWeather())
	ctx := context.Background()

	done := make(chan struct{})
	for i := 0; i < 16; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			assert.True(t, o.RecommendCrops(ctx, defaultCrop()).OK())
			assert.True(t, o.AssessSpoilage(ctx, defaultSpoilage()).OK())
		}()
	}
	for i := 0; i < 16; i++ {
		<-done
	}
}
