package inference

import (
	"context"
	"iter"
	"time"

	"github.com/harvestlink/advisor/internal/artifacts"
	"github.com/harvestlink/advisor/internal/models"
)

const forecastDays = 30

var demandSchema = schema{
	layout: []string{
		"vegetable_name", "month", "year", "prev_demand_kg", "prev_price_rs",
		"festival_week", "school_holiday", "season", "city", "rainfall_mm",
		"temperature", "supply_volume_kg",
	},
	categorical: []string{"vegetable_name", "city", "season"},
	regressors:  []string{"model_demand", "model_price"},
}

// ForecastDemand predicts daily demand and price for the next 30 days
// starting today.
func (o *Orchestrator) ForecastDemand(ctx context.Context, req models.DemandRequest) Result[models.DemandResponse] {
	return run(o, artifacts.Demand, func() (models.DemandResponse, error) {
		if err := validateRequest(req); err != nil {
			return models.DemandResponse{}, err
		}

		forecast := make([]models.ForecastPoint, 0, forecastDays)
		for point, err := range o.DemandSeries(ctx, req) {
			if err != nil {
				return models.DemandResponse{}, err
			}
			forecast = append(forecast, point)
		}

		return models.DemandResponse{
			Forecast: forecast,
			CropName: req.CropName,
			Market:   req.MarketLocation,
		}, nil
	})
}

// DemandSeries lazily yields one forecast point per day, starting at the
// current date. Each iteration recomputes the series; it stops after the
// first error or when ctx is done.
func (o *Orchestrator) DemandSeries(ctx context.Context, req models.DemandRequest) iter.Seq2[models.ForecastPoint, error] {
	return func(yield func(models.ForecastPoint, error) bool) {
		a := o.artifacts[artifacts.Demand]
		start := o.now()

		for i := 0; i < forecastDays; i++ {
			if err := ctx.Err(); err != nil {
				yield(models.ForecastPoint{}, err)
				return
			}

			day := start.AddDate(0, 0, i)
			point, err := demandPoint(a, req, day, i)
			if !yield(point, err) || err != nil {
				return
			}
		}
	}
}

func demandPoint(a *artifacts.Artifact, req models.DemandRequest, day time.Time, i int) (models.ForecastPoint, error) {
	// every 7th day stands in for a festival week until calendar data exists
	festival := 0.0
	if i%7 == 0 {
		festival = 1
	}

	v := featureVector{}.
		cat("vegetable_name", req.CropName).
		num("month", float64(day.Month())).
		num("year", float64(day.Year())).
		num("prev_demand_kg", req.Supply).
		num("prev_price_rs", req.CurrentPrice).
		num("festival_week", festival).
		num("school_holiday", 0).
		cat("season", "Summer").
		cat("city", req.MarketLocation).
		num("rainfall_mm", 10).
		num("temperature", 30).
		num("supply_volume_kg", req.Supply)

	row, err := v.encode(a.Features, a.Encoders)
	if err != nil {
		return models.ForecastPoint{}, err
	}

	demand, err := predict(a, "model_demand", row)
	if err != nil {
		return models.ForecastPoint{}, err
	}
	price, err := predict(a, "model_price", row)
	if err != nil {
		return models.ForecastPoint{}, err
	}

	return models.ForecastPoint{
		Day:               day.Format(time.DateOnly),
		PredictedDemandKg: round(demand, 2),
		PredictedPriceRs:  round(price, 2),
	}, nil
}
