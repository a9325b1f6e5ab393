package inference

import (
	"context"

	"github.com/harvestlink/advisor/internal/artifacts"
	perrors "github.com/harvestlink/advisor/internal/errors"
	"github.com/harvestlink/advisor/internal/models"
)

// The crash model only emits a flag; these stand in for its probability.
const (
	crashProbability   = 0.85
	noCrashProbability = 0.15
)

var priceCrashSchema = schema{
	layout: []string{
		"vegetable_name", "current_price_rs", "prev_week_price_rs",
		"current_supply_kg", "current_demand_kg", "supply_demand_ratio", "month",
		"festival_next_week", "rainfall_mm", "num_farmers_producing",
		"cold_storage_available", "district",
	},
	categorical: []string{"vegetable_name", "district"},
	decoders:    []string{"crash_severity"},
	regressors:  []string{"model_crash", "model_sev", "model_price"},
}

// AssessPriceCrash estimates whether the crop's price is about to crash
func (o *Orchestrator) AssessPriceCrash(ctx context.Context, req models.PriceCrashRequest) Result[models.PriceCrashResponse] {
	return run(o, artifacts.PriceCrash, func() (models.PriceCrashResponse, error) {
		if err := validateRequest(req); err != nil {
			return models.PriceCrashResponse{}, err
		}
		if req.Demand == 0 {
			return models.PriceCrashResponse{}, &perrors.InvalidInputError{
				Field:  "demand",
				Reason: "must be non-zero to compute the supply/demand ratio",
			}
		}

		v := featureVector{}.
			cat("vegetable_name", req.CropName).
			num("current_price_rs", req.CurrentPrice).
			num("prev_week_price_rs", req.PrevWeekPrice).
			num("current_supply_kg", req.Supply).
			num("current_demand_kg", req.Demand).
			num("supply_demand_ratio", req.Supply/req.Demand).
			num("month", float64(o.now().Month())).
			num("festival_next_week", 0).
			num("rainfall_mm", 5).
			num("num_farmers_producing", 50).
			num("cold_storage_available", 1).
			cat("district", req.District)

		a := o.artifacts[artifacts.PriceCrash]
		row, err := v.encode(a.Features, a.Encoders)
		if err != nil {
			return models.PriceCrashResponse{}, err
		}

		flag, err := predict(a, "model_crash", row)
		if err != nil {
			return models.PriceCrashResponse{}, err
		}
		sevCode, err := predict(a, "model_sev", row)
		if err != nil {
			return models.PriceCrashResponse{}, err
		}
		severity, err := decode(a, "crash_severity", sevCode)
		if err != nil {
			return models.PriceCrashResponse{}, err
		}
		price, err := predict(a, "model_price", row)
		if err != nil {
			return models.PriceCrashResponse{}, err
		}

		alert := flag != 0
		resp := models.PriceCrashResponse{
			RiskLevel:        "Low",
			CrashProbability: noCrashProbability,
			PredictedPrice:   round(price, 2),
			CrashAlert:       alert,
		}
		if alert {
			resp.RiskLevel = severity
			resp.CrashProbability = crashProbability
		}
		return resp, nil
	})
}
