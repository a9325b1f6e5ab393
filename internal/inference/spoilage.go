package inference

import (
	"context"
	"fmt"
	"strconv"

	"github.com/harvestlink/advisor/internal/artifacts"
	perrors "github.com/harvestlink/advisor/internal/errors"
	"github.com/harvestlink/advisor/internal/models"
)

// Risk levels produced by the spoilage model
const (
	RiskLow    = "Low"
	RiskMedium = "Medium"
	RiskHigh   = "High"
)

var spoilageSchema = schema{
	layout: []string{
		"vegetable_type", "storage_temperature", "humidity_percent",
		"transport_time_hours", "days_since_harvest", "storage_type",
		"packaging_type", "bruising_level", "initial_quality_score", "season",
		"district",
	},
	categorical: []string{"vegetable_type", "storage_type", "packaging_type", "season", "district"},
	decoders:    []string{"spoilage_risk_level"},
	regressors:  []string{"model_risk", "model_days"},
}

func checkSpoilage(a *artifacts.Artifact) error {
	if err := spoilageSchema.check(a); err != nil {
		return err
	}
	for _, level := range a.Encoders["spoilage_risk_level"].Classes() {
		switch level {
		case RiskLow, RiskMedium, RiskHigh:
		default:
			return &perrors.ArtifactLoadError{
				Name: a.Name,
				Err:  fmt.Errorf("unknown spoilage risk level %q", level),
			}
		}
	}
	return nil
}

// AssessSpoilage estimates the remaining shelf life of a harvested lot,
// using live weather for the district when available.
func (o *Orchestrator) AssessSpoilage(ctx context.Context, req models.SpoilageRequest) Result[models.SpoilageResponse] {
	return run(o, artifacts.Spoilage, func() (models.SpoilageResponse, error) {
		if err := validateRequest(req); err != nil {
			return models.SpoilageResponse{}, err
		}

		snap, err := o.weatherFor(ctx, artifacts.Spoilage, req.District)
		if err != nil {
			return models.SpoilageResponse{}, err
		}
		temp := snap.TempOr(req.StorageTemp)
		humidity := snap.HumidityOr(req.Humidity)

		// packaging, bruising, quality and season are fixed until the
		// clients collect them
		v := featureVector{}.
			cat("vegetable_type", req.CropName).
			num("storage_temperature", temp).
			num("humidity_percent", humidity).
			num("transport_time_hours", req.TransportHours).
			num("days_since_harvest", req.DaysSinceHarvest).
			cat("storage_type", req.StorageMethod).
			cat("packaging_type", "Crate").
			num("bruising_level", 1).
			num("initial_quality_score", 90).
			cat("season", "Summer").
			cat("district", req.District)

		a := o.artifacts[artifacts.Spoilage]
		row, err := v.encode(a.Features, a.Encoders)
		if err != nil {
			return models.SpoilageResponse{}, err
		}

		riskCode, err := predict(a, "model_risk", row)
		if err != nil {
			return models.SpoilageResponse{}, err
		}
		risk, err := decode(a, "spoilage_risk_level", riskCode)
		if err != nil {
			return models.SpoilageResponse{}, err
		}
		days, err := predict(a, "model_days", row)
		if err != nil {
			return models.SpoilageResponse{}, err
		}

		return models.SpoilageResponse{
			ShelfLifeDays:   round(max(days, 0), 1),
			RiskLevel:       risk,
			Recommendations: spoilageAdvice(risk, temp),
			WeatherContext:  snap,
		}, nil
	})
}

func spoilageAdvice(risk string, temp float64) string {
	switch risk {
	case RiskHigh:
		return fmt.Sprintf("High risk due to %s°C temperature. Sell immediately or process into value-added products.",
			strconv.FormatFloat(temp, 'f', -1, 64))
	case RiskMedium:
		return "Ensure cold chain maintenance and sell within 48 hours."
	default:
		return "Safe for local storage. Monitor quality daily."
	}
}
