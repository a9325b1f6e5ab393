package inference

import (
	"context"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/harvestlink/advisor/internal/errors"
	"github.com/harvestlink/advisor/internal/models"
)

func TestResultJSON(t *testing.T) {
	ok := Success(models.PriceCrashResponse{RiskLevel: "Low", CrashProbability: 0.15, PredictedPrice: 31.5})
	data, err := json.Marshal(ok)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"success":true,"risk_level":"Low","crash_probability":0.15,"predicted_price":31.5,"crash_alert":false}`,
		string(data))

	failed := Failure[models.PriceCrashResponse](&perrors.InvalidInputError{Field: "demand", Reason: "must be non-zero"})
	data, err = json.Marshal(failed)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":"invalid demand: must be non-zero"}`, string(data))
}

func TestResultJSONEmptyPayload(t *testing.T) {
	data, err := json.Marshal(Success(struct{}{}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true}`, string(data))

	_, err = json.Marshal(Success([]int{1}))
	assert.Error(t, err)
}

func TestResultJSONFromPipeline(t *testing.T) {
	o := newTestOrchestrator(t, salemWeather())

	data, err := json.Marshal(o.AssessSpoilage(context.Background(), defaultSpoilage()))
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, true, body["success"])
	assert.Contains(t, body, "shelf_life_days")
	assert.Contains(t, body, "risk_level")
	assert.Contains(t, body, "recommendations")
	assert.Equal(t, map[string]interface{}{
		"district": "Salem",
		"temp":     30.0,
		"humidity": 55.0,
		"rainfall": 900.0,
	}, body["weather_context"])
}
