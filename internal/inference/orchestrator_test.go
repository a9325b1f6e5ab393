package inference

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvestlink/advisor/internal/artifacts"
	"github.com/harvestlink/advisor/internal/artifacts/artifactstest"
	perrors "github.com/harvestlink/advisor/internal/errors"
	"github.com/harvestlink/advisor/internal/nn"
	"github.com/harvestlink/advisor/internal/weather"
)

var fixedNow = time.Date(2026, time.February, 26, 9, 30, 0, 0, time.UTC)

func salemWeather() *weather.Static {
	return weather.NewStatic(map[string]weather.Snapshot{
		"Salem": {Temp: weather.Float(30), Humidity: weather.Float(55), Rainfall: weather.Float(900)},
	})
}

func newTestOrchestrator(t *testing.T, lookup weather.Lookup, opts ...Option) *Orchestrator {
	t.Helper()
	if lookup == nil {
		lookup = weather.NewStatic(nil)
	}
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	o, err := New(artifactstest.Store(t), lookup, opts...)
	require.NoError(t, err)
	return o
}

func TestNewLoadsCatalog(t *testing.T) {
	o := newTestOrchestrator(t, nil)

	catalog := o.Catalog()
	require.Len(t, catalog.Models, 4)
	assert.Equal(t, "Crop Recommendation", catalog.Models[0].Name)
	assert.Equal(t, "94.5%", catalog.Models[0].Score)
	assert.Equal(t, []string{"model"}, catalog.Models[0].Predictors)
	assert.Equal(t, "Price Crash", catalog.Models[2].Name)
	assert.Equal(t, []string{"model_crash", "model_price", "model_sev"}, catalog.Models[2].Predictors)
	assert.Equal(t, artifactstest.SpoilageFeatures, catalog.Models[3].Features)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(nil, weather.NewStatic(nil))
	assert.Error(t, err)

	_, err = New(artifactstest.Store(t), nil)
	assert.Error(t, err)
}

func TestNewRejectsIncompatibleArtifacts(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(fx map[string]*artifactstest.Fixture)
	}{
		{
			name: "feature order differs",
			mutate: func(fx map[string]*artifactstest.Fixture) {
				features := append([]string(nil), artifactstest.CropFeatures...)
				features[4], features[5] = features[5], features[4]
				fx[artifacts.Crop].Model.Features = features
			},
		},
		{
			name: "missing decoder",
			mutate: func(fx map[string]*artifactstest.Fixture) {
				delete(fx[artifacts.PriceCrash].Encoders, "crash_severity")
			},
		},
		{
			name: "missing categorical encoder",
			mutate: func(fx map[string]*artifactstest.Fixture) {
				delete(fx[artifacts.Demand].Encoders, "city")
			},
		},
		{
			name: "missing sub-model",
			mutate: func(fx map[string]*artifactstest.Fixture) {
				delete(fx[artifacts.PriceCrash].Model.Predictors, "model_sev")
			},
		},
		{
			name: "crop model is a regressor",
			mutate: func(fx map[string]*artifactstest.Fixture) {
				weights := make([][]float64, len(artifactstest.CropFeatures))
				for i := range weights {
					weights[i] = []float64{0}
				}
				fx[artifacts.Crop].Model.Predictors["model"] = nn.Spec{
					Type:        nn.TypeMLPRegressor,
					NumFeatures: len(artifactstest.CropFeatures),
					Layers:      []nn.LayerSpec{{Weights: weights, Bias: []float64{1}}},
				}
			},
		},
		{
			name: "unknown risk level",
			mutate: func(fx map[string]*artifactstest.Fixture) {
				fx[artifacts.Spoilage].Encoders["spoilage_risk_level"] = []string{"Critical", "Low", "Medium"}
			},
		},
		{
			name: "crop class beyond encoder",
			mutate: func(fx map[string]*artifactstest.Fixture) {
				fx[artifacts.Crop].Encoders["recommended_crop"] = []string{"Banana", "Cotton", "Groundnut"}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			fx := artifactstest.Fixtures()
			tt.mutate(fx)
			artifactstest.Write(t, dir, fx)
			store, err := artifacts.NewStore(dir)
			require.NoError(t, err)

			o, err := New(store, weather.NewStatic(nil))
			assert.Nil(t, o)
			var loadErr *perrors.ArtifactLoadError
			assert.ErrorAs(t, err, &loadErr)
		})
	}
}

func TestOnceBuildsOnce(t *testing.T) {
	store := artifactstest.Store(t)
	var builds atomic.Int32
	get := Once(func() (*Orchestrator, error) {
		builds.Add(1)
		return New(store, weather.NewStatic(nil))
	})

	var wg sync.WaitGroup
	results := make([]*Orchestrator, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o, err := get()
			assert.NoError(t, err)
			results[i] = o
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), builds.Load())
	for _, o := range results {
		assert.Same(t, results[0], o)
	}
}

func TestWeatherFallback(t *testing.T) {
	failing := weather.LookupFunc(func(ctx context.Context, district string) (weather.Snapshot, error) {
		return weather.Snapshot{}, errors.New("connection refused")
	})

	o := newTestOrchestrator(t, failing)
	res := o.AssessSpoilage(context.Background(), defaultSpoilage())
	require.NoError(t, res.Err())
	assert.Equal(t, "Salem", res.Payload.WeatherContext.District)
	assert.Nil(t, res.Payload.WeatherContext.Temp)
	// request temperature 25 is used
	assert.Equal(t, RiskMedium, res.Payload.RiskLevel)

	strict := newTestOrchestrator(t, failing, WithWeatherFallback(false))
	res = strict.AssessSpoilage(context.Background(), defaultSpoilage())
	require.False(t, res.OK())
	var lookupErr *perrors.ExternalLookupError
	assert.ErrorAs(t, res.Err(), &lookupErr)
	assert.Equal(t, "external_lookup", ErrorType(res.Err()))
}

func TestWeatherTimeout(t *testing.T) {
	hanging := weather.LookupFunc(func(ctx context.Context, district string) (weather.Snapshot, error) {
		<-ctx.Done()
		return weather.Snapshot{}, ctx.Err()
	})
	o := newTestOrchestrator(t, hanging, WithWeatherTimeout(20*time.Millisecond), WithWeatherFallback(false))

	start := time.Now()
	res := o.RecommendCrops(context.Background(), defaultCrop())
	assert.False(t, res.OK())
	assert.ErrorIs(t, res.Err(), context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

type panickingPredictor struct{}

func (panickingPredictor) Predict([]float64) (float64, error) { panic("index out of range") }

func (panickingPredictor) NumFeatures() int { return len(artifactstest.DemandFeatures) }

func (panickingPredictor) Describe() map[string]interface{} { return nil }

func TestPanicBecomesFailure(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	o.artifacts[artifacts.Demand].Predictors["model_price"] = panickingPredictor{}

	res := o.ForecastDemand(context.Background(), defaultDemand())
	require.False(t, res.OK())
	var compErr *perrors.ComputationError
	assert.ErrorAs(t, res.Err(), &compErr)
	assert.Contains(t, res.Err().Error(), "index out of range")
}

func TestErrorType(t *testing.T) {
	assert.Equal(t, "", ErrorType(nil))
	assert.Equal(t, "invalid_input", ErrorType(&perrors.InvalidInputError{Field: "demand"}))
	assert.Equal(t, "unseen_category", ErrorType(&perrors.UnseenCategoryError{Field: "city"}))
	assert.Equal(t, "computation", ErrorType(&perrors.ComputationError{Op: "x", Err: errors.New("y")}))
	assert.Equal(t, "internal", ErrorType(errors.New("other")))
}
