// Package inference turns partial farm, market and shipment inputs into
// model predictions. An Orchestrator owns the four loaded artifacts and
// serves one pipeline per artifact; artifacts are read-only after New, so
// an Orchestrator is safe for concurrent use.
package inference

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/harvestlink/advisor/internal/artifacts"
	perrors "github.com/harvestlink/advisor/internal/errors"
	"github.com/harvestlink/advisor/internal/logging"
	"github.com/harvestlink/advisor/internal/metrics"
	"github.com/harvestlink/advisor/internal/models"
	"github.com/harvestlink/advisor/internal/weather"
)

// Source supplies loaded artifacts by name
type Source interface {
	Load(name string) (*artifacts.Artifact, error)
}

// Orchestrator serves the crop, demand, price-crash and spoilage pipelines
type Orchestrator struct {
	artifacts map[string]*artifacts.Artifact
	catalog   models.CatalogResponse

	lookup         weather.Lookup
	weatherTimeout time.Duration
	fallback       bool
	now            func() time.Time
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithClock replaces time.Now, for reproducible dates
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithWeatherTimeout bounds each weather lookup
func WithWeatherTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.weatherTimeout = d
		}
	}
}

// WithWeatherFallback controls whether a failed weather lookup falls back to
// the request's own values (true) or fails the prediction (false)
func WithWeatherFallback(enabled bool) Option {
	return func(o *Orchestrator) {
		o.fallback = enabled
	}
}

type modelMeta struct {
	title     string
	metric    string
	score     string
	algorithm string
}

var catalogMeta = map[string]modelMeta{
	artifacts.Crop:       {"Crop Recommendation", "accuracy", "94.5%", "Random Forest"},
	artifacts.Demand:     {"Market Demand", "score", "99.5%", "Random Forest Regressor"},
	artifacts.PriceCrash: {"Price Crash", "recall", "91%", "Random Forest Classifier"},
	artifacts.Spoilage:   {"Spoilage Risk", "score", "95%", "Random Forest"},
}

var checks = map[string]func(*artifacts.Artifact) error{
	artifacts.Crop:       checkCrop,
	artifacts.Demand:     demandSchema.check,
	artifacts.PriceCrash: priceCrashSchema.check,
	artifacts.Spoilage:   checkSpoilage,
}

// New loads and validates all four artifacts from src. Any missing or
// malformed artifact fails construction with an ArtifactLoadError.
func New(src Source, lookup weather.Lookup, opts ...Option) (*Orchestrator, error) {
	if src == nil || lookup == nil {
		return nil, errors.New("inference: artifact source and weather lookup are required")
	}

	o := &Orchestrator{
		artifacts:      make(map[string]*artifacts.Artifact, len(artifacts.Names)),
		lookup:         lookup,
		weatherTimeout: 3 * time.Second,
		fallback:       true,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	for _, name := range artifacts.Names {
		a, err := src.Load(name)
		if err != nil {
			var loadErr *perrors.ArtifactLoadError
			if !errors.As(err, &loadErr) {
				err = &perrors.ArtifactLoadError{Name: name, Err: err}
			}
			return nil, err
		}
		if err := checks[name](a); err != nil {
			return nil, err
		}
		o.artifacts[name] = a

		meta := catalogMeta[name]
		o.catalog.Models = append(o.catalog.Models, models.ModelInfo{
			Name:       meta.title,
			Metric:     meta.metric,
			Score:      meta.score,
			Algorithm:  meta.algorithm,
			Predictors: a.PredictorNames(),
			Features:   a.Features,
		})
	}

	logging.Info().Strs("artifacts", artifacts.Names).Msg("all models and encoders loaded")
	return o, nil
}

// Once returns a function that calls build on first use and returns the
// same Orchestrator (or error) on every call after that, including
// concurrent first calls.
func Once(build func() (*Orchestrator, error)) func() (*Orchestrator, error) {
	return sync.OnceValues(build)
}

// Catalog describes the served models
func (o *Orchestrator) Catalog() models.CatalogResponse {
	return o.catalog
}

// weatherFor looks up the district's weather under the configured timeout.
// On failure it either returns an empty snapshot, so callers use the request
// values, or an ExternalLookupError.
func (o *Orchestrator) weatherFor(ctx context.Context, pipeline, district string) (weather.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, o.weatherTimeout)
	defer cancel()

	snap, err := o.lookup.Lookup(ctx, district)
	if err == nil {
		if snap.District == "" {
			snap.District = district
		}
		return snap, nil
	}

	var lookupErr *perrors.ExternalLookupError
	if !errors.As(err, &lookupErr) {
		err = &perrors.ExternalLookupError{Service: "weather", Err: err}
	}
	if !o.fallback {
		return weather.Snapshot{}, err
	}

	metrics.WeatherLookups.WithLabelValues("fallback").Inc()
	logging.Warn().
		Err(err).
		Str("pipeline", pipeline).
		Str("district", district).
		Msg("weather lookup failed, using request values")
	return weather.Snapshot{District: district}, nil
}

// run executes one pipeline, converting errors and panics into a failure
// Result and recording metrics.
func run[T any](o *Orchestrator, pipeline string, fn func() (T, error)) (res Result[T]) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res = Failure[T](&perrors.ComputationError{Op: pipeline, Err: fmt.Errorf("panic: %v", p)})
		}

		metrics.PredictionDuration.WithLabelValues(pipeline).Observe(time.Since(start).Seconds())
		if res.OK() {
			metrics.PredictionsTotal.WithLabelValues(pipeline, "success").Inc()
			return
		}
		metrics.PredictionsTotal.WithLabelValues(pipeline, "failure").Inc()
		metrics.PredictionErrors.WithLabelValues(pipeline, ErrorType(res.Err())).Inc()
		logging.Error().Err(res.Err()).Str("pipeline", pipeline).Msg("prediction failed")
	}()

	payload, err := fn()
	if err != nil {
		return Failure[T](err)
	}
	return Success(payload)
}

// ErrorType classifies an error for metrics and status mapping
func ErrorType(err error) string {
	var (
		invalid  *perrors.InvalidInputError
		unseen   *perrors.UnseenCategoryError
		lookup   *perrors.ExternalLookupError
		compute  *perrors.ComputationError
		artifact *perrors.ArtifactLoadError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &invalid):
		return "invalid_input"
	case errors.As(err, &unseen):
		return "unseen_category"
	case errors.As(err, &lookup):
		return "external_lookup"
	case errors.As(err, &artifact):
		return "artifact_load"
	case errors.As(err, &compute):
		return "computation"
	default:
		return "internal"
	}
}

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
