package artifacts_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvestlink/advisor/internal/artifacts"
	"github.com/harvestlink/advisor/internal/artifacts/artifactstest"
	perrors "github.com/harvestlink/advisor/internal/errors"
)

func TestLoadAll(t *testing.T) {
	store := artifactstest.Store(t)

	all, err := store.LoadAll(artifacts.Names...)
	require.NoError(t, err)
	require.Len(t, all, 4)

	crop := all[artifacts.Crop]
	assert.Equal(t, artifactstest.CropFeatures, crop.Features)
	_, err = crop.Classifier("model")
	assert.NoError(t, err)

	demand := all[artifacts.Demand]
	assert.Equal(t, []string{"model_demand", "model_price"}, demand.PredictorNames())
	_, err = demand.Classifier("model_price")
	assert.Error(t, err)
	_, err = demand.Predictor("model_crash")
	assert.Error(t, err)

	code, err := all[artifacts.Spoilage].Encoders.Encode("storage_type", "Open Air")
	require.NoError(t, err)
	assert.Equal(t, 1, code)
}

func TestNewStoreMissingDir(t *testing.T) {
	_, err := artifacts.NewStore(filepath.Join(t.TempDir(), "nope"))
	var loadErr *perrors.ArtifactLoadError
	assert.ErrorAs(t, err, &loadErr)
}

func TestLoadFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(t *testing.T, dir string, fx map[string]*artifactstest.Fixture)
	}{
		{
			name: "missing encoder file",
			mutate: func(t *testing.T, dir string, _ map[string]*artifactstest.Fixture) {
				require.NoError(t, os.Remove(filepath.Join(dir, "crash_encoders.json")))
			},
		},
		{
			name: "malformed model file",
			mutate: func(t *testing.T, dir string, _ map[string]*artifactstest.Fixture) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "spoilage_model.json"), []byte("{"), 0644))
			},
		},
		{
			name: "predictor width disagrees with features",
			mutate: func(t *testing.T, dir string, fx map[string]*artifactstest.Fixture) {
				f := fx[artifacts.Demand]
				f.Model.Features = f.Model.Features[:5]
				artifactstest.Write(t, dir, fx)
			},
		},
		{
			name: "duplicate feature",
			mutate: func(t *testing.T, dir string, fx map[string]*artifactstest.Fixture) {
				f := fx[artifacts.Crop]
				features := append([]string(nil), f.Model.Features...)
				features[1] = "land_area"
				f.Model.Features = features
				artifactstest.Write(t, dir, fx)
			},
		},
		{
			name: "duplicate encoder class",
			mutate: func(t *testing.T, dir string, fx map[string]*artifactstest.Fixture) {
				fx[artifacts.Crop].Encoders["season"] = []string{"Summer", "Summer"}
				artifactstest.Write(t, dir, fx)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			fx := artifactstest.Fixtures()
			artifactstest.Write(t, dir, fx)
			tt.mutate(t, dir, fx)

			store, err := artifacts.NewStore(dir)
			require.NoError(t, err)

			all, err := store.LoadAll(artifacts.Names...)
			assert.Nil(t, all)
			var loadErr *perrors.ArtifactLoadError
			assert.ErrorAs(t, err, &loadErr)
		})
	}
}

func TestLoadUnknownName(t *testing.T) {
	store := artifactstest.Store(t)
	_, err := store.Load("weather")
	var loadErr *perrors.ArtifactLoadError
	assert.ErrorAs(t, err, &loadErr)
}
