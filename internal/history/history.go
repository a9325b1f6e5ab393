// Package history keeps a per-farmer log of served predictions in SQLite.
package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/harvestlink/advisor/internal/metrics"
	"github.com/harvestlink/advisor/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS ai_recommendations (
	id                  TEXT PRIMARY KEY,
	farmer_id           TEXT NOT NULL,
	recommendation_type TEXT NOT NULL,
	crop_suggested      TEXT NOT NULL,
	confidence_score    REAL NOT NULL,
	reasoning           TEXT NOT NULL,
	action_taken        TEXT NOT NULL DEFAULT '',
	created_at          TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ai_recommendations_farmer ON ai_recommendations (farmer_id, created_at);

CREATE TABLE IF NOT EXISTS spoilage_checks (
	id                        TEXT PRIMARY KEY,
	farmer_id                 TEXT NOT NULL,
	crop_name                 TEXT NOT NULL,
	harvest_date              TEXT NOT NULL,
	estimated_shelf_life_days REAL NOT NULL,
	risk_level                TEXT NOT NULL,
	created_at                TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_spoilage_checks_farmer ON spoilage_checks (farmer_id, created_at);

CREATE TABLE IF NOT EXISTS price_alerts (
	id                    TEXT PRIMARY KEY,
	farmer_id             TEXT NOT NULL,
	crop_name             TEXT NOT NULL,
	alert_type            TEXT NOT NULL,
	current_price         REAL NOT NULL,
	predicted_crash_price REAL NOT NULL,
	risk_level            TEXT NOT NULL,
	created_at            TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_price_alerts_farmer ON price_alerts (farmer_id, created_at);
`

// Recommendation is one logged crop suggestion
type Recommendation struct {
	ID                 string    `db:"id" json:"id"`
	FarmerID           string    `db:"farmer_id" json:"farmer_id"`
	RecommendationType string    `db:"recommendation_type" json:"recommendation_type"`
	CropSuggested      string    `db:"crop_suggested" json:"crop_suggested"`
	ConfidenceScore    float64   `db:"confidence_score" json:"confidence_score"`
	Reasoning          string    `db:"reasoning" json:"reasoning"`
	ActionTaken        string    `db:"action_taken" json:"action_taken"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

// SpoilageCheck is one logged spoilage assessment
type SpoilageCheck struct {
	ID                     string    `db:"id" json:"id"`
	FarmerID               string    `db:"farmer_id" json:"farmer_id"`
	CropName               string    `db:"crop_name" json:"crop_name"`
	HarvestDate            string    `db:"harvest_date" json:"harvest_date"`
	EstimatedShelfLifeDays float64   `db:"estimated_shelf_life_days" json:"estimated_shelf_life_days"`
	RiskLevel              string    `db:"risk_level" json:"risk_level"`
	CreatedAt              time.Time `db:"created_at" json:"created_at"`
}

// PriceAlert is one logged price-crash assessment
type PriceAlert struct {
	ID                  string    `db:"id" json:"id"`
	FarmerID            string    `db:"farmer_id" json:"farmer_id"`
	CropName            string    `db:"crop_name" json:"crop_name"`
	AlertType           string    `db:"alert_type" json:"alert_type"`
	CurrentPrice        float64   `db:"current_price" json:"current_price"`
	PredictedCrashPrice float64   `db:"predicted_crash_price" json:"predicted_crash_price"`
	RiskLevel           string    `db:"risk_level" json:"risk_level"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
}

// FarmerHistory is everything logged for one farmer, newest first
type FarmerHistory struct {
	FarmerID        string           `json:"farmer_id"`
	Recommendations []Recommendation `json:"recommendations"`
	SpoilageChecks  []SpoilageCheck  `json:"spoilage_checks"`
	PriceAlerts     []PriceAlert     `json:"price_alerts"`
}

// Store is the SQLite-backed prediction log
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// sqlite allows one writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordCrop logs each recommendation of a crop response
func (s *Store) RecordCrop(ctx context.Context, farmerID string, resp models.CropResponse) error {
	now := s.now().UTC()
	rows := make([]Recommendation, 0, len(resp.Recommendations))
	for _, rec := range resp.Recommendations {
		rows = append(rows, Recommendation{
			ID:                 uuid.NewString(),
			FarmerID:           farmerID,
			RecommendationType: "crop",
			CropSuggested:      rec.Crop,
			ConfidenceScore:    rec.Confidence,
			Reasoning:          rec.Reasoning,
			CreatedAt:          now,
		})
	}
	if len(rows) == 0 {
		return nil
	}

	const query = `
		INSERT INTO ai_recommendations (
			id, farmer_id, recommendation_type, crop_suggested,
			confidence_score, reasoning, action_taken, created_at
		) VALUES (
			:id, :farmer_id, :recommendation_type, :crop_suggested,
			:confidence_score, :reasoning, :action_taken, :created_at
		)`
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return s.observe("ai_recommendations", err)
	}
	defer tx.Rollback()

	for _, row := range rows {
		if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
			return s.observe("ai_recommendations", err)
		}
	}
	return s.observe("ai_recommendations", tx.Commit())
}

// RecordSpoilage logs a spoilage assessment. The harvest date is derived
// from the request's days since harvest.
func (s *Store) RecordSpoilage(ctx context.Context, farmerID string, req models.SpoilageRequest, resp models.SpoilageResponse) error {
	now := s.now().UTC()
	harvest := now.Add(-time.Duration(req.DaysSinceHarvest * float64(24*time.Hour)))

	row := SpoilageCheck{
		ID:                     uuid.NewString(),
		FarmerID:               farmerID,
		CropName:               req.CropName,
		HarvestDate:            harvest.Format(time.DateOnly),
		EstimatedShelfLifeDays: resp.ShelfLifeDays,
		RiskLevel:              resp.RiskLevel,
		CreatedAt:              now,
	}

	const query = `
		INSERT INTO spoilage_checks (
			id, farmer_id, crop_name, harvest_date,
			estimated_shelf_life_days, risk_level, created_at
		) VALUES (
			:id, :farmer_id, :crop_name, :harvest_date,
			:estimated_shelf_life_days, :risk_level, :created_at
		)`
	_, err := s.db.NamedExecContext(ctx, query, row)
	return s.observe("spoilage_checks", err)
}

// RecordPriceAlert logs a price-crash assessment
func (s *Store) RecordPriceAlert(ctx context.Context, farmerID string, req models.PriceCrashRequest, resp models.PriceCrashResponse) error {
	alertType := "stable"
	if resp.CrashAlert {
		alertType = "crash"
	}

	row := PriceAlert{
		ID:                  uuid.NewString(),
		FarmerID:            farmerID,
		CropName:            req.CropName,
		AlertType:           alertType,
		CurrentPrice:        req.CurrentPrice,
		PredictedCrashPrice: resp.PredictedPrice,
		RiskLevel:           resp.RiskLevel,
		CreatedAt:           s.now().UTC(),
	}

	const query = `
		INSERT INTO price_alerts (
			id, farmer_id, crop_name, alert_type,
			current_price, predicted_crash_price, risk_level, created_at
		) VALUES (
			:id, :farmer_id, :crop_name, :alert_type,
			:current_price, :predicted_crash_price, :risk_level, :created_at
		)`
	_, err := s.db.NamedExecContext(ctx, query, row)
	return s.observe("price_alerts", err)
}

// ForFarmer returns up to limit entries of each kind for the farmer,
// newest first
func (s *Store) ForFarmer(ctx context.Context, farmerID string, limit int) (*FarmerHistory, error) {
	h := &FarmerHistory{
		FarmerID:        farmerID,
		Recommendations: []Recommendation{},
		SpoilageChecks:  []SpoilageCheck{},
		PriceAlerts:     []PriceAlert{},
	}

	if err := s.db.SelectContext(ctx, &h.Recommendations,
		`SELECT * FROM ai_recommendations WHERE farmer_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		farmerID, limit); err != nil {
		return nil, fmt.Errorf("failed to list recommendations: %w", err)
	}
	if err := s.db.SelectContext(ctx, &h.SpoilageChecks,
		`SELECT * FROM spoilage_checks WHERE farmer_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		farmerID, limit); err != nil {
		return nil, fmt.Errorf("failed to list spoilage checks: %w", err)
	}
	if err := s.db.SelectContext(ctx, &h.PriceAlerts,
		`SELECT * FROM price_alerts WHERE farmer_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		farmerID, limit); err != nil {
		return nil, fmt.Errorf("failed to list price alerts: %w", err)
	}
	return h, nil
}

func (s *Store) observe(table string, err error) error {
	if err != nil {
		metrics.HistoryWrites.WithLabelValues(table, "failure").Inc()
		return fmt.Errorf("failed to write %s: %w", table, err)
	}
	metrics.HistoryWrites.WithLabelValues(table, "success").Inc()
	return nil
}
