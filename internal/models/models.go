package models

import "github.com/harvestlink/advisor/internal/weather"

// CropRequest describes a farm asking for crop recommendations
type CropRequest struct {
	LandSizeAcres     float64 `json:"land_size_acres" validate:"gte=0"`
	SoilType          string  `json:"soil_type"`
	WaterAvailability string  `json:"water_availability"`
	IrrigationType    string  `json:"irrigation_type"`
	RainfallMM        float64 `json:"rainfall_mm" validate:"gte=0"`
	TemperatureAvg    float64 `json:"temperature_avg"`
	Humidity          float64 `json:"humidity" validate:"gte=0,lte=100"`
	Season            string  `json:"season"`
	PreviousCrop      string  `json:"previous_crop"`
	MarketDemandLevel string  `json:"market_demand_level"`
	District          string  `json:"district"`
}

// DefaultCropRequest returns the values used for absent fields
func DefaultCropRequest() CropRequest {
	return CropRequest{
		LandSizeAcres:     1.0,
		SoilType:          "Loamy",
		WaterAvailability: "High",
		IrrigationType:    "Borewell",
		RainfallMM:        1000,
		TemperatureAvg:    28,
		Humidity:          60,
		Season:            "Summer",
		PreviousCrop:      "Rice",
		MarketDemandLevel: "Medium",
		District:          "Salem",
	}
}

// CropRecommendation is one ranked crop suggestion. ExpectedYield and
// ProfitMargin are illustrative ranges, not model outputs.
type CropRecommendation struct {
	Crop          string  `json:"crop"`
	Confidence    float64 `json:"confidence"`
	ExpectedYield string  `json:"expected_yield"`
	ProfitMargin  string  `json:"profit_margin"`
	Reasoning     string  `json:"reasoning"`
}

// CropResponse contains the top recommendations
type CropResponse struct {
	Recommendations []CropRecommendation `json:"recommendations"`
	WeatherContext  weather.Snapshot     `json:"weather_context"`
	Timestamp       string               `json:"timestamp"`
}

// DemandRequest describes a market to forecast
type DemandRequest struct {
	CropName       string  `json:"crop_name"`
	CurrentPrice   float64 `json:"current_price" validate:"gte=0"`
	Supply         float64 `json:"supply" validate:"gte=0"`
	MarketLocation string  `json:"market_location"`
}

// DefaultDemandRequest returns the values used for absent fields
func DefaultDemandRequest() DemandRequest {
	return DemandRequest{
		CropName:       "Tomato",
		CurrentPrice:   30,
		Supply:         500,
		MarketLocation: "Chennai",
	}
}

// ForecastPoint is one day of a demand forecast
type ForecastPoint struct {
	Day               string  `json:"day"`
	PredictedDemandKg float64 `json:"predicted_demand_kg"`
	PredictedPriceRs  float64 `json:"predicted_price_rs"`
}

// DemandResponse contains the daily forecast
type DemandResponse struct {
	Forecast []ForecastPoint `json:"forecast"`
	CropName string          `json:"crop_name"`
	Market   string          `json:"market"`
}

// PriceCrashRequest describes current market conditions for a crop
type PriceCrashRequest struct {
	CropName      string  `json:"crop_name"`
	CurrentPrice  float64 `json:"current_price" validate:"gte=0"`
	PrevWeekPrice float64 `json:"prev_week_price" validate:"gte=0"`
	Supply        float64 `json:"supply" validate:"gte=0"`
	Demand        float64 `json:"demand" validate:"gte=0"`
	District      string  `json:"district"`
}

// DefaultPriceCrashRequest returns the values used for absent fields
func DefaultPriceCrashRequest() PriceCrashRequest {
	return PriceCrashRequest{
		CropName:      "Tomato",
		CurrentPrice:  30,
		PrevWeekPrice: 40,
		Supply:        1000,
		Demand:        800,
		District:      "Salem",
	}
}

// PriceCrashResponse is the crash risk assessment
type PriceCrashResponse struct {
	RiskLevel        string  `json:"risk_level"`
	CrashProbability float64 `json:"crash_probability"`
	PredictedPrice   float64 `json:"predicted_price"`
	CrashAlert       bool    `json:"crash_alert"`
}

// SpoilageRequest describes a harvested lot in storage or transit
type SpoilageRequest struct {
	CropName         string  `json:"crop_name"`
	District         string  `json:"district"`
	StorageTemp      float64 `json:"storage_temp"`
	Humidity         float64 `json:"humidity" validate:"gte=0,lte=100"`
	TransportHours   float64 `json:"transport_hours" validate:"gte=0"`
	DaysSinceHarvest float64 `json:"days_since_harvest" validate:"gte=0"`
	StorageMethod    string  `json:"storage_method"`
}

// DefaultSpoilageRequest returns the values used for absent fields
func DefaultSpoilageRequest() SpoilageRequest {
	return SpoilageRequest{
		CropName:         "Tomato",
		District:         "Salem",
		StorageTemp:      25,
		Humidity:         60,
		TransportHours:   5,
		DaysSinceHarvest: 1,
		StorageMethod:    "Open Air",
	}
}

// SpoilageResponse is the spoilage risk assessment
type SpoilageResponse struct {
	ShelfLifeDays   float64          `json:"shelf_life_days"`
	RiskLevel       string           `json:"risk_level"`
	Recommendations string           `json:"recommendations"`
	WeatherContext  weather.Snapshot `json:"weather_context"`
}

// ModelInfo describes one served model
type ModelInfo struct {
	Name       string   `json:"name"`
	Metric     string   `json:"metric"`
	Score      string   `json:"score"`
	Algorithm  string   `json:"algorithm"`
	Predictors []string `json:"predictors"`
	Features   []string `json:"features"`
}

// CatalogResponse lists the served models
type CatalogResponse struct {
	Models []ModelInfo `json:"models"`
}

// HealthResponse is returned by the health check
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}
