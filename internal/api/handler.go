package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/harvestlink/advisor/internal/history"
	"github.com/harvestlink/advisor/internal/inference"
	"github.com/harvestlink/advisor/internal/logging"
	"github.com/harvestlink/advisor/internal/models"
)

const (
	serviceName = "HarvestLink API"

	// FarmerHeader identifies whose history a prediction is logged under
	FarmerHeader = "X-Farmer-ID"

	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
	maxBodyBytes        = 1 << 20
)

// Predictor is the inference surface the handler serves
type Predictor interface {
	RecommendCrops(ctx context.Context, req models.CropRequest) inference.Result[models.CropResponse]
	ForecastDemand(ctx context.Context, req models.DemandRequest) inference.Result[models.DemandResponse]
	AssessPriceCrash(ctx context.Context, req models.PriceCrashRequest) inference.Result[models.PriceCrashResponse]
	AssessSpoilage(ctx context.Context, req models.SpoilageRequest) inference.Result[models.SpoilageResponse]
	Catalog() models.CatalogResponse
}

// History is the prediction log. A nil History disables logging and the
// history endpoint.
type History interface {
	RecordCrop(ctx context.Context, farmerID string, resp models.CropResponse) error
	RecordSpoilage(ctx context.Context, farmerID string, req models.SpoilageRequest, resp models.SpoilageResponse) error
	RecordPriceAlert(ctx context.Context, farmerID string, req models.PriceCrashRequest, resp models.PriceCrashResponse) error
	ForFarmer(ctx context.Context, farmerID string, limit int) (*history.FarmerHistory, error)
}

// Handler provides HTTP API endpoints
type Handler struct {
	predictor Predictor
	history   History
	version   string
}

// NewHandler creates a new API handler
func NewHandler(predictor Predictor, hist History, version string) *Handler {
	return &Handler{
		predictor: predictor,
		history:   hist,
		version:   version,
	}
}

// RegisterRoutes sets up all API routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.Use(requestID, accessLog)

	// Health and info
	r.HandleFunc("/health", h.handleHealth).Methods("GET")
	r.HandleFunc("/model/info", h.handleModelInfo).Methods("GET")

	// Predictions
	r.HandleFunc("/predict/crop", h.handleCrop).Methods("POST")
	r.HandleFunc("/predict/demand", h.handleDemand).Methods("POST")
	r.HandleFunc("/predict/price-crash", h.handlePriceCrash).Methods("POST")
	r.HandleFunc("/predict/spoilage", h.handleSpoilage).Methods("POST")

	// Prediction log
	r.HandleFunc("/history/{farmer_id}", h.handleHistory).Methods("GET")
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		logging.Error().Err(err).Msg("Error encoding response")
		status = http.StatusInternalServerError
		body = []byte(`{"success":false,"error":"failed to encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
	w.Write([]byte("\n"))
}

// respondError sends a JSON error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{"success": false, "error": message})
}

// respondResult sends a pipeline result with the status its error class
// maps to
func respondResult[T any](w http.ResponseWriter, res inference.Result[T]) {
	respondJSON(w, statusFor(res.Err()), res)
}

func statusFor(err error) int {
	switch inference.ErrorType(err) {
	case "":
		return http.StatusOK
	case "invalid_input", "unseen_category":
		return http.StatusUnprocessableEntity
	case "external_lookup":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody decodes a JSON object onto dst, which already holds the
// request defaults. An empty body keeps them all.
func decodeBody(r *http.Request, dst interface{}) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// handleHealth returns server health status
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, models.HealthResponse{Status: "healthy", Service: serviceName})
}

// handleModelInfo returns the loaded model catalog
func (h *Handler) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	catalog := h.predictor.Catalog()
	respondJSON(w, http.StatusOK, struct {
		models.CatalogResponse
		Version string `json:"version,omitempty"`
	}{catalog, h.version})
}

func (h *Handler) handleCrop(w http.ResponseWriter, r *http.Request) {
	req := models.DefaultCropRequest()
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res := h.predictor.RecommendCrops(r.Context(), req)
	if farmer := farmerID(r); res.OK() && farmer != "" && h.history != nil {
		logWrite("crop", farmer, h.history.RecordCrop(r.Context(), farmer, res.Payload))
	}
	respondResult(w, res)
}

func (h *Handler) handleDemand(w http.ResponseWriter, r *http.Request) {
	req := models.DefaultDemandRequest()
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	respondResult(w, h.predictor.ForecastDemand(r.Context(), req))
}

func (h *Handler) handlePriceCrash(w http.ResponseWriter, r *http.Request) {
	req := models.DefaultPriceCrashRequest()
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res := h.predictor.AssessPriceCrash(r.Context(), req)
	if farmer := farmerID(r); res.OK() && farmer != "" && h.history != nil {
		logWrite("price_crash", farmer, h.history.RecordPriceAlert(r.Context(), farmer, req, res.Payload))
	}
	respondResult(w, res)
}

func (h *Handler) handleSpoilage(w http.ResponseWriter, r *http.Request) {
	req := models.DefaultSpoilageRequest()
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res := h.predictor.AssessSpoilage(r.Context(), req)
	if farmer := farmerID(r); res.OK() && farmer != "" && h.history != nil {
		logWrite("spoilage", farmer, h.history.RecordSpoilage(r.Context(), farmer, req, res.Payload))
	}
	respondResult(w, res)
}

// handleHistory returns the farmer's logged predictions, newest first
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		respondError(w, http.StatusServiceUnavailable, "prediction history is disabled")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxHistoryLimit))
			return
		}
		limit = n
	}

	hist, err := h.history.ForFarmer(r.Context(), mux.Vars(r)["farmer_id"], limit)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to read prediction history")
		respondError(w, http.StatusInternalServerError, "failed to read prediction history")
		return
	}
	respondJSON(w, http.StatusOK, hist)
}

func farmerID(r *http.Request) string {
	return r.Header.Get(FarmerHeader)
}

// logWrite reports a failed history write. The prediction is still served.
func logWrite(pipeline, farmer string, err error) {
	if err != nil {
		logging.Warn().Err(err).
			Str("pipeline", pipeline).
			Str("farmer_id", farmer).
			Msg("Failed to log prediction")
	}
}
