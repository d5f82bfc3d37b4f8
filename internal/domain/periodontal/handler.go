package periodontal

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Get("/patients/{patientID}/periodontal", getChartHandler(svc))
	r.Put("/patients/{patientID}/periodontal", saveChartHandler(svc))
}

type chartResponse struct {
	Chart   Chart   `json:"chart"`
	Metrics Metrics `json:"metrics"`
}

// getChartHandler godoc
// @Summary Periodontograma
// @Tags periodontal
// @Produce json
// @Param patientID path string true "ID del paciente"
// @Success 200 {object} chartResponse
// @Failure 404 {string} string "not found"
// @Router /patients/{patientID}/periodontal [get]
func getChartHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := svc.Get(r.Context(), chi.URLParam(r, "patientID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, chartResponse{Chart: c, Metrics: ComputeMetrics(c)})
	}
}

// saveChartHandler godoc
// @Summary Guardar periodontograma
// @Tags periodontal
// @Accept json
// @Produce json
// @Param patientID path string true "ID del paciente"
// @Param payload body Chart true "Mediciones por diente"
// @Success 200 {object} chartResponse
// @Failure 400 {string} string "medición fuera de rango"
// @Failure 404 {string} string "not found"
// @Router /patients/{patientID}/periodontal [put]
func saveChartHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Chart
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		c, err := svc.Save(r.Context(), chi.URLParam(r, "patientID"), req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, chartResponse{Chart: c, Metrics: ComputeMetrics(c)})
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "patient not found", http.StatusNotFound)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// para evitar crear paquetes/helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
