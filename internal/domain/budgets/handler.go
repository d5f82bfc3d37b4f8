package budgets

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Get("/patients/{patientID}/budgets", listBudgetsHandler(svc))
	r.Post("/patients/{patientID}/budgets", createBudgetHandler(svc))
	r.Get("/patients/{patientID}/budgets/{budgetID}", getBudgetHandler(svc))
	r.Put("/patients/{patientID}/budgets/{budgetID}/items", updateItemsHandler(svc))
	r.Patch("/patients/{patientID}/budgets/{budgetID}/status", setStatusHandler(svc))
	r.Post("/patients/{patientID}/budgets/{budgetID}/payments", paymentHandler(svc))
	r.Delete("/patients/{patientID}/budgets/{budgetID}", deleteBudgetHandler(svc))
}

type createBudgetRequest struct {
	Items []LineItem `json:"items"`
	Notes string     `json:"notes"`
}

type itemsRequest struct {
	Items []LineItem `json:"items"`
}

type statusRequest struct {
	Status Status `json:"status"`
}

type paymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// Total y Balance se calculan al responder; nunca se guardan.
type budgetResponse struct {
	Budget
	Total   decimal.Decimal `json:"total"`
	Balance decimal.Decimal `json:"balance"`
}

func toResponse(b Budget) budgetResponse {
	return budgetResponse{Budget: b, Total: b.Total(), Balance: b.Balance()}
}

// listBudgetsHandler godoc
// @Summary Listar presupuestos del paciente
// @Tags budgets
// @Produce json
// @Param patientID path string true "ID del paciente"
// @Success 200 {array} budgetResponse
// @Failure 404 {string} string "patient not found"
// @Router /patients/{patientID}/budgets [get]
func listBudgetsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.List(r.Context(), chi.URLParam(r, "patientID"))
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]budgetResponse, 0, len(items))
		for _, b := range items {
			out = append(out, toResponse(b))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// createBudgetHandler godoc
// @Summary Crear presupuesto
// @Tags budgets
// @Accept json
// @Produce json
// @Param patientID path string true "ID del paciente"
// @Param payload body createBudgetRequest true "Título e ítems"
// @Success 201 {object} budgetResponse
// @Failure 400 {string} string "datos inválidos"
// @Failure 404 {string} string "patient not found"
// @Router /patients/{patientID}/budgets [post]
func createBudgetHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createBudgetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		b, err := svc.Create(r.Context(), chi.URLParam(r, "patientID"), CreateInput{Items: req.Items, Notes: req.Notes})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toResponse(b))
	}
}

// getBudgetHandler godoc
// @Summary Obtener presupuesto
// @Tags budgets
// @Produce json
// @Param patientID path string true "ID del paciente"
// @Param budgetID path string true "ID del presupuesto"
// @Success 200 {object} budgetResponse
// @Failure 404 {string} string "not found"
// @Router /patients/{patientID}/budgets/{budgetID} [get]
func getBudgetHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := svc.Get(r.Context(), chi.URLParam(r, "patientID"), chi.URLParam(r, "budgetID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(b))
	}
}

// updateItemsHandler godoc
// @Summary Reemplazar ítems
// @Tags budgets
// @Accept json
// @Produce json
// @Param patientID path string true "ID del paciente"
// @Param budgetID path string true "ID del presupuesto"
// @Param payload body itemsRequest true "Ítems"
// @Success 200 {object} budgetResponse
// @Failure 400 {string} string "datos inválidos"
// @Failure 404 {string} string "not found"
// @Router /patients/{patientID}/budgets/{budgetID}/items [put]
func updateItemsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req itemsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		b, err := svc.UpdateItems(r.Context(), chi.URLParam(r, "patientID"), chi.URLParam(r, "budgetID"), req.Items)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(b))
	}
}

// setStatusHandler godoc
// @Summary Cambiar estado del presupuesto
// @Tags budgets
// @Accept json
// @Produce json
// @Param patientID path string true "ID del paciente"
// @Param budgetID path string true "ID del presupuesto"
// @Param payload body statusRequest true "Nuevo estado"
// @Success 200 {object} budgetResponse
// @Failure 400 {string} string "estado inválido"
// @Failure 404 {string} string "not found"
// @Router /patients/{patientID}/budgets/{budgetID}/status [patch]
func setStatusHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req statusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		b, err := svc.SetStatus(r.Context(), chi.URLParam(r, "patientID"), chi.URLParam(r, "budgetID"), req.Status)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(b))
	}
}

// paymentHandler godoc
// @Summary Registrar pago del presupuesto
// @Tags budgets
// @Accept json
// @Produce json
// @Param patientID path string true "ID del paciente"
// @Param budgetID path string true "ID del presupuesto"
// @Param payload body paymentRequest true "Importe"
// @Success 200 {object} budgetResponse
// @Failure 400 {string} string "importe inválido"
// @Failure 404 {string} string "not found"
// @Router /patients/{patientID}/budgets/{budgetID}/payments [post]
func paymentHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req paymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		b, err := svc.ProcessPayment(r.Context(), chi.URLParam(r, "patientID"), chi.URLParam(r, "budgetID"), req.Amount)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(b))
	}
}

// deleteBudgetHandler godoc
// @Summary Eliminar presupuesto
// @Tags budgets
// @Param patientID path string true "ID del paciente"
// @Param budgetID path string true "ID del presupuesto"
// @Success 204
// @Failure 404 {string} string "not found"
// @Router /patients/{patientID}/budgets/{budgetID} [delete]
func deleteBudgetHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Delete(r.Context(), chi.URLParam(r, "patientID"), chi.URLParam(r, "budgetID")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUnknownPatient):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrCompleted):
		http.Error(w, err.Error(), http.StatusConflict)
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
