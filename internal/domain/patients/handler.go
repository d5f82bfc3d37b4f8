package patients

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

func RegisterRoutes(r chi.Router, dir *Directory) {
	r.Post("/patients", createPatientHandler(dir))
	r.Get("/patients", listPatientsHandler(dir))

	r.Get("/patients/{patientID}", getPatientHandler(dir))
	r.Patch("/patients/{patientID}", updatePatientHandler(dir))
	r.Delete("/patients/{patientID}", deletePatientHandler(dir))

	// Historial clínico
	r.Post("/patients/{patientID}/treatments", addTreatmentHandler(dir))

	// Odontograma
	r.Get("/patients/{patientID}/odontogram", odontogramHandler(dir))
	r.Post("/patients/{patientID}/findings", addFindingHandler(dir))
	r.Delete("/patients/{patientID}/findings/{findingID}", removeFindingHandler(dir))
}

type createPatientRequest struct {
	Name      string `json:"name"`
	Age       int    `json:"age"`
	BloodType string `json:"bloodType"`
	Allergy   string `json:"allergy"`
	Address   string `json:"address"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
}

type updatePatientRequest struct {
	// Punteros para PATCH real: nil = no tocar.
	Name      *string `json:"name"`
	Age       *int    `json:"age"`
	BloodType *string `json:"bloodType"`
	Allergy   *string `json:"allergy"`
	Address   *string `json:"address"`
	Phone     *string `json:"phone"`
	Email     *string `json:"email"`
}

type treatmentRequest struct {
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Tooth       int             `json:"tooth"`
	Cost        decimal.Decimal `json:"cost"`
	Status      TreatmentStatus `json:"status"`
}

type findingRequest struct {
	Tooth       int         `json:"tooth"`
	Type        FindingType `json:"type"`
	Description string      `json:"description"`
	Date        string      `json:"date"`
}

type patientResponse struct {
	Patient
	AvatarURL   string          `json:"avatarUrl"`
	TotalCost   decimal.Decimal `json:"totalCost"`
	PendingCost decimal.Decimal `json:"pendingCost"`
}

type toothResponse struct {
	Tooth    int         `json:"tooth"`
	Summary  FindingType `json:"summary,omitempty"`
	Findings []Finding   `json:"findings"`
}

// createPatientHandler godoc
// @Summary Crear paciente
// @Tags patients
// @Accept json
// @Produce json
// @Param X-Client-ID header string false "Identificador del cliente que escribe"
// @Param payload body createPatientRequest true "Datos del paciente"
// @Success 201 {object} patientResponse
// @Failure 400 {string} string "invalid json / datos inválidos"
// @Failure 409 {string} string "nombre duplicado"
// @Router /patients [post]
func createPatientHandler(dir *Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createPatientRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		p, err := dir.Create(r.Context(), CreateInput{
			Name:      req.Name,
			Age:       req.Age,
			BloodType: req.BloodType,
			Allergy:   req.Allergy,
			Address:   req.Address,
			Phone:     req.Phone,
			Email:     req.Email,
		})
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toPatientResponse(p))
	}
}

// listPatientsHandler godoc
// @Summary Listar pacientes
// @Description Sin `name` devuelve todos; con `name` busca por nombre sin distinguir mayúsculas.
// @Tags patients
// @Produce json
// @Param name query string false "Nombre exacto"
// @Success 200 {array} patientResponse
// @Failure 404 {string} string "not found"
// @Router /patients [get]
func listPatientsHandler(dir *Directory) http.HandlerFunc {
	// ?name= filtra por nombre exacto (sin distinguir mayúsculas)
	return func(w http.ResponseWriter, r *http.Request) {
		if name := strings.TrimSpace(r.URL.Query().Get("name")); name != "" {
			out := []patientResponse{}
			if p, ok := dir.FindByName(r.Context(), name); ok {
				out = append(out, toPatientResponse(p))
			}
			writeJSON(w, http.StatusOK, out)
			return
		}

		items := dir.List(r.Context())
		out := make([]patientResponse, 0, len(items))
		for _, p := range items {
			out = append(out, toPatientResponse(p))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// getPatientHandler godoc
// @Summary Obtener paciente
// @Tags patients
// @Produce json
// @Param patientID path string true "ID del paciente"
// @Success 200 {object} patientResponse
// @Failure 404 {string} string "not found"
// @Router /patients/{patientID} [get]
func getPatientHandler(dir *Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := dir.Get(r.Context(), chi.URLParam(r, "patientID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPatientResponse(p))
	}
}

// updatePatientHandler godoc
// @Summary Actualizar paciente
// @Tags patients
// @Accept json
// @Produce json
// @Param patientID path string true "ID del paciente"
// @Param payload body updatePatientRequest true "Campos a cambiar"
// @Success 200 {object} patientResponse
// @Failure 400 {string} string "datos inválidos"
// @Failure 404 {string} string "not found"
// @Router /patients/{patientID} [patch]
func updatePatientHandler(dir *Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()

		var req updatePatientRequest
		if err := dec.Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		p, err := dir.UpdateProfile(r.Context(), chi.URLParam(r, "patientID"), UpdateProfileInput{
			Name:      req.Name,
			Age:       req.Age,
			BloodType: req.BloodType,
			Allergy:   req.Allergy,
			Address:   req.Address,
			Phone:     req.Phone,
			Email:     req.Email,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPatientResponse(p))
	}
}

// deletePatientHandler godoc
// @Summary Eliminar paciente
// @Tags patients
// @Param patientID path string true "ID del paciente"
// @Success 204
// @Failure 404 {string} string "not found"
// @Router /patients/{patientID} [delete]
func deletePatientHandler(dir *Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := dir.Delete(r.Context(), chi.URLParam(r, "patientID")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// addTreatmentHandler godoc
// @Summary Añadir tratamiento
// @Tags patients
// @Accept json
// @Produce json
// @Param patientID path string true "ID del paciente"
// @Param payload body treatmentRequest true "Tratamiento"
// @Success 201 {object} patientResponse
// @Failure 400 {string} string "datos inválidos"
// @Failure 404 {string} string "not found"
// @Router /patients/{patientID}/treatments [post]
func addTreatmentHandler(dir *Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req treatmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		p, err := dir.AddTreatment(r.Context(), chi.URLParam(r, "patientID"), TreatmentInput{
			Date:        req.Date,
			Description: req.Description,
			Tooth:       req.Tooth,
			Cost:        req.Cost,
			Status:      req.Status,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toPatientResponse(p))
	}
}

// odontogramHandler godoc
// @Summary Odontograma
// @Tags odontogram
// @Produce json
// @Param patientID path string true "ID del paciente"
// @Success 200 {array} toothResponse
// @Failure 404 {string} string "not found"
// @Router /patients/{patientID}/odontogram [get]
func odontogramHandler(dir *Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := dir.Get(r.Context(), chi.URLParam(r, "patientID"))
		if err != nil {
			writeError(w, err)
			return
		}

		out := make([]toothResponse, 0, 32)
		for _, tooth := range PermanentTeeth() {
			findings := p.Findings[tooth]
			if findings == nil {
				findings = []Finding{}
			}
			summary, _ := SummaryType(findings)
			out = append(out, toothResponse{Tooth: tooth, Summary: summary, Findings: findings})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// addFindingHandler godoc
// @Summary Registrar hallazgo
// @Tags odontogram
// @Accept json
// @Produce json
// @Param patientID path string true "ID del paciente"
// @Param payload body findingRequest true "Diente, cara y tipo"
// @Success 201 {object} Finding
// @Failure 400 {string} string "diente o cara inválidos"
// @Failure 404 {string} string "not found"
// @Router /patients/{patientID}/findings [post]
func addFindingHandler(dir *Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req findingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		f, err := dir.AddFinding(r.Context(), chi.URLParam(r, "patientID"), FindingInput{
			Tooth:       req.Tooth,
			Type:        req.Type,
			Description: req.Description,
			Date:        req.Date,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, f)
	}
}

// removeFindingHandler godoc
// @Summary Quitar hallazgo
// @Tags odontogram
// @Param patientID path string true "ID del paciente"
// @Param findingID path string true "ID del hallazgo"
// @Success 204
// @Failure 404 {string} string "not found"
// @Router /patients/{patientID}/findings/{findingID} [delete]
func removeFindingHandler(dir *Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := dir.RemoveFinding(r.Context(), chi.URLParam(r, "patientID"), chi.URLParam(r, "findingID"))
		if err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func toPatientResponse(p Patient) patientResponse {
	return patientResponse{
		Patient:     p,
		AvatarURL:   AvatarURL(p.Name),
		TotalCost:   p.TotalCost(),
		PendingCost: p.PendingCost(),
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "patient not found", http.StatusNotFound)
	case errors.Is(err, ErrDuplicateName):
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
