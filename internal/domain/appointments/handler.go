package appointments

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"dental-clinic/internal/domain/invoices"
)

func RegisterRoutes(r chi.Router, s *Scheduler) {
	r.Post("/appointments", createAppointmentHandler(s))
	r.Get("/appointments", listAppointmentsHandler(s))
	r.Get("/appointments/{appointmentID}", getAppointmentHandler(s))
	r.Patch("/appointments/{appointmentID}/status", updateStatusHandler(s))
	r.Put("/appointments/{appointmentID}/schedule", rescheduleHandler(s))
	r.Delete("/appointments/{appointmentID}", deleteAppointmentHandler(s))
	r.Post("/appointments/{appointmentID}/payments", registerPaymentHandler(s))

	r.Get("/treatments", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, Treatments())
	})

	// Sala de espera: por defecto, hoy
	r.Get("/waiting-room", waitingRoomHandler(s))

	// Agenda del día
	r.Get("/calendar", calendarHandler(s))
	r.Post("/calendar/slot", chooseSlotHandler(s))
	r.Get("/calendar/draft", draftHandler(s))
}

type updateStatusRequest struct {
	Status Status `json:"status"`
}

type rescheduleRequest struct {
	Date  string `json:"date"`
	Start string `json:"start"`
	End   string `json:"end"`
}

type paymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method"`
}

type paymentResponse struct {
	Appointment appointmentResponse `json:"appointment"`
	Invoice     invoices.Invoice    `json:"invoice"`
}

type slotRequest struct {
	Date  string `json:"date"`
	Start string `json:"start"`
}

type appointmentResponse struct {
	Appointment
	Balance decimal.Decimal `json:"balance"`
}

// createAppointmentHandler godoc
// @Summary Crear cita
// @Description Agenda una cita. Si el paciente no existe por nombre se crea; el tratamiento queda en su historial con el id de la cita.
// @Tags appointments
// @Accept json
// @Produce json
// @Param X-Client-ID header string false "Identificador del cliente que escribe"
// @Param payload body CreateInput true "Datos de la cita; date YYYY-MM-DD, start/end HH:MM"
// @Success 201 {object} appointmentResponse
// @Failure 400 {string} string "invalid json / datos inválidos"
// @Failure 409 {string} string "solapamiento"
// @Router /appointments [post]
func createAppointmentHandler(s *Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateInput
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		a, err := s.Create(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toResponse(a))
	}
}

// listAppointmentsHandler godoc
// @Summary Listar citas
// @Tags appointments
// @Produce json
// @Param date query string false "Filtra por día (YYYY-MM-DD)"
// @Param patientId query string false "Filtra por paciente"
// @Success 200 {array} appointmentResponse
// @Router /appointments [get]
func listAppointmentsHandler(s *Scheduler) http.HandlerFunc {
	// Filtros opcionales: ?date=YYYY-MM-DD o ?patientId=
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			items []Appointment
			err   error
		)
		q := r.URL.Query()
		switch {
		case strings.TrimSpace(q.Get("date")) != "":
			items, err = s.ListByDate(r.Context(), strings.TrimSpace(q.Get("date")))
		case strings.TrimSpace(q.Get("patientId")) != "":
			items, err = s.ListByPatient(r.Context(), strings.TrimSpace(q.Get("patientId")))
		default:
			items, err = s.List(r.Context())
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponses(items))
	}
}

// getAppointmentHandler godoc
// @Summary Obtener cita
// @Tags appointments
// @Produce json
// @Param appointmentID path string true "ID de la cita"
// @Success 200 {object} appointmentResponse
// @Failure 404 {string} string "not found"
// @Router /appointments/{appointmentID} [get]
func getAppointmentHandler(s *Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := s.Get(r.Context(), chi.URLParam(r, "appointmentID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(a))
	}
}

// updateStatusHandler godoc
// @Summary Cambiar estado de la cita
// @Tags appointments
// @Accept json
// @Produce json
// @Param appointmentID path string true "ID de la cita"
// @Param payload body updateStatusRequest true "Nuevo estado"
// @Success 200 {object} appointmentResponse
// @Failure 400 {string} string "estado inválido"
// @Failure 404 {string} string "not found"
// @Router /appointments/{appointmentID}/status [patch]
func updateStatusHandler(s *Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		a, err := s.UpdateStatus(r.Context(), chi.URLParam(r, "appointmentID"), req.Status)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(a))
	}
}

// rescheduleHandler godoc
// @Summary Reprogramar cita
// @Tags appointments
// @Accept json
// @Produce json
// @Param appointmentID path string true "ID de la cita"
// @Param payload body rescheduleRequest true "Nuevo horario"
// @Success 200 {object} appointmentResponse
// @Failure 400 {string} string "horario inválido"
// @Failure 404 {string} string "not found"
// @Failure 409 {string} string "solapamiento"
// @Router /appointments/{appointmentID}/schedule [put]
func rescheduleHandler(s *Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req rescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		a, err := s.Reschedule(r.Context(), chi.URLParam(r, "appointmentID"), req.Date, req.Start, req.End)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(a))
	}
}

// deleteAppointmentHandler godoc
// @Summary Eliminar cita
// @Tags appointments
// @Param appointmentID path string true "ID de la cita"
// @Success 204
// @Failure 404 {string} string "not found"
// @Router /appointments/{appointmentID} [delete]
func deleteAppointmentHandler(s *Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.Delete(r.Context(), chi.URLParam(r, "appointmentID")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// registerPaymentHandler godoc
// @Summary Registrar pago
// @Description Suma el importe a lo pagado y emite una factura. La cita se guarda antes que la factura.
// @Tags appointments
// @Accept json
// @Produce json
// @Param appointmentID path string true "ID de la cita"
// @Param payload body paymentRequest true "Importe y método"
// @Success 201 {object} paymentResponse
// @Failure 400 {string} string "importe inválido"
// @Failure 404 {string} string "not found"
// @Router /appointments/{appointmentID}/payments [post]
func registerPaymentHandler(s *Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req paymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		a, inv, err := s.RegisterPayment(r.Context(), chi.URLParam(r, "appointmentID"), req.Amount, req.Method)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, paymentResponse{Appointment: toResponse(a), Invoice: inv})
	}
}

// waitingRoomHandler godoc
// @Summary Sala de espera del día
// @Tags appointments
// @Produce json
// @Param date query string false "Día (YYYY-MM-DD); por defecto hoy"
// @Success 200 {array} appointmentResponse
// @Router /waiting-room [get]
func waitingRoomHandler(s *Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := strings.TrimSpace(r.URL.Query().Get("date"))
		if date == "" {
			date = s.Today()
		}
		items, err := s.WaitingRoom(r.Context(), date)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponses(items))
	}
}

// calendarHandler godoc
// @Summary Calendario del día
// @Tags calendar
// @Produce json
// @Param date query string false "Día (YYYY-MM-DD)"
// @Success 200 {array} CalendarEntry
// @Router /calendar [get]
func calendarHandler(s *Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := strings.TrimSpace(r.URL.Query().Get("date"))
		if date == "" {
			date = s.Today()
		}
		entries, err := s.Calendar(r.Context(), date)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

// chooseSlotHandler godoc
// @Summary Elegir hueco
// @Tags calendar
// @Accept json
// @Produce json
// @Param payload body slotRequest true "Día y hora de inicio"
// @Success 202
// @Failure 400 {string} string "fuera de horario"
// @Router /calendar/slot [post]
func chooseSlotHandler(s *Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req slotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if err := s.ChooseSlot(r.Context(), req.Date, req.Start); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

// draftHandler godoc
// @Summary Borrador de cita pendiente
// @Tags calendar
// @Produce json
// @Success 200 {object} CreateInput
// @Failure 404 {string} string "no slot chosen"
// @Router /calendar/draft [get]
func draftHandler(s *Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		d, ok := s.Draft()
		if !ok {
			http.Error(w, "no slot chosen", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

func toResponse(a Appointment) appointmentResponse {
	return appointmentResponse{Appointment: a, Balance: a.Balance()}
}

func toResponses(items []Appointment) []appointmentResponse {
	out := make([]appointmentResponse, 0, len(items))
	for _, a := range items {
		out = append(out, toResponse(a))
	}
	return out
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrOutsideWindow), errors.Is(err, invoices.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "appointment not found", http.StatusNotFound)
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
