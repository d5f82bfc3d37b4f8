package invoices

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, ledger *Ledger) {
	r.Get("/invoices", listInvoicesHandler(ledger))
}

// listInvoicesHandler godoc
// @Summary Listar facturas
// @Tags invoices
// @Produce json
// @Param appointmentId query string false "Filtra por cita"
// @Param patientId query string false "Filtra por paciente"
// @Success 200 {array} Invoice
// @Router /invoices [get]
func listInvoicesHandler(ledger *Ledger) http.HandlerFunc {
	// Filtros opcionales: ?appointmentId= o ?patientId=
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			items []Invoice
			err   error
		)
		q := r.URL.Query()
		switch {
		case strings.TrimSpace(q.Get("appointmentId")) != "":
			items, err = ledger.ListByAppointment(r.Context(), q.Get("appointmentId"))
		case strings.TrimSpace(q.Get("patientId")) != "":
			items, err = ledger.ListByPatient(r.Context(), q.Get("patientId"))
		default:
			items, err = ledger.List(r.Context())
		}
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// para evitar crear paquetes/helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
