package router_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dental-clinic/internal/platform/config"
	"dental-clinic/internal/router"
)

func fixedNow() time.Time { return time.Date(2026, 2, 20, 9, 0, 0, 0, time.UTC) }

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	h, err := router.NewRouter(router.Options{
		Config: config.Config{SeedPatients: true},
		Now:    fixedNow,
	})
	require.NoError(t, err)
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts
}

type patientBody struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	BloodType   string `json:"bloodType"`
	LastVisit   string `json:"lastVisit"`
	TotalCost   string `json:"totalCost"`
	PendingCost string `json:"pendingCost"`
	Treatments  []struct {
		Description   string `json:"description"`
		Status        string `json:"status"`
		AppointmentID string `json:"appointmentId"`
	} `json:"treatments"`
}

type appointmentBody struct {
	ID          string `json:"id"`
	PatientID   string `json:"patientId"`
	PatientName string `json:"patientName"`
	Status      string `json:"status"`
	Paid        string `json:"paid"`
	Balance     string `json:"balance"`
}

func TestHTTP_HealthAndMetrics(t *testing.T) {
	ts := newServer(t)

	st, body := doReq(t, ts.URL, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, st)
	assert.Equal(t, "ok", string(body))

	// Una escritura para que aparezca el contador.
	st, _ = doReq(t, ts.URL, "POST", "/session", nil)
	require.Equal(t, http.StatusOK, st)

	st, body = doReq(t, ts.URL, "GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, st)
	assert.Contains(t, string(body), "clinic_record_store_writes_total")
}

func TestHTTP_BookingFlow_SeedPatientAndWaitingRoom(t *testing.T) {
	ts := newServer(t)

	var before []patientBody
	getJSON(t, ts.URL, "/patients", &before)
	require.Len(t, before, 3)
	maria := findPatient(t, before, "María García")

	// Cita para hoy con el nombre escrito distinto: resuelve al paciente existente.
	st, body := doReq(t, ts.URL, "POST", "/appointments", map[string]any{
		"patientName": "  maría garcía ",
		"treatment":   "Empaste",
		"date":        "2026-02-20",
		"start":       "10:00",
		"end":         "10:30",
		"cost":        80,
	})
	require.Equal(t, http.StatusCreated, st, string(body))
	var appt appointmentBody
	require.NoError(t, json.Unmarshal(body, &appt))
	assert.Equal(t, maria.ID, appt.PatientID)
	assert.Equal(t, "pending", appt.Status)

	var after []patientBody
	getJSON(t, ts.URL, "/patients", &after)
	require.Len(t, after, 3, "no duplicate patient")
	maria = findPatient(t, after, "María García")
	require.Len(t, maria.Treatments, 2)
	assert.Equal(t, appt.ID, maria.Treatments[1].AppointmentID)
	assert.Equal(t, "scheduled", maria.Treatments[1].Status)
	assert.Equal(t, "2026-02-20", maria.LastVisit)
	assert.Equal(t, "80", maria.PendingCost)

	var waiting []appointmentBody
	getJSON(t, ts.URL, "/waiting-room", &waiting)
	require.Len(t, waiting, 1)
	assert.Equal(t, appt.ID, waiting[0].ID)

	// Completada sale de la sala de espera.
	st, body = doReq(t, ts.URL, "PATCH", "/appointments/"+appt.ID+"/status", map[string]any{"status": "completed"})
	require.Equal(t, http.StatusOK, st, string(body))
	getJSON(t, ts.URL, "/waiting-room", &waiting)
	assert.Empty(t, waiting)
}

func TestHTTP_BookingCreatesNewPatient(t *testing.T) {
	ts := newServer(t)

	st, body := doReq(t, ts.URL, "POST", "/appointments", map[string]any{
		"patientName": "Andrés Ruiz",
		"phone":       "+34 611 000 000",
		"date":        "2026-02-21",
		"start":       "12:00",
		"cost":        40,
	})
	require.Equal(t, http.StatusCreated, st, string(body))

	var found []patientBody
	getJSON(t, ts.URL, "/patients?name=andr%C3%A9s%20ruiz", &found)
	require.Len(t, found, 1)
	assert.Equal(t, "Desconocido", found[0].BloodType)
	require.Len(t, found[0].Treatments, 1)
	assert.Equal(t, "Revisión", found[0].Treatments[0].Description)
}

func TestHTTP_PaymentIssuesInvoice(t *testing.T) {
	ts := newServer(t)

	st, body := doReq(t, ts.URL, "POST", "/appointments", map[string]any{
		"patientName": "Carlos López",
		"treatment":   "Limpieza Dental",
		"date":        "2026-02-20",
		"start":       "09:00",
		"cost":        100,
	})
	require.Equal(t, http.StatusCreated, st, string(body))
	var appt appointmentBody
	require.NoError(t, json.Unmarshal(body, &appt))

	st, body = doReq(t, ts.URL, "POST", "/appointments/"+appt.ID+"/payments", map[string]any{
		"amount": 60,
		"method": "Efectivo",
	})
	require.Equal(t, http.StatusCreated, st, string(body))
	var paid struct {
		Appointment appointmentBody `json:"appointment"`
		Invoice     struct {
			Number        string `json:"number"`
			AppointmentID string `json:"appointmentId"`
		} `json:"invoice"`
	}
	require.NoError(t, json.Unmarshal(body, &paid))
	assert.Equal(t, "60", paid.Appointment.Paid)
	assert.Equal(t, "40", paid.Appointment.Balance)
	assert.True(t, strings.HasPrefix(paid.Invoice.Number, "F-"))
	assert.True(t, strings.HasSuffix(paid.Invoice.Number, "-0001"))
	assert.Equal(t, appt.ID, paid.Invoice.AppointmentID)

	st, _ = doReq(t, ts.URL, "POST", "/appointments/"+appt.ID+"/payments", map[string]any{"amount": 0})
	assert.Equal(t, http.StatusBadRequest, st)

	var invs []map[string]any
	getJSON(t, ts.URL, "/invoices?appointmentId="+appt.ID, &invs)
	assert.Len(t, invs, 1)

	var feed []map[string]any
	getJSON(t, ts.URL, "/notifications", &feed)
	assert.NotEmpty(t, feed)
}

func TestHTTP_BudgetLifecycle(t *testing.T) {
	ts := newServer(t)
	var list []patientBody
	getJSON(t, ts.URL, "/patients", &list)
	lucia := findPatient(t, list, "Lucía Fernández")
	base := "/patients/" + lucia.ID + "/budgets"

	st, body := doReq(t, ts.URL, "POST", base, map[string]any{
		"items": []map[string]any{
			{"description": "Implante", "unitPrice": "900", "quantity": 1},
			{"description": "Corona", "unitPrice": "150", "quantity": 2},
		},
	})
	require.Equal(t, http.StatusCreated, st, string(body))
	var b struct {
		ID      string `json:"id"`
		Number  string `json:"number"`
		Status  string `json:"status"`
		Total   string `json:"total"`
		Balance string `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(body, &b))
	assert.Equal(t, "P-1", b.Number)
	assert.Equal(t, "1200", b.Total)

	st, body = doReq(t, ts.URL, "POST", base+"/"+b.ID+"/payments", map[string]any{"amount": 1200})
	require.Equal(t, http.StatusOK, st, string(body))
	require.NoError(t, json.Unmarshal(body, &b))
	assert.Equal(t, "Completado", b.Status)
	assert.Equal(t, "0", b.Balance)

	st, _ = doReq(t, ts.URL, "PUT", base+"/"+b.ID+"/items", map[string]any{
		"items": []map[string]any{{"description": "Otro", "unitPrice": "1", "quantity": 1}},
	})
	assert.Equal(t, http.StatusConflict, st)

	st, _ = doReq(t, ts.URL, "POST", "/patients/nope/budgets", map[string]any{
		"items": []map[string]any{{"description": "x", "unitPrice": "1", "quantity": 1}},
	})
	assert.Equal(t, http.StatusNotFound, st)
}

func TestHTTP_DeletePatientCascades(t *testing.T) {
	ts := newServer(t)
	var list []patientBody
	getJSON(t, ts.URL, "/patients", &list)
	carlos := findPatient(t, list, "Carlos López")

	st, body := doReq(t, ts.URL, "POST", "/patients/"+carlos.ID+"/budgets", map[string]any{
		"items": []map[string]any{{"description": "Férula", "unitPrice": "200", "quantity": 1}},
	})
	require.Equal(t, http.StatusCreated, st, string(body))

	st, body = uploadDoc(t, ts.URL, carlos.ID, "rx.png", []byte("\x89PNG\r\n\x1a\nfake"))
	require.Equal(t, http.StatusCreated, st, string(body))
	var doc struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(body, &doc))

	st, body = doReq(t, ts.URL, "GET", "/patients/"+carlos.ID+"/documents/"+doc.ID+"/content", nil)
	require.Equal(t, http.StatusOK, st)
	assert.True(t, bytes.HasPrefix(body, []byte("\x89PNG")))

	st, _ = doReq(t, ts.URL, "DELETE", "/patients/"+carlos.ID, nil)
	require.Equal(t, http.StatusNoContent, st)

	st, _ = doReq(t, ts.URL, "GET", "/patients/"+carlos.ID, nil)
	assert.Equal(t, http.StatusNotFound, st)

	var budgets []map[string]any
	getJSON(t, ts.URL, "/patients/"+carlos.ID+"/budgets", &budgets)
	assert.Empty(t, budgets)
	var docs []map[string]any
	getJSON(t, ts.URL, "/patients/"+carlos.ID+"/documents", &docs)
	assert.Empty(t, docs)

	// El paciente semilla borrado no vuelve.
	getJSON(t, ts.URL, "/patients", &list)
	assert.Len(t, list, 2)
}

func TestHTTP_DocumentTooLarge(t *testing.T) {
	h, err := router.NewRouter(router.Options{
		Config: config.Config{SeedPatients: true, MaxDocumentBytes: 16},
		Now:    fixedNow,
	})
	require.NoError(t, err)
	ts := httptest.NewServer(h)
	defer ts.Close()

	var list []patientBody
	getJSON(t, ts.URL, "/patients", &list)
	st, _ := uploadDoc(t, ts.URL, list[0].ID, "big.pdf", bytes.Repeat([]byte("a"), 64))
	assert.Equal(t, http.StatusRequestEntityTooLarge, st)

	var docs []map[string]any
	getJSON(t, ts.URL, "/patients/"+list[0].ID+"/documents", &docs)
	assert.Empty(t, docs)
}

func TestHTTP_CreatePatientDuplicateName(t *testing.T) {
	ts := newServer(t)

	st, _ := doReq(t, ts.URL, "POST", "/patients", map[string]any{"name": "MARÍA GARCÍA"})
	assert.Equal(t, http.StatusConflict, st)

	st, _ = doReq(t, ts.URL, "POST", "/patients", map[string]any{"name": "   "})
	assert.Equal(t, http.StatusBadRequest, st)
}

func findPatient(t *testing.T, list []patientBody, name string) patientBody {
	t.Helper()
	for _, p := range list {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("patient %q not found in %d patients", name, len(list))
	return patientBody{}
}

func getJSON(t *testing.T, baseURL, path string, out any) {
	t.Helper()
	st, body := doReq(t, baseURL, "GET", path, nil)
	if st != http.StatusOK {
		t.Fatalf("expected 200 GET %s, got %d body=%s", path, st, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		t.Fatalf("decode %s: %v body=%s", path, err, string(body))
	}
}

func uploadDoc(t *testing.T, baseURL, patientID, filename string, content []byte) (int, []byte) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("category", "Radiografía"))
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest("POST", baseURL+"/patients/"+patientID+"/documents", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	return res.StatusCode, body
}

func doReq(t *testing.T, baseURL, method, path string, body any) (int, []byte) {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, baseURL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Client-ID", "test-tab")

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()

	respBody, _ := io.ReadAll(res.Body)
	return res.StatusCode, respBody
}

func TestHTTP_SwaggerDoc(t *testing.T) {
	ts := newServer(t)

	st, body := doReq(t, ts.URL, "GET", "/swagger/doc.json", nil)
	require.Equal(t, http.StatusOK, st)

	var doc struct {
		Swagger string                    `json:"swagger"`
		Info    struct{ Title string }    `json:"info"`
		Paths   map[string]map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.Equal(t, "2.0", doc.Swagger)
	assert.Equal(t, "Dental Clinic API", doc.Info.Title)
	assert.Contains(t, doc.Paths["/appointments/{appointmentID}/payments"], "post")
	assert.Contains(t, doc.Paths["/patients/{patientID}/odontogram"], "get")
}
