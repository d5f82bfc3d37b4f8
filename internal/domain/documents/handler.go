package documents

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Get("/patients/{patientID}/documents", listDocumentsHandler(svc))
	r.Post("/patients/{patientID}/documents", uploadDocumentHandler(svc))
	r.Get("/patients/{patientID}/documents/{documentID}", getDocumentHandler(svc))
	r.Get("/patients/{patientID}/documents/{documentID}/content", contentHandler(svc))
	r.Delete("/patients/{patientID}/documents/{documentID}", deleteDocumentHandler(svc))
}

// multipart overhead allowed on top of the file itself
const formSlack = 1 << 20

// uploadDocumentHandler godoc
// @Summary Subir documento
// @Description Multipart con el campo `file`. El contenido se sirve desde una URL temporal.
// @Tags documents
// @Accept multipart/form-data
// @Produce json
// @Param patientID path string true "ID del paciente"
// @Param file formData file true "Archivo"
// @Success 201 {object} Document
// @Failure 400 {string} string "tipo no permitido"
// @Failure 404 {string} string "patient not found"
// @Failure 413 {string} string "too large"
// @Router /patients/{patientID}/documents [post]
func uploadDocumentHandler(svc *Service) http.HandlerFunc {
	// multipart/form-data: file, category (opcional), name (opcional)
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, svc.MaxBytes()+formSlack)
		if err := r.ParseMultipartForm(formSlack); err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				writeError(w, ErrTooLarge)
				return
			}
			http.Error(w, "invalid multipart form", http.StatusBadRequest)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "file is required", http.StatusBadRequest)
			return
		}
		defer file.Close()

		// Lee uno más que el límite para que el servicio detecte el exceso.
		content, err := io.ReadAll(io.LimitReader(file, svc.MaxBytes()+1))
		if err != nil {
			http.Error(w, "could not read file", http.StatusBadRequest)
			return
		}

		name := r.FormValue("name")
		if name == "" {
			name = header.Filename
		}

		doc, err := svc.Upload(r.Context(), chi.URLParam(r, "patientID"), UploadInput{
			Name:        name,
			Category:    Category(r.FormValue("category")),
			ContentType: header.Header.Get("Content-Type"),
			Content:     content,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, doc)
	}
}

// listDocumentsHandler godoc
// @Summary Listar documentos
// @Tags documents
// @Produce json
// @Param patientID path string true "ID del paciente"
// @Success 200 {array} Document
// @Router /patients/{patientID}/documents [get]
func listDocumentsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := svc.List(r.Context(), chi.URLParam(r, "patientID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, docs)
	}
}

// getDocumentHandler godoc
// @Summary Obtener documento
// @Tags documents
// @Produce json
// @Param patientID path string true "ID del paciente"
// @Param documentID path string true "ID del documento"
// @Success 200 {object} Document
// @Failure 404 {string} string "not found"
// @Router /patients/{patientID}/documents/{documentID} [get]
func getDocumentHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := svc.Get(r.Context(), chi.URLParam(r, "patientID"), chi.URLParam(r, "documentID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

// contentHandler godoc
// @Summary Contenido del documento
// @Tags documents
// @Produce octet-stream
// @Param patientID path string true "ID del paciente"
// @Param documentID path string true "ID del documento"
// @Success 200 {file} file
// @Failure 404 {string} string "not found / expired"
// @Router /patients/{patientID}/documents/{documentID}/content [get]
func contentHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, blob, err := svc.Content(r.Context(), chi.URLParam(r, "patientID"), chi.URLParam(r, "documentID"))
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", blob.ContentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
		w.Header().Set("Content-Disposition", "inline; filename="+strconv.Quote(doc.Name))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(blob.Data)
	}
}

// deleteDocumentHandler godoc
// @Summary Eliminar documento
// @Tags documents
// @Param patientID path string true "ID del paciente"
// @Param documentID path string true "ID del documento"
// @Success 204
// @Failure 404 {string} string "not found"
// @Router /patients/{patientID}/documents/{documentID} [delete]
func deleteDocumentHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Delete(r.Context(), chi.URLParam(r, "patientID"), chi.URLParam(r, "documentID")); err != nil {
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
	case errors.Is(err, ErrTooLarge):
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
	case errors.Is(err, ErrExpired):
		http.Error(w, err.Error(), http.StatusGone)
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
