package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/starford/tome/internal/kbservice"
)

const maxUploadBytes = 50 << 20 // 50 MB

// TransferHandler serves import uploads and export downloads.
type TransferHandler struct {
	svc *kbservice.Service
}

// NewTransferHandler creates a TransferHandler.
func NewTransferHandler(svc *kbservice.Service) *TransferHandler {
	return &TransferHandler{svc: svc}
}

// Import handles POST /api/import (multipart/form-data, field "file").
// A successful import replaces the whole collection.
//
//	@Summary		Import a JSON, Markdown or ZIP file
//	@Tags			transfer
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"File to import"
//	@Success		200		{object}	ImportResponse
//	@Failure		400		{object}	errResponse
//	@Router			/import [post]
func (h *TransferHandler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	res, err := h.svc.Import(r.Context(), header.Filename, data)
	if err != nil {
		writeError(w, "import", err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Export handles GET /api/export.
//
//	@Summary		Download the knowledge base
//	@Tags			transfer
//	@Produce		json
//	@Produce		application/zip
//	@Param			format	query	string	false	"Export format"	Enums(json, zip)
//	@Success		200
//	@Failure		409	{object}	errResponse
//	@Router			/export [get]
func (h *TransferHandler) Export(w http.ResponseWriter, r *http.Request) {
	dl, err := h.svc.Export(r.Context(), r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, "export", err, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", dl.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+dl.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(dl.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(dl.Data)
}
