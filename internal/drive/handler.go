package drive

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/inventory-analyzer/internal/analysis"
	"github.com/andresuchdata/inventory-analyzer/internal/ingest"
)

type Handler struct {
	files         Files
	importService *ImportService
	defaultFolder string
}

func NewHandler(files Files, importService *ImportService, defaultFolder string) *Handler {
	return &Handler{
		files:         files,
		importService: importService,
		defaultFolder: defaultFolder,
	}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/drive/files", h.ListFiles).Methods(http.MethodGet)
	router.HandleFunc("/api/drive/files/download", h.DownloadFile).Methods(http.MethodGet)
	router.HandleFunc("/api/drive/import", h.ImportFile).Methods(http.MethodPost)
}

// Router returns a standalone mux with the drive routes registered.
func (h *Handler) Router() *mux.Router {
	router := mux.NewRouter()
	h.RegisterRoutes(router)
	return router
}

func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	folderID := query.Get("folderId")
	folderPath := query.Get("path")
	if folderID == "" {
		folderID = h.defaultFolder
	}

	if folderPath != "" {
		var err error
		folderID, err = h.files.FindFolderByPath(r.Context(), folderPath)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, ErrFolderNotFound) {
				status = http.StatusNotFound
			}
			writeJSONError(w, status, err)
			return
		}
	}

	files, err := h.files.ListFiles(r.Context(), folderID)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	if files == nil {
		files = []*File{}
	}

	writeJSON(w, http.StatusOK, files)
}

func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	fileID := r.URL.Query().Get("fileId")
	if fileID == "" {
		writeJSONError(w, http.StatusBadRequest, errors.New("fileId parameter is required"))
		return
	}

	meta, err := h.files.GetFile(r.Context(), fileID)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+meta.LocalName()+"\"")

	if err := h.files.DownloadFile(r.Context(), fileID, w); err != nil {
		log.Error().Err(err).Str("file_id", fileID).Msg("drive: download failed")
	}
}

func (h *Handler) ImportFile(w http.ResponseWriter, r *http.Request) {
	fileID := r.URL.Query().Get("fileId")
	if fileID == "" {
		writeJSONError(w, http.StatusBadRequest, errors.New("fileId parameter is required"))
		return
	}

	result, err := h.importService.ImportFile(r.Context(), fileID)
	if err != nil {
		writeJSONError(w, importStatus(err), err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func importStatus(err error) int {
	switch {
	case errors.Is(err, analysis.ErrMissingRequiredColumns), errors.Is(err, analysis.ErrNoValidRows):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ingest.ErrUnsupportedFormat), errors.Is(err, ingest.ErrEmptyTable), errors.Is(err, ErrNotAFile):
		return http.StatusBadRequest
	case errors.Is(err, ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("drive: encode response failed")
	}
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
