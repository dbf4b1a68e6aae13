package handlers

import (
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rentnest/rentnest/internal/models"
	"github.com/rentnest/rentnest/internal/service"
	"github.com/sirupsen/logrus"
)

const imagesField = "images"

type PropertyHandlers struct {
	propertyService *service.PropertyService
	maxUploadBytes  int64
	maxFiles        int
	logger          *logrus.Logger
}

func NewPropertyHandlers(propertyService *service.PropertyService, maxUploadBytes int64, maxFiles int, logger *logrus.Logger) *PropertyHandlers {
	return &PropertyHandlers{
		propertyService: propertyService,
		maxUploadBytes:  maxUploadBytes,
		maxFiles:        maxFiles,
		logger:          logger,
	}
}

type CreatePropertyResponse struct {
	Property          *models.Property `json:"property"`
	ListingsRemaining int              `json:"listings_remaining"`
	ListingsLimit     int              `json:"listings_limit"`
}

func (h *PropertyHandlers) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req service.PropertyInput
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.propertyService.Create(r.Context(), userID, req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, CreatePropertyResponse{
		Property:          created.Property,
		ListingsRemaining: created.Quota.Remaining,
		ListingsLimit:     created.Quota.Limit,
	})
}

func (h *PropertyHandlers) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "INVALID_QUERY", err.Error(), nil)
		return
	}

	page, err := h.propertyService.List(r.Context(), filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, page)
}

func (h *PropertyHandlers) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "INVALID_QUERY", err.Error(), nil)
		return
	}

	page, err := h.propertyService.ListByOwner(r.Context(), userID, filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, page)
}

func (h *PropertyHandlers) Get(w http.ResponseWriter, r *http.Request) {
	property, err := h.propertyService.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if property.Status != models.PropertyActive {
		respondWithError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found", nil)
		return
	}
	respondWithJSON(w, http.StatusOK, property)
}

func (h *PropertyHandlers) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req service.PropertyInput
	if !decodeJSON(w, r, &req) {
		return
	}

	property, err := h.propertyService.Update(r.Context(), userID, mux.Vars(r)["id"], req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, property)
}

func (h *PropertyHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.propertyService.Delete(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadImages accepts a multipart form with one or more "images" parts.
func (h *PropertyHandlers) UploadImages(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	limit := h.maxUploadBytes*int64(h.maxFiles) + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		respondWithError(w, http.StatusBadRequest, "INVALID_UPLOAD", "Invalid or too large multipart body", nil)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File[imagesField]
	if len(headers) == 0 {
		respondWithError(w, http.StatusBadRequest, "INVALID_UPLOAD", "No images provided", nil)
		return
	}
	if len(headers) > h.maxFiles {
		respondWithError(w, http.StatusBadRequest, "INVALID_UPLOAD", "Too many images in one request", map[string]any{"max_files": h.maxFiles})
		return
	}

	files := make([]io.Reader, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > h.maxUploadBytes {
			respondWithError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", fh.Filename+" exceeds the upload limit",
				map[string]any{"max_bytes": h.maxUploadBytes})
			return
		}
		f, err := fh.Open()
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "INVALID_UPLOAD", "Failed to read "+fh.Filename, nil)
			return
		}
		defer f.Close()
		files = append(files, f)
	}

	property, err := h.propertyService.AddImages(r.Context(), userID, mux.Vars(r)["id"], files)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, property)
}

func (h *PropertyHandlers) DeleteImage(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	key := r.URL.Query().Get("key")
	if key == "" {
		respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "key is required", nil)
		return
	}

	property, err := h.propertyService.RemoveImage(r.Context(), userID, mux.Vars(r)["id"], key)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, property)
}

func (h *PropertyHandlers) RevealContact(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	reveal, err := h.propertyService.RevealContact(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, reveal)
}

type queryError string

func (e queryError) Error() string { return string(e) }

func parseFilter(q url.Values) (models.PropertyFilter, error) {
	filter := models.PropertyFilter{
		City: strings.TrimSpace(q.Get("city")),
		Type: models.PropertyType(strings.ToLower(strings.TrimSpace(q.Get("type")))),
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return filter, queryError("invalid property type")
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"bedrooms", &filter.MinBedrooms},
		{"limit", &filter.Limit},
		{"offset", &filter.Offset},
	}
	for _, p := range ints {
		if v := q.Get(p.name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return filter, queryError(p.name + " must be a non-negative integer")
			}
			*p.dst = n
		}
	}

	rents := []struct {
		name string
		dst  *int64
	}{
		{"min_rent", &filter.MinRent},
		{"max_rent", &filter.MaxRent},
	}
	for _, p := range rents {
		if v := q.Get(p.name); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n < 0 {
				return filter, queryError(p.name + " must be a non-negative integer")
			}
			*p.dst = n
		}
	}
	if filter.MaxRent > 0 && filter.MinRent > filter.MaxRent {
		return filter, queryError("min_rent cannot exceed max_rent")
	}
	return filter, nil
}
