package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/BradenHooton/helpdesk/internal/auth"
	"github.com/BradenHooton/helpdesk/internal/models"
	"github.com/BradenHooton/helpdesk/internal/services"
	"github.com/BradenHooton/helpdesk/internal/storage"
	pkghttp "github.com/BradenHooton/helpdesk/pkg/http"
	"github.com/go-chi/chi/v5"
)

const (
	// multipartMemory is kept in memory before parts spill to temp files
	multipartMemory = 8 << 20
	maxJSONBody     = 1 << 20
)

// RequestService defines the request lifecycle operations used by RequestHandler
type RequestService interface {
	Submit(ctx context.Context, fields models.RequestFields, uploads []services.Upload) (*models.ServiceRequest, error)
	Get(ctx context.Context, id int64) (*models.ServiceRequest, error)
	List(ctx context.Context, params services.ListParams) (*services.RequestPage, error)
	UpdateStatus(ctx context.Context, id int64, status, assignee, actor string) (*models.ServiceRequest, error)
	Stats(ctx context.Context) (*models.RequestStats, error)
	Dashboard(ctx context.Context) (*models.Dashboard, error)
	OpenAttachment(ctx context.Context, id int64, filename string) (*storage.Object, error)
}

// RequestHandler serves service request endpoints
type RequestHandler struct {
	service RequestService
	policy  services.AttachmentPolicy
	logger  *slog.Logger
}

func NewRequestHandler(service RequestService, policy services.AttachmentPolicy, logger *slog.Logger) *RequestHandler {
	return &RequestHandler{
		service: service,
		policy:  policy,
		logger:  logger,
	}
}

// SubmitRequest is the JSON body for a new service request. Status is
// accepted for compatibility and ignored.
type SubmitRequest struct {
	RequesterName     string `json:"requester_name" validate:"required,max=100"`
	Email             string `json:"email" validate:"omitempty,max=120,email"`
	Department        string `json:"department" validate:"required,max=50"`
	Category          string `json:"category" validate:"required,max=50"`
	Description       string `json:"description" validate:"required"`
	Priority          string `json:"priority"`
	ContactPreference string `json:"contact_preference"`
	Status            string `json:"status"`
}

func (s SubmitRequest) fields() models.RequestFields {
	return models.RequestFields{
		RequesterName:     s.RequesterName,
		Email:             s.Email,
		Department:        s.Department,
		Category:          s.Category,
		Description:       s.Description,
		Priority:          s.Priority,
		ContactPreference: s.ContactPreference,
		Status:            s.Status,
	}
}

// UpdateStatusRequest is the body of PUT /api/requests/{id}/status
type UpdateStatusRequest struct {
	Status     string `json:"status" validate:"required"`
	AssignedTo string `json:"assigned_to" validate:"max=100"`
}

// SubmitResponse acknowledges a stored request
type SubmitResponse struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Request *models.ServiceRequest `json:"request"`
}

// Submit handles POST /api/requests as JSON or multipart/form-data.
// Multipart files are read from the "attachments" field.
func (h *RequestHandler) Submit(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		fields  models.RequestFields
		uploads []services.Upload
	)

	switch mediaType {
	case "multipart/form-data":
		limit := int64(h.policy.MaxFiles)*h.policy.MaxFileSize + maxJSONBody
		r.Body = http.MaxBytesReader(w, r.Body, limit)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				pkghttp.WriteRequestTooLarge(w, "Upload exceeds the allowed size")
				return
			}
			pkghttp.WriteBadRequest(w, "Invalid multipart form")
			return
		}
		defer r.MultipartForm.RemoveAll()

		var (
			closers []io.Closer
			err     error
		)
		uploads, closers, err = openUploads(r)
		defer func() {
			for _, c := range closers {
				c.Close()
			}
		}()
		if err != nil {
			pkghttp.WriteBadRequest(w, "Invalid attachment")
			return
		}

		fields = models.RequestFields{
			RequesterName:     r.FormValue("requester_name"),
			Email:             r.FormValue("email"),
			Department:        r.FormValue("department"),
			Category:          r.FormValue("category"),
			Description:       r.FormValue("description"),
			Priority:          r.FormValue("priority"),
			ContactPreference: r.FormValue("contact_preference"),
			Status:            r.FormValue("status"),
		}
	default:
		var req SubmitRequest
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			pkghttp.WriteBadRequest(w, "Invalid request body")
			return
		}
		if errs := ValidateRequest(req); errs != nil {
			pkghttp.WriteValidationError(w, errs)
			return
		}
		fields = req.fields()
	}

	created, err := h.service.Submit(r.Context(), fields, uploads)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, SubmitResponse{
		Success: true,
		Message: fmt.Sprintf("Service request #%d submitted successfully", created.ID),
		Request: created,
	})
}

// openUploads opens every non-empty file part of the attachments field
func openUploads(r *http.Request) ([]services.Upload, []io.Closer, error) {
	headers := r.MultipartForm.File["attachments"]
	uploads := make([]services.Upload, 0, len(headers))
	closers := make([]io.Closer, 0, len(headers))

	for _, fh := range headers {
		if fh.Filename == "" {
			continue
		}
		f, err := fh.Open()
		if err != nil {
			return nil, closers, err
		}
		closers = append(closers, f)
		uploads = append(uploads, services.Upload{
			Filename: fh.Filename,
			Size:     fh.Size,
			Content:  f,
		})
	}
	return uploads, closers, nil
}

// List handles GET /api/requests
func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := optionalInt(q.Get("page"))
	if err != nil {
		pkghttp.WriteValidationError(w, map[string]string{"page": "must be an integer"})
		return
	}
	perPage, err := optionalInt(q.Get("per_page"))
	if err != nil {
		pkghttp.WriteValidationError(w, map[string]string{"per_page": "must be an integer"})
		return
	}

	result, err := h.service.List(r.Context(), services.ListParams{
		Filter: models.RequestFilter{
			Status:     strings.TrimSpace(q.Get("status")),
			Category:   strings.TrimSpace(q.Get("category")),
			Department: strings.TrimSpace(q.Get("department")),
			Priority:   strings.TrimSpace(q.Get("priority")),
			SortBy:     strings.TrimSpace(q.Get("sort")),
		},
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*services.RequestPage
	}{true, result})
}

// Get handles GET /api/requests/{id}
func (h *RequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := requestID(w, r)
	if !ok {
		return
	}

	req, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"request": req,
	})
}

// UpdateStatus handles PUT /api/requests/{id}/status
func (h *RequestHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := requestID(w, r)
	if !ok {
		return
	}

	var body UpdateStatusRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if errs := ValidateRequest(body); errs != nil {
		pkghttp.WriteValidationError(w, errs)
		return
	}

	actor := ""
	if session := auth.SessionFromContext(r.Context()); session != nil {
		actor = session.Username
	}

	updated, err := h.service.UpdateStatus(r.Context(), id, body.Status, body.AssignedTo, actor)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Request #%d updated to %s", updated.ID, updated.Status),
		"request": updated,
	})
}

// DownloadAttachment handles GET /api/requests/{id}/attachments/{filename}
func (h *RequestHandler) DownloadAttachment(w http.ResponseWriter, r *http.Request) {
	id, ok := requestID(w, r)
	if !ok {
		return
	}
	filename := chi.URLParam(r, "filename")

	obj, err := h.service.OpenAttachment(r.Context(), id, filename)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidName) {
			pkghttp.WriteNotFound(w, "Attachment not found")
			return
		}
		writeServiceError(w, r, h.logger, err)
		return
	}
	defer obj.Body.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, obj.Body); err != nil {
		h.logger.Warn("attachment download interrupted",
			slog.Int64("request_id", id),
			slog.String("file", filename),
			slog.Any("error", err))
	}
}

// Stats handles GET /api/stats
func (h *RequestHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"stats":   stats,
	})
}

// Dashboard handles GET /api/dashboard
func (h *RequestHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.service.Dashboard(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*models.Dashboard
	}{true, dashboard})
}

// requestID parses the {id} path parameter, writing 404 when it is not a
// positive integer
func requestID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		pkghttp.WriteNotFound(w, "Request not found")
		return 0, false
	}
	return id, true
}

func optionalInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
