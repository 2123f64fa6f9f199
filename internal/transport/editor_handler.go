package transport

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/backend"
	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/collection"
	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/domain"
	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/editor"
	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/middleware"
	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/preview"
	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/session"
	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/staging"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// DefaultMaxUploadBytes bounds a multipart request body
const DefaultMaxUploadBytes int64 = 32 << 20

// OpenSessionRequest opens an editor; without a product id it creates a product
type OpenSessionRequest struct {
	ProductID *int64 `json:"productId" validate:"omitempty,gt=0"`
}

// UpdateFieldRequest sets one draft field
type UpdateFieldRequest struct {
	Field string `json:"field" validate:"required"`
	Value string `json:"value"`
}

// FunctionalityRequest carries a feature bullet
type FunctionalityRequest struct {
	Value string `json:"value"`
}

// KeyValueRequest carries a technical data or document row
type KeyValueRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// SessionResponse is the editor state returned by every session route
type SessionResponse struct {
	ID       string       `json:"id"`
	OpenedAt time.Time    `json:"openedAt"`
	State    editor.State `json:"state"`
}

// SubmitResponse is returned by a successful submit
type SubmitResponse struct {
	Product *domain.Product `json:"product"`
	Session SessionResponse `json:"session"`
}

// EditorHandler handles HTTP requests for editor sessions
type EditorHandler struct {
	sessions       session.Manager
	logger         *zap.Logger
	maxUploadBytes int64
}

// NewEditorHandler creates a new EditorHandler
func NewEditorHandler(sessions session.Manager, maxUploadBytes int64, logger *zap.Logger) *EditorHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &EditorHandler{
		sessions:       sessions,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
}

// RegisterRoutes registers all editor routes. limit guards the routes that
// reach the media or catalog services.
func (h *EditorHandler) RegisterRoutes(r chi.Router, authMiddleware, limit func(http.Handler) http.Handler) {
	r.Route("/api/editor/sessions", func(r chi.Router) {
		r.Use(authMiddleware)

		r.Post("/", h.Open)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Delete("/", h.Close)
			r.Patch("/fields", h.UpdateField)

			r.Post("/functionalities", h.AppendFunctionality)
			r.Put("/functionalities/{index}", h.ReplaceFunctionality)
			r.Delete("/functionalities/{index}", h.RemoveFunctionality)

			r.Post("/technical-data", h.AppendTechnicalData)
			r.Put("/technical-data/{index}", h.ReplaceTechnicalData)
			r.Delete("/technical-data/{index}", h.RemoveTechnicalData)

			r.Put("/downloads/{index}", h.ReplaceDownload)
			r.Delete("/downloads/{index}", h.RemoveDownload)

			r.Post("/images", h.AddImages)
			r.Delete("/images/{index}", h.RemoveImage)
			r.Get("/previews/{token}", h.Preview)

			r.Post("/validate", h.Validate)
			r.Post("/reset", h.Reset)
			r.Post("/categories/refresh", h.RefreshCategories)

			r.Group(func(r chi.Router) {
				r.Use(limit)
				r.Post("/downloads", h.AddDocuments)
				r.Post("/submit", h.Submit)
				r.Post("/description", h.GenerateDescription)
			})
		})
	})
}

// Open handles opening a session
func (h *EditorHandler) Open(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req OpenSessionRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Debug("Open session validation failed", zap.Error(err))
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s, err := h.sessions.Open(r.Context(), actorID, req.ProductID)
	if err != nil {
		h.respondError(w, "open session", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, h.sessionResponse(s))
}

// Get returns the session state
func (h *EditorHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *session.Session) error {
		return nil
	})
}

// Close discards the session
func (h *EditorHandler) Close(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}
	if err := h.sessions.Close(actorID, chi.URLParam(r, "sessionID")); err != nil {
		h.respondError(w, "close session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateField sets a draft field
func (h *EditorHandler) UpdateField(w http.ResponseWriter, r *http.Request) {
	var req UpdateFieldRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.withSession(w, r, func(s *session.Session) error {
		return s.Engine.UpdateField(r.Context(), req.Field, req.Value)
	})
}

// AppendFunctionality adds a feature bullet
func (h *EditorHandler) AppendFunctionality(w http.ResponseWriter, r *http.Request) {
	var req FunctionalityRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.withSession(w, r, func(s *session.Session) error {
		return s.Engine.AppendFunctionality(req.Value)
	})
}

// ReplaceFunctionality overwrites a feature bullet
func (h *EditorHandler) ReplaceFunctionality(w http.ResponseWriter, r *http.Request) {
	index, ok := h.index(w, r)
	if !ok {
		return
	}
	var req FunctionalityRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.withSession(w, r, func(s *session.Session) error {
		return s.Engine.ReplaceFunctionality(index, req.Value)
	})
}

// RemoveFunctionality deletes a feature bullet
func (h *EditorHandler) RemoveFunctionality(w http.ResponseWriter, r *http.Request) {
	index, ok := h.index(w, r)
	if !ok {
		return
	}
	h.withSession(w, r, func(s *session.Session) error {
		return s.Engine.RemoveFunctionality(index)
	})
}

// AppendTechnicalData adds a specification row
func (h *EditorHandler) AppendTechnicalData(w http.ResponseWriter, r *http.Request) {
	var req KeyValueRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.withSession(w, r, func(s *session.Session) error {
		return s.Engine.AppendTechnicalData(domain.KeyValue{Key: req.Key, Value: req.Value})
	})
}

// ReplaceTechnicalData overwrites a specification row
func (h *EditorHandler) ReplaceTechnicalData(w http.ResponseWriter, r *http.Request) {
	index, ok := h.index(w, r)
	if !ok {
		return
	}
	var req KeyValueRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.withSession(w, r, func(s *session.Session) error {
		return s.Engine.ReplaceTechnicalData(index, domain.KeyValue{Key: req.Key, Value: req.Value})
	})
}

// RemoveTechnicalData deletes a specification row
func (h *EditorHandler) RemoveTechnicalData(w http.ResponseWriter, r *http.Request) {
	index, ok := h.index(w, r)
	if !ok {
		return
	}
	h.withSession(w, r, func(s *session.Session) error {
		return s.Engine.RemoveTechnicalData(index)
	})
}

// AddDocuments uploads documents and attaches them
func (h *EditorHandler) AddDocuments(w http.ResponseWriter, r *http.Request) {
	files, ok := h.readFiles(w, r)
	if !ok {
		return
	}
	h.withSession(w, r, func(s *session.Session) error {
		return s.Engine.AddDocuments(r.Context(), files)
	})
}

// ReplaceDownload renames a document
func (h *EditorHandler) ReplaceDownload(w http.ResponseWriter, r *http.Request) {
	index, ok := h.index(w, r)
	if !ok {
		return
	}
	var req KeyValueRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.withSession(w, r, func(s *session.Session) error {
		return s.Engine.ReplaceDownload(index, domain.KeyValue{Key: req.Key, Value: req.Value})
	})
}

// RemoveDownload detaches a document
func (h *EditorHandler) RemoveDownload(w http.ResponseWriter, r *http.Request) {
	index, ok := h.index(w, r)
	if !ok {
		return
	}
	h.withSession(w, r, func(s *session.Session) error {
		return s.Engine.RemoveDownload(index)
	})
}

// AddImages stages images
func (h *EditorHandler) AddImages(w http.ResponseWriter, r *http.Request) {
	files, ok := h.readFiles(w, r)
	if !ok {
		return
	}
	h.withSession(w, r, func(s *session.Session) error {
		return s.Engine.AddImages(files)
	})
}

// RemoveImage removes an image
func (h *EditorHandler) RemoveImage(w http.ResponseWriter, r *http.Request) {
	index, ok := h.index(w, r)
	if !ok {
		return
	}
	h.withSession(w, r, func(s *session.Session) error {
		return s.Engine.RemoveImage(index)
	})
}

// Preview streams a staged image
func (h *EditorHandler) Preview(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}
	s, err := h.sessions.Get(actorID, chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondError(w, "preview", err)
		return
	}
	file, err := s.Engine.Preview(preview.Ref(chi.URLParam(r, "token")))
	if err != nil {
		middleware.RespondWithError(w, http.StatusNotFound, "preview not found")
		return
	}

	contentType := file.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(file.Data)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(file.Data)
}

// Validate returns the current validation errors
func (h *EditorHandler) Validate(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}
	s, err := h.sessions.Get(actorID, chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondError(w, "validate", err)
		return
	}
	errs := s.Engine.Validate()
	if len(errs) > 0 {
		middleware.RespondWithValidationErrors(w, toValidationErrors(errs))
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, h.sessionResponse(s))
}

// Submit saves the product
func (h *EditorHandler) Submit(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "sessionID")

	product, err := h.sessions.Submit(r.Context(), actorID, id)
	if err != nil {
		var validationErrs editor.ValidationErrors
		if errors.As(err, &validationErrs) {
			middleware.RespondWithValidationErrorsStatus(w, http.StatusUnprocessableEntity, toValidationErrors(validationErrs))
			return
		}
		h.respondError(w, "submit", err)
		return
	}

	s, err := h.sessions.Get(actorID, id)
	if err != nil {
		h.respondError(w, "submit", err)
		return
	}

	h.logger.Info("Product submitted",
		zap.String("session_id", id),
		zap.Int64("product_id", product.ID),
	)
	middleware.RespondWithJSON(w, http.StatusOK, SubmitResponse{Product: product, Session: h.sessionResponse(s)})
}

// Reset discards every change
func (h *EditorHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *session.Session) error {
		return s.Engine.Reset(r.Context())
	})
}

// RefreshCategories reloads the categories of the selected brand
func (h *EditorHandler) RefreshCategories(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *session.Session) error {
		return s.Engine.RefreshCategories(r.Context())
	})
}

// GenerateDescription fills the description from the product name
func (h *EditorHandler) GenerateDescription(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *session.Session) error {
		return s.Engine.GenerateDescription(r.Context())
	})
}

// withSession runs fn on the caller's session and answers with the new state
func (h *EditorHandler) withSession(w http.ResponseWriter, r *http.Request, fn func(s *session.Session) error) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}
	s, err := h.sessions.Get(actorID, chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondError(w, "load session", err)
		return
	}
	if err := fn(s); err != nil {
		h.respondError(w, r.Method+" "+r.URL.Path, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, h.sessionResponse(s))
}

func (h *EditorHandler) sessionResponse(s *session.Session) SessionResponse {
	state := s.Engine.Snapshot()
	for i, m := range state.Media {
		if m.Pending && preview.IsLocal(m.URL) {
			state.Media[i].URL = fmt.Sprintf("/api/editor/sessions/%s/previews/%s", s.ID, preview.Token(m.URL))
		}
	}
	return SessionResponse{ID: s.ID, OpenedAt: s.OpenedAt, State: state}
}

func (h *EditorHandler) actor(w http.ResponseWriter, r *http.Request) (string, bool) {
	actorID, ok := middleware.GetUserID(r.Context())
	if !ok || actorID == "" {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	return actorID, true
}

func (h *EditorHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := middleware.DecodeAndValidate(r, v); err != nil {
		h.logger.Debug("Request validation failed", zap.Error(err))
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return false
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *EditorHandler) index(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid index")
		return 0, false
	}
	return index, true
}

// readFiles reads the "files" parts of a multipart request
func (h *EditorHandler) readFiles(w http.ResponseWriter, r *http.Request) ([]domain.LocalFile, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		h.logger.Debug("Failed to parse upload", zap.Error(err))
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.RespondWithError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return nil, false
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid multipart body")
		return nil, false
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		middleware.RespondWithError(w, http.StatusBadRequest, "no files provided")
		return nil, false
	}

	files := make([]domain.LocalFile, 0, len(headers))
	for _, header := range headers {
		file, err := readPart(header)
		if err != nil {
			h.logger.Error("Failed to read uploaded file", zap.String("file", header.Filename), zap.Error(err))
			middleware.RespondWithError(w, http.StatusBadRequest, "failed to read uploaded file")
			return nil, false
		}
		files = append(files, file)
	}
	return files, true
}

func readPart(header *multipart.FileHeader) (domain.LocalFile, error) {
	f, err := header.Open()
	if err != nil {
		return domain.LocalFile{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return domain.LocalFile{}, err
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return domain.LocalFile{Name: header.Filename, ContentType: contentType, Data: data}, nil
}

// respondError maps editor errors to HTTP statuses
func (h *EditorHandler) respondError(w http.ResponseWriter, op string, err error) {
	var (
		validationErrs editor.ValidationErrors
		persistErr     *editor.PersistenceError
	)

	switch {
	case errors.As(err, &validationErrs):
		middleware.RespondWithValidationErrors(w, toValidationErrors(validationErrs))
	case errors.As(err, &persistErr):
		h.logger.Error("Catalog rejected product", zap.String("op", op), zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadGateway, persistErr.Message)
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, editor.ErrClosed), errors.Is(err, backend.ErrNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrSubmitInFlight):
		middleware.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, staging.ErrUpload):
		h.logger.Error("Upload failed", zap.String("op", op), zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, staging.ErrMediaLimit),
		errors.Is(err, staging.ErrDuplicateDocument),
		errors.Is(err, staging.ErrUnsupportedFile),
		errors.Is(err, staging.ErrFileTooLarge),
		errors.Is(err, collection.ErrIndexOutOfRange),
		errors.Is(err, editor.ErrUnknownField),
		errors.Is(err, editor.ErrDerivedField),
		errors.Is(err, editor.ErrInvalidValue),
		errors.Is(err, editor.ErrNameRequired):
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, editor.ErrNoDescriber):
		middleware.RespondWithError(w, http.StatusNotImplemented, err.Error())
	default:
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) {
			h.logger.Error("Backend call failed", zap.String("op", op), zap.Error(err))
			middleware.RespondWithError(w, http.StatusBadGateway, apiErr.Message)
			return
		}
		h.logger.Error("Editor operation failed", zap.String("op", op), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

func toValidationErrors(errs editor.ValidationErrors) []middleware.ValidationError {
	out := make([]middleware.ValidationError, 0, len(errs))
	for _, e := range errs {
		out = append(out, middleware.ValidationError{Field: e.Field, Message: e.Message})
	}
	return out
}
