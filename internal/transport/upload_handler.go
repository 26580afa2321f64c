package transport

import (
	"errors"
	"io"
	"net/http"

	"xingqu-shop/internal/apperror"
	"xingqu-shop/internal/middleware"
	"xingqu-shop/internal/storage"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// multipart overhead allowed on top of the file itself
const multipartSlack = 1 << 20

// FileStore persists uploaded images
type FileStore interface {
	Save(r io.Reader) (*storage.StoredFile, error)
	Delete(filename string) error
	MaxBytes() int64
}

type uploadResponse struct {
	Success bool `json:"success"`
	*storage.StoredFile
}

// UploadHandler handles admin image uploads
type UploadHandler struct {
	store  FileStore
	logger *zap.Logger
}

// NewUploadHandler creates a new UploadHandler
func NewUploadHandler(store FileStore, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{store: store, logger: logger}
}

// RegisterRoutes registers the upload routes. Uploads are admin only.
func (h *UploadHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/upload", func(r chi.Router) {
		r.Use(adminOnly(authMiddleware, h.logger)...)
		r.Post("/", h.Upload)
		r.Delete("/", h.Delete)
	})
}

// Upload stores the multipart field "file"
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	// Cap the whole request, leaving room for multipart framing
	r.Body = http.MaxBytesReader(w, r.Body, h.store.MaxBytes()+multipartSlack)

	file, _, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.RespondWithAppError(w, apperror.New(apperror.CodeValidation, storage.ErrFileTooLarge.Error()), h.logger)
			return
		}
		middleware.RespondWithAppError(w, apperror.New(apperror.CodeValidation, "multipart field \"file\" is required"), h.logger)
		return
	}
	defer file.Close()

	// Type is sniffed from content, not the client's filename
	stored, err := h.store.Save(file)
	if err != nil {
		middleware.RespondWithError(w, storageError(err), h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, uploadResponse{Success: true, StoredFile: stored})
}

// Delete removes the upload named by ?filename=
func (h *UploadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.URL.Query().Get("filename")); err != nil {
		middleware.RespondWithError(w, storageError(err), h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, messageResponse{Message: "file deleted"})
}

func storageError(err error) error {
	switch {
	case errors.Is(err, storage.ErrFileTooLarge),
		errors.Is(err, storage.ErrUnsupportedType),
		errors.Is(err, storage.ErrEmptyFile),
		errors.Is(err, storage.ErrInvalidFilename):
		return apperror.Wrap(apperror.CodeValidation, err, err.Error())
	case errors.Is(err, storage.ErrFileNotFound):
		return apperror.Wrap(apperror.CodeNotFound, err, err.Error())
	default:
		return apperror.Wrap(apperror.CodeInternal, err, "failed to store file")
	}
}
