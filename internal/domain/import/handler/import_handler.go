package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/FACorreiaa/subscription-tracker/internal/domain/import/normalizer"
	"github.com/FACorreiaa/subscription-tracker/internal/domain/import/parser"
	importservice "github.com/FACorreiaa/subscription-tracker/internal/domain/import/service"
	"github.com/FACorreiaa/subscription-tracker/pkg/interceptors"
	"github.com/FACorreiaa/subscription-tracker/pkg/storage"
)

// StatementImporter parses uploaded statements for a user.
type StatementImporter interface {
	ImportStatement(ctx context.Context, userID uuid.UUID, up importservice.StatementUpload) (*importservice.Result, error)
}

// OverrideManager manages a user's merchant overrides.
type OverrideManager interface {
	ListForUser(ctx context.Context, userID uuid.UUID) ([]normalizer.MerchantOverride, error)
	SaveOverride(ctx context.Context, override normalizer.MerchantOverride) (*normalizer.MerchantOverride, error)
	DeleteOverride(ctx context.Context, userID, overrideID uuid.UUID) error
}

// ImportHandler serves statement parsing, merchant overrides and stored
// uploads.
type ImportHandler struct {
	importSvc    StatementImporter
	overrides    OverrideManager // Optional: nil disables the override routes
	files        storage.Storage // Optional: nil disables file downloads
	maxBodyBytes int64
	logger       *slog.Logger
}

// NewImportHandler creates a new import handler. maxBodyBytes bounds the
// JSON request body; zero means unlimited.
func NewImportHandler(importSvc StatementImporter, overrides OverrideManager, files storage.Storage, maxBodyBytes int64, logger *slog.Logger) *ImportHandler {
	return &ImportHandler{
		importSvc:    importSvc,
		overrides:    overrides,
		files:        files,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

// RegisterRoutes adds the import routes to mux.
func (h *ImportHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/statements/parse", h.ParseStatement)
	if h.overrides != nil {
		mux.HandleFunc("GET /v1/merchant-overrides", h.ListOverrides)
		mux.HandleFunc("POST /v1/merchant-overrides", h.SaveOverride)
		mux.HandleFunc("DELETE /v1/merchant-overrides/{id}", h.DeleteOverride)
	}
	if h.files != nil {
		mux.HandleFunc("GET /v1/files/{id}", h.DownloadFile)
	}
}

type parseStatementRequest struct {
	DataURL       string `json:"data_url"`
	Filename      string `json:"filename"`
	Format        string `json:"format"`
	StatementYear int    `json:"statement_year"`
}

// ParseStatement handles POST /v1/statements/parse
func (h *ImportHandler) ParseStatement(w http.ResponseWriter, r *http.Request) {
	userID, ok := interceptors.RequireUserID(w, r)
	if !ok {
		return
	}

	var req parseStatementRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.DataURL == "" {
		interceptors.WriteError(w, http.StatusBadRequest, "data_url is required")
		return
	}
	format, err := parser.ParseFormat(req.Format)
	if err != nil {
		interceptors.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.importSvc.ImportStatement(r.Context(), userID, importservice.StatementUpload{
		Filename: req.Filename,
		DataURL:  req.DataURL,
		Options:  importservice.Options{Format: format, StatementYear: req.StatementYear},
	})
	switch {
	case errors.Is(err, importservice.ErrTooLarge):
		interceptors.WriteError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	case errors.Is(err, importservice.ErrMalformedInput):
		interceptors.WriteError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.Error("failed to import statement", slog.Any("error", err))
		interceptors.WriteError(w, http.StatusInternalServerError, "failed to import statement")
		return
	}

	interceptors.WriteJSON(w, http.StatusOK, result)
}

// ListOverrides handles GET /v1/merchant-overrides
func (h *ImportHandler) ListOverrides(w http.ResponseWriter, r *http.Request) {
	userID, ok := interceptors.RequireUserID(w, r)
	if !ok {
		return
	}

	overrides, err := h.overrides.ListForUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list merchant overrides", slog.Any("error", err))
		interceptors.WriteError(w, http.StatusInternalServerError, "failed to list merchant overrides")
		return
	}
	if overrides == nil {
		overrides = []normalizer.MerchantOverride{}
	}

	interceptors.WriteJSON(w, http.StatusOK, map[string]any{
		"overrides": overrides,
		"count":     len(overrides),
	})
}

type saveOverrideRequest struct {
	MatchPattern string               `json:"match_pattern"`
	MatchType    normalizer.MatchType `json:"match_type"`
	MerchantName string               `json:"merchant_name"`
	Category     *string              `json:"category"`
}

// SaveOverride handles POST /v1/merchant-overrides
func (h *ImportHandler) SaveOverride(w http.ResponseWriter, r *http.Request) {
	userID, ok := interceptors.RequireUserID(w, r)
	if !ok {
		return
	}

	var req saveOverrideRequest
	if !h.decode(w, r, &req) {
		return
	}

	saved, err := h.overrides.SaveOverride(r.Context(), normalizer.MerchantOverride{
		UserID:       userID,
		MatchPattern: req.MatchPattern,
		MatchType:    req.MatchType,
		MerchantName: req.MerchantName,
		Category:     req.Category,
	})
	switch {
	case errors.Is(err, normalizer.ErrInvalidOverride):
		interceptors.WriteError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.Error("failed to save merchant override", slog.Any("error", err))
		interceptors.WriteError(w, http.StatusInternalServerError, "failed to save merchant override")
		return
	}

	interceptors.WriteJSON(w, http.StatusOK, saved)
}

// DeleteOverride handles DELETE /v1/merchant-overrides/{id}
func (h *ImportHandler) DeleteOverride(w http.ResponseWriter, r *http.Request) {
	userID, ok := interceptors.RequireUserID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	err := h.overrides.DeleteOverride(r.Context(), userID, id)
	switch {
	case errors.Is(err, normalizer.ErrOverrideNotFound):
		interceptors.WriteError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		h.logger.Error("failed to delete merchant override", slog.Any("error", err))
		interceptors.WriteError(w, http.StatusInternalServerError, "failed to delete merchant override")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DownloadFile handles GET /v1/files/{id}
func (h *ImportHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	userID, ok := interceptors.RequireUserID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	body, info, err := h.files.Download(r.Context(), userID, id)
	switch {
	case errors.Is(err, storage.ErrFileNotFound):
		interceptors.WriteError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		h.logger.Error("failed to download file", slog.Any("error", err))
		interceptors.WriteError(w, http.StatusInternalServerError, "failed to download file")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", info.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.Header().Set("Content-Disposition", `attachment; filename="`+info.Name+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("failed to stream file", slog.String("file_id", id.String()), slog.Any("error", err))
	}
}

func (h *ImportHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := r.Body
	if h.maxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			interceptors.WriteError(w, http.StatusRequestEntityTooLarge, importservice.ErrTooLarge.Error())
			return false
		}
		interceptors.WriteError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		interceptors.WriteError(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}
