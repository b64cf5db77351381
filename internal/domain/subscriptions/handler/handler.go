// Package handler implements the subscription HTTP handlers.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/FACorreiaa/subscription-tracker/internal/domain/subscriptions/repository"
	"github.com/FACorreiaa/subscription-tracker/internal/domain/subscriptions/service"
	"github.com/FACorreiaa/subscription-tracker/pkg/interceptors"
)

// SubscriptionsHandler serves the subscription routes
type SubscriptionsHandler struct {
	svc    *service.Service
	logger *slog.Logger
}

// NewSubscriptionsHandler constructs a new handler
func NewSubscriptionsHandler(svc *service.Service, logger *slog.Logger) *SubscriptionsHandler {
	return &SubscriptionsHandler{svc: svc, logger: logger}
}

// RegisterRoutes adds the subscription routes to mux.
func (h *SubscriptionsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/subscriptions/import", h.Import)
	mux.HandleFunc("GET /v1/subscriptions", h.List)
	mux.HandleFunc("GET /v1/subscriptions/duplicates", h.Duplicates)
	mux.HandleFunc("GET /v1/subscriptions/summary", h.Summary)
	mux.HandleFunc("POST /v1/subscriptions/{id}/not-duplicate", h.MarkNotDuplicate)
	mux.HandleFunc("POST /v1/subscriptions/{id}/cancel", h.ToggleCancelled)
	mux.HandleFunc("PUT /v1/subscriptions/{id}", h.Update)
	mux.HandleFunc("DELETE /v1/subscriptions/{id}", h.Delete)
}

type importRequest struct {
	Selections []service.ImportSelection `json:"selections"`
}

// Import handles POST /v1/subscriptions/import
func (h *SubscriptionsHandler) Import(w http.ResponseWriter, r *http.Request) {
	userID, ok := interceptors.RequireUserID(w, r)
	if !ok {
		return
	}

	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		interceptors.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	subs, err := h.svc.ImportDetected(r.Context(), userID, req.Selections)
	if err != nil {
		h.writeServiceError(w, "failed to import subscriptions", err)
		return
	}

	interceptors.WriteJSON(w, http.StatusCreated, map[string]any{
		"subscriptions": subs,
		"count":         len(subs),
	})
}

// List handles GET /v1/subscriptions?q=&tag=&sort=&currency=
func (h *SubscriptionsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := interceptors.RequireUserID(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	sort, err := service.ParseSortOption(query.Get("sort"))
	if err != nil {
		interceptors.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var tags []string
	for _, raw := range query["tag"] {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	}

	subs, err := h.svc.List(r.Context(), userID, service.ListOptions{
		Query:    query.Get("q"),
		Tags:     tags,
		Sort:     sort,
		Currency: query.Get("currency"),
	})
	if err != nil {
		h.writeServiceError(w, "failed to list subscriptions", err)
		return
	}

	writeList(w, subs)
}

// Duplicates handles GET /v1/subscriptions/duplicates?currency=
func (h *SubscriptionsHandler) Duplicates(w http.ResponseWriter, r *http.Request) {
	userID, ok := interceptors.RequireUserID(w, r)
	if !ok {
		return
	}

	subs, err := h.svc.FindDuplicates(r.Context(), userID, r.URL.Query().Get("currency"))
	if err != nil {
		h.writeServiceError(w, "failed to find duplicates", err)
		return
	}

	writeList(w, subs)
}

// Summary handles GET /v1/subscriptions/summary?currency=
func (h *SubscriptionsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, ok := interceptors.RequireUserID(w, r)
	if !ok {
		return
	}

	summary, err := h.svc.Summary(r.Context(), userID, r.URL.Query().Get("currency"))
	if err != nil {
		h.writeServiceError(w, "failed to summarise subscriptions", err)
		return
	}

	interceptors.WriteJSON(w, http.StatusOK, summary)
}

// MarkNotDuplicate handles POST /v1/subscriptions/{id}/not-duplicate
func (h *SubscriptionsHandler) MarkNotDuplicate(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := userAndPathID(w, r)
	if !ok {
		return
	}

	if err := h.svc.MarkNotDuplicate(r.Context(), userID, id); err != nil {
		h.writeServiceError(w, "failed to mark subscription", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ToggleCancelled handles POST /v1/subscriptions/{id}/cancel
func (h *SubscriptionsHandler) ToggleCancelled(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := userAndPathID(w, r)
	if !ok {
		return
	}

	sub, err := h.svc.ToggleCancelled(r.Context(), userID, id)
	if err != nil {
		h.writeServiceError(w, "failed to update subscription", err)
		return
	}

	interceptors.WriteJSON(w, http.StatusOK, sub)
}

// Update handles PUT /v1/subscriptions/{id}
func (h *SubscriptionsHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := userAndPathID(w, r)
	if !ok {
		return
	}

	var req service.UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		interceptors.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sub, err := h.svc.Update(r.Context(), userID, id, req)
	if err != nil {
		h.writeServiceError(w, "failed to update subscription", err)
		return
	}

	interceptors.WriteJSON(w, http.StatusOK, sub)
}

// Delete handles DELETE /v1/subscriptions/{id}
func (h *SubscriptionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := userAndPathID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), userID, id); err != nil {
		h.writeServiceError(w, "failed to delete subscription", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *SubscriptionsHandler) writeServiceError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		interceptors.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		interceptors.WriteError(w, http.StatusNotFound, repository.ErrNotFound.Error())
	default:
		h.logger.Error(message, slog.Any("error", err))
		interceptors.WriteError(w, http.StatusInternalServerError, message)
	}
}

func writeList(w http.ResponseWriter, subs []*repository.Subscription) {
	if subs == nil {
		subs = []*repository.Subscription{}
	}
	interceptors.WriteJSON(w, http.StatusOK, map[string]any{
		"subscriptions": subs,
		"count":         len(subs),
	})
}

func userAndPathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := interceptors.RequireUserID(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		interceptors.WriteError(w, http.StatusBadRequest, "invalid subscription id")
		return uuid.Nil, uuid.Nil, false
	}
	return userID, id, true
}
