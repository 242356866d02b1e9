package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/samhotchkiss/postport/internal/store"
)

const maxStatusLimit = 200

type StatusHandler struct {
	Accounts AccountReader
	Statuses StatusReader
	Logger   *zap.Logger
}

type StatusListResponse struct {
	Account  string         `json:"account"`
	Limit    int            `json:"limit"`
	Statuses []store.Status `json:"statuses"`
}

// List returns an account's newest statuses, each with its media and thread
// parent.
func (h *StatusHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.Accounts == nil || h.Statuses == nil {
		sendJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "database not available"})
		return
	}

	username := store.NormalizeUsername(chi.URLParam(r, "username"))
	if username == "" {
		sendJSON(w, http.StatusBadRequest, errorResponse{Error: "username is required"})
		return
	}

	limit := 20
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			sendJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		if parsed > maxStatusLimit {
			parsed = maxStatusLimit
		}
		limit = parsed
	}

	account, err := h.Accounts.GetByUsername(r.Context(), username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			sendJSON(w, http.StatusNotFound, errorResponse{Error: "account not found"})
			return
		}
		h.Logger.Error("failed to load account", zap.String("account", username), zap.Error(err))
		sendJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load account"})
		return
	}

	statuses, err := h.Statuses.ListByAccount(r.Context(), account.ID, limit)
	if err != nil {
		h.Logger.Error("failed to list statuses", zap.Int64("account_id", account.ID), zap.Error(err))
		sendJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to list statuses"})
		return
	}

	sendJSON(w, http.StatusOK, StatusListResponse{
		Account:  account.Username,
		Limit:    limit,
		Statuses: statuses,
	})
}
