package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/share-module/internal/api/errors"
	"github.com/bigkaa/goartstore/share-module/internal/service"
)

// GetBundle — метаданные бандла по id. Истёкший бандл не отдаётся.
func (h *APIHandler) GetBundle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	bundle, err := h.store.GetBundle(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			h.logger.Debug("Бандл не найден", slog.String("bundle_id", id))
			apierrors.NotFound(w, apierrors.TextBundleNotFound, "")
			return
		}
		h.logger.Error("Ошибка получения бандла",
			slog.String("bundle_id", id),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, apierrors.TextInternalError, "")
		return
	}

	writeJSON(w, http.StatusOK, bundle)
}
