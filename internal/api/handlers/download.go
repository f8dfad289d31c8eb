package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/share-module/internal/api/errors"
	"github.com/bigkaa/goartstore/share-module/internal/service"
)

// notAvailableMessage — пояснение для файла без ссылки на хранилище.
const notAvailableMessage = "This file was not properly uploaded to storage and is no longer accessible."

// DownloadFile — скачивание одного файла: поток с attachment или 302.
// Ошибки возможны только до начала записи тела, поэтому ответ ещё свободен.
func (h *APIHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileId")

	err := h.download.Download(w, r, fileID)
	if err == nil {
		return
	}

	var dfe *service.DownloadFailedError
	switch {
	case errors.Is(err, service.ErrNotAvailable):
		apierrors.NotFound(w, apierrors.TextFileUnavailable, notAvailableMessage)
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, apierrors.TextFileNotFound, "")
	case errors.As(err, &dfe):
		apierrors.InternalError(w, apierrors.TextDownloadFailed, "")
	default:
		apierrors.InternalError(w, apierrors.TextInternalError, "")
	}
}
