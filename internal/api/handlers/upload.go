// upload.go — обработчик POST /api/upload.
// Multipart читается потоково: каждая part "files" сразу пишется в spool,
// целиком в памяти запрос не держится.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/goartstore/share-module/internal/api/errors"
	"github.com/bigkaa/goartstore/share-module/internal/domain/model"
	"github.com/bigkaa/goartstore/share-module/internal/service"
	"github.com/bigkaa/goartstore/share-module/internal/storage/spool"
)

// Имена полей multipart формы.
const (
	formFieldFiles  = "files"
	formFieldExpiry = "expiry"
)

// maxExpiryFieldSize — лимит на значение поля expiry.
const maxExpiryFieldSize = 64

// uploadResponse — ответ успешной загрузки.
type uploadResponse struct {
	Message string        `json:"message"`
	Bundle  *model.Bundle `json:"bundle"`
}

// UploadFiles — загрузка файлов и создание бандла.
func (h *APIHandler) UploadFiles(w http.ResponseWriter, r *http.Request) {
	files, expiry, err := h.readMultipart(r)
	if err != nil {
		removeSpooled(files)
		if errors.Is(err, spool.ErrFileTooLarge) {
			h.logger.Warn("Файл превышает лимит", slog.String("error", err.Error()))
			apierrors.FileTooLarge(w, err.Error())
			return
		}
		h.logger.Warn("Некорректный multipart запрос", slog.String("error", err.Error()))
		apierrors.ValidationError(w, apierrors.TextInvalidUpload, err.Error())
		return
	}

	if len(files) == 0 {
		apierrors.ValidationError(w, apierrors.TextNoFiles, "")
		return
	}

	// Upload удаляет временные файлы сам
	bundle, err := h.upload.Upload(r.Context(), files, expiry)
	if err != nil {
		var ufe *service.UploadFailedError
		switch {
		case errors.Is(err, service.ErrNoFiles):
			apierrors.ValidationError(w, apierrors.TextNoFiles, "")
		case errors.As(err, &ufe):
			apierrors.InternalError(w, apierrors.TextUploadFailed, ufe.Error())
		default:
			h.logger.Error("Ошибка загрузки", slog.String("error", err.Error()))
			apierrors.InternalError(w, apierrors.TextUploadFailed, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Message: "Upload successful",
		Bundle:  bundle,
	})
}

// readMultipart разбирает тело запроса. Возвращает уже сохранённые
// временные файлы даже при ошибке, чтобы вызывающий мог их удалить.
func (h *APIHandler) readMultipart(r *http.Request) ([]spool.TempFile, string, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, "", fmt.Errorf("ожидается multipart/form-data: %w", err)
	}

	var (
		files  []spool.TempFile
		expiry string
	)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return files, expiry, nil
		}
		if err != nil {
			return files, "", fmt.Errorf("ошибка чтения multipart: %w", err)
		}

		switch part.FormName() {
		case formFieldFiles:
			if part.FileName() == "" {
				part.Close()
				continue
			}
			tf, err := h.spool.Save(part, part.FileName(), part.Header.Get("Content-Type"))
			part.Close()
			if err != nil {
				return files, "", err
			}
			files = append(files, *tf)

		case formFieldExpiry:
			data, err := io.ReadAll(io.LimitReader(part, maxExpiryFieldSize))
			part.Close()
			if err != nil {
				return files, "", fmt.Errorf("ошибка чтения поля %s: %w", formFieldExpiry, err)
			}
			expiry = string(data)

		default:
			part.Close()
		}
	}
}

// removeSpooled удаляет временные файлы отклонённого запроса.
func removeSpooled(files []spool.TempFile) {
	for _, f := range files {
		_ = spool.Remove(f)
	}
}
