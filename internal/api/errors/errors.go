// Пакет errors — конструкторы ответов с ошибками Share Module.
// Единый плоский формат: {"error": "...", "message": "..."}.
// Поле error — короткое описание для клиента, message — подробности (опционально).
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors //nolint:revive // конфликт имени со stdlib, импортируется как apierrors

import (
	"encoding/json"
	"net/http"
)

// Тексты ошибок, на которые опирается клиентская часть.
const (
	TextNoFiles         = "No files uploaded"
	TextInvalidUpload   = "Invalid upload request"
	TextFileTooLarge    = "File too large"
	TextUploadFailed    = "Upload failed"
	TextBundleNotFound  = "Bundle not found or expired"
	TextFileNotFound    = "File not found or expired"
	TextFileUnavailable = "File not available"
	TextDownloadFailed  = "Download failed"
	TextInternalError   = "Internal server error"
)

// errorBody — тело ответа ошибки.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WriteError записывает ответ ошибки.
// statusCode — HTTP статус-код, errText — текст ошибки, message — подробности.
func WriteError(w http.ResponseWriter, statusCode int, errText, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error:   errText,
		Message: message,
	})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректный запрос.
func ValidationError(w http.ResponseWriter, errText, message string) {
	WriteError(w, http.StatusBadRequest, errText, message)
}

// NotFound — 404 ресурс не найден или истёк.
func NotFound(w http.ResponseWriter, errText, message string) {
	WriteError(w, http.StatusNotFound, errText, message)
}

// FileTooLarge — 413 файл превышает лимит.
func FileTooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, TextFileTooLarge, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, errText, message string) {
	WriteError(w, http.StatusInternalServerError, errText, message)
}
