// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"
	"fmt"

	"github.com/bigkaa/goartstore/share-module/internal/storage/bundlestore"
)

var (
	// ErrNotFound — бандл или файл отсутствует либо истёк.
	ErrNotFound = bundlestore.ErrNotFound
	// ErrNotAvailable — у записи нет ссылки на байты в бэкенде.
	ErrNotAvailable = errors.New("файл недоступен: отсутствует ссылка на хранилище")
	// ErrNoFiles — запрос загрузки без файлов.
	ErrNoFiles = errors.New("нет файлов для загрузки")
)

// UploadFailedError — загрузка бандла отменена целиком.
// FileName — первый (в порядке запроса) файл, загрузка которого не удалась;
// пусто, если сбой произошёл при сохранении записи.
type UploadFailedError struct {
	FileName string
	Err      error
}

func (e *UploadFailedError) Error() string {
	if e.FileName == "" {
		return fmt.Sprintf("загрузка не удалась: %v", e.Err)
	}
	return fmt.Sprintf("загрузка файла %s не удалась: %v", e.FileName, e.Err)
}

func (e *UploadFailedError) Unwrap() error {
	return e.Err
}

// DownloadFailedError — бэкенд не смог открыть файл для отдачи.
type DownloadFailedError struct {
	FileID string
	Err    error
}

func (e *DownloadFailedError) Error() string {
	return fmt.Sprintf("скачивание файла %s не удалось: %v", e.FileID, e.Err)
}

func (e *DownloadFailedError) Unwrap() error {
	return e.Err
}
