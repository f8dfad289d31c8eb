// local.go — локальный бэкенд: файлы в директории SM_UPLOAD_DIR.
package backend

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bigkaa/goartstore/share-module/internal/domain/model"
	"github.com/bigkaa/goartstore/share-module/internal/storage/spool"
)

// LocalBackend — хранение файлов на локальном диске.
type LocalBackend struct {
	// dataDir — корневая директория хранения файлов
	dataDir string
}

// NewLocal создаёт локальный бэкенд. Директория создаётся, если её нет.
func NewLocal(dataDir string) (*LocalBackend, error) {
	abs, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("некорректный путь %s: %w", dataDir, err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", abs, err)
	}
	return &LocalBackend{dataDir: abs}, nil
}

// Kind реализует Backend.
func (lb *LocalBackend) Kind() model.BackendKind {
	return model.BackendLocal
}

// DataDir возвращает путь к директории данных.
func (lb *LocalBackend) DataDir() string {
	return lb.dataDir
}

// Upload переносит файл из spool в директорию данных.
//
// Паттерн: fsync temp файла → atomic rename. Если rename невозможен
// (spool на другом устройстве), файл копируется через .tmp и переименовывается.
func (lb *LocalBackend) Upload(_ context.Context, tmp spool.TempFile, rec model.FileRecord) (model.FileRecord, error) {
	fullPath, err := lb.fullPath(rec.StorageKey)
	if err != nil {
		return rec, err
	}

	if err := syncFile(tmp.Path); err != nil {
		return rec, err
	}

	if err := os.Rename(tmp.Path, fullPath); err != nil {
		if cpErr := copyFile(tmp.Path, fullPath); cpErr != nil {
			return rec, fmt.Errorf("ошибка переноса файла %s: %w", rec.StorageKey, cpErr)
		}
	}

	rec.Backend = model.BackendLocal
	return rec, nil
}

// Resolve открывает файл для чтения. Вызывающий код обязан закрыть Body.
func (lb *LocalBackend) Resolve(_ context.Context, rec model.FileRecord) (*Resolution, error) {
	fullPath, err := lb.fullPath(rec.StorageKey)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, rec.StorageKey)
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", rec.StorageKey, err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("ошибка получения stat файла %s: %w", rec.StorageKey, err)
	}

	return &Resolution{
		Body:          f,
		ContentLength: stat.Size(),
		ModTime:       stat.ModTime(),
	}, nil
}

// Delete удаляет файл с диска. Возвращает nil если файл уже не существует.
func (lb *LocalBackend) Delete(_ context.Context, rec model.FileRecord) error {
	fullPath, err := lb.fullPath(rec.StorageKey)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", rec.StorageKey, err)
	}
	return nil
}

// fullPath возвращает абсолютный путь файла. Ключ должен быть
// простым именем файла без разделителей.
func (lb *LocalBackend) fullPath(storageKey string) (string, error) {
	if storageKey == "" || storageKey == "." || storageKey == ".." || filepath.Base(storageKey) != storageKey {
		return "", fmt.Errorf("недопустимый ключ хранения %q", storageKey)
	}
	return filepath.Join(lb.dataDir, storageKey), nil
}

// syncFile сбрасывает содержимое файла на диск перед rename.
func syncFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("ошибка открытия временного файла: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("ошибка fsync: %w", err)
	}
	return f.Close()
}

// copyFile копирует src в dst через dst.tmp → fsync → rename и удаляет src.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmpPath := dst + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи данных: %w", err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	_ = os.Remove(src)
	return nil
}
