// file_medium.go — снимок бандлов в JSON-файле (db.json).
package bundlestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bigkaa/goartstore/share-module/internal/domain/model"
)

// FileMedium — JSON-массив бандлов в одном файле.
// Запись атомарная: temp → fsync → rename.
type FileMedium struct {
	path string
}

// NewFileMedium создаёт носитель для файла path.
func NewFileMedium(path string) *FileMedium {
	return &FileMedium{path: path}
}

// Name реализует Medium.
func (m *FileMedium) Name() string {
	return "file:" + m.path
}

// Probe создаёт пустой снимок "[]" при отсутствии файла и проверяет,
// что файл доступен на запись и содержит валидный JSON.
func (m *FileMedium) Probe(ctx context.Context) error {
	if _, err := os.Stat(m.path); os.IsNotExist(err) {
		if err := m.Write(ctx, nil); err != nil {
			return fmt.Errorf("не удалось создать снимок %s: %w", m.path, err)
		}
	} else if err != nil {
		return fmt.Errorf("ошибка stat %s: %w", m.path, err)
	}

	f, err := os.OpenFile(m.path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("снимок %s недоступен на запись: %w", m.path, err)
	}
	f.Close()

	// Директория тоже должна быть доступна: rename создаёт .tmp рядом
	tmpPath := m.path + ".probe"
	pf, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("директория снимка недоступна на запись: %w", err)
	}
	pf.Close()
	os.Remove(tmpPath)

	_, err = m.Read(ctx)
	return err
}

// Read читает снимок. Пустой или отсутствующий файл — пустой набор.
func (m *FileMedium) Read(_ context.Context) ([]model.Bundle, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка чтения снимка %s: %w", m.path, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var bundles []model.Bundle
	if err := json.Unmarshal(data, &bundles); err != nil {
		return nil, fmt.Errorf("ошибка десериализации снимка %s: %w", m.path, err)
	}
	return bundles, nil
}

// Write атомарно заменяет снимок.
// Паттерн: JSON → temp файл → fsync → atomic rename.
func (m *FileMedium) Write(_ context.Context, bundles []model.Bundle) error {
	if bundles == nil {
		bundles = []model.Bundle{}
	}
	data, err := json.MarshalIndent(bundles, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации снимка: %w", err)
	}

	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
	}

	tmpPath := m.path + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, m.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return nil
}
