// Пакет spool — приём загружаемых файлов во временную директорию.
// Каждый multipart part пишется потоково в отдельный файл {uuid}{ext},
// после чего передаётся оркестратору загрузки как TempFile.
package spool

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrFileTooLarge — файл превышает SM_MAX_FILE_SIZE.
var ErrFileTooLarge = errors.New("файл превышает допустимый размер")

// TempFile — принятый файл во временной директории.
type TempFile struct {
	// OriginalName — имя файла от клиента
	OriginalName string
	// Mimetype — нормализованный Content-Type part
	Mimetype string
	// Size — фактически записанный размер в байтах
	Size int64
	// StorageKey — имя файла в spool ({uuid}{ext})
	StorageKey string
	// Path — абсолютный путь к временному файлу
	Path string
}

// Spool — временная директория для входящих файлов.
type Spool struct {
	dir         string
	maxFileSize int64
}

// New создаёт Spool. Директория создаётся, если её нет.
func New(dir string, maxFileSize int64) (*Spool, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("некорректный путь spool %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию spool %s: %w", abs, err)
	}
	return &Spool{dir: abs, maxFileSize: maxFileSize}, nil
}

// Dir возвращает абсолютный путь директории spool.
func (s *Spool) Dir() string {
	return s.dir
}

// Save потоково записывает reader во временный файл.
// Пишет не более maxFileSize байт; при превышении файл удаляется
// и возвращается ErrFileTooLarge.
func (s *Spool) Save(reader io.Reader, originalName, contentType string) (*TempFile, error) {
	key := StorageKey(originalName)
	path := filepath.Join(s.dir, key)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	// +1 байт, чтобы отличить "ровно лимит" от превышения
	size, err := io.Copy(f, io.LimitReader(reader, s.maxFileSize+1))
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("ошибка записи данных %s: %w", originalName, err)
	}
	if size > s.maxFileSize {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("%s: %w (лимит %d байт)", originalName, ErrFileTooLarge, s.maxFileSize)
	}

	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	return &TempFile{
		OriginalName: originalName,
		Mimetype:     DetectContentType(contentType),
		Size:         size,
		StorageKey:   key,
		Path:         path,
	}, nil
}

// Remove удаляет временный файл. Отсутствие файла ошибкой не считается:
// локальный бэкенд забирает файл из spool через rename.
func Remove(f TempFile) error {
	err := os.Remove(f.Path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления временного файла %s: %w", f.StorageKey, err)
	}
	return nil
}

// StorageKey генерирует имя файла для хранения: {uuid}{ext}.
// Расширение берётся из оригинального имени в нижнем регистре.
func StorageKey(originalName string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	if !safeExt(ext) {
		ext = ""
	}
	return uuid.New().String() + ext
}

// safeExt допускает только расширения из букв и цифр разумной длины.
func safeExt(ext string) bool {
	if len(ext) < 2 || len(ext) > 16 || ext[0] != '.' {
		return false
	}
	for _, r := range ext[1:] {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}

// DetectContentType нормализует Content-Type из заголовка multipart part.
// Если не указан — используется application/octet-stream.
func DetectContentType(contentType string) string {
	if contentType == "" {
		return "application/octet-stream"
	}
	// Убираем параметры (charset и т.д.)
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	return contentType
}
