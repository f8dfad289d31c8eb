// Пакет model — доменные модели Share Module.
// Bundle — группа файлов с общим TTL, FileRecord — один файл бандла.
// После коммита записи неизменяемы: бандл удаляется только целиком.
package model

import (
	"fmt"
	"time"
)

// BackendKind — дискриминант бэкенда, владеющего байтами файла.
type BackendKind string

const (
	// BackendRemote — S3-совместимое объектное хранилище.
	BackendRemote BackendKind = "remote"
	// BackendLocal — локальный диск (SM_UPLOAD_DIR).
	BackendLocal BackendKind = "local"
)

// ResourceKind определяет способ отдачи файла из удалённого бэкенда.
type ResourceKind string

const (
	// ResourceRaw — proxy-stream через сервис.
	ResourceRaw ResourceKind = "raw"
	// ResourceTransformable — redirect на URL с attachment-трансформацией.
	ResourceTransformable ResourceKind = "transformable"
)

// FileRecord — метаданные одного файла бандла.
type FileRecord struct {
	// ID — UUID файла, единственный ключ для скачивания
	ID string `json:"id"`
	// OriginalName — имя файла от клиента (недоверенное)
	OriginalName string `json:"originalName"`
	// StorageKey — имя файла в spool/data директории ({uuid}{ext})
	StorageKey string `json:"storageKey"`
	// Mimetype — MIME-тип из multipart part
	Mimetype string `json:"mimetype"`
	// Size — размер в байтах
	Size int64 `json:"size"`
	// Backend — бэкенд, в котором лежат байты файла
	Backend BackendKind `json:"backend,omitempty"`
	// RemoteObjectID — ключ объекта в бакете (только remote)
	RemoteObjectID string `json:"remoteObjectId,omitempty"`
	// URL — каноническое расположение объекта (только remote)
	URL string `json:"url,omitempty"`
	// ResourceKind — raw или transformable
	ResourceKind ResourceKind `json:"resourceKind,omitempty"`
}

// BackendKind возвращает бэкенд файла. Для старых записей без поля backend
// бэкенд выводится из наличия remoteObjectId.
func (f FileRecord) BackendKind() BackendKind {
	if f.Backend != "" {
		return f.Backend
	}
	if f.RemoteObjectID != "" {
		return BackendRemote
	}
	return BackendLocal
}

// HasBackendRef сообщает, есть ли у записи ссылка на байты в её бэкенде.
func (f FileRecord) HasBackendRef() bool {
	switch f.BackendKind() {
	case BackendRemote:
		return f.RemoteObjectID != ""
	default:
		return f.StorageKey != ""
	}
}

// Kind возвращает ResourceKind, по умолчанию raw.
func (f FileRecord) Kind() ResourceKind {
	if f.ResourceKind == "" {
		return ResourceRaw
	}
	return f.ResourceKind
}

// Bundle — группа файлов, видимая или невидимая целиком.
type Bundle struct {
	ID         string       `json:"id"`
	UploadDate time.Time    `json:"uploadDate"`
	ExpiresAt  time.Time    `json:"expiresAt"`
	Files      []FileRecord `json:"files"`
}

// IsExpired проверяет, истёк ли TTL бандла на момент now.
// Граница включительная: expiresAt == now уже считается истёкшим.
func (b *Bundle) IsExpired(now time.Time) bool {
	return !b.ExpiresAt.After(now)
}

// Validate проверяет инварианты записи перед сохранением.
func (b *Bundle) Validate() error {
	if b.ID == "" {
		return fmt.Errorf("пустой id бандла")
	}
	if !b.ExpiresAt.After(b.UploadDate) {
		return fmt.Errorf("бандл %s: expiresAt (%s) должен быть позже uploadDate (%s)",
			b.ID, b.ExpiresAt.Format(time.RFC3339), b.UploadDate.Format(time.RFC3339))
	}
	seen := make(map[string]struct{}, len(b.Files))
	for _, f := range b.Files {
		if f.ID == "" {
			return fmt.Errorf("бандл %s: пустой id файла %q", b.ID, f.OriginalName)
		}
		if _, dup := seen[f.ID]; dup {
			return fmt.Errorf("бандл %s: повторяющийся id файла %s", b.ID, f.ID)
		}
		seen[f.ID] = struct{}{}
	}
	return nil
}

// Clone возвращает глубокую копию бандла (срез файлов копируется).
func (b Bundle) Clone() Bundle {
	files := make([]FileRecord, len(b.Files))
	copy(files, b.Files)
	b.Files = files
	return b
}
