// Пакет backend — бэкенды хранения байтов файлов.
//
// Каждый бэкенд реализует три операции: Upload (перенос принятого файла
// из spool в хранилище), Resolve (поток или redirect для скачивания)
// и Delete. Бэкенд-владелец файла определяется дискриминантом
// FileRecord.Backend, выбор выполняет Registry.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bigkaa/goartstore/share-module/internal/domain/model"
	"github.com/bigkaa/goartstore/share-module/internal/storage/spool"
)

// Ошибки бэкендов.
var (
	// ErrObjectNotFound — байты файла отсутствуют в бэкенде.
	ErrObjectNotFound = errors.New("объект не найден в хранилище")
	// ErrUnknownBackend — запись ссылается на незарегистрированный бэкенд.
	ErrUnknownBackend = errors.New("бэкенд не зарегистрирован")
)

// Resolution — результат Resolve: либо redirect, либо поток.
type Resolution struct {
	// RedirectURL — если задан, клиента нужно перенаправить (302)
	RedirectURL string
	// Body — поток содержимого, закрывает вызывающий код.
	// Для локальных файлов реализует io.ReadSeeker.
	Body io.ReadCloser
	// ContentLength — длина из upstream, -1 если неизвестна
	ContentLength int64
	// ModTime — время изменения (только локальные файлы)
	ModTime time.Time
}

// Backend — хранилище байтов файлов.
type Backend interface {
	// Kind возвращает дискриминант, которым помечаются записи бэкенда.
	Kind() model.BackendKind
	// Upload переносит принятый файл в хранилище и возвращает запись
	// с заполненными полями бэкенда.
	Upload(ctx context.Context, tmp spool.TempFile, rec model.FileRecord) (model.FileRecord, error)
	// Resolve готовит отдачу файла: поток или redirect.
	Resolve(ctx context.Context, rec model.FileRecord) (*Resolution, error)
	// Delete удаляет байты файла. Отсутствие объекта ошибкой не считается.
	Delete(ctx context.Context, rec model.FileRecord) error
}

// AttachmentDisposition формирует Content-Disposition: attachment
// с оригинальным именем: ASCII-вариант в кавычках для старых клиентов
// и точное имя в filename* (RFC 5987).
func AttachmentDisposition(name string) string {
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, asciiFallback(name), encodeRFC5987(name))
}

// encodedAttachment — attachment только с filename*, для передачи
// в response-content-disposition presigned URL.
func encodedAttachment(name string) string {
	return "attachment; filename*=UTF-8''" + encodeRFC5987(name)
}

// asciiFallback заменяет символы, недопустимые в quoted-string, на '_'.
func asciiFallback(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}
	if b.Len() == 0 {
		return "download"
	}
	return b.String()
}

// encodeRFC5987 кодирует байты имени, оставляя только attr-char.
func encodeRFC5987(name string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		if isAttrChar(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isAttrChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("!#$&+-.^_`|~", c) >= 0
}
