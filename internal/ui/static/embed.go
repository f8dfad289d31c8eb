// Пакет static — встроенные HTML-страницы Share Module.
// Страница бандла и страница истёкшей ссылки встраиваются в бинарник
// через //go:embed; данные бандла страница получает из /api/bundle/{id}.
package static

import (
	"embed"
	"io/fs"
	"net/http"
)

// Имена встроенных страниц.
const (
	PageDownload = "download.html"
	PageExpired  = "expired.html"
)

//go:embed download.html expired.html
var content embed.FS

// FS возвращает fs.FS для прямого доступа к встроенным файлам.
func FS() fs.FS {
	return content
}

// ServePage отдаёт встроенную страницу как text/html.
func ServePage(w http.ResponseWriter, r *http.Request, name string) {
	data, err := content.ReadFile(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
