// classify.go — классификация загружаемых файлов.
package service

import (
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bigkaa/goartstore/share-module/internal/domain/model"
)

// transformableExts — изображения и видео, которые отдаются через redirect
// с attachment-трансформацией на стороне объектного хранилища.
var transformableExts = extSet(".jpg", ".jpeg", ".png", ".gif", ".bmp", ".svg", ".webp",
	".mp4", ".avi", ".mov", ".mkv", ".webm")

// Категории для логов загрузки. Порядок проверки важен.
var (
	imageExts = extSet(".jpg", ".jpeg", ".png", ".gif", ".bmp", ".svg", ".webp", ".ico", ".tiff", ".tif",
		".heic", ".heif", ".raw", ".cr2", ".nef", ".arw", ".dng")
	videoExts = extSet(".mp4", ".avi", ".mov", ".wmv", ".flv", ".mkv", ".webm", ".m4v", ".mpg", ".mpeg",
		".3gp", ".ogv", ".vob", ".ts", ".mts")
	audioExts = extSet(".mp3", ".wav", ".flac", ".aac", ".ogg", ".wma", ".m4a", ".opus", ".aiff", ".ape",
		".alac", ".mid", ".midi")
	documentExts = extSet(".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".txt", ".rtf",
		".odt", ".ods", ".odp", ".pages", ".numbers", ".key")
	archiveExts = extSet(".zip", ".rar", ".7z", ".tar", ".gz", ".bz2", ".xz", ".iso", ".dmg", ".pkg")
	codeExts    = extSet(".js", ".py", ".java", ".cpp", ".c", ".cs", ".php", ".html", ".css", ".json",
		".xml", ".sql", ".sh", ".bat", ".ps1", ".rb", ".go", ".rs", ".swift", ".kt", ".jsx", ".tsx", ".vue")
	executableExts = extSet(".exe", ".msi", ".app", ".apk", ".deb", ".rpm", ".jar")
)

func extSet(exts ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		m[e] = struct{}{}
	}
	return m
}

func has(set map[string]struct{}, ext string) bool {
	_, ok := set[ext]
	return ok
}

// Classify определяет способ отдачи файла из удалённого бэкенда.
func Classify(name, mimetype string) model.ResourceKind {
	ext := strings.ToLower(filepath.Ext(name))
	if has(transformableExts, ext) ||
		strings.HasPrefix(mimetype, "image/") || strings.HasPrefix(mimetype, "video/") {
		return model.ResourceTransformable
	}
	return model.ResourceRaw
}

// FileCategory возвращает категорию файла для логов.
func FileCategory(name, mimetype string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case has(imageExts, ext) || strings.HasPrefix(mimetype, "image/"):
		return "Image"
	case has(videoExts, ext) || strings.HasPrefix(mimetype, "video/"):
		return "Video"
	case has(audioExts, ext) || strings.HasPrefix(mimetype, "audio/"):
		return "Audio"
	case has(documentExts, ext):
		return "Document"
	case has(archiveExts, ext):
		return "Archive"
	case has(codeExts, ext) || strings.Contains(mimetype, "text/"):
		return "Code/Text"
	case has(executableExts, ext):
		return "Executable"
	default:
		return "Other"
	}
}

// FormatBytes форматирует размер для логов: 1536 → "1.5 KB".
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}
	units := []string{"Bytes", "KB", "MB", "GB", "TB"}
	v := float64(n)
	i := 0
	for v >= 1024 && i < len(units)-1 {
		v /= 1024
		i++
	}
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64) + " " + units[i]
}
