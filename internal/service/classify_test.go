package service

import (
	"testing"

	"github.com/bigkaa/goartstore/share-module/internal/domain/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		mimetype string
		want     model.ResourceKind
	}{
		{"photo.JPG", "", model.ResourceTransformable},
		{"clip.webm", "application/octet-stream", model.ResourceTransformable},
		{"scan", "image/tiff", model.ResourceTransformable},
		{"movie.bin", "video/mp4", model.ResourceTransformable},
		{"report.pdf", "application/pdf", model.ResourceRaw},
		{"setup.exe", "application/x-msdownload", model.ResourceRaw},
		{"noext", "", model.ResourceRaw},
	}
	for _, tt := range tests {
		if got := Classify(tt.name, tt.mimetype); got != tt.want {
			t.Errorf("Classify(%q, %q) = %q, ожидался %q", tt.name, tt.mimetype, got, tt.want)
		}
	}
}

func TestFileCategory(t *testing.T) {
	tests := []struct {
		name     string
		mimetype string
		want     string
	}{
		{"a.png", "", "Image"},
		{"a.mkv", "", "Video"},
		{"a.flac", "", "Audio"},
		{"voice", "audio/ogg", "Audio"},
		{"a.docx", "", "Document"},
		{"a.7z", "", "Archive"},
		{"main.go", "", "Code/Text"},
		{"readme", "text/markdown", "Code/Text"},
		{"a.msi", "", "Executable"},
		{"a.xyz", "application/octet-stream", "Other"},
	}
	for _, tt := range tests {
		if got := FileCategory(tt.name, tt.mimetype); got != tt.want {
			t.Errorf("FileCategory(%q, %q) = %q, ожидалась %q", tt.name, tt.mimetype, got, tt.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 Bytes"},
		{1023, "1023 Bytes"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5 MB"},
		{500 * 1024 * 1024, "500 MB"},
		{3 * 1024 * 1024 * 1024, "3 GB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.n); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, ожидалось %q", tt.n, got, tt.want)
		}
	}
}
