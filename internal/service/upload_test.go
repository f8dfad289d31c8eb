package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/share-module/internal/domain/model"
	"github.com/bigkaa/goartstore/share-module/internal/storage/backend"
	"github.com/bigkaa/goartstore/share-module/internal/storage/bundlestore"
	"github.com/bigkaa/goartstore/share-module/internal/storage/spool"
)

func TestParseExpiry(t *testing.T) {
	us := NewUploadService(nil, nil, UploadConfig{
		DefaultExpiryMinutes: 60,
		MinExpiryMinutes:     1,
		MaxExpiryMinutes:     10080,
	}, testLogger())

	tests := []struct {
		raw  string
		want time.Duration
	}{
		{"", 60 * time.Minute},
		{"abc", 60 * time.Minute},
		{"0", 60 * time.Minute},
		{"-5", 60 * time.Minute},
		{"1.5", 60 * time.Minute},
		{"1", time.Minute},
		{"30", 30 * time.Minute},
		{" 15 ", 15 * time.Minute},
		{"10080", 10080 * time.Minute},
		{"20000", 10080 * time.Minute},
	}
	for _, tt := range tests {
		if got := us.ParseExpiry(tt.raw); got != tt.want {
			t.Errorf("ParseExpiry(%q) = %v, ожидалось %v", tt.raw, got, tt.want)
		}
	}
}

func TestUpload_LocalCommitsBundle(t *testing.T) {
	env := newTestEnv(t)
	us := env.uploadService(backend.NewRegistry(env.local))
	ctx := context.Background()

	files := []spool.TempFile{
		env.spoolFile(t, "photo.jpg", "image/jpeg", "jpeg-bytes"),
		env.spoolFile(t, "notes.txt", "text/plain", "hello"),
	}

	bundle, err := us.Upload(ctx, files, "30")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if !bundle.UploadDate.Equal(t0) || !bundle.ExpiresAt.Equal(t0.Add(30*time.Minute)) {
		t.Errorf("даты бандла = %v / %v", bundle.UploadDate, bundle.ExpiresAt)
	}
	if len(bundle.Files) != 2 {
		t.Fatalf("файлов в бандле = %d, ожидалось 2", len(bundle.Files))
	}
	if bundle.Files[0].OriginalName != "photo.jpg" || bundle.Files[1].OriginalName != "notes.txt" {
		t.Errorf("порядок файлов нарушен: %s, %s", bundle.Files[0].OriginalName, bundle.Files[1].OriginalName)
	}
	if bundle.Files[0].ResourceKind != model.ResourceTransformable || bundle.Files[1].ResourceKind != model.ResourceRaw {
		t.Errorf("классификация = %s, %s", bundle.Files[0].ResourceKind, bundle.Files[1].ResourceKind)
	}
	if bundle.Files[0].ID == bundle.Files[1].ID {
		t.Error("id файлов должны быть уникальны")
	}

	for i, f := range bundle.Files {
		if f.Backend != model.BackendLocal {
			t.Errorf("Backend = %q, ожидался local", f.Backend)
		}
		if _, err := os.Stat(filepath.Join(env.local.DataDir(), f.StorageKey)); err != nil {
			t.Errorf("файл %s отсутствует в директории данных: %v", f.OriginalName, err)
		}
		if _, err := os.Stat(files[i].Path); !os.IsNotExist(err) {
			t.Errorf("временный файл %s не удалён", files[i].Path)
		}
	}

	stored, err := env.store.GetBundle(ctx, bundle.ID)
	if err != nil {
		t.Fatalf("GetBundle: %v", err)
	}
	if len(stored.Files) != 2 {
		t.Errorf("в хранилище %d файлов", len(stored.Files))
	}
}

func TestUpload_OneFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	remote := newFakeBackend(model.BackendRemote)
	remote.failNames["broken.bin"] = true
	us := env.uploadService(backend.NewRegistry(remote, env.local))
	ctx := context.Background()

	files := []spool.TempFile{
		env.spoolFile(t, "a.txt", "text/plain", "a"),
		env.spoolFile(t, "broken.bin", "", "b"),
		env.spoolFile(t, "c.txt", "text/plain", "c"),
	}

	bundle, err := us.Upload(ctx, files, "")
	if bundle != nil {
		t.Fatal("бандл не должен возвращаться при сбое")
	}

	var ufe *UploadFailedError
	if !errors.As(err, &ufe) {
		t.Fatalf("ошибка = %v, ожидалась UploadFailedError", err)
	}
	if ufe.FileName != "broken.bin" {
		t.Errorf("FileName = %q, ожидался broken.bin", ufe.FileName)
	}

	// Компенсирующие удаления для всех успешно загруженных файлов
	if got := len(remote.deletedKeys()); got != 2 {
		t.Errorf("компенсирующих удалений = %d, ожидалось 2", got)
	}
	if len(remote.objects) != 0 {
		t.Errorf("в бэкенде остались объекты: %v", remote.objects)
	}

	if n := len(env.store.Load(ctx)); n != 0 {
		t.Errorf("в хранилище %d бандлов, ожидалось 0", n)
	}
	for _, f := range files {
		if _, err := os.Stat(f.Path); !os.IsNotExist(err) {
			t.Errorf("временный файл %s не удалён", f.OriginalName)
		}
	}
}

func TestUpload_FirstFailureInRequestOrder(t *testing.T) {
	env := newTestEnv(t)
	remote := newFakeBackend(model.BackendRemote)
	remote.failNames["first.bin"] = true
	remote.failNames["second.bin"] = true
	us := env.uploadService(backend.NewRegistry(remote))

	files := []spool.TempFile{
		env.spoolFile(t, "ok.txt", "", "ok"),
		env.spoolFile(t, "first.bin", "", "1"),
		env.spoolFile(t, "second.bin", "", "2"),
	}

	_, err := us.Upload(context.Background(), files, "")
	var ufe *UploadFailedError
	if !errors.As(err, &ufe) {
		t.Fatalf("ошибка = %v, ожидалась UploadFailedError", err)
	}
	if ufe.FileName != "first.bin" {
		t.Errorf("FileName = %q, ожидался first.bin", ufe.FileName)
	}
}

func TestUpload_RemoteRecordsObjectKey(t *testing.T) {
	env := newTestEnv(t)
	remote := newFakeBackend(model.BackendRemote)
	us := env.uploadService(backend.NewRegistry(remote, env.local))

	bundle, err := us.Upload(context.Background(),
		[]spool.TempFile{env.spoolFile(t, "report.pdf", "application/pdf", "%PDF")}, "5")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	f := bundle.Files[0]
	if f.Backend != model.BackendRemote || f.RemoteObjectID == "" {
		t.Errorf("запись remote файла: %+v", f)
	}
	if f.ResourceKind != model.ResourceRaw {
		t.Errorf("ResourceKind = %q, ожидался raw", f.ResourceKind)
	}
}

func TestUpload_NoFiles(t *testing.T) {
	env := newTestEnv(t)
	us := env.uploadService(backend.NewRegistry(env.local))
	if _, err := us.Upload(context.Background(), nil, ""); !errors.Is(err, ErrNoFiles) {
		t.Errorf("ошибка = %v, ожидалась ErrNoFiles", err)
	}
}

func TestUpload_CommitFailureRollsBack(t *testing.T) {
	tests := []struct {
		name    string
		files   []string
		taken   bool
		wantErr error
	}{
		// id бандла уже занят
		{name: "повторный id бандла", files: []string{"a.txt"}, taken: true, wantErr: bundlestore.ErrDuplicate},
		// у файлов одинаковые id, запись не проходит валидацию
		{name: "некорректная запись", files: []string{"a.txt", "b.txt"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			remote := newFakeBackend(model.BackendRemote)
			us := env.uploadService(backend.NewRegistry(remote))
			us.newID = func() string { return "taken" }
			ctx := context.Background()

			before := 0
			if tt.taken {
				if err := env.store.Save(ctx, model.Bundle{
					ID: "taken", UploadDate: t0, ExpiresAt: t0.Add(time.Hour),
				}); err != nil {
					t.Fatalf("Save: %v", err)
				}
				before = 1
			}

			files := make([]spool.TempFile, 0, len(tt.files))
			for _, name := range tt.files {
				files = append(files, env.spoolFile(t, name, "text/plain", name))
			}

			bundle, err := us.Upload(ctx, files, "")
			if bundle != nil {
				t.Fatal("бандл не должен возвращаться при сбое сохранения")
			}
			var ufe *UploadFailedError
			if !errors.As(err, &ufe) {
				t.Fatalf("ошибка = %v, ожидалась UploadFailedError", err)
			}
			if ufe.FileName != "" {
				t.Errorf("FileName = %q, при сбое сохранения ожидалось пустое", ufe.FileName)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("ошибка = %v, ожидалась %v", err, tt.wantErr)
			}

			// Все загруженные объекты удалены компенсацией
			if got := len(remote.deletedKeys()); got != len(files) {
				t.Errorf("компенсирующих удалений = %d, ожидалось %d", got, len(files))
			}
			if len(remote.objects) != 0 {
				t.Errorf("в бэкенде остались объекты: %v", remote.objects)
			}
			if n := len(env.store.Load(ctx)); n != before {
				t.Errorf("в хранилище %d бандлов, ожидалось %d", n, before)
			}
		})
	}
}

// cancelAwareMedium — файловый носитель, прерывающий операции
// при отменённом контексте, как драйвер PostgreSQL.
type cancelAwareMedium struct {
	*bundlestore.FileMedium
}

func (m cancelAwareMedium) Read(ctx context.Context) ([]model.Bundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.FileMedium.Read(ctx)
}

func (m cancelAwareMedium) Write(ctx context.Context, b []model.Bundle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.FileMedium.Write(ctx, b)
}

func TestUpload_ClientDisconnectDoesNotAbort(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(env.dir, "snapshot.json")
	env.store = bundlestore.Open(context.Background(),
		cancelAwareMedium{bundlestore.NewFileMedium(path)}, testLogger(),
		bundlestore.WithClock(env.clock.Now))

	remote := newFakeBackend(model.BackendRemote)
	remote.ctxAware = true
	us := env.uploadService(backend.NewRegistry(remote))

	// Клиент отключился после отправки файлов
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bundle, err := us.Upload(ctx, []spool.TempFile{
		env.spoolFile(t, "a.txt", "text/plain", "a"),
		env.spoolFile(t, "b.txt", "text/plain", "b"),
	}, "")
	if err != nil {
		t.Fatalf("Upload после отключения клиента: %v", err)
	}
	if len(remote.objects) != 2 {
		t.Errorf("в бэкенде %d объектов, ожидалось 2", len(remote.objects))
	}
	if env.store.Mode() != bundlestore.ModeDurable {
		t.Errorf("Mode = %q, отключение клиента не должно менять режим", env.store.Mode())
	}

	reopened := bundlestore.Open(context.Background(), bundlestore.NewFileMedium(path), testLogger())
	got := reopened.Load(context.Background())
	if len(got) != 1 || got[0].ID != bundle.ID {
		t.Errorf("в снимке %+v, ожидался бандл %s", got, bundle.ID)
	}
}
