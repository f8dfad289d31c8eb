package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/share-module/internal/domain/model"
	"github.com/bigkaa/goartstore/share-module/internal/storage/backend"
	"github.com/bigkaa/goartstore/share-module/internal/storage/bundlestore"
	"github.com/bigkaa/goartstore/share-module/internal/storage/spool"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testClock — управляемые часы.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeBackend — бэкенд в памяти с управляемыми отказами.
type fakeBackend struct {
	mu        sync.Mutex
	kind      model.BackendKind
	// ctxAware — прерывать Upload при отменённом ctx, как SDK S3
	ctxAware  bool
	failNames map[string]bool
	deleteErr error
	// resolve — ответ Resolve; nil — поток содержимого objects
	resolve    func(rec model.FileRecord) (*backend.Resolution, error)
	objects    map[string]string
	deleted    []string
	uploadedBy []string
}

func newFakeBackend(kind model.BackendKind) *fakeBackend {
	return &fakeBackend{kind: kind, failNames: map[string]bool{}, objects: map[string]string{}}
}

func (f *fakeBackend) Kind() model.BackendKind { return f.kind }

func (f *fakeBackend) Upload(ctx context.Context, tmp spool.TempFile, rec model.FileRecord) (model.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ctxAware && ctx.Err() != nil {
		return rec, ctx.Err()
	}
	if f.failNames[tmp.OriginalName] {
		return rec, errors.New("upstream rejected " + tmp.OriginalName)
	}
	rec.Backend = f.kind
	rec.RemoteObjectID = "cloudshare/" + rec.StorageKey
	f.objects[rec.RemoteObjectID] = tmp.OriginalName
	f.uploadedBy = append(f.uploadedBy, tmp.OriginalName)
	return rec, nil
}

func (f *fakeBackend) Resolve(_ context.Context, rec model.FileRecord) (*backend.Resolution, error) {
	if f.resolve != nil {
		return f.resolve(rec)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.objects[rec.RemoteObjectID]
	if !ok {
		return nil, backend.ErrObjectNotFound
	}
	return &backend.Resolution{
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
	}, nil
}

func (f *fakeBackend) Delete(_ context.Context, rec model.FileRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, rec.RemoteObjectID)
	delete(f.objects, rec.RemoteObjectID)
	return nil
}

func (f *fakeBackend) deletedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

// testEnv — хранилище, spool и бэкенды в temp директории.
type testEnv struct {
	dir   string
	clock *testClock
	store *bundlestore.Store
	spool *spool.Spool
	local *backend.LocalBackend
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	c := &testClock{now: t0}

	sp, err := spool.New(filepath.Join(dir, "uploads", "tmp"), 1<<20)
	if err != nil {
		t.Fatalf("spool.New: %v", err)
	}
	lb, err := backend.NewLocal(filepath.Join(dir, "uploads"))
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	store := bundlestore.Open(context.Background(),
		bundlestore.NewFileMedium(filepath.Join(dir, "db.json")), testLogger(),
		bundlestore.WithClock(c.Now))

	return &testEnv{dir: dir, clock: c, store: store, spool: sp, local: lb}
}

// spoolFile сохраняет содержимое во временный файл.
func (e *testEnv) spoolFile(t *testing.T, name, contentType, content string) spool.TempFile {
	t.Helper()
	tf, err := e.spool.Save(strings.NewReader(content), name, contentType)
	if err != nil {
		t.Fatalf("spool.Save(%s): %v", name, err)
	}
	return *tf
}

func (e *testEnv) uploadService(reg *backend.Registry) *UploadService {
	us := NewUploadService(e.store, reg, UploadConfig{
		DefaultExpiryMinutes: 60,
		MinExpiryMinutes:     1,
		MaxExpiryMinutes:     10080,
		Concurrency:          2,
	}, testLogger())
	us.now = e.clock.Now
	return us
}

func (e *testEnv) downloadService(reg *backend.Registry, cache *CacheService) *DownloadService {
	ds := NewDownloadService(e.store, reg, cache, testLogger())
	ds.now = e.clock.Now
	return ds
}
