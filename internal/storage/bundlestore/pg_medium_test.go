package bundlestore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/goartstore/share-module/internal/config"
	"github.com/bigkaa/goartstore/share-module/internal/database"
)

// setupTestPool запускает PostgreSQL в Docker-контейнере,
// применяет миграции и возвращает пул подключений.
func setupTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("sharemodule_test"),
		postgres.WithUsername("sharemodule"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	t.Setenv("SM_DB_HOST", host)
	t.Setenv("SM_DB_PORT", port.Port())
	t.Setenv("SM_DB_NAME", "sharemodule_test")
	t.Setenv("SM_DB_USER", "sharemodule")
	t.Setenv("SM_DB_PASSWORD", "test-password")
	t.Setenv("SM_DB_SSL_MODE", "disable")
	t.Setenv("SM_STORE_DRIVER", "postgres")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	if err := database.Migrate(cfg, testLogger()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	pool, err := database.Connect(ctx, cfg, testLogger())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(pool.Close)

	return pool
}

func TestPgMedium_RoundTrip(t *testing.T) {
	pool := setupTestPool(t)
	ctx := context.Background()
	c := &clock{now: t0}

	s := Open(ctx, NewPgMedium(pool), testLogger(), WithClock(c.Now))
	if s.Mode() != ModeDurable {
		t.Fatalf("Mode = %q, ожидался durable", s.Mode())
	}

	if err := s.Save(ctx, newBundle("b1", time.Minute, "f1")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(ctx, newBundle("b2", time.Hour, "f2")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reopened := Open(ctx, NewPgMedium(pool), testLogger(), WithClock(c.Now))
	if n := len(reopened.Load(ctx)); n != 2 {
		t.Fatalf("после перезапуска %d бандлов, ожидалось 2", n)
	}

	c.Advance(time.Minute)
	expired := reopened.PruneExpired(ctx)
	if len(expired) != 1 || expired[0].ID != "b1" {
		t.Errorf("истёкшие = %+v", expired)
	}

	loc, err := s.GetFile(ctx, "f2")
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	if loc.BundleID != "b2" {
		t.Errorf("BundleID = %q, ожидался b2", loc.BundleID)
	}
}
