// pg_medium.go — снимок бандлов в PostgreSQL (строка bundle_snapshot.id = 1).
package bundlestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bigkaa/goartstore/share-module/internal/domain/model"
)

// pgQueryTimeout — таймаут одного запроса к снимку.
const pgQueryTimeout = 10 * time.Second

// pgExecutor — подмножество pgxpool.Pool, используемое носителем.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgMedium — снимок бандлов в jsonb-колонке одной строки.
// Таблица создаётся миграцией internal/database.
type PgMedium struct {
	db pgExecutor
}

// NewPgMedium создаёт носитель поверх пула подключений.
func NewPgMedium(db pgExecutor) *PgMedium {
	return &PgMedium{db: db}
}

// Name реализует Medium.
func (m *PgMedium) Name() string {
	return "postgres:bundle_snapshot"
}

// Probe создаёт строку снимка при отсутствии (проверка записи)
// и читает её.
func (m *PgMedium) Probe(ctx context.Context) error {
	_, err := m.db.Exec(ctx,
		`INSERT INTO bundle_snapshot (id, bundles) VALUES (1, '[]'::jsonb)
		 ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("ошибка инициализации снимка: %w", err)
	}
	_, err = m.Read(ctx)
	return err
}

// Read читает снимок. Отсутствующая строка — пустой набор.
func (m *PgMedium) Read(ctx context.Context) ([]model.Bundle, error) {
	ctx, cancel := context.WithTimeout(ctx, pgQueryTimeout)
	defer cancel()

	var data []byte
	err := m.db.QueryRow(ctx, `SELECT bundles FROM bundle_snapshot WHERE id = 1`).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка чтения снимка: %w", err)
	}

	var bundles []model.Bundle
	if err := json.Unmarshal(data, &bundles); err != nil {
		return nil, fmt.Errorf("ошибка десериализации снимка: %w", err)
	}
	return bundles, nil
}

// Write заменяет снимок одним upsert.
func (m *PgMedium) Write(ctx context.Context, bundles []model.Bundle) error {
	if bundles == nil {
		bundles = []model.Bundle{}
	}
	data, err := json.Marshal(bundles)
	if err != nil {
		return fmt.Errorf("ошибка сериализации снимка: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, pgQueryTimeout)
	defer cancel()

	_, err = m.db.Exec(ctx,
		`INSERT INTO bundle_snapshot (id, bundles, updated_at) VALUES (1, $1::jsonb, now())
		 ON CONFLICT (id) DO UPDATE SET bundles = EXCLUDED.bundles, updated_at = EXCLUDED.updated_at`,
		string(data))
	if err != nil {
		return fmt.Errorf("ошибка записи снимка: %w", err)
	}
	return nil
}
