// Пакет bundlestore — хранилище записей бандлов.
//
// Весь набор бандлов хранится снимком в носителе (Medium): JSON-файл
// или строка PostgreSQL. Каждая мутация перезаписывает снимок целиком
// под write lock. Режим (durable/volatile) выбирается один раз при Open.
// Если носитель недоступен, хранилище работает в памяти: данные
// теряются при перезапуске, но сервис продолжает обслуживать запросы.
package bundlestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bigkaa/goartstore/share-module/internal/domain/model"
)

// Ошибки хранилища.
var (
	// ErrNotFound — бандл или файл отсутствует либо истёк.
	ErrNotFound = errors.New("не найден или истёк")
	// ErrDuplicate — бандл с таким id уже сохранён.
	ErrDuplicate = errors.New("бандл с таким id уже существует")
)

// Mode — режим работы хранилища.
type Mode string

const (
	// ModeDurable — снимок сохраняется в носитель.
	ModeDurable Mode = "durable"
	// ModeVolatile — только память процесса.
	ModeVolatile Mode = "volatile"
)

// Medium — носитель снимка бандлов.
type Medium interface {
	// Name — описание носителя для логов.
	Name() string
	// Probe создаёт носитель при отсутствии и проверяет доступ на запись.
	Probe(ctx context.Context) error
	// Read читает весь набор бандлов.
	Read(ctx context.Context) ([]model.Bundle, error)
	// Write атомарно заменяет весь набор бандлов.
	Write(ctx context.Context, bundles []model.Bundle) error
}

// FileLocation — файл вместе с данными владеющего бандла.
type FileLocation struct {
	File      model.FileRecord
	BundleID  string
	ExpiresAt time.Time
}

// Option — параметр Open.
type Option func(*Store)

// WithClock подменяет источник текущего времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Store — хранилище записей бандлов.
// Save и PruneExpired выполняются под write lock, чтения — под read lock.
type Store struct {
	mu     sync.RWMutex
	medium Medium
	mode   Mode
	// memory — зеркало последнего известного набора.
	// В volatile режиме это единственная копия.
	memory []model.Bundle
	now    func() time.Time
	logger *slog.Logger
}

// Open открывает хранилище. Ошибка носителя не фатальна: хранилище
// переходит в volatile режим с предупреждением в лог.
func Open(ctx context.Context, medium Medium, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		medium: medium,
		mode:   ModeVolatile,
		now:    time.Now,
		logger: logger.With(slog.String("component", "bundle_store")),
	}
	for _, opt := range opts {
		opt(s)
	}

	defer func() { observeMode(s.mode) }()

	if medium == nil {
		s.logger.Warn("Носитель не задан, записи хранятся только в памяти")
		return s
	}

	if err := medium.Probe(ctx); err != nil {
		s.logger.Warn("Носитель недоступен, записи хранятся только в памяти",
			slog.String("medium", medium.Name()),
			slog.String("error", err.Error()),
		)
		return s
	}

	bundles, err := medium.Read(ctx)
	if err != nil {
		s.logger.Warn("Снимок не читается, записи хранятся только в памяти",
			slog.String("medium", medium.Name()),
			slog.String("error", err.Error()),
		)
		return s
	}

	s.memory = bundles
	s.mode = ModeDurable
	storeBundles.Set(float64(len(bundles)))
	s.logger.Info("Хранилище записей открыто",
		slog.String("medium", medium.Name()),
		slog.Int("bundles", len(bundles)),
	)
	return s
}

// Mode возвращает текущий режим.
func (s *Store) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Load возвращает все бандлы, включая истёкшие, но ещё не удалённые.
// В durable режиме снимок читается из носителя при каждом вызове.
func (s *Store) Load(ctx context.Context) []model.Bundle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.loadLocked(ctx))
}

// Save добавляет бандл в хранилище.
// Сбой записи переводит хранилище в volatile режим, но Save
// при этом завершается успешно. Отмена ctx во время записи
// возвращает ошибку: бандл не сохраняется, режим не меняется.
func (s *Store) Save(ctx context.Context, b model.Bundle) error {
	if err := b.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.loadLocked(ctx)
	for i := range current {
		if current[i].ID == b.ID {
			return fmt.Errorf("%w: %s", ErrDuplicate, b.ID)
		}
	}

	next := make([]model.Bundle, 0, len(current)+1)
	next = append(next, current...)
	next = append(next, b.Clone())

	return s.persistLocked(ctx, next, "save")
}

// GetBundle возвращает бандл по id. Истёкший бандл не возвращается,
// даже если sweeper ещё не удалил его.
func (s *Store) GetBundle(ctx context.Context, id string) (*model.Bundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	for _, b := range s.loadLocked(ctx) {
		if b.ID != id {
			continue
		}
		if b.IsExpired(now) {
			return nil, ErrNotFound
		}
		c := b.Clone()
		return &c, nil
	}
	return nil, ErrNotFound
}

// GetFile ищет файл по id во всех бандлах.
// Файл истёкшего бандла не возвращается.
func (s *Store) GetFile(ctx context.Context, fileID string) (*FileLocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	for _, b := range s.loadLocked(ctx) {
		for _, f := range b.Files {
			if f.ID != fileID {
				continue
			}
			if b.IsExpired(now) {
				return nil, ErrNotFound
			}
			return &FileLocation{File: f, BundleID: b.ID, ExpiresAt: b.ExpiresAt}, nil
		}
	}
	return nil, ErrNotFound
}

// PruneExpired удаляет истёкшие бандлы и возвращает их.
// Активные бандлы сохраняются в носитель; при сбое записи хранилище
// деградирует так же, как в Save.
func (s *Store) PruneExpired(ctx context.Context) []model.Bundle {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	current := s.loadLocked(ctx)

	active := make([]model.Bundle, 0, len(current))
	var expired []model.Bundle
	for _, b := range current {
		if b.IsExpired(now) {
			expired = append(expired, b.Clone())
		} else {
			active = append(active, b)
		}
	}

	if len(expired) == 0 {
		return nil
	}

	if err := s.persistLocked(ctx, active, "prune"); err != nil {
		// набор не изменился, истёкшие бандлы удалит следующий запуск
		return nil
	}
	return expired
}

// loadLocked возвращает текущий набор. Вызывается под mu.
// Возвращённый срез нельзя изменять.
func (s *Store) loadLocked(ctx context.Context) []model.Bundle {
	if s.mode != ModeDurable {
		return s.memory
	}
	bundles, err := s.medium.Read(ctx)
	if err != nil {
		if ctx.Err() != nil {
			// отмена запроса, носитель исправен
			return s.memory
		}
		s.logger.Error("Ошибка чтения снимка, используется копия в памяти",
			slog.String("medium", s.medium.Name()),
			slog.String("error", err.Error()),
		)
		return s.memory
	}
	return bundles
}

// persistLocked записывает набор в носитель и обновляет зеркало.
// Вызывается под write lock.
//
// Ошибка записи при отменённом ctx — сбой вызывающего, а не носителя:
// хранилище остаётся durable, набор не меняется, возвращается ошибка.
// Прочие ошибки записи переводят хранилище в volatile режим.
func (s *Store) persistLocked(ctx context.Context, bundles []model.Bundle, op string) error {
	if s.mode == ModeDurable {
		if err := s.medium.Write(ctx, bundles); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				s.logger.Warn("Запись снимка прервана отменой запроса",
					slog.String("operation", op),
					slog.String("medium", s.medium.Name()),
					slog.String("error", err.Error()),
				)
				return fmt.Errorf("запись снимка прервана: %w", ctxErr)
			}
			storeWriteErrors.Inc()
			s.mode = ModeVolatile
			observeMode(s.mode)
			s.logger.Error("Ошибка записи снимка, хранилище переведено в режим памяти",
				slog.String("operation", op),
				slog.String("medium", s.medium.Name()),
				slog.String("error", err.Error()),
			)
		}
	}
	s.memory = bundles
	storeBundles.Set(float64(len(bundles)))
	return nil
}

// cloneAll возвращает глубокую копию набора.
func cloneAll(bundles []model.Bundle) []model.Bundle {
	out := make([]model.Bundle, len(bundles))
	for i := range bundles {
		out[i] = bundles[i].Clone()
	}
	return out
}
