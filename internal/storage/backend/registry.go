package backend

import (
	"fmt"

	"github.com/bigkaa/goartstore/share-module/internal/domain/model"
)

// Registry — набор бэкендов с основным бэкендом для новых загрузок.
// Основной бэкенд выбирается один раз при старте.
type Registry struct {
	primary  Backend
	backends map[model.BackendKind]Backend
}

// NewRegistry создаёт реестр. primary используется для новых загрузок,
// others — только для отдачи и удаления уже существующих записей.
func NewRegistry(primary Backend, others ...Backend) *Registry {
	r := &Registry{
		primary:  primary,
		backends: make(map[model.BackendKind]Backend, 1+len(others)),
	}
	for _, b := range others {
		r.backends[b.Kind()] = b
	}
	r.backends[primary.Kind()] = primary
	return r
}

// Primary возвращает бэкенд для новых загрузок.
func (r *Registry) Primary() Backend {
	return r.primary
}

// For возвращает бэкенд, владеющий файлом.
func (r *Registry) For(rec model.FileRecord) (Backend, error) {
	kind := rec.BackendKind()
	b, ok := r.backends[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, kind)
	}
	return b, nil
}
