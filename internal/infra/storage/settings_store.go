package storage

import (
	"encoding/json"
	"maps"
	"sync"

	"github.com/jose-valero/guild-keeper-bot/internal/domain"
)

// SettingsStore protege la configuración administrable. Las lecturas devuelven copias.
type SettingsStore struct {
	mu sync.RWMutex
	s  domain.Settings
	// extra: claves del documento que pertenecen a otros módulos; se reescriben tal cual.
	extra map[string]json.RawMessage
}

func NewSettingsStore() *SettingsStore {
	return &SettingsStore{s: domain.DefaultSettings(), extra: map[string]json.RawMessage{}}
}

func (st *SettingsStore) Get() domain.Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s.Clone()
}

// Update aplica fn sobre una copia y solo la publica si es válida.
func (st *SettingsStore) Update(fn func(*domain.Settings) error) (domain.Settings, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	next := st.s.Clone()
	if err := fn(&next); err != nil {
		return st.s.Clone(), err
	}
	if err := next.Validate(); err != nil {
		return st.s.Clone(), err
	}
	st.s = next
	return next.Clone(), nil
}

func (st *SettingsStore) replace(s domain.Settings, extra map[string]json.RawMessage) {
	st.mu.Lock()
	st.s = s.Clone()
	st.extra = maps.Clone(extra)
	if st.extra == nil {
		st.extra = map[string]json.RawMessage{}
	}
	st.mu.Unlock()
}

func (st *SettingsStore) snapshot() (domain.Settings, map[string]json.RawMessage) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s.Clone(), maps.Clone(st.extra)
}
