package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jose-valero/guild-keeper-bot/internal/domain"
)

// NarratorLedger guarda los acumuladores por usuario. Se crean bajo demanda.
type NarratorLedger struct {
	mu sync.RWMutex
	m  map[string]*domain.NarratorAccumulator
}

func NewNarratorLedger() *NarratorLedger {
	return &NarratorLedger{m: map[string]*domain.NarratorAccumulator{}}
}

func (l *NarratorLedger) Get(userID string) (*domain.NarratorAccumulator, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n, ok := l.m[userID]
	return n, ok
}

// GetOrCreate nunca falla: si no existe, lo crea en cero.
func (l *NarratorLedger) GetOrCreate(userID string) *domain.NarratorAccumulator {
	if n, ok := l.Get(userID); ok {
		return n
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if n, ok := l.m[userID]; ok {
		return n
	}
	n := domain.NewNarratorAccumulator(userID)
	l.m[userID] = n
	return n
}

// Records devuelve las fotos ordenadas por userID.
func (l *NarratorLedger) Records() []domain.NarratorRecord {
	l.mu.RLock()
	out := make([]domain.NarratorRecord, 0, len(l.m))
	for _, n := range l.m {
		out = append(out, n.Record())
	}
	l.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Top devuelve hasta limit registros ordenados por tiempo descendente.
func (l *NarratorLedger) Top(limit int) []domain.NarratorRecord {
	recs := l.Records()
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Time > recs[j].Time })
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs
}

func (l *NarratorLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.m)
}

// Clear borra todos los acumuladores y devuelve cuántos había.
func (l *NarratorLedger) Clear() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.m)
	l.m = map[string]*domain.NarratorAccumulator{}
	return n
}

// Replace sustituye el contenido desde un snapshot.
func (l *NarratorLedger) Replace(recs []domain.NarratorRecord) error {
	next := make(map[string]*domain.NarratorAccumulator, len(recs))
	for _, r := range recs {
		if r.UserID == "" {
			return fmt.Errorf("narrator with empty id: %w", domain.ErrInvalidInput)
		}
		if _, dup := next[r.UserID]; dup {
			return fmt.Errorf("narrator %s listed twice: %w", r.UserID, domain.ErrConflict)
		}
		n, err := domain.RestoreNarrator(r)
		if err != nil {
			return err
		}
		next[r.UserID] = n
	}
	l.mu.Lock()
	l.m = next
	l.mu.Unlock()
	return nil
}
