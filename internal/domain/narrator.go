package domain

import (
	"fmt"
	"sync"
)

// NarratorAccumulator acumula el tiempo de narración de un usuario.
// Seguro para uso concurrente.
type NarratorAccumulator struct {
	mu     sync.Mutex
	userID string
	time   int64 // segundos acumulados
	last   int64 // epoch de la última narración, 0 si nunca
}

// NarratorRecord es la foto inmutable de un acumulador (para snapshots y respuestas).
type NarratorRecord struct {
	UserID        string
	Time          int64
	LastNarration int64
}

func NewNarratorAccumulator(userID string) *NarratorAccumulator {
	return &NarratorAccumulator{userID: userID}
}

// RestoreNarrator reconstruye un acumulador desde un snapshot.
func RestoreNarrator(r NarratorRecord) (*NarratorAccumulator, error) {
	if r.Time < 0 || r.LastNarration < 0 {
		return nil, fmt.Errorf("narrator %s: negative values: %w", r.UserID, ErrInvalidInput)
	}
	return &NarratorAccumulator{userID: r.UserID, time: r.Time, last: r.LastNarration}, nil
}

func (n *NarratorAccumulator) UserID() string { return n.userID }

func (n *NarratorAccumulator) Time() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.time
}

func (n *NarratorAccumulator) LastNarration() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last
}

// AddTime suma delta segundos. Rechaza deltas negativos sin mutar.
func (n *NarratorAccumulator) AddTime(delta int64) error {
	if delta < 0 {
		return fmt.Errorf("add %d seconds: %w", delta, ErrInvalidInput)
	}
	n.mu.Lock()
	n.time += delta
	n.mu.Unlock()
	return nil
}

// SetTime sobrescribe el acumulado (uso administrativo).
func (n *NarratorAccumulator) SetTime(v int64) error {
	if v < 0 {
		return fmt.Errorf("set time %d: %w", v, ErrInvalidInput)
	}
	n.mu.Lock()
	n.time = v
	n.mu.Unlock()
	return nil
}

func (n *NarratorAccumulator) SetLastNarration(at int64) error {
	if at < 0 {
		return fmt.Errorf("set last narration %d: %w", at, ErrInvalidInput)
	}
	n.mu.Lock()
	n.last = at
	n.mu.Unlock()
	return nil
}

// Narrated registra una narración terminada en at con duración seconds.
// Ambos cambios se aplican juntos o ninguno.
func (n *NarratorAccumulator) Narrated(at, seconds int64) error {
	if seconds < 0 || at < 0 {
		return fmt.Errorf("narrated at=%d duration=%d: %w", at, seconds, ErrInvalidInput)
	}
	n.mu.Lock()
	n.last = at
	n.time += seconds
	n.mu.Unlock()
	return nil
}

// ActiveAt: la última narración cae dentro de la ventana [now-window, now].
func (n *NarratorAccumulator) ActiveAt(now, window int64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.last == 0 {
		return false
	}
	return now-n.last <= window
}

func (n *NarratorAccumulator) Record() NarratorRecord {
	n.mu.Lock()
	defer n.mu.Unlock()
	return NarratorRecord{UserID: n.userID, Time: n.time, LastNarration: n.last}
}
