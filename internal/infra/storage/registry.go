package storage

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jose-valero/guild-keeper-bot/internal/domain"
)

// ErrReservationCancelled: el usuario se fue (o recibió el rol) mientras se posteaba su encuesta.
var ErrReservationCancelled = errors.New("poll reservation cancelled")

// PollRegistry indexa las encuestas activas por mensaje y por usuario.
// Ambos índices se mutan siempre bajo el mismo lock: nunca se observa uno sin el otro.
type PollRegistry struct {
	mu        sync.RWMutex
	byMessage map[string]domain.MembershipPoll
	byUser    map[string]domain.MembershipPoll
	// reserved: usuarios con una creación en curso (mensaje aún sin ID).
	// true = se canceló mientras se posteaba; el Commit debe fallar.
	reserved map[string]bool
}

func NewPollRegistry() *PollRegistry {
	return &PollRegistry{
		byMessage: map[string]domain.MembershipPoll{},
		byUser:    map[string]domain.MembershipPoll{},
		reserved:  map[string]bool{},
	}
}

// Reserve toma el slot del usuario de forma atómica (check-then-insert).
// Devuelve ErrConflict si ya hay encuesta o reserva para ese usuario.
func (r *PollRegistry) Reserve(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byUser[userID]; ok {
		return fmt.Errorf("poll already up for user %s: %w", userID, domain.ErrConflict)
	}
	if _, ok := r.reserved[userID]; ok {
		return fmt.Errorf("poll creation in progress for user %s: %w", userID, domain.ErrConflict)
	}
	r.reserved[userID] = false
	return nil
}

// Release libera una reserva que no llegó a Commit. Idempotente.
func (r *PollRegistry) Release(userID string) {
	r.mu.Lock()
	delete(r.reserved, userID)
	r.mu.Unlock()
}

// CancelReservation marca como cancelada una creación en curso. Devuelve false
// si el usuario no tenía reserva.
func (r *PollRegistry) CancelReservation(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reserved[userID]; !ok {
		return false
	}
	r.reserved[userID] = true
	return true
}

// Commit registra la encuesta de un usuario reservado y consume la reserva.
// Si la reserva fue cancelada devuelve ErrReservationCancelled y no inserta.
func (r *PollRegistry) Commit(p domain.MembershipPoll) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cancelled := r.reserved[p.UserID]
	delete(r.reserved, p.UserID)
	if cancelled {
		return fmt.Errorf("poll for user %s: %w", p.UserID, ErrReservationCancelled)
	}
	return r.insertLocked(p)
}

// Add inserta sin reserva previa (carga de snapshot). Mismas reglas de unicidad.
func (r *PollRegistry) Add(p domain.MembershipPoll) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reserved[p.UserID]; ok {
		return fmt.Errorf("poll creation in progress for user %s: %w", p.UserID, domain.ErrConflict)
	}
	return r.insertLocked(p)
}

func (r *PollRegistry) insertLocked(p domain.MembershipPoll) error {
	if p.MessageID == "" || p.UserID == "" {
		return fmt.Errorf("poll with empty ids (message=%q user=%q): %w", p.MessageID, p.UserID, domain.ErrInvalidInput)
	}
	if _, ok := r.byUser[p.UserID]; ok {
		return fmt.Errorf("poll already up for user %s: %w", p.UserID, domain.ErrConflict)
	}
	if _, ok := r.byMessage[p.MessageID]; ok {
		return fmt.Errorf("message %s already tracks a poll: %w", p.MessageID, domain.ErrConflict)
	}
	r.byMessage[p.MessageID] = p
	r.byUser[p.UserID] = p
	return nil
}

func (r *PollRegistry) ByMessage(messageID string) (domain.MembershipPoll, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byMessage[messageID]
	return p, ok
}

func (r *PollRegistry) ByUser(userID string) (domain.MembershipPoll, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byUser[userID]
	return p, ok
}

// Remove quita p de ambos índices. Devuelve false si p ya no estaba
// (otro handler la cerró antes); quitar algo ausente no es error.
func (r *PollRegistry) Remove(p domain.MembershipPoll) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.byMessage[p.MessageID]
	if !ok || cur != p {
		return false
	}
	delete(r.byMessage, p.MessageID)
	if u, ok := r.byUser[p.UserID]; ok && u == p {
		delete(r.byUser, p.UserID)
	}
	return true
}

func (r *PollRegistry) RemoveByUser(userID string) (domain.MembershipPoll, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byUser[userID]
	if !ok {
		return domain.MembershipPoll{}, false
	}
	delete(r.byUser, userID)
	delete(r.byMessage, p.MessageID)
	return p, true
}

func (r *PollRegistry) RemoveByMessage(messageID string) (domain.MembershipPoll, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byMessage[messageID]
	if !ok {
		return domain.MembershipPoll{}, false
	}
	delete(r.byMessage, messageID)
	delete(r.byUser, p.UserID)
	return p, true
}

// List devuelve una copia ordenada por fecha de creación (y mensaje para desempatar).
func (r *PollRegistry) List() []domain.MembershipPoll {
	r.mu.RLock()
	out := make([]domain.MembershipPoll, 0, len(r.byMessage))
	for _, p := range r.byMessage {
		out = append(out, p)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].MessageID < out[j].MessageID
	})
	return out
}

func (r *PollRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byMessage)
}

// Replace sustituye todo el contenido (carga). Valida antes de tocar nada.
func (r *PollRegistry) Replace(polls []domain.MembershipPoll) error {
	next := NewPollRegistry()
	for _, p := range polls {
		if err := next.Add(p); err != nil {
			return err
		}
	}
	r.mu.Lock()
	r.byMessage = next.byMessage
	r.byUser = next.byUser
	r.mu.Unlock()
	return nil
}

func (r *PollRegistry) Clear() {
	r.mu.Lock()
	r.byMessage = map[string]domain.MembershipPoll{}
	r.byUser = map[string]domain.MembershipPoll{}
	r.mu.Unlock()
}
