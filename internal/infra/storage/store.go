package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jose-valero/guild-keeper-bot/internal/domain"
	"github.com/jose-valero/guild-keeper-bot/internal/observe"
)

// Códigos de salida cuando un documento existe pero no se puede leer.
const (
	ExitSettingsLoad = 100
	ExitStateLoad    = 101
)

// DefaultFlushCooldown: mínimo entre dos flush debounced.
const DefaultFlushCooldown = 10 * time.Second

// LoadError indica un documento presente pero ilegible. Es fatal para el proceso.
type LoadError struct {
	Document string
	ExitCode int
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Document, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Store es el contenedor durable: config + estado runtime, y su persistencia.
// Se crea una vez en main y se pasa por constructor a cada componente.
type Store struct {
	Settings  *SettingsStore
	Polls     *PollRegistry
	Narrators *NarratorLedger

	backend  Backend
	log      *slog.Logger
	now      func() time.Time
	metrics  *observe.Metrics
	cooldown time.Duration

	flushMu   sync.Mutex
	lastFlush time.Time
	lastErr   error
	// blocked: documentos que fallaron al cargar; nunca se sobreescriben.
	blocked map[string]bool
}

type Option func(*Store)

func WithLogger(l *slog.Logger) Option      { return func(s *Store) { s.log = l } }
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }
func WithMetrics(m *observe.Metrics) Option { return func(s *Store) { s.metrics = m } }
func WithCooldown(d time.Duration) Option   { return func(s *Store) { s.cooldown = d } }

func New(b Backend, opts ...Option) *Store {
	s := &Store{
		Settings:  NewSettingsStore(),
		Polls:     NewPollRegistry(),
		Narrators: NewNarratorLedger(),
		backend:   b,
		log:       slog.Default(),
		now:       time.Now,
		cooldown:  DefaultFlushCooldown,
		blocked:   map[string]bool{},
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("component", "store")
	return s
}

// Load lee ambos documentos de forma independiente. Un documento ausente deja
// los defaults. Si alguno está corrupto devuelve *LoadError (settings tiene
// prioridad) y ese documento queda bloqueado para escritura.
func (s *Store) Load(ctx context.Context) error {
	read := s.backend.Get
	if bg, ok := s.backend.(BatchGetter); ok {
		read = s.batchRead(ctx, bg)
	}
	settingsErr := s.loadSettings(ctx, read)
	stateErr := s.loadState(ctx, read)

	s.flushMu.Lock()
	if settingsErr != nil {
		s.blocked[DocSettings] = true
	}
	if stateErr != nil {
		s.blocked[DocState] = true
	}
	s.flushMu.Unlock()

	if settingsErr != nil {
		return &LoadError{Document: DocSettings, ExitCode: ExitSettingsLoad, Err: settingsErr}
	}
	if stateErr != nil {
		return &LoadError{Document: DocState, ExitCode: ExitStateLoad, Err: stateErr}
	}
	return nil
}

type readFunc func(ctx context.Context, name string) ([]byte, error)

// batchRead trae ambos documentos en una consulta y los sirve desde el map.
// Si la consulta falla, cada documento recibe el mismo error.
func (s *Store) batchRead(ctx context.Context, bg BatchGetter) readFunc {
	docs, batchErr := bg.GetMany(ctx, []string{DocSettings, DocState})
	return func(_ context.Context, name string) ([]byte, error) {
		if batchErr != nil {
			return nil, batchErr
		}
		data, ok := docs[name]
		if !ok {
			return nil, fmt.Errorf("%s: %w", name, domain.ErrNotFound)
		}
		return data, nil
	}
}

func (s *Store) loadSettings(ctx context.Context, read readFunc) error {
	data, err := read(ctx, DocSettings)
	if errors.Is(err, domain.ErrNotFound) {
		s.log.Info("settings snapshot missing, using defaults")
		s.Settings.replace(domain.DefaultSettings(), nil)
		return nil
	}
	if err != nil {
		return err
	}
	settings, extra, err := DecodeSettings(data)
	if err != nil {
		return err
	}
	s.Settings.replace(settings, extra)
	s.log.Info("settings loaded", "vote_enabled", settings.MemberVote.Enabled, "narrator_enabled", settings.Narrator.Enabled)
	return nil
}

func (s *Store) loadState(ctx context.Context, read readFunc) error {
	data, err := read(ctx, DocState)
	if errors.Is(err, domain.ErrNotFound) {
		s.log.Info("state snapshot missing, starting empty")
		s.Polls.Clear()
		s.Narrators.Clear()
		return nil
	}
	if err != nil {
		return err
	}
	polls, narrators, err := DecodeState(data)
	if err != nil {
		return err
	}
	if err := s.Polls.Replace(polls); err != nil {
		return fmt.Errorf("restore polls: %w", err)
	}
	if err := s.Narrators.Replace(narrators); err != nil {
		return fmt.Errorf("restore narrators: %w", err)
	}
	s.log.Info("state loaded", "polls", len(polls), "narrators", len(narrators))
	return nil
}

// Flush serializa y escribe ambos documentos. Con debounced=true es no-op si
// el último flush exitoso fue hace menos del cooldown. Devuelve si escribió.
// Los errores de escritura se devuelven para loguear, el estado en memoria
// sigue siendo la fuente de verdad.
func (s *Store) Flush(ctx context.Context, debounced bool) (bool, error) {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	start := s.now()
	if debounced && !s.lastFlush.IsZero() && start.Sub(s.lastFlush) < s.cooldown {
		s.metrics.RecordFlush(ctx, observe.FlushSkipped, 0)
		return false, nil
	}

	var errs []error
	if !s.blocked[DocSettings] {
		settings, extra := s.Settings.snapshot()
		if err := s.put(ctx, DocSettings, func() ([]byte, error) { return EncodeSettings(settings, extra) }); err != nil {
			errs = append(errs, err)
		}
	}
	if !s.blocked[DocState] {
		polls, narrators := s.Polls.List(), s.Narrators.Records()
		if err := s.put(ctx, DocState, func() ([]byte, error) { return EncodeState(polls, narrators) }); err != nil {
			errs = append(errs, err)
		}
	}

	err := errors.Join(errs...)
	s.lastErr = err
	elapsed := s.now().Sub(start)
	if err != nil {
		s.metrics.RecordFlush(ctx, observe.FlushError, elapsed)
		return false, err
	}
	s.lastFlush = start
	s.metrics.RecordFlush(ctx, observe.FlushOK, elapsed)
	s.log.Debug("snapshot flushed", "forced", !debounced, "took", elapsed)
	return true, nil
}

func (s *Store) put(ctx context.Context, name string, encode func() ([]byte, error)) error {
	data, err := encode()
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := s.backend.Put(ctx, name, data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// LastFlush devuelve el instante del último flush exitoso (zero si nunca).
func (s *Store) LastFlush() time.Time {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()
	return s.lastFlush
}

// LastFlushError: error del último intento de escritura, nil si fue bien.
func (s *Store) LastFlushError() error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()
	return s.lastErr
}
