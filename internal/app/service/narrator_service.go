package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jose-valero/guild-keeper-bot/internal/domain"
	"github.com/jose-valero/guild-keeper-bot/internal/infra/storage"
	"github.com/jose-valero/guild-keeper-bot/internal/observe"
)

// ReconnectCooldown: tras cualquier desconexión no se vuelve a entrar antes de esto.
const ReconnectCooldown = 5 * time.Second

// NarratorRoles es el subconjunto de la plataforma que usa el tracker.
type NarratorRoles interface {
	Roles
	Members
}

// NarratorService sigue la única conexión de voz del grabador, acumula el
// tiempo hablado por usuario y sincroniza el rol de narrador.
type NarratorService struct {
	store    *storage.Store
	platform NarratorRoles
	voice    VoiceConnector
	log      *slog.Logger
	metrics  *observe.Metrics
	now      func() time.Time

	// estado efímero de la conexión, nunca se persiste
	mu             sync.Mutex
	channelID      string
	connecting     bool
	humans         int
	lastDisconnect time.Time
	speaking       map[string]time.Time
}

type NarratorOption func(*NarratorService)

func WithNarratorLogger(l *slog.Logger) NarratorOption {
	return func(s *NarratorService) { s.log = l }
}

func WithNarratorMetrics(m *observe.Metrics) NarratorOption {
	return func(s *NarratorService) { s.metrics = m }
}

func WithNarratorClock(now func() time.Time) NarratorOption {
	return func(s *NarratorService) { s.now = now }
}

func NewNarratorService(store *storage.Store, platform NarratorRoles, voice VoiceConnector, opts ...NarratorOption) *NarratorService {
	s := &NarratorService{
		store:    store,
		platform: platform,
		voice:    voice,
		log:      slog.Default(),
		now:      time.Now,
		speaking: map[string]time.Time{},
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("component", "narrator")
	return s
}

// OnVoiceJoin: un usuario entró a channelID.
func (s *NarratorService) OnVoiceJoin(ctx context.Context, userID string, bot bool, channelID string) {
	s.CheckRoles(ctx, userID)

	cfg := s.store.Settings.Get().Narrator
	s.mu.Lock()
	if s.channelID != "" {
		if s.channelID == channelID && !bot {
			s.humans++
			s.log.Debug("audience up", "channel", channelID, "humans", s.humans)
		}
		s.mu.Unlock()
		return
	}
	if !cfg.Enabled || cfg.RecorderID == "" || userID != cfg.RecorderID || s.connecting {
		s.mu.Unlock()
		return
	}
	if !s.lastDisconnect.IsZero() && s.now().Sub(s.lastDisconnect) < ReconnectCooldown {
		s.mu.Unlock()
		s.log.Debug("reconnect cooldown active, not joining", "channel", channelID)
		return
	}
	s.connecting = true
	s.mu.Unlock()

	// la audiencia se cuenta después de conectar: los joins/leaves del medio
	// no llegan acá pero ya están en la cuenta
	err := s.voice.JoinVoice(ctx, channelID)
	humans := 0
	if err == nil {
		if humans, err = s.voice.ChannelHumans(ctx, channelID); err != nil {
			if lerr := s.voice.LeaveVoice(ctx); lerr != nil {
				s.log.Warn("leave voice failed", "channel", channelID, "err", lerr)
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.connecting = false
	if err != nil {
		s.log.Error("join recorder channel failed", "channel", channelID, "err", err)
		return
	}
	s.channelID = channelID
	s.humans = humans
	s.log.Info("voice connected", "channel", channelID, "humans", humans)
}

// OnVoiceLeave: un usuario salió de channelID. Si es el grabador, nos vamos.
func (s *NarratorService) OnVoiceLeave(ctx context.Context, userID string, bot bool, channelID string) {
	s.CheckRoles(ctx, userID)

	cfg := s.store.Settings.Get().Narrator
	s.mu.Lock()
	if s.channelID == "" || s.channelID != channelID || !cfg.Enabled {
		s.mu.Unlock()
		return
	}
	if userID != cfg.RecorderID {
		if !bot {
			// lo que estuviera hablando se pierde, igual que en un disconnect
			delete(s.speaking, userID)
			s.humans--
			s.log.Debug("audience down", "channel", channelID, "humans", s.humans)
		}
		s.mu.Unlock()
		return
	}
	s.resetLocked()
	s.mu.Unlock()

	if err := s.voice.LeaveVoice(ctx); err != nil {
		s.log.Warn("leave voice failed", "channel", channelID, "err", err)
	}
	s.log.Info("recorder left, voice closed", "channel", channelID)
}

// OnDisconnect: la conexión de voz se cortó por fuera (kick, caída del gateway).
// Los intervalos en curso se descartan sin acreditar.
func (s *NarratorService) OnDisconnect(ctx context.Context) {
	s.mu.Lock()
	if s.channelID == "" {
		s.mu.Unlock()
		return
	}
	ch := s.channelID
	s.resetLocked()
	s.mu.Unlock()
	s.log.Info("voice disconnected", "channel", ch)
}

// OnGatewayLost: sin gateway se pierden eventos de voz. Los inicios de habla
// en curso se descartan; la conexión de voz la reanuda la plataforma.
func (s *NarratorService) OnGatewayLost() {
	s.mu.Lock()
	n := len(s.speaking)
	clear(s.speaking)
	s.mu.Unlock()
	if n > 0 {
		s.log.Info("gateway lost, open speaking intervals dropped", "count", n)
	}
}

// Recount vuelve a leer la audiencia del canal conectado (tras un resume del gateway).
func (s *NarratorService) Recount(ctx context.Context) {
	s.mu.Lock()
	ch := s.channelID
	s.mu.Unlock()
	if ch == "" {
		return
	}
	n, err := s.voice.ChannelHumans(ctx, ch)
	if err != nil {
		s.log.Warn("recount audience failed", "channel", ch, "err", err)
		return
	}
	s.mu.Lock()
	if s.channelID == ch {
		s.humans = n
	}
	s.mu.Unlock()
	s.log.Debug("audience recounted", "channel", ch, "humans", n)
}

func (s *NarratorService) resetLocked() {
	s.channelID = ""
	s.humans = 0
	clear(s.speaking)
	s.lastDisconnect = s.now()
}

// OnSpeaking: inicio/fin de habla de un usuario en la conexión activa.
func (s *NarratorService) OnSpeaking(ctx context.Context, userID string, bot, speaking bool) {
	if bot {
		return
	}
	minAudience := s.store.Settings.Get().Narrator.MinAudience
	now := s.now()

	s.mu.Lock()
	if s.channelID == "" {
		s.mu.Unlock()
		return
	}
	if speaking {
		if _, ok := s.speaking[userID]; !ok && s.humans >= minAudience {
			s.speaking[userID] = now
		}
		s.mu.Unlock()
		return
	}
	start, ok := s.speaking[userID]
	delete(s.speaking, userID)
	enough := s.humans >= minAudience
	s.mu.Unlock()

	if !ok || !enough {
		return
	}
	elapsed := int64(now.Sub(start) / time.Second)
	if elapsed <= 0 {
		return
	}
	acc := s.store.Narrators.GetOrCreate(userID)
	if err := acc.Narrated(now.Unix(), elapsed); err != nil {
		s.log.Error("credit narration failed", "user", userID, "err", err)
		return
	}
	s.metrics.RecordNarration(ctx, elapsed)
	s.log.Debug("narrated", "user", userID, "seconds", elapsed, "total", acc.Time())
	s.CheckRoles(ctx, userID)
}

// CheckRoles otorga o quita el rol de narrador según la última narración.
// Sin acumulador o sin rol configurado no hace nada.
func (s *NarratorService) CheckRoles(ctx context.Context, userID string) {
	cfg := s.store.Settings.Get().Narrator
	if cfg.RoleID == "" {
		return
	}
	acc, ok := s.store.Narrators.Get(userID)
	if !ok {
		return
	}
	m, err := s.platform.Member(ctx, userID)
	if err != nil {
		s.log.Debug("narrator role check skipped", "user", userID, "err", err)
		return
	}

	active := acc.ActiveAt(s.now().Unix(), cfg.ActiveTimeSeconds)
	has := m.HasRole(cfg.RoleID)
	switch {
	case active && !has:
		if err := s.platform.AddRole(ctx, userID, cfg.RoleID); err != nil {
			s.log.Error("grant narrator role failed", "user", userID, "err", err)
			return
		}
		s.metrics.RecordNarratorRole(ctx, "grant")
		s.log.Info("narrator role granted", "user", userID)
	case !active && has:
		if err := s.platform.RemoveRole(ctx, userID, cfg.RoleID); err != nil {
			s.log.Error("revoke narrator role failed", "user", userID, "err", err)
			return
		}
		s.metrics.RecordNarratorRole(ctx, "revoke")
		s.log.Info("narrator role revoked", "user", userID)
	}
}

// VoiceStatus es una foto del estado efímero (para /narrator status).
type VoiceStatus struct {
	ChannelID string
	Humans    int
	Speaking  int
}

func (s *NarratorService) Status() VoiceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return VoiceStatus{ChannelID: s.channelID, Humans: s.humans, Speaking: len(s.speaking)}
}

// Narrator expone el acumulador, creándolo si no existe.
func (s *NarratorService) Narrator(userID string) *domain.NarratorAccumulator {
	return s.store.Narrators.GetOrCreate(userID)
}
