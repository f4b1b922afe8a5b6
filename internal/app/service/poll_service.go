package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jose-valero/guild-keeper-bot/internal/domain"
	"github.com/jose-valero/guild-keeper-bot/internal/infra/storage"
	"github.com/jose-valero/guild-keeper-bot/internal/observe"
)

const (
	// CompletionDeleteDelay: cuánto queda visible el aviso de votación terminada.
	CompletionDeleteDelay = 10 * time.Second
	// por encima de este riesgo el mensaje lleva advertencia
	riskWarnAbove = 50
)

// AfterFunc agenda f tras d y devuelve la función para cancelarlo.
type AfterFunc func(d time.Duration, f func()) (stop func() bool)

func realAfter(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// PollService maneja el ciclo de vida de las encuestas de admisión:
// creación, conteo de votos, expiración y cancelación.
type PollService struct {
	store    *storage.Store
	platform Platform
	log      *slog.Logger
	metrics  *observe.Metrics
	now      func() time.Time
	after    AfterFunc

	mu sync.Mutex
	// pendingDeletes: mensaje de encuesta terminada -> borrado agendado.
	pendingDeletes map[string]pendingDelete
}

type pendingDelete struct {
	channelID string
	stop      func() bool
}

type PollOption func(*PollService)

func WithPollLogger(l *slog.Logger) PollOption      { return func(s *PollService) { s.log = l } }
func WithPollMetrics(m *observe.Metrics) PollOption { return func(s *PollService) { s.metrics = m } }
func WithPollClock(now func() time.Time) PollOption { return func(s *PollService) { s.now = now } }
func WithPollAfter(after AfterFunc) PollOption      { return func(s *PollService) { s.after = after } }

func NewPollService(store *storage.Store, platform Platform, opts ...PollOption) *PollService {
	s := &PollService{
		store:          store,
		platform:       platform,
		log:            slog.Default(),
		now:            time.Now,
		after:          realAfter,
		pendingDeletes: map[string]pendingDelete{},
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("component", "polls")
	return s
}

// CreatePoll abre una encuesta para userID. Falla con ErrConflict si ya hay
// una (o se está creando), ErrDisabled si la votación está apagada.
func (s *PollService) CreatePoll(ctx context.Context, userID string, riskScore int) (domain.MembershipPoll, error) {
	m, err := s.platform.Member(ctx, userID)
	if err != nil {
		return domain.MembershipPoll{}, fmt.Errorf("lookup member %s: %w", userID, err)
	}
	return s.createPoll(ctx, m, riskScore)
}

// OpenPoll: apertura administrativa; el riesgo sale de la fecha de ingreso del miembro.
func (s *PollService) OpenPoll(ctx context.Context, userID string) (domain.MembershipPoll, error) {
	m, err := s.platform.Member(ctx, userID)
	if err != nil {
		return domain.MembershipPoll{}, fmt.Errorf("lookup member %s: %w", userID, err)
	}
	return s.createPoll(ctx, m, domain.RiskScore(m.UserID, m.JoinedAt))
}

func (s *PollService) createPoll(ctx context.Context, m Member, riskScore int) (domain.MembershipPoll, error) {
	cfg := s.store.Settings.Get().MemberVote
	if !cfg.Enabled {
		return domain.MembershipPoll{}, fmt.Errorf("member vote: %w", domain.ErrDisabled)
	}
	if cfg.ChannelID == "" {
		return domain.MembershipPoll{}, fmt.Errorf("member vote channel not set: %w", domain.ErrNotFound)
	}
	if m.HasRole(cfg.MemberRoleID) {
		return domain.MembershipPoll{}, fmt.Errorf("user %s already holds member role: %w", m.UserID, domain.ErrConflict)
	}

	// el slot se toma antes de postear: el segundo trigger concurrente no publica nada
	if err := s.store.Polls.Reserve(m.UserID); err != nil {
		return domain.MembershipPoll{}, err
	}

	msgID, err := s.platform.SendMessage(ctx, cfg.ChannelID, pollContent(m.UserID, riskScore, cfg))
	if err != nil {
		s.store.Polls.Release(m.UserID)
		return domain.MembershipPoll{}, fmt.Errorf("post poll for %s: %w", m.UserID, err)
	}

	created := s.now().Unix()
	if t, ok := domain.SnowflakeTime(msgID); ok {
		created = t.Unix()
	}
	poll := domain.MembershipPoll{MessageID: msgID, UserID: m.UserID, CreatedAt: created}
	if err := s.store.Polls.Commit(poll); err != nil {
		s.deleteMessage(ctx, cfg.ChannelID, msgID)
		return domain.MembershipPoll{}, err
	}
	s.metrics.RecordPollCreated(ctx)
	s.log.Info("poll created", "user", m.UserID, "message", msgID, "risk", riskScore)

	// upvote siempre primero; el downvote solo si el primero entró
	if err := s.platform.AddReaction(ctx, cfg.ChannelID, msgID, cfg.UpvoteEmojiID); err != nil {
		s.log.Warn("add upvote failed", "message", msgID, "err", err)
	} else if err := s.platform.AddReaction(ctx, cfg.ChannelID, msgID, cfg.DownvoteEmojiID); err != nil {
		s.log.Warn("add downvote failed", "message", msgID, "err", err)
	}
	return poll, nil
}

// CheckAndCreate: trigger de join / pérdida de rol. Duplicados y bots se ignoran.
func (s *PollService) CheckAndCreate(ctx context.Context, m Member) {
	cfg := s.store.Settings.Get().MemberVote
	if !cfg.Enabled || m.Bot || m.HasRole(cfg.MemberRoleID) {
		return
	}
	if _, ok := s.store.Polls.ByUser(m.UserID); ok {
		return
	}
	_, err := s.createPoll(ctx, m, domain.RiskScore(m.UserID, m.JoinedAt))
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrConflict):
		s.log.Debug("poll already up", "user", m.UserID)
	default:
		s.log.Error("create poll failed", "user", m.UserID, "err", err)
	}
}

// Score recalcula el puntaje de una encuesta y la completa si llegó al umbral.
// Devuelve el puntaje y si la encuesta se cerró en esta llamada.
func (s *PollService) Score(ctx context.Context, messageID string) (int, bool, error) {
	cfg := s.store.Settings.Get().MemberVote
	if !cfg.Enabled {
		return 0, false, nil
	}
	poll, ok := s.store.Polls.ByMessage(messageID)
	if !ok {
		return 0, false, nil
	}

	reactions, err := s.platform.ListReactions(ctx, cfg.ChannelID, messageID)
	if err != nil {
		return 0, false, fmt.Errorf("list reactions on %s: %w", messageID, err)
	}

	score := 0
	for _, r := range reactions {
		switch {
		case r.EmojiID != "" && r.EmojiID == cfg.UpvoteEmojiID:
			score += s.qualified(ctx, r.Users)
		case r.EmojiID != "" && r.EmojiID == cfg.DownvoteEmojiID:
			score -= s.qualified(ctx, r.Users)
		default:
			s.strip(ctx, cfg.ChannelID, messageID, r)
		}
	}

	if score < cfg.VotesRequired {
		s.log.Debug("poll below threshold", "user", poll.UserID, "message", messageID, "score", score, "required", cfg.VotesRequired)
		return score, false, nil
	}
	if !s.store.Polls.Remove(poll) {
		// otro handler la cerró primero
		return score, false, nil
	}
	s.complete(ctx, cfg, poll)
	return score, true, nil
}

// qualified cuenta votantes no-bot que siguen en la comunidad.
func (s *PollService) qualified(ctx context.Context, voters []Voter) int {
	n := 0
	for _, v := range voters {
		if v.Bot {
			continue
		}
		if _, err := s.platform.Member(ctx, v.ID); err != nil {
			continue
		}
		n++
	}
	return n
}

func (s *PollService) strip(ctx context.Context, channelID, messageID string, r Reaction) {
	for _, u := range r.Users {
		if err := s.platform.RemoveReaction(ctx, channelID, messageID, r, u.ID); err != nil {
			s.log.Warn("strip reaction failed", "message", messageID, "reaction", r.Key, "user", u.ID, "err", err)
		}
	}
	s.log.Debug("non-voting reaction removed", "message", messageID, "reaction", r.Key)
}

func (s *PollService) complete(ctx context.Context, cfg domain.MemberVote, poll domain.MembershipPoll) {
	if _, err := s.platform.Member(ctx, poll.UserID); err != nil {
		// se fue antes de llegar al umbral: no hay a quién darle el rol
		s.metrics.RecordPollClosed(ctx, observe.CloseLeft)
		s.log.Warn("poll passed but user is not a member", "user", poll.UserID, "err", err)
		s.deleteMessage(ctx, cfg.ChannelID, poll.MessageID)
		return
	}
	s.metrics.RecordPollClosed(ctx, observe.CloseGranted)

	if roles := cfg.GrantedRoles(); len(roles) > 0 {
		if err := s.platform.AddRoles(ctx, poll.UserID, roles); err != nil {
			s.log.Error("grant member roles failed", "user", poll.UserID, "roles", roles, "err", err)
			// el aviso queda hasta que un admin lo resuelva
			notice := fmt.Sprintf("⚠️ Votación aprobada para <@%s>, pero no pude otorgar los roles. Un admin debe asignarlos a mano.", poll.UserID)
			if err := s.platform.EditMessage(ctx, cfg.ChannelID, poll.MessageID, notice); err != nil {
				s.log.Warn("edit poll message failed", "message", poll.MessageID, "err", err)
			}
			return
		}
	}

	notice := fmt.Sprintf("✅ Votación terminada: <@%s> ya es miembro. Este mensaje se borra en unos segundos.", poll.UserID)
	if err := s.platform.EditMessage(ctx, cfg.ChannelID, poll.MessageID, notice); err != nil {
		s.log.Warn("edit poll message failed", "message", poll.MessageID, "err", err)
	}
	s.scheduleDelete(cfg.ChannelID, poll.MessageID)
	s.log.Info("poll granted", "user", poll.UserID, "message", poll.MessageID)
}

func (s *PollService) scheduleDelete(channelID, messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stop := s.after(CompletionDeleteDelay, func() {
		s.mu.Lock()
		_, still := s.pendingDeletes[messageID]
		delete(s.pendingDeletes, messageID)
		s.mu.Unlock()
		if still {
			s.deleteMessage(context.Background(), channelID, messageID)
		}
	})
	s.pendingDeletes[messageID] = pendingDelete{channelID: channelID, stop: stop}
}

// SweepExpired borra las encuestas con edad >= timeout. Devuelve cuántas cerró.
func (s *PollService) SweepExpired(ctx context.Context, now int64) int {
	cfg := s.store.Settings.Get().MemberVote
	if !cfg.Enabled {
		return 0
	}
	n := 0
	for _, p := range s.store.Polls.List() {
		if !p.Expired(now, cfg.TimeoutSeconds) {
			continue
		}
		if !s.store.Polls.Remove(p) {
			continue
		}
		s.deleteMessage(ctx, cfg.ChannelID, p.MessageID)
		s.metrics.RecordPollClosed(ctx, observe.CloseExpired)
		s.log.Info("poll expired", "user", p.UserID, "message", p.MessageID, "age", p.Age(now))
		n++
	}
	return n
}

// ExpirePoll cierra a mano la encuesta del usuario sin otorgar roles.
func (s *PollService) ExpirePoll(ctx context.Context, userID string) (domain.MembershipPoll, error) {
	p, ok := s.store.Polls.RemoveByUser(userID)
	if !ok {
		return domain.MembershipPoll{}, fmt.Errorf("poll for %s: %w", userID, domain.ErrNotFound)
	}
	s.deleteMessage(ctx, s.store.Settings.Get().MemberVote.ChannelID, p.MessageID)
	s.metrics.RecordPollClosed(ctx, observe.CloseManual)
	s.log.Info("poll expired by admin", "user", userID, "message", p.MessageID)
	return p, nil
}

// CancelOnLeave: el usuario dejó la comunidad.
func (s *PollService) CancelOnLeave(ctx context.Context, userID string) {
	s.cancel(ctx, userID, observe.CloseLeft)
}

// CancelOnManualGrant: alguien le dio el rol de miembro por fuera de la votación.
func (s *PollService) CancelOnManualGrant(ctx context.Context, userID string) {
	s.cancel(ctx, userID, observe.CloseManual)
}

func (s *PollService) cancel(ctx context.Context, userID, reason string) {
	cfg := s.store.Settings.Get().MemberVote
	if !cfg.Enabled {
		return
	}
	p, ok := s.store.Polls.RemoveByUser(userID)
	if !ok {
		// creación en curso: el Commit va a fallar y borrar el mensaje
		if s.store.Polls.CancelReservation(userID) {
			s.log.Info("poll creation cancelled while posting", "user", userID, "reason", reason)
		}
		return
	}
	s.deleteMessage(ctx, cfg.ChannelID, p.MessageID)
	s.metrics.RecordPollClosed(ctx, reason)
	s.log.Info("poll cancelled", "user", userID, "message", p.MessageID, "reason", reason)
}

// OnMemberUpdate decide según el diff de roles. before nil = sin cache previa.
func (s *PollService) OnMemberUpdate(ctx context.Context, before *Member, after Member) {
	cfg := s.store.Settings.Get().MemberVote
	if !cfg.Enabled {
		return
	}
	if before == nil {
		if after.HasRole(cfg.MemberRoleID) {
			s.CancelOnManualGrant(ctx, after.UserID)
			return
		}
		s.CheckAndCreate(ctx, after)
		return
	}
	if after.HasRole(cfg.MemberRoleID) && !before.HasRole(cfg.MemberRoleID) {
		s.CancelOnManualGrant(ctx, after.UserID)
		return
	}
	lost := slices.ContainsFunc(before.Roles, func(r string) bool { return !after.HasRole(r) })
	if lost {
		s.CheckAndCreate(ctx, after)
	}
}

// OnMessageDeleted: borrado manual del mensaje de una encuesta. No otorga roles.
func (s *PollService) OnMessageDeleted(ctx context.Context, channelID, messageID string) {
	s.mu.Lock()
	if pd, ok := s.pendingDeletes[messageID]; ok {
		pd.stop()
		delete(s.pendingDeletes, messageID)
	}
	s.mu.Unlock()

	cfg := s.store.Settings.Get().MemberVote
	if !cfg.Enabled || channelID != cfg.ChannelID {
		return
	}
	p, ok := s.store.Polls.RemoveByMessage(messageID)
	if !ok {
		return
	}
	s.metrics.RecordPollClosed(ctx, observe.CloseDeleted)
	s.log.Info("poll message deleted, poll removed", "user", p.UserID, "message", messageID)
}

// Close ejecuta ya los borrados agendados. Se llama al apagar.
func (s *PollService) Close(ctx context.Context) {
	s.mu.Lock()
	pending := s.pendingDeletes
	s.pendingDeletes = map[string]pendingDelete{}
	s.mu.Unlock()

	for msgID, pd := range pending {
		if pd.stop() {
			s.deleteMessage(ctx, pd.channelID, msgID)
		}
	}
}

// PendingDeletes: cantidad de borrados agendados (para /vote status y tests).
func (s *PollService) PendingDeletes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pendingDeletes)
}

func (s *PollService) deleteMessage(ctx context.Context, channelID, messageID string) {
	if channelID == "" {
		return
	}
	err := s.platform.DeleteMessage(ctx, channelID, messageID)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		s.log.Warn("poll message already gone", "message", messageID)
	default:
		s.log.Error("delete poll message failed", "message", messageID, "err", err)
	}
}

func pollContent(userID string, risk int, cfg domain.MemberVote) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🗳️ ¿Admitimos a <@%s> como miembro?", userID)
	if risk > riskWarnAbove {
		fmt.Fprintf(&b, "\n⚠️ **Ojo: %d%% de probabilidad de que la cuenta se haya creado solo para entrar.**", risk)
	}
	fmt.Fprintf(&b, "\n%s - sí", emojiMention(cfg.UpvoteEmojiID))
	fmt.Fprintf(&b, "\n%s - no", emojiMention(cfg.DownvoteEmojiID))
	return b.String()
}

func emojiMention(id string) string {
	if id == "" {
		return "❔"
	}
	return "<:vote:" + id + ">"
}
