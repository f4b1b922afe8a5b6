package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jose-valero/guild-keeper-bot/internal/domain"
	"github.com/jose-valero/guild-keeper-bot/internal/infra/storage"
)

// AdminService arma las respuestas de los slash commands de administración.
// Los errores de dominio vuelven como mensaje para el usuario; solo los
// errores inesperados se devuelven como error.
type AdminService struct {
	store     *storage.Store
	polls     *PollService
	narrators *NarratorService
	scheduler *Scheduler
	now       func() time.Time
}

func NewAdminService(store *storage.Store, polls *PollService, narrators *NarratorService, scheduler *Scheduler) *AdminService {
	return &AdminService{store: store, polls: polls, narrators: narrators, scheduler: scheduler, now: time.Now}
}

func (a *AdminService) Save(ctx context.Context) (string, error) {
	if err := a.scheduler.ForceSave(ctx); err != nil {
		return "", err
	}
	return "💾 Estado guardado.", nil
}

func (a *AdminService) VoteStatus() string {
	cfg := a.store.Settings.Get().MemberVote
	polls := a.store.Polls.List()
	now := a.now().Unix()

	var b strings.Builder
	b.WriteString("🗳️ **Votación de miembros**\n")
	fmt.Fprintf(&b, "Estado: %s · canal %s · umbral %d · timeout %s\n",
		onOff(cfg.Enabled), channelMention(cfg.ChannelID), cfg.VotesRequired, formatSeconds(cfg.TimeoutSeconds))
	fmt.Fprintf(&b, "Rol: %s · adicionales: %s\n", roleMention(cfg.MemberRoleID), roleList(cfg.AdditionalRoles))
	if len(polls) == 0 {
		b.WriteString("ℹ️ No hay encuestas abiertas.")
		return b.String()
	}
	fmt.Fprintf(&b, "Abiertas (%d):\n", len(polls))
	for _, p := range polls {
		fmt.Fprintf(&b, "• <@%s> hace %s\n", p.UserID, formatSeconds(p.Age(now)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (a *AdminService) OpenPoll(ctx context.Context, userID string) (string, error) {
	if _, err := a.polls.OpenPoll(ctx, userID); err != nil {
		return userMessage(err)
	}
	return fmt.Sprintf("✅ Encuesta abierta para <@%s>.", userID), nil
}

func (a *AdminService) ExpirePoll(ctx context.Context, userID string) (string, error) {
	if _, err := a.polls.ExpirePoll(ctx, userID); err != nil {
		return userMessage(err)
	}
	return fmt.Sprintf("✅ Encuesta de <@%s> cerrada.", userID), nil
}

// UpdateVote aplica fn a la config de votación; si no valida no se toca nada.
func (a *AdminService) UpdateVote(fn func(*domain.MemberVote) error) (string, error) {
	_, err := a.store.Settings.Update(func(s *domain.Settings) error { return fn(&s.MemberVote) })
	if err != nil {
		return userMessage(err)
	}
	return "✅ Configuración de votación actualizada.", nil
}

func (a *AdminService) UpdateNarrator(fn func(*domain.Narrator) error) (string, error) {
	_, err := a.store.Settings.Update(func(s *domain.Settings) error { return fn(&s.Narrator) })
	if err != nil {
		return userMessage(err)
	}
	return "✅ Configuración de narrador actualizada.", nil
}

func (a *AdminService) NarratorStatus() string {
	cfg := a.store.Settings.Get().Narrator
	vs := a.narrators.Status()

	var b strings.Builder
	b.WriteString("🎙️ **Narradores**\n")
	fmt.Fprintf(&b, "Estado: %s · grabador %s · rol %s · audiencia mínima %d · ventana %s\n",
		onOff(cfg.Enabled), userMention(cfg.RecorderID), roleMention(cfg.RoleID), cfg.MinAudience, formatSeconds(cfg.ActiveTimeSeconds))
	if vs.ChannelID != "" {
		fmt.Fprintf(&b, "🔊 Conectado a %s · %d oyentes · %d hablando\n", channelMention(vs.ChannelID), vs.Humans, vs.Speaking)
	} else {
		b.WriteString("🔇 Sin conexión de voz\n")
	}
	top := a.store.Narrators.Top(10)
	if len(top) == 0 {
		b.WriteString("ℹ️ Nadie narró todavía.")
		return b.String()
	}
	for i, r := range top {
		fmt.Fprintf(&b, "%d. <@%s> · %s\n", i+1, r.UserID, formatSeconds(r.Time))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (a *AdminService) NarratorUser(userID string) string {
	r := a.narrators.Narrator(userID).Record()
	last := "nunca"
	if r.LastNarration > 0 {
		last = fmt.Sprintf("<t:%d:R>", r.LastNarration)
	}
	return fmt.Sprintf("🎙️ <@%s> · total %s · última narración %s", userID, formatSeconds(r.Time), last)
}

func (a *AdminService) SetNarratorTime(userID string, seconds int64) (string, error) {
	if err := a.narrators.Narrator(userID).SetTime(seconds); err != nil {
		return userMessage(err)
	}
	return fmt.Sprintf("✅ Tiempo de <@%s> = %s.", userID, formatSeconds(seconds)), nil
}

func (a *AdminService) AddNarratorTime(userID string, seconds int64) (string, error) {
	acc := a.narrators.Narrator(userID)
	if err := acc.AddTime(seconds); err != nil {
		return userMessage(err)
	}
	return fmt.Sprintf("✅ <@%s> suma %s (total %s).", userID, formatSeconds(seconds), formatSeconds(acc.Time())), nil
}

// SetLastNarration también resincroniza el rol del usuario.
func (a *AdminService) SetLastNarration(ctx context.Context, userID string, at int64) (string, error) {
	if err := a.narrators.Narrator(userID).SetLastNarration(at); err != nil {
		return userMessage(err)
	}
	a.narrators.CheckRoles(ctx, userID)
	return fmt.Sprintf("✅ Última narración de <@%s> actualizada.", userID), nil
}

// ClearNarrators guarda antes de borrar: el snapshot previo queda como respaldo.
func (a *AdminService) ClearNarrators(ctx context.Context) (string, error) {
	if err := a.scheduler.ForceSave(ctx); err != nil {
		return "", fmt.Errorf("save before clear: %w", err)
	}
	n := a.store.Narrators.Clear()
	return fmt.Sprintf("🧹 %d narradores borrados.", n), nil
}

func userMessage(err error) (string, error) {
	switch {
	case errors.Is(err, domain.ErrConflict):
		return "❌ Ya existe: " + err.Error(), nil
	case errors.Is(err, domain.ErrNotFound):
		return "❌ No encontrado: " + err.Error(), nil
	case errors.Is(err, domain.ErrInvalidInput):
		return "❌ Valor inválido: " + err.Error(), nil
	case errors.Is(err, domain.ErrDisabled):
		return "❌ El módulo está apagado.", nil
	}
	return "", err
}

// formatSeconds => HH:MM:SS (las horas pueden pasar de 99).
func formatSeconds(total int64) string {
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total%3600/60, total%60)
}

func onOff(b bool) string {
	if b {
		return "🟢 activo"
	}
	return "⚪ apagado"
}

func channelMention(id string) string {
	if id == "" {
		return "—"
	}
	return "<#" + id + ">"
}

func roleMention(id string) string {
	if id == "" {
		return "—"
	}
	return "<@&" + id + ">"
}

func userMention(id string) string {
	if id == "" {
		return "—"
	}
	return "<@" + id + ">"
}

func roleList(ids []string) string {
	if len(ids) == 0 {
		return "—"
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = roleMention(id)
	}
	return strings.Join(out, " ")
}
