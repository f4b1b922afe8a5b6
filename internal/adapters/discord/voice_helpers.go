package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// voiceTransition devuelve de qué canal salió y a cuál entró el usuario.
// Cambios de mute/deaf dentro del mismo canal no producen transición.
func voiceTransition(before *discordgo.VoiceState, afterChannelID string) (left, joined string) {
	prev := ""
	if before != nil {
		prev = before.ChannelID
	}
	if prev == afterChannelID {
		return "", ""
	}
	return prev, afterChannelID
}

func (r *Router) onVoiceStateUpdate(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	if vs.GuildID != r.guildID || vs.VoiceState == nil {
		return
	}
	ctx := context.Background()

	// el propio bot quedó fuera de voz (kick, caída, Leave)
	if s.State.User != nil && vs.UserID == s.State.User.ID {
		if vs.ChannelID == "" {
			r.recorder.dropped()
			r.narrators.OnDisconnect(ctx)
		}
		return
	}

	bot := r.isBot(vs.UserID, vs.Member)
	left, joined := voiceTransition(vs.BeforeUpdate, vs.ChannelID)
	if left != "" {
		r.narrators.OnVoiceLeave(ctx, vs.UserID, bot, left)
	}
	if joined != "" {
		r.narrators.OnVoiceJoin(ctx, vs.UserID, bot, joined)
	}
}

// isBot usa el member del evento y si no hay, el state cache.
func (r *Router) isBot(userID string, m *discordgo.Member) bool {
	if m != nil && m.User != nil {
		return m.User.Bot
	}
	return stateIsBot(r.s.State, r.guildID, userID)
}

func stateIsBot(st *discordgo.State, guildID, userID string) bool {
	if st == nil {
		return false
	}
	if m, err := st.Member(guildID, userID); err == nil && m != nil && m.User != nil {
		return m.User.Bot
	}
	return false
}
